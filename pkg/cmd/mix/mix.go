package mix

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/VladimirKravtsov36/neuro-karaoke-demo/pkg/ffmpeg"
	"github.com/VladimirKravtsov36/neuro-karaoke-demo/pkg/sound"
)

type Config struct {
	Debug bool

	Vocals       string
	Instrumental string
	Gain         float64
	Output       string
	Bitrate      int
}

// Run blends the instrumental stem with attenuated vocals and writes the
// result to the output file. The format is chosen by the output extension,
// mp3 outputs are encoded with ffmpeg.
func Run(ctx context.Context, cfg *Config) error {
	if cfg.Vocals == "" || cfg.Instrumental == "" {
		return fmt.Errorf("mix: vocals and instrumental paths are required")
	}
	if cfg.Output == "" {
		return fmt.Errorf("mix: output path is empty")
	}

	instrumental, err := sound.DecodeFile(cfg.Instrumental)
	if err != nil {
		return fmt.Errorf("mix: couldn't decode instrumental: %w", err)
	}
	vocals, err := sound.DecodeFile(cfg.Vocals)
	if err != nil {
		return fmt.Errorf("mix: couldn't decode vocals: %w", err)
	}

	mixed, err := sound.Mix(instrumental, vocals, cfg.Gain)
	if err != nil {
		return fmt.Errorf("mix: couldn't mix stems: %w", err)
	}

	wavPath := cfg.Output
	toMP3 := strings.EqualFold(filepath.Ext(cfg.Output), ".mp3")
	if toMP3 {
		tmp, err := os.CreateTemp("", "mix-*.wav")
		if err != nil {
			return fmt.Errorf("mix: couldn't create temp file: %w", err)
		}
		wavPath = tmp.Name()
		_ = tmp.Close()
		defer func() { _ = os.Remove(wavPath) }()
	}

	f, err := os.Create(wavPath)
	if err != nil {
		return fmt.Errorf("mix: couldn't create output file: %w", err)
	}
	if err := sound.EncodeWAV(f, mixed); err != nil {
		_ = f.Close()
		return fmt.Errorf("mix: couldn't encode wav: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("mix: couldn't close output file: %w", err)
	}

	if toMP3 {
		bitrate := cfg.Bitrate
		if bitrate <= 0 {
			bitrate = 320
		}
		if err := ffmpeg.Encode(ctx, wavPath, cfg.Output, bitrate); err != nil {
			return fmt.Errorf("mix: couldn't encode mp3: %w", err)
		}
	}
	log.Printf("mix: wrote %s (%s, gain %.2f)\n", cfg.Output, mixed.Duration(), cfg.Gain)
	return nil
}
