package neurokaraoke

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/VladimirKravtsov36/neuro-karaoke-demo/pkg/demucs"
	"github.com/VladimirKravtsov36/neuro-karaoke-demo/pkg/yamusic"
)

type Config struct {
	Token     string
	Wait      time.Duration
	Debug     bool
	Downloads string

	Bin     string
	Output  string
	Model   string
	Device  string
	Segment float64
	Shifts  int
	Jobs    int
	MP3     bool
	Bitrate int

	Overwrite bool
}

// Result holds everything produced by a prepare run.
type Result struct {
	Track            *yamusic.Track
	Lyrics           *yamusic.Lyrics
	SongPath         string
	VocalsPath       string
	InstrumentalPath string
}

// Prepare downloads a track from the catalog and splits it into vocal and
// instrumental stems, ready for the karaoke player.
func Prepare(ctx context.Context, cfg *Config, id string) (*Result, error) {
	client, err := yamusic.New(&yamusic.Config{
		Token: cfg.Token,
		Wait:  cfg.Wait,
		Debug: cfg.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("couldn't create catalog client: %w", err)
	}

	downloads := cfg.Downloads
	if downloads == "" {
		downloads = "downloads"
	}
	path, track, lyrics, err := client.DownloadWithLyrics(ctx, id, downloads)
	if err != nil {
		return nil, fmt.Errorf("couldn't download track: %w", err)
	}
	log.Printf("downloaded %s - %s to %s\n", track.Artist(), track.Title, path)

	separator, err := demucs.New(&demucs.Config{
		Bin:        cfg.Bin,
		OutputRoot: cfg.Output,
		Model:      cfg.Model,
		Device:     cfg.Device,
		Segment:    cfg.Segment,
		Shifts:     cfg.Shifts,
		Jobs:       cfg.Jobs,
		MP3:        cfg.MP3,
		MP3Bitrate: cfg.Bitrate,
		Debug:      cfg.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("couldn't create separator: %w", err)
	}
	separation, err := separator.Separate(ctx, path, cfg.Overwrite)
	if err != nil {
		return nil, fmt.Errorf("couldn't separate track: %w", err)
	}
	log.Println("vocals:", separation.VocalsPath)
	log.Println("instrumental:", separation.InstrumentalPath)

	return &Result{
		Track:            track,
		Lyrics:           lyrics,
		SongPath:         separation.SongPath,
		VocalsPath:       separation.VocalsPath,
		InstrumentalPath: separation.InstrumentalPath,
	}, nil
}
