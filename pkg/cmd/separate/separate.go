package separate

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/VladimirKravtsov36/neuro-karaoke-demo/pkg/demucs"
	"github.com/VladimirKravtsov36/neuro-karaoke-demo/pkg/filestore"
	"github.com/VladimirKravtsov36/neuro-karaoke-demo/pkg/storage"
)

type Config struct {
	Debug  bool
	DBType string
	DBConn string
	FSType string
	FSConn string

	Song      string
	Output    string
	Bin       string
	Model     string
	Device    string
	Segment   float64
	Shifts    int
	Jobs      int
	MP3       bool
	Bitrate   int
	Float32   bool
	Keep      bool
	Overwrite bool
}

// Run splits a song into vocal and instrumental stems.
func Run(ctx context.Context, cfg *Config) error {
	if cfg.Song == "" {
		return fmt.Errorf("separate: song path is empty")
	}

	sep, err := demucs.New(&demucs.Config{
		Bin:              cfg.Bin,
		OutputRoot:       cfg.Output,
		Model:            cfg.Model,
		Device:           cfg.Device,
		Segment:          cfg.Segment,
		Shifts:           cfg.Shifts,
		Jobs:             cfg.Jobs,
		MP3:              cfg.MP3,
		MP3Bitrate:       cfg.Bitrate,
		Float32:          cfg.Float32,
		KeepIntermediate: cfg.Keep,
		Debug:            cfg.Debug,
	})
	if err != nil {
		return fmt.Errorf("separate: couldn't create separator: %w", err)
	}

	start := time.Now()
	result, err := sep.Separate(ctx, cfg.Song, cfg.Overwrite)
	if err != nil {
		return fmt.Errorf("separate: couldn't separate song: %w", err)
	}
	elapsed := time.Since(start)
	log.Printf("separate: vocals %s\n", result.VocalsPath)
	log.Printf("separate: instrumental %s\n", result.InstrumentalPath)

	if cfg.FSType != "" {
		fs, err := filestore.New(cfg.FSType, cfg.FSConn, cfg.Debug)
		if err != nil {
			return fmt.Errorf("separate: couldn't create file storage: %w", err)
		}
		name := strings.TrimSuffix(filepath.Base(cfg.Song), filepath.Ext(cfg.Song))
		if err := fs.SetVocals(ctx, result.VocalsPath, name); err != nil {
			return fmt.Errorf("separate: couldn't archive vocals: %w", err)
		}
		if err := fs.SetInstrumental(ctx, result.InstrumentalPath, name); err != nil {
			return fmt.Errorf("separate: couldn't archive instrumental: %w", err)
		}
	}

	if cfg.DBType == "" {
		return nil
	}
	store, err := storage.New(cfg.DBType, cfg.DBConn, cfg.Debug)
	if err != nil {
		return fmt.Errorf("separate: couldn't create orm store: %w", err)
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("separate: couldn't start orm store: %w", err)
	}
	sepRecord := &storage.Separation{
		ID:               storage.NewID(),
		SongPath:         result.SongPath,
		VocalsPath:       result.VocalsPath,
		InstrumentalPath: result.InstrumentalPath,
		OutputDir:        result.OutputDir,
		Model:            result.Model,
		Device:           result.Device,
		Format:           strings.TrimPrefix(filepath.Ext(result.VocalsPath), "."),
		Elapsed:          elapsed.Seconds(),
	}
	if err := store.SetSeparation(ctx, sepRecord); err != nil {
		return fmt.Errorf("separate: couldn't save separation: %w", err)
	}
	return nil
}
