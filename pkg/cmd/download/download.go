package download

import (
	"context"
	"fmt"
	"log"

	"github.com/VladimirKravtsov36/neuro-karaoke-demo/pkg/storage"
	"github.com/VladimirKravtsov36/neuro-karaoke-demo/pkg/yamusic"
)

type Config struct {
	Debug  bool
	Token  string
	DBType string
	DBConn string

	ID     string
	Output string
	Lyrics bool
}

// Run downloads a track from the catalog to the output directory.
// When a database is configured the track is also recorded there.
func Run(ctx context.Context, cfg *Config) error {
	if cfg.ID == "" {
		return fmt.Errorf("download: track id is empty")
	}

	client, err := yamusic.New(&yamusic.Config{
		Token: cfg.Token,
		Debug: cfg.Debug,
	})
	if err != nil {
		return fmt.Errorf("download: couldn't create catalog client: %w", err)
	}

	var path string
	var track *yamusic.Track
	var lyrics *yamusic.Lyrics
	if cfg.Lyrics {
		path, track, lyrics, err = client.DownloadWithLyrics(ctx, cfg.ID, cfg.Output)
	} else {
		path, track, err = client.Download(ctx, cfg.ID, cfg.Output)
	}
	if err != nil {
		return fmt.Errorf("download: couldn't download track %s: %w", cfg.ID, err)
	}
	log.Printf("download: saved %s - %s to %s\n", track.Artist(), track.Title, path)

	if cfg.DBType == "" {
		return nil
	}
	store, err := storage.New(cfg.DBType, cfg.DBConn, cfg.Debug)
	if err != nil {
		return fmt.Errorf("download: couldn't create orm store: %w", err)
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("download: couldn't start orm store: %w", err)
	}

	dbTrack := &storage.Track{
		ID:         storage.NewID(),
		ExternalID: track.ID,
		Title:      track.Title,
		Artist:     track.Artist(),
		Album:      track.Album,
		DurationMS: track.DurationMS,
		Path:       path,
	}
	if prev, err := store.GetTrackByExternalID(ctx, track.ID); err == nil {
		dbTrack.ID = prev.ID
	}
	if lyrics != nil {
		dbTrack.LyricsFormat = lyrics.Format
		dbTrack.Lyrics = lyrics.Raw
	}
	if err := store.SetTrack(ctx, dbTrack); err != nil {
		return fmt.Errorf("download: couldn't save track: %w", err)
	}
	return nil
}
