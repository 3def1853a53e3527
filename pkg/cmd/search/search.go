package search

import (
	"context"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/VladimirKravtsov36/neuro-karaoke-demo/pkg/yamusic"
)

type Config struct {
	Debug bool
	Token string

	Query string
	Limit int
}

// Run searches the catalog and prints the matching tracks.
func Run(ctx context.Context, cfg *Config) error {
	if cfg.Query == "" {
		return fmt.Errorf("search: query is empty")
	}

	client, err := yamusic.New(&yamusic.Config{
		Token: cfg.Token,
		Debug: cfg.Debug,
	})
	if err != nil {
		return fmt.Errorf("search: couldn't create catalog client: %w", err)
	}

	tracks, err := client.Search(ctx, cfg.Query, cfg.Limit)
	if err != nil {
		return fmt.Errorf("search: couldn't search tracks: %w", err)
	}
	if len(tracks) == 0 {
		log.Printf("search: no tracks found for %q\n", cfg.Query)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tARTIST\tALBUM\tDURATION\tLYRICS")
	for _, t := range tracks {
		lyrics := "-"
		switch {
		case t.HasSyncLyrics:
			lyrics = "synced"
		case t.HasTextLyrics:
			lyrics = "text"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Title, t.Artist(), t.Album, t.Duration(), lyrics)
	}
	return w.Flush()
}
