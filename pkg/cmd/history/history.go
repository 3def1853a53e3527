package history

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/VladimirKravtsov36/neuro-karaoke-demo/pkg/storage"
)

type Config struct {
	Debug  bool
	DBType string
	DBConn string

	Page  int
	Size  int
	Model string
	CSV   string
}

type row struct {
	ID           string    `csv:"id"`
	CreatedAt    time.Time `csv:"created_at"`
	Title        string    `csv:"title"`
	Artist       string    `csv:"artist"`
	Song         string    `csv:"song"`
	Vocals       string    `csv:"vocals"`
	Instrumental string    `csv:"instrumental"`
	Model        string    `csv:"model"`
	Device       string    `csv:"device"`
	Elapsed      float64   `csv:"elapsed_seconds"`
}

// Run lists past separations, optionally exporting them as CSV.
func Run(ctx context.Context, cfg *Config) error {
	store, err := storage.New(cfg.DBType, cfg.DBConn, cfg.Debug)
	if err != nil {
		return fmt.Errorf("history: couldn't create orm store: %w", err)
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("history: couldn't start orm store: %w", err)
	}

	page := cfg.Page
	if page < 1 {
		page = 1
	}
	size := cfg.Size
	if size < 1 {
		size = 100
	}
	var filters []storage.Filter
	if cfg.Model != "" {
		filters = append(filters, storage.Where("model = ?", cfg.Model))
	}
	separations, err := store.ListSeparations(ctx, page, size, "created_at desc", filters...)
	if err != nil {
		return fmt.Errorf("history: couldn't list separations: %w", err)
	}

	var rows []*row
	for _, s := range separations {
		r := &row{
			ID:           s.ID,
			CreatedAt:    s.CreatedAt,
			Song:         s.SongPath,
			Vocals:       s.VocalsPath,
			Instrumental: s.InstrumentalPath,
			Model:        s.Model,
			Device:       s.Device,
			Elapsed:      s.Elapsed,
		}
		if s.Track != nil {
			r.Title = s.Track.Title
			r.Artist = s.Track.Artist
		}
		rows = append(rows, r)
	}

	if cfg.CSV != "" {
		f, err := os.Create(cfg.CSV)
		if err != nil {
			return fmt.Errorf("history: couldn't create csv file: %w", err)
		}
		defer f.Close()
		if err := gocsv.MarshalFile(&rows, f); err != nil {
			return fmt.Errorf("history: couldn't write csv: %w", err)
		}
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tTITLE\tARTIST\tMODEL\tDEVICE\tELAPSED\tOUTPUT")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.1fs\t%s\n",
			r.CreatedAt.Format("2006-01-02 15:04"), r.Title, r.Artist,
			r.Model, r.Device, r.Elapsed, r.Instrumental)
	}
	return w.Flush()
}
