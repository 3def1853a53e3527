package setting

import (
	"context"
	"fmt"

	"github.com/VladimirKravtsov36/neuro-karaoke-demo/pkg/storage"
)

type Config struct {
	Debug  bool
	DBType string
	DBConn string

	Name  string
	Value string
}

// Run saves a setting, such as the catalog token, to the database.
func Run(ctx context.Context, cfg *Config) error {
	store, err := storage.New(cfg.DBType, cfg.DBConn, cfg.Debug)
	if err != nil {
		return fmt.Errorf("setting: couldn't create orm store: %w", err)
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("setting: couldn't start orm store: %w", err)
	}

	if cfg.Name == "" {
		return fmt.Errorf("setting: name is empty")
	}
	if cfg.Value == "" {
		return fmt.Errorf("setting: value is empty")
	}

	switch cfg.Name {
	case storage.TokenSetting:
	default:
		return fmt.Errorf("setting: unknown name: %s", cfg.Name)
	}

	s := storage.Setting{
		ID:    cfg.Name,
		Value: cfg.Value,
	}
	if err := store.SetSetting(ctx, &s); err != nil {
		return fmt.Errorf("setting: couldn't save setting: %w", err)
	}
	return nil
}
