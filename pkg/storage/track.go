package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Track records a downloaded catalog track and its local audio file.
type Track struct {
	ID        string `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	ExternalID string `gorm:"index;not null;default:''"`
	Title      string `gorm:"not null;default:''"`
	Artist     string `gorm:"not null;default:''"`
	Album      string `gorm:"not null;default:''"`
	DurationMS int    `gorm:"not null;default:0"`

	Path string `gorm:"not null;default:''"`

	LyricsFormat string `gorm:"not null;default:''"`
	Lyrics       string `gorm:"not null;default:''"`
}

func (s *Store) GetTrack(ctx context.Context, id string) (*Track, error) {
	var v Track
	if err := s.db.First(&v, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: failed to get Track %s: %w", id, err)
	}
	return &v, nil
}

// GetTrackByExternalID looks a track up by its catalog identifier.
func (s *Store) GetTrackByExternalID(ctx context.Context, externalID string) (*Track, error) {
	var v Track
	if err := s.db.First(&v, "external_id = ?", externalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: failed to get Track by external id %s: %w", externalID, err)
	}
	return &v, nil
}

func (s *Store) SetTrack(ctx context.Context, v *Track) error {
	if err := s.db.Save(v).Error; err != nil {
		return fmt.Errorf("storage: failed to set Track %s: %w", v.ID, err)
	}
	return nil
}

func (s *Store) DeleteTrack(ctx context.Context, id string) error {
	if err := s.db.Delete(&Track{ID: id}, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("storage: failed to delete Track %s: %w", id, err)
	}
	return nil
}

func (s *Store) ListTracks(ctx context.Context, page, size int, orderBy string, filter ...Filter) ([]*Track, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * size
	vs := []*Track{}

	q := s.db.Offset(offset).Limit(size)
	for _, f := range filter {
		q = q.Where(f.Query, f.Args...)
	}
	if orderBy != "" {
		q = q.Order(orderBy)
	}
	if err := q.Find(&vs).Error; err != nil {
		return nil, fmt.Errorf("storage: failed to list Tracks: %w", err)
	}
	return vs, nil
}
