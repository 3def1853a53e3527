package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Separation records one run of the separation tool and the stems it
// produced.
type Separation struct {
	ID        string `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	TrackID *string
	Track   *Track `gorm:"foreignKey:TrackID"`

	SongPath         string `gorm:"not null;default:''"`
	VocalsPath       string `gorm:"not null;default:''"`
	InstrumentalPath string `gorm:"not null;default:''"`
	OutputDir        string `gorm:"not null;default:''"`

	Model   string  `gorm:"not null;default:''"`
	Device  string  `gorm:"not null;default:''"`
	Format  string  `gorm:"not null;default:''"`
	Elapsed float64 `gorm:"not null;default:0"`
}

func (s *Store) GetSeparation(ctx context.Context, id string) (*Separation, error) {
	q := s.db.Preload("Track")

	var v Separation
	if err := q.First(&v, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: failed to get Separation %s: %w", id, err)
	}
	return &v, nil
}

func (s *Store) SetSeparation(ctx context.Context, v *Separation) error {
	if err := s.db.Save(v).Error; err != nil {
		return fmt.Errorf("storage: failed to set Separation %s: %w", v.ID, err)
	}
	return nil
}

func (s *Store) DeleteSeparation(ctx context.Context, id string) error {
	if err := s.db.Delete(&Separation{ID: id}, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("storage: failed to delete Separation %s: %w", id, err)
	}
	return nil
}

func (s *Store) ListSeparations(ctx context.Context, page, size int, orderBy string, filter ...Filter) ([]*Separation, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * size
	vs := []*Separation{}

	q := s.db.Preload("Track")
	q = q.Offset(offset).Limit(size)
	for _, f := range filter {
		q = q.Where(f.Query, f.Args...)
	}
	if orderBy != "" {
		q = q.Order(orderBy)
	}
	if err := q.Find(&vs).Error; err != nil {
		return nil, fmt.Errorf("storage: failed to list Separations: %w", err)
	}
	return vs, nil
}
