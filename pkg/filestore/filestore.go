package filestore

import (
	"context"
	"fmt"
	"strings"

	"github.com/VladimirKravtsov36/neuro-karaoke-demo/pkg/filestore/local"
	"github.com/VladimirKravtsov36/neuro-karaoke-demo/pkg/filestore/s3"
)

type fs interface {
	Upload(ctx context.Context, path, name string) error
	Download(ctx context.Context, path, name string) error
}

// Store archives separated stems outside the working tree, either in a
// local directory or an S3 bucket.
type Store struct {
	fs fs
}

func (s *Store) SetVocals(ctx context.Context, path, id string) error {
	return s.fs.Upload(ctx, path, Vocals(id, ext(path)))
}

func (s *Store) SetInstrumental(ctx context.Context, path, id string) error {
	return s.fs.Upload(ctx, path, Instrumental(id, ext(path)))
}

func (s *Store) GetVocals(ctx context.Context, path, id string) error {
	return s.fs.Download(ctx, path, Vocals(id, ext(path)))
}

func (s *Store) GetInstrumental(ctx context.Context, path, id string) error {
	return s.fs.Download(ctx, path, Instrumental(id, ext(path)))
}

func New(typ, conn string, debug bool) (*Store, error) {
	var fs fs
	switch typ {
	case "s3":
		split := strings.Split(conn, "@")
		if len(split) != 2 {
			return nil, fmt.Errorf("filestore: invalid s3 connection string %q", conn)
		}
		auth := strings.Split(split[0], ":")
		if len(auth) != 2 {
			return nil, fmt.Errorf("filestore: invalid s3 auth string %q", conn)
		}
		key := auth[0]
		secret := auth[1]
		loc := strings.Split(split[1], ".")
		if len(loc) != 2 {
			return nil, fmt.Errorf("filestore: invalid s3 location string %q", conn)
		}
		bucket := loc[0]
		region := loc[1]
		candidate, err := s3.New(key, secret, region, bucket, debug)
		if err != nil {
			return nil, fmt.Errorf("filestore: %w", err)
		}
		fs = candidate
	case "local":
		fs = local.New(conn, debug)
	default:
		return nil, fmt.Errorf("filestore: unknown file storage type %q", typ)
	}
	return &Store{fs: fs}, nil
}

func Vocals(id, ext string) string {
	return id + "_vocals" + ext
}

func Instrumental(id, ext string) string {
	return id + "_instrumental" + ext
}

func ext(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[i:]
	}
	return ""
}
