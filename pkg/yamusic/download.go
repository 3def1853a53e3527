package yamusic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dhowden/tag"
	"github.com/h2non/filetype"
)

var (
	filenamePattern   = regexp.MustCompile(`[^\p{L}\p{N}\s-]`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// sanitizeFilename strips everything that isn't safe in a file name.
func sanitizeFilename(name string) string {
	name = filenamePattern.ReplaceAllString(name, "")
	name = whitespacePattern.ReplaceAllString(strings.TrimSpace(name), "_")
	if name == "" {
		return "track"
	}
	return name
}

// Download streams the track audio to dir and returns the local path
// together with the catalog metadata. Audio failure is fatal for the
// whole action.
func (c *Client) Download(ctx context.Context, id, dir string) (string, *Track, error) {
	track, err := c.Track(ctx, id)
	if err != nil {
		return "", nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", nil, fmt.Errorf("yamusic: couldn't create download directory: %w", err)
	}
	name := fmt.Sprintf("%s_%s", sanitizeFilename(track.Title), track.ID)
	path := filepath.Join(dir, name+".mp3")

	info, err := c.downloadInfo(ctx, id)
	if err != nil {
		return "", nil, err
	}
	u, err := c.directURL(ctx, info)
	if err != nil {
		return "", nil, err
	}
	if err := c.stream(ctx, u, path); err != nil {
		return "", nil, err
	}
	if err := checkAudio(path); err != nil {
		_ = os.Remove(path)
		return "", nil, err
	}
	c.fillTags(path, track)
	return path, track, nil
}

// DownloadWithLyrics downloads the audio and, best effort, the lyrics.
// A lyrics failure never fails the download.
func (c *Client) DownloadWithLyrics(ctx context.Context, id, dir string) (string, *Track, *Lyrics, error) {
	path, track, err := c.Download(ctx, id, dir)
	if err != nil {
		return "", nil, nil, err
	}
	lyrics, err := c.Lyrics(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNoLyrics) {
			c.log("yamusic: couldn't fetch lyrics for %s: %v", id, err)
		}
		return path, track, nil, nil
	}
	return path, track, lyrics, nil
}

func (c *Client) stream(ctx context.Context, u, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("yamusic: couldn't create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: couldn't download audio: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: audio download returned %v", ErrUnavailable, errStatusCode(resp.StatusCode))
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("yamusic: couldn't create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("yamusic: couldn't write %s: %w", path, err)
	}
	return nil
}

// checkAudio sniffs the payload and rejects anything that isn't audio,
// e.g. an HTML error page served with status 200.
func checkAudio(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("yamusic: couldn't open %s: %w", path, err)
	}
	defer f.Close()
	head := make([]byte, 261)
	n, err := io.ReadFull(f, head)
	if err != nil && n == 0 {
		return fmt.Errorf("yamusic: couldn't read %s: %w", path, err)
	}
	if !filetype.IsAudio(head[:n]) {
		return fmt.Errorf("yamusic: downloaded payload is not audio (%s)", path)
	}
	return nil
}

// fillTags backfills missing catalog metadata from the ID3 tags of the
// downloaded file. Tag errors are ignored, metadata is cosmetic here.
func (c *Client) fillTags(path string, track *Track) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	m, err := tag.ReadFrom(f)
	if err != nil {
		c.log("yamusic: couldn't read tags from %s: %v", path, err)
		return
	}
	if track.Title == "" && m.Title() != "" {
		track.Title = m.Title()
	}
	if len(track.Artists) == 0 && m.Artist() != "" {
		track.Artists = []string{m.Artist()}
	}
	if track.Album == "" && m.Album() != "" {
		track.Album = m.Album()
	}
}
