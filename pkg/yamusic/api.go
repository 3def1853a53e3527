package yamusic

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Track is the catalog metadata shown to the user. Ephemeral: fetched
// per search, never persisted by this package.
type Track struct {
	ID            string
	Title         string
	Artists       []string
	Album         string
	DurationMS    int
	CoverURI      string
	HasSyncLyrics bool
	HasTextLyrics bool
}

func (t *Track) Artist() string {
	if len(t.Artists) == 0 {
		return "Unknown artist"
	}
	return strings.Join(t.Artists, ", ")
}

func (t *Track) Duration() time.Duration {
	return time.Duration(t.DurationMS) * time.Millisecond
}

// CoverURL resolves the API cover template to a concrete size.
func (t *Track) CoverURL() string {
	if t.CoverURI == "" {
		return ""
	}
	return "https://" + strings.Replace(t.CoverURI, "%%", "200x200", 1)
}

type trackJSON struct {
	ID         json.Number `json:"id"`
	Title      string      `json:"title"`
	DurationMS int         `json:"durationMs"`
	CoverURI   string      `json:"coverUri"`
	Artists    []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Albums []struct {
		Title string `json:"title"`
	} `json:"albums"`
	LyricsInfo struct {
		HasAvailableSyncLyrics bool `json:"hasAvailableSyncLyrics"`
		HasAvailableTextLyrics bool `json:"hasAvailableTextLyrics"`
	} `json:"lyricsInfo"`
}

func (t *trackJSON) toTrack() *Track {
	var artists []string
	for _, a := range t.Artists {
		if a.Name != "" {
			artists = append(artists, a.Name)
		}
	}
	var album string
	if len(t.Albums) > 0 {
		album = t.Albums[0].Title
	}
	return &Track{
		ID:            t.ID.String(),
		Title:         t.Title,
		Artists:       artists,
		Album:         album,
		DurationMS:    t.DurationMS,
		CoverURI:      t.CoverURI,
		HasSyncLyrics: t.LyricsInfo.HasAvailableSyncLyrics,
		HasTextLyrics: t.LyricsInfo.HasAvailableTextLyrics,
	}
}

// Search returns candidate tracks for a free-text query, best match
// first. An empty query returns an empty list without hitting the API.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]*Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	var result struct {
		Tracks struct {
			Results []trackJSON `json:"results"`
		} `json:"tracks"`
	}
	path := fmt.Sprintf("search?text=%s&type=track&page=0&nocorrect=false", url.QueryEscape(query))
	if err := c.do(ctx, "GET", path, &result); err != nil {
		return nil, err
	}
	var tracks []*Track
	for _, t := range result.Tracks.Results {
		tracks = append(tracks, t.toTrack())
		if len(tracks) >= limit {
			break
		}
	}
	return tracks, nil
}

// Track fetches the metadata of a single track.
func (c *Client) Track(ctx context.Context, id string) (*Track, error) {
	var result []trackJSON
	if err := c.do(ctx, "GET", fmt.Sprintf("tracks/%s", url.PathEscape(id)), &result); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTrackNotFound, id)
	}
	return result[0].toTrack(), nil
}

type downloadInfo struct {
	Codec           string `json:"codec"`
	BitrateInKbps   int    `json:"bitrateInKbps"`
	DownloadInfoURL string `json:"downloadInfoUrl"`
}

// downloadInfo picks the best quality mp3 variant for the track.
func (c *Client) downloadInfo(ctx context.Context, id string) (*downloadInfo, error) {
	var result []downloadInfo
	if err := c.do(ctx, "GET", fmt.Sprintf("tracks/%s/download-info", url.PathEscape(id)), &result); err != nil {
		return nil, err
	}
	var infos []downloadInfo
	for _, info := range result {
		if info.Codec != "mp3" {
			continue
		}
		infos = append(infos, info)
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("yamusic: no mp3 download info for track %s", id)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].BitrateInKbps > infos[j].BitrateInKbps
	})
	return &infos[0], nil
}

// signSalt is the fixed salt of the storage download protocol. It is a
// protocol constant of the unofficial API, not a secret.
const signSalt = "XGRlBW9FXlekgbPrRHuSiA"

type storageInfo struct {
	XMLName xml.Name `xml:"download-info"`
	Host    string   `xml:"host"`
	Path    string   `xml:"path"`
	TS      string   `xml:"ts"`
	S       string   `xml:"s"`
}

// directURL resolves the storage descriptor of a download-info entry
// into the signed direct mp3 URL.
func (c *Client) directURL(ctx context.Context, info *downloadInfo) (string, error) {
	b, err := c.get(ctx, info.DownloadInfoURL)
	if err != nil {
		return "", err
	}
	var si storageInfo
	if err := xml.Unmarshal(b, &si); err != nil {
		return "", fmt.Errorf("yamusic: couldn't unmarshal storage info: %w", err)
	}
	if si.Host == "" || si.Path == "" {
		return "", fmt.Errorf("yamusic: incomplete storage info for %s", info.DownloadInfoURL)
	}
	sign := md5.Sum([]byte(signSalt + si.Path[1:] + si.S))
	return fmt.Sprintf("https://%s/get-mp3/%x/%s%s", si.Host, sign, si.TS, si.Path), nil
}
