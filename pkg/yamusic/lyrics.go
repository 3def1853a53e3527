package yamusic

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// lyricsSignKey signs time-coded lyric requests. Like signSalt this is
// a fixed constant of the unofficial API.
const lyricsSignKey = "p93jhgh689SBReK6ghtw62"

// Cue is a single LRC line with its timestamp.
type Cue struct {
	Time time.Duration
	Text string
}

// Lyrics holds either time-coded (LRC) or plain lyrics.
type Lyrics struct {
	Format string // "LRC" or "TEXT"
	Raw    string
	Cues   []Cue
}

func (l *Lyrics) Synced() bool {
	return len(l.Cues) > 0
}

// Lyrics fetches time-coded lyrics when available and falls back to
// plain text. Returns ErrNoLyrics when the track has neither.
func (c *Client) Lyrics(ctx context.Context, id string) (*Lyrics, error) {
	if lyrics, err := c.syncLyrics(ctx, id); err == nil {
		return lyrics, nil
	} else {
		c.log("yamusic: sync lyrics unavailable for %s: %v", id, err)
	}
	return c.plainLyrics(ctx, id)
}

func (c *Client) syncLyrics(ctx context.Context, id string) (*Lyrics, error) {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(lyricsSignKey))
	mac.Write([]byte(id + strconv.FormatInt(ts, 10)))
	sign := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	var result struct {
		DownloadURL string `json:"downloadUrl"`
	}
	path := fmt.Sprintf("tracks/%s/lyrics?format=LRC&timeStamp=%d&sign=%s",
		url.PathEscape(id), ts, url.QueryEscape(sign))
	if err := c.do(ctx, "GET", path, &result); err != nil {
		return nil, err
	}
	if result.DownloadURL == "" {
		return nil, fmt.Errorf("%w: empty lyrics url", ErrNoLyrics)
	}
	raw, err := c.get(ctx, result.DownloadURL)
	if err != nil {
		return nil, err
	}
	cues := ParseLRC(string(raw))
	if len(cues) == 0 {
		return nil, fmt.Errorf("%w: no cues in LRC payload", ErrNoLyrics)
	}
	return &Lyrics{Format: "LRC", Raw: string(raw), Cues: cues}, nil
}

func (c *Client) plainLyrics(ctx context.Context, id string) (*Lyrics, error) {
	var result struct {
		Lyrics struct {
			FullLyrics string `json:"fullLyrics"`
		} `json:"lyrics"`
	}
	path := fmt.Sprintf("tracks/%s/supplement", url.PathEscape(id))
	if err := c.do(ctx, "GET", path, &result); err != nil {
		return nil, err
	}
	if result.Lyrics.FullLyrics == "" {
		return nil, fmt.Errorf("%w: track %s", ErrNoLyrics, id)
	}
	return &Lyrics{Format: "TEXT", Raw: result.Lyrics.FullLyrics}, nil
}

var lrcTagPattern = regexp.MustCompile(`\[(\d{1,2}):(\d{1,2})(?:\.(\d{1,3}))?]`)

// ParseLRC extracts sorted cues from an LRC document. Lines may carry
// several time tags; metadata lines without tags are skipped.
func ParseLRC(raw string) []Cue {
	var cues []Cue
	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		tags := lrcTagPattern.FindAllStringSubmatch(line, -1)
		if len(tags) == 0 {
			continue
		}
		text := strings.TrimSpace(lrcTagPattern.ReplaceAllString(line, ""))
		if text == "" {
			text = "..."
		}
		for _, tag := range tags {
			minutes, _ := strconv.Atoi(tag[1])
			seconds, _ := strconv.Atoi(tag[2])
			millis := tag[3]
			for len(millis) < 3 {
				millis += "0"
			}
			fractional, _ := strconv.Atoi(millis)
			at := time.Duration(minutes)*time.Minute +
				time.Duration(seconds)*time.Second +
				time.Duration(fractional)*time.Millisecond
			cues = append(cues, Cue{Time: at, Text: text})
		}
	}
	sort.Slice(cues, func(i, j int) bool {
		return cues[i].Time < cues[j].Time
	})
	return cues
}
