package yamusic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/VladimirKravtsov36/neuro-karaoke-demo/pkg/ratelimit"
)

var (
	// ErrUnavailable covers network failures and rejected tokens: the
	// catalog can't be reached with the current configuration.
	ErrUnavailable = errors.New("yamusic: catalog unavailable")

	ErrTrackNotFound = errors.New("yamusic: track not found")

	// ErrNoLyrics is non-fatal for downloads, callers degrade gracefully.
	ErrNoLyrics = errors.New("yamusic: lyrics not available")
)

const defaultBase = "https://api.music.yandex.net"

type Client struct {
	client    *http.Client
	debug     bool
	ratelimit ratelimit.Lock
	token     string
	base      string
}

type Config struct {
	// Token is the OAuth token for the unofficial API. It must be
	// provided explicitly, the client never reads the environment.
	Token  string
	Wait   time.Duration
	Debug  bool
	Client *http.Client
	// Base overrides the API endpoint, used by tests.
	Base string
}

func New(cfg *Config) (*Client, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, fmt.Errorf("yamusic: token is empty")
	}
	wait := cfg.Wait
	if wait == 0 {
		wait = 500 * time.Millisecond
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{
			Timeout: 2 * time.Minute,
		}
	}
	base := cfg.Base
	if base == "" {
		base = defaultBase
	}
	return &Client{
		client:    client,
		debug:     cfg.Debug,
		ratelimit: ratelimit.New(wait),
		token:     token,
		base:      base,
	}, nil
}

func (c *Client) log(format string, args ...interface{}) {
	if c.debug {
		format += "\n"
		log.Printf(format, args...)
	}
}

type errStatusCode int

func (e errStatusCode) Error() string {
	return fmt.Sprintf("%d", e)
}

// envelope is the response wrapper used by every JSON endpoint.
type envelope struct {
	Result json.RawMessage `json:"result"`
	Error  *apiError       `json:"error"`
}

type apiError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// do performs a single request against the API. Failures are terminal:
// there is no retry loop, a failed user action has to be re-triggered.
func (c *Client) do(ctx context.Context, method, path string, out any) error {
	u := fmt.Sprintf("%s/%s", c.base, strings.TrimPrefix(path, "/"))
	if strings.HasPrefix(path, "http") {
		u = path
	}
	c.log("yamusic: do %s %s", method, u)

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("yamusic: couldn't create request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("OAuth %s", c.token))
	req.Header.Set("Accept", "application/json")

	unlock := c.ratelimit.Lock(ctx)
	defer unlock()

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: couldn't %s %s: %v", ErrUnavailable, method, u, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("yamusic: couldn't read response body: %w", err)
	}
	c.log("yamusic: response %s %s %d", method, u, resp.StatusCode)
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: token rejected: %s", ErrUnavailable, errStatusCode(resp.StatusCode))
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s %s", ErrTrackNotFound, method, u)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		msg := string(body)
		if len(msg) > 100 {
			msg = msg[:100] + "..."
		}
		return fmt.Errorf("%w: %s %s returned (%s): %v", ErrUnavailable, method, u, msg, errStatusCode(resp.StatusCode))
	}
	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("yamusic: couldn't unmarshal response body: %w", err)
	}
	if env.Error != nil {
		if env.Error.Name == "not-found" {
			return fmt.Errorf("%w: %s", ErrTrackNotFound, env.Error.Message)
		}
		return fmt.Errorf("%w: %s: %s", ErrUnavailable, env.Error.Name, env.Error.Message)
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("yamusic: couldn't unmarshal result (%T): %w", out, err)
	}
	return nil
}

// get fetches a raw payload, used for direct links and lyric files.
func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("yamusic: couldn't create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: couldn't get %s: %v", ErrUnavailable, u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: get %s: %v", ErrUnavailable, u, errStatusCode(resp.StatusCode))
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yamusic: couldn't read %s: %w", u, err)
	}
	return b, nil
}
