package yamusic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	// TLS so that signed direct URLs, which are always https, resolve
	// back to the test server.
	server := httptest.NewTLSServer(handler)
	t.Cleanup(server.Close)
	client, err := New(&Config{
		Token:  "test-token",
		Wait:   time.Millisecond,
		Client: server.Client(),
		Base:   server.URL,
	})
	if err != nil {
		t.Fatalf("New() err = %v; want nil", err)
	}
	return client, server
}

func TestNewRequiresToken(t *testing.T) {
	if _, err := New(&Config{Token: "  "}); err == nil {
		t.Fatal("New() err = nil; want error")
	}
}

func TestSearch(t *testing.T) {
	var gotAuth, gotQuery string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query().Get("text")
		fmt.Fprint(w, `{"result":{"tracks":{"results":[
			{"id":104917922,"title":"Carica","durationMs":205000,
			 "artists":[{"name":"Bosco"}],"albums":[{"title":"Carica"}],
			 "lyricsInfo":{"hasAvailableSyncLyrics":true,"hasAvailableTextLyrics":true}},
			{"id":2,"title":"Other","durationMs":1000,"artists":[],"albums":[]}
		]}}}`)
	}))

	tracks, err := client.Search(context.Background(), "Carica", 0)
	if err != nil {
		t.Fatalf("Search() err = %v; want nil", err)
	}
	if gotAuth != "OAuth test-token" {
		t.Fatalf("Authorization = %q; want %q", gotAuth, "OAuth test-token")
	}
	if gotQuery != "Carica" {
		t.Fatalf("text = %q; want %q", gotQuery, "Carica")
	}
	if len(tracks) != 2 {
		t.Fatalf("Search() len = %d; want 2", len(tracks))
	}
	first := tracks[0]
	if first.ID != "104917922" {
		t.Fatalf("ID = %q; want %q", first.ID, "104917922")
	}
	if first.Artist() != "Bosco" {
		t.Fatalf("Artist() = %q; want %q", first.Artist(), "Bosco")
	}
	if first.Duration() != 205*time.Second {
		t.Fatalf("Duration() = %v; want %v", first.Duration(), 205*time.Second)
	}
	if !first.HasSyncLyrics {
		t.Fatal("HasSyncLyrics = false; want true")
	}
	if tracks[1].Artist() != "Unknown artist" {
		t.Fatalf("Artist() = %q; want %q", tracks[1].Artist(), "Unknown artist")
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request for empty query")
	}))
	tracks, err := client.Search(context.Background(), "   ", 10)
	if err != nil {
		t.Fatalf("Search() err = %v; want nil", err)
	}
	if tracks != nil {
		t.Fatalf("Search() = %v; want nil", tracks)
	}
}

func TestSearchLimit(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":{"tracks":{"results":[
			{"id":1,"title":"a"},{"id":2,"title":"b"},{"id":3,"title":"c"}
		]}}}`)
	}))
	tracks, err := client.Search(context.Background(), "query", 2)
	if err != nil {
		t.Fatalf("Search() err = %v; want nil", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("Search() len = %d; want 2", len(tracks))
	}
}

func TestTrackNotFound(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "http 404",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			},
		},
		{
			name: "api error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"error":{"name":"not-found","message":"no such track"}}`)
			},
		},
		{
			name: "empty result",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"result":[]}`)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, tt.handler)
			_, err := client.Track(context.Background(), "123")
			if !errors.Is(err, ErrTrackNotFound) {
				t.Fatalf("Track() err = %v; want ErrTrackNotFound", err)
			}
		})
	}
}

func TestTokenRejected(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	_, err := client.Search(context.Background(), "query", 10)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Search() err = %v; want ErrUnavailable", err)
	}
}

func TestDownload(t *testing.T) {
	// Fake mp3: an ID3 header is enough for the audio sniffer.
	payload := append([]byte("ID3"), make([]byte, 300)...)

	mux := http.NewServeMux()
	client, server := newTestClient(t, mux)
	mux.HandleFunc("/tracks/123", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":[{"id":123,"title":"Carica","durationMs":205000,
			"artists":[{"name":"Bosco"}],"albums":[{"title":"Carica"}]}]}`)
	})
	mux.HandleFunc("/tracks/123/download-info", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"result":[
			{"codec":"aac","bitrateInKbps":320,"downloadInfoUrl":"%[1]s/storage/low"},
			{"codec":"mp3","bitrateInKbps":192,"downloadInfoUrl":"%[1]s/storage/low"},
			{"codec":"mp3","bitrateInKbps":320,"downloadInfoUrl":"%[1]s/storage/high"}
		]}`, server.URL)
	})
	host := server.Listener.Addr().String()
	mux.HandleFunc("/storage/high", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<download-info><host>%s</host><path>/audio/file</path><ts>12345</ts><s>secret</s></download-info>`, host)
	})
	mux.HandleFunc("/storage/low", func(w http.ResponseWriter, r *http.Request) {
		t.Error("picked the low bitrate variant")
	})
	var gotDirect string
	mux.HandleFunc("/get-mp3/", func(w http.ResponseWriter, r *http.Request) {
		gotDirect = r.URL.Path
		_, _ = w.Write(payload)
	})

	dir := t.TempDir()
	path, track, err := client.Download(context.Background(), "123", dir)
	if err != nil {
		t.Fatalf("Download() err = %v; want nil", err)
	}
	if track.Title != "Carica" {
		t.Fatalf("Title = %q; want %q", track.Title, "Carica")
	}
	if want := filepath.Join(dir, "Carica_123.mp3"); path != want {
		t.Fatalf("path = %q; want %q", path, want)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() err = %v; want nil", err)
	}
	if len(b) != len(payload) {
		t.Fatalf("file size = %d; want %d", len(b), len(payload))
	}
	// The direct URL embeds the signature, the timestamp and the path.
	if want := "/12345/audio/file"; !strings.HasSuffix(gotDirect, want) {
		t.Fatalf("direct path = %q; want suffix %q", gotDirect, want)
	}
	if !strings.HasPrefix(gotDirect, "/get-mp3/") {
		t.Fatalf("direct path = %q; want prefix %q", gotDirect, "/get-mp3/")
	}
}

func TestDownloadRejectsNonAudio(t *testing.T) {
	mux := http.NewServeMux()
	client, server := newTestClient(t, mux)
	mux.HandleFunc("/tracks/123", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":[{"id":123,"title":"Carica"}]}`)
	})
	mux.HandleFunc("/tracks/123/download-info", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"result":[{"codec":"mp3","bitrateInKbps":320,"downloadInfoUrl":"%s/storage"}]}`, server.URL)
	})
	mux.HandleFunc("/storage", func(w http.ResponseWriter, r *http.Request) {
		host := server.Listener.Addr().String()
		fmt.Fprintf(w, `<download-info><host>%s</host><path>/audio/file</path><ts>1</ts><s>s</s></download-info>`, host)
	})
	mux.HandleFunc("/get-mp3/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>error page</html>")
	})

	dir := t.TempDir()
	_, _, err := client.Download(context.Background(), "123", dir)
	if err == nil {
		t.Fatal("Download() err = nil; want error")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() err = %v; want nil", err)
	}
	if len(entries) != 0 {
		t.Fatalf("leftover files = %d; want 0", len(entries))
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Carica", "Carica"},
		{"Districts / Quarters", "Districts_Quarters"},
		{"  spaced   out  ", "spaced_out"},
		{"///", "track"},
		{"Районы-кварталы", "Районы-кварталы"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := sanitizeFilename(tt.in); got != tt.want {
				t.Fatalf("sanitizeFilename(%q) = %q; want %q", tt.in, got, tt.want)
			}
		})
	}
}
