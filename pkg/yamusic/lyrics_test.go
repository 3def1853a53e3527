package yamusic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestParseLRC(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []Cue
	}{
		{
			name: "basic lines",
			raw:  "[00:12.00]First line\n[00:17.20]Second line",
			want: []Cue{
				{Time: 12 * time.Second, Text: "First line"},
				{Time: 17*time.Second + 200*time.Millisecond, Text: "Second line"},
			},
		},
		{
			name: "metadata lines are skipped",
			raw:  "[ar:Bosco]\n[ti:Carica]\n[00:01.00]Hello",
			want: []Cue{
				{Time: time.Second, Text: "Hello"},
			},
		},
		{
			name: "several tags on one line",
			raw:  "[00:05.00][01:05.00]Chorus",
			want: []Cue{
				{Time: 5 * time.Second, Text: "Chorus"},
				{Time: time.Minute + 5*time.Second, Text: "Chorus"},
			},
		},
		{
			name: "empty text becomes an ellipsis",
			raw:  "[00:30.00]",
			want: []Cue{
				{Time: 30 * time.Second, Text: "..."},
			},
		},
		{
			name: "short fractions are padded",
			raw:  "[00:01.5]Half\n[00:02.25]Quarter",
			want: []Cue{
				{Time: time.Second + 500*time.Millisecond, Text: "Half"},
				{Time: 2*time.Second + 250*time.Millisecond, Text: "Quarter"},
			},
		},
		{
			name: "missing fraction",
			raw:  "[01:02]No millis",
			want: []Cue{
				{Time: time.Minute + 2*time.Second, Text: "No millis"},
			},
		},
		{
			name: "cues are sorted",
			raw:  "[00:20.00]Later\n[00:10.00]Earlier",
			want: []Cue{
				{Time: 10 * time.Second, Text: "Earlier"},
				{Time: 20 * time.Second, Text: "Later"},
			},
		},
		{
			name: "windows line endings",
			raw:  "[00:01.00]One\r\n[00:02.00]Two",
			want: []Cue{
				{Time: time.Second, Text: "One"},
				{Time: 2 * time.Second, Text: "Two"},
			},
		},
		{
			name: "no tags at all",
			raw:  "Just some text\nwithout timestamps",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLRC(tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("ParseLRC() len = %d; want %d", len(got), len(tt.want))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("cue %d = %+v; want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestLyricsSynced(t *testing.T) {
	mux := http.NewServeMux()
	client, server := newTestClient(t, mux)
	var gotSign, gotTS string
	mux.HandleFunc("/tracks/123/lyrics", func(w http.ResponseWriter, r *http.Request) {
		gotSign = r.URL.Query().Get("sign")
		gotTS = r.URL.Query().Get("timeStamp")
		fmt.Fprintf(w, `{"result":{"downloadUrl":"%s/lrc"}}`, server.URL)
	})
	mux.HandleFunc("/lrc", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "[00:01.00]Hello\n[00:02.00]World")
	})

	lyrics, err := client.Lyrics(context.Background(), "123")
	if err != nil {
		t.Fatalf("Lyrics() err = %v; want nil", err)
	}
	if gotSign == "" || gotTS == "" {
		t.Fatalf("sign = %q, timeStamp = %q; want both set", gotSign, gotTS)
	}
	if lyrics.Format != "LRC" {
		t.Fatalf("Format = %q; want %q", lyrics.Format, "LRC")
	}
	if !lyrics.Synced() {
		t.Fatal("Synced() = false; want true")
	}
	if len(lyrics.Cues) != 2 || lyrics.Cues[0].Text != "Hello" {
		t.Fatalf("Cues = %+v; want 2 cues starting with Hello", lyrics.Cues)
	}
}

func TestLyricsFallsBackToPlain(t *testing.T) {
	mux := http.NewServeMux()
	client, _ := newTestClient(t, mux)
	mux.HandleFunc("/tracks/123/lyrics", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/tracks/123/supplement", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":{"lyrics":{"fullLyrics":"Hello\nWorld"}}}`)
	})

	lyrics, err := client.Lyrics(context.Background(), "123")
	if err != nil {
		t.Fatalf("Lyrics() err = %v; want nil", err)
	}
	if lyrics.Format != "TEXT" {
		t.Fatalf("Format = %q; want %q", lyrics.Format, "TEXT")
	}
	if lyrics.Synced() {
		t.Fatal("Synced() = true; want false")
	}
	if lyrics.Raw != "Hello\nWorld" {
		t.Fatalf("Raw = %q; want %q", lyrics.Raw, "Hello\nWorld")
	}
}

func TestLyricsNotAvailable(t *testing.T) {
	mux := http.NewServeMux()
	client, _ := newTestClient(t, mux)
	mux.HandleFunc("/tracks/123/lyrics", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/tracks/123/supplement", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":{"lyrics":{"fullLyrics":""}}}`)
	})

	_, err := client.Lyrics(context.Background(), "123")
	if !errors.Is(err, ErrNoLyrics) {
		t.Fatalf("Lyrics() err = %v; want ErrNoLyrics", err)
	}
}
