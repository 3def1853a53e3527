package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestNewUnknownType(t *testing.T) {
	if _, err := New("ftp", "", false); err == nil {
		t.Fatal("New() err = nil; want error")
	}
}

func TestNewS3InvalidConn(t *testing.T) {
	tests := []string{
		"",
		"no-auth",
		"key@bucket.region",
		"key:secret@bucketnoregion",
	}
	for _, conn := range tests {
		t.Run(conn, func(t *testing.T) {
			if _, err := New("s3", conn, false); err == nil {
				t.Fatal("New() err = nil; want error")
			}
		})
	}
}

func TestLocalRoundTrip(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "archive")
	store, err := New("local", root, false)
	if err != nil {
		t.Fatalf("New() err = %v; want nil", err)
	}

	dir := t.TempDir()
	src := filepath.Join(dir, "song_vocals.wav")
	if err := os.WriteFile(src, []byte("vocal stem"), 0644); err != nil {
		t.Fatalf("WriteFile() err = %v; want nil", err)
	}
	if err := store.SetVocals(ctx, src, "song"); err != nil {
		t.Fatalf("SetVocals() err = %v; want nil", err)
	}
	if _, err := os.Stat(filepath.Join(root, "song_vocals.wav")); err != nil {
		t.Fatalf("archived vocals missing: %v", err)
	}

	out := filepath.Join(dir, "restored.wav")
	if err := store.GetVocals(ctx, out, "song"); err != nil {
		t.Fatalf("GetVocals() err = %v; want nil", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile() err = %v; want nil", err)
	}
	if string(b) != "vocal stem" {
		t.Fatalf("restored content = %q; want %q", b, "vocal stem")
	}
}

func TestStemNames(t *testing.T) {
	if got := Vocals("song", ".wav"); got != "song_vocals.wav" {
		t.Fatalf("Vocals() = %q; want %q", got, "song_vocals.wav")
	}
	if got := Instrumental("song", ".mp3"); got != "song_instrumental.mp3" {
		t.Fatalf("Instrumental() = %q; want %q", got, "song_instrumental.mp3")
	}
}
