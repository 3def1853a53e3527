package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New("sqlite", ":memory:", false)
	if err != nil {
		t.Fatalf("New() err = %v; want nil", err)
	}
	ctx := context.Background()
	if err := store.Start(ctx); err != nil {
		t.Fatalf("Start() err = %v; want nil", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() err = %v; want nil", err)
	}
	return store
}

func TestNewUnknownType(t *testing.T) {
	if _, err := New("oracle", "", false); err == nil {
		t.Fatal("New() err = nil; want error")
	}
}

func TestStartOpenFailure(t *testing.T) {
	// The mysql driver rejects a malformed DSN without touching the
	// network, so the open goroutine hits its error path.
	store, err := New("mysql", "not-a-dsn", false)
	if err != nil {
		t.Fatalf("New() err = %v; want nil", err)
	}
	if err := store.Start(context.Background()); err == nil {
		t.Fatal("Start() err = nil; want error")
	}
	// Let the goroutine finish; sending again after Start closed the
	// channel would crash the test binary.
	time.Sleep(50 * time.Millisecond)
}

func TestTrackRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	track := &Track{
		ID:         NewID(),
		ExternalID: "104917922",
		Title:      "Carica",
		Artist:     "Bosco",
		Album:      "Carica",
		DurationMS: 205000,
		Path:       "downloads/Carica_104917922.mp3",
	}
	if err := store.SetTrack(ctx, track); err != nil {
		t.Fatalf("SetTrack() err = %v; want nil", err)
	}

	got, err := store.GetTrack(ctx, track.ID)
	if err != nil {
		t.Fatalf("GetTrack() err = %v; want nil", err)
	}
	if got.Title != "Carica" || got.ExternalID != "104917922" {
		t.Fatalf("GetTrack() = %+v; want stored track", got)
	}

	byExternal, err := store.GetTrackByExternalID(ctx, "104917922")
	if err != nil {
		t.Fatalf("GetTrackByExternalID() err = %v; want nil", err)
	}
	if byExternal.ID != track.ID {
		t.Fatalf("GetTrackByExternalID() id = %q; want %q", byExternal.ID, track.ID)
	}

	if err := store.DeleteTrack(ctx, track.ID); err != nil {
		t.Fatalf("DeleteTrack() err = %v; want nil", err)
	}
	if _, err := store.GetTrack(ctx, track.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetTrack() err = %v; want ErrNotFound", err)
	}
}

func TestSeparationPreloadsTrack(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	track := &Track{
		ID:         NewID(),
		ExternalID: "1",
		Title:      "Carica",
		Artist:     "Bosco",
	}
	if err := store.SetTrack(ctx, track); err != nil {
		t.Fatalf("SetTrack() err = %v; want nil", err)
	}
	sep := &Separation{
		ID:               NewID(),
		TrackID:          &track.ID,
		SongPath:         "downloads/Carica_1.mp3",
		VocalsPath:       "outputs/separated/Carica_1/Carica_1_vocals.wav",
		InstrumentalPath: "outputs/separated/Carica_1/Carica_1_instrumental.wav",
		Model:            "htdemucs",
		Device:           "cpu",
		Format:           "wav",
		Elapsed:          42.5,
	}
	if err := store.SetSeparation(ctx, sep); err != nil {
		t.Fatalf("SetSeparation() err = %v; want nil", err)
	}

	got, err := store.GetSeparation(ctx, sep.ID)
	if err != nil {
		t.Fatalf("GetSeparation() err = %v; want nil", err)
	}
	if got.Track == nil || got.Track.Title != "Carica" {
		t.Fatalf("GetSeparation() track = %+v; want preloaded track", got.Track)
	}

	list, err := store.ListSeparations(ctx, 1, 10, "created_at desc", Where("model = ?", "htdemucs"))
	if err != nil {
		t.Fatalf("ListSeparations() err = %v; want nil", err)
	}
	if len(list) != 1 || list[0].ID != sep.ID {
		t.Fatalf("ListSeparations() = %+v; want the stored separation", list)
	}
	empty, err := store.ListSeparations(ctx, 1, 10, "created_at desc", Where("model = ?", "mdx_extra"))
	if err != nil {
		t.Fatalf("ListSeparations() err = %v; want nil", err)
	}
	if len(empty) != 0 {
		t.Fatalf("ListSeparations() len = %d; want 0", len(empty))
	}
}

func TestSettingRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	s := &Setting{ID: TokenSetting, Value: "y0_secret"}
	if err := store.SetSetting(ctx, s); err != nil {
		t.Fatalf("SetSetting() err = %v; want nil", err)
	}
	got, err := store.GetSetting(ctx, TokenSetting)
	if err != nil {
		t.Fatalf("GetSetting() err = %v; want nil", err)
	}
	if got.Value != "y0_secret" {
		t.Fatalf("GetSetting() value = %q; want %q", got.Value, "y0_secret")
	}

	s.Value = "updated"
	if err := store.SetSetting(ctx, s); err != nil {
		t.Fatalf("SetSetting() err = %v; want nil", err)
	}
	got, err = store.GetSetting(ctx, TokenSetting)
	if err != nil {
		t.Fatalf("GetSetting() err = %v; want nil", err)
	}
	if got.Value != "updated" {
		t.Fatalf("GetSetting() value = %q; want %q", got.Value, "updated")
	}

	if err := store.DeleteSetting(ctx, TokenSetting); err != nil {
		t.Fatalf("DeleteSetting() err = %v; want nil", err)
	}
	if _, err := store.GetSetting(ctx, TokenSetting); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetSetting() err = %v; want ErrNotFound", err)
	}
}
