package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	iofs "io/fs"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/browser"

	"github.com/VladimirKravtsov36/neuro-karaoke-demo/pkg/demucs"
	"github.com/VladimirKravtsov36/neuro-karaoke-demo/pkg/sound"
	"github.com/VladimirKravtsov36/neuro-karaoke-demo/pkg/storage"
	"github.com/VladimirKravtsov36/neuro-karaoke-demo/pkg/yamusic"
)

type Config struct {
	Debug  bool
	Token  string
	DBType string
	DBConn string

	Addr        string
	Open        bool
	Credentials map[string]string
	Volumes     map[string]string

	Downloads string
	Output    string
	Bin       string
	Model     string
	Device    string
	Segment   float64
	Shifts    int
	Jobs      int
	MP3       bool
	Bitrate   int
}

//go:embed static/*
var staticContent embed.FS

// session holds the track currently loaded in the player.
type session struct {
	mu     sync.Mutex
	client *yamusic.Client
	track  *yamusic.Track
	lyrics *yamusic.Lyrics
	result *demucs.Result
}

// Serve starts the karaoke web service.
func Serve(ctx context.Context, cfg *Config) error {
	log.Println("web: server started")
	defer log.Println("web: server ended")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	downloads := cfg.Downloads
	if downloads == "" {
		downloads = "downloads"
	}
	if err := os.MkdirAll(downloads, 0755); err != nil {
		return fmt.Errorf("web: couldn't create downloads directory: %w", err)
	}

	var store *storage.Store
	if cfg.DBType != "" {
		var err error
		store, err = storage.New(cfg.DBType, cfg.DBConn, cfg.Debug)
		if err != nil {
			return fmt.Errorf("web: couldn't create orm store: %w", err)
		}
		if err := store.Start(ctx); err != nil {
			return fmt.Errorf("web: couldn't start orm store: %w", err)
		}
	}

	separator, err := demucs.New(&demucs.Config{
		Bin:        cfg.Bin,
		OutputRoot: cfg.Output,
		Model:      cfg.Model,
		Device:     cfg.Device,
		Segment:    cfg.Segment,
		Shifts:     cfg.Shifts,
		Jobs:       cfg.Jobs,
		MP3:        cfg.MP3,
		MP3Bitrate: cfg.Bitrate,
		Debug:      cfg.Debug,
	})
	if err != nil {
		return fmt.Errorf("web: couldn't create separator: %w", err)
	}

	sess := &session{}

	// The token can come from the flag, the database or the UI.
	token := cfg.Token
	if token == "" && store != nil {
		if s, err := store.GetSetting(ctx, storage.TokenSetting); err == nil {
			token = s.Value
		}
	}
	if token != "" {
		client, err := yamusic.New(&yamusic.Config{Token: token, Debug: cfg.Debug})
		if err != nil {
			return fmt.Errorf("web: couldn't create catalog client: %w", err)
		}
		sess.client = client
	}

	// Create static content
	staticFS, err := iofs.Sub(staticContent, "static")
	if err != nil {
		return fmt.Errorf("web: couldn't load static content: %w", err)
	}

	// Create router
	mux := chi.NewRouter()

	// Add middleware. Separation runs inside the prepare request and can
	// take minutes, so the timeout is generous.
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.Timeout(30 * time.Minute))

	// Add BasicAuth middleware
	if len(cfg.Credentials) > 0 {
		mux.Use(middleware.BasicAuth("private", cfg.Credentials))
	}

	// Create subrouter for api endpoints
	r := mux.Group(func(r chi.Router) {
		if cfg.Debug {
			r.Use(middleware.Logger)
		}
	})

	// Create server
	split := strings.Split(cfg.Addr, ":")
	if len(split) != 2 {
		return fmt.Errorf("web: invalid address: %s", cfg.Addr)
	}
	host := split[0]
	port, err := strconv.Atoi(split[1])
	if err != nil {
		return fmt.Errorf("web: invalid port: %s", split[1])
	}
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: mux,
	}
	go func() {
		note := fmt.Sprintf("http://%s:%d", host, port)
		if host == "" {
			note = fmt.Sprintf("all interfaces http://localhost:%d", port)
		}
		log.Printf("Starting server on %s", note)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v\n", err)
			cancel()
		}
	}()

	if cfg.Open {
		u := fmt.Sprintf("http://localhost:%d", port)
		if err := browser.OpenURL(u); err != nil {
			log.Println("couldn't open browser:", err)
		}
	}

	// Handler to serve the static files
	mux.Get("/*", http.StripPrefix("/", http.FileServer(http.FS(staticFS))).ServeHTTP)

	// Handler to serve static files defined via volumes
	if len(cfg.Volumes) > 0 {
		for local, path := range cfg.Volumes {
			path = strings.Trim(path, "/")
			path = fmt.Sprintf("/%s/", path)
			mux.Get(path+"*", http.StripPrefix(path, http.FileServer(http.Dir(local))).ServeHTTP)
		}
	}

	r.Post("/api/token", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("couldn't decode request: %v", err), http.StatusBadRequest)
			return
		}
		client, err := yamusic.New(&yamusic.Config{Token: req.Token, Debug: cfg.Debug})
		if err != nil {
			http.Error(w, fmt.Sprintf("couldn't create catalog client: %v", err), http.StatusBadRequest)
			return
		}
		sess.mu.Lock()
		sess.client = client
		sess.mu.Unlock()
		if store != nil {
			s := storage.Setting{ID: storage.TokenSetting, Value: req.Token}
			if err := store.SetSetting(r.Context(), &s); err != nil {
				log.Println("couldn't save token:", err)
			}
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/api/search", func(w http.ResponseWriter, r *http.Request) {
		client := sess.catalog()
		if client == nil {
			http.Error(w, "catalog token not set", http.StatusUnauthorized)
			return
		}
		query := r.URL.Query().Get("q")
		limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
		if err != nil {
			limit = 10
		}
		tracks, err := client.Search(r.Context(), query, limit)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, yamusic.ErrUnavailable) {
				status = http.StatusBadGateway
			}
			http.Error(w, fmt.Sprintf("couldn't search tracks: %v", err), status)
			return
		}
		views := make([]*trackView, 0, len(tracks))
		for _, t := range tracks {
			views = append(views, newTrackView(t))
		}
		writeJSON(w, views)
	})

	r.Post("/api/tracks/{id}/prepare", func(w http.ResponseWriter, r *http.Request) {
		client := sess.catalog()
		if client == nil {
			http.Error(w, "catalog token not set", http.StatusUnauthorized)
			return
		}
		id := chi.URLParam(r, "id")
		overwrite := r.URL.Query().Get("overwrite") == "true"

		start := time.Now()
		path, track, lyrics, err := client.DownloadWithLyrics(r.Context(), id, downloads)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, yamusic.ErrTrackNotFound) {
				status = http.StatusNotFound
			}
			http.Error(w, fmt.Sprintf("couldn't download track: %v", err), status)
			return
		}
		result, err := separator.Separate(r.Context(), path, overwrite)
		if err != nil {
			http.Error(w, fmt.Sprintf("couldn't separate track: %v", err), http.StatusInternalServerError)
			return
		}
		elapsed := time.Since(start)

		sess.mu.Lock()
		sess.track = track
		sess.lyrics = lyrics
		sess.result = result
		sess.mu.Unlock()

		if store != nil {
			if err := saveHistory(r.Context(), store, track, lyrics, path, result, elapsed); err != nil {
				log.Println("couldn't save history:", err)
			}
		}
		writeJSON(w, newSessionView(track, lyrics, result))
	})

	r.Get("/api/session", func(w http.ResponseWriter, r *http.Request) {
		sess.mu.Lock()
		track, lyrics, result := sess.track, sess.lyrics, sess.result
		hasToken := sess.client != nil
		sess.mu.Unlock()
		if track == nil || result == nil {
			writeJSON(w, map[string]bool{"ready": false, "hasToken": hasToken})
			return
		}
		v := newSessionView(track, lyrics, result)
		v.HasToken = hasToken
		writeJSON(w, v)
	})

	r.Get("/api/stems/{kind}", func(w http.ResponseWriter, r *http.Request) {
		result := sess.separation()
		if result == nil {
			http.Error(w, "no track prepared", http.StatusNotFound)
			return
		}
		path, err := stemPath(result, chi.URLParam(r, "kind"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.ServeFile(w, r, path)
	})

	r.Get("/api/wave/{kind}", func(w http.ResponseWriter, r *http.Request) {
		result := sess.separation()
		if result == nil {
			http.Error(w, "no track prepared", http.StatusNotFound)
			return
		}
		path, err := stemPath(result, chi.URLParam(r, "kind"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		buf, err := sound.DecodeFile(path)
		if err != nil {
			http.Error(w, fmt.Sprintf("couldn't decode stem: %v", err), http.StatusInternalServerError)
			return
		}
		img, err := buf.PlotWave(chi.URLParam(r, "kind"))
		if err != nil {
			http.Error(w, fmt.Sprintf("couldn't plot wave: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(img)
	})

	r.Get("/api/mix", func(w http.ResponseWriter, r *http.Request) {
		result := sess.separation()
		if result == nil {
			http.Error(w, "no track prepared", http.StatusNotFound)
			return
		}
		gain := 1.0
		if v := r.URL.Query().Get("gain"); v != "" {
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil {
				http.Error(w, fmt.Sprintf("invalid gain: %s", v), http.StatusBadRequest)
				return
			}
			gain = parsed
		}
		instrumental, err := sound.DecodeFile(result.InstrumentalPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("couldn't decode instrumental: %v", err), http.StatusInternalServerError)
			return
		}
		vocals, err := sound.DecodeFile(result.VocalsPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("couldn't decode vocals: %v", err), http.StatusInternalServerError)
			return
		}
		mixed, err := sound.Mix(instrumental, vocals, gain)
		if err != nil {
			http.Error(w, fmt.Sprintf("couldn't mix stems: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Header().Set("Content-Disposition", `attachment; filename="karaoke.wav"`)
		if err := sound.EncodeWAV(w, mixed); err != nil {
			log.Println("couldn't encode wav:", err)
		}
	})

	r.Get("/api/history", func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			writeJSON(w, []*historyView{})
			return
		}
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil {
			page = 1
		}
		size, err := strconv.Atoi(r.URL.Query().Get("size"))
		if err != nil {
			size = 100
		}
		separations, err := store.ListSeparations(r.Context(), page, size, "created_at desc")
		if err != nil {
			http.Error(w, fmt.Sprintf("couldn't list separations: %v", err), http.StatusInternalServerError)
			return
		}
		views := make([]*historyView, 0, len(separations))
		for _, s := range separations {
			v := &historyView{
				ID:        s.ID,
				CreatedAt: s.CreatedAt,
				Song:      s.SongPath,
				Model:     s.Model,
				Elapsed:   s.Elapsed,
			}
			if s.Track != nil {
				v.Title = s.Track.Title
				v.Artist = s.Track.Artist
			}
			views = append(views, v)
		}
		writeJSON(w, views)
	})

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

func (s *session) catalog() *yamusic.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

func (s *session) separation() *demucs.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

func stemPath(result *demucs.Result, kind string) (string, error) {
	switch kind {
	case "vocals":
		return result.VocalsPath, nil
	case "instrumental":
		return result.InstrumentalPath, nil
	default:
		return "", fmt.Errorf("unknown stem kind: %s", kind)
	}
}

func saveHistory(ctx context.Context, store *storage.Store, track *yamusic.Track, lyrics *yamusic.Lyrics, path string, result *demucs.Result, elapsed time.Duration) error {
	dbTrack := &storage.Track{
		ID:         storage.NewID(),
		ExternalID: track.ID,
		Title:      track.Title,
		Artist:     track.Artist(),
		Album:      track.Album,
		DurationMS: track.DurationMS,
		Path:       path,
	}
	if prev, err := store.GetTrackByExternalID(ctx, track.ID); err == nil {
		dbTrack.ID = prev.ID
	}
	if lyrics != nil {
		dbTrack.LyricsFormat = lyrics.Format
		dbTrack.Lyrics = lyrics.Raw
	}
	if err := store.SetTrack(ctx, dbTrack); err != nil {
		return err
	}
	sep := &storage.Separation{
		ID:               storage.NewID(),
		TrackID:          &dbTrack.ID,
		SongPath:         result.SongPath,
		VocalsPath:       result.VocalsPath,
		InstrumentalPath: result.InstrumentalPath,
		OutputDir:        result.OutputDir,
		Model:            result.Model,
		Device:           result.Device,
		Format:           strings.TrimPrefix(ext(result.VocalsPath), "."),
		Elapsed:          elapsed.Seconds(),
	}
	return store.SetSeparation(ctx, sep)
}

func ext(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[i:]
	}
	return ""
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Println("couldn't encode response:", err)
	}
}

type trackView struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Artist        string `json:"artist"`
	Album         string `json:"album"`
	Duration      string `json:"duration"`
	CoverURL      string `json:"coverUrl,omitempty"`
	HasSyncLyrics bool   `json:"hasSyncLyrics"`
	HasTextLyrics bool   `json:"hasTextLyrics"`
}

func newTrackView(t *yamusic.Track) *trackView {
	return &trackView{
		ID:            t.ID,
		Title:         t.Title,
		Artist:        t.Artist(),
		Album:         t.Album,
		Duration:      t.Duration().String(),
		CoverURL:      t.CoverURL(),
		HasSyncLyrics: t.HasSyncLyrics,
		HasTextLyrics: t.HasTextLyrics,
	}
}

type cueView struct {
	Time float64 `json:"time"`
	Text string  `json:"text"`
}

type sessionView struct {
	Ready           bool       `json:"ready"`
	HasToken        bool       `json:"hasToken"`
	Track           *trackView `json:"track"`
	LyricsFormat    string     `json:"lyricsFormat,omitempty"`
	PlainLyrics     string     `json:"plainLyrics,omitempty"`
	Cues            []*cueView `json:"cues,omitempty"`
	Model           string     `json:"model"`
	VocalsURL       string     `json:"vocalsUrl"`
	InstrumentalURL string     `json:"instrumentalUrl"`
}

func newSessionView(track *yamusic.Track, lyrics *yamusic.Lyrics, result *demucs.Result) *sessionView {
	v := &sessionView{
		Ready:           true,
		HasToken:        true,
		Track:           newTrackView(track),
		Model:           result.Model,
		VocalsURL:       "/api/stems/vocals",
		InstrumentalURL: "/api/stems/instrumental",
	}
	if lyrics == nil {
		return v
	}
	v.LyricsFormat = lyrics.Format
	if lyrics.Synced() {
		for _, c := range lyrics.Cues {
			v.Cues = append(v.Cues, &cueView{
				Time: c.Time.Seconds(),
				Text: c.Text,
			})
		}
	} else {
		v.PlainLyrics = lyrics.Raw
	}
	return v
}

type historyView struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Title     string    `json:"title"`
	Artist    string    `json:"artist"`
	Song      string    `json:"song"`
	Model     string    `json:"model"`
	Elapsed   float64   `json:"elapsed"`
}
