package demucs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/h2non/filetype"
)

var (
	// ErrSegmentTooLong is returned before the subprocess is spawned:
	// the hybrid transformer models abort on segments above the ceiling.
	ErrSegmentTooLong = errors.New("demucs: segment too long for this model")

	ErrMissingOutput = errors.New("demucs: expected output missing")
)

// htdemucsMaxSegment is the hard ceiling of the hybrid transformer
// family (htdemucs, htdemucs_ft, htdemucs_6s), in seconds.
const htdemucsMaxSegment = 7.8

// rawDir is the staging directory where the tool writes its own layout
// before stems are collected into the final one.
const rawDir = "_demucs_raw"

type Config struct {
	// Bin is the separation tool binary, "demucs" by default.
	Bin string
	// OutputRoot is where final stems are written, "outputs/separated"
	// by default.
	OutputRoot string
	Model      string
	Device     string
	// TwoStems collapses all sources into <stem> and no_<stem>,
	// "vocals" by default.
	TwoStems string
	// Segment is the chunking window in seconds, zero selects a model
	// family default.
	Segment float64
	Shifts  int
	Jobs    int
	MP3     bool
	// MP3Bitrate in kbps, 320 by default.
	MP3Bitrate int
	Float32    bool
	// KeepIntermediate leaves the raw tool layout on disk after the
	// stems have been collected.
	KeepIntermediate bool
	// DisableCUDACache skips setting PYTORCH_NO_CUDA_MEMORY_CACHING.
	DisableCUDACache bool
	Debug            bool
}

type Separator struct {
	bin              string
	outputRoot       string
	model            string
	device           string
	twoStems         string
	segment          float64
	shifts           int
	jobs             int
	mp3              bool
	mp3Bitrate       int
	float32          bool
	keepIntermediate bool
	cudaCache        bool
	debug            bool
}

// Result names the two stems produced for a track. Immutable after
// creation; the paths are plain files owned by the caller.
type Result struct {
	SongPath         string
	VocalsPath       string
	InstrumentalPath string
	OutputDir        string
	Model            string
	Device           string
}

func New(cfg *Config) (*Separator, error) {
	bin := cfg.Bin
	if bin == "" {
		bin = "demucs"
	}
	root := cfg.OutputRoot
	if root == "" {
		root = filepath.Join("outputs", "separated")
	}
	model := cfg.Model
	if model == "" {
		model = "htdemucs"
	}
	twoStems := cfg.TwoStems
	if twoStems == "" {
		twoStems = "vocals"
	}
	segment := cfg.Segment
	if segment == 0 {
		// Family defaults from the tool documentation.
		if htdemucsFamily(model) {
			segment = 7
		} else {
			segment = 10
		}
	}
	if htdemucsFamily(model) && segment > htdemucsMaxSegment {
		return nil, fmt.Errorf("%w: %s supports at most %.1f seconds, got %.1f (use --segment %.1f or lower)",
			ErrSegmentTooLong, model, htdemucsMaxSegment, segment, htdemucsMaxSegment)
	}
	bitrate := cfg.MP3Bitrate
	if bitrate == 0 {
		bitrate = 320
	}
	return &Separator{
		bin:              bin,
		outputRoot:       root,
		model:            model,
		device:           cfg.Device,
		twoStems:         twoStems,
		segment:          segment,
		shifts:           cfg.Shifts,
		jobs:             cfg.Jobs,
		mp3:              cfg.MP3,
		mp3Bitrate:       bitrate,
		float32:          cfg.Float32,
		keepIntermediate: cfg.KeepIntermediate,
		cudaCache:        !cfg.DisableCUDACache,
		debug:            cfg.Debug,
	}, nil
}

func htdemucsFamily(model string) bool {
	return strings.HasPrefix(model, "htdemucs")
}

func (s *Separator) Model() string {
	return s.model
}

func (s *Separator) OutputRoot() string {
	return s.outputRoot
}

func (s *Separator) ext() string {
	if s.mp3 {
		return ".mp3"
	}
	return ".wav"
}

// Separate splits songPath into vocal and instrumental stems. When the
// target stems already exist and overwrite is false the existing paths
// are returned without spawning the external process.
func (s *Separator) Separate(ctx context.Context, songPath string, overwrite bool) (*Result, error) {
	input, err := filepath.Abs(songPath)
	if err != nil {
		return nil, fmt.Errorf("demucs: invalid song path %q: %w", songPath, err)
	}
	if err := checkInput(input); err != nil {
		return nil, err
	}

	name := stemName(input)
	targetDir := filepath.Join(s.outputRoot, name)
	vocals := filepath.Join(targetDir, name+"_vocals"+s.ext())
	instrumental := filepath.Join(targetDir, name+"_instrumental"+s.ext())

	// Idempotent by filesystem presence.
	if !overwrite && exists(vocals) && exists(instrumental) {
		if s.debug {
			log.Printf("demucs: stems for %s already exist, skipping separation\n", name)
		}
		return &Result{
			SongPath:         input,
			VocalsPath:       vocals,
			InstrumentalPath: instrumental,
			OutputDir:        targetDir,
			Model:            s.model,
			Device:           s.device,
		}, nil
	}
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return nil, fmt.Errorf("demucs: couldn't create output directory: %w", err)
	}

	if err := s.run(ctx, input); err != nil {
		return nil, err
	}

	trackDir, err := s.rawTrackDir(name)
	if err != nil {
		return nil, err
	}
	if err := s.collectStems(trackDir, vocals, instrumental); err != nil {
		return nil, err
	}
	if !s.keepIntermediate {
		s.cleanup(trackDir)
	}
	return &Result{
		SongPath:         input,
		VocalsPath:       vocals,
		InstrumentalPath: instrumental,
		OutputDir:        targetDir,
		Model:            s.model,
		Device:           s.device,
	}, nil
}

func (s *Separator) run(ctx context.Context, input string) error {
	args := []string{
		"--two-stems", s.twoStems,
		"-n", s.model,
		"--out", filepath.Join(s.outputRoot, rawDir),
	}
	if s.device != "" {
		args = append(args, "-d", s.device)
	}
	if s.segment > 0 {
		args = append(args, "--segment", strconv.FormatFloat(s.segment, 'f', -1, 64))
	}
	if s.shifts > 1 {
		args = append(args, "--shifts", strconv.Itoa(s.shifts))
	}
	if s.jobs > 1 {
		args = append(args, "-j", strconv.Itoa(s.jobs))
	}
	if s.mp3 {
		args = append(args, "--mp3", "--mp3-bitrate", strconv.Itoa(s.mp3Bitrate))
	}
	if s.float32 {
		args = append(args, "--float32")
	}
	args = append(args, input)

	cmd := exec.CommandContext(ctx, s.bin, args...)
	cmd.Env = os.Environ()
	if s.cudaCache {
		// Keeps VRAM usage in check on consumer GPUs.
		cmd.Env = append(cmd.Env, "PYTORCH_NO_CUDA_MEMORY_CACHING=1")
	}
	if s.debug {
		log.Printf("demucs: running %s %s\n", s.bin, strings.Join(args, " "))
	}
	data, err := cmd.CombinedOutput()
	if err != nil {
		msg := string(data)
		return fmt.Errorf("demucs: couldn't separate: %w: %s", err, msg)
	}
	return nil
}

// checkInput rejects missing or non-audio inputs before any subprocess
// is spawned.
func checkInput(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("demucs: song not found: %s", path)
		}
		return fmt.Errorf("demucs: couldn't open song: %w", err)
	}
	defer f.Close()
	head := make([]byte, 261)
	n, err := io.ReadFull(f, head)
	if err != nil && n == 0 {
		return fmt.Errorf("demucs: couldn't read song %s: %w", path, err)
	}
	if !filetype.IsAudio(head[:n]) {
		return fmt.Errorf("demucs: %s is not a valid audio file", path)
	}
	return nil
}

func stemName(input string) string {
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
