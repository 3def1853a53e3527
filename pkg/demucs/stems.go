package demucs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// The tool writes <raw>/<model>/<track>/<source>.<ext>. This file is
// the only place that knows about that layout, so a tool-version change
// stays a one-place update.

// rawTrackDir locates the staging directory the tool created for the
// track. The tool may normalize the name, so fall back to a prefix scan.
func (s *Separator) rawTrackDir(name string) (string, error) {
	modelDir := filepath.Join(s.outputRoot, rawDir, s.model)
	if _, err := os.Stat(modelDir); err != nil {
		return "", fmt.Errorf("%w: model directory %s", ErrMissingOutput, modelDir)
	}
	candidate := filepath.Join(modelDir, name)
	if exists(candidate) {
		return candidate, nil
	}
	entries, err := os.ReadDir(modelDir)
	if err != nil {
		return "", fmt.Errorf("demucs: couldn't read model directory: %w", err)
	}
	var matches []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), name) {
			matches = append(matches, e.Name())
		}
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: no output for %q under %s", ErrMissingOutput, name, modelDir)
	}
	sort.Strings(matches)
	return filepath.Join(modelDir, matches[0]), nil
}

// collectStems moves the vocal and instrumental sources from the raw
// layout to their final named paths.
func (s *Separator) collectStems(trackDir, vocals, instrumental string) error {
	vocalsSource := filepath.Join(trackDir, s.twoStems+s.ext())
	if !exists(vocalsSource) {
		return fmt.Errorf("%w: %s", ErrMissingOutput, vocalsSource)
	}
	instrumentalSource, err := s.instrumentalSource(trackDir)
	if err != nil {
		return err
	}
	if err := move(vocalsSource, vocals); err != nil {
		return fmt.Errorf("demucs: couldn't move vocals stem: %w", err)
	}
	if err := move(instrumentalSource, instrumental); err != nil {
		return fmt.Errorf("demucs: couldn't move instrumental stem: %w", err)
	}
	return nil
}

// instrumentalSource finds the accompaniment stem. In two-stems mode
// the tool names it no_<stem>; older models used other conventions.
func (s *Separator) instrumentalSource(trackDir string) (string, error) {
	names := []string{"no_" + s.twoStems, "accompaniment", "instrumental", "other"}
	for _, name := range names {
		candidate := filepath.Join(trackDir, name+s.ext())
		if exists(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no instrumental stem in %s", ErrMissingOutput, trackDir)
}

// cleanup removes the staging directory of the track and the model
// directory once it is empty. Best effort.
func (s *Separator) cleanup(trackDir string) {
	_ = os.RemoveAll(trackDir)
	modelDir := filepath.Dir(trackDir)
	if entries, err := os.ReadDir(modelDir); err == nil && len(entries) == 0 {
		_ = os.Remove(modelDir)
	}
}

// move renames the file and falls back to copy+remove across devices.
func move(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return err
	}
	return os.Remove(src)
}
