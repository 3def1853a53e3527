package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// BinPath is the path to the ffmpeg binary
var BinPath = "ffmpeg"

// Encode re-encodes a wav stem into mp3 at the given bitrate in kbps.
func Encode(ctx context.Context, input, output string, bitrate int) error {
	if ext := filepath.Ext(input); ext != ".wav" {
		return fmt.Errorf("ffmpeg: input file must be a wav file: %s", ext)
	}
	if ext := filepath.Ext(output); ext != ".mp3" {
		return fmt.Errorf("ffmpeg: output file must be a mp3 file: %s", ext)
	}
	if bitrate <= 0 {
		bitrate = 320
	}

	cmd := exec.CommandContext(ctx, BinPath, "-y", "-i", input, "-codec:a", "libmp3lame", "-b:a", strconv.Itoa(bitrate)+"k", "-ac", "2", output)
	data, err := cmd.CombinedOutput()
	if err != nil {
		_ = os.Remove(output)
		msg := string(data)
		return fmt.Errorf("ffmpeg: couldn't encode: %w: %s", err, msg)
	}
	return nil
}
