package sound

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	mp3 "github.com/hajimehoshi/go-mp3"
)

// Buffer holds decoded PCM audio as per-channel samples normalized to
// the [-1, 1] range.
type Buffer struct {
	Rate     int
	Channels [][]float64
}

// Len returns the number of samples per channel.
func (b *Buffer) Len() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

func (b *Buffer) Duration() time.Duration {
	if b.Rate == 0 {
		return 0
	}
	return time.Duration(float64(b.Len()) / float64(b.Rate) * float64(time.Second))
}

// Mono averages all channels into one.
func (b *Buffer) Mono() []float64 {
	if len(b.Channels) == 1 {
		return b.Channels[0]
	}
	mono := make([]float64, b.Len())
	for _, ch := range b.Channels {
		for i, v := range ch {
			mono[i] += v
		}
	}
	for i := range mono {
		mono[i] /= float64(len(b.Channels))
	}
	return mono
}

// DecodeFile loads a wav or mp3 stem into a buffer, picking the decoder
// by extension.
func DecodeFile(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sound: couldn't open file: %w", err)
	}
	defer f.Close()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		return DecodeWAV(f)
	case ".mp3":
		return DecodeMP3(f)
	default:
		return nil, fmt.Errorf("sound: unsupported audio format %q", ext)
	}
}

// DecodeMP3 decodes an mp3 stream. The decoder always produces 16-bit
// stereo samples, little endian.
func DecodeMP3(r io.Reader) (*Buffer, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("sound: couldn't decode mp3: %w", err)
	}
	channels := [][]float64{nil, nil}
	buf := make([]byte, 4) // one stereo frame, 2 bytes per sample
	for {
		_, err := io.ReadFull(decoder, buf)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("sound: couldn't read sample: %w", err)
		}
		left := int16(buf[0]) | int16(buf[1])<<8
		right := int16(buf[2]) | int16(buf[3])<<8
		channels[0] = append(channels[0], float64(left)/32768.0)
		channels[1] = append(channels[1], float64(right)/32768.0)
	}
	return &Buffer{
		Rate:     decoder.SampleRate(),
		Channels: channels,
	}, nil
}
