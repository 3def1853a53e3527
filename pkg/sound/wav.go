package sound

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Minimal RIFF/WAVE codec for the stem files the separation tool
// produces: PCM int16 and IEEE float32, any channel count.

const (
	formatPCM   = 1
	formatFloat = 3

	// RIFF chunk sizes are attacker-controlled, cap the allocations.
	maxChunkSize = 1 << 30
)

// DecodeWAV decodes a wav stream into a buffer.
func DecodeWAV(r io.Reader) (*Buffer, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("sound: couldn't read wav header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, fmt.Errorf("sound: not a wav stream")
	}

	var format, channels int
	var rate int
	var bits int
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, fmt.Errorf("sound: wav stream has no data chunk")
			}
			return nil, fmt.Errorf("sound: couldn't read wav chunk: %w", err)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])
		switch id {
		case "fmt ":
			if size < 16 || size > maxChunkSize {
				return nil, fmt.Errorf("sound: invalid wav format chunk size %d", size)
			}
			fmtData := make([]byte, size)
			if _, err := io.ReadFull(r, fmtData); err != nil {
				return nil, fmt.Errorf("sound: couldn't read wav format chunk: %w", err)
			}
			format = int(binary.LittleEndian.Uint16(fmtData[0:2]))
			channels = int(binary.LittleEndian.Uint16(fmtData[2:4]))
			rate = int(binary.LittleEndian.Uint32(fmtData[4:8]))
			bits = int(binary.LittleEndian.Uint16(fmtData[14:16]))
		case "data":
			if channels == 0 || rate == 0 {
				return nil, fmt.Errorf("sound: wav data chunk before format chunk")
			}
			if size > maxChunkSize {
				return nil, fmt.Errorf("sound: invalid wav data chunk size %d", size)
			}
			data := make([]byte, size)
			if _, err := io.ReadFull(r, data); err != nil {
				return nil, fmt.Errorf("sound: couldn't read wav data chunk: %w", err)
			}
			return decodeSamples(data, format, channels, rate, bits)
		default:
			// Skip unknown chunks (LIST, fact, ...)
			if _, err := io.CopyN(io.Discard, r, int64(size)); err != nil {
				return nil, fmt.Errorf("sound: couldn't skip wav chunk %q: %w", id, err)
			}
		}
	}
}

func decodeSamples(data []byte, format, channels, rate, bits int) (*Buffer, error) {
	out := make([][]float64, channels)
	switch {
	case format == formatPCM && bits == 16:
		n := len(data) / 2 / channels
		for ch := 0; ch < channels; ch++ {
			out[ch] = make([]float64, 0, n)
		}
		for i := 0; i+2*channels <= len(data); i += 2 * channels {
			for ch := 0; ch < channels; ch++ {
				sample := int16(data[i+2*ch]) | int16(data[i+2*ch+1])<<8
				out[ch] = append(out[ch], float64(sample)/32768.0)
			}
		}
	case format == formatFloat && bits == 32:
		n := len(data) / 4 / channels
		for ch := 0; ch < channels; ch++ {
			out[ch] = make([]float64, 0, n)
		}
		for i := 0; i+4*channels <= len(data); i += 4 * channels {
			for ch := 0; ch < channels; ch++ {
				u := binary.LittleEndian.Uint32(data[i+4*ch : i+4*ch+4])
				out[ch] = append(out[ch], float64(math.Float32frombits(u)))
			}
		}
	default:
		return nil, fmt.Errorf("sound: unsupported wav encoding (format %d, %d bits)", format, bits)
	}
	return &Buffer{Rate: rate, Channels: out}, nil
}

// EncodeWAV writes the buffer as 16-bit PCM wav.
func EncodeWAV(w io.Writer, b *Buffer) error {
	channels := len(b.Channels)
	if channels == 0 || b.Len() == 0 {
		return fmt.Errorf("sound: empty buffer")
	}
	dataSize := b.Len() * channels * 2
	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataSize))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], formatPCM)
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(b.Rate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(b.Rate*channels*2))
	binary.LittleEndian.PutUint16(header[32:34], uint16(channels*2))
	binary.LittleEndian.PutUint16(header[34:36], 16)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataSize))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("sound: couldn't write wav header: %w", err)
	}

	data := make([]byte, dataSize)
	for i := 0; i < b.Len(); i++ {
		for ch := 0; ch < channels; ch++ {
			v := b.Channels[ch][i]
			if v > 1 {
				v = 1
			}
			if v < -1 {
				v = -1
			}
			sample := int16(v * 32767.0)
			off := (i*channels + ch) * 2
			binary.LittleEndian.PutUint16(data[off:off+2], uint16(sample))
		}
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("sound: couldn't write wav data: %w", err)
	}
	return nil
}
