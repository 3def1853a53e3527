package sound

import (
	"fmt"
	"math"
)

// MaxGain bounds the vocal gain, matching the UI slider range.
const MaxGain = 1.2

// Mix sums the instrumental with the scaled vocals into a new buffer:
// out[i] = instrumental[i] + gain*vocals[i]. The inputs are untouched,
// so the mix can be recomputed with any gain. Buffers are trimmed to
// the shortest one; mono stems are upmixed to the widest channel
// count; a sample-rate mismatch is an error. When the summed peak
// exceeds 1.0 the whole mix is divided by it to avoid clipping.
func Mix(instrumental, vocals *Buffer, gain float64) (*Buffer, error) {
	if instrumental.Len() == 0 || vocals.Len() == 0 {
		return nil, fmt.Errorf("sound: empty stem buffer")
	}
	if instrumental.Rate != vocals.Rate {
		return nil, fmt.Errorf("sound: sample rates do not match: %d != %d", instrumental.Rate, vocals.Rate)
	}
	if math.IsNaN(gain) || math.IsInf(gain, 0) {
		return nil, fmt.Errorf("sound: gain is not a finite number")
	}
	if gain < 0 {
		gain = 0
	}
	if gain > MaxGain {
		gain = MaxGain
	}

	length := instrumental.Len()
	if vocals.Len() < length {
		length = vocals.Len()
	}
	channels := len(instrumental.Channels)
	if len(vocals.Channels) > channels {
		channels = len(vocals.Channels)
	}

	mixed := make([][]float64, channels)
	var peak float64
	for ch := 0; ch < channels; ch++ {
		inst := channel(instrumental, ch)
		voc := channel(vocals, ch)
		out := make([]float64, length)
		for i := 0; i < length; i++ {
			v := inst[i] + gain*voc[i]
			out[i] = v
			if a := math.Abs(v); a > peak {
				peak = a
			}
		}
		mixed[ch] = out
	}
	if peak > 1.0 {
		for _, ch := range mixed {
			for i := range ch {
				ch[i] /= peak
			}
		}
	}
	return &Buffer{Rate: instrumental.Rate, Channels: mixed}, nil
}

// channel returns the requested channel, repeating the first one when
// the buffer is narrower than the target layout.
func channel(b *Buffer, ch int) []float64 {
	if ch < len(b.Channels) {
		return b.Channels[ch]
	}
	return b.Channels[0]
}
