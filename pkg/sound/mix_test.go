package sound

import (
	"math"
	"testing"
)

func buffer(rate int, channels ...[]float64) *Buffer {
	return &Buffer{Rate: rate, Channels: channels}
}

func TestMix(t *testing.T) {
	instrumental := buffer(44100,
		[]float64{0.1, 0.2, 0.3},
		[]float64{-0.1, -0.2, -0.3},
	)
	vocals := buffer(44100,
		[]float64{0.2, 0.2, 0.2},
		[]float64{0.2, 0.2, 0.2},
	)

	tests := []struct {
		name string
		gain float64
		want [][]float64
	}{
		{
			name: "muted vocals reproduce the instrumental",
			gain: 0,
			want: [][]float64{
				{0.1, 0.2, 0.3},
				{-0.1, -0.2, -0.3},
			},
		},
		{
			name: "unity gain sums the stems",
			gain: 1,
			want: [][]float64{
				{0.3, 0.4, 0.5},
				{0.1, 0.0, -0.1},
			},
		},
		{
			name: "half gain scales the vocals",
			gain: 0.5,
			want: [][]float64{
				{0.2, 0.3, 0.4},
				{0.0, -0.1, -0.2},
			},
		},
		{
			name: "negative gain is clamped to zero",
			gain: -1,
			want: [][]float64{
				{0.1, 0.2, 0.3},
				{-0.1, -0.2, -0.3},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Mix(instrumental, vocals, tt.gain)
			if err != nil {
				t.Fatalf("Mix() err = %v; want nil", err)
			}
			assertSamples(t, got, tt.want)
			if got.Rate != 44100 {
				t.Fatalf("Mix() rate = %d; want 44100", got.Rate)
			}
		})
	}
}

func TestMixNormalizesPeak(t *testing.T) {
	instrumental := buffer(44100, []float64{0.8, 0.4})
	vocals := buffer(44100, []float64{0.8, 0.4})

	got, err := Mix(instrumental, vocals, 1)
	if err != nil {
		t.Fatalf("Mix() err = %v; want nil", err)
	}
	// Peak of 1.6 divides the whole mix back to 1.0.
	assertSamples(t, got, [][]float64{{1.0, 0.5}})
}

func TestMixGainClampedToMax(t *testing.T) {
	instrumental := buffer(44100, []float64{0.0})
	vocals := buffer(44100, []float64{0.5})

	got, err := Mix(instrumental, vocals, 100)
	if err != nil {
		t.Fatalf("Mix() err = %v; want nil", err)
	}
	assertSamples(t, got, [][]float64{{0.5 * MaxGain}})
}

func TestMixTrimsToShortest(t *testing.T) {
	instrumental := buffer(44100, []float64{0.1, 0.1, 0.1, 0.1})
	vocals := buffer(44100, []float64{0.1, 0.1})

	got, err := Mix(instrumental, vocals, 1)
	if err != nil {
		t.Fatalf("Mix() err = %v; want nil", err)
	}
	if got.Len() != 2 {
		t.Fatalf("Mix() len = %d; want 2", got.Len())
	}
}

func TestMixUpmixesMono(t *testing.T) {
	instrumental := buffer(44100,
		[]float64{0.1, 0.2},
		[]float64{0.3, 0.4},
	)
	vocals := buffer(44100, []float64{0.1, 0.1})

	got, err := Mix(instrumental, vocals, 1)
	if err != nil {
		t.Fatalf("Mix() err = %v; want nil", err)
	}
	assertSamples(t, got, [][]float64{
		{0.2, 0.3},
		{0.4, 0.5},
	})
}

func TestMixErrors(t *testing.T) {
	tests := []struct {
		name         string
		instrumental *Buffer
		vocals       *Buffer
	}{
		{
			name:         "empty instrumental",
			instrumental: buffer(44100),
			vocals:       buffer(44100, []float64{0.1}),
		},
		{
			name:         "rate mismatch",
			instrumental: buffer(44100, []float64{0.1}),
			vocals:       buffer(48000, []float64{0.1}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Mix(tt.instrumental, tt.vocals, 1); err == nil {
				t.Fatal("Mix() err = nil; want error")
			}
		})
	}
}

func TestMixRejectsNonFiniteGain(t *testing.T) {
	for _, gain := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := Mix(buffer(44100, []float64{0.1}), buffer(44100, []float64{0.1}), gain); err == nil {
			t.Fatalf("Mix(gain=%v) err = nil; want error", gain)
		}
	}
}

func assertSamples(t *testing.T, got *Buffer, want [][]float64) {
	t.Helper()
	if len(got.Channels) != len(want) {
		t.Fatalf("channels = %d; want %d", len(got.Channels), len(want))
	}
	for ch := range want {
		if len(got.Channels[ch]) != len(want[ch]) {
			t.Fatalf("channel %d len = %d; want %d", ch, len(got.Channels[ch]), len(want[ch]))
		}
		for i := range want[ch] {
			if math.Abs(got.Channels[ch][i]-want[ch][i]) > 1e-9 {
				t.Fatalf("channel %d sample %d = %v; want %v", ch, i, got.Channels[ch][i], want[ch][i])
			}
		}
	}
}
