package sound

import (
	"bytes"
	"fmt"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Resample reduces the mono signal to min/max pairs per window, enough
// to draw a waveform.
func (b *Buffer) Resample(windowSize time.Duration) []float64 {
	samples := b.Mono()
	windowLength := int(float64(b.Rate) * windowSize.Seconds())
	if windowLength <= 0 {
		windowLength = 1
	}

	var resampled []float64
	for i := 0; i < len(samples); i += windowLength {
		end := i + windowLength
		if end > len(samples) {
			end = len(samples)
		}
		window := samples[i:end]
		var min, max float64
		for _, v := range window {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		resampled = append(resampled, min)
		resampled = append(resampled, max)
	}
	return resampled
}

// PlotWave renders the waveform as a JPEG image.
func (b *Buffer) PlotWave(name string) ([]byte, error) {
	window := 50 * time.Millisecond
	resampled := b.Resample(window)

	p := plot.New()
	p.Y.Min = -1
	p.Y.Max = 1
	p.Title.Text = fmt.Sprintf("%s %s", name, b.Duration().Round(time.Second))
	p.X.Label.Text = "time"
	p.Y.Label.Text = "amplitude"

	pts := make(plotter.XYs, len(resampled))
	for i, v := range resampled {
		pts[i].X = float64(i) * window.Seconds() * 0.5
		pts[i].Y = v
	}
	l, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("sound: couldn't create line plotter: %w", err)
	}
	l.LineStyle.Width = vg.Points(1)
	p.Add(l)

	c, err := p.WriterTo(4*vg.Inch, 2*vg.Inch, "jpeg")
	if err != nil {
		return nil, fmt.Errorf("sound: couldn't create plot: %w", err)
	}
	var buf bytes.Buffer
	if _, err := c.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("sound: couldn't write plot: %w", err)
	}
	return buf.Bytes(), nil
}
