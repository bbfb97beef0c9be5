package audio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/wav"
)

// Clip is a decoded sound held in memory so it can be replayed.
type Clip struct {
	Name   string
	buf    *beep.Buffer
	format beep.Format
}

// NewClip buffers s completely.
func NewClip(name string, format beep.Format, s beep.Streamer) *Clip {
	buf := beep.NewBuffer(format)
	buf.Append(s)
	return &Clip{Name: name, buf: buf, format: format}
}

// LoadClip decodes an .mp3 or .wav file.
func LoadClip(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open clip: %w", err)
	}

	var (
		s      beep.StreamSeekCloser
		format beep.Format
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		s, format, err = mp3.Decode(f)
	case ".wav":
		s, format, err = wav.Decode(f)
	default:
		f.Close()
		return nil, fmt.Errorf("clip %s: unsupported format %q", path, ext)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decode clip %s: %w", path, err)
	}
	defer s.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	clip := NewClip(name, format, s)
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("decode clip %s: %w", path, err)
	}
	return clip, nil
}

// Len returns the clip length in samples at its own rate.
func (c *Clip) Len() int {
	return c.buf.Len()
}

// Duration returns the playing time.
func (c *Clip) Duration() time.Duration {
	return c.format.SampleRate.D(c.buf.Len())
}

// SampleRate returns the rate the clip was decoded at.
func (c *Clip) SampleRate() beep.SampleRate {
	return c.format.SampleRate
}

// streamer returns a fresh reader over the clip at the given rate.
func (c *Clip) streamer(rate beep.SampleRate) beep.Streamer {
	s := c.buf.Streamer(0, c.buf.Len())
	if c.format.SampleRate == rate {
		return s
	}
	return beep.Resample(4, c.format.SampleRate, rate, s)
}

// Tone builds a sine clip, used for the startup chime and in tests.
func Tone(name string, freq float64, d time.Duration, rate beep.SampleRate) *Clip {
	format := beep.Format{SampleRate: rate, NumChannels: 2, Precision: 2}
	pos := 0
	gen := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		for i := range samples {
			v := 0.2 * math.Sin(2*math.Pi*freq*float64(pos)/float64(rate))
			samples[i][0], samples[i][1] = v, v
			pos++
		}
		return len(samples), true
	})
	return NewClip(name, format, beep.Take(rate.N(d), gen))
}
