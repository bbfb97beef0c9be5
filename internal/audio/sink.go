// Package audio plays soundboard clips through a single output sink.
package audio

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Sink is an audio output with one shared volume and a queue of clips.
type Sink interface {
	// Volume returns the linear gain, 0 is silent and 1 is unchanged.
	Volume() float64
	SetVolume(v float64)

	// Play appends c to the queue and resumes output.
	Play(c *Clip) error

	Pause()
	Resume()
	Paused() bool

	// Clear drops every queued clip and pauses output.
	Clear()

	// Empty reports whether nothing is queued or playing.
	Empty() bool

	Close() error
}

// DefaultDevice is the only output device name the speaker backend accepts.
const DefaultDevice = "default"

// ErrClosed is returned by Play after Close.
var ErrClosed = errors.New("audio sink closed")

// OutputDevices lists the output device names NewBeepSink accepts.
func OutputDevices() []string {
	return []string{DefaultDevice}
}

// DeviceError reports an output device that could not be found.
type DeviceError struct {
	Name      string
	Available []string
}

func (e *DeviceError) Error() string {
	msg := fmt.Sprintf("the device %q could not be found", e.Name)
	if len(e.Available) > 0 {
		msg += fmt.Sprintf(" (available: %s; see comboboard devices)", strings.Join(e.Available, ", "))
	}
	return msg
}

// ClampVolume limits v to [0, hi]. NaN becomes 0.
func ClampVolume(v, hi float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > hi {
		return hi
	}
	return v
}
