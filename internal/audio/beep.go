package audio

import (
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/speaker"
)

// Config configures the speaker-backed sink.
type Config struct {
	// Device must be empty or "default"; the speaker always opens the
	// system default output.
	Device     string
	SampleRate int
	Buffer     time.Duration
	Volume     float64
	MaxVolume  float64
}

// DefaultConfig returns the sink defaults.
func DefaultConfig() Config {
	return Config{
		Device:     DefaultDevice,
		SampleRate: 44100,
		Buffer:     100 * time.Millisecond,
		Volume:     1,
		MaxVolume:  2,
	}
}

// chain is the streamer graph played by the speaker:
// volume -> ctrl (pause) -> mixer (queue).
type chain struct {
	rate   beep.SampleRate
	mixer  *beep.Mixer
	ctrl   *beep.Ctrl
	volume *effects.Volume
}

func newChain(rate beep.SampleRate) *chain {
	mixer := &beep.Mixer{}
	ctrl := &beep.Ctrl{Streamer: mixer}
	return &chain{
		rate:   rate,
		mixer:  mixer,
		ctrl:   ctrl,
		volume: &effects.Volume{Streamer: ctrl, Base: 2},
	}
}

// setGain maps a linear gain onto the exponential volume effect.
func (c *chain) setGain(g float64) {
	if g <= 0 {
		c.volume.Volume = 0
		c.volume.Silent = true
		return
	}
	c.volume.Volume = math.Log2(g)
	c.volume.Silent = false
}

// BeepSink plays clips on the default output device. All changes to the
// streamer graph happen under the speaker lock.
type BeepSink struct {
	mu     sync.Mutex
	chain  *chain
	gain   float64
	max    float64
	closed bool

	lock   func()
	unlock func()
	close  func()
}

// NewBeepSink initializes the speaker and starts playing the sink's
// mixer. The speaker can be initialized once per process.
func NewBeepSink(cfg Config) (*BeepSink, error) {
	if cfg.Device != "" && cfg.Device != DefaultDevice {
		return nil, &DeviceError{Name: cfg.Device, Available: OutputDevices()}
	}
	def := DefaultConfig()
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = def.Buffer
	}
	if cfg.MaxVolume <= 0 {
		cfg.MaxVolume = def.MaxVolume
	}

	rate := beep.SampleRate(cfg.SampleRate)
	if err := speaker.Init(rate, rate.N(cfg.Buffer)); err != nil {
		return nil, err
	}

	s := newBeepSink(newChain(rate), cfg.Volume, cfg.MaxVolume, speaker.Lock, speaker.Unlock)
	s.close = speaker.Close
	speaker.Play(s.chain.volume)
	return s, nil
}

func newBeepSink(c *chain, volume, hi float64, lock, unlock func()) *BeepSink {
	s := &BeepSink{chain: c, max: hi, lock: lock, unlock: unlock, close: func() {}}
	s.gain = ClampVolume(volume, hi)
	c.setGain(s.gain)
	return s
}

// Volume returns the current linear gain.
func (s *BeepSink) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gain
}

// SetVolume sets the linear gain, clamped to [0, MaxVolume].
func (s *BeepSink) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gain = ClampVolume(v, s.max)
	s.lock()
	s.chain.setGain(s.gain)
	s.unlock()
}

// Play queues c and resumes output.
func (s *BeepSink) Play(c *Clip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	st := c.streamer(s.chain.rate)
	s.lock()
	s.chain.mixer.Add(st)
	s.chain.ctrl.Paused = false
	s.unlock()
	return nil
}

// Pause holds output; queued clips keep their position.
func (s *BeepSink) Pause() {
	s.setPaused(true)
}

// Resume continues output after Pause or Clear.
func (s *BeepSink) Resume() {
	s.setPaused(false)
}

func (s *BeepSink) setPaused(p bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lock()
	s.chain.ctrl.Paused = p
	s.unlock()
}

// Paused reports whether output is held.
func (s *BeepSink) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lock()
	defer s.unlock()
	return s.chain.ctrl.Paused
}

// Clear drops every queued clip and pauses output.
func (s *BeepSink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lock()
	s.chain.mixer.Clear()
	s.chain.ctrl.Paused = true
	s.unlock()
}

// Empty reports whether no clip is queued. Finished clips are removed by
// the mixer as it streams.
func (s *BeepSink) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lock()
	defer s.unlock()
	return s.chain.mixer.Len() == 0
}

// Close stops output and releases the device.
func (s *BeepSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.lock()
	s.chain.mixer.Clear()
	s.unlock()
	s.close()
	return nil
}
