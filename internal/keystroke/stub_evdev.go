//go:build !linux

package keystroke

func newEvdevTap(opts Options) Tap {
	return unavailableTap{name: BackendEvdev, reason: "evdev is only available on Linux"}
}

// KeyboardDevice describes an input device that can produce combo keys.
type KeyboardDevice struct {
	Path     string
	Name     string
	Readable bool
}

// ListKeyboards returns ErrNotAvailable outside Linux.
func ListKeyboards() ([]KeyboardDevice, error) {
	return nil, ErrNotAvailable
}
