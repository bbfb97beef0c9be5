//go:build !linux && !(cgo && (darwin || windows))

package keystroke

// No global tap on this platform or build; "terminal" still works.
func newPlatformTap(opts Options) Tap {
	return unavailableTap{
		name:   BackendAuto,
		reason: "global keyboard tap not implemented for this platform (try the terminal backend)",
	}
}
