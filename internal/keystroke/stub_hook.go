//go:build !(cgo && (darwin || windows))

package keystroke

func newHookTap(opts Options) Tap {
	return unavailableTap{
		name:   BackendHook,
		reason: "global hook requires a cgo build on macOS or Windows",
	}
}
