package keystroke

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/term"
)

// TerminalTap reads keys typed into the controlling terminal. It needs no
// special permissions but only sees input while the terminal has focus.
// Ctrl-C or Escape stops the tap and closes its channel.
type TerminalTap struct {
	BaseTap
	opts Options

	// newScreen is swapped for a simulation screen in tests.
	newScreen func() (tcell.Screen, error)
}

// NewTerminal creates a terminal tap.
func NewTerminal(opts Options) *TerminalTap {
	return &TerminalTap{opts: opts, newScreen: tcell.NewScreen}
}

// Name returns "terminal".
func (t *TerminalTap) Name() string { return BackendTerminal }

// Available reports whether stdin is a terminal.
func (t *TerminalTap) Available() (bool, string) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, "stdin is not a terminal"
	}
	return true, "terminal input (focused terminal only)"
}

// Start takes over the terminal until ctx is done.
func (t *TerminalTap) Start(ctx context.Context) (<-chan Event, error) {
	screen, err := t.newScreen()
	if err != nil {
		return nil, fmt.Errorf("terminal tap: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("terminal tap: %w", err)
	}

	ch, err := t.open(t.opts.queueSize())
	if err != nil {
		screen.Fini()
		return nil, err
	}

	screen.Clear()
	drawHint(screen)
	screen.Show()

	// Fini makes PollEvent return nil.
	var once sync.Once
	fini := func() { once.Do(screen.Fini) }
	stop := context.AfterFunc(ctx, fini)
	go func() {
		defer t.close()
		defer stop()
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			kev, ok := ev.(*tcell.EventKey)
			if !ok {
				continue
			}
			switch kev.Key() {
			case tcell.KeyCtrlC, tcell.KeyEscape:
				fini()
				return
			}
			if k, ok := terminalKey(kev); ok {
				t.Emit(k)
			}
		}
	}()
	return ch, nil
}

// terminalKey maps a tcell key event. Terminals do not distinguish the
// keypad from the main block, so only main-block keys are produced.
func terminalKey(ev *tcell.EventKey) (Key, bool) {
	switch ev.Key() {
	case tcell.KeyUp:
		return KeyUp, true
	case tcell.KeyDown:
		return KeyDown, true
	case tcell.KeyLeft:
		return KeyLeft, true
	case tcell.KeyRight:
		return KeyRight, true
	case tcell.KeyEnter:
		return KeyReturn, true
	case tcell.KeyRune:
		if ev.Rune() == '/' {
			return KeySlash, true
		}
	}
	return KeyUnknown, false
}

func drawHint(s tcell.Screen) {
	const hint = "comboboard: type a combo with / and the arrow keys, then Enter. Esc quits."
	style := tcell.StyleDefault.Dim(true)
	for i, r := range hint {
		s.SetContent(i, 0, r, nil, style)
	}
}
