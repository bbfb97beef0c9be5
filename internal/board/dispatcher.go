package board

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"comboboard/internal/audio"
	"comboboard/internal/combo"
	"comboboard/internal/config"
	"comboboard/internal/listener"
	"comboboard/internal/logging"
	"comboboard/internal/metrics"
	"comboboard/internal/store"
)

// ErrNoClip is returned when a Play action has no decoded clip.
var ErrNoClip = errors.New("play action has no clip")

// Options configures a Dispatcher. Store and Metrics are optional.
type Options struct {
	Sink    audio.Sink
	Store   *store.Store
	Metrics *metrics.BoardMetrics
	Logger  *logging.Logger

	// MaxVolume bounds RaiseVolume. Zero means audio.DefaultConfig().MaxVolume.
	MaxVolume float64

	// Table builds the trie on Reload.
	Table TableOptions

	// Version is recorded with the run.
	Version string

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Dispatcher listens for combos and applies the bound actions.
type Dispatcher struct {
	watcher *listener.Watcher[Action]
	sink    audio.Sink
	store   *store.Store
	metrics *metrics.BoardMetrics
	log     *logging.Logger
	hi      float64
	table   TableOptions
	version string
	now     func() time.Time
	runID   string

	// mu orders trie swaps against Resolve; Listen never takes it.
	mu sync.RWMutex
}

// NewDispatcher returns a dispatcher over w with a fresh run ID.
func NewDispatcher(w *listener.Watcher[Action], opts Options) *Dispatcher {
	if opts.MaxVolume <= 0 {
		opts.MaxVolume = audio.DefaultConfig().MaxVolume
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default().WithComponent("board")
	}

	runID := uuid.NewString()
	d := &Dispatcher{
		watcher: w,
		sink:    opts.Sink,
		store:   opts.Store,
		metrics: opts.Metrics,
		log:     opts.Logger.WithRunID(runID),
		hi:      opts.MaxVolume,
		table:   opts.Table,
		version: opts.Version,
		now:     opts.Clock,
		runID:   runID,
	}
	if d.metrics != nil {
		d.metrics.SetVolume(d.sink.Volume())
	}
	return d
}

// RunID identifies this dispatcher's history rows.
func (d *Dispatcher) RunID() string {
	return d.runID
}

// Load swaps in a compiled table.
func (d *Dispatcher) Load(t *combo.Trie[Action]) {
	d.mu.Lock()
	d.watcher.Replace(t)
	d.mu.Unlock()

	if d.metrics != nil {
		d.metrics.SetTrie(t.Len(), t.Nodes())
	}
	d.log.Info("combo table loaded", "combos", t.Len())
}

// Reload rebuilds the table from cfg. Entries that fail are logged and
// skipped; the rest still load.
func (d *Dispatcher) Reload(cfg *config.Config) error {
	opts := TableOptionsFor(cfg)
	d.mu.Lock()
	opts.LoadClip = d.table.LoadClip
	d.table = opts
	d.mu.Unlock()

	t, err := BuildTable(cfg.EffectiveCombos(), opts)
	d.Load(t)
	if d.metrics != nil {
		d.metrics.Reloads.Inc()
	}
	if err != nil {
		d.log.Warn("some combos were not loaded", "error", err)
	}
	return err
}

// Resolve returns the action bound to exactly seq.
func (d *Dispatcher) Resolve(seq combo.Sequence) (Action, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.watcher.Resolve(seq)
}

// Combos returns how many combos are loaded.
func (d *Dispatcher) Combos() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.watcher.Len()
}

// Bindings lists the loaded combos.
func (d *Dispatcher) Bindings() []Binding {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []Binding
	d.watcher.Walk(func(seq combo.Sequence, a Action) bool {
		out = append(out, Binding{Sequence: seq, Action: a})
		return true
	})
	return out
}

// Apply performs a on the sink. Quit is a no-op here; Run handles it.
func (d *Dispatcher) Apply(a Action) error {
	switch a.Kind {
	case Quit:
	case ClearAudio:
		d.sink.Clear()
	case ToggleMute:
		if d.sink.Volume() == 0 {
			d.sink.SetVolume(1)
		} else {
			d.sink.SetVolume(0)
		}
	case LowerVolume:
		d.sink.SetVolume(audio.ClampVolume(d.sink.Volume()-a.Amount, d.hi))
	case RaiseVolume:
		d.sink.SetVolume(audio.ClampVolume(d.sink.Volume()+a.Amount, d.hi))
	case Play:
		if a.clip == nil {
			return fmt.Errorf("%s: %w", a.Label(), ErrNoClip)
		}
		d.sink.Clear()
		if err := d.sink.Play(a.clip); err != nil {
			return fmt.Errorf("play %s: %w", a.Label(), err)
		}
	default:
		return fmt.Errorf("unknown action %s", a.Kind)
	}

	if d.metrics != nil {
		d.metrics.SetVolume(d.sink.Volume())
	}
	return nil
}

// Run listens for combos and applies them until a Quit combo fires, which
// returns nil, or ctx is done, which also returns nil. Failures of the
// listener end the run; failed actions are logged and the loop goes on.
func (d *Dispatcher) Run(ctx context.Context) error {
	hub := d.watcher.Hub()
	if d.store != nil {
		run := store.Run{ID: d.runID, StartedAt: d.now(), Backend: hub.TapName(), Version: d.version}
		if err := d.store.RecordRun(run); err != nil {
			d.log.Warn("record run failed", "error", err)
		}
	}
	d.log.Info("dispatcher started", "backend", hub.TapName(), "combos", d.Combos())

	for {
		start := d.now()
		seq, err := d.watcher.ListenForCombo(ctx)
		if err != nil {
			if ctx.Err() != nil {
				d.log.Info("dispatcher stopped")
				return nil
			}
			if d.metrics != nil {
				d.metrics.Errors.Inc()
			}
			return fmt.Errorf("listen: %w", err)
		}

		a, ok := d.Resolve(seq)
		d.observe(seq, a, ok, d.now().Sub(start))
		if !ok {
			d.log.Debug("no combo bound", "sequence", seq.Glyphs())
			continue
		}

		d.log.Info("combo", "sequence", seq.Glyphs(), "action", a.Describe())
		if a.Kind == Quit {
			d.log.Info("quit combo received")
			return nil
		}
		if err := d.Apply(a); err != nil {
			d.log.Error("action failed", "sequence", seq.Glyphs(), "error", err)
			if d.metrics != nil {
				d.metrics.ActionsFailed.Inc()
			}
		}
	}
}

// observe records one listen in metrics and history.
func (d *Dispatcher) observe(seq combo.Sequence, a Action, matched bool, wait time.Duration) {
	if d.metrics != nil {
		d.metrics.ObserveListen(wait, matched)
		d.metrics.SyncDropped(d.watcher.Hub().Stats().Dropped)
	}
	if d.store == nil {
		return
	}

	t := &store.Trigger{
		RunID:    d.runID,
		Time:     d.now(),
		Sequence: seq.Glyphs(),
		Matched:  matched,
	}
	if matched {
		t.Action = a.Kind.String()
		t.Label = a.Label()
	}
	if _, err := d.store.RecordTrigger(t); err != nil {
		d.log.Warn("record trigger failed", "error", err)
		if d.metrics != nil {
			d.metrics.Errors.Inc()
		}
	}
}
