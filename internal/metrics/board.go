package metrics

import (
	"math"
	"sync"
	"time"
)

// BoardMetrics holds the soundboard's metrics.
type BoardMetrics struct {
	registry *Registry

	CombosTotal     *Counter
	CombosMatched   *Counter
	CombosUnmatched *Counter
	ActionsFailed   *Counter
	TapDropped      *Counter
	Reloads         *Counter
	Errors          *Counter

	ListenWait *Histogram

	VolumePercent *Gauge
	TrieNodes     *Gauge
	Combos        *Gauge
	Uptime        *Gauge

	mu          sync.Mutex
	lastDropped uint64
	startTime   time.Time
}

// NewBoardMetrics registers the soundboard metrics in registry.
func NewBoardMetrics(registry *Registry) *BoardMetrics {
	return &BoardMetrics{
		registry: registry,

		CombosTotal:     registry.RegisterCounter("combos_total", "Total key sequences terminated", nil),
		CombosMatched:   registry.RegisterCounter("combos_matched_total", "Sequences that matched a combo", nil),
		CombosUnmatched: registry.RegisterCounter("combos_unmatched_total", "Sequences that matched nothing", nil),
		ActionsFailed:   registry.RegisterCounter("actions_failed_total", "Combo actions that returned an error", nil),
		TapDropped:      registry.RegisterCounter("tap_dropped_total", "Key events dropped by a full tap queue", nil),
		Reloads:         registry.RegisterCounter("config_reloads_total", "Combo tables reloaded from config", nil),
		Errors:          registry.RegisterCounter("errors_total", "Total errors", nil),

		ListenWait: registry.RegisterHistogram("listen_wait_seconds", "Time from arming to a terminated sequence", nil, WaitBuckets),

		VolumePercent: registry.RegisterGauge("volume_percent", "Output volume as a percentage of unity gain", nil),
		TrieNodes:     registry.RegisterGauge("trie_nodes", "Live nodes in the combo trie", nil),
		Combos:        registry.RegisterGauge("combos", "Bound combos", nil),
		Uptime:        registry.RegisterGauge("uptime_seconds", "Process uptime in seconds", nil),

		startTime: time.Now(),
	}
}

// Registry returns the underlying registry.
func (m *BoardMetrics) Registry() *Registry {
	return m.registry
}

// ObserveListen records one completed listen.
func (m *BoardMetrics) ObserveListen(d time.Duration, matched bool) {
	m.ListenWait.ObserveDuration(d)
	m.CombosTotal.Inc()
	if matched {
		m.CombosMatched.Inc()
	} else {
		m.CombosUnmatched.Inc()
	}
}

// SetVolume records a linear gain as a percentage.
func (m *BoardMetrics) SetVolume(gain float64) {
	m.VolumePercent.Set(int64(math.Round(gain * 100)))
}

// SetTrie records the combo table's size.
func (m *BoardMetrics) SetTrie(combos, nodes int) {
	m.Combos.Set(int64(combos))
	m.TrieNodes.Set(int64(nodes))
}

// SyncDropped advances TapDropped to the tap's running total. Totals that
// go backwards, as after a tap restart, are ignored.
func (m *BoardMetrics) SyncDropped(total uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if total > m.lastDropped {
		m.TapDropped.Add(total - m.lastDropped)
	}
	m.lastDropped = total
}

// UpdateUptime refreshes the uptime gauge.
func (m *BoardMetrics) UpdateUptime() {
	m.Uptime.Set(int64(time.Since(m.startTime).Seconds()))
}
