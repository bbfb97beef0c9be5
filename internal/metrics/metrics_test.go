package metrics

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRegistryNames(t *testing.T) {
	r := NewRegistry("comboboard", "")
	c := r.RegisterCounter("combos_total", "help", nil)
	if c.Name() != "comboboard_combos_total" {
		t.Errorf("unexpected name %q", c.Name())
	}
	if again := r.RegisterCounter("combos_total", "other", nil); again != c {
		t.Error("registering twice should return the same counter")
	}

	sub := NewRegistry("comboboard", "tap")
	if g := sub.RegisterGauge("queue", "help", nil); g.Name() != "comboboard_tap_queue" {
		t.Errorf("unexpected name %q", g.Name())
	}
}

func TestHistogramBuckets(t *testing.T) {
	h := NewHistogram("wait", "help", nil, []float64{1, 0.5, 2})
	for _, v := range []float64{0.1, 0.5, 0.7, 1.5, 9} {
		h.Observe(v)
	}
	if h.Count() != 5 {
		t.Errorf("expected 5 observations, got %d", h.Count())
	}
	if math.Abs(h.Sum()-11.8) > 1e-9 {
		t.Errorf("expected sum 11.8, got %g", h.Sum())
	}

	want := []uint64{2, 3, 4, 5} // le=0.5, 1, 2, +Inf
	got := h.cumulative()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("bucket %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestWritePrometheus(t *testing.T) {
	r := NewRegistry("comboboard", "")
	r.RegisterCounter("b_total", "B", nil).Add(3)
	r.RegisterCounter("a_total", "A", Labels{"kind": "play"}).Inc()
	r.RegisterGauge("volume_percent", "Volume", nil).Set(125)
	r.RegisterHistogram("wait_seconds", "Wait", nil, []float64{1}).Observe(0.5)

	var buf bytes.Buffer
	if err := r.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus failed: %v", err)
	}
	out := buf.String()

	for _, line := range []string{
		"# TYPE comboboard_a_total counter",
		`comboboard_a_total{kind="play"} 1`,
		"comboboard_b_total 3",
		"# TYPE comboboard_volume_percent gauge",
		"comboboard_volume_percent 125",
		`comboboard_wait_seconds_bucket{le="1"} 1`,
		`comboboard_wait_seconds_bucket{le="+Inf"} 1`,
		"comboboard_wait_seconds_count 1",
	} {
		if !strings.Contains(out, line+"\n") {
			t.Errorf("output missing %q:\n%s", line, out)
		}
	}
	if strings.Index(out, "comboboard_a_total") > strings.Index(out, "comboboard_b_total") {
		t.Error("counters should be sorted by name")
	}
}

func TestHTTPHandler(t *testing.T) {
	r := NewRegistry("comboboard", "")
	r.RegisterCounter("combos_total", "help", nil).Add(2)

	rec := httptest.NewRecorder()
	r.HTTPHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "comboboard_combos_total 2") {
		t.Errorf("unexpected text body: %s", rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Accept", "application/json")
	rec = httptest.NewRecorder()
	r.HTTPHandler().ServeHTTP(rec, req)

	var snap map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if snap["comboboard_combos_total"] != float64(2) {
		t.Errorf("unexpected snapshot: %v", snap)
	}
}

func TestBoardMetrics(t *testing.T) {
	m := NewBoardMetrics(NewRegistry("comboboard", ""))

	m.ObserveListen(2*time.Second, true)
	m.ObserveListen(time.Second, false)
	m.ObserveListen(time.Second, true)
	if m.CombosTotal.Value() != 3 || m.CombosMatched.Value() != 2 || m.CombosUnmatched.Value() != 1 {
		t.Errorf("unexpected combo counts: %d/%d/%d",
			m.CombosTotal.Value(), m.CombosMatched.Value(), m.CombosUnmatched.Value())
	}
	if m.ListenWait.Count() != 3 {
		t.Errorf("expected 3 listen observations, got %d", m.ListenWait.Count())
	}

	m.SetVolume(1.25)
	if m.VolumePercent.Value() != 125 {
		t.Errorf("expected 125%%, got %d", m.VolumePercent.Value())
	}

	m.SetTrie(7, 12)
	if m.Combos.Value() != 7 || m.TrieNodes.Value() != 12 {
		t.Error("SetTrie should set both gauges")
	}
}

func TestBoardMetricsSyncDropped(t *testing.T) {
	m := NewBoardMetrics(NewRegistry("comboboard", ""))
	m.SyncDropped(3)
	m.SyncDropped(5)
	if m.TapDropped.Value() != 5 {
		t.Errorf("expected 5 dropped, got %d", m.TapDropped.Value())
	}
	// A restarted tap counts from zero again.
	m.SyncDropped(1)
	m.SyncDropped(2)
	if m.TapDropped.Value() != 6 {
		t.Errorf("expected 6 dropped, got %d", m.TapDropped.Value())
	}
}
