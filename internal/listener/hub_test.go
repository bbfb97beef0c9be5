package listener

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comboboard/internal/combo"
	"comboboard/internal/keystroke"
	"comboboard/internal/logging"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func testOptions(t *testing.T, clock *fakeClock) Options {
	t.Helper()
	logger, err := logging.New(&logging.Config{Level: logging.LevelError, Output: "stderr"})
	require.NoError(t, err)
	opts := Options{
		IdleWindow: 3 * time.Second,
		Logger:     logger,
		Crash:      logging.NewCrashHandler(&logging.CrashHandlerConfig{CrashDir: t.TempDir()}),
	}
	if clock != nil {
		opts.Clock = clock.Now
	}
	return opts
}

func newTestHub(t *testing.T) (*Hub, *keystroke.SimulatedTap, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	tap := keystroke.NewSimulated(32)
	tap.SetClock(clock.Now)
	h := newHub(tap, testOptions(t, clock))
	t.Cleanup(func() { h.Close() })
	return h, tap, clock
}

type listenResult struct {
	seq combo.Sequence
	err error
}

func listenAsync(ctx context.Context, h *Hub) <-chan listenResult {
	out := make(chan listenResult, 1)
	go func() {
		seq, err := h.Listen(ctx)
		out <- listenResult{seq, err}
	}()
	return out
}

func waitArmed(t *testing.T, h *Hub) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.Stats().State == Armed
	}, 2*time.Second, time.Millisecond, "hub never armed")
}

func waitResult(t *testing.T, ch <-chan listenResult) listenResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("listen did not return")
		return listenResult{}
	}
}

// =============================================================================
// accumulator
// =============================================================================

func TestAccumulatorKeepsInputsWithinWindow(t *testing.T) {
	a := accumulator{window: 3 * time.Second}
	t0 := time.Unix(1000, 0)

	a.record(combo.Left, t0)
	a.record(combo.Up, t0.Add(2999*time.Millisecond))

	assert.True(t, combo.Seq(combo.Left, combo.Up).Equal(a.drain()))
	assert.Equal(t, 0, a.pending())
}

func TestAccumulatorResetsAfterIdleGap(t *testing.T) {
	a := accumulator{window: 3 * time.Second}
	t0 := time.Unix(1000, 0)

	a.record(combo.Left, t0)
	a.record(combo.Up, t0.Add(3*time.Second))
	assert.True(t, combo.Seq(combo.Up).Equal(a.drain()), "gap equal to the window resets")

	a.record(combo.Down, t0.Add(10*time.Second))
	a.record(combo.Right, t0.Add(14*time.Second))
	assert.True(t, combo.Seq(combo.Right).Equal(a.drain()))
}

func TestAccumulatorDrainKeepsTimestamp(t *testing.T) {
	a := accumulator{window: 3 * time.Second}
	t0 := time.Unix(1000, 0)

	a.record(combo.Mark, t0)
	a.drain()
	assert.Equal(t, t0, a.last)

	a.stamp(t0.Add(5 * time.Second))
	a.record(combo.Up, t0.Add(6*time.Second))
	a.record(combo.Up, t0.Add(7*time.Second))
	assert.True(t, combo.Seq(combo.Up, combo.Up).Equal(a.drain()))
}

func TestAccumulatorDrainIsACopy(t *testing.T) {
	a := accumulator{window: time.Second}
	t0 := time.Unix(1000, 0)
	a.record(combo.Up, t0)
	got := a.drain()
	a.record(combo.Down, t0)
	assert.Equal(t, combo.Up, got[0])
}

// =============================================================================
// Hub handshake
// =============================================================================

func TestListenReturnsSequence(t *testing.T) {
	h, tap, _ := newTestHub(t)

	res := listenAsync(context.Background(), h)
	waitArmed(t, h)
	tap.Press(keystroke.KeySlash, keystroke.KeyUp, keystroke.KeyKP6, keystroke.KeyKPEnter)

	r := waitResult(t, res)
	require.NoError(t, r.err)
	assert.Equal(t, combo.Seq(combo.Mark, combo.Up, combo.Right), r.seq)
	assert.Equal(t, Idle, h.Stats().State)
}

func TestListenTerminatorAloneIsEmpty(t *testing.T) {
	h, tap, _ := newTestHub(t)

	res := listenAsync(context.Background(), h)
	waitArmed(t, h)
	tap.Press(keystroke.KeyReturn)

	r := waitResult(t, res)
	require.NoError(t, r.err)
	assert.Empty(t, r.seq)
}

func TestListenIgnoresOtherKeys(t *testing.T) {
	h, tap, _ := newTestHub(t)

	res := listenAsync(context.Background(), h)
	waitArmed(t, h)
	tap.Press(keystroke.KeyUnknown, keystroke.KeyDown, keystroke.KeyUnknown, keystroke.KeyReturn)

	r := waitResult(t, res)
	require.NoError(t, r.err)
	assert.Equal(t, combo.Seq(combo.Down), r.seq)
}

func TestInputsWhileIdleWaitForNextListen(t *testing.T) {
	h, tap, _ := newTestHub(t)

	res := listenAsync(context.Background(), h)
	waitArmed(t, h)
	tap.Press(keystroke.KeyReturn)
	require.NoError(t, waitResult(t, res).err)

	// Nobody is listening: the dispatch goroutine holds the press.
	tap.Press(keystroke.KeyLeft, keystroke.KeyReturn)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, uint64(0), h.Stats().Symbols)

	r := waitResult(t, listenAsync(context.Background(), h))
	require.NoError(t, r.err)
	assert.Equal(t, combo.Seq(combo.Left), r.seq)
}

func TestConsecutiveListens(t *testing.T) {
	h, tap, _ := newTestHub(t)

	for i, want := range []combo.Sequence{
		combo.Seq(combo.Mark),
		combo.Seq(combo.Mark, combo.Mark),
		combo.Seq(combo.Left, combo.Right),
	} {
		res := listenAsync(context.Background(), h)
		waitArmed(t, h)
		tap.Type(want)
		r := waitResult(t, res)
		require.NoError(t, r.err, "listen %d", i)
		assert.Equal(t, want, r.seq, "listen %d", i)
	}
	assert.Equal(t, uint64(3), h.Stats().Listens)
	assert.Equal(t, uint64(3), h.Stats().Terminators)
}

func TestListenIdleTimeout(t *testing.T) {
	h, tap, clock := newTestHub(t)

	res := listenAsync(context.Background(), h)
	waitArmed(t, h)

	tap.Press(keystroke.KeyLeft)
	require.Eventually(t, func() bool { return h.Stats().Symbols == 1 }, time.Second, time.Millisecond)
	clock.Advance(4 * time.Second)
	tap.Press(keystroke.KeyUp, keystroke.KeyReturn)

	r := waitResult(t, res)
	require.NoError(t, r.err)
	assert.Equal(t, combo.Seq(combo.Up), r.seq)
}

func TestListenCancel(t *testing.T) {
	h, tap, _ := newTestHub(t)

	ctx, cancel := context.WithCancel(context.Background())
	res := listenAsync(ctx, h)
	waitArmed(t, h)
	tap.Press(keystroke.KeyDown)
	require.Eventually(t, func() bool { return h.Stats().Symbols == 1 }, time.Second, time.Millisecond)

	cancel()
	r := waitResult(t, res)
	assert.ErrorIs(t, r.err, context.Canceled)
	assert.Nil(t, r.seq)
	assert.Equal(t, Idle, h.Stats().State)
	assert.Equal(t, 1, h.Stats().Pending, "partial input stays buffered")

	res = listenAsync(context.Background(), h)
	waitArmed(t, h)
	tap.Press(keystroke.KeyDown, keystroke.KeyReturn)
	r = waitResult(t, res)
	require.NoError(t, r.err)
	assert.Equal(t, combo.Seq(combo.Down, combo.Down), r.seq)
}

func TestListenDeadline(t *testing.T) {
	h, _, _ := newTestHub(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := h.Listen(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConcurrentListenRejected(t *testing.T) {
	h, tap, _ := newTestHub(t)

	res := listenAsync(context.Background(), h)
	waitArmed(t, h)

	_, err := h.Listen(context.Background())
	assert.ErrorIs(t, err, ErrListenInProgress)

	tap.Press(keystroke.KeyUp, keystroke.KeyReturn)
	r := waitResult(t, res)
	require.NoError(t, r.err)
	assert.Equal(t, combo.Seq(combo.Up), r.seq)
}

func TestTapStopEndsListen(t *testing.T) {
	h, tap, _ := newTestHub(t)

	res := listenAsync(context.Background(), h)
	waitArmed(t, h)
	tap.Close()

	r := waitResult(t, res)
	assert.ErrorIs(t, r.err, ErrTapClosed)
	assert.ErrorIs(t, h.Healthy(), ErrTapClosed)

	_, err := h.Listen(context.Background())
	assert.ErrorIs(t, err, ErrTapClosed)
}

func TestCloseWakesListener(t *testing.T) {
	h, _, _ := newTestHub(t)

	res := listenAsync(context.Background(), h)
	waitArmed(t, h)
	require.NoError(t, h.Close())

	r := waitResult(t, res)
	assert.ErrorIs(t, r.err, ErrHubClosed)
}

type failingTap struct{ starts int }

func (f *failingTap) Name() string              { return "failing" }
func (f *failingTap) Available() (bool, string) { return false, "test" }
func (f *failingTap) Start(context.Context) (<-chan keystroke.Event, error) {
	f.starts++
	return nil, keystroke.ErrPermissionDenied
}

func TestTapStartErrorIsSticky(t *testing.T) {
	tap := &failingTap{}
	h := newHub(tap, testOptions(t, nil))

	_, err := h.Listen(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, keystroke.ErrPermissionDenied))
	assert.Contains(t, err.Error(), "failing")

	_, err = h.Listen(context.Background())
	assert.ErrorIs(t, err, keystroke.ErrPermissionDenied)
	assert.Equal(t, 1, tap.starts)
	assert.Error(t, h.Healthy())
}

func TestHealthyBeforeFirstListen(t *testing.T) {
	h, _, _ := newTestHub(t)
	assert.NoError(t, h.Healthy())
	assert.False(t, h.Stats().TapRunning)
}

func TestStatsReportsDrops(t *testing.T) {
	clock := newFakeClock()
	tap := keystroke.NewSimulated(1)
	tap.SetClock(clock.Now)
	h := newHub(tap, testOptions(t, clock))
	defer h.Close()

	res := listenAsync(context.Background(), h)
	waitArmed(t, h)
	tap.Press(keystroke.KeyReturn)
	require.NoError(t, waitResult(t, res).err)

	// Idle: one press is held by dispatch, one fills the queue, the rest drop.
	tap.Press(keystroke.KeyUp, keystroke.KeyUp, keystroke.KeyUp, keystroke.KeyUp, keystroke.KeyUp)
	require.Eventually(t, func() bool { return h.Stats().Dropped >= 3 }, time.Second, time.Millisecond)
}

func TestOpenIsSingleton(t *testing.T) {
	// Each round releases the claim, so the test also passes with -count > 1.
	for _, round := range []string{"first", "again"} {
		t.Run(round, func(t *testing.T) {
			t.Cleanup(func() { claimed.Store(false) })

			tap := keystroke.NewSimulated(0)
			h, err := Open(tap, testOptions(t, nil))
			require.NoError(t, err)
			defer h.Close()
			assert.Equal(t, DefaultIdleWindow, newHub(tap, Options{}).IdleWindow())

			_, err = Open(tap, testOptions(t, nil))
			assert.ErrorIs(t, err, ErrHubExists)
		})
	}
}
