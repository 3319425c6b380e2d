package highlight

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/convoscope/internal/conversation"
	"github.com/MikeSquared-Agency/convoscope/internal/xref"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeTimer struct {
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped && !t.fired
	t.stopped = true
	return was
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and fires due timers in schedule order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

// fireAll runs every scheduled callback, stopped or not, to simulate a
// timer that already fired before Stop could take effect.
func (c *fakeClock) fireAll() {
	c.mu.Lock()
	all := append([]*fakeTimer(nil), c.timers...)
	c.mu.Unlock()
	for _, t := range all {
		t.f()
	}
}

type recordingScroller struct {
	calls []xref.Location
	align []Align
}

func (r *recordingScroller) ScrollIntoView(loc xref.Location, align Align) {
	r.calls = append(r.calls, loc)
	r.align = append(r.align, align)
}

func newTestController(opts ...Option) (*Controller, *fakeClock, *recordingScroller) {
	clock := &fakeClock{}
	sc := &recordingScroller{}
	opts = append([]Option{WithClock(clock), WithScroller(sc)}, opts...)
	c := NewController(xref.NewIndex(conversation.Default()), discardLogger(), opts...)
	return c, clock, sc
}

func TestActivate_HighlightsAndReverts(t *testing.T) {
	c, clock, sc := newTestController()

	if !c.Activate(3) {
		t.Fatal("expected activation to succeed")
	}
	st := c.State()
	if !st.Highlighted || st.MessageID != 3 {
		t.Fatalf("expected highlighted(3), got %+v", st)
	}
	if len(sc.calls) != 1 || sc.calls[0].MessageID != 3 || sc.align[0] != AlignCenter {
		t.Errorf("expected one centered scroll to 3, got %+v %v", sc.calls, sc.align)
	}

	clock.Advance(DefaultDuration - time.Millisecond)
	if !c.State().Highlighted {
		t.Error("highlight reverted early")
	}
	clock.Advance(time.Millisecond)
	if c.State().Highlighted {
		t.Error("expected idle after duration")
	}
}

func TestActivate_Unresolved(t *testing.T) {
	c, clock, sc := newTestController()

	if c.Activate(42) {
		t.Error("expected false for unknown id")
	}
	if c.State().Highlighted {
		t.Error("state changed for unknown id")
	}
	if len(sc.calls) != 0 || len(clock.timers) != 0 {
		t.Error("expected no scroll and no timer for unknown id")
	}

	c.Activate(2)
	if c.Activate(42) {
		t.Error("expected false for unknown id")
	}
	if st := c.State(); !st.Highlighted || st.MessageID != 2 {
		t.Errorf("unknown id disturbed existing highlight: %+v", st)
	}
}

func TestActivate_Supersession(t *testing.T) {
	c, clock, _ := newTestController()

	c.Activate(3)
	clock.Advance(2 * time.Second)
	c.Activate(5)

	// t=3s: first timer would have fired.
	clock.Advance(time.Second)
	if st := c.State(); !st.Highlighted || st.MessageID != 5 {
		t.Fatalf("expected highlighted(5) at 3s, got %+v", st)
	}

	// t=5s: second activation's duration elapses.
	clock.Advance(2 * time.Second)
	if c.State().Highlighted {
		t.Error("expected idle at 5s")
	}
}

func TestActivate_StaleTimerIgnored(t *testing.T) {
	c, clock, _ := newTestController()

	c.Activate(3)
	c.Activate(5)
	// Both callbacks run even though the first was stopped.
	clock.fireAll()
	if c.State().Highlighted {
		t.Error("expected newest timer to revert")
	}

	c.Activate(7)
	clock.timers[0].f()
	if st := c.State(); !st.Highlighted || st.MessageID != 7 {
		t.Errorf("stale timer cleared newer highlight: %+v", st)
	}
}

func TestActivate_SameIDRestartsTimer(t *testing.T) {
	c, clock, _ := newTestController()

	c.Activate(3)
	clock.Advance(2 * time.Second)
	c.Activate(3)
	clock.Advance(2 * time.Second)
	if !c.State().Highlighted {
		t.Error("re-activation should restart the duration")
	}
	clock.Advance(time.Second)
	if c.State().Highlighted {
		t.Error("expected idle after restarted duration")
	}
}

func TestWithDuration(t *testing.T) {
	c, clock, _ := newTestController(WithDuration(500 * time.Millisecond))
	c.Activate(1)
	clock.Advance(500 * time.Millisecond)
	if c.State().Highlighted {
		t.Error("expected custom duration to apply")
	}
}

func TestOnChange(t *testing.T) {
	c, clock, _ := newTestController()
	var got []State
	c.OnChange(func(s State) { got = append(got, s) })

	c.Activate(1)
	c.Activate(99)
	clock.Advance(DefaultDuration)

	if len(got) != 2 {
		t.Fatalf("expected 2 transitions, got %+v", got)
	}
	if !got[0].Highlighted || got[0].MessageID != 1 {
		t.Errorf("unexpected first transition: %+v", got[0])
	}
	if got[1].Highlighted {
		t.Errorf("expected revert transition, got %+v", got[1])
	}
}

func TestReset(t *testing.T) {
	c, clock, _ := newTestController()
	c.Activate(1)

	other := &conversation.Conversation{Messages: []conversation.Message{{ID: 50, Role: conversation.RoleUser, Content: "x"}}}
	c.Reset(xref.NewIndex(other))
	if c.State().Highlighted {
		t.Error("expected reset to clear highlight")
	}
	if c.Activate(1) {
		t.Error("old id should not resolve after reset")
	}
	if !c.Activate(50) {
		t.Error("new id should resolve after reset")
	}
	clock.fireAll()
	if c.State().Highlighted {
		t.Error("expected idle after timers fire")
	}
}

func TestClose(t *testing.T) {
	c, clock, _ := newTestController()
	c.Activate(1)
	c.Close()

	if !clock.timers[0].stopped {
		t.Error("expected pending timer stopped")
	}
	if c.Activate(3) {
		t.Error("expected activation ignored after close")
	}
}
