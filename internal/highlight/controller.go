// Package highlight tracks which message is temporarily emphasized after a
// citation in the analysis is activated.
package highlight

import (
	"log/slog"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/convoscope/internal/xref"
)

// DefaultDuration is how long a highlight lasts.
const DefaultDuration = 3 * time.Second

// Align is the requested scroll alignment.
type Align string

const AlignCenter Align = "center"

// Resolver finds a message by id.
type Resolver interface {
	Resolve(id int) (xref.Location, bool)
}

// Scroller brings a message into view.
type Scroller interface {
	ScrollIntoView(loc xref.Location, align Align)
}

// State is either idle or highlighted(MessageID).
type State struct {
	Highlighted bool   `json:"highlighted"`
	MessageID   int    `json:"messageId"`
	Generation  uint64 `json:"generation"`
}

// Listener observes state transitions.
type Listener func(State)

type Option func(*Controller)

func WithClock(c Clock) Option { return func(h *Controller) { h.clock = c } }

func WithDuration(d time.Duration) Option {
	return func(h *Controller) {
		if d > 0 {
			h.duration = d
		}
	}
}

func WithScroller(s Scroller) Option { return func(h *Controller) { h.scroller = s } }

// Controller runs the idle/highlighted state machine. A newer activation
// always supersedes an older one, including the older one's pending
// reversion.
type Controller struct {
	mu        sync.Mutex
	resolver  Resolver
	scroller  Scroller
	clock     Clock
	duration  time.Duration
	logger    *slog.Logger
	state     State
	gen       uint64
	timer     Timer
	closed    bool
	listeners []Listener
}

func NewController(resolver Resolver, logger *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		resolver: resolver,
		clock:    realClock{},
		duration: DefaultDuration,
		logger:   logger,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// OnChange registers a listener. Listeners run synchronously after the
// state changes and must not call back into the controller.
func (c *Controller) OnChange(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Activate highlights message id. It returns false and changes nothing when
// id does not resolve.
func (c *Controller) Activate(id int) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	loc, ok := c.resolver.Resolve(id)
	if !ok {
		c.mu.Unlock()
		c.logger.Debug("highlight target not found", "message_id", id)
		return false
	}

	if c.scroller != nil {
		c.scroller.ScrollIntoView(loc, AlignCenter)
	}

	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.state = State{Highlighted: true, MessageID: id, Generation: gen}
	c.timer = c.clock.AfterFunc(c.duration, func() { c.revert(gen) })
	snap, listeners := c.state, c.listeners
	c.mu.Unlock()

	c.logger.Debug("message highlighted", "message_id", id, "generation", gen)
	notify(listeners, snap)
	return true
}

// revert returns to idle if gen is still the newest activation.
func (c *Controller) revert(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || !c.state.Highlighted {
		c.mu.Unlock()
		return
	}
	c.state = State{Generation: gen}
	c.timer = nil
	snap, listeners := c.state, c.listeners
	c.mu.Unlock()

	notify(listeners, snap)
}

// Reset swaps the resolver and drops any active highlight. Used when the
// conversation is replaced.
func (c *Controller) Reset(resolver Resolver) {
	c.mu.Lock()
	c.resolver = resolver
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	was := c.state.Highlighted
	c.state = State{Generation: c.gen}
	snap, listeners := c.state, c.listeners
	c.mu.Unlock()

	if was {
		notify(listeners, snap)
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close stops any pending reversion. Later activations are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.closed = true
}

func notify(listeners []Listener, s State) {
	for _, l := range listeners {
		l(s)
	}
}
