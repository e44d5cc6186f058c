package sim

import (
	"sync"
)

// TickEvent is a generic event that almost every component can use to update
// its status.
type TickEvent struct {
	EventBase
}

// MakeTickEvent creates a new TickEvent.
func MakeTickEvent(handler Handler, cycle VCycle) TickEvent {
	evt := TickEvent{}
	evt.ID = GetIDGenerator().Generate()
	evt.handler = handler
	evt.cycle = cycle
	evt.secondary = false

	return evt
}

// A Ticker is an object that updates states with ticks.
type Ticker interface {
	Tick() bool
}

// TickScheduler can help schedule tick events.
type TickScheduler struct {
	lock      sync.Mutex
	handler   Handler
	Engine    Engine
	secondary bool

	hasScheduled  bool
	nextTickCycle VCycle
}

// NewTickScheduler creates a scheduler for tick events.
func NewTickScheduler(handler Handler, engine Engine) *TickScheduler {
	ticker := new(TickScheduler)

	ticker.handler = handler
	ticker.Engine = engine

	return ticker
}

// NewSecondaryTickScheduler creates a scheduler that always schedules
// secondary tick events.
func NewSecondaryTickScheduler(handler Handler, engine Engine) *TickScheduler {
	ticker := new(TickScheduler)

	ticker.handler = handler
	ticker.Engine = engine
	ticker.secondary = true

	return ticker
}

// TickNow schedules a tick event at the current cycle.
func (t *TickScheduler) TickNow() {
	t.scheduleTick(t.CurrentCycle())
}

// TickLater schedules a tick event at the next cycle.
func (t *TickScheduler) TickLater() {
	t.scheduleTick(t.CurrentCycle() + 1)
}

func (t *TickScheduler) scheduleTick(cycle VCycle) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.hasScheduled && t.nextTickCycle >= cycle {
		return
	}

	t.hasScheduled = true
	t.nextTickCycle = cycle
	tick := MakeTickEvent(t.handler, cycle)

	if t.secondary {
		tick.secondary = true
	}

	t.Engine.Schedule(tick)
}

// CurrentCycle returns the cycle the simulation is currently at.
func (t *TickScheduler) CurrentCycle() VCycle {
	return t.Engine.CurrentCycle()
}

// TickingComponent is a type of component that updates states from cycle to
// cycle. A programmer would only need to program a tick function for a
// ticking component.
type TickingComponent struct {
	*ComponentBase
	*TickScheduler

	ticker Ticker
}

// NotifyPortFree triggers the TickingComponent to start ticking again.
func (c *TickingComponent) NotifyPortFree(_ Port) {
	c.TickLater()
}

// NotifyRecv triggers the TickingComponent to start ticking again.
func (c *TickingComponent) NotifyRecv(_ Port) {
	c.TickLater()
}

// Handle triggers the tick function of the TickingComponent.
func (c *TickingComponent) Handle(_ Event) error {
	madeProgress := c.ticker.Tick()
	if madeProgress {
		c.TickLater()
	}

	return nil
}

// NewTickingComponent creates a new ticking component.
func NewTickingComponent(
	name string,
	engine Engine,
	ticker Ticker,
) *TickingComponent {
	tc := new(TickingComponent)
	tc.TickScheduler = NewTickScheduler(tc, engine)
	tc.ComponentBase = NewComponentBase(name)
	tc.ticker = ticker

	return tc
}

// NewSecondaryTickingComponent creates a new ticking component that ticks in
// the secondary phase of each cycle.
func NewSecondaryTickingComponent(
	name string,
	engine Engine,
	ticker Ticker,
) *TickingComponent {
	tc := new(TickingComponent)
	tc.TickScheduler = NewSecondaryTickScheduler(tc, engine)
	tc.ComponentBase = NewComponentBase(name)
	tc.ticker = ticker

	return tc
}
