package sim

// VCycle is a time in the simulated space, counted in clock cycles. The
// whole simulation runs in a single synchronous clock domain, so there is no
// need for sub-cycle time resolution.
type VCycle uint64

// An Event is something going to happen in the future.
type Event interface {
	// Cycle returns the cycle that the event should happen at.
	Cycle() VCycle

	// Handler returns the handler that should handle the event.
	Handler() Handler

	// IsSecondary tells if the event is a secondary event. Secondary events
	// are handled after all the same-cycle primary events are handled.
	// Components update in the primary phase and connections deliver in the
	// secondary phase, so that a message sent in cycle N can never be acted
	// on before cycle N+1.
	IsSecondary() bool
}

// EventBase provides the basic fields and getters for other events.
type EventBase struct {
	ID        string
	cycle     VCycle
	handler   Handler
	secondary bool
}

// NewEventBase creates a new EventBase.
func NewEventBase(cycle VCycle, handler Handler) *EventBase {
	e := new(EventBase)
	e.ID = GetIDGenerator().Generate()
	e.cycle = cycle
	e.handler = handler

	return e
}

// Cycle returns the cycle that the event is going to happen at.
func (e EventBase) Cycle() VCycle {
	return e.cycle
}

// Handler returns the handler to handle the event.
func (e EventBase) Handler() Handler {
	return e.handler
}

// IsSecondary returns true if the event is a secondary event.
func (e EventBase) IsSecondary() bool {
	return e.secondary
}

// A Handler defines a domain for the events.
//
// One event is always constrained to one Handler, which means the event can
// only be scheduled by one handler and can only directly modify that handler.
type Handler interface {
	Handle(e Event) error
}
