package directconnection

import "github.com/sarchlab/widthbridge/sim"

// Builder can help building direct connections.
type Builder struct {
	engine sim.Engine
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{}
}

// WithEngine sets the engine that the connection uses.
func (b Builder) WithEngine(e sim.Engine) Builder {
	b.engine = e
	return b
}

// Build creates a new direct connection.
func (b Builder) Build(name string) *Comp {
	c := new(Comp)
	c.TickingComponent = sim.NewSecondaryTickingComponent(name, b.engine, c)
	c.portByName = make(map[sim.RemotePort]sim.Port)

	return c
}
