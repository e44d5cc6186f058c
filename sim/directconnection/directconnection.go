// Package directconnection connects ports without latency. Messages sent in
// cycle N are delivered in the secondary phase of cycle N, so the receiving
// component observes them no earlier than cycle N+1.
package directconnection

import (
	"github.com/sarchlab/widthbridge/sim"
)

// Comp is a DirectConnection that connects components without latency.
type Comp struct {
	*sim.TickingComponent

	ports      []sim.Port
	portByName map[sim.RemotePort]sim.Port
	nextPortID int
}

// PlugIn marks the port as connected to this DirectConnection.
func (c *Comp) PlugIn(port sim.Port) {
	c.ports = append(c.ports, port)
	c.portByName[port.AsRemote()] = port

	port.SetConnection(c)
}

// Unplug marks the port as no longer connected to this DirectConnection.
func (c *Comp) Unplug(_ sim.Port) {
	panic("not implemented")
}

// NotifyAvailable is called by a port to notify that the connection can
// deliver to the port again.
func (c *Comp) NotifyAvailable(p sim.Port) {
	for _, port := range c.ports {
		if port == p {
			continue
		}

		port.NotifyAvailable()
	}

	c.TickNow()
}

// NotifySend is called by a port to notify that the connection can start to
// tick now.
func (c *Comp) NotifySend() {
	c.TickNow()
}

// Tick updates the states of the connection and delivers messages.
func (c *Comp) Tick() bool {
	madeProgress := false

	for i := 0; i < len(c.ports); i++ {
		portID := (i + c.nextPortID) % len(c.ports)
		port := c.ports[portID]
		madeProgress = c.forwardMany(port) || madeProgress
	}

	c.nextPortID = (c.nextPortID + 1) % len(c.ports)

	return madeProgress
}

func (c *Comp) forwardMany(port sim.Port) bool {
	madeProgress := false

	for {
		head := port.PeekOutgoing()
		if head == nil {
			break
		}

		dst, found := c.portByName[head.Meta().Dst]
		if !found {
			panic("destination port " + string(head.Meta().Dst) +
				" is not connected to " + c.Name())
		}

		err := dst.Deliver(head)
		if err != nil {
			break
		}

		madeProgress = true
		port.RetrieveOutgoing()
	}

	return madeProgress
}
