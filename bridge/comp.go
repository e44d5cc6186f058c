// Package bridge implements a width-adapting transaction bridge. It accepts
// word-count-based read and write transactions from a narrow source, turns
// them into address-incrementing burst commands on a wide store bus, and
// packs or unpacks the data between the two word widths. The wide word width
// must be an integer multiple of the narrow one.
//
// The write path and the read path are two independent state machines; at
// most one transaction per direction is in flight, and concurrent activation
// of both directions is outside the supported contract.
package bridge

import (
	"log"
	"reflect"

	"github.com/sarchlab/widthbridge/sim"
	"github.com/sarchlab/widthbridge/store"
)

// Comp is the bridge component.
type Comp struct {
	*sim.TickingComponent

	writeCtrlPort sim.Port
	writeDataPort sim.Port
	readCtrlPort  sim.Port
	readDataPort  sim.Port

	storeCmdPort   sim.Port
	storeWritePort sim.Port
	storeReadPort  sim.Port

	storeCmdDst   sim.RemotePort
	storeWriteDst sim.RemotePort

	narrowWordBytes int
	wideWordBytes   int
	ratio           int
	burstStride     uint64
	maxWordCount    int

	write writePath
	read  readPath
}

// Tick updates the bridge by one cycle.
func (c *Comp) Tick() bool {
	madeProgress := false

	madeProgress = c.processCalibration() || madeProgress
	madeProgress = c.write.tick() || madeProgress
	madeProgress = c.read.tick() || madeProgress

	return madeProgress
}

// processCalibration releases both state machines from their reset state
// once the backend reports itself calibrated.
func (c *Comp) processCalibration() bool {
	msg := c.storeCmdPort.PeekIncoming()
	if msg == nil {
		return false
	}

	if _, ok := msg.(*store.CalibrationDone); !ok {
		log.Panicf("cannot process message of type %s", reflect.TypeOf(msg))
	}

	c.storeCmdPort.RetrieveIncoming()

	if c.write.state == writeCalibrating {
		c.write.state = writeIdle
	}

	if c.read.state == readCalibrating {
		c.read.state = readIdle
	}

	return true
}

// Reset forces both state machines back to their calibrating state and
// discards all in-flight transaction state. It is the only way to abandon an
// admitted transaction.
func (c *Comp) Reset() {
	c.write.reset()
	c.read.reset()
}

// Ratio returns the number of narrow words per wide word.
func (c *Comp) Ratio() int {
	return c.ratio
}

// WriteBurstAddress returns the current store address of the active write
// transaction. It is only meaningful while a write transaction is in flight.
func (c *Comp) WriteBurstAddress() uint64 {
	if c.write.trans == nil {
		return 0
	}

	return c.write.trans.seq.current
}

// ReadBurstAddress returns the current store address of the active read
// transaction. It is only meaningful while a read transaction is in flight.
func (c *Comp) ReadBurstAddress() uint64 {
	if c.read.trans == nil {
		return 0
	}

	return c.read.trans.seq.current
}

func (c *Comp) wordCountMustBeValid(n int) {
	if n < 1 || n > c.maxWordCount {
		log.Panicf("word count %d outside the range 1..%d", n, c.maxWordCount)
	}
}
