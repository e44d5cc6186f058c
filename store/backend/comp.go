// Package backend provides a wide-word memory backend. It calibrates for a
// configurable number of cycles, then serves write strobes and read bursts
// on the store bus. Backpressure is only ever exercised at wide-word
// boundaries, never in the middle of a word.
package backend

import (
	"log"
	"reflect"

	"github.com/sarchlab/widthbridge/sim"
	"github.com/sarchlab/widthbridge/store"
)

type calibrationDoneEvent struct {
	*sim.EventBase
}

// A readBurst tracks the streaming state of one accepted read command.
type readBurst struct {
	nextAddr  uint64
	wordsLeft int
}

// Comp is a memory backend that stores and serves wide words.
type Comp struct {
	*sim.TickingComponent

	CmdPort   sim.Port
	WritePort sim.Port
	ReadPort  sim.Port

	Storage *store.Storage

	wideWordBytes      int
	burstStride        uint64
	calibrationLatency sim.VCycle
	calibrationTarget  sim.RemotePort
	readDataTarget     sim.RemotePort

	// writeStall is the number of cycles the backend holds its ready low
	// after accepting each write strobe.
	writeStall int
	// readInterval is the number of idle cycles between two read words.
	readInterval int
	// latency is the number of cycles between read-command acceptance and
	// the first read word.
	latency int

	calibrated      bool
	calibrationSent bool
	stallLeft       int
	delayLeft       int
	currentBurst    *readBurst

	numWriteStrobe int
}

// Handle processes the events scheduled on the backend.
func (c *Comp) Handle(e sim.Event) error {
	switch e := e.(type) {
	case *calibrationDoneEvent:
		c.calibrated = true
		c.TickLater()
		return nil
	case sim.TickEvent:
		return c.TickingComponent.Handle(e)
	default:
		log.Panicf("cannot handle event of type %s", reflect.TypeOf(e))
	}

	return nil
}

// Tick updates the backend state.
func (c *Comp) Tick() bool {
	madeProgress := false

	madeProgress = c.announceCalibration() || madeProgress

	if !c.calibrated {
		return madeProgress
	}

	if c.stallLeft > 0 {
		c.stallLeft--
		return true
	}

	madeProgress = c.streamReadData() || madeProgress
	madeProgress = c.processCommand() || madeProgress

	return madeProgress
}

// NumWriteStrobe returns the number of write strobes accepted so far.
func (c *Comp) NumWriteStrobe() int {
	return c.numWriteStrobe
}

func (c *Comp) announceCalibration() bool {
	if !c.calibrated || c.calibrationSent {
		return false
	}

	done := store.NewCalibrationDone(
		c.CmdPort.AsRemote(), c.calibrationTarget)

	err := c.CmdPort.Send(done)
	if err != nil {
		return false
	}

	c.calibrationSent = true

	return true
}

func (c *Comp) processCommand() bool {
	msg := c.CmdPort.PeekIncoming()
	if msg == nil {
		return false
	}

	cmd, ok := msg.(*store.Command)
	if !ok {
		log.Panicf("cannot process message of type %s", reflect.TypeOf(msg))
	}

	switch cmd.Op {
	case store.OpWrite, store.OpWriteBytes:
		return c.processWrite(cmd)
	case store.OpRead:
		return c.processRead(cmd)
	default:
		log.Panicf("unknown command code %d", cmd.Op)
	}

	return false
}

func (c *Comp) processWrite(cmd *store.Command) bool {
	msg := c.WritePort.PeekIncoming()
	if msg == nil {
		return false
	}

	data, ok := msg.(*store.WriteData)
	if !ok {
		log.Panicf("cannot process message of type %s", reflect.TypeOf(msg))
	}

	if len(data.Data) != c.wideWordBytes {
		log.Panicf("write data must be exactly %d bytes", c.wideWordBytes)
	}

	var err error
	if cmd.Op == store.OpWriteBytes {
		err = c.Storage.WriteMasked(cmd.Address, data.Data, data.ByteMask)
	} else {
		err = c.Storage.Write(cmd.Address, data.Data)
	}

	if err != nil {
		log.Panic(err)
	}

	c.CmdPort.RetrieveIncoming()
	c.WritePort.RetrieveIncoming()

	c.numWriteStrobe++
	c.stallLeft = c.writeStall

	return true
}

func (c *Comp) processRead(cmd *store.Command) bool {
	if c.currentBurst != nil {
		return false
	}

	c.currentBurst = &readBurst{
		nextAddr:  cmd.Address,
		wordsLeft: cmd.BurstLen,
	}
	c.delayLeft = c.latency

	c.CmdPort.RetrieveIncoming()

	return true
}

func (c *Comp) streamReadData() bool {
	if c.currentBurst == nil {
		return false
	}

	if c.delayLeft > 0 {
		c.delayLeft--
		return true
	}

	burst := c.currentBurst

	data, err := c.Storage.Read(burst.nextAddr, uint64(c.wideWordBytes))
	if err != nil {
		log.Panic(err)
	}

	rsp := store.ReadDataBuilder{}.
		WithSrc(c.ReadPort.AsRemote()).
		WithDst(c.readDataTarget).
		WithData(data).
		Build()

	sendErr := c.ReadPort.Send(rsp)
	if sendErr != nil {
		return false
	}

	burst.nextAddr += c.burstStride
	burst.wordsLeft--
	c.delayLeft = c.readInterval

	if burst.wordsLeft == 0 {
		c.currentBurst = nil
	}

	return true
}
