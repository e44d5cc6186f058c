// Package acceptance provides utility data structure definitions for writing
// bridge acceptance tests.
package acceptance

import (
	"bytes"
	"log"
	"reflect"

	"github.com/sarchlab/widthbridge/bridge"
	"github.com/sarchlab/widthbridge/sim"
)

// A Transaction describes one write or read to run through the bridge. For
// writes, Words holds the data to stream in. For reads, Words holds the data
// the agent expects to receive, computed from the shadow store at generation
// time. Gaps[i] is the number of cycles the agent stays unready before
// offering (writes) or accepting (reads) word i.
type Transaction struct {
	IsWrite bool
	Address uint64
	Words   [][]byte
	Gaps    []int
}

// A SourceAgent drives transactions through a bridge, one at a time, and
// checks the data coming back. It reports each completed transaction to the
// test it belongs to.
type SourceAgent struct {
	*sim.TickingComponent
	test *Test

	writeCtrlPort sim.Port
	writeDataPort sim.Port
	readCtrlPort  sim.Port
	readDataPort  sim.Port

	bridgeWriteCtrl sim.RemotePort
	bridgeWriteData sim.RemotePort
	bridgeReadCtrl  sim.RemotePort

	pending []*Transaction
	current *Transaction

	reqSent   bool
	wordIndex int
	gapLeft   int
}

// NewSourceAgent creates a new source agent.
func NewSourceAgent(
	engine sim.Engine,
	name string,
	test *Test,
) *SourceAgent {
	a := &SourceAgent{}
	a.test = test
	a.TickingComponent = sim.NewTickingComponent(name, engine, a)

	a.writeCtrlPort = sim.NewPort(a, 1, 1, name+".WriteCtrl")
	a.writeDataPort = sim.NewPort(a, 1, 1, name+".WriteData")
	a.readCtrlPort = sim.NewPort(a, 1, 1, name+".ReadCtrl")
	a.readDataPort = sim.NewPort(a, 1, 1, name+".ReadData")

	a.AddPort("WriteCtrl", a.writeCtrlPort)
	a.AddPort("WriteData", a.writeDataPort)
	a.AddPort("ReadCtrl", a.readCtrlPort)
	a.AddPort("ReadData", a.readDataPort)

	return a
}

// ConnectBridge records the bridge ports the agent talks to.
func (a *SourceAgent) ConnectBridge(b *bridge.Comp) {
	a.bridgeWriteCtrl = b.GetPortByName("WriteCtrl").AsRemote()
	a.bridgeWriteData = b.GetPortByName("WriteData").AsRemote()
	a.bridgeReadCtrl = b.GetPortByName("ReadCtrl").AsRemote()
}

// AddTransaction queues a transaction to run after the ones already queued.
func (a *SourceAgent) AddTransaction(t *Transaction) {
	a.pending = append(a.pending, t)
}

// Tick runs the current transaction forward by one cycle.
func (a *SourceAgent) Tick() bool {
	if a.current == nil {
		return a.startNextTransaction()
	}

	if !a.reqSent {
		return a.sendReq()
	}

	if a.current.IsWrite {
		return a.writeTick()
	}

	return a.readTick()
}

func (a *SourceAgent) startNextTransaction() bool {
	if len(a.pending) == 0 {
		return false
	}

	a.current = a.pending[0]
	a.pending = a.pending[1:]
	a.reqSent = false
	a.wordIndex = 0
	a.gapLeft = 0

	return true
}

func (a *SourceAgent) sendReq() bool {
	t := a.current

	var req sim.Msg
	if t.IsWrite {
		req = bridge.WriteReqBuilder{}.
			WithSrc(a.writeCtrlPort.AsRemote()).
			WithDst(a.bridgeWriteCtrl).
			WithAddress(t.Address).
			WithWordCount(len(t.Words)).
			Build()
		if err := a.writeCtrlPort.Send(req); err != nil {
			return false
		}
	} else {
		req = bridge.ReadReqBuilder{}.
			WithSrc(a.readCtrlPort.AsRemote()).
			WithDst(a.bridgeReadCtrl).
			WithDataDst(a.readDataPort.AsRemote()).
			WithAddress(t.Address).
			WithWordCount(len(t.Words)).
			Build()
		if err := a.readCtrlPort.Send(req); err != nil {
			return false
		}
	}

	a.reqSent = true
	a.gapLeft = t.Gaps[0]

	return true
}

func (a *SourceAgent) writeTick() bool {
	t := a.current

	if a.wordIndex == len(t.Words) {
		return a.awaitRsp(a.writeCtrlPort)
	}

	if a.gapLeft > 0 {
		a.gapLeft--
		return true
	}

	data := bridge.StreamDataBuilder{}.
		WithSrc(a.writeDataPort.AsRemote()).
		WithDst(a.bridgeWriteData).
		WithData(t.Words[a.wordIndex]).
		Build()

	if err := a.writeDataPort.Send(data); err != nil {
		return false
	}

	a.wordIndex++
	if a.wordIndex < len(t.Words) {
		a.gapLeft = t.Gaps[a.wordIndex]
	}

	return true
}

// readTick models the consumer side of the stream. While gapLeft is positive
// the agent leaves arrived words sitting in its port, which is what stalls
// the bridge.
func (a *SourceAgent) readTick() bool {
	t := a.current

	if a.wordIndex == len(t.Words) {
		return a.awaitRsp(a.readCtrlPort)
	}

	if a.gapLeft > 0 {
		a.gapLeft--
		return true
	}

	msg := a.readDataPort.RetrieveIncoming()
	if msg == nil {
		return false
	}

	data, ok := msg.(*bridge.StreamData)
	if !ok {
		log.Panicf("cannot process message of type %s", reflect.TypeOf(msg))
	}

	if !bytes.Equal(data.Data, t.Words[a.wordIndex]) {
		log.Panicf("transaction at 0x%X, word %d: got %v, want %v",
			t.Address, a.wordIndex, data.Data, t.Words[a.wordIndex])
	}

	a.wordIndex++
	if a.wordIndex < len(t.Words) {
		a.gapLeft = t.Gaps[a.wordIndex]
	}

	return true
}

func (a *SourceAgent) awaitRsp(port sim.Port) bool {
	msg := port.RetrieveIncoming()
	if msg == nil {
		return false
	}

	if _, ok := msg.(*sim.GeneralRsp); !ok {
		log.Panicf("cannot process message of type %s", reflect.TypeOf(msg))
	}

	a.test.completeTransaction(a.current)
	a.current = nil

	return true
}
