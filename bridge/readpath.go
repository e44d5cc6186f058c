package bridge

import (
	"log"
	"reflect"

	"github.com/sarchlab/widthbridge/store"
)

type readState int

const (
	readCalibrating readState = iota
	readIdle
	readStarting
	readReading
	readRecovery
)

// A readTransaction carries all the state that belongs to one read
// transaction. The word count is cached twice at admission: once at narrow
// granularity for data delivery, once at wide granularity for address
// advancement. The two drift apart because the backend accepts addresses on
// its own timing, decoupled from data delivery to the consumer.
type readTransaction struct {
	req *ReadReq

	wordCountRemaining  int
	burstCountRemaining int
	seq                 addressSequencer

	up unpacker

	// stash holds a wide word that arrived in the same cycle the consumer
	// was not ready, while the primary buffer could not take it for
	// delivery. It is promoted once the consumer is ready again.
	stash []byte

	cmdPending bool
	rspPending bool
}

// readPath implements the read-direction transaction state machine.
type readPath struct {
	comp *Comp

	state readState
	trans *readTransaction
}

func (p *readPath) tick() bool {
	switch p.state {
	case readCalibrating:
		return false
	case readIdle:
		return p.admitTransaction()
	case readStarting:
		return p.awaitFirstWord()
	case readReading:
		return p.readCycle()
	case readRecovery:
		return p.recover()
	default:
		log.Panicf("invalid read state %d", p.state)
	}

	return false
}

func (p *readPath) admitTransaction() bool {
	msg := p.comp.readCtrlPort.PeekIncoming()
	if msg == nil {
		return false
	}

	req, ok := msg.(*ReadReq)
	if !ok {
		log.Panicf("cannot process message of type %s", reflect.TypeOf(msg))
	}

	p.comp.wordCountMustBeValid(req.WordCount)

	if req.DataDst == "" {
		log.Panic("read request carries no data destination")
	}

	bursts := (req.WordCount + p.comp.ratio - 1) / p.comp.ratio

	p.trans = &readTransaction{
		req:                 req,
		wordCountRemaining:  req.WordCount,
		burstCountRemaining: bursts,
		seq: newAddressSequencer(
			req.Address, p.comp.burstStride),
		up:         newUnpacker(p.comp.wideWordBytes, p.comp.narrowWordBytes),
		cmdPending: true,
	}
	p.state = readStarting

	p.comp.readCtrlPort.RetrieveIncoming()
	p.issueCommand()

	return true
}

// issueCommand sends the burst read command for the whole transaction. A
// stalled store keeps the command pending; it is retried every cycle until
// accepted.
func (p *readPath) issueCommand() bool {
	trans := p.trans

	cmd := store.CommandBuilder{}.
		WithSrc(p.comp.storeCmdPort.AsRemote()).
		WithDst(p.comp.storeCmdDst).
		WithAddress(trans.req.Address).
		WithOp(store.OpRead).
		WithBurstLen(trans.burstCountRemaining).
		Build()

	err := p.comp.storeCmdPort.Send(cmd)
	if err != nil {
		return false
	}

	trans.cmdPending = false

	return true
}

// awaitFirstWord arms the completion counter and waits for the first wide
// word from the store.
func (p *readPath) awaitFirstWord() bool {
	trans := p.trans

	if trans.cmdPending {
		return p.issueCommand()
	}

	if !p.latchNextWord() {
		return false
	}

	p.state = readReading

	return true
}

// latchNextWord moves a pending wide word from the store port into the
// primary unpack buffer and advances the burst address owed to the backend.
func (p *readPath) latchNextWord() bool {
	msg := p.comp.storeReadPort.PeekIncoming()
	if msg == nil {
		return false
	}

	data, ok := msg.(*store.ReadData)
	if !ok {
		log.Panicf("cannot process message of type %s", reflect.TypeOf(msg))
	}

	trans := p.trans
	trans.up.latch(data.Data, min(trans.wordCountRemaining, p.comp.ratio))

	p.comp.storeReadPort.RetrieveIncoming()
	p.advanceBurstAddress()

	return true
}

// advanceBurstAddress advances the cached burst address each time the
// backend hands over a wide word, until only the last burst remains. The
// last burst needs no further increment.
func (p *readPath) advanceBurstAddress() {
	trans := p.trans

	if trans.burstCountRemaining > 1 {
		trans.seq.advance()
	}

	trans.burstCountRemaining--
}

func (p *readPath) readCycle() bool {
	trans := p.trans

	if trans.rspPending {
		return p.completeTransaction()
	}

	madeProgress := p.deliverWord()

	if trans.rspPending {
		return madeProgress
	}

	madeProgress = p.refill() || madeProgress

	return madeProgress
}

// deliverWord exposes the next narrow word to the consumer and, when the
// consumer takes it, steps the counters.
func (p *readPath) deliverWord() bool {
	trans := p.trans

	if trans.up.drained() {
		return false
	}

	if !p.comp.readDataPort.CanSend() {
		return false
	}

	word := make([]byte, p.comp.narrowWordBytes)
	copy(word, trans.up.peekWord())

	data := StreamDataBuilder{}.
		WithSrc(p.comp.readDataPort.AsRemote()).
		WithDst(trans.req.DataDst).
		WithData(word).
		Build()

	if err := p.comp.readDataPort.Send(data); err != nil {
		log.Panic("read data port rejected a gated send")
	}

	trans.up.consume()
	trans.wordCountRemaining--

	if trans.wordCountRemaining == 0 {
		trans.rspPending = true
	}

	return true
}

// refill latches the next wide word once the current one is drained. A word
// that arrives while the consumer is stalled cannot be placed in the primary
// buffer for delivery; it is stashed in the secondary buffer and the state
// machine enters the recovery state.
func (p *readPath) refill() bool {
	trans := p.trans

	if !trans.up.drained() {
		return false
	}

	msg := p.comp.storeReadPort.PeekIncoming()
	if msg == nil {
		return false
	}

	if p.comp.readDataPort.CanSend() {
		return p.latchNextWord()
	}

	data, ok := msg.(*store.ReadData)
	if !ok {
		log.Panicf("cannot process message of type %s", reflect.TypeOf(msg))
	}

	trans.stash = data.Data
	p.comp.storeReadPort.RetrieveIncoming()
	p.advanceBurstAddress()

	p.state = readRecovery

	return true
}

// recover waits for the consumer to become ready, promotes the stashed wide
// word into the primary buffer, delivers one word, and returns to the
// reading state with the completion counter recomputed exactly as at the
// starting/reading boundary.
func (p *readPath) recover() bool {
	trans := p.trans

	if !p.comp.readDataPort.CanSend() {
		return false
	}

	trans.up.latch(trans.stash, min(trans.wordCountRemaining, p.comp.ratio))
	trans.stash = nil

	if !p.deliverWord() {
		log.Panic("promoted word must be deliverable")
	}

	p.state = readReading

	return true
}

func (p *readPath) completeTransaction() bool {
	rsp := p.trans.req.GenerateRsp(p.comp.readCtrlPort.AsRemote())

	err := p.comp.readCtrlPort.Send(rsp)
	if err != nil {
		return false
	}

	p.trans = nil
	p.state = readIdle

	return true
}

func (p *readPath) reset() {
	p.state = readCalibrating
	p.trans = nil
}
