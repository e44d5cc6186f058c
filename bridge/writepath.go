package bridge

import (
	"log"
	"reflect"

	"github.com/sarchlab/widthbridge/store"
)

type writeState int

const (
	writeCalibrating writeState = iota
	writeIdle
	writeStarting
	writeWriting
)

// A writeTransaction carries all the state that belongs to one write
// transaction. It is created when a request is admitted and dropped when the
// state machine returns to idle, so no transaction state can leak into the
// next one.
type writeTransaction struct {
	req *WriteReq

	wordCountRemaining int
	seq                addressSequencer
	pk                 packer

	// strobePending is set when a wide-word boundary has completed but the
	// store has not accepted the write strobe yet. While it is set, no
	// further source words are accepted.
	strobePending bool
	rspPending    bool
}

// writePath implements the write-direction transaction state machine.
type writePath struct {
	comp *Comp

	state writeState
	trans *writeTransaction
}

func (p *writePath) tick() bool {
	switch p.state {
	case writeCalibrating:
		return false
	case writeIdle:
		return p.admitTransaction()
	case writeStarting:
		return p.acceptWord()
	case writeWriting:
		return p.writeCycle()
	default:
		log.Panicf("invalid write state %d", p.state)
	}

	return false
}

// admitTransaction claims a pending write request. The transaction
// descriptor is captured once here and owned by the state machine until the
// transaction completes.
func (p *writePath) admitTransaction() bool {
	msg := p.comp.writeCtrlPort.PeekIncoming()
	if msg == nil {
		return false
	}

	req, ok := msg.(*WriteReq)
	if !ok {
		log.Panicf("cannot process message of type %s", reflect.TypeOf(msg))
	}

	p.comp.wordCountMustBeValid(req.WordCount)

	trans := &writeTransaction{
		req:                req,
		wordCountRemaining: req.WordCount,
		seq: newAddressSequencer(
			req.Address, p.comp.burstStride),
		pk: newPacker(p.comp.wideWordBytes, p.comp.narrowWordBytes),
	}
	trans.pk.beginBoundary(p.boundaryWords(trans))

	p.trans = trans
	p.state = writeStarting

	p.comp.writeCtrlPort.RetrieveIncoming()

	return true
}

// boundaryWords returns the number of narrow words of the next wide-word
// boundary: a full wide word, or exactly the remaining words if fewer are
// left.
func (p *writePath) boundaryWords(trans *writeTransaction) int {
	return min(trans.wordCountRemaining, p.comp.ratio)
}

// acceptWord takes one narrow word from the source and packs it. A boundary
// that completes arms the write strobe, which blocks further word acceptance
// until the store takes the strobe.
func (p *writePath) acceptWord() bool {
	msg := p.comp.writeDataPort.PeekIncoming()
	if msg == nil {
		return false
	}

	data, ok := msg.(*StreamData)
	if !ok {
		log.Panicf("cannot process message of type %s", reflect.TypeOf(msg))
	}

	trans := p.trans
	trans.pk.push(data.Data)
	trans.wordCountRemaining--

	p.comp.writeDataPort.RetrieveIncoming()

	if trans.pk.boundaryComplete() {
		trans.strobePending = true
	}

	p.state = writeWriting

	return true
}

func (p *writePath) writeCycle() bool {
	trans := p.trans

	if trans.rspPending {
		return p.completeTransaction()
	}

	if trans.strobePending {
		return p.emitStrobe()
	}

	return p.acceptWord()
}

// emitStrobe sends the packed wide word to the store as a one-shot write
// strobe. The command and the data beat go out in the same cycle, gated on
// both store channels being ready; a stalled store leaves the strobe armed
// and the counters untouched, so the transaction resumes consistently once
// the stall clears.
func (p *writePath) emitStrobe() bool {
	trans := p.trans

	if !p.comp.storeCmdPort.CanSend() || !p.comp.storeWritePort.CanSend() {
		return false
	}

	data, mask := trans.pk.wideWord()

	op := store.OpWrite
	if trans.pk.partial() {
		op = store.OpWriteBytes
	}

	cmd := store.CommandBuilder{}.
		WithSrc(p.comp.storeCmdPort.AsRemote()).
		WithDst(p.comp.storeCmdDst).
		WithAddress(trans.seq.current).
		WithOp(op).
		Build()

	beat := store.WriteDataBuilder{}.
		WithSrc(p.comp.storeWritePort.AsRemote()).
		WithDst(p.comp.storeWriteDst).
		WithData(data).
		WithByteMask(mask).
		Build()

	// CanSend held for both ports, so neither send can fail.
	if err := p.comp.storeCmdPort.Send(cmd); err != nil {
		log.Panic("store command port rejected a gated send")
	}

	if err := p.comp.storeWritePort.Send(beat); err != nil {
		log.Panic("store write port rejected a gated send")
	}

	trans.strobePending = false
	trans.seq.advance()

	if trans.wordCountRemaining == 0 {
		trans.rspPending = true
		return true
	}

	trans.pk.beginBoundary(p.boundaryWords(trans))

	return true
}

// completeTransaction reports the completion to the requester and returns
// the state machine to idle, ready to accept an unrelated transaction.
func (p *writePath) completeTransaction() bool {
	rsp := p.trans.req.GenerateRsp(p.comp.writeCtrlPort.AsRemote())

	err := p.comp.writeCtrlPort.Send(rsp)
	if err != nil {
		return false
	}

	p.trans = nil
	p.state = writeIdle

	return true
}

func (p *writePath) reset() {
	p.state = writeCalibrating
	p.trans = nil
}
