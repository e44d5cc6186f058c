// Package store defines the wide, store-side bus protocol. All payloads are
// byte slices of exactly one wide word, with index 0 holding the most
// significant byte.
package store

import (
	"reflect"

	"github.com/sarchlab/widthbridge/sim"
)

// An Opcode is a 3-bit command code on the store command bus.
type Opcode uint8

// The command codes that the backend understands.
const (
	OpWrite      Opcode = 0b000
	OpRead       Opcode = 0b001
	OpWriteBytes Opcode = 0b011
)

// A Command is sent to the backend to start a burst. Acceptance of the
// message models the backend's command-ready signal.
type Command struct {
	sim.MsgMeta

	Address uint64
	Op      Opcode

	// BurstLen is the number of wide words the backend streams back for a
	// read command. It is ignored for writes, which carry one wide word per
	// command.
	BurstLen int
}

// Meta returns the meta data of the message.
func (c *Command) Meta() *sim.MsgMeta {
	return &c.MsgMeta
}

// Clone creates a copy of the command with a new ID.
func (c *Command) Clone() sim.Msg {
	cloneMsg := *c
	cloneMsg.ID = sim.GetIDGenerator().Generate()

	return &cloneMsg
}

// CommandBuilder can build store commands.
type CommandBuilder struct {
	src, dst sim.RemotePort
	address  uint64
	op       Opcode
	burstLen int
}

// WithSrc sets the source of the command.
func (b CommandBuilder) WithSrc(src sim.RemotePort) CommandBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the command.
func (b CommandBuilder) WithDst(dst sim.RemotePort) CommandBuilder {
	b.dst = dst
	return b
}

// WithAddress sets the start address of the burst.
func (b CommandBuilder) WithAddress(address uint64) CommandBuilder {
	b.address = address
	return b
}

// WithOp sets the command code.
func (b CommandBuilder) WithOp(op Opcode) CommandBuilder {
	b.op = op
	return b
}

// WithBurstLen sets the number of wide words of a read burst.
func (b CommandBuilder) WithBurstLen(n int) CommandBuilder {
	b.burstLen = n
	return b
}

// Build creates a new Command.
func (b CommandBuilder) Build() *Command {
	c := &Command{}
	c.ID = sim.GetIDGenerator().Generate()
	c.Src = b.src
	c.Dst = b.dst
	c.TrafficClass = reflect.TypeOf(Command{}).String()
	c.Address = b.address
	c.Op = b.op
	c.BurstLen = b.burstLen

	return c
}

// WriteData carries one wide word of write payload together with its byte
// mask. One WriteData message corresponds to one write strobe on the bus.
type WriteData struct {
	sim.MsgMeta

	Data []byte

	// ByteMask has one entry per payload byte. True marks a byte that is
	// masked OUT and must not be written.
	ByteMask []bool

	// Last marks the final data beat of a store burst. The bridge never
	// produces multi-beat store bursts, so Last always holds.
	Last bool
}

// Meta returns the meta data of the message.
func (w *WriteData) Meta() *sim.MsgMeta {
	return &w.MsgMeta
}

// Clone creates a copy of the message with a new ID.
func (w *WriteData) Clone() sim.Msg {
	cloneMsg := *w
	cloneMsg.ID = sim.GetIDGenerator().Generate()

	return &cloneMsg
}

// WriteDataBuilder can build write data messages.
type WriteDataBuilder struct {
	src, dst sim.RemotePort
	data     []byte
	byteMask []bool
}

// WithSrc sets the source of the message.
func (b WriteDataBuilder) WithSrc(src sim.RemotePort) WriteDataBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the message.
func (b WriteDataBuilder) WithDst(dst sim.RemotePort) WriteDataBuilder {
	b.dst = dst
	return b
}

// WithData sets the wide-word payload.
func (b WriteDataBuilder) WithData(data []byte) WriteDataBuilder {
	b.data = data
	return b
}

// WithByteMask sets the byte mask of the payload.
func (b WriteDataBuilder) WithByteMask(mask []bool) WriteDataBuilder {
	b.byteMask = mask
	return b
}

// Build creates a new WriteData message.
func (b WriteDataBuilder) Build() *WriteData {
	w := &WriteData{}
	w.ID = sim.GetIDGenerator().Generate()
	w.Src = b.src
	w.Dst = b.dst
	w.TrafficClass = reflect.TypeOf(WriteData{}).String()
	w.TrafficBytes = len(b.data)
	w.Data = b.data
	w.ByteMask = b.byteMask
	w.Last = true

	return w
}

// ReadData carries one wide word of read payload from the backend to the
// bridge.
type ReadData struct {
	sim.MsgMeta

	Data []byte
}

// Meta returns the meta data of the message.
func (r *ReadData) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// Clone creates a copy of the message with a new ID.
func (r *ReadData) Clone() sim.Msg {
	cloneMsg := *r
	cloneMsg.ID = sim.GetIDGenerator().Generate()

	return &cloneMsg
}

// ReadDataBuilder can build read data messages.
type ReadDataBuilder struct {
	src, dst sim.RemotePort
	data     []byte
}

// WithSrc sets the source of the message.
func (b ReadDataBuilder) WithSrc(src sim.RemotePort) ReadDataBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the message.
func (b ReadDataBuilder) WithDst(dst sim.RemotePort) ReadDataBuilder {
	b.dst = dst
	return b
}

// WithData sets the wide-word payload.
func (b ReadDataBuilder) WithData(data []byte) ReadDataBuilder {
	b.data = data
	return b
}

// Build creates a new ReadData message.
func (b ReadDataBuilder) Build() *ReadData {
	r := &ReadData{}
	r.ID = sim.GetIDGenerator().Generate()
	r.Src = b.src
	r.Dst = b.dst
	r.TrafficClass = reflect.TypeOf(ReadData{}).String()
	r.TrafficBytes = len(b.data)
	r.Data = b.data

	return r
}

// CalibrationDone tells the bridge that the backend finished calibrating and
// can accept traffic. Both bridge state machines hold in their reset state
// until this message arrives.
type CalibrationDone struct {
	sim.MsgMeta
}

// Meta returns the meta data of the message.
func (c *CalibrationDone) Meta() *sim.MsgMeta {
	return &c.MsgMeta
}

// Clone creates a copy of the message with a new ID.
func (c *CalibrationDone) Clone() sim.Msg {
	cloneMsg := *c
	cloneMsg.ID = sim.GetIDGenerator().Generate()

	return &cloneMsg
}

// NewCalibrationDone creates a CalibrationDone message.
func NewCalibrationDone(src, dst sim.RemotePort) *CalibrationDone {
	c := &CalibrationDone{}
	c.ID = sim.GetIDGenerator().Generate()
	c.Src = src
	c.Dst = dst
	c.TrafficClass = reflect.TypeOf(CalibrationDone{}).String()

	return c
}
