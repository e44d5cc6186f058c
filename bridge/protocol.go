package bridge

import (
	"reflect"

	"github.com/sarchlab/widthbridge/sim"
)

// A WriteReq asks the bridge to write WordCount narrow words, streamed as
// StreamData messages, to the store starting at Address.
type WriteReq struct {
	sim.MsgMeta

	Address   uint64
	WordCount int
}

// Meta returns the meta data of the message.
func (r *WriteReq) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// Clone creates a copy of the request with a new ID.
func (r *WriteReq) Clone() sim.Msg {
	cloneMsg := *r
	cloneMsg.ID = sim.GetIDGenerator().Generate()

	return &cloneMsg
}

// GenerateRsp creates a completion response for the request.
func (r *WriteReq) GenerateRsp(src sim.RemotePort) sim.Msg {
	return sim.GeneralRspBuilder{}.
		WithSrc(src).
		WithDst(r.Src).
		WithOriginalReq(r).
		Build()
}

// WriteReqBuilder can build write transaction requests.
type WriteReqBuilder struct {
	src, dst  sim.RemotePort
	address   uint64
	wordCount int
}

// WithSrc sets the source of the request.
func (b WriteReqBuilder) WithSrc(src sim.RemotePort) WriteReqBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the request. It should be the bridge's
// WriteCtrl port.
func (b WriteReqBuilder) WithDst(dst sim.RemotePort) WriteReqBuilder {
	b.dst = dst
	return b
}

// WithAddress sets the store start address of the transaction.
func (b WriteReqBuilder) WithAddress(address uint64) WriteReqBuilder {
	b.address = address
	return b
}

// WithWordCount sets the number of narrow words of the transaction.
func (b WriteReqBuilder) WithWordCount(n int) WriteReqBuilder {
	b.wordCount = n
	return b
}

// Build creates a new WriteReq.
func (b WriteReqBuilder) Build() *WriteReq {
	r := &WriteReq{}
	r.ID = sim.GetIDGenerator().Generate()
	r.Src = b.src
	r.Dst = b.dst
	r.TrafficClass = reflect.TypeOf(WriteReq{}).String()
	r.Address = b.address
	r.WordCount = b.wordCount

	return r
}

// A ReadReq asks the bridge to read WordCount narrow words from the store
// starting at Address and stream them back as StreamData messages. The
// stream goes to DataDst; the completion response goes back to Src.
type ReadReq struct {
	sim.MsgMeta

	Address   uint64
	WordCount int
	DataDst   sim.RemotePort
}

// Meta returns the meta data of the message.
func (r *ReadReq) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// Clone creates a copy of the request with a new ID.
func (r *ReadReq) Clone() sim.Msg {
	cloneMsg := *r
	cloneMsg.ID = sim.GetIDGenerator().Generate()

	return &cloneMsg
}

// GenerateRsp creates a completion response for the request.
func (r *ReadReq) GenerateRsp(src sim.RemotePort) sim.Msg {
	return sim.GeneralRspBuilder{}.
		WithSrc(src).
		WithDst(r.Src).
		WithOriginalReq(r).
		Build()
}

// ReadReqBuilder can build read transaction requests.
type ReadReqBuilder struct {
	src, dst  sim.RemotePort
	dataDst   sim.RemotePort
	address   uint64
	wordCount int
}

// WithSrc sets the source of the request.
func (b ReadReqBuilder) WithSrc(src sim.RemotePort) ReadReqBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the request. It should be the bridge's
// ReadCtrl port.
func (b ReadReqBuilder) WithDst(dst sim.RemotePort) ReadReqBuilder {
	b.dst = dst
	return b
}

// WithDataDst sets the port that receives the streamed words.
func (b ReadReqBuilder) WithDataDst(dataDst sim.RemotePort) ReadReqBuilder {
	b.dataDst = dataDst
	return b
}

// WithAddress sets the store start address of the transaction.
func (b ReadReqBuilder) WithAddress(address uint64) ReadReqBuilder {
	b.address = address
	return b
}

// WithWordCount sets the number of narrow words of the transaction.
func (b ReadReqBuilder) WithWordCount(n int) ReadReqBuilder {
	b.wordCount = n
	return b
}

// Build creates a new ReadReq.
func (b ReadReqBuilder) Build() *ReadReq {
	r := &ReadReq{}
	r.ID = sim.GetIDGenerator().Generate()
	r.Src = b.src
	r.Dst = b.dst
	r.TrafficClass = reflect.TypeOf(ReadReq{}).String()
	r.Address = b.address
	r.WordCount = b.wordCount
	r.DataDst = b.dataDst

	return r
}

// StreamData carries exactly one narrow word. The source streams them to the
// bridge on the write path; the bridge streams them to the consumer on the
// read path. Message acceptance models the data ready/valid handshake.
type StreamData struct {
	sim.MsgMeta

	Data []byte
}

// Meta returns the meta data of the message.
func (d *StreamData) Meta() *sim.MsgMeta {
	return &d.MsgMeta
}

// Clone creates a copy of the message with a new ID.
func (d *StreamData) Clone() sim.Msg {
	cloneMsg := *d
	cloneMsg.ID = sim.GetIDGenerator().Generate()

	return &cloneMsg
}

// StreamDataBuilder can build narrow data words.
type StreamDataBuilder struct {
	src, dst sim.RemotePort
	data     []byte
}

// WithSrc sets the source of the message.
func (b StreamDataBuilder) WithSrc(src sim.RemotePort) StreamDataBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the message.
func (b StreamDataBuilder) WithDst(dst sim.RemotePort) StreamDataBuilder {
	b.dst = dst
	return b
}

// WithData sets the narrow-word payload.
func (b StreamDataBuilder) WithData(data []byte) StreamDataBuilder {
	b.data = data
	return b
}

// Build creates a new StreamData message.
func (b StreamDataBuilder) Build() *StreamData {
	d := &StreamData{}
	d.ID = sim.GetIDGenerator().Generate()
	d.Src = b.src
	d.Dst = b.dst
	d.TrafficClass = reflect.TypeOf(StreamData{}).String()
	d.TrafficBytes = len(b.data)
	d.Data = b.data

	return d
}
