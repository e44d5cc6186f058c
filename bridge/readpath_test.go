package bridge

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/widthbridge/sim"
	"github.com/sarchlab/widthbridge/store"
)

var _ = Describe("Read Path", func() {
	var (
		mockCtrl *gomock.Controller
		engine   *MockEngine

		readCtrlPort  *MockPort
		readDataPort  *MockPort
		storeCmdPort  *MockPort
		storeReadPort *MockPort

		c *Comp
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = NewMockEngine(mockCtrl)

		readCtrlPort = NewMockPort(mockCtrl)
		readCtrlPort.EXPECT().
			AsRemote().
			Return(sim.RemotePort("Bridge.ReadCtrl")).
			AnyTimes()
		readDataPort = NewMockPort(mockCtrl)
		readDataPort.EXPECT().
			AsRemote().
			Return(sim.RemotePort("Bridge.ReadData")).
			AnyTimes()
		storeCmdPort = NewMockPort(mockCtrl)
		storeCmdPort.EXPECT().
			AsRemote().
			Return(sim.RemotePort("Bridge.StoreCmd")).
			AnyTimes()
		storeReadPort = NewMockPort(mockCtrl)

		c = MakeBuilder().
			WithEngine(engine).
			WithNarrowWordBytes(8).
			WithWideWordBytes(64).
			WithStoreCmdDst("Backend.Cmd").
			WithStoreWriteDst("Backend.Write").
			Build("Bridge")
		c.readCtrlPort = readCtrlPort
		c.readDataPort = readDataPort
		c.storeCmdPort = storeCmdPort
		c.storeReadPort = storeReadPort
		c.read.state = readIdle
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	newReadReq := func(address uint64, wordCount int) *ReadReq {
		return ReadReqBuilder{}.
			WithSrc("Agent.ReadCtrl").
			WithDst("Bridge.ReadCtrl").
			WithDataDst("Agent.ReadData").
			WithAddress(address).
			WithWordCount(wordCount).
			Build()
	}

	// wideWord fills byte i of the word with base+i.
	wideWord := func(base byte) []byte {
		w := make([]byte, 64)
		for i := range w {
			w[i] = base + byte(i)
		}

		return w
	}

	admit := func(req *ReadReq) *store.Command {
		var cmd *store.Command

		readCtrlPort.EXPECT().PeekIncoming().Return(req)
		readCtrlPort.EXPECT().RetrieveIncoming().Return(req)
		storeCmdPort.EXPECT().
			Send(gomock.AssignableToTypeOf(&store.Command{})).
			Do(func(msg sim.Msg) { cmd = msg.(*store.Command) }).
			Return(nil)

		Expect(c.read.tick()).To(BeTrue())

		return cmd
	}

	latchWord := func(data []byte) {
		msg := store.ReadDataBuilder{}.
			WithSrc("Backend.Read").
			WithDst("Bridge.StoreRead").
			WithData(data).
			Build()
		storeReadPort.EXPECT().PeekIncoming().Return(msg)
		storeReadPort.EXPECT().RetrieveIncoming().Return(msg)

		Expect(c.read.tick()).To(BeTrue())
	}

	deliverWord := func() []byte {
		var delivered []byte

		readDataPort.EXPECT().CanSend().Return(true)
		readDataPort.EXPECT().
			Send(gomock.AssignableToTypeOf(&StreamData{})).
			Do(func(msg sim.Msg) {
				data := msg.(*StreamData)
				Expect(data.Dst).To(Equal(sim.RemotePort("Agent.ReadData")))
				delivered = data.Data
			}).
			Return(nil)

		Expect(c.read.tick()).To(BeTrue())

		return delivered
	}

	complete := func() {
		readCtrlPort.EXPECT().
			Send(gomock.AssignableToTypeOf(&sim.GeneralRsp{})).
			Do(func(msg sim.Msg) {
				rsp := msg.(*sim.GeneralRsp)
				Expect(rsp.Dst).To(Equal(sim.RemotePort("Agent.ReadCtrl")))
			}).
			Return(nil)

		Expect(c.read.tick()).To(BeTrue())
		Expect(c.read.state).To(Equal(readIdle))
		Expect(c.read.trans).To(BeNil())
	}

	It("should do nothing before calibration", func() {
		c.read.state = readCalibrating

		Expect(c.read.tick()).To(BeFalse())
	})

	It("should stay idle without a request", func() {
		readCtrlPort.EXPECT().PeekIncoming().Return(nil)

		Expect(c.read.tick()).To(BeFalse())
	})

	It("should reject a request without a data destination", func() {
		req := ReadReqBuilder{}.
			WithSrc("Agent.ReadCtrl").
			WithDst("Bridge.ReadCtrl").
			WithAddress(0x1000).
			WithWordCount(8).
			Build()
		readCtrlPort.EXPECT().PeekIncoming().Return(req)

		Expect(func() { c.read.tick() }).To(Panic())
	})

	It("should issue one burst command for the whole transaction", func() {
		cmd := admit(newReadReq(0x1000, 20))

		Expect(cmd.Op).To(Equal(store.OpRead))
		Expect(cmd.Address).To(Equal(uint64(0x1000)))
		Expect(cmd.BurstLen).To(Equal(3))
		Expect(cmd.Dst).To(Equal(sim.RemotePort("Backend.Cmd")))
		Expect(c.read.state).To(Equal(readStarting))
	})

	It("should retry a command the store refused", func() {
		req := newReadReq(0x1000, 8)
		readCtrlPort.EXPECT().PeekIncoming().Return(req)
		readCtrlPort.EXPECT().RetrieveIncoming().Return(req)
		storeCmdPort.EXPECT().
			Send(gomock.Any()).
			Return(sim.NewSendError())

		Expect(c.read.tick()).To(BeTrue())
		Expect(c.read.trans.cmdPending).To(BeTrue())

		storeCmdPort.EXPECT().Send(gomock.Any()).Return(nil)

		Expect(c.read.tick()).To(BeTrue())
		Expect(c.read.trans.cmdPending).To(BeFalse())
	})

	It("should deliver a short count from the low end of the wide word",
		func() {
			admit(newReadReq(0x1000, 5))
			latchWord(wideWord(0))

			for i := 0; i < 5; i++ {
				word := deliverWord()

				base := byte(64 - (5-i)*8)
				expected := make([]byte, 8)
				for j := range expected {
					expected[j] = base + byte(j)
				}
				Expect(word).To(Equal(expected))
			}

			complete()
		})

	It("should span wide-word boundaries", func() {
		admit(newReadReq(0x1000, 10))
		latchWord(wideWord(0))
		Expect(c.ReadBurstAddress()).To(Equal(uint64(0x1040)))

		for i := 0; i < 7; i++ {
			deliverWord()
		}

		// The eighth delivery drains the first wide word; the refill in the
		// same cycle finds nothing pending yet.
		readDataPort.EXPECT().CanSend().Return(true)
		readDataPort.EXPECT().
			Send(gomock.AssignableToTypeOf(&StreamData{})).
			Return(nil)
		storeReadPort.EXPECT().PeekIncoming().Return(nil)
		Expect(c.read.tick()).To(BeTrue())

		// The second wide word arrives with the consumer ready, so it goes
		// straight into the unpack buffer.
		second := store.ReadDataBuilder{}.
			WithSrc("Backend.Read").
			WithDst("Bridge.StoreRead").
			WithData(wideWord(0x80)).
			Build()
		readDataPort.EXPECT().CanSend().Return(true)
		storeReadPort.EXPECT().PeekIncoming().Return(second).Times(2)
		storeReadPort.EXPECT().RetrieveIncoming().Return(second)
		Expect(c.read.tick()).To(BeTrue())
		Expect(c.ReadBurstAddress()).To(Equal(uint64(0x1040)))

		word := deliverWord()
		Expect(word).To(Equal(wideWord(0x80)[48:56]))
		word = deliverWord()
		Expect(word).To(Equal(wideWord(0x80)[56:64]))

		complete()
	})

	It("should stash a word that lands while the consumer stalls", func() {
		admit(newReadReq(0x1000, 16))
		latchWord(wideWord(0))

		for i := 0; i < 7; i++ {
			deliverWord()
		}

		// Drain the first wide word with no refill available.
		readDataPort.EXPECT().CanSend().Return(true)
		readDataPort.EXPECT().
			Send(gomock.AssignableToTypeOf(&StreamData{})).
			Return(nil)
		storeReadPort.EXPECT().PeekIncoming().Return(nil)
		Expect(c.read.tick()).To(BeTrue())

		// The second wide word arrives in the very cycle the consumer
		// stalls. It must still be accepted, into the secondary buffer.
		second := store.ReadDataBuilder{}.
			WithSrc("Backend.Read").
			WithDst("Bridge.StoreRead").
			WithData(wideWord(0x80)).
			Build()
		storeReadPort.EXPECT().PeekIncoming().Return(second)
		storeReadPort.EXPECT().RetrieveIncoming().Return(second)
		readDataPort.EXPECT().CanSend().Return(false)
		Expect(c.read.tick()).To(BeTrue())
		Expect(c.read.state).To(Equal(readRecovery))
		Expect(c.read.trans.stash).To(Equal(wideWord(0x80)))

		// Still stalled.
		readDataPort.EXPECT().CanSend().Return(false)
		Expect(c.read.tick()).To(BeFalse())
		Expect(c.read.state).To(Equal(readRecovery))

		// The consumer becomes ready: the stashed word is promoted and its
		// first word goes out in the same cycle.
		var delivered []byte
		readDataPort.EXPECT().CanSend().Return(true).Times(2)
		readDataPort.EXPECT().
			Send(gomock.AssignableToTypeOf(&StreamData{})).
			Do(func(msg sim.Msg) {
				data := msg.(*StreamData)
				Expect(data.Dst).To(Equal(sim.RemotePort("Agent.ReadData")))
				delivered = data.Data
			}).
			Return(nil)
		Expect(c.read.tick()).To(BeTrue())
		Expect(c.read.state).To(Equal(readReading))
		Expect(delivered).To(Equal(wideWord(0x80)[0:8]))
		Expect(c.read.trans.stash).To(BeNil())

		for i := 0; i < 6; i++ {
			deliverWord()
		}

		readDataPort.EXPECT().CanSend().Return(true)
		readDataPort.EXPECT().
			Send(gomock.AssignableToTypeOf(&StreamData{})).
			Return(nil)
		Expect(c.read.tick()).To(BeTrue())

		complete()
	})

	It("should hold delivery while the consumer stalls", func() {
		admit(newReadReq(0x1000, 8))
		latchWord(wideWord(0))

		readDataPort.EXPECT().CanSend().Return(false)
		Expect(c.read.tick()).To(BeFalse())

		word := deliverWord()
		Expect(word).To(Equal(wideWord(0)[0:8]))
	})
})
