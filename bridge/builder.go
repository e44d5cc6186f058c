package bridge

import (
	"log"

	"github.com/sarchlab/widthbridge/sim"
)

// Builder can build bridge components.
type Builder struct {
	engine          sim.Engine
	narrowWordBytes int
	wideWordBytes   int
	burstStride     uint64
	maxWordCount    int
	storeCmdDst     sim.RemotePort
	storeWriteDst   sim.RemotePort
}

// MakeBuilder creates a builder with default parameters: 64-bit narrow
// words, 512-bit wide words, burst stride of one wide word.
func MakeBuilder() Builder {
	return Builder{
		narrowWordBytes: 8,
		wideWordBytes:   64,
		maxWordCount:    1023,
	}
}

// WithEngine sets the engine that the bridge uses.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithNarrowWordBytes sets the number of bytes per source word.
func (b Builder) WithNarrowWordBytes(n int) Builder {
	b.narrowWordBytes = n
	return b
}

// WithWideWordBytes sets the number of bytes per store word. It must be an
// integer multiple of the narrow word size.
func (b Builder) WithWideWordBytes(n int) Builder {
	b.wideWordBytes = n
	return b
}

// WithBurstStride sets the address delta applied per wide-word transfer. It
// defaults to the wide word size.
func (b Builder) WithBurstStride(stride uint64) Builder {
	b.burstStride = stride
	return b
}

// WithMaxWordCount sets the largest admissible per-transaction word count.
func (b Builder) WithMaxWordCount(n int) Builder {
	b.maxWordCount = n
	return b
}

// WithStoreCmdDst sets the backend port that receives store commands.
func (b Builder) WithStoreCmdDst(p sim.RemotePort) Builder {
	b.storeCmdDst = p
	return b
}

// WithStoreWriteDst sets the backend port that receives write data.
func (b Builder) WithStoreWriteDst(p sim.RemotePort) Builder {
	b.storeWriteDst = p
	return b
}

// Build creates a new bridge component.
func (b Builder) Build(name string) *Comp {
	b.parametersMustBeValid()

	c := &Comp{}
	c.TickingComponent = sim.NewTickingComponent(name, b.engine, c)

	c.narrowWordBytes = b.narrowWordBytes
	c.wideWordBytes = b.wideWordBytes
	c.ratio = b.wideWordBytes / b.narrowWordBytes
	c.maxWordCount = b.maxWordCount

	c.burstStride = b.burstStride
	if c.burstStride == 0 {
		c.burstStride = uint64(b.wideWordBytes)
	}

	c.storeCmdDst = b.storeCmdDst
	c.storeWriteDst = b.storeWriteDst

	c.writeCtrlPort = sim.NewPort(c, 1, 1, name+".WriteCtrl")
	c.writeDataPort = sim.NewPort(c, 1, 1, name+".WriteData")
	c.readCtrlPort = sim.NewPort(c, 1, 1, name+".ReadCtrl")
	c.readDataPort = sim.NewPort(c, 1, 1, name+".ReadData")
	c.storeCmdPort = sim.NewPort(c, 1, 1, name+".StoreCmd")
	c.storeWritePort = sim.NewPort(c, 1, 1, name+".StoreWrite")
	c.storeReadPort = sim.NewPort(c, 1, 1, name+".StoreRead")

	c.AddPort("WriteCtrl", c.writeCtrlPort)
	c.AddPort("WriteData", c.writeDataPort)
	c.AddPort("ReadCtrl", c.readCtrlPort)
	c.AddPort("ReadData", c.readDataPort)
	c.AddPort("StoreCmd", c.storeCmdPort)
	c.AddPort("StoreWrite", c.storeWritePort)
	c.AddPort("StoreRead", c.storeReadPort)

	c.write = writePath{comp: c, state: writeCalibrating}
	c.read = readPath{comp: c, state: readCalibrating}

	return c
}

func (b Builder) parametersMustBeValid() {
	if b.engine == nil {
		log.Panic("engine is not given")
	}

	if b.narrowWordBytes <= 0 || b.wideWordBytes <= 0 {
		log.Panic("word sizes must be positive")
	}

	if b.wideWordBytes%b.narrowWordBytes != 0 {
		log.Panic(
			"wide word size must be an integer multiple of narrow word size")
	}

	if b.maxWordCount < 1 {
		log.Panic("max word count must be at least 1")
	}
}
