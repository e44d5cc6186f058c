package backend

import (
	"log"

	"github.com/sarchlab/widthbridge/sim"
	"github.com/sarchlab/widthbridge/store"
)

// Builder can build memory backends.
type Builder struct {
	engine             sim.Engine
	wideWordBytes      int
	burstStride        uint64
	storageCapacity    uint64
	storage            *store.Storage
	calibrationLatency sim.VCycle
	calibrationTarget  sim.RemotePort
	readDataTarget     sim.RemotePort
	writeStall         int
	readInterval       int
	latency            int
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		wideWordBytes:      64,
		storageCapacity:    4 * store.MB,
		calibrationLatency: 1,
	}
}

// WithEngine sets the engine that the backend uses.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithWideWordBytes sets the number of bytes per wide word.
func (b Builder) WithWideWordBytes(n int) Builder {
	b.wideWordBytes = n
	return b
}

// WithBurstStride sets the address delta between consecutive words of a read
// burst. It defaults to the wide word size.
func (b Builder) WithBurstStride(stride uint64) Builder {
	b.burstStride = stride
	return b
}

// WithNewStorage asks the builder to create a storage with the given
// capacity.
func (b Builder) WithNewStorage(capacity uint64) Builder {
	b.storageCapacity = capacity
	return b
}

// WithStorage sets a storage that the backend shares with other components.
func (b Builder) WithStorage(s *store.Storage) Builder {
	b.storage = s
	return b
}

// WithCalibrationLatency sets the number of cycles before the backend
// reports itself calibrated.
func (b Builder) WithCalibrationLatency(n sim.VCycle) Builder {
	b.calibrationLatency = n
	return b
}

// WithCalibrationTarget sets the port that receives the calibration-done
// notice.
func (b Builder) WithCalibrationTarget(p sim.RemotePort) Builder {
	b.calibrationTarget = p
	return b
}

// WithReadDataTarget sets the port that receives the read data stream.
func (b Builder) WithReadDataTarget(p sim.RemotePort) Builder {
	b.readDataTarget = p
	return b
}

// WithWriteStall makes the backend hold its ready low for n cycles after
// each accepted write strobe.
func (b Builder) WithWriteStall(n int) Builder {
	b.writeStall = n
	return b
}

// WithReadInterval inserts n idle cycles between consecutive read words.
func (b Builder) WithReadInterval(n int) Builder {
	b.readInterval = n
	return b
}

// WithLatency sets the number of cycles between read-command acceptance and
// the first read word.
func (b Builder) WithLatency(n int) Builder {
	b.latency = n
	return b
}

// Build creates a new backend component.
func (b Builder) Build(name string) *Comp {
	if b.wideWordBytes <= 0 {
		log.Panic("wide word size must be positive")
	}

	if b.engine == nil {
		log.Panic("engine is not given")
	}

	c := &Comp{}
	c.TickingComponent = sim.NewTickingComponent(name, b.engine, c)

	c.wideWordBytes = b.wideWordBytes
	c.burstStride = b.burstStride
	if c.burstStride == 0 {
		c.burstStride = uint64(b.wideWordBytes)
	}

	c.Storage = b.storage
	if c.Storage == nil {
		c.Storage = store.NewStorage(b.storageCapacity)
	}

	c.calibrationLatency = b.calibrationLatency
	c.calibrationTarget = b.calibrationTarget
	c.readDataTarget = b.readDataTarget
	c.writeStall = b.writeStall
	c.readInterval = b.readInterval
	c.latency = b.latency

	c.CmdPort = sim.NewPort(c, 1, 1, name+".Cmd")
	c.WritePort = sim.NewPort(c, 1, 1, name+".WriteData")
	c.ReadPort = sim.NewPort(c, 1, 1, name+".ReadData")
	c.AddPort("Cmd", c.CmdPort)
	c.AddPort("WriteData", c.WritePort)
	c.AddPort("ReadData", c.ReadPort)

	b.engine.Schedule(&calibrationDoneEvent{
		EventBase: sim.NewEventBase(
			b.engine.CurrentCycle()+c.calibrationLatency, c),
	})

	return c
}
