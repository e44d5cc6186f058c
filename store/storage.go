package store

import "errors"

// Capacity units for storage sizing.
const (
	KB uint64 = 1 << 10
	MB uint64 = 1 << 20
	GB uint64 = 1 << 30
)

// A Storage keeps the data of the simulated memory backend.
//
// The storage manages its content in fixed-size units. Units that are never
// touched by Read or Write are not allocated.
type Storage struct {
	unitSize uint64
	capacity uint64
	data     map[uint64][]byte
}

// NewStorage creates a storage object with the given capacity in bytes.
func NewStorage(capacity uint64) *Storage {
	return &Storage{
		unitSize: 4096,
		capacity: capacity,
		data:     make(map[uint64][]byte),
	}
}

// Capacity returns the capacity of the storage in bytes.
func (s *Storage) Capacity() uint64 {
	return s.capacity
}

func (s *Storage) unitFor(address uint64) ([]byte, error) {
	if address >= s.capacity {
		return nil, errors.New("accessing address beyond the storage capacity")
	}

	baseAddr := address - address%s.unitSize
	unit, ok := s.data[baseAddr]
	if !ok {
		unit = make([]byte, s.unitSize)
		s.data[baseAddr] = unit
	}

	return unit, nil
}

// Read returns n bytes starting at the given address.
func (s *Storage) Read(address, n uint64) ([]byte, error) {
	res := make([]byte, n)
	currAddr := address
	offset := uint64(0)

	for offset < n {
		unit, err := s.unitFor(currAddr)
		if err != nil {
			return nil, err
		}

		inUnitAddr := currAddr % s.unitSize
		toCopy := min(n-offset, s.unitSize-inUnitAddr)

		copy(res[offset:offset+toCopy], unit[inUnitAddr:inUnitAddr+toCopy])
		offset += toCopy
		currAddr += toCopy
	}

	return res, nil
}

// Write stores the data starting at the given address.
func (s *Storage) Write(address uint64, data []byte) error {
	currAddr := address
	offset := uint64(0)

	for offset < uint64(len(data)) {
		unit, err := s.unitFor(currAddr)
		if err != nil {
			return err
		}

		inUnitAddr := currAddr % s.unitSize
		toCopy := min(uint64(len(data))-offset, s.unitSize-inUnitAddr)

		copy(unit[inUnitAddr:inUnitAddr+toCopy], data[offset:offset+toCopy])
		offset += toCopy
		currAddr += toCopy
	}

	return nil
}

// WriteMasked stores the data starting at the given address, skipping every
// byte whose mask entry is true.
func (s *Storage) WriteMasked(
	address uint64,
	data []byte,
	mask []bool,
) error {
	if len(mask) != len(data) {
		return errors.New("mask length does not match data length")
	}

	existing, err := s.Read(address, uint64(len(data)))
	if err != nil {
		return err
	}

	for i := range data {
		if !mask[i] {
			existing[i] = data[i]
		}
	}

	return s.Write(address, existing)
}
