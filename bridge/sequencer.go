package bridge

// An addressSequencer holds the store burst address of the active
// transaction. It is mutated only by the owning state machine, each time a
// wide word is completed (writes) or accepted by the backend (reads), and is
// read-only to everything else.
type addressSequencer struct {
	current uint64
	stride  uint64
}

func newAddressSequencer(start, stride uint64) addressSequencer {
	return addressSequencer{
		current: start,
		stride:  stride,
	}
}

// advance moves the burst address to the next wide word.
func (s *addressSequencer) advance() {
	s.current += s.stride
}
