package bridge

import "log"

// An unpacker slices one received wide word into narrow words. The exposed
// word sits at 1-indexed position counter from the least significant end of
// the wide word, so a full wide word is consumed most-significant-word
// first. The completion counter is re-armed at every wide-word boundary with
// min(words remaining, packing ratio).
type unpacker struct {
	wideBytes   int
	narrowBytes int

	buf     []byte
	valid   bool
	counter int
}

func newUnpacker(wideBytes, narrowBytes int) unpacker {
	return unpacker{
		wideBytes:   wideBytes,
		narrowBytes: narrowBytes,
	}
}

// latch caches a received wide word and arms the completion counter with the
// number of narrow words to drain from it.
func (u *unpacker) latch(data []byte, words int) {
	if len(data) != u.wideBytes {
		log.Panicf("wide word must be exactly %d bytes", u.wideBytes)
	}

	if words <= 0 || words*u.narrowBytes > u.wideBytes {
		log.Panicf("cannot drain %d words from a wide word", words)
	}

	u.buf = data
	u.valid = true
	u.counter = words
}

// peekWord returns the narrow word currently exposed to the consumer.
func (u *unpacker) peekWord() []byte {
	if !u.valid {
		log.Panic("no valid wide word cached")
	}

	hi := u.wideBytes - (u.counter-1)*u.narrowBytes
	lo := u.wideBytes - u.counter*u.narrowBytes

	return u.buf[lo:hi]
}

// consume marks the exposed word as delivered. The cached wide word is
// invalidated when its last word is consumed.
func (u *unpacker) consume() {
	u.counter--
	if u.counter == 0 {
		u.valid = false
		u.buf = nil
	}
}

// drained reports whether no valid wide word is cached.
func (u *unpacker) drained() bool {
	return !u.valid
}
