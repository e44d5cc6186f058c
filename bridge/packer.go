package bridge

import "log"

// A packer accumulates narrow words into one wide word. Words are placed
// most-significant-first: word k of a boundary occupies bytes
// [k*narrowBytes, (k+1)*narrowBytes) of the wide word, with byte 0 being the
// most significant. The byte mask marks exactly the bytes not yet written
// within the current boundary, so a partial final wide word can be written
// with correct byte enables.
type packer struct {
	wideBytes   int
	narrowBytes int

	buf  []byte
	mask []bool

	boundaryWords int
	wordsPacked   int
}

func newPacker(wideBytes, narrowBytes int) packer {
	return packer{
		wideBytes:   wideBytes,
		narrowBytes: narrowBytes,
	}
}

// beginBoundary starts a new wide-word boundary that will hold the given
// number of narrow words. A full boundary holds wideBytes/narrowBytes words;
// the terminal boundary of a transaction may hold fewer.
func (p *packer) beginBoundary(words int) {
	if words <= 0 || words*p.narrowBytes > p.wideBytes {
		log.Panicf("boundary of %d words does not fit a wide word", words)
	}

	p.buf = make([]byte, p.wideBytes)
	p.mask = make([]bool, p.wideBytes)
	for i := range p.mask {
		p.mask[i] = true
	}

	p.boundaryWords = words
	p.wordsPacked = 0
}

// push inserts the next narrow word into the wide word under construction.
func (p *packer) push(word []byte) {
	if len(word) != p.narrowBytes {
		log.Panicf("narrow word must be exactly %d bytes", p.narrowBytes)
	}

	if p.wordsPacked >= p.boundaryWords {
		log.Panic("pushing into a completed boundary")
	}

	offset := p.wordsPacked * p.narrowBytes
	copy(p.buf[offset:offset+p.narrowBytes], word)
	for i := offset; i < offset+p.narrowBytes; i++ {
		p.mask[i] = false
	}

	p.wordsPacked++
}

// completionCounter returns the number of narrow words still needed to
// complete the current boundary. It is 0 exactly when a wide-word boundary
// has just completed.
func (p *packer) completionCounter() int {
	return p.boundaryWords - p.wordsPacked
}

// boundaryComplete reports whether the current boundary holds all its words.
func (p *packer) boundaryComplete() bool {
	return p.boundaryWords > 0 && p.wordsPacked == p.boundaryWords
}

// partial reports whether the current boundary covers less than a full wide
// word.
func (p *packer) partial() bool {
	return p.boundaryWords*p.narrowBytes < p.wideBytes
}

// wideWord returns the packed wide word and its byte mask (true = masked
// out).
func (p *packer) wideWord() (data []byte, mask []bool) {
	return p.buf, p.mask
}
