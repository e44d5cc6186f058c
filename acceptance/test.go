package acceptance

import (
	"log"
	"math/rand"

	"github.com/sarchlab/widthbridge/store"
)

// Test is a test case. It generates randomized transactions, keeps a shadow
// copy of the store contents, and checks that every transaction completes
// with byte-exact data.
type Test struct {
	agents []*SourceAgent

	// OnComplete, when set, is called once for every transaction that
	// received its completion response.
	OnComplete func(*Transaction)

	narrowWordBytes int
	wideWordBytes   int
	ratio           int
	maxAddress      uint64

	shadow map[uint64]byte

	numIssued       int
	numCompleted    int
	expectedStrobes int
}

// NewTest creates a new test for a bridge with the given word widths. The
// burst stride is assumed to be one wide word, so consecutive bursts cover
// consecutive store bytes.
func NewTest(narrowWordBytes, wideWordBytes int, maxAddress uint64) *Test {
	return &Test{
		narrowWordBytes: narrowWordBytes,
		wideWordBytes:   wideWordBytes,
		ratio:           wideWordBytes / narrowWordBytes,
		maxAddress:      maxAddress,
		shadow:          make(map[uint64]byte),
	}
}

// RegisterAgent adds an agent to the test.
func (t *Test) RegisterAgent(agent *SourceAgent) {
	t.agents = append(t.agents, agent)
}

// GenerateTransactions queues n randomized transactions, alternating between
// writes and reads of the regions written so far. Each transaction carries a
// randomized per-word stall pattern so that source gaps, consumer stalls, and
// the arrival/stall race all get exercised.
func (t *Test) GenerateTransactions(n int) {
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			t.generateWrite()
		} else {
			t.generateRead()
		}
	}
}

func (t *Test) generateWrite() {
	address := t.randomBurstAddress()
	count := 1 + rand.Intn(4*t.ratio)

	words := make([][]byte, count)
	for i := range words {
		words[i] = t.randomWord()
	}

	t.applyWrite(address, words)
	t.expectedStrobes += (count + t.ratio - 1) / t.ratio

	t.addTransaction(&Transaction{
		IsWrite: true,
		Address: address,
		Words:   words,
		Gaps:    t.randomGaps(count, 8),
	})
}

func (t *Test) generateRead() {
	address := t.randomBurstAddress()
	count := 1 + rand.Intn(4*t.ratio)

	t.addTransaction(&Transaction{
		Address: address,
		Words:   t.expectedReadData(address, count),
		Gaps:    t.randomGaps(count, 10),
	})
}

func (t *Test) addTransaction(trans *Transaction) {
	agent := t.agents[rand.Intn(len(t.agents))]
	agent.AddTransaction(trans)
	t.numIssued++
}

func (t *Test) randomBurstAddress() uint64 {
	numBursts := t.maxAddress / uint64(t.wideWordBytes)
	return rand.Uint64() % (numBursts / 2) * uint64(t.wideWordBytes)
}

func (t *Test) randomWord() []byte {
	word := make([]byte, t.narrowWordBytes)
	for i := range word {
		word[i] = byte(rand.Intn(256))
	}

	return word
}

func (t *Test) randomGaps(count, maxGap int) []int {
	gaps := make([]int, count)
	for i := range gaps {
		gaps[i] = rand.Intn(maxGap + 1)
	}

	return gaps
}

// applyWrite updates the shadow store the way the bridge packs data: word i
// of the transaction occupies the i-th narrow-word slot from the top of its
// wide word. Bytes beyond a partial boundary stay untouched.
func (t *Test) applyWrite(address uint64, words [][]byte) {
	for i, word := range words {
		base := address +
			uint64(i/t.ratio)*uint64(t.wideWordBytes) +
			uint64(i%t.ratio)*uint64(t.narrowWordBytes)
		for j, b := range word {
			t.shadow[base+uint64(j)] = b
		}
	}
}

// expectedReadData predicts the words the bridge delivers for a read of the
// given word count. Full bursts unpack top-down, matching the write layout. A
// partial final burst exposes its words from the low end of the wide word,
// per the completion counter rule, so the expectation is computed from store
// bytes, not from write history.
func (t *Test) expectedReadData(address uint64, count int) [][]byte {
	words := make([][]byte, 0, count)
	remaining := count

	for burst := 0; remaining > 0; burst++ {
		base := address + uint64(burst)*uint64(t.wideWordBytes)
		c := min(remaining, t.ratio)

		for j := 0; j < c; j++ {
			offset := t.wideWordBytes - (c-j)*t.narrowWordBytes
			words = append(words, t.shadowBytes(
				base+uint64(offset), t.narrowWordBytes))
		}

		remaining -= c
	}

	return words
}

func (t *Test) shadowBytes(address uint64, n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = t.shadow[address+uint64(i)]
	}

	return data
}

func (t *Test) completeTransaction(trans *Transaction) {
	t.numCompleted++

	if t.OnComplete != nil {
		t.OnComplete(trans)
	}
}

// ExpectedWriteStrobes returns the number of write strobes the store must
// have seen once all transactions complete.
func (t *Test) ExpectedWriteStrobes() int {
	return t.expectedStrobes
}

// MustHaveCompletedAllTransactions asserts that every generated transaction
// received its completion response.
func (t *Test) MustHaveCompletedAllTransactions() {
	if t.numCompleted != t.numIssued {
		log.Panicf("%d transactions issued, only %d completed",
			t.numIssued, t.numCompleted)
	}
}

// MustMatchStoreContents asserts that every byte the shadow model expects to
// be written reads back identically from the store.
func (t *Test) MustMatchStoreContents(storage *store.Storage) {
	for addr, want := range t.shadow {
		data, err := storage.Read(addr, 1)
		if err != nil {
			log.Panic(err)
		}

		if data[0] != want {
			log.Panicf("store byte 0x%X: got 0x%02X, want 0x%02X",
				addr, data[0], want)
		}
	}
}
