package bridge

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"serialplotter/internal/protocol"
)

// Generator produces random plot lines for the demo data stream: one line
// with series L1..L3 and one with A..C, each value in [0, 100).
// Lines are terminated with the line ending the UI currently expects.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewGenerator(seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

func (g *Generator) Lines(eol protocol.EndOfLine) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var v [6]int
	for i := range v {
		v[i] = g.rng.Intn(100)
	}
	return []string{
		fmt.Sprintf("L1:%d,L2:%d,L3:%d", v[0], v[1], v[2]) + eol.String(),
		fmt.Sprintf("A:%d,B:%d,C:%d", v[3], v[4], v[5]) + eol.String(),
	}
}
