package nn

import "fmt"

// Namer hands out model-unique layer names of the form <kind>_<ordinal>,
// counting layers of the same kind from 1 (dense_1, dense_2, conv_2d_1).
//
// A Namer belongs to one model; two models never share counters.
type Namer struct {
	counts map[Kind]int
}

// NewNamer creates a Namer with all counters at zero.
func NewNamer() *Namer {
	return &Namer{counts: make(map[Kind]int)}
}

// Next returns the next name for kind k.
func (n *Namer) Next(k Kind) string {
	n.counts[k]++
	return fmt.Sprintf("%s_%d", k, n.counts[k])
}

// Count returns how many names were issued for kind k.
func (n *Namer) Count(k Kind) int {
	return n.counts[k]
}
