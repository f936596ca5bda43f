package recognition

import (
	"math"
)

// Catalog maps signatures to identity names. It is never mutated after
// construction; refreshing means building a new Catalog and swapping it in.
type Catalog struct {
	signatures []Signature
	names      []string
}

// NewCatalog copies the index-aligned signature and name slices.
func NewCatalog(signatures []Signature, names []string) *Catalog {
	n := len(signatures)
	if len(names) < n {
		n = len(names)
	}
	c := &Catalog{
		signatures: make([]Signature, n),
		names:      make([]string, n),
	}
	for i := 0; i < n; i++ {
		c.signatures[i] = append(Signature(nil), signatures[i]...)
		c.names[i] = names[i]
	}
	return c
}

// Len returns the number of signatures.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.signatures)
}

// Entry returns the i-th signature and name.
func (c *Catalog) Entry(i int) (Signature, string) {
	return c.signatures[i], c.names[i]
}

// Names returns the distinct identity names in first-seen order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	seen := make(map[string]bool)
	var names []string
	for _, n := range c.names {
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	return names
}

// Nearest returns the index of the closest signature and its distance.
// Ties keep the first minimal index. An empty catalog returns -1.
func (c *Catalog) Nearest(sig Signature, distance func(a, b Signature) float64) (int, float64) {
	best, bestDist := -1, math.Inf(1)
	if c == nil {
		return best, bestDist
	}
	for i, known := range c.signatures {
		if d := distance(known, sig); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}
