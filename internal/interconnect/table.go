package interconnect

import (
	"github.com/clelom/titan/internal/errcode"
	"github.com/clelom/titan/internal/packet"
)

// Endpoint identifies one side of a link: a task runID and a port index.
type Endpoint struct {
	Task uint8
	Port uint8
}

// Link is a configured connection together with its queue.
type Link struct {
	Src   Endpoint
	Dst   Endpoint
	Queue FIFO
}

// Table holds at most packet.MaxFIFOs links. Links are addressed by index.
type Table struct {
	links [packet.MaxFIFOs]Link
	n     int
}

// Add appends a link and returns its index. Duplicate source endpoints are
// allowed; each gets its own queue.
func (t *Table) Add(src, dst Endpoint) (int, error) {
	if t.n == len(t.links) {
		return -1, errcode.New(errcode.NoMemory, errcode.SourceFramework, "link table holds %d links", len(t.links))
	}
	t.links[t.n] = Link{Src: src, Dst: dst}
	t.n++
	return t.n - 1, nil
}

// Get returns the link at index i, or nil.
func (t *Table) Get(i int) *Link {
	if i < 0 || i >= t.n {
		return nil
	}
	return &t.links[i]
}

// From returns the indexes of the links leaving src.
func (t *Table) From(src Endpoint) []int {
	var out []int
	for i := 0; i < t.n; i++ {
		if t.links[i].Src == src {
			out = append(out, i)
		}
	}
	return out
}

// Into returns the indexes of the links feeding dst.
func (t *Table) Into(dst Endpoint) []int {
	var out []int
	for i := 0; i < t.n; i++ {
		if t.links[i].Dst == dst {
			out = append(out, i)
		}
	}
	return out
}

// Len returns the number of configured links.
func (t *Table) Len() int { return t.n }

// Reset removes every link and its queued packets.
func (t *Table) Reset() { *t = Table{} }
