// Package interconnect implements the bounded links between task output and
// input ports, and the fixed-size table that holds them.
package interconnect

import (
	"github.com/clelom/titan/internal/errcode"
	"github.com/clelom/titan/internal/packet"
)

// FIFO is a single-producer single-consumer ring of packet.FIFODepth slots.
// The zero value is an empty queue.
type FIFO struct {
	slots [packet.FIFODepth]packet.Packet
	busy  [packet.FIFODepth]bool
	head  int
	n     int
}

// Push copies p into the next free slot. A full queue is left unchanged and
// the packet is dropped.
func (f *FIFO) Push(p packet.Packet) error {
	if f.n == len(f.slots) {
		return errcode.ErrOutFifoFull
	}
	i := (f.head + f.n) % len(f.slots)
	f.slots[i] = p
	f.busy[i] = true
	f.n++
	return nil
}

// Pop removes the oldest packet.
func (f *FIFO) Pop() (packet.Packet, error) {
	if f.n == 0 {
		return packet.Packet{}, errcode.ErrInFifoEmpty
	}
	p := f.slots[f.head]
	f.slots[f.head] = packet.Packet{}
	f.busy[f.head] = false
	f.head = (f.head + 1) % len(f.slots)
	f.n--
	return p, nil
}

func (f *FIFO) Len() int   { return f.n }
func (f *FIFO) Full() bool { return f.n == len(f.slots) }

// Reset drops every queued packet.
func (f *FIFO) Reset() { *f = FIFO{} }
