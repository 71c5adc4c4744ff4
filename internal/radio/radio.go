// Package radio moves protocol frames between node endpoints. The in-memory
// Medium connects endpoints of one process; the socket.io bridge connects
// endpoints running in separate processes through a relay server.
package radio

import (
	"context"
	"errors"
)

// Frame is one radio frame.
type Frame struct {
	Src     uint16
	Dst     uint16
	Payload []byte
}

// Broadcast reports whether the frame is addressed to every endpoint.
func (f Frame) Broadcast() bool { return f.Dst == BroadcastAddr }

// BroadcastAddr addresses every endpoint in range.
const BroadcastAddr uint16 = 0xFFFF

var (
	// ErrClosed is returned when sending through a closed transceiver.
	ErrClosed = errors.New("radio: transceiver closed")
	// ErrNoAck is returned when a unicast frame was not acknowledged by the
	// link layer of the receiver.
	ErrNoAck = errors.New("radio: frame not acknowledged")
)

// Transceiver is one endpoint's view of the radio.
type Transceiver interface {
	// ID returns the endpoint address.
	ID() uint16
	// Send transmits payload to dst without blocking on the receiver. A
	// unicast frame the receiver did not take fails with ErrNoAck, if the
	// transport can tell. Broadcast frames are never acknowledged.
	Send(ctx context.Context, dst uint16, payload []byte) error
	// Frames delivers received frames. It is closed by Close.
	Frames() <-chan Frame
	Close() error
}
