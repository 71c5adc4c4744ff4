// Package wire encodes and decodes the byte-packed protocol frames exchanged
// between nodes and the master. Every frame starts with one byte holding a
// 4 bit protocol version and a 4 bit message type. Multi-byte integers are
// big-endian.
//
// Decoding is the single validation gate for inbound network data: any frame
// whose declared counts or lengths exceed the fixed envelope fails with
// errcode.MalformedPacket.
package wire

import (
	"fmt"

	"github.com/clelom/titan/internal/errcode"
)

// Version is the protocol version carried in every header byte.
const Version = 1

// MTU is the largest frame the radio carries. A DataMsg with a full packet
// fits exactly.
const MTU = 34

// BroadcastAddr addresses every node in range.
const BroadcastAddr uint16 = 0xFFFF

// MsgType is the low nibble of the header byte.
type MsgType uint8

const (
	TypeConfig MsgType = iota
	TypeCfgTask
	TypeCfgConn
	TypeCfgSuccess
	TypeDiscover
	TypeDiscoverReply
	TypeForward
	TypeData
	TypeError
	TypeCfgStart
	TypeCacheStart
	TypeCacheStore
)

var typeNames = [...]string{
	"config", "cfg_task", "cfg_conn", "cfg_success", "discover", "discover_reply",
	"forward", "data", "error", "cfg_start", "cache_start", "cache_store",
}

func (t MsgType) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Header returns the version/type byte for t.
func Header(t MsgType) byte {
	return Version<<4 | byte(t)&0x0F
}

// PeekType validates the header byte of frame and returns its message type.
func PeekType(frame []byte) (MsgType, error) {
	if len(frame) == 0 {
		return 0, malformed("empty frame")
	}
	if v := frame[0] >> 4; v != Version {
		return 0, malformed("protocol version %d", v)
	}
	t := MsgType(frame[0] & 0x0F)
	if t > TypeCacheStore {
		return t, errcode.New(errcode.NotImplemented, errcode.SourceFramework, "message type %d", t)
	}
	return t, nil
}

func malformed(format string, args ...any) error {
	return errcode.New(errcode.MalformedPacket, errcode.SourceFramework, format, args...)
}

// reader walks a frame and records the first overrun.
type reader struct {
	buf []byte
	off int
	err error
}

func newReader(frame []byte, want MsgType) (*reader, error) {
	t, err := PeekType(frame)
	if err != nil {
		return nil, err
	}
	if t != want {
		return nil, malformed("expected %s, got %s", want, t)
	}
	return &reader{buf: frame, off: 1}, nil
}

func (r *reader) u8() uint8 {
	if r.err != nil {
		return 0
	}
	if r.off >= len(r.buf) {
		r.err = malformed("frame truncated at byte %d", r.off)
		return 0
	}
	b := r.buf[r.off]
	r.off++
	return b
}

func (r *reader) u16() uint16 {
	hi := r.u8()
	lo := r.u8()
	return uint16(hi)<<8 | uint16(lo)
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.buf) {
		r.err = malformed("declared length %d exceeds frame", n)
		return nil
	}
	out := make([]byte, n)
	copy(out, r.buf[r.off:r.off+n])
	r.off += n
	return out
}

func (r *reader) remaining() int { return len(r.buf) - r.off }

// writer builds a frame and refuses to grow past the MTU.
type writer struct {
	buf   []byte
	limit int
}

func newWriter(t MsgType, limit int) *writer {
	w := &writer{buf: make([]byte, 0, limit), limit: limit}
	w.buf = append(w.buf, Header(t))
	return w
}

func (w *writer) u8(b uint8)    { w.buf = append(w.buf, b) }
func (w *writer) u16(v uint16)  { w.buf = append(w.buf, byte(v>>8), byte(v)) }
func (w *writer) raw(b []byte)  { w.buf = append(w.buf, b...) }
func (w *writer) room() int     { return w.limit - len(w.buf) }
func (w *writer) frame() []byte { return w.buf }

func (w *writer) done() ([]byte, error) {
	if len(w.buf) > w.limit {
		return nil, errcode.New(errcode.OutboundBufferFull, errcode.SourceFramework, "frame of %d bytes exceeds %d", len(w.buf), w.limit)
	}
	return w.buf, nil
}
