// Package packet holds the fixed-layout value types that flow through the
// runtime: data packets exchanged between tasks and the per-task configuration.
package packet

import (
	"encoding/binary"
	"fmt"

	"github.com/clelom/titan/internal/errcode"
)

// Capacity constants of the node.
const (
	Size             = 30 // data bytes per Packet
	MaxConfigLength  = 22 // config bytes per task descriptor
	MaxTasks         = 8
	MaxPortsPerTask  = 16
	MaxFIFOs         = 14
	FIFODepth        = 5
	ActivationQueue  = 2 * MaxTasks
	CacheEntries     = 5
	CacheMaxDataSize = 126
)

// DataType tags the element type of a packet's payload.
type DataType uint8

const (
	Int8 DataType = iota
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Buf16
)

var typeNames = [...]string{"int8", "uint8", "int16", "uint16", "int32", "uint32", "buf16"}

func (t DataType) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Valid reports whether t is a known data type.
func (t DataType) Valid() bool { return t <= Buf16 }

// ElemSize returns the byte width of one element of type t.
func (t DataType) ElemSize() int {
	switch t {
	case Int16, Uint16, Buf16:
		return 2
	case Int32, Uint32:
		return 4
	default:
		return 1
	}
}

// Packet is the unit of data moved through interconnects. It is a value type:
// copies are independent.
type Packet struct {
	Length uint8
	Type   DataType
	Data   [Size]byte
}

// New builds a packet from raw bytes.
func New(t DataType, data []byte) (Packet, error) {
	var p Packet
	if len(data) > Size {
		return p, errcode.New(errcode.MalformedPacket, errcode.SourceFramework, "packet length %d exceeds %d", len(data), Size)
	}
	if !t.Valid() {
		return p, errcode.New(errcode.InvalidType, errcode.SourceFramework, "unknown data type %d", t)
	}
	p.Type = t
	p.Length = uint8(len(data))
	copy(p.Data[:], data)
	return p, nil
}

// Bytes returns the used part of the payload.
func (p *Packet) Bytes() []byte { return p.Data[:p.Length] }

// Validate checks the envelope invariants.
func (p *Packet) Validate() error {
	if p.Length > Size {
		return errcode.New(errcode.MalformedPacket, errcode.SourceFramework, "packet length %d exceeds %d", p.Length, Size)
	}
	if !p.Type.Valid() {
		return errcode.New(errcode.InvalidType, errcode.SourceFramework, "unknown data type %d", p.Type)
	}
	return nil
}

// Int16s decodes the payload as big-endian 16 bit values.
func (p *Packet) Int16s() ([]int16, error) {
	if p.Type != Int16 && p.Type != Uint16 && p.Type != Buf16 {
		return nil, errcode.New(errcode.InvalidType, errcode.SourceFramework, "want 16 bit data, got %s", p.Type)
	}
	n := int(p.Length) / 2
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(binary.BigEndian.Uint16(p.Data[2*i:]))
	}
	return out, nil
}

// PutInt16s fills the packet with values as big-endian 16 bit words.
func (p *Packet) PutInt16s(t DataType, values []int16) error {
	if len(values)*2 > Size {
		return errcode.New(errcode.MalformedPacket, errcode.SourceFramework, "%d values do not fit a packet", len(values))
	}
	p.Type = t
	p.Length = uint8(len(values) * 2)
	for i, v := range values {
		binary.BigEndian.PutUint16(p.Data[2*i:], uint16(v))
	}
	return nil
}

// Int32s decodes the payload as big-endian 32 bit values.
func (p *Packet) Int32s() ([]int32, error) {
	if p.Type != Int32 && p.Type != Uint32 {
		return nil, errcode.New(errcode.InvalidType, errcode.SourceFramework, "want 32 bit data, got %s", p.Type)
	}
	n := int(p.Length) / 4
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(binary.BigEndian.Uint32(p.Data[4*i:]))
	}
	return out, nil
}

// PutInt32s fills the packet with values as big-endian 32 bit words.
func (p *Packet) PutInt32s(t DataType, values []int32) error {
	if len(values)*4 > Size {
		return errcode.New(errcode.MalformedPacket, errcode.SourceFramework, "%d values do not fit a packet", len(values))
	}
	p.Type = t
	p.Length = uint8(len(values) * 4)
	for i, v := range values {
		binary.BigEndian.PutUint32(p.Data[4*i:], uint32(v))
	}
	return nil
}
