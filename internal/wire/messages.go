package wire

import (
	"slices"

	"github.com/clelom/titan/internal/errcode"
	"github.com/clelom/titan/internal/packet"
)

// CfgSuccess acknowledges a completed configuration.
type CfgSuccess struct {
	ConfigID uint8
	NodeID   uint16
}

func EncodeCfgSuccess(m CfgSuccess) []byte {
	w := newWriter(TypeCfgSuccess, MTU)
	w.u8(m.ConfigID)
	w.u16(m.NodeID)
	return w.frame()
}

func DecodeCfgSuccess(frame []byte) (CfgSuccess, error) {
	r, err := newReader(frame, TypeCfgSuccess)
	if err != nil {
		return CfgSuccess{}, err
	}
	m := CfgSuccess{ConfigID: r.u8(), NodeID: r.u16()}
	return m, r.err
}

// Scope filters the task kinds listed in a DiscoverReply.
type Scope uint8

const (
	ScopeAll Scope = iota
	ScopeTasks
	ScopeEnvironment
)

func (s Scope) String() string {
	switch s {
	case ScopeAll:
		return "all"
	case ScopeTasks:
		return "tasks"
	case ScopeEnvironment:
		return "environment"
	}
	return "unknown"
}

// Discover asks every node in range to list its task kinds.
type Discover struct {
	Source uint16
	Scope  Scope
}

func EncodeDiscover(m Discover) []byte {
	w := newWriter(TypeDiscover, MTU)
	w.u16(m.Source)
	w.u8(uint8(m.Scope))
	return w.frame()
}

func DecodeDiscover(frame []byte) (Discover, error) {
	r, err := newReader(frame, TypeDiscover)
	if err != nil {
		return Discover{}, err
	}
	m := Discover{Source: r.u16(), Scope: Scope(r.u8())}
	if r.err == nil && m.Scope > ScopeEnvironment {
		return Discover{}, malformed("discover scope %d", m.Scope)
	}
	return m, r.err
}

// MaxDiscoverKinds is the number of task kinds a DiscoverReply can list.
const MaxDiscoverKinds = (MTU - 4) / 2

// DiscoverReply lists the task kinds a node supports.
type DiscoverReply struct {
	NodeID uint16
	Kinds  []uint16
}

// EncodeDiscoverReply truncates the kind list to MaxDiscoverKinds.
func EncodeDiscoverReply(m DiscoverReply) []byte {
	kinds := m.Kinds[:min(len(m.Kinds), MaxDiscoverKinds)]
	w := newWriter(TypeDiscoverReply, MTU)
	w.u16(m.NodeID)
	w.u8(uint8(len(kinds)))
	for _, k := range kinds {
		w.u16(k)
	}
	return w.frame()
}

func DecodeDiscoverReply(frame []byte) (DiscoverReply, error) {
	r, err := newReader(frame, TypeDiscoverReply)
	if err != nil {
		return DiscoverReply{}, err
	}
	m := DiscoverReply{NodeID: r.u16()}
	n := int(r.u8())
	if r.err == nil && n*2 > r.remaining() {
		return DiscoverReply{}, malformed("%d task kinds declared, %d bytes left", n, r.remaining())
	}
	for i := 0; i < n; i++ {
		m.Kinds = append(m.Kinds, r.u16())
	}
	return m, r.err
}

// Forward relays an inner frame over several hops. Visited accumulates the
// nodes that already relayed it.
type Forward struct {
	Hops    uint8
	Visited []uint16
	Dest    uint16
	Inner   []byte
}

// ForwardOverhead is the number of bytes a Forward envelope with the given
// number of visited nodes adds around its inner frame.
func ForwardOverhead(visited int) int { return 1 + 1 + 1 + 2*visited + 2 }

// Seen reports whether id already relayed the frame.
func (m Forward) Seen(id uint16) bool { return slices.Contains(m.Visited, id) }

// EncodeForward fails with OutboundBufferFull when the envelope and inner
// frame exceed the MTU.
func EncodeForward(m Forward) ([]byte, error) {
	w := newWriter(TypeForward, MTU)
	w.u8(m.Hops)
	w.u8(uint8(len(m.Visited)))
	for _, id := range m.Visited {
		w.u16(id)
	}
	w.u16(m.Dest)
	w.raw(m.Inner)
	return w.done()
}

func DecodeForward(frame []byte) (Forward, error) {
	r, err := newReader(frame, TypeForward)
	if err != nil {
		return Forward{}, err
	}
	m := Forward{Hops: r.u8()}
	n := int(r.u8())
	if r.err == nil && n*2+2 > r.remaining() {
		return Forward{}, malformed("%d visited nodes declared, %d bytes left", n, r.remaining())
	}
	for i := 0; i < n; i++ {
		m.Visited = append(m.Visited, r.u16())
	}
	m.Dest = r.u16()
	m.Inner = r.bytes(r.remaining())
	if r.err == nil && len(m.Inner) == 0 {
		return Forward{}, malformed("forward without inner frame")
	}
	return m, r.err
}

// MaxDataPayload is the largest DataMsg payload, one type byte plus a full
// packet.
const MaxDataPayload = MTU - 3

// Data carries one packet between a node's communicator task and a remote
// peer. Port selects the communicator port on the receiving side.
type Data struct {
	Port   uint8
	Packet packet.Packet
}

func EncodeData(m Data) ([]byte, error) {
	if err := m.Packet.Validate(); err != nil {
		return nil, err
	}
	w := newWriter(TypeData, MTU)
	w.u8(m.Port)
	w.u8(1 + m.Packet.Length)
	w.u8(uint8(m.Packet.Type))
	w.raw(m.Packet.Bytes())
	return w.done()
}

func DecodeData(frame []byte) (Data, error) {
	r, err := newReader(frame, TypeData)
	if err != nil {
		return Data{}, err
	}
	m := Data{Port: r.u8()}
	l := int(r.u8())
	if r.err == nil && (l == 0 || l > MaxDataPayload) {
		return Data{}, malformed("data length %d", l)
	}
	t := packet.DataType(r.u8())
	body := r.bytes(l - 1)
	if r.err != nil {
		return Data{}, r.err
	}
	p, err := packet.New(t, body)
	if err != nil {
		return Data{}, err
	}
	m.Packet = p
	return m, nil
}

func EncodeError(rep errcode.Report) []byte {
	w := newWriter(TypeError, MTU)
	w.u16(rep.NodeID)
	w.u8(rep.ConfigID)
	w.u8(rep.Source)
	w.u8(uint8(rep.Code))
	return w.frame()
}

func DecodeError(frame []byte) (errcode.Report, error) {
	r, err := newReader(frame, TypeError)
	if err != nil {
		return errcode.Report{}, err
	}
	rep := errcode.Report{NodeID: r.u16(), ConfigID: r.u8(), Source: r.u8(), Code: errcode.Code(r.u8())}
	return rep, r.err
}

// CfgStart activates a completed delayed configuration.
type CfgStart struct {
	Master   uint16
	ConfigID uint8
}

func EncodeCfgStart(m CfgStart) []byte {
	w := newWriter(TypeCfgStart, MTU)
	w.u16(m.Master)
	w.u8(m.ConfigID)
	return w.frame()
}

func DecodeCfgStart(frame []byte) (CfgStart, error) {
	r, err := newReader(frame, TypeCfgStart)
	if err != nil {
		return CfgStart{}, err
	}
	m := CfgStart{Master: r.u16(), ConfigID: r.u8()}
	if r.err == nil && m.ConfigID > MaxConfigID {
		return CfgStart{}, malformed("config id %d", m.ConfigID)
	}
	return m, r.err
}

// CacheStart tells a node to apply a cached configuration. It shares the
// ConfigMsg header; the counts must match the cached entry.
type CacheStart struct {
	Header ConfigHeader
}

func EncodeCacheStart(m CacheStart) []byte {
	h := m.Header
	w := newWriter(TypeCacheStart, MTU)
	w.u8(boolBit(h.Delayed) | h.NumTasks&0x7F)
	w.u8(h.NumConns)
	w.u16(h.Master)
	w.u8(h.ConfigID << 4)
	return w.frame()
}

func DecodeCacheStart(frame []byte) (CacheStart, error) {
	r, err := newReader(frame, TypeCacheStart)
	if err != nil {
		return CacheStart{}, err
	}
	var h ConfigHeader
	b := r.u8()
	h.Delayed = b&0x80 != 0
	h.NumTasks = b & 0x7F
	h.NumConns = r.u8()
	h.Master = r.u16()
	h.ConfigID = r.u8() >> 4
	return CacheStart{Header: h}, r.err
}
