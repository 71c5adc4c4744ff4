package wire

import (
	"github.com/clelom/titan/internal/errcode"
	"github.com/clelom/titan/internal/packet"
)

const (
	// MaxConfigID bounds the 4 bit configuration identifier.
	MaxConfigID = 0x0F
	// MaxSegmentEntries bounds the 4 bit per-segment count.
	MaxSegmentEntries = 0x0F
	// MaxConfigTasks bounds the 7 bit task count of a ConfigMsg.
	MaxConfigTasks = 0x7F

	configHeaderLen = 5 // header byte, delayed|numTasks, numConns, master
	taskDescHeader  = 4
	connLen         = 4
	minSplitLimit   = configHeaderLen + 1 + taskDescHeader + 1
)

// TaskDesc describes one task instance in a configuration.
type TaskDesc struct {
	Kind   uint16
	RunID  uint8
	Config []byte
}

// Size returns the encoded size of the descriptor.
func (d TaskDesc) Size() int { return taskDescHeader + len(d.Config) }

// Config is a complete node configuration: a ConfigMsg header plus every task
// descriptor and connection, regardless of how many frames carry them.
type Config struct {
	ConfigID uint8
	Delayed  bool
	Master   uint16
	Tasks    []TaskDesc
	Conns    []packet.Connection
	// Store asks the node to cache the configuration once complete.
	Store bool
}

// Empty reports whether the configuration clears the node.
func (c *Config) Empty() bool { return len(c.Tasks) == 0 && len(c.Conns) == 0 }

// Validate checks the counts against the field widths of the header.
func (c *Config) Validate() error {
	if c.ConfigID > MaxConfigID {
		return errcode.New(errcode.BadConfig, errcode.SourceFramework, "config id %d exceeds %d", c.ConfigID, MaxConfigID)
	}
	if len(c.Tasks) > MaxConfigTasks || len(c.Conns) > 0xFF {
		return errcode.New(errcode.BadConfig, errcode.SourceFramework, "%d tasks and %d connections do not fit a header", len(c.Tasks), len(c.Conns))
	}
	for _, d := range c.Tasks {
		if len(d.Config) > packet.MaxConfigLength {
			return errcode.New(errcode.BadConfig, d.RunID, "task config of %d bytes exceeds %d", len(d.Config), packet.MaxConfigLength)
		}
	}
	return nil
}

// ConfigHeader is the fixed part of a ConfigMsg or CacheStore frame.
type ConfigHeader struct {
	Delayed  bool
	NumTasks uint8
	NumConns uint8
	Master   uint16
	ConfigID uint8
}

// TaskSegment is a TaskMsg: task descriptors of one configuration.
type TaskSegment struct {
	ConfigID uint8
	Tasks    []TaskDesc
}

// ConnSegment is a ConnMsg: connections of one configuration.
type ConnSegment struct {
	ConfigID uint8
	Conns    []packet.Connection
}

// ConfigFrame is a decoded ConfigMsg or CacheStore frame. Conns is nil when
// the frame carries no connection segment.
type ConfigFrame struct {
	Header ConfigHeader
	Tasks  TaskSegment
	Conns  *ConnSegment
}

// SplitConfig encodes cfg into frames of at most limit bytes. The first frame
// is a ConfigMsg (or CacheStore when cfg.Store is set) holding as many
// descriptors as fit; the rest follow in CfgTask and CfgConn frames.
func SplitConfig(cfg Config, limit int) ([][]byte, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > MTU {
		limit = MTU
	}
	if limit < minSplitLimit {
		return nil, errcode.New(errcode.OutboundBufferFull, errcode.SourceFramework, "frame limit %d below %d", limit, minSplitLimit)
	}
	first := TypeConfig
	if cfg.Store {
		first = TypeCacheStore
	}

	var frames [][]byte
	w := newWriter(first, limit)
	w.u8(boolBit(cfg.Delayed) | uint8(len(cfg.Tasks)))
	w.u8(uint8(len(cfg.Conns)))
	w.u16(cfg.Master)

	tasks := cfg.Tasks
	for {
		n := fitTasks(tasks, w.room()-1)
		if n == 0 && len(tasks) > 0 && len(frames) > 0 {
			return nil, errcode.New(errcode.OutboundBufferFull, tasks[0].RunID, "task descriptor of %d bytes exceeds frame limit %d", tasks[0].Size(), limit)
		}
		w.u8(cfg.ConfigID<<4 | uint8(n))
		for _, d := range tasks[:n] {
			w.u16(d.Kind)
			w.u8(d.RunID)
			w.u8(uint8(len(d.Config)))
			w.raw(d.Config)
		}
		tasks = tasks[n:]
		if len(tasks) == 0 {
			break
		}
		frames = append(frames, w.frame())
		w = newWriter(TypeCfgTask, limit)
	}

	conns := cfg.Conns
	if len(conns) > 0 && len(frames) > 0 {
		// Connections only ride in the leading frame or in CfgConn frames.
		frames = append(frames, w.frame())
		w = newWriter(TypeCfgConn, limit)
	}
	for len(conns) > 0 {
		n := min((w.room()-1)/connLen, MaxSegmentEntries, len(conns))
		if n <= 0 {
			frames = append(frames, w.frame())
			w = newWriter(TypeCfgConn, limit)
			continue
		}
		w.u8(cfg.ConfigID<<4 | uint8(n))
		for _, c := range conns[:n] {
			w.u8(c.SrcRunID)
			w.u8(c.SrcPort)
			w.u8(c.DstRunID)
			w.u8(c.DstPort)
		}
		conns = conns[n:]
		if len(conns) > 0 {
			frames = append(frames, w.frame())
			w = newWriter(TypeCfgConn, limit)
		}
	}
	last, err := w.done()
	if err != nil {
		return nil, err
	}
	return append(frames, last), nil
}

func fitTasks(tasks []TaskDesc, room int) int {
	n := 0
	for _, d := range tasks {
		if n == MaxSegmentEntries || d.Size() > room {
			break
		}
		room -= d.Size()
		n++
	}
	return n
}

func boolBit(b bool) uint8 {
	if b {
		return 0x80
	}
	return 0
}

// DecodeConfig decodes a ConfigMsg or CacheStore frame.
func DecodeConfig(frame []byte) (ConfigFrame, error) {
	t, err := PeekType(frame)
	if err != nil {
		return ConfigFrame{}, err
	}
	if t != TypeConfig && t != TypeCacheStore {
		return ConfigFrame{}, malformed("expected config, got %s", t)
	}
	r := &reader{buf: frame, off: 1}

	var f ConfigFrame
	b := r.u8()
	f.Header.Delayed = b&0x80 != 0
	f.Header.NumTasks = b & 0x7F
	f.Header.NumConns = r.u8()
	f.Header.Master = r.u16()
	f.Tasks = r.taskSegment()
	f.Header.ConfigID = f.Tasks.ConfigID
	if r.remaining() > 0 && r.buf[r.off] != 0 {
		cs := r.connSegment()
		f.Conns = &cs
	}
	if r.err != nil {
		return ConfigFrame{}, r.err
	}
	if len(f.Tasks.Tasks) > int(f.Header.NumTasks) || (f.Conns != nil && len(f.Conns.Conns) > int(f.Header.NumConns)) {
		return ConfigFrame{}, errcode.New(errcode.SegmentSizeMismatch, errcode.SourceFramework, "segment counts exceed header")
	}
	if f.Conns != nil && f.Conns.ConfigID != f.Header.ConfigID {
		return ConfigFrame{}, malformed("connection segment for config %d inside config %d", f.Conns.ConfigID, f.Header.ConfigID)
	}
	return f, nil
}

// DecodeCfgTask decodes a continuation frame carrying task descriptors.
func DecodeCfgTask(frame []byte) (TaskSegment, error) {
	r, err := newReader(frame, TypeCfgTask)
	if err != nil {
		return TaskSegment{}, err
	}
	seg := r.taskSegment()
	return seg, r.err
}

// DecodeCfgConn decodes a continuation frame carrying connections.
func DecodeCfgConn(frame []byte) (ConnSegment, error) {
	r, err := newReader(frame, TypeCfgConn)
	if err != nil {
		return ConnSegment{}, err
	}
	seg := r.connSegment()
	return seg, r.err
}

func (r *reader) taskSegment() TaskSegment {
	b := r.u8()
	seg := TaskSegment{ConfigID: b >> 4}
	n := int(b & 0x0F)
	for i := 0; i < n && r.err == nil; i++ {
		var d TaskDesc
		d.Kind = r.u16()
		d.RunID = r.u8()
		l := int(r.u8())
		if l > packet.MaxConfigLength {
			r.err = malformed("task %d config length %d exceeds %d", d.RunID, l, packet.MaxConfigLength)
			break
		}
		d.Config = r.bytes(l)
		seg.Tasks = append(seg.Tasks, d)
	}
	return seg
}

func (r *reader) connSegment() ConnSegment {
	b := r.u8()
	seg := ConnSegment{ConfigID: b >> 4}
	n := int(b & 0x0F)
	if r.err == nil && r.remaining() < n*connLen {
		r.err = malformed("%d connections declared, %d bytes left", n, r.remaining())
		return seg
	}
	for i := 0; i < n; i++ {
		seg.Conns = append(seg.Conns, packet.Connection{
			SrcRunID: r.u8(), SrcPort: r.u8(), DstRunID: r.u8(), DstPort: r.u8(),
		})
	}
	return seg
}

// EncodeSegments serializes the task and connection segments of cfg into the
// compact form kept by the configuration cache.
func EncodeSegments(cfg Config) []byte {
	var out []byte
	for i := 0; i < len(cfg.Tasks) || i == 0; i += MaxSegmentEntries {
		chunk := cfg.Tasks[i:min(i+MaxSegmentEntries, len(cfg.Tasks))]
		out = append(out, cfg.ConfigID<<4|uint8(len(chunk)))
		for _, d := range chunk {
			out = append(out, byte(d.Kind>>8), byte(d.Kind), d.RunID, uint8(len(d.Config)))
			out = append(out, d.Config...)
		}
	}
	for i := 0; i < len(cfg.Conns); i += MaxSegmentEntries {
		chunk := cfg.Conns[i:min(i+MaxSegmentEntries, len(cfg.Conns))]
		out = append(out, cfg.ConfigID<<4|uint8(len(chunk)))
		for _, c := range chunk {
			out = append(out, c.SrcRunID, c.SrcPort, c.DstRunID, c.DstPort)
		}
	}
	return out
}

// DecodeSegments parses data produced by EncodeSegments, given the counts
// recorded alongside it.
func DecodeSegments(configID uint8, numTasks, numConns int, data []byte) (Config, error) {
	cfg := Config{ConfigID: configID}
	r := &reader{buf: data}
	for len(cfg.Tasks) < numTasks || (numTasks == 0 && r.off == 0) {
		seg := r.taskSegment()
		if r.err != nil {
			return Config{}, r.err
		}
		if seg.ConfigID != configID || (len(seg.Tasks) == 0 && numTasks > 0) {
			return Config{}, errcode.New(errcode.SegmentSizeMismatch, errcode.SourceFramework, "cached task segment does not match config %d", configID)
		}
		cfg.Tasks = append(cfg.Tasks, seg.Tasks...)
	}
	for len(cfg.Conns) < numConns {
		seg := r.connSegment()
		if r.err != nil {
			return Config{}, r.err
		}
		if seg.ConfigID != configID || len(seg.Conns) == 0 {
			return Config{}, errcode.New(errcode.SegmentSizeMismatch, errcode.SourceFramework, "cached connection segment does not match config %d", configID)
		}
		cfg.Conns = append(cfg.Conns, seg.Conns...)
	}
	if len(cfg.Tasks) != numTasks || len(cfg.Conns) != numConns {
		return Config{}, errcode.New(errcode.SegmentSizeMismatch, errcode.SourceFramework, "cached config %d holds %d tasks and %d connections", configID, len(cfg.Tasks), len(cfg.Conns))
	}
	return cfg, nil
}
