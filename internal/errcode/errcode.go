package errcode

import (
	"context"
	"errors"
	"fmt"
)

// Code is a wire-compatible error code.
type Code uint8

const (
	NoMemory                   Code = 1  // registry, link table or cache capacity exhausted
	UnexpectedInput            Code = 2  // a task without inputs received input
	MultipleInstanceNotAllowed Code = 3  // singleton kind instantiated twice
	BadConfig                  Code = 4  // configuration content is invalid
	SegmentSizeMismatch        Code = 5  // segment counts disagree with the header
	MalformedPacket            Code = 6  // frame cannot be decoded
	UnexpectedPort             Code = 7  // activation or connection on a nonexistent port
	InvalidType                Code = 8  // packet carries data of the wrong type
	NotImplemented             Code = 9  // unknown task kind or message type
	OutFifoFull                Code = 10 // push on a full interconnect
	InFifoEmpty                Code = 11 // pop on an empty interconnect
	NoTaskContext              Code = 12 // activation for an unconfigured slot
	OutboundBufferFull         Code = 13 // radio congestion
	NoCacheEntry               Code = 14 // cache start for an unknown configID
	CacheStoreFailed           Code = 15 // configuration could not be cached
)

// SourceFramework is the error source used for faults raised by the runtime
// itself rather than by a task.
const SourceFramework uint8 = 0xFF

var names = map[Code]string{
	NoMemory:                   "no memory",
	UnexpectedInput:            "unexpected input",
	MultipleInstanceNotAllowed: "multiple instances not allowed",
	BadConfig:                  "bad configuration",
	SegmentSizeMismatch:        "segment size mismatch",
	MalformedPacket:            "malformed packet",
	UnexpectedPort:             "unexpected port",
	InvalidType:                "invalid data type",
	NotImplemented:             "not implemented",
	OutFifoFull:                "output fifo full",
	InFifoEmpty:                "input fifo empty",
	NoTaskContext:              "no task context",
	OutboundBufferFull:         "outbound buffer full",
	NoCacheEntry:               "no cache entry",
	CacheStoreFailed:           "cache store failed",
}

func (c Code) String() string {
	if s, ok := names[c]; ok {
		return s
	}
	return fmt.Sprintf("error %d", uint8(c))
}

// Sentinels for errors.Is comparisons.
var (
	ErrNoMemory           = &Error{Code: NoMemory}
	ErrUnexpectedInput    = &Error{Code: UnexpectedInput}
	ErrMultipleInstance   = &Error{Code: MultipleInstanceNotAllowed}
	ErrBadConfig          = &Error{Code: BadConfig}
	ErrSegmentSize        = &Error{Code: SegmentSizeMismatch}
	ErrMalformedPacket    = &Error{Code: MalformedPacket}
	ErrUnexpectedPort     = &Error{Code: UnexpectedPort}
	ErrInvalidType        = &Error{Code: InvalidType}
	ErrNotImplemented     = &Error{Code: NotImplemented}
	ErrOutFifoFull        = &Error{Code: OutFifoFull}
	ErrInFifoEmpty        = &Error{Code: InFifoEmpty}
	ErrNoTaskContext      = &Error{Code: NoTaskContext}
	ErrOutboundBufferFull = &Error{Code: OutboundBufferFull}
	ErrNoCacheEntry       = &Error{Code: NoCacheEntry}
	ErrCacheStoreFailed   = &Error{Code: CacheStoreFailed}
)

// Error is a coded fault raised by a component of the runtime.
type Error struct {
	Code   Code
	Source uint8
	Err    error
}

// New returns a coded error raised by source.
func New(code Code, source uint8, format string, args ...any) *Error {
	var err error
	if format != "" {
		err = fmt.Errorf(format, args...)
	}
	return &Error{Code: code, Source: source, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error carrying the same code, so sentinels compare by code
// regardless of source and detail.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// CodeOf extracts the code from err. ok is false for uncoded errors.
func CodeOf(err error) (code Code, ok bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}

// Report is the transient ErrorReport sent toward the master.
type Report struct {
	NodeID   uint16
	ConfigID uint8
	Source   uint8
	Code     Code
}

func (r Report) String() string {
	return fmt.Sprintf("node %d config %d source %d: %s", r.NodeID, r.ConfigID, r.Source, r.Code)
}

// Reporter receives error reports. Implementations must not block the run loop.
type Reporter interface {
	Report(ctx context.Context, r Report)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(ctx context.Context, r Report)

func (f ReporterFunc) Report(ctx context.Context, r Report) { f(ctx, r) }
