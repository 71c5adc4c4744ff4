// Package errcode defines the flat error enumeration shared by every part of
// the node runtime, together with the transient ErrorReport that carries a
// fault to the configured master.
//
// The numeric values are part of the wire format and must not change.
package errcode
