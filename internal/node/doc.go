// Package node runs one Titan node: it executes the installed task graph and
// serves the configuration protocol over a radio transceiver.
//
// All node state is owned by a single run loop. Frames, timer expiries and
// sensor samples are turned into events for that loop; nothing else touches
// the executor, the cache or the reassembly state.
package node
