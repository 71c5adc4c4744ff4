// Package scheduler provides the bounded activation queue that drives task
// execution on a node.
//
// An activation means "task T has new data on port P". Producers are
// interconnect writes, network data arrival and sensor samples. The run loop
// drains the queue in FIFO order, one activation at a time.
//
// The queue never grows: when it is full, new activations are dropped
// without an error, favoring availability over completeness under load.
package scheduler
