// Package executor runs the task graph of one node.
//
// The executor owns the registry slots, the link table and the activation
// queue. Everything it touches is confined to the caller's goroutine; the
// node's run loop calls Step and the configuration entry points in turn, so
// no locking is needed. Producers on other goroutines hand work to the run
// loop over channels and never call the executor directly.
//
// One Step pops one activation, invokes the task once for each packet
// waiting on the activated port, then pushes the task's outputs into the
// downstream links and enqueues the receiving tasks. Faults are raised as
// error reports and never stop the loop.
package executor
