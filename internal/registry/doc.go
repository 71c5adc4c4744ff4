// Package registry is the glue between task kinds compiled into the binary
// and the task instances a configuration asks for.
//
// Task kinds register themselves once at startup through the Module
// interface. Configured instances live in a fixed array of packet.MaxTasks
// slots; the slot index is the task's runID, the identifier the network
// uses to address it.
package registry
