package packet

import (
	"bytes"

	"github.com/clelom/titan/internal/errcode"
)

// TaskConfig is the configuration of one instantiated task. InPorts and
// OutPorts are filled in by the task kind when the task is initialized.
// State is owned by the task implementation for the task's lifetime.
type TaskConfig struct {
	TaskID   uint8  // runID, equal to the registry slot index
	TaskType uint16 // kind UID
	Data     []byte
	InPorts  uint8
	OutPorts uint8
	State    any
}

// NewTaskConfig validates the descriptor fields received from the network.
func NewTaskConfig(runID uint8, taskType uint16, data []byte) (TaskConfig, error) {
	if len(data) > MaxConfigLength {
		return TaskConfig{}, errcode.New(errcode.MalformedPacket, runID, "config length %d exceeds %d", len(data), MaxConfigLength)
	}
	return TaskConfig{TaskID: runID, TaskType: taskType, Data: bytes.Clone(data)}, nil
}

// SameDescriptor reports whether two configurations describe the same task
// instance, ignoring runtime state.
func (c *TaskConfig) SameDescriptor(o *TaskConfig) bool {
	return c.TaskID == o.TaskID && c.TaskType == o.TaskType && bytes.Equal(c.Data, o.Data)
}

// Connection wires an output port of one task to an input port of another.
type Connection struct {
	SrcRunID uint8
	SrcPort  uint8
	DstRunID uint8
	DstPort  uint8
}
