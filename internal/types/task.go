package types

import (
	"fmt"
	"strconv"
	"time"
)

// Version is the release string reported by the daemon and the CLI
const Version = "0.1.0"

// TaskID identifies a supervised thread. Zero is never assigned.
type TaskID uint64

// InvalidTaskID is the reserved "no task" id
const InvalidTaskID TaskID = 0

// String returns the decimal form of the id
func (id TaskID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseTaskID parses the decimal form produced by String
func ParseTaskID(s string) (TaskID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return InvalidTaskID, fmt.Errorf("invalid task id %q: %w", s, err)
	}
	if v == 0 {
		return InvalidTaskID, fmt.Errorf("invalid task id %q: zero is reserved", s)
	}
	return TaskID(v), nil
}

// State represents the lifecycle state of a registered task
type State string

const (
	StateWait    State = "wait"
	StateAlive   State = "alive"
	StateStop    State = "stop"
	StateTimeout State = "timeout"
	StateDead    State = "dead"
)

// Terminal reports whether no further transition is possible from s
func (s State) Terminal() bool {
	return s == StateStop || s == StateDead
}

// StackSize converts a size in KiB to bytes
func StackSize(kib int) int {
	return kib * 1024
}

// Attributes describe the OS thread backing a task
type Attributes struct {
	// Name is applied to the OS thread, truncated to the platform limit
	Name string `json:"name"`

	// StackSize in bytes, raised to the platform minimum
	StackSize int `json:"stackSize"`

	// Priority on the shared real-time scale
	Priority Priority `json:"priority"`
}

// Registration is everything the registry needs to supervise a task
type Registration struct {
	Attributes

	// Deadline is the maximum gap allowed between heartbeats.
	// Zero or negative disables timeout detection.
	Deadline time.Duration `json:"deadline"`

	// Policy selects the response to an abnormal death
	Policy FailurePolicy `json:"policy"`
}

// TaskInfo is a point-in-time snapshot of a registered task
type TaskInfo struct {
	TaskID        TaskID        `json:"taskId"`
	OSThreadID    int           `json:"osThreadId,omitempty"`
	Name          string        `json:"name"`
	State         State         `json:"state"`
	Policy        FailurePolicy `json:"policy"`
	Priority      Priority      `json:"priority"`
	StackSize     int           `json:"stackSize"`
	Deadline      time.Duration `json:"deadline"`
	CreatedAt     time.Time     `json:"createdAt"`
	LastHeartbeat time.Time     `json:"lastHeartbeat"`
	Timeouts      int           `json:"timeouts"`
}
