package task

import (
	"github.com/danpasecinic/taskwarden/internal/thread"
	"github.com/danpasecinic/taskwarden/internal/types"
)

// threadOps is the slice of the thread package used by the registry
type threadOps interface {
	Create(stackSize int, priority types.Priority, entry thread.Entry) (types.TaskID, error)
	Exists(id types.TaskID) bool
	Kill(id types.TaskID) bool
	SetName(id types.TaskID, name string) error
	OSID(id types.TaskID) int
}

type osThreads struct{}

func (osThreads) Create(stackSize int, priority types.Priority, entry thread.Entry) (types.TaskID, error) {
	return thread.Create(stackSize, priority, entry)
}

func (osThreads) Exists(id types.TaskID) bool {
	return thread.Exists(id)
}

func (osThreads) Kill(id types.TaskID) bool {
	return thread.Kill(id)
}

func (osThreads) SetName(id types.TaskID, name string) error {
	return thread.SetName(id, name)
}

func (osThreads) OSID(id types.TaskID) int {
	info, ok := thread.Lookup(id)
	if !ok {
		return 0
	}
	return info.OSID
}
