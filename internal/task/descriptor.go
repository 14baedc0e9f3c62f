package task

import (
	"context"
	"sync"
	"time"

	"github.com/danpasecinic/taskwarden/internal/types"
)

// Work is the function run by a registered task. It should call
// Registry.Heartbeat with id on every iteration and return once Heartbeat
// reports false. ctx is cancelled only when the task is forcibly terminated.
type Work func(ctx context.Context, id types.TaskID)

// Hook is a callback attached to a task
type Hook func()

type hookKind int

const (
	hookException hookKind = iota
	hookTimeout
	hookExit
)

func (k hookKind) String() string {
	switch k {
	case hookException:
		return "exception"
	case hookTimeout:
		return "timeout"
	case hookExit:
		return "exit"
	default:
		return "unknown"
	}
}

// descriptor is the registry's record of one task. Everything below mu is
// guarded by it; id, reg and work never change after registration.
type descriptor struct {
	id   types.TaskID
	reg  types.Registration
	work Work

	mu        sync.Mutex
	cond      *sync.Cond
	state     types.State
	createdAt time.Time
	lastBeat  time.Time
	timeouts  int
	// handled is set once the watchdog has reported the current failure
	handled bool
	// exited is set once the exit hook has been claimed
	exited bool
	hooks  [3]Hook
}

func newDescriptor(reg types.Registration, work Work, now time.Time) *descriptor {
	d := &descriptor{
		reg:       reg,
		work:      work,
		state:     types.StateWait,
		createdAt: now,
		lastBeat:  now,
	}
	d.cond = sync.NewCond(&d.mu)
	return d
}

func (d *descriptor) setHook(kind hookKind, fn Hook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks[kind] = fn
}

// hookLocked returns the hook of the given kind; d.mu must be held
func (d *descriptor) hookLocked(kind hookKind) Hook {
	return d.hooks[kind]
}

func (d *descriptor) failureLocked(reason types.FailureReason, now time.Time) types.FailureRecord {
	return types.FailureRecord{
		TaskID: d.id,
		Name:   d.reg.Name,
		Reason: reason,
		Time:   now,
	}
}

func (d *descriptor) snapshot() types.TaskInfo {
	d.mu.Lock()
	defer d.mu.Unlock()

	return types.TaskInfo{
		TaskID:        d.id,
		Name:          d.reg.Name,
		State:         d.state,
		Policy:        d.reg.Policy,
		Priority:      d.reg.Priority,
		StackSize:     d.reg.StackSize,
		Deadline:      d.reg.Deadline,
		CreatedAt:     d.createdAt,
		LastHeartbeat: d.lastBeat,
		Timeouts:      d.timeouts,
	}
}
