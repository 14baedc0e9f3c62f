package task

import (
	"context"
	"errors"

	"github.com/sethvargo/go-retry"

	"github.com/danpasecinic/taskwarden/internal/types"
)

var errStillRunning = errors.New("task thread still running")

// Stop moves the task to StateStop, waits a bounded time for its thread to
// notice and exit, forces termination if it did not, runs the exit hook and
// removes the task. Stopping a task that is already stopped or dead is a
// no-op. It reports whether this call stopped the task.
func (r *Registry) Stop(id types.TaskID) bool {
	d := r.lookup(id)
	if d == nil {
		r.log.Debugw("stop unknown task", "id", id)
		return false
	}

	d.mu.Lock()
	if d.state.Terminal() {
		d.mu.Unlock()
		return false
	}
	d.state = types.StateStop
	d.cond.Broadcast()
	d.mu.Unlock()

	// d.mu is released while polling so the task can observe StateStop.
	if r.awaitExit(id) != nil {
		r.log.Warnw("force destroy task", "task", d.reg.Name, "id", id)
		if !r.threads.Kill(id) {
			r.log.Errorw("task did not terminate, abandoning it", "task", d.reg.Name, "id", id)
		}
	}

	d.mu.Lock()
	var exit Hook
	if !d.exited {
		d.exited = true
		exit = d.hookLocked(hookExit)
	}
	d.mu.Unlock()

	r.invoke("exit", id, exit)
	r.remove(d)

	r.log.Infow("task stopped", "task", d.reg.Name, "id", id)
	return true
}

// awaitExit polls the thread up to StopRetries times, StopInterval apart
func (r *Registry) awaitExit(id types.TaskID) error {
	backoff := retry.WithMaxRetries(uint64(r.cfg.StopRetries), retry.NewConstant(r.cfg.StopInterval))

	return retry.Do(
		context.Background(), backoff, func(ctx context.Context) error {
			if r.threads.Exists(id) {
				return retry.RetryableError(errStillRunning)
			}
			return nil
		},
	)
}
