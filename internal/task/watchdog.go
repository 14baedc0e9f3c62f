package task

import (
	"time"

	"github.com/danpasecinic/taskwarden/internal/types"
)

// watchdog sweeps a registry. It runs on a thread created by spawn, outside
// the registry, so it is never subject to its own sweeps.
type watchdog struct {
	r         *Registry
	lastSweep time.Time
}

func newWatchdog(r *Registry) *watchdog {
	return &watchdog{r: r, lastSweep: r.cfg.Now()}
}

func (w *watchdog) run() int {
	ticker := time.NewTicker(w.r.cfg.SweepInterval)
	defer ticker.Stop()

	w.r.log.Debugw("watchdog started", "interval", w.r.cfg.SweepInterval)

	for {
		select {
		case <-ticker.C:
			w.sweep()
		case <-w.r.quit:
			w.r.log.Debugw("watchdog exited")
			return 0
		}
	}
}

// sweep runs the four passes in order. Each pass takes the registry lock only
// for its own duration.
func (w *watchdog) sweep() {
	w.cleanDead()
	w.markDead()
	w.markTimeouts()
	w.handleFailures()
}

// cleanDead removes every dead task
func (w *watchdog) cleanDead() {
	r := w.r
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.tasks[:0]
	for _, d := range r.tasks {
		d.mu.Lock()
		dead := d.state == types.StateDead
		d.mu.Unlock()

		if dead {
			r.log.Debugw("reclaimed dead task", "task", d.reg.Name, "id", d.id)
			continue
		}
		kept = append(kept, d)
	}
	for i := len(kept); i < len(r.tasks); i++ {
		r.tasks[i] = nil
	}
	r.tasks = kept
}

// markDead marks tasks whose thread is gone. A waiting task with a live
// thread is paused, not dead. Timed out tasks are left to handleFailures.
func (w *watchdog) markDead() {
	r := w.r
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range r.tasks {
		d.mu.Lock()
		live := d.state == types.StateWait || d.state == types.StateAlive
		if live && !r.threads.Exists(d.id) {
			r.log.Warnw("task thread exited", "task", d.reg.Name, "id", d.id, "state", d.state)
			d.state = types.StateDead
		}
		d.mu.Unlock()
	}
}

// correctClock resets every heartbeat if wall-clock time went backwards or
// jumped forward by more than ClockTolerance since the previous sweep
func (w *watchdog) correctClock(now time.Time) {
	r := w.r
	last := w.lastSweep
	w.lastSweep = now

	if !now.Before(last) && now.Sub(last) <= r.cfg.ClockTolerance {
		return
	}

	r.log.Warnw("wall clock jumped, resetting heartbeats", "from", last, "to", now)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range r.tasks {
		d.mu.Lock()
		d.lastBeat = now
		d.timeouts = 0
		d.mu.Unlock()
	}
}

// markTimeouts counts consecutive sweeps in which an alive task missed its
// deadline and moves it to StateTimeout once TimeoutThreshold is reached
func (w *watchdog) markTimeouts() {
	r := w.r
	now := r.cfg.Now()
	w.correctClock(now)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range r.tasks {
		if d.id == types.InvalidTaskID || d.reg.Deadline <= 0 {
			continue
		}

		d.mu.Lock()
		if d.state != types.StateAlive || !r.threads.Exists(d.id) {
			d.mu.Unlock()
			continue
		}

		if now.Sub(d.lastBeat) > d.reg.Deadline {
			d.timeouts++
			r.log.Debugw("task missed deadline", "task", d.reg.Name, "id", d.id, "count", d.timeouts)
			if d.timeouts >= r.cfg.TimeoutThreshold {
				d.state = types.StateTimeout
				r.log.Warnw("task timed out", "task", d.reg.Name, "id", d.id, "deadline", d.reg.Deadline)
			}
		} else {
			d.timeouts = 0
		}
		d.mu.Unlock()
	}
}

// handleFailures reports timed out and dead tasks. Callbacks run with no lock
// held so they may call back into the registry.
func (w *watchdog) handleFailures() {
	r := w.r

	r.mu.Lock()
	tasks := make([]*descriptor, len(r.tasks))
	copy(tasks, r.tasks)
	r.mu.Unlock()

	for _, d := range tasks {
		d.mu.Lock()
		switch {
		case d.state == types.StateTimeout:
			d.handled = true
			rec := d.failureLocked(types.ReasonTimeout, r.cfg.Now())
			hook := d.hookLocked(hookTimeout)
			d.mu.Unlock()

			w.report(rec)
			r.invoke("timeout", d.id, hook)

			d.mu.Lock()
			if d.state == types.StateTimeout {
				d.state = types.StateDead
			}
			d.mu.Unlock()

		case d.state == types.StateDead && !d.handled:
			d.handled = true
			rec := d.failureLocked(types.ReasonAbnormalDeath, r.cfg.Now())
			hook := d.hookLocked(hookException)
			d.mu.Unlock()

			w.report(rec)
			w.applyPolicy(d, rec, hook)

		default:
			d.mu.Unlock()
		}
	}
}

func (w *watchdog) report(rec types.FailureRecord) {
	r := w.r
	if r.cfg.Report == nil {
		return
	}
	r.invoke("report", rec.TaskID, func() { r.cfg.Report(rec) })
}

func (w *watchdog) applyPolicy(d *descriptor, rec types.FailureRecord, exception Hook) {
	r := w.r

	if d.reg.Policy.RunsExceptionHook() {
		r.invoke("exception", d.id, exception)
	}

	switch d.reg.Policy {
	case types.PolicyRebootSystem:
		r.reboot.Store(true)
		r.log.Errorw("task with reboot policy died, reboot requested", "task", d.reg.Name, "id", d.id)
	case types.PolicyRestart:
		if r.cfg.OnRestart == nil {
			r.log.Warnw("task with restart policy died, no restart handler", "task", d.reg.Name, "id", d.id)
			return
		}
		r.invoke("restart", d.id, func() { r.cfg.OnRestart(rec, d.reg) })
	}
}
