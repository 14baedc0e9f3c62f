// Package task supervises long-running workers, each on its own OS thread.
//
// A Registry owns the task descriptors and their lifecycle:
//
//	wait ⇄ alive → stop                 (caller driven)
//	alive → timeout → dead → removed    (watchdog driven)
//	alive → dead → removed              (thread exited)
//
// Tasks call Heartbeat on every iteration of their work loop. Heartbeat blocks
// while the task is paused and reports false once the task should exit. A
// watchdog thread started by New sweeps the registry every SweepInterval,
// marks stale or exited tasks and delivers failure callbacks.
package task

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danpasecinic/taskwarden/internal/spawn"
	"github.com/danpasecinic/taskwarden/internal/types"
)

// watchdogAttributes configure the thread running the sweeps
var watchdogAttributes = types.Attributes{
	Name:      "task watchdog",
	StackSize: types.StackSize(8),
	Priority:  types.PrioritySys,
}

// Registry is the authoritative store of supervised tasks
type Registry struct {
	cfg     Config
	log     *zap.SugaredLogger
	threads threadOps

	mu    sync.Mutex
	tasks []*descriptor

	closed   atomic.Bool
	reboot   atomic.Bool
	quit     chan struct{}
	dog      *watchdog
	watchdog *spawn.Future[int]
}

// New creates a registry and starts its watchdog
func New(cfg Config) (*Registry, error) {
	return newRegistryWithThreads(cfg, osThreads{})
}

// newRegistryWithThreads creates a registry on top of any threadOps (useful for testing)
func newRegistryWithThreads(cfg Config, threads threadOps) (*Registry, error) {
	cfg = cfg.withDefaults()

	r := &Registry{
		cfg:     cfg,
		log:     cfg.Logger,
		threads: threads,
		quit:    make(chan struct{}),
	}

	r.dog = newWatchdog(r)
	_, fut, err := spawn.Spawn(watchdogAttributes, r.dog.run)
	if err != nil {
		return nil, fmt.Errorf("failed to start watchdog: %w", err)
	}
	r.watchdog = fut

	return r, nil
}

// Close stops the watchdog, then stops every remaining task. It returns
// ctx.Err() if the watchdog does not exit in time; tasks are drained anyway.
func (r *Registry) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}

	close(r.quit)

	var werr error
	if _, err := r.watchdog.Wait(ctx); err != nil {
		werr = fmt.Errorf("waiting for watchdog: %w", err)
	}

	r.mu.Lock()
	ids := make([]types.TaskID, 0, len(r.tasks))
	for _, d := range r.tasks {
		ids = append(ids, d.id)
	}
	r.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(8)
	for _, id := range ids {
		id := id
		g.Go(
			func() error {
				r.Stop(id)
				return nil
			},
		)
	}
	_ = g.Wait()

	r.log.Infow("task registry closed", "stopped", len(ids))
	return werr
}

// Register creates a task in StateWait. Its thread is already running but
// blocks until the registry lock is released and then again until Run.
func (r *Registry) Register(reg types.Registration, work Work) (types.TaskID, error) {
	if work == nil {
		return types.InvalidTaskID, fmt.Errorf("%w: nil work function", ErrInvalidRegistration)
	}
	if !reg.Policy.Valid() {
		return types.InvalidTaskID, fmt.Errorf("%w: unknown policy %q", ErrInvalidRegistration, reg.Policy)
	}
	if reg.Policy == "" {
		reg.Policy = types.PolicyDefault
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed.Load() {
		return types.InvalidTaskID, ErrClosed
	}

	if len(r.tasks) >= r.cfg.MaxTasks {
		r.log.Warnw("task registry full", "task", reg.Name, "max", r.cfg.MaxTasks)
		return types.InvalidTaskID, fmt.Errorf("%w: max %d tasks", ErrCapacityExceeded, r.cfg.MaxTasks)
	}

	d := newDescriptor(reg, work, r.cfg.Now())

	id, err := r.threads.Create(reg.StackSize, reg.Priority, r.runTask)
	if err != nil {
		r.log.Errorw("failed to create task thread", "task", reg.Name, "error", err)
		return types.InvalidTaskID, fmt.Errorf("%w: %v", ErrThreadCreate, err)
	}

	d.id = id
	r.tasks = append(r.tasks, d)

	r.log.Debugw("task registered", "task", reg.Name, "id", id)
	return id, nil
}

// runTask is the entry point of every task thread
func (r *Registry) runTask(ctx context.Context, id types.TaskID) {
	// Blocks until Register has published the descriptor.
	d := r.lookup(id)
	if d == nil {
		r.log.Warnw("task thread has no descriptor", "id", id)
		return
	}

	if err := r.threads.SetName(id, d.reg.Name); err != nil {
		r.log.Debugw("failed to name task thread", "task", d.reg.Name, "id", id, "error", err)
	}

	d.mu.Lock()
	for d.state == types.StateWait {
		d.cond.Wait()
	}
	state := d.state
	d.mu.Unlock()

	if state != types.StateAlive {
		r.log.Debugw("task left before running", "task", d.reg.Name, "id", id, "state", state)
		return
	}

	r.log.Infow("task running", "task", d.reg.Name, "id", id)

	defer func() {
		if p := recover(); p != nil {
			r.log.Errorw(
				"task panicked", "task", d.reg.Name, "id", id, "panic", p, "stack", string(debug.Stack()),
			)
		}
	}()

	d.work(ctx, id)
}

// AttachException sets the hook run when the task dies under a policy that
// runs it
func (r *Registry) AttachException(id types.TaskID, fn Hook) error {
	return r.attach(id, hookException, fn)
}

// AttachTimeout sets the hook run when the task misses its deadline
func (r *Registry) AttachTimeout(id types.TaskID, fn Hook) error {
	return r.attach(id, hookTimeout, fn)
}

// AttachExit sets the hook run after the task is stopped through Stop
func (r *Registry) AttachExit(id types.TaskID, fn Hook) error {
	return r.attach(id, hookExit, fn)
}

func (r *Registry) attach(id types.TaskID, kind hookKind, fn Hook) error {
	d := r.lookup(id)
	if d == nil {
		r.log.Debugw("attach to unknown task", "id", id, "hook", kind.String())
		return fmt.Errorf("%w: %d", ErrTaskNotFound, id)
	}

	d.setHook(kind, fn)
	return nil
}

// Run starts a task that is waiting. It reports whether the state changed.
func (r *Registry) Run(id types.TaskID) bool {
	return r.Continue(id)
}

// Continue resumes a paused task. It reports whether the state changed.
func (r *Registry) Continue(id types.TaskID) bool {
	d := r.lookup(id)
	if d == nil {
		r.log.Debugw("continue unknown task", "id", id)
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != types.StateWait {
		return false
	}

	d.state = types.StateAlive
	d.lastBeat = r.cfg.Now()
	d.timeouts = 0
	d.cond.Broadcast()
	return true
}

// Pause moves an alive task back to StateWait. The task blocks at its next
// Heartbeat. It reports whether the state changed.
func (r *Registry) Pause(id types.TaskID) bool {
	d := r.lookup(id)
	if d == nil {
		r.log.Debugw("pause unknown task", "id", id)
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != types.StateAlive {
		return false
	}

	d.state = types.StateWait
	return true
}

// Heartbeat is called by the task itself on every iteration. It blocks while
// the task is paused, records liveness and reports whether the task should
// keep going.
func (r *Registry) Heartbeat(id types.TaskID) bool {
	d := r.lookup(id)
	if d == nil {
		r.log.Debugw("heartbeat from unknown task", "id", id)
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for d.state == types.StateWait {
		d.cond.Wait()
	}

	if d.state != types.StateAlive {
		return false
	}

	d.lastBeat = r.cfg.Now()
	return true
}

// IsAlive reports whether the task is alive and its thread still exists.
// It never blocks.
func (r *Registry) IsAlive(id types.TaskID) bool {
	d := r.lookup(id)
	if d == nil {
		return false
	}

	d.mu.Lock()
	alive := d.state == types.StateAlive
	d.mu.Unlock()

	return alive && r.threads.Exists(id)
}

// State returns the task's state, or StateStop for ids that are not registered
func (r *Registry) State(id types.TaskID) types.State {
	d := r.lookup(id)
	if d == nil {
		return types.StateStop
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Info returns a snapshot of one task
func (r *Registry) Info(id types.TaskID) (types.TaskInfo, bool) {
	d := r.lookup(id)
	if d == nil {
		return types.TaskInfo{}, false
	}

	info := d.snapshot()
	info.OSThreadID = r.threads.OSID(id)
	return info, true
}

// List returns snapshots of all tasks in registration order
func (r *Registry) List() []types.TaskInfo {
	r.mu.Lock()
	tasks := make([]*descriptor, len(r.tasks))
	copy(tasks, r.tasks)
	r.mu.Unlock()

	infos := make([]types.TaskInfo, 0, len(tasks))
	for _, d := range tasks {
		info := d.snapshot()
		info.OSThreadID = r.threads.OSID(d.id)
		infos = append(infos, info)
	}
	return infos
}

// Len returns the number of registered tasks
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// RebootRequested reports whether a task with PolicyRebootSystem has died.
// Acting on it is up to the owner of the registry.
func (r *Registry) RebootRequested() bool {
	return r.reboot.Load()
}

func (r *Registry) lookup(id types.TaskID) *descriptor {
	if id == types.InvalidTaskID {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookupLocked(id)
}

func (r *Registry) lookupLocked(id types.TaskID) *descriptor {
	for _, d := range r.tasks {
		if d.id == id {
			return d
		}
	}
	return nil
}

// remove drops d from the task list
func (r *Registry) remove(d *descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, item := range r.tasks {
		if item == d {
			r.tasks = append(r.tasks[:i], r.tasks[i+1:]...)
			return
		}
	}
}

// invoke runs a user callback, containing any panic it raises
func (r *Registry) invoke(what string, id types.TaskID, fn func()) {
	if fn == nil {
		return
	}

	defer func() {
		if p := recover(); p != nil {
			r.log.Errorw("callback panicked", "callback", what, "id", id, "panic", p)
		}
	}()

	fn()
}
