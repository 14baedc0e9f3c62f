package main

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/danpasecinic/taskwarden/internal/spawn"
	"github.com/danpasecinic/taskwarden/internal/task"
	"github.com/danpasecinic/taskwarden/internal/types"
)

// maxDemoRestarts bounds how often the flaky workload is brought back
const maxDemoRestarts = 3

// demo registers sample workloads that exercise every supervision path
type demo struct {
	reg *task.Registry
	log *zap.SugaredLogger

	mu       sync.Mutex
	restarts map[string]int
	ctx      context.Context
}

func newDemo(log *zap.SugaredLogger) *demo {
	return &demo{
		log:      log.Named("demo"),
		restarts: make(map[string]int),
		ctx:      context.Background(),
	}
}

func (d *demo) run(ctx context.Context) {
	d.mu.Lock()
	d.ctx = ctx
	d.mu.Unlock()

	d.log.Infow("starting demo workloads")

	d.pausable(ctx)
	d.stopped(ctx)
	d.stalling()
	d.flaky()
	d.oneOff()
}

func demoRegistration(name string, deadline time.Duration, policy types.FailurePolicy) types.Registration {
	return types.Registration{
		Attributes: types.Attributes{
			Name:      name,
			StackSize: types.StackSize(50),
			Priority:  types.PrioritySys,
		},
		Deadline: deadline,
		Policy:   policy,
	}
}

// beat returns a work loop that beats every interval for at most n rounds
func (d *demo) beat(interval time.Duration, n int) task.Work {
	return func(ctx context.Context, id types.TaskID) {
		for i := 0; i < n && d.reg.Heartbeat(id); i++ {
			d.log.Debugw("alive", "id", id, "round", i)
			select {
			case <-time.After(interval):
			case <-ctx.Done():
				return
			}
		}
	}
}

// pausable runs, is paused for a while and resumed
func (d *demo) pausable(ctx context.Context) {
	id, err := d.reg.Register(demoRegistration("demo pausable", 3*time.Minute, types.PolicyDefault), d.beat(time.Second, 60))
	if err != nil {
		d.log.Errorw("failed to register demo task", "task", "demo pausable", "error", err)
		return
	}

	_ = d.reg.AttachException(id, func() { d.log.Infow("pausable workload ended", "id", id) })
	d.reg.Run(id)

	go func() {
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return
		}
		d.reg.Pause(id)
		d.log.Infow("paused demo task", "id", id)

		select {
		case <-time.After(5 * time.Second):
		case <-ctx.Done():
			return
		}
		d.reg.Continue(id)
		d.log.Infow("resumed demo task", "id", id)
	}()
}

// stopped is stopped by hand shortly after starting
func (d *demo) stopped(ctx context.Context) {
	id, err := d.reg.Register(demoRegistration("demo stopped", 90*time.Second, types.PolicyDefault), d.beat(time.Second, 3))
	if err != nil {
		d.log.Errorw("failed to register demo task", "task", "demo stopped", "error", err)
		return
	}

	_ = d.reg.AttachExit(id, func() { d.log.Infow("stopped workload exit hook ran", "id", id) })
	d.reg.Run(id)

	go func() {
		select {
		case <-time.After(500 * time.Millisecond):
			d.reg.Stop(id)
		case <-ctx.Done():
		}
	}()
}

// stalling beats far less often than its deadline allows
func (d *demo) stalling() {
	id, err := d.reg.Register(demoRegistration("demo stalling", time.Second, types.PolicyDefault), d.beat(8*time.Second, 30))
	if err != nil {
		d.log.Errorw("failed to register demo task", "task", "demo stalling", "error", err)
		return
	}

	_ = d.reg.AttachTimeout(id, func() { d.log.Warnw("stalling workload timed out", "id", id) })
	d.reg.Run(id)
}

// flaky exits after a few beats and is restarted by its policy
func (d *demo) flaky() {
	id, err := d.reg.Register(demoRegistration("demo flaky", 10*time.Second, types.PolicyRestart), d.beat(time.Second, 5))
	if err != nil {
		d.log.Errorw("failed to register demo task", "task", "demo flaky", "error", err)
		return
	}
	d.reg.Run(id)
}

// oneOff runs a job through spawn and logs its result
func (d *demo) oneOff() {
	attr := types.Attributes{Name: "demo job", StackSize: types.StackSize(16), Priority: types.PriorityFun}

	_, fut, err := spawn.Spawn(
		attr, func() int {
			time.Sleep(200 * time.Millisecond)
			return 42
		},
	)
	if err != nil {
		d.log.Errorw("failed to spawn demo job", "error", err)
		return
	}

	go func() {
		v, err := fut.Get()
		if err != nil {
			d.log.Errorw("demo job failed", "error", err)
			return
		}
		d.log.Infow("demo job finished", "result", v)
	}()
}

// restart brings back tasks registered with the restart policy
func (d *demo) restart(rec types.FailureRecord, reg types.Registration) {
	d.mu.Lock()
	ctx := d.ctx
	n := d.restarts[reg.Name]
	if n >= maxDemoRestarts || d.reg == nil || ctx.Err() != nil {
		d.mu.Unlock()
		d.log.Warnw("not restarting task", "task", reg.Name, "id", rec.TaskID, "restarts", n)
		return
	}
	d.restarts[reg.Name] = n + 1
	d.mu.Unlock()

	id, err := d.reg.Register(reg, d.beat(time.Second, 5))
	if err != nil {
		d.log.Errorw("failed to restart task", "task", reg.Name, "error", err)
		return
	}
	d.reg.Run(id)
	d.log.Infow("restarted task", "task", reg.Name, "old", rec.TaskID, "new", id, "restarts", n+1)
}
