package task

import (
	"time"

	"go.uber.org/zap"

	"github.com/danpasecinic/taskwarden/internal/types"
)

const (
	DefaultMaxTasks         = 128
	DefaultSweepInterval    = 1 * time.Second
	DefaultClockTolerance   = 60 * time.Second
	DefaultTimeoutThreshold = 3
	DefaultStopRetries      = 3
	DefaultStopInterval     = 500 * time.Millisecond
)

// RestartFunc is called for tasks registered with PolicyRestart after they
// died. The registry does not keep the work function alive; the owner is
// expected to register a replacement if it wants one.
type RestartFunc func(rec types.FailureRecord, reg types.Registration)

// Config controls a Registry. Zero values select the defaults above.
type Config struct {
	// MaxTasks bounds the number of registered tasks
	MaxTasks int

	// Report receives every failure found by the watchdog
	Report types.ReportFunc

	// Logger receives diagnostics; nil discards them
	Logger *zap.SugaredLogger

	// SweepInterval is the watchdog period
	SweepInterval time.Duration

	// ClockTolerance is the largest forward wall-clock step between sweeps
	// that is still treated as real elapsed time
	ClockTolerance time.Duration

	// TimeoutThreshold is the number of consecutive stale sweeps that turn a
	// task into StateTimeout
	TimeoutThreshold int

	// StopRetries and StopInterval bound how long Stop waits for a task to
	// exit on its own before forcing it
	StopRetries  int
	StopInterval time.Duration

	// Now returns wall-clock time. The default strips the monotonic reading
	// so clock steps are visible to the watchdog.
	Now func() time.Time

	// OnRestart handles PolicyRestart tasks
	OnRestart RestartFunc
}

func (c Config) withDefaults() Config {
	if c.MaxTasks <= 0 {
		c.MaxTasks = DefaultMaxTasks
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop().Sugar()
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.ClockTolerance <= 0 {
		c.ClockTolerance = DefaultClockTolerance
	}
	if c.TimeoutThreshold <= 0 {
		c.TimeoutThreshold = DefaultTimeoutThreshold
	}
	if c.StopRetries <= 0 {
		c.StopRetries = DefaultStopRetries
	}
	if c.StopInterval <= 0 {
		c.StopInterval = DefaultStopInterval
	}
	if c.Now == nil {
		c.Now = wallClock
	}
	return c
}

func wallClock() time.Time {
	return time.Now().Round(0)
}
