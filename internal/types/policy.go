package types

import "time"

// FailurePolicy defines what the watchdog does once a task has died
type FailurePolicy string

const (
	// PolicyDefault runs the task's exception hook
	PolicyDefault FailurePolicy = "default"
	// PolicyIgnore reports the failure and does nothing else
	PolicyIgnore FailurePolicy = "ignore"
	// PolicyRestart runs the exception hook and asks the owner to re-register the task
	PolicyRestart FailurePolicy = "restart"
	// PolicyRebootSystem runs the exception hook and raises the reboot flag
	PolicyRebootSystem FailurePolicy = "reboot-system"
)

// Valid reports whether p is one of the known policies. The empty policy is
// treated as PolicyDefault.
func (p FailurePolicy) Valid() bool {
	switch p {
	case "", PolicyDefault, PolicyIgnore, PolicyRestart, PolicyRebootSystem:
		return true
	default:
		return false
	}
}

// RunsExceptionHook reports whether the task's exception hook is invoked under p
func (p FailurePolicy) RunsExceptionHook() bool {
	return p != PolicyIgnore
}

// FailureReason is the cause attached to a FailureRecord
type FailureReason string

const (
	ReasonTimeout       FailureReason = "timeout"
	ReasonAbnormalDeath FailureReason = "abnormal death"
)

// FailureRecord is delivered to the process-wide report callback
type FailureRecord struct {
	TaskID TaskID        `json:"taskId"`
	Name   string        `json:"name"`
	Reason FailureReason `json:"reason"`
	Time   time.Time     `json:"time"`
}

// ReportFunc receives every failure detected by the watchdog.
// It runs on the watchdog thread and must not block for long.
type ReportFunc func(FailureRecord)
