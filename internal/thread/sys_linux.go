//go:build linux

package thread

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

func gettid() int {
	return unix.Gettid()
}

func priorityRange() (int, int, error) {
	lo, _, errno := unix.RawSyscall(unix.SYS_SCHED_GET_PRIORITY_MIN, uintptr(unix.SCHED_RR), 0, 0)
	if errno != 0 {
		return 0, 0, errno
	}
	hi, _, errno := unix.RawSyscall(unix.SYS_SCHED_GET_PRIORITY_MAX, uintptr(unix.SCHED_RR), 0, 0)
	if errno != 0 {
		return 0, 0, errno
	}
	return int(lo), int(hi), nil
}

// applyPriority switches tid to SCHED_RR. Without CAP_SYS_NICE the kernel
// answers EPERM; the thread then keeps the inherited policy and false is
// returned.
func applyPriority(tid, priority int) (bool, error) {
	attr := &unix.SchedAttr{
		Policy:   unix.SCHED_RR,
		Priority: uint32(priority),
	}

	err := unix.SchedSetAttr(tid, attr, 0)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, unix.EPERM):
		return false, nil
	default:
		return false, err
	}
}

// probe sends signal 0, which checks existence and delivers nothing
func probe(tid int) bool {
	err := unix.Tgkill(unix.Getpid(), tid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

func commPath(tid int) string {
	return fmt.Sprintf("/proc/self/task/%d/comm", tid)
}

func setOSName(tid int, name string) error {
	if err := os.WriteFile(commPath(tid), []byte(name), 0o644); err != nil {
		return fmt.Errorf("set thread name: %w", err)
	}
	return nil
}

func osName(tid int) (string, error) {
	b, err := os.ReadFile(commPath(tid))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
