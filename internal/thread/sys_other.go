//go:build !linux

package thread

// Outside Linux there is no per-thread id or real-time policy to apply, so
// threads keep the inherited scheduling.

func gettid() int {
	// Without gettid the calling thread cannot be resolved; Current always
	// reports InvalidTaskID.
	return -1
}

func priorityRange() (int, int, error) {
	return 1, 99, nil
}

func applyPriority(int, int) (bool, error) {
	return false, nil
}

func probe(int) bool {
	return true
}

func setOSName(int, string) error {
	return nil
}

func osName(int) (string, error) {
	return "", nil
}
