// Package thread runs entry functions on dedicated OS threads with a clamped
// stack size and real-time priority, and exposes liveness probing, naming and
// forced cancellation by id.
//
// Each thread is a goroutine locked to its OS thread for its whole life. The
// lock is never released, so the runtime retires the OS thread when the entry
// returns.
package thread

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/danpasecinic/taskwarden/internal/types"
)

const (
	// MinStackSize is the smallest stack size accepted by Create
	MinStackSize = 16 * 1024
	// MaxNameLen is the kernel limit for a thread name, without the NUL
	MaxNameLen = 15
)

// KillGrace is how long Kill waits for a cancelled entry to return
var KillGrace = 200 * time.Millisecond

// ErrNotFound is returned for ids that do not belong to a running thread
var ErrNotFound = errors.New("thread not found")

// Entry is the function run on a new thread. ctx is cancelled by Kill.
type Entry func(ctx context.Context, id types.TaskID)

// Info describes a running thread
type Info struct {
	ID        types.TaskID
	OSID      int
	Name      string
	StackSize int
	Priority  int
	Realtime  bool
}

type thread struct {
	id        types.TaskID
	tid       int
	stackSize int
	priority  int
	realtime  bool
	cancel    context.CancelFunc
	done      chan struct{}

	mu   sync.Mutex
	name string
}

var (
	lastID atomic.Uint64

	tableMu sync.RWMutex
	byID    = make(map[types.TaskID]*thread)
	byOSID  = make(map[int]*thread)
)

// Create starts entry on a new OS thread and returns its id once the thread is
// configured. A stack size below MinStackSize is raised to it and the priority
// is clamped to the range of the real-time policy. If any part of the setup
// fails the thread exits before entry is called and an error is returned.
func Create(stackSize int, priority types.Priority, entry Entry) (types.TaskID, error) {
	if entry == nil {
		return types.InvalidTaskID, errors.New("thread: nil entry")
	}

	if stackSize < MinStackSize {
		stackSize = MinStackSize
	}

	lo, hi, err := priorityRange()
	if err != nil {
		return types.InvalidTaskID, fmt.Errorf("thread: priority range: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &thread{
		id:        types.TaskID(lastID.Add(1)),
		stackSize: stackSize,
		priority:  priority.Clamp(lo, hi),
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	ready := make(chan error, 1)

	go func() {
		runtime.LockOSThread()

		t.tid = gettid()
		rt, err := applyPriority(t.tid, t.priority)
		if err != nil {
			cancel()
			ready <- err
			return
		}
		t.realtime = rt

		register(t)
		defer func() {
			unregister(t)
			cancel()
			close(t.done)
		}()

		ready <- nil
		entry(ctx, t.id)
	}()

	if err := <-ready; err != nil {
		return types.InvalidTaskID, fmt.Errorf("thread: configure scheduling: %w", err)
	}

	return t.id, nil
}

// Current returns the id of the calling thread, or InvalidTaskID when the
// caller is not running on a thread started by Create.
func Current() types.TaskID {
	tableMu.RLock()
	defer tableMu.RUnlock()

	if t, ok := byOSID[gettid()]; ok {
		return t.id
	}
	return types.InvalidTaskID
}

// Exists probes whether the thread is still running without affecting it
func Exists(id types.TaskID) bool {
	if id == types.InvalidTaskID {
		return false
	}

	t := lookup(id)
	if t == nil {
		return false
	}

	select {
	case <-t.done:
		return false
	default:
	}

	return probe(t.tid)
}

// Kill cancels the thread's context and waits up to KillGrace for the entry
// to return. Goroutines cannot be destroyed from outside, so an entry that
// ignores its context keeps running; Kill then reports false.
func Kill(id types.TaskID) bool {
	t := lookup(id)
	if t == nil {
		return true
	}

	t.cancel()

	select {
	case <-t.done:
		return true
	case <-time.After(KillGrace):
		return !Exists(id)
	}
}

// SetName names the thread. InvalidTaskID names the calling thread. An empty
// name is replaced by "t<id>" and long names are truncated to MaxNameLen.
func SetName(id types.TaskID, name string) error {
	if id == types.InvalidTaskID {
		id = Current()
	}

	t := lookup(id)
	if t == nil {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	name = normalizeName(id, name)

	t.mu.Lock()
	t.name = name
	t.mu.Unlock()

	return setOSName(t.tid, name)
}

// Name returns the thread's name as seen by the OS, falling back to the last
// name set through SetName. InvalidTaskID means the calling thread.
func Name(id types.TaskID) string {
	if id == types.InvalidTaskID {
		id = Current()
	}

	t := lookup(id)
	if t == nil {
		return placeholderName(id)
	}

	if name, err := osName(t.tid); err == nil && name != "" {
		return name
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.name == "" {
		return placeholderName(id)
	}
	return t.name
}

// Lookup returns a description of a running thread
func Lookup(id types.TaskID) (Info, bool) {
	t := lookup(id)
	if t == nil {
		return Info{}, false
	}

	t.mu.Lock()
	name := t.name
	t.mu.Unlock()

	return Info{
		ID:        t.id,
		OSID:      t.tid,
		Name:      name,
		StackSize: t.stackSize,
		Priority:  t.priority,
		Realtime:  t.realtime,
	}, true
}

// Count returns the number of threads whose entry has not returned yet
func Count() int {
	tableMu.RLock()
	defer tableMu.RUnlock()
	return len(byID)
}

func lookup(id types.TaskID) *thread {
	tableMu.RLock()
	defer tableMu.RUnlock()
	return byID[id]
}

func register(t *thread) {
	tableMu.Lock()
	defer tableMu.Unlock()
	byID[t.id] = t
	if t.tid > 0 {
		byOSID[t.tid] = t
	}
}

func unregister(t *thread) {
	tableMu.Lock()
	defer tableMu.Unlock()
	delete(byID, t.id)
	if byOSID[t.tid] == t {
		delete(byOSID, t.tid)
	}
}

func normalizeName(id types.TaskID, name string) string {
	if name == "" {
		name = placeholderName(id)
	}
	if len(name) > MaxNameLen {
		n := MaxNameLen
		for n > 0 && !utf8.RuneStart(name[n]) {
			n--
		}
		name = name[:n]
	}
	return name
}

func placeholderName(id types.TaskID) string {
	return fmt.Sprintf("t%d", id)
}
