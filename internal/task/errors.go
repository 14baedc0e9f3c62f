package task

import "errors"

var (
	// ErrCapacityExceeded is returned when the registry already holds MaxTasks tasks
	ErrCapacityExceeded = errors.New("task registry is full")
	// ErrThreadCreate is returned when the OS thread backing a task could not be started
	ErrThreadCreate = errors.New("failed to create task thread")
	// ErrTaskNotFound is returned for ids that are not registered
	ErrTaskNotFound = errors.New("task not found")
	// ErrClosed is returned by Register once Close has been called
	ErrClosed = errors.New("task registry is closed")
	// ErrInvalidRegistration is returned for registrations the registry cannot supervise
	ErrInvalidRegistration = errors.New("invalid task registration")
)
