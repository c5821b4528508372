package task

import "errors"

var (
	// ErrDispatchFailed is returned by Submit when the broker did not accept
	// the message. The task record is marked FAILED before returning.
	ErrDispatchFailed = errors.New("task dispatch failed")

	// ErrTransitionPersist is returned when a worker computed an outcome but
	// could not record it. It is never retried.
	ErrTransitionPersist = errors.New("failed to persist task transition")
)
