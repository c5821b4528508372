// Package task runs the asynchronous statistics pipeline: the Engine records
// and dispatches tasks, Workers claim and execute them, and the Runner keeps
// the worker pool and the stuck-task monitor alive.
//
// A task record has exactly one writer per transition. Every status change
// is a conditional update against the expected current status, so duplicate
// deliveries and racing workers are detected rather than overwriting state.
package task
