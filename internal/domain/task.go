package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current state of a background task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending  TaskStatus = "PENDING"
	TaskStatusRunning  TaskStatus = "RUNNING"
	TaskStatusFinished TaskStatus = "FINISHED"
	TaskStatusFailed   TaskStatus = "FAILED"
)

// Common validation errors for TaskRecord
var (
	ErrEmptyTaskID       = errors.New("task ID cannot be empty")
	ErrInvalidTaskStatus = errors.New("invalid task status")
)

// IsValid reports whether s is one of the four lifecycle states.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusFinished, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status can never change again.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusFinished || s == TaskStatusFailed
}

// rank orders statuses so polling can be checked for monotonicity.
// Both terminal states share the highest rank.
func (s TaskStatus) rank() int {
	switch s {
	case TaskStatusPending:
		return 0
	case TaskStatusRunning:
		return 1
	case TaskStatusFinished, TaskStatusFailed:
		return 2
	default:
		return -1
	}
}

// Precedes reports whether s comes strictly before other in the lifecycle.
func (s TaskStatus) Precedes(other TaskStatus) bool {
	return s.rank() >= 0 && other.rank() >= 0 && s.rank() < other.rank()
}

// CanTransition reports whether a task may move from one status to another.
// PENDING -> FAILED is reserved for tasks whose dispatch never reached a worker.
func CanTransition(from, to TaskStatus) bool {
	switch from {
	case TaskStatusPending:
		return to == TaskStatusRunning || to == TaskStatusFailed
	case TaskStatusRunning:
		return to == TaskStatusFinished || to == TaskStatusFailed
	default:
		return false
	}
}

// TaskRecord is the durable lifecycle record of one background task.
type TaskRecord struct {
	TaskID     uuid.UUID
	Status     TaskStatus
	CreatedAt  time.Time
	FinishedAt *time.Time
	Result     *string
}

// NewTaskRecord creates a PENDING task record with a fresh id.
func NewTaskRecord() *TaskRecord {
	return &TaskRecord{
		TaskID:    uuid.New(),
		Status:    TaskStatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// Validate checks if the TaskRecord has valid data.
func (t *TaskRecord) Validate() error {
	if t.TaskID == uuid.Nil {
		return ErrEmptyTaskID
	}
	if !t.Status.IsValid() {
		return ErrInvalidTaskStatus
	}
	if t.Status.IsTerminal() != (t.FinishedAt != nil) {
		return fmt.Errorf("%w: finished_at must be set exactly for terminal tasks", ErrValidation)
	}
	return nil
}

// Apply mutates the record according to a validated transition.
func (t *TaskRecord) Apply(tr Transition) error {
	if err := tr.Validate(); err != nil {
		return err
	}
	if t.Status != tr.From {
		return fmt.Errorf("%w: task %s is %s, expected %s", ErrInvalidTransition, t.TaskID, t.Status, tr.From)
	}
	t.Status = tr.To
	if tr.To.IsTerminal() {
		at := tr.At
		t.FinishedAt = &at
		t.Result = tr.Result
	}
	return nil
}

// View returns the poll-facing representation of the record.
func (t *TaskRecord) View() *TaskStatusView {
	v := &TaskStatusView{TaskID: t.TaskID, Status: t.Status}
	if t.Status.IsTerminal() && t.Result != nil {
		v.Result = json.RawMessage(*t.Result)
	}
	return v
}

// Transition describes a single conditional status change of a task.
// Result and At are only meaningful for terminal targets.
type Transition struct {
	From   TaskStatus
	To     TaskStatus
	Result *string
	At     time.Time
}

// Validate checks the transition against the task state machine.
func (tr Transition) Validate() error {
	if !CanTransition(tr.From, tr.To) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, tr.From, tr.To)
	}
	if tr.To.IsTerminal() && (tr.Result == nil || tr.At.IsZero()) {
		return fmt.Errorf("%w: terminal transition requires result and timestamp", ErrInvalidTransition)
	}
	return nil
}

// TaskStatusView is what pollers see: the status plus the result once terminal.
type TaskStatusView struct {
	TaskID uuid.UUID       `json:"task_id"`
	Status TaskStatus      `json:"status"`
	Result json.RawMessage `json:"result"`
}

// TaskSubmission records who asked for a task and which computation to run.
// It is stored beside the record so that a PENDING task can be dispatched
// again after a restart.
type TaskSubmission struct {
	UserID UserID
	Kind   string
}

// Validate checks that the submission names a computation.
func (s TaskSubmission) Validate() error {
	if s.Kind == "" {
		return fmt.Errorf("%w: task kind cannot be empty", ErrValidation)
	}
	return nil
}

// PendingTask is a PENDING record together with its submission.
type PendingTask struct {
	TaskID    uuid.UUID
	CreatedAt time.Time
	TaskSubmission
}
