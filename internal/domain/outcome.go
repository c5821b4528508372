package domain

import (
	"encoding/json"
	"fmt"
)

// Failure kinds recorded in FAILED task results.
const (
	FailureKindComputation = "computation"
	FailureKindPanic       = "panic"
	FailureKindDispatch    = "dispatch"
	FailureKindUnknownKind = "unknown_task_kind"
	FailureKindEncoding    = "encoding"
)

// Failure describes why a task computation did not produce a value.
type Failure struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// Error implements the error interface.
func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
}

// Outcome is the tagged result of running a task: exactly one of Value or
// Failure is set.
type Outcome struct {
	Value   any
	Failure *Failure
}

// Succeeded wraps a computed value.
func Succeeded(v any) Outcome {
	return Outcome{Value: v}
}

// Failed wraps a failure of the given kind.
func Failed(kind, detail string) Outcome {
	return Outcome{Failure: &Failure{Kind: kind, Detail: detail}}
}

// OK reports whether the outcome carries a value.
func (o Outcome) OK() bool {
	return o.Failure == nil
}

// Status returns the terminal task status matching the outcome.
func (o Outcome) Status() TaskStatus {
	if o.OK() {
		return TaskStatusFinished
	}
	return TaskStatusFailed
}

// Encode serializes the outcome into the opaque result payload stored on the
// task record. A value that cannot be encoded turns into an encoding failure.
func (o Outcome) Encode() (TaskStatus, string) {
	if o.OK() {
		data, err := json.Marshal(o.Value)
		if err == nil {
			return TaskStatusFinished, string(data)
		}
		o = Failed(FailureKindEncoding, err.Error())
	}

	data, err := json.Marshal(struct {
		Error *Failure `json:"error"`
	}{Error: o.Failure})
	if err != nil {
		// Failure holds only strings, so this cannot happen in practice.
		return TaskStatusFailed, `{"error":{"kind":"encoding","detail":"unencodable failure"}}`
	}
	return TaskStatusFailed, string(data)
}
