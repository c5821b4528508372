package domain

import (
	"errors"
	"fmt"
	"time"
)

// ActivityType names what a user did.
type ActivityType string

// Recorded activity types.
const (
	ActivityFileUpload       ActivityType = "file_upload"
	ActivityFileAccess       ActivityType = "file_access"
	ActivityVisibilityChange ActivityType = "file_visibility_change"
)

// ErrInvalidActivityType is returned for activity types outside the known set.
var ErrInvalidActivityType = errors.New("invalid activity type")

// IsValid reports whether t is a known activity type.
func (t ActivityType) IsValid() bool {
	switch t {
	case ActivityFileUpload, ActivityFileAccess, ActivityVisibilityChange:
		return true
	default:
		return false
	}
}

// Activity is one append-only entry of a user's activity log. Only known
// users have a log; anonymous callers are never recorded.
type Activity struct {
	ID          int64        `json:"id"`
	UserID      UserID       `json:"user_id"`
	Type        ActivityType `json:"activity_type"`
	Description string       `json:"description"`
	OccurredAt  time.Time    `json:"timestamp"`
}

// NewActivity builds and validates a log entry. A zero at is replaced by the
// current UTC time.
func NewActivity(user UserID, typ ActivityType, description string, at time.Time) (*Activity, error) {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	a := &Activity{
		UserID:      user,
		Type:        typ,
		Description: description,
		OccurredAt:  at,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Validate checks the entry before it is stored.
func (a *Activity) Validate() error {
	if !a.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidActivityType, a.Type)
	}
	if a.OccurredAt.IsZero() {
		return fmt.Errorf("%w: activity timestamp cannot be zero", ErrValidation)
	}
	return nil
}
