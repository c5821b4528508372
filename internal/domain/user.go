package domain

import (
	"encoding/json"
	"strconv"
)

// UserID identifies a user issued by the identity provider.
// The vault never creates or mutates users; it only references them.
type UserID int64

// String implements fmt.Stringer.
func (id UserID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Owner is an optional reference to a user. The zero value is the anonymous
// owner; a real user is never represented by a reserved numeric id.
type Owner struct {
	id    UserID
	known bool
}

// Anonymous returns the owner used for unauthenticated callers.
func Anonymous() Owner {
	return Owner{}
}

// OwnedBy returns an owner referencing the given user.
func OwnedBy(id UserID) Owner {
	return Owner{id: id, known: true}
}

// ID returns the user id and whether the owner is a known user.
func (o Owner) ID() (UserID, bool) {
	return o.id, o.known
}

// IsAnonymous reports whether the owner is the anonymous caller.
func (o Owner) IsAnonymous() bool {
	return !o.known
}

// Is reports whether the owner is exactly the given user.
func (o Owner) Is(id UserID) bool {
	return o.known && o.id == id
}

// Ptr returns the owner as a nullable pointer, nil for anonymous.
func (o Owner) Ptr() *UserID {
	if !o.known {
		return nil
	}
	id := o.id
	return &id
}

// String implements fmt.Stringer.
func (o Owner) String() string {
	if !o.known {
		return "anonymous"
	}
	return o.id.String()
}

// MarshalJSON encodes anonymous owners as null.
func (o Owner) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Ptr())
}

// UnmarshalJSON decodes null as anonymous.
func (o *Owner) UnmarshalJSON(data []byte) error {
	var id *UserID
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	if id == nil {
		*o = Anonymous()
		return nil
	}
	*o = OwnedBy(*id)
	return nil
}
