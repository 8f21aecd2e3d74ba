package models

import "fmt"

// Identity is the caller identity supplied per request. It is immutable:
// construct once, pass by value.
type Identity struct {
	// SubjectID is the caller's user ID. Required.
	SubjectID int64
	// GroupID is the caller's team/group ID, if the caller belongs to one.
	GroupID *int64
	// Privileged marks group admins. Privileged callers are exempt from
	// subject-scoped predicates but remain confined to their own group.
	Privileged bool
}

// HasGroup reports whether the identity carries a group membership.
func (id Identity) HasGroup() bool {
	return id.GroupID != nil
}

// String renders the identity for logs and audit records.
func (id Identity) String() string {
	role := "member"
	if id.Privileged {
		role = "admin"
	}
	if id.GroupID != nil {
		return fmt.Sprintf("subject=%d group=%d role=%s", id.SubjectID, *id.GroupID, role)
	}
	return fmt.Sprintf("subject=%d group=none role=%s", id.SubjectID, role)
}
