package authz

import "github.com/google/uuid"

// Matches reports whether the audience applies to the subject. The owner
// argument is the owner of the resource the policy is attached to, nil if
// the resource has no owner. Predicates are OR'd: any single match is
// enough.
func (a Audience) Matches(sub Subject, owner *uuid.UUID) bool {
	if a.Anonymous && sub.Anonymous {
		return true
	}
	if sub.Anonymous {
		// All remaining predicates require an authenticated subject.
		return false
	}
	if a.Authenticated {
		return true
	}
	if a.Owners && owner != nil && *owner == sub.ID {
		return true
	}
	for _, u := range a.Users {
		if u == sub.ID {
			return true
		}
	}
	for _, g := range a.Groups {
		if sub.InGroup(g) {
			return true
		}
	}
	return false
}
