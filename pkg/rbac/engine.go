package rbac

import (
	"github.com/platinummonkey/taskapi/pkg/apierrors"
	"github.com/platinummonkey/taskapi/pkg/auth"
)

// Denial messages returned to clients
const (
	MsgAdminRequired    = "Access denied. Admin only."
	MsgTaskAccessDenied = "Not authorized to access this task"
	MsgTaskUpdateDenied = "Not authorized to update this task"
	MsgAssigneeStatus   = "Assignee can update only status"
	MsgTaskDeleteDenied = "Not authorized to delete this task"
)

// Err converts a denied decision into a Forbidden error
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return apierrors.Forbidden(d.Reason)
}

func allow(perm Permission) Decision {
	return Decision{Permission: perm, Allowed: true}
}

func deny(perm Permission, reason string) Decision {
	return Decision{Permission: perm, Allowed: false, Reason: reason}
}

func authenticated(p *auth.Principal) bool {
	return p != nil && p.ID != ""
}

// CheckAdmin returns the decision for an admin-only permission on the
// user-management surface. It runs before any store access.
func CheckAdmin(p *auth.Principal, perm Permission) Decision {
	if !authenticated(p) || !p.IsAdmin() {
		return deny(perm, MsgAdminRequired)
	}
	return allow(perm)
}

// ValidateRole parses a requested role, accepting only known roles
func ValidateRole(role string) (auth.Role, error) {
	r := auth.Role(role)
	if !r.Valid() {
		return "", apierrors.InvalidRole()
	}
	return r, nil
}

// TaskListScope returns the createdBy filter for list and stats queries.
// Admins get an empty scope, everyone else sees only what they created.
func TaskListScope(p *auth.Principal) string {
	if p.IsAdmin() {
		return ""
	}
	return p.ID
}

// CanCreateTask reports whether p may create tasks at all
func CanCreateTask(p *auth.Principal) error {
	if !authenticated(p) {
		return apierrors.Unauthenticated("Not authorized, no token")
	}
	return nil
}

// OwnerForNewTask returns the createdBy value for a new task.
// Any client-supplied creator is ignored.
func OwnerForNewTask(p *auth.Principal) string {
	return p.ID
}

// Relationship resolves the standing of p on a task
func Relationship(p *auth.Principal, ref TaskRef) Relation {
	if !authenticated(p) {
		return Relation{}
	}
	return Relation{
		IsAdmin:    p.IsAdmin(),
		IsCreator:  ref.CreatedBy != "" && p.ID == ref.CreatedBy,
		IsAssignee: ref.Assignee != "" && p.ID == ref.Assignee,
	}
}

// CheckTaskRead decides single-task reads: admin, creator or assignee
func CheckTaskRead(p *auth.Principal, ref TaskRef) Decision {
	perm := Permission{Resource: ResourceTask, Action: ActionRead}
	if !Relationship(p, ref).Any() {
		return deny(perm, MsgTaskAccessDenied)
	}
	return allow(perm)
}

// CheckTaskUpdate decides an update given the field names present in the
// request body. An assignee that is neither creator nor admin may send
// exactly one field, and it must be status.
func CheckTaskUpdate(p *auth.Principal, ref TaskRef, fields []string) Decision {
	perm := Permission{Resource: ResourceTask, Action: ActionUpdate}
	rel := Relationship(p, ref)
	switch {
	case !rel.Any():
		return deny(perm, MsgTaskUpdateDenied)
	case rel.AssigneeOnly():
		if len(fields) != 1 || fields[0] != FieldStatus {
			return deny(perm, MsgAssigneeStatus)
		}
	}
	return allow(perm)
}

// CheckTaskDelete decides deletes: admin or creator only
func CheckTaskDelete(p *auth.Principal, ref TaskRef) Decision {
	perm := Permission{Resource: ResourceTask, Action: ActionDelete}
	rel := Relationship(p, ref)
	if !rel.IsAdmin && !rel.IsCreator {
		return deny(perm, MsgTaskDeleteDenied)
	}
	return allow(perm)
}
