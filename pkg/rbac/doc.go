// Package rbac is the authorization engine for users and tasks.
//
// # Overview
//
// Every function in this package is a pure decision over a principal
// (id + role) and, for tasks, the ownership fields of the stored record.
// Nothing here touches a store; handlers load the task first so that a
// missing task yields 404 before any 403 is considered.
//
// # Roles
//
//	user   - manages tasks they created, plus status of tasks assigned to them
//	admin  - manages users and roles, bypasses every ownership check
//
// # Task Rules
//
//	create  - any authenticated principal; createdBy is forced to the caller
//	list    - admin unscoped, otherwise createdBy == caller (see TaskListScope)
//	read    - admin, creator or assignee
//	update  - admin or creator may change any mutable field; an assignee who is
//	          neither may send exactly {"status": ...}
//	delete  - admin or creator
//	stats   - same scope as list
//
// # Usage
//
//	ref := rbac.TaskRef{CreatedBy: task.CreatedBy, Assignee: task.Assignee}
//	if d := rbac.CheckTaskUpdate(principal, ref, patch.Keys); !d.Allowed {
//		metrics.RecordDenial(d.Permission.String())
//		return d.Err() // *apierrors.Error with KindForbidden
//	}
//
// Admin routes check rbac.CheckAdmin with the permission of the route, so
// user:list, user:update_role and user:delete denials are counted apart.
package rbac
