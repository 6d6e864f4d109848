package rbac

// Resource represents a resource type guarded by the engine
type Resource string

const (
	ResourceTask Resource = "task"
	ResourceUser Resource = "user"
)

// Action represents an action that can be performed on a resource
type Action string

const (
	ActionRead       Action = "read"
	ActionList       Action = "list"
	ActionUpdate     Action = "update"
	ActionDelete     Action = "delete"
	ActionUpdateRole Action = "update_role"
)

// Permission represents a specific permission (resource + action)
type Permission struct {
	Resource Resource `json:"resource"`
	Action   Action   `json:"action"`
}

// String returns a string representation of the permission
func (p Permission) String() string {
	return string(p.Resource) + ":" + string(p.Action)
}

// Task field names as they appear in request bodies
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldStatus      = "status"
	FieldPriority    = "priority"
	FieldDueDate     = "dueDate"
	FieldAssignee    = "assignee"
)

// MutableTaskFields lists the fields a creator or admin may change
var MutableTaskFields = []string{
	FieldTitle,
	FieldDescription,
	FieldStatus,
	FieldPriority,
	FieldDueDate,
	FieldAssignee,
}

// TaskRef carries the ownership fields of a stored task
type TaskRef struct {
	CreatedBy string
	Assignee  string // empty when unassigned
}

// Relation describes how a principal relates to a task
type Relation struct {
	IsAdmin    bool
	IsCreator  bool
	IsAssignee bool
}

// Any reports whether the principal has any standing on the task
func (r Relation) Any() bool {
	return r.IsAdmin || r.IsCreator || r.IsAssignee
}

// AssigneeOnly reports whether the only standing is being the assignee
func (r Relation) AssigneeOnly() bool {
	return r.IsAssignee && !r.IsCreator && !r.IsAdmin
}

// Decision is the outcome of an authorization check
type Decision struct {
	Permission Permission `json:"permission"`
	Allowed    bool       `json:"allowed"`
	Reason     string     `json:"reason,omitempty"`
}
