package domain

// Flat value structs shared by repo, engine and the HTTP layer.
// Optional references are pointers; timestamps are RFC3339 strings.

type Company struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"createdAt" format:"date-time"`
}

type Role struct {
	ID       int64    `json:"id"`
	Title    string   `json:"title"`
	Admin    bool     `json:"admin"`
	Acl      []string `json:"acl"`
	Position int      `json:"position"`
}

type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	RoleID    *int64 `json:"roleId,omitempty"`
	CompanyID *int64 `json:"companyId,omitempty"`
	CreatedAt string `json:"createdAt" format:"date-time"`
}

type Project struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	CreatorID int64  `json:"creatorId"`
	IsActive  bool   `json:"isActive"`
	CreatedAt string `json:"createdAt" format:"date-time"`
}

// ProjectAclGrant is one user's token set inside one project.
type ProjectAclGrant struct {
	ProjectID int64    `json:"projectId"`
	UserID    int64    `json:"userId"`
	Acl       []string `json:"acl"`
}

type Status struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Default  bool   `json:"default"`
	Closed   bool   `json:"closed"`
	Position int    `json:"position"`
}

type Tag struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Color     string `json:"color,omitempty"`
	Public    bool   `json:"public"`
	CreatorID int64  `json:"creatorId"`
}

type Task struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	ProjectID   int64   `json:"projectId"`
	StatusID    *int64  `json:"statusId,omitempty"`
	CreatorID   int64   `json:"creatorId"`
	RequesterID *int64  `json:"requesterId,omitempty"`
	AssignedID  *int64  `json:"assignedId,omitempty"`
	CompanyID   *int64  `json:"companyId,omitempty"`
	Important   bool    `json:"important"`
	TagIDs      []int64 `json:"tagIds,omitempty"`
	FollowerIDs []int64 `json:"followerIds,omitempty"`
	CreatedAt   string  `json:"createdAt" format:"date-time"`
	StartedAt   *string `json:"startedAt,omitempty" format:"date-time"`
	DeadlineAt  *string `json:"deadlineAt,omitempty" format:"date-time"`
	ClosedAt    *string `json:"closedAt,omitempty" format:"date-time"`
}

type RepeatingTask struct {
	ID        int64  `json:"id"`
	TaskID    int64  `json:"taskId"`
	CreatorID int64  `json:"creatorId"`
	Interval  string `json:"interval"`
	Repeats   int    `json:"repeats"`
	NextAt    string `json:"nextAt" format:"date-time"`
	CreatedAt string `json:"createdAt" format:"date-time"`
}

// SavedFilter stores the raw query parameters of a task filter so it
// can be recompiled against the current actor on every use.
type SavedFilter struct {
	ID        int64               `json:"id"`
	Title     string              `json:"title"`
	Params    map[string][]string `json:"params"`
	Public    bool                `json:"public"`
	CreatorID int64               `json:"creatorId"`
	ProjectID *int64              `json:"projectId,omitempty"`
	CreatedAt string              `json:"createdAt" format:"date-time"`
}

// Attribute kinds drive how the filter compiler parses addedParameters
// values for that attribute.
const (
	AttributeCheckbox = "checkbox"
	AttributeDate     = "date"
	AttributeInput    = "input"
	AttributeSelect   = "select"
)

type TaskAttribute struct {
	ID       int64    `json:"id"`
	Title    string   `json:"title"`
	Kind     string   `json:"kind"`
	Options  []string `json:"options,omitempty"`
	Position int      `json:"position"`
}

type CompanyAttribute struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Kind     string `json:"kind"`
	Position int    `json:"position"`
}

type Notification struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"userId"`
	TaskID    *int64 `json:"taskId,omitempty"`
	Kind      string `json:"kind"`
	Body      string `json:"body,omitempty"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"createdAt" format:"date-time"`
}

type Comment struct {
	ID        int64  `json:"id"`
	TaskID    int64  `json:"taskId"`
	CreatorID int64  `json:"creatorId"`
	Body      string `json:"body"`
	CreatedAt string `json:"createdAt" format:"date-time"`
}

type Event struct {
	ID       int64  `json:"id"`
	At       string `json:"at" format:"date-time"`
	ActorID  *int64 `json:"actorId,omitempty"`
	Kind     string `json:"kind"`
	Entity   string `json:"entity"`
	EntityID int64  `json:"entityId"`
	Detail   string `json:"detail,omitempty"`
}

type APIKey struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"userId"`
	Label     string `json:"label"`
	KeyHash   string `json:"-"`
	CreatedAt string `json:"createdAt" format:"date-time"`
}
