package server

import (
	"taskdesk/internal/domain"
	"taskdesk/internal/paging"
)

// Request payloads

type CreateCompanyRequest struct {
	Title string `json:"title"`
}

type CreateUserRequest struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	RoleID    *int64 `json:"roleId,omitempty"`
	CompanyID *int64 `json:"companyId,omitempty"`
}

type CreateProjectRequest struct {
	Title string `json:"title"`
}

type UpdateProjectRequest struct {
	Title    *string `json:"title,omitempty"`
	IsActive *bool   `json:"isActive,omitempty"`
}

type GrantAclRequest struct {
	Acl []string `json:"acl"`
}

type CreateTaskRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	ProjectID   int64   `json:"projectId"`
	StatusID    *int64  `json:"statusId,omitempty"`
	RequesterID *int64  `json:"requesterId,omitempty"`
	AssignedID  *int64  `json:"assignedId,omitempty"`
	CompanyID   *int64  `json:"companyId,omitempty"`
	Important   bool    `json:"important,omitempty"`
	TagIDs      []int64 `json:"tagIds,omitempty"`
	FollowerIDs []int64 `json:"followerIds,omitempty"`
	DeadlineAt  *string `json:"deadlineAt,omitempty" format:"date-time"`
}

type UpdateTaskRequest struct {
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	StatusID    *int64   `json:"statusId,omitempty"`
	RequesterID *int64   `json:"requesterId,omitempty"`
	AssignedID  *int64   `json:"assignedId,omitempty"`
	Important   *bool    `json:"important,omitempty"`
	TagIDs      *[]int64 `json:"tagIds,omitempty"`
	FollowerIDs *[]int64 `json:"followerIds,omitempty"`
	StartedAt   *string  `json:"startedAt,omitempty" format:"date-time"`
	DeadlineAt  *string  `json:"deadlineAt,omitempty" format:"date-time"`
	ClosedAt    *string  `json:"closedAt,omitempty" format:"date-time"`
}

type CreateCommentRequest struct {
	Body string `json:"body" minLength:"1"`
}

type CreateRepeatingTaskRequest struct {
	Interval string  `json:"interval"`
	Repeats  int     `json:"repeats,omitempty"`
	NextAt   *string `json:"nextAt,omitempty" format:"date-time"`
}

type CreateFilterRequest struct {
	Title  string              `json:"title"`
	Params map[string][]string `json:"params"`
	Public bool                `json:"public,omitempty"`
}

type UpdateFilterRequest struct {
	Title  *string              `json:"title,omitempty"`
	Params *map[string][]string `json:"params,omitempty"`
	Public *bool                `json:"public,omitempty"`
}

type SetFilterProjectRequest struct {
	ProjectID int64 `json:"projectId"`
}

type CreateTagRequest struct {
	Title  string `json:"title"`
	Color  string `json:"color,omitempty"`
	Public bool   `json:"public,omitempty"`
}

type UpdateTagRequest struct {
	Title  *string `json:"title,omitempty"`
	Color  *string `json:"color,omitempty"`
	Public *bool   `json:"public,omitempty"`
}

type CreateStatusRequest struct {
	Title   string `json:"title"`
	Default bool   `json:"default,omitempty"`
	Closed  bool   `json:"closed,omitempty"`
}

type CreateTaskAttributeRequest struct {
	Title   string   `json:"title"`
	Kind    string   `json:"kind" enum:"checkbox,date,input,select"`
	Options []string `json:"options,omitempty"`
}

type CreateCompanyAttributeRequest struct {
	Title string `json:"title"`
	Kind  string `json:"kind" enum:"checkbox,date,input,select"`
}

type MintAPIKeyRequest struct {
	Label string `json:"label,omitempty"`
}

// Response payloads

type TaskPageResponse struct {
	paging.Envelope
	Items []domain.Task `json:"items"`
}

type MintAPIKeyResponse struct {
	Key    string        `json:"key"`
	APIKey domain.APIKey `json:"apiKey"`
}
