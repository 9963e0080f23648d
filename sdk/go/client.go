package taskdesksdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Taskdesk HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Task represents the API task model.
type Task struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	ProjectID   int64   `json:"projectId"`
	StatusID    *int64  `json:"statusId,omitempty"`
	CreatorID   int64   `json:"creatorId"`
	RequesterID *int64  `json:"requesterId,omitempty"`
	AssignedID  *int64  `json:"assignedId,omitempty"`
	Important   bool    `json:"important"`
	TagIDs      []int64 `json:"tagIds,omitempty"`
	FollowerIDs []int64 `json:"followerIds,omitempty"`
	CreatedAt   string  `json:"createdAt"`
	DeadlineAt  *string `json:"deadlineAt,omitempty"`
	ClosedAt    *string `json:"closedAt,omitempty"`
}

// Project represents the API project model.
type Project struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	CreatorID int64  `json:"creatorId"`
	IsActive  bool   `json:"isActive"`
	CreatedAt string `json:"createdAt"`
}

// Filter represents a saved task filter.
type Filter struct {
	ID        int64               `json:"id"`
	Title     string              `json:"title"`
	Params    map[string][]string `json:"params"`
	Public    bool                `json:"public"`
	CreatorID int64               `json:"creatorId"`
	ProjectID *int64              `json:"projectId,omitempty"`
}

// Comment is one task comment.
type Comment struct {
	ID        int64  `json:"id"`
	TaskID    int64  `json:"taskId"`
	CreatorID int64  `json:"creatorId"`
	Body      string `json:"body"`
	CreatedAt string `json:"createdAt"`
}

// Notification is an in-app notification entry.
type Notification struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"userId"`
	TaskID    *int64 `json:"taskId,omitempty"`
	Kind      string `json:"kind"`
	Body      string `json:"body,omitempty"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"createdAt"`
}

// PageLinks are the navigation URLs of a list page.
type PageLinks struct {
	Self  string `json:"self"`
	First string `json:"first,omitempty"`
	Prev  string `json:"prev,omitempty"`
	Next  string `json:"next,omitempty"`
	Last  string `json:"last,omitempty"`
}

// TaskPage is one page of a filtered task listing.
type TaskPage struct {
	Links         PageLinks `json:"_links"`
	Total         int       `json:"total"`
	Page          int       `json:"page"`
	NumberOfPages int       `json:"numberOfPages"`
	Items         []Task    `json:"items"`
}

// APIError wraps non-2xx responses. Code and Message are filled when
// the body carried the standard error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateTask creates a task in a project.
func (c *Client) CreateTask(ctx context.Context, projectID int64, title, description string) (Task, error) {
	body := map[string]any{
		"title":       title,
		"description": description,
		"projectId":   projectID,
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks", body, &resp)
	return resp, err
}

// GetTask fetches a task by id.
func (c *Client) GetTask(ctx context.Context, id int64) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("tasks/%d", id), nil, &resp)
	return resp, err
}

// Tasks lists tasks matching the given filter parameters. Params use
// the API's filter mini-language, e.g. {"status": {"1,2"}}.
func (c *Client) Tasks(ctx context.Context, params url.Values, limit, page int) (TaskPage, error) {
	q := url.Values{}
	for k, vs := range params {
		q[k] = vs
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if page > 0 {
		q.Set("page", fmt.Sprintf("%d", page))
	}
	endpoint := "tasks"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp TaskPage
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// CreateComment comments on a task.
func (c *Client) CreateComment(ctx context.Context, taskID int64, body string) (Comment, error) {
	var resp Comment
	endpoint := fmt.Sprintf("tasks/%d/comments", taskID)
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"body": body}, &resp)
	return resp, err
}

// Comments lists a task's comments.
func (c *Client) Comments(ctx context.Context, taskID int64) ([]Comment, error) {
	var resp []Comment
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("tasks/%d/comments", taskID), nil, &resp)
	return resp, err
}

// CreateProject creates a project owned by the authenticated user.
func (c *Client) CreateProject(ctx context.Context, title string) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodPost, "projects", map[string]any{"title": title}, &resp)
	return resp, err
}

// GrantProjectAcl grants project-scoped ACL tokens to a user.
func (c *Client) GrantProjectAcl(ctx context.Context, projectID, userID int64, tokens []string) error {
	body := map[string]any{"acl": tokens}
	endpoint := fmt.Sprintf("projects/%d/acl/%d", projectID, userID)
	return c.do(ctx, http.MethodPut, endpoint, body, nil)
}

// CreateFilter saves a task filter.
func (c *Client) CreateFilter(ctx context.Context, title string, params map[string][]string, public bool) (Filter, error) {
	body := map[string]any{
		"title":  title,
		"params": params,
		"public": public,
	}
	var resp Filter
	err := c.do(ctx, http.MethodPost, "filters", body, &resp)
	return resp, err
}

// Filters lists the filters visible to the authenticated user.
func (c *Client) Filters(ctx context.Context) ([]Filter, error) {
	var resp []Filter
	err := c.do(ctx, http.MethodGet, "filters", nil, &resp)
	return resp, err
}

// Notifications lists the authenticated user's notifications.
func (c *Client) Notifications(ctx context.Context, unreadOnly bool) ([]Notification, error) {
	endpoint := "notifications"
	if unreadOnly {
		endpoint += "?unread=true"
	}
	var resp []Notification
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// MarkNotificationRead marks one notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("notifications/%d/read", id), nil, nil)
}

// Health checks the server is up.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	u := c.base() + "/v1/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, u, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
