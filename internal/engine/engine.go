package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskdesk/internal/acl"
	"taskdesk/internal/actor"
	"taskdesk/internal/config"
	"taskdesk/internal/domain"
	"taskdesk/internal/events"
	"taskdesk/internal/filter"
	"taskdesk/internal/paging"
	"taskdesk/internal/repo"
	"taskdesk/internal/security"
)

// Engine ties repo, audit events and config together behind the
// operations the HTTP layer calls after its voter checks pass.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Voters security.Engine
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Voters: security.NewEngine(),
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

// Seed writes the config's role catalog and status seed into an empty
// database. Existing roles and statuses are left alone.
func (e Engine) Seed(ctx context.Context) error {
	if e.Config == nil {
		return errors.New("config not loaded")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	names := make([]string, 0, len(e.Config.Roles))
	for name := range e.Config.Roles {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := e.Config.Roles[names[i]], e.Config.Roles[names[j]]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		rc := e.Config.Roles[name]
		title := rc.Title
		if title == "" {
			title = name
		}
		if _, err := e.Repo.GetRoleByTitle(ctx, title); err == nil {
			continue
		} else if err != repo.ErrNotFound {
			return err
		}
		acl := rc.Acl
		if acl == nil {
			acl = []string{}
		}
		if _, err := e.Repo.InsertRole(ctx, tx, domain.Role{Title: title, Admin: rc.Admin, Acl: acl, Position: rc.Order}); err != nil {
			return fmt.Errorf("seed role %s: %w", name, err)
		}
	}

	existing, err := e.Repo.ListStatuses(ctx)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		for i, sc := range e.Config.Statuses {
			s := domain.Status{Title: sc.Title, Default: sc.Default, Position: i}
			if _, err := e.Repo.InsertStatus(ctx, tx, s); err != nil {
				return fmt.Errorf("seed status %s: %w", sc.Title, err)
			}
		}
	}
	return tx.Commit()
}

// --- companies and users ---

func (e Engine) CreateCompany(ctx context.Context, title string, actorID int64) (domain.Company, error) {
	if strings.TrimSpace(title) == "" {
		return domain.Company{}, errors.New("title is required")
	}
	c := domain.Company{Title: title, CreatedAt: e.timestamp()}
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		id, err := e.Repo.InsertCompany(ctx, tx, c)
		if err != nil {
			return err
		}
		c.ID = id
		return e.Events.Append(ctx, tx, "company.create", "company", id, actorID, nil)
	})
	return c, err
}

func (e Engine) CreateUser(ctx context.Context, u domain.User, actorID int64) (domain.User, error) {
	if strings.TrimSpace(u.Email) == "" {
		return domain.User{}, errors.New("email is required")
	}
	u.CreatedAt = e.timestamp()
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		id, err := e.Repo.InsertUser(ctx, tx, u)
		if err != nil {
			return err
		}
		u.ID = id
		return e.Events.Append(ctx, tx, "user.create", "user", id, actorID, events.Detail{"email": u.Email})
	})
	return u, err
}

// --- projects ---

func (e Engine) CreateProject(ctx context.Context, title string, creatorID int64) (domain.Project, error) {
	if strings.TrimSpace(title) == "" {
		return domain.Project{}, errors.New("title is required")
	}
	p := domain.Project{Title: title, CreatorID: creatorID, IsActive: true, CreatedAt: e.timestamp()}
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		id, err := e.Repo.InsertProject(ctx, tx, p)
		if err != nil {
			return err
		}
		p.ID = id
		return e.Events.Append(ctx, tx, "project.create", "project", id, creatorID, nil)
	})
	return p, err
}

func (e Engine) UpdateProject(ctx context.Context, id int64, title *string, isActive *bool, actorID int64) (domain.Project, error) {
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.UpdateProject(ctx, tx, id, title, isActive); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, "project.update", "project", id, actorID, nil)
	})
	if err != nil {
		return domain.Project{}, err
	}
	return e.Repo.GetProject(ctx, id)
}

func (e Engine) DeleteProject(ctx context.Context, id int64, actorID int64) error {
	return e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.DeleteProject(ctx, tx, id); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, "project.delete", "project", id, actorID, nil)
	})
}

// GrantProjectAcl validates the tokens against the project-level
// registry before writing the grant.
func (e Engine) GrantProjectAcl(ctx context.Context, g domain.ProjectAclGrant, actorID int64) error {
	for _, token := range g.Acl {
		if !acl.ValidProjectToken(token) {
			return fmt.Errorf("unknown project ACL token %s", token)
		}
	}
	if _, err := e.Repo.GetProject(ctx, g.ProjectID); err != nil {
		return err
	}
	return e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.UpsertGrant(ctx, tx, g); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, "project.grant", "project", g.ProjectID, actorID, events.Detail{"userId": g.UserID, "acl": g.Acl})
	})
}

// RevokeProjectAcl removes a user's grant. A missing grant reads as
// not found so callers can surface 404.
func (e Engine) RevokeProjectAcl(ctx context.Context, projectID, userID int64, actorID int64) error {
	if _, err := e.Repo.FindGrant(ctx, projectID, userID); err != nil {
		return err
	}
	return e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.RevokeGrant(ctx, tx, projectID, userID); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, "project.revoke", "project", projectID, actorID, events.Detail{"userId": userID})
	})
}

// --- tasks ---

type TaskCreateOptions struct {
	Title       string
	Description string
	ProjectID   int64
	StatusID    *int64
	RequesterID *int64
	AssignedID  *int64
	CompanyID   *int64
	Important   bool
	TagIDs      []int64
	FollowerIDs []int64
	DeadlineAt  *string
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions, creatorID int64) (domain.Task, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Task{}, errors.New("title is required")
	}
	if opts.ProjectID == 0 {
		return domain.Task{}, errors.New("project is required")
	}
	if _, err := e.Repo.GetProject(ctx, opts.ProjectID); err != nil {
		return domain.Task{}, err
	}
	statusID := opts.StatusID
	if statusID == nil {
		def, err := e.Repo.DefaultStatus(ctx)
		if err == nil {
			statusID = &def.ID
		} else if err != repo.ErrNotFound {
			return domain.Task{}, err
		}
	}
	t := domain.Task{
		Title:       opts.Title,
		Description: opts.Description,
		ProjectID:   opts.ProjectID,
		StatusID:    statusID,
		CreatorID:   creatorID,
		RequesterID: opts.RequesterID,
		AssignedID:  opts.AssignedID,
		CompanyID:   opts.CompanyID,
		Important:   opts.Important,
		TagIDs:      opts.TagIDs,
		FollowerIDs: opts.FollowerIDs,
		CreatedAt:   e.timestamp(),
		DeadlineAt:  opts.DeadlineAt,
	}
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		id, err := e.Repo.InsertTask(ctx, tx, t)
		if err != nil {
			return err
		}
		t.ID = id
		if t.AssignedID != nil && *t.AssignedID != creatorID {
			if err := e.notifyAssignment(ctx, tx, *t.AssignedID, id, t.Title); err != nil {
				return err
			}
		}
		return e.Events.Append(ctx, tx, "task.create", "task", id, creatorID, events.Detail{"projectId": t.ProjectID})
	})
	return t, err
}

func (e Engine) UpdateTask(ctx context.Context, t domain.Task, actorID int64) (domain.Task, error) {
	prev, err := e.Repo.GetTask(ctx, t.ID)
	if err != nil {
		return domain.Task{}, err
	}
	err = e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
			return err
		}
		if assignmentChanged(prev.AssignedID, t.AssignedID) && *t.AssignedID != actorID {
			if err := e.notifyAssignment(ctx, tx, *t.AssignedID, t.ID, t.Title); err != nil {
				return err
			}
		}
		return e.Events.Append(ctx, tx, "task.update", "task", t.ID, actorID, nil)
	})
	if err != nil {
		return domain.Task{}, err
	}
	return e.Repo.GetTask(ctx, t.ID)
}

func assignmentChanged(prev, next *int64) bool {
	if next == nil {
		return false
	}
	return prev == nil || *prev != *next
}

func (e Engine) notifyAssignment(ctx context.Context, tx *sql.Tx, userID, taskID int64, title string) error {
	n := domain.Notification{
		UserID:    userID,
		TaskID:    &taskID,
		Kind:      "task.assigned",
		Body:      title,
		CreatedAt: e.timestamp(),
	}
	_, err := e.Repo.InsertNotification(ctx, tx, n)
	return err
}

// CreateComment appends a comment to a task. The task's assignee is
// notified unless they wrote the comment themselves.
func (e Engine) CreateComment(ctx context.Context, taskID int64, body string, creatorID int64) (domain.Comment, error) {
	if strings.TrimSpace(body) == "" {
		return domain.Comment{}, errors.New("body is required")
	}
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return domain.Comment{}, err
	}
	c := domain.Comment{TaskID: taskID, CreatorID: creatorID, Body: body, CreatedAt: e.timestamp()}
	err = e.inTx(ctx, func(tx *sql.Tx) error {
		id, err := e.Repo.InsertComment(ctx, tx, c)
		if err != nil {
			return err
		}
		c.ID = id
		if t.AssignedID != nil && *t.AssignedID != creatorID {
			n := domain.Notification{
				UserID:    *t.AssignedID,
				TaskID:    &taskID,
				Kind:      "task.commented",
				Body:      t.Title,
				CreatedAt: e.timestamp(),
			}
			if _, err := e.Repo.InsertNotification(ctx, tx, n); err != nil {
				return err
			}
		}
		return e.Events.Append(ctx, tx, "comment.create", "comment", c.ID, creatorID, events.Detail{"taskId": taskID})
	})
	return c, err
}

// TaskPage is one page of a filtered task listing.
type TaskPage struct {
	Tasks    []domain.Task
	Envelope paging.Envelope
}

// ListTasks compiles the raw filter parameters against the acting
// user, resolves their visibility scope and returns one page. The
// caller has already voted LIST on the task domain.
func (e Engine) ListTasks(ctx context.Context, params map[string][]string, a *actor.Actor, url string, limit, page int) (TaskPage, error) {
	kinds, err := e.Repo.AttributeKinds(ctx)
	if err != nil {
		return TaskPage{}, err
	}
	compiler := filter.Compiler{Kinds: kinds, Now: e.Now}
	compiled, err := compiler.Compile(params, a)
	if err != nil {
		return TaskPage{}, err
	}
	scope := security.ResolveVisibleScope(a)
	tasks, count, err := e.Repo.ListTasks(ctx, compiled, scope, a, limit, page)
	if err != nil {
		return TaskPage{}, err
	}
	return TaskPage{
		Tasks:    tasks,
		Envelope: paging.Format(url, limit, page, count, compiled.URLFragment()),
	}, nil
}

// TaskVisibleTo reports whether a single already-loaded task falls
// inside the actor's visibility scope, mirroring the partition logic
// the list query applies in SQL.
func (e Engine) TaskVisibleTo(a *actor.Actor, t domain.Task) bool {
	scope := security.ResolveVisibleScope(a)
	if scope.Unrestricted {
		return true
	}
	for _, id := range scope.ViewAll {
		if id == t.ProjectID {
			return true
		}
	}
	for _, id := range scope.ViewCompany {
		if id == t.ProjectID {
			return t.CompanyID != nil && *t.CompanyID == a.CompanyID()
		}
	}
	for _, id := range scope.ViewOwnOnly {
		if id != t.ProjectID {
			continue
		}
		if t.CreatorID == a.ID() {
			return true
		}
		if t.RequesterID != nil && *t.RequesterID == a.ID() {
			return true
		}
		if t.AssignedID != nil && *t.AssignedID == a.ID() {
			return true
		}
		for _, f := range t.FollowerIDs {
			if f == a.ID() {
				return true
			}
		}
		return false
	}
	return false
}

// --- saved filters ---

func (e Engine) CreateFilter(ctx context.Context, f domain.SavedFilter) (domain.SavedFilter, error) {
	if strings.TrimSpace(f.Title) == "" {
		return domain.SavedFilter{}, errors.New("title is required")
	}
	if f.Public && !e.canShareFilters(ctx, f.CreatorID) {
		return domain.SavedFilter{}, errors.New("sharing filters requires the SHARE_FILTERS role token")
	}
	if f.Params == nil {
		f.Params = map[string][]string{}
	}
	f.CreatedAt = e.timestamp()
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		id, err := e.Repo.InsertFilter(ctx, tx, f)
		if err != nil {
			return err
		}
		f.ID = id
		return e.Events.Append(ctx, tx, "filter.create", "filter", id, f.CreatorID, nil)
	})
	return f, err
}

func (e Engine) canShareFilters(ctx context.Context, userID int64) bool {
	a, err := e.Repo.LoadActor(ctx, userID)
	if err != nil {
		return false
	}
	return a.IsAdmin() || a.HasRole(acl.RoleShareFilters)
}

func (e Engine) UpdateFilter(ctx context.Context, f domain.SavedFilter, actorID int64) (domain.SavedFilter, error) {
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.UpdateFilter(ctx, tx, f); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, "filter.update", "filter", f.ID, actorID, nil)
	})
	if err != nil {
		return domain.SavedFilter{}, err
	}
	return e.Repo.GetFilter(ctx, f.ID)
}

func (e Engine) DeleteFilter(ctx context.Context, id int64, actorID int64) error {
	return e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.DeleteFilter(ctx, tx, id); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, "filter.delete", "filter", id, actorID, nil)
	})
}

// --- tags ---

func (e Engine) CreateTag(ctx context.Context, t domain.Tag) (domain.Tag, error) {
	if strings.TrimSpace(t.Title) == "" {
		return domain.Tag{}, errors.New("title is required")
	}
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		id, err := e.Repo.InsertTag(ctx, tx, t)
		if err != nil {
			return err
		}
		t.ID = id
		return e.Events.Append(ctx, tx, "tag.create", "tag", id, t.CreatorID, nil)
	})
	return t, err
}

func (e Engine) UpdateTag(ctx context.Context, t domain.Tag, actorID int64) (domain.Tag, error) {
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.UpdateTag(ctx, tx, t); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, "tag.update", "tag", t.ID, actorID, nil)
	})
	if err != nil {
		return domain.Tag{}, err
	}
	return e.Repo.GetTag(ctx, t.ID)
}

// --- statuses and attributes ---

func (e Engine) CreateStatus(ctx context.Context, s domain.Status, actorID int64) (domain.Status, error) {
	if strings.TrimSpace(s.Title) == "" {
		return domain.Status{}, errors.New("title is required")
	}
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		id, err := e.Repo.InsertStatus(ctx, tx, s)
		if err != nil {
			return err
		}
		s.ID = id
		return e.Events.Append(ctx, tx, "status.create", "status", id, actorID, nil)
	})
	return s, err
}

func validAttributeKind(kind string) bool {
	switch kind {
	case domain.AttributeCheckbox, domain.AttributeDate, domain.AttributeInput, domain.AttributeSelect:
		return true
	}
	return false
}

func (e Engine) CreateTaskAttribute(ctx context.Context, a domain.TaskAttribute, actorID int64) (domain.TaskAttribute, error) {
	if strings.TrimSpace(a.Title) == "" {
		return domain.TaskAttribute{}, errors.New("title is required")
	}
	if !validAttributeKind(a.Kind) {
		return domain.TaskAttribute{}, fmt.Errorf("invalid attribute kind %s", a.Kind)
	}
	if a.Options == nil {
		a.Options = []string{}
	}
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		id, err := e.Repo.InsertTaskAttribute(ctx, tx, a)
		if err != nil {
			return err
		}
		a.ID = id
		return e.Events.Append(ctx, tx, "task_attribute.create", "task_attribute", id, actorID, nil)
	})
	return a, err
}

func (e Engine) CreateCompanyAttribute(ctx context.Context, a domain.CompanyAttribute, actorID int64) (domain.CompanyAttribute, error) {
	if strings.TrimSpace(a.Title) == "" {
		return domain.CompanyAttribute{}, errors.New("title is required")
	}
	if !validAttributeKind(a.Kind) {
		return domain.CompanyAttribute{}, fmt.Errorf("invalid attribute kind %s", a.Kind)
	}
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		id, err := e.Repo.InsertCompanyAttribute(ctx, tx, a)
		if err != nil {
			return err
		}
		a.ID = id
		return e.Events.Append(ctx, tx, "company_attribute.create", "company_attribute", id, actorID, nil)
	})
	return a, err
}

// --- repeating tasks ---

func (e Engine) CreateRepeatingTask(ctx context.Context, rt domain.RepeatingTask) (domain.RepeatingTask, error) {
	if rt.TaskID == 0 {
		return domain.RepeatingTask{}, errors.New("task is required")
	}
	if rt.Interval == "" {
		return domain.RepeatingTask{}, errors.New("interval is required")
	}
	if _, err := e.Repo.GetTask(ctx, rt.TaskID); err != nil {
		return domain.RepeatingTask{}, err
	}
	if rt.NextAt == "" {
		rt.NextAt = e.timestamp()
	}
	rt.CreatedAt = e.timestamp()
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		id, err := e.Repo.InsertRepeatingTask(ctx, tx, rt)
		if err != nil {
			return err
		}
		rt.ID = id
		return e.Events.Append(ctx, tx, "repeating_task.create", "repeating_task", id, rt.CreatorID, nil)
	})
	return rt, err
}

// --- api keys ---

// MintAPIKey creates a key for a user and returns the plaintext once;
// only the hash is stored.
func (e Engine) MintAPIKey(ctx context.Context, userID int64, label string) (string, domain.APIKey, error) {
	if _, err := e.Repo.GetUser(ctx, userID); err != nil {
		return "", domain.APIKey{}, err
	}
	plaintext := uuid.NewString()
	key := domain.APIKey{
		UserID:    userID,
		Label:     label,
		KeyHash:   repo.HashAPIKey(plaintext),
		CreatedAt: e.timestamp(),
	}
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		id, err := e.Repo.InsertAPIKey(ctx, tx, key)
		if err != nil {
			return err
		}
		key.ID = id
		return e.Events.Append(ctx, tx, "api_key.create", "api_key", id, userID, events.Detail{"label": label})
	})
	return plaintext, key, err
}

func (e Engine) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
