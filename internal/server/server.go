package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"taskdesk/internal/acl"
	"taskdesk/internal/actor"
	"taskdesk/internal/domain"
	"taskdesk/internal/engine"
	"taskdesk/internal/filter"
	"taskdesk/internal/repo"
	"taskdesk/internal/security"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"forbidden"`
	Message string         `json:"message" example:"listing tasks is not permitted"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type requestKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Taskdesk API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Route Huma's own errors through the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Taskdesk API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerMe(group, cfg.Engine)
	registerCompanies(group, cfg.Engine)
	registerUsers(group, cfg.Engine)
	registerProjects(group, cfg.Engine)
	registerTasks(group, cfg.Engine, basePath)
	registerRepeatingTasks(group, cfg.Engine)
	registerFilters(group, cfg.Engine)
	registerTags(group, cfg.Engine)
	registerCatalog(group, cfg.Engine)
	registerNotifications(group, cfg.Engine)
	registerAPIKeys(group, cfg.Engine)

	startWebhookDispatcher(cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError maps engine and repo errors to the envelope. An
// unregistered vote action is an integration bug and surfaces as 500;
// a malformed filter is the caller's fault and surfaces as 400.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var iae acl.InvalidActionError
	if errors.As(err, &iae) {
		return newAPIError(http.StatusInternalServerError, "invalid_action", err.Error(), map[string]any{"domain": string(iae.Domain), "action": iae.Action})
	}
	var mfe filter.MalformedFilterError
	if errors.As(err, &mfe) {
		return newAPIError(http.StatusBadRequest, "malformed_filter", err.Error(), map[string]any{"field": mfe.Field, "value": mfe.Value})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "invalid"),
		strings.Contains(lowered, "unknown"),
		strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// loadActor builds the request's actor from the authenticated principal.
func loadActor(ctx context.Context, e engine.Engine) (*actor.Actor, huma.StatusError) {
	userID, authErr := userIDFromContext(ctx)
	if authErr != nil {
		return nil, authErr
	}
	a, err := e.Repo.LoadActor(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "unknown user", nil)
		}
		return nil, handleError(err)
	}
	return a, nil
}

// requireGranted runs a voter and converts a deny into 403.
func requireGranted(e engine.Engine, domain acl.Domain, action string, a *actor.Actor, sub security.Subject) huma.StatusError {
	ok, err := e.Voters.IsGranted(domain, action, a, sub)
	if err != nil {
		return handleError(err)
	}
	if !ok {
		return newAPIError(http.StatusForbidden, "forbidden", strings.ToLower(action)+" on "+string(domain)+" is not permitted", nil)
	}
	return nil
}

func requestFromContext(ctx context.Context) *http.Request {
	r, _ := ctx.Value(requestKey{}).(*http.Request)
	return r
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body struct {
			Status string `json:"status" example:"ok"`
		}
	}, error) {
		resp := &struct {
			Body struct {
				Status string `json:"status" example:"ok"`
			}
		}{}
		resp.Body.Status = "ok"
		return resp, nil
	})
}

func registerMe(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current user",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.User
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := e.Repo.GetUser(ctx, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.User }{Body: u}, nil
	})
}

func registerCompanies(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-companies",
		Method:      http.MethodGet,
		Path:        "/companies",
		Summary:     "List companies",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Company
	}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireGranted(e, acl.DomainCompany, acl.ActionList, a, security.NoSubject()); err != nil {
			return nil, err
		}
		companies, err := e.Repo.ListCompanies(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body []domain.Company }{Body: companies}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-company",
		Method:        http.MethodPost,
		Path:          "/companies",
		Summary:       "Create company",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateCompanyRequest
	}) (*struct {
		Body domain.Company
	}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		// Company creation sits outside the vote catalog; admin only.
		if !a.IsAdmin() {
			return nil, newAPIError(http.StatusForbidden, "forbidden", "create on company is not permitted", nil)
		}
		c, err := e.CreateCompany(ctx, input.Body.Title, a.ID())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.Company }{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-company",
		Method:      http.MethodGet,
		Path:        "/companies/{id}",
		Summary:     "Show company",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body domain.Company
	}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireGranted(e, acl.DomainCompany, acl.ActionShow, a, security.ByID(input.ID)); err != nil {
			return nil, err
		}
		c, err := e.Repo.GetCompany(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.Company }{Body: c}, nil
	})
}

func registerUsers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List users",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.User
	}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireGranted(e, acl.DomainUser, acl.ActionList, a, security.NoSubject()); err != nil {
			return nil, err
		}
		users, err := e.Repo.ListUsers(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body []domain.User }{Body: users}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-user",
		Method:        http.MethodPost,
		Path:          "/users",
		Summary:       "Create user",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateUserRequest
	}) (*struct {
		Body domain.User
	}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireGranted(e, acl.DomainUser, acl.ActionCreate, a, security.NoSubject()); err != nil {
			return nil, err
		}
		u, err := e.CreateUser(ctx, domain.User{
			Email:     input.Body.Email,
			Name:      input.Body.Name,
			RoleID:    input.Body.RoleID,
			CompanyID: input.Body.CompanyID,
		}, a.ID())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.User }{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-user",
		Method:      http.MethodGet,
		Path:        "/users/{id}",
		Summary:     "Show user",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body domain.User
	}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireGranted(e, acl.DomainUser, acl.ActionShow, a, security.ByID(input.ID)); err != nil {
			return nil, err
		}
		u, err := e.Repo.GetUser(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.User }{Body: u}, nil
	})
}

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Project
	}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireGranted(e, acl.DomainProject, acl.ActionList, a, security.NoSubject()); err != nil {
			return nil, err
		}
		var ids []int64
		if !a.IsAdmin() {
			seen := map[int64]struct{}{}
			for _, id := range append(a.OwnedProjects(), a.GrantedProjects()...) {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
			if ids == nil {
				ids = []int64{}
			}
		}
		projects, err := e.Repo.ListProjects(ctx, ids)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body []domain.Project }{Body: projects}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest
	}) (*struct {
		Body domain.Project
	}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireGranted(e, acl.DomainProject, acl.ActionCreate, a, security.NoSubject()); err != nil {
			return nil, err
		}
		p, err := e.CreateProject(ctx, input.Body.Title, a.ID())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.Project }{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{id}",
		Summary:     "Show project",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body domain.Project
	}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		// Owners and grant holders see their project without the
		// role-level VIEW_PROJECT token.
		if !a.OwnsProject(input.ID) && !a.HasGrant(input.ID) {
			if err := requireGranted(e, acl.DomainProject, acl.ActionShow, a, security.ByID(input.ID)); err != nil {
				return nil, err
			}
		}
		p, err := e.Repo.GetProject(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.Project }{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPatch,
		Path:        "/projects/{id}",
		Summary:     "Update project",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   int64 `path:"id"`
		Body UpdateProjectRequest
	}) (*struct {
		Body domain.Project
	}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		if !a.OwnsProject(input.ID) {
			if err := requireGranted(e, acl.DomainProject, acl.ActionUpdate, a, security.ByID(input.ID)); err != nil {
				return nil, err
			}
		}
		p, err := e.UpdateProject(ctx, input.ID, input.Body.Title, input.Body.IsActive, a.ID())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.Project }{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-project",
		Method:        http.MethodDelete,
		Path:          "/projects/{id}",
		Summary:       "Delete project",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct{}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		if !a.OwnsProject(input.ID) {
			if err := requireGranted(e, acl.DomainProject, acl.ActionDelete, a, security.ByID(input.ID)); err != nil {
				return nil, err
			}
		}
		if err := e.DeleteProject(ctx, input.ID, a.ID()); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "grant-project-acl",
		Method:      http.MethodPut,
		Path:        "/projects/{id}/acl/{userId}",
		Summary:     "Grant project ACL tokens to a user",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID     int64 `path:"id"`
		UserID int64 `path:"userId"`
		Body   GrantAclRequest
	}) (*struct{}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		if !a.IsAdmin() && !a.OwnsProject(input.ID) {
			return nil, newAPIError(http.StatusForbidden, "forbidden", "only the project owner manages its ACL", nil)
		}
		err := e.GrantProjectAcl(ctx, domain.ProjectAclGrant{
			ProjectID: input.ID,
			UserID:    input.UserID,
			Acl:       input.Body.Acl,
		}, a.ID())
		if err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "revoke-project-acl",
		Method:        http.MethodDelete,
		Path:          "/projects/{id}/acl/{userId}",
		Summary:       "Revoke a user's project ACL grant",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID     int64 `path:"id"`
		UserID int64 `path:"userId"`
	}) (*struct{}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		if !a.IsAdmin() && !a.OwnsProject(input.ID) {
			return nil, newAPIError(http.StatusForbidden, "forbidden", "only the project owner manages its ACL", nil)
		}
		if err := e.RevokeProjectAcl(ctx, input.ID, input.UserID, a.ID()); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})
}

// filterParams extracts the raw filter parameters from the request,
// dropping the pagination controls the compiler never sees.
func filterParams(ctx context.Context) map[string][]string {
	r := requestFromContext(ctx)
	if r == nil {
		return map[string][]string{}
	}
	params := map[string][]string{}
	for key, values := range r.URL.Query() {
		if key == "limit" || key == "page" {
			continue
		}
		params[key] = values
	}
	return params
}

func registerTasks(api huma.API, e engine.Engine, basePath string) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
		Description: "Filterable listing. Fields accept comma-separated ids plus the current-user and not sentinels; date fields accept FROM=/TO= ranges.",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Project int64 `query:"project"`
		Limit   int   `query:"limit" default:"25" minimum:"1" maximum:"100"`
		Page    int   `query:"page" default:"1" minimum:"1"`
	}) (*struct {
		Body TaskPageResponse
	}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		sub := security.NoSubject()
		if input.Project != 0 {
			sub = security.ByOptions(security.Options{ProjectID: input.Project})
		}
		if err := requireGranted(e, acl.DomainTask, acl.ActionList, a, sub); err != nil {
			return nil, err
		}
		url := listURL(e, basePath, "/tasks")
		page, err := e.ListTasks(ctx, filterParams(ctx), a, url, input.Limit, input.Page)
		if err != nil {
			return nil, handleError(err)
		}
		items := page.Tasks
		if items == nil {
			items = []domain.Task{}
		}
		return &struct{ Body TaskPageResponse }{Body: TaskPageResponse{
			Envelope: page.Envelope,
			Items:    items,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest
	}) (*struct {
		Body domain.Task
	}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		sub := security.ByOptions(security.Options{ProjectID: input.Body.ProjectID})
		if err := requireGranted(e, acl.DomainTask, acl.ActionCreate, a, sub); err != nil {
			return nil, err
		}
		t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			ProjectID:   input.Body.ProjectID,
			StatusID:    input.Body.StatusID,
			RequesterID: input.Body.RequesterID,
			AssignedID:  input.Body.AssignedID,
			CompanyID:   input.Body.CompanyID,
			Important:   input.Body.Important,
			TagIDs:      input.Body.TagIDs,
			FollowerIDs: input.Body.FollowerIDs,
			DeadlineAt:  input.Body.DeadlineAt,
		}, a.ID())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.Task }{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Show task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body domain.Task
	}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.Repo.GetTask(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		// Invisible tasks read as absent.
		if !e.TaskVisibleTo(a, t) {
			return nil, newAPIError(http.StatusNotFound, "not_found", "not found", nil)
		}
		return &struct{ Body domain.Task }{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}",
		Summary:     "Update task",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   int64 `path:"id"`
		Body UpdateTaskRequest
	}) (*struct {
		Body domain.Task
	}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.Repo.GetTask(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if !e.TaskVisibleTo(a, t) {
			return nil, newAPIError(http.StatusNotFound, "not_found", "not found", nil)
		}
		canUpdate := a.IsAdmin() ||
			t.CreatorID == a.ID() ||
			a.OwnsProject(t.ProjectID) ||
			a.HasInProject(t.ProjectID, acl.ProjectUpdateTask)
		if !canUpdate {
			return nil, newAPIError(http.StatusForbidden, "forbidden", "update on task is not permitted", nil)
		}
		applyTaskUpdate(&t, input.Body)
		updated, err := e.UpdateTask(ctx, t, a.ID())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.Task }{Body: updated}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-task-comments",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}/comments",
		Summary:     "List task comments",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body []domain.Comment
	}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.Repo.GetTask(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if !e.TaskVisibleTo(a, t) {
			return nil, newAPIError(http.StatusNotFound, "not_found", "not found", nil)
		}
		comments, err := e.Repo.ListComments(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if comments == nil {
			comments = []domain.Comment{}
		}
		return &struct{ Body []domain.Comment }{Body: comments}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-task-comment",
		Method:        http.MethodPost,
		Path:          "/tasks/{id}/comments",
		Summary:       "Comment on task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   int64 `path:"id"`
		Body CreateCommentRequest
	}) (*struct {
		Body domain.Comment
	}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.Repo.GetTask(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if !e.TaskVisibleTo(a, t) {
			return nil, newAPIError(http.StatusNotFound, "not_found", "not found", nil)
		}
		c, err := e.CreateComment(ctx, input.ID, input.Body.Body, a.ID())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.Comment }{Body: c}, nil
	})
}

func applyTaskUpdate(t *domain.Task, req UpdateTaskRequest) {
	if req.Title != nil {
		t.Title = *req.Title
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.StatusID != nil {
		t.StatusID = req.StatusID
	}
	if req.RequesterID != nil {
		t.RequesterID = req.RequesterID
	}
	if req.AssignedID != nil {
		t.AssignedID = req.AssignedID
	}
	if req.Important != nil {
		t.Important = *req.Important
	}
	if req.TagIDs != nil {
		t.TagIDs = *req.TagIDs
	}
	if req.FollowerIDs != nil {
		t.FollowerIDs = *req.FollowerIDs
	}
	if req.StartedAt != nil {
		t.StartedAt = req.StartedAt
	}
	if req.DeadlineAt != nil {
		t.DeadlineAt = req.DeadlineAt
	}
	if req.ClosedAt != nil {
		t.ClosedAt = req.ClosedAt
	}
}

func listURL(e engine.Engine, basePath, route string) string {
	base := "http://localhost:8080"
	if e.Config != nil && e.Config.Server.PublicURL != "" {
		base = strings.TrimRight(e.Config.Server.PublicURL, "/")
	}
	return base + basePath + route
}

func registerRepeatingTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-task-repeating",
		Method:      http.MethodGet,
		Path:        "/tasks/{taskId}/repeating",
		Summary:     "List a task's repeating schedules",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID int64 `path:"taskId"`
	}) (*struct {
		Body []domain.RepeatingTask
	}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.Repo.GetTask(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		if !e.TaskVisibleTo(a, t) {
			return nil, newAPIError(http.StatusNotFound, "not_found", "not found", nil)
		}
		items, err := e.Repo.ListRepeatingTasksForTasks(ctx, []int64{input.TaskID})
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.RepeatingTask{}
		}
		return &struct{ Body []domain.RepeatingTask }{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-repeating-task",
		Method:        http.MethodPost,
		Path:          "/tasks/{taskId}/repeating",
		Summary:       "Create repeating task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID int64 `path:"taskId"`
		Body   CreateRepeatingTaskRequest
	}) (*struct {
		Body domain.RepeatingTask
	}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.Repo.GetTask(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		if !e.TaskVisibleTo(a, t) {
			return nil, newAPIError(http.StatusNotFound, "not_found", "not found", nil)
		}
		sub := security.ByOptions(security.Options{
			ProjectID:      t.ProjectID,
			UserHasProject: a.GrantFor(t.ProjectID),
		})
		if err := requireGranted(e, acl.DomainRepeatingTask, acl.ActionCreate, a, sub); err != nil {
			return nil, err
		}
		rt := domain.RepeatingTask{
			TaskID:    input.TaskID,
			CreatorID: a.ID(),
			Interval:  input.Body.Interval,
			Repeats:   input.Body.Repeats,
		}
		if input.Body.NextAt != nil {
			rt.NextAt = *input.Body.NextAt
		}
		created, err := e.CreateRepeatingTask(ctx, rt)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.RepeatingTask }{Body: created}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-repeating-task",
		Method:      http.MethodGet,
		Path:        "/repeating-tasks/{id}",
		Summary:     "Show repeating task",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body domain.RepeatingTask
	}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		rt, err := e.Repo.GetRepeatingTask(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		allowed := map[int64]struct{}{}
		if t, err := e.Repo.GetTask(ctx, rt.TaskID); err == nil && e.TaskVisibleTo(a, t) {
			allowed[rt.TaskID] = struct{}{}
		}
		sub := security.ByOptions(security.Options{
			AllowedTaskIDs: allowed,
			TaskID:         rt.TaskID,
		})
		if err := requireGranted(e, acl.DomainRepeatingTask, acl.ActionView, a, sub); err != nil {
			return nil, err
		}
		return &struct{ Body domain.RepeatingTask }{Body: rt}, nil
	})
}

func registerFilters(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-filters",
		Method:      http.MethodGet,
		Path:        "/filters",
		Summary:     "List visible saved filters",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.SavedFilter
	}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		filters, err := e.Repo.ListVisibleFilters(ctx, a.ID())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body []domain.SavedFilter }{Body: filters}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-filter",
		Method:        http.MethodPost,
		Path:          "/filters",
		Summary:       "Create saved filter",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateFilterRequest
	}) (*struct {
		Body domain.SavedFilter
	}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		f, err := e.CreateFilter(ctx, domain.SavedFilter{
			Title:     input.Body.Title,
			Params:    input.Body.Params,
			Public:    input.Body.Public,
			CreatorID: a.ID(),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.SavedFilter }{Body: f}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-filter",
		Method:      http.MethodGet,
		Path:        "/filters/{id}",
		Summary:     "Show saved filter",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body domain.SavedFilter
	}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		f, err := e.Repo.GetFilter(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := requireGranted(e, acl.DomainFilter, acl.ActionView, a, filterSnapshot(f)); err != nil {
			return nil, err
		}
		return &struct{ Body domain.SavedFilter }{Body: f}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-filter",
		Method:      http.MethodPatch,
		Path:        "/filters/{id}",
		Summary:     "Update saved filter",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   int64 `path:"id"`
		Body UpdateFilterRequest
	}) (*struct {
		Body domain.SavedFilter
	}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		f, err := e.Repo.GetFilter(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := requireGranted(e, acl.DomainFilter, acl.ActionUpdate, a, filterSnapshot(f)); err != nil {
			return nil, err
		}
		if input.Body.Title != nil {
			f.Title = *input.Body.Title
		}
		if input.Body.Params != nil {
			f.Params = *input.Body.Params
		}
		if input.Body.Public != nil {
			f.Public = *input.Body.Public
		}
		updated, err := e.UpdateFilter(ctx, f, a.ID())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.SavedFilter }{Body: updated}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-filter",
		Method:        http.MethodDelete,
		Path:          "/filters/{id}",
		Summary:       "Delete saved filter",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct{}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		f, err := e.Repo.GetFilter(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := requireGranted(e, acl.DomainFilter, acl.ActionDelete, a, filterSnapshot(f)); err != nil {
			return nil, err
		}
		if err := e.DeleteFilter(ctx, input.ID, a.ID()); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-filter-project",
		Method:      http.MethodPut,
		Path:        "/filters/{id}/project",
		Summary:     "Attach saved filter to a project",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   int64 `path:"id"`
		Body SetFilterProjectRequest
	}) (*struct {
		Body domain.SavedFilter
	}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		f, err := e.Repo.GetFilter(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		snap := security.Snapshot{
			CreatorID: f.CreatorID,
			ProjectID: input.Body.ProjectID,
			Public:    f.Public,
		}
		if err := requireGranted(e, acl.DomainFilter, acl.ActionUpdateProjectFilter, a, security.BySnapshot(snap)); err != nil {
			return nil, err
		}
		f.ProjectID = &input.Body.ProjectID
		updated, err := e.UpdateFilter(ctx, f, a.ID())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.SavedFilter }{Body: updated}, nil
	})
}

func filterSnapshot(f domain.SavedFilter) security.Subject {
	snap := security.Snapshot{CreatorID: f.CreatorID, Public: f.Public}
	if f.ProjectID != nil {
		snap.ProjectID = *f.ProjectID
	}
	return security.BySnapshot(snap)
}

func registerTags(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tags",
		Method:      http.MethodGet,
		Path:        "/tags",
		Summary:     "List visible tags",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Tag
	}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		tags, err := e.Repo.ListVisibleTags(ctx, a.ID())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body []domain.Tag }{Body: tags}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-tag",
		Method:        http.MethodPost,
		Path:          "/tags",
		Summary:       "Create tag",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateTagRequest
	}) (*struct {
		Body domain.Tag
	}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.Public && !a.IsAdmin() && !a.HasRole(acl.RoleShareTags) {
			return nil, newAPIError(http.StatusForbidden, "forbidden", "sharing tags requires the SHARE_TAGS role token", nil)
		}
		t, err := e.CreateTag(ctx, domain.Tag{
			Title:     input.Body.Title,
			Color:     input.Body.Color,
			Public:    input.Body.Public,
			CreatorID: a.ID(),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.Tag }{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-tag",
		Method:      http.MethodGet,
		Path:        "/tags/{id}",
		Summary:     "Show tag",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body domain.Tag
	}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.Repo.GetTag(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		snap := security.Snapshot{CreatorID: t.CreatorID, Public: t.Public}
		if err := requireGranted(e, acl.DomainTag, acl.ActionShow, a, security.BySnapshot(snap)); err != nil {
			return nil, err
		}
		return &struct{ Body domain.Tag }{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-tag",
		Method:      http.MethodPatch,
		Path:        "/tags/{id}",
		Summary:     "Update tag",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   int64 `path:"id"`
		Body UpdateTagRequest
	}) (*struct {
		Body domain.Tag
	}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.Repo.GetTag(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		snap := security.Snapshot{CreatorID: t.CreatorID, Public: t.Public}
		if err := requireGranted(e, acl.DomainTag, acl.ActionUpdate, a, security.BySnapshot(snap)); err != nil {
			return nil, err
		}
		if input.Body.Title != nil {
			t.Title = *input.Body.Title
		}
		if input.Body.Color != nil {
			t.Color = *input.Body.Color
		}
		if input.Body.Public != nil {
			t.Public = *input.Body.Public
		}
		updated, err := e.UpdateTag(ctx, t, a.ID())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.Tag }{Body: updated}, nil
	})
}

func registerCatalog(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-statuses",
		Method:      http.MethodGet,
		Path:        "/statuses",
		Summary:     "List statuses",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Status
	}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireGranted(e, acl.DomainStatus, acl.ActionList, a, security.NoSubject()); err != nil {
			return nil, err
		}
		statuses, err := e.Repo.ListStatuses(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body []domain.Status }{Body: statuses}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-status",
		Method:        http.MethodPost,
		Path:          "/statuses",
		Summary:       "Create status",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateStatusRequest
	}) (*struct {
		Body domain.Status
	}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireGranted(e, acl.DomainStatus, acl.ActionCreate, a, security.NoSubject()); err != nil {
			return nil, err
		}
		s, err := e.CreateStatus(ctx, domain.Status{
			Title:   input.Body.Title,
			Default: input.Body.Default,
			Closed:  input.Body.Closed,
		}, a.ID())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.Status }{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-task-attributes",
		Method:      http.MethodGet,
		Path:        "/task-attributes",
		Summary:     "List task attributes",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.TaskAttribute
	}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireGranted(e, acl.DomainTaskAttribute, acl.ActionList, a, security.NoSubject()); err != nil {
			return nil, err
		}
		attrs, err := e.Repo.ListTaskAttributes(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body []domain.TaskAttribute }{Body: attrs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-task-attribute",
		Method:        http.MethodPost,
		Path:          "/task-attributes",
		Summary:       "Create task attribute",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateTaskAttributeRequest
	}) (*struct {
		Body domain.TaskAttribute
	}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireGranted(e, acl.DomainTaskAttribute, acl.ActionCreate, a, security.NoSubject()); err != nil {
			return nil, err
		}
		attr, err := e.CreateTaskAttribute(ctx, domain.TaskAttribute{
			Title:   input.Body.Title,
			Kind:    input.Body.Kind,
			Options: input.Body.Options,
		}, a.ID())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.TaskAttribute }{Body: attr}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-company-attributes",
		Method:      http.MethodGet,
		Path:        "/company-attributes",
		Summary:     "List company attributes",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.CompanyAttribute
	}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireGranted(e, acl.DomainCompanyAttribute, acl.ActionList, a, security.NoSubject()); err != nil {
			return nil, err
		}
		attrs, err := e.Repo.ListCompanyAttributes(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body []domain.CompanyAttribute }{Body: attrs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-company-attribute",
		Method:        http.MethodPost,
		Path:          "/company-attributes",
		Summary:       "Create company attribute",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateCompanyAttributeRequest
	}) (*struct {
		Body domain.CompanyAttribute
	}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireGranted(e, acl.DomainCompanyAttribute, acl.ActionCreate, a, security.NoSubject()); err != nil {
			return nil, err
		}
		attr, err := e.CreateCompanyAttribute(ctx, domain.CompanyAttribute{
			Title: input.Body.Title,
			Kind:  input.Body.Kind,
		}, a.ID())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.CompanyAttribute }{Body: attr}, nil
	})
}

func registerNotifications(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-notifications",
		Method:      http.MethodGet,
		Path:        "/notifications",
		Summary:     "List own notifications",
	}, func(ctx context.Context, input *struct {
		Unread bool `query:"unread"`
	}) (*struct {
		Body []domain.Notification
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListNotifications(ctx, userID, input.Unread)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body []domain.Notification }{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "read-notification",
		Method:        http.MethodPost,
		Path:          "/notifications/{id}/read",
		Summary:       "Mark notification read",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct{}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.Repo.MarkNotificationRead(ctx, input.ID, userID); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})
}

func registerAPIKeys(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "mint-api-key",
		Method:        http.MethodPost,
		Path:          "/api-keys",
		Summary:       "Mint an API key for the current user",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body MintAPIKeyRequest
	}) (*struct {
		Body MintAPIKeyResponse
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		plaintext, key, err := e.MintAPIKey(ctx, userID, input.Body.Label)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body MintAPIKeyResponse }{Body: MintAPIKeyResponse{Key: plaintext, APIKey: key}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/api-keys",
		Summary:     "List own API keys",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.APIKey
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		keys, err := e.Repo.ListAPIKeys(ctx, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body []domain.APIKey }{Body: keys}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-api-key",
		Method:        http.MethodDelete,
		Path:          "/api-keys/{id}",
		Summary:       "Delete an API key",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct{}, error) {
		a, authErr := loadActor(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		keys, err := e.Repo.ListAPIKeys(ctx, a.ID())
		if err != nil {
			return nil, handleError(err)
		}
		owned := false
		for _, k := range keys {
			if k.ID == input.ID {
				owned = true
				break
			}
		}
		if !owned && !a.IsAdmin() {
			return nil, newAPIError(http.StatusForbidden, "forbidden", "delete on api key is not permitted", nil)
		}
		if err := e.Repo.DeleteAPIKey(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})
}
