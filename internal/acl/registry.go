// Package acl holds the static catalogs of action tokens the authorization
// layer decides over: role-level tokens carried by a user's role, per-project
// tokens carried by a project grant, and the vote actions each resource
// family answers for. The catalogs are compile-time data; there is no
// mutation and no I/O.
package acl

import "fmt"

// Domain identifies one resource family's action catalog.
type Domain string

const (
	DomainCompany          Domain = "company"
	DomainProject          Domain = "project"
	DomainTask             Domain = "task"
	DomainRepeatingTask    Domain = "repeating_task"
	DomainFilter           Domain = "filter"
	DomainTag              Domain = "tag"
	DomainStatus           Domain = "status"
	DomainCompanyAttribute Domain = "company_attribute"
	DomainTaskAttribute    Domain = "task_attribute"
	DomainUser             Domain = "user"
)

// Role-level tokens. A user's role carries a subset of these.
const (
	RoleListCompanies = "LIST_COMPANIES"
	RoleViewCompany   = "VIEW_COMPANY"

	RoleViewProject   = "VIEW_PROJECT"
	RoleCreateProject = "CREATE_PROJECT"
	RoleUpdateProject = "UPDATE_PROJECT"
	RoleDeleteProject = "DELETE_PROJECT"

	RoleCreateTask = "CREATE_TASK"
	RoleListTasks  = "LIST_ALL_TASKS"

	RoleShareFilters = "SHARE_FILTERS"
	RoleShareTags    = "SHARE_TAGS"

	RoleListStatuses = "LIST_STATUSES"
	RoleViewStatus   = "VIEW_STATUS"
	RoleCreateStatus = "CREATE_STATUS"
	RoleUpdateStatus = "UPDATE_STATUS"
	RoleDeleteStatus = "DELETE_STATUS"

	RoleListCompanyAttributes  = "LIST_COMPANY_ATTRIBUTES"
	RoleViewCompanyAttribute   = "VIEW_COMPANY_ATTRIBUTE"
	RoleCreateCompanyAttribute = "CREATE_COMPANY_ATTRIBUTE"
	RoleUpdateCompanyAttribute = "UPDATE_COMPANY_ATTRIBUTE"
	RoleDeleteCompanyAttribute = "DELETE_COMPANY_ATTRIBUTE"

	RoleListTaskAttributes  = "LIST_TASK_ATTRIBUTES"
	RoleViewTaskAttribute   = "VIEW_TASK_ATTRIBUTE"
	RoleCreateTaskAttribute = "CREATE_TASK_ATTRIBUTE"
	RoleUpdateTaskAttribute = "UPDATE_TASK_ATTRIBUTE"
	RoleDeleteTaskAttribute = "DELETE_TASK_ATTRIBUTE"

	RoleListUsers  = "LIST_USERS"
	RoleViewUser   = "VIEW_USER"
	RoleCreateUser = "CREATE_USER"
	RoleUpdateUser = "UPDATE_USER"
	RoleDeleteUser = "DELETE_USER"
)

// Per-project tokens. A project grant carries a subset of these.
const (
	ProjectViewAllTasks     = "VIEW_ALL_TASKS"
	ProjectViewCompanyTasks = "VIEW_COMPANY_TASKS"
	ProjectViewOwnTasks     = "VIEW_OWN_TASKS"
	ProjectCreateTask       = "CREATE_TASK"
	ProjectUpdateTask       = "UPDATE_TASK"
	ProjectDeleteTask       = "DELETE_TASK"
	ProjectResolveTask      = "RESOLVE_TASK"
)

// Vote actions. Each voter accepts only the actions registered for its
// domain; anything else is an integration bug, not a deny.
const (
	ActionList    = "LIST"
	ActionShow    = "SHOW"
	ActionView    = "VIEW"
	ActionCreate  = "CREATE"
	ActionUpdate  = "UPDATE"
	ActionDelete  = "DELETE"
	ActionResolve = "RESOLVE"

	ActionUpdateProjectFilter = "UPDATE_PROJECT_FILTER"
)

// Set is a membership-test collection of tokens.
type Set map[string]struct{}

// NewSet builds a Set from the given tokens.
func NewSet(tokens ...string) Set {
	s := make(Set, len(tokens))
	for _, t := range tokens {
		s[t] = struct{}{}
	}
	return s
}

func (s Set) Has(token string) bool {
	_, ok := s[token]
	return ok
}

// HasAny reports whether any of the tokens is present.
func (s Set) HasAny(tokens ...string) bool {
	for _, t := range tokens {
		if s.Has(t) {
			return true
		}
	}
	return false
}

// Tokens returns the members in unspecified order.
func (s Set) Tokens() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	return out
}

// InvalidActionError reports a vote action outside its domain's catalog.
// It is a programming error: callers must surface it, never treat it as
// a deny.
type InvalidActionError struct {
	Domain Domain
	Action string
}

func (e InvalidActionError) Error() string {
	return fmt.Sprintf("action %s not registered for domain %s", e.Action, e.Domain)
}

var crudActions = NewSet(ActionList, ActionShow, ActionCreate, ActionUpdate, ActionDelete)

var voteActions = map[Domain]Set{
	DomainCompany:          NewSet(ActionList, ActionShow),
	DomainProject:          crudActions,
	DomainTask:             NewSet(ActionList, ActionCreate),
	DomainRepeatingTask:    NewSet(ActionView, ActionCreate),
	DomainFilter:           NewSet(ActionView, ActionUpdate, ActionDelete, ActionUpdateProjectFilter),
	DomainTag:              NewSet(ActionShow, ActionUpdate),
	DomainStatus:           crudActions,
	DomainCompanyAttribute: crudActions,
	DomainTaskAttribute:    crudActions,
	DomainUser:             crudActions,
}

var roleTokens = NewSet(
	RoleListCompanies, RoleViewCompany,
	RoleViewProject, RoleCreateProject, RoleUpdateProject, RoleDeleteProject,
	RoleCreateTask, RoleListTasks,
	RoleShareFilters, RoleShareTags,
	RoleListStatuses, RoleViewStatus, RoleCreateStatus, RoleUpdateStatus, RoleDeleteStatus,
	RoleListCompanyAttributes, RoleViewCompanyAttribute, RoleCreateCompanyAttribute, RoleUpdateCompanyAttribute, RoleDeleteCompanyAttribute,
	RoleListTaskAttributes, RoleViewTaskAttribute, RoleCreateTaskAttribute, RoleUpdateTaskAttribute, RoleDeleteTaskAttribute,
	RoleListUsers, RoleViewUser, RoleCreateUser, RoleUpdateUser, RoleDeleteUser,
)

var projectTokens = NewSet(
	ProjectViewAllTasks, ProjectViewCompanyTasks, ProjectViewOwnTasks,
	ProjectCreateTask, ProjectUpdateTask, ProjectDeleteTask, ProjectResolveTask,
)

// Actions returns the vote actions registered for a domain.
func Actions(domain Domain) Set {
	return voteActions[domain]
}

// ValidAction reports whether action is registered for domain.
func ValidAction(domain Domain, action string) bool {
	return voteActions[domain].Has(action)
}

// CheckAction returns an InvalidActionError when the action is not
// registered for the domain.
func CheckAction(domain Domain, action string) error {
	if !ValidAction(domain, action) {
		return InvalidActionError{Domain: domain, Action: action}
	}
	return nil
}

// ValidRoleToken reports whether token belongs to the role-level catalog.
func ValidRoleToken(token string) bool { return roleTokens.Has(token) }

// ValidProjectToken reports whether token belongs to the per-project catalog.
func ValidProjectToken(token string) bool { return projectTokens.Has(token) }

// RoleTokens returns the full role-level catalog.
func RoleTokens() Set { return roleTokens }

// ProjectTokens returns the full per-project catalog.
func ProjectTokens() Set { return projectTokens }
