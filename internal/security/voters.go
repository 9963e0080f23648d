// Package security implements the per-resource authorization voters and
// the task visibility resolver. Every decision is a pure function over
// the actor and a caller-assembled subject: a deny is the boolean false,
// never an error, while an unregistered vote action surfaces as
// acl.InvalidActionError.
package security

import (
	"taskdesk/internal/acl"
	"taskdesk/internal/actor"
)

// Voter answers "may this actor perform this action on this subject?"
// for one resource family.
type Voter interface {
	Domain() acl.Domain
	Grant(a *actor.Actor, action string, sub Subject) (bool, error)
}

// Engine dispatches to the voter registered for each domain.
type Engine struct {
	voters map[acl.Domain]Voter
}

// NewEngine wires one voter per resource family.
func NewEngine() Engine {
	e := Engine{voters: map[acl.Domain]Voter{}}
	for _, v := range []Voter{
		companyVoter{},
		projectVoter{},
		taskVoter{},
		repeatingTaskVoter{},
		filterVoter{},
		tagVoter{},
		roleTableVoter{domain: acl.DomainStatus, tokens: statusTokens},
		roleTableVoter{domain: acl.DomainCompanyAttribute, tokens: companyAttributeTokens},
		roleTableVoter{domain: acl.DomainTaskAttribute, tokens: taskAttributeTokens},
		roleTableVoter{domain: acl.DomainUser, tokens: userTokens},
	} {
		e.voters[v.Domain()] = v
	}
	return e
}

// IsGranted runs the voter for domain. The action is validated against
// the domain's catalog before anything else, so an unregistered token
// surfaces even for admins and unauthenticated callers.
func (e Engine) IsGranted(domain acl.Domain, action string, a *actor.Actor, sub Subject) (bool, error) {
	v, ok := e.voters[domain]
	if !ok {
		return false, acl.InvalidActionError{Domain: domain, Action: action}
	}
	return v.Grant(a, action, sub)
}

// decide applies the shared preamble: catalog check, unauthenticated
// deny, admin override. The rule func only runs for a real, non-admin
// actor.
func decide(domain acl.Domain, action string, a *actor.Actor, rule func() bool) (bool, error) {
	if err := acl.CheckAction(domain, action); err != nil {
		return false, err
	}
	if a == nil {
		return false, nil
	}
	if a.IsAdmin() {
		return true, nil
	}
	return rule(), nil
}

type companyVoter struct{}

func (companyVoter) Domain() acl.Domain { return acl.DomainCompany }

func (companyVoter) Grant(a *actor.Actor, action string, sub Subject) (bool, error) {
	return decide(acl.DomainCompany, action, a, func() bool {
		switch action {
		case acl.ActionList:
			return a.HasRole(acl.RoleListCompanies)
		case acl.ActionShow:
			if a.HasRole(acl.RoleViewCompany) {
				return true
			}
			if id, ok := sub.AsID(); ok {
				return a.CompanyID() != 0 && a.CompanyID() == id
			}
			if snap, ok := sub.AsSnapshot(); ok {
				return a.CompanyID() != 0 && a.CompanyID() == snap.CompanyID
			}
			return false
		}
		return false
	})
}

type projectVoter struct{}

func (projectVoter) Domain() acl.Domain { return acl.DomainProject }

func (projectVoter) Grant(a *actor.Actor, action string, sub Subject) (bool, error) {
	return decide(acl.DomainProject, action, a, func() bool {
		if action == acl.ActionList {
			return a.OwnsAnyProject() || a.HasAnyGrant()
		}
		return a.HasRole(projectRoleTokens[action])
	})
}

var projectRoleTokens = map[string]string{
	acl.ActionShow:   acl.RoleViewProject,
	acl.ActionCreate: acl.RoleCreateProject,
	acl.ActionUpdate: acl.RoleUpdateProject,
	acl.ActionDelete: acl.RoleDeleteProject,
}

// taskViewTokens are the grant tokens that open a project's task listing.
var taskViewTokens = []string{
	acl.ProjectViewAllTasks,
	acl.ProjectViewCompanyTasks,
	acl.ProjectViewOwnTasks,
	acl.ProjectCreateTask,
}

type taskVoter struct{}

func (taskVoter) Domain() acl.Domain { return acl.DomainTask }

func (taskVoter) Grant(a *actor.Actor, action string, sub Subject) (bool, error) {
	return decide(acl.DomainTask, action, a, func() bool {
		switch action {
		case acl.ActionList:
			if opts, ok := sub.AsOptions(); ok && opts.ProjectID != 0 {
				return a.HasAnyInProject(opts.ProjectID, taskViewTokens...)
			}
			return a.HasRole(acl.RoleCreateTask) ||
				a.HasRole(acl.RoleListTasks) ||
				a.HasInAnyProject(taskViewTokens...)
		case acl.ActionCreate:
			if a.HasRole(acl.RoleCreateTask) {
				return true
			}
			if opts, ok := sub.AsOptions(); ok && opts.ProjectID != 0 {
				return a.HasInProject(opts.ProjectID, acl.ProjectCreateTask)
			}
			return a.HasInAnyProject(acl.ProjectCreateTask)
		}
		return false
	})
}

type repeatingTaskVoter struct{}

func (repeatingTaskVoter) Domain() acl.Domain { return acl.DomainRepeatingTask }

func (repeatingTaskVoter) Grant(a *actor.Actor, action string, sub Subject) (bool, error) {
	return decide(acl.DomainRepeatingTask, action, a, func() bool {
		opts, ok := sub.AsOptions()
		if !ok {
			return false
		}
		switch action {
		case acl.ActionView:
			_, allowed := opts.AllowedTaskIDs[opts.TaskID]
			return allowed
		case acl.ActionCreate:
			return opts.UserHasProject != nil && opts.UserHasProject.Has(acl.ProjectCreateTask)
		}
		return false
	})
}

type filterVoter struct{}

func (filterVoter) Domain() acl.Domain { return acl.DomainFilter }

func (filterVoter) Grant(a *actor.Actor, action string, sub Subject) (bool, error) {
	return decide(acl.DomainFilter, action, a, func() bool {
		snap, ok := sub.AsSnapshot()
		if !ok {
			return false
		}
		created := snap.CreatorID == a.ID()
		switch action {
		case acl.ActionView:
			return snap.Public || created
		case acl.ActionUpdate, acl.ActionDelete:
			return created
		case acl.ActionUpdateProjectFilter:
			return created && a.HasGrant(snap.ProjectID)
		}
		return false
	})
}

type tagVoter struct{}

func (tagVoter) Domain() acl.Domain { return acl.DomainTag }

func (tagVoter) Grant(a *actor.Actor, action string, sub Subject) (bool, error) {
	return decide(acl.DomainTag, action, a, func() bool {
		snap, ok := sub.AsSnapshot()
		if !ok {
			return false
		}
		created := snap.CreatorID == a.ID()
		switch action {
		case acl.ActionShow:
			return snap.Public || created
		case acl.ActionUpdate:
			return created || (snap.Public && a.HasRole(acl.RoleShareTags))
		}
		return false
	})
}

// roleTableVoter covers the families whose every action maps to exactly
// one role-level token.
type roleTableVoter struct {
	domain acl.Domain
	tokens map[string]string
}

func (v roleTableVoter) Domain() acl.Domain { return v.domain }

func (v roleTableVoter) Grant(a *actor.Actor, action string, _ Subject) (bool, error) {
	return decide(v.domain, action, a, func() bool {
		return a.HasRole(v.tokens[action])
	})
}

var statusTokens = map[string]string{
	acl.ActionList:   acl.RoleListStatuses,
	acl.ActionShow:   acl.RoleViewStatus,
	acl.ActionCreate: acl.RoleCreateStatus,
	acl.ActionUpdate: acl.RoleUpdateStatus,
	acl.ActionDelete: acl.RoleDeleteStatus,
}

var companyAttributeTokens = map[string]string{
	acl.ActionList:   acl.RoleListCompanyAttributes,
	acl.ActionShow:   acl.RoleViewCompanyAttribute,
	acl.ActionCreate: acl.RoleCreateCompanyAttribute,
	acl.ActionUpdate: acl.RoleUpdateCompanyAttribute,
	acl.ActionDelete: acl.RoleDeleteCompanyAttribute,
}

var taskAttributeTokens = map[string]string{
	acl.ActionList:   acl.RoleListTaskAttributes,
	acl.ActionShow:   acl.RoleViewTaskAttribute,
	acl.ActionCreate: acl.RoleCreateTaskAttribute,
	acl.ActionUpdate: acl.RoleUpdateTaskAttribute,
	acl.ActionDelete: acl.RoleDeleteTaskAttribute,
}

var userTokens = map[string]string{
	acl.ActionList:   acl.RoleListUsers,
	acl.ActionShow:   acl.RoleViewUser,
	acl.ActionCreate: acl.RoleCreateUser,
	acl.ActionUpdate: acl.RoleUpdateUser,
	acl.ActionDelete: acl.RoleDeleteUser,
}
