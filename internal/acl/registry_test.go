package acl

import (
	"errors"
	"testing"
)

func TestCheckAction(t *testing.T) {
	if err := CheckAction(DomainTask, ActionList); err != nil {
		t.Fatalf("LIST should be registered for task: %v", err)
	}
	err := CheckAction(DomainTask, ActionDelete)
	if err == nil {
		t.Fatalf("DELETE is not a task vote action")
	}
	var iae InvalidActionError
	if !errors.As(err, &iae) {
		t.Fatalf("expected InvalidActionError, got %T", err)
	}
	if iae.Domain != DomainTask || iae.Action != ActionDelete {
		t.Fatalf("unexpected error fields: %+v", iae)
	}
}

func TestVoteActionCatalogs(t *testing.T) {
	cases := map[Domain][]string{
		DomainCompany:       {ActionList, ActionShow},
		DomainProject:       {ActionList, ActionShow, ActionCreate, ActionUpdate, ActionDelete},
		DomainRepeatingTask: {ActionView, ActionCreate},
		DomainFilter:        {ActionView, ActionUpdate, ActionDelete, ActionUpdateProjectFilter},
		DomainTag:           {ActionShow, ActionUpdate},
	}
	for domain, actions := range cases {
		for _, a := range actions {
			if !ValidAction(domain, a) {
				t.Errorf("%s should accept %s", domain, a)
			}
		}
	}
	if ValidAction(DomainTag, ActionDelete) {
		t.Errorf("tag must not accept DELETE")
	}
	if ValidAction("unknown", ActionList) {
		t.Errorf("unknown domain must reject everything")
	}
}

func TestTokenCatalogs(t *testing.T) {
	if !ValidRoleToken(RoleShareFilters) {
		t.Fatalf("SHARE_FILTERS is a role token")
	}
	if ValidRoleToken(ProjectViewOwnTasks) {
		t.Fatalf("VIEW_OWN_TASKS is project-scoped, not role-scoped")
	}
	if !ValidProjectToken(ProjectViewCompanyTasks) {
		t.Fatalf("VIEW_COMPANY_TASKS is a project token")
	}
}

func TestSetMembership(t *testing.T) {
	s := NewSet(ProjectViewAllTasks, ProjectCreateTask)
	if !s.Has(ProjectCreateTask) || s.Has(ProjectDeleteTask) {
		t.Fatalf("membership mismatch")
	}
	if !s.HasAny(ProjectDeleteTask, ProjectViewAllTasks) {
		t.Fatalf("HasAny should match VIEW_ALL_TASKS")
	}
	if s.HasAny(ProjectDeleteTask, ProjectResolveTask) {
		t.Fatalf("HasAny matched nothing present")
	}
}
