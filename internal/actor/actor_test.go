package actor

import (
	"testing"

	"taskdesk/internal/acl"
)

func TestNilActorAnswersNothing(t *testing.T) {
	var a *Actor
	if a.IsAdmin() || a.HasRole(acl.RoleCreateTask) || a.HasInProject(1, acl.ProjectCreateTask) {
		t.Fatalf("nil actor must hold nothing")
	}
	if a.OwnsAnyProject() || a.HasAnyGrant() {
		t.Fatalf("nil actor owns nothing")
	}
	if a.ID() != 0 || a.CompanyID() != 0 {
		t.Fatalf("nil actor has zero identity")
	}
}

func TestActorIsolatedFromInputs(t *testing.T) {
	roles := acl.NewSet(acl.RoleCreateTask)
	grants := []Grant{{ProjectID: 3, UserID: 7, Acl: acl.NewSet(acl.ProjectViewOwnTasks)}}
	a := New(7, 2, false, roles, grants, []int64{3})

	// mutate the inputs after construction
	roles["SNEAKED"] = struct{}{}
	grants[0].Acl["SNEAKED"] = struct{}{}

	if a.HasRole("SNEAKED") || a.HasInProject(3, "SNEAKED") {
		t.Fatalf("actor must copy its inputs")
	}
}

func TestMembershipHelpers(t *testing.T) {
	a := New(7, 2, false, acl.NewSet(acl.RoleShareFilters), []Grant{
		{ProjectID: 3, UserID: 7, Acl: acl.NewSet(acl.ProjectViewCompanyTasks)},
		{ProjectID: 9, UserID: 7, Acl: acl.NewSet(acl.ProjectCreateTask, acl.ProjectViewAllTasks)},
	}, []int64{5})

	if !a.HasRole(acl.RoleShareFilters) || a.HasRole(acl.RoleShareTags) {
		t.Fatalf("role membership wrong")
	}
	if !a.HasAnyInProject(9, acl.ProjectViewOwnTasks, acl.ProjectCreateTask) {
		t.Fatalf("HasAnyInProject should match CREATE_TASK in project 9")
	}
	if !a.HasInAnyProject(acl.ProjectViewAllTasks) {
		t.Fatalf("HasInAnyProject should find VIEW_ALL_TASKS")
	}
	if a.HasInAnyProject(acl.ProjectDeleteTask) {
		t.Fatalf("DELETE_TASK granted nowhere")
	}
	if !a.HasGrant(3) || a.HasGrant(5) {
		t.Fatalf("grant presence wrong; ownership is not a grant")
	}
	if !a.OwnsProject(5) || a.OwnsProject(3) {
		t.Fatalf("ownership wrong")
	}
	if got := a.GrantedProjects(); len(got) != 2 || got[0] != 3 || got[1] != 9 {
		t.Fatalf("granted projects not ascending: %v", got)
	}
}
