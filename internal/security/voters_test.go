package security

import (
	"errors"
	"testing"

	"taskdesk/internal/acl"
	"taskdesk/internal/actor"
)

func newActor(id int64, roleAcl acl.Set, grants []actor.Grant, owned []int64) *actor.Actor {
	return actor.New(id, 2, false, roleAcl, grants, owned)
}

func admin() *actor.Actor {
	return actor.New(1, 0, true, nil, nil, nil)
}

func mustGrant(t *testing.T, e Engine, domain acl.Domain, action string, a *actor.Actor, sub Subject, want bool) {
	t.Helper()
	got, err := e.IsGranted(domain, action, a, sub)
	if err != nil {
		t.Fatalf("%s/%s: unexpected error %v", domain, action, err)
	}
	if got != want {
		t.Fatalf("%s/%s: got %v, want %v", domain, action, got, want)
	}
}

func TestAdminOverrideUniversality(t *testing.T) {
	e := NewEngine()
	a := admin()
	for domain, actions := range map[acl.Domain][]string{
		acl.DomainCompany:          {acl.ActionList, acl.ActionShow},
		acl.DomainProject:          {acl.ActionList, acl.ActionShow, acl.ActionCreate, acl.ActionUpdate, acl.ActionDelete},
		acl.DomainTask:             {acl.ActionList, acl.ActionCreate},
		acl.DomainRepeatingTask:    {acl.ActionView, acl.ActionCreate},
		acl.DomainFilter:           {acl.ActionView, acl.ActionUpdate, acl.ActionDelete, acl.ActionUpdateProjectFilter},
		acl.DomainTag:              {acl.ActionShow, acl.ActionUpdate},
		acl.DomainStatus:           {acl.ActionList, acl.ActionShow, acl.ActionCreate, acl.ActionUpdate, acl.ActionDelete},
		acl.DomainCompanyAttribute: {acl.ActionList, acl.ActionDelete},
		acl.DomainTaskAttribute:    {acl.ActionUpdate},
		acl.DomainUser:             {acl.ActionList, acl.ActionCreate},
	} {
		for _, action := range actions {
			mustGrant(t, e, domain, action, a, NoSubject(), true)
		}
	}
}

func TestNoActorDeniesEverywhere(t *testing.T) {
	e := NewEngine()
	mustGrant(t, e, acl.DomainProject, acl.ActionList, nil, NoSubject(), false)
	mustGrant(t, e, acl.DomainTask, acl.ActionList, nil, NoSubject(), false)
	mustGrant(t, e, acl.DomainFilter, acl.ActionView, nil, BySnapshot(Snapshot{Public: true}), false)
}

func TestUnregisteredActionSurfaces(t *testing.T) {
	e := NewEngine()
	_, err := e.IsGranted(acl.DomainTag, acl.ActionDelete, admin(), NoSubject())
	if err == nil {
		t.Fatalf("DELETE is not a tag action; expected error, not a deny")
	}
	var iae acl.InvalidActionError
	if !errors.As(err, &iae) {
		t.Fatalf("expected InvalidActionError, got %T", err)
	}
	// surfaces even without an actor
	if _, err := e.IsGranted(acl.DomainTask, "FROBNICATE", nil, NoSubject()); err == nil {
		t.Fatalf("unregistered action must not become a deny")
	}
}

func TestCompanyVoter(t *testing.T) {
	e := NewEngine()
	lister := newActor(7, acl.NewSet(acl.RoleListCompanies), nil, nil)
	mustGrant(t, e, acl.DomainCompany, acl.ActionList, lister, NoSubject(), true)

	nobody := newActor(7, nil, nil, nil)
	mustGrant(t, e, acl.DomainCompany, acl.ActionList, nobody, NoSubject(), false)
	// own company is visible without the role token
	mustGrant(t, e, acl.DomainCompany, acl.ActionShow, nobody, ByID(2), true)
	mustGrant(t, e, acl.DomainCompany, acl.ActionShow, nobody, ByID(3), false)
	mustGrant(t, e, acl.DomainCompany, acl.ActionShow, nobody, BySnapshot(Snapshot{CompanyID: 2}), true)
}

func TestProjectVoter(t *testing.T) {
	e := NewEngine()
	// scenario A: owns a project, empty role ACL
	owner := newActor(7, nil, nil, []int64{3})
	mustGrant(t, e, acl.DomainProject, acl.ActionList, owner, NoSubject(), true)

	// scenario B: no projects, no grants
	outsider := newActor(7, nil, nil, nil)
	mustGrant(t, e, acl.DomainProject, acl.ActionList, outsider, NoSubject(), false)

	granted := newActor(7, nil, []actor.Grant{{ProjectID: 5, UserID: 7, Acl: acl.NewSet(acl.ProjectViewOwnTasks)}}, nil)
	mustGrant(t, e, acl.DomainProject, acl.ActionList, granted, NoSubject(), true)

	editor := newActor(7, acl.NewSet(acl.RoleUpdateProject), nil, nil)
	mustGrant(t, e, acl.DomainProject, acl.ActionUpdate, editor, ByID(5), true)
	mustGrant(t, e, acl.DomainProject, acl.ActionDelete, editor, ByID(5), false)
}

func TestTaskListVoter(t *testing.T) {
	e := NewEngine()
	viewer := newActor(7, nil, []actor.Grant{
		{ProjectID: 4, UserID: 7, Acl: acl.NewSet(acl.ProjectViewCompanyTasks)},
	}, nil)

	// scoped to the granted project
	mustGrant(t, e, acl.DomainTask, acl.ActionList, viewer, ByOptions(Options{ProjectID: 4}), true)
	// scoped to another project
	mustGrant(t, e, acl.DomainTask, acl.ActionList, viewer, ByOptions(Options{ProjectID: 9}), false)
	// global list: any view grant anywhere opens it
	mustGrant(t, e, acl.DomainTask, acl.ActionList, viewer, NoSubject(), true)

	creator := newActor(7, acl.NewSet(acl.RoleCreateTask), nil, nil)
	mustGrant(t, e, acl.DomainTask, acl.ActionList, creator, NoSubject(), true)

	outsider := newActor(7, nil, nil, nil)
	mustGrant(t, e, acl.DomainTask, acl.ActionList, outsider, NoSubject(), false)
}

func TestTaskCreateVoter(t *testing.T) {
	e := NewEngine()
	global := newActor(7, acl.NewSet(acl.RoleCreateTask), nil, nil)
	mustGrant(t, e, acl.DomainTask, acl.ActionCreate, global, ByOptions(Options{ProjectID: 9}), true)

	scoped := newActor(7, nil, []actor.Grant{{ProjectID: 4, UserID: 7, Acl: acl.NewSet(acl.ProjectCreateTask)}}, nil)
	mustGrant(t, e, acl.DomainTask, acl.ActionCreate, scoped, ByOptions(Options{ProjectID: 4}), true)
	mustGrant(t, e, acl.DomainTask, acl.ActionCreate, scoped, ByOptions(Options{ProjectID: 9}), false)
	mustGrant(t, e, acl.DomainTask, acl.ActionCreate, scoped, NoSubject(), true)
}

func TestRepeatingTaskVoter(t *testing.T) {
	e := NewEngine()
	a := newActor(7, nil, nil, nil)

	allowed := map[int64]struct{}{11: {}, 12: {}}
	mustGrant(t, e, acl.DomainRepeatingTask, acl.ActionView, a, ByOptions(Options{TaskID: 11, AllowedTaskIDs: allowed}), true)
	mustGrant(t, e, acl.DomainRepeatingTask, acl.ActionView, a, ByOptions(Options{TaskID: 99, AllowedTaskIDs: allowed}), false)

	mustGrant(t, e, acl.DomainRepeatingTask, acl.ActionCreate, a,
		ByOptions(Options{UserHasProject: acl.NewSet(acl.ProjectCreateTask)}), true)
	mustGrant(t, e, acl.DomainRepeatingTask, acl.ActionCreate, a,
		ByOptions(Options{UserHasProject: acl.NewSet(acl.ProjectViewOwnTasks)}), false)
	mustGrant(t, e, acl.DomainRepeatingTask, acl.ActionCreate, a, ByOptions(Options{}), false)
}

func TestFilterVoter(t *testing.T) {
	e := NewEngine()
	a := newActor(7, nil, []actor.Grant{{ProjectID: 4, UserID: 7, Acl: acl.NewSet(acl.ProjectViewOwnTasks)}}, nil)

	own := BySnapshot(Snapshot{CreatorID: 7, ProjectID: 4})
	foreignPublic := BySnapshot(Snapshot{CreatorID: 9, Public: true})
	foreignPrivate := BySnapshot(Snapshot{CreatorID: 9})

	mustGrant(t, e, acl.DomainFilter, acl.ActionView, a, own, true)
	mustGrant(t, e, acl.DomainFilter, acl.ActionView, a, foreignPublic, true)
	mustGrant(t, e, acl.DomainFilter, acl.ActionView, a, foreignPrivate, false)

	mustGrant(t, e, acl.DomainFilter, acl.ActionUpdate, a, own, true)
	mustGrant(t, e, acl.DomainFilter, acl.ActionUpdate, a, foreignPublic, false)
	mustGrant(t, e, acl.DomainFilter, acl.ActionDelete, a, foreignPrivate, false)

	// project filter update needs creatorship and any grant on the project
	mustGrant(t, e, acl.DomainFilter, acl.ActionUpdateProjectFilter, a, own, true)
	ungrantedProject := BySnapshot(Snapshot{CreatorID: 7, ProjectID: 9})
	mustGrant(t, e, acl.DomainFilter, acl.ActionUpdateProjectFilter, a, ungrantedProject, false)
}

func TestTagVoter(t *testing.T) {
	e := NewEngine()
	sharer := newActor(7, acl.NewSet(acl.RoleShareTags), nil, nil)
	plain := newActor(7, nil, nil, nil)

	mustGrant(t, e, acl.DomainTag, acl.ActionShow, plain, BySnapshot(Snapshot{CreatorID: 7}), true)
	mustGrant(t, e, acl.DomainTag, acl.ActionShow, plain, BySnapshot(Snapshot{CreatorID: 9, Public: true}), true)
	mustGrant(t, e, acl.DomainTag, acl.ActionShow, plain, BySnapshot(Snapshot{CreatorID: 9}), false)

	mustGrant(t, e, acl.DomainTag, acl.ActionUpdate, plain, BySnapshot(Snapshot{CreatorID: 7}), true)
	mustGrant(t, e, acl.DomainTag, acl.ActionUpdate, plain, BySnapshot(Snapshot{CreatorID: 9, Public: true}), false)
	mustGrant(t, e, acl.DomainTag, acl.ActionUpdate, sharer, BySnapshot(Snapshot{CreatorID: 9, Public: true}), true)
	mustGrant(t, e, acl.DomainTag, acl.ActionUpdate, sharer, BySnapshot(Snapshot{CreatorID: 9}), false)
}

func TestRoleTableVoters(t *testing.T) {
	e := NewEngine()
	a := newActor(7, acl.NewSet(acl.RoleCreateStatus, acl.RoleListUsers, acl.RoleUpdateTaskAttribute), nil, nil)

	mustGrant(t, e, acl.DomainStatus, acl.ActionCreate, a, NoSubject(), true)
	mustGrant(t, e, acl.DomainStatus, acl.ActionDelete, a, NoSubject(), false)
	mustGrant(t, e, acl.DomainUser, acl.ActionList, a, NoSubject(), true)
	mustGrant(t, e, acl.DomainUser, acl.ActionDelete, a, NoSubject(), false)
	mustGrant(t, e, acl.DomainTaskAttribute, acl.ActionUpdate, a, NoSubject(), true)
	mustGrant(t, e, acl.DomainCompanyAttribute, acl.ActionUpdate, a, NoSubject(), false)
}
