// Package actor carries the resolved identity of a request's caller.
// An Actor is rebuilt from the authenticated principal on every request
// and treated as immutable for the request's duration; the authorization
// and filter layers only ever read it.
package actor

import (
	"sort"

	"taskdesk/internal/acl"
)

// Grant is one per-(user,project) ACL override.
type Grant struct {
	ProjectID int64
	UserID    int64
	Acl       acl.Set
}

// Actor is the authenticated caller. A nil *Actor means no principal was
// resolved; every voter denies in that case.
type Actor struct {
	id        int64
	companyID int64
	admin     bool
	roleAcl   acl.Set
	grants    map[int64]acl.Set
	owned     map[int64]struct{}
}

// New assembles an Actor from facts the caller fetched up front. The
// grant and owned-project slices are copied; later mutation of the inputs
// does not leak into the Actor.
func New(id, companyID int64, admin bool, roleAcl acl.Set, grants []Grant, ownedProjects []int64) *Actor {
	a := &Actor{
		id:        id,
		companyID: companyID,
		admin:     admin,
		roleAcl:   acl.Set{},
		grants:    map[int64]acl.Set{},
		owned:     map[int64]struct{}{},
	}
	for t := range roleAcl {
		a.roleAcl[t] = struct{}{}
	}
	for _, g := range grants {
		set := acl.Set{}
		for t := range g.Acl {
			set[t] = struct{}{}
		}
		a.grants[g.ProjectID] = set
	}
	for _, p := range ownedProjects {
		a.owned[p] = struct{}{}
	}
	return a
}

func (a *Actor) ID() int64 {
	if a == nil {
		return 0
	}
	return a.id
}

// CompanyID is zero when the caller has no company.
func (a *Actor) CompanyID() int64 {
	if a == nil {
		return 0
	}
	return a.companyID
}

// IsAdmin reports the administrative override. Voters check it first and
// it wins unconditionally.
func (a *Actor) IsAdmin() bool {
	return a != nil && a.admin
}

// HasRole reports whether the actor's role-level ACL contains token.
func (a *Actor) HasRole(token string) bool {
	return a != nil && a.roleAcl.Has(token)
}

// HasInProject reports whether the actor's grant for projectID contains token.
func (a *Actor) HasInProject(projectID int64, token string) bool {
	if a == nil {
		return false
	}
	return a.grants[projectID].Has(token)
}

// HasAnyInProject reports whether the grant for projectID contains any
// of the tokens.
func (a *Actor) HasAnyInProject(projectID int64, tokens ...string) bool {
	if a == nil {
		return false
	}
	return a.grants[projectID].HasAny(tokens...)
}

// HasInAnyProject reports whether any grant contains any of the tokens.
func (a *Actor) HasInAnyProject(tokens ...string) bool {
	if a == nil {
		return false
	}
	for _, set := range a.grants {
		if set.HasAny(tokens...) {
			return true
		}
	}
	return false
}

// HasGrant reports whether any grant exists for projectID, regardless of
// its tokens.
func (a *Actor) HasGrant(projectID int64) bool {
	if a == nil {
		return false
	}
	_, ok := a.grants[projectID]
	return ok
}

// HasAnyGrant reports whether the actor holds at least one project grant.
func (a *Actor) HasAnyGrant() bool {
	return a != nil && len(a.grants) > 0
}

// GrantFor returns the token set granted for projectID; nil when none.
func (a *Actor) GrantFor(projectID int64) acl.Set {
	if a == nil {
		return nil
	}
	return a.grants[projectID]
}

// GrantedProjects returns the project ids with a grant, ascending.
func (a *Actor) GrantedProjects() []int64 {
	if a == nil {
		return nil
	}
	out := make([]int64, 0, len(a.grants))
	for p := range a.grants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// OwnsProject reports whether the actor created projectID.
func (a *Actor) OwnsProject(projectID int64) bool {
	if a == nil {
		return false
	}
	_, ok := a.owned[projectID]
	return ok
}

// OwnsAnyProject reports whether the actor created at least one project.
func (a *Actor) OwnsAnyProject() bool {
	return a != nil && len(a.owned) > 0
}

// OwnedProjects returns the owned project ids, ascending.
func (a *Actor) OwnedProjects() []int64 {
	if a == nil {
		return nil
	}
	out := make([]int64, 0, len(a.owned))
	for p := range a.owned {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
