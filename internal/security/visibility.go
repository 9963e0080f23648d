package security

import (
	"sort"

	"taskdesk/internal/acl"
	"taskdesk/internal/actor"
)

// Scope partitions the projects an actor may see tasks in. Admins get
// the unrestricted scope; everyone else gets the four partitions the
// query layer turns into listing predicates.
type Scope struct {
	Unrestricted bool

	// ViewAll: every task in these projects.
	ViewAll []int64
	// ViewCompany: tasks whose requester belongs to the actor's company.
	ViewCompany []int64
	// ViewOwnOnly: only tasks the actor created, requested or is
	// assigned to.
	ViewOwnOnly []int64
	// Owned: projects the actor created, always a subset of ViewAll.
	Owned []int64
}

// Empty reports whether the scope opens no project at all.
func (s Scope) Empty() bool {
	return !s.Unrestricted && len(s.ViewAll) == 0 && len(s.ViewCompany) == 0 && len(s.ViewOwnOnly) == 0
}

// ResolveVisibleScope computes the listing scope for an actor. Owned
// projects land in ViewAll. Each grant's project lands in exactly one
// partition; the checks run in a fixed priority order and the first
// match wins:
//
//	VIEW_ALL_TASKS, then VIEW_COMPANY_TASKS, then VIEW_OWN_TASKS.
//
// The order is part of the contract; a grant holding several view
// tokens is still placed once, in its highest partition.
func ResolveVisibleScope(a *actor.Actor) Scope {
	if a.IsAdmin() {
		return Scope{Unrestricted: true}
	}
	var s Scope
	seen := map[int64]struct{}{}
	for _, p := range a.OwnedProjects() {
		s.Owned = append(s.Owned, p)
		s.ViewAll = append(s.ViewAll, p)
		seen[p] = struct{}{}
	}
	for _, p := range a.GrantedProjects() {
		if _, dup := seen[p]; dup {
			continue
		}
		grant := a.GrantFor(p)
		switch {
		case grant.Has(acl.ProjectViewAllTasks):
			s.ViewAll = append(s.ViewAll, p)
		case grant.Has(acl.ProjectViewCompanyTasks):
			s.ViewCompany = append(s.ViewCompany, p)
		case grant.Has(acl.ProjectViewOwnTasks):
			s.ViewOwnOnly = append(s.ViewOwnOnly, p)
		}
	}
	sortIDs(s.ViewAll)
	sortIDs(s.ViewCompany)
	sortIDs(s.ViewOwnOnly)
	sortIDs(s.Owned)
	return s
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
