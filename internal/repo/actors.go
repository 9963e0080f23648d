package repo

import (
	"context"

	"taskdesk/internal/acl"
	"taskdesk/internal/actor"
)

// LoadActor assembles the immutable per-request actor for a user:
// role ACL set, per-project grants and owned project ids, all fetched
// up front so authorization never touches the database mid-vote.
func (r Repo) LoadActor(ctx context.Context, userID int64) (*actor.Actor, error) {
	u, err := r.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	var (
		admin   bool
		roleAcl acl.Set
	)
	if u.RoleID != nil {
		role, err := r.GetRole(ctx, *u.RoleID)
		if err != nil && err != ErrNotFound {
			return nil, err
		}
		if err == nil {
			admin = role.Admin
			roleAcl = acl.NewSet(role.Acl...)
		}
	}
	grants, err := r.GrantsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	actorGrants := make([]actor.Grant, 0, len(grants))
	for _, g := range grants {
		actorGrants = append(actorGrants, actor.Grant{
			ProjectID: g.ProjectID,
			UserID:    g.UserID,
			Acl:       acl.NewSet(g.Acl...),
		})
	}
	owned, err := r.OwnedProjects(ctx, userID)
	if err != nil {
		return nil, err
	}
	var companyID int64
	if u.CompanyID != nil {
		companyID = *u.CompanyID
	}
	return actor.New(u.ID, companyID, admin, roleAcl, actorGrants, owned), nil
}
