package repo

import (
	"context"
	"database/sql"

	"taskdesk/internal/domain"
)

// EventsAfter returns up to limit audit events with id greater than
// afterID, oldest first. The webhook dispatcher pages with this.
func (r Repo) EventsAfter(ctx context.Context, limit int, afterID int64) ([]domain.Event, error) {
	if limit < 1 {
		limit = 1
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,at,actor_id,kind,entity,entity_id,COALESCE(detail,'') FROM events WHERE id>? ORDER BY id LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var actorID sql.NullInt64
		if err := rows.Scan(&e.ID, &e.At, &actorID, &e.Kind, &e.Entity, &e.EntityID, &e.Detail); err != nil {
			return nil, err
		}
		if actorID.Valid {
			e.ActorID = &actorID.Int64
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEventID returns the highest event id, 0 when no events exist.
func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	if err := r.DB.QueryRowContext(ctx, `SELECT MAX(id) FROM events`).Scan(&id); err != nil {
		return 0, err
	}
	return id.Int64, nil
}
