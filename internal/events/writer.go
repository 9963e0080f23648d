package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Writer appends audit events inside the caller's transaction.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type Detail map[string]any

func (w Writer) Append(ctx context.Context, tx *sql.Tx, kind, entity string, entityID int64, actorID int64, detail Detail) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	at := w.Now().UTC().Format(time.RFC3339)
	if detail == nil {
		detail = Detail{}
	}
	data, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("marshal event detail: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(at,actor_id,kind,entity,entity_id,detail) VALUES (?,?,?,?,?,?)`,
		at, nullableID(actorID), kind, entity, entityID, string(data))
	return err
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
