package repo

import (
	"context"
	"database/sql"
	"sort"
	"strconv"
	"strings"
	"time"

	"taskdesk/internal/actor"
	"taskdesk/internal/domain"
	"taskdesk/internal/filter"
	"taskdesk/internal/security"
)

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO tasks(title,description,project_id,status_id,creator_id,requester_id,assigned_id,company_id,important,created_at,started_at,deadline_at,closed_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.Title, t.Description, t.ProjectID, nullableID(t.StatusID), t.CreatorID,
		nullableID(t.RequesterID), nullableID(t.AssignedID), nullableID(t.CompanyID),
		boolInt(t.Important), t.CreatedAt, nullableTime(t.StartedAt), nullableTime(t.DeadlineAt), nullableTime(t.ClosedAt))
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := r.replaceTaskTags(ctx, tx, id, t.TagIDs); err != nil {
		return 0, err
	}
	if err := r.replaceTaskFollowers(ctx, tx, id, t.FollowerIDs); err != nil {
		return 0, err
	}
	return id, nil
}

func (r Repo) replaceTaskTags(ctx context.Context, tx *sql.Tx, taskID int64, tagIDs []int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_tags WHERE task_id=?`, taskID); err != nil {
		return err
	}
	for _, tagID := range tagIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO task_tags(task_id,tag_id) VALUES (?,?)`, taskID, tagID); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) replaceTaskFollowers(ctx context.Context, tx *sql.Tx, taskID int64, userIDs []int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_followers WHERE task_id=?`, taskID); err != nil {
		return err
	}
	for _, userID := range userIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO task_followers(task_id,user_id) VALUES (?,?)`, taskID, userID); err != nil {
			return err
		}
	}
	return nil
}

const taskColumns = `t.id,t.title,COALESCE(t.description,''),t.project_id,t.status_id,t.creator_id,t.requester_id,t.assigned_id,t.company_id,t.important,t.created_at,t.started_at,t.deadline_at,t.closed_at`

func scanTask(scan func(...any) error) (domain.Task, error) {
	var t domain.Task
	var statusID, requesterID, assignedID, companyID sql.NullInt64
	var important int
	var started, deadline, closed sql.NullString
	err := scan(&t.ID, &t.Title, &t.Description, &t.ProjectID, &statusID, &t.CreatorID,
		&requesterID, &assignedID, &companyID, &important, &t.CreatedAt, &started, &deadline, &closed)
	if err != nil {
		return t, err
	}
	if statusID.Valid {
		t.StatusID = &statusID.Int64
	}
	if requesterID.Valid {
		t.RequesterID = &requesterID.Int64
	}
	if assignedID.Valid {
		t.AssignedID = &assignedID.Int64
	}
	if companyID.Valid {
		t.CompanyID = &companyID.Int64
	}
	t.Important = important != 0
	if started.Valid {
		t.StartedAt = &started.String
	}
	if deadline.Valid {
		t.DeadlineAt = &deadline.String
	}
	if closed.Valid {
		t.ClosedAt = &closed.String
	}
	return t, nil
}

func (r Repo) GetTask(ctx context.Context, id int64) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks t WHERE t.id=?`, id)
	t, err := scanTask(row.Scan)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.TagIDs, err = r.taskRelationIDs(ctx, `SELECT tag_id FROM task_tags WHERE task_id=? ORDER BY tag_id`, id)
	if err != nil {
		return t, err
	}
	t.FollowerIDs, err = r.taskRelationIDs(ctx, `SELECT user_id FROM task_followers WHERE task_id=? ORDER BY user_id`, id)
	return t, err
}

func (r Repo) taskRelationIDs(ctx context.Context, query string, taskID int64) ([]int64, error) {
	rows, err := r.DB.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		res = append(res, id)
	}
	return res, rows.Err()
}

func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET title=?,description=?,status_id=?,requester_id=?,assigned_id=?,company_id=?,important=?,started_at=?,deadline_at=?,closed_at=? WHERE id=?`,
		t.Title, t.Description, nullableID(t.StatusID), nullableID(t.RequesterID), nullableID(t.AssignedID),
		nullableID(t.CompanyID), boolInt(t.Important), nullableTime(t.StartedAt), nullableTime(t.DeadlineAt), nullableTime(t.ClosedAt), t.ID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	if err := r.replaceTaskTags(ctx, tx, t.ID, t.TagIDs); err != nil {
		return err
	}
	return r.replaceTaskFollowers(ctx, tx, t.ID, t.FollowerIDs)
}

// taskWhere accumulates WHERE conditions and their arguments.
type taskWhere struct {
	conds []string
	args  []any
}

func (w *taskWhere) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *taskWhere) clause() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// Canonical filter columns that live directly on the tasks row.
var directColumns = map[string]string{
	"project.id":       "t.project_id",
	"creator.id":       "t.creator_id",
	"requester.id":     "t.requester_id",
	"assigned.id":      "t.assigned_id",
	"company.id":       "t.company_id",
	"status.id":        "t.status_id",
	"task.important":   "t.important",
	"task.created_at":  "t.created_at",
	"task.started_at":  "t.started_at",
	"task.deadline_at": "t.deadline_at",
	"task.closed_at":   "t.closed_at",
}

func idArgs(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func (w *taskWhere) addIn(column string, ids []int64) {
	switch column {
	case "tag.id":
		w.add(`EXISTS (SELECT 1 FROM task_tags tt WHERE tt.task_id=t.id AND tt.tag_id IN (`+placeholders(len(ids))+`))`, idArgs(ids)...)
	case "follower.id":
		w.add(`EXISTS (SELECT 1 FROM task_followers tf WHERE tf.task_id=t.id AND tf.user_id IN (`+placeholders(len(ids))+`))`, idArgs(ids)...)
	default:
		w.add(directColumns[column]+` IN (`+placeholders(len(ids))+`)`, idArgs(ids)...)
	}
}

func (w *taskWhere) addIsNull(column string) {
	switch column {
	case "tag.id":
		w.add(`NOT EXISTS (SELECT 1 FROM task_tags tt WHERE tt.task_id=t.id)`)
	case "follower.id":
		w.add(`NOT EXISTS (SELECT 1 FROM task_followers tf WHERE tf.task_id=t.id)`)
	default:
		w.add(directColumns[column] + ` IS NULL`)
	}
}

func (w *taskWhere) addNegatedIn(n filter.NegatedIn) {
	switch n.NotField {
	case "tag.id":
		w.add(`NOT EXISTS (SELECT 1 FROM task_tags tt WHERE tt.task_id=t.id AND tt.tag_id IN (`+placeholders(len(n.Values))+`))`, idArgs(n.Values)...)
	case "follower.id":
		w.add(`NOT EXISTS (SELECT 1 FROM task_followers tf WHERE tf.task_id=t.id AND tf.user_id IN (`+placeholders(len(n.Values))+`))`, idArgs(n.Values)...)
	default:
		col := directColumns[n.NotField]
		w.add(`(`+col+` IS NULL OR `+col+` NOT IN (`+placeholders(len(n.Values))+`))`, idArgs(n.Values)...)
	}
}

func (w *taskWhere) addEqual(column string, value int64) {
	switch column {
	case "project.is_active":
		w.add(`t.project_id IN (SELECT id FROM projects WHERE is_active=?)`, value)
	default:
		w.add(directColumns[column]+`=?`, value)
	}
}

func (w *taskWhere) addDateRange(column string, rng filter.DateRange) {
	col := directColumns[column]
	if rng.From != nil {
		w.add(col+`>=?`, rng.From.UTC().Format(time.RFC3339))
	}
	if rng.To != nil {
		w.add(col+`<=?`, rng.To.UTC().Format(time.RFC3339))
	}
}

func (w *taskWhere) addCustom(attributeID int64, cond string, args ...any) {
	prefixed := append([]any{attributeID}, args...)
	w.add(`EXISTS (SELECT 1 FROM task_attribute_values tav WHERE tav.task_id=t.id AND tav.attribute_id=? AND `+cond+`)`, prefixed...)
}

// applyFilter translates every compiled bucket into SQL conditions.
// Map buckets are walked in sorted key order so the generated query
// text is deterministic.
func (w *taskWhere) applyFilter(c *filter.Compiled) {
	for _, column := range sortedKeys(c.Equal) {
		w.addEqual(column, c.Equal[column])
	}
	for _, column := range sortedKeys(c.In) {
		w.addIn(column, c.In[column])
	}
	for _, column := range c.IsNull {
		w.addIsNull(column)
	}
	for _, column := range sortedKeys(c.DateRange) {
		w.addDateRange(column, c.DateRange[column])
	}
	for _, n := range c.NegatedIn {
		w.addNegatedIn(n)
	}
	for _, id := range sortedKeys(c.CustomEqual) {
		w.addCustom(id, `tav.value=?`, strconv.Itoa(c.CustomEqual[id]))
	}
	for _, id := range sortedKeys(c.CustomIn) {
		values := c.CustomIn[id]
		args := make([]any, len(values))
		for i, v := range values {
			args[i] = v
		}
		w.addCustom(id, `tav.value IN (`+placeholders(len(values))+`)`, args...)
	}
	for _, id := range sortedKeys(c.CustomDate) {
		rng := c.CustomDate[id]
		if rng.From != nil && rng.To != nil {
			w.addCustom(id, `tav.value>=? AND tav.value<=?`, rng.From.UTC().Format(time.RFC3339), rng.To.UTC().Format(time.RFC3339))
		} else if rng.From != nil {
			w.addCustom(id, `tav.value>=?`, rng.From.UTC().Format(time.RFC3339))
		} else if rng.To != nil {
			w.addCustom(id, `tav.value<=?`, rng.To.UTC().Format(time.RFC3339))
		}
	}
	if c.Search != "" {
		like := "%" + c.Search + "%"
		w.add(`(t.title LIKE ? OR t.description LIKE ?)`, like, like)
	}
}

// applyScope restricts results to what the visibility partition allows.
// Partitions combine with OR; an empty scope matches nothing.
func (w *taskWhere) applyScope(scope security.Scope, a *actor.Actor) {
	if scope.Unrestricted {
		return
	}
	if scope.Empty() {
		w.add(`1=0`)
		return
	}
	var parts []string
	var args []any
	if len(scope.ViewAll) > 0 {
		parts = append(parts, `t.project_id IN (`+placeholders(len(scope.ViewAll))+`)`)
		args = append(args, idArgs(scope.ViewAll)...)
	}
	if len(scope.ViewCompany) > 0 {
		parts = append(parts, `(t.project_id IN (`+placeholders(len(scope.ViewCompany))+`) AND t.company_id=?)`)
		args = append(args, idArgs(scope.ViewCompany)...)
		args = append(args, a.CompanyID())
	}
	if len(scope.ViewOwnOnly) > 0 {
		parts = append(parts,
			`(t.project_id IN (`+placeholders(len(scope.ViewOwnOnly))+`) AND (t.creator_id=? OR t.requester_id=? OR t.assigned_id=? OR EXISTS (SELECT 1 FROM task_followers tf WHERE tf.task_id=t.id AND tf.user_id=?)))`)
		args = append(args, idArgs(scope.ViewOwnOnly)...)
		args = append(args, a.ID(), a.ID(), a.ID(), a.ID())
	}
	w.add(`(`+strings.Join(parts, " OR ")+`)`, args...)
}

// ListTasks runs the compiled filter and visibility scope against the
// tasks table and returns one page plus the unpaged match count.
func (r Repo) ListTasks(ctx context.Context, c *filter.Compiled, scope security.Scope, a *actor.Actor, limit, page int) ([]domain.Task, int, error) {
	if limit < 1 {
		limit = 1
	}
	if page < 1 {
		page = 1
	}
	var w taskWhere
	if c != nil {
		w.applyFilter(c)
	}
	w.applyScope(scope, a)

	var count int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks t`+w.clause(), w.args...).Scan(&count); err != nil {
		return nil, 0, err
	}

	args := append(append([]any{}, w.args...), limit, (page-1)*limit)
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks t`+w.clause()+` ORDER BY t.id DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, t)
	}
	return res, count, rows.Err()
}

func sortedKeys[K int64 | string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
