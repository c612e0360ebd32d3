package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/magabrotheeeer/coin-planner/internal/models"
	"github.com/magabrotheeeer/coin-planner/internal/storage"
)

const planColumns = `id, owner_uid, owner_role, name, status, paused_reason,
			      COALESCE(to_char(check_from, 'YYYY-MM-DD'), ''), source_plan_id, created_at`

func scanPlan(row rowScanner) (*models.Plan, error) {
	var p models.Plan
	var owner sql.NullString
	var source sql.NullInt64
	if err := row.Scan(&p.ID, &owner, &p.OwnerRole, &p.Name, &p.Status, &p.PausedReason,
		&p.CheckFrom, &source, &p.CreatedAt); err != nil {
		return nil, err
	}
	if owner.Valid {
		p.OwnerUID = &owner.String
	}
	if source.Valid {
		p.SourcePlanID = &source.Int64
	}
	return &p, nil
}

func nullDate(date string) any {
	if date == "" {
		return nil
	}
	return date
}

// CreatePlan сохраняет план вместе с задачами и расписанием в одной транзакции.
func (q *Queries) CreatePlan(ctx context.Context, plan *models.Plan) (int64, error) {
	const op = "storage.CreatePlan"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	err := q.atomic(ctx, func(q *Queries) error {
		query := `INSERT INTO plans (owner_uid, owner_role, name, status, paused_reason,
				      check_from, source_plan_id, created_at)
				  VALUES ($1, $2, $3, $4, $5, $6::date, $7, $8)
				  RETURNING id`
		if err := q.q.QueryRowContext(ctx, query,
			plan.OwnerUID, plan.OwnerRole, plan.Name, string(plan.Status), plan.PausedReason,
			nullDate(plan.CheckFrom), plan.SourcePlanID, plan.CreatedAt,
		).Scan(&plan.ID); err != nil {
			return mapErr(err)
		}
		for i := range plan.Tasks {
			task := &plan.Tasks[i]
			task.PlanID = plan.ID
			if err := q.insertTask(ctx, task); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return plan.ID, nil
}

func (q *Queries) insertTask(ctx context.Context, task *models.Task) error {
	offsets, err := json.Marshal(task.DayOffsets)
	if err != nil {
		return err
	}
	query := `INSERT INTO tasks (plan_id, sr_no, name, description, link, day_offsets,
			      task_time, coins_earned)
			  VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8)
			  RETURNING id`
	if err := q.q.QueryRowContext(ctx, query,
		task.PlanID, task.SrNo, task.Name, task.Description, task.Link, string(offsets),
		task.Time, task.CoinsEarned,
	).Scan(&task.ID); err != nil {
		return mapErr(err)
	}
	return q.insertSchedule(ctx, task)
}

func (q *Queries) insertSchedule(ctx context.Context, task *models.Task) error {
	query := `INSERT INTO schedule_entries (task_id, entry_date, entry_time, fire_at)
			  VALUES ($1, $2::date, $3, $4)
			  RETURNING id`
	for i := range task.Schedule {
		e := &task.Schedule[i]
		e.TaskID = task.ID
		if err := q.q.QueryRowContext(ctx, query, e.TaskID, e.Date, e.Time, e.FireAt).Scan(&e.ID); err != nil {
			return mapErr(err)
		}
	}
	return nil
}

// GetPlan возвращает план с задачами и расписанием.
func (q *Queries) GetPlan(ctx context.Context, id int64) (*models.Plan, error) {
	const op = "storage.GetPlan"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1`
	p, err := scanPlan(q.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}
	if err := q.loadTasks(ctx, p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

func (q *Queries) loadTasks(ctx context.Context, p *models.Plan) error {
	query := `SELECT id, plan_id, sr_no, name, description, link, day_offsets, task_time, coins_earned
			  FROM tasks WHERE plan_id = $1 ORDER BY sr_no`
	rows, err := q.q.QueryContext(ctx, query, p.ID)
	if err != nil {
		return err
	}
	p.Tasks = nil
	for rows.Next() {
		var t models.Task
		var offsets []byte
		if err := rows.Scan(&t.ID, &t.PlanID, &t.SrNo, &t.Name, &t.Description, &t.Link,
			&offsets, &t.Time, &t.CoinsEarned); err != nil {
			_ = rows.Close()
			return err
		}
		if err := json.Unmarshal(offsets, &t.DayOffsets); err != nil {
			_ = rows.Close()
			return err
		}
		p.Tasks = append(p.Tasks, t)
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range p.Tasks {
		if err := q.loadSchedule(ctx, &p.Tasks[i]); err != nil {
			return err
		}
	}
	return nil
}

func (q *Queries) loadSchedule(ctx context.Context, t *models.Task) error {
	query := `SELECT id, task_id, to_char(entry_date, 'YYYY-MM-DD'), entry_time, fire_at, reminded_at
			  FROM schedule_entries WHERE task_id = $1 ORDER BY entry_date`
	rows, err := q.q.QueryContext(ctx, query, t.ID)
	if err != nil {
		return err
	}
	defer func() {
		_ = rows.Close()
	}()
	t.Schedule = nil
	for rows.Next() {
		var e models.ScheduleEntry
		var reminded sql.NullTime
		if err := rows.Scan(&e.ID, &e.TaskID, &e.Date, &e.Time, &e.FireAt, &reminded); err != nil {
			return err
		}
		if reminded.Valid {
			e.RemindedAt = &reminded.Time
		}
		t.Schedule = append(t.Schedule, e)
	}
	return rows.Err()
}

func (q *Queries) listPlans(ctx context.Context, query string, args ...any) ([]*models.Plan, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var plans []*models.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		plans = append(plans, p)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, p := range plans {
		if err := q.loadTasks(ctx, p); err != nil {
			return nil, err
		}
	}
	return plans, nil
}

// PlanExists проверяет наличие плана с таким владельцем и названием.
func (q *Queries) PlanExists(ctx context.Context, ownerUID *string, name string) (bool, error) {
	const op = "storage.PlanExists"

	query := `SELECT EXISTS (
				  SELECT 1 FROM plans
				  WHERE COALESCE(owner_uid::text, '') = COALESCE($1::text, '') AND name = $2
			  )`
	var exists bool
	if err := q.q.QueryRowContext(ctx, query, ownerUID, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// ListPlans возвращает планы по владельцу или роли владельца.
func (q *Queries) ListPlans(ctx context.Context, filter storage.PlanFilter) ([]*models.Plan, error) {
	const op = "storage.ListPlans"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + planColumns + ` FROM plans
			  WHERE ($1 = '' OR owner_uid::text = $1)
			    AND ($2 = '' OR owner_role = $2)
			  ORDER BY id`
	plans, err := q.listPlans(ctx, query, filter.OwnerUID, filter.OwnerRole)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return plans, nil
}

// ListActivePlansByOwner возвращает активные планы пользователя.
func (q *Queries) ListActivePlansByOwner(ctx context.Context, uid string) ([]*models.Plan, error) {
	const op = "storage.ListActivePlansByOwner"

	query := `SELECT ` + planColumns + ` FROM plans
			  WHERE owner_uid = $1 AND status = $2
			  ORDER BY id`
	plans, err := q.listPlans(ctx, query, uid, string(models.PlanActive))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return plans, nil
}

// CountActivePlans считает активные планы пользователя, кроме excludeID.
func (q *Queries) CountActivePlans(ctx context.Context, uid string, excludeID int64) (int, error) {
	const op = "storage.CountActivePlans"

	query := `SELECT COUNT(*) FROM plans WHERE owner_uid = $1 AND status = $2 AND id <> $3`
	var n int
	if err := q.q.QueryRowContext(ctx, query, uid, string(models.PlanActive), excludeID).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// UpdatePlanStatus сохраняет статус плана.
func (q *Queries) UpdatePlanStatus(ctx context.Context, plan *models.Plan) error {
	const op = "storage.UpdatePlanStatus"

	query := `UPDATE plans SET status = $1, paused_reason = $2, check_from = $3::date WHERE id = $4`
	res, err := q.q.ExecContext(ctx, query, string(plan.Status), plan.PausedReason, nullDate(plan.CheckFrom), plan.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return nil
}

// UpdateTask сохраняет задачу и заменяет её расписание.
func (q *Queries) UpdateTask(ctx context.Context, task *models.Task) error {
	const op = "storage.UpdateTask"

	err := q.atomic(ctx, func(q *Queries) error {
		offsets, err := json.Marshal(task.DayOffsets)
		if err != nil {
			return err
		}
		query := `UPDATE tasks
				  SET sr_no = $1, name = $2, description = $3, link = $4, day_offsets = $5::jsonb,
				      task_time = $6, coins_earned = $7
				  WHERE id = $8`
		res, err := q.q.ExecContext(ctx, query, task.SrNo, task.Name, task.Description, task.Link,
			string(offsets), task.Time, task.CoinsEarned, task.ID)
		if err != nil {
			return mapErr(err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return storage.ErrNotFound
		}
		if _, err := q.q.ExecContext(ctx, `DELETE FROM schedule_entries WHERE task_id = $1`, task.ID); err != nil {
			return err
		}
		return q.insertSchedule(ctx, task)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

const dueFilter = `se.reminded_at IS NULL
			    AND p.status = 'active' AND p.owner_uid IS NOT NULL AND NOT u.is_deactivated`

// NextReminderAt возвращает ближайший момент неотправленного напоминания после after.
func (q *Queries) NextReminderAt(ctx context.Context, after time.Time) (*time.Time, error) {
	const op = "storage.NextReminderAt"

	query := `SELECT MIN(se.fire_at)
			  FROM schedule_entries se
			  JOIN tasks t ON t.id = se.task_id
			  JOIN plans p ON p.id = t.plan_id
			  JOIN users u ON u.uid = p.owner_uid
			  WHERE se.fire_at > $1 AND ` + dueFilter
	var next sql.NullTime
	if err := q.q.QueryRowContext(ctx, query, after).Scan(&next); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !next.Valid {
		return nil, nil
	}
	return &next.Time, nil
}

// DueReminders возвращает напоминания с моментом срабатывания в (from, to].
func (q *Queries) DueReminders(ctx context.Context, from, to time.Time, limit int) ([]*models.DueReminder, error) {
	const op = "storage.DueReminders"

	query := `SELECT se.id, p.owner_uid, p.id, p.name, t.name,
			      to_char(se.entry_date, 'YYYY-MM-DD'), se.entry_time, se.fire_at
			  FROM schedule_entries se
			  JOIN tasks t ON t.id = se.task_id
			  JOIN plans p ON p.id = t.plan_id
			  JOIN users u ON u.uid = p.owner_uid
			  WHERE se.fire_at > $1 AND se.fire_at <= $2 AND ` + dueFilter + `
			  ORDER BY se.fire_at
			  LIMIT $3`
	rows, err := q.q.QueryContext(ctx, query, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()
	var result []*models.DueReminder
	for rows.Next() {
		var r models.DueReminder
		if err := rows.Scan(&r.EntryID, &r.UserUID, &r.PlanID, &r.PlanName, &r.TaskName,
			&r.Date, &r.Time, &r.FireAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// MarkReminded отмечает напоминания отправленными.
func (q *Queries) MarkReminded(ctx context.Context, entryIDs []int64, at time.Time) error {
	const op = "storage.MarkReminded"
	if len(entryIDs) == 0 {
		return nil
	}

	args := make([]any, 0, len(entryIDs)+1)
	args = append(args, at)
	for _, id := range entryIDs {
		args = append(args, id)
	}
	query := `UPDATE schedule_entries SET reminded_at = $1
			  WHERE reminded_at IS NULL AND id IN (` + placeholders(2, len(entryIDs)) + `)`
	if _, err := q.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
