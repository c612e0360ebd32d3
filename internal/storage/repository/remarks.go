package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/coin-planner/internal/models"
)

const remarkColumns = `id, user_uid, plan_id, task_id, task_name, to_char(remark_date, 'YYYY-MM-DD'),
			      review, summary, coins_earned, is_paid_past, created_at`

func scanRemarks(rows *sql.Rows) ([]*models.Remark, error) {
	defer func() {
		_ = rows.Close()
	}()
	var result []*models.Remark
	for rows.Next() {
		var r models.Remark
		if err := rows.Scan(&r.ID, &r.UserUID, &r.PlanID, &r.TaskID, &r.TaskName, &r.Date,
			&r.Review, &r.Summary, &r.CoinsEarned, &r.IsPaidForPastRemark, &r.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &r)
	}
	return result, rows.Err()
}

// InsertRemark сохраняет отметку. Повтор (user, task, date) отклоняется ограничением уникальности.
func (q *Queries) InsertRemark(ctx context.Context, remark *models.Remark) (int64, error) {
	const op = "storage.InsertRemark"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO remarks (user_uid, plan_id, task_id, task_name, remark_date, review,
			      summary, coins_earned, is_paid_past, created_at)
			  VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8, $9, $10)
			  RETURNING id`
	if err := q.q.QueryRowContext(ctx, query,
		remark.UserUID, remark.PlanID, remark.TaskID, remark.TaskName, remark.Date, remark.Review,
		remark.Summary, remark.CoinsEarned, remark.IsPaidForPastRemark, remark.CreatedAt,
	).Scan(&remark.ID); err != nil {
		return 0, fmt.Errorf("%s: %w", op, mapErr(err))
	}
	return remark.ID, nil
}

// RemarkExists проверяет наличие отметки задачи за дату.
func (q *Queries) RemarkExists(ctx context.Context, uid string, taskID int64, date string) (bool, error) {
	const op = "storage.RemarkExists"

	query := `SELECT EXISTS (
				  SELECT 1 FROM remarks WHERE user_uid = $1 AND task_id = $2 AND remark_date = $3::date
			  )`
	var exists bool
	if err := q.q.QueryRowContext(ctx, query, uid, taskID, date).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// RemarksByPlanAndDate возвращает отметки пользователя по плану за дату.
func (q *Queries) RemarksByPlanAndDate(ctx context.Context, uid string, planID int64, date string) ([]*models.Remark, error) {
	const op = "storage.RemarksByPlanAndDate"

	query := `SELECT ` + remarkColumns + ` FROM remarks
			  WHERE user_uid = $1 AND plan_id = $2 AND remark_date = $3::date
			  ORDER BY id`
	rows, err := q.q.QueryContext(ctx, query, uid, planID, date)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	res, err := scanRemarks(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// RemarksByUser возвращает все отметки пользователя.
func (q *Queries) RemarksByUser(ctx context.Context, uid string) ([]*models.Remark, error) {
	const op = "storage.RemarksByUser"

	query := `SELECT ` + remarkColumns + ` FROM remarks WHERE user_uid = $1 ORDER BY remark_date, id`
	rows, err := q.q.QueryContext(ctx, query, uid)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	res, err := scanRemarks(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// RemarksByUserAndPlan возвращает отметки пользователя по плану.
func (q *Queries) RemarksByUserAndPlan(ctx context.Context, uid string, planID int64) ([]*models.Remark, error) {
	const op = "storage.RemarksByUserAndPlan"

	query := `SELECT ` + remarkColumns + ` FROM remarks
			  WHERE user_uid = $1 AND plan_id = $2
			  ORDER BY remark_date, id`
	rows, err := q.q.QueryContext(ctx, query, uid, planID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	res, err := scanRemarks(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}
