package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/magabrotheeeer/coin-planner/internal/models"
)

// AppendNotifications добавляет сообщения во входящие пользователя одной пачкой.
func (q *Queries) AppendNotifications(ctx context.Context, uid string, messages []string, at time.Time) error {
	const op = "storage.AppendNotifications"
	if len(messages) == 0 {
		return nil
	}

	args := make([]any, 0, len(messages)*3)
	values := ""
	for i, m := range messages {
		if i > 0 {
			values += ", "
		}
		values += "(" + placeholders(i*3+1, 3) + ")"
		args = append(args, uid, m, at)
	}
	query := `INSERT INTO notifications (user_uid, message, created_at) VALUES ` + values
	if _, err := q.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", op, mapErr(err))
	}
	return nil
}

// ListNotifications возвращает последние сообщения пользователя, новые первыми.
func (q *Queries) ListNotifications(ctx context.Context, uid string, unreadOnly bool, limit int) ([]*models.Notification, error) {
	const op = "storage.ListNotifications"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, message, created_at, is_read
			  FROM notifications
			  WHERE user_uid = $1 AND (NOT $2 OR NOT is_read)
			  ORDER BY id DESC
			  LIMIT $3`
	rows, err := q.q.QueryContext(ctx, query, uid, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()
	var result []*models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserUID, &n.Message, &n.CreatedAt, &n.Read); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// MarkNotificationsRead отмечает сообщения прочитанными.
func (q *Queries) MarkNotificationsRead(ctx context.Context, uid string, ids []int64) (int64, error) {
	const op = "storage.MarkNotificationsRead"

	query := `UPDATE notifications SET is_read = TRUE WHERE user_uid = $1 AND NOT is_read`
	args := []any{uid}
	if len(ids) > 0 {
		query += ` AND id IN (` + placeholders(2, len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	res, err := q.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// PruneNotifications удаляет прочитанные сообщения старше readBefore.
func (q *Queries) PruneNotifications(ctx context.Context, readBefore time.Time) (int64, error) {
	const op = "storage.PruneNotifications"

	res, err := q.q.ExecContext(ctx,
		`DELETE FROM notifications WHERE is_read AND created_at < $1`, readBefore)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}
