package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/coin-planner/internal/models"
)

const userColumns = `uid, email, username, role, tier, previous_tier, coins,
			      subscription_end_date, is_deactivated, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var subscriptionEnd sql.NullTime
	if err := row.Scan(&u.UID, &u.Email, &u.Username, &u.Role, &u.Tier, &u.PreviousTier,
		&u.Coins, &subscriptionEnd, &u.IsDeactivated, &u.CreatedAt); err != nil {
		return nil, err
	}
	if subscriptionEnd.Valid {
		u.SubscriptionEndDate = &subscriptionEnd.Time
	}
	return &u, nil
}

func scanUsers(rows *sql.Rows) ([]*models.User, error) {
	defer func() {
		_ = rows.Close()
	}()
	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

// CreateUser сохраняет нового пользователя и возвращает его UID.
func (q *Queries) CreateUser(ctx context.Context, user *models.User) (string, error) {
	const op = "storage.CreateUser"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if user.UID == "" {
		user.UID = uuid.NewString()
	}
	query := `INSERT INTO users (uid, email, username, role, tier, coins, subscription_end_date)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING created_at`
	if err := q.q.QueryRowContext(ctx, query,
		user.UID, user.Email, user.Username, user.Role, user.Tier, user.Coins, user.SubscriptionEndDate,
	).Scan(&user.CreatedAt); err != nil {
		return "", fmt.Errorf("%s: %w", op, mapErr(err))
	}
	return user.UID, nil
}

// GetUser возвращает пользователя по UID.
func (q *Queries) GetUser(ctx context.Context, uid string) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE uid = $1`
	u, err := scanUser(q.q.QueryRowContext(ctx, query, uid))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}
	return u, nil
}

// LockUser возвращает пользователя и блокирует его строку до конца транзакции.
func (q *Queries) LockUser(ctx context.Context, uid string) (*models.User, error) {
	const op = "storage.LockUser"

	query := `SELECT ` + userColumns + ` FROM users WHERE uid = $1 FOR UPDATE`
	u, err := scanUser(q.q.QueryRowContext(ctx, query, uid))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}
	return u, nil
}

// UpdateUserBalance сохраняет баланс монет и состояние подписки пользователя.
func (q *Queries) UpdateUserBalance(ctx context.Context, user *models.User) error {
	const op = "storage.UpdateUserBalance"

	query := `UPDATE users
			  SET coins = $1, tier = $2, previous_tier = $3, subscription_end_date = $4
			  WHERE uid = $5`
	res, err := q.q.ExecContext(ctx, query,
		user.Coins, user.Tier, user.PreviousTier, user.SubscriptionEndDate, user.UID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapErr(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", op, mapErr(sql.ErrNoRows))
	}
	return nil
}

// ListActiveUsers возвращает всех неотключённых пользователей.
func (q *Queries) ListActiveUsers(ctx context.Context) ([]*models.User, error) {
	const op = "storage.ListActiveUsers"

	query := `SELECT ` + userColumns + ` FROM users WHERE NOT is_deactivated ORDER BY created_at`
	rows, err := q.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	users, err := scanUsers(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

// ListUsersByTiers возвращает неотключённых пользователей с одним из тарифов.
func (q *Queries) ListUsersByTiers(ctx context.Context, tiers []string) ([]*models.User, error) {
	const op = "storage.ListUsersByTiers"
	if len(tiers) == 0 {
		return nil, nil
	}

	args := make([]any, len(tiers))
	for i, t := range tiers {
		args[i] = t
	}
	query := `SELECT ` + userColumns + ` FROM users
			  WHERE NOT is_deactivated AND tier IN (` + placeholders(1, len(tiers)) + `)
			  ORDER BY created_at`
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	users, err := scanUsers(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

// DowngradeExpiredSubscriptions возвращает пользователей с истёкшей подпиской на базовый тариф.
func (q *Queries) DowngradeExpiredSubscriptions(ctx context.Context, now time.Time, baseTier string) (int64, error) {
	const op = "storage.DowngradeExpiredSubscriptions"

	query := `UPDATE users
			  SET tier = $1, subscription_end_date = NULL
			  WHERE subscription_end_date <= $2 AND tier <> $1`
	res, err := q.q.ExecContext(ctx, query, baseTier, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}
