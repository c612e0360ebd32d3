package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/coin-planner/internal/models"
)

// SavePayment сохраняет подтверждённую оплату. Повторный payment_id отклоняется.
func (q *Queries) SavePayment(ctx context.Context, payment *models.Payment) (int64, error) {
	const op = "storage.SavePayment"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO payments (user_uid, order_id, payment_id, tier, months, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING id`
	if err := q.q.QueryRowContext(ctx, query,
		payment.UserUID, payment.OrderID, payment.PaymentID, payment.Tier, payment.Months, payment.CreatedAt,
	).Scan(&payment.ID); err != nil {
		return 0, fmt.Errorf("%s: %w", op, mapErr(err))
	}
	return payment.ID, nil
}
