// Package payment применяет подтверждённые внешним шлюзом оплаты платных тарифов.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/coin-planner/internal/lib/apperr"
	"github.com/magabrotheeeer/coin-planner/internal/lib/calendar"
	"github.com/magabrotheeeer/coin-planner/internal/lib/clock"
	"github.com/magabrotheeeer/coin-planner/internal/lib/month"
	"github.com/magabrotheeeer/coin-planner/internal/lib/sl"
	"github.com/magabrotheeeer/coin-planner/internal/models"
	"github.com/magabrotheeeer/coin-planner/internal/storage"
)

// Verifier подтверждает, что оплата прошла.
type Verifier interface {
	Verify(orderID, paymentID, signature string) bool
}

// SettingsProvider возвращает активные настройки.
type SettingsProvider interface {
	Get(ctx context.Context) (*models.Settings, error)
}

// Notifier доставляет сообщение пользователю во внешний канал.
type Notifier interface {
	Notify(ctx context.Context, user *models.User, message string)
}

// PurchaseRequest — оплата тарифа на несколько месяцев.
type PurchaseRequest struct {
	Tier      string `json:"tier" validate:"required"`
	Months    int    `json:"months" validate:"required,min=1,max=36"`
	OrderID   string `json:"order_id" validate:"required"`
	PaymentID string `json:"payment_id" validate:"required"`
	Signature string `json:"signature" validate:"required,hexadecimal"`
}

// Service применяет оплаты.
type Service struct {
	store    storage.Store
	verifier Verifier
	settings SettingsProvider
	notifier Notifier
	clock    clock.Clock
	log      *slog.Logger
}

// New создаёт сервис оплат. notifier может быть nil.
func New(store storage.Store, verifier Verifier, settings SettingsProvider, notifier Notifier,
	clk clock.Clock, log *slog.Logger) *Service {
	return &Service{
		store:    store,
		verifier: verifier,
		settings: settings,
		notifier: notifier,
		clock:    clk,
		log:      log,
	}
}

// Purchase проверяет оплату и переводит пользователя на оплаченный тариф,
// продлевая подписку от более поздней из дат: сейчас или текущее окончание.
func (s *Service) Purchase(ctx context.Context, uid string, req PurchaseRequest) (*models.User, error) {
	const op = "payment.Purchase"
	log := s.log.With(sl.Op(op), sl.User(uid), slog.String("order_id", req.OrderID))

	if req.Months < 1 {
		return nil, apperr.Validation("months must be positive")
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !settings.Tiers.IsPaid(req.Tier) {
		return nil, apperr.Validation(fmt.Sprintf("tier %q is not a paid tier", req.Tier))
	}
	if !s.verifier.Verify(req.OrderID, req.PaymentID, req.Signature) {
		log.Warn("payment signature mismatch")
		return nil, apperr.ErrPaymentNotVerified
	}

	now := s.clock.Now()
	var user *models.User
	var message string
	err = s.store.InTx(ctx, func(tx storage.Queries) error {
		u, err := tx.LockUser(ctx, uid)
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		if _, err := tx.SavePayment(ctx, &models.Payment{
			UserUID:   uid,
			OrderID:   req.OrderID,
			PaymentID: req.PaymentID,
			Tier:      req.Tier,
			Months:    req.Months,
			CreatedAt: now,
		}); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return apperr.ErrDuplicatePayment
			}
			return err
		}

		if u.Tier != req.Tier {
			u.PreviousTier = u.Tier
			u.Tier = req.Tier
		}
		end := month.Extend(now, u.SubscriptionEndDate, req.Months)
		u.SubscriptionEndDate = &end
		if err := tx.UpdateUserBalance(ctx, u); err != nil {
			return err
		}
		message = fmt.Sprintf("Payment received: %s subscription is active until %s", u.Tier, end.Format(calendar.DateLayout))
		user = u
		return tx.AppendNotifications(ctx, uid, []string{message}, now)
	})
	if err != nil {
		var e *apperr.Error
		if errors.As(err, &e) {
			return nil, err
		}
		log.Error("failed to apply payment", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, user, message)
	}
	log.Info("payment applied", slog.String("tier", user.Tier), slog.Int("months", req.Months))
	return user, nil
}
