// Package storage описывает контракт хранилища планировщика.
//
// Реализации: repository (PostgreSQL) и memory (в памяти процесса). Сервисы
// работают только с интерфейсами этого пакета; многошаговые изменения баланса
// выполняются внутри InTx, где строка пользователя блокируется через LockUser.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/magabrotheeeer/coin-planner/internal/models"
)

var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate — нарушено ограничение уникальности.
	ErrDuplicate = errors.New("duplicate")
)

// PlanFilter — фильтр списка планов. Пустой фильтр возвращает все планы.
type PlanFilter struct {
	OwnerUID  string
	OwnerRole string
}

// Users — операции с пользователями.
type Users interface {
	CreateUser(ctx context.Context, user *models.User) (string, error)
	GetUser(ctx context.Context, uid string) (*models.User, error)
	// LockUser читает пользователя и блокирует строку до конца транзакции.
	LockUser(ctx context.Context, uid string) (*models.User, error)
	// UpdateUserBalance сохраняет монеты, тариф, прошлый тариф и дату окончания подписки.
	UpdateUserBalance(ctx context.Context, user *models.User) error
	ListActiveUsers(ctx context.Context) ([]*models.User, error)
	ListUsersByTiers(ctx context.Context, tiers []string) ([]*models.User, error)
	// DowngradeExpiredSubscriptions переводит истёкшие платные тарифы на базовый.
	DowngradeExpiredSubscriptions(ctx context.Context, now time.Time, baseTier string) (int64, error)
}

// Plans — операции с планами, задачами и расписанием.
type Plans interface {
	// CreatePlan сохраняет план с задачами и расписанием и проставляет ID.
	CreatePlan(ctx context.Context, plan *models.Plan) (int64, error)
	GetPlan(ctx context.Context, id int64) (*models.Plan, error)
	PlanExists(ctx context.Context, ownerUID *string, name string) (bool, error)
	ListPlans(ctx context.Context, filter PlanFilter) ([]*models.Plan, error)
	ListActivePlansByOwner(ctx context.Context, uid string) ([]*models.Plan, error)
	CountActivePlans(ctx context.Context, uid string, excludeID int64) (int, error)
	// UpdatePlanStatus сохраняет статус, причину приостановки и CheckFrom.
	UpdatePlanStatus(ctx context.Context, plan *models.Plan) error
	// UpdateTask сохраняет поля задачи и полностью заменяет её расписание.
	UpdateTask(ctx context.Context, task *models.Task) error
	// NextReminderAt возвращает ближайший момент напоминания не ранее after.
	NextReminderAt(ctx context.Context, after time.Time) (*time.Time, error)
	// DueReminders возвращает неотправленные напоминания с FireAt в (from, to].
	DueReminders(ctx context.Context, from, to time.Time, limit int) ([]*models.DueReminder, error)
	MarkReminded(ctx context.Context, entryIDs []int64, at time.Time) error
}

// Remarks — операции с отметками.
type Remarks interface {
	// InsertRemark возвращает ErrDuplicate, если отметка (user, task, date) уже есть.
	InsertRemark(ctx context.Context, remark *models.Remark) (int64, error)
	RemarkExists(ctx context.Context, uid string, taskID int64, date string) (bool, error)
	RemarksByPlanAndDate(ctx context.Context, uid string, planID int64, date string) ([]*models.Remark, error)
	RemarksByUser(ctx context.Context, uid string) ([]*models.Remark, error)
	RemarksByUserAndPlan(ctx context.Context, uid string, planID int64) ([]*models.Remark, error)
}

// Rules — правило начисления монет и настройки.
type Rules interface {
	GetCoinRule(ctx context.Context) (*models.CoinRule, error)
	SaveCoinRule(ctx context.Context, rule *models.CoinRule) error
	GetSettings(ctx context.Context) (*models.Settings, error)
	SaveSettings(ctx context.Context, settings *models.Settings) error
}

// Notifications — входящие сообщения пользователей.
type Notifications interface {
	AppendNotifications(ctx context.Context, uid string, messages []string, at time.Time) error
	ListNotifications(ctx context.Context, uid string, unreadOnly bool, limit int) ([]*models.Notification, error)
	// MarkNotificationsRead отмечает прочитанными ids; пустой список — все сообщения.
	MarkNotificationsRead(ctx context.Context, uid string, ids []int64) (int64, error)
	PruneNotifications(ctx context.Context, readBefore time.Time) (int64, error)
}

// Payments — подтверждённые оплаты.
type Payments interface {
	// SavePayment возвращает ErrDuplicate для повторного PaymentID.
	SavePayment(ctx context.Context, payment *models.Payment) (int64, error)
}

// Queries — все операции хранилища. Их выполняет как само хранилище, так и транзакция.
type Queries interface {
	Users
	Plans
	Remarks
	Rules
	Notifications
	Payments
}

// Store — хранилище с поддержкой транзакций.
type Store interface {
	Queries
	// InTx выполняет fn в транзакции. Ошибка fn откатывает все изменения.
	InTx(ctx context.Context, fn func(tx Queries) error) error
	Close() error
}
