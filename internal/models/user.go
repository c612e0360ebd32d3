// Package models содержит доменные структуры планировщика: пользователей, планы,
// задачи с расписанием, отметки, правила начисления монет и уведомления.
package models

import "time"

// Роли пользователей.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User представляет пользователя системы вместе с его балансом монет и тарифом.
type User struct {
	UID                 string     `json:"uid"`
	Email               string     `json:"email"`
	Username            string     `json:"username"`
	Role                string     `json:"role"`
	Tier                string     `json:"tier"`
	PreviousTier        string     `json:"previous_tier,omitempty"` // Тариф до последнего повышения
	Coins               int        `json:"coins"`
	SubscriptionEndDate *time.Time `json:"subscription_end_date,omitempty"`
	IsDeactivated       bool       `json:"is_deactivated"`
	CreatedAt           time.Time  `json:"created_at"`
}

// Notification — запись во входящих сообщениях пользователя.
type Notification struct {
	ID        int64     `json:"id"`
	UserUID   string    `json:"user_uid"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	Read      bool      `json:"read"`
}

// NotificationMessage — сообщение для внешней доставки (email), публикуемое в очередь.
type NotificationMessage struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

// Payment — подтверждённая оплата платного тарифа.
type Payment struct {
	ID        int64     `json:"id"`
	UserUID   string    `json:"user_uid"`
	OrderID   string    `json:"order_id"`
	PaymentID string    `json:"payment_id"`
	Tier      string    `json:"tier"`
	Months    int       `json:"months"`
	CreatedAt time.Time `json:"created_at"`
}

// Caller — аутентифицированный пользователь, от имени которого выполняется операция.
type Caller struct {
	UID      string
	Username string
	Role     string
}

// IsAdmin сообщает, является ли вызывающий администратором.
func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}
