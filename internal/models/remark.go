package models

import "time"

// Remark — отметка пользователя о выполнении задачи за конкретную дату.
// Ключ уникальности — (UserUID, TaskID, Date); TaskName хранится только для отображения.
type Remark struct {
	ID                  int64     `json:"id"`
	UserUID             string    `json:"user_uid"`
	PlanID              int64     `json:"plan_id"`
	TaskID              int64     `json:"task_id"`
	TaskName            string    `json:"task_name"`
	Date                string    `json:"date"`
	Review              int       `json:"review"`
	Summary             string    `json:"summary,omitempty"`
	CoinsEarned         int       `json:"coins_earned"`
	IsPaidForPastRemark bool      `json:"is_paid_for_past_remark"`
	CreatedAt           time.Time `json:"created_at"`
}
