package models

import (
	"slices"
	"time"
)

// CoinRule — активный набор констант начисления монет. В системе он один.
type CoinRule struct {
	TaskCoins          int       `json:"task_coins"`            // Награда по умолчанию за задачу
	FreeSubsCoins      int       `json:"free_subs_coins"`       // Порог обмена монет на месяц подписки
	AddPastRemarkCoins int       `json:"add_past_remark_coins"` // Плата за отметку задним числом и за перезапуск плана
	StartNewPlanCoins  int       `json:"start_new_plan_coins"`  // Бонус за новый план
	ExtraCoins         int       `json:"extra_coins"`           // Бонус за все отмеченные задачи дня
	UpdatedAt          time.Time `json:"updated_at"`
}

// TierConfig описывает набор тарифов.
type TierConfig struct {
	Base string   `json:"base"`
	Paid []string `json:"paid"`
	Mid  string   `json:"mid"` // Тариф, выдаваемый за монеты
}

// IsPaid сообщает, является ли тариф платным.
func (t TierConfig) IsPaid(tier string) bool {
	return slices.Contains(t.Paid, tier)
}

// Settings — версионируемые настройки: тарифы и лимит активных планов.
type Settings struct {
	Tiers     TierConfig `json:"tiers"`
	PlanLimit int        `json:"plan_limit"`
	Version   int        `json:"version"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// DefaultSettings возвращает настройки по умолчанию.
func DefaultSettings() Settings {
	return Settings{
		Tiers: TierConfig{
			Base: "Regular",
			Paid: []string{"Custom", "Manage"},
			Mid:  "Custom",
		},
		PlanLimit: 1,
	}
}
