package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/magabrotheeeer/coin-planner/internal/models"
)

// GetCoinRule возвращает активное правило начисления монет.
func (q *Queries) GetCoinRule(ctx context.Context) (*models.CoinRule, error) {
	const op = "storage.GetCoinRule"

	query := `SELECT task_coins, free_subs_coins, add_past_remark_coins, start_new_plan_coins,
			      extra_coins, updated_at
			  FROM coin_rules WHERE id = 1`
	var r models.CoinRule
	if err := q.q.QueryRowContext(ctx, query).Scan(&r.TaskCoins, &r.FreeSubsCoins,
		&r.AddPastRemarkCoins, &r.StartNewPlanCoins, &r.ExtraCoins, &r.UpdatedAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}
	return &r, nil
}

// SaveCoinRule создаёт или обновляет единственное правило.
func (q *Queries) SaveCoinRule(ctx context.Context, rule *models.CoinRule) error {
	const op = "storage.SaveCoinRule"

	query := `INSERT INTO coin_rules (id, task_coins, free_subs_coins, add_past_remark_coins,
			      start_new_plan_coins, extra_coins, updated_at)
			  VALUES (1, $1, $2, $3, $4, $5, $6)
			  ON CONFLICT (id) DO UPDATE SET
			      task_coins = EXCLUDED.task_coins,
			      free_subs_coins = EXCLUDED.free_subs_coins,
			      add_past_remark_coins = EXCLUDED.add_past_remark_coins,
			      start_new_plan_coins = EXCLUDED.start_new_plan_coins,
			      extra_coins = EXCLUDED.extra_coins,
			      updated_at = EXCLUDED.updated_at`
	if _, err := q.q.ExecContext(ctx, query, rule.TaskCoins, rule.FreeSubsCoins,
		rule.AddPastRemarkCoins, rule.StartNewPlanCoins, rule.ExtraCoins, rule.UpdatedAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetSettings возвращает настройки тарифов и лимита планов.
func (q *Queries) GetSettings(ctx context.Context) (*models.Settings, error) {
	const op = "storage.GetSettings"

	query := `SELECT base_tier, paid_tiers, mid_tier, plan_limit, version, updated_at
			  FROM settings WHERE id = 1`
	var s models.Settings
	var paid []byte
	if err := q.q.QueryRowContext(ctx, query).Scan(&s.Tiers.Base, &paid, &s.Tiers.Mid,
		&s.PlanLimit, &s.Version, &s.UpdatedAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}
	if err := json.Unmarshal(paid, &s.Tiers.Paid); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &s, nil
}

// SaveSettings сохраняет настройки.
func (q *Queries) SaveSettings(ctx context.Context, settings *models.Settings) error {
	const op = "storage.SaveSettings"

	paid, err := json.Marshal(settings.Tiers.Paid)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	query := `INSERT INTO settings (id, base_tier, paid_tiers, mid_tier, plan_limit, version, updated_at)
			  VALUES (1, $1, $2::jsonb, $3, $4, $5, $6)
			  ON CONFLICT (id) DO UPDATE SET
			      base_tier = EXCLUDED.base_tier,
			      paid_tiers = EXCLUDED.paid_tiers,
			      mid_tier = EXCLUDED.mid_tier,
			      plan_limit = EXCLUDED.plan_limit,
			      version = EXCLUDED.version,
			      updated_at = EXCLUDED.updated_at`
	if _, err := q.q.ExecContext(ctx, query, settings.Tiers.Base, string(paid), settings.Tiers.Mid,
		settings.PlanLimit, settings.Version, settings.UpdatedAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
