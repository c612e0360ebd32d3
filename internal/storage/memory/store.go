package memory

import (
	"context"
	"time"

	"github.com/magabrotheeeer/coin-planner/internal/models"
	"github.com/magabrotheeeer/coin-planner/internal/storage"
)

func (s *Store) CreateUser(ctx context.Context, user *models.User) (string, error) {
	var res string
	err := s.run(ctx, func(q *queries) error {
		var err error
		res, err = q.CreateUser(ctx, user)
		return err
	})
	return res, err
}

func (s *Store) GetUser(ctx context.Context, uid string) (*models.User, error) {
	var res *models.User
	err := s.view(ctx, func(q *queries) error {
		var err error
		res, err = q.GetUser(ctx, uid)
		return err
	})
	return res, err
}

func (s *Store) LockUser(ctx context.Context, uid string) (*models.User, error) {
	var res *models.User
	err := s.view(ctx, func(q *queries) error {
		var err error
		res, err = q.LockUser(ctx, uid)
		return err
	})
	return res, err
}

func (s *Store) UpdateUserBalance(ctx context.Context, user *models.User) error {
	return s.run(ctx, func(q *queries) error {
		return q.UpdateUserBalance(ctx, user)
	})
}

func (s *Store) ListActiveUsers(ctx context.Context) ([]*models.User, error) {
	var res []*models.User
	err := s.view(ctx, func(q *queries) error {
		var err error
		res, err = q.ListActiveUsers(ctx)
		return err
	})
	return res, err
}

func (s *Store) ListUsersByTiers(ctx context.Context, tiers []string) ([]*models.User, error) {
	var res []*models.User
	err := s.view(ctx, func(q *queries) error {
		var err error
		res, err = q.ListUsersByTiers(ctx, tiers)
		return err
	})
	return res, err
}

func (s *Store) DowngradeExpiredSubscriptions(ctx context.Context, now time.Time, baseTier string) (int64, error) {
	var res int64
	err := s.run(ctx, func(q *queries) error {
		var err error
		res, err = q.DowngradeExpiredSubscriptions(ctx, now, baseTier)
		return err
	})
	return res, err
}

func (s *Store) CreatePlan(ctx context.Context, plan *models.Plan) (int64, error) {
	var res int64
	err := s.run(ctx, func(q *queries) error {
		var err error
		res, err = q.CreatePlan(ctx, plan)
		return err
	})
	return res, err
}

func (s *Store) GetPlan(ctx context.Context, id int64) (*models.Plan, error) {
	var res *models.Plan
	err := s.view(ctx, func(q *queries) error {
		var err error
		res, err = q.GetPlan(ctx, id)
		return err
	})
	return res, err
}

func (s *Store) PlanExists(ctx context.Context, ownerUID *string, name string) (bool, error) {
	var res bool
	err := s.view(ctx, func(q *queries) error {
		var err error
		res, err = q.PlanExists(ctx, ownerUID, name)
		return err
	})
	return res, err
}

func (s *Store) ListPlans(ctx context.Context, filter storage.PlanFilter) ([]*models.Plan, error) {
	var res []*models.Plan
	err := s.view(ctx, func(q *queries) error {
		var err error
		res, err = q.ListPlans(ctx, filter)
		return err
	})
	return res, err
}

func (s *Store) ListActivePlansByOwner(ctx context.Context, uid string) ([]*models.Plan, error) {
	var res []*models.Plan
	err := s.view(ctx, func(q *queries) error {
		var err error
		res, err = q.ListActivePlansByOwner(ctx, uid)
		return err
	})
	return res, err
}

func (s *Store) CountActivePlans(ctx context.Context, uid string, excludeID int64) (int, error) {
	var res int
	err := s.view(ctx, func(q *queries) error {
		var err error
		res, err = q.CountActivePlans(ctx, uid, excludeID)
		return err
	})
	return res, err
}

func (s *Store) UpdatePlanStatus(ctx context.Context, plan *models.Plan) error {
	return s.run(ctx, func(q *queries) error {
		return q.UpdatePlanStatus(ctx, plan)
	})
}

func (s *Store) UpdateTask(ctx context.Context, task *models.Task) error {
	return s.run(ctx, func(q *queries) error {
		return q.UpdateTask(ctx, task)
	})
}

func (s *Store) NextReminderAt(ctx context.Context, after time.Time) (*time.Time, error) {
	var res *time.Time
	err := s.view(ctx, func(q *queries) error {
		var err error
		res, err = q.NextReminderAt(ctx, after)
		return err
	})
	return res, err
}

func (s *Store) DueReminders(ctx context.Context, from, to time.Time, limit int) ([]*models.DueReminder, error) {
	var res []*models.DueReminder
	err := s.view(ctx, func(q *queries) error {
		var err error
		res, err = q.DueReminders(ctx, from, to, limit)
		return err
	})
	return res, err
}

func (s *Store) MarkReminded(ctx context.Context, entryIDs []int64, at time.Time) error {
	return s.run(ctx, func(q *queries) error {
		return q.MarkReminded(ctx, entryIDs, at)
	})
}

func (s *Store) InsertRemark(ctx context.Context, remark *models.Remark) (int64, error) {
	var res int64
	err := s.run(ctx, func(q *queries) error {
		var err error
		res, err = q.InsertRemark(ctx, remark)
		return err
	})
	return res, err
}

func (s *Store) RemarkExists(ctx context.Context, uid string, taskID int64, date string) (bool, error) {
	var res bool
	err := s.view(ctx, func(q *queries) error {
		var err error
		res, err = q.RemarkExists(ctx, uid, taskID, date)
		return err
	})
	return res, err
}

func (s *Store) RemarksByPlanAndDate(ctx context.Context, uid string, planID int64, date string) ([]*models.Remark, error) {
	var res []*models.Remark
	err := s.view(ctx, func(q *queries) error {
		var err error
		res, err = q.RemarksByPlanAndDate(ctx, uid, planID, date)
		return err
	})
	return res, err
}

func (s *Store) RemarksByUser(ctx context.Context, uid string) ([]*models.Remark, error) {
	var res []*models.Remark
	err := s.view(ctx, func(q *queries) error {
		var err error
		res, err = q.RemarksByUser(ctx, uid)
		return err
	})
	return res, err
}

func (s *Store) RemarksByUserAndPlan(ctx context.Context, uid string, planID int64) ([]*models.Remark, error) {
	var res []*models.Remark
	err := s.view(ctx, func(q *queries) error {
		var err error
		res, err = q.RemarksByUserAndPlan(ctx, uid, planID)
		return err
	})
	return res, err
}

func (s *Store) GetCoinRule(ctx context.Context) (*models.CoinRule, error) {
	var res *models.CoinRule
	err := s.view(ctx, func(q *queries) error {
		var err error
		res, err = q.GetCoinRule(ctx)
		return err
	})
	return res, err
}

func (s *Store) SaveCoinRule(ctx context.Context, rule *models.CoinRule) error {
	return s.run(ctx, func(q *queries) error {
		return q.SaveCoinRule(ctx, rule)
	})
}

func (s *Store) GetSettings(ctx context.Context) (*models.Settings, error) {
	var res *models.Settings
	err := s.view(ctx, func(q *queries) error {
		var err error
		res, err = q.GetSettings(ctx)
		return err
	})
	return res, err
}

func (s *Store) SaveSettings(ctx context.Context, settings *models.Settings) error {
	return s.run(ctx, func(q *queries) error {
		return q.SaveSettings(ctx, settings)
	})
}

func (s *Store) AppendNotifications(ctx context.Context, uid string, messages []string, at time.Time) error {
	return s.run(ctx, func(q *queries) error {
		return q.AppendNotifications(ctx, uid, messages, at)
	})
}

func (s *Store) ListNotifications(ctx context.Context, uid string, unreadOnly bool, limit int) ([]*models.Notification, error) {
	var res []*models.Notification
	err := s.view(ctx, func(q *queries) error {
		var err error
		res, err = q.ListNotifications(ctx, uid, unreadOnly, limit)
		return err
	})
	return res, err
}

func (s *Store) MarkNotificationsRead(ctx context.Context, uid string, ids []int64) (int64, error) {
	var res int64
	err := s.run(ctx, func(q *queries) error {
		var err error
		res, err = q.MarkNotificationsRead(ctx, uid, ids)
		return err
	})
	return res, err
}

func (s *Store) PruneNotifications(ctx context.Context, readBefore time.Time) (int64, error) {
	var res int64
	err := s.run(ctx, func(q *queries) error {
		var err error
		res, err = q.PruneNotifications(ctx, readBefore)
		return err
	})
	return res, err
}

func (s *Store) SavePayment(ctx context.Context, payment *models.Payment) (int64, error) {
	var res int64
	err := s.run(ctx, func(q *queries) error {
		var err error
		res, err = q.SavePayment(ctx, payment)
		return err
	})
	return res, err
}
