package memory

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/magabrotheeeer/coin-planner/internal/models"
	"github.com/magabrotheeeer/coin-planner/internal/storage"
)

func (q *queries) InsertRemark(_ context.Context, remark *models.Remark) (int64, error) {
	for _, r := range q.st.remarks {
		if r.UserUID == remark.UserUID && r.TaskID == remark.TaskID && r.Date == remark.Date {
			return 0, storage.ErrDuplicate
		}
	}
	remark.ID = q.st.next()
	cp := *remark
	q.st.remarks = append(q.st.remarks, &cp)
	return remark.ID, nil
}

func (q *queries) RemarkExists(_ context.Context, uid string, taskID int64, date string) (bool, error) {
	for _, r := range q.st.remarks {
		if r.UserUID == uid && r.TaskID == taskID && r.Date == date {
			return true, nil
		}
	}
	return false, nil
}

func (q *queries) filterRemarks(keep func(r *models.Remark) bool) []*models.Remark {
	var res []*models.Remark
	for _, r := range q.st.remarks {
		if keep(r) {
			cp := *r
			res = append(res, &cp)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].Date < res[j].Date })
	return res
}

func (q *queries) RemarksByPlanAndDate(_ context.Context, uid string, planID int64, date string) ([]*models.Remark, error) {
	return q.filterRemarks(func(r *models.Remark) bool {
		return r.UserUID == uid && r.PlanID == planID && r.Date == date
	}), nil
}

func (q *queries) RemarksByUser(_ context.Context, uid string) ([]*models.Remark, error) {
	return q.filterRemarks(func(r *models.Remark) bool { return r.UserUID == uid }), nil
}

func (q *queries) RemarksByUserAndPlan(_ context.Context, uid string, planID int64) ([]*models.Remark, error) {
	return q.filterRemarks(func(r *models.Remark) bool {
		return r.UserUID == uid && r.PlanID == planID
	}), nil
}

func (q *queries) GetCoinRule(_ context.Context) (*models.CoinRule, error) {
	if q.st.rule == nil {
		return nil, storage.ErrNotFound
	}
	r := *q.st.rule
	return &r, nil
}

func (q *queries) SaveCoinRule(_ context.Context, rule *models.CoinRule) error {
	r := *rule
	q.st.rule = &r
	return nil
}

func (q *queries) GetSettings(_ context.Context) (*models.Settings, error) {
	if q.st.settings == nil {
		return nil, storage.ErrNotFound
	}
	return copySettings(q.st.settings), nil
}

func (q *queries) SaveSettings(_ context.Context, settings *models.Settings) error {
	q.st.settings = copySettings(settings)
	return nil
}

func (q *queries) AppendNotifications(_ context.Context, uid string, messages []string, at time.Time) error {
	for _, m := range messages {
		q.st.notifications = append(q.st.notifications, &models.Notification{
			ID:        q.st.next(),
			UserUID:   uid,
			Message:   m,
			CreatedAt: at,
		})
	}
	return nil
}

func (q *queries) ListNotifications(_ context.Context, uid string, unreadOnly bool, limit int) ([]*models.Notification, error) {
	var res []*models.Notification
	for i := len(q.st.notifications) - 1; i >= 0; i-- {
		n := q.st.notifications[i]
		if n.UserUID != uid || (unreadOnly && n.Read) {
			continue
		}
		cp := *n
		res = append(res, &cp)
		if limit > 0 && len(res) == limit {
			break
		}
	}
	return res, nil
}

func (q *queries) MarkNotificationsRead(_ context.Context, uid string, ids []int64) (int64, error) {
	var n int64
	for _, item := range q.st.notifications {
		if item.UserUID != uid || item.Read {
			continue
		}
		if len(ids) > 0 && !slices.Contains(ids, item.ID) {
			continue
		}
		item.Read = true
		n++
	}
	return n, nil
}

func (q *queries) PruneNotifications(_ context.Context, readBefore time.Time) (int64, error) {
	kept := q.st.notifications[:0]
	var n int64
	for _, item := range q.st.notifications {
		if item.Read && item.CreatedAt.Before(readBefore) {
			n++
			continue
		}
		kept = append(kept, item)
	}
	q.st.notifications = kept
	return n, nil
}

func (q *queries) SavePayment(_ context.Context, payment *models.Payment) (int64, error) {
	for _, p := range q.st.payments {
		if p.PaymentID == payment.PaymentID {
			return 0, storage.ErrDuplicate
		}
	}
	payment.ID = q.st.next()
	cp := *payment
	q.st.payments = append(q.st.payments, &cp)
	return payment.ID, nil
}
