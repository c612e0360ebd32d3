package memory

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/magabrotheeeer/coin-planner/internal/models"
	"github.com/magabrotheeeer/coin-planner/internal/storage"
)

func ownerKey(uid *string) string {
	if uid == nil {
		return ""
	}
	return *uid
}

func (q *queries) CreatePlan(_ context.Context, plan *models.Plan) (int64, error) {
	for _, p := range q.st.plans {
		if ownerKey(p.OwnerUID) == ownerKey(plan.OwnerUID) && p.Name == plan.Name {
			return 0, storage.ErrDuplicate
		}
	}
	plan.ID = q.st.next()
	for i := range plan.Tasks {
		t := &plan.Tasks[i]
		t.ID = q.st.next()
		t.PlanID = plan.ID
		q.assignEntries(t)
	}
	q.st.plans[plan.ID] = plan.Clone()
	return plan.ID, nil
}

func (q *queries) assignEntries(t *models.Task) {
	for j := range t.Schedule {
		t.Schedule[j].ID = q.st.next()
		t.Schedule[j].TaskID = t.ID
	}
}

func (q *queries) GetPlan(_ context.Context, id int64) (*models.Plan, error) {
	p, ok := q.st.plans[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return p.Clone(), nil
}

func (q *queries) PlanExists(_ context.Context, ownerUID *string, name string) (bool, error) {
	for _, p := range q.st.plans {
		if ownerKey(p.OwnerUID) == ownerKey(ownerUID) && p.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (q *queries) filterPlans(keep func(p *models.Plan) bool) []*models.Plan {
	var res []*models.Plan
	for _, p := range q.st.plans {
		if keep(p) {
			res = append(res, p.Clone())
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

func (q *queries) ListPlans(_ context.Context, filter storage.PlanFilter) ([]*models.Plan, error) {
	return q.filterPlans(func(p *models.Plan) bool {
		if filter.OwnerUID != "" && ownerKey(p.OwnerUID) != filter.OwnerUID {
			return false
		}
		return filter.OwnerRole == "" || p.OwnerRole == filter.OwnerRole
	}), nil
}

func (q *queries) ListActivePlansByOwner(_ context.Context, uid string) ([]*models.Plan, error) {
	return q.filterPlans(func(p *models.Plan) bool {
		return p.IsOwnedBy(uid) && p.Status == models.PlanActive
	}), nil
}

func (q *queries) CountActivePlans(_ context.Context, uid string, excludeID int64) (int, error) {
	n := 0
	for _, p := range q.st.plans {
		if p.ID != excludeID && p.IsOwnedBy(uid) && p.Status == models.PlanActive {
			n++
		}
	}
	return n, nil
}

func (q *queries) UpdatePlanStatus(_ context.Context, plan *models.Plan) error {
	p, ok := q.st.plans[plan.ID]
	if !ok {
		return storage.ErrNotFound
	}
	p.Status = plan.Status
	p.PausedReason = plan.PausedReason
	p.CheckFrom = plan.CheckFrom
	return nil
}

func (q *queries) UpdateTask(_ context.Context, task *models.Task) error {
	for _, p := range q.st.plans {
		for i := range p.Tasks {
			if p.Tasks[i].ID != task.ID {
				continue
			}
			for j := range p.Tasks {
				if j != i && p.Tasks[j].SrNo == task.SrNo {
					return storage.ErrDuplicate
				}
			}
			q.assignEntries(task)
			task.PlanID = p.ID
			cp := &models.Plan{Tasks: []models.Task{*task}}
			p.Tasks[i] = cp.Clone().Tasks[0]
			return nil
		}
	}
	return storage.ErrNotFound
}

// pending перебирает неотправленные напоминания активных планов с владельцем.
func (q *queries) pending(fn func(p *models.Plan, t *models.Task, e *models.ScheduleEntry)) {
	for _, p := range q.st.plans {
		if p.IsTemplate() || p.Status != models.PlanActive {
			continue
		}
		if u, ok := q.st.users[*p.OwnerUID]; !ok || u.IsDeactivated {
			continue
		}
		for i := range p.Tasks {
			t := &p.Tasks[i]
			for j := range t.Schedule {
				if t.Schedule[j].RemindedAt == nil {
					fn(p, t, &t.Schedule[j])
				}
			}
		}
	}
}

func (q *queries) NextReminderAt(_ context.Context, after time.Time) (*time.Time, error) {
	var next *time.Time
	q.pending(func(_ *models.Plan, _ *models.Task, e *models.ScheduleEntry) {
		if e.FireAt.After(after) && (next == nil || e.FireAt.Before(*next)) {
			at := e.FireAt
			next = &at
		}
	})
	return next, nil
}

func (q *queries) DueReminders(_ context.Context, from, to time.Time, limit int) ([]*models.DueReminder, error) {
	var res []*models.DueReminder
	q.pending(func(p *models.Plan, t *models.Task, e *models.ScheduleEntry) {
		if e.FireAt.After(from) && !e.FireAt.After(to) {
			res = append(res, &models.DueReminder{
				EntryID:  e.ID,
				UserUID:  *p.OwnerUID,
				PlanID:   p.ID,
				PlanName: p.Name,
				TaskName: t.Name,
				Date:     e.Date,
				Time:     e.Time,
				FireAt:   e.FireAt,
			})
		}
	})
	sort.Slice(res, func(i, j int) bool {
		if res[i].FireAt.Equal(res[j].FireAt) {
			return res[i].EntryID < res[j].EntryID
		}
		return res[i].FireAt.Before(res[j].FireAt)
	})
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (q *queries) MarkReminded(_ context.Context, entryIDs []int64, at time.Time) error {
	for _, p := range q.st.plans {
		for i := range p.Tasks {
			for j := range p.Tasks[i].Schedule {
				e := &p.Tasks[i].Schedule[j]
				if e.RemindedAt == nil && slices.Contains(entryIDs, e.ID) {
					ts := at
					e.RemindedAt = &ts
				}
			}
		}
	}
	return nil
}
