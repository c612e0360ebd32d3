package models

import "time"

// PlanStatus — состояние плана.
type PlanStatus string

const (
	PlanActive PlanStatus = "active"
	PlanPaused PlanStatus = "paused"
)

// Причины приостановки плана.
const (
	PausedByUser    = "user"
	PausedByOverdue = "overdue"
)

// Plan — набор задач с расписанием. План без владельца — шаблон администратора.
type Plan struct {
	ID           int64      `json:"id"`
	OwnerUID     *string    `json:"owner_uid,omitempty"`
	OwnerRole    string     `json:"owner_role"`
	Name         string     `json:"name"`
	Status       PlanStatus `json:"status"`
	PausedReason string     `json:"paused_reason,omitempty"`
	CheckFrom    string     `json:"check_from,omitempty"` // С этой даты монитор учитывает пропуски
	SourcePlanID *int64     `json:"source_plan_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	Tasks        []Task     `json:"tasks"`
}

// Task — задача плана, повторяющаяся по смещениям дней от даты создания плана.
type Task struct {
	ID          int64           `json:"id"`
	PlanID      int64           `json:"plan_id"`
	SrNo        int             `json:"sr_no"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Link        string          `json:"link,omitempty"`
	DayOffsets  []int           `json:"day_offsets"`
	Time        string          `json:"time"`
	CoinsEarned int             `json:"coins_earned"`
	Schedule    []ScheduleEntry `json:"schedule"`
}

// ScheduleEntry — конкретное вхождение задачи в расписание.
type ScheduleEntry struct {
	ID         int64      `json:"id"`
	TaskID     int64      `json:"task_id"`
	Date       string     `json:"date"` // YYYY-MM-DD
	Time       string     `json:"time"` // HH:MM
	FireAt     time.Time  `json:"fire_at"`
	RemindedAt *time.Time `json:"reminded_at,omitempty"`
}

// IsOwnedBy сообщает, принадлежит ли план пользователю uid.
func (p *Plan) IsOwnedBy(uid string) bool {
	return p.OwnerUID != nil && *p.OwnerUID == uid
}

// IsTemplate сообщает, является ли план шаблоном администратора.
func (p *Plan) IsTemplate() bool {
	return p.OwnerUID == nil
}

// Task возвращает задачу по ID или nil.
func (p *Plan) Task(id int64) *Task {
	for i := range p.Tasks {
		if p.Tasks[i].ID == id {
			return &p.Tasks[i]
		}
	}
	return nil
}

// TasksOn возвращает задачи, запланированные на дату.
func (p *Plan) TasksOn(date string) []*Task {
	var res []*Task
	for i := range p.Tasks {
		if p.Tasks[i].EntryOn(date) != nil {
			res = append(res, &p.Tasks[i])
		}
	}
	return res
}

// EntryOn возвращает запись расписания задачи на дату или nil.
func (t *Task) EntryOn(date string) *ScheduleEntry {
	for i := range t.Schedule {
		if t.Schedule[i].Date == date {
			return &t.Schedule[i]
		}
	}
	return nil
}

// Clone возвращает глубокую копию плана.
func (p *Plan) Clone() *Plan {
	c := *p
	if p.OwnerUID != nil {
		owner := *p.OwnerUID
		c.OwnerUID = &owner
	}
	if p.SourcePlanID != nil {
		src := *p.SourcePlanID
		c.SourcePlanID = &src
	}
	c.Tasks = make([]Task, len(p.Tasks))
	for i, t := range p.Tasks {
		t.DayOffsets = append([]int(nil), t.DayOffsets...)
		sched := make([]ScheduleEntry, len(t.Schedule))
		for j, e := range t.Schedule {
			if e.RemindedAt != nil {
				at := *e.RemindedAt
				e.RemindedAt = &at
			}
			sched[j] = e
		}
		t.Schedule = sched
		c.Tasks[i] = t
	}
	return &c
}

// DueReminder — запись расписания, по которой пора отправить напоминание.
type DueReminder struct {
	EntryID  int64     `json:"entry_id"`
	UserUID  string    `json:"user_uid"`
	PlanID   int64     `json:"plan_id"`
	PlanName string    `json:"plan_name"`
	TaskName string    `json:"task_name"`
	Date     string    `json:"date"`
	Time     string    `json:"time"`
	FireAt   time.Time `json:"fire_at"`
}
