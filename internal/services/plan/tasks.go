package plan

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/magabrotheeeer/coin-planner/internal/lib/apperr"
	"github.com/magabrotheeeer/coin-planner/internal/lib/calendar"
	"github.com/magabrotheeeer/coin-planner/internal/models"
)

// buildTasks проверяет задачи, нумерует их и разворачивает расписание от created.
// Задача без coins_earned получает defaultCoins.
func (s *Service) buildTasks(inputs []TaskInput, created time.Time, defaultCoins int) ([]models.Task, error) {
	used := make(map[int]struct{}, len(inputs))
	for _, in := range inputs {
		if in.SrNo == 0 {
			continue
		}
		if in.SrNo < 0 {
			return nil, apperr.Validation("sr_no must be positive")
		}
		if _, ok := used[in.SrNo]; ok {
			return nil, apperr.Validation(fmt.Sprintf("duplicate sr_no %d in plan", in.SrNo))
		}
		used[in.SrNo] = struct{}{}
	}

	next := 1
	tasks := make([]models.Task, 0, len(inputs))
	for _, in := range inputs {
		if in.Name == "" {
			return nil, apperr.Validation("task name is required")
		}
		if err := checkOffsets(in.DayOffsets); err != nil {
			return nil, err
		}
		hhmm := in.Time
		if hhmm == "" {
			hhmm = calendar.DefaultTime
		}
		if !calendar.ValidTime(hhmm) {
			return nil, apperr.Validation(fmt.Sprintf("task %q: time must be HH:MM", in.Name))
		}
		coins := defaultCoins
		if in.CoinsEarned != nil {
			if *in.CoinsEarned < 0 {
				return nil, apperr.Validation("coins_earned must not be negative")
			}
			coins = *in.CoinsEarned
		}

		srNo := in.SrNo
		if srNo == 0 {
			for {
				if _, ok := used[next]; !ok {
					break
				}
				next++
			}
			srNo = next
			used[srNo] = struct{}{}
		}

		sched, err := s.schedule(created, in.DayOffsets, hhmm)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, models.Task{
			SrNo:        srNo,
			Name:        in.Name,
			Description: in.Description,
			Link:        in.Link,
			DayOffsets:  slices.Clone(in.DayOffsets),
			Time:        hhmm,
			CoinsEarned: coins,
			Schedule:    sched,
		})
	}
	return tasks, nil
}

// schedule разворачивает смещения в записи расписания с моментом напоминания в зоне created.
func (s *Service) schedule(created time.Time, offsets []int, hhmm string) ([]models.ScheduleEntry, error) {
	const op = "plan.schedule"
	dates, err := calendar.Expand(created, offsets, s.skipDay)
	if err != nil {
		if errors.Is(err, calendar.ErrInvalidOffsets) {
			return nil, apperr.Validation(err.Error())
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	res := make([]models.ScheduleEntry, len(dates))
	for i, d := range dates {
		at, err := calendar.FireAt(d, hhmm, created.Location())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		res[i] = models.ScheduleEntry{Date: d, Time: hhmm, FireAt: at}
	}
	return res, nil
}

func checkOffsets(offsets []int) error {
	if len(offsets) == 0 {
		return apperr.Validation("day_offsets must not be empty")
	}
	seen := make(map[int]struct{}, len(offsets))
	for _, o := range offsets {
		if o < 0 {
			return apperr.Validation(fmt.Sprintf("negative day offset %d", o))
		}
		if o > calendar.MaxOffset {
			return apperr.Validation(fmt.Sprintf("day offset %d exceeds %d", o, calendar.MaxOffset))
		}
		if _, ok := seen[o]; ok {
			return apperr.Validation(fmt.Sprintf("duplicate day offset %d", o))
		}
		seen[o] = struct{}{}
	}
	return nil
}
