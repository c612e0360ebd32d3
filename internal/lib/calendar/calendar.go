// Package calendar разворачивает смещения задач плана в конкретные календарные даты.
//
// Отсчёт начинается со следующего дня после создания плана. Выходной день
// (по умолчанию воскресенье) в счётчик не входит и никогда не попадает в расписание.
package calendar

import (
	"errors"
	"fmt"
	"time"
)

const (
	// DateLayout — формат даты расписания.
	DateLayout = "2006-01-02"
	// TimeLayout — формат времени расписания.
	TimeLayout = "15:04"
	// DefaultTime — время записи расписания, если у задачи оно не задано.
	DefaultTime = "00:01"
	// DefaultSkipDay — день без задач.
	DefaultSkipDay = time.Sunday
	// MaxOffset — наибольшее допустимое смещение, около десяти лет рабочих дней.
	MaxOffset = 3650
)

// ErrInvalidOffsets возвращается для отрицательных, слишком больших или повторяющихся смещений.
var ErrInvalidOffsets = errors.New("invalid day offsets")

// Expand возвращает дату для каждого смещения из offsets в том же порядке.
// Смещение 0 — первый рабочий день после created.
func Expand(created time.Time, offsets []int, skip time.Weekday) ([]string, error) {
	if len(offsets) == 0 {
		return nil, fmt.Errorf("%w: empty list", ErrInvalidOffsets)
	}
	maxOffset := 0
	seen := make(map[int]struct{}, len(offsets))
	for _, o := range offsets {
		if o < 0 {
			return nil, fmt.Errorf("%w: negative offset %d", ErrInvalidOffsets, o)
		}
		if o > MaxOffset {
			return nil, fmt.Errorf("%w: offset %d exceeds %d", ErrInvalidOffsets, o, MaxOffset)
		}
		if _, ok := seen[o]; ok {
			return nil, fmt.Errorf("%w: duplicate offset %d", ErrInvalidOffsets, o)
		}
		seen[o] = struct{}{}
		if o > maxOffset {
			maxOffset = o
		}
	}

	day := time.Date(created.Year(), created.Month(), created.Day(), 0, 0, 0, 0, time.UTC)
	valid := make([]string, 0, maxOffset+1)
	for len(valid) <= maxOffset {
		day = day.AddDate(0, 0, 1)
		if day.Weekday() == skip {
			continue
		}
		valid = append(valid, day.Format(DateLayout))
	}

	dates := make([]string, len(offsets))
	for i, o := range offsets {
		dates[i] = valid[o]
	}
	return dates, nil
}

// ValidTime проверяет, что строка имеет формат HH:MM.
func ValidTime(hhmm string) bool {
	_, err := time.Parse(TimeLayout, hhmm)
	return err == nil && len(hhmm) == len(TimeLayout)
}

// ValidDate проверяет, что строка имеет формат YYYY-MM-DD.
func ValidDate(date string) bool {
	_, err := time.Parse(DateLayout, date)
	return err == nil
}

// FireAt возвращает момент напоминания для даты и времени записи расписания в зоне loc.
func FireAt(date, hhmm string, loc *time.Location) (time.Time, error) {
	const op = "calendar.FireAt"
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, date+" "+hhmm, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

// AddDays сдвигает дату в формате YYYY-MM-DD на days дней.
func AddDays(date string, days int) (string, error) {
	const op = "calendar.AddDays"
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return t.AddDate(0, 0, days).Format(DateLayout), nil
}
