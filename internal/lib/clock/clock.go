// Package clock предоставляет источник текущего времени с фиксированным смещением от UTC.
// Все "сегодня" в системе вычисляются через него, поэтому в тестах его легко подменить.
package clock

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Clock — источник текущего времени.
type Clock interface {
	Now() time.Time
}

// Real возвращает системное время в зоне Loc.
type Real struct {
	Loc *time.Location
}

// New создаёт Real с зоной loc (UTC, если loc == nil).
func New(loc *time.Location) Real {
	if loc == nil {
		loc = time.UTC
	}
	return Real{Loc: loc}
}

// Now возвращает текущее время.
func (r Real) Now() time.Time {
	return time.Now().In(r.Loc)
}

// Fixed всегда возвращает одно и то же время. Используется в тестах.
type Fixed struct {
	T time.Time
}

// Now возвращает зафиксированное время.
func (f *Fixed) Now() time.Time {
	return f.T
}

// Advance сдвигает зафиксированное время на d.
func (f *Fixed) Advance(d time.Duration) {
	f.T = f.T.Add(d)
}

// Today возвращает текущую дату в формате YYYY-MM-DD.
func Today(c Clock) string {
	return c.Now().Format(dateLayout)
}

// ParseOffset разбирает смещение вида "+03:00" / "-05:30" / "Z" в фиксированную зону.
func ParseOffset(offset string) (*time.Location, error) {
	const op = "clock.ParseOffset"
	if offset == "" || offset == "Z" || offset == "UTC" {
		return time.UTC, nil
	}
	t, err := time.Parse("-07:00", offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	_, secs := t.Zone()
	return time.FixedZone(offset, secs), nil
}
