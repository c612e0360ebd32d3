// Package month содержит арифметику продления подписки на целое число месяцев.
package month

import "time"

// Extend возвращает новую дату окончания подписки: months месяцев от более поздней
// из дат now и currentEnd. Отсутствующая дата окончания считается истёкшей.
func Extend(now time.Time, currentEnd *time.Time, months int) time.Time {
	from := now
	if currentEnd != nil && currentEnd.After(now) {
		from = *currentEnd
	}
	if months <= 0 {
		return from
	}
	return addMonths(from, months)
}

// addMonths прибавляет месяцы, прижимая день к последнему дню целевого месяца:
// 31 января + 1 месяц = 29 февраля (в високосный год).
func addMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

// Split делит баланс монет на число полных месяцев и остаток.
// При неположительном пороге месяцев нет, баланс возвращается без изменений.
func Split(coins, threshold int) (months, remainder int) {
	if threshold <= 0 || coins < threshold {
		return 0, coins
	}
	return coins / threshold, coins % threshold
}
