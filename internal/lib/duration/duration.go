// Package duration парсит срок действия тарифного пакета, заданный
// свободной строкой, например "1 year", "6 months" или "30 days".
package duration

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var leadingNumber = regexp.MustCompile(`^\s*(\d+)`)

// AddTo возвращает from плюс срок, описанный строкой raw.
// Поддерживаются единицы year, month и day (по вхождению подстроки,
// с учётом регистра). Нераспознанная строка или отсутствующее число
// трактуются как "1 year" — намеренно щадящий разбор, а не ошибка.
func AddTo(from time.Time, raw string) time.Time {
	n := 1
	if m := leadingNumber.FindStringSubmatch(raw); m != nil {
		if parsed, err := strconv.Atoi(m[1]); err == nil {
			n = parsed
		}
	} else {
		return from.AddDate(1, 0, 0)
	}

	switch {
	case strings.Contains(raw, "year"):
		return from.AddDate(n, 0, 0)
	case strings.Contains(raw, "month"):
		return from.AddDate(0, n, 0)
	case strings.Contains(raw, "day"):
		return from.AddDate(0, 0, n)
	default:
		return from.AddDate(1, 0, 0)
	}
}
