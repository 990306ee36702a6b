package app

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const isoDate = "2006-01-02"

type dateUnit int

const (
	unitMinute dateUnit = iota
	unitHour
	unitDay
	unitWeek
	unitMonth
	unitYear
)

// unit words, English then French; plural forms included explicitly
var unitWords = map[string]dateUnit{
	"minute": unitMinute, "minutes": unitMinute, "min": unitMinute, "mins": unitMinute,
	"hour": unitHour, "hours": unitHour, "heure": unitHour, "heures": unitHour,
	"day": unitDay, "days": unitDay, "jour": unitDay, "jours": unitDay,
	"week": unitWeek, "weeks": unitWeek, "semaine": unitWeek, "semaines": unitWeek,
	"month": unitMonth, "months": unitMonth, "mois": unitMonth,
	"year": unitYear, "years": unitYear, "an": unitYear, "ans": unitYear, "année": unitYear, "années": unitYear,
}

// maxMagnitude keeps the subtraction far from time.Duration and calendar
// overflow; no review is ten thousand units old.
const maxMagnitude = 10000

var singularWords = map[string]int{"a": 1, "an": 1, "one": 1, "un": 1, "une": 1}

var qualifierPrefixes = []string{"edited", "modifié", "modifiée", "modifie"}

var (
	enRelative = regexp.MustCompile(`^(\S+)\s+(\S+)\s+ago$`)
	frRelative = regexp.MustCompile(`^il y a\s+(\S+)\s+(\S+)$`)
	spaces     = regexp.MustCompile(`\s+`)
)

// ResolveDate estimates the calendar date a relative phrase such as
// "3 weeks ago" or "edited a month ago" points to, anchored at now.
// ok is false when the phrase is not recognized; callers keep the review
// and leave its date empty.
func ResolveDate(phrase string, now time.Time) (t time.Time, ok bool) {
	p := strings.ToLower(strings.TrimSpace(phrase))
	p = strings.ReplaceAll(p, "\u00a0", " ")
	p = spaces.ReplaceAllString(p, " ")
	for _, q := range qualifierPrefixes {
		if strings.HasPrefix(p, q+" ") {
			p = strings.TrimSpace(strings.TrimPrefix(p, q))
			break
		}
	}

	switch p {
	case "today", "aujourd'hui", "just now", "à l'instant":
		return now, true
	case "yesterday", "hier":
		return now.AddDate(0, 0, -1), true
	}

	m := enRelative.FindStringSubmatch(p)
	if m == nil {
		m = frRelative.FindStringSubmatch(p)
	}
	if m == nil {
		return time.Time{}, false
	}

	n, ok := magnitude(m[1])
	if !ok {
		return time.Time{}, false
	}
	u, ok := unitWords[m[2]]
	if !ok {
		return time.Time{}, false
	}
	t = subtract(now, n, u)
	if t.After(now) {
		return time.Time{}, false
	}
	return t, true
}

func magnitude(s string) (int, bool) {
	if n, ok := singularWords[s]; ok {
		return n, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > maxMagnitude {
		return 0, false
	}
	return n, true
}

func subtract(now time.Time, n int, u dateUnit) time.Time {
	switch u {
	case unitMinute:
		return now.Add(-time.Duration(n) * time.Minute)
	case unitHour:
		return now.Add(-time.Duration(n) * time.Hour)
	case unitDay:
		return now.AddDate(0, 0, -n)
	case unitWeek:
		return now.AddDate(0, 0, -7*n)
	case unitMonth:
		return subtractMonths(now, n)
	default:
		return subtractMonths(now, 12*n)
	}
}

// subtractMonths keeps the day of month, clamped to the length of the target
// month, so Mar 31 minus one month is Feb 28 (or 29) instead of Mar 3.
func subtractMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	target := first.AddDate(0, -n, 0)
	if last := daysIn(target.Year(), target.Month(), t.Location()); d > last {
		d = last
	}
	return target.AddDate(0, 0, d-1)
}

func daysIn(y int, m time.Month, loc *time.Location) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, loc).Day()
}

// formatDate renders the resolved date, or nil when unresolved.
func formatDate(phrase string, now time.Time) *string {
	if strings.TrimSpace(phrase) == "" {
		return nil
	}
	t, ok := ResolveDate(phrase, now)
	if !ok {
		return nil
	}
	s := t.Format(isoDate)
	return &s
}
