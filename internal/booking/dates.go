package booking

import (
	"strconv"
	"strings"
	"time"
)

// resolveDate turns a raw date slot into a calendar day. Recognized forms are
// the relative markers oggi/domani/dopodomani and absolute YYYY-MM-DD dates.
// Anything else falls back to tomorrow with assumed=true so the caller can
// tell the user which day was picked and let them correct it.
func resolveDate(raw string, today time.Time) (day time.Time, assumed bool, present bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return time.Time{}, false, false
	}
	base := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())

	switch raw {
	case "oggi":
		return base, false, true
	case "domani":
		return base.AddDate(0, 0, 1), false, true
	case "dopodomani":
		return base.AddDate(0, 0, 2), false, true
	}

	if parsed, err := time.ParseInLocation("2006-01-02", raw, today.Location()); err == nil {
		return parsed, false, true
	}
	return base.AddDate(0, 0, 1), true, true
}

// resolveTime parses HH, HH:MM and an optional leading alle/at qualifier.
// A bare hour implies :00. The hour is returned unvalidated so the business
// hours check can report the attempted value.
func resolveTime(raw string) (hour, minute int, ok bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	for _, prefix := range []string{"alle ", "at ", "ore "} {
		raw = strings.TrimPrefix(raw, prefix)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, 0, false
	}

	hh, mm := raw, ""
	if i := strings.IndexByte(raw, ':'); i >= 0 {
		hh, mm = raw[:i], raw[i+1:]
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 {
		return 0, 0, false
	}
	if mm == "" {
		return h, 0, true
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}
