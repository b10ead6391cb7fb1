// Package dates parses the heterogeneous birth-date strings returned by the
// registry APIs into partial dates and compares them against cutoff dates.
package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// PartialDate is a normalized parse result. Month and Day default to 1 when
// the source string only carried a year (or a year and month); Full reports
// whether a complete calendar date was recovered.
type PartialDate struct {
	Year  int
	Month int
	Day   int
	Full  bool
}

var (
	reISO      = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	reDMYDash  = regexp.MustCompile(`^(\d{2})-(\d{2})-(\d{4})$`)
	reDMYSlash = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})$`)
	reMonthYr  = regexp.MustCompile(`^(\d{2})[/-](\d{4})$`)
	reYearOnly = regexp.MustCompile(`^(\d{4})$`)
	reEmbedded = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
)

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// Parse recognizes, in order: YYYY-MM-DD, DD-MM-YYYY, DD/MM/YYYY, MM/YYYY or
// MM-YYYY, a bare YYYY, and finally any 19xx/20xx year embedded in free text.
// It returns nil when nothing matches.
func Parse(raw string) *PartialDate {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if m := reISO.FindStringSubmatch(raw); m != nil {
		return &PartialDate{Year: atoi(m[1]), Month: atoi(m[2]), Day: atoi(m[3]), Full: true}
	}
	if m := reDMYDash.FindStringSubmatch(raw); m != nil {
		return &PartialDate{Year: atoi(m[3]), Month: atoi(m[2]), Day: atoi(m[1]), Full: true}
	}
	if m := reDMYSlash.FindStringSubmatch(raw); m != nil {
		return &PartialDate{Year: atoi(m[3]), Month: atoi(m[2]), Day: atoi(m[1]), Full: true}
	}
	if m := reMonthYr.FindStringSubmatch(raw); m != nil {
		return &PartialDate{Year: atoi(m[2]), Month: atoi(m[1]), Day: 1, Full: false}
	}
	if m := reYearOnly.FindStringSubmatch(raw); m != nil {
		return &PartialDate{Year: atoi(m[1]), Month: 1, Day: 1, Full: false}
	}
	if m := reEmbedded.FindStringSubmatch(raw); m != nil {
		return &PartialDate{Year: atoi(m[1]), Month: 1, Day: 1, Full: false}
	}
	return nil
}

// key synthesizes the ordering value. Missing month/day count as 1, so a
// year-only date sorts as January 1 of that year. This approximation is
// deliberate and must match the cutoff comparisons of every export mode.
func (d PartialDate) key() int {
	m, day := d.Month, d.Day
	if m == 0 {
		m = 1
	}
	if day == 0 {
		day = 1
	}
	return d.Year*10000 + m*100 + day
}

// Compare returns -1, 0 or 1 ordering a against b on the synthesized key.
func Compare(a, b PartialDate) int {
	switch {
	case a.key() < b.key():
		return -1
	case a.key() > b.key():
		return 1
	default:
		return 0
	}
}

// AgeAt returns whole years elapsed from dob to at, decrementing by one when
// the at month/day falls before the dob month/day within the year.
func AgeAt(dob, at PartialDate) int {
	age := at.Year - dob.Year
	if at.Month < dob.Month || (at.Month == dob.Month && at.Day < dob.Day) {
		age--
	}
	return age
}

// Today returns the current calendar date as a full PartialDate.
func Today() PartialDate {
	now := time.Now()
	return PartialDate{Year: now.Year(), Month: int(now.Month()), Day: now.Day(), Full: true}
}
