// Package dates validates user-supplied ISO-8601 dates and rewrites them into
// the canonical form stored with every expense.
//
// Canonical form is YYYY-MM-DDTHH:MM:SS[.ffffff]±HH:MM. Stored dates are
// compared as strings, so every date that reaches storage must go through
// Normalize first.
package dates

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDate is returned by Normalize for input that Validate rejects.
var ErrInvalidDate = errors.New("invalid date")

// UTCOffset is the offset written for UTC and offset-less timestamps.
const UTCOffset = "+00:00"

var isoPattern = regexp.MustCompile(
	`^(\d{4})-(\d{2})-(\d{2})` +
		`(?:[T ](\d{2}):(\d{2})(?::(\d{2})(?:[.,](\d{1,9}))?)?` +
		`(Z|[+-]\d{2}:?\d{2})?)?$`)

type parts struct {
	year, month, day     int
	hour, minute, second int
	fraction             string
	offset               string
}

// Validate reports whether input is a date-only or full ISO-8601 timestamp
// with valid calendar and clock values.
func Validate(input string) bool {
	_, ok := parse(input)
	return ok
}

// Normalize returns input in canonical form. A date-only value becomes
// midnight UTC; Z and offset-less timestamps get +00:00; explicit offsets are
// kept as written, reformatted to ±HH:MM.
func Normalize(input string) (string, error) {
	p, ok := parse(input)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, input)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%04d-%02d-%02dT%02d:%02d:%02d", p.year, p.month, p.day, p.hour, p.minute, p.second)
	if micros := microseconds(p.fraction); micros != "" {
		b.WriteByte('.')
		b.WriteString(micros)
	}
	b.WriteString(p.offset)
	return b.String(), nil
}

func parse(input string) (parts, bool) {
	m := isoPattern.FindStringSubmatch(input)
	if m == nil {
		return parts{}, false
	}

	var p parts
	p.year, _ = strconv.Atoi(m[1])
	p.month, _ = strconv.Atoi(m[2])
	p.day, _ = strconv.Atoi(m[3])
	if p.month < 1 || p.month > 12 || p.day < 1 || p.day > daysIn(p.year, p.month) {
		return parts{}, false
	}

	p.offset = UTCOffset
	if m[4] == "" {
		return p, true
	}

	p.hour, _ = strconv.Atoi(m[4])
	p.minute, _ = strconv.Atoi(m[5])
	if m[6] != "" {
		p.second, _ = strconv.Atoi(m[6])
	}
	if p.hour > 23 || p.minute > 59 || p.second > 59 {
		return parts{}, false
	}
	p.fraction = m[7]

	if off := m[8]; off != "" && off != "Z" {
		canonical, ok := canonicalOffset(off)
		if !ok {
			return parts{}, false
		}
		p.offset = canonical
	}
	return p, true
}

// canonicalOffset turns ±HH:MM or ±HHMM into ±HH:MM. -00:00 is UTC.
func canonicalOffset(off string) (string, bool) {
	sign := off[0]
	digits := strings.ReplaceAll(off[1:], ":", "")
	hours, _ := strconv.Atoi(digits[:2])
	minutes, _ := strconv.Atoi(digits[2:])
	if hours > 23 || minutes > 59 {
		return "", false
	}
	if hours == 0 && minutes == 0 {
		return UTCOffset, true
	}
	return fmt.Sprintf("%c%02d:%02d", sign, hours, minutes), true
}

// microseconds pads or truncates a fractional-second string to six digits,
// returning "" when the value is zero.
func microseconds(fraction string) string {
	if fraction == "" {
		return ""
	}
	if len(fraction) > 6 {
		fraction = fraction[:6]
	}
	fraction += strings.Repeat("0", 6-len(fraction))
	if strings.Trim(fraction, "0") == "" {
		return ""
	}
	return fraction
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
