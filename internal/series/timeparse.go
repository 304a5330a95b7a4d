package series

import (
	"strconv"
	"strings"
	"time"
)

// ParseTime parses an observation timestamp as UTC. It accepts
// "YYYY-MM-DD HH:MM:SS" with missing seconds/minutes/hours defaulting to
// zero, unpadded fields, a "T" separator, fractional seconds, RFC 3339 and
// integer Unix time: 12 or more digits are milliseconds, 9 to 11 digits are
// seconds.
func ParseTime(s string) (time.Time, error) {
	s = strings.Trim(strings.TrimSpace(s), `"'`)
	if s == "" {
		return time.Time{}, errBadTime
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n >= 0 {
		switch {
		case len(s) >= 12:
			return time.UnixMilli(n).UTC(), nil
		case len(s) >= 9:
			return time.Unix(n, 0).UTC(), nil
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}

	datePart, clockPart, _ := strings.Cut(strings.Replace(s, "T", " ", 1), " ")
	date, err := time.Parse("2006-1-2", datePart)
	if err != nil {
		return time.Time{}, errBadTime
	}

	var hms [3]int
	var nanos int
	clockPart = strings.TrimSuffix(strings.TrimSpace(clockPart), "Z")
	if clockPart != "" {
		fields := strings.Split(clockPart, ":")
		if len(fields) > 3 {
			return time.Time{}, errBadTime
		}
		for i, f := range fields {
			if i == 2 {
				sec, frac, hasFrac := strings.Cut(f, ".")
				f = sec
				if hasFrac {
					if nanos, err = parseFraction(frac); err != nil {
						return time.Time{}, errBadTime
					}
				}
			}
			v, err := strconv.Atoi(f)
			if err != nil || v < 0 {
				return time.Time{}, errBadTime
			}
			hms[i] = v
		}
	}
	if hms[0] > 23 || hms[1] > 59 || hms[2] > 59 {
		return time.Time{}, errBadTime
	}

	return time.Date(date.Year(), date.Month(), date.Day(), hms[0], hms[1], hms[2], nanos, time.UTC), nil
}

func parseFraction(frac string) (int, error) {
	if frac == "" || len(frac) > 9 {
		return 0, errBadTime
	}
	v, err := strconv.Atoi(frac)
	if err != nil || v < 0 {
		return 0, errBadTime
	}
	for i := len(frac); i < 9; i++ {
		v *= 10
	}
	return v, nil
}
