package ytime

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Format renders d according to a strftime-like pattern supporting the
// directives spec §4.B defines for durations: %d (total days), %D (the
// day count followed by "d", omitted when d has no whole days), %H %M %S (zero-padded
// hour/minute/second-of-day), %T (equivalent to %H:%M:%S), %3 %6 %9
// (millisecond/microsecond/nanosecond fraction), %- (a "-" if d is
// negative, empty otherwise), %+ (a "+" if d is non-negative, "-"
// otherwise), and %% (a literal percent). An empty pattern uses
// "%-%D%H:%M:%S.%3".
func (d Duration) Format(pattern string) string {
	if pattern == "" {
		pattern = "%-%D%H:%M:%S.%3"
	}

	if d.inf != 0 {
		return d.String()
	}

	ns := d.ns
	neg := ns < 0
	if neg {
		ns = -ns
	}

	totalDays := ns / int64(24*time.Hour)
	dayRem := ns % int64(24*time.Hour)
	hours := dayRem / int64(time.Hour)
	minutes := (dayRem % int64(time.Hour)) / int64(time.Minute)
	seconds := (dayRem % int64(time.Minute)) / int64(time.Second)
	nanos := dayRem % int64(time.Second)

	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		if pattern[i] != '%' || i+1 >= len(pattern) {
			b.WriteByte(pattern[i])
			continue
		}

		i++
		switch pattern[i] {
		case '-':
			if neg {
				b.WriteByte('-')
			}
		case '+':
			if neg {
				b.WriteByte('-')
			} else {
				b.WriteByte('+')
			}
		case 'd':
			fmt.Fprintf(&b, "%d", totalDays)
		case 'D':
			if totalDays > 0 {
				fmt.Fprintf(&b, "%dd", totalDays)
			}
		case 'H':
			fmt.Fprintf(&b, "%02d", hours)
		case 'M':
			fmt.Fprintf(&b, "%02d", minutes)
		case 'S':
			fmt.Fprintf(&b, "%02d", seconds)
		case 'T':
			fmt.Fprintf(&b, "%02d:%02d:%02d", hours, minutes, seconds)
		case '3':
			fmt.Fprintf(&b, "%03d", nanos/int64(time.Millisecond))
		case '6':
			fmt.Fprintf(&b, "%06d", nanos/int64(time.Microsecond))
		case '9':
			fmt.Fprintf(&b, "%09d", nanos)
		case '%':
			b.WriteByte('%')
		default:
			b.WriteByte('%')
			b.WriteByte(pattern[i])
		}
	}

	return b.String()
}

// Format renders t according to a strftime-like pattern supporting %Y %m %d
// %F (%Y-%m-%d) %H %M %S %T (%H:%M:%S) %3 %6 %9, matching spec §4.B. An
// empty pattern uses "%F %T.%3".
func (t Timestamp) Format(pattern string) string {
	if pattern == "" {
		pattern = "%F %T.%3"
	}

	tm := t.Time().UTC()

	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		if pattern[i] != '%' || i+1 >= len(pattern) {
			b.WriteByte(pattern[i])
			continue
		}

		i++
		switch pattern[i] {
		case 'Y':
			fmt.Fprintf(&b, "%04d", tm.Year())
		case 'm':
			fmt.Fprintf(&b, "%02d", tm.Month())
		case 'd':
			fmt.Fprintf(&b, "%02d", tm.Day())
		case 'F':
			fmt.Fprintf(&b, "%04d-%02d-%02d", tm.Year(), tm.Month(), tm.Day())
		case 'H':
			fmt.Fprintf(&b, "%02d", tm.Hour())
		case 'M':
			fmt.Fprintf(&b, "%02d", tm.Minute())
		case 'S':
			fmt.Fprintf(&b, "%02d", tm.Second())
		case 'T':
			fmt.Fprintf(&b, "%02d:%02d:%02d", tm.Hour(), tm.Minute(), tm.Second())
		case '3':
			fmt.Fprintf(&b, "%03d", tm.Nanosecond()/1e6)
		case '6':
			fmt.Fprintf(&b, "%06d", tm.Nanosecond()/1e3)
		case '9':
			fmt.Fprintf(&b, "%09d", tm.Nanosecond())
		case '%':
			b.WriteByte('%')
		default:
			b.WriteByte('%')
			b.WriteByte(pattern[i])
		}
	}

	return b.String()
}

// ParseTimestamp is the strict inverse of Timestamp.Format: it rejects
// trailing input that the pattern's literal characters do not account for.
// Only the %Y-%m-%d / %F and %H:%M:%S / %T directives (and their fractional
// companions) are supported, matching the subset the configuration layer
// and info-message decoder need.
func ParseTimestamp(s, pattern string) (Timestamp, error) {
	if pattern == "" {
		pattern = "%F %T.%3"
	}

	var year, month, day, hour, minute, second, nanos int

	pos := 0
	for i := 0; i < len(pattern); i++ {
		if pattern[i] != '%' || i+1 >= len(pattern) {
			if pos >= len(s) || s[pos] != pattern[i] {
				return Timestamp{}, fmt.Errorf("ytime: timestamp %q does not match pattern %q", s, pattern)
			}
			pos++
			continue
		}

		i++
		var n int
		var err error
		switch pattern[i] {
		case 'Y':
			n, pos, err = readInt(s, pos, 4)
			year = n
		case 'm':
			n, pos, err = readInt(s, pos, 2)
			month = n
		case 'd':
			n, pos, err = readInt(s, pos, 2)
			day = n
		case 'F':
			year, pos, err = readInt(s, pos, 4)
			if err == nil {
				pos, err = expect(s, pos, '-')
			}
			if err == nil {
				month, pos, err = readInt(s, pos, 2)
			}
			if err == nil {
				pos, err = expect(s, pos, '-')
			}
			if err == nil {
				day, pos, err = readInt(s, pos, 2)
			}
		case 'H':
			n, pos, err = readInt(s, pos, 2)
			hour = n
		case 'M':
			n, pos, err = readInt(s, pos, 2)
			minute = n
		case 'S':
			n, pos, err = readInt(s, pos, 2)
			second = n
		case 'T':
			hour, pos, err = readInt(s, pos, 2)
			if err == nil {
				pos, err = expect(s, pos, ':')
			}
			if err == nil {
				minute, pos, err = readInt(s, pos, 2)
			}
			if err == nil {
				pos, err = expect(s, pos, ':')
			}
			if err == nil {
				second, pos, err = readInt(s, pos, 2)
			}
		case '3':
			n, pos, err = readInt(s, pos, 3)
			nanos = n * 1e6
		case '6':
			n, pos, err = readInt(s, pos, 6)
			nanos = n * 1e3
		case '9':
			n, pos, err = readInt(s, pos, 9)
			nanos = n
		case '%':
			pos, err = expect(s, pos, '%')
		default:
			return Timestamp{}, fmt.Errorf("ytime: unsupported timestamp directive %%%c", pattern[i])
		}
		if err != nil {
			return Timestamp{}, err
		}
	}

	if pos != len(s) {
		return Timestamp{}, fmt.Errorf("ytime: trailing input %q after matching pattern %q", s[pos:], pattern)
	}

	tm := time.Date(year, time.Month(month), day, hour, minute, second, nanos, time.UTC)
	return timestampFromTime(tm), nil
}

func expect(s string, pos int, c byte) (int, error) {
	if pos >= len(s) || s[pos] != c {
		return pos, fmt.Errorf("ytime: expected %q at offset %d in %q", c, pos, s)
	}
	return pos + 1, nil
}

func readInt(s string, pos, width int) (int, int, error) {
	end := pos
	for end < len(s) && end-pos < width && isDigit(s[end]) {
		end++
	}
	if end == pos {
		return 0, pos, fmt.Errorf("ytime: expected digits at offset %d in %q", pos, s)
	}
	n, err := strconv.Atoi(s[pos:end])
	if err != nil {
		return 0, pos, err
	}
	return n, end, nil
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
