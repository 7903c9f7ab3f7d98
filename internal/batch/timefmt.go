package batch

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	reSeconds = regexp.MustCompile(`^\d+(\.\d+)?$`)
	reMMSS    = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	reHHMMSS  = regexp.MustCompile(`^(\d{1,2}):(\d{2}):(\d{2})$`)
)

// ParseTime accepts "S", "S.s", "m:ss" and "h:mm:ss". The second return is
// false for anything else.
func ParseTime(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if reSeconds.MatchString(s) {
		v, err := strconv.ParseFloat(s, 64)
		return v, err == nil
	}
	if m := reMMSS.FindStringSubmatch(s); m != nil {
		return float64(atoi(m[1])*60 + atoi(m[2])), true
	}
	if m := reHHMMSS.FindStringSubmatch(s); m != nil {
		return float64(atoi(m[1])*3600 + atoi(m[2])*60 + atoi(m[3])), true
	}
	return 0, false
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// FormatMMSS rounds to whole seconds and renders "mm:ss". Negative input
// renders as "00:00".
func FormatMMSS(seconds float64) string {
	s := int(math.Round(math.Max(0, seconds)))
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}

// FormatHHMMSS truncates to whole seconds and renders "mm:ss", with an
// "hh:" prefix only when there are hours.
func FormatHHMMSS(seconds float64) string {
	s := int(math.Max(0, seconds))
	h, m, sec := s/3600, (s%3600)/60, s%60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%02d:%02d", m, sec)
}

// FormatHHMMSSFixed floors to whole seconds and always renders "hh:mm:ss".
func FormatHHMMSSFixed(seconds float64) string {
	s := int(math.Floor(math.Max(0, seconds)))
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}
