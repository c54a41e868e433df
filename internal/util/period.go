package util

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var periodPattern = regexp.MustCompile(`^Q\s*([1-4])\s*[-_ /]?\s*(\d{4})$`)

// CurrentQuarter returns the calendar quarter containing t as Q#-YYYY.
func CurrentQuarter(t time.Time) string {
	q := (int(t.Month())-1)/3 + 1
	return fmt.Sprintf("Q%d-%d", q, t.Year())
}

// CanonicalPeriod rewrites loose quarter spellings ("q3 2025", "Q3-2025",
// "Q3_2025") to Q#-YYYY. ok is false when s is not a quarter.
func CanonicalPeriod(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	m := periodPattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return "Q" + m[1] + "-" + m[2], true
}
