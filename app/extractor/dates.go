package extractor

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var (
	monthDayExpr = regexp.MustCompile(`^[\[［(（]?\s*(\d{1,2})\s*/\s*(\d{1,2})\s*[\]］)）]?$`)
	ymdExpr      = regexp.MustCompile(`(\d{4})[-/](\d{1,2})[-/](\d{1,2})`)
	kanjiExpr    = regexp.MustCompile(`(\d{4})年(\d{1,2})月(\d{1,2})日`)
)

// ParseUpdateLabel turns a raw update/version label into a timestamp.
// Accepted formats, in priority order: bracketed month/day shorthand,
// ISO-like Y-M-D or Y/M/D, Y年M月D日, then a generic parse attempt.
// Unparseable labels return nil; extraction never fails on a bad date.
//
// Month/day shorthand carries no year and is assumed to fall in now's
// year. This mirrors the source page and is known to misdate a [12/31]
// label read in early January.
func ParseUpdateLabel(label string, now time.Time) *time.Time {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil
	}

	if m := monthDayExpr.FindStringSubmatch(label); m != nil {
		return makeDate(now.Year(), m[1], m[2])
	}

	if m := ymdExpr.FindStringSubmatch(label); m != nil {
		year, _ := strconv.Atoi(m[1])
		return makeDate(year, m[2], m[3])
	}

	if m := kanjiExpr.FindStringSubmatch(label); m != nil {
		year, _ := strconv.Atoi(m[1])
		return makeDate(year, m[2], m[3])
	}

	if parsed, err := dateparse.ParseAny(strings.Trim(label, "[]［]（）()")); err == nil {
		return &parsed
	}

	return nil
}

func makeDate(year int, monthStr, dayStr string) *time.Time {
	month, _ := strconv.Atoi(monthStr)
	day, _ := strconv.Atoi(dayStr)
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return nil
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local)
	return &t
}
