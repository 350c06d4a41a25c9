package heuristic

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// months maps genitive Russian month names to month numbers.
var months = map[string]time.Month{
	"января":   time.January,
	"февраля":  time.February,
	"марта":    time.March,
	"апреля":   time.April,
	"мая":      time.May,
	"июня":     time.June,
	"июля":     time.July,
	"августа":  time.August,
	"сентября": time.September,
	"октября":  time.October,
	"ноября":   time.November,
	"декабря":  time.December,
}

var (
	numberRe    = regexp.MustCompile(`\d[\d ]*`)
	oneDateRe   = regexp.MustCompile(`(\d{1,2}) ([а-я]+) (\d{4})`)
	fullRangeRe = regexp.MustCompile(`с (\d{1,2}) ([а-я]+) (\d{4}) по (\d{1,2}) ([а-я]+) (\d{4})`)
	// "с 28 октября по 3 ноября 2025"
	splitRangeRe = regexp.MustCompile(`с (\d{1,2}) ([а-я]+) по (\d{1,2}) ([а-я]+) (\d{4})`)
	// "с 1 по 5 ноября 2025"
	shortRangeRe = regexp.MustCompile(`с (\d{1,2}) по (\d{1,2}) ([а-я]+) (\d{4})`)
	creatorRe    = regexp.MustCompile(`(?i)\bid\s+([a-z0-9_-]+)`)
	firstHoursRe = regexp.MustCompile(`первы[ех] (\d+) час`)
)

// metricStems maps keyword fragments to catalog metric stems, checked in order.
var metricStems = []struct {
	keyword string
	stem    string
}{
	{"просмотр", "views"},
	{"лаик", "likes"}, // folded "лайк"
	{"коммент", "comments"},
	{"жалоб", "reports"},
}

// dateRange is an inclusive pair of ISO dates.
type dateRange struct {
	from, to string
}

// isoDate builds an ISO date and rejects impossible days such as 31 November.
func isoDate(day, monthName, year string) (string, bool) {
	month, ok := months[monthName]
	if !ok {
		return "", false
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return "", false
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return "", false
	}
	t := time.Date(y, month, d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d || t.Month() != month {
		return "", false
	}
	return t.Format(time.DateOnly), true
}

// parseDate finds the first "D month YYYY" in text.
func parseDate(text string) (string, bool) {
	m := oneDateRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return isoDate(m[1], m[2], m[3])
}

// parseDateRange recognizes full ranges, ranges sharing a year, and
// same-month short ranges.
func parseDateRange(text string) (dateRange, bool) {
	if m := fullRangeRe.FindStringSubmatch(text); m != nil {
		from, ok1 := isoDate(m[1], m[2], m[3])
		to, ok2 := isoDate(m[4], m[5], m[6])
		if ok1 && ok2 {
			return dateRange{from, to}, true
		}
	}
	if m := splitRangeRe.FindStringSubmatch(text); m != nil {
		from, ok1 := isoDate(m[1], m[2], m[5])
		to, ok2 := isoDate(m[3], m[4], m[5])
		if ok1 && ok2 {
			return dateRange{from, to}, true
		}
	}
	if m := shortRangeRe.FindStringSubmatch(text); m != nil {
		from, ok1 := isoDate(m[1], m[3], m[4])
		to, ok2 := isoDate(m[2], m[3], m[4])
		if ok1 && ok2 {
			return dateRange{from, to}, true
		}
	}
	return dateRange{}, false
}

// metricStem returns the first metric mentioned in text.
func metricStem(text string) (string, bool) {
	for _, m := range metricStems {
		if strings.Contains(text, m.keyword) {
			return m.stem, true
		}
	}
	return "", false
}

// extractNumber takes the longest contiguous digit run (inner spaces
// allowed, so "100 000" is one number) as the intended threshold.
func extractNumber(text string) (int64, bool) {
	var best string
	for _, m := range numberRe.FindAllString(text, -1) {
		if len(m) > len(best) {
			best = m
		}
	}
	if best == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.ReplaceAll(best, " ", ""), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// creatorID reads the id from raw text so its case is preserved.
func creatorID(raw string) (string, bool) {
	m := creatorRe.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return m[1], true
}
