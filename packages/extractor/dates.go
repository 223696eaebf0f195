package extractor

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// dateFormats are tried in order before falling back to the month-name
// pattern. The source emits several locale renderings depending on page age.
var dateFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02.01.2006",
	"02.01.2006 15:04",
	"02/01/2006",
}

// monthNameExpr matches "17 октября 2023" style dates.
var monthNameExpr = regexp.MustCompile(`(\d{1,2})\s+([\p{L}]+)\.?\s+(\d{4})`)

var monthNames = map[string]time.Month{
	"января": time.January, "февраля": time.February, "марта": time.March,
	"апреля": time.April, "мая": time.May, "июня": time.June,
	"июля": time.July, "августа": time.August, "сентября": time.September,
	"октября": time.October, "ноября": time.November, "декабря": time.December,
	// Abbreviations appear in list contexts.
	"янв": time.January, "фев": time.February, "мар": time.March,
	"апр": time.April, "июн": time.June, "июл": time.July,
	"авг": time.August, "сен": time.September, "окт": time.October,
	"ноя": time.November, "дек": time.December,
}

func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)

	for _, format := range dateFormats {
		if ts, err := time.Parse(format, raw); err == nil {
			return ts, true
		}
	}

	m := monthNameExpr.FindStringSubmatch(raw)
	if m == nil {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(m[1])
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, false
	}
	month, ok := monthNames[strings.ToLower(m[2])]
	if !ok {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(m[3])
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true
}
