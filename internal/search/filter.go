package search

import (
	"fmt"
	"strings"
	"time"
)

// Filter is one filter-query clause sent to the search service.
type Filter string

func (f Filter) String() string { return string(f) }

// solrDate is the timestamp layout of publish_date ranges.
const solrDate = "2006-01-02T15:04:05Z"

// PublishDateRange matches sentences published from start (inclusive) up to
// end (exclusive). Only the calendar date of each bound is used, in UTC.
//
//	publish_date:[2016-09-01T00:00:00Z TO 2016-09-30T00:00:00Z}
func PublishDateRange(start, end time.Time) Filter {
	return Filter(fmt.Sprintf("publish_date:[%s TO %s}", day(start), day(end)))
}

// Tag matches sentences carrying the given tag id, e.g. tags_id_media:1.
func Tag(field string, id int64) Filter {
	return Filter(fmt.Sprintf("%s:%d", field, id))
}

// Raw passes expr through unchanged.
func Raw(expr string) Filter {
	return Filter(expr)
}

// Date is a convenience for midnight UTC on the given day.
func Date(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func day(t time.Time) string {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Format(solrDate)
}

// joinFilters builds the fq parameter: every clause must hold.
func joinFilters(filters []Filter) string {
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		if s := strings.TrimSpace(string(f)); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " AND ")
}
