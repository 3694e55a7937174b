// Package analytics folds a link's click history into summary statistics for
// the stats endpoint. Aggregation runs over the denormalized fields stored at
// click time; nothing is reparsed here.
package analytics

import (
	"net/url"
	"sort"

	"github.com/linkcut/linkcut/internal/models"
)

// Aggregate computes ClickAnalytics over events ordered by time ascending.
// Grouping is exact string equality on the stored fields. Referrers key on
// hostname: an empty referer buckets as "direct", an unparseable one as
// "unknown". Daily buckets use the event's UTC calendar date.
func Aggregate(events []*models.ClickEvent) *models.ClickAnalytics {
	result := &models.ClickAnalytics{
		Total:     int64(len(events)),
		Browsers:  make(map[string]int64),
		OS:        make(map[string]int64),
		Devices:   make(map[string]int64),
		Referrers: make(map[string]int64),
		OverTime:  []models.DailyCount{},
	}

	daily := make(map[string]int64)

	for _, ev := range events {
		result.Browsers[ev.Browser]++
		result.OS[ev.OS]++
		result.Devices[ev.Device]++
		result.Referrers[refererHost(ev.Referer)]++
		daily[ev.Timestamp.UTC().Format("2006-01-02")]++

		if ev.IsMobile {
			result.MobileVsDesktop.Mobile++
		} else {
			result.MobileVsDesktop.Desktop++
		}
	}

	dates := make([]string, 0, len(daily))
	for date := range daily {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	for _, date := range dates {
		result.OverTime = append(result.OverTime, models.DailyCount{
			Date:  date,
			Count: daily[date],
		})
	}

	return result
}

func refererHost(referer string) string {
	if referer == "" {
		return "direct"
	}
	u, err := url.Parse(referer)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return u.Hostname()
}
