package model

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Analytics over consumption events: bucketed chart series and category
// summaries. Bucket labels are generated in Go by walking the period in the
// user's timezone; the sums come from one grouped query with the same
// timezone applied on the database side.

// Grouping is the chart bucket size.
type Grouping string

// Chart groupings.
const (
	GroupDay   Grouping = "day"
	GroupWeek  Grouping = "week"
	GroupMonth Grouping = "month"
)

// Period is a named chart time range.
type Period string

// Chart periods.
const (
	PeriodToday      Period = "today"
	PeriodLast7Days  Period = "last-7-days"
	PeriodLast14Days Period = "last-14-days"
	PeriodLast30Days Period = "last-30-days"
	PeriodThisWeek   Period = "this-week"
	PeriodThisMonth  Period = "this-month"
	PeriodThisYear   Period = "this-year"
	PeriodCustom     Period = "custom"
)

// Analytics parameter errors. They surface before any query runs.
var (
	ErrInvalidGrouping = errors.New("model: invalid grouping")
	ErrInvalidPeriod   = errors.New("model: invalid period")
	ErrInvalidRange    = errors.New("model: invalid custom range")
)

// ParseGrouping validates a grouping parameter.
func ParseGrouping(s string) (Grouping, error) {
	switch Grouping(s) {
	case GroupDay, GroupWeek, GroupMonth:
		return Grouping(s), nil
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidGrouping, s)
}

// ParsePeriod validates a period parameter.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case PeriodToday, PeriodLast7Days, PeriodLast14Days, PeriodLast30Days,
		PeriodThisWeek, PeriodThisMonth, PeriodThisYear, PeriodCustom:
		return Period(s), nil
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidPeriod, s)
}

func midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func mondayOfWeek(t time.Time, loc *time.Location) time.Time {
	t = midnight(t, loc)
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}

// PeriodRange resolves a period to a half-open [start, end) range in the
// given location. Custom periods need both bounds, with until not before
// from; both are interpreted as inclusive dates.
func PeriodRange(period Period, now time.Time, loc *time.Location, from, until time.Time) (time.Time, time.Time, error) {
	today := midnight(now, loc)
	tomorrow := today.AddDate(0, 0, 1)
	switch period {
	case PeriodToday:
		return today, tomorrow, nil
	case PeriodLast7Days:
		return today.AddDate(0, 0, -6), tomorrow, nil
	case PeriodLast14Days:
		return today.AddDate(0, 0, -13), tomorrow, nil
	case PeriodLast30Days:
		return today.AddDate(0, 0, -29), tomorrow, nil
	case PeriodThisWeek:
		monday := mondayOfWeek(now, loc)
		return monday, monday.AddDate(0, 0, 7), nil
	case PeriodThisMonth:
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, loc)
		return first, first.AddDate(0, 1, 0), nil
	case PeriodThisYear:
		first := time.Date(today.Year(), 1, 1, 0, 0, 0, 0, loc)
		return first, first.AddDate(1, 0, 0), nil
	case PeriodCustom:
		if from.IsZero() || until.IsZero() {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: both bounds required", ErrInvalidRange)
		}
		if until.Before(from) {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: until before from", ErrInvalidRange)
		}
		return midnight(from, loc), midnight(until, loc).AddDate(0, 0, 1), nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("%w: %s", ErrInvalidPeriod, period)
}

func weekLabel(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// BucketLabels generates the zero-filled label axis for a range. Walking
// calendar days with AddDate keeps labels aligned across DST transitions.
func BucketLabels(group Grouping, start, end time.Time, loc *time.Location) []string {
	var labels []string
	switch group {
	case GroupDay:
		for t := midnight(start, loc); t.Before(end); t = t.AddDate(0, 0, 1) {
			labels = append(labels, t.Format("2006-01-02"))
		}
	case GroupWeek:
		for t := mondayOfWeek(start, loc); t.Before(end); t = t.AddDate(0, 0, 7) {
			labels = append(labels, weekLabel(t))
		}
	case GroupMonth:
		t := midnight(start, loc)
		for t = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc); t.Before(end); t = t.AddDate(0, 1, 0) {
			labels = append(labels, t.Format("2006-01"))
		}
	}
	return labels
}

func bucketFormat(group Grouping) string {
	switch group {
	case GroupWeek:
		return `IYYY-"W"IW`
	case GroupMonth:
		return "YYYY-MM"
	default:
		return "YYYY-MM-DD"
	}
}

// ChartSeries is the bucketed volume series of one item.
type ChartSeries struct {
	ItemID int64     `json:"item_id"`
	Item   string    `json:"item"`
	Data   []float64 `json:"data"`
}

// Chart is a zero-filled chart: one label axis, one series per item.
type Chart struct {
	Labels []string      `json:"labels"`
	Series []ChartSeries `json:"series"`
}

// Chart computes the bucketed volume chart of one user. Parameters are
// validated before the query; an empty period yields empty series, not an
// error.
func (s *Store) Chart(ctx context.Context, userID int64, group Grouping, period Period, loc *time.Location, from, until time.Time) (*Chart, error) {
	if _, err := ParseGrouping(string(group)); err != nil {
		return nil, err
	}
	start, end, err := PeriodRange(period, time.Now(), loc, from, until)
	if err != nil {
		return nil, err
	}
	labels := BucketLabels(group, start, end, loc)
	labelIndex := make(map[string]int, len(labels))
	for i, label := range labels {
		labelIndex[label] = i
	}

	query := fmt.Sprintf(`SELECT c."item_id", i."title", to_char(c."consumed_at" AT TIME ZONE $1, '%s'), sum(c."volume")
FROM %s."user_consumptions" c
JOIN %s."items" i ON i."id" = c."item_id"
WHERE c."user_id" = $2 AND c."deleted_at" IS NULL AND c."consumed_at" >= $3 AND c."consumed_at" < $4
GROUP BY c."item_id", i."title", 3
ORDER BY i."title", c."item_id";`, bucketFormat(group), s.DB.Schema, s.DB.Schema)

	rows, err := s.DB.QueryContext(ctx, query, loc.String(), userID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chart := &Chart{Labels: labels}
	seriesIndex := make(map[int64]int)
	for rows.Next() {
		var itemID int64
		var title, bucket string
		var volume float64
		if err := rows.Scan(&itemID, &title, &bucket, &volume); err != nil {
			return nil, err
		}
		si, ok := seriesIndex[itemID]
		if !ok {
			si = len(chart.Series)
			seriesIndex[itemID] = si
			chart.Series = append(chart.Series, ChartSeries{
				ItemID: itemID,
				Item:   title,
				Data:   make([]float64, len(labels)),
			})
		}
		if li, ok := labelIndex[bucket]; ok {
			chart.Series[si].Data[li] += volume
		}
	}
	return chart, rows.Err()
}

// ItemSummary aggregates one item's consumption.
type ItemSummary struct {
	ItemID  int64   `json:"item_id"`
	Item    string  `json:"item"`
	Total   float64 `json:"total"`
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

// CategorySummary aggregates one category, items sorted by descending total.
type CategorySummary struct {
	CategoryID int64         `json:"category_id"`
	Category   string        `json:"category"`
	Total      float64       `json:"total"`
	Items      []ItemSummary `json:"items"`
}

// Summary is the per-category consumption breakdown plus the grand total.
type Summary struct {
	Total      float64           `json:"total"`
	Categories []CategorySummary `json:"categories"`
}

// Summary aggregates a user's consumption by category and item. A zero
// since time means all time.
func (s *Store) Summary(ctx context.Context, userID int64, since time.Time) (*Summary, error) {
	query := fmt.Sprintf(`SELECT cat."id", cat."title", i."id", i."title", sum(c."volume"), avg(c."volume"), count(*)
FROM %s."user_consumptions" c
JOIN %s."items" i ON i."id" = c."item_id"
JOIN %s."item_categories" cat ON cat."id" = i."item_category_id"
WHERE c."user_id" = $1 AND c."deleted_at" IS NULL`, s.DB.Schema, s.DB.Schema, s.DB.Schema)
	args := []interface{}{userID}
	if !since.IsZero() {
		args = append(args, since)
		query += fmt.Sprintf(` AND c."consumed_at" >= $%d`, len(args))
	}
	query += ` GROUP BY cat."id", cat."title", i."id", i."title";`

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summary := &Summary{}
	categoryIndex := make(map[int64]int)
	for rows.Next() {
		var categoryID, itemID, count int64
		var category, item string
		var total, average float64
		if err := rows.Scan(&categoryID, &category, &itemID, &item, &total, &average, &count); err != nil {
			return nil, err
		}
		ci, ok := categoryIndex[categoryID]
		if !ok {
			ci = len(summary.Categories)
			categoryIndex[categoryID] = ci
			summary.Categories = append(summary.Categories, CategorySummary{
				CategoryID: categoryID,
				Category:   category,
			})
		}
		summary.Categories[ci].Total += total
		summary.Categories[ci].Items = append(summary.Categories[ci].Items, ItemSummary{
			ItemID:  itemID,
			Item:    item,
			Total:   total,
			Average: average,
			Count:   count,
		})
		summary.Total += total
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(summary.Categories, func(i, j int) bool {
		return summary.Categories[i].Total > summary.Categories[j].Total
	})
	for ci := range summary.Categories {
		items := summary.Categories[ci].Items
		sort.Slice(items, func(i, j int) bool { return items[i].Total > items[j].Total })
	}
	return summary, nil
}

// WeeklySummary aggregates the past seven local days, for the weekly
// summary job.
func (s *Store) WeeklySummary(ctx context.Context, userID int64, loc *time.Location) (*Summary, error) {
	since := midnight(time.Now(), loc).AddDate(0, 0, -7)
	return s.Summary(ctx, userID, since)
}
