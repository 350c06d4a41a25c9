// Package heuristic recognizes a small set of common question shapes and
// turns them into query plans without calling a model.
//
// Matching is plain keyword and regular expression work over normalized
// text. A miss is not an error; the caller falls back to the model.
package heuristic

import (
	"strings"

	"vidstats/internal/catalog"
	"vidstats/internal/domain"
)

// Result is a successful match.
type Result struct {
	Shape string
	Plan  *domain.QueryPlan
}

type shape struct {
	name  string
	match func(q question) *domain.QueryPlan
}

// question carries the normalized text for keyword matching and the raw
// text for case-sensitive values such as creator ids.
type question struct {
	text string
	raw  string
}

// shapes are tried in order; the first match wins. The windowed shape runs
// first because its wording also contains the delta-sum keywords.
var shapes = []shape{
	{"first_hours_window", firstHoursWindow},
	{"total_count", totalCount},
	{"total_metric_sum", totalMetricSum},
	{"creator_date_range", creatorDateRange},
	{"creator_threshold", creatorThreshold},
	{"global_threshold", globalThreshold},
	{"delta_sum", deltaSum},
	{"distinct_with_new", distinctWithNew},
}

// Parse returns the plan for the first shape that matches text.
func Parse(text string) (Result, bool) {
	q := question{text: Normalize(text), raw: text}
	if q.text == "" {
		return Result{}, false
	}
	for _, s := range shapes {
		if p := s.match(q); p != nil {
			return Result{Shape: s.name, Plan: p}, true
		}
	}
	return Result{}, false
}

func containsAll(text string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(text, p) {
			return false
		}
	}
	return true
}

func containsAny(text string, parts ...string) bool {
	for _, p := range parts {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// thresholdOperator reads the comparison wording. Negated forms are
// checked before the bare words they contain.
func thresholdOperator(text string) (domain.Operator, bool) {
	switch {
	case containsAny(text, "не менее", "не меньше", "как минимум", "хотя бы"):
		return domain.OpGte, true
	case containsAny(text, "не более", "не больше"):
		return domain.OpLte, true
	case containsAny(text, "больше", "более", "свыше"):
		return domain.OpGt, true
	case containsAny(text, "меньше", "менее"):
		return domain.OpLt, true
	}
	return "", false
}

// "Какой суммарный прирост просмотров получили все видео за первые 3 часа после публикации?"
func firstHoursWindow(q question) *domain.QueryPlan {
	text := q.text
	if !strings.Contains(text, "после публикации") || !containsAny(text, "прирост", "вырос") {
		return nil
	}
	m := firstHoursRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	hours, ok := extractNumber(m[1])
	if !ok || hours <= 0 {
		return nil
	}
	stem, ok := metricStem(text)
	if !ok {
		stem = "views"
	}
	return &domain.QueryPlan{
		Source:      domain.SourceSnapshots,
		Aggregation: domain.AggSumDeltaInWindow,
		Field:       catalog.MetricField(stem, true),
		Hours:       &hours,
		Filters:     []domain.Filter{},
	}
}

// "Сколько всего видео есть в системе?"
func totalCount(q question) *domain.QueryPlan {
	text := q.text
	if !strings.Contains(text, "сколько всего видео") || !containsAny(text, "в системе", "есть") {
		return nil
	}
	return &domain.QueryPlan{
		Source:      domain.SourceVideos,
		Aggregation: domain.AggCountRows,
		Field:       domain.WildcardField,
		Filters:     []domain.Filter{},
	}
}

// "Сколько всего лайков набрали все видео?"
func totalMetricSum(q question) *domain.QueryPlan {
	text := q.text
	if !strings.Contains(text, "сколько всего") || !strings.Contains(text, "все видео") {
		return nil
	}
	if containsAny(text, "вырос", "прирост", "новых", "новые") || oneDateRe.MatchString(text) {
		return nil
	}
	stem, ok := metricStem(text)
	if !ok {
		return nil
	}
	return &domain.QueryPlan{
		Source:      domain.SourceVideos,
		Aggregation: domain.AggSum,
		Field:       catalog.MetricField(stem, false),
		Filters:     []domain.Filter{},
	}
}

// "Сколько видео у креатора с id abc123 вышло с 1 по 5 ноября 2025?"
func creatorDateRange(q question) *domain.QueryPlan {
	text := q.text
	if !containsAll(text, "сколько видео у креатора", "вышло") {
		return nil
	}
	id, ok := creatorID(q.raw)
	if !ok {
		return nil
	}
	filters := []domain.Filter{{Field: "creator_id", Op: domain.OpEq, Value: id}}
	if r, ok := parseDateRange(text); ok {
		filters = append(filters, domain.Filter{
			Field: "video_created_at", Op: domain.OpDateBetween, From: r.from, To: r.to,
		})
	} else if d, ok := parseDate(text); ok {
		filters = append(filters, domain.Filter{Field: "video_created_at", Op: domain.OpDateOn, Value: d})
	} else {
		return nil
	}
	return &domain.QueryPlan{
		Source:      domain.SourceVideos,
		Aggregation: domain.AggCountRows,
		Field:       domain.WildcardField,
		Filters:     filters,
	}
}

// "Сколько видео у креатора с id abc123 набрали больше 10 000 просмотров?"
func creatorThreshold(q question) *domain.QueryPlan {
	text := q.text
	if !containsAll(text, "сколько видео у креатора", "набрал") {
		return nil
	}
	id, ok := creatorID(q.raw)
	if !ok {
		return nil
	}
	f, ok := thresholdFilter(strings.Replace(text, strings.ToLower(id), "", 1))
	if !ok {
		return nil
	}
	return &domain.QueryPlan{
		Source:      domain.SourceVideos,
		Aggregation: domain.AggCountRows,
		Field:       domain.WildcardField,
		Filters:     []domain.Filter{{Field: "creator_id", Op: domain.OpEq, Value: id}, f},
	}
}

// "Сколько видео набрало больше 100 000 просмотров за всё время?"
func globalThreshold(q question) *domain.QueryPlan {
	text := q.text
	if !strings.Contains(text, "сколько видео") || !strings.Contains(text, "набрал") {
		return nil
	}
	if strings.Contains(text, "креатор") {
		return nil
	}
	f, ok := thresholdFilter(text)
	if !ok {
		return nil
	}
	return &domain.QueryPlan{
		Source:      domain.SourceVideos,
		Aggregation: domain.AggCountRows,
		Field:       domain.WildcardField,
		Filters:     []domain.Filter{f},
	}
}

func thresholdFilter(text string) (domain.Filter, bool) {
	op, ok := thresholdOperator(text)
	if !ok {
		return domain.Filter{}, false
	}
	n, ok := extractNumber(text)
	if !ok {
		return domain.Filter{}, false
	}
	stem, ok := metricStem(text)
	if !ok {
		return domain.Filter{}, false
	}
	return domain.Filter{Field: catalog.MetricField(stem, false), Op: op, Value: n}, true
}

// "На сколько просмотров в сумме выросли все видео 28 ноября 2025?"
func deltaSum(q question) *domain.QueryPlan {
	text := q.text
	if !strings.Contains(text, "в сумме вырос") {
		return nil
	}
	stem, ok := metricStem(text)
	if !ok {
		return nil
	}
	f, ok := createdAtFilter(text)
	if !ok {
		return nil
	}
	return &domain.QueryPlan{
		Source:      domain.SourceSnapshots,
		Aggregation: domain.AggSum,
		Field:       catalog.MetricField(stem, true),
		Filters:     []domain.Filter{f},
	}
}

// "Сколько разных видео получали новые просмотры 27 ноября 2025?"
func distinctWithNew(q question) *domain.QueryPlan {
	text := q.text
	if !strings.Contains(text, "сколько разных видео") || !containsAny(text, "новые ", "новых ") {
		return nil
	}
	stem, ok := metricStem(text)
	if !ok {
		return nil
	}
	f, ok := createdAtFilter(text)
	if !ok {
		return nil
	}
	return &domain.QueryPlan{
		Source:      domain.SourceSnapshots,
		Aggregation: domain.AggCountDistinct,
		Field:       "video_id",
		Filters: []domain.Filter{
			{Field: catalog.MetricField(stem, true), Op: domain.OpGt, Value: int64(0)},
			f,
		},
	}
}

// createdAtFilter prefers a range over a single snapshot date.
func createdAtFilter(text string) (domain.Filter, bool) {
	if r, ok := parseDateRange(text); ok {
		return domain.Filter{Field: "created_at", Op: domain.OpDateBetween, From: r.from, To: r.to}, true
	}
	if d, ok := parseDate(text); ok {
		return domain.Filter{Field: "created_at", Op: domain.OpDateOn, Value: d}, true
	}
	return domain.Filter{}, false
}
