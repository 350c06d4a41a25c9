package plan

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"vidstats/internal/domain"
)

// digitSeparators are stripped from numeric strings ("100 000").
var digitSeparators = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", "\t", "")

// NormalizeNumber converts a raw numeric token to an int64. It accepts Go
// integers, integral floats, json.Number and numeric-looking strings
// (separators removed, optional leading "+", digits only). Booleans and
// anything else fail with *domain.InvalidValueError.
func NormalizeNumber(raw any) (int64, error) {
	switch v := raw.(type) {
	case bool:
		return 0, domain.ErrInvalidValue("number", raw)
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case float32:
		return integralFloat(float64(v), raw)
	case float64:
		return integralFloat(v, raw)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		f, err := v.Float64()
		if err != nil {
			return 0, domain.ErrInvalidValue("number", raw)
		}
		return integralFloat(f, raw)
	case string:
		return numericString(v, raw)
	default:
		return 0, domain.ErrInvalidValue("number", raw)
	}
}

func integralFloat(f float64, raw any) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64/2 {
		return 0, domain.ErrInvalidValue("number", raw)
	}
	return int64(f), nil
}

func numericString(s string, raw any) (int64, error) {
	cleaned := digitSeparators.Replace(strings.TrimSpace(s))
	cleaned = strings.TrimPrefix(cleaned, "+")
	if cleaned == "" {
		return 0, domain.ErrInvalidValue("number", raw)
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return 0, domain.ErrInvalidValue("number", raw)
		}
	}
	n, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0, domain.ErrInvalidValue("number", raw)
	}
	return n, nil
}

var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	time.DateTime,
}

// NormalizeDate converts a raw date token to a calendar date (midnight UTC).
// It accepts time.Time values and ISO date or datetime strings; the time of
// day is discarded.
func NormalizeDate(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return civil(v), nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return civil(t), nil
			}
		}
	}
	return time.Time{}, domain.ErrInvalidValue("date", raw)
}

func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
