// Package catalog is the static allow-list of sources, fields, aggregations
// and filter operators. The plan compiler, the raw SQL validator and the
// model prompts all read from it; extending the domain is one edit here.
//
// All tables are built at package init and never mutated afterwards, so they
// are safe to share across concurrent requests without locking.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"vidstats/internal/domain"
)

// FieldClass partitions fields by the literals they accept.
type FieldClass int

// Field classes.
const (
	ClassNumeric FieldClass = iota
	ClassDate
	ClassIdentifier
)

func (c FieldClass) String() string {
	switch c {
	case ClassNumeric:
		return "numeric"
	case ClassDate:
		return "date"
	case ClassIdentifier:
		return "identifier"
	default:
		return "unknown"
	}
}

// Field is one selectable column.
type Field struct {
	Name  string
	Class FieldClass
	Delta bool   // period-over-period change rather than a cumulative total
	Type  string // Postgres column type, for prompts
	Doc   string
}

// Source is one permitted table and its field allow-list.
type Source struct {
	Name   domain.Source
	Doc    string
	fields map[string]Field
	order  []string
}

// Field returns the named field if it belongs to the source.
func (s *Source) Field(name string) (Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// Fields returns the source's fields in declaration order.
func (s *Source) Fields() []Field {
	out := make([]Field, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.fields[name])
	}
	return out
}

func newSource(name domain.Source, doc string, fields ...Field) *Source {
	s := &Source{Name: name, Doc: doc, fields: make(map[string]Field, len(fields))}
	for _, f := range fields {
		s.fields[f.Name] = f
		s.order = append(s.order, f.Name)
	}
	return s
}

func metricFields(doc string) []Field {
	out := make([]Field, 0, 4)
	for _, m := range []string{"views", "likes", "comments", "reports"} {
		out = append(out, Field{Name: m + "_count", Class: ClassNumeric, Type: "bigint", Doc: doc})
	}
	return out
}

func deltaFields() []Field {
	out := make([]Field, 0, 4)
	for _, m := range []string{"views", "likes", "comments", "reports"} {
		out = append(out, Field{
			Name: "delta_" + m + "_count", Class: ClassNumeric, Delta: true, Type: "bigint",
			Doc: "growth since the previous snapshot",
		})
	}
	return out
}

var (
	videos = newSource(domain.SourceVideos, "one row per video with final metrics",
		append([]Field{
			{Name: "id", Class: ClassIdentifier, Type: "text"},
			{Name: "creator_id", Class: ClassIdentifier, Type: "text"},
			{Name: "video_created_at", Class: ClassDate, Type: "timestamptz", Doc: "publication time"},
		}, append(metricFields("final value"),
			Field{Name: "created_at", Class: ClassDate, Type: "timestamptz"},
			Field{Name: "updated_at", Class: ClassDate, Type: "timestamptz"},
		)...)...,
	)

	snapshots = newSource(domain.SourceSnapshots, "hourly snapshots of each video",
		append(append([]Field{
			{Name: "id", Class: ClassIdentifier, Type: "text"},
			{Name: "video_id", Class: ClassIdentifier, Type: "text", Doc: "references videos.id"},
		}, metricFields("value at snapshot time")...),
			append(deltaFields(),
				Field{Name: "created_at", Class: ClassDate, Type: "timestamptz", Doc: "snapshot time"},
				Field{Name: "updated_at", Class: ClassDate, Type: "timestamptz"},
			)...)...,
	)

	sources = map[domain.Source]*Source{
		videos.Name:    videos,
		snapshots.Name: snapshots,
	}

	aggregations = map[domain.Aggregation]domain.Aggregation{
		domain.AggCountRows:         domain.AggCountRows,
		domain.AggCountDistinct:     domain.AggCountDistinct,
		domain.AggSum:               domain.AggSum,
		domain.AggSumDeltaInWindow:  domain.AggSumDeltaInWindow,
		domain.AggSumDeltaFirstHour: domain.AggSumDeltaInWindow,
	}

	operators = map[domain.Operator]string{
		domain.OpEq:          "=",
		domain.OpGt:          ">",
		domain.OpGte:         ">=",
		domain.OpLt:          "<",
		domain.OpLte:         "<=",
		domain.OpDateOn:      "",
		domain.OpDateBetween: "",
	}
)

// Lookup returns the named source.
func Lookup(name domain.Source) (*Source, bool) {
	s, ok := sources[name]
	return s, ok
}

// Videos returns the primary entity source.
func Videos() *Source { return videos }

// Snapshots returns the snapshot history source.
func Snapshots() *Source { return snapshots }

// CanonicalAggregation resolves an aggregation name, folding aliases.
func CanonicalAggregation(name domain.Aggregation) (domain.Aggregation, bool) {
	a, ok := aggregations[name]
	return a, ok
}

// ComparisonSQL returns the SQL operator for a comparison filter operator.
// Date operators report ok=true with an empty string.
func ComparisonSQL(op domain.Operator) (string, bool) {
	s, ok := operators[op]
	return s, ok
}

// IsDateOperator reports whether op applies only to date-class fields.
func IsDateOperator(op domain.Operator) bool {
	return op == domain.OpDateOn || op == domain.OpDateBetween
}

// TableNames returns the permitted table names, sorted.
func TableNames() []string {
	out := make([]string, 0, len(sources))
	for name := range sources {
		out = append(out, string(name))
	}
	sort.Strings(out)
	return out
}

// MetricField maps a metric stem ("views", "likes", ...) to its final or
// delta column name.
func MetricField(stem string, delta bool) string {
	if delta {
		return "delta_" + stem + "_count"
	}
	return stem + "_count"
}

// SchemaDescription renders the catalog for model prompts, one line per field.
func SchemaDescription() string {
	var b strings.Builder
	for i, s := range []*Source{videos, snapshots} {
		fmt.Fprintf(&b, "%d) Table %s (%s)\n", i+1, s.Name, s.Doc)
		for _, f := range s.Fields() {
			fmt.Fprintf(&b, "- %s (%s", f.Name, f.Type)
			if f.Doc != "" {
				fmt.Fprintf(&b, ", %s", f.Doc)
			}
			b.WriteString(")\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// CompactSchema renders one line per table: name(col, col, ...).
func CompactSchema() string {
	lines := make([]string, 0, 2)
	for _, s := range []*Source{videos, snapshots} {
		lines = append(lines, fmt.Sprintf("%s(%s)", s.Name, strings.Join(s.order, ", ")))
	}
	return strings.Join(lines, "\n")
}
