package domain

// Source names a permitted logical table.
type Source string

// Permitted sources.
const (
	SourceVideos    Source = "videos"
	SourceSnapshots Source = "video_snapshots"
)

// Aggregation names a supported aggregate.
type Aggregation string

// Supported aggregations.
const (
	AggCountRows         Aggregation = "count_rows"
	AggCountDistinct     Aggregation = "count_distinct"
	AggSum               Aggregation = "sum"
	AggSumDeltaInWindow  Aggregation = "sum_delta_in_window"
	AggSumDeltaFirstHour Aggregation = "sum_delta_first_hours_after_publication" // accepted alias of AggSumDeltaInWindow
)

// Operator names a filter comparison.
type Operator string

// Supported filter operators.
const (
	OpEq          Operator = "eq"
	OpGt          Operator = "gt"
	OpGte         Operator = "gte"
	OpLt          Operator = "lt"
	OpLte         Operator = "lte"
	OpDateOn      Operator = "date_on"
	OpDateBetween Operator = "date_between"
)

// WildcardField is the implicit field of aggregations that need none.
const WildcardField = "*"

// QueryPlan is a structured description of one aggregate query.
// Values in filters are raw tokens; the compiler normalizes them.
type QueryPlan struct {
	Source      Source      `json:"source"`
	Aggregation Aggregation `json:"aggregation"`
	Field       string      `json:"field,omitempty"`
	Hours       *int64      `json:"hours,omitempty"`
	Filters     []Filter    `json:"filters"`
}

// Filter is a single predicate of a QueryPlan.
type Filter struct {
	Field string   `json:"field"`
	Op    Operator `json:"op"`
	Value any      `json:"value,omitempty"`
	From  any      `json:"from,omitempty"`
	To    any      `json:"to,omitempty"`
}

// CompiledQuery is parameterized SQL text plus its positional arguments.
// It is only produced from a validated QueryPlan or validated raw SQL.
type CompiledQuery struct {
	SQL  string
	Args []any
}
