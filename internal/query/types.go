// Package query implements the Query Parser (grammar -> ParsedQuery)
// and the Filter Compiler (QueryFilters -> index predicate tree plus
// a post-filter path matcher).
package query

// TimeField selects which timestamp field a TimeFilter applies to.
type TimeField int

const (
	FieldModified TimeField = iota
	FieldCreated
	FieldIndexed
)

// TimeRangeKind discriminates the TimeRange variants.
type TimeRangeKind int

const (
	RangeLastHours TimeRangeKind = iota
	RangeLastDays
	RangeLastWeeks
	RangeLastMonths
	RangeBetween
	RangeAfter
	RangeBefore
	RangeToday
	RangeThisWeek
	RangeThisMonth
)

// TimeRange is a tagged union over the variants named in the data
// model. N holds the magnitude for the LastX variants; A/B hold Unix
// second bounds for Between/After/Before.
type TimeRange struct {
	Kind TimeRangeKind
	N    uint32
	A    uint64
	B    uint64
}

// TimeFilter pairs a TimeRange with the field it filters on.
type TimeFilter struct {
	Field TimeField
	Range TimeRange
}

// SizeFilterKind discriminates the SizeFilter variants.
type SizeFilterKind int

const (
	SizeGreaterThan SizeFilterKind = iota
	SizeLessThan
	SizeBetween
)

// SizeFilter is a tagged union over the size-predicate variants.
type SizeFilter struct {
	Kind SizeFilterKind
	Min  uint64
	Max  uint64
}

// PathFilter is one path-glob predicate: either an include or an
// exclude, per the post-filter PathMatcher semantics.
type PathFilter struct {
	Pattern string
	Exclude bool
}

// QueryFilters is the structured predicate set parsed out of the
// --flag=value tokens.
type QueryFilters struct {
	Paths     []PathFilter
	Time      *TimeFilter
	FileTypes []string
	Size      *SizeFilter
	Tags      []string
}

// ParsedQuery is the parser's output: the resolved search text, the
// raw space-joined non-flag text, and the structured filters.
type ParsedQuery struct {
	Text    string
	RawText string
	Filters QueryFilters
}
