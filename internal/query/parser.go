package query

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// argPattern matches --key=value or --key="value with spaces".
var argPattern = regexp.MustCompile(`--([a-z\-]+)=(?:"([^"]*)"|(\S+))`)

// sizePattern matches >N<unit>, <N<unit>, or Nu-Mu ranges.
var sizePattern = regexp.MustCompile(`^([<>])?(\d+(?:\.\d+)?)(kb|mb|gb|b)?(?:-(\d+(?:\.\d+)?)(kb|mb|gb|b)?)?$`)

// timeRelativePattern matches relative time windows like 7d, 24h, 1w, 3m.
var timeRelativePattern = regexp.MustCompile(`^(\d+)(h|d|w|m)$`)

// KeywordExtractor turns free text into the "core text" used for the
// composite text query. It stands in for the AI keyword-extraction
// collaborator named in the grammar description; nil means no
// extractor is configured and raw_text is used verbatim.
type KeywordExtractor func(text string) string

// Parser implements the regex-driven flag grammar.
type Parser struct {
	extractor KeywordExtractor
}

// New creates a Parser with no keyword extractor configured.
func New() *Parser {
	return &Parser{}
}

// WithKeywordExtractor returns a copy of the parser that rewrites
// raw_text through extractor to produce the core text.
func (p *Parser) WithKeywordExtractor(extractor KeywordExtractor) *Parser {
	return &Parser{extractor: extractor}
}

// Parse parses input into a ParsedQuery. The parser is total:
// unparseable flag values are dropped silently, unknown keys are
// ignored, and an empty text part is legal.
func (p *Parser) Parse(input string) ParsedQuery {
	input = strings.TrimSpace(input)

	args := make(map[string][]string)
	var textParts []string

	lastEnd := 0
	for _, m := range argPattern.FindAllStringSubmatchIndex(input, -1) {
		start, end := m[0], m[1]
		if start > lastEnd {
			textParts = append(textParts, strings.TrimSpace(input[lastEnd:start]))
		}
		lastEnd = end

		key := input[m[2]:m[3]]
		var value string
		if m[4] != -1 {
			value = input[m[4]:m[5]] // quoted
		} else if m[6] != -1 {
			value = input[m[6]:m[7]] // bareword
		}
		args[key] = append(args[key], value)
	}
	if lastEnd < len(input) {
		textParts = append(textParts, strings.TrimSpace(input[lastEnd:]))
	}

	var nonEmpty []string
	for _, part := range textParts {
		if part != "" {
			nonEmpty = append(nonEmpty, part)
		}
	}
	rawText := strings.TrimSpace(strings.Join(nonEmpty, " "))

	text := rawText
	if p.extractor != nil && rawText != "" {
		text = p.extractor(rawText)
	}

	return ParsedQuery{
		Text:    text,
		RawText: rawText,
		Filters: p.parseFilters(args),
	}
}

func first(args map[string][]string, key string) (string, bool) {
	v, ok := args[key]
	if !ok || len(v) == 0 {
		return "", false
	}
	return v[0], true
}

func splitCSV(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (p *Parser) parseFilters(args map[string][]string) QueryFilters {
	var filters QueryFilters

	for _, pat := range args["path"] {
		filters.Paths = append(filters.Paths, PathFilter{Pattern: pat, Exclude: false})
	}
	for _, pat := range args["exclude-path"] {
		filters.Paths = append(filters.Paths, PathFilter{Pattern: pat, Exclude: true})
	}

	for _, t := range splitCSV(args["type"]) {
		filters.FileTypes = append(filters.FileTypes, strings.ToLower(t))
	}

	filters.Tags = splitCSV(args["tag"])

	timeField := FieldModified
	if v, ok := first(args, "time-field"); ok {
		switch v {
		case "created":
			timeField = FieldCreated
		case "indexed":
			timeField = FieldIndexed
		}
	}

	if v, ok := first(args, "time"); ok {
		if rng, ok := parseTimeRange(v); ok {
			filters.Time = &TimeFilter{Field: timeField, Range: rng}
		}
	} else if v, ok := first(args, "after"); ok {
		if ts, ok := parseDate(v); ok {
			filters.Time = &TimeFilter{Field: timeField, Range: TimeRange{Kind: RangeAfter, A: ts}}
		}
	} else if v, ok := first(args, "before"); ok {
		if ts, ok := parseDate(v); ok {
			filters.Time = &TimeFilter{Field: timeField, Range: TimeRange{Kind: RangeBefore, A: ts}}
		}
	}

	if v, ok := first(args, "size"); ok {
		filters.Size = parseSizeFilter(v)
	}

	return filters
}

func parseTimeRange(s string) (TimeRange, bool) {
	s = strings.ToLower(s)

	switch s {
	case "today":
		return TimeRange{Kind: RangeToday}, true
	case "week", "this-week":
		return TimeRange{Kind: RangeThisWeek}, true
	case "month", "this-month":
		return TimeRange{Kind: RangeThisMonth}, true
	}

	m := timeRelativePattern.FindStringSubmatch(s)
	if m == nil {
		return TimeRange{}, false
	}
	num, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return TimeRange{}, false
	}
	switch m[2] {
	case "h":
		return TimeRange{Kind: RangeLastHours, N: uint32(num)}, true
	case "d":
		return TimeRange{Kind: RangeLastDays, N: uint32(num)}, true
	case "w":
		return TimeRange{Kind: RangeLastWeeks, N: uint32(num)}, true
	case "m":
		return TimeRange{Kind: RangeLastMonths, N: uint32(num)}, true
	default:
		return TimeRange{}, false
	}
}

// parseDate parses YYYY-MM-DD in UTC, returning Unix seconds. Unlike
// the distilled original's simplified day-count arithmetic, this uses
// the standard calendar — nothing in the spec asks for the original's
// 30-day-month approximation to carry over to absolute dates (only
// Today/ThisWeek/ThisMonth are deliberately calendar-free).
func parseDate(s string) (uint64, bool) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return 0, false
	}
	return uint64(t.UTC().Unix()), true
}

func parseSizeFilter(s string) *SizeFilter {
	s = strings.ToLower(s)
	m := sizePattern.FindStringSubmatch(s)
	if m == nil {
		return nil
	}

	op := m[1]
	num1, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return nil
	}
	unit1 := m[3]
	if unit1 == "" {
		unit1 = "b"
	}
	size1, ok := sizeBytes(num1, unit1)
	if !ok {
		return nil
	}

	if m[4] != "" {
		num2, err := strconv.ParseFloat(m[4], 64)
		if err != nil {
			return nil
		}
		unit2 := m[5]
		if unit2 == "" {
			unit2 = "b"
		}
		size2, ok := sizeBytes(num2, unit2)
		if !ok {
			return nil
		}
		return &SizeFilter{Kind: SizeBetween, Min: size1, Max: size2}
	}

	switch op {
	case ">":
		return &SizeFilter{Kind: SizeGreaterThan, Min: size1}
	case "<":
		return &SizeFilter{Kind: SizeLessThan, Max: size1}
	default:
		// Missing operator defaults to LessThan.
		return &SizeFilter{Kind: SizeLessThan, Max: size1}
	}
}

func sizeBytes(num float64, unit string) (uint64, bool) {
	var multiplier float64
	switch unit {
	case "b":
		multiplier = 1
	case "kb":
		multiplier = 1024
	case "mb":
		multiplier = 1024 * 1024
	case "gb":
		multiplier = 1024 * 1024 * 1024
	default:
		return 0, false
	}
	return uint64(num * multiplier), true
}
