package query

import (
	"time"

	"github.com/blevesearch/bleve/v2"
	bleveQuery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/fsearchd/fsearchd/internal/schema"
)

// timeFieldName maps a TimeField to the schema field it filters on.
func timeFieldName(f TimeField) string {
	switch f {
	case FieldCreated:
		return schema.FieldCreatedTime
	case FieldIndexed:
		return schema.FieldIndexedTime
	default:
		return schema.FieldModifiedTime
	}
}

// resolveTimeBounds turns a TimeRange into concrete [min, max) Unix
// second bounds, anchored at now. Open bounds are represented as nil.
func resolveTimeBounds(r TimeRange, now time.Time) (min, max *float64) {
	f := func(v float64) *float64 { return &v }

	switch r.Kind {
	case RangeLastHours:
		return f(float64(now.Add(-time.Duration(r.N) * time.Hour).Unix())), nil
	case RangeLastDays:
		return f(float64(now.AddDate(0, 0, -int(r.N)).Unix())), nil
	case RangeLastWeeks:
		return f(float64(now.AddDate(0, 0, -7*int(r.N)).Unix())), nil
	case RangeLastMonths:
		return f(float64(now.AddDate(0, -int(r.N), 0).Unix())), nil
	case RangeBetween:
		return f(float64(r.A)), f(float64(r.B))
	case RangeAfter:
		return f(float64(r.A)), nil
	case RangeBefore:
		return nil, f(float64(r.A))
	case RangeToday:
		const daySeconds = 86400
		start := (now.Unix() / daySeconds) * daySeconds
		return f(float64(start)), nil
	case RangeThisWeek:
		const daySeconds = 86400
		start := now.Unix() - 7*daySeconds
		return f(float64(start)), nil
	case RangeThisMonth:
		const daySeconds = 86400
		start := now.Unix() - 30*daySeconds
		return f(float64(start)), nil
	default:
		return nil, nil
	}
}

func numericRangeQuery(field string, min, max *float64) bleveQuery.Query {
	q := bleve.NewNumericRangeQuery(min, max)
	q.SetField(field)
	return q
}

// termDisjunction builds an OR of exact-match TermQuery clauses over
// field, one per value.
func termDisjunction(field string, values []string) bleveQuery.Query {
	clauses := make([]bleveQuery.Query, 0, len(values))
	for _, v := range values {
		tq := bleve.NewTermQuery(v)
		tq.SetField(field)
		clauses = append(clauses, tq)
	}
	return bleve.NewDisjunctionQuery(clauses...)
}

// Compile builds the full bleve query for a ParsedQuery: the text
// query ANDed (Must-occurrence) with every active structured filter.
// Path filters are deliberately excluded here — they are applied as a
// post-filter over hits via PathMatcher, never compiled into the
// index query, since glob semantics don't map onto bleve's term
// index.
func Compile(pq ParsedQuery, now time.Time) bleveQuery.Query {
	must := make([]bleveQuery.Query, 0, 4)

	if pq.Text != "" {
		must = append(must, bleve.NewMatchQuery(pq.Text))
	} else {
		must = append(must, bleve.NewMatchAllQuery())
	}

	if pq.Filters.Time != nil {
		min, max := resolveTimeBounds(pq.Filters.Time.Range, now)
		if min != nil || max != nil {
			must = append(must, numericRangeQuery(timeFieldName(pq.Filters.Time.Field), min, max))
		}
	}

	if len(pq.Filters.FileTypes) > 0 {
		must = append(must, termDisjunction(schema.FieldFileType, pq.Filters.FileTypes))
	}

	if len(pq.Filters.Tags) > 0 {
		must = append(must, termDisjunction(schema.FieldTags, pq.Filters.Tags))
	}

	if sf := pq.Filters.Size; sf != nil {
		var min, max *float64
		switch sf.Kind {
		case SizeGreaterThan:
			v := float64(sf.Min)
			min = &v
		case SizeLessThan:
			v := float64(sf.Max)
			max = &v
		case SizeBetween:
			minV, maxV := float64(sf.Min), float64(sf.Max)
			min, max = &minV, &maxV
		}
		must = append(must, numericRangeQuery(schema.FieldFileSize, min, max))
	}

	if len(must) == 1 {
		return must[0]
	}
	return bleve.NewConjunctionQuery(must...)
}
