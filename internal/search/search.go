// Package search implements the Query Engine (C12): given a raw query
// string and pagination/highlight options, parse it, compose the
// composite text+filter query, run it against the Store, post-filter
// by path glob, and assemble a SearchResponse.
package search

import (
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2/search"

	"github.com/fsearchd/fsearchd/internal/query"
	"github.com/fsearchd/fsearchd/internal/response"
	"github.com/fsearchd/fsearchd/internal/schema"
	"github.com/fsearchd/fsearchd/internal/store"
)

// keywordExpansionThreshold is the Open Question (a) resolution: below
// this many runes of raw text, AI keyword expansion is skipped
// entirely and the composite text query is raw_text alone.
const keywordExpansionThreshold = 4

// KeywordExtractor mirrors internal/keywords.Extractor's shape without
// importing it directly, so callers can pass either the production
// extractor or nil (meaning "AI disabled" / unconfigured).
type KeywordExtractor interface {
	ExtractKeywords(text string, k int) []string
}

// Request is the programmatic search surface. Structured filters
// arrive embedded in Query via the grammar (internal/query.Parser)
// rather than a parallel JSON filter tree — the grammar already
// covers every filter kind, so a second representation would just be
// a redundant mirror.
type Request struct {
	Query               string
	Limit               int
	Offset              int
	Highlight           bool
	SnippetLength       int
	UseAI               bool
	KeywordCount        int
	IncludeAggregations bool
}

// DefaultRequest returns a Request with the spec's documented
// defaults (limit=20, offset=0, highlight=true, snippet_length=200,
// use_ai=true) for the given query text.
func DefaultRequest(q string) Request {
	return Request{
		Query:         q,
		Limit:         20,
		Offset:        0,
		Highlight:     true,
		SnippetLength: 200,
		UseAI:         true,
		KeywordCount:  3,
	}
}

// Engine runs queries against a Store using a Parser for grammar
// parsing and an optional KeywordExtractor for AI query expansion.
type Engine struct {
	store     *store.Store
	parser    *query.Parser
	extractor KeywordExtractor
	now       func() time.Time
}

// New builds an Engine. extractor may be nil, meaning AI keyword
// expansion is never performed regardless of Request.UseAI.
func New(s *store.Store, extractor KeywordExtractor) *Engine {
	return &Engine{
		store:     s,
		parser:    query.New(),
		extractor: extractor,
		now:       time.Now,
	}
}

// Search parses the query, expands it with AI keywords when
// enabled, compiles the composite bleve query, runs it, post-filters
// by path glob, paginates, and assembles a SearchResponse.
func (e *Engine) Search(req Request) (*response.SearchResponse, error) {
	start := time.Now()

	if req.Limit <= 0 {
		req.Limit = 20
	}
	if req.SnippetLength <= 0 {
		req.SnippetLength = 200
	}
	if req.KeywordCount <= 0 {
		req.KeywordCount = 3
	}

	parsed := e.parser.Parse(req.Query)
	keywords := e.expandKeywords(req, parsed.Text)

	queryInfo := response.QueryInfo{
		RawQuery:       req.Query,
		SearchText:     parsed.Text,
		Keywords:       keywords,
		AppliedFilters: describeFilters(parsed.Filters),
	}

	composed := parsed
	composed.Text = composeQueryText(parsed.Text, keywords)
	finalQuery := query.Compile(composed, e.now())

	n := req.Limit + req.Offset
	result, err := e.store.Search(finalQuery, n, 0, req.Highlight)
	if err != nil {
		return nil, err
	}

	pathMatcher := query.NewPathMatcher(parsed.Filters.Paths)

	var aggregations *response.Aggregations
	if req.IncludeAggregations {
		aggregations = aggregateByFileType(result.Hits)
	}

	results := make([]response.SearchResult, 0, req.Limit)
	skipped := 0
	now := e.now()
	for _, hit := range result.Hits {
		path := stringField(hit.Fields, schema.FieldPath)
		if !pathMatcher.Match(path) {
			continue
		}
		if skipped < req.Offset {
			skipped++
			continue
		}
		if len(results) >= req.Limit {
			break
		}
		results = append(results, hitToResult(hit, req, now))
	}

	resp := &response.SearchResponse{
		Query:        queryInfo,
		Results:      results,
		Total:        int(result.Total),
		Pagination:   response.NewPagination(req.Offset, req.Limit, int(result.Total)),
		Aggregations: aggregations,
		TookMs:       time.Since(start).Milliseconds(),
	}
	return resp, nil
}

// expandKeywords runs the AI keyword extractor over parsed text when
// enabled, UseAI is set, and the text clears keywordExpansionThreshold
// runes. Extractor failure or a nil extractor both degrade to an
// empty keyword list — never fatal.
func (e *Engine) expandKeywords(req Request, text string) []string {
	if !req.UseAI || e.extractor == nil {
		return nil
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) < keywordExpansionThreshold {
		return nil
	}
	return e.extractor.ExtractKeywords(text, req.KeywordCount)
}

// composeQueryText unions parsed text with space-joined keywords
// into one composite string. query.Compile turns an empty composite
// into a match-all and a non-empty one into a MatchQuery over the
// default (all-fields) analyzer, and ANDs in every active structured
// filter in the same pass.
func composeQueryText(text string, keywords []string) string {
	if len(keywords) == 0 {
		return text
	}
	kwText := strings.Join(keywords, " ")
	if text == "" {
		return kwText
	}
	return text + " " + kwText
}

// describeFilters renders the applied-filter summaries echoed back in
// QueryInfo, one short human-readable string per active filter.
func describeFilters(f query.QueryFilters) []string {
	var out []string
	for _, p := range f.Paths {
		if p.Exclude {
			out = append(out, "exclude path: "+p.Pattern)
		} else {
			out = append(out, "path: "+p.Pattern)
		}
	}
	if f.Time != nil {
		out = append(out, "time filter applied")
	}
	if len(f.FileTypes) > 0 {
		out = append(out, "type: "+strings.Join(f.FileTypes, ","))
	}
	if len(f.Tags) > 0 {
		out = append(out, "tags: "+strings.Join(f.Tags, ","))
	}
	if f.Size != nil {
		out = append(out, "size filter applied")
	}
	return out
}

// aggregateByFileType tallies file_type occurrences across the full
// top-N candidate set, before the post-filter pass runs, per
// SPEC_FULL.md supplemented feature 7.
func aggregateByFileType(hits search.DocumentMatchCollection) *response.Aggregations {
	byType := make(map[string]int)
	for _, hit := range hits {
		ft := stringField(hit.Fields, schema.FieldFileType)
		if ft == "" {
			continue
		}
		byType[ft]++
	}
	return &response.Aggregations{ByType: byType}
}

// hitToResult assembles a SearchResult from a bleve hit's stored
// fields.
func hitToResult(hit *search.DocumentMatch, req Request, now time.Time) response.SearchResult {
	path := stringField(hit.Fields, schema.FieldPath)
	filename := stringField(hit.Fields, schema.FieldFilename)
	parentPath := stringField(hit.Fields, schema.FieldParentPath)
	fileType := stringField(hit.Fields, schema.FieldFileType)
	fileSize := uint64Field(hit.Fields, schema.FieldFileSize)
	modifiedTime := uint64PtrField(hit.Fields, schema.FieldModifiedTime)
	createdTime := uint64PtrField(hit.Fields, schema.FieldCreatedTime)
	indexedTime := uint64PtrField(hit.Fields, schema.FieldIndexedTime)
	tags := stringSliceField(hit.Fields, schema.FieldTags)

	var titlePtr *string
	if title := stringField(hit.Fields, schema.FieldTitle); title != "" {
		titlePtr = &title
	}

	metadata := response.NewFileMetadata(fileType, fileSize).
		WithTimes(createdTime, modifiedTime, indexedTime, now)

	var highlights []response.Highlight
	if req.Highlight {
		if body := stringField(hit.Fields, schema.FieldBody); body != "" {
			highlights = []response.Highlight{{
				Field: schema.FieldBody,
				Text:  truncatePreview(body, req.SnippetLength),
			}}
		}
	}

	if filename == "" {
		filename = filepath.Base(path)
	}
	if parentPath == "" {
		parentPath = filepath.Dir(path)
	}

	return response.SearchResult{
		Path:       path,
		Filename:   filename,
		ParentPath: parentPath,
		Score:      float32(hit.Score),
		Title:      titlePtr,
		Highlights: highlights,
		Metadata:   metadata,
		Tags:       tags,
	}
}

// sentenceBoundary is the set of sentence-ending punctuation the
// original's format_content_preview looks for, covering both ASCII
// and the CJK full-width equivalents since body text is mixed-script.
const sentenceBoundary = ".!?;。！？；"

// truncatePreview truncates body to at most max runes, preferring to
// cut at the nearest sentence-ending punctuation at or before the
// cutoff, falling back to the nearest whitespace boundary, falling
// back to a hard cutoff — always on a valid rune boundary. The two
// fallbacks append "...", which may take the result past max runes.
// Grounded in original_source/src/extract.rs's format_content_preview.
func truncatePreview(body string, max int) string {
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}

	window := runes[:max]

	for i := len(window) - 1; i >= 0; i-- {
		if strings.ContainsRune(sentenceBoundary, window[i]) {
			return strings.TrimSpace(string(window[:i+1]))
		}
	}

	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == ' ' || window[i] == '\n' || window[i] == '\t' {
			return strings.TrimSpace(string(window[:i])) + "..."
		}
	}

	return string(window) + "..."
}

func stringField(fields map[string]interface{}, name string) string {
	v, ok := fields[name]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func stringSliceField(fields map[string]interface{}, name string) []string {
	v, ok := fields[name]
	if !ok {
		return nil
	}
	switch val := v.(type) {
	case string:
		return []string{val}
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func uint64Field(fields map[string]interface{}, name string) uint64 {
	v, ok := fields[name]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return uint64(n)
	default:
		return 0
	}
}

func uint64PtrField(fields map[string]interface{}, name string) *uint64 {
	v, ok := fields[name]
	if !ok {
		return nil
	}
	n, ok := v.(float64)
	if !ok {
		return nil
	}
	u := uint64(n)
	return &u
}
