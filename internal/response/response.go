// Package response defines the JSON response envelopes returned by
// the search and index operations, grounded on original_source/src/
// api/response.rs's SearchResponse/IndexResponse family.
package response

import (
	"fmt"
	"time"
)

// QueryInfo echoes back how a raw query string was interpreted.
type QueryInfo struct {
	RawQuery       string   `json:"raw_query"`
	SearchText     string   `json:"search_text"`
	Keywords       []string `json:"keywords,omitempty"`
	AppliedFilters []string `json:"applied_filters,omitempty"`
}

// HighlightPosition is the byte offset range a Highlight covers.
type HighlightPosition struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Highlight is one matched fragment from a single field.
type Highlight struct {
	Field    string             `json:"field"`
	Text     string             `json:"text"`
	Position *HighlightPosition `json:"position,omitempty"`
}

// FileMetadata is the metadata portion of a SearchResult.
type FileMetadata struct {
	FileType            string  `json:"file_type"`
	FileSize            uint64  `json:"file_size"`
	FileSizeDisplay      string  `json:"file_size_display"`
	CreatedTime          *uint64 `json:"created_time,omitempty"`
	ModifiedTime         *uint64 `json:"modified_time,omitempty"`
	IndexedTime          *uint64 `json:"indexed_time,omitempty"`
	CreatedTimeDisplay   *string `json:"created_time_display,omitempty"`
	ModifiedTimeDisplay  *string `json:"modified_time_display,omitempty"`
}

// NewFileMetadata builds a FileMetadata with the human-readable size
// already computed.
func NewFileMetadata(fileType string, fileSize uint64) FileMetadata {
	return FileMetadata{
		FileType:        fileType,
		FileSize:        fileSize,
		FileSizeDisplay: FormatFileSize(fileSize),
	}
}

// WithTimes fills in the three Unix-timestamp fields plus relative,
// human-readable display strings for the created and modified times.
func (m FileMetadata) WithTimes(created, modified, indexed *uint64, now time.Time) FileMetadata {
	m.CreatedTime = created
	m.ModifiedTime = modified
	m.IndexedTime = indexed
	if created != nil {
		d := FormatRelativeTime(*created, now)
		m.CreatedTimeDisplay = &d
	}
	if modified != nil {
		d := FormatRelativeTime(*modified, now)
		m.ModifiedTimeDisplay = &d
	}
	return m
}

// SearchResult is one ranked hit.
type SearchResult struct {
	Path       string       `json:"path"`
	Filename   string       `json:"filename"`
	ParentPath string       `json:"parent_path"`
	Score      float32      `json:"score"`
	Title      *string      `json:"title,omitempty"`
	Highlights []Highlight  `json:"highlights,omitempty"`
	Metadata   FileMetadata `json:"metadata"`
	Tags       []string     `json:"tags,omitempty"`
}

// Pagination describes the offset/limit window and whether more
// results exist beyond it.
type Pagination struct {
	Offset  int  `json:"offset"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"has_more"`
}

// NewPagination computes HasMore from total/offset/limit.
func NewPagination(offset, limit, total int) Pagination {
	return Pagination{
		Offset:  offset,
		Limit:   limit,
		HasMore: total > offset+limit,
	}
}

// Aggregations holds the optional facet counts.
type Aggregations struct {
	ByType      map[string]int `json:"by_type,omitempty"`
	ByDirectory map[string]int `json:"by_directory,omitempty"`
	ByTime      map[string]int `json:"by_time,omitempty"`
}

// SearchResponse is the top-level search result envelope.
type SearchResponse struct {
	Query        QueryInfo     `json:"query"`
	Results      []SearchResult `json:"results"`
	Total        int           `json:"total"`
	Pagination   Pagination    `json:"pagination"`
	Aggregations *Aggregations `json:"aggregations,omitempty"`
	TookMs       int64         `json:"took_ms"`
}

// IndexResponse is the envelope for a single indexed/reindexed file.
type IndexResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Path    string `json:"path"`
	TookMs  int64  `json:"took_ms"`
}

// IndexFailure records one file that failed during a batch index run.
type IndexFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
	// Code is the ferrors.Code string of the failure, letting callers
	// distinguish a per-file extraction miss from a fatal store error
	// without parsing the message text.
	Code string `json:"code"`
}

// BatchIndexResponse summarizes a directory-wide (re)index run.
type BatchIndexResponse struct {
	SuccessCount int            `json:"success_count"`
	FailedCount  int            `json:"failed_count"`
	Failures     []IndexFailure `json:"failures,omitempty"`
	TookMs       int64          `json:"took_ms"`
}

// ErrorResponse is the envelope returned for a failed request.
type ErrorResponse struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Details *string `json:"details,omitempty"`
}

// NewErrorResponse builds an ErrorResponse with no details.
func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{Code: code, Message: message}
}

// WithDetails attaches a details string.
func (e ErrorResponse) WithDetails(details string) ErrorResponse {
	e.Details = &details
	return e
}

// FormatFileSize renders bytes using the same 1024-based thresholds
// as the original's format_file_size.
func FormatFileSize(bytes uint64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// FormatRelativeTime renders a Unix timestamp relative to now, e.g.
// "3 minute(s) ago" / "2 day(s) ago", in English rather than the
// original's Chinese strings — the display language is presentation,
// not protocol.
func FormatRelativeTime(ts uint64, now time.Time) string {
	then := time.Unix(int64(ts), 0)
	if then.After(now) {
		return "in the future"
	}
	elapsed := now.Sub(then)

	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		mins := int(elapsed / time.Minute)
		return fmt.Sprintf("%d minute(s) ago", mins)
	case elapsed < 24*time.Hour:
		hours := int(elapsed / time.Hour)
		return fmt.Sprintf("%d hour(s) ago", hours)
	default:
		days := int(elapsed / (24 * time.Hour))
		return fmt.Sprintf("%d day(s) ago", days)
	}
}
