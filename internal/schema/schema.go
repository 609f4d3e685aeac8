// Package schema declares the inverted-index field set, types, and
// tokenization described in the data model: a builder returning a
// bleve index mapping plus the field-name constants every other
// component addresses documents by.
package schema

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/cjk"
	"github.com/blevesearch/bleve/v2/mapping"
)

// Field name constants. Every component that reads or writes an
// IndexDocument addresses fields through these rather than literals.
const (
	FieldTitle        = "title"
	FieldBody         = "body"
	FieldTags         = "tags"
	FieldPath         = "path"
	FieldParentPath   = "parent_path"
	FieldFilename     = "filename"
	FieldFileType     = "file_type"
	FieldFileSize     = "file_size"
	FieldModifiedTime = "modified_time"
	FieldCreatedTime  = "created_time"
	FieldIndexedTime  = "indexed_time"
)

// TextAnalyzer is the analyzer used for tokenized, position-retaining
// fields. It is bleve's CJK analyzer, which segments mixed Chinese/
// Latin-script text while still producing the plain ASCII tokens a
// Latin-only document would expect — one analyzer covers both scripts
// named in the data model's tokenization requirement.
const TextAnalyzer = cjk.AnalyzerName

// New builds the index mapping for the store. Tokenizer/analyzer
// registration lives on the mapping itself; callers open the index
// with this mapping rather than registering tokenizers as a separate
// post-open step, since bleve resolves analyzers by name at mapping
// time.
func New() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	doc := bleve.NewDocumentMapping()

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = TextAnalyzer
	textField.Store = true
	textField.IncludeTermVectors = true // retains position info for phrase queries

	doc.AddFieldMappingsAt(FieldTitle, textField)
	doc.AddFieldMappingsAt(FieldBody, textField)
	doc.AddFieldMappingsAt(FieldTags, textField)

	exactField := bleve.NewTextFieldMapping()
	exactField.Analyzer = keyword.Name
	exactField.Store = true

	doc.AddFieldMappingsAt(FieldPath, exactField)
	doc.AddFieldMappingsAt(FieldParentPath, exactField)
	doc.AddFieldMappingsAt(FieldFilename, exactField)
	doc.AddFieldMappingsAt(FieldFileType, exactField)

	numericField := bleve.NewNumericFieldMapping()
	numericField.Store = true
	numericField.IncludeInAll = false

	doc.AddFieldMappingsAt(FieldFileSize, numericField)
	doc.AddFieldMappingsAt(FieldModifiedTime, numericField)
	doc.AddFieldMappingsAt(FieldCreatedTime, numericField)
	doc.AddFieldMappingsAt(FieldIndexedTime, numericField)

	im.DefaultMapping = doc
	im.DefaultAnalyzer = TextAnalyzer

	return im
}

// Document is the Go value bleve serializes into an IndexDocument.
// Field tags match the field name constants above so json.Marshal
// output matches what the mapping expects at index time.
type Document struct {
	Title        string   `json:"title"`
	Body         string   `json:"body"`
	Tags         []string `json:"tags"`
	Path         string   `json:"path"`
	ParentPath   string   `json:"parent_path"`
	Filename     string   `json:"filename"`
	FileType     string   `json:"file_type"`
	FileSize     uint64   `json:"file_size"`
	ModifiedTime uint64   `json:"modified_time"`
	CreatedTime  uint64   `json:"created_time"`
	IndexedTime  uint64   `json:"indexed_time"`
}
