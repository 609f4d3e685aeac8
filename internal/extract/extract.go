// Package extract defines the Extractor collaborator contract: given
// a path, return its plain UTF-8 text or an "unsupported" signal. The
// extraction plug-ins themselves are an external collaborator outside
// this repository's scope; this package ships only the interface and
// a minimal default covering plain text so the Indexer has something
// concrete to call in tests and in a standalone daemon run.
package extract

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/fsearchd/fsearchd/internal/ferrors"
)

// Extractor turns a file at path into plain text. ErrUnsupported
// (wrapped as a ferrors.Extraction error) signals that the extension
// isn't handled; any other error signals an I/O failure reading the
// file.
type Extractor interface {
	Extract(path string) (text string, err error)
}

// DefaultExtractor handles the extensions a bare installation supports
// without any external extraction plug-in: plain text and Markdown
// read verbatim. PDF and any other extension not in supportedExts
// report ferrors.Extraction, matching the Indexer's "unsupported type
// or I/O error: abort" rule — a full PDF text layer extractor is an
// external collaborator and out of scope.
type DefaultExtractor struct {
	supportedExts map[string]struct{}
}

// New builds a DefaultExtractor for the given supported extensions
// (without leading dots, e.g. "txt", "md", "pdf").
func New(supportedExts []string) *DefaultExtractor {
	set := make(map[string]struct{}, len(supportedExts))
	for _, ext := range supportedExts {
		set[strings.ToLower(ext)] = struct{}{}
	}
	return &DefaultExtractor{supportedExts: set}
}

// Extract implements Extractor.
func (e *DefaultExtractor) Extract(path string) (string, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if _, ok := e.supportedExts[ext]; !ok {
		return "", ferrors.New(ferrors.Extraction, "unsupported file type").
			WithDetail("path", path).WithDetail("extension", ext)
	}

	switch ext {
	case "txt", "md":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", ferrors.Wrap(ferrors.Extraction, "read file", err)
		}
		return string(data), nil
	default:
		// Any other configured extension (e.g. "pdf") requires an
		// external extraction plug-in this repository doesn't ship.
		return "", ferrors.New(ferrors.Extraction, "no built-in extractor for file type").
			WithDetail("path", path).WithDetail("extension", ext)
	}
}
