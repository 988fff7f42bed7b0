// Package validator checks document batches at the service boundary and
// reports per-field problems.
package validator

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/bloom-search/internal/indexer/store"
)

// Limits bounds what a single batch may carry. Zero disables a limit.
type Limits struct {
	MaxBatchSize  int
	MaxTextLength int
	MaxIDLength   int
}

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// ValidateDocuments checks a batch against limits. Empty text is allowed;
// such a document simply never matches.
func ValidateDocuments(docs []store.Document, limits Limits) error {
	errs := make(map[string]string)
	if len(docs) == 0 {
		errs["documents"] = "at least one document is required"
	} else if limits.MaxBatchSize > 0 && len(docs) > limits.MaxBatchSize {
		errs["documents"] = fmt.Sprintf("batch must hold at most %d documents", limits.MaxBatchSize)
	}
	for i, doc := range docs {
		field := fmt.Sprintf("documents[%d]", i)
		switch {
		case strings.TrimSpace(doc.ID) == "":
			errs[field+".id"] = "id is required"
		case limits.MaxIDLength > 0 && len(doc.ID) > limits.MaxIDLength:
			errs[field+".id"] = fmt.Sprintf("id must be at most %d bytes", limits.MaxIDLength)
		}
		if limits.MaxTextLength > 0 && utf8.RuneCountInString(doc.Text) > limits.MaxTextLength {
			errs[field+".text"] = fmt.Sprintf("text must be at most %d characters", limits.MaxTextLength)
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// ValidateQuery checks the raw query text.
func ValidateQuery(text string, maxLength int) error {
	if maxLength > 0 && utf8.RuneCountInString(text) > maxLength {
		return &ValidationError{Fields: map[string]string{
			"q": fmt.Sprintf("query must be at most %d characters", maxLength),
		}}
	}
	return nil
}
