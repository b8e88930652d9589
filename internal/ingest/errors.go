package ingest

import "fmt"

// Failure types recorded on the document and surfaced to callers. These are
// stable strings: operators filter on them when triaging failed runs.
const (
	FailureExtraction = "ExtractionFailure"
	FailureEmbedding  = "EmbeddingFailure"
	FailureStorage    = "StorageFailure"
)

// Error is a typed ingestion failure. The Type tells the operator which stage
// broke without parsing the wrapped cause.
type Error struct {
	Type string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Type, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
