package knowledge

import "errors"

var (
	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrConflict indicates an ingestion run is already in flight for the
	// document. Callers should not retry automatically.
	ErrConflict = errors.New("document is already being ingested")
)
