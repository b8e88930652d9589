package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/crewbrief/crewbrief/internal/ingest"
	"github.com/crewbrief/crewbrief/internal/knowledge"
)

var errMissingDeps = errors.New("documents, ingestor and adviser are required")

// maxIngestBody bounds one uploaded document. Larger manuals should be split
// at the source.
const maxIngestBody = 10 << 20 // 10 MiB

// documentJSON is the wire shape of a source document.
type documentJSON struct {
	ID               uuid.UUID `json:"id"`
	Title            string    `json:"title"`
	OwnerScopeID     *string   `json:"owner_scope_id,omitempty"`
	Tags             []string  `json:"tags,omitempty"`
	OriginalFilename string    `json:"original_filename,omitempty"`
	StorageLocator   string    `json:"storage_locator,omitempty"`
	Status           string    `json:"status"`
	ChunkCount       int       `json:"chunk_count"`
	ByteSize         int64     `json:"byte_size"`
	FailureCause     string    `json:"failure_cause,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toDocumentJSON(doc *knowledge.SourceDocument) documentJSON {
	return documentJSON{
		ID:               doc.ID,
		Title:            doc.Title,
		OwnerScopeID:     doc.OwnerScopeID,
		Tags:             doc.Tags,
		OriginalFilename: doc.OriginalFilename,
		StorageLocator:   doc.StorageLocator,
		Status:           doc.Status,
		ChunkCount:       doc.ChunkCount,
		ByteSize:         doc.ByteSize,
		FailureCause:     doc.FailureCause,
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
	}
}

// CreateDocument registers document metadata in pending state.
// POST /api/v1/documents
func (h *Handlers) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title            string   `json:"title"`
		OwnerScopeID     *string  `json:"owner_scope_id"`
		Tags             []string `json:"tags"`
		OriginalFilename string   `json:"original_filename"`
		StorageLocator   string   `json:"storage_locator"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Title == "" {
		writeError(w, h.logger, http.StatusBadRequest, "title is required")
		return
	}

	doc := &knowledge.SourceDocument{
		Title:            req.Title,
		OwnerScopeID:     req.OwnerScopeID,
		Tags:             req.Tags,
		OriginalFilename: req.OriginalFilename,
		StorageLocator:   req.StorageLocator,
	}
	if err := h.documents.Create(r.Context(), doc); err != nil {
		h.logger.Error("registering document", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "could not register document")
		return
	}

	created, err := h.documents.Get(r.Context(), doc.ID)
	if err != nil {
		h.logger.Error("loading created document", "id", doc.ID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "could not load document")
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, toDocumentJSON(created))
}

// GetDocument returns one document's metadata and ingestion status.
// GET /api/v1/documents/{id}
func (h *Handlers) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid document id")
		return
	}

	doc, err := h.documents.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, knowledge.ErrNotFound) {
			writeError(w, h.logger, http.StatusNotFound, "document not found")
			return
		}
		h.logger.Error("loading document", "id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "could not load document")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, toDocumentJSON(doc))
}

// ListDocuments returns registered documents, newest first.
// GET /api/v1/documents
func (h *Handlers) ListDocuments(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, h.logger, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	docs, err := h.documents.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing documents", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "could not list documents")
		return
	}

	out := make([]documentJSON, len(docs))
	for i, doc := range docs {
		out[i] = toDocumentJSON(doc)
	}
	writeJSON(w, h.logger, http.StatusOK, struct {
		Documents []documentJSON `json:"documents"`
	}{Documents: out})
}

// IngestDocument runs ingestion with the request body as the document's
// extracted text.
// POST /api/v1/documents/{id}/ingest
func (h *Handlers) IngestDocument(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid document id")
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBody+1))
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "could not read request body")
		return
	}
	if len(raw) > maxIngestBody {
		writeError(w, h.logger, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("document exceeds %d bytes", maxIngestBody))
		return
	}

	result, err := h.ingestor.Ingest(r.Context(), id, raw)
	if err != nil {
		switch {
		case errors.Is(err, knowledge.ErrNotFound):
			writeError(w, h.logger, http.StatusNotFound, "document not found")
		case errors.Is(err, knowledge.ErrConflict):
			writeError(w, h.logger, http.StatusConflict, "ingestion already in progress")
		default:
			var ingestErr *ingest.Error
			if errors.As(err, &ingestErr) {
				writeJSON(w, h.logger, http.StatusUnprocessableEntity, struct {
					FailureType string `json:"failure_type"`
					Error       string `json:"error"`
				}{FailureType: ingestErr.Type, Error: ingestErr.Error()})
				return
			}
			h.logger.Error("ingesting document", "id", id, "error", err)
			writeError(w, h.logger, http.StatusInternalServerError, "ingestion failed")
		}
		return
	}

	writeJSON(w, h.logger, http.StatusOK, struct {
		ChunksCreated int    `json:"chunks_created"`
		Bytes         int64  `json:"bytes"`
		Type          string `json:"type"`
	}{ChunksCreated: result.ChunksCreated, Bytes: result.Bytes, Type: result.Type})
}
