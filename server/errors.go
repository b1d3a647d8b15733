package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/feed"
	"github.com/poiesic/ragline/index"
	"github.com/poiesic/ragline/query"
)

// Error codes returned in the response envelope.
const (
	CodeInvalidRequest   = "invalid_request"
	CodeEmbeddingFailed  = "embedding_failed"
	CodeRetrievalFailed  = "retrieval_failed"
	CodeGenerationFailed = "generation_failed"
	CodeMisconfigured    = "misconfigured"
	CodeUnavailable      = "unavailable"
	CodeInternal         = "internal_error"
)

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx response. Accepted is set when
// an ingest request failed after some of its events were enqueued.
type ErrorResponse struct {
	Error    ErrorDetail `json:"error"`
	Accepted int         `json:"accepted,omitempty"`
}

// classify maps an error to a status code and a client-safe detail.
// Messages never include upstream error text, which may name models or
// hosts.
func classify(err error) (int, ErrorDetail) {
	switch {
	case errors.Is(err, core.ErrInvalidRequest), errors.Is(err, core.ErrInvalidEvent):
		return http.StatusBadRequest, ErrorDetail{CodeInvalidRequest, err.Error()}

	case errors.Is(err, query.ErrQueryEmbedding):
		return http.StatusInternalServerError, ErrorDetail{CodeEmbeddingFailed, "query embedding failed"}

	case errors.Is(err, query.ErrRetrievalFailed):
		return http.StatusBadGateway, ErrorDetail{CodeRetrievalFailed, "vector index request failed"}

	case errors.Is(err, query.ErrGenerationFailed):
		if errors.Is(err, ai.ErrGenerationUnavailable) {
			return http.StatusInternalServerError, ErrorDetail{CodeMisconfigured, "generation model unavailable"}
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusBadGateway, ErrorDetail{CodeGenerationFailed, "generation timed out"}
		}
		return http.StatusBadGateway, ErrorDetail{CodeGenerationFailed, "answer generation failed"}

	case errors.Is(err, feed.ErrFeedClosed):
		return http.StatusServiceUnavailable, ErrorDetail{CodeUnavailable, "ingestion is not accepting events"}

	case errors.Is(err, index.ErrIndexUnavailable):
		return http.StatusBadGateway, ErrorDetail{CodeUnavailable, "vector index unavailable"}
	}
	return http.StatusInternalServerError, ErrorDetail{CodeInternal, "internal error"}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail ErrorDetail) {
	writeJSON(w, status, ErrorResponse{Error: detail})
}
