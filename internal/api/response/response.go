// Package response writes the JSON envelopes every endpoint returns:
// {"data": ...} on success and {"error": {...}} on failure.
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type envelope struct {
	Data any `json:"data"`
}

type collectionEnvelope struct {
	Data any            `json:"data"`
	Meta PaginationMeta `json:"meta"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// PaginationMeta describes one page of a collection.
type PaginationMeta struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	HasNext bool `json:"has_next"`
}

func JSON(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Data: data})
}

func Created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, envelope{Data: data})
}

// NoContent writes an empty 204 response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func Collection(w http.ResponseWriter, data any, meta PaginationMeta) {
	writeJSON(w, http.StatusOK, collectionEnvelope{Data: data, Meta: meta})
}

// Paginate cuts page (counted from 1) of size limit out of items. The window
// is never nil, so an empty page encodes as []. page and limit must be
// positive.
func Paginate[T any](items []T, page, limit int) ([]T, PaginationMeta) {
	start := min((page-1)*limit, len(items))
	end := min(start+limit, len(items))
	window := make([]T, end-start)
	copy(window, items[start:end])
	return window, PaginationMeta{
		Page:    page,
		Limit:   limit,
		Total:   len(items),
		HasNext: end < len(items),
	}
}

func Error(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{
		Code:    code,
		Message: message,
		Details: details,
	}})
}

// InternalError writes the 500 INTERNAL_ERROR envelope. Details should carry
// only what is safe to show a client, such as a batch index or request ID.
func InternalError(w http.ResponseWriter, details any) {
	Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", details)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response", "error", err)
	}
}
