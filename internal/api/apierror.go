// Package api exposes the evidence pipeline over HTTP: the inbound
// webhook, the query endpoints for proofs and verification, and the
// health/status surface, wired to the pipeline components underneath.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// ProblemDetail implements RFC 7807 (Problem Details for HTTP APIs). All
// vcpd API error responses use this format.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	TraceID  string `json:"trace_id,omitempty"`
}

func (p *ProblemDetail) Error() string {
	return fmt.Sprintf("%s: %s", p.Title, p.Detail)
}

// writeError writes an RFC 7807 Problem Detail JSON response, enriched
// with request context (trace_id from X-Request-ID, instance from the
// request path).
func writeError(w http.ResponseWriter, r *http.Request, status int, title, detail string) {
	problem := &ProblemDetail{
		Type:     fmt.Sprintf("https://vcp.internal/errors/%d", status),
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
		TraceID:  w.Header().Get("X-Request-ID"),
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problem)
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, detail string) {
	writeError(w, r, http.StatusBadRequest, "Bad Request", detail)
}

func writeNotFound(w http.ResponseWriter, r *http.Request, detail string) {
	writeError(w, r, http.StatusNotFound, "Not Found", detail)
}

func writeMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusMethodNotAllowed, "Method Not Allowed", "the HTTP method is not supported for this endpoint")
}

func writeTooManyRequests(w http.ResponseWriter, r *http.Request, retryAfterSecs int) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSecs))
	writeError(w, r, http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded, retry after the specified interval")
}

// writeInternal writes a 500 error response. err is logged but never
// exposed to the caller: a signing or persistence failure surfaces as a
// 500 with no internal detail on the wire.
func writeInternal(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	logger.Error("internal server error", "error", err, "path", r.URL.Path, "request_id", requestID(r.Context()))
	writeError(w, r, http.StatusInternalServerError, "Internal Server Error", "an unexpected error occurred")
}
