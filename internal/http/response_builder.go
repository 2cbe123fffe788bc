// Package http exposes the ledger services as a JSON API.
//
// This file builds JSON responses and maps typed service errors to
// status codes.
package http

import (
	"encoding/json"
	"net/http"

	"atelier/internal/core"
	"atelier/internal/log"
)

// ErrorBody is the payload of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Kind    core.ErrorKind `json:"kind"`
	Message string         `json:"message"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind core.ErrorKind) int {
	switch kind {
	case core.KindValidation:
		return http.StatusBadRequest
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindConflict, core.KindDuplicate:
		return http.StatusConflict
	case core.KindExceedsBalance:
		return http.StatusUnprocessableEntity
	case core.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// JSONResponse collects a status, headers and a body before writing them.
type JSONResponse struct {
	statusCode int
	headers    map[string]string
	body       any
}

func NewJSONResponse(body any) *JSONResponse {
	return &JSONResponse{statusCode: http.StatusOK, headers: map[string]string{}, body: body}
}

func (b *JSONResponse) Status(code int) *JSONResponse {
	b.statusCode = code
	return b
}

func (b *JSONResponse) Header(name, value string) *JSONResponse {
	b.headers[name] = value
	return b
}

// Write sends the response. Encoding happens before the header is written so
// an unencodable body still produces a clean 500.
func (b *JSONResponse) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	payload, err := json.Marshal(b.body)
	if err != nil {
		payload, _ = json.Marshal(ErrorBody{Error: ErrorDetail{Kind: core.KindInternal, Message: "internal error"}})
		b.statusCode = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(payload)
	_, _ = w.Write([]byte{'\n'})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	NewJSONResponse(body).Status(status).Write(w)
}

// writeError logs err and answers with its kind and client-safe message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := core.KindOf(err)
	status := statusFor(kind)

	logger := log.FromContext(r.Context())
	fields := log.NewFields().WithErrorKind(string(kind))
	if status >= http.StatusInternalServerError {
		op := r.Pattern
		if op == "" {
			op = r.Method + " " + r.URL.Path
		}
		log.NewStructuredLogger(logger).LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op, fields)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", fields.WithError(err).WithComponent(log.ComponentHTTP).ToSlice()...)
	}

	writeJSON(w, status, ErrorBody{Error: ErrorDetail{Kind: kind, Message: core.MessageOf(err)}})
}

// writeProblem answers with an error that did not come from the services.
func writeProblem(w http.ResponseWriter, status int, kind core.ErrorKind, msg string) {
	writeJSON(w, status, ErrorBody{Error: ErrorDetail{Kind: kind, Message: msg}})
}
