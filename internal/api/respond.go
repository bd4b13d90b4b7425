package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/oceanwatch/hazard-monitor/internal/hazards"
	"github.com/oceanwatch/hazard-monitor/internal/ingest"
	"github.com/oceanwatch/hazard-monitor/internal/repo"
	"github.com/oceanwatch/hazard-monitor/internal/sources"
)

// Error codes of the JSON error envelope.
const (
	CodeInvalidInput  = "invalid_input"
	CodeUnauthorized  = "unauthorized"
	CodeForbidden     = "forbidden"
	CodeNotFound      = "not_found"
	CodeConflict      = "conflict"
	CodeRateLimited   = "rate_limited"
	CodeUpstream      = "upstream_error"
	CodeUnavailable   = "unavailable"
	CodeInternal      = "internal"
	CodeMethodInvalid = "method_not_allowed"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		RequestID: RequestID(r.Context()),
		Code:      code,
		Message:   message,
	})
}

// fail maps a service error onto the error envelope.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *sources.APIError
	switch {
	case errors.Is(err, hazards.ErrNotFound), errors.Is(err, repo.ErrNotFound):
		writeError(w, r, http.StatusNotFound, CodeNotFound, "resource not found")
	case errors.Is(err, hazards.ErrForbidden):
		writeError(w, r, http.StatusForbidden, CodeForbidden, "you do not have permission to perform this action")
	case errors.Is(err, hazards.ErrInvalidInput), errors.Is(err, ingest.ErrUnknownPlatform):
		writeError(w, r, http.StatusBadRequest, CodeInvalidInput, err.Error())
	case errors.Is(err, hazards.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "invalid credentials")
	case errors.Is(err, hazards.ErrUsernameTaken), errors.Is(err, hazards.ErrProfileExists), errors.Is(err, ingest.ErrRunInProgress):
		writeError(w, r, http.StatusConflict, CodeConflict, err.Error())
	case errors.Is(err, sources.ErrRateLimited):
		writeError(w, r, http.StatusTooManyRequests, CodeRateLimited, "upstream API rate limit reached")
	case errors.Is(err, sources.ErrDisabled):
		writeError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "platform is not configured")
	case errors.As(err, &apiErr):
		writeError(w, r, http.StatusBadGateway, CodeUpstream, err.Error())
	default:
		logrus.WithField("request_id", RequestID(r.Context())).Errorf("Request failed: %v", err)
		writeError(w, r, http.StatusInternalServerError, CodeInternal, "internal server error")
	}
}

// decode reads a JSON body into v. Unknown fields are ignored so that
// read-only attributes sent back by clients do not fail the request.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidInput, "malformed JSON body")
		return false
	}
	return true
}

// page reads limit and offset query parameters.
func page(r *http.Request, defaultLimit, maxLimit int) (limit, offset int, err error) {
	q := r.URL.Query()
	limit, err = intParam(q.Get("limit"), defaultLimit)
	if err != nil || limit < 1 {
		return 0, 0, errors.New("limit must be a positive integer")
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset, err = intParam(q.Get("offset"), 0)
	if err != nil || offset < 0 {
		return 0, 0, errors.New("offset must be a non-negative integer")
	}
	return limit, offset, nil
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

// pathID parses a positive numeric route variable.
func pathID(s string) (uint, bool) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
