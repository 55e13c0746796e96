package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"bcchrates-service/internal/application"
	"bcchrates-service/internal/domain"
	"bcchrates-service/internal/infrastructure/logx"

	"go.uber.org/zap"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Code: codeFor(status), Message: msg})
}

func codeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusServiceUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// writeAppError maps application and domain errors onto HTTP statuses.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, application.ErrBadRequest),
		errors.Is(err, domain.ErrInvalidRange),
		errors.Is(err, domain.ErrUnsupportedPair):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, application.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		rid, _ := r.Context().Value(requestIDKey).(string)
		logx.L().Error("http.internal_error", zap.String("path", r.URL.Path), zap.String("request_id", rid), zap.Error(err))
		writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}
