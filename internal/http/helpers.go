package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"duitku/internal/core"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *core.ValidationError
	var lerr *core.MonthLockedError

	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: errorBody{
			Code:    "VALIDATION_ERROR",
			Message: verr.Error(),
		}})
	case errors.As(err, &lerr):
		respondJSON(w, http.StatusForbidden, errorResponse{Error: errorBody{
			Code:    "MONTH_LOCKED",
			Message: lerr.Error(),
		}})
	case errors.Is(err, core.ErrNotFound):
		respondJSON(w, http.StatusNotFound, errorResponse{Error: errorBody{
			Code:    "NOT_FOUND",
			Message: "resource not found",
		}})
	case errors.Is(err, core.ErrDuplicateName):
		respondJSON(w, http.StatusConflict, errorResponse{Error: errorBody{
			Code:    "DUPLICATE_NAME",
			Message: "a record with that name already exists",
		}})
	default:
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: errorBody{
			Code:    "INTERNAL_ERROR",
			Message: "internal server error",
		}})
	}
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &core.ValidationError{Field: "body", Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return nil
}

func validationErr(field, reason string) error {
	return &core.ValidationError{Field: field, Reason: reason}
}

func requireMonth(value string) (string, error) {
	if !core.ValidYearMonth(value) {
		return "", &core.ValidationError{Field: "month", Reason: "must match YYYY-MM"}
	}
	return value, nil
}
