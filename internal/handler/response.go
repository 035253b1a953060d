package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"flowauth/internal/model"
	"flowauth/pkg/apierror"
)

func writeSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "Unexpected server error",
	}

	var apiErr *apierror.APIError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
	case errors.Is(err, model.ErrInvalidToken):
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Message = "invalid or expired token"
	case errors.Is(err, model.ErrUserNotFound):
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "user not found"
	case errors.Is(err, model.ErrDuplicateUser):
		status = http.StatusConflict
		body.Code = "CONFLICT"
		body.Message = "email already registered"
	default:
		// Includes ErrStoreBusy that survived its retry: clients only ever
		// see a generic 500 for store-level failures.
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}
