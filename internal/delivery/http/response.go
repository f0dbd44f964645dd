package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sdmg-platform/gateway/internal/domain"
)

type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func WriteSuccess(w http.ResponseWriter, data interface{}, message string) {
	response := Response{
		Success: true,
		Message: message,
		Data:    data,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

func WriteError(w http.ResponseWriter, statusCode int, message string, err error) {
	response := ErrorResponse{
		Success: false,
		Error:   message,
	}

	if err != nil {
		response.Message = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}

func WriteValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "validation_error", fmt.Errorf(message))
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", fmt.Errorf(message))
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, "forbidden", fmt.Errorf(message))
}

// WriteAppError renders a domain.AppError using its own status code and
// kind, so call sites don't have to pick a status code themselves.
func WriteAppError(w http.ResponseWriter, err error) {
	appErr := domain.AsAppError(err)
	WriteError(w, appErr.StatusCode(), string(appErr.Kind), appErr)
}
