package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/charmbracelet/log"

	"robo-backend/internal/middleware"
	"robo-backend/internal/models"
	"robo-backend/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error:     message,
		RequestID: middleware.GetRequestID(r.Context()),
	}
}

// decodeJSON reads the body into dst. An empty body leaves dst untouched
// when allowEmpty is set.
func decodeJSON(r *http.Request, dst interface{}, allowEmpty bool) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) && allowEmpty {
		return nil
	}
	return err
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *services.ValidationError
		configErr     *services.ConfigurationError
		remoteErr     *services.RemoteServiceError
	)
	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorResp(validationErr.Message, r))
	case errors.As(err, &configErr):
		writeJSON(w, http.StatusInternalServerError, errorResp(configErr.Message, r))
	case errors.As(err, &remoteErr):
		log.Error("Remote model call failed", "path", r.URL.Path, "err", remoteErr.Err)
		writeJSON(w, http.StatusInternalServerError, errorResp(remoteErr.Error(), r))
	default:
		log.Error("Unexpected error", "path", r.URL.Path, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResp(err.Error(), r))
	}
}
