package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JonnyShabli/registry-mailer/internal/models"
	"github.com/JonnyShabli/registry-mailer/pkg/logster"
	"github.com/JonnyShabli/registry-mailer/pkg/workerpool"
)

func SuccessDataResponse(w http.ResponseWriter, logger logster.Logger, data interface{}) {
	writeJSON(w, logger, http.StatusOK, data)
}

// ErrorResponse maps err onto a status code and writes the error envelope.
func ErrorResponse(w http.ResponseWriter, logger logster.Logger, err error) {
	code := statusCode(err)
	if code >= http.StatusInternalServerError {
		logger.WithError(err).Errorf("request failed")
	} else {
		logger.WithError(err).Infof("request rejected")
	}
	writeJSON(w, logger, code, models.ErrorResponse{Status: "error", Message: err.Error()})
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, models.ErrTaskNotFound), errors.Is(err, models.ErrFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, workerpool.ErrPoolBusy), errors.Is(err, workerpool.ErrPoolClosed):
		return http.StatusServiceUnavailable
	case models.KindOf(err) == models.KindInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, logger logster.Logger, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.WithError(err).Errorf("fail to write response")
	}
}
