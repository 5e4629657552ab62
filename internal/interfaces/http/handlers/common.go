// Package handlers implements the registry's HTTP endpoints.
package handlers

import (
	"encoding/json"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/turtacn/molregistry/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molregistry/pkg/errors"
)

// DetailResponse is the body of every non-entity response.
type DetailResponse struct {
	Detail string `json:"detail"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func writeDetail(w http.ResponseWriter, statusCode int, detail string) {
	writeJSON(w, statusCode, DetailResponse{Detail: detail})
}

// writeError maps err onto a status and a detail body.  Server errors are
// logged with their cause and masked to the code's default message.
func writeError(w http.ResponseWriter, r *http.Request, logger logging.Logger, err error) {
	var appErr *errors.AppError
	if !errors.As(err, &appErr) {
		appErr = errors.Wrap(err, errors.ErrCodeInternal, errors.DefaultMessageForCode(errors.ErrCodeInternal))
	}
	status := appErr.HTTPStatus()

	if status >= 500 {
		logger.Error("request failed",
			logging.String("code", string(appErr.Code)),
			logging.String("path", r.URL.Path),
			logging.String("request_id", chimw.GetReqID(r.Context())),
			logging.Err(err),
		)
	}
	writeDetail(w, status, detailFor(appErr))
}

// detailFor renders "message" or "message: detail".
func detailFor(e *errors.AppError) string {
	if e.Detail == "" {
		return e.Message
	}
	return e.Message + ": " + e.Detail
}
