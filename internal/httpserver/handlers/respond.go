package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/MrSnakeDoc/fogroute/internal/domain"
	"github.com/MrSnakeDoc/fogroute/internal/httpserver/deps"
	"github.com/MrSnakeDoc/fogroute/internal/logger"
)

// maxBodyBytes caps request bodies on the API endpoints.
const maxBodyBytes = 1 << 20

// writeOK replies with the API envelope {"status":"ok","timestamp":...,key:value}.
func writeOK(w http.ResponseWriter, d deps.Deps, key string, value any) {
	writeJSON(w, d, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": d.Now().UnixMilli(),
		key:         value,
	})
}

// writeFailure replies with the failure envelope and the status matching
// the error kind. Internal details are logged, not returned.
func writeFailure(w http.ResponseWriter, r *http.Request, d deps.Deps, err error) {
	status := statusFor(domain.KindOf(err))
	msg := err.Error()
	if status == http.StatusInternalServerError {
		d.Logger.Error("request failed",
			logger.String("path", r.URL.Path),
			logger.Error(err))
		msg = "internal error"
	}
	writeJSON(w, d, status, map[string]any{
		"status":       "failure",
		"timestamp":    d.Now().UnixMilli(),
		"errormessage": msg,
	})
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindAuthorization:
		return http.StatusUnauthorized
	case domain.KindAllocation:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, d deps.Deps, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		d.Logger.Debug("failed to write response", logger.Error(err))
	}
}

// decodeBody reads a JSON request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.Validation("invalid request body: %v", err)
	}
	return nil
}
