package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/lumenreach/engage/internal/pkg/logger"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondSafeError logs the internal error and sends a sanitized
// message. Database details and connection strings never reach the
// client.
func respondSafeError(w http.ResponseWriter, status int, internalErr error, publicMsg string) {
	if internalErr != nil {
		logger.Error(publicMsg, "status", status, "error", internalErr.Error())
	}
	if status >= 500 {
		respondError(w, status, publicMsg)
		return
	}
	respondError(w, status, safeErrorMessage(status, internalErr, publicMsg))
}

func safeErrorMessage(status int, err error, fallback string) string {
	if err == nil {
		return fallback
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "sql") || strings.Contains(lower, "pq:") ||
		strings.Contains(lower, "dial tcp") || strings.Contains(lower, "connection") {
		return fallback
	}
	return msg
}
