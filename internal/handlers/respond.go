package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/blinkchat/blink-backend/pkg/apperr"
)

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("error encoding response: %v", err)
	}
}

// writeError maps an error from the taxonomy onto its status class. Internal
// details are logged, never surfaced.
func writeError(w http.ResponseWriter, err error) {
	if apperr.KindOf(err) == apperr.KindInternal {
		log.Printf("internal error: %v", err)
	}
	writeJSON(w, apperr.StatusOf(err), messageResponse{Message: apperr.MessageOf(err)})
}
