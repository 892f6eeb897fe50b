package handlers

import (
	"net/http"

	"github.com/blinkchat/blink-backend/internal/middleware"
)

// SearchUsers matches the query parameter against usernames and full names,
// case-insensitive, excluding the caller.
func SearchUsers(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)

	results, err := chatRouter.SearchUsers(r.Context(), userID, r.URL.Query().Get("query"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}
