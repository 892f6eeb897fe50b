package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/blinkchat/blink-backend/internal/chat"
	"github.com/blinkchat/blink-backend/internal/middleware"
	"github.com/blinkchat/blink-backend/pkg/apperr"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SendMessageRequest struct {
	Text      string `json:"text"`
	Image     string `json:"image"`     // base64 payload
	ReplyToID string `json:"replyToId"` // optional message id
}

type ReactRequest struct {
	Emoji string `json:"emoji"`
}

type EditRequest struct {
	Text string `json:"text"`
}

// GetUsersForSidebar returns the caller's contact list.
func GetUsersForSidebar(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)

	contacts, err := chatRouter.SidebarUsers(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

// GetUnreadCounts returns the caller's unseen-message count per sender,
// computed server-side.
func GetUnreadCounts(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)

	counts, err := chatRouter.UnreadCounts(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// GetMessages returns the full history with the user in the URL.
func GetMessages(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)
	otherID, err := pathObjectID(r, "Invalid user id")
	if err != nil {
		writeError(w, err)
		return
	}

	msgs, err := chatRouter.Messages(r.Context(), userID, otherID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// SendMessage creates a message addressed to the user in the URL.
func SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)
	receiverID, err := pathObjectID(r, "Invalid user id")
	if err != nil {
		writeError(w, err)
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("Invalid request body"))
		return
	}

	msg, err := chatRouter.Send(r.Context(), userID, receiverID, chat.SendInput{
		Text:      req.Text,
		Image:     req.Image,
		ReplyToID: req.ReplyToID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// MarkSeen acknowledges a message; only the receiver may do this.
func MarkSeen(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)
	messageID, err := pathObjectID(r, "Invalid message id")
	if err != nil {
		writeError(w, err)
		return
	}

	msg, err := chatRouter.MarkSeen(r.Context(), userID, messageID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// React toggles the caller's emoji reaction on a message.
func React(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)
	messageID, err := pathObjectID(r, "Invalid message id")
	if err != nil {
		writeError(w, err)
		return
	}

	var req ReactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("Invalid request body"))
		return
	}

	msg, err := chatRouter.React(r.Context(), userID, messageID, req.Emoji)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// Edit replaces a message's text within the edit window.
func Edit(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)
	messageID, err := pathObjectID(r, "Invalid message id")
	if err != nil {
		writeError(w, err)
		return
	}

	var req EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("Invalid request body"))
		return
	}

	msg, err := chatRouter.Edit(r.Context(), userID, messageID, req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// DeleteMessage soft-deletes a message; only the sender may do this.
func DeleteMessage(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)
	messageID, err := pathObjectID(r, "Invalid message id")
	if err != nil {
		writeError(w, err)
		return
	}

	msg, err := chatRouter.Delete(r.Context(), userID, messageID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// DeleteConversation soft-deletes every message with the user in the URL.
func DeleteConversation(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)
	otherID, err := pathObjectID(r, "Invalid user id")
	if err != nil {
		writeError(w, err)
		return
	}

	if _, err := chatRouter.DeleteConversation(r.Context(), userID, otherID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Conversation deleted successfully"})
}

func pathObjectID(r *http.Request, invalidMsg string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		return primitive.NilObjectID, apperr.Validation(invalidMsg)
	}
	return id, nil
}
