package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/blinkchat/blink-backend/internal/middleware"
	"github.com/blinkchat/blink-backend/internal/models"
	"github.com/blinkchat/blink-backend/internal/services"
	"github.com/blinkchat/blink-backend/pkg/apperr"
	"github.com/blinkchat/blink-backend/pkg/utils"
)

type SignupRequest struct {
	FullName string `json:"fullName"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Identifier string `json:"identifier"` // email or username
	Password   string `json:"password"`
}

type UpdateProfileRequest struct {
	ProfilePic string `json:"profilePic"` // base64 image payload
}

type UpdateUsernameRequest struct {
	Username string `json:"username"`
}

type UpdatePrivacyRequest struct {
	HideActiveStatus *bool `json:"hideActiveStatus"`
}

// authResponse flattens the user with the session token.
type authResponse struct {
	*models.User
	Token string `json:"token"`
}

// Signup handles user registration.
func Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("Invalid request body"))
		return
	}

	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.FullName == "" || req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, apperr.Validation("All fields are required"))
		return
	}
	if len(req.Password) < 6 {
		writeError(w, apperr.Validation("Password must be at least 6 characters"))
		return
	}
	if err := utils.ValidateUsername(req.Username); err != nil {
		writeError(w, apperr.Validation(err.Error()))
		return
	}
	username := utils.NormalizeUsername(req.Username)

	if exists, err := users.EmailExists(r.Context(), req.Email); err != nil {
		writeError(w, apperr.Internal(err))
		return
	} else if exists {
		writeError(w, apperr.Conflict("Email already exists"))
		return
	}
	if exists, err := users.FindByIdentifier(r.Context(), username); err != nil {
		writeError(w, apperr.Internal(err))
		return
	} else if exists != nil {
		writeError(w, apperr.Conflict("Username already taken"))
		return
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		writeError(w, apperr.Internal(err))
		return
	}

	now := time.Now().UTC()
	user := &models.User{
		CreatedAt: now,
		UpdatedAt: now,
		Email:     req.Email,
		Username:  username,
		FullName:  req.FullName,
		Password:  hashed,
	}
	if err := users.Insert(r.Context(), user); err != nil {
		writeError(w, apperr.Internal(err))
		return
	}

	token, err := services.CreateSession(r.Context(), user.ID)
	if err != nil {
		writeError(w, apperr.Internal(err))
		return
	}
	setSessionCookie(w, token)

	writeJSON(w, http.StatusCreated, authResponse{User: user, Token: token})
}

// Login handles sign-in by email or username.
func Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("Invalid request body"))
		return
	}
	if req.Identifier == "" || req.Password == "" {
		writeError(w, apperr.Validation("Identifier and password are required"))
		return
	}

	user, err := users.FindByIdentifier(r.Context(), strings.TrimSpace(req.Identifier))
	if err != nil {
		writeError(w, apperr.Internal(err))
		return
	}
	if user == nil || !utils.VerifyPassword(req.Password, user.Password) {
		writeError(w, apperr.Unauthenticated("Invalid credentials"))
		return
	}

	token, err := services.CreateSession(r.Context(), user.ID)
	if err != nil {
		writeError(w, apperr.Internal(err))
		return
	}
	setSessionCookie(w, token)

	writeJSON(w, http.StatusOK, authResponse{User: user, Token: token})
}

// Logout invalidates the current session and clears the cookie.
func Logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.ExtractToken(r); token != "" {
		services.InvalidateSession(r.Context(), token)
	}
	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

// UpdateProfile uploads a new avatar image and stores its public URL.
func UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("Invalid request body"))
		return
	}
	if req.ProfilePic == "" {
		writeError(w, apperr.Validation("Profile pic is required"))
		return
	}
	if uploads == nil {
		writeError(w, apperr.Validation("Image uploads are not available"))
		return
	}

	url, err := uploads.Upload(r.Context(), req.ProfilePic, "blink/avatars")
	if err != nil {
		writeError(w, apperr.Internal(err))
		return
	}

	user, err := users.UpdateProfilePic(r.Context(), userID, url)
	if err != nil {
		writeError(w, apperr.Internal(err))
		return
	}
	if user == nil {
		writeError(w, apperr.NotFound("User not found"))
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateUsername changes the caller's handle.
func UpdateUsername(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)

	var req UpdateUsernameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("Invalid request body"))
		return
	}
	if err := utils.ValidateUsername(req.Username); err != nil {
		writeError(w, apperr.Validation(err.Error()))
		return
	}
	username := utils.NormalizeUsername(req.Username)

	taken, err := users.UsernameExists(r.Context(), username, userID)
	if err != nil {
		writeError(w, apperr.Internal(err))
		return
	}
	if taken {
		writeError(w, apperr.Conflict("Username already taken"))
		return
	}

	user, err := users.UpdateUsername(r.Context(), userID, username)
	if err != nil {
		writeError(w, apperr.Internal(err))
		return
	}
	if user == nil {
		writeError(w, apperr.NotFound("User not found"))
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdatePrivacy toggles the hideActiveStatus flag.
func UpdatePrivacy(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)

	var req UpdatePrivacyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("Invalid request body"))
		return
	}
	if req.HideActiveStatus == nil {
		writeError(w, apperr.Validation("hideActiveStatus field is required"))
		return
	}

	user, err := users.UpdatePrivacy(r.Context(), userID, *req.HideActiveStatus)
	if err != nil {
		writeError(w, apperr.Internal(err))
		return
	}
	if user == nil {
		writeError(w, apperr.NotFound("User not found"))
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// CheckAuth returns the authenticated user.
func CheckAuth(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)

	user, err := users.FindByID(r.Context(), userID)
	if err != nil {
		writeError(w, apperr.Internal(err))
		return
	}
	if user == nil {
		writeError(w, apperr.NotFound("User not found"))
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func setSessionCookie(w http.ResponseWriter, token string) {
	cookie := &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(services.SessionDuration.Seconds()),
		HttpOnly: true,
	}
	if production {
		// Cross-site frontend needs SameSite=None, which requires Secure.
		cookie.SameSite = http.SameSiteNoneMode
		cookie.Secure = true
	} else {
		cookie.SameSite = http.SameSiteLaxMode
	}
	http.SetCookie(w, cookie)
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
