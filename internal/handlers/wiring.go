package handlers

import (
	"github.com/blinkchat/blink-backend/internal/chat"
	"github.com/blinkchat/blink-backend/internal/services"
	"github.com/blinkchat/blink-backend/internal/store"
)

var (
	chatRouter *chat.Router
	users      *store.UserStore
	uploads    *services.CloudinaryService
	production bool
)

// Init wires the handler package to its collaborators. Called once from main
// before the routes are mounted. uploads may be nil when Cloudinary
// credentials are not configured; image endpoints then reject uploads.
func Init(r *chat.Router, u *store.UserStore, cld *services.CloudinaryService, isProduction bool) {
	chatRouter = r
	users = u
	uploads = cld
	production = isProduction
}
