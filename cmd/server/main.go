package main

import (
	"context"
	"log"
	"net/http"

	"github.com/joho/godotenv"

	"github.com/blinkchat/blink-backend/internal/chat"
	"github.com/blinkchat/blink-backend/internal/config"
	"github.com/blinkchat/blink-backend/internal/database"
	"github.com/blinkchat/blink-backend/internal/handlers"
	"github.com/blinkchat/blink-backend/internal/middleware"
	"github.com/blinkchat/blink-backend/internal/routes"
	"github.com/blinkchat/blink-backend/internal/services"
	"github.com/blinkchat/blink-backend/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// messageUploader binds the shared Cloudinary service to the chat uploads
// folder so the router doesn't care where images land.
type messageUploader struct {
	cld *services.CloudinaryService
}

func (u messageUploader) Upload(ctx context.Context, payload string) (string, error) {
	return u.cld.Upload(ctx, payload, "blink/messages")
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()

	log.Printf("Connecting to MongoDB...")
	if err := database.Connect(cfg.MongoURI); err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer database.Disconnect()

	log.Printf("Connecting to Redis...")
	if err := database.ConnectRedis(cfg.RedisURI); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer database.DisconnectRedis()

	if err := store.EnsureIndexes(context.Background(), database.DB); err != nil {
		log.Printf("⚠️  WARNING: failed to ensure MongoDB indexes: %v", err)
	} else {
		log.Println("✅ MongoDB indexes ensured")
	}

	// Cloudinary is optional; without credentials, image endpoints reject
	// uploads but everything else works.
	var cld *services.CloudinaryService
	if cfg.CloudinaryName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		svc, err := services.NewCloudinaryService(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			log.Printf("Warning: Failed to initialize Cloudinary: %v", err)
			log.Println("Image uploads will not be available")
		} else {
			cld = svc
			log.Println("✅ Cloudinary service initialized")
		}
	} else {
		log.Println("Warning: Cloudinary credentials not found. Image uploads will not be available")
	}

	users := store.NewUserStore(database.DB)
	messages := store.NewMessageStore(database.DB)

	presence := chat.NewRegistry(users)
	typing := chat.NewTracker()

	var uploads chat.Uploader
	if cld != nil {
		uploads = messageUploader{cld: cld}
	}
	chatRouter := chat.NewRouter(messages, users, presence, typing, uploads)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go chatRouter.RunTypingSweeper(ctx, chat.TypingSweepInterval)
	log.Println("✅ Typing expiry sweeper started")

	handlers.Init(chatRouter, users, cld, cfg.IsProduction())

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RateLimit)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	routes.SetupRoutes(r)

	log.Printf("🚀 Blink backend running on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
