package main

import (
	"log"
	"net/http"
	"os"

	"inspo/internal/api"
	"inspo/internal/session"
	"inspo/internal/storage"
	"inspo/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
)

func main() {
	// Optional .env for local development
	godotenv.Load()

	// Get database config from environment
	// DB_BACKEND: "sqlite" or "turso" (auto-detects if not set)
	// For SQLite: SQLITE_PATH (defaults to "inspo.db")
	// For Turso: TURSO_DATABASE_URL, TURSO_AUTH_TOKEN
	dbConfig := store.ConfigFromEnv()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	s, err := store.New(dbConfig)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer s.Close()

	// Screenshot storage is optional; without S3 config the upload route
	// reports unavailable and everything else still works.
	stor, err := storage.New()
	if err != nil {
		log.Printf("Screenshot uploads disabled: %v", err)
		stor = nil
	}

	sess := session.New(s)
	if err := sess.Load(); err != nil {
		log.Fatalf("Failed to load library: %v", err)
	}
	log.Printf("Loaded %d items, %d tags", len(sess.Items()), len(sess.Tags()))

	a := api.New(sess, stor)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Mount("/api", a.Routes())

	log.Printf("inspo starting on http://localhost:%s", port)
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
