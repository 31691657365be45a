package main

import (
	"context"
	"log"
	"net/http"

	"artiller/api"
	"artiller/app"
	"artiller/config"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := config.Load()

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to build app: %v", err)
	}
	defer a.Close()

	deps := api.Deps{
		Engine:    a.Engine,
		Resolver:  a.Resolver,
		Articles:  a.Articles,
		Stats:     a.Stats,
		Discovery: a.Discovery,
		TagQueue:  a.TagQueue,
		WordQueue: a.WordQueue,
	}
	if a.Archive != nil {
		deps.Archive = a.Archive
	}
	r := api.NewRouter(deps)

	addr := ":" + cfg.Port
	log.Printf("Starting API server on %s", addr)
	log.Println("API endpoints available:")
	log.Println("  GET  /api/health")
	log.Println("  GET  /api/search")
	log.Println("  GET  /api/article")
	log.Println("  POST /api/import")
	log.Println("  GET  /api/stats")

	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
