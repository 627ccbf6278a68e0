package main

import (
	"context"
	"log"
	"os"

	"github.com/voiddp/ak-events-tracker/internal/api"
	"github.com/voiddp/ak-events-tracker/internal/catalog"
	"github.com/voiddp/ak-events-tracker/internal/ingest"
	"github.com/voiddp/ak-events-tracker/internal/reconcile"
	"github.com/voiddp/ak-events-tracker/internal/scheduler"
	"github.com/voiddp/ak-events-tracker/internal/store"
)

const defaultWikiBase = "https://prts.wiki"

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}
	wikiBase := os.Getenv("WIKI_BASE_URL")
	if wikiBase == "" {
		wikiBase = defaultWikiBase
	}

	ctx := context.Background()
	st, err := store.NewRedis(ctx, redisURL)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer st.Close()

	cat, err := catalog.Load()
	if err != nil {
		log.Fatalf("Failed to load item catalog: %v", err)
	}
	anchors, shiftMonths, err := reconcile.Load()
	if err != nil {
		log.Fatalf("Failed to load anchor table: %v", err)
	}

	sched := scheduler.New(st, nil, scheduler.Config{})
	fetcher := ingest.NewFetcher(sched, cat, wikiBase)

	srv := api.NewServer(st, fetcher, anchors, shiftMonths)
	log.Printf("Server starting on port %s...", port)
	if err := srv.Start(port); err != nil {
		log.Fatal(err)
	}
}
