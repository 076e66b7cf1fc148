package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"diabuddy/internal/api"
	"diabuddy/internal/auth0"
	"diabuddy/internal/chain"
	"diabuddy/internal/config"
	"diabuddy/internal/redis"
	"diabuddy/internal/retrieval"
	"diabuddy/internal/service/chat"
	"diabuddy/internal/storage"
	"diabuddy/internal/worker"
)

func main() {
	cfgPath := os.Getenv("DIABUDDY_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Auth0.Domain == "" {
		log.Fatalf("auth0 domain must be configured")
	}

	ctx := context.Background()

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("open message store: %v", err)
	}
	if cfg.Mongo.URI == "" {
		log.Printf("mongo uri not configured, using in-process message store")
	}
	if closer, ok := store.(interface{ Close(context.Context) error }); ok {
		defer closer.Close(context.Background())
	}

	rdb, err := redis.NewClient(cfg)
	if err != nil {
		log.Printf("redis unavailable, caching disabled: %v", err)
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	authClient := auth0.NewClient(cfg.Auth0)
	profiles := auth0.NewProfileStore(authClient, rdb)
	verifier := auth0.NewTokenVerifier(authClient, rdb)

	embedder, err := retrieval.NewEmbedder(ctx, cfg)
	if err != nil {
		log.Fatalf("create embedder: %v", err)
	}
	kb, err := retrieval.NewKnowledgeBase(cfg.Qdrant, embedder, cfg.Chain.TopK)
	if err != nil {
		log.Fatalf("connect knowledge base: %v", err)
	}
	defer kb.Close()

	streamer, err := chain.New(ctx, cfg, kb)
	if err != nil {
		log.Fatalf("init chain: %v", err)
	}

	chatService := chat.NewService(store, profiles, streamer, worker.NewGate())

	streamTimeout := time.Duration(cfg.BasicConfig.StreamTimeoutMinutes) * time.Minute
	handlers := api.NewHandler(chatService, profiles, verifier.Middleware(), streamTimeout)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}

	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
