package main

import (
	"context"
	"flag"
	"log"
	"os"

	"diabuddy/internal/config"
	"diabuddy/internal/ingest"
	"diabuddy/internal/retrieval"
)

func main() {
	cfgPath := flag.String("config", os.Getenv("DIABUDDY_CONFIG"), "path to config.json")
	dataDir := flag.String("dir", "./data/knowledge", "directory of documents to ingest")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()
	embedder, err := retrieval.NewEmbedder(ctx, cfg)
	if err != nil {
		log.Fatalf("create embedder: %v", err)
	}
	writer, err := retrieval.NewWriter(cfg.Qdrant, embedder)
	if err != nil {
		log.Fatalf("connect qdrant: %v", err)
	}
	defer writer.Close()

	ingestor, err := ingest.New(ctx, writer)
	if err != nil {
		log.Fatalf("init ingestor: %v", err)
	}

	files, chunks, err := ingestor.IngestDir(ctx, *dataDir)
	if err != nil {
		log.Fatalf("ingest %s: %v", *dataDir, err)
	}
	log.Printf("ingested %d chunks from %d files into %s", chunks, files, cfg.Qdrant.Collection)
}
