package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"mongo": {"uri": "mongodb://localhost:27017"},
		"auth0": {"domain": "tenant.auth0.com"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mongo.Database != "diabuddy" {
		t.Fatalf("database default = %q", cfg.Mongo.Database)
	}
	if cfg.Chain.Provider != "openai" || cfg.Chain.TopK != 4 {
		t.Fatalf("chain defaults = %+v", cfg.Chain)
	}
	if cfg.Chain.EmbeddingModel == "" {
		t.Fatal("embedding model default not applied")
	}
}

func TestLoadAcceptsIngestOnlyConfig(t *testing.T) {
	// The ingest CLI never talks to the identity provider or the message
	// store, so a config carrying only embedding and qdrant settings loads.
	path := writeConfig(t, `{
		"qdrant": {"url": "localhost:6334", "collection": "diabetes_kb"},
		"providers": {"openai": {"api_key": "sk-test"}}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth0.Domain != "" || cfg.Mongo.URI != "" {
		t.Fatalf("unexpected populated fields: %+v", cfg)
	}
	if cfg.Qdrant.Collection != "diabetes_kb" {
		t.Fatalf("qdrant collection = %q", cfg.Qdrant.Collection)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
