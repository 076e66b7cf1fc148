package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Mongo       MongoConfig               `json:"mongo"`
	Redis       RedisConfig               `json:"redis"`
	Auth0       Auth0Config               `json:"auth0"`
	Qdrant      QdrantConfig              `json:"qdrant"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Chain       ChainConfig               `json:"chain"`
}

type BasicConfig struct {
	ServerAddress        string `json:"server_address"`
	StreamTimeoutMinutes int    `json:"stream_timeout_minutes"`
}

type MongoConfig struct {
	URI      string `json:"uri"`
	Database string `json:"database"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type Auth0Config struct {
	Domain       string `json:"domain"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Audience     string `json:"audience"`
}

type QdrantConfig struct {
	URL        string `json:"url"`
	APIKey     string `json:"api_key"`
	Collection string `json:"collection"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

// ChainConfig selects the generation pipeline and its retrieval parameters.
type ChainConfig struct {
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	Agentic        bool   `json:"agentic"`
	TopK           int    `json:"top_k"`
	EmbeddingModel string `json:"embedding_model"`
}

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = "diabuddy"
	}
	if cfg.Chain.Provider == "" {
		cfg.Chain.Provider = "openai"
	}
	if cfg.Chain.TopK <= 0 {
		cfg.Chain.TopK = 4
	}
	if cfg.Chain.EmbeddingModel == "" {
		cfg.Chain.EmbeddingModel = "text-embedding-3-small"
	}

	return &cfg, nil
}
