// Package config loads TOML configuration for the catalyst binaries.
// The library itself is configured through functional options; this
// package only feeds those options from files and the environment.
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Provider ProviderConfig `toml:"provider"`
	Memory   MemoryConfig   `toml:"memory"`
	Storage  StorageConfig  `toml:"storage"`
	Observer ObserverConfig `toml:"observer"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type ProviderConfig struct {
	Name        string  `toml:"name"`
	Model       string  `toml:"model"`
	APIKey      string  `toml:"api_key"`
	Endpoint    string  `toml:"endpoint"`
	Deployment  string  `toml:"deployment"`
	APIVersion  string  `toml:"api_version"`
	Temperature float64 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
}

type MemoryConfig struct {
	ShortTermCapacity int    `toml:"short_term_capacity"`
	LongTerm          bool   `toml:"long_term"`
	Store             string `toml:"store"` // jsonfile, sqlite, postgres
	Path              string `toml:"path"`
	DSN               string `toml:"dsn"`
}

type StorageConfig struct {
	BlobPath string `toml:"blob_path"`
}

type ObserverConfig struct {
	Enabled  bool                     `toml:"enabled"`
	Endpoint string                   `toml:"endpoint"`
	Pricing  map[string]PricingConfig `toml:"pricing"`
}

// PricingConfig is one [observer.pricing.<model>] entry, in USD per
// million tokens.
type PricingConfig struct {
	Input  float64 `toml:"input"`
	Output float64 `toml:"output"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Server:   ServerConfig{Addr: ":8080"},
		Provider: ProviderConfig{Name: "azure", Model: "gpt-4o", Temperature: 0.7, MaxTokens: 1000},
		Memory:   MemoryConfig{ShortTermCapacity: 10, LongTerm: true, Store: "jsonfile", Path: "catalyst_memory.json"},
		Storage:  StorageConfig{BlobPath: "./"},
		Observer: ObserverConfig{Endpoint: "localhost:4318"},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "catalyst.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	// Env overrides
	if v := os.Getenv("CATALYST_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("CATALYST_PROVIDER"); v != "" {
		cfg.Provider.Name = v
	}
	if v := os.Getenv("CATALYST_MODEL"); v != "" {
		cfg.Provider.Model = v
	}
	if v := os.Getenv("CATALYST_BLOB_PATH"); v != "" {
		cfg.Storage.BlobPath = v
	}
	if v := os.Getenv("CATALYST_MEMORY_STORE"); v != "" {
		cfg.Memory.Store = v
	}
	if v := os.Getenv("CATALYST_MEMORY_DSN"); v != "" {
		cfg.Memory.DSN = v
	}
	switch cfg.Provider.Name {
	case "azure":
		if v := os.Getenv("AZURE_OPENAI_API_KEY"); v != "" {
			cfg.Provider.APIKey = v
		}
		if v := os.Getenv("AZURE_OPENAI_ENDPOINT"); v != "" {
			cfg.Provider.Endpoint = v
		}
		if v := os.Getenv("AZURE_OPENAI_DEPLOYMENT"); v != "" {
			cfg.Provider.Deployment = v
		}
	case "gemini":
		if v := os.Getenv("GEMINI_API_KEY"); v != "" {
			cfg.Provider.APIKey = v
		}
	}
	if os.Getenv("CATALYST_OBSERVER_ENABLED") == "true" || os.Getenv("CATALYST_OBSERVER_ENABLED") == "1" {
		cfg.Observer.Enabled = true
	}

	// Fallbacks
	if cfg.Provider.Deployment == "" {
		cfg.Provider.Deployment = cfg.Provider.Model
	}
	if cfg.Memory.ShortTermCapacity <= 0 {
		cfg.Memory.ShortTermCapacity = 10
	}
	if cfg.Storage.BlobPath == "" {
		cfg.Storage.BlobPath = "./"
	}

	return cfg
}
