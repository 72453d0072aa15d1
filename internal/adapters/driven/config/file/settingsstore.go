// Package file provides a file-based implementation of the settings store.
// Settings are stored in a TOML file within the notevault config directory,
// with environment variables overriding individual values.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/notevault/notevault-cli/internal/core/domain"
	"github.com/notevault/notevault-cli/internal/core/ports/driven"
)

// Ensure SettingsStore implements the interface.
var _ driven.SettingsStore = (*SettingsStore)(nil)

// SettingsStore is a TOML-backed implementation of driven.SettingsStore.
type SettingsStore struct {
	mu       sync.RWMutex
	filePath string
}

// NewSettingsStore creates a new TOML-based settings store.
// If configPath is empty, defaults to ~/.notevault/config.toml.
func NewSettingsStore(configPath string) (*SettingsStore, error) {
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		configPath = filepath.Join(home, ".notevault", "config.toml")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return nil, err
	}

	return &SettingsStore{filePath: configPath}, nil
}

// Load reads settings from the TOML file, applies defaults for anything
// unset, and then applies environment variable overrides. A missing file
// yields the defaults.
func (s *SettingsStore) Load() (domain.AppSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings := domain.DefaultAppSettings()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			return settings, err
		}
	} else if err := toml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("parse %s: %w", s.filePath, err)
	}

	applyEnvOverrides(&settings)
	applyDefaults(&settings)
	return settings, nil
}

// Save persists the given settings with restricted permissions. API keys
// may be present, so the file is not world-readable.
func (s *SettingsStore) Save(settings domain.AppSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := toml.Marshal(settings)
	if err != nil {
		return err
	}
	return os.WriteFile(s.filePath, data, 0600)
}

// Path returns the configuration file path.
func (s *SettingsStore) Path() string {
	return s.filePath
}

// applyEnvOverrides layers environment variables over file values.
// Provider API keys use their conventional names so existing shell
// profiles keep working; everything else is NOTEVAULT_ prefixed.
func applyEnvOverrides(settings *domain.AppSettings) {
	if v := os.Getenv("NOTEVAULT_EMBEDDING_PROVIDER"); v != "" {
		settings.Embedding.Provider = domain.AIProvider(v)
	}
	if v := os.Getenv("NOTEVAULT_EMBEDDING_MODEL"); v != "" {
		settings.Embedding.Model = v
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" && settings.Embedding.Provider == domain.AIProviderOllama {
		settings.Embedding.BaseURL = v
	}
	switch settings.Embedding.Provider {
	case domain.AIProviderOpenAI:
		if v := os.Getenv("OPENAI_API_KEY"); v != "" {
			settings.Embedding.APIKey = v
		}
	case domain.AIProviderGemini:
		if v := os.Getenv("GEMINI_API_KEY"); v != "" {
			settings.Embedding.APIKey = v
		}
	}

	if v := os.Getenv("QDRANT_URL"); v != "" {
		settings.Qdrant.URL = v
	}
	if v := os.Getenv("QDRANT_API_KEY"); v != "" {
		settings.Qdrant.APIKey = v
	}
	if v := os.Getenv("NOTEVAULT_COLLECTION"); v != "" {
		settings.Qdrant.Collection = v
	}
	if v := os.Getenv("NOTEVAULT_VAULT_ROOT"); v != "" {
		settings.Ingest.VaultRoot = v
	}
	if v := os.Getenv("NOTEVAULT_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			settings.Ingest.Concurrency = n
		}
	}
}

// applyDefaults backfills zero values that a sparse config file may have
// cleared. Chunk geometry in particular must never be zero.
func applyDefaults(settings *domain.AppSettings) {
	defaults := domain.DefaultAppSettings()

	if settings.Qdrant.URL == "" {
		settings.Qdrant.URL = defaults.Qdrant.URL
	}
	if settings.Qdrant.Collection == "" {
		settings.Qdrant.Collection = defaults.Qdrant.Collection
	}
	if settings.Ingest.ChunkSize <= 0 {
		settings.Ingest.ChunkSize = defaults.Ingest.ChunkSize
	}
	if settings.Ingest.ChunkOverlap < 0 {
		settings.Ingest.ChunkOverlap = defaults.Ingest.ChunkOverlap
	}
	if settings.Ingest.Concurrency <= 0 {
		settings.Ingest.Concurrency = defaults.Ingest.Concurrency
	}
	if settings.Ingest.BatchSize <= 0 {
		settings.Ingest.BatchSize = defaults.Ingest.BatchSize
	}
	if len(settings.Ingest.Extensions) == 0 {
		settings.Ingest.Extensions = defaults.Ingest.Extensions
	}
}
