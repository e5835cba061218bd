package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Settings struct {
	StorageType string           `yaml:"storageType"`
	StoragePath string           `yaml:"storagePath"`
	LogLevel    string           `yaml:"logLevel"`
	LogFormat   string           `yaml:"logFormat"`
	Sqlite      SqliteSettings   `yaml:"sqlite"`
	Postgres    PostgresSettings `yaml:"postgres"`
	Linker      LinkerSettings   `yaml:"linker"`
}

type SqliteSettings struct {
	WALMode bool `yaml:"walMode"`
}

type PostgresSettings struct {
	DSN string `yaml:"dsn"`
}

type LinkerSettings struct {
	// Words of context kept on each side of a mention in link snippets.
	SnippetWordsAround int `yaml:"snippetWordsAround"`
}

// DefaultSnippetWordsAround is used when linker.snippetWordsAround is unset.
const DefaultSnippetWordsAround = 5

// Validate validates the configuration settings
func (s *Settings) Validate() error {
	// Validate LogLevel - must be one of [debug, info, warn, error] (case-insensitive)
	// Empty log level is allowed and will use default
	if s.LogLevel != "" {
		validLogLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}
		normalizedLogLevel := strings.ToLower(s.LogLevel)
		if !validLogLevels[normalizedLogLevel] {
			return fmt.Errorf("logLevel must be one of [debug, info, warn, error], got '%s'", s.LogLevel)
		}
		s.LogLevel = normalizedLogLevel
	}

	// Validate LogFormat - empty defaults to json
	if s.LogFormat != "" {
		normalizedLogFormat := strings.ToLower(s.LogFormat)
		if normalizedLogFormat != "json" && normalizedLogFormat != "text" {
			return fmt.Errorf("logFormat must be one of [json, text], got '%s'", s.LogFormat)
		}
		s.LogFormat = normalizedLogFormat
	}

	// Validate StorageType - must be one of [memory, sqlite, postgres] (case-insensitive)
	validStorageTypes := map[string]bool{
		"memory":   true,
		"sqlite":   true,
		"postgres": true,
		"":         true, // Empty defaults to memory
	}
	normalizedStorageType := strings.ToLower(s.StorageType)
	if !validStorageTypes[normalizedStorageType] {
		return fmt.Errorf("storageType must be one of [memory, sqlite, postgres], got '%s'", s.StorageType)
	}
	s.StorageType = normalizedStorageType

	// SQLite needs a database path
	if normalizedStorageType == "sqlite" && strings.TrimSpace(s.StoragePath) == "" {
		return fmt.Errorf("storagePath cannot be empty when storageType is sqlite")
	}

	// Postgres needs a DSN
	if normalizedStorageType == "postgres" && strings.TrimSpace(s.Postgres.DSN) == "" {
		return fmt.Errorf("postgres.dsn cannot be empty when storageType is postgres")
	}

	if s.Linker.SnippetWordsAround < 0 {
		return fmt.Errorf("linker.snippetWordsAround cannot be negative, got %d", s.Linker.SnippetWordsAround)
	}
	if s.Linker.SnippetWordsAround == 0 {
		s.Linker.SnippetWordsAround = DefaultSnippetWordsAround
	}

	return nil
}

func Load(path string) (*Settings, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var settings Settings
	err = yaml.Unmarshal(bytes, &settings)
	if err != nil {
		return nil, err
	}

	// Validate the configuration after unmarshaling
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &settings, nil
}
