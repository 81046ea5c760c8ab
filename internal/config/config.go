package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/pieterkdevilliers/music-db/internal/constants"
)

// Config holds all application configuration
type Config struct {
	Port           string
	DBPath         string
	ArtDir         string
	MusicBrainzURL string
	CoverArtURL    string
	RoonHost       string
	RoonPort       int
	RoonTokenPath  string
	LLMAPIKey      string
	LLMBaseURL     string
	LLMModel       string
	LogLevel       string
	LogFormat      string
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", constants.DefaultPort),
		DBPath:         getEnv("DB_PATH", constants.DefaultDBPath),
		ArtDir:         getEnv("ART_DIR", constants.DefaultArtDir),
		MusicBrainzURL: getEnv("MUSICBRAINZ_URL", constants.DefaultMusicBrainzURL),
		CoverArtURL:    getEnv("COVERART_URL", constants.DefaultCoverArtURL),
		RoonHost:       getEnv("ROON_HOST", ""),
		RoonPort:       getEnvInt("ROON_PORT", constants.DefaultRoonPort),
		RoonTokenPath:  getEnv("ROON_TOKEN_PATH", constants.DefaultRoonTokenPath),
		LLMAPIKey:      getEnv("LLM_API_KEY", ""),
		LLMBaseURL:     getEnv("LLM_BASE_URL", ""),
		LLMModel:       getEnv("LLM_MODEL", constants.DefaultLLMModel),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
	}
}

// Validate validates the configuration and returns detailed errors
func (c *Config) Validate() error {
	var errors []string

	if c.Port == "" {
		errors = append(errors, "PORT cannot be empty")
	} else {
		port, err := strconv.Atoi(c.Port)
		if err != nil {
			errors = append(errors, fmt.Sprintf("PORT must be a valid number, got: %s", c.Port))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("PORT must be between 1 and 65535, got: %d", port))
		}
	}

	if c.DBPath == "" {
		errors = append(errors, "DB_PATH cannot be empty")
	}

	if c.ArtDir == "" {
		errors = append(errors, "ART_DIR cannot be empty")
	}

	for name, value := range map[string]string{
		"MUSICBRAINZ_URL": c.MusicBrainzURL,
		"COVERART_URL":    c.CoverArtURL,
	} {
		if value == "" {
			errors = append(errors, name+" cannot be empty")
			continue
		}
		if _, err := url.Parse(value); err != nil {
			errors = append(errors, fmt.Sprintf("%s is not a valid URL: %s", name, value))
		}
	}

	if c.RoonPort < 1 || c.RoonPort > 65535 {
		errors = append(errors, fmt.Sprintf("ROON_PORT must be between 1 and 65535, got: %d", c.RoonPort))
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: debug, info, warn, error, got: %s", c.LogLevel))
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.LogFormat] {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: text, json, got: %s", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
