package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds runtime settings read from the environment
type Config struct {
	NotionAPIKey     string
	NotionDatabaseID string
	MaxBlockDepth    int

	LogLevel  string
	LogFormat string

	StorePath   string
	ImageDir    string
	ImagePrefix string

	Port            string
	PostsPerPage    int
	MaxVisiblePages int
}

// Load reads the .env file (if present) and then the environment.
// A missing .env file is not an error; a malformed one is.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := Config{
		NotionAPIKey:     os.Getenv("NOTION_API_KEY"),
		NotionDatabaseID: os.Getenv("NOTION_DATABASE_ID"),
		MaxBlockDepth:    envInt("MAX_BLOCK_DEPTH", 3),

		LogLevel:  envOr("LOG_LEVEL", "info"),
		LogFormat: envOr("LOG_FORMAT", "text"),

		StorePath:   envOr("STORE_PATH", "data/blog.db"),
		ImageDir:    envOr("IMAGE_DIR", "public/images"),
		ImagePrefix: envOr("IMAGE_PREFIX", "/images"),

		Port:            envOr("PORT", "8080"),
		PostsPerPage:    envInt("POSTS_PER_PAGE", 10),
		MaxVisiblePages: envInt("MAX_VISIBLE_PAGES", 7),
	}

	if cfg.MaxBlockDepth <= 0 {
		cfg.MaxBlockDepth = 3
	}
	if cfg.PostsPerPage <= 0 {
		cfg.PostsPerPage = 10
	}
	if cfg.MaxVisiblePages <= 0 {
		cfg.MaxVisiblePages = 7
	}

	return cfg, nil
}

// ValidateNotion reports missing Notion credentials
func (c Config) ValidateNotion() error {
	if c.NotionAPIKey == "" {
		return fmt.Errorf("NOTION_API_KEY is not set")
	}
	if c.NotionDatabaseID == "" {
		return fmt.Errorf("NOTION_DATABASE_ID is not set")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
