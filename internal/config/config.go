package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// defaultExcludePrefixes is the default set of subject prefixes dropped at
// ingestion (newsletter/bot markers observed in the source mailbox).
var defaultExcludePrefixes = []string{
	"[SOCIAL NETWORK]", "[SPAM]", "[AUTOREPLY]", "[BOT]",
	"Newsletter", "Weekly Digest", "Your Amazon Order",
}

// Config holds all configuration for the application.
type Config struct {
	LLMBaseURL         string
	LLMModelName       string
	LLMAPIKey          string
	EmbeddingBaseURL   string
	EmbeddingModelName string

	DBPath      string
	MailboxPath string

	QdrantURL        string
	QdrantCollection string
	QdrantVectorSize int

	// Retrieval tuning.
	KCandidates        int
	KFinal             int
	MinFilteredResults int

	// Chunking and ingestion.
	MaxChunkChars     int
	ChunkOverlapChars int
	EmbedBatchSize    int

	// Normalization.
	ExcludeSubjectPrefixes []string

	// Chat history.
	HistoryWindow   int
	MaxHistoryTurns int

	APIPort   string
	LogLevel  slog.Level
	LogFormat string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or project root, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	_ = godotenv.Load() // Try current directory

	// Walk up from the working directory looking for a project-root .env.
	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ { // Limit search depth
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break // Reached filesystem root
			}
			dir = parent
		}
	}

	cfg := &Config{
		LLMBaseURL:         getEnv("LLM_BASE_URL", "http://localhost:8080"),
		LLMModelName:       getEnv("LLM_MODEL", "Llama-3.1-8B-Instruct"),
		LLMAPIKey:          getEnv("LLM_API_KEY", "dummy-key"),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "bge-m3"),
		DBPath:             getEnv("DB_PATH", "./data/mailrag.db"),
		MailboxPath:        getEnv("MAILBOX_PATH", ""),
		QdrantURL:          getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:   getEnv("QDRANT_COLLECTION", "email_rag_collection"),
		APIPort:            getEnv("API_PORT", "9000"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
	}

	// The vector size must match the embedding model output; the collection
	// must be rebuilt whenever it changes.
	vectorSizeStr := getEnv("QDRANT_VECTOR_SIZE", "")
	if vectorSizeStr == "" {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE is required")
	}
	vectorSize, err := strconv.Atoi(vectorSizeStr)
	if err != nil {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be a valid integer: %w", err)
	}
	if vectorSize <= 0 {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be greater than 0")
	}
	cfg.QdrantVectorSize = vectorSize

	if cfg.KCandidates, err = getEnvInt("K_CANDIDATES", 50); err != nil {
		return nil, err
	}
	if cfg.KFinal, err = getEnvInt("K_FINAL", 10); err != nil {
		return nil, err
	}
	if cfg.MinFilteredResults, err = getEnvInt("MIN_FILTERED_RESULTS", 3); err != nil {
		return nil, err
	}
	if cfg.MaxChunkChars, err = getEnvInt("MAX_CHUNK_CHARS", 1000); err != nil {
		return nil, err
	}
	if cfg.ChunkOverlapChars, err = getEnvInt("CHUNK_OVERLAP_CHARS", 200); err != nil {
		return nil, err
	}
	if cfg.EmbedBatchSize, err = getEnvInt("EMBED_BATCH_SIZE", 500); err != nil {
		return nil, err
	}
	if cfg.HistoryWindow, err = getEnvInt("HISTORY_WINDOW", 6); err != nil {
		return nil, err
	}
	if cfg.MaxHistoryTurns, err = getEnvInt("MAX_HISTORY_TURNS", 50); err != nil {
		return nil, err
	}

	if cfg.KCandidates < cfg.KFinal {
		return nil, fmt.Errorf("K_CANDIDATES (%d) must be >= K_FINAL (%d)", cfg.KCandidates, cfg.KFinal)
	}
	if cfg.ChunkOverlapChars >= cfg.MaxChunkChars {
		return nil, fmt.Errorf("CHUNK_OVERLAP_CHARS (%d) must be smaller than MAX_CHUNK_CHARS (%d)", cfg.ChunkOverlapChars, cfg.MaxChunkChars)
	}

	if prefixes := getEnv("EXCLUDE_SUBJECT_PREFIXES", ""); prefixes != "" {
		for _, p := range strings.Split(prefixes, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.ExcludeSubjectPrefixes = append(cfg.ExcludeSubjectPrefixes, p)
			}
		}
	} else {
		cfg.ExcludeSubjectPrefixes = append([]string(nil), defaultExcludePrefixes...)
	}

	cfg.LogLevel, err = parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}

	// Create the data directory if it doesn't exist (for the DB file).
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets a positive integer environment variable or returns a default value.
func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}
	return n, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid LOG_LEVEL %q", s)
	}
}
