package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath    string
	OutputDir string
	UploadDir string

	// Matching thresholds. Exact SKU always scores 1.0.
	FuzzyAcceptThreshold float64
	FullTextCeiling      float64
	VectorCeiling        float64
	VectorFloor          float64

	// AI-assisted matching is off unless explicitly enabled.
	AIMatchEnabled bool
	AIScoreCap     float64
	AIAPIBaseURL   string
	AIAPIToken     string

	// Optimizer policy.
	ReferenceMarkup    float64
	CPPImprovementMin  float64
	AnnualSavingsFloor float64
	YieldTolerance     float64
	MonthlyPageVolume  float64

	// Orchestration.
	ChunkSize             int
	MatchBatchSize        int
	ContinuationRetries   int
	ContinuationDelayMs   int
	WorkerPollIntervalSec int

	// Embedding provider.
	EmbedAPIBaseURL   string
	EmbedAPIToken     string
	EmbedModel        string
	EmbedRateLimitRPS int
	EmbedTimeoutMs    int
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:    getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),
		UploadDir: getEnv("UPLOAD_DIR", filepath.Join(cwd, "data", "uploads")),

		FuzzyAcceptThreshold: getEnvFloat("MATCH_FUZZY_ACCEPT", 0.90),
		FullTextCeiling:      getEnvFloat("MATCH_FULLTEXT_CEILING", 0.85),
		VectorCeiling:        getEnvFloat("MATCH_VECTOR_CEILING", 0.75),
		VectorFloor:          getEnvFloat("MATCH_VECTOR_FLOOR", 0.70),

		AIMatchEnabled: getEnvBool("AI_MATCH_ENABLED", false),
		AIScoreCap:     getEnvFloat("AI_SCORE_CAP", 0.95),
		AIAPIBaseURL:   getEnv("AI_API_BASE_URL", ""),
		AIAPIToken:     getEnv("AI_API_TOKEN", ""),

		ReferenceMarkup:    getEnvFloat("REFERENCE_MARKUP", 1.35),
		CPPImprovementMin:  getEnvFloat("CPP_IMPROVEMENT_MIN", 0.05),
		AnnualSavingsFloor: getEnvFloat("ANNUAL_SAVINGS_FLOOR", 5.0),
		YieldTolerance:     getEnvFloat("YIELD_TOLERANCE", 0.80),
		MonthlyPageVolume:  getEnvFloat("MONTHLY_PAGE_VOLUME", 1000),

		ChunkSize:             getEnvInt("CHUNK_SIZE", 100),
		MatchBatchSize:        getEnvInt("MATCH_BATCH_SIZE", 25),
		ContinuationRetries:   getEnvInt("CONTINUATION_RETRIES", 3),
		ContinuationDelayMs:   getEnvInt("CONTINUATION_DELAY_MS", 2000),
		WorkerPollIntervalSec: getEnvInt("WORKER_POLL_INTERVAL_SEC", 5),

		EmbedAPIBaseURL:   getEnv("EMBED_API_BASE_URL", "https://api.openai.com/v1"),
		EmbedAPIToken:     getEnv("EMBED_API_TOKEN", ""),
		EmbedModel:        getEnv("EMBED_MODEL", "text-embedding-3-small"),
		EmbedRateLimitRPS: getEnvInt("EMBED_RATE_LIMIT_RPS", 5),
		EmbedTimeoutMs:    getEnvInt("EMBED_TIMEOUT_MS", 30000),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
