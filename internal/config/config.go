package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	GeminiAPIKey string
	DatabaseURL  string
	HTTPPort     string
	LogLevel     string
	LogFilePath  string
	JWTSecret    string

	RAGModel            string
	EmbeddingModel      string
	RAGTemperature      float64
	RetrievalK          int
	SimilarityThreshold float64

	// SessionTTL of zero keeps session histories for the life of the process.
	SessionTTL   time.Duration
	ModelTimeout time.Duration
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = FromEnv()

	if err := AppConfig.Validate(); err != nil {
		log.Fatal(err)
	}
}

// FromEnv builds a Config from the process environment without validating it.
func FromEnv() Config {
	return Config{
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		DatabaseURL:  getEnv("DATABASE_URL", "recommender.db"),
		HTTPPort:     getEnv("HTTP_PORT", "8080"),
		LogLevel:     getEnv("LOG_LEVEL", "INFO"),
		LogFilePath:  getEnv("LOG_FILE_PATH", "recommender.log"),
		JWTSecret:    getEnv("JWT_SECRET", ""),

		RAGModel:            getEnv("RAG_MODEL", "gemini-1.5-flash-latest"),
		EmbeddingModel:      getEnv("EMBEDDING_MODEL", "text-embedding-004"),
		RAGTemperature:      getEnvAsFloat("RAG_TEMPERATURE", 0.4),
		RetrievalK:          getEnvAsInt("RETRIEVAL_K", 3),
		SimilarityThreshold: getEnvAsFloat("SIMILARITY_THRESHOLD", 0.5),

		SessionTTL:   getEnvAsDuration("SESSION_TTL", 0),
		ModelTimeout: getEnvAsDuration("MODEL_TIMEOUT", 45*time.Second),
	}
}

func (c Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return errors.New("GEMINI_API_KEY environment variable is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}
	if c.RetrievalK <= 0 {
		return errors.New("RETRIEVAL_K must be positive")
	}
	if c.RAGTemperature < 0 || c.RAGTemperature > 2 {
		return errors.New("RAG_TEMPERATURE must be between 0 and 2")
	}
	// A session must outlive one turn: up to three sequential model calls.
	if c.SessionTTL > 0 && c.ModelTimeout > 0 && c.SessionTTL < 3*c.ModelTimeout {
		return fmt.Errorf("SESSION_TTL must be 0 or at least %s (3x MODEL_TIMEOUT)", 3*c.ModelTimeout)
	}
	return nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
