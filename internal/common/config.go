package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Inference InferenceConfig
	Jobs      JobsConfig
	Storage   StorageConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// InferenceConfig holds vision-inference backend configuration
type InferenceConfig struct {
	BaseURL     string
	Model       string
	Temperature float64
	// Timeout covers a single generate call. Vision inference over multiple
	// page images can take minutes, cold models longer.
	Timeout time.Duration
}

// JobsConfig holds dispatcher and extraction-parameter configuration
type JobsConfig struct {
	Workers       int
	QueueSize     int
	MaxPages      int
	RenderScale   float64
	AgentVersion  string
	CriticalPaths []string
}

// StorageConfig holds upload and artifact directory configuration
type StorageConfig struct {
	UploadDir   string
	ArtifactDir string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            getEnv("HTTP_ADDR", ":8085"),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Inference: InferenceConfig{
			BaseURL:     getEnv("OLLAMA_NATIVE_API", "http://localhost:11434/api"),
			Model:       getEnv("VISION_MODEL_NAME", "gemma3:12b"),
			Temperature: getEnvAsFloat64("VISION_TEMPERATURE", 0.2),
			Timeout:     getEnvAsDuration("VISION_TIMEOUT", 15*time.Minute),
		},
		Jobs: JobsConfig{
			Workers:       getEnvAsInt("JOB_WORKERS", 4),
			QueueSize:     getEnvAsInt("JOB_QUEUE_SIZE", 64),
			MaxPages:      getEnvAsInt("MAX_PAGES", 2),
			RenderScale:   getEnvAsFloat64("RENDER_SCALE", 1.6),
			AgentVersion:  getEnv("AGENT_VERSION", "v1"),
			CriticalPaths: getEnvAsList("CRITICAL_PATHS", nil),
		},
		Storage: StorageConfig{
			UploadDir:   getEnv("UPLOAD_DIR", "./uploads"),
			ArtifactDir: getEnv("ARTIFACT_DIR", "./runs"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// ValidateConfig validates the loaded configuration
func (c *Config) Validate() error {
	if c.Inference.BaseURL == "" {
		return NewAppError("CONFIG_ERROR", "OLLAMA_NATIVE_API is required", ErrInvalidInput)
	}
	if c.Inference.Model == "" {
		return NewAppError("CONFIG_ERROR", "VISION_MODEL_NAME is required", ErrInvalidInput)
	}
	if c.Jobs.Workers < 1 {
		return NewAppError("CONFIG_ERROR", "JOB_WORKERS must be at least 1", ErrInvalidInput)
	}
	if c.Jobs.MaxPages < 1 {
		return NewAppError("CONFIG_ERROR", "MAX_PAGES must be at least 1", ErrInvalidInput)
	}
	return nil
}
