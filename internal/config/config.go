package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by SENTINEL_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("SENTINEL_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

// APIKey is the bearer key required by the HTTP adapter. Empty disables auth.
func APIKey() string {
	return os.Getenv("SENTINEL_API_KEY")
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// ModelsFile is the YAML model registration file.
// Defaults to "models.yaml" if not set.
func ModelsFile() string {
	p := os.Getenv("MODELS_FILE")
	if p == "" {
		return "models.yaml"
	}
	return p
}

// ModelTimeout bounds each backend call unless a model overrides it.
// Defaults to 10s if not set.
func ModelTimeout() time.Duration {
	return durationEnv("MODEL_TIMEOUT", 10*time.Second)
}

// ModelRefreshInterval is how often external models are re-tested.
// Defaults to 5m if not set.
func ModelRefreshInterval() time.Duration {
	return durationEnv("MODEL_REFRESH_INTERVAL", 5*time.Minute)
}

// KafkaBrokers returns the comma-separated KAFKA_BROKERS list. Empty
// disables record publishing.
func KafkaBrokers() []string {
	raw := os.Getenv("KAFKA_BROKERS")
	if raw == "" {
		return nil
	}
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func KafkaTopic() string {
	t := os.Getenv("KAFKA_TOPIC")
	if t == "" {
		return "sentinel.learning-records"
	}
	return t
}

// SuccessCSAT is the lowest CSAT that counts a resolution as successful.
// Defaults to 4.0 if not set.
func SuccessCSAT() float64 {
	v, err := strconv.ParseFloat(os.Getenv("SUCCESS_CSAT"), 64)
	if err != nil || v <= 0 {
		return 4.0
	}
	return v
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
