package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	GeneratorNative = "native"
	GeneratorScript = "script"
)

// Config holds the service settings, read from the environment.
type Config struct {
	HTTPAddr     string
	LogLevel     string
	MaxBodyBytes int64
	CORSOrigins  []string

	Generator     string
	ScriptCommand string
	ScriptArgs    []string
	ScriptTimeout time.Duration
	TempDir       string

	RedisAddr      string
	IdempotencyTTL time.Duration
	RateGenRPS     float64
	RateGenBurst   float64
	RateReadRPS    float64
	RateReadBurst  float64

	NATSURL     string
	NATSSubject string

	JWTSecret string
	JWTRoles  []string
	JWTIssuer string

	TracingEnabled bool
}

// Load reads an optional .env file (dotenvPath, or ".env" when empty) and
// then the process environment. Variables already set win over the file.
func Load(dotenvPath string) (Config, error) {
	path := dotenvPath
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", path, err)
	}

	cfg := Config{
		HTTPAddr:       getenv("HTTP_ADDR", ":3000"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		MaxBodyBytes:   int64(parseIntEnv("MAX_BODY_MB", 100)) << 20,
		CORSOrigins:    parseListEnv("CORS_ORIGINS", []string{"*"}),
		Generator:      strings.ToLower(getenv("GENERATOR", GeneratorNative)),
		ScriptCommand:  getenv("SCRIPT_COMMAND", "pptxgen"),
		ScriptArgs:     strings.Fields(os.Getenv("SCRIPT_ARGS")),
		ScriptTimeout:  parseDurationEnv("SCRIPT_TIMEOUT", 60*time.Second),
		TempDir:        os.Getenv("TEMP_DIR"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		IdempotencyTTL: parseDurationEnv("IDEMPOTENCY_TTL", 10*time.Minute),
		RateGenRPS:     parseFloatEnv("RATE_GENERATE_RPS", 2),
		RateGenBurst:   parseFloatEnv("RATE_GENERATE_BURST", 5),
		RateReadRPS:    parseFloatEnv("RATE_READ_RPS", 50),
		RateReadBurst:  parseFloatEnv("RATE_READ_BURST", 100),
		NATSURL:        os.Getenv("NATS_URL"),
		NATSSubject:    getenv("NATS_SUBJECT", "deck.events"),
		JWTSecret:      os.Getenv("AUTH_JWT_SECRET"),
		JWTRoles:       parseListEnv("AUTH_ROLES", nil),
		JWTIssuer:      os.Getenv("AUTH_ISSUER"),
		TracingEnabled: parseBoolEnv("TRACING_ENABLED", false),
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Generator {
	case GeneratorNative:
	case GeneratorScript:
		if strings.TrimSpace(c.ScriptCommand) == "" {
			return errors.New("SCRIPT_COMMAND is required for the script generator")
		}
	default:
		return fmt.Errorf("unknown GENERATOR %q (want %s or %s)", c.Generator, GeneratorNative, GeneratorScript)
	}
	if c.MaxBodyBytes <= 0 {
		return errors.New("MAX_BODY_MB must be positive")
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseIntEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func parseFloatEnv(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func parseBoolEnv(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func parseDurationEnv(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func parseListEnv(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
