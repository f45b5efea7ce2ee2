package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Session      SessionConfig
	Policy       PolicyConfig
	Kafka        KafkaConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values. An empty DSN selects the
// seeded in-memory data provider.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior. Service, Version and Env are
// copied from AppConfig and stamped on every entry.
type LoggerConfig struct {
	Level   string
	Service string
	Version string
	Env     string
}

// AuthConfig defines staff token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// SessionConfig drives the session store, the janitor and turn limits.
type SessionConfig struct {
	Store          string
	IdleTimeout    time.Duration
	TerminalGrace  time.Duration
	SweepInterval  time.Duration
	MaxHistory     int
	TurnsPerSecond float64
	TurnBurst      int
}

// PolicyConfig carries the return policy handed to the specialists.
type PolicyConfig struct {
	ReturnWindowDays   int
	RecentOrderLimit   int
	FraudRiskThreshold float64
	TrackingPrefix     string
	DefaultCarrier     string
	LabelBaseURL       string
	RulesFile          string
	IntentFallback     string
	ReasonFallback     string
}

// KafkaConfig enables the event sink when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Enabled reports whether events should be forwarded to Kafka.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "returnflow"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Session: SessionConfig{
			Store:          getEnv("SESSION_STORE", "memory"),
			IdleTimeout:    getEnvAsDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
			TerminalGrace:  getEnvAsDuration("SESSION_TERMINAL_GRACE", 2*time.Minute),
			SweepInterval:  getEnvAsDuration("SESSION_SWEEP_INTERVAL", time.Minute),
			MaxHistory:     getEnvAsInt("SESSION_MAX_HISTORY", 200),
			TurnsPerSecond: getEnvAsFloat("SESSION_TURNS_PER_SECOND", 2),
			TurnBurst:      getEnvAsInt("SESSION_TURN_BURST", 5),
		},
		Policy: PolicyConfig{
			ReturnWindowDays:   getEnvAsInt("RETURN_WINDOW_DAYS", 30),
			RecentOrderLimit:   getEnvAsInt("RECENT_ORDER_LIMIT", 5),
			FraudRiskThreshold: getEnvAsFloat("FRAUD_RISK_THRESHOLD", 0.7),
			TrackingPrefix:     getEnv("TRACKING_PREFIX", "1Z"),
			DefaultCarrier:     strings.ToLower(getEnv("DEFAULT_CARRIER", "ups")),
			LabelBaseURL:       getEnv("LABEL_BASE_URL", "https://returns.example.com"),
			RulesFile:          os.Getenv("CLASSIFIER_RULES_FILE"),
			IntentFallback:     getEnv("CLASSIFIER_INTENT_FALLBACK", "clarify"),
			ReasonFallback:     getEnv("CLASSIFIER_REASON_FALLBACK", "clarify"),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvAsList("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_EVENTS_TOPIC", "returnflow-events"),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	cfg.Logger.Service = cfg.App.Name
	cfg.Logger.Version = cfg.App.Version
	cfg.Logger.Env = cfg.App.Env

	if cfg.Policy.FraudRiskThreshold <= 0 || cfg.Policy.FraudRiskThreshold > 1 {
		return nil, fmt.Errorf("invalid FRAUD_RISK_THRESHOLD %v: must be in (0, 1]", cfg.Policy.FraudRiskThreshold)
	}
	switch cfg.Session.Store {
	case "memory", "redis":
	default:
		return nil, fmt.Errorf("invalid SESSION_STORE %q", cfg.Session.Store)
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
