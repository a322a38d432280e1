package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	Port               string        `mapstructure:"PORT"`
	Env                string        `mapstructure:"ENV"`
	StoreBackend       string        `mapstructure:"STORE_BACKEND"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	DBMaxConns         int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL           string        `mapstructure:"REDIS_URL"`
	KafkaBrokers       []string      `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic         string        `mapstructure:"KAFKA_TOPIC"`
	AuthSigningKey     string        `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer         string        `mapstructure:"AUTH_ISSUER"`
	AuthTokenTTL       time.Duration `mapstructure:"AUTH_TOKEN_TTL"`
	UsersFile          string        `mapstructure:"USERS_FILE"`
	CORSOrigins        []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS       float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst     int           `mapstructure:"RATE_LIMIT_BURST"`
	CallTTL            time.Duration `mapstructure:"CALL_TTL"`
	CallSweepInterval  time.Duration `mapstructure:"CALL_SWEEP_INTERVAL"`
	TriageStation      string        `mapstructure:"TRIAGE_STATION"`
	DefaultConsultorio string        `mapstructure:"DEFAULT_CONSULTORIO"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE_BACKEND", StoreMemory)
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("KAFKA_TOPIC", "siah.flow")
	v.SetDefault("AUTH_ISSUER", "siah")
	v.SetDefault("AUTH_TOKEN_TTL", "12h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("CALL_TTL", "5m")
	v.SetDefault("CALL_SWEEP_INTERVAL", "1m")
	v.SetDefault("TRIAGE_STATION", "Triagem")
	v.SetDefault("DEFAULT_CONSULTORIO", "Consultório Principal")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "STORE_BACKEND", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"REDIS_URL", "KAFKA_BROKERS", "KAFKA_TOPIC", "AUTH_SIGNING_KEY", "AUTH_ISSUER",
		"AUTH_TOKEN_TTL", "USERS_FILE", "CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
		"CALL_TTL", "CALL_SWEEP_INTERVAL", "TRIAGE_STATION", "DEFAULT_CONSULTORIO",
	} {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins, v.GetString("CORS_ORIGINS"))
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers, v.GetString("KAFKA_BROKERS"))

	if cfg.StoreBackend == StorePostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=%s", StorePostgres)
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active, all requests get admin access")
		log.Println("WARNING: and the demo users <role>/123456 are seeded.")
		log.Println("WARNING: Set ENV=production and AUTH_SIGNING_KEY for production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

// splitList normalises comma separated env values, trimming blanks.
func splitList(current []string, raw string) []string {
	if raw == "" {
		return current
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// UsesPostgres reports whether flow and ticket state live in PostgreSQL.
func (c *Config) UsesPostgres() bool {
	return c.StoreBackend == StorePostgres
}

// Validate checks that the configuration is safe to run. Outside development
// a signing key of at least 32 bytes is required so issued tokens cannot be
// forged.
func (c *Config) Validate() error {
	if c.StoreBackend != StoreMemory && c.StoreBackend != StorePostgres {
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StoreMemory, StorePostgres, c.StoreBackend)
	}
	if !c.IsDev() {
		if c.AuthSigningKey == "" {
			return fmt.Errorf("AUTH_SIGNING_KEY is required when ENV=%q", c.Env)
		}
		if len(c.AuthSigningKey) < 32 {
			return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes, got %d", len(c.AuthSigningKey))
		}
		if c.UsersFile == "" {
			return fmt.Errorf("USERS_FILE is required when ENV=%q", c.Env)
		}
	}
	if c.CallTTL <= 0 {
		return fmt.Errorf("CALL_TTL must be positive, got %s", c.CallTTL)
	}
	if c.CallSweepInterval <= 0 {
		return fmt.Errorf("CALL_SWEEP_INTERVAL must be positive, got %s", c.CallSweepInterval)
	}
	return nil
}
