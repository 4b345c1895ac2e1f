package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
	"github.com/ignatzorin/dispatch-engine/internal/infrastructure/pricing"
)

// Config хранит все параметры запуска приложения.
type Config struct {
	Env            string
	HTTPPort       string
	LogLevel       string
	DatabaseURL    string
	MigrationsPath string
	RedisURL       string

	JWTSecret      string
	AccessTokenTTL time.Duration
	AllowedOrigins []string

	RateLimitLimit  int64
	RateLimitPeriod time.Duration

	QuoteTTL    time.Duration
	QuoteWindow time.Duration

	DispatchMode     valueobject.DispatchMode
	DispatchEntryTTL time.Duration
	ExhaustedPolicy  valueobject.ExhaustedPolicy

	Tiers   valueobject.TierPolicy
	Pricing pricing.Table

	SweepInterval  time.Duration
	SweepWorkers   int
	RosterCacheTTL time.Duration
	PolicyFile     string
	// RosterFile YAML с исполнителями для работы без БД.
	RosterFile string
}

// Load читает .env и переменные окружения и возвращает готовую конфигурацию.
func Load() (*Config, error) {
	// Загружаем .env только если он существует, иначе используем системные переменные.
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("config: .env не найден, используем переменные окружения: %v", err)
	}
	return FromEnv()
}

// FromEnv собирает конфигурацию из текущего окружения без чтения .env.
func FromEnv() (*Config, error) {
	env := getEnv("APP_ENV", "development")
	p := &parser{}

	cfg := &Config{
		Env:            env,
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DatabaseURL:    getDatabaseURL(),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "./migrations"),
		RedisURL:       getEnv("REDIS_URL", ""),
		PolicyFile:     getEnv("POLICY_FILE", ""),
		RosterFile:     getEnv("ROSTER_FILE", ""),

		AccessTokenTTL:  p.duration("ACCESS_TOKEN_TTL", "15m"),
		RateLimitLimit:  p.int64("RATE_LIMIT_LIMIT", "60"),
		RateLimitPeriod: p.duration("RATE_LIMIT_PERIOD", "1m"),

		QuoteTTL:         p.duration("QUOTE_TTL", "12h"),
		QuoteWindow:      p.duration("QUOTE_WINDOW", "24h"),
		DispatchEntryTTL: p.duration("DISPATCH_ENTRY_TTL", "3m"),

		Tiers: valueobject.TierPolicy{
			ManualRadiusKm:   p.float("MANUAL_RADIUS_KM", "5"),
			EquippedRadiusKm: p.float("EQUIPPED_RADIUS_KM", "25"),
		},
		Pricing: pricing.DefaultTable(),

		SweepInterval:  p.duration("SWEEP_INTERVAL", "30s"),
		SweepWorkers:   int(p.int64("SWEEP_WORKERS", "4")),
		RosterCacheTTL: p.duration("ROSTER_CACHE_TTL", "30s"),
	}
	if p.err != nil {
		return nil, p.err
	}

	mode, err := valueobject.NewDispatchMode(getEnv("DISPATCH_MODE", string(valueobject.DispatchModeSequential)))
	if err != nil {
		return nil, fmt.Errorf("config: DISPATCH_MODE: %w", err)
	}
	cfg.DispatchMode = mode

	policy, err := valueobject.NewExhaustedPolicy(getEnv("DISPATCH_EXHAUSTED_POLICY", string(valueobject.ExhaustedNoCoverage)))
	if err != nil {
		return nil, fmt.Errorf("config: DISPATCH_EXHAUSTED_POLICY: %w", err)
	}
	cfg.ExhaustedPolicy = policy

	// Валидация JWT секрета
	jwtSecret := getEnv("JWT_SECRET", "")
	if env == "production" {
		if len(jwtSecret) < 32 {
			return nil, fmt.Errorf("config: JWT_SECRET обязателен и должен быть не менее 32 символов в production")
		}
	} else if jwtSecret == "" {
		jwtSecret = "super-secret-development-only-change-in-production"
		log.Printf("config: WARNING - используется дефолтный JWT_SECRET, измените в production!")
	}
	cfg.JWTSecret = jwtSecret

	originsStr := getEnv("CORS_ALLOWED_ORIGINS", "")
	if originsStr == "" {
		if env == "production" {
			return nil, fmt.Errorf("config: CORS_ALLOWED_ORIGINS обязателен в production")
		}
		cfg.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:3001"}
	} else {
		for _, origin := range strings.Split(originsStr, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}

	if cfg.PolicyFile != "" {
		if err := cfg.applyPolicyFile(cfg.PolicyFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.QuoteTTL <= 0:
		return fmt.Errorf("config: QUOTE_TTL должен быть положительным")
	case c.QuoteWindow <= 0:
		return fmt.Errorf("config: QUOTE_WINDOW должен быть положительным")
	case c.DispatchEntryTTL <= 0:
		return fmt.Errorf("config: DISPATCH_ENTRY_TTL должен быть положительным")
	case c.Tiers.ManualRadiusKm <= 0 || c.Tiers.EquippedRadiusKm <= 0:
		return fmt.Errorf("config: радиусы уровней должны быть положительными")
	case c.SweepWorkers < 1:
		return fmt.Errorf("config: SWEEP_WORKERS должен быть не меньше 1")
	}
	return nil
}

// IsProduction true для APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// getEnv возвращает значение переменной окружения или дефолт.
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// getDatabaseURL возвращает DATABASE_URL либо из переменной, либо собирает из отдельных переменных.
// Пустая строка означает хранилище в памяти.
func getDatabaseURL() string {
	if dbURL := getEnv("DATABASE_URL", ""); dbURL != "" {
		return dbURL
	}

	host := getEnv("POSTGRESQL_HOST", "")
	port := getEnv("POSTGRESQL_PORT", "5432")
	user := getEnv("POSTGRESQL_USER", "")
	password := getEnv("POSTGRESQL_PASSWORD", "")
	dbname := getEnv("POSTGRESQL_DBNAME", "")

	if host != "" && user != "" && dbname != "" {
		userInfo := url.UserPassword(user, password)
		return fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=disable", userInfo.String(), host, port, dbname)
	}
	return ""
}

// parser запоминает первую ошибку разбора, чтобы не проверять каждую переменную отдельно.
type parser struct {
	err error
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("config: не удалось распарсить %s=%q: %w", key, value, err)
	}
}

func (p *parser) duration(key, fallback string) time.Duration {
	v := getEnv(key, fallback)
	dur, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
	}
	return dur
}

func (p *parser) int64(key, fallback string) int64 {
	v := getEnv(key, fallback)
	num, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.fail(key, v, err)
	}
	return num
}

func (p *parser) float(key, fallback string) float64 {
	v := getEnv(key, fallback)
	num, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v, err)
	}
	return num
}
