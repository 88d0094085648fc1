package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/report"
	"github.com/cmlabs-hris/hris-attendance-go/internal/pkg/validator"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Database  DatabaseConfig
	JWT       JWTConfig
	App       AppConfig
	Policy    PolicyConfig
	Report    ReportConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
}

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	Name        string
	SSLMode     string
	MaxConns    int32
	AutoMigrate bool
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	AccessExpiration time.Duration
}

// AppConfig holds application configuration
type AppConfig struct {
	Port        int
	Env         string
	LogLevel    string
	Timezone    string
	StoreDriver string
}

// PolicyConfig is the shift and reconciliation block. It can be overridden
// by the YAML file named in POLICY_FILE.
type PolicyConfig struct {
	ShiftStart          string `yaml:"shift_start"`
	ShiftEnd            string `yaml:"shift_end"`
	ShiftGraceMinutes   int    `yaml:"shift_grace_minutes"`
	LeaveConflictPolicy string `yaml:"leave_conflict_policy"`
	RateDenominator     string `yaml:"rate_denominator"`
}

type ReportConfig struct {
	CacheTTL time.Duration
}

type RateLimitConfig struct {
	PerMinute int
	Burst     int
}

type CORSConfig struct {
	AllowedOrigins []string
}

func Load() (*Config, error) {
	// A missing .env is fine, the process environment still applies.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	config := &Config{}

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	maxConns, err := strconv.Atoi(getEnv("DB_MAX_CONNS", "25"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}
	autoMigrate, err := strconv.ParseBool(getEnv("DB_AUTO_MIGRATE", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_AUTO_MIGRATE: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:        getEnv("DB_HOST", "localhost"),
		Port:        dbPort,
		User:        getEnv("DB_USER", "postgres"),
		Password:    getEnv("DB_PASSWORD", ""),
		Name:        getEnv("DB_NAME", "hris-attendance"),
		SSLMode:     getEnv("DB_SSL_MODE", "disable"),
		MaxConns:    int32(maxConns),
		AutoMigrate: autoMigrate,
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Port:        appPort,
		Env:         getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Timezone:    getEnv("APP_TIMEZONE", "UTC"),
		StoreDriver: getEnv("STORE_DRIVER", StoreDriverPostgres),
	}

	// JWT configuration
	accessExpiration, err := time.ParseDuration(getEnv("JWT_ACCESS_EXPIRATION_TIME", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_ACCESS_EXPIRATION_TIME: %w", err)
	}

	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: accessExpiration,
	}

	// Shift and reconciliation policy
	grace, err := strconv.Atoi(getEnv("SHIFT_GRACE_MINUTES", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid SHIFT_GRACE_MINUTES: %w", err)
	}

	config.Policy = PolicyConfig{
		ShiftStart:          getEnv("SHIFT_START", "09:00"),
		ShiftEnd:            getEnv("SHIFT_END", "17:00"),
		ShiftGraceMinutes:   grace,
		LeaveConflictPolicy: getEnv("LEAVE_CONFLICT_POLICY", string(attendance.PolicySessionWins)),
		RateDenominator:     getEnv("RATE_DENOMINATOR", string(report.IncludeLeave)),
	}

	if path := getEnv("POLICY_FILE", ""); path != "" {
		if err := config.Policy.loadFile(path); err != nil {
			return nil, err
		}
	}

	// Reports
	cacheTTL, err := time.ParseDuration(getEnv("REPORT_CACHE_TTL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid REPORT_CACHE_TTL: %w", err)
	}
	config.Report = ReportConfig{CacheTTL: cacheTTL}

	// Rate limiting on clock and break endpoints
	perMinute, err := strconv.Atoi(getEnv("RATE_LIMIT_PER_MINUTE", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE: %w", err)
	}
	burst, err := strconv.Atoi(getEnv("RATE_LIMIT_BURST", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}
	config.RateLimit = RateLimitConfig{PerMinute: perMinute, Burst: burst}

	config.CORS = CORSConfig{
		AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS"),
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// loadFile overlays the non-empty keys of a YAML policy file.
func (p *PolicyConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading POLICY_FILE: %w", err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return fmt.Errorf("parsing POLICY_FILE %s: %w", path, err)
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.JWT.AccessExpiration <= 0 {
		return fmt.Errorf("JWT_ACCESS_EXPIRATION_TIME must be positive")
	}

	switch c.App.StoreDriver {
	case StoreDriverPostgres:
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, c.App.StoreDriver)
	}

	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("invalid APP_TIMEZONE: %w", err)
	}
	if _, err := parseLogLevel(c.App.LogLevel); err != nil {
		return err
	}

	if !validator.IsValidClockTime(c.Policy.ShiftStart) {
		return fmt.Errorf("SHIFT_START must be HH:MM, got %q", c.Policy.ShiftStart)
	}
	if !validator.IsValidClockTime(c.Policy.ShiftEnd) {
		return fmt.Errorf("SHIFT_END must be HH:MM, got %q", c.Policy.ShiftEnd)
	}
	if c.Policy.ShiftGraceMinutes < 0 {
		return fmt.Errorf("SHIFT_GRACE_MINUTES must not be negative")
	}
	if _, err := attendance.ParseLeaveConflictPolicy(c.Policy.LeaveConflictPolicy); err != nil {
		return fmt.Errorf("LEAVE_CONFLICT_POLICY: %w", err)
	}
	if _, err := report.ParseRateDenominator(c.Policy.RateDenominator); err != nil {
		return fmt.Errorf("RATE_DENOMINATOR: %w", err)
	}

	if c.RateLimit.PerMinute <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// Location is the business timezone that owns calendar dates.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ShiftPolicy builds the thresholds used for status hints.
func (c *Config) ShiftPolicy() attendance.ShiftPolicy {
	return attendance.ShiftPolicy{
		Start:    c.Policy.ShiftStart,
		End:      c.Policy.ShiftEnd,
		Grace:    time.Duration(c.Policy.ShiftGraceMinutes) * time.Minute,
		Location: c.Location(),
	}
}

// LeaveConflictPolicy returns the validated policy.
func (c *Config) LeaveConflictPolicy() attendance.LeaveConflictPolicy {
	p, _ := attendance.ParseLeaveConflictPolicy(c.Policy.LeaveConflictPolicy)
	return p
}

func (c *Config) RateDenominator() report.RateDenominator {
	d, _ := report.ParseRateDenominator(c.Policy.RateDenominator)
	return d
}

func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLogLevel(c.App.LogLevel)
	return level
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q", s)
	}
	return level, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(env string) []string {
	value := getEnv(env, "")
	if value == "" {
		return []string{}
	}
	var result []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			result = append(result, v)
		}
	}
	return result
}
