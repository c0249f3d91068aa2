package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string `yaml:"server_address"`
	Environment   string `yaml:"environment"`

	// AWS configuration
	AWSRegion     string `yaml:"aws_region"`
	DynamoDBTable string `yaml:"table_name"`
	GSI1IndexName string `yaml:"gsi1_index_name"`
	GSI2IndexName string `yaml:"gsi2_index_name"`
	EventBusName  string `yaml:"event_bus_name"`

	// Lambda configuration
	IsLambda           bool   `yaml:"-"`
	LambdaFunctionName string `yaml:"-"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Authentication
	JWTSecret string `yaml:"jwt_secret"`
	JWTIssuer string `yaml:"jwt_issuer"`

	// Feature flags
	EnableMetrics bool `yaml:"enable_metrics"`
	EnableTracing bool `yaml:"enable_tracing"`
	EnableCORS    bool `yaml:"enable_cors"`

	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	MetricsNamespace   string   `yaml:"metrics_namespace"`

	// Club membership rules
	CapabilityCacheTTL          time.Duration `yaml:"capability_cache_ttl"`
	InvitationSweepSchedule     string        `yaml:"invitation_sweep_schedule"`
	DefaultInvitationExpiryDays int           `yaml:"default_invitation_expiry_days"`

	// Rate limiting per caller
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
	RateLimitBurst     int `yaml:"rate_limit_burst"`

	// ConfigFile is the YAML overlay the config was read from, if any
	ConfigFile string `yaml:"-"`
}

// Defaults returns the configuration used when nothing overrides it
func Defaults() *Config {
	return &Config{
		ServerAddress:               ":8080",
		Environment:                 "development",
		AWSRegion:                   "us-west-2",
		DynamoDBTable:               "collective-rides",
		GSI1IndexName:               "GSI1",
		GSI2IndexName:               "GSI2",
		EventBusName:                "collective-rides-events",
		LogLevel:                    "info",
		JWTIssuer:                   "collective-rides",
		EnableCORS:                  true,
		CORSAllowedOrigins:          []string{"*"},
		MetricsNamespace:            "CollectiveRides",
		CapabilityCacheTTL:          5 * time.Minute,
		InvitationSweepSchedule:     "@every 15m",
		DefaultInvitationExpiryDays: 7,
		RateLimitPerMinute:          120,
		RateLimitBurst:              20,
	}
}

// LoadConfig loads configuration from environment variables. When CONFIG_FILE is set the file
// is read first and the environment applied on top.
func LoadConfig() (*Config, error) {
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		return LoadFromFile(path)
	}

	cfg := Defaults()
	applyEnvironment(cfg)
	cfg.normalize()

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvironment overlays every variable that is set
func applyEnvironment(cfg *Config) {
	cfg.ServerAddress = getEnv("SERVER_ADDRESS", cfg.ServerAddress)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.AWSRegion = getEnv("AWS_REGION", cfg.AWSRegion)
	cfg.DynamoDBTable = getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", cfg.DynamoDBTable))
	cfg.GSI1IndexName = getEnv("GSI1_INDEX_NAME", cfg.GSI1IndexName)
	cfg.GSI2IndexName = getEnv("GSI2_INDEX_NAME", cfg.GSI2IndexName)
	cfg.EventBusName = getEnv("EVENT_BUS_NAME", cfg.EventBusName)

	cfg.LambdaFunctionName = getEnv("AWS_LAMBDA_FUNCTION_NAME", cfg.LambdaFunctionName)
	cfg.IsLambda = getEnvBool("IS_LAMBDA", cfg.LambdaFunctionName != "")

	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTIssuer = getEnv("JWT_ISSUER", cfg.JWTIssuer)

	cfg.EnableMetrics = getEnvBool("ENABLE_METRICS", cfg.EnableMetrics)
	cfg.EnableTracing = getEnvBool("ENABLE_TRACING", cfg.EnableTracing)
	cfg.EnableCORS = getEnvBool("ENABLE_CORS", cfg.EnableCORS)
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.CORSAllowedOrigins = splitList(origins)
	}
	cfg.MetricsNamespace = getEnv("METRICS_NAMESPACE", cfg.MetricsNamespace)

	cfg.CapabilityCacheTTL = getEnvDuration("CAPABILITY_CACHE_TTL", cfg.CapabilityCacheTTL)
	cfg.InvitationSweepSchedule = getEnv("INVITATION_SWEEP_SCHEDULE", cfg.InvitationSweepSchedule)
	cfg.DefaultInvitationExpiryDays = getEnvInt("DEFAULT_INVITATION_EXPIRY_DAYS", cfg.DefaultInvitationExpiryDays)

	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", cfg.RateLimitPerMinute)
	cfg.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", cfg.RateLimitBurst)
}

// normalize clamps values into their allowed ranges
func (c *Config) normalize() {
	if c.DefaultInvitationExpiryDays <= 0 {
		c.DefaultInvitationExpiryDays = 7
	}
	if c.DefaultInvitationExpiryDays > 30 {
		c.DefaultInvitationExpiryDays = 30
	}
	if c.GSI1IndexName == "" {
		c.GSI1IndexName = "GSI1"
	}
	if c.GSI2IndexName == "" {
		c.GSI2IndexName = "GSI2"
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	if c.CapabilityCacheTTL < 0 {
		return fmt.Errorf("CAPABILITY_CACHE_TTL cannot be negative")
	}

	if c.Environment == "production" {
		if c.JWTSecret == "" && !c.IsLambda {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.DynamoDBTable == "" {
			return fmt.Errorf("TABLE_NAME is required")
		}
		if c.EventBusName == "" {
			return fmt.Errorf("EVENT_BUS_NAME is required")
		}
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
