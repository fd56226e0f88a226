package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Supported values for DB_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

const defaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// Config holds every setting the service reads at startup.
type Config struct {
	AppPort string

	DBDriver    string
	DatabaseDSN string

	JWTSecret  string
	JWTTTL     time.Duration
	BcryptCost int

	GoogleUserInfoURL    string
	FederatedTrustClient bool

	RabbitMQURL   string
	RabbitMQQueue string

	CORSOrigins string

	LogLevel string
	LogDev   bool
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("DB_DRIVER", DriverSQLite)
	v.SetDefault("DATABASE_DSN", "notesaver.db")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_TTL", 30*24*time.Hour)
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("GOOGLE_USERINFO_URL", defaultGoogleUserInfoURL)
	v.SetDefault("FEDERATED_TRUST_CLIENT", false)
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("RABBITMQ_QUEUE", "note_events")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_DEV", false)
}

// Load reads configuration from an optional .env file, an optional
// config.yaml in the working directory and the environment, in increasing
// order of precedence.
func Load(v *viper.Viper) (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	SetDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}
	v.AutomaticEnv()

	return FromViper(v)
}

// FromViper builds a Config from values already present in v and validates it.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		AppPort:              v.GetString("APP_PORT"),
		DBDriver:             strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER"))),
		DatabaseDSN:          v.GetString("DATABASE_DSN"),
		JWTSecret:            v.GetString("JWT_SECRET"),
		JWTTTL:               v.GetDuration("JWT_TTL"),
		BcryptCost:           v.GetInt("BCRYPT_COST"),
		GoogleUserInfoURL:    v.GetString("GOOGLE_USERINFO_URL"),
		FederatedTrustClient: v.GetBool("FEDERATED_TRUST_CLIENT"),
		RabbitMQURL:          v.GetString("RABBITMQ_URL"),
		RabbitMQQueue:        v.GetString("RABBITMQ_QUEUE"),
		CORSOrigins:          v.GetString("CORS_ORIGINS"),
		LogLevel:             v.GetString("LOG_LEVEL"),
		LogDev:               v.GetBool("LOG_DEV"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first setting that would prevent the service from starting.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.JWTTTL <= 0 {
		return errors.Errorf("JWT_TTL must be positive, got %s", c.JWTTTL)
	}
	// bcrypt.MinCost and bcrypt.MaxCost
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}
	switch c.DBDriver {
	case DriverPostgres, DriverSQLite:
		if c.DatabaseDSN == "" {
			return errors.Errorf("DATABASE_DSN is required for driver %s", c.DBDriver)
		}
	case DriverMemory:
	default:
		return errors.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	if !c.FederatedTrustClient && c.GoogleUserInfoURL == "" {
		return errors.New("GOOGLE_USERINFO_URL is required unless FEDERATED_TRUST_CLIENT is set")
	}
	if c.RabbitMQURL != "" && c.RabbitMQQueue == "" {
		return errors.New("RABBITMQ_QUEUE is required when RABBITMQ_URL is set")
	}
	return nil
}
