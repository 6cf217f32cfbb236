// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"routedesk/internal/geo"
)

// Backends for STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendAirtable = "airtable"
	BackendPostgres = "postgres"
)

// Config holds runtime configuration for the service.
type Config struct {
	AppEnv  string `envconfig:"APP_ENV" default:"development" validate:"oneof=development test production"`
	AppAddr string `envconfig:"APP_ADDR" default:":8080" validate:"required"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn error"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console" validate:"oneof=console json"`

	StoreBackend string `envconfig:"STORE_BACKEND" default:"memory" validate:"oneof=memory airtable postgres"`

	AirtablePAT         string  `envconfig:"AIRTABLE_PAT" validate:"required_if=StoreBackend airtable"`
	AirtableBaseID      string  `envconfig:"AIRTABLE_BASE_ID" validate:"required_if=StoreBackend airtable"`
	AirtableOrdersTable string  `envconfig:"AIRTABLE_ORDERS_TABLE" default:"הזמנות"`
	AirtableRoutesTable string  `envconfig:"AIRTABLE_ROUTES_TABLE" default:"מסלולים"`
	AirtableBaseURL     string  `envconfig:"AIRTABLE_BASE_URL" default:"https://api.airtable.com/v0" validate:"url"`
	AirtableRPS         float64 `envconfig:"AIRTABLE_RPS" default:"5" validate:"gte=0"`

	DatabaseURL      string `envconfig:"DATABASE_URL" validate:"required_if=StoreBackend postgres"`
	DBMigrate        bool   `envconfig:"DB_MIGRATE" default:"false"`
	DBMigrationsDir  string `envconfig:"DB_MIGRATIONS_DIR" default:"db/migrations"`
	RedisURL         string `envconfig:"REDIS_URL"`
	GazetteerFile    string `envconfig:"GAZETTEER_FILE"`
	Timezone         string `envconfig:"TIMEZONE" default:"Asia/Jerusalem" validate:"timezone"`
	RateLimitPerMin  int    `envconfig:"RATE_LIMIT_PER_MIN" default:"600" validate:"gte=0"`
	TwoOptIterations int    `envconfig:"TWO_OPT_ITERATIONS" default:"0" validate:"gte=0"`

	DepotLat   float64 `envconfig:"DEPOT_LAT" default:"31.9730" validate:"latitude"`
	DepotLng   float64 `envconfig:"DEPOT_LNG" default:"34.7925" validate:"longitude"`
	DepotLabel string  `envconfig:"DEPOT_LABEL" default:"המשרד"`

	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s" validate:"gt=0"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s" validate:"gt=0"`
}

// Load reads .env when present, then the environment, then validates.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read .env: %w", err)
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// IsProduction returns true when the service runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

func (c *Config) Depot() geo.Coordinates {
	return geo.Coordinates{Lat: c.DepotLat, Lng: c.DepotLng}
}

func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Gazetteer returns the override file when configured, else the embedded one.
func (c *Config) Gazetteer() (*geo.Gazetteer, error) {
	if strings.TrimSpace(c.GazetteerFile) == "" {
		return geo.Default(), nil
	}
	return geo.Load(c.GazetteerFile)
}

// SetupLogging points the global zerolog logger at w.
func (c *Config) SetupLogging(w io.Writer) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	if c.LogFormat == "console" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(w).With().Timestamp().Str("service", "routedesk").Logger()
}
