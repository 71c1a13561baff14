// Package config manages environment variables.
//
// It reads variables from the `.env` file, loads them into
// structured Go types (structs), and validates that required
// values are present so they can be reused across the
// application runtime.
//
// Responsibilities:
//   - Load environment variables (optionally from a `.env` file).
//   - Map env vars into a structured Go config (structs).
//   - Validate required values so the app fails fast on bad/missing config.
//   - Provide sane defaults for optional config blocks (observability, resilience).
package config

import (
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	// Side-effect import: if a `.env` file exists, godotenv loads it into the
	// process env before any of this code reads env vars.
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
)

// Env vars use the ARCHON_ prefix and dot-delimited nesting:
//
//	ARCHON_SERVER.PORT -> server.port -> Config.Server.Port
//
// koanf handles the prefix stripping and key normalization below.

// Config is the root configuration object for the application.
//
// The `koanf:"..."` tags specify where koanf should map values from.
// The `validate:"required"` tags are enforced by go-playground/validator.
//
// Observability and Resilience are pointers because they are optional;
// defaults are injected at load time when they are missing.
type Config struct {
	Primary       Primary              `koanf:"primary" validate:"required"`
	Server        ServerConfig         `koanf:"server" validate:"required"`
	Database      DatabaseConfig       `koanf:"database" validate:"required"`
	Redis         RedisConfig          `koanf:"redis" validate:"required"`
	Auth          AuthConfig           `koanf:"auth" validate:"required"`
	Archcheck     ArchcheckConfig      `koanf:"archcheck" validate:"required"`
	Integration   IntegrationConfig    `koanf:"integration"`
	Resilience    *ResilienceConfig    `koanf:"resilience"`
	Observability *ObservabilityConfig `koanf:"observability"`
}

// Primary holds top-level information about the runtime environment.
// Used to tag logs/traces and to switch behavior based on env.
type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

// ServerConfig groups settings for the HTTP server runtime.
//
// Timeouts are stored as plain ints and interpreted as seconds where used.
type ServerConfig struct {
	Port               string   `koanf:"port" validate:"required"`
	ReadTimeout        int      `koanf:"read_timeout" validate:"required"`
	WriteTimeout       int      `koanf:"write_timeout" validate:"required"`
	IdleTimeout        int      `koanf:"idle_timeout" validate:"required"`
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins" validate:"required"`
}

// DatabaseConfig contains PostgreSQL connection parameters and pool tuning.
type DatabaseConfig struct {
	Host            string `koanf:"host" validate:"required"`
	Port            int    `koanf:"port" validate:"required"`
	User            string `koanf:"user" validate:"required"`
	Password        string `koanf:"password" validate:"required"`
	Name            string `koanf:"name" validate:"required"`
	SSLMode         string `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int    `koanf:"max_open_conns" validate:"required"`
	MaxIdleConns    int    `koanf:"max_idle_conns" validate:"required"`
	ConnMaxLifetime int    `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime int    `koanf:"conn_max_idle_time" validate:"required"`
}

// RedisConfig contains Redis connection details.
// Address is typically "host:port".
type RedisConfig struct {
	Address string `koanf:"address" validate:"required"`
}

// AuthConfig stores authentication-related secrets.
//
// ClerkSecretKey authorizes the Clerk SDK; mutating endpoints
// (scan triggers, breaker resets) refuse requests without a valid session.
type AuthConfig struct {
	ClerkSecretKey string `koanf:"clerk_secret_key" validate:"required"`
}

// ArchcheckConfig controls the architecture scanner.
type ArchcheckConfig struct {
	// Root is the module tree that scans analyze. For the service this is
	// usually a checkout the deployment mounts read-only.
	Root string `koanf:"root" validate:"required"`

	// RulesFile optionally points at a YAML layer-rules file.
	// Empty means "use the built-in Clean Architecture rules".
	RulesFile string `koanf:"rules_file"`

	// ReportRecipient, when set, receives a violation report email
	// after each scan that finds violations.
	ReportRecipient string `koanf:"report_recipient"`
}

// IntegrationConfig stores API keys for third-party providers.
type IntegrationConfig struct {
	// ResendAPIKey enables outgoing report mail. Empty disables email.
	ResendAPIKey string `koanf:"resend_api_key"`
}

// Load loads configuration from environment variables, unmarshals it into
// Config structs, validates it, applies defaults, and returns the result.
//
// Behavior summary:
//   - Loads env vars with prefix ARCHON_
//   - Converts env keys into koanf keys using "." nesting
//   - Unmarshals into Config
//   - Validates required config blocks/fields
//   - Injects default observability/resilience blocks when missing
//   - Forces observability service name + environment
//
// Errors during loading are fatal: a process with half a config is worse
// than no process, so we exit instead of limping along.
func Load() (*Config, error) {
	// Bootstrap logger for config loading itself. The real application logger
	// cannot exist yet because it needs the config we are about to load.
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	// "." is the key-path delimiter koanf uses to represent nesting,
	// e.g. "server.port" means Config.Server.Port.
	k := koanf.New(".")

	// Only env vars with the ARCHON_ prefix are read; the prefix is stripped
	// and the remainder lowercased, so ARCHON_DATABASE.HOST -> database.host.
	err := k.Load(env.Provider("ARCHON_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "ARCHON_"))
	}), nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("Could not load initial env variables.")
	}

	mainConfig := &Config{}

	// Unmarshal everything from the root ("") into the config struct.
	err = k.Unmarshal("", mainConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("Could not unmarshal main config.")
	}

	// validator reads the `validate:"required"` tags on struct fields and
	// rejects the config when a required block or field is missing.
	validate := validator.New()

	err = validate.Struct(mainConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("Config validation failed.")
	}

	// Optional blocks are pointers, so nil means "missing" and gets defaults.
	if mainConfig.Observability == nil {
		mainConfig.Observability = DefaultObservabilityConfig()
	}
	if mainConfig.Resilience == nil {
		mainConfig.Resilience = DefaultResilienceConfig()
	}

	// Force service name and environment values regardless of what was set.
	// This keeps tracing/logging service naming consistent across deploys.
	mainConfig.Observability.ServiceName = "archon"
	mainConfig.Observability.Environment = mainConfig.Primary.Env

	if err := mainConfig.Observability.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid observability config")
	}

	if err := mainConfig.Resilience.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid resilience config")
	}

	return mainConfig, nil
}
