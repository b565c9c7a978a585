package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/crypto/bcrypt"
)

// Config holds the application configuration.
// It is populated once at start-up and never mutated afterwards.
type Config struct {
	ServerPort   int
	DatabasePath string

	JWTSecret   string
	TokenTTL    time.Duration // 0 means tokens stay valid until revoked
	MaxSessions int           // 0 means no cap on concurrent sessions per user
	BcryptCost  int

	SessionSweepSchedule string

	CORSAllowedOrigins cli.StringSlice

	LogLevel  string
	LogFormat string // "console" or "json"

	// S3-compatible avatar storage, used when S3Bucket is set.
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
}

// Flags binds every setting to a command line flag that falls back to an
// environment variable.
func Flags(cfg *Config) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "port",
			Usage:       "HTTP port to listen on",
			EnvVars:     []string{"PORT"},
			Value:       8080,
			Destination: &cfg.ServerPort,
		},
		&cli.StringFlag{
			Name:        "database-path",
			Usage:       "Path to the SQLite database file",
			EnvVars:     []string{"DATABASE_PATH"},
			Value:       "./tasks.db",
			Destination: &cfg.DatabasePath,
		},
		&cli.StringFlag{
			Name:        "jwt-secret",
			Usage:       "Secret used to sign session tokens",
			EnvVars:     []string{"JWT_SECRET"},
			Destination: &cfg.JWTSecret,
		},
		&cli.DurationFlag{
			Name:        "token-ttl",
			Usage:       "Session token lifetime (0 keeps tokens valid until logout)",
			EnvVars:     []string{"TOKEN_TTL"},
			Destination: &cfg.TokenTTL,
		},
		&cli.IntFlag{
			Name:        "max-sessions",
			Usage:       "Maximum concurrent sessions per user, oldest are dropped first (0 = unbounded)",
			EnvVars:     []string{"MAX_SESSIONS"},
			Destination: &cfg.MaxSessions,
		},
		&cli.IntFlag{
			Name:        "bcrypt-cost",
			Usage:       "bcrypt work factor for password hashes",
			EnvVars:     []string{"BCRYPT_COST"},
			Value:       bcrypt.DefaultCost,
			Destination: &cfg.BcryptCost,
		},
		&cli.StringFlag{
			Name:        "session-sweep-schedule",
			Usage:       "Cron spec for pruning expired sessions (only used with a token TTL)",
			EnvVars:     []string{"SESSION_SWEEP_SCHEDULE"},
			Value:       "@hourly",
			Destination: &cfg.SessionSweepSchedule,
		},
		&cli.StringSliceFlag{
			Name:        "cors-allowed-origins",
			Usage:       "Origins allowed to call the API",
			EnvVars:     []string{"CORS_ALLOWED_ORIGINS"},
			Value:       cli.NewStringSlice("http://localhost:3000"),
			Destination: &cfg.CORSAllowedOrigins,
		},
		&cli.StringFlag{
			Name:        "log-level",
			EnvVars:     []string{"LOG_LEVEL"},
			Value:       "info",
			Destination: &cfg.LogLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			EnvVars:     []string{"LOG_FORMAT"},
			Value:       "console",
			Destination: &cfg.LogFormat,
		},
		&cli.StringFlag{
			Name:        "s3-bucket",
			Usage:       "Store avatars in this S3 bucket instead of the database",
			EnvVars:     []string{"S3_BUCKET"},
			Destination: &cfg.S3Bucket,
		},
		&cli.StringFlag{
			Name:        "s3-region",
			EnvVars:     []string{"S3_REGION"},
			Value:       "us-east-1",
			Destination: &cfg.S3Region,
		},
		&cli.StringFlag{
			Name:        "s3-endpoint",
			EnvVars:     []string{"S3_ENDPOINT"},
			Destination: &cfg.S3Endpoint,
		},
		&cli.StringFlag{
			Name:        "s3-access-key",
			EnvVars:     []string{"S3_ACCESS_KEY"},
			Destination: &cfg.S3AccessKey,
		},
		&cli.StringFlag{
			Name:        "s3-secret-key",
			EnvVars:     []string{"S3_SECRET_KEY"},
			Destination: &cfg.S3SecretKey,
		},
	}
}

// Validate checks the settings that have no usable default.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid port %d", c.ServerPort)
	}
	if c.TokenTTL < 0 {
		return fmt.Errorf("token TTL cannot be negative: %s", c.TokenTTL)
	}
	if c.MaxSessions < 0 {
		return fmt.Errorf("max sessions cannot be negative: %d", c.MaxSessions)
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return nil
}
