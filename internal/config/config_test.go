package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"golang.org/x/crypto/bcrypt"
)

func parse(t *testing.T, args ...string) *Config {
	t.Helper()
	cfg := &Config{}
	app := &cli.App{
		Name:   "tasks",
		Flags:  Flags(cfg),
		Action: func(*cli.Context) error { return nil },
	}
	require.NoError(t, app.Run(append([]string{"tasks"}, args...)))
	return cfg
}

func TestFlags_Defaults(t *testing.T) {
	cfg := parse(t)

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "./tasks.db", cfg.DatabasePath)
	assert.Equal(t, time.Duration(0), cfg.TokenTTL)
	assert.Equal(t, 0, cfg.MaxSessions)
	assert.Equal(t, bcrypt.DefaultCost, cfg.BcryptCost)
	assert.Equal(t, "@hourly", cfg.SessionSweepSchedule)
	assert.Empty(t, cfg.S3Bucket)
}

func TestFlags_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_SECRET", "s3cr3t")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("MAX_SESSIONS", "5")
	t.Setenv("DATABASE_PATH", "/tmp/x.db")

	cfg := parse(t)

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, "s3cr3t", cfg.JWTSecret)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 5, cfg.MaxSessions)
	assert.Equal(t, "/tmp/x.db", cfg.DatabasePath)
	require.NoError(t, cfg.Validate())
}

func TestFlags_ArgumentOverridesEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")

	cfg := parse(t, "--port", "7000")

	assert.Equal(t, 7000, cfg.ServerPort)
}

func TestValidate(t *testing.T) {
	valid := Config{ServerPort: 8080, JWTSecret: "x", BcryptCost: bcrypt.DefaultCost}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing secret", func(c *Config) { c.JWTSecret = "" }},
		{"bad port", func(c *Config) { c.ServerPort = 0 }},
		{"negative ttl", func(c *Config) { c.TokenTTL = -time.Second }},
		{"negative cap", func(c *Config) { c.MaxSessions = -1 }},
		{"cost too low", func(c *Config) { c.BcryptCost = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
