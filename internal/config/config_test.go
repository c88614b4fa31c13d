package config_test

import (
	"testing"
	"time"

	"climb-server/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "DATABASE_URL", "JWT_SECRET", "TOKEN_TTL", "ALLOWED_ORIGINS", "HTTP_RATE", "WS_BURST"} {
		t.Setenv(key, "")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Empty(t, cfg.DatabaseURL)
	assert.NotEmpty(t, cfg.JWTSecret, "Missing secret should be generated")
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Nil(t, cfg.AllowedOrigins)
	assert.Equal(t, 20.0, cfg.HTTPRate)
	assert.Equal(t, 20, cfg.WSBurst)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_URL", "postgres://localhost/climb")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("TOKEN_TTL", "90m")
	t.Setenv("ALLOWED_ORIGINS", "localhost:3000, example.com ,")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "postgres://localhost/climb", cfg.DatabaseURL)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, 90*time.Minute, cfg.TokenTTL)
	assert.Equal(t, []string{"localhost:3000", "example.com"}, cfg.AllowedOrigins)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("PORT", "eighty")

	_, err := config.Load()
	assert.ErrorContains(t, err, "PORT")
}
