package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	Port        int
	DatabaseURL string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	TokenTTL    time.Duration

	AllowedOrigins []string

	HTTPRate  float64
	HTTPBurst int
	WSRate    float64
	WSBurst   int
}

// Load reads the environment, including a .env file in the working directory.
// An empty DATABASE_URL selects the in-memory store.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTIssuer:      getString("JWT_ISSUER", "climb-server"),
		JWTAudience:    getString("JWT_AUDIENCE", "climb-clients"),
		AllowedOrigins: splitList(os.Getenv("ALLOWED_ORIGINS")),
	}

	var err error
	if cfg.Port, err = getInt("PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.TokenTTL, err = getDuration("TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.HTTPRate, err = getFloat("HTTP_RATE", 20); err != nil {
		return nil, err
	}
	if cfg.HTTPBurst, err = getInt("HTTP_BURST", 40); err != nil {
		return nil, err
	}
	if cfg.WSRate, err = getFloat("WS_RATE", 10); err != nil {
		return nil, err
	}
	if cfg.WSBurst, err = getInt("WS_BURST", 20); err != nil {
		return nil, err
	}

	if cfg.JWTSecret == "" {
		log.Println("JWT_SECRET not set, generating an ephemeral secret")
		cfg.JWTSecret = generateSecret()
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func generateSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		log.Fatal("Failed to generate JWT secret:", err)
	}
	return base64.StdEncoding.EncodeToString(bytes)
}
