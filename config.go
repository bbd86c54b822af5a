package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port            int
	DatabaseType    string
	DatabaseURL     string
	SeedPath        string
	JWTSecret       string
	AllowHeaderAuth bool
	CORSOrigins     []string

	RabbitMQURI      string
	RabbitMQExchange string
	PairingQueue     string

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	LeaderboardTTL time.Duration

	EloK          float64
	InitialRating float64
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// ParseFlags reads flags first and falls back to the environment (which
// main has already populated from .env).
func ParseFlags(args []string) (Config, error) {
	var cfg Config
	var origins string

	fs := flag.NewFlagSet("peer-learn", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or mysql)")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL or sqlite file")
	fs.StringVar(&cfg.SeedPath, "seed", "", "Topic seed JSON")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", "", "HS256 secret (prefer env)")
	fs.BoolVar(&cfg.AllowHeaderAuth, "allow-header-auth", false, "Trust X-User-Id (development)")
	fs.StringVar(&origins, "cors", "", "Comma separated allowed origins")
	fs.StringVar(&cfg.RabbitMQURI, "amqp", "", "RabbitMQ URI; events disabled when empty")
	fs.StringVar(&cfg.RedisAddr, "redis", "", "Redis address; cache disabled when empty")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.Port == 0 {
		port, err := strconv.Atoi(envOr("PORT", "8080"))
		if err != nil {
			return Config{}, errors.New("invalid PORT env variable")
		}
		cfg.Port = port
	}
	if cfg.DatabaseType == "" {
		cfg.DatabaseType = envOr("DATABASE_TYPE", "sqlite")
	}
	if cfg.DatabaseType != "sqlite" && cfg.DatabaseType != "mysql" {
		return Config{}, fmt.Errorf("unsupported database type %q", cfg.DatabaseType)
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = envOr("DATABASE_URL", "peerlearn.db")
	}
	if cfg.SeedPath == "" {
		cfg.SeedPath = envOr("SEED_PATH", "data/topics.json")
	}

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = os.Getenv("JWT_SECRET")
	}
	if !cfg.AllowHeaderAuth {
		cfg.AllowHeaderAuth = os.Getenv("ALLOW_HEADER_AUTH") == "true"
	}
	if cfg.JWTSecret == "" && !cfg.AllowHeaderAuth {
		return Config{}, errors.New("JWT_SECRET required (or ALLOW_HEADER_AUTH=true for development)")
	}

	if origins == "" {
		origins = envOr("CORS_ORIGINS", "http://localhost:3000")
	}
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}

	if cfg.RabbitMQURI == "" {
		cfg.RabbitMQURI = os.Getenv("RABBITMQ_URI")
	}
	cfg.RabbitMQExchange = envOr("RABBITMQ_EXCHANGE", "peerlearn.events")
	cfg.PairingQueue = envOr("PAIRING_QUEUE", "peerlearn.pairing")

	if cfg.RedisAddr == "" {
		cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	}
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	db, err := strconv.Atoi(envOr("REDIS_DB", "0"))
	if err != nil {
		return Config{}, errors.New("invalid REDIS_DB env variable")
	}
	cfg.RedisDB = db
	cfg.LeaderboardTTL = 5 * time.Minute

	if cfg.EloK, err = strconv.ParseFloat(envOr("ELO_K", "32"), 64); err != nil || cfg.EloK <= 0 {
		return Config{}, errors.New("invalid ELO_K env variable")
	}
	if cfg.InitialRating, err = strconv.ParseFloat(envOr("INITIAL_RATING", "1200"), 64); err != nil {
		return Config{}, errors.New("invalid INITIAL_RATING env variable")
	}

	return cfg, nil
}
