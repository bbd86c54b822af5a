package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system env")
	}
	cfg, err := ParseFlags(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := run(cfg); err != nil {
		log.Fatalf("%v", err)
	}
}

// run wires the service and blocks serving HTTP. Every resource opened here
// is released by a defer, so failures are returned rather than fatal.
func run(cfg Config) error {
	// 1) DB
	db, err := OpenDB(cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	// 2) Seed topics (if empty)
	if isEmpty, _ := IsTopicTableEmpty(db); isEmpty {
		if _, err := os.Stat(cfg.SeedPath); err == nil {
			if err := SeedFromJSON(db, cfg.SeedPath); err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			log.Printf("Seeded topics from %s", cfg.SeedPath)
		} else {
			log.Printf("No seed file at %s; weekly pairing needs topics", cfg.SeedPath)
		}
	}

	// 3) Engine with optional event bus and leaderboard cache
	opts := []EngineOption{WithEloK(cfg.EloK), WithInitialRating(cfg.InitialRating)}
	if cfg.RabbitMQURI != "" {
		publisher, err := NewEventPublisher(cfg.RabbitMQURI, cfg.RabbitMQExchange)
		if err != nil {
			return fmt.Errorf("connect to RabbitMQ: %w", err)
		}
		defer publisher.Close()
		opts = append(opts, WithPublisher(publisher))
	} else {
		log.Println("RabbitMQ not configured, events will not be published")
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		opts = append(opts, WithLeaderboardCache(NewRedisLeaderboardCache(rdb, cfg.LeaderboardTTL)))
	}
	engine := NewEngine(db, opts...)

	// 4) Weekly pairing trigger from the scheduler queue
	if cfg.RabbitMQURI != "" {
		consumer, err := NewPairingConsumer(cfg.RabbitMQURI, cfg.RabbitMQExchange, cfg.PairingQueue, engine.RunPairing)
		if err != nil {
			return fmt.Errorf("pairing consumer: %w", err)
		}
		defer consumer.Close()
		if err := consumer.Start(); err != nil {
			return fmt.Errorf("pairing consumer: %w", err)
		}
	}

	// 5) Router
	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", userHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", func(c *gin.Context) { c.String(200, "ok") })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	Routes(r, engine, AuthConfig{JWTSecret: cfg.JWTSecret, AllowHeader: cfg.AllowHeaderAuth})

	// --- Server ---
	log.Printf("Listening on :%d (db=%s, headerAuth=%v)", cfg.Port, cfg.DatabaseType, cfg.AllowHeaderAuth)
	if err := r.Run(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	return nil
}
