package main

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"quickpad/config"
	"quickpad/database"
	"quickpad/metrics"
	"quickpad/server"
	"quickpad/services"
	"quickpad/storage"
	"quickpad/utils"
)

func main() {
	utils.InitLogging()

	cfg := config.LoadConfig()
	utils.TrustProxyHeaders.Store(cfg.TrustProxyHeaders)

	pool, err := database.SetupDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Database setup failed: %v", err)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(ctx).Err(); err != nil {
		utils.LogError("REDIS_CONNECT", err, "addr", cfg.RedisURL)
		// Sessions and shared rate limiting degrade gracefully without Redis
		rdb = nil
	}
	cancel()

	store, err := storage.NewLocalStore(cfg.UploadDir)
	if err != nil {
		log.Fatalf("Upload storage setup failed: %v", err)
	}

	services.StartCleanupService(pool, store)

	// Feed the connection pool gauges
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			stat := pool.Stat()
			metrics.UpdateDatabaseMetrics(int(stat.AcquiredConns()), int(stat.IdleConns()))
		}
	}()

	app := server.CreateFiberApp(cfg)
	setupRoutes(app, pool, rdb, store, cfg)

	go func() {
		if err := server.ListenWithIPv6Fallback(app, cfg.Port); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	server.WaitForShutdown(app, 10*time.Second)
}
