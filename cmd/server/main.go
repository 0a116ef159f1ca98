// Command server runs the CAT engine's HTTP demonstrator, implementing
// spec.md §6's four operations. Grounded on the teacher's main.go startup
// sequence (config load, logger, metrics, database, redis, then the
// service itself) with the teacher's gRPC server swapped for gin, since
// this engine's external interface (§6) is HTTP, not gRPC.
package main

import (
	"context"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"catcore/internal/cache"
	"catcore/internal/config"
	"catcore/internal/domain"
	"catcore/internal/events"
	"catcore/internal/logger"
	"catcore/internal/metrics"
	"catcore/internal/readiness"
	"catcore/internal/selector"
	"catcore/internal/server"
	"catcore/internal/session"
	"catcore/internal/stopping"
	"catcore/internal/store"
)

func main() {
	cfg := config.Load()

	log := logger.New(&cfg.Logging)
	log.Info("starting CAT engine server")

	m := metrics.New()

	db, err := store.New(&cfg.Database, m, log)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	defer db.Close()
	if err := db.AutoMigrate(); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := cache.New(&cfg.Redis, m, log)
	if err != nil {
		log.Fatalf("failed to initialize redis: %v", err)
	}
	defer redisClient.Close()

	var publisher events.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.Kafka, log, m)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	} else {
		publisher = &events.NoopPublisher{}
	}

	provider := store.NewGormItemProvider(db, redisClient)
	sessions := store.NewGormSessionStore(db)

	stopEval := stopping.New(cfg.CAT)
	selectorRNG := rand.New(rand.NewSource(time.Now().UnixNano()))
	sel := selector.New(cfg.CAT, provider, selectorRNG)
	readi := readiness.New(cfg.Readiness)

	engine := session.New(stopEval, weightsFromConfig(cfg), log, m, publisher)

	srv := server.New(cfg, log, m, provider, sessions, sel, engine, stopEval, readi, db.LoadCalibratedItems)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.Health(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	srv.Routes(router)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Server.HTTPPort,
		Handler: router,
	}

	go func() {
		log.Infof("listening on port %s", cfg.Server.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Errorf("error during http shutdown: %v", err)
	}

	log.Info("server shutdown complete")
}

func weightsFromConfig(cfg *config.Config) map[domain.Domain]float64 {
	weights := make(map[domain.Domain]float64, len(cfg.Domain.Weights))
	for d, w := range cfg.Domain.Weights {
		weights[domain.Domain(d)] = w
	}
	return weights
}
