package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"relay-service/internal/config"
	httphandler "relay-service/internal/handler/http"
	wshandler "relay-service/internal/handler/ws"
	"relay-service/internal/hub"
	"relay-service/internal/ingest"
	"relay-service/internal/metrics"
	"relay-service/internal/middleware"
	"relay-service/internal/router"
	"relay-service/internal/sub"
)

const staleConnAge = 90 * time.Second

func NewServer(ctx context.Context, cfg config.AppConfig, logger *zap.Logger) (*http.Server, error) {
	// --- Metrics ---
	metrics.Register()

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       0,
	})

	// --- Hub ---
	h := hub.NewHub(logger)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.Reap(staleConnAge)
			}
		}
	}()
	logger.Info("✅ Hub initialized")

	// --- Bot channel ingest (redis pub/sub) ---
	subscriber := sub.NewEventSubscriber(rdb, h, cfg.RedisChannel, logger)
	if err := subscriber.Start(ctx); err != nil {
		return nil, err
	}

	// --- Backend event ingest (kafka) ---
	consumer := ingest.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, h, logger)
	go consumer.Start(ctx)

	// --- Auth middleware ---
	auth := middleware.NewAuthMiddleware(cfg.JWTSecret)

	// --- Handlers ---
	publishHandler := httphandler.NewPublishHandler(h, logger)
	wsHandler := wshandler.NewWSHandler(h, logger)

	// --- HTTP routes ---
	r := chi.NewRouter()
	r = router.SetupRoutes(r, publishHandler, wsHandler, auth, cfg.PublishToken).(*chi.Mux)

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}, nil
}
