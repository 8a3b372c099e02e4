package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/lexibase/passrank/internal/config"
	"github.com/lexibase/passrank/internal/db"
	dbRedis "github.com/lexibase/passrank/internal/db/redis"
	"github.com/lexibase/passrank/internal/domain"
	"github.com/lexibase/passrank/internal/embedder"
	logpkg "github.com/lexibase/passrank/internal/logger"
	"github.com/lexibase/passrank/internal/metrics"
	"github.com/lexibase/passrank/internal/repository/embcache"
	memoryrepo "github.com/lexibase/passrank/internal/repository/memory"
	postgresrepo "github.com/lexibase/passrank/internal/repository/postgres"
	"github.com/lexibase/passrank/internal/reranker"
	"github.com/lexibase/passrank/internal/transport/httpapi"
	openaiEmb "github.com/lexibase/passrank/internal/transport/openai"
	searchuc "github.com/lexibase/passrank/internal/usecase/search"
	"github.com/lexibase/passrank/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting passrank API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("reranker_provider", cfg.Reranker.Provider),
	)

	metrics.RegisterSearchMetrics()
	metrics.RegisterEmbeddingMetrics()

	ctx := context.Background()

	// Candidate source
	var (
		source searchuc.Source
		pinger httpapi.Pinger
	)
	switch cfg.Database.Driver {
	case "postgres":
		handle, err := postgresrepo.Open(cfg.Database.DSN)
		if err != nil {
			logger.Fatal("Failed to open database", zap.Error(err))
		}
		defer func() { _ = handle.Close() }()

		pg := postgresrepo.New(handle)
		if err := pg.EnsureSchema(ctx, cfg.Embedding.Dimensions); err != nil {
			logger.Fatal("Failed to ensure schema", zap.Error(err))
		}
		source = pg
		pinger = pg
	case "memory":
		source = memoryrepo.New()
	default:
		logger.Fatal("Unknown database driver", zap.String("driver", cfg.Database.Driver))
	}
	logger.Info("Candidate source ready", zap.String("driver", cfg.Database.Driver))

	// Embedding cache store (optional)
	var cacheStore db.Store
	if len(cfg.Cache.Addrs) > 0 {
		redisStore, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Username: cfg.Cache.Username,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer redisStore.Close()

		if err := redisStore.WaitForReady(ctx, 10*time.Second); err != nil {
			logger.Fatal("Cache store not ready", zap.Error(err))
		}
		cacheStore = redisStore
		logger.Info("Embedding cache connected", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	queryEmbedder := buildEmbedder(cfg, cacheStore, logger)
	primary, fallback := buildRerankers(cfg, logger)

	opts := searchuc.Options{Alpha: cfg.Search.Alpha, Lambda: cfg.Search.Lambda}
	searchSvc, err := searchuc.New(source, queryEmbedder, primary, opts, logger)
	if err != nil {
		logger.Fatal("Invalid search configuration", zap.Error(err))
	}
	if fallback != nil {
		searchSvc = searchSvc.WithFallback(fallback)
	}

	server := httpapi.NewServer(searchSvc, pinger, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the query embedder chain: provider -> cache.
func buildEmbedder(cfg config.Config, cacheStore db.Store, logger *zap.Logger) domain.Embedder {
	var base domain.Embedder
	switch cfg.Embedding.Provider {
	case "hash":
		base = embedder.NewHash(cfg.Embedding.Dimensions)
	default:
		base = openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Provider:   cfg.Embedding.Provider,
			Logger:     logger,
		})
	}

	if cacheStore != nil {
		return embcache.New(base, cacheStore, time.Duration(cfg.Cache.TTLSec)*time.Second, logger)
	}
	return base
}

// buildRerankers returns the primary scorer and, when the deployment opts
// into degradation, the overlap fallback.
func buildRerankers(cfg config.Config, logger *zap.Logger) (primary, fallback searchuc.Reranker) {
	if cfg.Reranker.Provider == "overlap" {
		return reranker.NewOverlap(), nil
	}

	primary = reranker.NewCrossEncoder(reranker.CrossEncoderConfig{
		BaseURL:           cfg.Reranker.BaseURL,
		Model:             cfg.Reranker.Model,
		Timeout:           time.Duration(cfg.Reranker.TimeoutSec) * time.Second,
		MaxRequestsPerSec: cfg.Reranker.MaxRequestsPerSec,
		Logger:            logger,
	})
	if cfg.Reranker.Fallback == "degrade" {
		fallback = reranker.NewOverlap()
	}
	return primary, fallback
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain
// text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates
// X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
