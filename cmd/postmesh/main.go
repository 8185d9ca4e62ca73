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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/postmesh/internal/config"
	"github.com/kailas-cloud/postmesh/internal/db"
	dbRedis "github.com/kailas-cloud/postmesh/internal/db/redis"
	"github.com/kailas-cloud/postmesh/internal/domain"
	logpkg "github.com/kailas-cloud/postmesh/internal/logger"
	"github.com/kailas-cloud/postmesh/internal/metrics"
	clusterrepo "github.com/kailas-cloud/postmesh/internal/repository/cluster"
	"github.com/kailas-cloud/postmesh/internal/repository/embcache"
	postrepo "github.com/kailas-cloud/postmesh/internal/repository/post"
	"github.com/kailas-cloud/postmesh/internal/repository/resultcache"
	searchrepo "github.com/kailas-cloud/postmesh/internal/repository/search"
	chiTransport "github.com/kailas-cloud/postmesh/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/postmesh/internal/transport/openai"
	"github.com/kailas-cloud/postmesh/internal/version"

	clusteruc "github.com/kailas-cloud/postmesh/internal/usecase/cluster"
	healthuc "github.com/kailas-cloud/postmesh/internal/usecase/health"
	postuc "github.com/kailas-cloud/postmesh/internal/usecase/post"
	"github.com/kailas-cloud/postmesh/internal/usecase/scheduler"
	searchuc "github.com/kailas-cloud/postmesh/internal/usecase/search"
	sweepuc "github.com/kailas-cloud/postmesh/internal/usecase/sweep"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting postmesh API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	if err := store.EnsureIndex(ctx, &db.IndexDefinition{
		Name:            postrepo.IndexName,
		Prefix:          postrepo.KeyPrefix,
		TextField:       "text",
		TagFields:       []string{"scope", "cluster"},
		VectorField:     "vector",
		VectorDim:       cfg.Embedding.Dimensions,
		HNSWM:           cfg.Index.HNSWM,
		HNSWEFConstruct: cfg.Index.HNSWEFConstruct,
	}); err != nil {
		logger.Fatal("Failed to ensure search index", zap.Error(err))
	}

	metrics.Register()

	embedder := buildEmbedder(cfg, store, logger)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	// Repositories
	posts := postrepo.New(store)
	clusters := clusterrepo.New(store)
	searcher := searchrepo.New(store)
	qcache := resultcache.New(store, time.Duration(cfg.Cache.TTLMin)*time.Minute)

	// Use case services
	fusion := searchuc.FusionConfig{
		K:              *cfg.Fusion.K,
		SemanticWeight: *cfg.Fusion.SemanticWeight,
		LexicalWeight:  *cfg.Fusion.LexicalWeight,
	}
	searchSvc := searchuc.New(searcher, searcher, embedder, qcache, searchuc.Config{
		Fusion:         fusion,
		AdapterTimeout: time.Duration(cfg.Search.AdapterTimeoutMS) * time.Millisecond,
		DefaultLimit:   cfg.Search.DefaultLimit,
		MaxLimit:       cfg.Search.MaxLimit,
	})
	clusterSvc := clusteruc.New(posts, clusters, searcher, searcher, embedder, qcache, clusteruc.Config{
		JoinThreshold:  *cfg.Clustering.JoinThreshold,
		CandidateLimit: cfg.Clustering.CandidateLimit,
		MaxKeywords:    cfg.Clustering.MaxKeywords,
		Fusion:         fusion,
		AdapterTimeout: time.Duration(cfg.Search.AdapterTimeoutMS) * time.Millisecond,
		LabelTerms:     3,
	})
	debounce := scheduler.New(clusterSvc, posts, time.Duration(cfg.Clustering.QuietWindowSec)*time.Second, logger)
	defer debounce.Close()

	postSvc := postuc.New(posts, embedder, debounce, qcache, cfg.Embedding.Dimensions)
	catalog := clusteruc.NewCatalog(clusters)
	healthSvc := healthuc.New(store, newEmbeddingHealthChecker(embedder))

	// Reconciliation sweep in the background
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	sweep := sweepuc.New(clusters, posts, time.Duration(cfg.Clustering.SweepIntervalMin)*time.Minute, logger)
	go sweep.Run(sweepCtx)

	server := chiTransport.NewServer(searchSvc, postSvc, catalog, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	r.Handle("/metrics", promhttp.Handler())
	server.Mount(r)

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

// buildEmbedder assembles the decorator chain: OpenAI -> Cached.
func buildEmbedder(cfg config.Config, store db.Store, logger *zap.Logger) domain.Embedder {
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Timeout:    time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		MaxRetries: cfg.Embedding.MaxRetries,
		Logger:     logger,
	})

	return embcache.New(base, store, cfg.Embedding.Model,
		time.Duration(cfg.Embedding.CacheTTLHr)*time.Hour, logger)
}

// embeddingHealthChecker unwraps the decorator chain for health checks.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
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

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
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
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
