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

	"github.com/kailas-cloud/panoview/internal/config"
	dbRedis "github.com/kailas-cloud/panoview/internal/db/redis"
	"github.com/kailas-cloud/panoview/internal/domain"
	logpkg "github.com/kailas-cloud/panoview/internal/logger"
	"github.com/kailas-cloud/panoview/internal/metrics"
	"github.com/kailas-cloud/panoview/internal/repository/landmarks"
	"github.com/kailas-cloud/panoview/internal/repository/lastloc"
	chiTransport "github.com/kailas-cloud/panoview/internal/transport/chi"
	"github.com/kailas-cloud/panoview/internal/transport/googlemaps"
	"github.com/kailas-cloud/panoview/internal/transport/ipapi"
	bootstrapuc "github.com/kailas-cloud/panoview/internal/usecase/bootstrap"
	dispatchuc "github.com/kailas-cloud/panoview/internal/usecase/dispatch"
	healthuc "github.com/kailas-cloud/panoview/internal/usecase/health"
	locateuc "github.com/kailas-cloud/panoview/internal/usecase/locate"
	nearbyuc "github.com/kailas-cloud/panoview/internal/usecase/nearby"
	"github.com/kailas-cloud/panoview/internal/usecase/rotate"
	suggestuc "github.com/kailas-cloud/panoview/internal/usecase/suggest"
	vieweruc "github.com/kailas-cloud/panoview/internal/usecase/viewer"
	"github.com/kailas-cloud/panoview/internal/version"
)

func main() {
	// Load configuration based on ENV
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

	logger.Info("Starting panoview API server",
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

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register provider metrics explicitly (no init())
	metrics.RegisterProviderMetrics()

	// Outbound clients — composition root
	maps := googlemaps.NewClient(&googlemaps.Config{
		APIKey:          cfg.Provider.APIKey,
		BaseURL:         cfg.Provider.BaseURL,
		Timeout:         time.Duration(cfg.Provider.TimeoutSec) * time.Second,
		DetailsCacheTTL: time.Duration(cfg.Provider.DetailsCacheSec) * time.Second,
		Logger:          logger,
	})
	geo := ipapi.NewLocator(ipapi.Config{
		BaseURL: cfg.Geolocation.BaseURL,
		Timeout: time.Duration(cfg.Geolocation.TimeoutSec) * time.Second,
	})

	// Single dispatcher shared by every provider caller.
	dispatcher := dispatchuc.New(
		time.Duration(cfg.Dispatcher.CooldownMS)*time.Millisecond,
		time.Duration(cfg.Dispatcher.ReplaySpacingMS)*time.Millisecond,
		logger,
	)

	lastLocation := lastloc.New(store, cfg.Storage.KeyPrefix)

	// Create use case services
	locateSvc := locateuc.New(maps, dispatcher, logger)
	nearbySvc := nearbyuc.New(maps, landmarks.ForLocality, dispatcher, logger)
	suggestSvc := suggestuc.New(maps, locateSvc, dispatcher, logger)

	rotateCfg := rotate.Config{
		ResumeDelay:   time.Duration(cfg.Viewer.ResumeDelayMS) * time.Millisecond,
		FrameInterval: time.Duration(cfg.Viewer.FrameIntervalMS) * time.Millisecond,
	}
	viewerSvc := vieweruc.New(
		locateSvc, nearbySvc, maps, panoramaOpener{maps}, suggestSvc,
		lastLocation, dispatcher, rotateCfg, logger,
	)
	defer viewerSvc.Shutdown()

	healthSvc := healthuc.New(store, geo)

	// Resolve the startup location and open the initial view in the
	// background; the HTTP API serves the loading state meanwhile.
	fallback := domain.Coordinate{Lat: cfg.Viewer.DefaultLat, Lng: cfg.Viewer.DefaultLng}
	boot := bootstrapuc.New(geo, lastLocation, fallback, logger)
	go func() {
		pos, source := boot.Resolve(ctx)
		logger.Info("Startup location resolved",
			zap.String("source", string(source)), zap.String("location", pos.String()))
		if err := viewerSvc.Open(ctx, pos); err != nil {
			logger.Error("Initial view open failed", zap.Error(err))
		}
	}()

	// Create chi server
	server := chiTransport.NewServer(viewerSvc, nearbySvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
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

// panoramaOpener adapts the provider client to viewer.PanoramaOpener.
// The indirection avoids returning a typed-nil *googlemaps.Panorama as a
// non-nil viewer.View.
type panoramaOpener struct {
	maps *googlemaps.Client
}

func (o panoramaOpener) Open(ctx context.Context, loc domain.Coordinate) (vieweruc.View, error) {
	p, err := o.maps.OpenPanorama(ctx, loc)
	if err != nil {
		return nil, err
	}
	return p, nil
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

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
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
