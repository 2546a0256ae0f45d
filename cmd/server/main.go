package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/openrisk/margin-engine/internal/fx"
	"github.com/openrisk/margin-engine/internal/isda"
	"github.com/openrisk/margin-engine/internal/margin"
	"github.com/openrisk/margin-engine/internal/metrics"
	"github.com/openrisk/margin-engine/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- SIMM configuration ---
	version := os.Getenv("SIMM_VERSION")
	if version == "" {
		version = "2.3"
	}
	cfg, err := isda.NewConfig(version)
	if err != nil {
		slog.Error("invalid SIMM version", "version", version, "err", err)
		os.Exit(1)
	}

	calcCcy := os.Getenv("SIMM_CALC_CCY")
	if calcCcy == "" {
		calcCcy = "USD"
	}
	resultCcy := os.Getenv("SIMM_RESULT_CCY")
	if resultCcy == "" {
		resultCcy = calcCcy
	}

	fxSource, err := fxFromEnv(os.Getenv("FX_RATES"))
	if err != nil {
		slog.Error("invalid FX_RATES", "err", err)
		os.Exit(1)
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- WebSocket hub ---
	wsHub := margin.NewWSHub()
	go wsHub.Run()

	// --- Margin service ---
	marginSvc := margin.NewService(st, cfg, fxSource, calcCcy, resultCcy, wsHub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"margin-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for run completion notifications.
		r.Get("/ws", wsHub.HandleWS)

		// Calculation runs.
		r.Get("/calculations", marginSvc.ListCalculations)
		r.Post("/calculations", marginSvc.CreateCalculation)
		r.Get("/calculations/{runID}", marginSvc.GetCalculation)
		r.Get("/calculations/{runID}/margins", marginSvc.GetCalculationMargins)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("margin-engine listening", "port", port, "simm_version", version, "calc_ccy", calcCcy)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down margin-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("margin-engine stopped")
}

// fxFromEnv parses FX_RATES of the form "USDEUR=0.92,USDJPY=148.5" into a
// static FX source.
func fxFromEnv(env string) (*fx.StaticSource, error) {
	src := fx.NewStaticSource(nil)
	if strings.TrimSpace(env) == "" {
		return src, nil
	}
	for _, pair := range strings.Split(env, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 || len(kv[0]) != 6 {
			return nil, fmt.Errorf("malformed rate %q, want CCYCCY=rate", pair)
		}
		rate, err := strconv.ParseFloat(kv[1], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed rate %q: %w", pair, err)
		}
		src.Set(kv[0][:3], kv[0][3:], rate)
	}
	return src, nil
}
