package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sparehub/harvester/internal/metrics"
	"github.com/sparehub/harvester/internal/monitoring"
	"github.com/sparehub/harvester/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only query API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		m := metrics.NewStore(cfg.Scraper.BaseDelay(), metrics.NewFilePersister(cfg.Scraper.MetricsPath))
		if err := m.Load(); err != nil {
			zap.L().Warn("metrics load failed", zap.Error(err))
		}

		// Supervisory reporter reads metrics concurrently with any
		// scraping process writing through the same document.
		reporter := monitoring.NewReporter(m, time.Duration(cfg.Monitor.IntervalSecs)*time.Second)
		go reporter.Run(ctx)

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "X-API-Key"},
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Route("/api", func(r chi.Router) {
			r.Use(apiKeyAuth(st, cfg.Server.RatePerMin))

			r.Get("/parts", handleListParts(st))
			r.Get("/parts/{reference}", handleGetPart(st))
			r.Get("/suppliers", handleListSuppliers(st))
			r.Get("/metrics", handleMetrics(m))
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutCtx)
		}()

		zap.L().Info("starting query API", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// apiKeyAuth validates X-API-Key against the store and applies a per-key
// rate limit. Keys must exist and be active; each use updates last_used.
func apiKeyAuth(st store.Store, ratePerMin int) func(http.Handler) http.Handler {
	if ratePerMin <= 0 {
		ratePerMin = 60
	}

	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)
	limiterFor := func(keyID string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		lim, ok := limiters[keyID]
		if !ok {
			lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(ratePerMin)), 10)
			limiters[keyID] = lim
		}
		return lim
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			keyValue := req.Header.Get("X-API-Key")
			if keyValue == "" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing api key"})
				return
			}

			key, err := st.GetAPIKey(req.Context(), keyValue)
			if err != nil {
				zap.L().Error("api key lookup failed", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
				return
			}
			if key == nil || !key.Active {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid api key"})
				return
			}

			if !limiterFor(key.ID).Allow() {
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
				return
			}

			if err := st.TouchAPIKey(req.Context(), key.ID); err != nil {
				zap.L().Warn("api key touch failed", zap.Error(err))
			}

			next.ServeHTTP(w, req)
		})
	}
}

func handleListParts(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		filter := store.PartFilter{
			Query:    q.Get("q"),
			Category: q.Get("category"),
			Limit:    intParam(q.Get("limit")),
			Offset:   intParam(q.Get("offset")),
		}

		parts, err := st.ListParts(req.Context(), filter)
		if err != nil {
			zap.L().Error("list parts failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"parts": parts, "count": len(parts)})
	}
}

func handleGetPart(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		reference := chi.URLParam(req, "reference")

		part, err := st.GetPartByReference(req.Context(), reference)
		if err != nil {
			zap.L().Error("get part failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		if part == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "part not found"})
			return
		}

		avail, err := st.ListAvailability(req.Context(), part.ID)
		if err != nil {
			zap.L().Error("list availability failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"part": part, "availability": avail})
	}
}

func handleListSuppliers(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		suppliers, err := st.ListSuppliers(req.Context())
		if err != nil {
			zap.L().Error("list suppliers failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"suppliers": suppliers, "count": len(suppliers)})
	}
}

func handleMetrics(m *metrics.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, m.Snapshot())
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func intParam(s string) int {
	if s == "" {
		return 0
	}
	var n int
	fmt.Sscanf(s, "%d", &n)
	return n
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
