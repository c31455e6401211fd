package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sector-pulse/pulse-cli/internal/model"
	"github.com/sector-pulse/pulse-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-only reporting API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(st),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func newRouter(st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/predictions", func(w http.ResponseWriter, req *http.Request) {
		limit := queryInt(req, "limit", 30)
		predictions, err := st.ListPredictions(req.Context(), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, predictions)
	})

	r.Get("/api/predictions/{date}", func(w http.ResponseWriter, req *http.Request) {
		date := chi.URLParam(req, "date")
		if _, err := model.ParseDay(date); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date"})
			return
		}
		p, err := st.GetPrediction(req.Context(), date)
		if err != nil {
			writeError(w, err)
			return
		}
		if p == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no prediction for date"})
			return
		}
		writeJSON(w, http.StatusOK, p)
	})

	r.Get("/api/predictions/{date}/audit", func(w http.ResponseWriter, req *http.Request) {
		date := chi.URLParam(req, "date")
		if _, err := model.ParseDay(date); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date"})
			return
		}
		audit, err := st.ListPredictionAudit(req.Context(), date)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, audit)
	})

	r.Get("/api/sentiment/{date}", func(w http.ResponseWriter, req *http.Request) {
		date := chi.URLParam(req, "date")
		if _, err := model.ParseDay(date); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date"})
			return
		}
		counts, err := st.GetDailySentiment(req.Context(), date)
		if err != nil {
			writeError(w, err)
			return
		}
		if counts == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no sentiment for date"})
			return
		}
		writeJSON(w, http.StatusOK, counts)
	})

	r.Get("/api/correlations", func(w http.ResponseWriter, req *http.Request) {
		limit := queryInt(req, "limit", 30)
		correlations, err := st.ListDailyCorrelations(req.Context(), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, correlations)
	})

	r.Get("/api/accuracy", func(w http.ResponseWriter, req *http.Request) {
		days := queryInt(req, "days", cfgCorrelationDays())
		sum, err := st.AccuracySummary(req.Context(), days)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sum)
	})

	r.Get("/api/accuracy/{date}", func(w http.ResponseWriter, req *http.Request) {
		date := chi.URLParam(req, "date")
		if _, err := model.ParseDay(date); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date"})
			return
		}
		recs, err := st.ListAccuracy(req.Context(), date)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, recs)
	})

	r.Get("/api/events/stats", func(w http.ResponseWriter, req *http.Request) {
		stats, err := st.EventStats(req.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	})

	r.Get("/api/runs", func(w http.ResponseWriter, req *http.Request) {
		date := req.URL.Query().Get("date")
		if date == "" {
			date = time.Now().UTC().Format("2006-01-02")
		}
		runs, err := st.ListWorkflowRuns(req.Context(), date, queryInt(req, "limit", 50))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, runs)
	})

	return r
}

// cfgCorrelationDays tolerates a nil config so the router is usable in
// tests without Load.
func cfgCorrelationDays() int {
	if cfg == nil || cfg.Outcome.CorrelationDays <= 0 {
		return 30
	}
	return cfg.Outcome.CorrelationDays
}

func queryInt(req *http.Request, key string, fallback int) int {
	raw := req.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	zap.L().Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
