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
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/searchlens/visibility-cli/internal/model"
	"github.com/searchlens/visibility-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for tracking requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initCollectEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(env *collectEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/track", handleTrack(env, false))
		r.Post("/track/ai", handleTrack(env, true))
		r.Get("/snapshots", handleListSnapshots(env.Store))
		r.Get("/snapshots/{id}", handleGetSnapshot(env.Store))
	})

	return r
}

func handleTrack(env *collectEnv, aiOnly bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.TrackingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := req.Normalize(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(),
			time.Duration(cfg.Collector.TimeoutSecs)*time.Second)
		defer cancel()

		var result *model.CollectionResult
		var err error
		if aiOnly {
			result, err = env.TextOnly.Collect(ctx, req)
		} else {
			if env.Collector == nil {
				writeError(w, http.StatusServiceUnavailable, "search provider not configured")
				return
			}
			result, err = env.Collector.Collect(ctx, req)
		}
		if err != nil {
			zap.L().Error("track request failed",
				zap.String("query", req.Query),
				zap.Error(err),
			)
			status := http.StatusBadGateway
			if result == nil {
				result = &model.CollectionResult{Status: "error", Message: "collection failed"}
			}
			writeJSON(w, status, result)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func handleListSnapshots(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := store.SnapshotFilter{
			Query:  r.URL.Query().Get("query"),
			Days:   queryInt(r, "days"),
			Limit:  queryInt(r, "limit"),
			Offset: queryInt(r, "offset"),
		}

		snaps, err := st.ListSnapshots(r.Context(), filter)
		if err != nil {
			zap.L().Error("list snapshots failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "list snapshots failed")
			return
		}
		if snaps == nil {
			snaps = []model.Snapshot{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"snapshots": snaps, "count": len(snaps)})
	}
}

func handleGetSnapshot(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid snapshot id")
			return
		}

		record, err := st.GetSnapshot(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusNotFound, "snapshot not found")
			return
		}
		writeJSON(w, http.StatusOK, record)
	}
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
