package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sipwell/nutrition-pipeline/internal/monitoring"
	"github.com/sipwell/nutrition-pipeline/internal/storage"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the gold payload and accept pipeline triggers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST"},
		}))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Get("/api/v1/gold/latest", func(w http.ResponseWriter, _ *http.Request) {
			payload, err := env.Storage.LoadPublished()
			if err != nil {
				if eris.Is(err, storage.ErrNoGoldPayload) {
					writeJSON(w, http.StatusNotFound, map[string]string{"error": "gold payload not available yet"})
					return
				}
				zap.L().Error("load gold payload", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
				return
			}
			writeJSON(w, http.StatusOK, payload)
		})

		r.Get("/api/v1/beverages", func(w http.ResponseWriter, req *http.Request) {
			payload, err := env.Storage.LoadPublished()
			if err != nil {
				if eris.Is(err, storage.ErrNoGoldPayload) {
					writeJSON(w, http.StatusNotFound, map[string]string{"error": "gold payload not available yet"})
					return
				}
				zap.L().Error("load gold payload", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
				return
			}
			writeJSON(w, http.StatusOK, goldToLegacy(payload, req.URL.Query().Get("brand")))
		})

		r.Post("/api/v1/pipeline/run", func(w http.ResponseWriter, _ *http.Request) {
			// Run asynchronously; the batch outcome lands in the run ledger.
			go func() {
				result, err := env.Pipeline.Run(ctx, "api")
				if err != nil {
					zap.L().Error("triggered batch failed", zap.Error(err))
					return
				}
				zap.L().Info("triggered batch complete",
					zap.String("batch_id", result.BatchID),
					zap.String("status", string(result.Status)),
				)
			}()
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		checker := monitoring.NewChecker(
			monitoring.NewCollector(env.Store),
			env.Alerter,
			cfg.Monitoring,
		)

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			checker.Run(gctx)
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		return g.Wait()
	},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
