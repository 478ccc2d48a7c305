package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xavierjflanagan/Guardian-sub001/internal/monitoring"
	"github.com/xavierjflanagan/Guardian-sub001/internal/pipeline"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server and retry worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// Drain the durable retry queue in the background for the server's
		// lifetime.
		go func() {
			if err := env.Worker.Run(ctx); err != nil && ctx.Err() == nil {
				zap.L().Error("retry worker stopped", zap.Error(err))
			}
		}()

		// Periodic health checks with webhook alerting.
		checker := monitoring.NewChecker(
			monitoring.NewCollector(env.Store),
			monitoring.NewAlerter(cfg.Monitoring),
			cfg.Monitoring,
		)
		go checker.Run(ctx)

		mux := http.NewServeMux()

		mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
			status := "ok"
			code := http.StatusOK
			if err := env.Store.Ping(r.Context()); err != nil {
				status = "degraded"
				code = http.StatusServiceUnavailable
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(code)
			json.NewEncoder(w).Encode(map[string]string{"status": status})
		})

		mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
			summary, err := env.Store.Status(r.Context())
			if err != nil {
				http.Error(w, `{"error":"status query failed"}`, http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(summary)
		})

		mux.HandleFunc("POST /webhook/process", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				ShellFileID string `json:"shell_file_id"`
				PatientID   string `json:"patient_id"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
				return
			}
			if req.ShellFileID == "" || req.PatientID == "" {
				http.Error(w, `{"error":"shell_file_id and patient_id are required"}`, http.StatusBadRequest)
				return
			}

			doc := pipeline.Document{ShellFileID: req.ShellFileID, PatientID: req.PatientID}

			// Process asynchronously; failures land on the retry queue.
			go func() {
				outcome := env.Pass1.ProcessDocument(ctx, doc)
				if outcome.Failed() {
					zap.L().Error("webhook processing failed",
						zap.String("shell_file_id", doc.ShellFileID),
					)
					return
				}
				if _, err := env.Pass15.ProcessSession(ctx, outcome.SessionID); err != nil {
					zap.L().Error("webhook code resolution failed",
						zap.String("session_id", outcome.SessionID),
						zap.Error(err),
					)
				}
			}()

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]string{
				"status":        "accepted",
				"shell_file_id": req.ShellFileID,
			})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			// The signal context is already canceled; graceful shutdown
			// needs its own deadline or in-flight requests get cut off.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
