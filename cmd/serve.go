package main

import (
	"context"
	"encoding/json"
	"errors"
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

	"github.com/sells-group/balance-review/internal/review"
	"github.com/sells-group/balance-review/internal/review/rules"
	"github.com/sells-group/balance-review/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-only report server",
	Long:  "Serves persisted review reports and the rule catalog over HTTP.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		reg, err := rules.NewRegistry()
		if err != nil {
			return err
		}
		catalog, err := review.BuildCatalog(reg)
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newServeRouter(st, catalog),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newServeRouter builds the read-only HTTP API.
func newServeRouter(st store.Store, catalog []review.CatalogEntry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/catalog", func(w http.ResponseWriter, _ *http.Request) {
			writeJSONResponse(w, http.StatusOK, catalog)
		})

		r.Get("/runs", func(w http.ResponseWriter, req *http.Request) {
			filter := store.RunFilter{
				PeriodEnd: req.URL.Query().Get("period_end"),
			}
			if v := req.URL.Query().Get("limit"); v != "" {
				n, err := strconv.Atoi(v)
				if err != nil {
					writeJSONError(w, http.StatusBadRequest, "invalid limit")
					return
				}
				filter.Limit = n
			}
			if v := req.URL.Query().Get("offset"); v != "" {
				n, err := strconv.Atoi(v)
				if err != nil {
					writeJSONError(w, http.StatusBadRequest, "invalid offset")
					return
				}
				filter.Offset = n
			}

			runs, err := st.ListRuns(req.Context(), filter)
			if err != nil {
				zap.L().Error("list runs failed", zap.Error(err))
				writeJSONError(w, http.StatusInternalServerError, "list runs failed")
				return
			}
			if runs == nil {
				runs = []store.RunSummary{}
			}
			writeJSONResponse(w, http.StatusOK, runs)
		})

		r.Get("/reports/latest", func(w http.ResponseWriter, req *http.Request) {
			report, err := st.LatestReport(req.Context())
			writeReportResponse(w, report, err)
		})

		r.Get("/reports/{runID}", func(w http.ResponseWriter, req *http.Request) {
			report, err := st.GetReport(req.Context(), chi.URLParam(req, "runID"))
			writeReportResponse(w, report, err)
		})
	})

	return r
}

func writeReportResponse(w http.ResponseWriter, report *review.RuleRunReport, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		zap.L().Error("load report failed", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "load report failed")
		return
	}
	writeJSONResponse(w, http.StatusOK, report)
}

func writeJSONResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSONResponse(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
