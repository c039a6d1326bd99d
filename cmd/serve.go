package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/maskline/numsync/internal/checks"
	"github.com/maskline/numsync/internal/cleaner"
	"github.com/maskline/numsync/internal/model"
	"github.com/maskline/numsync/internal/store"
	"github.com/maskline/numsync/pkg/twilio"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the JSON API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		tw, err := initTwilio()
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(st, tw, cfg.Twilio.MainNumber),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

type taskInfo struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CanClean    bool   `json:"can_clean"`
}

type checkResponse struct {
	Task    string                    `json:"task"`
	Issues  int                       `json:"issues"`
	Cleaned int                       `json:"cleaned"`
	Counts  map[string]map[string]int `json:"counts"`
	Report  string                    `json:"report"`
}

func newRouter(st store.Store, tw twilio.Client, mainNumber string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/tasks", func(w http.ResponseWriter, _ *http.Request) {
			var tasks []taskInfo
			for _, c := range checks.All(st, tw, mainNumber) {
				tasks = append(tasks, taskInfo{
					Slug:        c.Slug(),
					Title:       c.Title(),
					Description: c.Description(),
					CanClean:    c.CanClean(),
				})
			}
			writeJSON(w, http.StatusOK, tasks)
		})

		r.Get("/runs", func(w http.ResponseWriter, req *http.Request) {
			limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
			runs, err := st.ListCheckRuns(req.Context(), limit)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			if runs == nil {
				runs = []model.CheckRun{}
			}
			writeJSON(w, http.StatusOK, runs)
		})

		r.Post("/check/{slug}", func(w http.ResponseWriter, req *http.Request) {
			slug := chi.URLParam(req, "slug")
			var checker cleaner.Checker
			for _, c := range checks.All(st, tw, mainNumber) {
				if c.Slug() == slug {
					checker = c
					break
				}
			}
			if checker == nil {
				writeError(w, http.StatusNotFound, eris.Errorf("unknown task: %s", slug))
				return
			}

			clean := req.URL.Query().Get("clean") == "true"
			res, err := runCheck(req.Context(), checker, clean)
			if err != nil {
				zap.L().Error("check failed", zap.String("task", slug), zap.Error(err))
				writeError(w, http.StatusBadGateway, err)
				return
			}
			counts, err := res.task.Counts(req.Context())
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			run, err := saveRun(req.Context(), st, res)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			zap.L().Info("run recorded",
				zap.String("task", slug),
				zap.String("run_id", run.ID),
				zap.Int("issues", res.issues),
			)
			writeJSON(w, http.StatusOK, checkResponse{
				Task:    slug,
				Issues:  res.issues,
				Cleaned: res.cleaned,
				Counts:  counts,
				Report:  res.report,
			})
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
