package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/hazyhaar/tidbridge/coverage"
)

// inspectServer exposes the coverage store over HTTP for debugging and
// dashboards. Read-only. Set AUTH_PASSWORD to require basic auth.
func inspectServer(addr string, k *coverage.Keeper, logger *slog.Logger) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	if pw := os.Getenv("AUTH_PASSWORD"); pw != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
		if err == nil {
			r.Use(requirePassword(hash))
		} else {
			logger.Error("tidbridge: auth setup failed, refusing all requests", "error", err)
			r.Use(func(http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
					http.Error(w, "unavailable", http.StatusServiceUnavailable)
				})
			})
		}
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Get("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		stats, err := k.Stats(r.Context())
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, stats)
	})

	r.Get("/api/pages", func(w http.ResponseWriter, r *http.Request) {
		pages, err := k.Pages(r.Context())
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, pages)
	})

	r.Get("/api/writes", func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		writes, err := k.Writes(r.Context(), r.URL.Query().Get("page_id"), limit)
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, writes)
	})

	r.Get("/api/coverage", func(w http.ResponseWriter, r *http.Request) {
		covs, err := k.LatestCoverage(r.Context())
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, covs)
	})

	r.Get("/api/report/{pageID}", func(w http.ResponseWriter, r *http.Request) {
		rep, err := k.Report(r.Context(), chi.URLParam(r, "pageID"))
		if err != nil {
			writeError(w, 404, err)
			return
		}
		writeJSON(w, 200, rep)
	})

	return &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// requirePassword enforces basic auth against a bcrypt hash. The username is
// ignored; only the password counts.
func requirePassword(hash []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, pw, ok := r.BasicAuth()
			if !ok || bcrypt.CompareHashAndPassword(hash, []byte(pw)) != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="tidbridge"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
