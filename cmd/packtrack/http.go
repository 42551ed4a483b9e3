package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"packtrack/internal/models"
	"packtrack/internal/services/ingest"
	"packtrack/internal/services/statuspoller"
	"github.com/go-chi/chi/v5"
)

type opsRepository interface {
	ListPackagesWithStatus(ctx context.Context) ([]*models.PackageWithStatus, error)
}

type listCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

const packagesCacheKey = "packages:list"

type opsHTTPOpts struct {
	httpAddr string
	onListen func(httpAddr string)

	poller *statuspoller.Poller
	ingest *ingest.Worker
	repo   opsRepository
	cache  listCache
}

func runOpsHTTPServer(ctx context.Context, opts opsHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8082"
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		out := map[string]any{"poller": opts.poller.Stats()}
		if opts.ingest != nil {
			out["ingest"] = opts.ingest.Stats()
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	r.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		opts.poller.Trigger()
		if opts.ingest != nil {
			opts.ingest.Trigger()
		}
		_, _ = w.Write([]byte(`{"triggered":true}`))
	})

	r.Get("/packages", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if opts.cache != nil {
			if b, ok, err := opts.cache.Get(r.Context(), packagesCacheKey); err == nil && ok {
				_, _ = w.Write(b)
				return
			}
		}

		pkgs, err := opts.repo.ListPackagesWithStatus(r.Context())
		if err != nil {
			slog.Error("list packages", "error", err.Error())
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"storage unavailable"}`))
			return
		}
		if pkgs == nil {
			pkgs = []*models.PackageWithStatus{}
		}
		b, err := json.Marshal(pkgs)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if opts.cache != nil {
			if err := opts.cache.Set(r.Context(), packagesCacheKey, b, 30*time.Second); err != nil {
				slog.Warn("cache packages listing", "error", err.Error())
			}
		}
		_, _ = w.Write(b)
	})

	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	if err := srv.Serve(lis); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
