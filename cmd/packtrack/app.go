package main

import (
	"context"
	"log/slog"
	"time"

	"packtrack/config"
	"packtrack/internal/broker/kafka"
	"packtrack/internal/cache/rediscache"
	"packtrack/internal/extract"
	"packtrack/internal/integrations/courier"
	"packtrack/internal/integrations/courier/fedex"
	"packtrack/internal/integrations/courier/ups"
	"packtrack/internal/integrations/courier/upsweb"
	"packtrack/internal/integrations/courier/usps"
	"packtrack/internal/services/ingest"
	"packtrack/internal/services/statuspoller"
	"packtrack/internal/storage/pgstore"
	"golang.org/x/sync/errgroup"
)

type storage interface {
	statuspoller.Repository
	ingest.Repository
	opsRepository
}

type appFactories struct {
	newStorage     func(cfg *config.Config) (storage, func(), error)
	newProducer    func(cfg *config.Config) statuspoller.Producer
	newRateLimiter func(cfg *config.Config) statuspoller.RateLimiter
	newRouter      func(cfg *config.Config) courier.Client
	newMailSource  func(cfg *config.Config) ingest.MailSource
	newListCache   func(cfg *config.Config) listCache
}

func defaultAppFactories() appFactories {
	return appFactories{
		newStorage: func(cfg *config.Config) (storage, func(), error) {
			st, err := pgstore.New(cfg.Database.DSN())
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) statuspoller.Producer {
			if !cfg.Kafka.Enabled() {
				return nil
			}
			return kafka.NewProducer(cfg.Kafka.Brokers())
		},
		newRateLimiter: func(cfg *config.Config) statuspoller.RateLimiter {
			if !cfg.Redis.Enabled() {
				return nil
			}
			return rediscache.NewRateLimiter(cfg.Redis.Addr())
		},
		newRouter: func(cfg *config.Config) courier.Client {
			return buildRouter(cfg)
		},
		newMailSource: func(cfg *config.Config) ingest.MailSource {
			if !cfg.Mail.Enabled() {
				return nil
			}
			return ingest.NewIMAPSource(cfg.Mail.Addr, cfg.Mail.Username, cfg.Mail.Password, cfg.Mail.Mailbox)
		},
		newListCache: func(cfg *config.Config) listCache {
			if !cfg.Redis.Enabled() {
				return nil
			}
			return rediscache.New(cfg.Redis.Addr())
		},
	}
}

func buildRouter(cfg *config.Config) *courier.Router {
	r := courier.NewRouter()
	if cfg.Couriers.FedEx.Enabled() {
		c := cfg.Couriers.FedEx
		r.Register(extract.CourierFedEx, fedex.New(c.BaseURL, c.ClientID, c.ClientSecret))
		slog.Info("courier registered", "courier", extract.CourierFedEx)
	}
	if cfg.Couriers.USPS.Enabled() {
		c := cfg.Couriers.USPS
		r.Register(extract.CourierUSPS, usps.New(c.BaseURL, c.ClientID, c.ClientSecret))
		slog.Info("courier registered", "courier", extract.CourierUSPS)
	}
	switch {
	case cfg.Couriers.UPS.Enabled():
		c := cfg.Couriers.UPS
		r.Register(extract.CourierUPS, ups.New(c.BaseURL, c.ClientID, c.ClientSecret))
		slog.Info("courier registered", "courier", extract.CourierUPS)
	case cfg.Couriers.UPSWeb.Enabled:
		// Credential-less fallback when no UPS API account is configured.
		r.Register(extract.CourierUPS, upsweb.New(cfg.Couriers.UPSWeb.BaseURL))
		slog.Info("courier registered", "courier", extract.CourierUPS, "mode", "web")
	}
	return r
}

func RunApp(ctx context.Context, cfg *config.Config, f appFactories) error {
	slog.Info("starting packtrack", "config", cfg.Sanitized())

	st, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	pollInterval := time.Duration(cfg.PackTrack.PollIntervalSeconds) * time.Second
	ingestInterval := time.Duration(cfg.PackTrack.IngestIntervalSeconds) * time.Second
	rlPerMin := int64(cfg.PackTrack.RateLimitPerMinute)

	poller := statuspoller.New(st, f.newRouter(cfg), f.newProducer(cfg), f.newRateLimiter(cfg)).
		WithSettings(pollInterval, rlPerMin)

	var ingestWorker *ingest.Worker
	if src := f.newMailSource(cfg); src != nil {
		ingestWorker = ingest.New(st, src).WithSettings(ingestInterval)
	} else {
		slog.Info("mail not configured, email ingestion disabled")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return poller.Run(ctx) })
	if ingestWorker != nil {
		w := ingestWorker
		g.Go(func() error { return w.Run(ctx) })
	}
	g.Go(func() error {
		return runOpsHTTPServer(ctx, opsHTTPOpts{
			httpAddr: cfg.PackTrack.HTTPAddr,
			poller:   poller,
			ingest:   ingestWorker,
			repo:     st,
			cache:    f.newListCache(cfg),
		})
	})

	return g.Wait()
}
