package main

import (
	"context"
	"testing"

	"packtrack/config"
	"packtrack/internal/integrations/courier"
	"packtrack/internal/models"
	"packtrack/internal/services/ingest"
	"packtrack/internal/services/statuspoller"
	"packtrack/internal/storage/pgstore"
	"github.com/stretchr/testify/require"
)

type fakeStorage struct{}

func (fakeStorage) GetActivePackages(ctx context.Context) ([]*models.Package, error) {
	return nil, nil
}

func (fakeStorage) InsertPackageStatus(ctx context.Context, packageID int64, in pgstore.StatusInsert) (bool, error) {
	return false, nil
}

func (fakeStorage) LastSeenUID(ctx context.Context) (uint32, error) { return 0, nil }

func (fakeStorage) SetLastSeenUID(ctx context.Context, uid uint32) error { return nil }

func (fakeStorage) InsertPackage(ctx context.Context, p *models.NewPackage) (bool, error) {
	return false, nil
}

func (fakeStorage) ListPackagesWithStatus(ctx context.Context) ([]*models.PackageWithStatus, error) {
	return nil, nil
}

func TestBuildRouter_CourierSelection(t *testing.T) {
	cfg := &config.Config{}
	cfg.Couriers.FedEx = config.OAuthCourierConfig{ClientID: "id", ClientSecret: "s"}
	cfg.Couriers.USPS = config.OAuthCourierConfig{ClientID: "id", ClientSecret: "s"}
	cfg.Couriers.UPSWeb = config.UPSWebConfig{Enabled: true}

	r := buildRouter(cfg)
	require.Equal(t, []string{"fedex", "ups", "usps"}, r.Registered())

	// API credentials win over the web fallback, but selection stays the same.
	cfg.Couriers.UPS = config.OAuthCourierConfig{ClientID: "id", ClientSecret: "s"}
	r = buildRouter(cfg)
	require.Equal(t, []string{"fedex", "ups", "usps"}, r.Registered())

	r = buildRouter(&config.Config{})
	require.Empty(t, r.Registered())
}

func TestDefaultAppFactories_OptionalBackends(t *testing.T) {
	f := defaultAppFactories()

	require.Nil(t, f.newProducer(&config.Config{}))
	require.Nil(t, f.newRateLimiter(&config.Config{}))
	require.Nil(t, f.newMailSource(&config.Config{}))
	require.Nil(t, f.newListCache(&config.Config{}))

	cfg := &config.Config{
		Kafka: config.KafkaConfig{Host: "localhost", Port: 9092},
		Redis: config.RedisConfig{Host: "localhost", Port: 6379},
		Mail:  config.MailConfig{Addr: "imap.example.com:993"},
	}
	require.NotNil(t, f.newProducer(cfg))
	require.NotNil(t, f.newRateLimiter(cfg))
	require.NotNil(t, f.newMailSource(cfg))
	require.NotNil(t, f.newListCache(cfg))
}

func TestRunApp_ContextCanceled(t *testing.T) {
	calledClose := false

	f := appFactories{
		newStorage: func(cfg *config.Config) (storage, func(), error) {
			return fakeStorage{}, func() { calledClose = true }, nil
		},
		newProducer:    func(cfg *config.Config) statuspoller.Producer { return nil },
		newRateLimiter: func(cfg *config.Config) statuspoller.RateLimiter { return nil },
		newRouter:      func(cfg *config.Config) courier.Client { return courier.NewRouter() },
		newMailSource:  func(cfg *config.Config) ingest.MailSource { return nil },
		newListCache:   func(cfg *config.Config) listCache { return nil },
	}

	cfg := &config.Config{}
	cfg.PackTrack.HTTPAddr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunApp(ctx, cfg, f)
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, calledClose)
}
