package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/facilitydirectory/internal/adapters/cache"
	"github.com/zatekoja/facilitydirectory/internal/adapters/collectors"
	"github.com/zatekoja/facilitydirectory/internal/adapters/database"
	"github.com/zatekoja/facilitydirectory/internal/adapters/events"
	"github.com/zatekoja/facilitydirectory/internal/adapters/sources"
	"github.com/zatekoja/facilitydirectory/internal/application/services"
	"github.com/zatekoja/facilitydirectory/internal/domain/providers"
	"github.com/zatekoja/facilitydirectory/internal/domain/repositories"
	"github.com/zatekoja/facilitydirectory/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/facilitydirectory/internal/infrastructure/clients/redis"
	"github.com/zatekoja/facilitydirectory/internal/infrastructure/clients/s3"
	"github.com/zatekoja/facilitydirectory/internal/infrastructure/observability"
	"github.com/zatekoja/facilitydirectory/pkg/config"
)

// app holds the clients and services shared by the subcommands
type app struct {
	cfg     *config.Config
	metrics *observability.Metrics

	store     *postgres.Client
	source    *postgres.Client
	redis     *redis.Client
	reference providers.ReferenceSource

	facilityRepo repositories.FacilityRepository
	overlayRepo  repositories.OverlayRepository
	bandRepo     repositories.DriveTimeBandRepository

	responseCache *services.ResponseCache
	invalidation  *services.CacheInvalidationService
	overlays      *services.OverlayService
	facilities    *services.FacilityService
	nearby        *services.NearbyService
	reload        *services.ReloadService
}

// newApp connects to the facility store and builds every service. The VAST
// database is only opened when withCollectors is set.
func newApp(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, withCollectors bool) (*app, error) {
	a := &app{cfg: cfg, metrics: metrics}

	store, err := postgres.NewClient(ctx, "facility store", &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to facility store: %w", err)
	}
	a.store = store

	if cfg.Redis.Enabled {
		rc, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.redis = rc
	}

	a.facilityRepo = database.NewFacilityAdapter(store)
	a.overlayRepo = database.NewOverlayAdapter(store)
	a.bandRepo = database.NewDriveTimeBandAdapter(store)

	var cacheProvider providers.CacheProvider
	if cfg.Cache.Backend == config.CacheBackendRedis {
		cacheProvider = cache.NewRedisAdapter(a.redis)
		log.Info().Msg("Response cache: redis")
	} else {
		cacheProvider = cache.NewMemoryAdapter()
		log.Info().Msg("Response cache: in-memory")
	}

	var eventBus providers.EventBus
	if a.redis != nil {
		eventBus = events.NewRedisEventBus(a.redis)
	}

	a.responseCache = services.NewResponseCache(cacheProvider, metrics)
	a.invalidation = services.NewCacheInvalidationService(a.responseCache, eventBus)

	refSource, err := newReferenceSource(ctx, &cfg.Reference)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.reference = refSource
	log.Info().Str("source", refSource.Describe()).Msg("Reference files")

	a.overlays = services.NewOverlayService(a.overlayRepo, refSource, cfg.Reference.CovidURLKey, a.invalidation)
	a.facilities = services.NewFacilityService(a.facilityRepo, a.overlays, a.invalidation, cfg.Links.BaseURL)
	a.nearby = services.NewNearbyService(a.bandRepo, a.facilityRepo)

	if withCollectors {
		vast, err := postgres.NewClient(ctx, "vast", &cfg.SourceDB)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to VAST: %w", err)
		}
		a.source = vast

		a.reload = services.NewReloadService(a.facilityRepo, []providers.FacilityCollector{
			collectors.NewHealthCollector(vast),
			collectors.NewVetCenterCollector(vast),
			collectors.NewBenefitsCollector(refSource),
			collectors.NewCemeteryCollector(refSource),
			collectors.NewStateCemeteryCollector(refSource),
		}, a.invalidation, services.ReloadOptions{
			CollectorTimeout: cfg.Reload.CollectorTimeout,
			Workers:          cfg.Reload.Workers,
			Metrics:          metrics,
		})
	}

	return a, nil
}

func newReferenceSource(ctx context.Context, cfg *config.ReferenceConfig) (providers.ReferenceSource, error) {
	if cfg.Source != config.ReferenceSourceS3 {
		return sources.NewFileSource(cfg.Dir), nil
	}
	client, err := s3.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return sources.NewS3Source(client, cfg.S3Bucket, cfg.S3Prefix), nil
}

// Close releases every open client
func (a *app) Close() {
	if a.invalidation != nil {
		a.invalidation.Stop()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close redis client")
		}
	}
	for _, c := range []*postgres.Client{a.source, a.store} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close database client")
		}
	}
}
