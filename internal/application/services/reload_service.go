package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/zatekoja/facilitydirectory/internal/domain/entities"
	"github.com/zatekoja/facilitydirectory/internal/domain/providers"
	"github.com/zatekoja/facilitydirectory/internal/domain/repositories"
	"github.com/zatekoja/facilitydirectory/internal/infrastructure/observability"
)

// ReloadOptions tunes a ReloadService
type ReloadOptions struct {
	// CollectorTimeout bounds each collector run
	CollectorTimeout time.Duration
	// Workers is the number of concurrent facility writes
	Workers int
	Metrics *observability.Metrics
}

// ReloadService re-collects every facility and reconciles the result with the
// facility store. Runs are serialized; a second caller waits for the first.
type ReloadService struct {
	mu          sync.Mutex
	facilities  repositories.FacilityRepository
	collectors  []providers.FacilityCollector
	invalidator CacheInvalidator
	opts        ReloadOptions
	now         func() time.Time
}

// NewReloadService creates a new reload service
func NewReloadService(facilities repositories.FacilityRepository, collectors []providers.FacilityCollector, invalidator CacheInvalidator, opts ReloadOptions) *ReloadService {
	if opts.CollectorTimeout <= 0 {
		opts.CollectorTimeout = 5 * time.Minute
	}
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	return &ReloadService{
		facilities:  facilities,
		collectors:  collectors,
		invalidator: invalidator,
		opts:        opts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type collectorResult struct {
	collection *providers.Collection
	err        error
}

type pendingWrite struct {
	facility *entities.Facility
	hash     string
}

// Reload runs one collection cycle. Collector failures are reported as
// problems; an error is returned only when the facility store fails.
func (s *ReloadService) Reload(ctx context.Context) (*entities.ReloadReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := observability.StartSpan(ctx, "reload")
	defer span.End()

	report := entities.NewReloadReport(uuid.NewString(), s.now())
	logger := observability.LoggerFromContext(ctx).With().Str("reload_id", report.ReloadID).Logger()
	logger.Info().Int("collectors", len(s.collectors)).Msg("Reload started")

	// Whatever happened, cached responses may now be stale.
	defer s.invalidator.Invalidate(context.WithoutCancel(ctx), entities.CacheEventReloadCompleted, "")

	collected := s.collect(ctx, report)
	report.Timing.CompleteCollection = s.now()

	if err := s.persist(ctx, report, collected); err != nil {
		observability.RecordError(span, err)
		logger.Error().Err(err).Msg("Reload failed")
		return nil, err
	}

	report.Finish(s.now())
	observability.RecordReload(ctx, s.opts.Metrics, report.Timing.TotalDuration, len(report.Problems))
	observability.SetSpanAttributes(span,
		attribute.Int("reload.created", len(report.Created)),
		attribute.Int("reload.updated", len(report.Updated)),
		attribute.Int("reload.revived", len(report.Revived)),
		attribute.Int("reload.missing", len(report.Missing)),
		attribute.Int("reload.problems", len(report.Problems)),
		attribute.Bool("reload.changed", report.Changed()),
	)

	logger.Info().
		Int("created", len(report.Created)).
		Int("updated", len(report.Updated)).
		Int("revived", len(report.Revived)).
		Int("missing", len(report.Missing)).
		Int("problems", len(report.Problems)).
		Bool("changed", report.Changed()).
		Dur("duration", report.Timing.TotalDuration).
		Msg("Reload complete")
	return report, nil
}

// collect runs every collector in parallel and joins their output in
// collector order. The first record seen for an id wins.
func (s *ReloadService) collect(ctx context.Context, report *entities.ReloadReport) []*entities.Facility {
	ctx, span := observability.StartSpan(ctx, "reload.collect")
	defer span.End()

	results := make([]collectorResult, len(s.collectors))
	var g errgroup.Group
	for i, c := range s.collectors {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, s.opts.CollectorTimeout)
			defer cancel()
			collection, err := runCollector(cctx, c)
			results[i] = collectorResult{collection: collection, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var facilities []*entities.Facility
	seen := make(map[string]string)
	for i, c := range s.collectors {
		res := results[i]
		if res.collection != nil {
			for _, p := range res.collection.Problems {
				report.AddProblem(p)
			}
		}
		if res.err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(res.err).Str("collector", c.Name()).Msg("Collector failed")
			report.AddProblem(entities.ReloadProblem{
				Collector:   c.Name(),
				Description: res.err.Error(),
			})
			continue
		}

		for _, f := range res.collection.Facilities {
			key := strings.ToLower(f.ID)
			if owner, dup := seen[key]; dup {
				report.AddProblem(entities.ReloadProblem{
					FacilityID:  f.ID,
					Collector:   c.Name(),
					Description: fmt.Sprintf("duplicate facility id, already collected by %s", owner),
				})
				continue
			}
			seen[key] = c.Name()
			facilities = append(facilities, f)
		}
	}

	span.SetAttributes(attribute.Int("reload.collected", len(facilities)))
	return facilities
}

// runCollector calls c and gives up when ctx is done, even if the collector
// ignores its context. Panics are reported as errors.
func runCollector(ctx context.Context, c providers.FacilityCollector) (*providers.Collection, error) {
	done := make(chan collectorResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- collectorResult{err: fmt.Errorf("collector panicked: %v", r)}
			}
		}()
		collection, err := c.Collect(ctx)
		if err == nil && collection == nil {
			collection = &providers.Collection{}
		}
		done <- collectorResult{collection: collection, err: err}
	}()

	select {
	case res := <-done:
		return res.collection, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: gave up waiting: %w", c.Name(), ctx.Err())
	}
}

// persist classifies the collected facilities against the store and writes
// the ones that changed
func (s *ReloadService) persist(ctx context.Context, report *entities.ReloadReport, collected []*entities.Facility) error {
	ctx, span := observability.StartSpan(ctx, "reload.persist")
	defer span.End()

	snapshot, err := s.facilities.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to read facility snapshot: %w", err)
	}

	var writes []pendingWrite
	present := make(map[string]bool, len(collected))
	for _, f := range collected {
		key := strings.ToLower(f.ID)
		present[key] = true
		hash, err := f.ContentHash()
		if err != nil {
			report.AddProblem(entities.ReloadProblem{FacilityID: f.ID, Description: fmt.Sprintf("cannot encode facility: %v", err)})
			continue
		}

		state, stored := snapshot[key]
		switch {
		case !stored:
			report.Created = append(report.Created, f.ID)
		case state.Missing:
			report.Revived = append(report.Revived, f.ID)
		case state.ContentHash != hash:
			report.Updated = append(report.Updated, f.ID)
		default:
			continue
		}
		writes = append(writes, pendingWrite{facility: f, hash: hash})
	}

	var missing []string
	for key, state := range snapshot {
		if !present[key] {
			missing = append(missing, state.ID)
		}
	}
	report.Missing = append(report.Missing, missing...)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for _, w := range writes {
		g.Go(func() error {
			if err := s.facilities.Save(gctx, w.facility, w.hash); err != nil {
				return fmt.Errorf("failed to save facility %s: %w", w.facility.ID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if len(missing) > 0 {
		if err := s.facilities.MarkMissing(ctx, missing, report.Timing.Start); err != nil {
			return fmt.Errorf("failed to flag missing facilities: %w", err)
		}
	}

	span.SetAttributes(attribute.Int("reload.writes", len(writes)))
	return nil
}
