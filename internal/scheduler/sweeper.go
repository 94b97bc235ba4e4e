package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/config"
	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/domain"
	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/metrics"
)

// sweepActor is the user recorded on expiry events emitted by the sweep
const sweepActor = "system:expiry-sweep"

type requirementExpirer interface {
	ListExpiryCandidates(ctx context.Context, now time.Time, limit int) ([]domain.Requirement, error)
	Expire(ctx context.Context, id uuid.UUID, now time.Time, userID string) (*domain.Requirement, error)
}

type availabilityExpirer interface {
	ListExpiryCandidates(ctx context.Context, now time.Time, limit int) ([]domain.Availability, error)
	Expire(ctx context.Context, id uuid.UUID, now time.Time, userID string) (*domain.Availability, error)
}

// Sweeper expires requirements and availabilities whose EOD cutoff has passed.
// Expiry is lazy everywhere else; the sweep is the catch-up path that keeps
// listings from lingering past their cutoff when nobody reads them.
type Sweeper struct {
	requirements   requirementExpirer
	availabilities availabilityExpirer
	metrics        *metrics.Metrics

	scheduler   gocron.Scheduler
	interval    time.Duration
	batchSize   int
	parallelism int
}

func NewSweeper(requirements requirementExpirer, availabilities availabilityExpirer, m *metrics.Metrics, cfg config.SchedulerConfig) *Sweeper {
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = time.Hour
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}
	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = 4
	}

	return &Sweeper{
		requirements:   requirements,
		availabilities: availabilities,
		metrics:        m,
		interval:       interval,
		batchSize:      batchSize,
		parallelism:    parallelism,
	}
}

// Start schedules the sweep on its own interval. The first run happens after
// one full interval; reads already expire lazily so nothing is overdue at boot.
func (s *Sweeper) Start(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			s.Sweep(ctx)
		}),
	)
	if err != nil {
		return err
	}

	scheduler.Start()
	s.scheduler = scheduler

	log.Info().
		Dur("interval", s.interval).
		Int("batch_size", s.batchSize).
		Int("parallelism", s.parallelism).
		Msg("Expiry sweep scheduled")
	return nil
}

func (s *Sweeper) Shutdown() error {
	if s.scheduler == nil {
		return nil
	}
	return s.scheduler.Shutdown()
}

// Sweep runs one pass over both kinds and logs the tallies.
func (s *Sweeper) Sweep(ctx context.Context) {
	start := time.Now()

	reqExpired, reqSkipped, reqFailed := s.sweepRequirements(ctx)
	availExpired, availSkipped, availFailed := s.sweepAvailabilities(ctx)

	s.metrics.ObserveSweep(time.Since(start))

	log.Info().
		Int64("requirements_expired", reqExpired).
		Int64("requirements_skipped", reqSkipped).
		Int64("requirements_failed", reqFailed).
		Int64("availabilities_expired", availExpired).
		Int64("availabilities_skipped", availSkipped).
		Int64("availabilities_failed", availFailed).
		Dur("duration", time.Since(start)).
		Msg("Expiry sweep completed")
}

func (s *Sweeper) sweepRequirements(ctx context.Context) (int64, int64, int64) {
	now := time.Now().UTC()

	candidates, err := s.requirements.ListExpiryCandidates(ctx, now, s.batchSize)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list expiry candidates for requirements")
		s.metrics.IncrementSweepError(domain.KindRequirement)
		return 0, 0, 0
	}

	var expired, skipped, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(s.parallelism)
	for _, candidate := range candidates {
		id := candidate.ID
		g.Go(func() error {
			_, err := s.requirements.Expire(ctx, id, now, sweepActor)
			s.tally(domain.KindRequirement, "requirement_id", id, err, &expired, &skipped, &failed)
			return nil
		})
	}
	g.Wait()

	return expired.Load(), skipped.Load(), failed.Load()
}

func (s *Sweeper) sweepAvailabilities(ctx context.Context) (int64, int64, int64) {
	now := time.Now().UTC()

	candidates, err := s.availabilities.ListExpiryCandidates(ctx, now, s.batchSize)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list expiry candidates for availabilities")
		s.metrics.IncrementSweepError(domain.KindAvailability)
		return 0, 0, 0
	}

	var expired, skipped, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(s.parallelism)
	for _, candidate := range candidates {
		id := candidate.ID
		g.Go(func() error {
			_, err := s.availabilities.Expire(ctx, id, now, sweepActor)
			s.tally(domain.KindAvailability, "availability_id", id, err, &expired, &skipped, &failed)
			return nil
		})
	}
	g.Wait()

	return expired.Load(), skipped.Load(), failed.Load()
}

// tally classifies one expiry attempt. State and version conflicts mean another
// actor already settled the row, so they are skips, not failures.
func (s *Sweeper) tally(kind, idField string, id uuid.UUID, err error, expired, skipped, failed *atomic.Int64) {
	switch {
	case err == nil:
		expired.Add(1)
		s.metrics.IncrementSweepExpired(kind)
	case domain.IsInvalidState(err) || errors.Is(err, domain.ErrConcurrencyConflict):
		skipped.Add(1)
		log.Debug().Err(err).Str(idField, id.String()).Msg("Expiry already settled, skipping")
	default:
		failed.Add(1)
		s.metrics.IncrementSweepError(kind)
		log.Error().Err(err).Str(idField, id.String()).Msg("Failed to expire listing")
	}
}
