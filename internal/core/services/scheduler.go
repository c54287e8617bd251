package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/trawlhq/trawl/internal/core/domain"
	"github.com/trawlhq/trawl/internal/core/ports/driven"
	"github.com/trawlhq/trawl/internal/core/ports/driving"
	"github.com/trawlhq/trawl/internal/logger"
)

// DefaultScheduleID names the built-in all-providers schedule.
const DefaultScheduleID = "full-sync"

// schedulerTick is the loop resolution. Schedules fire on the first tick
// after they come due, so intervals below the tick are pointless.
const schedulerTick = time.Minute

// SchedulerService fires sync runs on stored schedules while serve mode is
// up. Triggers run one at a time; a schedule that comes due while a run is
// active fires on a later tick.
type SchedulerService struct {
	store  driven.ScheduleStore
	runner driving.SyncRunner

	// fullInterval seeds the built-in all-providers schedule. Zero
	// means it is created disabled.
	fullInterval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	now     func() time.Time
}

// Ensure SchedulerService implements the interface.
var _ driving.Scheduler = (*SchedulerService)(nil)

// NewSchedulerService creates a scheduler.
func NewSchedulerService(store driven.ScheduleStore, runner driving.SyncRunner, fullInterval time.Duration) *SchedulerService {
	return &SchedulerService{
		store:        store,
		runner:       runner,
		fullInterval: fullInterval,
		now:          time.Now,
	}
}

// Start begins evaluating schedules. It returns immediately; the loop runs
// until Stop or context cancellation.
func (s *SchedulerService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	if err := s.ensureDefaultSchedule(ctx); err != nil {
		logger.Warn("Scheduler: initialising default schedule: %v", err)
	}

	s.wg.Add(1)
	go s.loop(ctx)
	return nil
}

// Stop halts the loop and waits for an in-flight trigger to finish.
func (s *SchedulerService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
}

// ensureDefaultSchedule creates or refreshes the built-in all-providers
// schedule from the configured interval.
func (s *SchedulerService) ensureDefaultSchedule(ctx context.Context) error {
	schedule, err := s.store.GetSchedule(ctx, DefaultScheduleID)
	if err != nil {
		return err
	}

	if schedule == nil {
		schedule = &domain.Schedule{ID: DefaultScheduleID}
	}
	schedule.Interval = s.fullInterval
	schedule.Enabled = s.fullInterval > 0

	return s.store.SaveSchedule(ctx, *schedule)
}

func (s *SchedulerService) loop(ctx context.Context) {
	defer s.wg.Done()

	s.fireDue(ctx)

	ticker := time.NewTicker(schedulerTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.fireDue(ctx)
		}
	}
}

// fireDue runs every due schedule, serially.
func (s *SchedulerService) fireDue(ctx context.Context) {
	schedules, err := s.store.ListSchedules(ctx)
	if err != nil {
		logger.Warn("Scheduler: listing schedules: %v", err)
		return
	}

	now := s.now()
	for i := range schedules {
		schedule := schedules[i]
		if !schedule.Due(now) {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		default:
		}
		s.fire(ctx, schedule)
	}
}

// fire triggers one schedule and records the outcome. A run already in
// progress leaves the schedule untouched so it fires again next tick.
func (s *SchedulerService) fire(ctx context.Context, schedule domain.Schedule) {
	startedAt := s.now()
	logger.Debug("Scheduler: firing %s", schedule.ID)

	var err error
	if schedule.ProviderType == "" {
		_, err = s.runner.Run(ctx)
	} else {
		_, err = s.runner.RunProvider(ctx, schedule.ProviderType, schedule.ProviderName)
	}

	if errors.Is(err, domain.ErrSyncInProgress) {
		logger.Debug("Scheduler: %s deferred, sync already running", schedule.ID)
		return
	}

	schedule.LastRun = startedAt
	if err != nil {
		schedule.LastError = err.Error()
		logger.Warn("Scheduler: %s failed: %v", schedule.ID, err)
	} else {
		schedule.LastError = ""
	}

	if saveErr := s.store.SaveSchedule(ctx, schedule); saveErr != nil {
		logger.Warn("Scheduler: saving %s: %v", schedule.ID, saveErr)
	}
}
