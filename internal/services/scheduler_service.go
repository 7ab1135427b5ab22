package services

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"

	"github.com/notesync/engine/internal/observability"
)

// SchedulerService triggers a full sync on a fixed schedule. A scheduled run
// that lands while a sync is already active is skipped, not queued.
type SchedulerService struct {
	engine   *SyncEngine
	schedule string
	enabled  bool
	cron     *cron.Cron
	entryID  cron.EntryID
}

// NewSchedulerService creates a new SchedulerService. schedule is a cron
// expression or an @every duration, e.g. "@every 5m".
func NewSchedulerService(engine *SyncEngine, schedule string, enabled bool) *SchedulerService {
	return &SchedulerService{
		engine:   engine,
		schedule: schedule,
		enabled:  enabled,
		cron:     cron.New(),
	}
}

// Start begins the periodic sync schedule
func (s *SchedulerService) Start() {
	if !s.enabled {
		observability.Info("sync scheduler is disabled")
		return
	}

	observability.Infof("starting sync scheduler with schedule %q", s.schedule)

	id, err := s.cron.AddFunc(s.schedule, s.triggerSync)
	if err != nil {
		observability.Errorf("failed to schedule sync job: %v", err)
		return
	}

	s.entryID = id
	s.cron.Start()
}

// Stop halts the schedule. Already-running jobs finish on their own.
func (s *SchedulerService) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	observability.Info("stopped sync scheduler")
}

func (s *SchedulerService) triggerSync() {
	observability.Debug("triggering scheduled sync")

	if _, err := s.engine.FullSync(context.Background()); err != nil {
		if errors.Is(err, ErrSyncInProgress) {
			observability.Info("sync already running, skipping scheduled run")
			return
		}
		observability.Errorf("scheduled sync failed: %v", err)
	}
}
