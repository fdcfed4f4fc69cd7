package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ignite/pulsemail/internal/domain"
	"github.com/ignite/pulsemail/internal/pkg/distlock"
	"github.com/ignite/pulsemail/internal/pkg/logger"
	"github.com/ignite/pulsemail/internal/service/campaign"
)

// DueLister finds scheduled campaigns whose send time has passed.
type DueLister interface {
	ListDueScheduled(ctx context.Context, now time.Time) ([]domain.Campaign, error)
}

// Scheduler periodically promotes due scheduled campaigns into sending
// through the campaign service, which snapshots recipients and enqueues
// the run.
type Scheduler struct {
	due      DueLister
	svc      *campaign.Service
	interval time.Duration
	lock     distlock.DistLock // optional; single activator across instances

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler ticking at the given interval. A zero
// interval falls back to 30 seconds.
func NewScheduler(due DueLister, svc *campaign.Service, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Scheduler{due: due, svc: svc, interval: interval}
}

// SetLock installs a distributed lock so only one worker instance runs the
// activation pass per tick. Without it, lost activation races are still
// harmless (the status check rejects the loser) but noisier.
func (s *Scheduler) SetLock(lock distlock.DistLock) { s.lock = lock }

// Start launches the tick loop. No-op if already running.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}()
	logger.Info("campaign scheduler started", "interval", s.interval)
}

// Stop cancels the tick loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()
	s.wg.Wait()
}

// Tick promotes every due scheduled campaign. Exported so a single pass can
// be driven directly in tests and one-shot maintenance commands.
func (s *Scheduler) Tick(ctx context.Context) {
	if s.lock != nil {
		ok, err := s.lock.Acquire(ctx)
		if err != nil {
			logger.Error("acquire scheduler lock", "error", err)
			return
		}
		if !ok {
			return // another instance owns this tick
		}
		defer func() {
			if err := s.lock.Release(ctx); err != nil {
				logger.Warn("release scheduler lock", "error", err)
			}
		}()
	}

	due, err := s.due.ListDueScheduled(ctx, time.Now())
	if err != nil {
		logger.Error("list due campaigns", "error", err)
		return
	}

	for _, c := range due {
		if _, err := s.svc.ActivateScheduled(ctx, c.UserID, c.ID); err != nil {
			var ise *campaign.InvalidStateError
			if errors.As(err, &ise) {
				// Lost the race to another instance's tick.
				logger.Debug("campaign no longer scheduled", "campaign_id", c.ID)
				continue
			}
			logger.Error("activate scheduled campaign", "campaign_id", c.ID, "error", err)
			continue
		}
		logger.Info("scheduled campaign activated", "campaign_id", c.ID, "name", c.Name)
	}
}
