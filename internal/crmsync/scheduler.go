package crmsync

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// Scheduler runs a full catalog sync every interval.
type Scheduler struct {
	dispatcher *Dispatcher
	interval   time.Duration
}

func NewScheduler(d *Dispatcher, interval time.Duration) *Scheduler {
	return &Scheduler{dispatcher: d, interval: interval}
}

// Enabled is false for a non-positive interval or an unconfigured CRM.
func (s *Scheduler) Enabled() bool {
	return s.interval > 0 && s.dispatcher.Configured()
}

// Run blocks until ctx is done. Runs never overlap.
func (s *Scheduler) Run(ctx context.Context) {
	if !s.Enabled() {
		return
	}
	log.WithField("interval", s.interval.String()).Info("periodic bitrix sync started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("periodic bitrix sync stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	result, err := s.dispatcher.SyncAll(ctx)
	if err != nil {
		log.WithError(err).Error("periodic bitrix sync failed")
		return
	}
	log.WithFields(log.Fields{
		"successful": result.Successful,
		"failed":     result.Failed,
	}).Info("periodic bitrix sync done")
}
