package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/mindstash/mindstash-backend/internal/notifications"
)

// Scheduler periodically delivers due notifications
type Scheduler struct {
	notifications *notifications.Service
	interval      time.Duration
	log           *logrus.Logger
}

// New creates a scheduler. A non-positive interval defaults to one minute.
func New(svc *notifications.Service, interval time.Duration, log *logrus.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		notifications: svc,
		interval:      interval,
		log:           log,
	}
}

// Run ticks until ctx is cancelled. Call it in its own goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.WithField("interval", s.interval).Info("notification scheduler started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("notification scheduler stopped")
			return
		case <-ticker.C:
			result, err := s.notifications.ProcessDue(ctx)
			if err != nil {
				s.log.WithError(err).Error("notification pass failed")
				continue
			}
			if result.TotalProcessed > 0 {
				s.log.WithFields(logrus.Fields{
					"delivered": result.Successful,
					"failed":    result.Failed,
				}).Info("notification pass finished")
			}
		}
	}
}
