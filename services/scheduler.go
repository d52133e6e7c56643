// services/scheduler.go
package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/samber/oops"

	"mission-control/logging"
)

// StartExpiryScheduler closes ended events every interval. The caller owns
// the returned scheduler and must Shutdown it.
func (s *EventService) StartExpiryScheduler(ctx context.Context, interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, oops.Code("SCHEDULER_INIT_FAILED").Wrap(err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			n, err := s.CloseExpired(ctx)
			if err != nil {
				logging.LogError(s.logger, "[Scheduler] closing expired events failed", err)
				return
			}
			if n > 0 {
				s.logger.Info("[Scheduler] closed expired events", "count", n)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, oops.Code("SCHEDULER_JOB_FAILED").With("interval", interval.String()).Wrap(err)
	}

	sched.Start()
	return sched, nil
}
