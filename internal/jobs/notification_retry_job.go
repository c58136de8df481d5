package jobs

import (
	"context"
	"errors"
	"time"

	"campusmarket-be/internal/logger"

	"github.com/robfig/cron/v3"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const retryRunTimeout = 20 * time.Second

// Redeliverer owns a queue of notifications that failed to publish.
type Redeliverer interface {
	Redeliver(ctx context.Context) (int, error)
	Pending() int
}

// NotificationRetryJob drains the failed-notification queue on a schedule.
type NotificationRetryJob struct {
	target Redeliverer
	spec   string
	cron   *cron.Cron
	log    *zap.Logger
}

func NewNotificationRetryJob(target Redeliverer, spec string) *NotificationRetryJob {
	return &NotificationRetryJob{
		target: target,
		spec:   spec,
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		log:    logger.L().With(zap.String("component", "notification_retry_job")),
	}
}

func (j *NotificationRetryJob) Start() error {
	if _, err := j.cron.AddFunc(j.spec, j.run); err != nil {
		return err
	}

	j.cron.Start()
	j.log.Info("notification retry job started", zap.String("schedule", j.spec))
	return nil
}

// Stop waits for a running pass to finish.
func (j *NotificationRetryJob) Stop() {
	<-j.cron.Stop().Done()
	j.log.Info("notification retry job stopped")
}

func (j *NotificationRetryJob) run() {
	if j.target.Pending() == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), retryRunTimeout)
	defer cancel()

	sent, err := j.target.Redeliver(ctx)
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		// broker still cooling down
		j.log.Debug("redelivery deferred", zap.Int("sent", sent), zap.Error(err))
	case err != nil:
		j.log.Error("redelivery failed", zap.Int("sent", sent), zap.Error(err))
	default:
		j.log.Info("notifications redelivered",
			zap.Int("sent", sent),
			zap.Int("still_pending", j.target.Pending()),
		)
	}
}
