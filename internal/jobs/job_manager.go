package jobs

import (
	"fmt"
)

// JobManager starts and stops every scheduled job together.
type JobManager struct {
	notificationRetryJob *NotificationRetryJob
}

func NewJobManager(notifications Redeliverer, retrySpec string) *JobManager {
	return &JobManager{
		notificationRetryJob: NewNotificationRetryJob(notifications, retrySpec),
	}
}

func (jm *JobManager) StartAll() error {
	if err := jm.notificationRetryJob.Start(); err != nil {
		return fmt.Errorf("failed to start notification retry job: %w", err)
	}
	return nil
}

func (jm *JobManager) StopAll() {
	jm.notificationRetryJob.Stop()
}
