package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/quizforge/quizforge-api/model"
)

// cronLogRetention is how long cron job log rows are kept
const cronLogRetention = 30 * 24 * time.Hour

// CleanupExpiredDrafts removes drafts whose TTL has passed, along with
// their stored PDFs.
func (m *CronManager) CleanupExpiredDrafts() {
	jobName := "cleanup_expired_drafts"

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	removed, err := m.drafts.CleanupExpired(ctx)
	if err != nil {
		m.logJobError(jobName, err)
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("removed %d expired drafts", removed))
}

// PruneCronLogs deletes cron job log rows older than the retention window
func (m *CronManager) PruneCronLogs() {
	jobName := "prune_cron_logs"

	cutoff := time.Now().Add(-cronLogRetention)
	res := m.db.Unscoped().
		Where("created_at < ?", cutoff).
		Delete(&model.CronJobLog{})
	if res.Error != nil {
		m.logJobError(jobName, res.Error)
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("pruned %d log rows", res.RowsAffected))
}
