package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/consumedhq/consumed/core/logger"
	"github.com/consumedhq/consumed/core/output"
	"github.com/consumedhq/consumed/jobs"
	"github.com/consumedhq/consumed/model"
)

// recordCronRun persists one job execution, best effort.
func (b *Backend) recordCronRun(r *http.Request, jobKey, result string, started time.Time) {
	ctx := r.Context()
	entry := &model.CronLog{}
	err := model.Map(entry, map[string]interface{}{
		"job_key":    jobKey,
		"output":     result,
		"started_at": started,
		"ended_at":   time.Now().UTC(),
	}, []string{"job_key", "output", "started_at", "ended_at"})
	if err == nil {
		err = b.store.Insert(ctx, entry)
	}
	if err != nil {
		logger.FromContext(ctx).Warnln("cron log write failed:", err)
	}
}

// cronScheduler is called hourly by an external scheduler. It runs every
// job that is due, records the execution and reports what happened.
func (b *Backend) cronScheduler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := time.Now()
	started := now.UTC()

	notified, err := jobs.RunWeeklySummary(ctx, b.store, b.notifier, now)
	if err != nil {
		logger.FromContext(ctx).Errorln("weekly summary run failed:", err)
		b.recordCronRun(r, jobs.WeeklySummaryJob.Key, fmt.Sprintf("failed: %v", err), started)
		b.serverError(w, r, err)
		return
	}
	b.recordCronRun(r, jobs.WeeklySummaryJob.Key, fmt.Sprintf("notified %d users", notified), started)
	output.OK(w, map[string]interface{}{
		"executed": []map[string]interface{}{
			{
				"key":      jobs.WeeklySummaryJob.Key,
				"title":    jobs.WeeklySummaryJob.Title,
				"notified": notified,
			},
		},
	})
}
