// Package jobs holds the background work triggered by the external cron
// scheduler. Jobs are not self-scheduling; an external scheduler calls the
// cron endpoint hourly and each job decides whether its moment has come.
package jobs

import (
	"context"
	"time"

	"github.com/consumedhq/consumed/core/logger"
	"github.com/consumedhq/consumed/model"
)

// Job describes one scheduled task.
type Job struct {
	Key         string
	Title       string
	Description string
}

// WeeklySummaryJob sends every user their weekly consumption summary.
var WeeklySummaryJob = Job{
	Key:         "weekly-summary",
	Title:       "Weekly summary",
	Description: "Sends each user a summary of the past week, Mondays at 06:00 local time.",
}

// Notifier receives computed weekly summaries. Delivery is a collaborator
// concern; the default implementation only logs.
type Notifier interface {
	NotifyWeeklySummary(ctx context.Context, user *model.User, summary *model.Summary) error
}

// LogNotifier logs summaries instead of delivering them.
type LogNotifier struct{}

// NotifyWeeklySummary implements Notifier.
func (LogNotifier) NotifyWeeklySummary(ctx context.Context, user *model.User, summary *model.Summary) error {
	logger.FromContext(ctx).WithField("user", user.ID).
		Infof("weekly summary: %.2f over %d categories", summary.Total, len(summary.Categories))
	return nil
}

// summaryDue reports whether the job should fire for a user at the given
// instant: Monday 06:00 in the user's own timezone. The scheduler runs
// hourly, so the hour comparison is exact.
func summaryDue(now time.Time, loc *time.Location) bool {
	local := now.In(loc)
	return local.Weekday() == time.Monday && local.Hour() == 6
}

// RunWeeklySummary walks all active users and notifies those whose local
// time matches the schedule. It returns the number of notified users; a
// failure for one user does not stop the others.
func RunWeeklySummary(ctx context.Context, store *model.Store, notifier Notifier, now time.Time) (int, error) {
	rlog := logger.FromContext(ctx)
	notified := 0
	for skip := 0; ; skip += model.MaxTake {
		users, err := store.FindBy(ctx, model.UserMeta, map[string]interface{}{"is_active": true},
			model.FindOptions{Take: model.MaxTake, Skip: skip})
		if err != nil {
			return notified, err
		}
		if len(users) == 0 {
			return notified, nil
		}
		for _, e := range users {
			user := e.(*model.User)
			loc := user.Location()
			if !summaryDue(now, loc) {
				continue
			}
			summary, err := store.WeeklySummary(ctx, user.ID, loc)
			if err != nil {
				rlog.Errorln("weekly summary failed for user", user.ID, err)
				continue
			}
			if err := notifier.NotifyWeeklySummary(ctx, user, summary); err != nil {
				rlog.Errorln("weekly summary notify failed for user", user.ID, err)
				continue
			}
			notified++
		}
	}
}
