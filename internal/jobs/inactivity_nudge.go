package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"koinonia.app/platform/internal/notification"
	"koinonia.app/platform/internal/pkg/logger"
	"koinonia.app/platform/internal/repository"
)

const (
	// DefaultInactivityThreshold is how long a user must be quiet before the
	// nudge fires.
	DefaultInactivityThreshold = 14 * 24 * time.Hour

	// inactivityNudgeInterval is the minimum gap between two nudges to the
	// same user.
	inactivityNudgeInterval = 7 * 24 * time.Hour
)

// InactivityNudgeArgs is a periodic job that reaches out to users who have
// gone quiet.
type InactivityNudgeArgs struct{}

// Kind returns the job kind identifier for the inactivity nudge.
func (InactivityNudgeArgs) Kind() string { return "inactivity_nudge" }

// InsertOpts ensures at most one nudge job is enqueued per day.
func (InactivityNudgeArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: 1,
		UniqueOpts: river.UniqueOpts{
			ByPeriod: 24 * time.Hour,
			ByQueue:  true,
			ByArgs:   true,
		},
	}
}

// InactivityNudgeWorker notifies users whose last activity is older than the
// threshold, at most once per nudge interval.
type InactivityNudgeWorker struct {
	river.WorkerDefaults[InactivityNudgeArgs]
	users      *repository.UserRepo
	dispatcher *notification.Dispatcher
	gate       *notification.DedupGate
	threshold  time.Duration
}

// NewInactivityNudgeWorker creates the worker. Non-positive threshold falls
// back to the 14-day default.
func NewInactivityNudgeWorker(
	users *repository.UserRepo,
	dispatcher *notification.Dispatcher,
	gate *notification.DedupGate,
	threshold time.Duration,
) *InactivityNudgeWorker {
	if threshold <= 0 {
		threshold = DefaultInactivityThreshold
	}
	return &InactivityNudgeWorker{
		users:      users,
		dispatcher: dispatcher,
		gate:       gate,
		threshold:  threshold,
	}
}

// Work nudges every user inactive beyond the threshold. Per-user failures are
// logged and skipped.
func (w *InactivityNudgeWorker) Work(ctx context.Context, _ *river.Job[InactivityNudgeArgs]) error {
	if w == nil || w.users == nil || w.dispatcher == nil {
		return fmt.Errorf("inactivity nudge worker is not initialized")
	}

	cutoff := time.Now().UTC().Add(-w.threshold)
	ids, err := w.users.InactiveSince(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("resolve inactive users since %s: %w", cutoff.Format(time.RFC3339), err)
	}

	var nudged, skipped int
	for _, id := range ids {
		key := fmt.Sprintf("user:%d", id)
		if w.gate.WasSent(ctx, "inactivity_nudge", key, inactivityNudgeInterval) {
			skipped++
			continue
		}

		note := notification.Note{
			Title:      "We miss you",
			Body:       "Your communities have been active while you were away",
			Category:   notification.CategoryFeed,
			SourceType: "inactivity_nudge",
			SourceID:   id,
			DedupeKey:  key,
		}
		if err := w.dispatcher.NotifyUser(ctx, id, note); err != nil {
			logger.Warn("inactivity nudge failed",
				zap.Uint64("user_id", id),
				zap.Error(err),
			)
			continue
		}
		w.gate.Remember("inactivity_nudge", key)
		nudged++
	}

	logger.Info("inactivity nudge completed",
		zap.Int("inactive_users", len(ids)),
		zap.Int("nudged", nudged),
		zap.Int("skipped", skipped),
	)
	return nil
}
