// Package jobs defines the River periodic jobs: engagement nudges, the weekly
// digest, inactivity nudges, the apologetics highlight, and the notification
// retention sweep.
//
// Periodic jobs are timer-driven and tolerate overlapping invocations: every
// send is guarded by the dedup gate, so a re-run within the window is a no-op.
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
	// DefaultActivityWindow is how far back the engagement nudge looks for
	// community activity.
	DefaultActivityWindow = 7 * 24 * time.Hour

	// DefaultMinPosts is the activity threshold below which a community is
	// not worth nudging about.
	DefaultMinPosts = 5
)

// EngagementNudgeArgs is a periodic job that tells community members about
// recent activity in their communities.
type EngagementNudgeArgs struct{}

// Kind returns the job kind identifier for the engagement nudge.
func (EngagementNudgeArgs) Kind() string { return "engagement_nudge" }

// InsertOpts ensures at most one nudge job is enqueued per day.
func (EngagementNudgeArgs) InsertOpts() river.InsertOpts {
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

// EngagementNudgeWorker fans a per-community activity summary out to the
// community's approved members.
type EngagementNudgeWorker struct {
	river.WorkerDefaults[EngagementNudgeArgs]
	activity   *repository.ActivityRepo
	dispatcher *notification.Dispatcher
	gate       *notification.DedupGate
	window     time.Duration
	minPosts   int64
}

// NewEngagementNudgeWorker creates the worker. Non-positive window and
// minPosts fall back to the package defaults.
func NewEngagementNudgeWorker(
	activity *repository.ActivityRepo,
	dispatcher *notification.Dispatcher,
	gate *notification.DedupGate,
	window time.Duration,
	minPosts int64,
) *EngagementNudgeWorker {
	if window <= 0 {
		window = DefaultActivityWindow
	}
	if minPosts <= 0 {
		minPosts = DefaultMinPosts
	}
	return &EngagementNudgeWorker{
		activity:   activity,
		dispatcher: dispatcher,
		gate:       gate,
		window:     window,
		minPosts:   minPosts,
	}
}

// Work nudges members of every community that crossed the activity threshold
// in the window. One community per gate key per window; a failed fan-out for
// one community does not abort the rest.
func (w *EngagementNudgeWorker) Work(ctx context.Context, _ *river.Job[EngagementNudgeArgs]) error {
	if w == nil || w.activity == nil || w.dispatcher == nil {
		return fmt.Errorf("engagement nudge worker is not initialized")
	}

	cutoff := time.Now().UTC().Add(-w.window)
	active, err := w.activity.ActiveCommunitiesSince(ctx, cutoff, w.minPosts)
	if err != nil {
		return fmt.Errorf("resolve active communities since %s: %w", cutoff.Format(time.RFC3339), err)
	}

	var nudged, skipped int
	for _, a := range active {
		key := fmt.Sprintf("community:%d:%s", a.CommunityID, time.Now().UTC().Format("2006-01-02"))
		if w.gate.WasSent(ctx, "engagement_nudge", key, w.window) {
			skipped++
			continue
		}

		note := notification.Note{
			Title:      "Your community has been active",
			Body:       fmt.Sprintf("%d new posts this week — come see what you missed", a.PostCount),
			Category:   notification.CategoryCommunity,
			SourceType: "engagement_nudge",
			SourceID:   a.CommunityID,
			DedupeKey:  key,
		}
		if err := w.dispatcher.NotifyCommunityMembers(ctx, a.CommunityID, note); err != nil {
			logger.Warn("engagement nudge fan-out failed",
				zap.Uint64("community_id", a.CommunityID),
				zap.Error(err),
			)
			continue
		}
		w.gate.Remember("engagement_nudge", key)
		nudged++
	}

	logger.Info("engagement nudge completed",
		zap.Int("active_communities", len(active)),
		zap.Int("nudged", nudged),
		zap.Int("skipped", skipped),
	)
	return nil
}
