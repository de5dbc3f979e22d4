package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"koinonia.app/platform/internal/mail"
	"koinonia.app/platform/internal/notification"
	"koinonia.app/platform/internal/pkg/logger"
	"koinonia.app/platform/internal/repository"
)

// DigestWindow is the activity window the weekly digest aggregates.
const DigestWindow = 7 * 24 * time.Hour

// WeeklyDigestArgs is a periodic job that sends every user a summary of the
// week's busiest communities, in-app and by email.
type WeeklyDigestArgs struct{}

// Kind returns the job kind identifier for the weekly digest.
func (WeeklyDigestArgs) Kind() string { return "weekly_digest" }

// InsertOpts ensures at most one digest job is enqueued per week.
func (WeeklyDigestArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: 1,
		UniqueOpts: river.UniqueOpts{
			ByPeriod: 7 * 24 * time.Hour,
			ByQueue:  true,
			ByArgs:   true,
		},
	}
}

// WeeklyDigestWorker aggregates the week's community activity and delivers it
// through the dispatcher and, when a mailer is wired, by email.
type WeeklyDigestWorker struct {
	river.WorkerDefaults[WeeklyDigestArgs]
	activity    *repository.ActivityRepo
	communities *repository.CommunityRepo
	users       *repository.UserRepo
	dispatcher  *notification.Dispatcher
	mailer      mail.Mailer // optional: nil disables the email channel
	gate        *notification.DedupGate
}

// NewWeeklyDigestWorker creates the worker.
func NewWeeklyDigestWorker(
	activity *repository.ActivityRepo,
	communities *repository.CommunityRepo,
	users *repository.UserRepo,
	dispatcher *notification.Dispatcher,
	mailer mail.Mailer,
	gate *notification.DedupGate,
) *WeeklyDigestWorker {
	return &WeeklyDigestWorker{
		activity:    activity,
		communities: communities,
		users:       users,
		dispatcher:  dispatcher,
		mailer:      mailer,
		gate:        gate,
	}
}

// digestKey identifies one calendar week, so re-runs within the same week are
// gated no matter when the timer fires.
func digestKey(now time.Time) string {
	year, week := now.UTC().ISOWeek()
	return fmt.Sprintf("week:%d-%02d", year, week)
}

// Work builds and delivers the digest. An empty week sends nothing.
func (w *WeeklyDigestWorker) Work(ctx context.Context, _ *river.Job[WeeklyDigestArgs]) error {
	if w == nil || w.activity == nil || w.dispatcher == nil {
		return fmt.Errorf("weekly digest worker is not initialized")
	}

	key := digestKey(time.Now())
	if w.gate.WasSent(ctx, "weekly_digest", key, DigestWindow) {
		logger.Info("weekly digest already sent", zap.String("key", key))
		return nil
	}

	cutoff := time.Now().UTC().Add(-DigestWindow)
	active, err := w.activity.ActiveCommunitiesSince(ctx, cutoff, 1)
	if err != nil {
		return fmt.Errorf("aggregate weekly activity: %w", err)
	}
	if len(active) == 0 {
		logger.Info("weekly digest skipped: no activity", zap.String("key", key))
		return nil
	}

	body := w.renderBody(ctx, active)
	note := notification.Note{
		Title:      "Your weekly community digest",
		Body:       body,
		Category:   notification.CategoryFeed,
		SourceType: "weekly_digest",
		DedupeKey:  key,
	}

	ids, err := w.users.AllIDs(ctx)
	if err != nil {
		return fmt.Errorf("resolve digest recipients: %w", err)
	}
	if err := w.dispatcher.NotifyMany(ctx, ids, note); err != nil {
		logger.Warn("weekly digest fan-out incomplete", zap.Error(err))
	}

	if w.mailer != nil {
		w.emailRecipients(ctx, ids, body)
	}

	w.gate.Remember("weekly_digest", key)
	logger.Info("weekly digest completed",
		zap.String("key", key),
		zap.Int("recipients", len(ids)),
		zap.Int("active_communities", len(active)),
	)
	return nil
}

// renderBody produces the digest text, capped at the five busiest communities.
func (w *WeeklyDigestWorker) renderBody(ctx context.Context, active []repository.CommunityActivity) string {
	if len(active) > 5 {
		active = active[:5]
	}
	var b strings.Builder
	b.WriteString("This week in your communities:\n")
	for _, a := range active {
		name := fmt.Sprintf("community %d", a.CommunityID)
		if c, err := w.communities.GetByID(ctx, a.CommunityID); err == nil {
			name = c.Name
		}
		fmt.Fprintf(&b, "- %s: %d new posts\n", name, a.PostCount)
	}
	return b.String()
}

// emailRecipients mails the digest, best-effort per user.
func (w *WeeklyDigestWorker) emailRecipients(ctx context.Context, ids []uint64, body string) {
	html := "<pre>" + body + "</pre>"
	for _, id := range ids {
		u, err := w.users.GetByID(ctx, id)
		if err != nil {
			continue
		}
		if err := w.mailer.Send(u.Email, "Your weekly community digest", html); err != nil {
			logger.Warn("digest email failed",
				zap.Uint64("user_id", id),
				zap.Error(err),
			)
		}
	}
}
