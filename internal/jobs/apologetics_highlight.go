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

// HighlightWindow is how far back the highlight job looks for answers.
const HighlightWindow = 7 * 24 * time.Hour

// ApologeticsHighlightArgs is a periodic job that surfaces the week's
// top-voted apologetics answer to the whole platform.
type ApologeticsHighlightArgs struct{}

// Kind returns the job kind identifier for the apologetics highlight.
func (ApologeticsHighlightArgs) Kind() string { return "apologetics_highlight" }

// InsertOpts ensures at most one highlight job is enqueued per week.
func (ApologeticsHighlightArgs) InsertOpts() river.InsertOpts {
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

// ApologeticsHighlightWorker broadcasts the top recent answer to every user
// except its author.
type ApologeticsHighlightWorker struct {
	river.WorkerDefaults[ApologeticsHighlightArgs]
	activity   *repository.ActivityRepo
	users      *repository.UserRepo
	dispatcher *notification.Dispatcher
	gate       *notification.DedupGate
}

// NewApologeticsHighlightWorker creates the worker.
func NewApologeticsHighlightWorker(
	activity *repository.ActivityRepo,
	users *repository.UserRepo,
	dispatcher *notification.Dispatcher,
	gate *notification.DedupGate,
) *ApologeticsHighlightWorker {
	return &ApologeticsHighlightWorker{
		activity:   activity,
		users:      users,
		dispatcher: dispatcher,
		gate:       gate,
	}
}

// Work picks the top answer of the window and fans it out. An empty window
// sends nothing; the same answer is never highlighted twice within the window.
func (w *ApologeticsHighlightWorker) Work(ctx context.Context, _ *river.Job[ApologeticsHighlightArgs]) error {
	if w == nil || w.activity == nil || w.dispatcher == nil {
		return fmt.Errorf("apologetics highlight worker is not initialized")
	}

	cutoff := time.Now().UTC().Add(-HighlightWindow)
	top, err := w.activity.TopAnswerSince(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("resolve top apologetics answer: %w", err)
	}
	if top == nil {
		logger.Info("apologetics highlight skipped: no recent answers")
		return nil
	}

	key := fmt.Sprintf("answer:%d", top.ID)
	if w.gate.WasSent(ctx, "apologetics_highlight", key, HighlightWindow) {
		logger.Info("apologetics highlight already sent", zap.Uint64("answer_id", top.ID))
		return nil
	}

	ids, err := w.users.AllIDs(ctx)
	if err != nil {
		return fmt.Errorf("resolve highlight recipients: %w", err)
	}

	note := notification.Note{
		Title:      "This week's top answer",
		Body:       top.Question,
		Data:       map[string]string{"question": top.Question},
		Category:   notification.CategoryForum,
		SourceType: "apologetics_highlight",
		SourceID:   top.ID,
		DedupeKey:  key,
	}
	recipients := withoutAuthor(ids, top.AuthorID)
	if err := w.dispatcher.NotifyMany(ctx, recipients, note); err != nil {
		logger.Warn("apologetics highlight fan-out incomplete", zap.Error(err))
	}

	w.gate.Remember("apologetics_highlight", key)
	logger.Info("apologetics highlight completed",
		zap.Uint64("answer_id", top.ID),
		zap.Int("recipients", len(recipients)),
	)
	return nil
}

func withoutAuthor(ids []uint64, authorID uint64) []uint64 {
	out := ids[:0:0]
	for _, id := range ids {
		if id != authorID {
			out = append(out, id)
		}
	}
	return out
}
