package notification

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"koinonia.app/platform/internal/pkg/logger"
	"koinonia.app/platform/internal/repository"
)

// DedupGate prevents scheduled jobs from re-sending the same logical
// notification within a time window. The in-process set is the fast path; the
// persisted notification table is the slow path that survives restarts.
// Scheduled jobs are not mutex-guarded against overlapping self-invocation —
// this gate is what makes the sweeps idempotent.
type DedupGate struct {
	repo *repository.NotificationRepo

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewDedupGate creates a gate backed by the notification repository.
func NewDedupGate(repo *repository.NotificationRepo) *DedupGate {
	return &DedupGate{
		repo: repo,
		seen: make(map[string]time.Time),
	}
}

func gateKey(sourceType, dedupeKey string) string {
	return sourceType + "|" + dedupeKey
}

// WasSent reports whether a notification with this source type and dedupe key
// was recorded within the window. A positive persisted hit populates the
// in-process set so the next check skips the query. A query error fails open:
// a duplicate notification is judged less harmful than a silently lost one.
func (g *DedupGate) WasSent(ctx context.Context, sourceType, dedupeKey string, window time.Duration) bool {
	key := gateKey(sourceType, dedupeKey)
	cutoff := time.Now().Add(-window)

	g.mu.Lock()
	if at, ok := g.seen[key]; ok {
		if at.After(cutoff) {
			g.mu.Unlock()
			return true
		}
		delete(g.seen, key)
	}
	g.mu.Unlock()

	exists, err := g.repo.ExistsBySourceSince(ctx, sourceType, dedupeKey, cutoff)
	if err != nil {
		logger.Warn("dedup gate query failed, failing open",
			zap.String("source_type", sourceType),
			zap.String("dedupe_key", dedupeKey),
			zap.Error(err),
		)
		return false
	}
	if exists {
		g.Remember(sourceType, dedupeKey)
	}
	return exists
}

// Remember records a send in the in-process set. Jobs call this after
// dispatching so repeat cycles within the same process skip the slow path.
func (g *DedupGate) Remember(sourceType, dedupeKey string) {
	g.mu.Lock()
	g.seen[gateKey(sourceType, dedupeKey)] = time.Now()
	g.mu.Unlock()
}

// Reset clears the in-process set. Test hook.
func (g *DedupGate) Reset() {
	g.mu.Lock()
	g.seen = make(map[string]time.Time)
	g.mu.Unlock()
}
