package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"koinonia.app/platform/internal/cache"
	"koinonia.app/platform/internal/model"
	"koinonia.app/platform/internal/pkg/logger"
	"koinonia.app/platform/internal/repository"
)

// DefaultPreferenceTTL bounds how stale a cached preference read may be.
// Multi-instance deployments accept up to this staleness after a change
// unless the redis cache implementation is wired in.
const DefaultPreferenceTTL = 5 * time.Minute

// Preferences are the per-category notification flags of one user.
type Preferences struct {
	DM        bool `json:"dm"`
	Community bool `json:"community"`
	Forum     bool `json:"forum"`
	Feed      bool `json:"feed"`
}

// PreferenceService answers "does this user want pushes for this category",
// reading through an injected TTL cache.
type PreferenceService struct {
	users *repository.UserRepo
	cache cache.Cache
	ttl   time.Duration
}

// NewPreferenceService creates a preference service. Non-positive ttl falls
// back to the 5-minute default.
func NewPreferenceService(users *repository.UserRepo, c cache.Cache, ttl time.Duration) *PreferenceService {
	if ttl <= 0 {
		ttl = DefaultPreferenceTTL
	}
	return &PreferenceService{users: users, cache: c, ttl: ttl}
}

func prefCacheKey(userID uint64) string {
	return fmt.Sprintf("notifprefs:%d", userID)
}

// ShouldSend reports whether the user accepts push notifications of the given
// category. The event category rides the community flag. Any read error
// defaults to true: over-notifying beats silently dropping.
func (p *PreferenceService) ShouldSend(ctx context.Context, userID uint64, category string) bool {
	prefs, err := p.load(ctx, userID)
	if err != nil {
		logger.Warn("preference read failed, defaulting to send",
			zap.Uint64("user_id", userID),
			zap.String("category", category),
			zap.Error(err),
		)
		return true
	}

	switch category {
	case model.CategoryDM:
		return prefs.DM
	case model.CategoryCommunity, model.CategoryEvent:
		return prefs.Community
	case model.CategoryForum:
		return prefs.Forum
	case model.CategoryFeed:
		return prefs.Feed
	default:
		return true
	}
}

// Invalidate drops the cached entry. Call after a preference update so the
// next read sees fresh flags.
func (p *PreferenceService) Invalidate(ctx context.Context, userID uint64) {
	if err := p.cache.Delete(ctx, prefCacheKey(userID)); err != nil {
		logger.Warn("preference cache invalidation failed",
			zap.Uint64("user_id", userID),
			zap.Error(err),
		)
	}
}

func (p *PreferenceService) load(ctx context.Context, userID uint64) (Preferences, error) {
	key := prefCacheKey(userID)

	if raw, ok, err := p.cache.Get(ctx, key); err == nil && ok {
		var prefs Preferences
		if jerr := json.Unmarshal([]byte(raw), &prefs); jerr == nil {
			return prefs, nil
		}
		// Corrupt entry: fall through to a fresh load.
	} else if err != nil {
		logger.Debug("preference cache read failed", zap.Error(err))
	}

	u, err := p.users.GetByID(ctx, userID)
	if err != nil {
		return Preferences{}, fmt.Errorf("load user %d: %w", userID, err)
	}

	prefs := Preferences{
		DM:        u.NotifyDM,
		Community: u.NotifyCommunity,
		Forum:     u.NotifyForum,
		Feed:      u.NotifyFeed,
	}
	if raw, err := json.Marshal(prefs); err == nil {
		if cerr := p.cache.Set(ctx, key, string(raw), p.ttl); cerr != nil {
			logger.Debug("preference cache write failed", zap.Error(cerr))
		}
	}
	return prefs, nil
}
