package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/ordersync-backend/pkg/redis"
)

type flagStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	GetDel(ctx context.Context, key string) (string, error)
}

const reloadRequestTTL = 24 * time.Hour

// ReloadRequests is a cross-process "please run a full reload" flag. The API raises it
// after an article import; the incremental job consumes it on its next tick.
type ReloadRequests struct {
	kv  flagStore
	key string
	now func() time.Time
}

// NewReloadRequests stores the flag under key.
func NewReloadRequests(kv flagStore, key string) (*ReloadRequests, error) {
	if kv == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if key == "" {
		return nil, fmt.Errorf("request key required")
	}
	return &ReloadRequests{kv: kv, key: key, now: time.Now}, nil
}

// Request raises the flag. Raising it twice before it is consumed runs one reload.
func (r *ReloadRequests) Request(ctx context.Context) error {
	if err := r.kv.Set(ctx, r.key, r.now().UTC().Format(time.RFC3339), reloadRequestTTL); err != nil {
		return fmt.Errorf("request full reload: %w", err)
	}
	return nil
}

// Consume clears the flag and reports whether it was raised.
func (r *ReloadRequests) Consume(ctx context.Context) (bool, error) {
	_, err := r.kv.GetDel(ctx, r.key)
	if err != nil {
		if redis.IsNil(err) {
			return false, nil
		}
		return false, fmt.Errorf("consume full reload request: %w", err)
	}
	return true, nil
}
