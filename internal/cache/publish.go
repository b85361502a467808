package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/angelmondragon/ordersync-backend/pkg/logger"
	"github.com/angelmondragon/ordersync-backend/pkg/redis"
)

type kvReader interface {
	Get(ctx context.Context, key string) (string, error)
}

type kvStore interface {
	kvReader
	SetIfNewer(ctx context.Context, markerKey, payloadKey string, version uint64, payload []byte, ttl time.Duration) (bool, error)
}

// ErrStaleGeneration is returned when a newer generation than the one being published
// is already in Redis.
var ErrStaleGeneration = errors.New("a newer generation is already published")

const (
	slotOrders = "orders"
	slotStock  = "stock"
)

type keys struct {
	prefix string
}

func (k keys) payload(slot string) string    { return k.prefix + ":" + slot }
func (k keys) generation(slot string) string { return k.prefix + ":" + slot + ":generation" }

// Publisher copies committed generations to Redis so API replicas can follow them.
type Publisher struct {
	kv   kvStore
	keys keys
	ttl  time.Duration
}

// NewPublisher builds a publisher writing under prefix.
func NewPublisher(kv kvStore, prefix string, ttl time.Duration) (*Publisher, error) {
	if kv == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if prefix == "" {
		return nil, fmt.Errorf("key prefix required")
	}
	return &Publisher{kv: kv, keys: keys{prefix: prefix}, ttl: ttl}, nil
}

// PublishOrders writes the payload and the generation marker together. Generations at
// or below the published one are refused with ErrStaleGeneration.
func (p *Publisher) PublishOrders(ctx context.Context, gen *OrdersGeneration) error {
	if gen == nil {
		return nil
	}
	return p.publish(ctx, slotOrders, gen.Number, gen)
}

// PublishStock writes a stock generation.
func (p *Publisher) PublishStock(ctx context.Context, gen *StockGeneration) error {
	if gen == nil {
		return nil
	}
	return p.publish(ctx, slotStock, gen.Number, gen)
}

func (p *Publisher) publish(ctx context.Context, slot string, number uint64, gen any) error {
	body, err := json.Marshal(gen)
	if err != nil {
		return fmt.Errorf("encode %s generation: %w", slot, err)
	}
	ok, err := p.kv.SetIfNewer(ctx, p.keys.generation(slot), p.keys.payload(slot), number, body, p.ttl)
	if err != nil {
		return fmt.Errorf("publish %s generation %d: %w", slot, number, err)
	}
	if !ok {
		return fmt.Errorf("publish %s generation %d: %w", slot, number, ErrStaleGeneration)
	}
	return nil
}

// LastPublished returns the newest published generation numbers, zero when absent.
func (p *Publisher) LastPublished(ctx context.Context) (orders, stock uint64, err error) {
	orders, err = readGeneration(ctx, p.kv, p.keys.generation(slotOrders))
	if err != nil {
		return 0, 0, err
	}
	stock, err = readGeneration(ctx, p.kv, p.keys.generation(slotStock))
	if err != nil {
		return 0, 0, err
	}
	return orders, stock, nil
}

func readGeneration(ctx context.Context, kv kvReader, key string) (uint64, error) {
	raw, err := kv.Get(ctx, key)
	if err != nil {
		if redis.IsNil(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read %s: %w", key, err)
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

// FollowerParams configures a Follower.
type FollowerParams struct {
	Logger   *logger.Logger
	Store    *Store
	Redis    kvReader
	Prefix   string
	Interval time.Duration
}

// Follower installs generations published by the sync worker into a local Store.
type Follower struct {
	logg     *logger.Logger
	store    *Store
	kv       kvReader
	keys     keys
	interval time.Duration
}

// NewFollower validates params and returns a follower.
func NewFollower(params FollowerParams) (*Follower, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	if params.Redis == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if params.Prefix == "" {
		return nil, fmt.Errorf("key prefix required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Follower{
		logg:     params.Logger,
		store:    params.Store,
		kv:       params.Redis,
		keys:     keys{prefix: params.Prefix},
		interval: interval,
	}, nil
}

// Run polls until ctx is cancelled.
func (f *Follower) Run(ctx context.Context) error {
	ctx = f.logg.WithField(ctx, "component", "cache-follower")
	f.logg.Info(ctx, "cache follower started")

	f.pollAndLog(ctx)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.logg.Info(ctx, "cache follower stopped")
			return nil
		case <-ticker.C:
			f.pollAndLog(ctx)
		}
	}
}

func (f *Follower) pollAndLog(ctx context.Context) {
	if _, err := f.Poll(ctx); err != nil {
		f.logg.Error(ctx, "cache follow poll failed", err)
	}
}

// Poll checks both slots once and reports whether anything was installed.
func (f *Follower) Poll(ctx context.Context) (bool, error) {
	installed := false

	num, err := readGeneration(ctx, f.kv, f.keys.generation(slotOrders))
	if err != nil {
		return false, err
	}
	if cur := f.store.Orders(); num > 0 && (cur == nil || num > cur.Number) {
		var gen OrdersGeneration
		if err := f.load(ctx, slotOrders, &gen); err != nil {
			return false, err
		}
		if f.store.InstallOrders(&gen) {
			installed = true
			f.logg.Info(f.logg.WithFields(ctx, map[string]any{
				"generation": gen.Number,
				"lines":      len(gen.Lines),
			}), "orders generation installed")
		}
	}

	num, err = readGeneration(ctx, f.kv, f.keys.generation(slotStock))
	if err != nil {
		return installed, err
	}
	if cur := f.store.Stock(); num > 0 && (cur == nil || num > cur.Number) {
		var gen StockGeneration
		if err := f.load(ctx, slotStock, &gen); err != nil {
			return installed, err
		}
		if f.store.InstallStock(&gen) {
			installed = true
			f.logg.Info(f.logg.WithField(ctx, "generation", gen.Number), "stock generation installed")
		}
	}
	return installed, nil
}

func (f *Follower) load(ctx context.Context, slot string, dst any) error {
	raw, err := f.kv.Get(ctx, f.keys.payload(slot))
	if err != nil {
		return fmt.Errorf("read %s payload: %w", slot, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", slot, err)
	}
	return nil
}
