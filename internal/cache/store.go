// Package cache holds the installed order and stock generations.
package cache

import (
	"sync/atomic"
	"time"

	"github.com/angelmondragon/ordersync-backend/internal/snapshot"
)

// OrdersGeneration is an immutable order snapshot. Readers must not modify it.
type OrdersGeneration struct {
	Number      uint64                          `json:"number"`
	Lines       []snapshot.OrderLine            `json:"lines"`
	Modified    map[string][]snapshot.OrderLine `json:"modified"`
	ModifiedAt  uint64                          `json:"modified_at"`
	InstalledAt time.Time                       `json:"installed_at"`

	bySerial map[string][]snapshot.OrderLine
}

// StockGeneration is an immutable stock snapshot.
type StockGeneration struct {
	Number      uint64               `json:"number"`
	Lines       []snapshot.StockLine `json:"lines"`
	InstalledAt time.Time            `json:"installed_at"`
}

// Serial returns the lines of one order in this generation.
func (g *OrdersGeneration) Serial(serial string) []snapshot.OrderLine {
	if g == nil {
		return nil
	}
	return g.bySerial[serial]
}

// Serials returns the number of distinct orders.
func (g *OrdersGeneration) Serials() int {
	if g == nil {
		return 0
	}
	return len(g.bySerial)
}

func (g *OrdersGeneration) index() {
	g.bySerial = snapshot.GroupBySerial(g.Lines)
}

// Store is the process-wide holder of the current generations. Each slot is swapped
// atomically so readers observe either the old or the new generation, never a mix.
type Store struct {
	orders atomic.Pointer[OrdersGeneration]
	stock  atomic.Pointer[StockGeneration]

	ordersFloor atomic.Uint64
	stockFloor  atomic.Uint64
	now         func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// Seed makes the next generation numbers start above the given values. Used when a
// restarted worker resumes after generations it published in a previous life.
func (s *Store) Seed(orders, stock uint64) {
	s.ordersFloor.Store(orders)
	s.stockFloor.Store(stock)
}

// Orders returns the installed order generation, or nil before the first refresh.
func (s *Store) Orders() *OrdersGeneration {
	return s.orders.Load()
}

// Stock returns the installed stock generation, or nil before the first refresh.
func (s *Store) Stock() *StockGeneration {
	return s.stock.Load()
}

// Ready reports whether an order generation has been installed.
func (s *Store) Ready() bool {
	return s.orders.Load() != nil
}

// LinesForSerial reads one order from the current generation.
func (s *Store) LinesForSerial(serial string) []snapshot.OrderLine {
	return s.orders.Load().Serial(serial)
}

// CommitOrders installs lines as the next generation. A nil modified index keeps the
// previous index; a non-nil one replaces it and stamps it with the new number.
func (s *Store) CommitOrders(lines []snapshot.OrderLine, modified map[string][]snapshot.OrderLine) *OrdersGeneration {
	for {
		prev := s.orders.Load()
		next := &OrdersGeneration{
			Number:      s.nextOrders(prev),
			Lines:       lines,
			InstalledAt: s.now().UTC(),
		}
		if modified != nil {
			next.Modified = modified
			next.ModifiedAt = next.Number
		} else if prev != nil {
			next.Modified = prev.Modified
			next.ModifiedAt = prev.ModifiedAt
		}
		if next.Modified == nil {
			next.Modified = map[string][]snapshot.OrderLine{}
		}
		next.index()
		if s.orders.CompareAndSwap(prev, next) {
			return next
		}
	}
}

// CommitStock installs lines as the next stock generation.
func (s *Store) CommitStock(lines []snapshot.StockLine) *StockGeneration {
	for {
		prev := s.stock.Load()
		num := s.stockFloor.Load() + 1
		if prev != nil && prev.Number >= num {
			num = prev.Number + 1
		}
		next := &StockGeneration{Number: num, Lines: lines, InstalledAt: s.now().UTC()}
		if s.stock.CompareAndSwap(prev, next) {
			return next
		}
	}
}

// InstallOrders adopts a generation built elsewhere (a published one) when it is newer
// than the installed one.
func (s *Store) InstallOrders(gen *OrdersGeneration) bool {
	if gen == nil {
		return false
	}
	if gen.Modified == nil {
		gen.Modified = map[string][]snapshot.OrderLine{}
	}
	gen.index()
	for {
		prev := s.orders.Load()
		if prev != nil && prev.Number >= gen.Number {
			return false
		}
		if s.orders.CompareAndSwap(prev, gen) {
			return true
		}
	}
}

// InstallStock adopts a published stock generation when newer.
func (s *Store) InstallStock(gen *StockGeneration) bool {
	if gen == nil {
		return false
	}
	for {
		prev := s.stock.Load()
		if prev != nil && prev.Number >= gen.Number {
			return false
		}
		if s.stock.CompareAndSwap(prev, gen) {
			return true
		}
	}
}

func (s *Store) nextOrders(prev *OrdersGeneration) uint64 {
	num := s.ordersFloor.Load() + 1
	if prev != nil && prev.Number >= num {
		num = prev.Number + 1
	}
	return num
}
