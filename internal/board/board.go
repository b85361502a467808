// Package board builds the pickup display shown on the warehouse screens.
package board

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/ordersync-backend/internal/cache"
	"github.com/angelmondragon/ordersync-backend/internal/orders"
	"github.com/angelmondragon/ordersync-backend/pkg/db/models"
	"github.com/angelmondragon/ordersync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordersync-backend/pkg/errors"
)

const (
	readyWindow   = 90 * time.Minute
	historyWindow = 4 * time.Hour
)

type generations interface {
	Orders() *cache.OrdersGeneration
}

type statusReader interface {
	DepartmentStatuses(ctx context.Context, serials []string) ([]models.OrderStatusByDepartment, error)
}

// Entry is one order on a department column.
type Entry struct {
	Serial       string     `json:"serial"`
	OrderNumber  string     `json:"order_number"`
	CustomerName string     `json:"customer_name"`
	ReadyAt      *time.Time `json:"ready_at,omitempty"`
	History      bool       `json:"history"`
}

// Column is the board section of one department.
type Column struct {
	Department enums.Department `json:"department"`
	Label      string           `json:"label"`
	InProgress []Entry          `json:"in_progress"`
	Ready      []Entry          `json:"ready"`
}

// Board is the whole display.
type Board struct {
	Columns     []Column  `json:"columns"`
	Hash        string    `json:"hash"`
	Changed     bool      `json:"changed"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Service assembles the board from the cache and department statuses.
type Service struct {
	cache    generations
	statuses statusReader
	now      func() time.Time
}

func NewService(cache generations, statuses statusReader, now func() time.Time) (*Service, error) {
	if cache == nil {
		return nil, fmt.Errorf("cache required")
	}
	if statuses == nil {
		return nil, fmt.Errorf("status reader required")
	}
	if now == nil {
		now = time.Now
	}
	return &Service{cache: cache, statuses: statuses, now: now}, nil
}

// Build returns the current board. Changed is set when previousHash is non-empty and
// differs from the current content hash.
func (s *Service) Build(ctx context.Context, previousHash string) (Board, error) {
	gen := s.cache.Orders()
	if gen == nil {
		return Board{}, pkgerrors.New(pkgerrors.CodeCacheNotReady, "order cache not loaded yet")
	}

	columns := map[enums.Department]*Column{}
	out := Board{GeneratedAt: s.now().UTC()}
	for _, dept := range enums.DisplayDepartments() {
		out.Columns = append(out.Columns, Column{
			Department: dept,
			Label:      dept.Label(),
			InProgress: []Entry{},
			Ready:      []Entry{},
		})
	}
	for i := range out.Columns {
		columns[out.Columns[i].Department] = &out.Columns[i]
	}

	type key struct {
		serial string
		dept   enums.Department
	}
	candidates := map[key]Entry{}
	serials := []string{}
	seenSerial := map[string]bool{}
	for _, line := range gen.Lines {
		if !orders.IsPickup(line.Pickup) {
			continue
		}
		if _, ok := columns[line.Department]; !ok {
			continue
		}
		k := key{serial: line.Serial, dept: line.Department}
		if _, ok := candidates[k]; ok {
			continue
		}
		candidates[k] = Entry{Serial: line.Serial, OrderNumber: line.OrderNumber, CustomerName: orders.DisplayCustomer(line)}
		if !seenSerial[line.Serial] {
			seenSerial[line.Serial] = true
			serials = append(serials, line.Serial)
		}
	}

	rows, err := s.statuses.DepartmentStatuses(ctx, serials)
	if err != nil {
		return Board{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load department statuses")
	}

	now := s.now()
	for _, row := range rows {
		entry, ok := candidates[key{serial: row.Serial, dept: row.Department}]
		if !ok {
			continue
		}
		col := columns[row.Department]
		switch row.Status {
		case enums.OrderStatusInProgress:
			col.InProgress = append(col.InProgress, entry)
		case enums.OrderStatusReady:
			age := now.Sub(row.UpdatedAt)
			if age > historyWindow {
				continue
			}
			readyAt := row.UpdatedAt
			entry.ReadyAt = &readyAt
			entry.History = age > readyWindow
			col.Ready = append(col.Ready, entry)
		}
	}

	for i := range out.Columns {
		sortEntries(out.Columns[i].InProgress)
		sortEntries(out.Columns[i].Ready)
	}
	out.Hash = Hash(out.Columns)
	out.Changed = previousHash != "" && previousHash != out.Hash
	return out, nil
}

// Hash fingerprints which orders sit in which column, ignoring timestamps.
func Hash(columns []Column) string {
	var b strings.Builder
	for _, col := range columns {
		b.WriteString(string(col.Department))
		b.WriteString(":")
		for _, e := range col.InProgress {
			fmt.Fprintf(&b, "%s_%s_in_preparazione|", e.OrderNumber, e.Serial)
		}
		for _, e := range col.Ready {
			fmt.Fprintf(&b, "%s_%s_pronti|", e.OrderNumber, e.Serial)
		}
	}
	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		ni, _ := strconv.ParseInt(entries[i].OrderNumber, 10, 64)
		nj, _ := strconv.ParseInt(entries[j].OrderNumber, 10, 64)
		if ni != nj {
			return ni > nj
		}
		return entries[i].Serial > entries[j].Serial
	})
}
