package status

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/ordersync-backend/internal/snapshot"
	"github.com/angelmondragon/ordersync-backend/pkg/db/models"
	"github.com/angelmondragon/ordersync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordersync-backend/pkg/errors"
	"github.com/angelmondragon/ordersync-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// LineSource reads the current lines of an order from the installed cache generation.
type LineSource interface {
	LinesForSerial(serial string) []snapshot.OrderLine
}

// ServiceParams wires the status service.
type ServiceParams struct {
	Logger *logger.Logger
	Repo   Repository
	Lines  LineSource
	Tx     txRunner
}

// Service drives the per-department state machine.
type Service struct {
	logg  *logger.Logger
	repo  Repository
	lines LineSource
	tx    txRunner
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("status repository required")
	}
	if params.Lines == nil {
		return nil, fmt.Errorf("line source required")
	}
	return &Service{
		logg:  params.Logger,
		repo:  params.Repo,
		lines: params.Lines,
		tx:    params.Tx,
	}, nil
}

// WithTx returns a copy whose writes go through tx. The copy does not open nested
// transactions.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	cp := *s
	cp.repo = s.repo.WithTx(tx)
	cp.tx = nil
	return &cp
}

func (s *Service) inTx(ctx context.Context, fn func(svc *Service) error) error {
	if s.tx == nil {
		return fn(s)
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return fn(s.WithTx(tx))
	})
}

// MarkRead sets the read state the first time an order is opened. The department row
// is only touched for operators bound to a department.
func (s *Service) MarkRead(ctx context.Context, serial, operator string, dept enums.Department) error {
	return s.inTx(ctx, func(svc *Service) error {
		current, err := svc.repo.FindOrderStatus(ctx, serial)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order status")
		}
		if current == nil {
			if err := svc.repo.UpsertOrderStatus(ctx, serial, enums.OrderStatusRead, operator); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order read")
			}
		}
		if dept == "" {
			return nil
		}
		deptStatus, err := svc.repo.FindDepartmentStatus(ctx, serial, dept)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load department status")
		}
		if deptStatus != nil {
			return nil
		}
		if err := svc.repo.UpsertDepartmentStatus(ctx, serial, dept, enums.OrderStatusRead, operator); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark department read")
		}
		return nil
	})
}

// AutoStart moves a department into preparation on the first mutating action. It never
// downgrades a ready department and is a no-op when preparation already started.
func (s *Service) AutoStart(ctx context.Context, serial string, dept enums.Department, operator string) (bool, error) {
	if dept == "" {
		return false, nil
	}
	started := false
	err := s.inTx(ctx, func(svc *Service) error {
		current, err := svc.repo.FindDepartmentStatus(ctx, serial, dept)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load department status")
		}
		if current != nil && (current.Status == enums.OrderStatusInProgress || current.Status == enums.OrderStatusReady) {
			return nil
		}
		if err := svc.repo.UpsertDepartmentStatus(ctx, serial, dept, enums.OrderStatusInProgress, operator); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "start department preparation")
		}
		started = true
		_, err = svc.rollUp(ctx, serial, operator)
		return err
	})
	if err == nil && started {
		s.logg.Info(s.logg.WithFields(s.logg.WithSerial(ctx, serial), map[string]any{
			"department": dept,
			"operator":   operator,
		}), "department preparation started")
	}
	return started, err
}

// Transition is the result of an explicit status change.
type Transition struct {
	Serial      string            `json:"serial"`
	Department  enums.Department  `json:"department"`
	Status      enums.OrderStatus `json:"status"`
	OrderStatus enums.OrderStatus `json:"order_status"`
	Residues    []ResidueLine     `json:"residues,omitempty"`
}

// SetDepartmentStatus is the explicit operator action. It is the only path allowed to
// move a department backwards. Declaring a department ready recomputes its residues.
func (s *Service) SetDepartmentStatus(ctx context.Context, serial string, dept enums.Department, status enums.OrderStatus, operator string) (Transition, error) {
	if !status.IsOperatorSettable() {
		return Transition{}, pkgerrors.New(pkgerrors.CodeValidation, "status must be in_preparazione or pronto").
			WithDetails(map[string]any{"status": status})
	}
	if !dept.IsValid() {
		return Transition{}, pkgerrors.New(pkgerrors.CodeValidation, "department required")
	}

	out := Transition{Serial: serial, Department: dept, Status: status}
	err := s.inTx(ctx, func(svc *Service) error {
		if err := svc.repo.UpsertDepartmentStatus(ctx, serial, dept, status, operator); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update department status")
		}
		if status == enums.OrderStatusReady {
			residues, err := svc.computeResidues(ctx, serial, dept)
			if err != nil {
				return err
			}
			out.Residues = residues
		}
		rolled, err := svc.rollUp(ctx, serial, operator)
		if err != nil {
			return err
		}
		out.OrderStatus = rolled
		return nil
	})
	if err != nil {
		return Transition{}, err
	}

	s.logg.Info(s.logg.WithFields(s.logg.WithSerial(ctx, serial), map[string]any{
		"department":   dept,
		"status":       status,
		"order_status": out.OrderStatus,
		"residues":     len(out.Residues),
		"operator":     operator,
	}), "department status updated")
	return out, nil
}

// RollUp recomputes and stores the order-level status.
func (s *Service) RollUp(ctx context.Context, serial, operator string) (enums.OrderStatus, error) {
	var out enums.OrderStatus
	err := s.inTx(ctx, func(svc *Service) error {
		var err error
		out, err = svc.rollUp(ctx, serial, operator)
		return err
	})
	return out, err
}

func (s *Service) rollUp(ctx context.Context, serial, operator string) (enums.OrderStatus, error) {
	rows, err := s.repo.DepartmentStatuses(ctx, []string{serial})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load department statuses")
	}
	statuses := make(map[enums.Department]enums.OrderStatus, len(rows))
	recorded := make([]enums.Department, 0, len(rows))
	for _, row := range rows {
		statuses[row.Department] = row.Status
		recorded = append(recorded, row.Department)
	}

	departments := DepartmentsOf(s.lines.LinesForSerial(serial))
	if len(departments) == 0 {
		departments = recorded
	}
	next := RollUp(departments, statuses)

	current, err := s.repo.FindOrderStatus(ctx, serial)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order status")
	}
	if current != nil {
		if next == enums.OrderStatusNew && current.Status == enums.OrderStatusRead {
			return current.Status, nil
		}
		if current.Status == next {
			return next, nil
		}
	}
	if err := s.repo.UpsertOrderStatus(ctx, serial, next, operator); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	return next, nil
}

// ComputeResidues replaces the residues of (serial, department) with a fresh computation,
// markers included.
func (s *Service) ComputeResidues(ctx context.Context, serial string, dept enums.Department) ([]ResidueLine, error) {
	var out []ResidueLine
	err := s.inTx(ctx, func(svc *Service) error {
		var err error
		out, err = svc.computeResidues(ctx, serial, dept)
		return err
	})
	return out, err
}

func (s *Service) computeResidues(ctx context.Context, serial string, dept enums.Department) ([]ResidueLine, error) {
	lines := s.lines.LinesForSerial(serial)

	edits, err := s.repo.AppliedEdits(ctx, serial)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order edits")
	}
	attributed, err := s.repo.Attributions(ctx, serial)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load line attributions")
	}
	attribution := map[string][]enums.Department{}
	for _, row := range attributed {
		if !containsDepartment(attribution[row.ArticleCode], row.Department) {
			attribution[row.ArticleCode] = append(attribution[row.ArticleCode], row.Department)
		}
	}

	residues := ComputeResidue(dept, lines, edits, attribution)

	if _, err := s.repo.DeleteResidues(ctx, serial, &dept); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear residues")
	}
	if len(residues) == 0 {
		return residues, nil
	}

	orderNumber, customer := headerOf(lines)
	rows := make([]models.PartialOrderResidue, 0, len(residues))
	for _, r := range residues {
		rows = append(rows, models.PartialOrderResidue{
			Serial:       serial,
			Department:   dept,
			OrderNumber:  orderNumber,
			CustomerName: customer,
			ArticleCode:  r.ArticleCode,
			Description:  r.Description,
			Quantity:     r.Quantity,
			Unit:         r.Unit,
		})
	}
	if err := s.repo.CreateResidues(ctx, rows); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store residues")
	}
	return residues, nil
}

// AddMarker flags an order as still to complete for dept. Adding it twice is a no-op.
func (s *Service) AddMarker(ctx context.Context, serial string, dept enums.Department) (bool, error) {
	lines := s.lines.LinesForSerial(serial)
	if len(lines) == 0 {
		return false, pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s not found", serial)
	}
	exists, err := s.repo.MarkerExists(ctx, serial, dept)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check marker")
	}
	if exists {
		return false, nil
	}
	orderNumber, customer := headerOf(lines)
	row := models.PartialOrderResidue{
		Serial:       serial,
		Department:   dept,
		OrderNumber:  orderNumber,
		CustomerName: customer,
		ArticleCode:  models.ResidueMarkerArticle,
		Description:  "da completare",
	}
	if err := s.repo.CreateResidues(ctx, []models.PartialOrderResidue{row}); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add marker")
	}
	return true, nil
}

// RemoveResidues drops every residue row for serial, limited to dept when given.
func (s *Service) RemoveResidues(ctx context.Context, serial string, dept *enums.Department) (int64, error) {
	n, err := s.repo.DeleteResidues(ctx, serial, dept)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove residues")
	}
	return n, nil
}

// ResidueItem is one residue row as listed.
type ResidueItem struct {
	Department  enums.Department `json:"department"`
	ArticleCode string           `json:"article_code"`
	Description string           `json:"description"`
	Quantity    string           `json:"quantity"`
	Unit        string           `json:"unit"`
	Marker      bool             `json:"marker"`
	CreatedAt   time.Time        `json:"created_at"`
}

// ResidueGroup collects the residues of one order.
type ResidueGroup struct {
	Serial       string        `json:"serial"`
	OrderNumber  string        `json:"order_number"`
	CustomerName string        `json:"customer_name"`
	Items        []ResidueItem `json:"items"`
}

// ListResidues returns residues grouped by serial, most recent order first.
func (s *Service) ListResidues(ctx context.Context, dept *enums.Department) ([]ResidueGroup, error) {
	rows, err := s.repo.ListResidues(ctx, dept)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list residues")
	}
	index := map[string]int{}
	groups := []ResidueGroup{}
	for _, row := range rows {
		i, ok := index[row.Serial]
		if !ok {
			i = len(groups)
			index[row.Serial] = i
			groups = append(groups, ResidueGroup{
				Serial:       row.Serial,
				OrderNumber:  row.OrderNumber,
				CustomerName: row.CustomerName,
			})
		}
		item := ResidueItem{
			Department:  row.Department,
			ArticleCode: row.ArticleCode,
			Description: row.Description,
			Unit:        row.Unit,
			Marker:      row.IsMarker(),
			CreatedAt:   row.CreatedAt,
		}
		if !item.Marker {
			item.Quantity = row.Quantity.String()
		}
		groups[i].Items = append(groups[i].Items, item)
	}
	for i := range groups {
		sort.SliceStable(groups[i].Items, func(a, b int) bool {
			return groups[i].Items[a].Department < groups[i].Items[b].Department
		})
	}
	return groups, nil
}

// Snapshot is the stored status of a set of orders.
type Snapshot struct {
	Orders      map[string]enums.OrderStatus
	Departments map[string]map[enums.Department]enums.OrderStatus
}

// Lookup loads order and department statuses for serials; nil loads all of them.
func (s *Service) Lookup(ctx context.Context, serials []string) (Snapshot, error) {
	out := Snapshot{
		Orders:      map[string]enums.OrderStatus{},
		Departments: map[string]map[enums.Department]enums.OrderStatus{},
	}
	orders, err := s.repo.OrderStatuses(ctx, serials)
	if err != nil {
		return out, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order statuses")
	}
	for _, row := range orders {
		out.Orders[row.Serial] = row.Status
	}
	depts, err := s.repo.DepartmentStatuses(ctx, serials)
	if err != nil {
		return out, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load department statuses")
	}
	for _, row := range depts {
		if out.Departments[row.Serial] == nil {
			out.Departments[row.Serial] = map[enums.Department]enums.OrderStatus{}
		}
		out.Departments[row.Serial][row.Department] = row.Status
	}
	return out, nil
}

// DepartmentRows returns the raw department rows of one order.
func (s *Service) DepartmentRows(ctx context.Context, serial string) ([]models.OrderStatusByDepartment, error) {
	rows, err := s.repo.DepartmentStatuses(ctx, []string{serial})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load department statuses")
	}
	return rows, nil
}

func headerOf(lines []snapshot.OrderLine) (string, string) {
	if len(lines) == 0 {
		return "", ""
	}
	return lines[0].OrderNumber, lines[0].CustomerName
}
