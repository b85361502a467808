// Package orders serves the order views built from the installed cache generation and
// records picker actions against them.
package orders

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/ordersync-backend/internal/cache"
	"github.com/angelmondragon/ordersync-backend/internal/snapshot"
	"github.com/angelmondragon/ordersync-backend/internal/status"
	"github.com/angelmondragon/ordersync-backend/pkg/auth"
	"github.com/angelmondragon/ordersync-backend/pkg/db/models"
	"github.com/angelmondragon/ordersync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordersync-backend/pkg/errors"
	"github.com/angelmondragon/ordersync-backend/pkg/logger"
	"github.com/angelmondragon/ordersync-backend/pkg/pagination"
)

// recentChangeWindow is how far back the change poll looks for persisted modifications.
const recentChangeWindow = 5 * time.Minute

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type generations interface {
	Orders() *cache.OrdersGeneration
	Stock() *cache.StockGeneration
}

// ServiceParams wires the orders service.
type ServiceParams struct {
	Logger *logger.Logger
	Repo   Repository
	Cache  generations
	Status *status.Service
	Tx     txRunner
	Now    func() time.Time
}

// Service answers order queries and applies picker actions.
type Service struct {
	logg   *logger.Logger
	repo   Repository
	cache  generations
	status *status.Service
	tx     txRunner
	now    func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Cache == nil {
		return nil, fmt.Errorf("cache required")
	}
	if params.Status == nil {
		return nil, fmt.Errorf("status service required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:   params.Logger,
		repo:   params.Repo,
		cache:  params.Cache,
		status: params.Status,
		tx:     params.Tx,
		now:    now,
	}, nil
}

func (s *Service) generation() (*cache.OrdersGeneration, error) {
	gen := s.cache.Orders()
	if gen == nil {
		return nil, pkgerrors.New(pkgerrors.CodeCacheNotReady, "order cache not loaded yet")
	}
	return gen, nil
}

func (s *Service) orderLines(serial string) (*cache.OrdersGeneration, []snapshot.OrderLine, error) {
	gen, err := s.generation()
	if err != nil {
		return nil, nil, err
	}
	lines := gen.Serial(serial)
	if len(lines) == 0 {
		return gen, nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s not found", serial)
	}
	return gen, lines, nil
}

// List returns one summary per order visible to the operator, most recent order number
// first.
func (s *Service) List(ctx context.Context, op auth.Operator, filter ListFilter, page pagination.Params) ([]Summary, pagination.Page, error) {
	gen, err := s.generation()
	if err != nil {
		return nil, pagination.Page{}, err
	}

	var dept *enums.Department
	if op.IsPicker() {
		dept = op.Department
	}

	grouped := snapshot.GroupBySerial(gen.Lines)
	serials := make([]string, 0, len(grouped))
	for serial, lines := range grouped {
		if dept != nil && !hasDepartment(lines, *dept) {
			continue
		}
		serials = append(serials, serial)
	}

	statuses, err := s.status.Lookup(ctx, serials)
	if err != nil {
		return nil, pagination.Page{}, err
	}

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	out := make([]Summary, 0, len(serials))
	for _, serial := range serials {
		summary := summarize(grouped[serial], statuses, dept)
		_, summary.Modified = gen.Modified[serial]
		if filter.Status != nil && summary.Status != *filter.Status {
			continue
		}
		if filter.Pickup != nil && summary.Pickup != *filter.Pickup {
			continue
		}
		if query != "" && !matches(summary, query) {
			continue
		}
		out = append(out, summary)
	}

	sort.Slice(out, func(i, j int) bool {
		ni, nj := orderNumber(out[i].OrderNumber), orderNumber(out[j].OrderNumber)
		if ni != nj {
			return ni > nj
		}
		return out[i].Serial > out[j].Serial
	})

	items, meta := pagination.Slice(out, page)
	return items, meta, nil
}

// Lines returns the cached lines of an order.
func (s *Service) Lines(ctx context.Context, serial string) ([]snapshot.OrderLine, error) {
	_, lines, err := s.orderLines(serial)
	return lines, err
}

// Detail builds the decorated order view and records the read.
func (s *Service) Detail(ctx context.Context, op auth.Operator, serial string) (Detail, error) {
	gen, lines, err := s.orderLines(serial)
	if err != nil {
		return Detail{}, err
	}
	ctx = s.logg.WithSerial(ctx, serial)

	if err := s.recordRead(ctx, op, serial); err != nil {
		return Detail{}, err
	}

	dept := op.Department
	statuses, err := s.status.Lookup(ctx, []string{serial})
	if err != nil {
		return Detail{}, err
	}
	out := Detail{Summary: summarize(lines, statuses, dept)}
	_, out.Modified = gen.Modified[serial]

	visible := lines
	if dept != nil {
		visible = filterDepartment(lines, *dept)
		if len(visible) == 0 {
			visible = lines
			out.ShowingAll = true
		}
	}

	unavailable, err := s.repo.UnavailableLines(ctx, serial)
	if err != nil {
		return Detail{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load unavailable lines")
	}
	edits, err := s.repo.AppliedEdits(ctx, serial)
	if err != nil {
		return Detail{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order edits")
	}
	removed, err := s.repo.RemovedLines(ctx, serial, dept)
	if err != nil {
		return Detail{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load removed lines")
	}
	out.Items = decorate(visible, lines, unavailable, edits, removed)

	out.ToComplete, err = s.repo.HasResidues(ctx, serial, dept)
	if err != nil {
		return Detail{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load residues")
	}
	return out, nil
}

func (s *Service) recordRead(ctx context.Context, op auth.Operator, serial string) error {
	if op.Username == "" {
		return nil
	}
	created, err := s.repo.CreateRead(ctx, serial, op.Username)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record order read")
	}
	if !created || op.Role != enums.OperatorRolePicker {
		return nil
	}
	return s.status.MarkRead(ctx, serial, op.Username, op.DepartmentOrEmpty())
}

// Departments lists the status of every department involved in the order, including
// departments that only have a recorded status.
func (s *Service) Departments(ctx context.Context, serial string) ([]DepartmentState, error) {
	_, lines, err := s.orderLines(serial)
	if err != nil {
		return nil, err
	}
	rows, err := s.status.DepartmentRows(ctx, serial)
	if err != nil {
		return nil, err
	}
	byDept := make(map[enums.Department]models.OrderStatusByDepartment, len(rows))
	for _, row := range rows {
		byDept[row.Department] = row
	}

	depts := status.DepartmentsOf(lines)
	for _, row := range rows {
		if !containsDepartment(depts, row.Department) {
			depts = append(depts, row.Department)
		}
	}

	out := make([]DepartmentState, 0, len(depts))
	for _, d := range depts {
		state := DepartmentState{Department: d, Label: d.Label(), Status: enums.OrderStatusNew}
		if row, ok := byDept[d]; ok {
			updated := row.UpdatedAt
			state.Status = row.Status
			state.Operator = row.Operator
			state.UpdatedAt = &updated
		}
		out = append(out, state)
	}
	return out, nil
}

// SetStatus applies an explicit department status change by a picker.
func (s *Service) SetStatus(ctx context.Context, op auth.Operator, serial string, next enums.OrderStatus) (status.Transition, error) {
	if err := requirePicker(op); err != nil {
		return status.Transition{}, err
	}
	if _, _, err := s.orderLines(serial); err != nil {
		return status.Transition{}, err
	}
	return s.status.SetDepartmentStatus(ctx, serial, *op.Department, next, op.Username)
}

// Edit records an applied quantity confirmation or correction, attributes the article
// to the picker's department and starts preparation, in one transaction.
func (s *Service) Edit(ctx context.Context, op auth.Operator, input EditInput) (models.OrderEdit, error) {
	if err := requirePicker(op); err != nil {
		return models.OrderEdit{}, err
	}
	if strings.TrimSpace(input.ArticleCode) == "" {
		return models.OrderEdit{}, pkgerrors.New(pkgerrors.CodeValidation, "article code required")
	}
	if input.Quantity.IsNegative() || (!input.Confirm && input.Quantity.IsZero()) {
		return models.OrderEdit{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity out of range").
			WithDetails(map[string]any{"quantity": input.Quantity.String()})
	}
	_, lines, err := s.orderLines(input.Serial)
	if err != nil {
		return models.OrderEdit{}, err
	}

	dept := *op.Department
	edit := models.OrderEdit{
		Serial:      input.Serial,
		ArticleCode: strings.TrimSpace(input.ArticleCode),
		Quantity:    input.Quantity,
		Unit:        strings.TrimSpace(input.Unit),
		Operator:    op.Username,
		Applied:     true,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateEdit(ctx, &edit); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store order edit")
		}
		if err := ensureAttribution(ctx, repo, lines, edit.ArticleCode, dept, &edit); err != nil {
			return err
		}
		_, err := s.status.WithTx(tx).AutoStart(ctx, input.Serial, dept, op.Username)
		return err
	})
	if err != nil {
		return models.OrderEdit{}, err
	}

	s.logg.Info(s.logg.WithFields(s.logg.WithSerial(ctx, input.Serial), map[string]any{
		"article":  edit.ArticleCode,
		"quantity": edit.Quantity.String(),
		"confirm":  input.Confirm,
		"operator": op.Username,
	}), "order edit recorded")
	return edit, nil
}

// MarkUnavailable flags articles of the picker's department. Articles outside the
// department, or not in the order, are rejected.
func (s *Service) MarkUnavailable(ctx context.Context, op auth.Operator, serial string, items []UnavailableItem) (UnavailableResult, error) {
	if err := requirePicker(op); err != nil {
		return UnavailableResult{}, err
	}
	_, lines, err := s.orderLines(serial)
	if err != nil {
		return UnavailableResult{}, err
	}
	dept := *op.Department
	own := map[string]bool{}
	for _, line := range filterDepartment(lines, dept) {
		own[line.ArticleCode] = true
	}

	result := UnavailableResult{Rejected: []string{}}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for _, item := range items {
			code := strings.TrimSpace(item.ArticleCode)
			if code == "" || !own[code] {
				result.Rejected = append(result.Rejected, item.ArticleCode)
				continue
			}
			if err := ensureAttribution(ctx, repo, lines, code, dept, nil); err != nil {
				return err
			}
			row := models.UnavailableLine{
				Serial:      serial,
				ArticleCode: code,
				Department:  dept,
				Unavailable: item.Unavailable,
				Operator:    op.Username,
				UpdatedAt:   s.now().UTC(),
			}
			if text := strings.TrimSpace(item.SubstitutionText); item.Unavailable && text != "" {
				row.SubstitutionText = &text
			}
			if err := repo.UpsertUnavailable(ctx, &row); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store unavailable line")
			}
			result.Updated++
		}
		_, err := s.status.WithTx(tx).AutoStart(ctx, serial, dept, op.Username)
		return err
	})
	if err != nil {
		return UnavailableResult{}, err
	}
	return result, nil
}

// Start moves the picker's department into preparation.
func (s *Service) Start(ctx context.Context, op auth.Operator, serial string) (bool, error) {
	if err := requirePicker(op); err != nil {
		return false, err
	}
	if _, _, err := s.orderLines(serial); err != nil {
		return false, err
	}
	return s.status.AutoStart(ctx, serial, *op.Department, op.Username)
}

// Changes reports whether the client holding generation since should reload.
func (s *Service) Changes(ctx context.Context, since uint64) (Changes, error) {
	gen, err := s.generation()
	if err != nil {
		return Changes{}, err
	}
	now := s.now()
	recent, err := s.repo.RecentlyModifiedSerials(ctx, now.Add(-recentChangeWindow))
	if err != nil {
		return Changes{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recent modifications")
	}

	seen := map[string]bool{}
	serials := []string{}
	if gen.ModifiedAt > since {
		for serial := range gen.Modified {
			seen[serial] = true
			serials = append(serials, serial)
		}
	}
	for _, serial := range recent {
		if !seen[serial] {
			seen[serial] = true
			serials = append(serials, serial)
		}
	}
	sort.Strings(serials)

	return Changes{
		HasChanges:         gen.ModifiedAt > since || len(recent) > 0,
		Generation:         gen.Number,
		ModifiedGeneration: gen.ModifiedAt,
		ModifiedSerials:    serials,
		Timestamp:          now.UTC(),
	}, nil
}

// Stock returns the installed stock lines, optionally filtered by article code or
// description.
func (s *Service) Stock(ctx context.Context, article string) ([]snapshot.StockLine, uint64, error) {
	gen := s.cache.Stock()
	if gen == nil {
		return nil, 0, pkgerrors.New(pkgerrors.CodeCacheNotReady, "stock cache not loaded yet")
	}
	needle := strings.ToLower(strings.TrimSpace(article))
	if needle == "" {
		return gen.Lines, gen.Number, nil
	}
	out := []snapshot.StockLine{}
	for _, line := range gen.Lines {
		if strings.Contains(strings.ToLower(line.ArticleCode), needle) ||
			strings.Contains(strings.ToLower(line.Description), needle) {
			out = append(out, line)
		}
	}
	return out, gen.Number, nil
}

func ensureAttribution(ctx context.Context, repo Repository, lines []snapshot.OrderLine, article string, dept enums.Department, edit *models.OrderEdit) error {
	exists, err := repo.HasAttribution(ctx, lines[0].Serial, article)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check attribution")
	}
	if exists {
		return nil
	}

	var row models.ModifiedOrderLine
	if base, ok := findArticle(lines, article); ok {
		row = base.ToModifiedLine(false)
	} else {
		head := lines[0]
		row = models.ModifiedOrderLine{
			Serial:       head.Serial,
			OrderNumber:  head.OrderNumber,
			OrderDate:    head.OrderDate,
			CustomerCode: head.CustomerCode,
			CustomerName: head.CustomerName,
			Pickup:       head.Pickup,
			ArticleCode:  article,
		}
		if edit != nil {
			row.Quantity = edit.Quantity
			row.Unit = edit.Unit
		}
	}
	row.Department = dept
	if err := repo.CreateAttribution(ctx, &row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store attribution")
	}
	return nil
}

func requirePicker(op auth.Operator) error {
	if op.Role != enums.OperatorRolePicker {
		return pkgerrors.New(pkgerrors.CodeForbidden, "picker role required")
	}
	if op.Department == nil || *op.Department == "" {
		return pkgerrors.New(pkgerrors.CodeForbidden, "operator has no department")
	}
	return nil
}

func summarize(lines []snapshot.OrderLine, statuses status.Snapshot, dept *enums.Department) Summary {
	head := lines[0]
	serial := head.Serial
	depts := status.DepartmentsOf(lines)

	deptStatuses := make(map[enums.Department]enums.OrderStatus, len(depts))
	for _, d := range depts {
		deptStatuses[d] = enums.OrderStatusNew
	}
	for d, st := range statuses.Departments[serial] {
		deptStatuses[d] = st
	}

	out := Summary{
		Serial:             serial,
		OrderNumber:        head.OrderNumber,
		OrderDate:          head.OrderDate,
		CustomerCode:       head.CustomerCode,
		CustomerName:       DisplayCustomer(head),
		Pickup:             IsPickup(head.Pickup),
		PickupNote:         head.Pickup,
		ArrivalDate:        head.ArrivalDate,
		DueDate:            head.DueDate,
		Departments:        depts,
		Lines:              len(lines),
		Status:             enums.OrderStatusNew,
		DepartmentStatuses: deptStatuses,
	}
	if st, ok := statuses.Orders[serial]; ok {
		out.Status = st
	}
	if dept != nil {
		out.DepartmentStatus = enums.OrderStatusNew
		if st, ok := deptStatuses[*dept]; ok {
			out.DepartmentStatus = st
		}
	}
	return out
}

func decorate(visible, all []snapshot.OrderLine, unavailable []models.UnavailableLine, edits []models.OrderEdit, removed []models.ModifiedOrderLine) []DecoratedLine {
	latest := map[string]*EditView{}
	for _, e := range edits {
		latest[e.ArticleCode] = &EditView{Quantity: e.Quantity, Unit: e.Unit, Operator: e.Operator, CreatedAt: e.CreatedAt}
	}
	flagged := map[string]string{}
	for _, u := range unavailable {
		if !u.Unavailable {
			continue
		}
		if _, ok := flagged[u.ArticleCode]; ok {
			continue
		}
		text := ""
		if u.SubstitutionText != nil {
			text = *u.SubstitutionText
		}
		flagged[u.ArticleCode] = text
	}

	// Lines of the same article are shown once with their quantities summed.
	index := map[string]int{}
	out := make([]DecoratedLine, 0, len(visible))
	for _, line := range visible {
		if i, ok := index[line.ArticleCode]; ok {
			out[i].Quantity = out[i].Quantity.Add(line.Quantity)
			continue
		}
		index[line.ArticleCode] = len(out)
		out = append(out, DecoratedLine{OrderLine: line})
	}
	for i := range out {
		code := out[i].ArticleCode
		if text, ok := flagged[code]; ok {
			out[i].Unavailable = true
			out[i].SubstitutionText = text
		}
		out[i].Edit = latest[code]
	}

	for _, r := range removed {
		line := snapshot.FromModifiedLine(r)
		out = append(out, DecoratedLine{OrderLine: line, Removed: true, Edit: latest[r.ArticleCode]})
	}

	for _, u := range unavailable {
		if !u.Unavailable || u.SubstitutionText == nil || strings.TrimSpace(*u.SubstitutionText) == "" {
			continue
		}
		head := all[0]
		added := snapshot.OrderLine{RawOrderLine: snapshot.RawOrderLine{
			Serial:           head.Serial,
			OrderNumber:      head.OrderNumber,
			OrderDate:        head.OrderDate,
			CustomerName:     head.CustomerName,
			Pickup:           head.Pickup,
			ArticleCode:      strings.TrimSpace(*u.SubstitutionText),
			Description:      "Aggiunta per sostituzione di " + u.ArticleCode,
			ExtraDescription: "Aggiunta",
			Unit:             "N.",
		}, ArrivalDate: head.ArrivalDate, Department: u.Department}
		if base, ok := findArticle(all, u.ArticleCode); ok {
			added.Unit = base.Unit
			added.OrderNumber = base.OrderNumber
			added.OrderDate = base.OrderDate
			added.Department = base.Department
		}
		out = append(out, DecoratedLine{OrderLine: added, Added: true})
	}
	return out
}

func findArticle(lines []snapshot.OrderLine, article string) (snapshot.OrderLine, bool) {
	for _, line := range lines {
		if line.ArticleCode == article {
			return line, true
		}
	}
	return snapshot.OrderLine{}, false
}

func filterDepartment(lines []snapshot.OrderLine, dept enums.Department) []snapshot.OrderLine {
	out := make([]snapshot.OrderLine, 0, len(lines))
	for _, line := range lines {
		if line.Department == dept {
			out = append(out, line)
		}
	}
	return out
}

func hasDepartment(lines []snapshot.OrderLine, dept enums.Department) bool {
	for _, line := range lines {
		if line.Department == dept {
			return true
		}
	}
	return false
}

func containsDepartment(list []enums.Department, dept enums.Department) bool {
	for _, d := range list {
		if d == dept {
			return true
		}
	}
	return false
}

func orderNumber(value string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func matches(s Summary, query string) bool {
	return strings.Contains(strings.ToLower(s.OrderNumber), query) ||
		strings.Contains(strings.ToLower(s.CustomerName), query) ||
		strings.Contains(strings.ToLower(s.Serial), query)
}
