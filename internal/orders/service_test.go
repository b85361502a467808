package orders

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordersync-backend/internal/cache"
	"github.com/angelmondragon/ordersync-backend/internal/snapshot"
	"github.com/angelmondragon/ordersync-backend/internal/status"
	"github.com/angelmondragon/ordersync-backend/pkg/auth"
	"github.com/angelmondragon/ordersync-backend/pkg/db"
	"github.com/angelmondragon/ordersync-backend/pkg/db/dbtest"
	"github.com/angelmondragon/ordersync-backend/pkg/db/models"
	"github.com/angelmondragon/ordersync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordersync-backend/pkg/errors"
	"github.com/angelmondragon/ordersync-backend/pkg/logger"
	"github.com/angelmondragon/ordersync-backend/pkg/pagination"
)

var (
	rep01 = enums.DepartmentProfiles
	rep02 = enums.DepartmentBuilding
)

func line(serial, number, article string, dept enums.Department, qty string) snapshot.OrderLine {
	return snapshot.OrderLine{
		RawOrderLine: snapshot.RawOrderLine{
			Serial:       serial,
			OrderNumber:  number,
			OrderDate:    "2025-10-01",
			CustomerCode: "C01",
			CustomerName: "Edil Rossi",
			ArticleCode:  article,
			Description:  "desc " + article,
			Quantity:     decimal.RequireFromString(qty),
			Unit:         "PZ",
		},
		ArrivalDate: "2025-10-01",
		Department:  dept,
	}
}

func picker(name string, dept enums.Department) auth.Operator {
	d := dept
	return auth.Operator{Username: name, Role: enums.OperatorRolePicker, Department: &d}
}

type fixture struct {
	svc   *Service
	store *cache.Store
	db    *gorm.DB
}

func newFixture(t *testing.T, lines ...snapshot.OrderLine) fixture {
	t.Helper()
	gdb := dbtest.Open(t)
	store := cache.NewStore()
	if len(lines) > 0 {
		store.CommitOrders(lines, nil)
	}
	client := db.NewFromGorm(gdb)
	statusSvc, err := status.NewService(status.ServiceParams{
		Logger: logger.Nop(),
		Repo:   status.NewRepository(gdb),
		Lines:  store,
		Tx:     client,
	})
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Logger: logger.Nop(),
		Repo:   NewRepository(gdb),
		Cache:  store,
		Status: statusSvc,
		Tx:     client,
	})
	require.NoError(t, err)
	return fixture{svc: svc, store: store, db: gdb}
}

func defaultLines() []snapshot.OrderLine {
	generic := line("S3", "99", "A", rep01, "1")
	generic.CustomerCode = "000000000001000"
	generic.CustomerNote = "Mario Bianchi"
	return []snapshot.OrderLine{
		line("S1", "120", "A", rep01, "10"),
		line("S1", "120", "B", rep02, "4"),
		line("S2", "1000", "C", rep02, "2"),
		generic,
	}
}

func TestListBeforeCacheReady(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.List(context.Background(), picker("mario", rep01), ListFilter{}, pagination.Params{})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeCacheNotReady))
}

func TestListSortsFiltersAndAttachesStatus(t *testing.T) {
	f := newFixture(t, defaultLines()...)
	ctx := context.Background()

	cashier := auth.Operator{Username: "cassa", Role: enums.OperatorRoleCashier}
	items, page, err := f.svc.List(ctx, cashier, ListFilter{}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"S2", "S1", "S3"}, []string{items[0].Serial, items[1].Serial, items[2].Serial})
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, "Mario Bianchi", items[2].CustomerName)
	assert.Equal(t, enums.OrderStatusNew, items[1].DepartmentStatuses[rep02])

	_, err = f.svc.Start(ctx, picker("anna", rep01), "S1")
	require.NoError(t, err)

	items, _, err = f.svc.List(ctx, picker("anna", rep01), ListFilter{}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "S1", items[0].Serial)
	assert.Equal(t, enums.OrderStatusInProgress, items[0].Status)
	assert.Equal(t, enums.OrderStatusInProgress, items[0].DepartmentStatus)

	inProgress := enums.OrderStatusInProgress
	items, _, err = f.svc.List(ctx, cashier, ListFilter{Status: &inProgress}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, items, 1)

	items, page, err = f.svc.List(ctx, cashier, ListFilter{}, pagination.Params{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 2, page.TotalPages)

	items, _, err = f.svc.List(ctx, cashier, ListFilter{Query: "bianchi"}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "S3", items[0].Serial)
}

func TestDetailMarksReadForPickers(t *testing.T) {
	f := newFixture(t, defaultLines()...)
	ctx := context.Background()

	detail, err := f.svc.Detail(ctx, picker("anna", rep01), "S1")
	require.NoError(t, err)
	require.Len(t, detail.Items, 1)
	assert.Equal(t, "A", detail.Items[0].ArticleCode)
	assert.False(t, detail.ShowingAll)

	var st models.OrderStatus
	require.NoError(t, f.db.Where("serial = ?", "S1").Take(&st).Error)
	assert.Equal(t, enums.OrderStatusRead, st.Status)

	var reads int64
	require.NoError(t, f.db.Model(&models.OrderRead{}).Count(&reads).Error)
	assert.Equal(t, int64(1), reads)

	_, err = f.svc.Detail(ctx, picker("anna", rep01), "S1")
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.OrderRead{}).Count(&reads).Error)
	assert.Equal(t, int64(1), reads)

	cashierDetail, err := f.svc.Detail(ctx, auth.Operator{Username: "cassa", Role: enums.OperatorRoleCashier}, "S2")
	require.NoError(t, err)
	assert.Len(t, cashierDetail.Items, 1)
	var count int64
	require.NoError(t, f.db.Model(&models.OrderStatus{}).Where("serial = ?", "S2").Count(&count).Error)
	assert.Zero(t, count)
}

func TestDetailShowsAllWhenDepartmentAbsent(t *testing.T) {
	f := newFixture(t, defaultLines()...)
	detail, err := f.svc.Detail(context.Background(), picker("anna", rep01), "S2")
	require.NoError(t, err)
	assert.True(t, detail.ShowingAll)
	assert.Len(t, detail.Items, 1)
}

func TestDetailDecoratesLines(t *testing.T) {
	lines := append(defaultLines(), line("S1", "120", "A", rep01, "5"))
	f := newFixture(t, lines...)
	ctx := context.Background()
	op := picker("anna", rep01)

	removed := line("S1", "120", "Z", rep01, "3").ToModifiedLine(true)
	require.NoError(t, f.db.Create(&removed).Error)

	_, err := f.svc.Edit(ctx, op, EditInput{Serial: "S1", ArticleCode: "A", Quantity: decimal.NewFromInt(14), Unit: "PZ"})
	require.NoError(t, err)
	_, err = f.svc.MarkUnavailable(ctx, op, "S1", []UnavailableItem{{ArticleCode: "A", Unavailable: true, SubstitutionText: "A-ALT"}})
	require.NoError(t, err)

	detail, err := f.svc.Detail(ctx, op, "S1")
	require.NoError(t, err)
	require.Len(t, detail.Items, 3)

	main := detail.Items[0]
	assert.True(t, main.Quantity.Equal(decimal.NewFromInt(15)))
	assert.True(t, main.Unavailable)
	assert.Equal(t, "A-ALT", main.SubstitutionText)
	require.NotNil(t, main.Edit)
	assert.True(t, main.Edit.Quantity.Equal(decimal.NewFromInt(14)))

	assert.True(t, detail.Items[1].Removed)
	assert.Equal(t, "Z", detail.Items[1].ArticleCode)

	assert.True(t, detail.Items[2].Added)
	assert.Equal(t, "A-ALT", detail.Items[2].ArticleCode)

	assert.Len(t, f.store.LinesForSerial("S1"), 3)
	assert.True(t, f.store.LinesForSerial("S1")[0].Quantity.Equal(decimal.NewFromInt(10)))
}

func TestEditValidationAndSideEffects(t *testing.T) {
	f := newFixture(t, defaultLines()...)
	ctx := context.Background()
	op := picker("anna", rep02)

	_, err := f.svc.Edit(ctx, op, EditInput{Serial: "S1", ArticleCode: "B", Quantity: decimal.Zero})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Edit(ctx, auth.Operator{Username: "cassa", Role: enums.OperatorRoleCashier}, EditInput{Serial: "S1", ArticleCode: "B", Quantity: decimal.NewFromInt(1)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.Edit(ctx, op, EditInput{Serial: "S404", ArticleCode: "B", Quantity: decimal.NewFromInt(1)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	edit, err := f.svc.Edit(ctx, op, EditInput{Serial: "S1", ArticleCode: "B", Quantity: decimal.Zero, Confirm: true})
	require.NoError(t, err)
	assert.True(t, edit.Applied)

	_, err = f.svc.Edit(ctx, op, EditInput{Serial: "S1", ArticleCode: "B", Quantity: decimal.NewFromInt(4)})
	require.NoError(t, err)

	var attributions []models.ModifiedOrderLine
	require.NoError(t, f.db.Where("serial = ? AND removed = ?", "S1", false).Find(&attributions).Error)
	require.Len(t, attributions, 1)
	assert.Equal(t, rep02, attributions[0].Department)

	states, err := f.svc.Departments(ctx, "S1")
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, enums.OrderStatusNew, states[0].Status)
	assert.Equal(t, enums.OrderStatusInProgress, states[1].Status)
	assert.Equal(t, "anna", states[1].Operator)
}

func TestMarkUnavailableRejectsForeignArticles(t *testing.T) {
	f := newFixture(t, defaultLines()...)
	ctx := context.Background()
	op := picker("anna", rep01)

	res, err := f.svc.MarkUnavailable(ctx, op, "S1", []UnavailableItem{
		{ArticleCode: "A", Unavailable: true, SubstitutionText: "  "},
		{ArticleCode: "B", Unavailable: true},
		{ArticleCode: "NOPE", Unavailable: true},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, []string{"B", "NOPE"}, res.Rejected)

	res, err = f.svc.MarkUnavailable(ctx, op, "S1", []UnavailableItem{{ArticleCode: "A", Unavailable: false, SubstitutionText: "ignored"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	var rows []models.UnavailableLine
	require.NoError(t, f.db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Unavailable)
	assert.Nil(t, rows[0].SubstitutionText)
}

func TestSetStatusRequiresKnownOrder(t *testing.T) {
	f := newFixture(t, defaultLines()...)
	_, err := f.svc.SetStatus(context.Background(), picker("anna", rep01), "S404", enums.OrderStatusReady)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	tr, err := f.svc.SetStatus(context.Background(), picker("anna", rep01), "S1", enums.OrderStatusReady)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusReady, tr.Status)
	require.Len(t, tr.Residues, 1)
}

func TestChanges(t *testing.T) {
	f := newFixture(t, defaultLines()...)
	ctx := context.Background()

	changes, err := f.svc.Changes(ctx, 1)
	require.NoError(t, err)
	assert.False(t, changes.HasChanges)
	assert.Equal(t, uint64(1), changes.Generation)

	f.store.CommitOrders(defaultLines()[:3], map[string][]snapshot.OrderLine{"S1": {}})
	changes, err = f.svc.Changes(ctx, 1)
	require.NoError(t, err)
	assert.True(t, changes.HasChanges)
	assert.Equal(t, []string{"S1"}, changes.ModifiedSerials)

	changes, err = f.svc.Changes(ctx, 2)
	require.NoError(t, err)
	assert.False(t, changes.HasChanges)

	removed := line("S2", "1000", "Q", rep02, "1").ToModifiedLine(true)
	require.NoError(t, f.db.Create(&removed).Error)
	changes, err = f.svc.Changes(ctx, 2)
	require.NoError(t, err)
	assert.True(t, changes.HasChanges)
	assert.Equal(t, []string{"S2"}, changes.ModifiedSerials)
}

func TestStockFilter(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.Stock(context.Background(), "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeCacheNotReady))

	f.store.CommitStock([]snapshot.StockLine{
		{Warehouse: "01", ArticleCode: "TUBO20", Description: "Tubolare 20x20", Available: decimal.NewFromInt(3)},
		{Warehouse: "01", ArticleCode: "VITE8", Description: "Vite M8", Available: decimal.NewFromInt(100)},
	})
	lines, gen, err := f.svc.Stock(context.Background(), "tubo")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), gen)
	require.Len(t, lines, 1)
	assert.Equal(t, "TUBO20", lines[0].ArticleCode)
}

func TestDisplayCustomerAndPickup(t *testing.T) {
	l := line("S1", "1", "A", rep01, "1")
	assert.Equal(t, "Edil Rossi", DisplayCustomer(l))
	l.CustomerCode = "1000"
	assert.Equal(t, "Edil Rossi", DisplayCustomer(l))
	l.CustomerNote = "Sig. Verdi"
	assert.Equal(t, "Sig. Verdi", DisplayCustomer(l))

	assert.True(t, IsPickup("RITIRO in sede"))
	assert.True(t, IsPickup("il cliente ritira domani"))
	assert.False(t, IsPickup("consegna"))
}
