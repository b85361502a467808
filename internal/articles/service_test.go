package articles

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/ordersync-backend/internal/snapshot"
	"github.com/angelmondragon/ordersync-backend/pkg/db"
	"github.com/angelmondragon/ordersync-backend/pkg/db/dbtest"
	"github.com/angelmondragon/ordersync-backend/pkg/db/models"
	"github.com/angelmondragon/ordersync-backend/pkg/enums"
	"github.com/angelmondragon/ordersync-backend/pkg/logger"
)

type fakeProducer struct {
	rows []snapshot.ArticleRow
	err  error
}

func (f fakeProducer) ProduceArticles(context.Context) ([]snapshot.ArticleRow, error) {
	return f.rows, f.err
}

func factor(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func newTestService(t *testing.T, producer snapshot.ArticleProducer) (*Service, Repository) {
	t.Helper()
	conn := dbtest.Open(t)
	repository := NewRepository(conn)
	svc, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Repo:     repository,
		Producer: producer,
		Tx:       db.NewFromGorm(conn),
	})
	require.NoError(t, err)
	return svc, repository
}

func TestReloadReplacesTable(t *testing.T) {
	ctx := context.Background()
	svc, repository := newTestService(t, fakeProducer{rows: []snapshot.ArticleRow{
		{ArticleCode: "ART1", Department: "rep01", SecondaryUnit: "kg", ConversionOperator: "*", ConversionFactor: factor("7.85")},
		{ArticleCode: ".", Department: "REP02"},
		{ArticleCode: "..", Department: "REP02"},
		{ArticleCode: "ART2", Department: "REP04", ConversionOperator: "?"},
		{ArticleCode: "ART1", Department: "REP03"},
	}})

	require.NoError(t, repository.ReplaceAll(ctx, []models.ArticleDepartment{{ArticleCode: "OLD", Department: enums.DepartmentBeams}}))

	result, err := svc.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 3, result.Skipped)

	rows, err := repository.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ART1", rows[0].ArticleCode)
	assert.Equal(t, enums.DepartmentProfiles, rows[0].Department)
	assert.Equal(t, enums.ConversionMultiply, rows[0].ConversionOperator)
	require.NotNil(t, rows[0].ConversionFactor)
	assert.True(t, rows[0].ConversionFactor.Equal(decimal.RequireFromString("7.85")))
	assert.Equal(t, enums.ConversionOperator(""), rows[1].ConversionOperator)
}

func TestReloadProducerFailureKeepsTable(t *testing.T) {
	ctx := context.Background()
	svc, repository := newTestService(t, fakeProducer{err: errors.New("odbc down")})
	require.NoError(t, repository.ReplaceAll(ctx, []models.ArticleDepartment{{ArticleCode: "KEEP", Department: enums.DepartmentBeams}}))

	_, err := svc.Reload(ctx)
	require.Error(t, err)

	rows, err := repository.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "KEEP", rows[0].ArticleCode)
}

func TestLoadIndex(t *testing.T) {
	ctx := context.Background()
	svc, repository := newTestService(t, nil)
	require.NoError(t, repository.ReplaceAll(ctx, []models.ArticleDepartment{
		{ArticleCode: "ART1", Department: "rep02", SecondaryUnit: "conf", ConversionOperator: enums.ConversionDivide, ConversionFactor: factor("4")},
	}))

	index, err := svc.LoadIndex(ctx)
	require.NoError(t, err)

	ref, ok := index.Lookup("ART1")
	require.True(t, ok)
	assert.Equal(t, enums.DepartmentBuilding, ref.Department)
	assert.Equal(t, "conf", ref.SecondaryUnit)
	require.NotNil(t, ref.Factor)
	assert.True(t, ref.Factor.Equal(decimal.NewFromInt(4)))

	_, ok = index.Lookup("MISSING")
	assert.False(t, ok)
}

func TestReloadNotConfigured(t *testing.T) {
	svc, _ := newTestService(t, nil)
	_, err := svc.Reload(context.Background())
	require.Error(t, err)
}
