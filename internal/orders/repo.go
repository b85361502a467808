package orders

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/ordersync-backend/internal/repo"
	"github.com/angelmondragon/ordersync-backend/pkg/db/models"
	"github.com/angelmondragon/ordersync-backend/pkg/enums"
)

// Repository persists operator side-channel records: reads, edits, unavailable lines
// and department attributions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateRead(ctx context.Context, serial, operator string) (bool, error)

	CreateEdit(ctx context.Context, edit *models.OrderEdit) error
	AppliedEdits(ctx context.Context, serial string) ([]models.OrderEdit, error)

	HasAttribution(ctx context.Context, serial, articleCode string) (bool, error)
	CreateAttribution(ctx context.Context, row *models.ModifiedOrderLine) error
	RemovedLines(ctx context.Context, serial string, dept *enums.Department) ([]models.ModifiedOrderLine, error)
	RecentlyModifiedSerials(ctx context.Context, since time.Time) ([]string, error)

	UpsertUnavailable(ctx context.Context, row *models.UnavailableLine) error
	UnavailableLines(ctx context.Context, serial string) ([]models.UnavailableLine, error)

	HasResidues(ctx context.Context, serial string, dept *enums.Department) (bool, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns an orders repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Bind(tx)}
}

// CreateRead records the first read of serial by operator and reports whether this call
// created it.
func (r *repository) CreateRead(ctx context.Context, serial, operator string) (bool, error) {
	row := models.OrderRead{Serial: serial, Operator: operator}
	return r.InsertIgnore(ctx, &row)
}

func (r *repository) CreateEdit(ctx context.Context, edit *models.OrderEdit) error {
	return r.DB(ctx).Create(edit).Error
}

func (r *repository) AppliedEdits(ctx context.Context, serial string) ([]models.OrderEdit, error) {
	var rows []models.OrderEdit
	err := r.DB(ctx).
		Where("serial = ? AND applied = ?", serial, true).
		Order("created_at, id").
		Find(&rows).Error
	return rows, err
}

func (r *repository) HasAttribution(ctx context.Context, serial, articleCode string) (bool, error) {
	var count int64
	err := r.DB(ctx).Model(&models.ModifiedOrderLine{}).
		Where("serial = ? AND article_code = ? AND removed = ?", serial, articleCode, false).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) CreateAttribution(ctx context.Context, row *models.ModifiedOrderLine) error {
	return r.DB(ctx).Create(row).Error
}

func (r *repository) RemovedLines(ctx context.Context, serial string, dept *enums.Department) ([]models.ModifiedOrderLine, error) {
	var rows []models.ModifiedOrderLine
	q := r.DB(ctx).Where("serial = ? AND removed = ?", serial, true)
	if dept != nil {
		q = q.Where("department = ?", *dept)
	}
	if err := q.Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) RecentlyModifiedSerials(ctx context.Context, since time.Time) ([]string, error) {
	var serials []string
	err := r.DB(ctx).Model(&models.ModifiedOrderLine{}).
		Where("created_at >= ?", since).
		Distinct().
		Order("serial").
		Pluck("serial", &serials).Error
	return serials, err
}

func (r *repository) UpsertUnavailable(ctx context.Context, row *models.UnavailableLine) error {
	return r.Upsert(ctx, row,
		[]string{"serial", "article_code", "department"},
		[]string{"unavailable", "substitution_text", "operator", "updated_at"})
}

func (r *repository) UnavailableLines(ctx context.Context, serial string) ([]models.UnavailableLine, error) {
	var rows []models.UnavailableLine
	err := r.DB(ctx).Where("serial = ?", serial).Order("id").Find(&rows).Error
	return rows, err
}

func (r *repository) HasResidues(ctx context.Context, serial string, dept *enums.Department) (bool, error) {
	var count int64
	q := r.DB(ctx).Model(&models.PartialOrderResidue{}).Where("serial = ?", serial)
	if dept != nil {
		q = q.Where("department = ?", *dept)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
