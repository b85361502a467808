package reconcile

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/ordersync-backend/internal/repo"
	"github.com/angelmondragon/ordersync-backend/pkg/db/models"
)

// AuditRepository persists the lines reconciliation found missing.
type AuditRepository interface {
	WithTx(tx *gorm.DB) AuditRepository
	RemovedForSerials(ctx context.Context, serials []string) ([]models.ModifiedOrderLine, error)
	CreateRemoved(ctx context.Context, rows []models.ModifiedOrderLine) error
}

type auditRepository struct {
	repo.Base
}

// NewAuditRepository binds the repository to db.
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{Base: repo.NewBase(db)}
}

func (r *auditRepository) WithTx(tx *gorm.DB) AuditRepository {
	if tx == nil {
		return r
	}
	return &auditRepository{Base: r.Bind(tx)}
}

func (r *auditRepository) RemovedForSerials(ctx context.Context, serials []string) ([]models.ModifiedOrderLine, error) {
	if len(serials) == 0 {
		return nil, nil
	}
	var rows []models.ModifiedOrderLine
	err := r.DB(ctx).
		Where("serial IN ? AND removed = ?", serials, true).
		Find(&rows).Error
	return rows, err
}

func (r *auditRepository) CreateRemoved(ctx context.Context, rows []models.ModifiedOrderLine) error {
	if len(rows) == 0 {
		return nil
	}
	return r.DB(ctx).CreateInBatches(rows, 200).Error
}
