package articles

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/ordersync-backend/internal/repo"
	"github.com/angelmondragon/ordersync-backend/pkg/db/models"
)

const insertBatchSize = 500

// Repository persists the article → department reference table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	List(ctx context.Context) ([]models.ArticleDepartment, error)
	ReplaceAll(ctx context.Context, rows []models.ArticleDepartment) error
}

type repository struct {
	repo.Base
}

// NewRepository returns an articles repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Bind(tx)}
}

func (r *repository) List(ctx context.Context) ([]models.ArticleDepartment, error) {
	var rows []models.ArticleDepartment
	if err := r.DB(ctx).Order("article_code").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ReplaceAll swaps the table content; callers run it inside a transaction.
func (r *repository) ReplaceAll(ctx context.Context, rows []models.ArticleDepartment) error {
	db := r.DB(ctx)
	if err := db.Where("1 = 1").Delete(&models.ArticleDepartment{}).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return db.CreateInBatches(rows, insertBatchSize).Error
}
