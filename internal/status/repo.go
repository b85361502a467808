package status

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/ordersync-backend/internal/repo"
	"github.com/angelmondragon/ordersync-backend/pkg/db/models"
	"github.com/angelmondragon/ordersync-backend/pkg/enums"
)

// Repository persists order and department statuses and partial-order residues.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindOrderStatus(ctx context.Context, serial string) (*models.OrderStatus, error)
	UpsertOrderStatus(ctx context.Context, serial string, status enums.OrderStatus, operator string) error
	OrderStatuses(ctx context.Context, serials []string) ([]models.OrderStatus, error)

	FindDepartmentStatus(ctx context.Context, serial string, dept enums.Department) (*models.OrderStatusByDepartment, error)
	DepartmentStatuses(ctx context.Context, serials []string) ([]models.OrderStatusByDepartment, error)
	UpsertDepartmentStatus(ctx context.Context, serial string, dept enums.Department, status enums.OrderStatus, operator string) error

	AppliedEdits(ctx context.Context, serial string) ([]models.OrderEdit, error)
	Attributions(ctx context.Context, serial string) ([]models.ModifiedOrderLine, error)

	ListResidues(ctx context.Context, dept *enums.Department) ([]models.PartialOrderResidue, error)
	DeleteResidues(ctx context.Context, serial string, dept *enums.Department) (int64, error)
	CreateResidues(ctx context.Context, rows []models.PartialOrderResidue) error
	MarkerExists(ctx context.Context, serial string, dept enums.Department) (bool, error)
}

var statusColumns = []string{"status", "operator", "updated_at"}

type repository struct {
	repo.Base
	now func() time.Time
}

// NewRepository returns a status repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db), now: time.Now}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Bind(tx), now: r.now}
}

func (r *repository) FindOrderStatus(ctx context.Context, serial string) (*models.OrderStatus, error) {
	var row models.OrderStatus
	err := r.DB(ctx).Where("serial = ?", serial).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) UpsertOrderStatus(ctx context.Context, serial string, status enums.OrderStatus, operator string) error {
	row := models.OrderStatus{Serial: serial, Status: status, Operator: operator, UpdatedAt: r.now().UTC()}
	return r.Upsert(ctx, &row, []string{"serial"}, statusColumns)
}

func (r *repository) OrderStatuses(ctx context.Context, serials []string) ([]models.OrderStatus, error) {
	var rows []models.OrderStatus
	q := r.DB(ctx)
	if serials != nil {
		if len(serials) == 0 {
			return nil, nil
		}
		q = q.Where("serial IN ?", serials)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindDepartmentStatus(ctx context.Context, serial string, dept enums.Department) (*models.OrderStatusByDepartment, error) {
	var row models.OrderStatusByDepartment
	err := r.DB(ctx).Where("serial = ? AND department = ?", serial, dept).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// DepartmentStatuses returns the rows for serials; a nil slice returns every row.
func (r *repository) DepartmentStatuses(ctx context.Context, serials []string) ([]models.OrderStatusByDepartment, error) {
	var rows []models.OrderStatusByDepartment
	q := r.DB(ctx)
	if serials != nil {
		if len(serials) == 0 {
			return nil, nil
		}
		q = q.Where("serial IN ?", serials)
	}
	if err := q.Order("serial, department").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) UpsertDepartmentStatus(ctx context.Context, serial string, dept enums.Department, status enums.OrderStatus, operator string) error {
	row := models.OrderStatusByDepartment{
		Serial:     serial,
		Department: dept,
		Status:     status,
		Operator:   operator,
		UpdatedAt:  r.now().UTC(),
	}
	return r.Upsert(ctx, &row, []string{"serial", "department"}, statusColumns)
}

func (r *repository) AppliedEdits(ctx context.Context, serial string) ([]models.OrderEdit, error) {
	var rows []models.OrderEdit
	err := r.DB(ctx).
		Where("serial = ? AND applied = ?", serial, true).
		Order("created_at, id").
		Find(&rows).Error
	return rows, err
}

func (r *repository) Attributions(ctx context.Context, serial string) ([]models.ModifiedOrderLine, error) {
	var rows []models.ModifiedOrderLine
	err := r.DB(ctx).
		Select("serial", "article_code", "department", "removed").
		Where("serial = ? AND department <> ''", serial).
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListResidues(ctx context.Context, dept *enums.Department) ([]models.PartialOrderResidue, error) {
	var rows []models.PartialOrderResidue
	q := r.DB(ctx)
	if dept != nil {
		q = q.Where("department = ?", *dept)
	}
	if err := q.Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) DeleteResidues(ctx context.Context, serial string, dept *enums.Department) (int64, error) {
	q := r.DB(ctx).Where("serial = ?", serial)
	if dept != nil {
		q = q.Where("department = ?", *dept)
	}
	res := q.Delete(&models.PartialOrderResidue{})
	return res.RowsAffected, res.Error
}

func (r *repository) CreateResidues(ctx context.Context, rows []models.PartialOrderResidue) error {
	if len(rows) == 0 {
		return nil
	}
	return r.DB(ctx).Create(&rows).Error
}

func (r *repository) MarkerExists(ctx context.Context, serial string, dept enums.Department) (bool, error) {
	var count int64
	err := r.DB(ctx).Model(&models.PartialOrderResidue{}).
		Where("serial = ? AND department = ? AND article_code = ?", serial, dept, models.ResidueMarkerArticle).
		Count(&count).Error
	return count > 0, err
}
