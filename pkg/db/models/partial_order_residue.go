package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ordersync-backend/pkg/enums"
)

// ResidueMarkerArticle flags a manual "to complete" entry that carries no real residue.
const ResidueMarkerArticle = "__MARKER__"

// PartialOrderResidue records what a department still owes after declaring itself ready.
type PartialOrderResidue struct {
	ID           uint             `gorm:"column:id;primaryKey;autoIncrement"`
	Serial       string           `gorm:"column:serial;not null;index:ix_residues_serial_department"`
	Department   enums.Department `gorm:"column:department;not null;index:ix_residues_serial_department"`
	OrderNumber  string           `gorm:"column:order_number"`
	CustomerName string           `gorm:"column:customer_name"`
	ArticleCode  string           `gorm:"column:article_code;not null"`
	Description  string           `gorm:"column:description"`
	Quantity     decimal.Decimal  `gorm:"column:quantity;type:numeric(14,4);not null"`
	Unit         string           `gorm:"column:unit"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
}

func (PartialOrderResidue) TableName() string { return "partial_order_residues" }

// IsMarker reports whether the row is a manual to-complete marker.
func (r PartialOrderResidue) IsMarker() bool {
	return r.ArticleCode == ResidueMarkerArticle
}
