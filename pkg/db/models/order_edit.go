package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderEdit is an operator override of a line's quantity/unit. The most recent applied
// edit per (serial, article) is the current value.
type OrderEdit struct {
	ID          uint            `gorm:"column:id;primaryKey;autoIncrement"`
	Serial      string          `gorm:"column:serial;not null;index"`
	ArticleCode string          `gorm:"column:article_code;not null"`
	Quantity    decimal.Decimal `gorm:"column:quantity;type:numeric(14,4);not null"`
	Unit        string          `gorm:"column:unit"`
	Operator    string          `gorm:"column:operator;not null"`
	Applied     bool            `gorm:"column:applied;not null;default:false"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (OrderEdit) TableName() string { return "order_edits" }
