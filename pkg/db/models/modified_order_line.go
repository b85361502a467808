package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ordersync-backend/pkg/enums"
)

// ModifiedOrderLine is a durable copy of an order line. Rows with Removed set record a
// line that vanished between cache generations; the others attribute a line to the
// department of the operator who acted on it.
type ModifiedOrderLine struct {
	ID                 uint                     `gorm:"column:id;primaryKey;autoIncrement"`
	Serial             string                   `gorm:"column:serial;not null;index"`
	OrderNumber        string                   `gorm:"column:order_number"`
	OrderDate          string                   `gorm:"column:order_date"`
	CustomerCode       string                   `gorm:"column:customer_code"`
	CustomerName       string                   `gorm:"column:customer_name"`
	CustomerNote       string                   `gorm:"column:customer_note"`
	Pickup             string                   `gorm:"column:pickup"`
	ArticleCode        string                   `gorm:"column:article_code;not null"`
	Article            string                   `gorm:"column:article"`
	Description        string                   `gorm:"column:description"`
	ExtraDescription   string                   `gorm:"column:extra_description"`
	Quantity           decimal.Decimal          `gorm:"column:quantity;type:numeric(14,4);not null"`
	Unit               string                   `gorm:"column:unit"`
	UnitPrice          decimal.Decimal          `gorm:"column:unit_price;type:numeric(14,4)"`
	DueDate            string                   `gorm:"column:due_date"`
	Department         enums.Department         `gorm:"column:department"`
	SecondaryUnit      string                   `gorm:"column:secondary_unit"`
	SecondaryQuantity  *decimal.Decimal         `gorm:"column:secondary_quantity;type:numeric(14,4)"`
	ConversionOperator enums.ConversionOperator `gorm:"column:conversion_operator"`
	ConversionFactor   *decimal.Decimal         `gorm:"column:conversion_factor;type:numeric(14,6)"`
	Removed            bool                     `gorm:"column:removed;not null;default:false"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime"`
}

func (ModifiedOrderLine) TableName() string { return "modified_order_lines" }
