package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ordersync-backend/pkg/enums"
)

// ArticleDepartment maps an ERP article onto its picking department and secondary unit.
type ArticleDepartment struct {
	ID                 uint                     `gorm:"column:id;primaryKey;autoIncrement"`
	ArticleCode        string                   `gorm:"column:article_code;not null;uniqueIndex:ux_article_departments_code"`
	Department         enums.Department         `gorm:"column:department"`
	SecondaryPackaging string                   `gorm:"column:secondary_packaging"`
	SecondaryUnit      string                   `gorm:"column:secondary_unit"`
	ConversionOperator enums.ConversionOperator `gorm:"column:conversion_operator"`
	ConversionFactor   *decimal.Decimal         `gorm:"column:conversion_factor;type:numeric(14,6)"`
	UpdatedAt          time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (ArticleDepartment) TableName() string { return "article_departments" }
