package models

import (
	"time"

	"github.com/angelmondragon/ordersync-backend/pkg/enums"
)

// UnavailableLine is a picker's real-time decision that an article cannot be fulfilled.
type UnavailableLine struct {
	ID               uint             `gorm:"column:id;primaryKey;autoIncrement"`
	Serial           string           `gorm:"column:serial;not null;uniqueIndex:ux_unavailable_lines"`
	ArticleCode      string           `gorm:"column:article_code;not null;uniqueIndex:ux_unavailable_lines"`
	Department       enums.Department `gorm:"column:department;not null;uniqueIndex:ux_unavailable_lines"`
	Unavailable      bool             `gorm:"column:unavailable;not null;default:false"`
	SubstitutionText *string          `gorm:"column:substitution_text"`
	Operator         string           `gorm:"column:operator"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (UnavailableLine) TableName() string { return "unavailable_lines" }
