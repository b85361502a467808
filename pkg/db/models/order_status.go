package models

import (
	"time"

	"github.com/angelmondragon/ordersync-backend/pkg/enums"
)

// OrderStatus is the order-level roll-up, one row per serial.
type OrderStatus struct {
	ID        uint              `gorm:"column:id;primaryKey;autoIncrement"`
	Serial    string            `gorm:"column:serial;not null;uniqueIndex:ux_order_status_serial"`
	Status    enums.OrderStatus `gorm:"column:status;not null;default:'nuovo'"`
	Operator  string            `gorm:"column:operator"`
	UpdatedAt time.Time         `gorm:"column:updated_at"`
}

func (OrderStatus) TableName() string { return "order_status" }

// OrderStatusByDepartment is the per-department source of truth.
type OrderStatusByDepartment struct {
	ID         uint              `gorm:"column:id;primaryKey;autoIncrement"`
	Serial     string            `gorm:"column:serial;not null;uniqueIndex:ux_order_status_by_department"`
	Department enums.Department  `gorm:"column:department;not null;uniqueIndex:ux_order_status_by_department"`
	Status     enums.OrderStatus `gorm:"column:status;not null;default:'nuovo'"`
	Operator   string            `gorm:"column:operator"`
	UpdatedAt  time.Time         `gorm:"column:updated_at"`
}

func (OrderStatusByDepartment) TableName() string { return "order_status_by_department" }
