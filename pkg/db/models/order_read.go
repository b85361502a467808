package models

import "time"

// OrderRead records the first time an operator opened an order.
type OrderRead struct {
	ID       uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Serial   string    `gorm:"column:serial;not null;uniqueIndex:ux_order_reads"`
	Operator string    `gorm:"column:operator;not null;uniqueIndex:ux_order_reads"`
	ReadAt   time.Time `gorm:"column:read_at;autoCreateTime"`
}

func (OrderRead) TableName() string { return "order_reads" }
