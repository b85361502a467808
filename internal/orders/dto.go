package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ordersync-backend/internal/snapshot"
	"github.com/angelmondragon/ordersync-backend/pkg/enums"
)

// ListFilter narrows the order list.
type ListFilter struct {
	Query  string
	Status *enums.OrderStatus
	Pickup *bool
}

// Summary is one order header in the list.
type Summary struct {
	Serial             string                                `json:"serial"`
	OrderNumber        string                                `json:"order_number"`
	OrderDate          string                                `json:"order_date"`
	CustomerCode       string                                `json:"customer_code"`
	CustomerName       string                                `json:"customer_name"`
	Pickup             bool                                  `json:"pickup"`
	PickupNote         string                                `json:"pickup_note,omitempty"`
	ArrivalDate        string                                `json:"arrival_date"`
	DueDate            string                                `json:"due_date,omitempty"`
	Departments        []enums.Department                    `json:"departments"`
	Lines              int                                   `json:"lines"`
	Status             enums.OrderStatus                     `json:"status"`
	DepartmentStatus   enums.OrderStatus                     `json:"department_status,omitempty"`
	DepartmentStatuses map[enums.Department]enums.OrderStatus `json:"department_statuses"`
	Modified           bool                                  `json:"modified"`
}

// EditView is the latest applied edit of an article.
type EditView struct {
	Quantity  decimal.Decimal `json:"quantity"`
	Unit      string          `json:"unit"`
	Operator  string          `json:"operator"`
	CreatedAt time.Time       `json:"created_at"`
}

// DecoratedLine is a cached line with the operator state attached.
type DecoratedLine struct {
	snapshot.OrderLine
	Unavailable      bool      `json:"unavailable"`
	SubstitutionText string    `json:"substitution_text,omitempty"`
	Removed          bool      `json:"removed"`
	Added            bool      `json:"added"`
	Edit             *EditView `json:"edit,omitempty"`
}

// Detail is the full view of one order.
type Detail struct {
	Summary
	Items      []DecoratedLine `json:"items"`
	ToComplete bool            `json:"to_complete"`
	ShowingAll bool            `json:"showing_all"`
}

// DepartmentState is the stored status of one department of an order.
type DepartmentState struct {
	Department enums.Department  `json:"department"`
	Label      string            `json:"label"`
	Status     enums.OrderStatus `json:"status"`
	Operator   string            `json:"operator,omitempty"`
	UpdatedAt  *time.Time        `json:"updated_at,omitempty"`
}

// EditInput carries a quantity confirmation or correction.
type EditInput struct {
	Serial      string
	ArticleCode string
	Quantity    decimal.Decimal
	Unit        string
	// Confirm accepts a zero quantity; a correction must be positive.
	Confirm bool
}

// UnavailableItem is one article flagged by a picker.
type UnavailableItem struct {
	ArticleCode      string `json:"article_code" validate:"notblank"`
	Unavailable      bool   `json:"unavailable"`
	SubstitutionText string `json:"substitution_text"`
}

// UnavailableResult reports which articles were accepted.
type UnavailableResult struct {
	Updated  int      `json:"updated"`
	Rejected []string `json:"rejected"`
}

// Changes answers the has-anything-changed poll.
type Changes struct {
	HasChanges         bool      `json:"has_changes"`
	Generation         uint64    `json:"generation"`
	ModifiedGeneration uint64    `json:"modified_generation"`
	ModifiedSerials    []string  `json:"modified_serials"`
	Timestamp          time.Time `json:"timestamp"`
}
