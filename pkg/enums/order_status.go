package enums

import "fmt"

// OrderStatus tracks how far an order (or one department's share of it) has progressed.
type OrderStatus string

const (
	OrderStatusNew        OrderStatus = "nuovo"
	OrderStatusRead       OrderStatus = "letto"
	OrderStatusInProgress OrderStatus = "in_preparazione"
	OrderStatusReady      OrderStatus = "pronto"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusNew,
	OrderStatusRead,
	OrderStatusInProgress,
	OrderStatusReady,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsOperatorSettable reports whether a picker may set the status explicitly.
func (s OrderStatus) IsOperatorSettable() bool {
	return s == OrderStatusInProgress || s == OrderStatusReady
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
