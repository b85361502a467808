package enums

import "fmt"

// OperatorRole is the role carried by an operator token.
type OperatorRole string

const (
	OperatorRoleAdmin     OperatorRole = "admin"
	OperatorRolePicker    OperatorRole = "picker"
	OperatorRoleCashier   OperatorRole = "cassa"
	OperatorRoleDisplay   OperatorRole = "display"
	OperatorRoleTransport OperatorRole = "trasporti"
)

var validOperatorRoles = []OperatorRole{
	OperatorRoleAdmin,
	OperatorRolePicker,
	OperatorRoleCashier,
	OperatorRoleDisplay,
	OperatorRoleTransport,
}

// String implements fmt.Stringer.
func (r OperatorRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known OperatorRole.
func (r OperatorRole) IsValid() bool {
	for _, candidate := range validOperatorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseOperatorRole converts raw input into an OperatorRole. The legacy "cassiere"
// spelling maps onto the cashier role.
func ParseOperatorRole(value string) (OperatorRole, error) {
	if value == "cassiere" {
		return OperatorRoleCashier, nil
	}
	for _, candidate := range validOperatorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid operator role %q", value)
}
