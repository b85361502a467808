package auth

import "github.com/angelmondragon/ordersync-backend/pkg/enums"

// Operator is the authenticated actor services act on behalf of.
type Operator struct {
	Username   string
	Role       enums.OperatorRole
	Department *enums.Department
}

// Operator extracts the acting operator from verified claims.
func (c *OperatorClaims) Operator() Operator {
	return Operator{Username: c.Username, Role: c.Role, Department: c.Department}
}

// IsPicker reports whether the operator picks for a specific department.
func (o Operator) IsPicker() bool {
	return o.Role == enums.OperatorRolePicker && o.Department != nil
}

// DepartmentOrEmpty returns the operator department or "" when none is assigned.
func (o Operator) DepartmentOrEmpty() enums.Department {
	if o.Department == nil {
		return ""
	}
	return *o.Department
}
