package enums

import (
	"fmt"
	"strings"
)

// Department is a warehouse zone responsible for picking a subset of an order's articles.
type Department string

const (
	DepartmentProfiles   Department = "REP01"
	DepartmentBuilding   Department = "REP02"
	DepartmentBeams      Department = "REP03"
	DepartmentInsulation Department = "REP04"
	DepartmentHardware   Department = "REP05"
	DepartmentCylinders  Department = "REP06"
)

// DepartmentDefault receives articles the reference table does not know about.
const DepartmentDefault = DepartmentHardware

var departmentLabels = map[Department]string{
	DepartmentProfiles:   "PROFILATI - LAMIERE - TUBOLARI",
	DepartmentBuilding:   "EDILE",
	DepartmentBeams:      "TRAVI",
	DepartmentInsulation: "COIBENTATI - RECINZIONI",
	DepartmentHardware:   "FERRAMENTA",
	DepartmentCylinders:  "BOMBOLE",
}

var allDepartments = []Department{
	DepartmentProfiles,
	DepartmentBuilding,
	DepartmentBeams,
	DepartmentInsulation,
	DepartmentHardware,
	DepartmentCylinders,
}

// String implements fmt.Stringer.
func (d Department) String() string {
	return string(d)
}

// Label returns the human readable name shown on the warehouse boards.
func (d Department) Label() string {
	if label, ok := departmentLabels[d]; ok {
		return label
	}
	return string(d)
}

// IsValid reports whether the value is a known Department.
func (d Department) IsValid() bool {
	_, ok := departmentLabels[d]
	return ok
}

// Departments returns every known department in code order.
func Departments() []Department {
	out := make([]Department, len(allDepartments))
	copy(out, allDepartments)
	return out
}

// DisplayDepartments lists the departments shown on the pickup board.
func DisplayDepartments() []Department {
	out := make([]Department, 0, len(allDepartments))
	for _, d := range allDepartments {
		if d == DepartmentHardware || d == DepartmentCylinders {
			continue
		}
		out = append(out, d)
	}
	return out
}

// NormalizeDepartment upper-cases and trims raw input. Unknown codes are kept as-is
// because the reference table may introduce departments before this list learns them.
func NormalizeDepartment(value string) Department {
	return Department(strings.ToUpper(strings.TrimSpace(value)))
}

// ParseDepartment converts raw input into a known Department.
func ParseDepartment(value string) (Department, error) {
	d := NormalizeDepartment(value)
	if !d.IsValid() {
		return "", fmt.Errorf("invalid department %q", value)
	}
	return d, nil
}
