// Package status keeps per-department preparation state and derives order-level status
// and residues from it.
package status

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ordersync-backend/internal/snapshot"
	"github.com/angelmondragon/ordersync-backend/pkg/db/models"
	"github.com/angelmondragon/ordersync-backend/pkg/enums"
)

// residueEpsilon is the smallest shortfall worth recording.
var residueEpsilon = decimal.RequireFromString("0.0001")

// RollUp derives the order status from the department statuses of the departments
// involved. A department without a status counts as new.
func RollUp(departments []enums.Department, statuses map[enums.Department]enums.OrderStatus) enums.OrderStatus {
	if len(departments) == 0 {
		return enums.OrderStatusNew
	}
	allReady := true
	anyInProgress := false
	for _, dept := range departments {
		switch statuses[dept] {
		case enums.OrderStatusReady:
		case enums.OrderStatusInProgress:
			anyInProgress = true
			allReady = false
		default:
			allReady = false
		}
	}
	switch {
	case allReady:
		return enums.OrderStatusReady
	case anyInProgress:
		return enums.OrderStatusInProgress
	default:
		return enums.OrderStatusNew
	}
}

// DepartmentsOf lists the distinct departments of lines, sorted. Lines without a
// department are ignored.
func DepartmentsOf(lines []snapshot.OrderLine) []enums.Department {
	seen := map[enums.Department]bool{}
	out := []enums.Department{}
	for _, line := range lines {
		if line.Department == "" || seen[line.Department] {
			continue
		}
		seen[line.Department] = true
		out = append(out, line.Department)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ResidueLine is what a department still owes for one article.
type ResidueLine struct {
	ArticleCode string          `json:"article_code"`
	Description string          `json:"description"`
	Unit        string          `json:"unit"`
	Quantity    decimal.Decimal `json:"quantity"`
}

// ComputeResidue compares what the department's cached lines request with what applied
// edits confirmed. Edits for articles attributed only to other departments are ignored;
// edits with no attribution count.
func ComputeResidue(
	dept enums.Department,
	lines []snapshot.OrderLine,
	edits []models.OrderEdit,
	attribution map[string][]enums.Department,
) []ResidueLine {
	requested := map[string]decimal.Decimal{}
	first := map[string]snapshot.OrderLine{}
	order := []string{}
	for _, line := range lines {
		if line.Department != dept {
			continue
		}
		if _, ok := first[line.ArticleCode]; !ok {
			first[line.ArticleCode] = line
			order = append(order, line.ArticleCode)
		}
		requested[line.ArticleCode] = requested[line.ArticleCode].Add(line.Quantity)
	}

	confirmed := map[string]decimal.Decimal{}
	for _, edit := range edits {
		if !edit.Applied {
			continue
		}
		if depts, ok := attribution[edit.ArticleCode]; ok && len(depts) > 0 && !containsDepartment(depts, dept) {
			continue
		}
		confirmed[edit.ArticleCode] = confirmed[edit.ArticleCode].Add(edit.Quantity)
	}

	out := []ResidueLine{}
	for _, code := range order {
		left := requested[code].Sub(confirmed[code])
		if left.LessThanOrEqual(residueEpsilon) {
			continue
		}
		line := first[code]
		out = append(out, ResidueLine{
			ArticleCode: code,
			Description: line.Description,
			Unit:        line.Unit,
			Quantity:    left,
		})
	}
	return out
}

func containsDepartment(list []enums.Department, dept enums.Department) bool {
	for _, d := range list {
		if d == dept {
			return true
		}
	}
	return false
}
