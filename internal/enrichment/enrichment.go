// Package enrichment derives the picking department and secondary unit of each order line
// from the article reference table.
package enrichment

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/angelmondragon/ordersync-backend/internal/snapshot"
	"github.com/angelmondragon/ordersync-backend/pkg/enums"
)

// Mode selects the blank-article policy.
type Mode int

const (
	// ModeIncremental leaves blank article codes without a department.
	ModeIncremental Mode = iota
	// ModeFull assigns the generic department to blank article codes.
	ModeFull
)

func (m Mode) String() string {
	if m == ModeFull {
		return "full"
	}
	return "incremental"
}

const secondaryPlaces = 3

// Reference is what the article table knows about one article.
type Reference struct {
	Department    enums.Department
	SecondaryUnit string
	Operator      enums.ConversionOperator
	Factor        *decimal.Decimal
}

// Lookup resolves article references.
type Lookup interface {
	Lookup(articleCode string) (Reference, bool)
}

// MapLookup is an in-memory Lookup.
type MapLookup map[string]Reference

func (m MapLookup) Lookup(code string) (Reference, bool) {
	ref, ok := m[code]
	return ref, ok
}

// Warning describes a degraded enrichment. It never aborts a refresh.
type Warning struct {
	Serial      string
	ArticleCode string
	Reason      string
}

func (w *Warning) Error() string {
	return fmt.Sprintf("order %s article %q: %s", w.Serial, w.ArticleCode, w.Reason)
}

// Result is an enriched line plus the warnings raised while producing it.
type Result struct {
	Line     snapshot.OrderLine
	Warnings []error
}

// Enricher applies the reference table to order lines.
type Enricher struct {
	lookup Lookup
	now    func() time.Time
}

// New builds an Enricher. now stamps the arrival date; nil uses time.Now.
func New(lookup Lookup, now func() time.Time) *Enricher {
	if lookup == nil {
		lookup = MapLookup{}
	}
	if now == nil {
		now = time.Now
	}
	return &Enricher{lookup: lookup, now: now}
}

// Enrich recomputes every derived field of line. Applying it to an already enriched
// line with the same reference data yields the same line.
func (e *Enricher) Enrich(line snapshot.OrderLine, mode Mode) Result {
	out := snapshot.OrderLine{
		RawOrderLine: line.RawOrderLine,
		ArrivalDate:  line.ArrivalDate,
	}
	if out.ArrivalDate == "" {
		out.ArrivalDate = e.now().Format(time.DateOnly)
	}
	res := Result{Line: out}

	code := strings.TrimSpace(line.ArticleCode)
	if code == "" {
		if mode == ModeFull {
			res.Line.Department = enums.DepartmentDefault
		}
		return res
	}

	ref, ok := e.lookup.Lookup(code)
	if !ok {
		res.Line.Department = enums.DepartmentDefault
		res.Warnings = append(res.Warnings, &Warning{Serial: line.Serial, ArticleCode: code, Reason: "article missing from reference, using default department"})
		return res
	}

	res.Line.Department = ref.Department
	if res.Line.Department == "" {
		res.Line.Department = enums.DepartmentDefault
	}

	if ref.SecondaryUnit == "" {
		return res
	}
	res.Line.SecondaryUnit = ref.SecondaryUnit

	qty, warn := convert(line.Quantity, ref)
	if warn != "" {
		res.Warnings = append(res.Warnings, &Warning{Serial: line.Serial, ArticleCode: code, Reason: warn})
	}
	if qty == nil {
		return res
	}
	factor := *ref.Factor
	res.Line.SecondaryQuantity = qty
	res.Line.ConversionOperator = ref.Operator
	res.Line.ConversionFactor = &factor
	return res
}

// convert applies the reference conversion. A nil result means "no secondary quantity";
// the string explains why when the cause is worth reporting.
func convert(qty decimal.Decimal, ref Reference) (*decimal.Decimal, string) {
	if ref.Operator == "" || ref.Factor == nil || qty.IsZero() {
		return nil, ""
	}
	var out decimal.Decimal
	switch ref.Operator {
	case enums.ConversionMultiply:
		out = qty.Mul(*ref.Factor)
	case enums.ConversionDivide:
		if ref.Factor.IsZero() {
			return nil, "conversion factor is zero"
		}
		out = qty.Div(*ref.Factor)
	default:
		return nil, fmt.Sprintf("unsupported conversion operator %q", ref.Operator)
	}
	out = out.Round(secondaryPlaces)
	return &out, ""
}

// EnrichAll enriches a raw snapshot. Warnings are combined into the returned error,
// which callers log; the lines are always complete.
func (e *Enricher) EnrichAll(raws []snapshot.RawOrderLine, mode Mode) ([]snapshot.OrderLine, error) {
	lines := make([]snapshot.OrderLine, 0, len(raws))
	var warnings error
	for _, raw := range raws {
		res := e.Enrich(snapshot.OrderLine{RawOrderLine: raw}, mode)
		lines = append(lines, res.Line)
		warnings = multierr.Append(warnings, multierr.Combine(res.Warnings...))
	}
	return lines, warnings
}
