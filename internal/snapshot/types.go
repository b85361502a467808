package snapshot

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ordersync-backend/pkg/enums"
)

// RawOrderLine is one row as extracted from the ERP.
type RawOrderLine struct {
	Serial           string          `json:"serial"`
	OrderNumber      string          `json:"order_number"`
	OrderDate        string          `json:"order_date"`
	CustomerCode     string          `json:"customer_code"`
	CustomerName     string          `json:"customer_name"`
	CustomerNote     string          `json:"customer_note"`
	Pickup           string          `json:"pickup"`
	ArticleCode      string          `json:"article_code"`
	Article          string          `json:"article"`
	Description      string          `json:"description"`
	ExtraDescription string          `json:"extra_description"`
	Quantity         decimal.Decimal `json:"quantity"`
	Unit             string          `json:"unit"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	DueDate          string          `json:"due_date"`
}

// OrderLine is an enriched line as held by a cache generation. Lines are never mutated
// once installed.
type OrderLine struct {
	RawOrderLine
	ArrivalDate        string                   `json:"arrival_date"`
	Department         enums.Department         `json:"department"`
	SecondaryUnit      string                   `json:"secondary_unit,omitempty"`
	SecondaryQuantity  *decimal.Decimal         `json:"secondary_quantity,omitempty"`
	ConversionOperator enums.ConversionOperator `json:"conversion_operator,omitempty"`
	ConversionFactor   *decimal.Decimal         `json:"conversion_factor,omitempty"`
}

// Signature is the identity of a line for diffing purposes.
type Signature struct {
	ArticleCode string
	Quantity    string
	Unit        string
}

// Signature returns the (article, quantity, unit) identity. Quantities are canonicalised
// so "5", "5.0" and "5.000" compare equal.
func (l OrderLine) Signature() Signature {
	return Signature{
		ArticleCode: l.ArticleCode,
		Quantity:    l.Quantity.String(),
		Unit:        l.Unit,
	}
}

// StockLine is the available balance of an article in a warehouse.
type StockLine struct {
	Warehouse   string          `json:"warehouse"`
	ArticleCode string          `json:"article_code"`
	Description string          `json:"description"`
	Available   decimal.Decimal `json:"available"`
}

// ArticleRow is a row of the ERP article reference extraction.
type ArticleRow struct {
	ArticleCode        string
	Department         string
	SecondaryPackaging string
	SecondaryUnit      string
	ConversionOperator string
	ConversionFactor   *decimal.Decimal
}

// OrderProducer yields a complete, materialized order snapshot.
type OrderProducer interface {
	ProduceOrders(ctx context.Context) ([]RawOrderLine, error)
}

// StockProducer yields a complete stock snapshot.
type StockProducer interface {
	ProduceStock(ctx context.Context) ([]StockLine, error)
}

// ArticleProducer yields the article reference table.
type ArticleProducer interface {
	ProduceArticles(ctx context.Context) ([]ArticleRow, error)
}

// GroupBySerial partitions lines by serial, preserving input order within each group.
func GroupBySerial(lines []OrderLine) map[string][]OrderLine {
	out := make(map[string][]OrderLine)
	for _, line := range lines {
		out[line.Serial] = append(out[line.Serial], line)
	}
	return out
}
