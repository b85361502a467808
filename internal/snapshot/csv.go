package snapshot

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
)

// Column names written by the ERP extraction scripts.
const (
	colSerial           = "seriale"
	colOrderNumber      = "numero_ordine"
	colOrderDate        = "data_ordine"
	colCustomerCode     = "cliente_codice"
	colCustomerName     = "nome_cliente"
	colCustomerNote     = "note_cliente"
	colPickup           = "ritiro"
	colArticleCode      = "codice_articolo"
	colArticle          = "articolo"
	colDescription      = "descrizione_articolo"
	colExtraDescription = "descrizione_supplementare"
	colQuantity         = "quantita"
	colUnit             = "unita_misura"
	colUnitPrice        = "prezzo_unitario"
	colDueDate          = "data_evasione"

	colWarehouse        = "CODMAG"
	colStockArticle     = "CODART"
	colStockDescription = "Descrizione_Articolo"
	colStockAvailable   = "Saldo_Disponibile"

	colPackaging1       = "tipo_collo_1"
	colPackaging2       = "tipo_collo_2"
	colSecondaryUnit    = "unita_misura_2"
	colConversionOp     = "operatore_conversione"
	colConversionFactor = "fattore_conversione"
)

type csvTable struct {
	index map[string]int
	rows  [][]string
}

func readTable(r io.Reader, required ...string) (*csvTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("snapshot is empty: missing header")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("snapshot missing column %q", col)
		}
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return &csvTable{index: index, rows: rows}, nil
}

func (t *csvTable) get(row []string, col string) string {
	i, ok := t.index[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseNumber accepts both "1.5" and "1,5"; blanks and garbage read as zero.
func parseNumber(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, false
	}
	if strings.Contains(raw, ",") && !strings.Contains(raw, ".") {
		raw = strings.ReplaceAll(raw, ",", ".")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ParseOrders decodes the order extraction CSV.
func ParseOrders(r io.Reader) ([]RawOrderLine, error) {
	table, err := readTable(r, colSerial, colArticleCode, colQuantity, colUnit)
	if err != nil {
		return nil, err
	}

	lines := make([]RawOrderLine, 0, len(table.rows))
	for _, row := range table.rows {
		qty, _ := parseNumber(table.get(row, colQuantity))
		price, _ := parseNumber(table.get(row, colUnitPrice))
		lines = append(lines, RawOrderLine{
			Serial:           table.get(row, colSerial),
			OrderNumber:      table.get(row, colOrderNumber),
			OrderDate:        table.get(row, colOrderDate),
			CustomerCode:     table.get(row, colCustomerCode),
			CustomerName:     table.get(row, colCustomerName),
			CustomerNote:     table.get(row, colCustomerNote),
			Pickup:           table.get(row, colPickup),
			ArticleCode:      table.get(row, colArticleCode),
			Article:          table.get(row, colArticle),
			Description:      table.get(row, colDescription),
			ExtraDescription: table.get(row, colExtraDescription),
			Quantity:         qty,
			Unit:             table.get(row, colUnit),
			UnitPrice:        price,
			DueDate:          table.get(row, colDueDate),
		})
	}
	return lines, nil
}

// ParseStock decodes the stock extraction CSV.
func ParseStock(r io.Reader) ([]StockLine, error) {
	table, err := readTable(r, colStockArticle, colStockAvailable)
	if err != nil {
		return nil, err
	}

	lines := make([]StockLine, 0, len(table.rows))
	for _, row := range table.rows {
		code := table.get(row, colStockArticle)
		if code == "" {
			continue
		}
		available, _ := parseNumber(table.get(row, colStockAvailable))
		lines = append(lines, StockLine{
			Warehouse:   table.get(row, colWarehouse),
			ArticleCode: code,
			Description: table.get(row, colStockDescription),
			Available:   available,
		})
	}
	return lines, nil
}

// ParseArticles decodes the article reference CSV.
func ParseArticles(r io.Reader) ([]ArticleRow, error) {
	table, err := readTable(r, colArticleCode, colPackaging1)
	if err != nil {
		return nil, err
	}

	rows := make([]ArticleRow, 0, len(table.rows))
	for _, row := range table.rows {
		code := table.get(row, colArticleCode)
		if code == "" {
			continue
		}
		out := ArticleRow{
			ArticleCode:        code,
			Department:         table.get(row, colPackaging1),
			SecondaryPackaging: table.get(row, colPackaging2),
			SecondaryUnit:      table.get(row, colSecondaryUnit),
			ConversionOperator: table.get(row, colConversionOp),
		}
		if factor, ok := parseNumber(table.get(row, colConversionFactor)); ok {
			out.ConversionFactor = &factor
		}
		rows = append(rows, out)
	}
	return rows, nil
}
