package snapshot

import "github.com/angelmondragon/ordersync-backend/pkg/db/models"

// ToModifiedLine copies the line into a durable modified-line record.
func (l OrderLine) ToModifiedLine(removed bool) models.ModifiedOrderLine {
	return models.ModifiedOrderLine{
		Serial:             l.Serial,
		OrderNumber:        l.OrderNumber,
		OrderDate:          l.OrderDate,
		CustomerCode:       l.CustomerCode,
		CustomerName:       l.CustomerName,
		CustomerNote:       l.CustomerNote,
		Pickup:             l.Pickup,
		ArticleCode:        l.ArticleCode,
		Article:            l.Article,
		Description:        l.Description,
		ExtraDescription:   l.ExtraDescription,
		Quantity:           l.Quantity,
		Unit:               l.Unit,
		UnitPrice:          l.UnitPrice,
		DueDate:            l.DueDate,
		Department:         l.Department,
		SecondaryUnit:      l.SecondaryUnit,
		SecondaryQuantity:  l.SecondaryQuantity,
		ConversionOperator: l.ConversionOperator,
		ConversionFactor:   l.ConversionFactor,
		Removed:            removed,
	}
}

// FromModifiedLine rebuilds a line from its durable record.
func FromModifiedLine(m models.ModifiedOrderLine) OrderLine {
	return OrderLine{
		RawOrderLine: RawOrderLine{
			Serial:           m.Serial,
			OrderNumber:      m.OrderNumber,
			OrderDate:        m.OrderDate,
			CustomerCode:     m.CustomerCode,
			CustomerName:     m.CustomerName,
			CustomerNote:     m.CustomerNote,
			Pickup:           m.Pickup,
			ArticleCode:      m.ArticleCode,
			Article:          m.Article,
			Description:      m.Description,
			ExtraDescription: m.ExtraDescription,
			Quantity:         m.Quantity,
			Unit:             m.Unit,
			UnitPrice:        m.UnitPrice,
			DueDate:          m.DueDate,
		},
		Department:         m.Department,
		SecondaryUnit:      m.SecondaryUnit,
		SecondaryQuantity:  m.SecondaryQuantity,
		ConversionOperator: m.ConversionOperator,
		ConversionFactor:   m.ConversionFactor,
	}
}

// RemovedKey identifies a removed line for deduplication.
func RemovedKey(serial, article, quantity, unit string) string {
	return serial + "\x00" + article + "\x00" + quantity + "\x00" + unit
}
