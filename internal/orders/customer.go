package orders

import (
	"strings"

	"github.com/angelmondragon/ordersync-backend/internal/snapshot"
)

// Walk-in sales are booked on a generic customer; the real name is typed in the note.
var genericCustomerCodes = map[string]bool{
	"1000":            true,
	"000000000001000": true,
}

// DisplayCustomer returns the name shown for the order's customer.
func DisplayCustomer(line snapshot.OrderLine) string {
	if genericCustomerCodes[strings.TrimSpace(line.CustomerCode)] {
		if note := strings.TrimSpace(line.CustomerNote); note != "" {
			return note
		}
	}
	return line.CustomerName
}

// IsPickup reports whether the pickup note asks for collection at the counter.
func IsPickup(note string) bool {
	lower := strings.ToLower(note)
	return strings.Contains(lower, "ritiro") || strings.Contains(lower, "ritira")
}
