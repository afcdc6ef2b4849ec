// Package transition decides how a shipping status change moves product stock.
package transition

import "github.com/rathunderbird-creator/romdoul1-sub000/internal/domain"

// ComputeInventoryDelta returns the stock deltas for moving an order from old
// to next. The first matching rule wins:
//
//	anything -> Shipped      deduct every line item
//	Shipped  -> Delivered    nothing
//	Shipped  -> other        restore every line item
//	otherwise                nothing
func ComputeInventoryDelta(old, next domain.ShippingStatus, items []domain.LineItem) []domain.StockDelta {
	switch {
	case old != domain.ShippingShipped && next == domain.ShippingShipped:
		return itemDeltas(items, -1)
	case old == domain.ShippingShipped && next == domain.ShippingDelivered:
		return nil
	case old == domain.ShippingShipped && next != domain.ShippingShipped:
		return itemDeltas(items, 1)
	default:
		return nil
	}
}

// Restockable reports whether deleting an order in this status returns its items to stock.
func Restockable(status domain.ShippingStatus) bool {
	switch status {
	case domain.ShippingShipped, domain.ShippingDelivered, domain.ShippingReturned:
		return true
	default:
		return false
	}
}

// RestockOnDelete returns the deltas owed when an order is removed.
func RestockOnDelete(order domain.Order) []domain.StockDelta {
	if !Restockable(order.Shipping.Status) {
		return nil
	}
	return itemDeltas(order.Items, 1)
}

// itemDeltas merges line items for the same product and drops zero quantities.
func itemDeltas(items []domain.LineItem, sign int) []domain.StockDelta {
	if len(items) == 0 {
		return nil
	}
	index := make(map[string]int, len(items))
	deltas := make([]domain.StockDelta, 0, len(items))
	for _, item := range items {
		if item.ProductID == "" || item.Quantity == 0 {
			continue
		}
		if pos, ok := index[item.ProductID]; ok {
			deltas[pos].Delta += sign * item.Quantity
			continue
		}
		index[item.ProductID] = len(deltas)
		deltas = append(deltas, domain.StockDelta{ProductID: item.ProductID, Delta: sign * item.Quantity})
	}
	out := deltas[:0]
	for _, d := range deltas {
		if d.Delta != 0 {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
