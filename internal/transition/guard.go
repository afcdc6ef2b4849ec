package transition

import "github.com/rathunderbird-creator/romdoul1-sub000/internal/domain"

// Outcome is the ledger effect of a status change together with the
// resulting value of the order's StockDeducted flag.
type Outcome struct {
	Deltas        []domain.StockDelta
	StockDeducted bool
}

// Reconcile applies ComputeInventoryDelta to order moving to next. In strict
// mode a deduction is only applied while the order holds no deducted stock and
// a restore only while it does, so permissive status walks such as
// Delivered -> Shipped or Returned -> delete never double-apply.
func Reconcile(order domain.Order, next domain.ShippingStatus, strict bool) Outcome {
	deltas := ComputeInventoryDelta(order.Shipping.Status, next, order.Items)
	return guard(order, deltas, strict)
}

// ReconcileRestock returns the stock owed back when order is deleted or
// explicitly restocked.
func ReconcileRestock(order domain.Order, strict bool) Outcome {
	return guard(order, RestockOnDelete(order), strict)
}

func guard(order domain.Order, deltas []domain.StockDelta, strict bool) Outcome {
	deducted := order.StockDeducted
	if len(deltas) == 0 {
		return Outcome{StockDeducted: deducted}
	}
	restoring := deltas[0].Delta > 0
	if strict {
		if restoring && !deducted {
			return Outcome{StockDeducted: false}
		}
		if !restoring && deducted {
			return Outcome{StockDeducted: true}
		}
	}
	return Outcome{Deltas: deltas, StockDeducted: !restoring}
}
