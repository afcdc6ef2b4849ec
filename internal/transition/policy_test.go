package transition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rathunderbird-creator/romdoul1-sub000/internal/domain"
)

var testItems = []domain.LineItem{
	{ProductID: "p1", Name: "Speaker", PriceCents: 1500, Quantity: 2},
	{ProductID: "p2", Name: "Cable", PriceCents: 300, Quantity: 1},
}

func sumFor(deltas []domain.StockDelta, productID string) int {
	total := 0
	for _, d := range deltas {
		if d.ProductID == productID {
			total += d.Delta
		}
	}
	return total
}

func TestComputeInventoryDeltaRules(t *testing.T) {
	cases := []struct {
		name string
		old  domain.ShippingStatus
		next domain.ShippingStatus
		want int
	}{
		{"pending to shipped deducts", domain.ShippingPending, domain.ShippingShipped, -2},
		{"ordered to shipped deducts", domain.ShippingOrdered, domain.ShippingShipped, -2},
		{"returned to shipped deducts", domain.ShippingReturned, domain.ShippingShipped, -2},
		{"shipped to delivered keeps", domain.ShippingShipped, domain.ShippingDelivered, 0},
		{"shipped to pending restores", domain.ShippingShipped, domain.ShippingPending, 2},
		{"shipped to returned restores", domain.ShippingShipped, domain.ShippingReturned, 2},
		{"shipped to cancelled restores", domain.ShippingShipped, domain.ShippingCancelled, 2},
		{"shipped to restock restores", domain.ShippingShipped, domain.ShippingReStock, 2},
		{"pending to delivered keeps", domain.ShippingPending, domain.ShippingDelivered, 0},
		{"delivered to returned keeps", domain.ShippingDelivered, domain.ShippingReturned, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			deltas := ComputeInventoryDelta(tc.old, tc.next, testItems)
			assert.Equal(t, tc.want, sumFor(deltas, "p1"))
			assert.Equal(t, tc.want/2, sumFor(deltas, "p2"))
		})
	}
}

func TestComputeInventoryDeltaSameStatusIsZero(t *testing.T) {
	for _, status := range domain.ShippingStatuses {
		assert.Empty(t, ComputeInventoryDelta(status, status, testItems), "status %s", status)
	}
}

func TestComputeInventoryDeltaMergesDuplicateProducts(t *testing.T) {
	items := []domain.LineItem{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "p1", Quantity: 3},
	}
	deltas := ComputeInventoryDelta(domain.ShippingPending, domain.ShippingShipped, items)
	require.Len(t, deltas, 1)
	assert.Equal(t, domain.StockDelta{ProductID: "p1", Delta: -4}, deltas[0])
}

func TestRestockOnDelete(t *testing.T) {
	for _, status := range []domain.ShippingStatus{domain.ShippingShipped, domain.ShippingDelivered, domain.ShippingReturned} {
		order := domain.Order{Items: testItems, Shipping: domain.Shipping{Status: status}}
		assert.Equal(t, 2, sumFor(RestockOnDelete(order), "p1"), "status %s", status)
	}
	for _, status := range []domain.ShippingStatus{domain.ShippingPending, domain.ShippingOrdered, domain.ShippingCancelled, domain.ShippingReStock} {
		order := domain.Order{Items: testItems, Shipping: domain.Shipping{Status: status}}
		assert.Empty(t, RestockOnDelete(order), "status %s", status)
	}
}

// walk replays a status history and returns the net delta for p1.
func walk(t *testing.T, strict bool, statuses ...domain.ShippingStatus) (int, domain.Order) {
	t.Helper()
	order := domain.Order{Items: testItems, Shipping: domain.Shipping{Status: statuses[0]}}
	net := 0
	for _, next := range statuses[1:] {
		outcome := Reconcile(order, next, strict)
		net += sumFor(outcome.Deltas, "p1")
		order.Shipping.Status = next
		order.StockDeducted = outcome.StockDeducted
	}
	return net, order
}

func TestStatusHistoriesNetDelta(t *testing.T) {
	for _, strict := range []bool{true, false} {
		net, _ := walk(t, strict, domain.ShippingPending, domain.ShippingShipped, domain.ShippingDelivered)
		assert.Equal(t, -2, net, "pending->shipped->delivered strict=%v", strict)

		net, _ = walk(t, strict, domain.ShippingPending, domain.ShippingShipped, domain.ShippingPending)
		assert.Equal(t, 0, net, "pending->shipped->pending strict=%v", strict)

		net, order := walk(t, strict, domain.ShippingPending, domain.ShippingShipped, domain.ShippingDelivered)
		net += sumFor(ReconcileRestock(order, strict).Deltas, "p1")
		assert.Equal(t, 0, net, "shipped->delivered->delete strict=%v", strict)

		net, order = walk(t, strict, domain.ShippingPending)
		net += sumFor(ReconcileRestock(order, strict).Deltas, "p1")
		assert.Equal(t, 0, net, "pending->delete strict=%v", strict)
	}
}

func TestStrictGuardPreventsDoubleApplication(t *testing.T) {
	net, _ := walk(t, true, domain.ShippingPending, domain.ShippingShipped, domain.ShippingDelivered, domain.ShippingShipped)
	assert.Equal(t, -2, net, "re-entering shipped from delivered must not deduct twice")

	net, order := walk(t, true, domain.ShippingPending, domain.ShippingShipped, domain.ShippingReturned)
	net += sumFor(ReconcileRestock(order, true).Deltas, "p1")
	assert.Equal(t, 0, net, "returned order restocked on revert must not restock again on delete")

	net, _ = walk(t, false, domain.ShippingPending, domain.ShippingShipped, domain.ShippingDelivered, domain.ShippingShipped)
	assert.Equal(t, -4, net, "lenient mode follows the literal rules")
}

func TestReconcileFlagsDeductedStock(t *testing.T) {
	order := domain.Order{Items: testItems, Shipping: domain.Shipping{Status: domain.ShippingPending}}
	outcome := Reconcile(order, domain.ShippingShipped, true)
	assert.True(t, outcome.StockDeducted)

	order.Shipping.Status = domain.ShippingShipped
	order.StockDeducted = true
	outcome = Reconcile(order, domain.ShippingCancelled, true)
	assert.False(t, outcome.StockDeducted)
	assert.Equal(t, 2, sumFor(outcome.Deltas, "p1"))
}
