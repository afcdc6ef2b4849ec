package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rathunderbird-creator/romdoul1-sub000/internal/domain"
	"github.com/rathunderbird-creator/romdoul1-sub000/internal/store"
)

func posDraft(qty int) domain.OrderDraft {
	return domain.OrderDraft{
		Items:         []domain.LineItem{{ProductID: "p_speaker", Quantity: qty}},
		PaymentMethod: "Cash",
	}
}

func onlineDraft() domain.OrderDraft {
	return domain.OrderDraft{
		Items:    []domain.LineItem{{ProductID: "p_speaker", Quantity: 1}, {ProductID: "p_cable", Quantity: 2}},
		Type:     domain.OrderTypeOnline,
		Customer: &domain.CustomerSnapshot{Name: "Dara", Phone: "012345678", City: "Phnom Penh", Page: "Audio Shop"},
		Salesman: "Sopheak",
		Shipping: domain.Shipping{Company: "J&T"},
	}
}

func createOrder(t *testing.T, svc *Service, draft domain.OrderDraft) domain.Order {
	t.Helper()
	order, err := svc.CreateOrder(adminCtx(), draft, domain.OrderDefaults{})
	require.NoError(t, err)
	return order
}

func setShipping(t *testing.T, svc *Service, id string, status domain.ShippingStatus) domain.Order {
	t.Helper()
	order, err := svc.UpdateOrder(adminCtx(), id, domain.OrderPatch{Shipping: &domain.ShippingPatch{Status: &status}})
	require.NoError(t, err)
	return order
}

func TestCreateOrderHasNoStockEffect(t *testing.T) {
	svc, _ := newTestService(t, true)

	order := createOrder(t, svc, posDraft(2))
	assert.Equal(t, 10, stockOf(t, svc, "p_speaker"))
	assert.Equal(t, domain.ShippingPending, order.Shipping.Status)
	assert.Equal(t, domain.OrderTypePOS, order.Type)
	assert.Equal(t, domain.PaymentPaid, order.PaymentStatus)
	assert.Equal(t, "Bluetooth Speaker", order.Items[0].Name)
	assert.Equal(t, int64(2500), order.Items[0].PriceCents)
	assert.Equal(t, int64(5000), order.TotalCents)
	assert.Equal(t, int64(5000), order.AmountReceivedCents)
	assert.NotNil(t, order.SettleDate)
	assert.False(t, order.StockDeducted)
}

func TestCreateOnlineOrderDefaults(t *testing.T) {
	svc, _ := newTestService(t, true)

	draft := onlineDraft()
	draft.Salesman = ""
	draft.DiscountCents = 100
	order, err := svc.CreateOrder(adminCtx(), draft, domain.OrderDefaults{Salesman: "Default Seller", CustomerCare: "Dara"})
	require.NoError(t, err)
	assert.Equal(t, "Default Seller", order.Salesman)
	assert.Equal(t, "Dara", order.CustomerCare)
	assert.Equal(t, domain.PaymentUnpaid, order.PaymentStatus)
	assert.Equal(t, int64(2500+600-100), order.TotalCents)
	assert.Zero(t, order.AmountReceivedCents)
	assert.Nil(t, order.SettleDate)
}

func TestCreateOrderValidation(t *testing.T) {
	svc, _ := newTestService(t, true)

	cases := map[string]struct {
		draft domain.OrderDraft
		field string
	}{
		"no items":        {domain.OrderDraft{}, "items"},
		"zero quantity":   {posDraft(0), "items"},
		"starts shipped":  {func() domain.OrderDraft { d := posDraft(1); d.Shipping.Status = domain.ShippingShipped; return d }(), "shipping.status"},
		"online phone":    {func() domain.OrderDraft { d := onlineDraft(); d.Customer.Phone = ""; return d }(), "customer.phone"},
		"online company":  {func() domain.OrderDraft { d := onlineDraft(); d.Shipping.Company = ""; return d }(), "shipping.company"},
		"online salesman": {func() domain.OrderDraft { d := onlineDraft(); d.Salesman = ""; return d }(), "salesman"},
		"unknown product": {domain.OrderDraft{Items: []domain.LineItem{{ProductID: "nope", Quantity: 1}}}, "items"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateOrder(adminCtx(), tc.draft, domain.OrderDefaults{})
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}

	page, err := svc.FetchPage(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Orders)
}

func TestShipThenDeliverDeductsOnce(t *testing.T) {
	svc, _ := newTestService(t, true)
	order := createOrder(t, svc, posDraft(2))

	shipped := setShipping(t, svc, order.ID, domain.ShippingShipped)
	assert.True(t, shipped.StockDeducted)
	assert.Equal(t, 8, stockOf(t, svc, "p_speaker"))

	setShipping(t, svc, order.ID, domain.ShippingDelivered)
	assert.Equal(t, 8, stockOf(t, svc, "p_speaker"))
}

func TestShipThenRevertNetsZero(t *testing.T) {
	svc, _ := newTestService(t, true)
	order := createOrder(t, svc, posDraft(2))

	setShipping(t, svc, order.ID, domain.ShippingShipped)
	reverted := setShipping(t, svc, order.ID, domain.ShippingPending)
	assert.False(t, reverted.StockDeducted)
	assert.Equal(t, 10, stockOf(t, svc, "p_speaker"))
}

func TestDeliveredDeleteRestocks(t *testing.T) {
	svc, _ := newTestService(t, true)
	order := createOrder(t, svc, posDraft(3))
	setShipping(t, svc, order.ID, domain.ShippingShipped)
	setShipping(t, svc, order.ID, domain.ShippingDelivered)

	result, err := svc.DeleteOrders(adminCtx(), []string{order.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{order.ID}, result.Succeeded)
	assert.Equal(t, 10, stockOf(t, svc, "p_speaker"))
}

func TestDeletePendingOrderLeavesStock(t *testing.T) {
	svc, _ := newTestService(t, true)
	order := createOrder(t, svc, posDraft(3))

	_, err := svc.DeleteOrders(adminCtx(), []string{order.ID})
	require.NoError(t, err)
	assert.Equal(t, 10, stockOf(t, svc, "p_speaker"))
}

func TestReshipFromDelivered(t *testing.T) {
	for _, tc := range []struct {
		strict bool
		want   int
	}{{true, 8}, {false, 6}} {
		svc, _ := newTestService(t, tc.strict)
		order := createOrder(t, svc, posDraft(2))
		setShipping(t, svc, order.ID, domain.ShippingShipped)
		setShipping(t, svc, order.ID, domain.ShippingDelivered)
		setShipping(t, svc, order.ID, domain.ShippingShipped)
		assert.Equal(t, tc.want, stockOf(t, svc, "p_speaker"), "strict=%v", tc.strict)
	}
}

func TestReturnedOrderRestocksOnce(t *testing.T) {
	svc, _ := newTestService(t, true)
	order := createOrder(t, svc, posDraft(2))
	setShipping(t, svc, order.ID, domain.ShippingShipped)

	returned := setShipping(t, svc, order.ID, domain.ShippingReturned)
	assert.Equal(t, 10, stockOf(t, svc, "p_speaker"))
	assert.Equal(t, domain.PaymentCancel, returned.PaymentStatus)
	assert.Zero(t, returned.AmountReceivedCents)

	restocked, err := svc.RestockOrder(adminCtx(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ShippingReStock, restocked.Shipping.Status)
	assert.Equal(t, 10, stockOf(t, svc, "p_speaker"))

	_, err = svc.DeleteOrders(adminCtx(), []string{order.ID})
	require.NoError(t, err)
	assert.Equal(t, 10, stockOf(t, svc, "p_speaker"))
}

func TestRestockShippedOrderReturnsStock(t *testing.T) {
	svc, _ := newTestService(t, true)
	order := createOrder(t, svc, posDraft(4))
	setShipping(t, svc, order.ID, domain.ShippingShipped)
	require.Equal(t, 6, stockOf(t, svc, "p_speaker"))

	restocked, err := svc.RestockOrder(adminCtx(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, stockOf(t, svc, "p_speaker"))
	assert.Equal(t, domain.PaymentCancel, restocked.PaymentStatus)
	assert.False(t, restocked.StockDeducted)

	_, err = svc.RestockOrder(adminCtx(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPaymentCancelReturnsShippedOrder(t *testing.T) {
	svc, _ := newTestService(t, true)
	order := createOrder(t, svc, posDraft(2))
	setShipping(t, svc, order.ID, domain.ShippingShipped)

	cancel := domain.PaymentCancel
	updated, err := svc.UpdateOrder(adminCtx(), order.ID, domain.OrderPatch{PaymentStatus: &cancel})
	require.NoError(t, err)
	assert.Equal(t, domain.ShippingReturned, updated.Shipping.Status)
	assert.Zero(t, updated.AmountReceivedCents)
	assert.Nil(t, updated.SettleDate)
	assert.Equal(t, 10, stockOf(t, svc, "p_speaker"))
}

func TestPaidSetsAmountAndSettleDate(t *testing.T) {
	svc, _ := newTestService(t, true)
	order := createOrder(t, svc, onlineDraft())

	paid := domain.PaymentPaid
	updated, err := svc.UpdateOrder(adminCtx(), order.ID, domain.OrderPatch{PaymentStatus: &paid})
	require.NoError(t, err)
	assert.Equal(t, updated.TotalCents, updated.AmountReceivedCents)
	require.NotNil(t, updated.SettleDate)

	unpaid := domain.PaymentUnpaid
	updated, err = svc.UpdateOrder(adminCtx(), order.ID, domain.OrderPatch{PaymentStatus: &unpaid})
	require.NoError(t, err)
	assert.Zero(t, updated.AmountReceivedCents)
	assert.Nil(t, updated.SettleDate)
}

func TestUpdateOrderMergesNestedFields(t *testing.T) {
	svc, _ := newTestService(t, true)
	order := createOrder(t, svc, onlineDraft())

	tracking := " JT-0001 "
	city := "Siem Reap"
	updated, err := svc.UpdateOrder(adminCtx(), order.ID, domain.OrderPatch{
		Shipping: &domain.ShippingPatch{TrackingNumber: &tracking},
		Customer: &domain.CustomerPatch{City: &city},
	})
	require.NoError(t, err)
	assert.Equal(t, "JT-0001", updated.Shipping.TrackingNumber)
	assert.Equal(t, "J&T", updated.Shipping.Company)
	assert.Equal(t, "Siem Reap", updated.Customer.City)
	assert.Equal(t, "Dara", updated.Customer.Name)
	assert.Equal(t, "admin", updated.LastEditedBy)
	assert.NotNil(t, updated.LastEditedAt)
}

func TestUpdateOrderItemsRecomputeTotal(t *testing.T) {
	svc, _ := newTestService(t, true)
	order := createOrder(t, svc, posDraft(1))

	items := []domain.LineItem{{ProductID: "p_cable", Quantity: 5}}
	shipped := domain.ShippingShipped
	updated, err := svc.UpdateOrder(adminCtx(), order.ID, domain.OrderPatch{
		Items:    &items,
		Shipping: &domain.ShippingPatch{Status: &shipped},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1500), updated.TotalCents)
	assert.Equal(t, 10, stockOf(t, svc, "p_speaker"))
	assert.Equal(t, 95, stockOf(t, svc, "p_cable"))
}

func TestRejectedUpdateLeavesOrderAndStock(t *testing.T) {
	svc, _ := newTestService(t, true)
	order := createOrder(t, svc, posDraft(2))

	items := []domain.LineItem{{ProductID: "nope", Quantity: 1}}
	shipped := domain.ShippingShipped
	_, err := svc.UpdateOrder(adminCtx(), order.ID, domain.OrderPatch{
		Items:    &items,
		Shipping: &domain.ShippingPatch{Status: &shipped},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	current, err := svc.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ShippingPending, current.Shipping.Status)
	assert.Equal(t, 10, stockOf(t, svc, "p_speaker"))

	bogus := domain.ShippingStatus("Lost")
	_, err = svc.UpdateOrder(adminCtx(), order.ID, domain.OrderPatch{Shipping: &domain.ShippingPatch{Status: &bogus}})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "shipping.status", verr.Field)
}

func TestUpdateOrdersReportsPerOrder(t *testing.T) {
	svc, _ := newTestService(t, true)
	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		ids = append(ids, createOrder(t, svc, posDraft(1)).ID)
	}

	shipped := domain.ShippingShipped
	result, err := svc.UpdateOrders(adminCtx(), append(ids, "missing", ids[0]), domain.OrderPatch{
		Shipping: &domain.ShippingPatch{Status: &shipped},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, result.Succeeded)
	assert.Equal(t, []string{"missing"}, result.Skipped)
	assert.Empty(t, result.Failed)
	assert.Equal(t, 5, stockOf(t, svc, "p_speaker"))
}

func TestUpdateOrdersMergesShippingPerOrder(t *testing.T) {
	svc, _ := newTestService(t, true)

	first := onlineDraft()
	first.Shipping = domain.Shipping{Company: "J&T", TrackingNumber: "JT-1001", CostCents: 150}
	second := onlineDraft()
	second.Shipping = domain.Shipping{Company: "VET", TrackingNumber: "VET-2002", StaffName: "Rith"}
	a := createOrder(t, svc, first)
	b := createOrder(t, svc, second)

	shipped := domain.ShippingShipped
	result, err := svc.UpdateOrders(adminCtx(), []string{a.ID, b.ID}, domain.OrderPatch{
		Shipping: &domain.ShippingPatch{Status: &shipped},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, result.Succeeded)

	gotA, err := svc.GetOrder(adminCtx(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Shipping{Company: "J&T", TrackingNumber: "JT-1001", CostCents: 150, Status: domain.ShippingShipped}, gotA.Shipping)

	gotB, err := svc.GetOrder(adminCtx(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Shipping{Company: "VET", TrackingNumber: "VET-2002", StaffName: "Rith", Status: domain.ShippingShipped}, gotB.Shipping)
}
