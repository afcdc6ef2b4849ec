package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rathunderbird-creator/romdoul1-sub000/internal/domain"
	"github.com/rathunderbird-creator/romdoul1-sub000/internal/transition"
	"github.com/rathunderbird-creator/romdoul1-sub000/internal/xid"
)

// CreateOrder validates and stores a new order. Orders start Ordered or
// Pending, so creation never moves stock.
func (s *Service) CreateOrder(ctx context.Context, draft domain.OrderDraft, defaults domain.OrderDefaults) (domain.Order, error) {
	if draft.Type == "" {
		draft.Type = domain.OrderTypePOS
	}
	if strings.TrimSpace(draft.Salesman) == "" {
		draft.Salesman = defaults.Salesman
	}
	if strings.TrimSpace(draft.CustomerCare) == "" {
		draft.CustomerCare = defaults.CustomerCare
	}
	if draft.Shipping.Status == "" {
		draft.Shipping.Status = domain.ShippingPending
	}
	if draft.PaymentStatus == "" {
		draft.PaymentStatus = domain.PaymentUnpaid
		if draft.Type == domain.OrderTypePOS {
			draft.PaymentStatus = domain.PaymentPaid
		}
	}
	if err := validateDraft(draft); err != nil {
		return domain.Order{}, err
	}

	items, err := s.fillSnapshots(ctx, draft.Items)
	if err != nil {
		return domain.Order{}, err
	}

	now := s.now()
	date := now
	if draft.Date != nil && !draft.Date.IsZero() {
		date = draft.Date.UTC()
	}
	order := domain.Order{
		ID:            xid.New("ord"),
		Items:         items,
		DiscountCents: draft.DiscountCents,
		Date:          date,
		PaymentMethod: strings.TrimSpace(draft.PaymentMethod),
		Type:          draft.Type,
		Customer:      trimCustomer(draft.Customer),
		Salesman:      strings.TrimSpace(draft.Salesman),
		CustomerCare:  strings.TrimSpace(draft.CustomerCare),
		Remark:        strings.TrimSpace(draft.Remark),
		PaymentStatus: draft.PaymentStatus,
		OrderStatus:   domain.OrderOpen,
		Shipping:      draft.Shipping,
	}
	order.TotalCents = order.ComputeTotal()
	if order.PaymentStatus == domain.PaymentPaid || order.PaymentStatus == domain.PaymentSettle {
		order.AmountReceivedCents = order.TotalCents
		order.SettleDate = &now
	}

	created, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return domain.Order{}, persistErr("create order", err)
	}
	s.logger.Info("order created",
		zap.String("order_id", created.ID),
		zap.String("type", string(created.Type)),
		zap.Int64("total_cents", created.TotalCents),
		zap.String("actor", actorName(ctx)),
	)
	return *created, nil
}

func validateDraft(draft domain.OrderDraft) error {
	if len(draft.Items) == 0 {
		return invalid("items", "at least one item is required")
	}
	if err := validateItems(draft.Items); err != nil {
		return err
	}
	if draft.DiscountCents < 0 {
		return invalid("discount_cents", "must not be negative")
	}
	if draft.Type != domain.OrderTypePOS && draft.Type != domain.OrderTypeOnline {
		return invalid("type", "must be POS or Online")
	}
	if draft.Shipping.Status != domain.ShippingOrdered && draft.Shipping.Status != domain.ShippingPending {
		return invalid("shipping.status", "new orders must start Ordered or Pending")
	}
	if !draft.PaymentStatus.Valid() {
		return invalid("payment_status", "unknown payment status")
	}
	if draft.Type != domain.OrderTypeOnline {
		return nil
	}

	c := draft.Customer
	switch {
	case c == nil || strings.TrimSpace(c.Name) == "":
		return invalid("customer.name", "is required")
	case strings.TrimSpace(c.Phone) == "":
		return invalid("customer.phone", "is required")
	case strings.TrimSpace(c.City) == "":
		return invalid("customer.city", "is required")
	case strings.TrimSpace(c.Page) == "":
		return invalid("customer.page", "is required")
	case strings.TrimSpace(draft.Salesman) == "":
		return invalid("salesman", "is required")
	case strings.TrimSpace(draft.Shipping.Company) == "":
		return invalid("shipping.company", "is required")
	}
	return nil
}

func validateItems(items []domain.LineItem) error {
	for _, item := range items {
		if strings.TrimSpace(item.ProductID) == "" {
			return invalid("items", "product_id is required")
		}
		if item.Quantity <= 0 {
			return invalid("items", "quantity must be positive")
		}
		if item.PriceCents < 0 {
			return invalid("items", "price must not be negative")
		}
	}
	return nil
}

// fillSnapshots copies the current catalog name and price into items that
// arrive without them. Prices already present are kept as the snapshot.
func (s *Service) fillSnapshots(ctx context.Context, items []domain.LineItem) ([]domain.LineItem, error) {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, strings.TrimSpace(item.ProductID))
	}
	products, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, persistErr("load products", err)
	}

	out := make([]domain.LineItem, 0, len(items))
	for _, item := range items {
		item.ProductID = strings.TrimSpace(item.ProductID)
		product, ok := products[item.ProductID]
		if !ok {
			return nil, invalid("items", "unknown product "+item.ProductID)
		}
		if strings.TrimSpace(item.Name) == "" {
			item.Name = product.Name
		}
		if item.PriceCents == 0 {
			item.PriceCents = product.PriceCents
		}
		out = append(out, item)
	}
	return out, nil
}

func trimCustomer(c *domain.CustomerSnapshot) *domain.CustomerSnapshot {
	if c == nil {
		return nil
	}
	out := domain.CustomerSnapshot{
		Name:     strings.TrimSpace(c.Name),
		Phone:    strings.TrimSpace(c.Phone),
		Address:  strings.TrimSpace(c.Address),
		City:     strings.TrimSpace(c.City),
		Page:     strings.TrimSpace(c.Page),
		Platform: strings.TrimSpace(c.Platform),
	}
	return &out
}

func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Order{}, persistErr("get order", err)
	}
	return *order, nil
}

// UpdateOrder merges patch into the stored order. A shipping status change
// runs through the transition policy and its stock deltas commit in the same
// unit as the order write; on failure neither is visible.
func (s *Service) UpdateOrder(ctx context.Context, id string, patch domain.OrderPatch) (domain.Order, error) {
	if err := validatePatch(patch); err != nil {
		return domain.Order{}, err
	}
	var snapshots []domain.LineItem
	if patch.Items != nil {
		filled, err := s.fillSnapshots(ctx, *patch.Items)
		if err != nil {
			return domain.Order{}, err
		}
		snapshots = filled
	}

	editor := actorName(ctx)
	updated, levels, err := s.repo.UpdateOrder(ctx, strings.TrimSpace(id), func(current domain.Order) (domain.Order, []domain.StockDelta, error) {
		now := s.now()
		next := mergePatch(current, patch, snapshots)
		applyPaymentRules(current, &next, patch, now)
		outcome := s.reconcile(current, next)
		next.StockDeducted = outcome.StockDeducted
		next.LastEditedAt = &now
		next.LastEditedBy = editor
		return next, outcome.Deltas, nil
	})
	if err != nil {
		return domain.Order{}, persistErr("update order", err)
	}
	s.warnNegative("update order", levels)
	if len(levels) > 0 {
		s.logger.Info("order stock reconciled",
			zap.String("order_id", updated.ID),
			zap.String("shipping_status", string(updated.Shipping.Status)),
			zap.Int("products", len(levels)),
		)
	}
	return *updated, nil
}

// reconcile decides the ledger effect of moving current to next. A deduction
// uses the items being shipped; a restore returns the items that were deducted.
func (s *Service) reconcile(current, next domain.Order) transition.Outcome {
	basis := current
	if next.Shipping.Status == domain.ShippingShipped {
		basis.Items = next.Items
	}
	return transition.Reconcile(basis, next.Shipping.Status, s.strict)
}

func validatePatch(patch domain.OrderPatch) error {
	if patch.Items != nil {
		if len(*patch.Items) == 0 {
			return invalid("items", "at least one item is required")
		}
		if err := validateItems(*patch.Items); err != nil {
			return err
		}
	}
	if patch.DiscountCents != nil && *patch.DiscountCents < 0 {
		return invalid("discount_cents", "must not be negative")
	}
	if patch.Type != nil && *patch.Type != domain.OrderTypePOS && *patch.Type != domain.OrderTypeOnline {
		return invalid("type", "must be POS or Online")
	}
	if patch.PaymentStatus != nil && !patch.PaymentStatus.Valid() {
		return invalid("payment_status", "unknown payment status")
	}
	if patch.OrderStatus != nil && *patch.OrderStatus != domain.OrderOpen && *patch.OrderStatus != domain.OrderClosed {
		return invalid("order_status", "must be Open or Closed")
	}
	if patch.Shipping != nil && patch.Shipping.Status != nil && !patch.Shipping.Status.Valid() {
		return invalid("shipping.status", "unknown shipping status")
	}
	if patch.AmountReceivedCents != nil && *patch.AmountReceivedCents < 0 {
		return invalid("amount_received_cents", "must not be negative")
	}
	return nil
}

// mergePatch applies every non-nil field. Nested shipping and customer
// patches merge field by field into the order's current values.
func mergePatch(current domain.Order, patch domain.OrderPatch, items []domain.LineItem) domain.Order {
	next := current.Clone()
	if patch.Items != nil {
		next.Items = append([]domain.LineItem(nil), items...)
	}
	if patch.DiscountCents != nil {
		next.DiscountCents = *patch.DiscountCents
	}
	if patch.Items != nil || patch.DiscountCents != nil {
		next.TotalCents = next.ComputeTotal()
	}
	if patch.Date != nil {
		next.Date = patch.Date.UTC()
	}
	if patch.PaymentMethod != nil {
		next.PaymentMethod = strings.TrimSpace(*patch.PaymentMethod)
	}
	if patch.Type != nil {
		next.Type = *patch.Type
	}
	if patch.Salesman != nil {
		next.Salesman = strings.TrimSpace(*patch.Salesman)
	}
	if patch.CustomerCare != nil {
		next.CustomerCare = strings.TrimSpace(*patch.CustomerCare)
	}
	if patch.Remark != nil {
		next.Remark = *patch.Remark
	}
	if patch.AmountReceivedCents != nil {
		next.AmountReceivedCents = *patch.AmountReceivedCents
	}
	if patch.SettleDate != nil {
		settle := patch.SettleDate.UTC()
		next.SettleDate = &settle
	}
	if patch.PaymentStatus != nil {
		next.PaymentStatus = *patch.PaymentStatus
	}
	if patch.OrderStatus != nil {
		next.OrderStatus = *patch.OrderStatus
	}
	if c := patch.Customer; c != nil {
		customer := domain.CustomerSnapshot{}
		if next.Customer != nil {
			customer = *next.Customer
		}
		mergeString(&customer.Name, c.Name)
		mergeString(&customer.Phone, c.Phone)
		mergeString(&customer.Address, c.Address)
		mergeString(&customer.City, c.City)
		mergeString(&customer.Page, c.Page)
		mergeString(&customer.Platform, c.Platform)
		next.Customer = &customer
	}
	if sp := patch.Shipping; sp != nil {
		mergeString(&next.Shipping.Company, sp.Company)
		mergeString(&next.Shipping.TrackingNumber, sp.TrackingNumber)
		mergeString(&next.Shipping.StaffName, sp.StaffName)
		if sp.CostCents != nil {
			next.Shipping.CostCents = *sp.CostCents
		}
		if sp.Status != nil {
			next.Shipping.Status = *sp.Status
		}
	}
	return next
}

func mergeString(dst *string, val *string) {
	if val != nil {
		*dst = strings.TrimSpace(*val)
	}
}

// applyPaymentRules couples payment and shipping fields when a patch changes
// one without the other:
//
//	payment Paid or Settle   amount received = total, settle date = now
//	payment Cancel           amount and settle date cleared, Shipped or Delivered becomes Returned
//	payment Unpaid/Not Settle amount and settle date cleared
//	shipping Returned/ReStock payment becomes Cancel
func applyPaymentRules(current domain.Order, next *domain.Order, patch domain.OrderPatch, now time.Time) {
	paymentChanged := patch.PaymentStatus != nil && *patch.PaymentStatus != current.PaymentStatus
	shippingPatched := patch.Shipping != nil && patch.Shipping.Status != nil

	if paymentChanged {
		switch next.PaymentStatus {
		case domain.PaymentPaid, domain.PaymentSettle:
			if patch.AmountReceivedCents == nil {
				next.AmountReceivedCents = next.TotalCents
			}
			if patch.SettleDate == nil {
				settle := now
				next.SettleDate = &settle
			}
		default:
			if patch.AmountReceivedCents == nil {
				next.AmountReceivedCents = 0
			}
			if patch.SettleDate == nil {
				next.SettleDate = nil
			}
		}
		if next.PaymentStatus == domain.PaymentCancel && !shippingPatched {
			switch current.Shipping.Status {
			case domain.ShippingShipped, domain.ShippingDelivered:
				next.Shipping.Status = domain.ShippingReturned
			}
		}
	}

	if shippingPatched && patch.PaymentStatus == nil && next.Shipping.Status != current.Shipping.Status {
		switch next.Shipping.Status {
		case domain.ShippingReturned, domain.ShippingReStock:
			next.PaymentStatus = domain.PaymentCancel
			next.AmountReceivedCents = 0
			next.SettleDate = nil
		}
	}
}

// RestockOrder marks an order ReStock, cancels its payment and returns any
// stock the order still holds.
func (s *Service) RestockOrder(ctx context.Context, id string) (domain.Order, error) {
	editor := actorName(ctx)
	updated, levels, err := s.repo.UpdateOrder(ctx, strings.TrimSpace(id), func(current domain.Order) (domain.Order, []domain.StockDelta, error) {
		now := s.now()
		outcome := transition.ReconcileRestock(current, s.strict)
		next := current.Clone()
		next.Shipping.Status = domain.ShippingReStock
		next.PaymentStatus = domain.PaymentCancel
		next.AmountReceivedCents = 0
		next.SettleDate = nil
		next.StockDeducted = outcome.StockDeducted
		next.LastEditedAt = &now
		next.LastEditedBy = editor
		return next, outcome.Deltas, nil
	})
	if err != nil {
		return domain.Order{}, persistErr("restock order", err)
	}
	s.warnNegative("restock order", levels)
	return *updated, nil
}
