package domain

import "time"

type ShippingStatus string

const (
	ShippingOrdered   ShippingStatus = "Ordered"
	ShippingPending   ShippingStatus = "Pending"
	ShippingShipped   ShippingStatus = "Shipped"
	ShippingDelivered ShippingStatus = "Delivered"
	ShippingCancelled ShippingStatus = "Cancelled"
	ShippingReturned  ShippingStatus = "Returned"
	ShippingReStock   ShippingStatus = "ReStock"
)

var ShippingStatuses = []ShippingStatus{
	ShippingOrdered,
	ShippingPending,
	ShippingShipped,
	ShippingDelivered,
	ShippingCancelled,
	ShippingReturned,
	ShippingReStock,
}

func (s ShippingStatus) Valid() bool {
	for _, known := range ShippingStatuses {
		if s == known {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentUnpaid    PaymentStatus = "Unpaid"
	PaymentPaid      PaymentStatus = "Paid"
	PaymentSettle    PaymentStatus = "Settle"
	PaymentNotSettle PaymentStatus = "Not Settle"
	PaymentCancel    PaymentStatus = "Cancel"
)

var PaymentStatuses = []PaymentStatus{
	PaymentUnpaid,
	PaymentPaid,
	PaymentSettle,
	PaymentNotSettle,
	PaymentCancel,
}

func (s PaymentStatus) Valid() bool {
	for _, known := range PaymentStatuses {
		if s == known {
			return true
		}
	}
	return false
}

type OrderStatus string

const (
	OrderOpen   OrderStatus = "Open"
	OrderClosed OrderStatus = "Closed"
)

type OrderType string

const (
	OrderTypePOS    OrderType = "POS"
	OrderTypeOnline OrderType = "Online"
)

type Product struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Model             string    `json:"model"`
	PriceCents        int64     `json:"price_cents"`
	Stock             int       `json:"stock"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	Category          string    `json:"category"`
	CreatedAt         time.Time `json:"created_at"`
}

// LowStock reports whether the product is at or below its alert threshold.
func (p Product) LowStock() bool {
	return p.Stock <= p.LowStockThreshold
}

type ProductCreateRequest struct {
	Name              string `json:"name"`
	Model             string `json:"model"`
	PriceCents        int64  `json:"price_cents"`
	InitialStock      int    `json:"initial_stock"`
	LowStockThreshold int    `json:"low_stock_threshold"`
	Category          string `json:"category"`
}

type ProductUpdateRequest struct {
	Name              *string `json:"name,omitempty"`
	Model             *string `json:"model,omitempty"`
	PriceCents        *int64  `json:"price_cents,omitempty"`
	LowStockThreshold *int    `json:"low_stock_threshold,omitempty"`
	Category          *string `json:"category,omitempty"`
}

type StockAdjustRequest struct {
	Delta int `json:"delta"`
}

type StockReceiptRequest struct {
	Quantity  int    `json:"quantity"`
	CostCents int64  `json:"cost_cents"`
	Note      string `json:"note"`
}

// StockReceipt records stock received from a supplier.
type StockReceipt struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CostCents int64     `json:"cost_cents"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

// LineItem prices are snapshots taken at order time and never follow later product price changes.
type LineItem struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Quantity   int    `json:"quantity"`
}

type CustomerSnapshot struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Address  string `json:"address,omitempty"`
	City     string `json:"city,omitempty"`
	Page     string `json:"page,omitempty"`
	Platform string `json:"platform,omitempty"`
}

type Shipping struct {
	Company        string         `json:"company"`
	TrackingNumber string         `json:"tracking_number"`
	CostCents      int64          `json:"cost_cents"`
	StaffName      string         `json:"staff_name"`
	Status         ShippingStatus `json:"status"`
}

type Order struct {
	ID                  string            `json:"id"`
	Items               []LineItem        `json:"items"`
	TotalCents          int64             `json:"total_cents"`
	DiscountCents       int64             `json:"discount_cents"`
	Date                time.Time         `json:"date"`
	PaymentMethod       string            `json:"payment_method"`
	Type                OrderType         `json:"type"`
	Customer            *CustomerSnapshot `json:"customer,omitempty"`
	Salesman            string            `json:"salesman"`
	CustomerCare        string            `json:"customer_care"`
	Remark              string            `json:"remark"`
	AmountReceivedCents int64             `json:"amount_received_cents"`
	SettleDate          *time.Time        `json:"settle_date,omitempty"`
	PaymentStatus       PaymentStatus     `json:"payment_status"`
	OrderStatus         OrderStatus       `json:"order_status"`
	Shipping            Shipping          `json:"shipping"`
	StockDeducted       bool              `json:"stock_deducted"`
	LastEditedAt        *time.Time        `json:"last_edited_at,omitempty"`
	LastEditedBy        string            `json:"last_edited_by,omitempty"`
}

// SubtotalCents sums the snapshot price of every line item.
func (o Order) SubtotalCents() int64 {
	var subtotal int64
	for _, item := range o.Items {
		subtotal += item.PriceCents * int64(item.Quantity)
	}
	return subtotal
}

// ComputeTotal returns max(0, subtotal - discount).
func (o Order) ComputeTotal() int64 {
	total := o.SubtotalCents() - o.DiscountCents
	if total < 0 {
		return 0
	}
	return total
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (o Order) Clone() Order {
	out := o
	if o.Items != nil {
		out.Items = append([]LineItem(nil), o.Items...)
	}
	if o.Customer != nil {
		customer := *o.Customer
		out.Customer = &customer
	}
	if o.SettleDate != nil {
		settle := *o.SettleDate
		out.SettleDate = &settle
	}
	if o.LastEditedAt != nil {
		edited := *o.LastEditedAt
		out.LastEditedAt = &edited
	}
	return out
}

type OrderDraft struct {
	Items         []LineItem        `json:"items"`
	DiscountCents int64             `json:"discount_cents"`
	Date          *time.Time        `json:"date,omitempty"`
	PaymentMethod string            `json:"payment_method"`
	Type          OrderType         `json:"type"`
	Customer      *CustomerSnapshot `json:"customer,omitempty"`
	Salesman      string            `json:"salesman"`
	CustomerCare  string            `json:"customer_care"`
	Remark        string            `json:"remark"`
	PaymentStatus PaymentStatus     `json:"payment_status"`
	Shipping      Shipping          `json:"shipping"`
}

// OrderDefaults carries the operator-selected defaults applied when a draft leaves them blank.
type OrderDefaults struct {
	Salesman     string `json:"salesman"`
	CustomerCare string `json:"customer_care"`
}

type CreateOrderRequest struct {
	Order    OrderDraft    `json:"order"`
	Defaults OrderDefaults `json:"defaults"`
}

type ShippingPatch struct {
	Company        *string         `json:"company,omitempty"`
	TrackingNumber *string         `json:"tracking_number,omitempty"`
	CostCents      *int64          `json:"cost_cents,omitempty"`
	StaffName      *string         `json:"staff_name,omitempty"`
	Status         *ShippingStatus `json:"status,omitempty"`
}

type CustomerPatch struct {
	Name     *string `json:"name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Address  *string `json:"address,omitempty"`
	City     *string `json:"city,omitempty"`
	Page     *string `json:"page,omitempty"`
	Platform *string `json:"platform,omitempty"`
}

// OrderPatch is a partial update. Nil fields are left untouched; nested
// patches are merged field by field against the stored value.
type OrderPatch struct {
	Items               *[]LineItem    `json:"items,omitempty"`
	DiscountCents       *int64         `json:"discount_cents,omitempty"`
	Date                *time.Time     `json:"date,omitempty"`
	PaymentMethod       *string        `json:"payment_method,omitempty"`
	Type                *OrderType     `json:"type,omitempty"`
	Customer            *CustomerPatch `json:"customer,omitempty"`
	Salesman            *string        `json:"salesman,omitempty"`
	CustomerCare        *string        `json:"customer_care,omitempty"`
	Remark              *string        `json:"remark,omitempty"`
	AmountReceivedCents *int64         `json:"amount_received_cents,omitempty"`
	SettleDate          *time.Time     `json:"settle_date,omitempty"`
	PaymentStatus       *PaymentStatus `json:"payment_status,omitempty"`
	OrderStatus         *OrderStatus   `json:"order_status,omitempty"`
	Shipping            *ShippingPatch `json:"shipping,omitempty"`
}

type BulkUpdateRequest struct {
	IDs   []string   `json:"ids"`
	Patch OrderPatch `json:"patch"`
}

type DeleteOrdersRequest struct {
	IDs []string `json:"ids"`
}

type ReorderRequest struct {
	MovingIDs []string `json:"moving_ids"`
	TargetID  string   `json:"target_id"`
	LeadID    string   `json:"lead_id"`
}

type StockDelta struct {
	ProductID string `json:"product_id"`
	Delta     int    `json:"delta"`
}

type BulkFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// BulkResult identifies which subset of a batch succeeded so callers can retry only the failures.
type BulkResult struct {
	Succeeded []string      `json:"succeeded"`
	Skipped   []string      `json:"skipped"`
	Failed    []BulkFailure `json:"failed"`
}

func (r BulkResult) OK() bool {
	return len(r.Failed) == 0
}

type OrderPage struct {
	Orders  []Order `json:"orders"`
	HasMore bool    `json:"has_more"`
}

type ImportOptions struct {
	ReconcileShipped bool `json:"reconcile_shipped"`
}

// ImportResult reports what an import or restore did. InventoryReconciled is
// false unless the caller opted into reconciling shipped orders.
type ImportResult struct {
	Imported            int           `json:"imported"`
	Failed              []BulkFailure `json:"failed"`
	InventoryReconciled bool          `json:"inventory_reconciled"`
	Reconciled          []string      `json:"reconciled,omitempty"`
	Note                string        `json:"note,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}
