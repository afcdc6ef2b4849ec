// Package importer turns spreadsheet rows and JSON backups into orders.
package importer

import (
	"errors"
	"fmt"
	"html"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"

	"github.com/rathunderbird-creator/romdoul1-sub000/internal/domain"
	"github.com/rathunderbird-creator/romdoul1-sub000/internal/xid"
)

// Canonical field names a Row is keyed by.
const (
	FieldOrderID        = "order_id"
	FieldDate           = "date"
	FieldCustomer       = "customer"
	FieldPhone          = "phone"
	FieldAddress        = "address"
	FieldCity           = "city"
	FieldPage           = "page"
	FieldSalesman       = "salesman"
	FieldCustomerCare   = "customer_care"
	FieldItems          = "items"
	FieldTotal          = "total"
	FieldDiscount       = "discount"
	FieldPaymentMethod  = "payment_method"
	FieldPaymentStatus  = "payment_status"
	FieldSettleDate     = "settle_date"
	FieldShippingCo     = "shipping_company"
	FieldShippingStatus = "shipping_status"
	FieldTracking       = "tracking_number"
	FieldShippingCost   = "shipping_cost"
	FieldRemark         = "remark"
)

var headerAliases = map[string]string{
	"order id":         FieldOrderID,
	"id":               FieldOrderID,
	"date":             FieldDate,
	"order date":       FieldDate,
	"customer":         FieldCustomer,
	"customer name":    FieldCustomer,
	"phone":            FieldPhone,
	"customer phone":   FieldPhone,
	"address":          FieldAddress,
	"city":             FieldCity,
	"province":         FieldCity,
	"page":             FieldPage,
	"salesman":         FieldSalesman,
	"customer care":    FieldCustomerCare,
	"items":            FieldItems,
	"total amount":     FieldTotal,
	"total":            FieldTotal,
	"discount":         FieldDiscount,
	"payment method":   FieldPaymentMethod,
	"payment status":   FieldPaymentStatus,
	"settle date":      FieldSettleDate,
	"shipping company": FieldShippingCo,
	"shipping status":  FieldShippingStatus,
	"status":           FieldShippingStatus,
	"tracking number":  FieldTracking,
	"tracking":         FieldTracking,
	"shipping cost":    FieldShippingCost,
	"remarks":          FieldRemark,
	"remark":           FieldRemark,
}

// Row is one spreadsheet row keyed by canonical field name.
type Row map[string]string

func (r Row) get(field string) string {
	return strings.TrimSpace(r[field])
}

// textPolicy strips markup pasted into free-text cells.
var textPolicy = bluemonday.StrictPolicy()

// text returns a free-text cell with any markup removed.
func (r Row) text(field string) string {
	raw := r.get(field)
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(raw)))
}

// CanonicalField maps a spreadsheet header to its field name.
func CanonicalField(header string) (string, bool) {
	field, ok := headerAliases[normalizeHeader(header)]
	return field, ok
}

func normalizeHeader(raw string) string {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "\ufeff")
	value = strings.ToLower(value)
	value = strings.ReplaceAll(value, "_", " ")
	return strings.Join(strings.Fields(value), " ")
}

// Catalog resolves item names from the Items column to products.
type Catalog struct {
	byName map[string]domain.Product
}

func NewCatalog(products []domain.Product) Catalog {
	byName := make(map[string]domain.Product, len(products))
	for _, p := range products {
		key := foldKey(p.Name)
		if _, exists := byName[key]; !exists {
			byName[key] = p
		}
	}
	return Catalog{byName: byName}
}

func (c Catalog) Lookup(name string) (domain.Product, bool) {
	p, ok := c.byName[foldKey(name)]
	return p, ok
}

// Casers carry state, so each call gets its own.
func foldKey(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}

// NormalizeRow builds an order from row. Rows without an order ID get a new
// one; rows without a shipping status import as Pending.
func NormalizeRow(row Row, catalog Catalog) (domain.Order, error) {
	date, err := ParseDate(row.get(FieldDate))
	if err != nil {
		return domain.Order{}, fmt.Errorf("date: %w", err)
	}

	items, err := parseItems(row.get(FieldItems), catalog)
	if err != nil {
		return domain.Order{}, fmt.Errorf("items: %w", err)
	}

	order := domain.Order{
		ID:            row.get(FieldOrderID),
		Items:         items,
		Date:          date,
		PaymentMethod: row.get(FieldPaymentMethod),
		Type:          domain.OrderTypePOS,
		Salesman:      row.text(FieldSalesman),
		CustomerCare:  row.text(FieldCustomerCare),
		Remark:        row.text(FieldRemark),
		OrderStatus:   domain.OrderOpen,
		Shipping: domain.Shipping{
			Company:        row.get(FieldShippingCo),
			TrackingNumber: row.get(FieldTracking),
			Status:         domain.ShippingPending,
		},
		PaymentStatus: domain.PaymentUnpaid,
	}
	if order.ID == "" {
		order.ID = xid.New("ord")
	}

	if name := row.text(FieldCustomer); name != "" || row.get(FieldPhone) != "" {
		order.Type = domain.OrderTypeOnline
		order.Customer = &domain.CustomerSnapshot{
			Name:    name,
			Phone:   row.get(FieldPhone),
			Address: row.text(FieldAddress),
			City:    row.text(FieldCity),
			Page:    row.text(FieldPage),
		}
	}

	if order.DiscountCents, err = optionalAmount(row.get(FieldDiscount)); err != nil {
		return domain.Order{}, fmt.Errorf("discount: %w", err)
	}
	if order.Shipping.CostCents, err = optionalAmount(row.get(FieldShippingCost)); err != nil {
		return domain.Order{}, fmt.Errorf("shipping cost: %w", err)
	}
	order.TotalCents = order.ComputeTotal()
	if raw := row.get(FieldTotal); raw != "" {
		if order.TotalCents, err = ParseAmount(raw); err != nil {
			return domain.Order{}, fmt.Errorf("total: %w", err)
		}
	}

	if raw := row.get(FieldShippingStatus); raw != "" {
		status, ok := ParseShippingStatus(raw)
		if !ok {
			return domain.Order{}, fmt.Errorf("shipping status: unknown value %q", raw)
		}
		order.Shipping.Status = status
	}
	if raw := row.get(FieldPaymentStatus); raw != "" {
		status, ok := ParsePaymentStatus(raw)
		if !ok {
			return domain.Order{}, fmt.Errorf("payment status: unknown value %q", raw)
		}
		order.PaymentStatus = status
	}
	if raw := row.get(FieldSettleDate); raw != "" {
		settle, err := ParseDate(raw)
		if err != nil {
			return domain.Order{}, fmt.Errorf("settle date: %w", err)
		}
		order.SettleDate = &settle
	}
	if order.PaymentStatus == domain.PaymentPaid || order.PaymentStatus == domain.PaymentSettle {
		order.AmountReceivedCents = order.TotalCents
	}
	return order, nil
}

var itemPattern = regexp.MustCompile(`^(.*?)\s*(?:[xX×]\s*(\d+)|\((\d+)\))$`)

// parseItems reads "Name x2, Other x1". The export form "Name (2)" is also
// accepted, and a bare name means quantity one.
func parseItems(raw string, catalog Catalog) ([]domain.LineItem, error) {
	if raw == "" {
		return nil, errors.New("at least one item is required")
	}
	items := make([]domain.LineItem, 0, 4)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, qty := part, 1
		if m := itemPattern.FindStringSubmatch(part); m != nil {
			name = strings.TrimSpace(m[1])
			digits := m[2]
			if digits == "" {
				digits = m[3]
			}
			parsed, err := strconv.Atoi(digits)
			if err != nil || parsed <= 0 {
				return nil, fmt.Errorf("invalid quantity in %q", part)
			}
			qty = parsed
		}
		product, ok := catalog.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown product %q", name)
		}
		items = append(items, domain.LineItem{
			ProductID:  product.ID,
			Name:       product.Name,
			PriceCents: product.PriceCents,
			Quantity:   qty,
		})
	}
	if len(items) == 0 {
		return nil, errors.New("at least one item is required")
	}
	return items, nil
}

var amountStrip = regexp.MustCompile(`[^0-9.\-]`)

// ParseAmount strips currency symbols, separators and spaces, then reads the
// remainder as a decimal amount and returns it in cents.
func ParseAmount(raw string) (int64, error) {
	cleaned := amountStrip.ReplaceAllString(raw, "")
	if cleaned == "" {
		return 0, fmt.Errorf("not a number: %q", raw)
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", raw)
	}
	return int64(math.Round(value * 100)), nil
}

func optionalAmount(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	return ParseAmount(raw)
}

var dateLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// ParseDate accepts the date forms found in exported sheets and returns the
// instant in UTC. Spreadsheet serial day numbers are also accepted.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("is required")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil && serial > 0 {
		return excelEpoch.Add(time.Duration(serial * float64(24*time.Hour))).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", raw)
}

var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

var (
	shippingByKey = statusKeys(domain.ShippingStatuses)
	paymentByKey  = statusKeys(domain.PaymentStatuses)
)

func statusKeys[S ~string](values []S) map[string]S {
	out := make(map[string]S, len(values))
	for _, v := range values {
		out[statusKey(string(v))] = v
	}
	return out
}

func statusKey(raw string) string {
	raw = strings.NewReplacer(" ", "", "-", "", "_", "").Replace(raw)
	return cases.Fold().String(raw)
}

// ParseShippingStatus matches raw against the known statuses ignoring case,
// spaces and hyphens, so "re-stock" and "SHIPPED" both resolve.
func ParseShippingStatus(raw string) (domain.ShippingStatus, bool) {
	status, ok := shippingByKey[statusKey(raw)]
	if !ok && statusKey(raw) == statusKey("canceled") {
		return domain.ShippingCancelled, true
	}
	return status, ok
}

func ParsePaymentStatus(raw string) (domain.PaymentStatus, bool) {
	status, ok := paymentByKey[statusKey(raw)]
	if !ok {
		switch statusKey(raw) {
		case "settled":
			return domain.PaymentSettle, true
		case "cancelled", "canceled":
			return domain.PaymentCancel, true
		}
	}
	return status, ok
}
