package store

import (
	"context"
	"errors"

	"github.com/rathunderbird-creator/romdoul1-sub000/internal/domain"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidOrder  = errors.New("invalid order")
	ErrInvalidInput  = errors.New("invalid input")
	ErrBatchTooLarge = errors.New("batch exceeds backend limit")
)

// MaxDeleteBatch is the largest ID list a single DeleteOrders call accepts.
const MaxDeleteBatch = 500

// OrderMutator receives the locked, current order and returns the order to
// persist together with the stock deltas that must commit with it. Returning
// an error aborts the update and leaves both the order and stock untouched.
type OrderMutator func(current domain.Order) (domain.Order, []domain.StockDelta, error)

// DeleteReconciler returns the stock deltas owed when order is removed.
type DeleteReconciler func(order domain.Order) []domain.StockDelta

// DeleteOutcome reports, per order, what a batched delete did. Every ID in
// Deleted was removed and restocked in its own transaction.
type DeleteOutcome struct {
	Deleted []string
	Missing []string
	Failed  []domain.BulkFailure
	Stock   map[string]int
}

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)

	// AdjustStock atomically adds delta to the product's stock and returns the new level.
	AdjustStock(ctx context.Context, productID string, delta int) (int, error)
	// AdjustStockBatch applies every delta or none of them.
	AdjustStockBatch(ctx context.Context, deltas []domain.StockDelta) (map[string]int, error)
	ReceiveStock(ctx context.Context, receipt domain.StockReceipt) (*domain.StockReceipt, int, error)
	ListStockReceipts(ctx context.Context, productID string, limit int) ([]domain.StockReceipt, error)

	CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	// UpdateOrder locks the order, runs mutate, then persists the result and
	// applies its stock deltas as one unit. Deltas for products that no longer
	// exist are ignored. It returns the new stock level of every touched product.
	UpdateOrder(ctx context.Context, id string, mutate OrderMutator) (*domain.Order, map[string]int, error)
	// UpsertOrder inserts or replaces an order by ID and applies deltas in the same unit.
	UpsertOrder(ctx context.Context, order domain.Order, deltas []domain.StockDelta) error
	// DeleteOrders removes each order in its own unit, restocking what reconcile returns.
	// IDs that are already gone are reported as Missing and never restocked.
	DeleteOrders(ctx context.Context, ids []string, reconcile DeleteReconciler) (DeleteOutcome, error)
	// ListOrders returns orders by date, newest first.
	ListOrders(ctx context.Context, offset int, limit int) ([]domain.Order, error)
	// ListOrderIDs returns every order ID by date, newest first.
	ListOrderIDs(ctx context.Context) ([]string, error)
	// GetOrdersByIDs returns the orders in the order of ids, skipping unknown IDs.
	GetOrdersByIDs(ctx context.Context, ids []string) ([]domain.Order, error)

	GetDisplayOrderIndex(ctx context.Context) ([]string, error)
	SetDisplayOrderIndex(ctx context.Context, ids []string) error

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
