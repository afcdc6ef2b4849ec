package memory

import (
	"cmp"
	"context"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/rathunderbird-creator/romdoul1-sub000/internal/domain"
	"github.com/rathunderbird-creator/romdoul1-sub000/internal/store"
	"github.com/rathunderbird-creator/romdoul1-sub000/internal/xid"
)

var _ store.Repository = (*Store)(nil)

// Store keeps every entity behind one RWMutex, so each method is a single
// linearizable unit, the in-process stand-in for a database transaction.
type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	orders          map[string]domain.Order
	receipts        []domain.StockReceipt
	displayIndex    []string
	usersByUsername map[string]domain.UserAccount
	maxDeleteBatch  int
}

func New() *Store {
	return &Store{
		products:        make(map[string]domain.Product),
		orders:          make(map[string]domain.Order),
		receipts:        make([]domain.StockReceipt, 0, 32),
		usersByUsername: make(map[string]domain.UserAccount),
		maxDeleteBatch:  store.MaxDeleteBatch,
	}
}

// NewSeeded returns a store with a demo catalog and dev login accounts.
// Passwords come from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD.
func NewSeeded(logger *zap.Logger) *Store {
	s := New()
	now := time.Now().UTC()
	for _, p := range []domain.Product{
		{ID: "prd_speaker_bt10", Name: "Bluetooth Speaker", Model: "BT-10", PriceCents: 2500, Stock: 40, LowStockThreshold: 5, Category: "audio"},
		{ID: "prd_speaker_bt20", Name: "Bluetooth Speaker Pro", Model: "BT-20", PriceCents: 4500, Stock: 25, LowStockThreshold: 5, Category: "audio"},
		{ID: "prd_earbuds_e1", Name: "Wireless Earbuds", Model: "E1", PriceCents: 1800, Stock: 60, LowStockThreshold: 10, Category: "audio"},
		{ID: "prd_powerbank_10k", Name: "Power Bank 10000mAh", Model: "PB-10K", PriceCents: 1500, Stock: 35, LowStockThreshold: 8, Category: "power"},
		{ID: "prd_cable_usbc", Name: "USB-C Cable", Model: "C-1M", PriceCents: 300, Stock: 200, LowStockThreshold: 20, Category: "accessory"},
		{ID: "prd_mic_karaoke", Name: "Karaoke Microphone", Model: "KM-2", PriceCents: 2200, Stock: 12, LowStockThreshold: 3, Category: "audio"},
	} {
		p.CreatedAt = now
		s.products[p.ID] = p
	}
	s.usersByUsername = seedUsers(logger)
	return s
}

func seedUsers(logger *zap.Logger) map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if logger != nil && (os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "") {
		logger.Warn("memory store using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			if logger != nil {
				logger.Error("hash seed password", zap.String("username", u.username), zap.Error(err))
			}
			continue
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// SetMaxDeleteBatch lowers the per-call delete limit, mimicking a backend
// that caps request size.
func (s *Store) SetMaxDeleteBatch(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > 0 {
		s.maxDeleteBatch = n
	}
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if c := cmp.Compare(a.Category, b.Category); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			result[id] = p
		}
	}
	return result, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.PriceCents < 0 {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrInvalidInput
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	s.products[product.ID] = product
	created := product
	return &created, nil
}

// UpdateProduct replaces catalog fields but never the stock level, which only
// moves through the ledger methods.
func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if product.Name == "" || product.PriceCents < 0 {
		return nil, store.ErrInvalidInput
	}
	product.Stock = existing.Stock
	product.CreatedAt = existing.CreatedAt
	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) AdjustStock(_ context.Context, productID string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return 0, store.ErrNotFound
	}
	p.Stock += delta
	s.products[productID] = p
	return p.Stock, nil
}

func (s *Store) AdjustStockBatch(_ context.Context, deltas []domain.StockDelta) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.applyDeltasLocked(deltas, false)
}

// applyDeltasLocked validates every delta before mutating anything. With
// skipMissing, deltas for unknown products are dropped instead of failing.
func (s *Store) applyDeltasLocked(deltas []domain.StockDelta, skipMissing bool) (map[string]int, error) {
	levels := make(map[string]int, len(deltas))
	for _, d := range deltas {
		if _, ok := s.products[d.ProductID]; !ok && !skipMissing {
			return nil, store.ErrNotFound
		}
	}
	for _, d := range deltas {
		p, ok := s.products[d.ProductID]
		if !ok {
			continue
		}
		p.Stock += d.Delta
		s.products[d.ProductID] = p
		levels[d.ProductID] = p.Stock
	}
	return levels, nil
}

func (s *Store) ReceiveStock(_ context.Context, receipt domain.StockReceipt) (*domain.StockReceipt, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if receipt.Quantity <= 0 || receipt.CostCents < 0 {
		return nil, 0, store.ErrInvalidInput
	}
	p, ok := s.products[receipt.ProductID]
	if !ok {
		return nil, 0, store.ErrNotFound
	}
	if receipt.ID == "" {
		receipt.ID = xid.New("rst")
	}
	if receipt.CreatedAt.IsZero() {
		receipt.CreatedAt = time.Now().UTC()
	}
	p.Stock += receipt.Quantity
	s.products[p.ID] = p
	s.receipts = append(s.receipts, receipt)
	created := receipt
	return &created, p.Stock, nil
}

func (s *Store) ListStockReceipts(_ context.Context, productID string, limit int) ([]domain.StockReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.StockReceipt, 0, 16)
	for i := len(s.receipts) - 1; i >= 0; i-- {
		r := s.receipts[i]
		if productID != "" && r.ProductID != productID {
			continue
		}
		result = append(result, r)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *Store) CreateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if order.ID == "" || len(order.Items) == 0 {
		return nil, store.ErrInvalidOrder
	}
	if _, exists := s.orders[order.ID]; exists {
		return nil, store.ErrInvalidOrder
	}
	s.orders[order.ID] = order.Clone()
	created := order.Clone()
	return &created, nil
}

func (s *Store) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := order.Clone()
	return &out, nil
}

func (s *Store) UpdateOrder(_ context.Context, id string, mutate store.OrderMutator) (*domain.Order, map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.orders[id]
	if !ok {
		return nil, nil, store.ErrNotFound
	}
	next, deltas, err := mutate(current.Clone())
	if err != nil {
		return nil, nil, err
	}
	next.ID = id
	levels, err := s.applyDeltasLocked(deltas, true)
	if err != nil {
		return nil, nil, err
	}
	s.orders[id] = next.Clone()
	out := next.Clone()
	return &out, levels, nil
}

func (s *Store) UpsertOrder(_ context.Context, order domain.Order, deltas []domain.StockDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if order.ID == "" {
		return store.ErrInvalidOrder
	}
	if _, err := s.applyDeltasLocked(deltas, true); err != nil {
		return err
	}
	s.orders[order.ID] = order.Clone()
	return nil
}

func (s *Store) DeleteOrders(_ context.Context, ids []string, reconcile store.DeleteReconciler) (store.DeleteOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(ids) > s.maxDeleteBatch {
		return store.DeleteOutcome{}, store.ErrBatchTooLarge
	}
	outcome := store.DeleteOutcome{Stock: make(map[string]int)}
	for _, id := range ids {
		order, ok := s.orders[id]
		if !ok {
			outcome.Missing = append(outcome.Missing, id)
			continue
		}
		var deltas []domain.StockDelta
		if reconcile != nil {
			deltas = reconcile(order.Clone())
		}
		levels, err := s.applyDeltasLocked(deltas, true)
		if err != nil {
			outcome.Failed = append(outcome.Failed, domain.BulkFailure{ID: id, Reason: err.Error()})
			continue
		}
		delete(s.orders, id)
		for productID, level := range levels {
			outcome.Stock[productID] = level
		}
		outcome.Deleted = append(outcome.Deleted, id)
	}
	return outcome, nil
}

func (s *Store) ListOrders(_ context.Context, offset int, limit int) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sorted := s.sortedOrdersLocked()
	if offset < 0 {
		offset = 0
	}
	if offset >= len(sorted) {
		return []domain.Order{}, nil
	}
	end := len(sorted)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	result := make([]domain.Order, 0, end-offset)
	for _, order := range sorted[offset:end] {
		result = append(result, order.Clone())
	}
	return result, nil
}

func (s *Store) ListOrderIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sorted := s.sortedOrdersLocked()
	ids := make([]string, 0, len(sorted))
	for _, order := range sorted {
		ids = append(ids, order.ID)
	}
	return ids, nil
}

func (s *Store) GetOrdersByIDs(_ context.Context, ids []string) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		if order, ok := s.orders[id]; ok {
			result = append(result, order.Clone())
		}
	}
	return result, nil
}

func (s *Store) sortedOrdersLocked() []domain.Order {
	orders := make([]domain.Order, 0, len(s.orders))
	for _, order := range s.orders {
		orders = append(orders, order)
	}
	slices.SortFunc(orders, func(a, b domain.Order) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return orders
}

func (s *Store) GetDisplayOrderIndex(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string(nil), s.displayIndex...), nil
}

func (s *Store) SetDisplayOrderIndex(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.displayIndex = append([]string(nil), ids...)
	return nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrInvalidInput
	}
	user.Username = username
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmp.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}
