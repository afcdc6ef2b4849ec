package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rathunderbird-creator/romdoul1-sub000/internal/cache"
	"github.com/rathunderbird-creator/romdoul1-sub000/internal/domain"
	"github.com/rathunderbird-creator/romdoul1-sub000/internal/logging"
	"github.com/rathunderbird-creator/romdoul1-sub000/internal/store"
	"github.com/rathunderbird-creator/romdoul1-sub000/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	Logger           *zap.Logger
	IndexCache       cache.OrderIndexCache
	IndexTTL         time.Duration
	DeleteBatchSize  int
	PageSize         int
	StrictStockGuard bool
	Now              func() time.Time
}

type Service struct {
	repo            store.Repository
	logger          *zap.Logger
	indexCache      cache.OrderIndexCache
	indexTTL        time.Duration
	deleteBatchSize int
	pageSize        int
	strict          bool
	now             func() time.Time
}

func New(repo store.Repository, opts Options) *Service {
	if opts.IndexCache == nil {
		opts.IndexCache = cache.NoopOrderIndexCache{}
	}
	if opts.IndexTTL <= 0 {
		opts.IndexTTL = 5 * time.Minute
	}
	if opts.DeleteBatchSize <= 0 || opts.DeleteBatchSize > store.MaxDeleteBatch {
		opts.DeleteBatchSize = 100
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	return &Service{
		repo:            repo,
		logger:          logging.OrNop(opts.Logger).Named("service"),
		indexCache:      opts.IndexCache,
		indexTTL:        opts.IndexTTL,
		deleteBatchSize: opts.DeleteBatchSize,
		pageSize:        opts.PageSize,
		strict:          opts.StrictStockGuard,
		now:             opts.Now,
	}
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return ErrForbidden
	}
	return nil
}

func actorName(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor.Username
	}
	return ""
}

// warnNegative logs products whose stock fell below zero. The write itself
// has already been committed.
func (s *Service) warnNegative(op string, levels map[string]int) {
	for productID, level := range levels {
		if level < 0 {
			s.logger.Warn("stock below zero",
				zap.String("op", op),
				zap.String("product_id", productID),
				zap.Int("stock", level),
			)
		}
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx)
	return products, persistErr("list products", err)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, persistErr("get product", err)
	}
	return *product, nil
}

// ListLowStock returns products at or below their alert threshold.
func (s *Service) ListLowStock(ctx context.Context) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, persistErr("list products", err)
	}
	low := make([]domain.Product, 0, 8)
	for _, p := range products {
		if p.LowStock() {
			low = append(low, p)
		}
	}
	return low, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Model = strings.TrimSpace(req.Model)
	req.Category = strings.TrimSpace(req.Category)
	if req.Name == "" {
		return domain.Product{}, invalid("name", "is required")
	}
	if req.PriceCents < 0 {
		return domain.Product{}, invalid("price_cents", "must not be negative")
	}
	if req.InitialStock < 0 || req.LowStockThreshold < 0 {
		return domain.Product{}, invalid("stock", "must not be negative")
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		ID:                xid.New("prd"),
		Name:              req.Name,
		Model:             req.Model,
		PriceCents:        req.PriceCents,
		Stock:             req.InitialStock,
		LowStockThreshold: req.LowStockThreshold,
		Category:          req.Category,
		CreatedAt:         s.now(),
	})
	if err != nil {
		return domain.Product{}, persistErr("create product", err)
	}
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	existing, err := s.repo.GetProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, persistErr("get product", err)
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, invalid("name", "is required")
		}
		updated.Name = name
	}
	if req.Model != nil {
		updated.Model = strings.TrimSpace(*req.Model)
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 0 {
			return domain.Product{}, invalid("price_cents", "must not be negative")
		}
		updated.PriceCents = *req.PriceCents
	}
	if req.LowStockThreshold != nil {
		if *req.LowStockThreshold < 0 {
			return domain.Product{}, invalid("low_stock_threshold", "must not be negative")
		}
		updated.LowStockThreshold = *req.LowStockThreshold
	}

	result, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, persistErr("update product", err)
	}
	return *result, nil
}

// AdjustStock applies a manual stock correction as an atomic delta.
func (s *Service) AdjustStock(ctx context.Context, productID string, delta int) (int, error) {
	if delta == 0 {
		return 0, invalid("delta", "must not be zero")
	}
	level, err := s.repo.AdjustStock(ctx, strings.TrimSpace(productID), delta)
	if err != nil {
		return 0, persistErr("adjust stock", err)
	}
	s.logger.Info("stock adjusted",
		zap.String("product_id", productID),
		zap.Int("delta", delta),
		zap.Int("stock", level),
		zap.String("actor", actorName(ctx)),
	)
	s.warnNegative("adjust stock", map[string]int{productID: level})
	return level, nil
}

// ReceiveStock books a supplier delivery and raises stock by its quantity.
func (s *Service) ReceiveStock(ctx context.Context, productID string, req domain.StockReceiptRequest) (domain.StockReceipt, int, error) {
	if req.Quantity <= 0 {
		return domain.StockReceipt{}, 0, invalid("quantity", "must be positive")
	}
	if req.CostCents < 0 {
		return domain.StockReceipt{}, 0, invalid("cost_cents", "must not be negative")
	}
	receipt, level, err := s.repo.ReceiveStock(ctx, domain.StockReceipt{
		ID:        xid.New("rst"),
		ProductID: strings.TrimSpace(productID),
		Quantity:  req.Quantity,
		CostCents: req.CostCents,
		Note:      strings.TrimSpace(req.Note),
		CreatedAt: s.now(),
	})
	if err != nil {
		return domain.StockReceipt{}, 0, persistErr("receive stock", err)
	}
	return *receipt, level, nil
}

func (s *Service) ListStockReceipts(ctx context.Context, productID string, limit int) ([]domain.StockReceipt, error) {
	receipts, err := s.repo.ListStockReceipts(ctx, strings.TrimSpace(productID), limit)
	return receipts, persistErr("list stock receipts", err)
}
