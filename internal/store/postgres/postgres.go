package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rathunderbird-creator/romdoul1-sub000/internal/domain"
	"github.com/rathunderbird-creator/romdoul1-sub000/internal/store"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

var _ store.Repository = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	cfg.MaxConns = 20
	cfg.MinConns = 2
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Migrate applies embedded migrations that have not yet been recorded in schema_migrations.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("read embedded migrations: %w", err)
	}
	versions := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		versions = append(versions, entry.Name())
	}
	sort.Strings(versions)

	for _, version := range versions {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)",
			version,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", version, err)
		}
		if exists {
			continue
		}

		body, err := migrationFiles.ReadFile("migrations/" + version)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", version, err)
		}
		if err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(body)); err != nil {
				return fmt.Errorf("apply migration %s: %w", version, err)
			}
			if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations(version) VALUES($1)", version); err != nil {
				return fmt.Errorf("record migration %s: %w", version, err)
			}
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, model, price_cents, stock, low_stock_threshold, category, created_at
		FROM products
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx, `
		SELECT id, name, model, price_cents, stock, low_stock_threshold, category, created_at
		FROM products
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, model, price_cents, stock, low_stock_threshold, category, created_at
		FROM products
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	return result, rows.Err()
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.PriceCents < 0 {
		return nil, store.ErrInvalidInput
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO products (id, name, model, price_cents, stock, low_stock_threshold, category, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, product.ID, product.Name, product.Model, product.PriceCents, product.Stock, product.LowStockThreshold, product.Category, product.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.PriceCents < 0 {
		return nil, store.ErrInvalidInput
	}
	updated, err := scanProduct(s.pool.QueryRow(ctx, `
		UPDATE products
		SET name = $2, model = $3, price_cents = $4, low_stock_threshold = $5, category = $6
		WHERE id = $1
		RETURNING id, name, model, price_cents, stock, low_stock_threshold, category, created_at
	`, product.ID, product.Name, product.Model, product.PriceCents, product.LowStockThreshold, product.Category))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &updated, nil
}

func (s *Store) AdjustStock(ctx context.Context, productID string, delta int) (int, error) {
	var stock int
	err := s.pool.QueryRow(ctx, `
		UPDATE products SET stock = stock + $2 WHERE id = $1 RETURNING stock
	`, productID, delta).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		return 0, err
	}
	return stock, nil
}

func (s *Store) AdjustStockBatch(ctx context.Context, deltas []domain.StockDelta) (map[string]int, error) {
	var levels map[string]int
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		levels, err = applyDeltas(ctx, tx, deltas, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return levels, nil
}

// applyDeltas runs additive stock updates inside tx in product ID order so two
// transactions touching the same products always lock them in the same order.
func applyDeltas(ctx context.Context, tx pgx.Tx, deltas []domain.StockDelta, skipMissing bool) (map[string]int, error) {
	sorted := append([]domain.StockDelta(nil), deltas...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })

	levels := make(map[string]int, len(sorted))
	for _, d := range sorted {
		if d.Delta == 0 {
			continue
		}
		var stock int
		err := tx.QueryRow(ctx, `
			UPDATE products SET stock = stock + $2 WHERE id = $1 RETURNING stock
		`, d.ProductID, d.Delta).Scan(&stock)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				if skipMissing {
					continue
				}
				return nil, store.ErrNotFound
			}
			return nil, err
		}
		levels[d.ProductID] = stock
	}
	return levels, nil
}

func (s *Store) ReceiveStock(ctx context.Context, receipt domain.StockReceipt) (*domain.StockReceipt, int, error) {
	if receipt.ID == "" || receipt.Quantity <= 0 || receipt.CostCents < 0 {
		return nil, 0, store.ErrInvalidInput
	}
	if receipt.CreatedAt.IsZero() {
		receipt.CreatedAt = time.Now().UTC()
	}
	var stock int
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE products SET stock = stock + $2 WHERE id = $1 RETURNING stock
		`, receipt.ProductID, receipt.Quantity).Scan(&stock)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return store.ErrNotFound
			}
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO restocks (id, product_id, quantity, cost_cents, note, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, receipt.ID, receipt.ProductID, receipt.Quantity, receipt.CostCents, receipt.Note, receipt.CreatedAt)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	created := receipt
	return &created, stock, nil
}

func (s *Store) ListStockReceipts(ctx context.Context, productID string, limit int) ([]domain.StockReceipt, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, product_id, quantity, cost_cents, note, created_at
		FROM restocks
		WHERE ($1 = '' OR product_id = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	receipts := make([]domain.StockReceipt, 0, limit)
	for rows.Next() {
		var r domain.StockReceipt
		if err := rows.Scan(&r.ID, &r.ProductID, &r.Quantity, &r.CostCents, &r.Note, &r.CreatedAt); err != nil {
			return nil, err
		}
		receipts = append(receipts, r)
	}
	return receipts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Model, &p.PriceCents, &p.Stock, &p.LowStockThreshold, &p.Category, &p.CreatedAt)
	return p, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return val.UTC()
}
