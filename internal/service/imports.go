package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rathunderbird-creator/romdoul1-sub000/internal/domain"
	"github.com/rathunderbird-creator/romdoul1-sub000/internal/importer"
	"github.com/rathunderbird-creator/romdoul1-sub000/internal/pager"
	"github.com/rathunderbird-creator/romdoul1-sub000/internal/store"
	"github.com/rathunderbird-creator/romdoul1-sub000/internal/transition"
)

const importNotReconciled = "imported orders did not change stock; shipped or delivered orders were not deducted"

// ImportOrders normalizes spreadsheet rows and upserts them by order ID.
// Rows that fail to normalize are reported and skipped.
func (s *Service) ImportOrders(ctx context.Context, rows []importer.Row, opts domain.ImportOptions) (domain.ImportResult, error) {
	if len(rows) == 0 {
		return domain.ImportResult{}, invalid("rows", "nothing to import")
	}
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return domain.ImportResult{}, persistErr("list products", err)
	}
	catalog := importer.NewCatalog(products)

	orders := make([]domain.Order, 0, len(rows))
	var failed []domain.BulkFailure
	for i, row := range rows {
		order, err := importer.NormalizeRow(row, catalog)
		if err != nil {
			failed = append(failed, domain.BulkFailure{ID: fmt.Sprintf("row %d", i+2), Reason: err.Error()})
			continue
		}
		orders = append(orders, order)
	}

	result := s.upsertOrders(ctx, orders, opts)
	result.Failed = append(failed, result.Failed...)
	return result, nil
}

// RestoreOrders upserts orders read from a backup.
func (s *Service) RestoreOrders(ctx context.Context, orders []domain.Order, opts domain.ImportOptions) (domain.ImportResult, error) {
	if len(orders) == 0 {
		return domain.ImportResult{}, invalid("orders", "nothing to restore")
	}
	for _, order := range orders {
		if strings.TrimSpace(order.ID) == "" {
			return domain.ImportResult{}, invalid("id", "every order needs an id")
		}
	}
	return s.upsertOrders(ctx, orders, opts), nil
}

// upsertOrders writes each order on its own. The deduction flag of an order
// that already exists is kept, so re-importing never changes what a later
// delete restocks. Only with ReconcileShipped do shipped or delivered orders
// holding no deduction take their stock, in the same unit as their write.
func (s *Service) upsertOrders(ctx context.Context, orders []domain.Order, opts domain.ImportOptions) domain.ImportResult {
	result := domain.ImportResult{InventoryReconciled: opts.ReconcileShipped}
	if !opts.ReconcileShipped {
		result.Note = importNotReconciled
	}

	for _, order := range orders {
		order.ID = strings.TrimSpace(order.ID)
		order.Date = order.Date.UTC()
		order.StockDeducted = false
		if existing, err := s.repo.GetOrder(ctx, order.ID); err == nil {
			order.StockDeducted = existing.StockDeducted
		} else if !errors.Is(err, store.ErrNotFound) {
			result.Failed = append(result.Failed, domain.BulkFailure{ID: order.ID, Reason: persistErr("get order", err).Error()})
			continue
		}

		var deltas []domain.StockDelta
		if opts.ReconcileShipped && holdsStock(order.Shipping.Status) && !order.StockDeducted {
			basis := order.Clone()
			basis.Shipping.Status = domain.ShippingPending
			outcome := transition.Reconcile(basis, domain.ShippingShipped, true)
			deltas = outcome.Deltas
			order.StockDeducted = outcome.StockDeducted
		}

		if err := s.repo.UpsertOrder(ctx, order, deltas); err != nil {
			result.Failed = append(result.Failed, domain.BulkFailure{ID: order.ID, Reason: persistErr("upsert order", err).Error()})
			continue
		}
		result.Imported++
		if len(deltas) > 0 {
			result.Reconciled = append(result.Reconciled, order.ID)
		}
	}

	s.logger.Info("orders imported",
		zap.Int("imported", result.Imported),
		zap.Int("failed", len(result.Failed)),
		zap.Int("reconciled", len(result.Reconciled)),
		zap.Bool("inventory_reconciled", result.InventoryReconciled),
		zap.String("actor", actorName(ctx)),
	)
	return result
}

func holdsStock(status domain.ShippingStatus) bool {
	return status == domain.ShippingShipped || status == domain.ShippingDelivered
}

// ExportOrders pages through every order in display order.
func (s *Service) ExportOrders(ctx context.Context) ([]domain.Order, error) {
	return pager.NewFeed(s, s.pageSize).All(ctx)
}
