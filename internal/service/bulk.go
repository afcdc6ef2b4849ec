package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rathunderbird-creator/romdoul1-sub000/internal/domain"
	"github.com/rathunderbird-creator/romdoul1-sub000/internal/store"
	"github.com/rathunderbird-creator/romdoul1-sub000/internal/transition"
)

const bulkUpdateWorkers = 4

// UpdateOrders applies one patch to many orders. Each order commits on its
// own, so the result lists exactly which IDs to retry.
func (s *Service) UpdateOrders(ctx context.Context, ids []string, patch domain.OrderPatch) (domain.BulkResult, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return domain.BulkResult{}, invalid("ids", "at least one id is required")
	}
	if err := validatePatch(patch); err != nil {
		return domain.BulkResult{}, err
	}

	errs := make([]error, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkUpdateWorkers)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			_, errs[i] = s.UpdateOrder(gctx, id, patch)
			return nil
		})
	}
	_ = g.Wait()

	result := domain.BulkResult{}
	for i, id := range ids {
		switch {
		case errs[i] == nil:
			result.Succeeded = append(result.Succeeded, id)
		case errors.Is(errs[i], store.ErrNotFound):
			result.Skipped = append(result.Skipped, id)
		default:
			result.Failed = append(result.Failed, domain.BulkFailure{ID: id, Reason: errs[i].Error()})
		}
	}
	if !result.OK() {
		s.logger.Warn("bulk update incomplete",
			zap.Int("succeeded", len(result.Succeeded)),
			zap.Int("failed", len(result.Failed)),
		)
	}
	return result, nil
}

// DeleteOrders removes orders in chunks no larger than the configured batch
// size, restocking any order that still holds deducted stock. IDs that were
// already gone are skipped. When a chunk fails outright, the orders it had
// already settled keep their outcome, every other ID from that chunk on is
// reported as failed and nothing after it is attempted.
func (s *Service) DeleteOrders(ctx context.Context, ids []string) (domain.BulkResult, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return domain.BulkResult{}, invalid("ids", "at least one id is required")
	}

	reconcile := func(order domain.Order) []domain.StockDelta {
		return transition.ReconcileRestock(order, s.strict).Deltas
	}

	result := domain.BulkResult{}
	for start := 0; start < len(ids); start += s.deleteBatchSize {
		end := min(start+s.deleteBatchSize, len(ids))
		outcome, err := s.repo.DeleteOrders(ctx, ids[start:end], reconcile)
		if err != nil {
			s.logger.Error("delete chunk failed",
				zap.Int("offset", start),
				zap.Int("remaining", len(ids)-start),
				zap.Error(err),
			)
			// Orders the store got through before failing are already committed.
			done := mergeOutcome(&result, outcome)
			s.warnNegative("delete orders", outcome.Stock)
			reason := persistErr("delete orders", err).Error()
			for _, id := range ids[start:] {
				if _, ok := done[id]; ok {
					continue
				}
				result.Failed = append(result.Failed, domain.BulkFailure{ID: id, Reason: reason})
			}
			break
		}
		mergeOutcome(&result, outcome)
		s.warnNegative("delete orders", outcome.Stock)
	}

	if len(result.Succeeded) > 0 {
		s.logger.Info("orders deleted",
			zap.Int("deleted", len(result.Succeeded)),
			zap.Int("skipped", len(result.Skipped)),
			zap.String("actor", actorName(ctx)),
		)
	}
	return result, nil
}

// mergeOutcome folds a store outcome into result and returns the IDs it settled.
func mergeOutcome(result *domain.BulkResult, outcome store.DeleteOutcome) map[string]struct{} {
	result.Succeeded = append(result.Succeeded, outcome.Deleted...)
	result.Skipped = append(result.Skipped, outcome.Missing...)
	result.Failed = append(result.Failed, outcome.Failed...)

	done := make(map[string]struct{}, len(outcome.Deleted)+len(outcome.Missing)+len(outcome.Failed))
	for _, id := range outcome.Deleted {
		done[id] = struct{}{}
	}
	for _, id := range outcome.Missing {
		done[id] = struct{}{}
	}
	for _, failure := range outcome.Failed {
		done[failure.ID] = struct{}{}
	}
	return done
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
