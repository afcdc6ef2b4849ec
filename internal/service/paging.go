package service

import (
	"context"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/rathunderbird-creator/romdoul1-sub000/internal/domain"
	"github.com/rathunderbird-creator/romdoul1-sub000/internal/ordering"
)

// FetchPage returns orders [offset, offset+limit) in display order: newest
// first, or by the manual display index when one has been saved. Without an
// index HasMore is true whenever the page came back full; with one it is
// true while the arranged sequence extends past the page.
func (s *Service) FetchPage(ctx context.Context, offset int, limit int) (domain.OrderPage, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = s.pageSize
	}

	index, err := s.displayIndex(ctx)
	if err != nil {
		return domain.OrderPage{}, err
	}

	var orders []domain.Order
	var hasMore bool
	if len(index) == 0 {
		orders, err = s.repo.ListOrders(ctx, offset, limit)
		if err != nil {
			return domain.OrderPage{}, persistErr("list orders", err)
		}
		hasMore = len(orders) == limit
	} else {
		ids, err := s.repo.ListOrderIDs(ctx)
		if err != nil {
			return domain.OrderPage{}, persistErr("list order ids", err)
		}
		seq := ordering.Arrange(ids, index)
		hasMore = offset+limit < len(seq)
		if offset >= len(seq) {
			seq = nil
		} else {
			seq = seq[offset:min(offset+limit, len(seq))]
		}
		orders, err = s.repo.GetOrdersByIDs(ctx, seq)
		if err != nil {
			return domain.OrderPage{}, persistErr("load orders", err)
		}
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return domain.OrderPage{Orders: orders, HasMore: hasMore}, nil
}

// Reorder moves the given orders as one block next to target and persists
// the full resulting sequence. It returns the new sequence.
func (s *Service) Reorder(ctx context.Context, req domain.ReorderRequest) ([]string, error) {
	moving := uniqueIDs(req.MovingIDs)
	target := strings.TrimSpace(req.TargetID)
	lead := strings.TrimSpace(req.LeadID)
	if len(moving) == 0 {
		return nil, invalid("moving_ids", "at least one id is required")
	}
	if target == "" {
		return nil, invalid("target_id", "is required")
	}
	if lead == "" {
		lead = moving[0]
	}

	index, err := s.displayIndex(ctx)
	if err != nil {
		return nil, err
	}
	ids, err := s.repo.ListOrderIDs(ctx)
	if err != nil {
		return nil, persistErr("list order ids", err)
	}
	current := ordering.Arrange(ids, index)
	if !slices.Contains(current, target) {
		return nil, invalid("target_id", "unknown order "+target)
	}

	next := ordering.Reorder(current, moving, target, lead)
	if slices.Equal(current, next) && len(index) > 0 {
		return next, nil
	}
	if err := s.repo.SetDisplayOrderIndex(ctx, next); err != nil {
		return nil, persistErr("save display order", err)
	}
	if err := s.indexCache.Invalidate(ctx); err != nil {
		s.logger.Warn("display index cache invalidate failed", zap.Error(err))
	}
	s.logger.Info("orders reordered",
		zap.Int("moving", len(moving)),
		zap.String("target_id", target),
		zap.String("actor", actorName(ctx)),
	)
	return next, nil
}

// displayIndex reads through the cache. Cache failures fall back to the
// repository and are only logged.
func (s *Service) displayIndex(ctx context.Context) ([]string, error) {
	if ids, ok, err := s.indexCache.Get(ctx); err != nil {
		s.logger.Warn("display index cache read failed", zap.Error(err))
	} else if ok {
		return ids, nil
	}

	ids, err := s.repo.GetDisplayOrderIndex(ctx)
	if err != nil {
		return nil, persistErr("load display order", err)
	}
	if err := s.indexCache.Set(ctx, ids, s.indexTTL); err != nil {
		s.logger.Warn("display index cache write failed", zap.Error(err))
	}
	return ids, nil
}
