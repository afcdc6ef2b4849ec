package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rathunderbird-creator/romdoul1-sub000/internal/domain"
	"github.com/rathunderbird-creator/romdoul1-sub000/internal/store"
	"github.com/rathunderbird-creator/romdoul1-sub000/internal/store/memory"
)

// countingRepo records every DeleteOrders call and can fail one of them,
// either outright or after settling the first order of the chunk.
type countingRepo struct {
	store.Repository
	deleteSizes   []int
	failCall      int
	interruptCall int
}

func (r *countingRepo) DeleteOrders(ctx context.Context, ids []string, reconcile store.DeleteReconciler) (store.DeleteOutcome, error) {
	r.deleteSizes = append(r.deleteSizes, len(ids))
	switch len(r.deleteSizes) {
	case r.failCall:
		return store.DeleteOutcome{}, errors.New("connection reset")
	case r.interruptCall:
		outcome, err := r.Repository.DeleteOrders(ctx, ids[:1], reconcile)
		if err != nil {
			return outcome, err
		}
		return outcome, context.Canceled
	}
	return r.Repository.DeleteOrders(ctx, ids, reconcile)
}

func newCountingService(t *testing.T, batch int) (*Service, *countingRepo, *memory.Store) {
	t.Helper()
	mem := newTestRepo(t)
	repo := &countingRepo{Repository: mem}
	clock := &stepClock{now: time.Date(2024, time.June, 1, 8, 0, 0, 0, time.UTC)}
	svc := New(repo, Options{StrictStockGuard: true, DeleteBatchSize: batch, Now: clock.Now})
	return svc, repo, mem
}

func createShipped(t *testing.T, svc *Service, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		order, err := svc.CreateOrder(adminCtx(), domain.OrderDraft{
			Items: []domain.LineItem{{ProductID: "p_cable", Quantity: 1}},
		}, domain.OrderDefaults{})
		require.NoError(t, err)
		setShipping(t, svc, order.ID, domain.ShippingShipped)
		ids = append(ids, order.ID)
	}
	return ids
}

func TestDeleteOrdersChunksByBatchSize(t *testing.T) {
	svc, repo, _ := newCountingService(t, 3)
	ids := createShipped(t, svc, 10)
	require.Equal(t, 90, stockOf(t, svc, "p_cable"))

	result, err := svc.DeleteOrders(adminCtx(), ids)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 3, 1}, repo.deleteSizes)
	assert.ElementsMatch(t, ids, result.Succeeded)
	assert.True(t, result.OK())
	assert.Equal(t, 100, stockOf(t, svc, "p_cable"))
}

func TestDeleteOrdersExactMultiple(t *testing.T) {
	svc, repo, _ := newCountingService(t, 4)
	ids := createShipped(t, svc, 8)

	_, err := svc.DeleteOrders(adminCtx(), ids)
	require.NoError(t, err)
	assert.Len(t, repo.deleteSizes, 2)
}

func TestDeleteOrdersFailedChunkIsRetryable(t *testing.T) {
	svc, repo, _ := newCountingService(t, 2)
	ids := createShipped(t, svc, 5)
	repo.failCall = 2

	result, err := svc.DeleteOrders(adminCtx(), ids)
	require.NoError(t, err)
	assert.Equal(t, ids[:2], result.Succeeded)
	require.Len(t, result.Failed, 3)
	assert.Equal(t, 97, stockOf(t, svc, "p_cable"))

	retry := make([]string, 0, len(result.Failed))
	for _, f := range result.Failed {
		retry = append(retry, f.ID)
	}
	repo.failCall = 0
	result, err = svc.DeleteOrders(adminCtx(), append(retry, ids[0]))
	require.NoError(t, err)
	assert.ElementsMatch(t, ids[2:], result.Succeeded)
	assert.Equal(t, []string{ids[0]}, result.Skipped)
	assert.Equal(t, 100, stockOf(t, svc, "p_cable"))
}

func TestDeleteOrdersInterruptedChunkKeepsSettledOrders(t *testing.T) {
	svc, repo, _ := newCountingService(t, 3)
	ids := createShipped(t, svc, 5)
	repo.interruptCall = 2

	result, err := svc.DeleteOrders(adminCtx(), append(ids, "ord_gone"))
	require.NoError(t, err)
	assert.Equal(t, ids[:4], result.Succeeded)
	require.Len(t, result.Failed, 2)
	assert.Equal(t, ids[4], result.Failed[0].ID)
	assert.Equal(t, "ord_gone", result.Failed[1].ID)
	assert.Contains(t, result.Failed[0].Reason, context.Canceled.Error())
	assert.Equal(t, 99, stockOf(t, svc, "p_cable"))

	_, err = svc.GetOrder(adminCtx(), ids[3])
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteOrdersBackendLimit(t *testing.T) {
	svc, _, mem := newCountingService(t, 3)
	ids := createShipped(t, svc, 3)
	mem.SetMaxDeleteBatch(2)

	result, err := svc.DeleteOrders(adminCtx(), ids)
	require.NoError(t, err)
	assert.Empty(t, result.Succeeded)
	require.Len(t, result.Failed, 3)
	assert.Contains(t, result.Failed[0].Reason, store.ErrBatchTooLarge.Error())
	assert.Equal(t, 97, stockOf(t, svc, "p_cable"))
}

func TestDeleteOrdersRequiresIDs(t *testing.T) {
	svc, _ := newTestService(t, true)
	_, err := svc.DeleteOrders(adminCtx(), []string{" ", ""})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestNewCapsDeleteBatchSize(t *testing.T) {
	svc := New(memory.New(), Options{DeleteBatchSize: store.MaxDeleteBatch + 1})
	assert.Equal(t, 100, svc.deleteBatchSize)
}
