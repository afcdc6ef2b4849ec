// Package pager accumulates pages of orders for clients that scroll or export
// the full order list.
package pager

import (
	"context"
	"sync"

	"github.com/rathunderbird-creator/romdoul1-sub000/internal/domain"
)

// PageSource serves one window of the ordered order list.
type PageSource interface {
	FetchPage(ctx context.Context, offset int, limit int) (domain.OrderPage, error)
}

// Feed holds the orders loaded so far. LoadMore calls that overlap an
// in-flight fetch, or arrive after the source reported no more rows, are
// no-ops. Orders are deduplicated by ID.
type Feed struct {
	source   PageSource
	pageSize int

	mu       sync.Mutex
	orders   []domain.Order
	seen     map[string]struct{}
	offset   int
	hasMore  bool
	inFlight bool

	// generation changes whenever the loaded list is reset or shifted, so a
	// page fetched against the old layout is dropped.
	generation int
}

func NewFeed(source PageSource, pageSize int) *Feed {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Feed{source: source, pageSize: pageSize, seen: make(map[string]struct{})}
}

// Load discards what was loaded and fetches the first page.
func (f *Feed) Load(ctx context.Context) error {
	page, err := f.source.FetchPage(ctx, 0, f.pageSize)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetLocked(page)
	return nil
}

// LoadMore fetches the next page. It reports whether a fetch happened.
func (f *Feed) LoadMore(ctx context.Context) (bool, error) {
	f.mu.Lock()
	if f.inFlight || !f.hasMore {
		f.mu.Unlock()
		return false, nil
	}
	f.inFlight = true
	offset := f.offset
	generation := f.generation
	f.mu.Unlock()

	page, err := f.source.FetchPage(ctx, offset, f.pageSize)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight = false
	if err != nil {
		return false, err
	}
	if generation != f.generation {
		return false, nil
	}
	f.appendLocked(page.Orders)
	f.offset = offset + len(page.Orders)
	f.hasMore = page.HasMore
	return true, nil
}

// Refresh re-reads the first page. When the fresh page is the loaded head
// with new orders in front of it, those orders are prepended and loaded
// orders are replaced by their fresh copy. Any other difference, such as an
// order deleted or moved on the server, discards the feed and starts over
// from the fresh page.
func (f *Feed) Refresh(ctx context.Context) error {
	page, err := f.source.FetchPage(ctx, 0, f.pageSize)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.headOffsetLocked(page.Orders)
	if !ok {
		f.resetLocked(page)
		return nil
	}

	for i := range f.orders {
		if lead+i >= len(page.Orders) {
			break
		}
		f.orders[i] = page.Orders[lead+i]
	}
	if lead > 0 {
		added := append([]domain.Order(nil), page.Orders[:lead]...)
		for _, order := range added {
			f.seen[order.ID] = struct{}{}
		}
		f.orders = append(added, f.orders...)
		f.generation++
	}
	// Loaded orders are a prefix of the server list again.
	f.offset = len(f.orders)
	return nil
}

// headOffsetLocked reports how many unseen orders sit in front of the loaded
// head on a fresh first page, and whether the rest of that page matches the
// loaded orders position for position.
func (f *Feed) headOffsetLocked(fresh []domain.Order) (int, bool) {
	if len(f.orders) == 0 {
		return 0, false
	}
	head := f.orders[0].ID
	lead := -1
	for i, order := range fresh {
		if order.ID == head {
			lead = i
			break
		}
		if _, ok := f.seen[order.ID]; ok {
			return 0, false
		}
	}
	if lead < 0 {
		return 0, false
	}
	for i := 0; lead+i < len(fresh) && i < len(f.orders); i++ {
		if fresh[lead+i].ID != f.orders[i].ID {
			return 0, false
		}
	}
	return lead, true
}

func (f *Feed) resetLocked(page domain.OrderPage) {
	f.orders = nil
	f.seen = make(map[string]struct{}, len(page.Orders))
	f.appendLocked(page.Orders)
	f.offset = len(f.orders)
	f.hasMore = page.HasMore
	f.generation++
}

// Orders returns a copy of everything loaded so far.
func (f *Feed) Orders() []domain.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Order(nil), f.orders...)
}

func (f *Feed) HasMore() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasMore
}

// All loads pages until the source is exhausted and returns every order.
func (f *Feed) All(ctx context.Context) ([]domain.Order, error) {
	if err := f.Load(ctx); err != nil {
		return nil, err
	}
	for f.HasMore() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := f.LoadMore(ctx); err != nil {
			return nil, err
		}
	}
	return f.Orders(), nil
}

func (f *Feed) appendLocked(orders []domain.Order) {
	for _, order := range orders {
		if _, ok := f.seen[order.ID]; ok {
			continue
		}
		f.seen[order.ID] = struct{}{}
		f.orders = append(f.orders, order)
	}
}
