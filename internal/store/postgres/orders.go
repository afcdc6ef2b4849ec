package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rathunderbird-creator/romdoul1-sub000/internal/domain"
	"github.com/rathunderbird-creator/romdoul1-sub000/internal/store"
)

const saleColumns = `
	id, total_cents, discount_cents, date, payment_method, type, salesman, customer_care,
	amount_received_cents, settle_date, payment_status, order_status, customer_snapshot,
	shipping_company, tracking_number, shipping_status, shipping_cost_cents, shipping_staff,
	remark, stock_deducted, last_edited_at, last_edited_by`

func scanSale(row rowScanner) (domain.Order, error) {
	var (
		o            domain.Order
		customerJSON []byte
		editedBy     *string
	)
	err := row.Scan(
		&o.ID, &o.TotalCents, &o.DiscountCents, &o.Date, &o.PaymentMethod, &o.Type, &o.Salesman, &o.CustomerCare,
		&o.AmountReceivedCents, &o.SettleDate, &o.PaymentStatus, &o.OrderStatus, &customerJSON,
		&o.Shipping.Company, &o.Shipping.TrackingNumber, &o.Shipping.Status, &o.Shipping.CostCents, &o.Shipping.StaffName,
		&o.Remark, &o.StockDeducted, &o.LastEditedAt, &editedBy,
	)
	if err != nil {
		return domain.Order{}, err
	}
	if len(customerJSON) > 0 && string(customerJSON) != "null" {
		var customer domain.CustomerSnapshot
		if err := json.Unmarshal(customerJSON, &customer); err != nil {
			return domain.Order{}, fmt.Errorf("decode customer snapshot for %s: %w", o.ID, err)
		}
		o.Customer = &customer
	}
	if editedBy != nil {
		o.LastEditedBy = *editedBy
	}
	return o, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// loadItems attaches line items, in position order, to each order.
func loadItems(ctx context.Context, q querier, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, 0, len(orders))
	pos := make(map[string]int, len(orders))
	for i, o := range orders {
		ids = append(ids, o.ID)
		pos[o.ID] = i
		orders[i].Items = make([]domain.LineItem, 0, 4)
	}

	rows, err := q.Query(ctx, `
		SELECT sale_id, product_id, name, price_cents, quantity
		FROM sale_items
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, position
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			saleID string
			item   domain.LineItem
		)
		if err := rows.Scan(&saleID, &item.ProductID, &item.Name, &item.PriceCents, &item.Quantity); err != nil {
			return err
		}
		i := pos[saleID]
		orders[i].Items = append(orders[i].Items, item)
	}
	return rows.Err()
}

func insertSale(ctx context.Context, tx pgx.Tx, o domain.Order) error {
	customer, err := customerJSON(o.Customer)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO sales (`+saleColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
	`, saleArgs(o, customer)...)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidOrder
		}
		return err
	}
	return insertItems(ctx, tx, o.ID, o.Items)
}

func upsertSale(ctx context.Context, tx pgx.Tx, o domain.Order) error {
	customer, err := customerJSON(o.Customer)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO sales (`+saleColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
		ON CONFLICT (id) DO UPDATE SET
			total_cents = EXCLUDED.total_cents,
			discount_cents = EXCLUDED.discount_cents,
			date = EXCLUDED.date,
			payment_method = EXCLUDED.payment_method,
			type = EXCLUDED.type,
			salesman = EXCLUDED.salesman,
			customer_care = EXCLUDED.customer_care,
			amount_received_cents = EXCLUDED.amount_received_cents,
			settle_date = EXCLUDED.settle_date,
			payment_status = EXCLUDED.payment_status,
			order_status = EXCLUDED.order_status,
			customer_snapshot = EXCLUDED.customer_snapshot,
			shipping_company = EXCLUDED.shipping_company,
			tracking_number = EXCLUDED.tracking_number,
			shipping_status = EXCLUDED.shipping_status,
			shipping_cost_cents = EXCLUDED.shipping_cost_cents,
			shipping_staff = EXCLUDED.shipping_staff,
			remark = EXCLUDED.remark,
			stock_deducted = EXCLUDED.stock_deducted,
			last_edited_at = EXCLUDED.last_edited_at,
			last_edited_by = EXCLUDED.last_edited_by
	`, saleArgs(o, customer)...)
	if err != nil {
		return err
	}
	return replaceItems(ctx, tx, o.ID, o.Items)
}

func saleArgs(o domain.Order, customer []byte) []any {
	return []any{
		o.ID, o.TotalCents, o.DiscountCents, o.Date.UTC(), o.PaymentMethod, string(o.Type), o.Salesman, o.CustomerCare,
		o.AmountReceivedCents, nullTime(o.SettleDate), string(o.PaymentStatus), string(o.OrderStatus), customer,
		o.Shipping.Company, o.Shipping.TrackingNumber, string(o.Shipping.Status), o.Shipping.CostCents, o.Shipping.StaffName,
		o.Remark, o.StockDeducted, nullTime(o.LastEditedAt), nullIfEmpty(o.LastEditedBy),
	}
}

func customerJSON(c *domain.CustomerSnapshot) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	return json.Marshal(c)
}

// replaceItems deletes then inserts, sequenced inside the caller's transaction.
func replaceItems(ctx context.Context, tx pgx.Tx, saleID string, items []domain.LineItem) error {
	if _, err := tx.Exec(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, saleID); err != nil {
		return err
	}
	return insertItems(ctx, tx, saleID, items)
}

func insertItems(ctx context.Context, tx pgx.Tx, saleID string, items []domain.LineItem) error {
	if len(items) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i, item := range items {
		batch.Queue(`
			INSERT INTO sale_items (sale_id, position, product_id, name, price_cents, quantity)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, saleID, i, item.ProductID, item.Name, item.PriceCents, item.Quantity)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func (s *Store) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	if order.ID == "" || len(order.Items) == 0 {
		return nil, store.ErrInvalidOrder
	}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return insertSale(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}
	created := order.Clone()
	return &created, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := scanSale(s.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	orders := []domain.Order{order}
	if err := loadItems(ctx, s.pool, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (s *Store) UpdateOrder(ctx context.Context, id string, mutate store.OrderMutator) (*domain.Order, map[string]int, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := scanSale(tx.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, store.ErrNotFound
		}
		return nil, nil, err
	}
	locked := []domain.Order{current}
	if err := loadItems(ctx, tx, locked); err != nil {
		return nil, nil, err
	}
	current = locked[0]

	next, deltas, err := mutate(current.Clone())
	if err != nil {
		return nil, nil, err
	}
	next.ID = id

	levels, err := applyDeltas(ctx, tx, deltas, true)
	if err != nil {
		return nil, nil, err
	}
	if err := upsertSale(ctx, tx, next); err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return &next, levels, nil
}

func (s *Store) UpsertOrder(ctx context.Context, order domain.Order, deltas []domain.StockDelta) error {
	if order.ID == "" {
		return store.ErrInvalidOrder
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := applyDeltas(ctx, tx, deltas, true); err != nil {
			return err
		}
		return upsertSale(ctx, tx, order)
	})
}

func (s *Store) DeleteOrders(ctx context.Context, ids []string, reconcile store.DeleteReconciler) (store.DeleteOutcome, error) {
	if len(ids) > store.MaxDeleteBatch {
		return store.DeleteOutcome{}, store.ErrBatchTooLarge
	}
	outcome := store.DeleteOutcome{Stock: make(map[string]int)}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}
		levels, found, err := s.deleteOne(ctx, id, reconcile)
		switch {
		case err != nil:
			outcome.Failed = append(outcome.Failed, domain.BulkFailure{ID: id, Reason: err.Error()})
		case !found:
			outcome.Missing = append(outcome.Missing, id)
		default:
			outcome.Deleted = append(outcome.Deleted, id)
			for productID, level := range levels {
				outcome.Stock[productID] = level
			}
		}
	}
	return outcome, nil
}

// deleteOne locks, restocks and removes a single order in one transaction.
func (s *Store) deleteOne(ctx context.Context, id string, reconcile store.DeleteReconciler) (map[string]int, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	order, err := scanSale(tx.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	locked := []domain.Order{order}
	if err := loadItems(ctx, tx, locked); err != nil {
		return nil, false, err
	}

	var deltas []domain.StockDelta
	if reconcile != nil {
		deltas = reconcile(locked[0])
	}
	levels, err := applyDeltas(ctx, tx, deltas, true)
	if err != nil {
		return nil, false, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM sales WHERE id = $1`, id); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return levels, true, nil
}

func (s *Store) ListOrders(ctx context.Context, offset int, limit int) ([]domain.Order, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		ORDER BY date DESC, id DESC
		OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, err
	}
	orders, err := collectSales(rows)
	if err != nil {
		return nil, err
	}
	if err := loadItems(ctx, s.pool, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Store) ListOrderIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM sales ORDER BY date DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *Store) GetOrdersByIDs(ctx context.Context, ids []string) ([]domain.Order, error) {
	if len(ids) == 0 {
		return []domain.Order{}, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	found, err := collectSales(rows)
	if err != nil {
		return nil, err
	}
	if err := loadItems(ctx, s.pool, found); err != nil {
		return nil, err
	}

	byID := make(map[string]domain.Order, len(found))
	for _, o := range found {
		byID[o.ID] = o
	}
	ordered := make([]domain.Order, 0, len(found))
	for _, id := range ids {
		if o, ok := byID[id]; ok {
			ordered = append(ordered, o)
		}
	}
	return ordered, nil
}

func collectSales(rows pgx.Rows) ([]domain.Order, error) {
	defer rows.Close()
	orders := make([]domain.Order, 0, 32)
	for rows.Next() {
		o, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (s *Store) GetDisplayOrderIndex(ctx context.Context) ([]string, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(data->'salesOrder', '[]'::jsonb) FROM app_config WHERE id = 1
	`).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decode display order index: %w", err)
	}
	return ids, nil
}

// SetDisplayOrderIndex merges the index into the shared app_config row,
// leaving the other registries stored there untouched.
func (s *Store) SetDisplayOrderIndex(ctx context.Context, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	payload, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO app_config (id, data)
		VALUES (1, jsonb_build_object('salesOrder', $1::jsonb))
		ON CONFLICT (id)
		DO UPDATE SET data = app_config.data || jsonb_build_object('salesOrder', $1::jsonb)
	`, string(payload))
	return err
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO app_users (username, password_hash, role, active, created_at)
		VALUES ($1,$2,$3,true,$4)
	`, user.Username, user.Password, user.Role, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidInput
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT username, password_hash, role, active, created_at
		FROM app_users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE app_users SET password_hash = $2 WHERE username = $1`, username, password)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
