package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rathunderbird-creator/romdoul1-sub000/internal/domain"
)

// ReadBackup decodes a JSON array of orders as written by WriteBackup.
func ReadBackup(reader io.Reader) ([]domain.Order, error) {
	var orders []domain.Order
	dec := json.NewDecoder(reader)
	if err := dec.Decode(&orders); err != nil {
		return nil, fmt.Errorf("decode backup: %w", err)
	}
	for i := range orders {
		if strings.TrimSpace(orders[i].ID) == "" {
			return nil, fmt.Errorf("backup entry %d: missing id", i)
		}
		if len(orders[i].Items) == 0 {
			return nil, fmt.Errorf("backup entry %d: no items", i)
		}
		orders[i].Date = orders[i].Date.UTC()
		if orders[i].Shipping.Status == "" {
			orders[i].Shipping.Status = domain.ShippingPending
		}
		if !orders[i].Shipping.Status.Valid() {
			return nil, fmt.Errorf("backup entry %d: unknown shipping status %q", i, orders[i].Shipping.Status)
		}
	}
	if len(orders) == 0 {
		return nil, errors.New("backup holds no orders")
	}
	return orders, nil
}

func WriteBackup(w io.Writer, orders []domain.Order) error {
	if orders == nil {
		orders = []domain.Order{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(orders)
}
