package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/rathunderbird-creator/romdoul1-sub000/internal/domain"
)

var (
	ErrEmptySheet     = errors.New("sheet has no data rows")
	ErrMissingColumns = errors.New("sheet is missing required columns")
)

var requiredFields = []string{FieldDate, FieldItems}

// ReadXLSX reads the first sheet of a workbook. The first row is the header;
// unknown columns are ignored and blank rows skipped.
func ReadXLSX(reader io.Reader) ([]Row, error) {
	file, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("open excel file: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptySheet
	}
	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet rows: %w", err)
	}
	return rowsFromTable(rows)
}

// ReadCSV reads the same layout as ReadXLSX from comma separated text.
func ReadCSV(reader io.Reader) ([]Row, error) {
	r := csv.NewReader(reader)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rowsFromTable(rows)
}

func rowsFromTable(table [][]string) ([]Row, error) {
	if len(table) == 0 {
		return nil, ErrEmptySheet
	}
	colMap := mapColumns(table[0])
	for _, field := range requiredFields {
		if _, ok := colMap[field]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumns, field)
		}
	}

	result := make([]Row, 0, len(table)-1)
	for _, cells := range table[1:] {
		row := make(Row, len(colMap))
		blank := true
		for field, idx := range colMap {
			value := strings.TrimSpace(readCell(cells, idx))
			if value != "" {
				blank = false
			}
			row[field] = value
		}
		if !blank {
			result = append(result, row)
		}
	}
	if len(result) == 0 {
		return nil, ErrEmptySheet
	}
	return result, nil
}

func mapColumns(header []string) map[string]int {
	mapped := make(map[string]int)
	for idx, col := range header {
		canonical, ok := CanonicalField(col)
		if !ok {
			continue
		}
		if _, exists := mapped[canonical]; !exists {
			mapped[canonical] = idx
		}
	}
	return mapped
}

func readCell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

var exportHeader = []string{
	"Order ID", "Date", "Customer", "Phone", "Address", "City", "Page",
	"Salesman", "Customer Care", "Items", "Total Amount", "Discount",
	"Payment Method", "Payment Status", "Settle Date", "Shipping Company",
	"Shipping Status", "Tracking Number", "Shipping Cost", "Remarks",
}

// WriteXLSX writes orders in the layout ReadXLSX accepts, so an export can be
// edited and imported again.
func WriteXLSX(w io.Writer, orders []domain.Order) error {
	file := excelize.NewFile()
	defer file.Close()

	const sheet = "Orders"
	if err := file.SetSheetName(file.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	if err := file.SetSheetRow(sheet, "A1", &exportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, order := range orders {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := exportRow(order)
		if err := file.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write order %s: %w", order.ID, err)
		}
	}
	if err := file.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func exportRow(order domain.Order) []any {
	customer := domain.CustomerSnapshot{}
	if order.Customer != nil {
		customer = *order.Customer
	}
	settle := ""
	if order.SettleDate != nil {
		settle = order.SettleDate.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	items := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, item.Name+" x"+strconv.Itoa(item.Quantity))
	}
	return []any{
		order.ID,
		order.Date.UTC().Format("2006-01-02T15:04:05Z07:00"),
		customer.Name,
		customer.Phone,
		customer.Address,
		customer.City,
		customer.Page,
		order.Salesman,
		order.CustomerCare,
		strings.Join(items, ", "),
		formatAmount(order.TotalCents),
		formatAmount(order.DiscountCents),
		order.PaymentMethod,
		string(order.PaymentStatus),
		settle,
		order.Shipping.Company,
		string(order.Shipping.Status),
		order.Shipping.TrackingNumber,
		formatAmount(order.Shipping.CostCents),
		order.Remark,
	}
}

func formatAmount(cents int64) string {
	return strconv.FormatFloat(float64(cents)/100, 'f', 2, 64)
}
