package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rathunderbird-creator/romdoul1-sub000/internal/domain"
	"github.com/rathunderbird-creator/romdoul1-sub000/internal/importer"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (a *API) handleFetchPage(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	offset, err := parseOffset(query.Get("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	limit := parsePositiveLimit(query.Get("limit"), 50, 500)

	page, err := a.service.FetchPage(r.Context(), offset, limit)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	order, err := a.service.CreateOrder(r.Context(), req.Order, req.Defaults)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"order": order})
}

func (a *API) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := a.service.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (a *API) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	var patch domain.OrderPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	order, err := a.service.UpdateOrder(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (a *API) handleBulkUpdate(w http.ResponseWriter, r *http.Request) {
	var req domain.BulkUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := a.service.UpdateOrders(r.Context(), req.IDs, req.Patch)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, bulkStatus(result), result)
}

func (a *API) handleRestockOrder(w http.ResponseWriter, r *http.Request) {
	order, err := a.service.RestockOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (a *API) handleDeleteOrders(w http.ResponseWriter, r *http.Request) {
	var req domain.DeleteOrdersRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := a.service.DeleteOrders(r.Context(), req.IDs)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, bulkStatus(result), result)
}

// bulkStatus is 207 when part of a batch failed so clients retry only the failures.
func bulkStatus(result domain.BulkResult) int {
	if result.OK() {
		return http.StatusOK
	}
	return http.StatusMultiStatus
}

func (a *API) handleReorder(w http.ResponseWriter, r *http.Request) {
	var req domain.ReorderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sequence, err := a.service.Reorder(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order_ids": sequence})
}

func (a *API) handleImport(w http.ResponseWriter, r *http.Request) {
	opts, err := importOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("file upload required: %w", err))
		return
	}
	defer file.Close()

	var rows []importer.Row
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".csv":
		rows, err = importer.ReadCSV(file)
	case ".xlsx":
		rows, err = importer.ReadXLSX(file)
	default:
		err = errors.New("unsupported file type: expected .xlsx or .csv")
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := a.service.ImportOrders(r.Context(), rows, opts)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleRestore(w http.ResponseWriter, r *http.Request) {
	opts, err := importOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	orders, err := importer.ReadBackup(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := a.service.RestoreOrders(r.Context(), orders, opts)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleBackup(w http.ResponseWriter, r *http.Request) {
	orders, err := a.service.ExportOrders(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	var buf bytes.Buffer
	contentType := "application/json"
	filename := fmt.Sprintf("orders-%s.json", stamp)
	if strings.EqualFold(r.URL.Query().Get("format"), "xlsx") {
		contentType = xlsxContentType
		filename = fmt.Sprintf("orders-%s.xlsx", stamp)
		err = importer.WriteXLSX(&buf, orders)
	} else {
		err = importer.WriteBackup(&buf, orders)
	}
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func importOptions(r *http.Request) (domain.ImportOptions, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("reconcile_shipped"))
	if raw == "" {
		return domain.ImportOptions{}, nil
	}
	reconcile, err := strconv.ParseBool(raw)
	if err != nil {
		return domain.ImportOptions{}, fmt.Errorf("invalid reconcile_shipped: %q", raw)
	}
	return domain.ImportOptions{ReconcileShipped: reconcile}, nil
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"users": a.auth.ListUsers(r.Context())})
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Role) == "" {
		req.Role = "cashier"
	}

	user, err := a.auth.CreateUser(r.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}
