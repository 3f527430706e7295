package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dukerupert/ourslists/internal/grocery"
	"github.com/dukerupert/ourslists/internal/member"
	"github.com/dukerupert/ourslists/internal/model"
)

type GroceryHandler struct {
	lists   *grocery.Lists
	history *grocery.History
	logger  *slog.Logger
}

func NewGroceryHandler(lists *grocery.Lists, history *grocery.History, logger *slog.Logger) *GroceryHandler {
	return &GroceryHandler{lists: lists, history: history, logger: logger}
}

type createListRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// CreateList handles POST /api/spaces/{space_id}/grocery-lists
func (h *GroceryHandler) CreateList(w http.ResponseWriter, r *http.Request) {
	var req createListRequest
	if !decode(w, r, &req) {
		return
	}
	l, err := h.lists.CreateList(r.Context(), r.PathValue("space_id"), req.Name)
	if err != nil {
		writeServiceError(w, h.logger, "create list", err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

// Lists handles GET /api/spaces/{space_id}/grocery-lists
func (h *GroceryHandler) Lists(w http.ResponseWriter, r *http.Request) {
	lists, err := h.lists.Lists(r.Context(), r.PathValue("space_id"))
	if err != nil {
		writeServiceError(w, h.logger, "list lists", err)
		return
	}
	if lists == nil {
		lists = []model.GroceryList{}
	}
	writeJSON(w, http.StatusOK, lists)
}

// DeleteList handles DELETE /api/grocery-lists/{id}
func (h *GroceryHandler) DeleteList(w http.ResponseWriter, r *http.Request) {
	if err := h.lists.DeleteList(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, h.logger, "delete list", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListItems handles GET /api/grocery-lists/{id}/items
func (h *GroceryHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.lists.Items(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, h.logger, "list items", err)
		return
	}
	if items == nil {
		items = []model.GroceryItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

type itemRequest struct {
	Title     string `json:"title" validate:"required,max=200"`
	Quantity  string `json:"quantity" validate:"max=50"`
	Note      string `json:"note" validate:"max=500"`
	Category  string `json:"category" validate:"max=50"`
	CreatedBy string `json:"created_by" validate:"max=100"`
}

// CreateItem handles POST /api/grocery-lists/{id}/items. Items without a
// category are categorized from their title.
func (h *GroceryHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if !decode(w, r, &req) {
		return
	}
	it, err := h.lists.AddItem(r.Context(), r.PathValue("id"), grocery.NewItem{
		Title:     req.Title,
		Quantity:  req.Quantity,
		Note:      req.Note,
		Category:  req.Category,
		CreatedBy: member.Or(r.Context(), req.CreatedBy),
	})
	if err != nil {
		writeServiceError(w, h.logger, "create item", err)
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

// UpdateItem handles PUT /api/grocery-items/{id}
func (h *GroceryHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if !decode(w, r, &req) {
		return
	}
	it, err := h.lists.UpdateItem(r.Context(), r.PathValue("id"), grocery.ItemUpdate{
		Title:    req.Title,
		Quantity: req.Quantity,
		Note:     req.Note,
		Category: req.Category,
	})
	if err != nil {
		writeServiceError(w, h.logger, "update item", err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// DeleteItem handles DELETE /api/grocery-items/{id}
func (h *GroceryHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.lists.DeleteItem(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, h.logger, "delete item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type checkRequest struct {
	// Checked sets the state explicitly; omitted means toggle.
	Checked *bool  `json:"checked"`
	By      string `json:"by" validate:"max=100"`
}

// Check handles POST /api/grocery-items/{id}/check
func (h *GroceryHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}

	by := member.Or(r.Context(), req.By)
	var it *model.GroceryItem
	var err error
	if req.Checked == nil {
		it, err = h.lists.Toggle(r.Context(), r.PathValue("id"), by)
	} else {
		it, err = h.lists.SetChecked(r.Context(), r.PathValue("id"), *req.Checked, by)
	}
	if err != nil {
		writeServiceError(w, h.logger, "check item", err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// ClearChecked handles POST /api/grocery-lists/{id}/clear-checked
func (h *GroceryHandler) ClearChecked(w http.ResponseWriter, r *http.Request) {
	n, err := h.lists.ClearChecked(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, h.logger, "clear checked items", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

// Frequent handles GET /api/spaces/{space_id}/purchases/frequent
func (h *GroceryHandler) Frequent(w http.ResponseWriter, r *http.Request) {
	h.purchases(w, r, h.history.Frequent)
}

// Recent handles GET /api/spaces/{space_id}/purchases/recent
func (h *GroceryHandler) Recent(w http.ResponseWriter, r *http.Request) {
	h.purchases(w, r, h.history.Recent)
}

func (h *GroceryHandler) purchases(w http.ResponseWriter, r *http.Request, query func(ctx context.Context, spaceID string, limit int) ([]model.PurchaseRecord, error)) {
	limit, err := limitParam(r, 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	records, err := query(r.Context(), r.PathValue("space_id"), limit)
	if err != nil {
		writeServiceError(w, h.logger, "list purchases", err)
		return
	}
	if records == nil {
		records = []model.PurchaseRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// Categorize handles GET /api/grocery/categorize?title=
func (h *GroceryHandler) Categorize(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"category": string(grocery.Categorize(title))})
}

// Categories handles GET /api/grocery/categories
func (h *GroceryHandler) Categories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, grocery.Categories)
}
