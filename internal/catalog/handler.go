package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stockpile-erp/stockpile-erp/internal/platform/httpx"
	"github.com/stockpile-erp/stockpile-erp/internal/shared"
)

// Handler wires HTTP endpoints for the item registry.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the catalog handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountItemRoutes registers item routes.
func (h *Handler) MountItemRoutes(r chi.Router) {
	r.Get("/", h.handleListItems)
	r.Post("/", h.handleCreateItem)
	r.Get("/low-stock", h.handleLowStock)
	r.Get("/summary", h.handleSummary)
	r.Get("/{id}", h.handleGetItem)
	r.Put("/{id}", h.handleUpdateItem)
	r.Delete("/{id}", h.handleDeleteItem)
}

// MountCategoryRoutes registers category routes.
func (h *Handler) MountCategoryRoutes(r chi.Router) {
	r.Get("/", h.handleListCategories)
	r.Post("/", h.handleCreateCategory)
	r.Get("/{id}", h.handleGetCategory)
	r.Put("/{id}", h.handleUpdateCategory)
	r.Delete("/{id}", h.handleDeleteCategory)
}

type itemResponse struct {
	Item
	IsLowStock   bool `json:"is_low_stock"`
	IsOutOfStock bool `json:"is_out_of_stock"`
}

func toItemResponse(item Item) itemResponse {
	return itemResponse{Item: item, IsLowStock: item.IsLowStock(), IsOutOfStock: item.IsOutOfStock()}
}

func toItemResponses(items []Item) []itemResponse {
	out := make([]itemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toItemResponse(item))
	}
	return out
}

type createItemRequest struct {
	SKU         string   `json:"sku" validate:"required,max=50"`
	Name        string   `json:"name" validate:"required,max=200"`
	Description string   `json:"description" validate:"max=1000"`
	CategoryID  int64    `json:"category_id" validate:"required,gt=0"`
	UnitPrice   float64  `json:"unit_price" validate:"gte=0"`
	Cost        *float64 `json:"cost" validate:"omitempty,gte=0"`
	Quantity    int      `json:"quantity" validate:"gte=0"`
	MinStock    *int     `json:"min_stock" validate:"omitempty,gte=0"`
	MaxStock    *int     `json:"max_stock" validate:"omitempty,gt=0"`
}

type updateItemRequest struct {
	Name        string   `json:"name" validate:"required,max=200"`
	Description string   `json:"description" validate:"max=1000"`
	CategoryID  int64    `json:"category_id" validate:"required,gt=0"`
	UnitPrice   float64  `json:"unit_price" validate:"gte=0"`
	Cost        *float64 `json:"cost" validate:"omitempty,gte=0"`
	Quantity    int      `json:"quantity" validate:"gte=0"`
	MinStock    int      `json:"min_stock" validate:"gte=0"`
	MaxStock    *int     `json:"max_stock" validate:"omitempty,gt=0"`
	IsActive    bool     `json:"is_active"`
}

type categoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

func (h *Handler) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	item, err := h.service.CreateItem(r.Context(), CreateItemInput{
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		CategoryID:  req.CategoryID,
		UnitPrice:   req.UnitPrice,
		Cost:        req.Cost,
		Quantity:    req.Quantity,
		MinStock:    req.MinStock,
		MaxStock:    req.MaxStock,
		ActorID:     shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toItemResponse(item))
}

func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be an integer")
		return
	}
	var req updateItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	item, err := h.service.UpdateItem(r.Context(), id, UpdateItemInput{
		Name:        req.Name,
		Description: req.Description,
		CategoryID:  req.CategoryID,
		UnitPrice:   req.UnitPrice,
		Cost:        req.Cost,
		Quantity:    req.Quantity,
		MinStock:    req.MinStock,
		MaxStock:    req.MaxStock,
		IsActive:    req.IsActive,
		ActorID:     shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toItemResponse(item))
}

func (h *Handler) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be an integer")
		return
	}
	if err := h.service.DeleteItem(r.Context(), id, shared.ActorFromContext(r.Context())); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be an integer")
		return
	}
	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toItemResponse(item))
}

func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ItemFilter{Search: q.Get("search")}
	if v := q.Get("category_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "category_id must be an integer")
			return
		}
		filter.CategoryID = &id
	}
	if v := q.Get("is_active"); v != "" {
		active := v == "true" || v == "1"
		filter.IsActive = &active
	}
	filter.LowStockOnly = q.Get("low_stock") == "true"
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	items, pagination, err := h.service.ListItems(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      toItemResponses(items),
		"pagination": pagination,
	})
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListLowStock(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toItemResponses(items))
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summarize(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	category, err := h.service.CreateCategory(r.Context(), Category{Name: req.Name, Description: req.Description})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, category)
}

func (h *Handler) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be an integer")
		return
	}
	category, err := h.service.GetCategory(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, category)
}

func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, categories)
}

func (h *Handler) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be an integer")
		return
	}
	var req categoryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.UpdateCategory(r.Context(), Category{ID: id, Name: req.Name, Description: req.Description}); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be an integer")
		return
	}
	if err := h.service.DeleteCategory(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case isDomainError(err):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("catalog request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func isDomainError(err error) bool {
	return errors.Is(err, ErrInvalidThresholds) || errors.Is(err, ErrNegativeQuantity)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
