package stock

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stockpile-erp/stockpile-erp/internal/platform/httpx"
	"github.com/stockpile-erp/stockpile-erp/internal/shared"
)

// Handler wires HTTP endpoints for the stock ledger.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the stock handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/movements", h.handleRecordMovement)
	r.Get("/movements", h.handleListMovements)
}

type recordMovementRequest struct {
	ItemID    int64  `json:"item_id" validate:"required,gt=0"`
	Kind      string `json:"kind" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=0"`
	Reason    string `json:"reason" validate:"max=500"`
	Reference string `json:"reference" validate:"max=100"`
}

func (h *Handler) handleRecordMovement(w http.ResponseWriter, r *http.Request) {
	var req recordMovementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	movement, err := h.service.RecordMovement(r.Context(), MovementInput{
		ItemID:         req.ItemID,
		Kind:           MovementKind(req.Kind),
		Quantity:       req.Quantity,
		Reason:         req.Reason,
		Reference:      req.Reference,
		ActorID:        shared.ActorFromContext(r.Context()),
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}

func (h *Handler) handleListMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if itemStr := q.Get("item_id"); itemStr != "" {
		itemID, err := strconv.ParseInt(itemStr, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "item_id must be an integer")
			return
		}
		movements, err := h.service.MovementsByItem(r.Context(), itemID)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, movements)
		return
	}

	from, err := parseDay(q.Get("from"), false)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be a YYYY-MM-DD date")
		return
	}
	to, err := parseDay(q.Get("to"), true)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be a YYYY-MM-DD date")
		return
	}
	if from.IsZero() || to.IsZero() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "either item_id or from/to is required")
		return
	}
	movements, err := h.service.MovementsByDateRange(r.Context(), from, to)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, ErrInvalidMovementKind), errors.Is(err, ErrInvalidQuantity), errors.Is(err, shared.ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrNotFound), errors.Is(err, shared.ErrUnauthorized), errors.Is(err, shared.ErrDuplicate):
		httpx.RespondError(w, err)
	default:
		h.logger.Error("stock request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

// parseDay parses YYYY-MM-DD; end dates extend to the last instant of the day.
func parseDay(value string, endOfDay bool) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
