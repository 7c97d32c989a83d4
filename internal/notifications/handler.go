package notifications

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stockpile-erp/stockpile-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the notification inbox.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the notifications handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers notification routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/unread", h.handleListUnread)
	r.Get("/unread/count", h.handleUnreadCount)
	r.Post("/{id}/read", h.handleMarkRead)
	r.Post("/read-all", h.handleMarkAllRead)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	list, err := h.service.ListForActor(r.Context(), limit, offset)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if list == nil {
		list = []Notification{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"notifications": list})
}

func (h *Handler) handleListUnread(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListUnreadForActor(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if list == nil {
		list = []Notification{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"notifications": list})
}

func (h *Handler) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.UnreadCount(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"count": count})
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "notification id must be a positive integer")
		return
	}
	if err := h.service.MarkRead(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	updated, err := h.service.MarkAllRead(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"updated": updated})
}
