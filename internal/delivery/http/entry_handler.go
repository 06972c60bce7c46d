package http

import (
	"net/http"
	"strconv"

	"github.com/frontandrew/ivisit/internal/domain"
	"github.com/frontandrew/ivisit/internal/pkg/logger"
)

// EntryHandler отдает журналы отметок
type EntryHandler struct {
	entries EntryService
	limit   int
	logger  logger.Logger
}

// NewEntryHandler создает новый handler; limit - размер выборки по умолчанию
func NewEntryHandler(entries EntryService, limit int, logger logger.Logger) *EntryHandler {
	return &EntryHandler{
		entries: entries,
		limit:   limit,
		logger:  logger,
	}
}

// ListRecent возвращает последние отметки
// GET /api/v1/entries/recent?limit=50
func (h *EntryHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	limit := h.limit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	entries, err := h.entries.ListRecent(r.Context(), limit)
	if err != nil {
		respondServiceError(w, h.logger, "list entries", err)
		return
	}
	if entries == nil {
		entries = []*domain.VisitorLogEntry{}
	}
	respondData(w, http.StatusOK, entries)
}

// ListArchived возвращает архивированные отметки
// GET /api/v1/entries/archived
func (h *EntryHandler) ListArchived(w http.ResponseWriter, r *http.Request) {
	entries, err := h.entries.ListArchived(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, "list archived entries", err)
		return
	}
	if entries == nil {
		entries = []*domain.VisitorLogEntry{}
	}
	respondData(w, http.StatusOK, entries)
}
