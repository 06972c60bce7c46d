package http

import (
	"context"
	"net/http"

	"github.com/frontandrew/ivisit/internal/domain"
	"github.com/frontandrew/ivisit/internal/pkg/logger"
	"github.com/frontandrew/ivisit/internal/usecase/pass"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// PassService определяет интерфейс реестра пропусков
type PassService interface {
	Create(ctx context.Context, req *pass.CreatePassRequest) (*domain.VisitorPass, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.VisitorPass, error)
	List(ctx context.Context, rawStatus string) ([]*domain.VisitorPass, error)
	ListAvailable(ctx context.Context) ([]*domain.VisitorPass, error)
	FindByUID(ctx context.Context, uid string) (*domain.VisitorPass, error)
	UpdateMetadata(ctx context.Context, id uuid.UUID, req *pass.UpdateMetadataRequest) (*domain.VisitorPass, error)
	SetStatus(ctx context.Context, id uuid.UUID, rawStatus string) (*domain.VisitorPass, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

// PassHandler обрабатывает запросы связанные с пропусками
type PassHandler struct {
	passService PassService
	logger      logger.Logger
}

// NewPassHandler создает новый handler
func NewPassHandler(passService PassService, logger logger.Logger) *PassHandler {
	return &PassHandler{
		passService: passService,
		logger:      logger,
	}
}

// CreatePass регистрирует пропуск (только для админов)
// POST /api/v1/passes
func (h *PassHandler) CreatePass(w http.ResponseWriter, r *http.Request) {
	var req pass.CreatePassRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	p, err := h.passService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, "create pass", err)
		return
	}

	respondData(w, http.StatusCreated, p)
}

// ListPasses возвращает пропуска, опционально по статусу
// GET /api/v1/passes?status=AVAILABLE
func (h *PassHandler) ListPasses(w http.ResponseWriter, r *http.Request) {
	passes, err := h.passService.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		respondServiceError(w, h.logger, "list passes", err)
		return
	}
	respondPasses(w, passes)
}

// ListAvailable возвращает свободные пропуска
// GET /api/v1/passes/available
func (h *PassHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	passes, err := h.passService.ListAvailable(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, "list passes", err)
		return
	}
	respondPasses(w, passes)
}

func respondPasses(w http.ResponseWriter, passes []*domain.VisitorPass) {
	if passes == nil {
		passes = []*domain.VisitorPass{}
	}
	respondData(w, http.StatusOK, passes)
}

// GetPassByID возвращает пропуск по ID
// GET /api/v1/passes/{id}
func (h *PassHandler) GetPassByID(w http.ResponseWriter, r *http.Request) {
	passID, ok := uuidParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid pass ID")
		return
	}

	p, err := h.passService.Get(r.Context(), passID)
	if err != nil {
		respondServiceError(w, h.logger, "get pass", err)
		return
	}

	respondData(w, http.StatusOK, p)
}

// GetPassByUID ищет пропуск по UID карты или внешнему ID (сканер на посту)
// GET /api/v1/passes/by-uid/{uid}
func (h *PassHandler) GetPassByUID(w http.ResponseWriter, r *http.Request) {
	p, err := h.passService.FindByUID(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		respondServiceError(w, h.logger, "find pass", err)
		return
	}

	respondData(w, http.StatusOK, p)
}

// UpdatePass меняет метаданные пропуска
// PUT /api/v1/passes/{id}
func (h *PassHandler) UpdatePass(w http.ResponseWriter, r *http.Request) {
	passID, ok := uuidParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid pass ID")
		return
	}

	var req pass.UpdateMetadataRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	p, err := h.passService.UpdateMetadata(r.Context(), passID, &req)
	if err != nil {
		respondServiceError(w, h.logger, "update pass", err)
		return
	}

	respondData(w, http.StatusOK, p)
}

// SetPassStatus - ручная смена статуса (только для админов)
// PUT /api/v1/passes/{id}/status
func (h *PassHandler) SetPassStatus(w http.ResponseWriter, r *http.Request) {
	passID, ok := uuidParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid pass ID")
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &body, false); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	p, err := h.passService.SetStatus(r.Context(), passID, body.Status)
	if err != nil {
		respondServiceError(w, h.logger, "set pass status", err)
		return
	}

	respondData(w, http.StatusOK, p)
}

// DeletePass мягко удаляет пропуск (только для админов)
// DELETE /api/v1/passes/{id}
func (h *PassHandler) DeletePass(w http.ResponseWriter, r *http.Request) {
	passID, ok := uuidParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid pass ID")
		return
	}

	if err := h.passService.SoftDelete(r.Context(), passID); err != nil {
		respondServiceError(w, h.logger, "delete pass", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Pass deactivated",
	})
}
