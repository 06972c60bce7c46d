package http

import (
	"context"
	"net/http"

	"github.com/frontandrew/ivisit/internal/domain"
	"github.com/frontandrew/ivisit/internal/pkg/logger"
	"github.com/frontandrew/ivisit/internal/usecase/incident"
	"github.com/google/uuid"
)

// IncidentService определяет интерфейс журнала инцидентов
type IncidentService interface {
	Create(ctx context.Context, req *incident.CreateIncidentRequest) (*domain.VisitorPassIncident, error)
	Close(ctx context.Context, id uuid.UUID, req *incident.CloseIncidentRequest) (*domain.VisitorPassIncident, error)
	List(ctx context.Context, rawStatus string) ([]*domain.VisitorPassIncident, error)
}

// IncidentHandler обрабатывает запросы по инцидентам с пропусками
type IncidentHandler struct {
	incidents IncidentService
	logger    logger.Logger
}

// NewIncidentHandler создает новый handler
func NewIncidentHandler(incidents IncidentService, logger logger.Logger) *IncidentHandler {
	return &IncidentHandler{
		incidents: incidents,
		logger:    logger,
	}
}

// CreateIncident регистрирует инцидент; автор по умолчанию - охранник из токена
// POST /api/v1/incidents
func (h *IncidentHandler) CreateIncident(w http.ResponseWriter, r *http.Request) {
	var req incident.CreateIncidentRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.GuardAccountID == nil {
		if guard, ok := guardID(r); ok {
			req.GuardAccountID = &guard
		}
	}

	created, err := h.incidents.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, "create incident", err)
		return
	}

	respondData(w, http.StatusCreated, created)
}

// ListIncidents возвращает инциденты
// GET /api/v1/incidents?status=OPEN
func (h *IncidentHandler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	incidents, err := h.incidents.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		respondServiceError(w, h.logger, "list incidents", err)
		return
	}
	if incidents == nil {
		incidents = []*domain.VisitorPassIncident{}
	}
	respondData(w, http.StatusOK, incidents)
}

// CloseIncident закрывает инцидент
// PATCH /api/v1/incidents/{id}/close
func (h *IncidentHandler) CloseIncident(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid incident ID")
		return
	}

	var req incident.CloseIncidentRequest
	if err := decodeJSON(r, &req, true); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	closed, err := h.incidents.Close(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, "close incident", err)
		return
	}

	respondData(w, http.StatusOK, closed)
}
