package http

import (
	"context"
	"net/http"

	"github.com/frontandrew/ivisit/internal/domain"
	"github.com/frontandrew/ivisit/internal/pkg/logger"
	"github.com/frontandrew/ivisit/internal/usecase/entry"
	"github.com/frontandrew/ivisit/internal/usecase/session"
	"github.com/google/uuid"
)

// SessionService определяет интерфейс менеджера визитов
type SessionService interface {
	CheckIn(ctx context.Context, req *session.CheckInRequest) (*domain.VisitorLog, error)
	CheckOut(ctx context.Context, logID uuid.UUID, req *session.CheckOutRequest) (*domain.VisitorLog, error)
	GrantPass(ctx context.Context, logID, passID uuid.UUID) (*domain.VisitorLog, error)
	RevokePass(ctx context.Context, logID uuid.UUID) (*domain.VisitorLog, error)
	SoftCloseExtraneous(ctx context.Context, visitorID uuid.UUID) (int, error)
	Get(ctx context.Context, logID uuid.UUID) (*domain.VisitorLog, error)
	ListActive(ctx context.Context) ([]*domain.VisitorLog, error)
	ListAll(ctx context.Context) ([]*domain.VisitorLog, error)
	ListArchived(ctx context.Context) ([]*domain.VisitorLog, error)
}

// EntryService определяет интерфейс записи отметок на постах
type EntryService interface {
	Record(ctx context.Context, logID, stationID, guardID uuid.UUID) (*entry.RecordResult, error)
	ListRecent(ctx context.Context, limit int) ([]*domain.VisitorLogEntry, error)
	ListArchived(ctx context.Context) ([]*domain.VisitorLogEntry, error)
}

// SessionHandler обрабатывает запросы, связанные с визитами
type SessionHandler struct {
	sessions SessionService
	entries  EntryService
	logger   logger.Logger
}

// NewSessionHandler создает новый handler
func NewSessionHandler(sessions SessionService, entries EntryService, logger logger.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		entries:  entries,
		logger:   logger,
	}
}

// CheckIn открывает визит
// POST /api/v1/sessions/check-in
func (h *SessionHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	guard, ok := guardID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req session.CheckInRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	// первую отметку ставит охранник из токена, если не указан другой
	if req.InitialStationID != nil && req.GuardAccountID == nil {
		req.GuardAccountID = &guard
	}

	log, err := h.sessions.CheckIn(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, "check in visitor", err)
		return
	}

	respondData(w, http.StatusCreated, log)
}

// CheckOut закрывает визит
// POST /api/v1/sessions/{id}/check-out
func (h *SessionHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	logID, ok := uuidParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid session ID")
		return
	}
	guard, ok := guardID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req session.CheckOutRequest
	if err := decodeJSON(r, &req, true); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.StationID != nil && req.GuardAccountID == nil {
		req.GuardAccountID = &guard
	}

	log, err := h.sessions.CheckOut(r.Context(), logID, &req)
	if err != nil {
		respondServiceError(w, h.logger, "check out visitor", err)
		return
	}

	respondData(w, http.StatusOK, log)
}

// GrantPass выдает пропуск в открытый визит
// POST /api/v1/sessions/{id}/pass
func (h *SessionHandler) GrantPass(w http.ResponseWriter, r *http.Request) {
	logID, ok := uuidParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid session ID")
		return
	}

	var body struct {
		PassID uuid.UUID `json:"pass_id"`
	}
	if err := decodeJSON(r, &body, false); err != nil || body.PassID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "pass_id is required")
		return
	}

	log, err := h.sessions.GrantPass(r.Context(), logID, body.PassID)
	if err != nil {
		respondServiceError(w, h.logger, "grant pass", err)
		return
	}

	respondData(w, http.StatusOK, log)
}

// RevokePass отзывает пропуск из открытого визита
// DELETE /api/v1/sessions/{id}/pass
func (h *SessionHandler) RevokePass(w http.ResponseWriter, r *http.Request) {
	logID, ok := uuidParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid session ID")
		return
	}

	log, err := h.sessions.RevokePass(r.Context(), logID)
	if err != nil {
		respondServiceError(w, h.logger, "revoke pass", err)
		return
	}

	respondData(w, http.StatusOK, log)
}

// RecordEntry отмечает посетителя на посту
// Повторное сканирование - успешный ответ с duplicate_suppressed=true
// POST /api/v1/sessions/{id}/entries
func (h *SessionHandler) RecordEntry(w http.ResponseWriter, r *http.Request) {
	logID, ok := uuidParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid session ID")
		return
	}
	guard, ok := guardID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var body struct {
		StationID uuid.UUID `json:"station_id"`
	}
	if err := decodeJSON(r, &body, false); err != nil || body.StationID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "station_id is required")
		return
	}

	result, err := h.entries.Record(r.Context(), logID, body.StationID, guard)
	if err != nil {
		respondServiceError(w, h.logger, "record entry", err)
		return
	}

	code := http.StatusCreated
	if result.Suppressed {
		code = http.StatusOK
	}
	respondData(w, code, result)
}

// Get возвращает визит с отметками
// GET /api/v1/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	logID, ok := uuidParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid session ID")
		return
	}

	log, err := h.sessions.Get(r.Context(), logID)
	if err != nil {
		respondServiceError(w, h.logger, "get session", err)
		return
	}

	respondData(w, http.StatusOK, log)
}

// ListActive GET /api/v1/sessions/active
func (h *SessionHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.sessions.ListActive)
}

// ListAll GET /api/v1/sessions
func (h *SessionHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.sessions.ListAll)
}

// ListArchived GET /api/v1/sessions/archived
func (h *SessionHandler) ListArchived(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.sessions.ListArchived)
}

func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request, fn func(context.Context) ([]*domain.VisitorLog, error)) {
	logs, err := fn(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, "list sessions", err)
		return
	}
	if logs == nil {
		logs = []*domain.VisitorLog{}
	}
	respondData(w, http.StatusOK, logs)
}

// SoftCloseExtraneous закрывает лишние открытые визиты посетителя (только для админов)
// POST /api/v1/admin/visitors/{id}/soft-close
func (h *SessionHandler) SoftCloseExtraneous(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := uuidParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid visitor ID")
		return
	}

	closed, err := h.sessions.SoftCloseExtraneous(r.Context(), visitorID)
	if err != nil {
		respondServiceError(w, h.logger, "soft close logs", err)
		return
	}

	respondData(w, http.StatusOK, map[string]int{"closed": closed})
}
