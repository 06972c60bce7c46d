package incident

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/frontandrew/ivisit/internal/domain"
	"github.com/frontandrew/ivisit/internal/pkg/clock"
	"github.com/frontandrew/ivisit/internal/pkg/logger"
	"github.com/frontandrew/ivisit/internal/pkg/metrics"
	"github.com/frontandrew/ivisit/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// PassMarker переводит пропуск в LOST внутри транзакции инцидента
type PassMarker interface {
	MarkLostTx(ctx context.Context, tx repository.Tx, id uuid.UUID) (*domain.VisitorPass, bool, error)
}

// CreateIncidentRequest - запрос на регистрацию инцидента
type CreateIncidentRequest struct {
	PassID         *uuid.UUID `json:"pass_id"`
	VisitorID      *uuid.UUID `json:"visitor_id,omitempty"`
	LogID          *uuid.UUID `json:"log_id,omitempty"`
	StationID      *uuid.UUID `json:"station_id,omitempty"`
	GuardAccountID *uuid.UUID `json:"guard_account_id,omitempty"`
	IncidentType   string     `json:"incident_type" validate:"max=32"`
	Description    string     `json:"description" validate:"max=2000"`
}

// CloseIncidentRequest - запрос на закрытие инцидента
type CloseIncidentRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

// Service регистрирует и закрывает инциденты с пропусками
type Service struct {
	store    repository.Store
	passes   PassMarker
	validate *validator.Validate
	clock    clock.Clock
	metrics  *metrics.Metrics
	logger   logger.Logger
}

// NewService создает новый экземпляр IncidentService
func NewService(
	store repository.Store,
	passes PassMarker,
	clk clock.Clock,
	m *metrics.Metrics,
	logger logger.Logger,
) *Service {
	return &Service{
		store:    store,
		passes:   passes,
		validate: validator.New(),
		clock:    clk,
		metrics:  m,
		logger:   logger,
	}
}

// Create регистрирует инцидент в отдельной транзакции
func (s *Service) Create(ctx context.Context, req *CreateIncidentRequest) (*domain.VisitorPassIncident, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ValidationError(err)
	}

	var incident *domain.VisitorPassIncident
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		var err error
		incident, err = s.CreateInTx(ctx, tx, req)
		return err
	})
	if err != nil {
		s.logger.Warn("Incident rejected", map[string]interface{}{
			"pass_id": req.PassID,
			"type":    req.IncidentType,
			"error":   err.Error(),
		})
		return nil, err
	}

	s.metrics.IncIncident(string(incident.IncidentType))
	s.logger.Info("Incident reported", map[string]interface{}{
		"incident_id": incident.ID,
		"pass_id":     incident.PassID,
		"type":        incident.IncidentType,
	})
	return incident, nil
}

// CreateInTx - Create внутри чужой транзакции
// Необязательные ссылки разрешаются по возможности: отсутствующая ссылка просто опускается
func (s *Service) CreateInTx(ctx context.Context, tx repository.Tx, req *CreateIncidentRequest) (*domain.VisitorPassIncident, error) {
	if req.PassID == nil || *req.PassID == uuid.Nil {
		return nil, domain.ErrIncidentPassRequired
	}

	incidentType, err := domain.ParseIncidentType(req.IncidentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, req.IncidentType)
	}

	pass, err := tx.Passes().GetByID(ctx, *req.PassID)
	if err != nil {
		return nil, err
	}

	incident := &domain.VisitorPassIncident{
		PassID:       pass.ID,
		IncidentType: incidentType,
		Description:  strings.TrimSpace(req.Description),
		Status:       domain.IncidentStatusOpen,
		ReportedAt:   s.clock.Now(),
	}

	if incident.VisitorID, err = resolve(ctx, req.VisitorID, func(ctx context.Context, id uuid.UUID) error {
		_, err := tx.Visitors().GetByID(ctx, id)
		return err
	}); err != nil {
		return nil, err
	}
	if incident.LogID, err = resolve(ctx, req.LogID, func(ctx context.Context, id uuid.UUID) error {
		_, err := tx.Logs().GetByID(ctx, id)
		return err
	}); err != nil {
		return nil, err
	}
	if incident.StationID, err = resolve(ctx, req.StationID, func(ctx context.Context, id uuid.UUID) error {
		_, err := tx.Stations().GetByID(ctx, id)
		return err
	}); err != nil {
		return nil, err
	}
	if incident.ReportedByID, err = resolve(ctx, req.GuardAccountID, func(ctx context.Context, id uuid.UUID) error {
		_, err := tx.Accounts().GetByID(ctx, id)
		return err
	}); err != nil {
		return nil, err
	}

	if err := tx.Incidents().Create(ctx, incident); err != nil {
		return nil, fmt.Errorf("failed to create incident: %w", err)
	}

	// первый инцидент переводит пропуск в LOST, для терминальных статусов ничего не происходит
	if incidentType.MarksPassLost() {
		if _, _, err := s.passes.MarkLostTx(ctx, tx, pass.ID); err != nil {
			return nil, err
		}
	}

	return incident, nil
}

// resolve возвращает id, если сущность найдена, и nil, если ее нет
func resolve(ctx context.Context, id *uuid.UUID, lookup func(ctx context.Context, id uuid.UUID) error) (*uuid.UUID, error) {
	if id == nil || *id == uuid.Nil {
		return nil, nil
	}
	err := lookup(ctx, *id)
	switch {
	case err == nil:
		resolved := *id
		return &resolved, nil
	case errors.Is(err, domain.ErrNotFound):
		return nil, nil
	default:
		return nil, err
	}
}

// Close закрывает инцидент; повторное закрытие - конфликт
func (s *Service) Close(ctx context.Context, id uuid.UUID, req *CloseIncidentRequest) (*domain.VisitorPassIncident, error) {
	if req == nil {
		req = &CloseIncidentRequest{}
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ValidationError(err)
	}

	var incident *domain.VisitorPassIncident
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		var err error
		incident, err = tx.Incidents().GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := incident.Close(req.Notes, s.clock.Now()); err != nil {
			return err
		}
		return tx.Incidents().Update(ctx, incident)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Incident closed", map[string]interface{}{
		"incident_id": id,
	})
	return incident, nil
}

// List возвращает инциденты; пустой фильтр - все инциденты
func (s *Service) List(ctx context.Context, rawStatus string) ([]*domain.VisitorPassIncident, error) {
	status, err := domain.ParseIncidentStatus(rawStatus)
	if err != nil {
		return nil, err
	}
	return s.store.Incidents().List(ctx, status)
}
