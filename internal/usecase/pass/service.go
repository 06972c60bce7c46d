package pass

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/frontandrew/ivisit/internal/domain"
	"github.com/frontandrew/ivisit/internal/pkg/clock"
	"github.com/frontandrew/ivisit/internal/pkg/logger"
	"github.com/frontandrew/ivisit/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// CreatePassRequest - запрос на регистрацию пропуска
type CreatePassRequest struct {
	UID        string `json:"uid" validate:"required,max=64"`
	ExternalID string `json:"external_id" validate:"max=128"`
	Status     string `json:"status" validate:"max=32"`
}

// UpdateMetadataRequest - новые метаданные пропуска; пустые строки очищают поле
type UpdateMetadataRequest struct {
	DisplayCode     string     `json:"display_code" validate:"max=64"`
	OriginLocation  string     `json:"origin_location" validate:"max=255"`
	ExternalID      string     `json:"external_id" validate:"max=128"`
	OriginStationID *uuid.UUID `json:"origin_station_id"`
}

// Service содержит бизнес-логику реестра пропусков
// Статус пропуска меняется только через методы этого сервиса
type Service struct {
	store    repository.Store
	reader   repository.VisitorPassRepository
	validate *validator.Validate
	clock    clock.Clock
	logger   logger.Logger
}

// NewService создает новый экземпляр PassService
// reader используется для чтения вне транзакций (например, кэширующая обертка); nil - store.Passes()
func NewService(
	store repository.Store,
	reader repository.VisitorPassRepository,
	clk clock.Clock,
	logger logger.Logger,
) *Service {
	if reader == nil {
		reader = store.Passes()
	}
	return &Service{
		store:    store,
		reader:   reader,
		validate: validator.New(),
		clock:    clk,
		logger:   logger,
	}
}

// Create регистрирует новый пропуск
func (s *Service) Create(ctx context.Context, req *CreatePassRequest) (*domain.VisitorPass, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ValidationError(err)
	}

	uid := domain.NormalizePassUID(req.UID)
	if uid == "" {
		return nil, domain.ErrPassUIDRequired
	}

	status, err := domain.ParsePassStatus(req.Status)
	if err != nil {
		return nil, err
	}
	if status == domain.PassStatusInUse {
		return nil, fmt.Errorf("%w: IN_USE is set by check-in only", domain.ErrInvalidPassStatus)
	}

	pass := &domain.VisitorPass{
		PassNumber: uid,
		ExternalID: strings.TrimSpace(req.ExternalID),
		Status:     status,
		CreatedAt:  s.clock.Now(),
	}

	err = s.store.RunInTx(ctx, func(tx repository.Tx) error {
		existing, err := tx.Passes().GetByPassNumber(ctx, uid)
		if err == nil {
			return fmt.Errorf("%w: card UID %s (label: %s)", domain.ErrPassAlreadyExists, uid, existing.Label())
		}
		if !errors.Is(err, domain.ErrPassNotFound) {
			return fmt.Errorf("failed to check pass uid: %w", err)
		}

		return tx.Passes().Create(ctx, pass)
	})
	if err != nil {
		s.logger.Warn("Pass registration rejected", map[string]interface{}{
			"uid":   uid,
			"error": err.Error(),
		})
		return nil, err
	}

	s.logger.Info("Pass registered", map[string]interface{}{
		"pass_id": pass.ID,
		"uid":     uid,
		"status":  pass.Status,
	})

	return pass, nil
}

// Get возвращает пропуск по ID
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.VisitorPass, error) {
	return s.reader.GetByID(ctx, id)
}

// List возвращает пропуска; пустой фильтр - все
func (s *Service) List(ctx context.Context, rawStatus string) ([]*domain.VisitorPass, error) {
	if strings.TrimSpace(rawStatus) == "" {
		return s.reader.List(ctx, nil)
	}

	status, err := domain.ParsePassStatus(rawStatus)
	if err != nil {
		return nil, err
	}
	return s.reader.List(ctx, &status)
}

// ListAvailable возвращает пропуска, которые можно выдать
func (s *Service) ListAvailable(ctx context.Context) ([]*domain.VisitorPass, error) {
	status := domain.PassStatusAvailable
	return s.reader.List(ctx, &status)
}

// FindByUID ищет пропуск по считанному UID: сначала внешний ID, затем номер карты
func (s *Service) FindByUID(ctx context.Context, uid string) (*domain.VisitorPass, error) {
	raw := strings.TrimSpace(uid)
	if raw == "" {
		return nil, domain.ErrPassUIDRequired
	}

	pass, err := s.reader.GetByExternalID(ctx, raw)
	if err == nil {
		return pass, nil
	}
	if !errors.Is(err, domain.ErrPassNotFound) {
		return nil, fmt.Errorf("failed to find pass by external id: %w", err)
	}

	return s.reader.GetByPassNumber(ctx, domain.NormalizePassUID(raw))
}

// Reserve переводит AVAILABLE -> IN_USE
func (s *Service) Reserve(ctx context.Context, id uuid.UUID) (*domain.VisitorPass, error) {
	var pass *domain.VisitorPass
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		var err error
		pass, err = s.ReserveTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pass, nil
}

// ReserveTx - Reserve внутри чужой транзакции
func (s *Service) ReserveTx(ctx context.Context, tx repository.Tx, id uuid.UUID) (*domain.VisitorPass, error) {
	pass, err := tx.Passes().GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := pass.Reserve(); err != nil {
		s.logger.Warn("Pass reservation rejected", map[string]interface{}{
			"pass_id": id,
			"status":  pass.Status,
		})
		return nil, fmt.Errorf("%w (status %s)", err, pass.Status)
	}

	if err := tx.Passes().Update(ctx, pass); err != nil {
		return nil, fmt.Errorf("failed to reserve pass: %w", err)
	}
	return pass, nil
}

// Release переводит IN_USE -> AVAILABLE; для остальных статусов ничего не делает
func (s *Service) Release(ctx context.Context, id uuid.UUID) (*domain.VisitorPass, error) {
	var pass *domain.VisitorPass
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		var err error
		pass, _, err = s.ReleaseTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pass, nil
}

// ReleaseTx - Release внутри чужой транзакции; changed=false, если статус не менялся
func (s *Service) ReleaseTx(ctx context.Context, tx repository.Tx, id uuid.UUID) (*domain.VisitorPass, bool, error) {
	pass, err := tx.Passes().GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, false, err
	}

	if !pass.Release() {
		s.logger.Debug("Pass release skipped", map[string]interface{}{
			"pass_id": id,
			"status":  pass.Status,
		})
		return pass, false, nil
	}

	if err := tx.Passes().Update(ctx, pass); err != nil {
		return nil, false, fmt.Errorf("failed to release pass: %w", err)
	}
	return pass, true, nil
}

// Lock переводит пропуск в OVERSTAY_LOCKED (идемпотентно)
func (s *Service) Lock(ctx context.Context, id uuid.UUID) (*domain.VisitorPass, error) {
	var pass *domain.VisitorPass
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		var err error
		pass, _, err = s.LockTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pass, nil
}

// LockTx - Lock внутри чужой транзакции
func (s *Service) LockTx(ctx context.Context, tx repository.Tx, id uuid.UUID) (*domain.VisitorPass, bool, error) {
	pass, err := tx.Passes().GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, false, err
	}

	if !pass.Lock() {
		return pass, false, nil
	}

	if err := tx.Passes().Update(ctx, pass); err != nil {
		return nil, false, fmt.Errorf("failed to lock pass: %w", err)
	}

	s.logger.Warn("Pass locked after overstay", map[string]interface{}{
		"pass_id": id,
	})
	return pass, true, nil
}

// MarkLostTx переводит пропуск в LOST, если он еще не выведен из оборота
func (s *Service) MarkLostTx(ctx context.Context, tx repository.Tx, id uuid.UUID) (*domain.VisitorPass, bool, error) {
	pass, err := tx.Passes().GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, false, err
	}

	if !pass.MarkLost() {
		return pass, false, nil
	}

	if err := tx.Passes().Update(ctx, pass); err != nil {
		return nil, false, fmt.Errorf("failed to mark pass lost: %w", err)
	}

	s.logger.Info("Pass marked lost", map[string]interface{}{
		"pass_id": id,
	})
	return pass, true, nil
}

// SoftDelete переводит пропуск в INACTIVE; выданный пропуск удалить нельзя
func (s *Service) SoftDelete(ctx context.Context, id uuid.UUID) error {
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		pass, err := tx.Passes().GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if err := pass.Deactivate(); err != nil {
			return err
		}

		return tx.Passes().Update(ctx, pass)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Pass deactivated", map[string]interface{}{
		"pass_id": id,
	})
	return nil
}

// SetStatus - административная смена статуса (единственный выход из OVERSTAY_LOCKED/LOST/RETIRED)
// IN_USE выставляется только через выдачу пропуска в визит. Пропуск, который
// удерживает открытый визит, сначала нужно отозвать из визита; IN_USE без
// открытого визита (осиротевший) можно вернуть в оборот
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, rawStatus string) (*domain.VisitorPass, error) {
	if strings.TrimSpace(rawStatus) == "" {
		return nil, fmt.Errorf("%w: status must not be empty", domain.ErrInvalidPassStatus)
	}

	status, err := domain.ParsePassStatus(rawStatus)
	if err != nil {
		return nil, err
	}
	if status == domain.PassStatusInUse {
		return nil, fmt.Errorf("%w: IN_USE is set by check-in only", domain.ErrInvalidPassStatus)
	}

	var pass *domain.VisitorPass
	err = s.store.RunInTx(ctx, func(tx repository.Tx) error {
		var err error
		pass, err = tx.Passes().GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if pass.Status == domain.PassStatusInUse {
			held, err := heldByOpenLog(ctx, tx, pass.ID)
			if err != nil {
				return err
			}
			if held {
				return domain.ErrPassInUse
			}
			s.logger.Warn("Recovering IN_USE pass without open log", map[string]interface{}{
				"pass_id": id,
				"status":  status,
			})
		}

		pass.Status = status
		return tx.Passes().Update(ctx, pass)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Pass status changed by admin", map[string]interface{}{
		"pass_id": id,
		"status":  status,
	})
	return pass, nil
}

// heldByOpenLog - пропуск закреплен за каким-либо открытым визитом
func heldByOpenLog(ctx context.Context, tx repository.Tx, passID uuid.UUID) (bool, error) {
	open, err := tx.Logs().ListOpen(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list open logs: %w", err)
	}
	for _, log := range open {
		if log.PassID != nil && *log.PassID == passID {
			return true, nil
		}
	}
	return false, nil
}

// UpdateMetadata меняет подпись, происхождение и внешний ID; статус и UID не трогает
func (s *Service) UpdateMetadata(ctx context.Context, id uuid.UUID, req *UpdateMetadataRequest) (*domain.VisitorPass, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ValidationError(err)
	}

	var pass *domain.VisitorPass
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		var err error
		pass, err = tx.Passes().GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if req.OriginStationID != nil {
			if _, err := tx.Stations().GetByID(ctx, *req.OriginStationID); err != nil {
				return err
			}
		}

		pass.DisplayCode = strings.TrimSpace(req.DisplayCode)
		pass.OriginLocation = strings.TrimSpace(req.OriginLocation)
		pass.ExternalID = strings.TrimSpace(req.ExternalID)
		pass.OriginStationID = req.OriginStationID

		return tx.Passes().Update(ctx, pass)
	})
	if err != nil {
		return nil, err
	}

	// кэш UID -> пропуск сам отбрасывает устаревшие ключи, здесь сбрасываем актуальные
	if inv, ok := s.reader.(interface {
		Invalidate(ctx context.Context, pass *domain.VisitorPass)
	}); ok {
		inv.Invalidate(ctx, pass)
	}

	s.logger.Info("Pass metadata updated", map[string]interface{}{
		"pass_id":      id,
		"display_code": pass.DisplayCode,
	})
	return pass, nil
}
