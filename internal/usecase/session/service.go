package session

import (
	"context"
	"fmt"
	"time"

	"github.com/frontandrew/ivisit/internal/domain"
	"github.com/frontandrew/ivisit/internal/pkg/clock"
	"github.com/frontandrew/ivisit/internal/pkg/logger"
	"github.com/frontandrew/ivisit/internal/pkg/metrics"
	"github.com/frontandrew/ivisit/internal/repository"
	"github.com/frontandrew/ivisit/internal/usecase/entry"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// PassRegistry - переходы статуса пропуска внутри транзакции визита
type PassRegistry interface {
	ReserveTx(ctx context.Context, tx repository.Tx, id uuid.UUID) (*domain.VisitorPass, error)
	ReleaseTx(ctx context.Context, tx repository.Tx, id uuid.UUID) (*domain.VisitorPass, bool, error)
}

// EntryRecorder - отметки на постах внутри транзакции визита
type EntryRecorder interface {
	RecordTx(ctx context.Context, tx repository.Tx, log *domain.VisitorLog, stationID, guardID uuid.UUID) (*entry.RecordResult, error)
	AppendTx(ctx context.Context, tx repository.Tx, log *domain.VisitorLog, stationID, guardID uuid.UUID, at time.Time) (*domain.VisitorLogEntry, error)
}

// CheckInRequest - запрос на открытие визита
type CheckInRequest struct {
	VisitorID         uuid.UUID   `json:"visitor_id" validate:"required"`
	PassID            *uuid.UUID  `json:"pass_id,omitempty"`
	PurposeOfVisit    string      `json:"purpose_of_visit" validate:"max=255"`
	AllowedStationIDs []uuid.UUID `json:"allowed_station_ids" validate:"max=64"`
	InitialStationID  *uuid.UUID  `json:"initial_station_id,omitempty"`
	GuardAccountID    *uuid.UUID  `json:"guard_account_id,omitempty"`
}

// CheckOutRequest - пост и охранник для отметки на выходе (оба необязательны)
type CheckOutRequest struct {
	StationID      *uuid.UUID `json:"station_id,omitempty"`
	GuardAccountID *uuid.UUID `json:"guard_account_id,omitempty"`
}

// Service управляет жизненным циклом визитов
type Service struct {
	store    repository.Store
	passes   PassRegistry
	entries  EntryRecorder
	policy   domain.OverstayPolicy
	validate *validator.Validate
	clock    clock.Clock
	metrics  *metrics.Metrics
	logger   logger.Logger
}

// NewService создает новый экземпляр SessionService
func NewService(
	store repository.Store,
	passes PassRegistry,
	entries EntryRecorder,
	policy domain.OverstayPolicy,
	clk clock.Clock,
	m *metrics.Metrics,
	logger logger.Logger,
) *Service {
	return &Service{
		store:    store,
		passes:   passes,
		entries:  entries,
		policy:   policy,
		validate: validator.New(),
		clock:    clk,
		metrics:  m,
		logger:   logger,
	}
}

// CheckIn открывает визит; у посетителя не может быть двух открытых визитов
func (s *Service) CheckIn(ctx context.Context, req *CheckInRequest) (*domain.VisitorLog, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ValidationError(err)
	}

	var log *domain.VisitorLog
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		// блокировка строки посетителя выстраивает параллельные check-in в очередь
		visitor, err := tx.Visitors().GetByIDForUpdate(ctx, req.VisitorID)
		if err != nil {
			return err
		}
		if visitor.Archived {
			return domain.ErrVisitorArchived
		}

		open, err := tx.Logs().ListOpenByVisitor(ctx, visitor.ID)
		if err != nil {
			return fmt.Errorf("failed to list open logs: %w", err)
		}
		if len(open) > 0 {
			return domain.ErrVisitorHasActiveLog
		}

		allowed, err := s.resolveStations(ctx, tx, req.AllowedStationIDs)
		if err != nil {
			return err
		}

		log = &domain.VisitorLog{
			VisitorID:         visitor.ID,
			ActiveStart:       s.clock.Now(),
			Status:            domain.LogStatusActive,
			PurposeOfVisit:    req.PurposeOfVisit,
			AllowedStationIDs: allowed,
		}

		if req.PassID != nil {
			pass, err := s.passes.ReserveTx(ctx, tx, *req.PassID)
			if err != nil {
				return err
			}
			log.PassID = &pass.ID
		}

		if err := log.Validate(); err != nil {
			return err
		}
		if err := tx.Logs().Create(ctx, log); err != nil {
			return fmt.Errorf("failed to create visitor log: %w", err)
		}

		if req.InitialStationID != nil && req.GuardAccountID != nil {
			result, err := s.entries.RecordTx(ctx, tx, log, *req.InitialStationID, *req.GuardAccountID)
			if err != nil {
				return err
			}
			log.Entries = []*domain.VisitorLogEntry{result.Entry}
		}

		return nil
	})
	if err != nil {
		s.logger.Warn("Check-in rejected", map[string]interface{}{
			"visitor_id": req.VisitorID,
			"error":      err.Error(),
		})
		return nil, err
	}

	s.metrics.IncCheckIn()
	s.logger.Info("Visitor checked in", map[string]interface{}{
		"visitor_id": log.VisitorID,
		"log_id":     log.ID,
		"pass_id":    log.PassID,
	})

	return log, nil
}

func (s *Service) resolveStations(ctx context.Context, tx repository.Tx, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		if _, err := tx.Stations().GetByID(ctx, id); err != nil {
			return nil, fmt.Errorf("allowed station %s: %w", id, err)
		}
		out = append(out, id)
	}
	return out, nil
}

// CheckOut закрывает визит и освобождает пропуск
// ENDED_OVERSTAY выставляется по той же политике, что и в фоновой проверке
func (s *Service) CheckOut(ctx context.Context, logID uuid.UUID, req *CheckOutRequest) (*domain.VisitorLog, error) {
	if req == nil {
		req = &CheckOutRequest{}
	}

	var log *domain.VisitorLog
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		var err error
		log, err = tx.Logs().GetByIDForUpdate(ctx, logID)
		if err != nil {
			return err
		}
		if !log.IsOpen() {
			return fmt.Errorf("%w (status %s)", domain.ErrLogNotActive, log.Status)
		}

		entries, err := tx.Entries().ListByLog(ctx, log.ID)
		if err != nil {
			return fmt.Errorf("failed to list entries: %w", err)
		}

		now := s.clock.Now()
		status := domain.LogStatusEnded
		if s.policy.Classify(domain.OverstayReference(log, entries), now) != domain.OverstayNone {
			status = domain.LogStatusEndedOverstay
		}

		if err := log.Close(status, now); err != nil {
			return err
		}
		if err := tx.Logs().Update(ctx, log); err != nil {
			return fmt.Errorf("failed to close visitor log: %w", err)
		}

		if log.PassID != nil {
			if _, _, err := s.passes.ReleaseTx(ctx, tx, *log.PassID); err != nil {
				return err
			}
		}

		if req.StationID != nil && req.GuardAccountID != nil {
			exit, err := s.entries.AppendTx(ctx, tx, log, *req.StationID, *req.GuardAccountID, now)
			if err != nil {
				return err
			}
			entries = append(entries, exit)
		}

		log.Entries = entries
		return nil
	})
	if err != nil {
		s.logger.Warn("Check-out rejected", map[string]interface{}{
			"log_id": logID,
			"error":  err.Error(),
		})
		return nil, err
	}

	s.metrics.IncSessionClosed(string(log.Status))
	s.logger.Info("Visitor checked out", map[string]interface{}{
		"log_id": log.ID,
		"status": log.Status,
	})

	return log, nil
}

// GrantPass выдает пропуск в открытый визит
// Ранее выданный пропуск сначала освобождается, затем резервируется новый;
// при ошибке резервирования откатываются оба шага
func (s *Service) GrantPass(ctx context.Context, logID, passID uuid.UUID) (*domain.VisitorLog, error) {
	var log *domain.VisitorLog
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		var err error
		log, err = tx.Logs().GetByIDForUpdate(ctx, logID)
		if err != nil {
			return err
		}
		if !log.IsOpen() {
			return fmt.Errorf("%w (status %s)", domain.ErrLogNotActive, log.Status)
		}

		if log.PassID != nil && *log.PassID == passID {
			return nil
		}

		if log.PassID != nil {
			if _, _, err := s.passes.ReleaseTx(ctx, tx, *log.PassID); err != nil {
				return err
			}
		}

		pass, err := s.passes.ReserveTx(ctx, tx, passID)
		if err != nil {
			return err
		}

		log.PassID = &pass.ID
		return tx.Logs().Update(ctx, log)
	})
	if err != nil {
		s.logger.Warn("Pass grant rejected", map[string]interface{}{
			"log_id":  logID,
			"pass_id": passID,
			"error":   err.Error(),
		})
		return nil, err
	}

	s.logger.Info("Pass granted", map[string]interface{}{
		"log_id":  logID,
		"pass_id": passID,
	})
	return log, nil
}

// RevokePass отзывает пропуск из открытого визита
func (s *Service) RevokePass(ctx context.Context, logID uuid.UUID) (*domain.VisitorLog, error) {
	var log *domain.VisitorLog
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		var err error
		log, err = tx.Logs().GetByIDForUpdate(ctx, logID)
		if err != nil {
			return err
		}
		if !log.IsOpen() {
			return fmt.Errorf("%w (status %s)", domain.ErrLogNotActive, log.Status)
		}
		if log.PassID == nil {
			return nil
		}

		if _, _, err := s.passes.ReleaseTx(ctx, tx, *log.PassID); err != nil {
			return err
		}

		log.PassID = nil
		return tx.Logs().Update(ctx, log)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Pass revoked", map[string]interface{}{
		"log_id": logID,
	})
	return log, nil
}

// SoftCloseExtraneous - ремонт данных: оставляет самый поздний открытый визит,
// остальные закрывает как ENDED_FORCED. Пропуска не трогает, чтобы не скрыть
// ошибку учета пропусков. Возвращает число закрытых визитов
func (s *Service) SoftCloseExtraneous(ctx context.Context, visitorID uuid.UUID) (int, error) {
	closed := 0
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.Visitors().GetByIDForUpdate(ctx, visitorID); err != nil {
			return err
		}

		open, err := tx.Logs().ListOpenByVisitor(ctx, visitorID)
		if err != nil {
			return fmt.Errorf("failed to list open logs: %w", err)
		}
		if len(open) <= 1 {
			return nil
		}

		keep := open[0]
		for _, l := range open[1:] {
			if !l.ActiveStart.Before(keep.ActiveStart) {
				keep = l
			}
		}

		now := s.clock.Now()
		for _, l := range open {
			if l.ID == keep.ID {
				continue
			}
			if err := l.ForceClose(domain.LogStatusEndedForced, now); err != nil {
				return err
			}
			if err := tx.Logs().Update(ctx, l); err != nil {
				return fmt.Errorf("failed to force close log %s: %w", l.ID, err)
			}
			closed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if closed > 0 {
		s.logger.Warn("Extraneous open logs force closed", map[string]interface{}{
			"visitor_id": visitorID,
			"closed":     closed,
		})
	}
	return closed, nil
}

// Get возвращает визит вместе с отметками
func (s *Service) Get(ctx context.Context, logID uuid.UUID) (*domain.VisitorLog, error) {
	log, err := s.store.Logs().GetByID(ctx, logID)
	if err != nil {
		return nil, err
	}

	entries, err := s.store.Entries().ListByLog(ctx, log.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	log.Entries = entries
	return log, nil
}

// ListActive возвращает открытые визиты
func (s *Service) ListActive(ctx context.Context) ([]*domain.VisitorLog, error) {
	return s.withEntries(ctx, s.store.Logs().ListOpen)
}

// ListAll возвращает все визиты
func (s *Service) ListAll(ctx context.Context) ([]*domain.VisitorLog, error) {
	return s.withEntries(ctx, s.store.Logs().List)
}

// ListArchived возвращает архивированные визиты
func (s *Service) ListArchived(ctx context.Context) ([]*domain.VisitorLog, error) {
	return s.withEntries(ctx, s.store.Logs().ListArchived)
}

func (s *Service) withEntries(
	ctx context.Context,
	list func(ctx context.Context) ([]*domain.VisitorLog, error),
) ([]*domain.VisitorLog, error) {
	logs, err := list(ctx)
	if err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return logs, nil
	}

	ids := make([]uuid.UUID, len(logs))
	byID := make(map[uuid.UUID]*domain.VisitorLog, len(logs))
	for i, l := range logs {
		ids[i] = l.ID
		byID[l.ID] = l
	}

	entries, err := s.store.Entries().ListByLogs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	for _, e := range entries {
		if l, ok := byID[e.LogID]; ok {
			l.Entries = append(l.Entries, e)
		}
	}
	return logs, nil
}
