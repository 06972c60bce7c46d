package overstay

import (
	"context"
	"fmt"
	"time"

	"github.com/frontandrew/ivisit/internal/domain"
	"github.com/frontandrew/ivisit/internal/pkg/clock"
	"github.com/frontandrew/ivisit/internal/pkg/logger"
	"github.com/frontandrew/ivisit/internal/pkg/metrics"
	"github.com/frontandrew/ivisit/internal/repository"
	"github.com/frontandrew/ivisit/internal/usecase/incident"
	"github.com/google/uuid"
)

// PassLocker блокирует пропуск после жесткого превышения
type PassLocker interface {
	LockTx(ctx context.Context, tx repository.Tx, id uuid.UUID) (*domain.VisitorPass, bool, error)
}

// IncidentCreator регистрирует инцидент в транзакции визита
type IncidentCreator interface {
	CreateInTx(ctx context.Context, tx repository.Tx, req *incident.CreateIncidentRequest) (*domain.VisitorPassIncident, error)
}

// Report - итог одного прогона
type Report struct {
	Scanned int `json:"scanned"`
	Flagged int `json:"flagged"`
	Locked  int `json:"locked"`
	Failed  int `json:"failed"`
}

type outcome int

const (
	outcomeNone outcome = iota
	outcomeFlagged
	outcomeLocked
)

// Service оценивает открытые визиты по порогам превышения времени
type Service struct {
	store     repository.Store
	passes    PassLocker
	incidents IncidentCreator
	policy    domain.OverstayPolicy
	clock     clock.Clock
	metrics   *metrics.Metrics
	logger    logger.Logger
}

// NewService создает новый экземпляр OverstayService
func NewService(
	store repository.Store,
	passes PassLocker,
	incidents IncidentCreator,
	policy domain.OverstayPolicy,
	clk clock.Clock,
	m *metrics.Metrics,
	logger logger.Logger,
) *Service {
	return &Service{
		store:     store,
		passes:    passes,
		incidents: incidents,
		policy:    policy,
		clock:     clk,
		metrics:   m,
		logger:    logger,
	}
}

// Evaluate проходит по всем открытым визитам
// Каждый визит обрабатывается в своей транзакции; ошибка одного визита
// логируется и не останавливает остальные
func (s *Service) Evaluate(ctx context.Context) (*Report, error) {
	open, err := s.store.Logs().ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list open logs: %w", err)
	}

	report := &Report{Scanned: len(open)}
	now := s.clock.Now()

	for _, l := range open {
		result, err := s.evaluate(ctx, l.ID, now)
		if err != nil {
			report.Failed++
			s.logger.Error("Overstay evaluation failed", map[string]interface{}{
				"log_id": l.ID,
				"error":  err.Error(),
			})
			continue
		}

		switch result {
		case outcomeFlagged:
			report.Flagged++
			s.metrics.IncOverstay("soft")
		case outcomeLocked:
			report.Locked++
			s.metrics.IncOverstay("hard")
			s.metrics.IncSessionClosed(string(domain.LogStatusLockedOverstay))
			s.metrics.IncIncident(string(domain.IncidentTypeOverstay))
		}
	}

	s.logger.Info("Overstay evaluation finished", map[string]interface{}{
		"scanned": report.Scanned,
		"flagged": report.Flagged,
		"locked":  report.Locked,
		"failed":  report.Failed,
	})
	return report, nil
}

func (s *Service) evaluate(ctx context.Context, logID uuid.UUID, now time.Time) (outcome, error) {
	result := outcomeNone
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		log, err := tx.Logs().GetByIDForUpdate(ctx, logID)
		if err != nil {
			return err
		}
		// визит мог закрыться между выборкой и блокировкой
		if !log.IsOpen() {
			return nil
		}

		entries, err := tx.Entries().ListByLog(ctx, log.ID)
		if err != nil {
			return fmt.Errorf("failed to list entries: %w", err)
		}

		switch s.policy.Classify(domain.OverstayReference(log, entries), now) {
		case domain.OverstayHard:
			if err := s.lock(ctx, tx, log, now); err != nil {
				return err
			}
			result = outcomeLocked
		case domain.OverstaySoft:
			if !log.FlagOverstay() {
				return nil
			}
			if err := tx.Logs().Update(ctx, log); err != nil {
				return fmt.Errorf("failed to flag overstay: %w", err)
			}
			result = outcomeFlagged
		}
		return nil
	})
	if err != nil {
		return outcomeNone, err
	}
	return result, nil
}

// lock: закрыть визит -> заблокировать пропуск -> инцидент, все в одной транзакции
func (s *Service) lock(ctx context.Context, tx repository.Tx, log *domain.VisitorLog, now time.Time) error {
	if err := log.ForceClose(domain.LogStatusLockedOverstay, now); err != nil {
		return err
	}
	if err := tx.Logs().Update(ctx, log); err != nil {
		return fmt.Errorf("failed to lock visitor log: %w", err)
	}

	if log.PassID == nil {
		s.logger.Warn("Hard overstay on a log without a pass", map[string]interface{}{
			"log_id": log.ID,
		})
		return nil
	}

	if _, _, err := s.passes.LockTx(ctx, tx, *log.PassID); err != nil {
		return err
	}

	visitorID := log.VisitorID
	logID := log.ID
	if _, err := s.incidents.CreateInTx(ctx, tx, &incident.CreateIncidentRequest{
		PassID:       log.PassID,
		VisitorID:    &visitorID,
		LogID:        &logID,
		IncidentType: string(domain.IncidentTypeOverstay),
		Description:  fmt.Sprintf("Visit exceeded %d hours and was auto-locked.", int(s.policy.Hard.Hours())),
	}); err != nil {
		return err
	}

	s.logger.Warn("Visitor log locked for overstay", map[string]interface{}{
		"log_id":  log.ID,
		"pass_id": *log.PassID,
	})
	return nil
}
