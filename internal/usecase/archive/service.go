package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/frontandrew/ivisit/internal/domain"
	"github.com/frontandrew/ivisit/internal/pkg/clock"
	"github.com/frontandrew/ivisit/internal/pkg/logger"
	"github.com/frontandrew/ivisit/internal/pkg/metrics"
	"github.com/frontandrew/ivisit/internal/repository"
	"github.com/google/uuid"
)

// Report - итог одного прогона архивации
type Report struct {
	Cutoff   time.Time `json:"cutoff"`
	Scanned  int       `json:"scanned"`
	Visitors int64     `json:"visitors_archived"`
	Logs     int64     `json:"logs_archived"`
	Entries  int64     `json:"entries_archived"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
}

type candidate struct {
	visitorID uuid.UUID
	logIDs    []uuid.UUID
}

// Service архивирует неактивных посетителей вместе с их визитами и отметками
type Service struct {
	store   repository.Store
	years   int
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  logger.Logger
}

// NewService создает новый экземпляр ArchiveService
// retentionYears - сколько полных лет хранится неархивированная история
func NewService(
	store repository.Store,
	retentionYears int,
	clk clock.Clock,
	m *metrics.Metrics,
	logger logger.Logger,
) *Service {
	return &Service{
		store:   store,
		years:   retentionYears,
		clock:   clk,
		metrics: m,
		logger:  logger,
	}
}

// Cutoff - начало локального дня, отстоящего от now на срок хранения
func (s *Service) Cutoff(now time.Time) time.Time {
	day := now.AddDate(-s.years, 0, 0)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
}

// Run выбирает кандидатов и архивирует их одной транзакцией с общим archivedAt
func (s *Service) Run(ctx context.Context) (*Report, error) {
	now := s.clock.Now()
	report := &Report{Cutoff: s.Cutoff(now)}

	visitors, err := s.store.Visitors().ListNotArchived(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list visitors: %w", err)
	}
	report.Scanned = len(visitors)

	var candidates []candidate
	for _, v := range visitors {
		c, eligible, err := s.evaluate(ctx, s.store, v, report.Cutoff)
		if err != nil {
			report.Failed++
			s.logger.Error("Archive evaluation failed", map[string]interface{}{
				"visitor_id": v.ID,
				"error":      err.Error(),
			})
			continue
		}
		if !eligible {
			report.Skipped++
			continue
		}
		candidates = append(candidates, c)
	}

	if len(candidates) > 0 {
		if err := s.archive(ctx, candidates, report.Cutoff, now, report); err != nil {
			return nil, err
		}
	}

	s.metrics.AddVisitorsArchived(int(report.Visitors))
	s.logger.Info("Archive run finished", map[string]interface{}{
		"cutoff":   report.Cutoff,
		"scanned":  report.Scanned,
		"visitors": report.Visitors,
		"logs":     report.Logs,
		"entries":  report.Entries,
		"skipped":  report.Skipped,
		"failed":   report.Failed,
	})
	return report, nil
}

// evaluate: открытый визит всегда блокирует архивацию; без известной
// последней активности посетитель тоже пропускается
// repos - либо хранилище (предварительный отбор), либо транзакция (перепроверка)
func (s *Service) evaluate(ctx context.Context, repos repository.Tx, v *domain.Visitor, cutoff time.Time) (candidate, bool, error) {
	if v.Archived {
		return candidate{}, false, nil
	}

	logs, err := repos.Logs().ListNotArchivedByVisitor(ctx, v.ID)
	if err != nil {
		return candidate{}, false, fmt.Errorf("failed to list logs: %w", err)
	}

	c := candidate{visitorID: v.ID, logIDs: make([]uuid.UUID, 0, len(logs))}
	var last time.Time
	bump := func(t time.Time) {
		if t.After(last) {
			last = t
		}
	}

	bump(v.CreatedAt)
	for _, l := range logs {
		if l.ActiveEnd == nil {
			return candidate{}, false, nil
		}
		c.logIDs = append(c.logIDs, l.ID)
		bump(l.ActiveStart)
		bump(*l.ActiveEnd)
	}

	if len(c.logIDs) > 0 {
		entries, err := repos.Entries().ListByLogs(ctx, c.logIDs)
		if err != nil {
			return candidate{}, false, fmt.Errorf("failed to list entries: %w", err)
		}
		for _, e := range entries {
			bump(e.Timestamp)
		}
	}

	if last.IsZero() || !last.Before(cutoff) {
		return candidate{}, false, nil
	}
	return c, true, nil
}

// archive перепроверяет каждого кандидата под блокировкой строки посетителя:
// между отбором и транзакцией мог появиться новый визит или отметка, поэтому
// набор визитов и последняя активность вычисляются заново
func (s *Service) archive(ctx context.Context, candidates []candidate, cutoff, at time.Time, report *Report) error {
	var visitors, logs, entries int64
	var skipped int
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		skipped = 0
		visitorIDs := make([]uuid.UUID, 0, len(candidates))
		var logIDs []uuid.UUID

		for _, c := range candidates {
			// check-in блокирует ту же строку, поэтому после блокировки
			// новый визит появиться уже не может
			visitor, err := tx.Visitors().GetByIDForUpdate(ctx, c.visitorID)
			if err != nil {
				return err
			}
			fresh, eligible, err := s.evaluate(ctx, tx, visitor, cutoff)
			if err != nil {
				return err
			}
			if !eligible {
				skipped++
				continue
			}
			visitorIDs = append(visitorIDs, fresh.visitorID)
			logIDs = append(logIDs, fresh.logIDs...)
		}

		if len(visitorIDs) == 0 {
			return nil
		}

		var err error
		if visitors, err = tx.Visitors().MarkArchived(ctx, visitorIDs, at); err != nil {
			return fmt.Errorf("failed to archive visitors: %w", err)
		}
		if len(logIDs) == 0 {
			return nil
		}
		if logs, err = tx.Logs().MarkArchived(ctx, logIDs, at); err != nil {
			return fmt.Errorf("failed to archive logs: %w", err)
		}
		if entries, err = tx.Entries().MarkArchivedByLogs(ctx, logIDs, at); err != nil {
			return fmt.Errorf("failed to archive entries: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Archive batch failed", map[string]interface{}{
			"candidates": len(candidates),
			"error":      err.Error(),
		})
		return err
	}

	report.Skipped += skipped
	report.Visitors = visitors
	report.Logs = logs
	report.Entries = entries
	return nil
}
