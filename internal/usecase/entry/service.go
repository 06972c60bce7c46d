package entry

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

const defaultRecentLimit = 50

// RecordResult - результат отметки на посту
// Suppressed=true означает повторное сканирование: новая запись не создана,
// Entry содержит предыдущую отметку. Это успешный исход, а не ошибка
type RecordResult struct {
	Entry      *domain.VisitorLogEntry `json:"entry"`
	Suppressed bool                    `json:"duplicate_suppressed"`
}

// Service записывает отметки посетителей на постах охраны
type Service struct {
	store   repository.Store
	window  time.Duration
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  logger.Logger
}

// NewService создает новый экземпляр EntryService
func NewService(
	store repository.Store,
	window time.Duration,
	clk clock.Clock,
	m *metrics.Metrics,
	logger logger.Logger,
) *Service {
	return &Service{
		store:   store,
		window:  window,
		clock:   clk,
		metrics: m,
		logger:  logger,
	}
}

// Record добавляет отметку к открытому визиту
// Чтение последней отметки и вставка выполняются в одной транзакции под блокировкой визита
func (s *Service) Record(ctx context.Context, logID, stationID, guardID uuid.UUID) (*RecordResult, error) {
	var result *RecordResult
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		log, err := tx.Logs().GetByIDForUpdate(ctx, logID)
		if err != nil {
			return err
		}

		result, err = s.RecordTx(ctx, tx, log, stationID, guardID)
		return err
	})
	if err != nil {
		s.logger.Warn("Entry rejected", map[string]interface{}{
			"log_id":     logID,
			"station_id": stationID,
			"error":      err.Error(),
		})
		return nil, err
	}

	if result.Suppressed {
		s.metrics.IncEntrySuppressed()
		s.logger.Info("Duplicate scan suppressed", map[string]interface{}{
			"log_id":     logID,
			"station_id": stationID,
		})
		return result, nil
	}

	s.metrics.IncEntryRecorded()
	s.logger.Info("Entry recorded", map[string]interface{}{
		"log_id":     logID,
		"entry_id":   result.Entry.ID,
		"station_id": stationID,
	})
	return result, nil
}

// RecordTx - Record внутри чужой транзакции; log должен быть заблокирован вызывающим
func (s *Service) RecordTx(
	ctx context.Context,
	tx repository.Tx,
	log *domain.VisitorLog,
	stationID, guardID uuid.UUID,
) (*RecordResult, error) {
	if !log.IsOpen() {
		return nil, fmt.Errorf("%w (status %s)", domain.ErrLogNotActive, log.Status)
	}

	if err := s.checkRefs(ctx, tx, stationID, guardID); err != nil {
		return nil, err
	}

	latest, err := tx.Entries().GetLatestByLog(ctx, log.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest entry: %w", err)
	}

	now := s.clock.Now()
	if latest != nil && latest.IsDuplicateOf(stationID, now, s.window) {
		return &RecordResult{Entry: latest, Suppressed: true}, nil
	}

	entry, err := s.append(ctx, tx, log, latest, stationID, guardID, now)
	if err != nil {
		return nil, err
	}
	return &RecordResult{Entry: entry}, nil
}

// AppendTx пишет отметку без проверки статуса визита и без подавления дубликатов
// Используется для отметки на выходе, когда визит закрывается в той же транзакции
func (s *Service) AppendTx(
	ctx context.Context,
	tx repository.Tx,
	log *domain.VisitorLog,
	stationID, guardID uuid.UUID,
	at time.Time,
) (*domain.VisitorLogEntry, error) {
	if err := s.checkRefs(ctx, tx, stationID, guardID); err != nil {
		return nil, err
	}

	latest, err := tx.Entries().GetLatestByLog(ctx, log.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest entry: %w", err)
	}

	entry, err := s.append(ctx, tx, log, latest, stationID, guardID, at)
	if err != nil {
		return nil, err
	}

	s.metrics.IncEntryRecorded()
	return entry, nil
}

func (s *Service) checkRefs(ctx context.Context, tx repository.Tx, stationID, guardID uuid.UUID) error {
	if _, err := tx.Stations().GetByID(ctx, stationID); err != nil {
		return err
	}
	if _, err := tx.Accounts().GetByID(ctx, guardID); err != nil {
		return err
	}
	return nil
}

func (s *Service) append(
	ctx context.Context,
	tx repository.Tx,
	log *domain.VisitorLog,
	latest *domain.VisitorLogEntry,
	stationID, guardID uuid.UUID,
	at time.Time,
) (*domain.VisitorLogEntry, error) {
	// отметки визита не убывают по времени, даже если часы узла отстали
	if latest != nil && at.Before(latest.Timestamp) {
		at = latest.Timestamp
	}

	entry := &domain.VisitorLogEntry{
		LogID:          log.ID,
		StationID:      stationID,
		GuardAccountID: guardID,
		Timestamp:      at,
	}

	if log.PassID != nil {
		pass, err := tx.Passes().GetByID(ctx, *log.PassID)
		if err != nil {
			return nil, fmt.Errorf("failed to load pass for snapshot: %w", err)
		}
		entry.SnapshotPass(pass)
	}

	if err := tx.Entries().Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to create entry: %w", err)
	}
	return entry, nil
}

// ListByLog возвращает отметки визита
func (s *Service) ListByLog(ctx context.Context, logID uuid.UUID) ([]*domain.VisitorLogEntry, error) {
	return s.store.Entries().ListByLog(ctx, logID)
}

// ListRecent возвращает последние отметки, новые первыми
func (s *Service) ListRecent(ctx context.Context, limit int) ([]*domain.VisitorLogEntry, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	return s.store.Entries().ListRecent(ctx, limit)
}

// ListArchived возвращает архивированные отметки
func (s *Service) ListArchived(ctx context.Context) ([]*domain.VisitorLogEntry, error) {
	return s.store.Entries().ListArchived(ctx)
}
