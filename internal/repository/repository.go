package repository

import (
	"context"
	"time"

	"github.com/frontandrew/ivisit/internal/domain"
	"github.com/google/uuid"
)

// VisitorRepository определяет методы для работы с посетителями
type VisitorRepository interface {
	// Create создает нового посетителя
	Create(ctx context.Context, visitor *domain.Visitor) error

	// GetByID возвращает посетителя по ID
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Visitor, error)

	// GetByIDForUpdate возвращает посетителя и блокирует строку до конца транзакции
	// Используется при check-in, чтобы параллельные check-in одного посетителя выстраивались в очередь
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Visitor, error)

	// ListNotArchived возвращает всех неархивированных посетителей
	ListNotArchived(ctx context.Context) ([]*domain.Visitor, error)

	// MarkArchived архивирует посетителей; уже архивированные строки не трогает
	MarkArchived(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error)
}

// VisitorPassRepository определяет методы для работы с пропусками
type VisitorPassRepository interface {
	// Create создает новый пропуск
	Create(ctx context.Context, pass *domain.VisitorPass) error

	// GetByID возвращает пропуск по ID
	GetByID(ctx context.Context, id uuid.UUID) (*domain.VisitorPass, error)

	// GetByIDForUpdate возвращает пропуск и блокирует строку до конца транзакции
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.VisitorPass, error)

	// GetByPassNumber возвращает пропуск по нормализованному UID карты
	GetByPassNumber(ctx context.Context, passNumber string) (*domain.VisitorPass, error)

	// GetByExternalID возвращает пропуск по внешнему идентификатору
	GetByExternalID(ctx context.Context, externalID string) (*domain.VisitorPass, error)

	// Update сохраняет статус и метаданные пропуска
	Update(ctx context.Context, pass *domain.VisitorPass) error

	// List возвращает пропуска, опционально отфильтрованные по статусу
	List(ctx context.Context, status *domain.PassStatus) ([]*domain.VisitorPass, error)
}

// VisitorLogRepository определяет методы для работы с визитами
type VisitorLogRepository interface {
	// Create создает новый визит вместе со списком разрешенных постов
	Create(ctx context.Context, log *domain.VisitorLog) error

	// GetByID возвращает визит по ID
	GetByID(ctx context.Context, id uuid.UUID) (*domain.VisitorLog, error)

	// GetByIDForUpdate возвращает визит и блокирует строку до конца транзакции
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.VisitorLog, error)

	// Update сохраняет статус, пропуск и время окончания визита
	Update(ctx context.Context, log *domain.VisitorLog) error

	// ListOpen возвращает все визиты с active_end IS NULL
	ListOpen(ctx context.Context) ([]*domain.VisitorLog, error)

	// ListOpenByVisitor возвращает открытые визиты посетителя (в норме не больше одного)
	ListOpenByVisitor(ctx context.Context, visitorID uuid.UUID) ([]*domain.VisitorLog, error)

	// ListNotArchivedByVisitor возвращает неархивированные визиты посетителя
	ListNotArchivedByVisitor(ctx context.Context, visitorID uuid.UUID) ([]*domain.VisitorLog, error)

	// List возвращает все визиты, новые первыми
	List(ctx context.Context) ([]*domain.VisitorLog, error)

	// ListArchived возвращает архивированные визиты
	ListArchived(ctx context.Context) ([]*domain.VisitorLog, error)

	// MarkArchived архивирует визиты; уже архивированные строки не трогает
	MarkArchived(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error)
}

// VisitorLogEntryRepository определяет методы для работы с отметками на постах
type VisitorLogEntryRepository interface {
	// Create добавляет отметку (записи только дописываются)
	Create(ctx context.Context, entry *domain.VisitorLogEntry) error

	// GetLatestByLog возвращает последнюю отметку визита или nil, если отметок нет
	GetLatestByLog(ctx context.Context, logID uuid.UUID) (*domain.VisitorLogEntry, error)

	// ListByLog возвращает отметки визита в порядке записи
	ListByLog(ctx context.Context, logID uuid.UUID) ([]*domain.VisitorLogEntry, error)

	// ListByLogs возвращает отметки нескольких визитов
	ListByLogs(ctx context.Context, logIDs []uuid.UUID) ([]*domain.VisitorLogEntry, error)

	// ListRecent возвращает последние отметки, новые первыми
	ListRecent(ctx context.Context, limit int) ([]*domain.VisitorLogEntry, error)

	// ListArchived возвращает архивированные отметки
	ListArchived(ctx context.Context) ([]*domain.VisitorLogEntry, error)

	// MarkArchivedByLogs архивирует отметки указанных визитов
	MarkArchivedByLogs(ctx context.Context, logIDs []uuid.UUID, at time.Time) (int64, error)
}

// IncidentRepository определяет методы для работы с инцидентами
type IncidentRepository interface {
	// Create создает инцидент
	Create(ctx context.Context, incident *domain.VisitorPassIncident) error

	// GetByIDForUpdate возвращает инцидент и блокирует строку до конца транзакции
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.VisitorPassIncident, error)

	// Update сохраняет статус и данные о закрытии
	Update(ctx context.Context, incident *domain.VisitorPassIncident) error

	// List возвращает инциденты, опционально отфильтрованные по статусу
	List(ctx context.Context, status *domain.IncidentStatus) ([]*domain.VisitorPassIncident, error)
}

// StationRepository - справочник постов (внешний)
type StationRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Station, error)
}

// GuardAccountRepository - справочник учетных записей охраны (внешний)
type GuardAccountRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.GuardAccount, error)
}

// Tx - набор репозиториев, привязанных к одному источнику запросов
// Внутри RunInTx все методы выполняются в одной транзакции
type Tx interface {
	Visitors() VisitorRepository
	Passes() VisitorPassRepository
	Logs() VisitorLogRepository
	Entries() VisitorLogEntryRepository
	Incidents() IncidentRepository
	Stations() StationRepository
	Accounts() GuardAccountRepository
}

// Store - хранилище; методы Tx вне RunInTx выполняются без транзакции
type Store interface {
	Tx

	// RunInTx выполняет fn в одной транзакции "все или ничего"
	// Ошибка fn откатывает все изменения
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}
