package domain

import (
	"time"

	"github.com/google/uuid"
)

// LogStatus представляет состояние визита
type LogStatus string

const (
	LogStatusActive         LogStatus = "ACTIVE"          // Посетитель на территории
	LogStatusActiveOverstay LogStatus = "ACTIVE_OVERSTAY" // На территории, превышен мягкий порог
	LogStatusEnded          LogStatus = "ENDED"           // Нормальный выход
	LogStatusEndedOverstay  LogStatus = "ENDED_OVERSTAY"  // Выход после мягкого порога
	LogStatusLockedOverstay LogStatus = "LOCKED_OVERSTAY" // Закрыт автоматически после жесткого порога
	LogStatusEndedForced    LogStatus = "ENDED_FORCED"    // Закрыт при ремонте данных
)

// IsValid проверяет, что статус входит в допустимый набор
func (s LogStatus) IsValid() bool {
	switch s {
	case LogStatusActive, LogStatusActiveOverstay, LogStatusEnded,
		LogStatusEndedOverstay, LogStatusLockedOverstay, LogStatusEndedForced:
		return true
	}
	return false
}

// IsActive - ACTIVE и ACTIVE_OVERSTAY единственные нетерминальные статусы
func (s LogStatus) IsActive() bool {
	return s == LogStatusActive || s == LogStatusActiveOverstay
}

// IsTerminal - все остальные статусы терминальные и выставляют ActiveEnd
func (s LogStatus) IsTerminal() bool {
	return s.IsValid() && !s.IsActive()
}

// VisitorLog - один визит (сессия) посетителя
// Открыт, пока ActiveEnd == nil
type VisitorLog struct {
	ID                uuid.UUID   `json:"id"`
	VisitorID         uuid.UUID   `json:"visitor_id"`
	PassID            *uuid.UUID  `json:"pass_id,omitempty"` // Пропуск удерживается эксклюзивно, пока визит открыт
	ActiveStart       time.Time   `json:"active_start"`
	ActiveEnd         *time.Time  `json:"active_end,omitempty"`
	Status            LogStatus   `json:"status"`
	PurposeOfVisit    string      `json:"purpose_of_visit,omitempty"`
	AllowedStationIDs []uuid.UUID `json:"allowed_station_ids,omitempty"`
	Archived          bool        `json:"archived"`
	ArchivedAt        *time.Time  `json:"archived_at,omitempty"`

	// Связанные данные (не хранятся в таблице visitor_logs, заполняются при необходимости)
	Entries []*VisitorLogEntry `json:"entries,omitempty"`
}

// IsOpen - визит открыт и находится в активном статусе
func (l *VisitorLog) IsOpen() bool {
	return l.ActiveEnd == nil && l.Status.IsActive()
}

// Close завершает визит с терминальным статусом
// ActiveEnd выставляется ровно один раз
func (l *VisitorLog) Close(status LogStatus, at time.Time) error {
	if !status.IsTerminal() {
		return ErrInvalidLogStatus
	}
	if !l.IsOpen() {
		return ErrLogNotActive
	}
	end := at
	l.ActiveEnd = &end
	l.Status = status
	return nil
}

// ForceClose закрывает визит принудительно (ремонт данных, жесткое превышение)
// ActiveEnd выставляется, только если еще не был выставлен
func (l *VisitorLog) ForceClose(status LogStatus, at time.Time) error {
	if !status.IsTerminal() {
		return ErrInvalidLogStatus
	}
	if l.ActiveEnd == nil {
		end := at
		l.ActiveEnd = &end
	}
	l.Status = status
	return nil
}

// FlagOverstay переводит ACTIVE -> ACTIVE_OVERSTAY
// Статус никогда не откатывается обратно в ACTIVE
func (l *VisitorLog) FlagOverstay() bool {
	if l.ActiveEnd != nil || l.Status != LogStatusActive {
		return false
	}
	l.Status = LogStatusActiveOverstay
	return true
}

// MarkArchived архивирует визит и его записи; повторный вызов ничего не меняет
func (l *VisitorLog) MarkArchived(at time.Time) {
	if l.Archived {
		return
	}
	ts := at
	l.Archived = true
	l.ArchivedAt = &ts
}

// Validate проверяет корректность данных визита
func (l *VisitorLog) Validate() error {
	if l.VisitorID == uuid.Nil {
		return ErrVisitorNotFound
	}
	if !l.Status.IsValid() {
		return ErrInvalidLogStatus
	}
	// Статус - единственный источник истины, но он обязан согласовываться с ActiveEnd
	if l.Status.IsActive() != (l.ActiveEnd == nil) {
		return ErrInvalidLogStatus
	}
	return nil
}
