package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultDuplicateWindow - повторное сканирование на том же посту в пределах окна подавляется
const DefaultDuplicateWindow = 15 * time.Second

// VisitorLogEntry - неизменяемая отметка посетителя на посту охраны
// Снимок подписи и происхождения пропуска отвязывает историю от последующих правок пропуска
type VisitorLogEntry struct {
	ID                      uuid.UUID  `json:"id"`
	LogID                   uuid.UUID  `json:"log_id"`
	StationID               uuid.UUID  `json:"station_id"`
	GuardAccountID          uuid.UUID  `json:"guard_account_id"`
	Timestamp               time.Time  `json:"timestamp"`
	RecordedPassDisplayCode string     `json:"recorded_pass_display_code,omitempty"`
	RecordedPassOrigin      string     `json:"recorded_pass_origin,omitempty"`
	Archived                bool       `json:"archived"`
	ArchivedAt              *time.Time `json:"archived_at,omitempty"`
}

// SnapshotPass копирует текущую подпись и происхождение пропуска в запись
func (e *VisitorLogEntry) SnapshotPass(pass *VisitorPass) {
	if pass == nil {
		return
	}
	e.RecordedPassDisplayCode = pass.Label()
	e.RecordedPassOrigin = pass.OriginLocation
}

// IsDuplicateOf - та же станция и не больше window с момента предыдущей отметки
func (e *VisitorLogEntry) IsDuplicateOf(stationID uuid.UUID, now time.Time, window time.Duration) bool {
	if e.StationID != stationID || e.Timestamp.IsZero() {
		return false
	}
	diff := now.Sub(e.Timestamp)
	return diff >= 0 && diff <= window
}

// MarkArchived повторяет флаги архивации родительского визита
func (e *VisitorLogEntry) MarkArchived(at time.Time) {
	if e.Archived {
		return
	}
	ts := at
	e.Archived = true
	e.ArchivedAt = &ts
}
