package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PassStatus представляет состояние физического пропуска
type PassStatus string

const (
	PassStatusAvailable      PassStatus = "AVAILABLE"       // Свободен, можно выдать
	PassStatusInUse          PassStatus = "IN_USE"          // Выдан посетителю (ровно один открытый визит)
	PassStatusLost           PassStatus = "LOST"            // Утерян
	PassStatusInactive       PassStatus = "INACTIVE"        // Мягко удален
	PassStatusRetired        PassStatus = "RETIRED"         // Списан
	PassStatusOverstayLocked PassStatus = "OVERSTAY_LOCKED" // Заблокирован после жесткого превышения времени визита
)

// IsValid проверяет, что статус входит в допустимый набор
func (s PassStatus) IsValid() bool {
	switch s {
	case PassStatusAvailable, PassStatusInUse, PassStatusLost,
		PassStatusInactive, PassStatusRetired, PassStatusOverstayLocked:
		return true
	}
	return false
}

// IsTerminal - пропуск выведен из оборота (LOST/INACTIVE/RETIRED)
func (s PassStatus) IsTerminal() bool {
	return s == PassStatusLost || s == PassStatusInactive || s == PassStatusRetired
}

// ParsePassStatus нормализует строку статуса (trim + upper)
// Пустая строка означает AVAILABLE
func ParsePassStatus(raw string) (PassStatus, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	if normalized == "" {
		return PassStatusAvailable, nil
	}
	status := PassStatus(normalized)
	if !status.IsValid() {
		return "", ErrInvalidPassStatus
	}
	return status, nil
}

// NormalizePassUID приводит UID карты к каноничному виду, чтобы
// "865a4ba6" и "865A4BA6" не создавали дубликатов
func NormalizePassUID(uid string) string {
	return strings.ToUpper(strings.TrimSpace(uid))
}

// VisitorPass - физический многоразовый пропуск (RFID карта)
// Статус - единственное изменяемое состояние пропуска
type VisitorPass struct {
	ID              uuid.UUID  `json:"id"`
	PassNumber      string     `json:"pass_number"`           // UID карты, всегда в верхнем регистре
	ExternalID      string     `json:"external_id,omitempty"` // Внешний идентификатор RFID
	Status          PassStatus `json:"status"`
	DisplayCode     string     `json:"display_code,omitempty"`
	OriginLocation  string     `json:"origin_location,omitempty"`
	OriginStationID *uuid.UUID `json:"origin_station_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Label возвращает подпись пропуска: display code, иначе UID
func (p *VisitorPass) Label() string {
	if code := strings.TrimSpace(p.DisplayCode); code != "" {
		return code
	}
	return strings.TrimSpace(p.PassNumber)
}

// Reserve переводит AVAILABLE -> IN_USE
func (p *VisitorPass) Reserve() error {
	if p.Status != PassStatusAvailable {
		return ErrPassNotAvailable
	}
	p.Status = PassStatusInUse
	return nil
}

// Release переводит IN_USE -> AVAILABLE
// Для любого другого статуса ничего не делает: LOST/RETIRED/OVERSTAY_LOCKED
// не должны освобождаться при выходе посетителя
// Возвращает true, если статус изменился
func (p *VisitorPass) Release() bool {
	if p.Status != PassStatusInUse {
		return false
	}
	p.Status = PassStatusAvailable
	return true
}

// Lock переводит пропуск в OVERSTAY_LOCKED
// Идемпотентно: LOST/INACTIVE/RETIRED/OVERSTAY_LOCKED не меняются
func (p *VisitorPass) Lock() bool {
	if p.Status.IsTerminal() || p.Status == PassStatusOverstayLocked {
		return false
	}
	p.Status = PassStatusOverstayLocked
	return true
}

// MarkLost переводит пропуск в LOST, если он еще не выведен из оборота
// Первый инцидент выигрывает, повторные не меняют статус
func (p *VisitorPass) MarkLost() bool {
	if p.Status.IsTerminal() {
		return false
	}
	p.Status = PassStatusLost
	return true
}

// Deactivate - мягкое удаление (INACTIVE), запрещено для выданного пропуска
func (p *VisitorPass) Deactivate() error {
	if p.Status == PassStatusInUse {
		return ErrPassInUse
	}
	p.Status = PassStatusInactive
	return nil
}

// Validate проверяет корректность данных пропуска
func (p *VisitorPass) Validate() error {
	if strings.TrimSpace(p.PassNumber) == "" {
		return ErrPassUIDRequired
	}
	if !p.Status.IsValid() {
		return ErrInvalidPassStatus
	}
	return nil
}
