package domain

import (
	"time"

	"github.com/google/uuid"
)

// Visitor - посетитель объекта
// Создается при регистрации, меняется только при архивации
// У посетителя может быть много визитов, но открытым - не более одного
type Visitor struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Type        string     `json:"type,omitempty"`
	IDType      string     `json:"id_type,omitempty"`
	IDNumber    string     `json:"id_number,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	Archived    bool       `json:"archived"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`
}

// MarkArchived архивирует посетителя; архивация монотонна
func (v *Visitor) MarkArchived(at time.Time) {
	if v.Archived {
		return
	}
	ts := at
	v.Archived = true
	v.ArchivedAt = &ts
}

// StationType - тип поста охраны
type StationType string

const (
	StationTypeGate     StationType = "GATE"
	StationTypeBuilding StationType = "BUILDING"
)

// Station - пост охраны (ведется внешним справочником)
type Station struct {
	ID     uuid.UUID   `json:"id"`
	Name   string      `json:"name"`
	Type   StationType `json:"type"`
	Active bool        `json:"active"`
}

// GuardRole представляет роль учетной записи охраны
type GuardRole string

const (
	RoleAdmin GuardRole = "admin" // Администратор системы
	RoleGuard GuardRole = "guard" // Охранник
)

// GuardAccount - учетная запись охранника (ведется внешним справочником)
type GuardAccount struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name,omitempty"`
	Role        GuardRole `json:"role"`
	Active      bool      `json:"active"`
}
