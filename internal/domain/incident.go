package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// IncidentType представляет тип инцидента с пропуском
type IncidentType string

const (
	IncidentTypeLost        IncidentType = "LOST"
	IncidentTypeDamaged     IncidentType = "DAMAGED"
	IncidentTypeNotReturned IncidentType = "NOT_RETURNED"
	IncidentTypeOverstay    IncidentType = "OVERSTAY"
	IncidentTypeOther       IncidentType = "OTHER"
)

// IsValid проверяет, что тип входит в допустимый набор
func (t IncidentType) IsValid() bool {
	switch t {
	case IncidentTypeLost, IncidentTypeDamaged, IncidentTypeNotReturned,
		IncidentTypeOverstay, IncidentTypeOther:
		return true
	}
	return false
}

// MarksPassLost - LOST и NOT_RETURNED переводят пропуск в LOST
func (t IncidentType) MarksPassLost() bool {
	return t == IncidentTypeLost || t == IncidentTypeNotReturned
}

// ParseIncidentType нормализует тип к верхнему регистру, пустой тип - OTHER
func ParseIncidentType(raw string) (IncidentType, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	if normalized == "" {
		return IncidentTypeOther, nil
	}
	t := IncidentType(normalized)
	if !t.IsValid() {
		return "", ErrInvalidIncidentType
	}
	return t, nil
}

// IncidentStatus представляет состояние инцидента
type IncidentStatus string

const (
	IncidentStatusOpen   IncidentStatus = "OPEN"
	IncidentStatusClosed IncidentStatus = "CLOSED"
)

// ParseIncidentStatus нормализует статус фильтра; пустая строка - без фильтра (nil)
func ParseIncidentStatus(raw string) (*IncidentStatus, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	if normalized == "" {
		return nil, nil
	}
	status := IncidentStatus(normalized)
	if status != IncidentStatusOpen && status != IncidentStatusClosed {
		return nil, fmt.Errorf("%w: %s", ErrInvalidIncidentStatus, raw)
	}
	return &status, nil
}

// VisitorPassIncident - инцидент с пропуском (утеря, порча, превышение времени)
type VisitorPassIncident struct {
	ID              uuid.UUID      `json:"id"`
	PassID          uuid.UUID      `json:"pass_id"`
	VisitorID       *uuid.UUID     `json:"visitor_id,omitempty"`
	LogID           *uuid.UUID     `json:"log_id,omitempty"`
	StationID       *uuid.UUID     `json:"station_id,omitempty"`
	ReportedByID    *uuid.UUID     `json:"reported_by_id,omitempty"`
	IncidentType    IncidentType   `json:"incident_type"`
	Description     string         `json:"description,omitempty"`
	Status          IncidentStatus `json:"status"`
	ReportedAt      time.Time      `json:"reported_at"`
	ResolvedAt      *time.Time     `json:"resolved_at,omitempty"`
	ResolutionNotes string         `json:"resolution_notes,omitempty"`
}

// Close закрывает инцидент ровно один раз
func (i *VisitorPassIncident) Close(notes string, at time.Time) error {
	if i.Status == IncidentStatusClosed {
		return ErrIncidentAlreadyClosed
	}
	resolved := at
	i.Status = IncidentStatusClosed
	i.ResolvedAt = &resolved
	i.ResolutionNotes = strings.TrimSpace(notes)
	return nil
}
