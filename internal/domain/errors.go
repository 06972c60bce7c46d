package domain

import (
	"errors"
	"fmt"
)

// Виды ошибок - используются во всех слоях приложения
// Конкретные ошибки оборачивают один из видов, поэтому errors.Is работает
// и с конкретной ошибкой, и с её видом
var (
	ErrValidation   = errors.New("validation failed")
	ErrPrecondition = errors.New("precondition failed")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
)

// Visitor errors
var (
	ErrVisitorNotFound = fmt.Errorf("%w: visitor not found", ErrNotFound)
	ErrVisitorArchived = fmt.Errorf("%w: visitor is archived", ErrPrecondition)
)

// VisitorPass errors
var (
	ErrPassNotFound      = fmt.Errorf("%w: visitor pass not found", ErrNotFound)
	ErrPassUIDRequired   = fmt.Errorf("%w: card UID is required", ErrValidation)
	ErrInvalidPassStatus = fmt.Errorf("%w: invalid pass status", ErrValidation)
	ErrPassAlreadyExists = fmt.Errorf("%w: visitor pass already exists for this card UID", ErrConflict)
	ErrPassNotAvailable  = fmt.Errorf("%w: visitor pass is not AVAILABLE", ErrPrecondition)
	ErrPassInUse         = fmt.Errorf("%w: visitor pass is IN_USE, revoke it from the visitor log first", ErrPrecondition)
	ErrPassAlreadyInUse  = fmt.Errorf("%w: visitor pass is held by another open log", ErrConflict)
)

// VisitorLog errors
var (
	ErrLogNotFound         = fmt.Errorf("%w: visitor log not found", ErrNotFound)
	ErrLogNotActive        = fmt.Errorf("%w: visitor log is not active", ErrPrecondition)
	ErrVisitorHasActiveLog = fmt.Errorf("%w: visitor already has an active log", ErrConflict)
	ErrInvalidLogStatus    = fmt.Errorf("%w: invalid visitor log status", ErrValidation)
)

// VisitorLogEntry errors
var (
	ErrStationNotFound = fmt.Errorf("%w: station not found", ErrNotFound)
	ErrGuardNotFound   = fmt.Errorf("%w: guard account not found", ErrNotFound)
)

// VisitorPassIncident errors
var (
	ErrIncidentNotFound      = fmt.Errorf("%w: incident not found", ErrNotFound)
	ErrIncidentPassRequired  = fmt.Errorf("%w: passId is required for an incident", ErrValidation)
	ErrInvalidIncidentType   = fmt.Errorf("%w: invalid incident type", ErrValidation)
	ErrIncidentAlreadyClosed = fmt.Errorf("%w: incident is already closed", ErrConflict)
	ErrInvalidIncidentStatus = fmt.Errorf("%w: invalid incident status", ErrValidation)
)

// Authorization errors
var (
	ErrTokenExpired = errors.New("token expired")
	ErrInvalidToken = errors.New("invalid token")
)

// ValidationError оборачивает текст ошибки валидации запроса в ErrValidation
func ValidationError(err error) error {
	return fmt.Errorf("%w: %s", ErrValidation, err.Error())
}
