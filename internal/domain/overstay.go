package domain

import (
	"time"
)

const (
	DefaultSoftOverstay = 8 * time.Hour
	DefaultHardOverstay = 12 * time.Hour
)

// OverstayLevel - результат оценки продолжительности визита
type OverstayLevel int

const (
	OverstayNone OverstayLevel = iota
	OverstaySoft
	OverstayHard
)

// OverstayPolicy - единая политика порогов для выхода посетителя и фоновой проверки
type OverstayPolicy struct {
	Soft time.Duration
	Hard time.Duration
}

// DefaultOverstayPolicy возвращает пороги 8ч/12ч
func DefaultOverstayPolicy() OverstayPolicy {
	return OverstayPolicy{Soft: DefaultSoftOverstay, Hard: DefaultHardOverstay}
}

// Elapsed возвращает прошедшее время в целых часах
func (p OverstayPolicy) Elapsed(reference, now time.Time) time.Duration {
	return now.Sub(reference).Truncate(time.Hour)
}

// Classify сравнивает прошедшее время (в целых часах) с порогами
func (p OverstayPolicy) Classify(reference, now time.Time) OverstayLevel {
	elapsed := p.Elapsed(reference, now)
	switch {
	case elapsed >= p.Hard:
		return OverstayHard
	case elapsed >= p.Soft:
		return OverstaySoft
	default:
		return OverstayNone
	}
}

// OverstayReference - точка отсчета визита: самая ранняя отметка на посту,
// если она есть, иначе ActiveStart
func OverstayReference(log *VisitorLog, entries []*VisitorLogEntry) time.Time {
	reference := log.ActiveStart
	found := false
	for _, e := range entries {
		if e == nil || e.Timestamp.IsZero() {
			continue
		}
		if !found || e.Timestamp.Before(reference) {
			reference = e.Timestamp
			found = true
		}
	}
	return reference
}
