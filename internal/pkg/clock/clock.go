// Package clock отделяет получение текущего времени от бизнес-логики,
// чтобы пороги превышения и окна дедупликации проверялись в тестах детерминированно.
package clock

import (
	"sync"
	"time"
)

// Clock возвращает текущее время
type Clock interface {
	Now() time.Time
}

type realClock struct{}

// Real возвращает системные часы
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

// Fixed - управляемые часы для тестов
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixed создает часы, остановленные на t
func NewFixed(t time.Time) *Fixed {
	return &Fixed{now: t}
}

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set переставляет часы
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

// Advance сдвигает часы вперед на d
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}
