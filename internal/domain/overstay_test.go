package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestOverstayPolicy_Classify(t *testing.T) {
	policy := DefaultOverstayPolicy()
	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		elapsed  time.Duration
		expected OverstayLevel
	}{
		{"только вошел", 0, OverstayNone},
		{"7ч59м - целых часов 7", 7*time.Hour + 59*time.Minute, OverstayNone},
		{"ровно 8ч", 8 * time.Hour, OverstaySoft},
		{"11ч59м", 11*time.Hour + 59*time.Minute, OverstaySoft},
		{"ровно 12ч", 12 * time.Hour, OverstayHard},
		{"сутки", 24 * time.Hour, OverstayHard},
		{"часы отстают", -time.Hour, OverstayNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, policy.Classify(start, start.Add(tt.elapsed)))
		})
	}
}

func TestOverstayReference(t *testing.T) {
	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	log := &VisitorLog{ID: uuid.New(), ActiveStart: start}

	tests := []struct {
		name     string
		entries  []*VisitorLogEntry
		expected time.Time
	}{
		{
			name:     "без отметок - начало визита",
			expected: start,
		},
		{
			name: "самая ранняя отметка",
			entries: []*VisitorLogEntry{
				{Timestamp: start.Add(2 * time.Hour)},
				{Timestamp: start.Add(-30 * time.Minute)},
				{Timestamp: start.Add(time.Hour)},
			},
			expected: start.Add(-30 * time.Minute),
		},
		{
			name: "отметка позже начала все равно точка отсчета",
			entries: []*VisitorLogEntry{
				{Timestamp: start.Add(time.Hour)},
			},
			expected: start.Add(time.Hour),
		},
		{
			name:     "пустые отметки пропускаются",
			entries:  []*VisitorLogEntry{nil, {}},
			expected: start,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, OverstayReference(log, tt.entries))
		})
	}
}
