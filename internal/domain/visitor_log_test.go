package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOpenLog() *VisitorLog {
	return &VisitorLog{
		ID:          uuid.New(),
		VisitorID:   uuid.New(),
		ActiveStart: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
		Status:      LogStatusActive,
	}
}

func TestVisitorLog_Close(t *testing.T) {
	at := time.Date(2025, 6, 2, 17, 0, 0, 0, time.UTC)

	t.Run("успешное закрытие", func(t *testing.T) {
		log := newOpenLog()
		require.NoError(t, log.Close(LogStatusEnded, at))
		assert.Equal(t, LogStatusEnded, log.Status)
		require.NotNil(t, log.ActiveEnd)
		assert.Equal(t, at, *log.ActiveEnd)
		assert.False(t, log.IsOpen())
		assert.NoError(t, log.Validate())
	})

	t.Run("повторное закрытие", func(t *testing.T) {
		log := newOpenLog()
		require.NoError(t, log.Close(LogStatusEnded, at))
		err := log.Close(LogStatusEndedOverstay, at.Add(time.Hour))
		assert.ErrorIs(t, err, ErrLogNotActive)
		assert.ErrorIs(t, err, ErrPrecondition)
		assert.Equal(t, at, *log.ActiveEnd)
	})

	t.Run("нетерминальный статус", func(t *testing.T) {
		log := newOpenLog()
		assert.ErrorIs(t, log.Close(LogStatusActiveOverstay, at), ErrInvalidLogStatus)
		assert.True(t, log.IsOpen())
	})
}

func TestVisitorLog_ForceClose_KeepsEnd(t *testing.T) {
	log := newOpenLog()
	first := time.Date(2025, 6, 2, 17, 0, 0, 0, time.UTC)
	require.NoError(t, log.Close(LogStatusEnded, first))

	require.NoError(t, log.ForceClose(LogStatusEndedForced, first.Add(time.Hour)))
	assert.Equal(t, LogStatusEndedForced, log.Status)
	assert.Equal(t, first, *log.ActiveEnd)
}

func TestVisitorLog_FlagOverstay(t *testing.T) {
	log := newOpenLog()

	assert.True(t, log.FlagOverstay())
	assert.Equal(t, LogStatusActiveOverstay, log.Status)
	assert.True(t, log.IsOpen())

	assert.False(t, log.FlagOverstay(), "повторная отметка ничего не меняет")

	require.NoError(t, log.Close(LogStatusEndedOverstay, log.ActiveStart.Add(9*time.Hour)))
	assert.False(t, log.FlagOverstay())
	assert.Equal(t, LogStatusEndedOverstay, log.Status)
}

func TestVisitorLog_Validate(t *testing.T) {
	end := time.Date(2025, 6, 2, 17, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		mutate  func(*VisitorLog)
		wantErr error
	}{
		{
			name:   "открытый визит",
			mutate: func(*VisitorLog) {},
		},
		{
			name:    "без посетителя",
			mutate:  func(l *VisitorLog) { l.VisitorID = uuid.Nil },
			wantErr: ErrVisitorNotFound,
		},
		{
			name:    "неизвестный статус",
			mutate:  func(l *VisitorLog) { l.Status = "PAUSED" },
			wantErr: ErrInvalidLogStatus,
		},
		{
			name:    "активный статус с ActiveEnd",
			mutate:  func(l *VisitorLog) { l.ActiveEnd = &end },
			wantErr: ErrInvalidLogStatus,
		},
		{
			name:    "терминальный статус без ActiveEnd",
			mutate:  func(l *VisitorLog) { l.Status = LogStatusEnded },
			wantErr: ErrInvalidLogStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := newOpenLog()
			tt.mutate(log)
			err := log.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVisitorLog_MarkArchived_Monotonic(t *testing.T) {
	log := newOpenLog()
	first := time.Date(2032, 1, 1, 2, 30, 0, 0, time.UTC)

	log.MarkArchived(first)
	log.MarkArchived(first.AddDate(0, 0, 1))

	assert.True(t, log.Archived)
	assert.Equal(t, first, *log.ArchivedAt)
}

func TestVisitorLogEntry_IsDuplicateOf(t *testing.T) {
	station := uuid.New()
	at := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	prev := &VisitorLogEntry{StationID: station, Timestamp: at}

	tests := []struct {
		name     string
		station  uuid.UUID
		now      time.Time
		expected bool
	}{
		{"та же станция через 5с", station, at.Add(5 * time.Second), true},
		{"ровно на границе окна", station, at.Add(DefaultDuplicateWindow), true},
		{"после окна", station, at.Add(DefaultDuplicateWindow + time.Second), false},
		{"другая станция", uuid.New(), at.Add(time.Second), false},
		{"часы ушли назад", station, at.Add(-time.Second), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, prev.IsDuplicateOf(tt.station, tt.now, DefaultDuplicateWindow))
		})
	}
}

func TestVisitorLogEntry_SnapshotPass(t *testing.T) {
	e := &VisitorLogEntry{}
	e.SnapshotPass(&VisitorPass{PassNumber: "865A4BA6", OriginLocation: "Main gate"})
	assert.Equal(t, "865A4BA6", e.RecordedPassDisplayCode)
	assert.Equal(t, "Main gate", e.RecordedPassOrigin)

	e.SnapshotPass(&VisitorPass{PassNumber: "865A4BA6", DisplayCode: " V-07 "})
	assert.Equal(t, "V-07", e.RecordedPassDisplayCode)

	e.SnapshotPass(nil)
	assert.Equal(t, "V-07", e.RecordedPassDisplayCode)
}
