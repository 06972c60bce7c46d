package jwt

import (
	"testing"
	"time"

	"github.com/frontandrew/ivisit/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAccount() *domain.GuardAccount {
	return &domain.GuardAccount{
		ID:       uuid.New(),
		Username: "guard.ivanov",
		Role:     domain.RoleGuard,
		Active:   true,
	}
}

func TestTokenService_RoundTrip(t *testing.T) {
	ts := NewTokenService("secret", "ivisit", time.Hour)
	account := testAccount()

	token, expiresAt, err := ts.GenerateToken(account)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := ts.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, account.ID, claims.AccountID)
	assert.Equal(t, account.Username, claims.Username)
	assert.Equal(t, domain.RoleGuard, claims.Role)
}

func TestTokenService_Expired(t *testing.T) {
	ts := NewTokenService("secret", "ivisit", time.Minute)
	issued := time.Now().Add(-time.Hour)
	ts.now = func() time.Time { return issued }

	token, _, err := ts.GenerateToken(testAccount())
	require.NoError(t, err)

	ts.now = time.Now
	_, err = ts.ValidateToken(token)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestTokenService_Rejects(t *testing.T) {
	ts := NewTokenService("secret", "ivisit", time.Hour)
	token, _, err := ts.GenerateToken(testAccount())
	require.NoError(t, err)

	tests := []struct {
		name    string
		service *TokenService
		token   string
	}{
		{name: "чужой секрет", service: NewTokenService("other", "ivisit", time.Hour), token: token},
		{name: "чужой издатель", service: NewTokenService("secret", "someone-else", time.Hour), token: token},
		{name: "мусор вместо токена", service: ts, token: "not-a-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.service.ValidateToken(tt.token)
			assert.ErrorIs(t, err, domain.ErrInvalidToken)
		})
	}
}
