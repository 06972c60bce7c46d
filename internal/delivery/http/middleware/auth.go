package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/frontandrew/ivisit/internal/domain"
	"github.com/frontandrew/ivisit/internal/pkg/jwt"
	"github.com/frontandrew/ivisit/internal/pkg/logger"
	"github.com/frontandrew/ivisit/internal/pkg/metrics"
)

// contextKey - тип для ключей контекста
type contextKey string

const (
	// GuardClaimsKey - ключ для сохранения claims охранника в контексте
	GuardClaimsKey contextKey = "guard_claims"
)

// TokenValidator проверяет JWT охранника
type TokenValidator interface {
	ValidateToken(tokenString string) (*jwt.Claims, error)
}

// FailureCounter - счетчик неудачных попыток по ключу (pkg/attempts)
type FailureCounter interface {
	Blocked(ctx context.Context, id string) (bool, error)
	Fail(ctx context.Context, id string) (int64, error)
	Reset(ctx context.Context, id string) error
}

// AuthMiddleware проверяет наличие и валидность JWT токена
// Неудачные попытки считаются по IP клиента; после лимита отвечает 429
// failures == nil - без ограничения попыток
func AuthMiddleware(tokens TokenValidator, failures FailureCounter, m *metrics.Metrics, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := clientIP(r)

			if failures != nil {
				blocked, err := failures.Blocked(ctx, ip)
				if err != nil {
					log.Warn("Auth attempt counter unavailable", map[string]interface{}{
						"error": err.Error(),
					})
				}
				if blocked {
					respondError(w, http.StatusTooManyRequests, "Too many failed authentication attempts")
					return
				}
			}

			fail := func(message string) {
				m.IncAuthFailure()
				if failures != nil {
					if _, err := failures.Fail(ctx, ip); err != nil {
						log.Warn("Failed to count auth failure", map[string]interface{}{
							"error": err.Error(),
						})
					}
				}
				respondError(w, http.StatusUnauthorized, message)
			}

			// Извлекаем токен из заголовка Authorization
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				fail("Authorization header required")
				return
			}

			// Проверяем формат: "Bearer <token>"
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				fail("Invalid authorization header format")
				return
			}

			claims, err := tokens.ValidateToken(parts[1])
			if err != nil {
				if errors.Is(err, domain.ErrTokenExpired) {
					fail("Token expired")
					return
				}
				fail("Invalid token")
				return
			}

			if failures != nil {
				_ = failures.Reset(ctx, ip)
			}

			// Добавляем claims в контекст
			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, GuardClaimsKey, claims)))
		})
	}
}

// RequireRole проверяет, что учетная запись имеет одну из указанных ролей
func RequireRole(roles ...domain.GuardRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetGuardClaims(r.Context())
			if !ok {
				respondError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			respondError(w, http.StatusForbidden, "Insufficient permissions")
		})
	}
}

// GetGuardClaims извлекает claims охранника из контекста
func GetGuardClaims(ctx context.Context) (*jwt.Claims, bool) {
	claims, ok := ctx.Value(GuardClaimsKey).(*jwt.Claims)
	return claims, ok
}

// WithGuardClaims кладет claims в контекст (используется в тестах обработчиков)
func WithGuardClaims(ctx context.Context, claims *jwt.Claims) context.Context {
	return context.WithValue(ctx, GuardClaimsKey, claims)
}

// clientIP - адрес без порта; X-Forwarded-For разбирает chi RealIP выше по цепочке
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
