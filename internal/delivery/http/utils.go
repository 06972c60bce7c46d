package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/frontandrew/ivisit/internal/delivery/http/middleware"
	"github.com/frontandrew/ivisit/internal/domain"
	"github.com/frontandrew/ivisit/internal/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const maxBodyBytes = 1 << 20

// respondJSON отправляет JSON ответ
func respondJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"error":"Failed to marshal response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// respondData отправляет успешный ответ с данными
func respondData(w http.ResponseWriter, code int, data interface{}) {
	respondJSON(w, code, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// respondError отправляет JSON ответ с ошибкой
func respondError(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// statusFor переводит вид доменной ошибки в HTTP статус
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPrecondition):
		return http.StatusPreconditionFailed
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError отвечает по виду ошибки; текст внутренних ошибок наружу не отдается
func respondServiceError(w http.ResponseWriter, log logger.Logger, op string, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.Error("Failed to "+op, map[string]interface{}{
			"error": err.Error(),
		})
		respondError(w, code, "Failed to "+op)
		return
	}
	respondError(w, code, err.Error())
}

// decodeJSON читает тело запроса; пустое тело допустимо, если allowEmpty
func decodeJSON(r *http.Request, dst interface{}, allowEmpty bool) error {
	if r.Body == nil {
		if allowEmpty {
			return nil
		}
		return io.EOF
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if allowEmpty && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// uuidParam извлекает UUID из параметра пути chi
func uuidParam(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// guardID - учетная запись охранника из токена
func guardID(r *http.Request) (uuid.UUID, bool) {
	claims, ok := middleware.GetGuardClaims(r.Context())
	if !ok {
		return uuid.Nil, false
	}
	return claims.AccountID, true
}
