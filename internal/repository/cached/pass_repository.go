package cached

import (
	"context"
	"errors"
	"time"

	"github.com/frontandrew/ivisit/internal/domain"
	"github.com/frontandrew/ivisit/internal/pkg/logger"
	"github.com/frontandrew/ivisit/internal/repository"
	"github.com/google/uuid"
	redisv9 "github.com/redis/go-redis/v9"
)

const (
	passUIDPrefix      = "pass:uid:"
	passExternalPrefix = "pass:ext:"

	DefaultPassTTL = 10 * time.Minute
)

// Cache - подмножество *redis.Client, нужное репозиторию
// Отсутствие ключа сообщается ошибкой redis.Nil
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// PassRepository кэширует поиск пропуска по UID карты и внешнему ID
// В кэше хранится только ID пропуска, сам пропуск всегда читается из базы,
// поэтому статус в ответе никогда не бывает устаревшим
type PassRepository struct {
	repository.VisitorPassRepository
	cache  Cache
	ttl    time.Duration
	logger logger.Logger
}

var _ repository.VisitorPassRepository = (*PassRepository)(nil)

// NewPassRepository создает кэширующую обертку над репозиторием пропусков
func NewPassRepository(repo repository.VisitorPassRepository, cache Cache, ttl time.Duration, logger logger.Logger) *PassRepository {
	if ttl <= 0 {
		ttl = DefaultPassTTL
	}
	return &PassRepository{
		VisitorPassRepository: repo,
		cache:                 cache,
		ttl:                   ttl,
		logger:                logger,
	}
}

// GetByPassNumber ищет пропуск по нормализованному UID (с кэшированием)
func (r *PassRepository) GetByPassNumber(ctx context.Context, passNumber string) (*domain.VisitorPass, error) {
	return r.lookup(ctx, passUIDPrefix+passNumber,
		func(p *domain.VisitorPass) bool { return p.PassNumber == passNumber },
		func(ctx context.Context) (*domain.VisitorPass, error) {
			return r.VisitorPassRepository.GetByPassNumber(ctx, passNumber)
		},
	)
}

// GetByExternalID ищет пропуск по внешнему ID (с кэшированием)
func (r *PassRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.VisitorPass, error) {
	return r.lookup(ctx, passExternalPrefix+externalID,
		func(p *domain.VisitorPass) bool { return p.ExternalID == externalID },
		func(ctx context.Context) (*domain.VisitorPass, error) {
			return r.VisitorPassRepository.GetByExternalID(ctx, externalID)
		},
	)
}

func (r *PassRepository) lookup(
	ctx context.Context,
	key string,
	matches func(*domain.VisitorPass) bool,
	load func(ctx context.Context) (*domain.VisitorPass, error),
) (*domain.VisitorPass, error) {
	// 1. Проверяем кэш
	cached, err := r.cache.Get(ctx, key)
	switch {
	case err == nil:
		if pass := r.fromCache(ctx, key, cached, matches); pass != nil {
			return pass, nil
		}
	case !errors.Is(err, redisv9.Nil):
		// ошибка кэша не мешает ответить из базы
		r.logger.Warn("Pass cache read failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}

	// 2. Cache miss - идем в БД
	pass, err := load(ctx)
	if err != nil {
		return nil, err
	}

	// 3. Сохраняем ID в кэш
	if err := r.cache.Set(ctx, key, pass.ID.String(), r.ttl); err != nil {
		r.logger.Warn("Pass cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
	return pass, nil
}

// fromCache читает пропуск по закэшированному ID; устаревший ключ удаляется
func (r *PassRepository) fromCache(
	ctx context.Context,
	key, cached string,
	matches func(*domain.VisitorPass) bool,
) *domain.VisitorPass {
	id, err := uuid.Parse(cached)
	if err == nil {
		pass, err := r.VisitorPassRepository.GetByID(ctx, id)
		if err == nil && matches(pass) {
			return pass
		}
	}
	_ = r.cache.Del(ctx, key)
	return nil
}

// Invalidate удаляет ключи пропуска из кэша
// Записи идут через транзакцию хранилища в обход обертки, поэтому после
// изменения UID или внешнего ID вызывающий сбрасывает ключи сам
func (r *PassRepository) Invalidate(ctx context.Context, pass *domain.VisitorPass) {
	keys := []string{passUIDPrefix + pass.PassNumber}
	if pass.ExternalID != "" {
		keys = append(keys, passExternalPrefix+pass.ExternalID)
	}
	if err := r.cache.Del(ctx, keys...); err != nil {
		r.logger.Warn("Pass cache invalidation failed", map[string]interface{}{
			"pass_id": pass.ID,
			"error":   err.Error(),
		})
	}
}
