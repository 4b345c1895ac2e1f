package roster

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/ignatzorin/dispatch-engine/internal/domain/entity"
	"github.com/ignatzorin/dispatch-engine/internal/domain/repository"
)

const snapshotKey = "snapshot"

// CachedRoster кэширует снимок реестра на короткое время.
// Get всегда идёт мимо кэша: проверка права на предложение должна видеть свежий статус.
type CachedRoster struct {
	next  repository.OperatorRoster
	cache *cache.Cache
}

func NewCachedRoster(next repository.OperatorRoster, ttl time.Duration) *CachedRoster {
	return &CachedRoster{next: next, cache: cache.New(ttl, 2*ttl)}
}

var _ repository.OperatorRoster = (*CachedRoster)(nil)

func (c *CachedRoster) Snapshot(ctx context.Context) ([]*entity.Operator, error) {
	if v, ok := c.cache.Get(snapshotKey); ok {
		if ops, ok := v.([]*entity.Operator); ok {
			return cloneOperators(ops), nil
		}
	}
	ops, err := c.next.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Set(snapshotKey, cloneOperators(ops), cache.DefaultExpiration)
	return ops, nil
}

func (c *CachedRoster) Get(ctx context.Context, operatorID string) (*entity.Operator, error) {
	return c.next.Get(ctx, operatorID)
}

// Invalidate сбрасывает снимок, например после обновления статуса исполнителя.
func (c *CachedRoster) Invalidate() {
	c.cache.Delete(snapshotKey)
}

func cloneOperators(ops []*entity.Operator) []*entity.Operator {
	out := make([]*entity.Operator, len(ops))
	for i, op := range ops {
		cp := *op
		out[i] = &cp
	}
	return out
}
