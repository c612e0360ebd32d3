// Package guard не даёт двум запускам одной фоновой задачи выполняться одновременно:
// внутри процесса через флаг, между экземплярами через необязательную блокировку в redis.
package guard

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/coin-planner/internal/lib/apperr"
)

// Locker — распределённая блокировка.
type Locker interface {
	TryLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key, owner string) error
}

// Guard защищает одну задачу.
type Guard struct {
	key     string
	owner   string
	ttl     time.Duration
	locker  Locker
	running atomic.Bool
}

// New создаёт защиту задачи name. locker может быть nil.
func New(name string, locker Locker, ttl time.Duration) *Guard {
	return &Guard{
		key:    "lock:sweep:" + name,
		owner:  uuid.NewString(),
		ttl:    ttl,
		locker: locker,
	}
}

// Acquire захватывает задачу. Если она уже выполняется, возвращает apperr.ErrSweepInProgress.
// Вызывающий обязан вызвать release.
func (g *Guard) Acquire(ctx context.Context) (release func(), err error) {
	const op = "guard.Acquire"
	if !g.running.CompareAndSwap(false, true) {
		return nil, apperr.ErrSweepInProgress
	}
	if g.locker == nil {
		return func() { g.running.Store(false) }, nil
	}

	ok, err := g.locker.TryLock(ctx, g.key, g.owner, g.ttl)
	if err != nil {
		g.running.Store(false)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		g.running.Store(false)
		return nil, apperr.ErrSweepInProgress
	}
	return func() {
		_ = g.locker.Unlock(context.WithoutCancel(ctx), g.key, g.owner)
		g.running.Store(false)
	}, nil
}
