// Package bootstrap открывает общие зависимости процессов планировщика:
// хранилище, кэш, брокер и часы, и собирает из них доменные сервисы.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/coin-planner/internal/cache"
	"github.com/magabrotheeeer/coin-planner/internal/config"
	"github.com/magabrotheeeer/coin-planner/internal/lib/clock"
	"github.com/magabrotheeeer/coin-planner/internal/lib/guard"
	"github.com/magabrotheeeer/coin-planner/internal/lib/jwt"
	"github.com/magabrotheeeer/coin-planner/internal/lib/sl"
	"github.com/magabrotheeeer/coin-planner/internal/migrations"
	"github.com/magabrotheeeer/coin-planner/internal/rabbitmq"
	"github.com/magabrotheeeer/coin-planner/internal/services/accrual"
	"github.com/magabrotheeeer/coin-planner/internal/services/coinrule"
	"github.com/magabrotheeeer/coin-planner/internal/services/inbox"
	"github.com/magabrotheeeer/coin-planner/internal/services/notifier"
	"github.com/magabrotheeeer/coin-planner/internal/services/payment"
	"github.com/magabrotheeeer/coin-planner/internal/services/plan"
	"github.com/magabrotheeeer/coin-planner/internal/services/remark"
	"github.com/magabrotheeeer/coin-planner/internal/services/settings"
	"github.com/magabrotheeeer/coin-planner/internal/services/user"
	"github.com/magabrotheeeer/coin-planner/internal/storage"
	"github.com/magabrotheeeer/coin-planner/internal/storage/memory"
	"github.com/magabrotheeeer/coin-planner/internal/storage/repository"
)

// Cache — кэш правил и настроек.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Pinger проверяет доступность хранилища.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps — открытые зависимости процесса.
type Deps struct {
	Store    storage.Store
	Clock    clock.Clock
	Location *time.Location
	Log      *slog.Logger

	db    *repository.Storage
	redis *cache.Cache
	conn  *amqp.Connection
	ch    *amqp.Channel
}

// Options выбирает, какие зависимости открывать.
type Options struct {
	NoStorage bool
	Migrate   bool // применить миграции (postgres)
	Cache     bool
	Broker    bool
}

// Open открывает зависимости по конфигу. Пустой адрес redis или rabbitmq
// отключает соответствующую зависимость.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger, opts Options) (*Deps, error) {
	const op = "bootstrap.Open"

	loc, err := clock.ParseOffset(cfg.UTCOffset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	d := &Deps{Clock: clock.New(loc), Location: loc, Log: log}

	switch {
	case opts.NoStorage:
	case cfg.StorageDriver == config.StorageMemory:
		log.Warn("using in-memory storage, data is lost on restart")
		d.Store = memory.New()
	default:
		db, err := repository.New(cfg.StorageConnectionString)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		d.db = db
		d.Store = db
		if opts.Migrate {
			if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
				d.Close()
				return nil, fmt.Errorf("%s: %w", op, err)
			}
		}
	}

	if opts.Cache && cfg.AddressRedis != "" {
		c, err := cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		d.redis = c
	}

	if opts.Broker && cfg.RabbitMQURL != "" {
		conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		d.conn = conn
		ch, err := rabbitmq.SetupChannel(conn, rabbitmq.NotificationQueues())
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		d.ch = ch
	}
	return d, nil
}

// WaitReady ждёт, пока в базе появятся таблицы планировщика.
func (d *Deps) WaitReady(ctx context.Context, attempts int, delay time.Duration) error {
	if d.db == nil {
		return nil
	}
	var err error
	for range attempts {
		if err = repository.CheckDatabaseReady(ctx, d.db); err == nil {
			return nil
		}
		d.Log.Warn("database is not ready", sl.Err(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("database not ready after retries: %w", err)
}

// Pinger возвращает проверку хранилища или nil для хранилища в памяти.
func (d *Deps) Pinger() Pinger {
	if d.db == nil {
		return nil
	}
	return d.db
}

// Cache возвращает кэш или nil, если redis отключён.
func (d *Deps) Cache() Cache {
	if d.redis == nil {
		return nil
	}
	return d.redis
}

// Locker возвращает распределённую блокировку или nil, если redis отключён.
func (d *Deps) Locker() guard.Locker {
	if d.redis == nil {
		return nil
	}
	return d.redis
}

// Channel возвращает канал брокера или nil, если брокер отключён.
func (d *Deps) Channel() *amqp.Channel {
	return d.ch
}

// Publisher возвращает издателя уведомлений или nil, если брокер отключён.
func (d *Deps) Publisher() rabbitmq.Publisher {
	if d.ch == nil {
		return nil
	}
	return d.ch
}

// Close закрывает все открытые зависимости.
func (d *Deps) Close() {
	if d.ch != nil {
		if err := d.ch.Close(); err != nil {
			d.Log.Error("failed to close channel", sl.Err(err))
		}
	}
	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			d.Log.Error("failed to close connection", sl.Err(err))
		}
	}
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			d.Log.Error("failed to close redis", sl.Err(err))
		}
	}
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			d.Log.Error("failed to close storage", sl.Err(err))
		}
	}
}

// Services — доменные сервисы, общие для HTTP-сервера и фоновых задач.
type Services struct {
	Notifier *notifier.Notifier
	Settings *settings.Service
	Rules    *coinrule.Service
	Plans    *plan.Service
	Accrual  *accrual.Engine
	Remarks  *remark.Ledger
	Inbox    *inbox.Service
	Payments *payment.Service
	Users    *user.Service
}

// NewServices собирает сервисы поверх зависимостей.
func NewServices(d *Deps, cfg *config.Config) *Services {
	n := notifier.New(d.Publisher(), d.Log)
	st := settings.New(d.Store, d.Cache(), cfg.CacheTTL, d.Clock, d.Log)
	rules := coinrule.New(d.Store, d.Cache(), cfg.CacheTTL, st, n, d.Clock, d.Log)
	maker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	return &Services{
		Notifier: n,
		Settings: st,
		Rules:    rules,
		Plans:    plan.New(d.Store, rules, st, n, d.Clock, d.Log),
		Accrual:  accrual.New(d.Store, rules, st, n, d.Clock, d.Log),
		Remarks:  remark.New(d.Store),
		Inbox:    inbox.New(d.Store, d.Clock, d.Log),
		Payments: payment.New(d.Store, payment.NewHMACVerifier(cfg.KeySecret), st, n, d.Clock, d.Log),
		Users:    user.New(d.Store, st, maker, d.Clock),
	}
}
