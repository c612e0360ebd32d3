// Package memory реализует хранилище планировщика в памяти процесса.
//
// Используется в тестах и при storage_driver: memory. Транзакция работает с копией
// состояния под общим мьютексом и подменяет состояние только при успешном завершении,
// поэтому частично выполненная операция не видна.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/coin-planner/internal/models"
	"github.com/magabrotheeeer/coin-planner/internal/storage"
)

type state struct {
	seq           int64
	users         map[string]*models.User
	plans         map[int64]*models.Plan
	remarks       []*models.Remark
	rule          *models.CoinRule
	settings      *models.Settings
	notifications []*models.Notification
	payments      []*models.Payment
}

func newState() *state {
	return &state{
		users: make(map[string]*models.User),
		plans: make(map[int64]*models.Plan),
	}
}

func (s *state) clone() *state {
	c := &state{
		seq:           s.seq,
		users:         make(map[string]*models.User, len(s.users)),
		plans:         make(map[int64]*models.Plan, len(s.plans)),
		remarks:       make([]*models.Remark, len(s.remarks)),
		notifications: make([]*models.Notification, len(s.notifications)),
		payments:      make([]*models.Payment, len(s.payments)),
	}
	for k, u := range s.users {
		c.users[k] = copyUser(u)
	}
	for k, p := range s.plans {
		c.plans[k] = p.Clone()
	}
	for i, r := range s.remarks {
		cp := *r
		c.remarks[i] = &cp
	}
	for i, n := range s.notifications {
		cp := *n
		c.notifications[i] = &cp
	}
	for i, p := range s.payments {
		cp := *p
		c.payments[i] = &cp
	}
	if s.rule != nil {
		r := *s.rule
		c.rule = &r
	}
	if s.settings != nil {
		c.settings = copySettings(s.settings)
	}
	return c
}

func (s *state) next() int64 {
	s.seq++
	return s.seq
}

func copyUser(u *models.User) *models.User {
	c := *u
	if u.SubscriptionEndDate != nil {
		end := *u.SubscriptionEndDate
		c.SubscriptionEndDate = &end
	}
	return &c
}

func copySettings(s *models.Settings) *models.Settings {
	c := *s
	c.Tiers.Paid = slices.Clone(s.Tiers.Paid)
	return &c
}

// Store — хранилище в памяти.
type Store struct {
	mu sync.Mutex
	st *state
}

var _ storage.Store = (*Store)(nil)

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{st: newState()}
}

// InTx выполняет fn над копией состояния. Транзакции сериализуются.
func (s *Store) InTx(ctx context.Context, fn func(tx storage.Queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(&queries{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

// Close ничего не делает.
func (s *Store) Close() error {
	return nil
}

// run выполняет одиночную операцию атомарно.
func (s *Store) run(ctx context.Context, fn func(q *queries) error) error {
	return s.InTx(ctx, func(tx storage.Queries) error {
		return fn(tx.(*queries))
	})
}

// view выполняет чтение без копирования состояния.
func (s *Store) view(ctx context.Context, fn func(q *queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(&queries{st: s.st})
}

// queries работает с конкретным состоянием без блокировок.
type queries struct {
	st *state
}

var _ storage.Queries = (*queries)(nil)

func (q *queries) CreateUser(_ context.Context, user *models.User) (string, error) {
	if user.UID == "" {
		user.UID = uuid.NewString()
	}
	if _, ok := q.st.users[user.UID]; ok {
		return "", storage.ErrDuplicate
	}
	for _, u := range q.st.users {
		if u.Email == user.Email {
			return "", storage.ErrDuplicate
		}
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	q.st.users[user.UID] = copyUser(user)
	return user.UID, nil
}

func (q *queries) GetUser(_ context.Context, uid string) (*models.User, error) {
	u, ok := q.st.users[uid]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyUser(u), nil
}

func (q *queries) LockUser(ctx context.Context, uid string) (*models.User, error) {
	return q.GetUser(ctx, uid)
}

func (q *queries) UpdateUserBalance(_ context.Context, user *models.User) error {
	u, ok := q.st.users[user.UID]
	if !ok {
		return storage.ErrNotFound
	}
	u.Coins = user.Coins
	u.Tier = user.Tier
	u.PreviousTier = user.PreviousTier
	u.SubscriptionEndDate = nil
	if user.SubscriptionEndDate != nil {
		end := *user.SubscriptionEndDate
		u.SubscriptionEndDate = &end
	}
	return nil
}

func (q *queries) sortedUsers(keep func(u *models.User) bool) []*models.User {
	var res []*models.User
	for _, u := range q.st.users {
		if !u.IsDeactivated && keep(u) {
			res = append(res, copyUser(u))
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].UID < res[j].UID
		}
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	return res
}

func (q *queries) ListActiveUsers(_ context.Context) ([]*models.User, error) {
	return q.sortedUsers(func(*models.User) bool { return true }), nil
}

func (q *queries) ListUsersByTiers(_ context.Context, tiers []string) ([]*models.User, error) {
	if len(tiers) == 0 {
		return nil, nil
	}
	return q.sortedUsers(func(u *models.User) bool { return slices.Contains(tiers, u.Tier) }), nil
}

func (q *queries) DowngradeExpiredSubscriptions(_ context.Context, now time.Time, baseTier string) (int64, error) {
	var n int64
	for _, u := range q.st.users {
		if u.SubscriptionEndDate == nil || u.SubscriptionEndDate.After(now) || u.Tier == baseTier {
			continue
		}
		u.Tier = baseTier
		u.SubscriptionEndDate = nil
		n++
	}
	return n, nil
}
