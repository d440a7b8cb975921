// Package usage реализует учёт потребления ресурсов по аккаунтам.
//
// Ledger — единственный путь записи счётчиков: проверка лимита и
// инкремент выполняются как одна неделимая операция относительно
// конкурентных вызовов по одной паре аккаунт+ресурс.
package usage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leadpilot/leadpilot/internal/models"
)

// Repository определяет методы для работы со счётчиками в хранилище.
type Repository interface {
	// GetUsage возвращает текущее потребление ресурса.
	GetUsage(ctx context.Context, accountUID, resource string) (int, error)
	// AddUsage увеличивает счётчик и возвращает новое значение.
	AddUsage(ctx context.Context, accountUID, resource string, qty int) (int, error)
	// ReduceUsage уменьшает счётчик, не опускаясь ниже нуля.
	ReduceUsage(ctx context.Context, accountUID, resource string, qty int) (int, error)
	// ResetUsage обнуляет счётчик.
	ResetUsage(ctx context.Context, accountUID, resource string) error
	// UsageSummary возвращает потребление всех ресурсов аккаунта.
	UsageSummary(ctx context.Context, accountUID string) (map[string]int, error)
}

// LimitExceededError возвращается, когда инкремент не влезает в лимит.
// Содержит данные для сообщения пользователю: ресурс, текущее значение и лимит.
type LimitExceededError struct {
	Resource string
	Current  int
	Limit    int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("limit exceeded for %s: %d of %d used", e.Resource, e.Current, e.Limit)
}

// Ledger реализует атомарный условный инкремент счётчиков.
// Критическая секция сериализуется по ключу аккаунт+ресурс,
// разные аккаунты друг друга не блокируют.
type Ledger struct {
	repo Repository
	log  *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLedger создает новый экземпляр Ledger.
func NewLedger(repo Repository, log *slog.Logger) *Ledger {
	return &Ledger{
		repo:  repo,
		log:   log,
		locks: make(map[string]*sync.Mutex),
	}
}

func (l *Ledger) keyLock(accountUID, resource string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := accountUID + ":" + resource
	lock, ok := l.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[key] = lock
	}
	return lock
}

// Increment проверяет лимит и увеличивает счётчик как одну операцию.
// При limit == models.Unlimited проверка пропускается. Если инкремент
// не влезает в лимит, счётчик не меняется и возвращается LimitExceededError.
func (l *Ledger) Increment(ctx context.Context, accountUID, resource string, qty, limit int) (int, error) {
	lock := l.keyLock(accountUID, resource)
	lock.Lock()
	defer lock.Unlock()

	current, err := l.repo.GetUsage(ctx, accountUID, resource)
	if err != nil {
		return 0, err
	}
	if limit != models.Unlimited && current+qty > limit {
		return 0, &LimitExceededError{
			Resource: resource,
			Current:  current,
			Limit:    limit,
		}
	}

	total, err := l.repo.AddUsage(ctx, accountUID, resource, qty)
	if err != nil {
		return 0, err
	}
	l.log.Info("usage incremented",
		slog.String("account_uid", accountUID),
		slog.String("resource", resource),
		slog.Int("qty", qty),
		slog.Int("total", total))
	return total, nil
}

// Current возвращает текущее потребление ресурса.
func (l *Ledger) Current(ctx context.Context, accountUID, resource string) (int, error) {
	return l.repo.GetUsage(ctx, accountUID, resource)
}

// Reduce уменьшает счётчик на qty (компенсирующий возврат).
func (l *Ledger) Reduce(ctx context.Context, accountUID, resource string, qty int) (int, error) {
	lock := l.keyLock(accountUID, resource)
	lock.Lock()
	defer lock.Unlock()
	return l.repo.ReduceUsage(ctx, accountUID, resource, qty)
}

// Reset обнуляет счётчик ресурса (например, в начале расчётного периода).
func (l *Ledger) Reset(ctx context.Context, accountUID, resource string) error {
	lock := l.keyLock(accountUID, resource)
	lock.Lock()
	defer lock.Unlock()
	return l.repo.ResetUsage(ctx, accountUID, resource)
}

// Summary возвращает потребление всех ресурсов аккаунта.
func (l *Ledger) Summary(ctx context.Context, accountUID string) (map[string]int, error) {
	return l.repo.UsageSummary(ctx, accountUID)
}
