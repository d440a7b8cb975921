// Package entitlement отвечает на вопрос "можно ли выполнить действие"
// и фиксирует его выполнение. Лимиты берутся из статической таблицы
// тарифов с учётом активного пробного периода аккаунта.
package entitlement

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/leadpilot/leadpilot/internal/lib/sl"
	"github.com/leadpilot/leadpilot/internal/models"
)

// AccountRepository определяет доступ к аккаунтам в хранилище.
type AccountRepository interface {
	GetAccountByUID(ctx context.Context, uid string) (*models.Account, error)
}

// Ledger определяет операции учёта потребления, нужные стражу.
type Ledger interface {
	Increment(ctx context.Context, accountUID, resource string, qty, limit int) (int, error)
	Current(ctx context.Context, accountUID, resource string) (int, error)
	Reduce(ctx context.Context, accountUID, resource string, qty int) (int, error)
	Summary(ctx context.Context, accountUID string) (map[string]int, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
}

// Guard реализует проверку и списание квот поверх Ledger и таблицы тарифов.
type Guard struct {
	accounts AccountRepository
	ledger   Ledger
	cache    Cache
	log      *slog.Logger
	now      func() time.Time
}

// NewGuard создает новый экземпляр Guard.
func NewGuard(accounts AccountRepository, ledger Ledger, cache Cache, log *slog.Logger) *Guard {
	return &Guard{
		accounts: accounts,
		ledger:   ledger,
		cache:    cache,
		log:      log,
		now:      time.Now,
	}
}

func (g *Guard) account(ctx context.Context, accountUID string) (*models.Account, error) {
	var acct *models.Account
	cacheKey := "account:" + accountUID
	found, err := g.cache.Get(cacheKey, &acct)
	if err != nil {
		g.log.Warn("failed to read account from cache", slog.String("key", cacheKey), sl.Err(err))
	}
	if found && acct != nil {
		return acct, nil
	}

	acct, err = g.accounts.GetAccountByUID(ctx, accountUID)
	if err != nil {
		return nil, err
	}
	if err := g.cache.Set(cacheKey, acct, time.Minute); err != nil {
		g.log.Warn("failed to cache account", slog.String("key", cacheKey), sl.Err(err))
	}
	return acct, nil
}

// LimitFor возвращает действующий лимит ресурса для аккаунта.
func (g *Guard) LimitFor(ctx context.Context, accountUID, resource string) (int, error) {
	acct, err := g.account(ctx, accountUID)
	if err != nil {
		return 0, err
	}
	plan := acct.EffectivePlan(g.now())
	return models.GetPlanLimits(plan).LimitFor(resource), nil
}

// CanPerform выполняет консультативную проверку квоты без побочных эффектов.
// Используется для гейтинга UI; авторитетным остаётся только Consume.
func (g *Guard) CanPerform(ctx context.Context, accountUID, resource string, qty int) (bool, error) {
	limit, err := g.LimitFor(ctx, accountUID, resource)
	if err != nil {
		return false, err
	}
	if limit == models.Unlimited {
		return true, nil
	}
	current, err := g.ledger.Current(ctx, accountUID, resource)
	if err != nil {
		return false, err
	}
	return current+qty <= limit, nil
}

// Consume авторитетно списывает квоту: вызывающий обязан получить
// успешный результат до выполнения внешне видимого действия.
// Возвращает новое значение счётчика или usage.LimitExceededError.
func (g *Guard) Consume(ctx context.Context, accountUID, resource string, qty int) (int, error) {
	const op = "entitlement.Consume"
	limit, err := g.LimitFor(ctx, accountUID, resource)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return g.ledger.Increment(ctx, accountUID, resource, qty, limit)
}

// Refund возвращает списанную квоту после неудавшегося действия.
// Возврат выполняется по возможности: потерянная компенсация
// логируется и не ретраится.
func (g *Guard) Refund(ctx context.Context, accountUID, resource string, qty int) {
	if _, err := g.ledger.Reduce(ctx, accountUID, resource, qty); err != nil {
		g.log.Warn("lost usage compensation",
			slog.String("account_uid", accountUID),
			slog.String("resource", resource),
			slog.Int("qty", qty),
			sl.Err(err))
	}
}

// Summary возвращает отчёт о потреблении всех ресурсов аккаунта
// с действующими лимитами, отсортированный по имени ресурса.
func (g *Guard) Summary(ctx context.Context, accountUID string) ([]models.ResourceUsage, error) {
	acct, err := g.account(ctx, accountUID)
	if err != nil {
		return nil, err
	}
	limits := models.GetPlanLimits(acct.EffectivePlan(g.now()))

	used, err := g.ledger.Summary(ctx, accountUID)
	if err != nil {
		return nil, err
	}

	result := make([]models.ResourceUsage, 0, len(limits))
	for resource, limit := range limits {
		result = append(result, models.ResourceUsage{
			Resource: resource,
			Used:     used[resource],
			Limit:    limit,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Resource < result[j].Resource })
	return result, nil
}
