// Package sync реализует сверку лидов из внешнего вебхука с каноническим
// хранилищем: загрузка кандидатов, дедупликация, списание квоты импорта
// и итоговая сводка прогона.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leadpilot/leadpilot/internal/leadsource"
	"github.com/leadpilot/leadpilot/internal/lib/sl"
	"github.com/leadpilot/leadpilot/internal/models"
	"github.com/leadpilot/leadpilot/internal/services/usage"
	"github.com/leadpilot/leadpilot/internal/storage/repository"
)

// Ошибки прогона синхронизации.
var (
	// ErrTimeout источник не ответил за отведённое время; вызывающий может повторить.
	ErrTimeout = errors.New("lead source timed out")
	// ErrRunInProgress по аккаунту уже идёт прогон; двойного списания квот не допускаем.
	ErrRunInProgress = errors.New("sync already running for this account")
)

// Source загружает кандидатов из настроенного вебхука.
type Source interface {
	Fetch(ctx context.Context, sourceURL string) ([]leadsource.Candidate, error)
}

// LeadRepository определяет операции с лидами, нужные сверке.
type LeadRepository interface {
	LeadExists(ctx context.Context, accountUID, dedupKey string) (bool, error)
	CreateLead(ctx context.Context, lead models.Lead) (int, error)
}

// RunRepository хранит сводку последнего прогона по аккаунту.
type RunRepository interface {
	SaveSyncRun(ctx context.Context, run models.SyncRun) error
	GetLastSyncRun(ctx context.Context, accountUID string) (*models.SyncRun, error)
}

// Guard списывает квоту лидов перед каждой вставкой и сообщает
// действующий предел размера пакета импорта.
type Guard interface {
	Consume(ctx context.Context, accountUID, resource string, qty int) (int, error)
	Refund(ctx context.Context, accountUID, resource string, qty int)
	LimitFor(ctx context.Context, accountUID, resource string) (int, error)
}

// EventPublisher публикует сводку завершённого прогона.
type EventPublisher interface {
	Publish(routingKey string, message any) error
}

// RouteCompleted ключ маршрутизации события завершения прогона.
const RouteCompleted = "sync.completed"

// Reconciler выполняет прогоны синхронизации.
// Прогоны по одному аккаунту сериализуются, прогоны разных аккаунтов
// друг друга не блокируют.
type Reconciler struct {
	source  Source
	leads   LeadRepository
	runs    RunRepository
	guard   Guard
	events  EventPublisher
	log     *slog.Logger
	timeout time.Duration

	inflight *accountFlags
}

// NewReconciler создает новый экземпляр Reconciler.
func NewReconciler(source Source, leads LeadRepository, runs RunRepository, guard Guard,
	events EventPublisher, log *slog.Logger, timeout time.Duration) *Reconciler {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Reconciler{
		source:   source,
		leads:    leads,
		runs:     runs,
		guard:    guard,
		events:   events,
		log:      log,
		timeout:  timeout,
		inflight: newAccountFlags(),
	}
}

// Run выполняет один прогон синхронизации для аккаунта.
//
// Дубликаты пропускаются, ошибка преобразования записи попадает в failed,
// исчерпание квоты лидов завершает прогон частичным успехом с
// limitReached = true. Число добавленных за прогон лидов ограничено
// квотой importBatch тарифа: хвост сверх предела откладывается до
// следующего прогона. Повторный прогон с тем же содержимым источника
// идемпотентен: все кандидаты совпадут с существующими ключами дедупликации.
func (r *Reconciler) Run(ctx context.Context, accountUID, sourceURL string) (*models.SyncRun, error) {
	const op = "sync.Run"

	if !r.inflight.acquire(accountUID) {
		return nil, ErrRunInProgress
	}
	defer r.inflight.release(accountUID)

	fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	candidates, err := r.source.Fetch(fetchCtx, sourceURL)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s: %w", op, ErrTimeout)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	run := models.SyncRun{
		AccountUID: accountUID,
		SourceURL:  sourceURL,
		RanAt:      time.Now().UTC(),
	}

	batchCap, err := r.guard.LimitFor(ctx, accountUID, models.ResourceImportBatch)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, candidate := range candidates {
		// пакет импорта ограничен тарифом: хвост дождётся следующего прогона
		if batchCap != models.Unlimited && run.Added >= batchCap {
			run.LimitReached = true
			break
		}
		stop, err := r.mergeCandidate(ctx, accountUID, candidate, &run)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if stop {
			break
		}
	}

	if err := r.runs.SaveSyncRun(ctx, run); err != nil {
		r.log.Warn("failed to save sync run summary", sl.Err(err))
	}
	if r.events != nil {
		if err := r.events.Publish(RouteCompleted, run); err != nil {
			r.log.Warn("failed to publish sync summary", sl.Err(err))
		}
	}

	r.log.Info("sync run finished",
		slog.String("account_uid", accountUID),
		slog.Int("added", run.Added),
		slog.Int("skipped", run.Skipped),
		slog.Int("failed", run.Failed),
		slog.Bool("limit_reached", run.LimitReached))
	return &run, nil
}

// mergeCandidate обрабатывает одного кандидата. Возвращает stop = true,
// когда прогон надо прекратить (исчерпана квота лидов).
func (r *Reconciler) mergeCandidate(ctx context.Context, accountUID string,
	candidate leadsource.Candidate, run *models.SyncRun) (bool, error) {

	name := candidate.ContactName()
	dedupKey, err := models.LeadDedupKey(candidate.ContactPhone(), candidate.Email)
	if err != nil || name == "" {
		run.Failed++
		return false, nil
	}

	exists, err := r.leads.LeadExists(ctx, accountUID, dedupKey)
	if err != nil {
		return false, err
	}
	if exists {
		run.Skipped++
		return false, nil
	}

	// квота списывается до вставки; отказ — штатное частичное завершение
	if _, err := r.guard.Consume(ctx, accountUID, models.ResourceLeads, 1); err != nil {
		var limitErr *usage.LimitExceededError
		if errors.As(err, &limitErr) {
			run.LimitReached = true
			return true, nil
		}
		return false, err
	}

	lead := models.Lead{
		AccountUID: accountUID,
		Name:       name,
		Phone:      models.NormalizePhone(candidate.ContactPhone()),
		Email:      models.NormalizeEmail(candidate.Email),
		Source:     models.LeadSourceWebhook,
		DedupKey:   dedupKey,
	}
	if _, err := r.leads.CreateLead(ctx, lead); err != nil {
		// списанную квоту возвращаем: лид не появился
		r.guard.Refund(ctx, accountUID, models.ResourceLeads, 1)
		if errors.Is(err, repository.ErrDuplicateLead) {
			run.Skipped++
			return false, nil
		}
		run.Failed++
		return false, nil
	}

	run.Added++
	return false, nil
}

// LastRun возвращает сводку последнего прогона аккаунта.
func (r *Reconciler) LastRun(ctx context.Context, accountUID string) (*models.SyncRun, error) {
	return r.runs.GetLastSyncRun(ctx, accountUID)
}
