package sync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadpilot/leadpilot/internal/leadsource"
	"github.com/leadpilot/leadpilot/internal/models"
	"github.com/leadpilot/leadpilot/internal/services/entitlement"
	"github.com/leadpilot/leadpilot/internal/services/usage"
	"github.com/leadpilot/leadpilot/internal/storage/repository"
)

// Боевые реализации должны удовлетворять интерфейсам сверки.
var (
	_ Source         = (*leadsource.Client)(nil)
	_ LeadRepository = (*repository.Storage)(nil)
	_ RunRepository  = (*repository.Storage)(nil)
	_ Guard          = (*entitlement.Guard)(nil)
)

type fakeSource struct {
	candidates []leadsource.Candidate
	err        error
	block      chan struct{}
	calls      int
}

func (s *fakeSource) Fetch(ctx context.Context, sourceURL string) ([]leadsource.Candidate, error) {
	s.calls++
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.candidates, nil
}

type memLeadRepo struct {
	leads  map[string]models.Lead
	nextID int
	// dedupKey, для которого CreateLead имитирует гонку вставки
	raceKey string
	// dedupKey, для которого CreateLead возвращает произвольную ошибку
	brokenKey string
}

func newMemLeadRepo() *memLeadRepo {
	return &memLeadRepo{leads: make(map[string]models.Lead)}
}

func (r *memLeadRepo) key(accountUID, dedupKey string) string {
	return accountUID + "/" + dedupKey
}

func (r *memLeadRepo) LeadExists(ctx context.Context, accountUID, dedupKey string) (bool, error) {
	_, ok := r.leads[r.key(accountUID, dedupKey)]
	return ok, nil
}

func (r *memLeadRepo) CreateLead(ctx context.Context, lead models.Lead) (int, error) {
	if lead.DedupKey == r.raceKey {
		return 0, fmt.Errorf("leads.CreateLead: %w", repository.ErrDuplicateLead)
	}
	if lead.DedupKey == r.brokenKey {
		return 0, fmt.Errorf("leads.CreateLead: connection reset")
	}
	k := r.key(lead.AccountUID, lead.DedupKey)
	if _, ok := r.leads[k]; ok {
		return 0, fmt.Errorf("leads.CreateLead: %w", repository.ErrDuplicateLead)
	}
	r.nextID++
	lead.ID = r.nextID
	r.leads[k] = lead
	return lead.ID, nil
}

type memRunRepo struct {
	runs map[string]models.SyncRun
}

func newMemRunRepo() *memRunRepo {
	return &memRunRepo{runs: make(map[string]models.SyncRun)}
}

func (r *memRunRepo) SaveSyncRun(ctx context.Context, run models.SyncRun) error {
	r.runs[run.AccountUID] = run
	return nil
}

func (r *memRunRepo) GetLastSyncRun(ctx context.Context, accountUID string) (*models.SyncRun, error) {
	run, ok := r.runs[accountUID]
	if !ok {
		return nil, nil
	}
	return &run, nil
}

// fakeGuard списывает квоту лидов до фиксированного лимита.
// Нулевой batchLimit означает безлимитный пакет импорта.
type fakeGuard struct {
	limit      int
	batchLimit int
	used       int
	refunded   int
}

func (g *fakeGuard) Consume(ctx context.Context, accountUID, resource string, qty int) (int, error) {
	if g.limit != models.Unlimited && g.used+qty > g.limit {
		return g.used, &usage.LimitExceededError{Resource: resource, Current: g.used, Limit: g.limit}
	}
	g.used += qty
	return g.used, nil
}

func (g *fakeGuard) Refund(ctx context.Context, accountUID, resource string, qty int) {
	g.refunded += qty
	g.used -= qty
}

func (g *fakeGuard) LimitFor(ctx context.Context, accountUID, resource string) (int, error) {
	if resource == models.ResourceImportBatch && g.batchLimit != 0 {
		return g.batchLimit, nil
	}
	return models.Unlimited, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestReconciler(source Source, leads *memLeadRepo, guard *fakeGuard) (*Reconciler, *memRunRepo) {
	runs := newMemRunRepo()
	r := NewReconciler(source, leads, runs, guard, nil, discardLogger(), 5*time.Second)
	return r, runs
}

func TestRun_ДобавлениеИДедупликация(t *testing.T) {
	source := &fakeSource{candidates: []leadsource.Candidate{
		{Name: "Иван", Phone: "+7 (900) 123-45-67"},
		{FullName: "Пётр", PhoneNumber: "+79001234567"}, // тот же номер после нормализации
		{Name: "Анна", Email: "Anna@Example.com"},
		{Name: "Без контактов"},
	}}
	leads := newMemLeadRepo()
	guard := &fakeGuard{limit: models.Unlimited}
	r, runs := newTestReconciler(source, leads, guard)

	run, err := r.Run(context.Background(), "acc-1", "https://crm.example.com/leads")
	require.NoError(t, err)

	assert.Equal(t, 2, run.Added)
	assert.Equal(t, 1, run.Skipped)
	assert.Equal(t, 1, run.Failed)
	assert.False(t, run.LimitReached)

	saved, err := runs.GetLastSyncRun(context.Background(), "acc-1")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, run.Added, saved.Added)
	assert.Equal(t, "https://crm.example.com/leads", saved.SourceURL)
}

func TestRun_ПустойИсточник(t *testing.T) {
	source := &fakeSource{}
	r, _ := newTestReconciler(source, newMemLeadRepo(), &fakeGuard{limit: models.Unlimited})

	run, err := r.Run(context.Background(), "acc-1", "https://crm.example.com/leads")
	require.NoError(t, err)

	assert.Equal(t, 0, run.Added)
	assert.Equal(t, 0, run.Skipped)
	assert.Equal(t, 0, run.Failed)
	assert.False(t, run.LimitReached)
}

func TestRun_НекорректныйОтветИсточника(t *testing.T) {
	source := &fakeSource{err: fmt.Errorf("leadsource.Fetch: %w", leadsource.ErrBadResponse)}
	leads := newMemLeadRepo()
	r, runs := newTestReconciler(source, leads, &fakeGuard{limit: models.Unlimited})

	_, err := r.Run(context.Background(), "acc-1", "https://crm.example.com/leads")
	require.Error(t, err)
	assert.ErrorIs(t, err, leadsource.ErrBadResponse)

	assert.Empty(t, leads.leads, "при ошибке источника лиды не создаются")
	saved, _ := runs.GetLastSyncRun(context.Background(), "acc-1")
	assert.Nil(t, saved, "неудачный прогон не сохраняется")
}

func TestRun_ИсчерпаниеКвоты(t *testing.T) {
	candidates := make([]leadsource.Candidate, 0, 15)
	for i := range 15 {
		candidates = append(candidates, leadsource.Candidate{
			Name:  fmt.Sprintf("Лид %d", i),
			Phone: fmt.Sprintf("+7900000%04d", i),
		})
	}
	source := &fakeSource{candidates: candidates}
	leads := newMemLeadRepo()
	guard := &fakeGuard{limit: 10}
	r, _ := newTestReconciler(source, leads, guard)

	run, err := r.Run(context.Background(), "acc-1", "https://crm.example.com/leads")
	require.NoError(t, err, "исчерпание квоты не ошибка, а частичный успех")

	assert.Equal(t, 10, run.Added)
	assert.True(t, run.LimitReached)
	assert.Equal(t, 0, run.Failed, "не вошедшие в квоту кандидаты не считаются ошибками")
	assert.Len(t, leads.leads, 10)
}

func TestRun_ОграничениеРазмераПакетаИмпорта(t *testing.T) {
	candidates := make([]leadsource.Candidate, 0, 30)
	for i := range 30 {
		candidates = append(candidates, leadsource.Candidate{
			Name:  fmt.Sprintf("Лид %d", i),
			Phone: fmt.Sprintf("+7900000%04d", i),
		})
	}
	source := &fakeSource{candidates: candidates}
	leads := newMemLeadRepo()
	guard := &fakeGuard{limit: models.Unlimited, batchLimit: 25}
	r, _ := newTestReconciler(source, leads, guard)

	run, err := r.Run(context.Background(), "acc-1", "https://crm.example.com/leads")
	require.NoError(t, err)

	assert.Equal(t, 25, run.Added, "за прогон добавляется не больше importBatch лидов")
	assert.True(t, run.LimitReached)
	assert.Equal(t, 0, run.Failed)
	assert.Len(t, leads.leads, 25)

	// хвост добирается следующим прогоном: дубликаты пакет не расходуют
	second, err := r.Run(context.Background(), "acc-1", "https://crm.example.com/leads")
	require.NoError(t, err)
	assert.Equal(t, 5, second.Added)
	assert.Equal(t, 25, second.Skipped)
	assert.False(t, second.LimitReached)
	assert.Len(t, leads.leads, 30)
}

func TestRun_ПовторныйПрогонИдемпотентен(t *testing.T) {
	source := &fakeSource{candidates: []leadsource.Candidate{
		{Name: "Иван", Phone: "+79001234567"},
		{Name: "Анна", Email: "anna@example.com"},
	}}
	leads := newMemLeadRepo()
	guard := &fakeGuard{limit: models.Unlimited}
	r, _ := newTestReconciler(source, leads, guard)

	first, err := r.Run(context.Background(), "acc-1", "https://crm.example.com/leads")
	require.NoError(t, err)
	assert.Equal(t, 2, first.Added)

	second, err := r.Run(context.Background(), "acc-1", "https://crm.example.com/leads")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Added)
	assert.Equal(t, 2, second.Skipped)
	assert.Len(t, leads.leads, 2)
}

func TestRun_ГонкаВставкиВозвращаетКвоту(t *testing.T) {
	source := &fakeSource{candidates: []leadsource.Candidate{
		{Name: "Иван", Phone: "+79001234567"},
	}}
	leads := newMemLeadRepo()
	leads.raceKey = "phone:+79001234567"
	guard := &fakeGuard{limit: 10}
	r, _ := newTestReconciler(source, leads, guard)

	run, err := r.Run(context.Background(), "acc-1", "https://crm.example.com/leads")
	require.NoError(t, err)

	assert.Equal(t, 1, run.Skipped)
	assert.Equal(t, 0, run.Added)
	assert.Equal(t, 1, guard.refunded)
	assert.Equal(t, 0, guard.used)
}

func TestRun_ОшибкаВставкиСчитаетсяFailed(t *testing.T) {
	source := &fakeSource{candidates: []leadsource.Candidate{
		{Name: "Иван", Phone: "+79001234567"},
		{Name: "Анна", Email: "anna@example.com"},
	}}
	leads := newMemLeadRepo()
	leads.brokenKey = "phone:+79001234567"
	guard := &fakeGuard{limit: 10}
	r, _ := newTestReconciler(source, leads, guard)

	run, err := r.Run(context.Background(), "acc-1", "https://crm.example.com/leads")
	require.NoError(t, err)

	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, 1, run.Added)
	assert.Equal(t, 1, guard.refunded)
	assert.Equal(t, 1, guard.used)
}

func TestRun_ТаймаутИсточника(t *testing.T) {
	source := &fakeSource{block: make(chan struct{})}
	runs := newMemRunRepo()
	r := NewReconciler(source, newMemLeadRepo(), runs, &fakeGuard{limit: models.Unlimited},
		nil, discardLogger(), 50*time.Millisecond)

	_, err := r.Run(context.Background(), "acc-1", "https://crm.example.com/leads")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestRun_ПараллельныйПрогонОтклоняется(t *testing.T) {
	block := make(chan struct{})
	source := &fakeSource{block: block}
	r, _ := newTestReconciler(source, newMemLeadRepo(), &fakeGuard{limit: models.Unlimited})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = r.Run(context.Background(), "acc-1", "https://crm.example.com/leads")
	}()

	// дождаться, пока первый прогон займёт аккаунт
	require.Eventually(t, func() bool { return source.calls > 0 },
		time.Second, 5*time.Millisecond)

	_, err := r.Run(context.Background(), "acc-1", "https://crm.example.com/leads")
	assert.ErrorIs(t, err, ErrRunInProgress)

	// прогон другого аккаунта не блокируется
	other := &fakeSource{}
	r2, _ := newTestReconciler(other, newMemLeadRepo(), &fakeGuard{limit: models.Unlimited})
	_, err = r2.Run(context.Background(), "acc-2", "https://crm.example.com/leads")
	assert.NoError(t, err)

	close(block)
	<-done
}

func TestRun_СобытиеПубликуется(t *testing.T) {
	source := &fakeSource{candidates: []leadsource.Candidate{
		{Name: "Иван", Phone: "+79001234567"},
	}}
	pub := &capturePublisher{}
	r := NewReconciler(source, newMemLeadRepo(), newMemRunRepo(),
		&fakeGuard{limit: models.Unlimited}, pub, discardLogger(), time.Second)

	_, err := r.Run(context.Background(), "acc-1", "https://crm.example.com/leads")
	require.NoError(t, err)

	require.Len(t, pub.published, 1)
	assert.Equal(t, RouteCompleted, pub.published[0].key)
	run, ok := pub.published[0].message.(models.SyncRun)
	require.True(t, ok)
	assert.Equal(t, 1, run.Added)
}

type capturePublisher struct {
	published []struct {
		key     string
		message any
	}
}

func (p *capturePublisher) Publish(routingKey string, message any) error {
	p.published = append(p.published, struct {
		key     string
		message any
	}{routingKey, message})
	return nil
}
