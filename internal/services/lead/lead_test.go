package lead

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/leadpilot/leadpilot/internal/models"
	"github.com/leadpilot/leadpilot/internal/services/entitlement"
	"github.com/leadpilot/leadpilot/internal/services/usage"
	"github.com/leadpilot/leadpilot/internal/storage/repository"
)

// Боевые реализации должны удовлетворять интерфейсам сервиса:
// мок в тестах не заметит расхождение сигнатур с хранилищем.
var (
	_ Repository = (*repository.Storage)(nil)
	_ Guard      = (*entitlement.Guard)(nil)
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateLead(ctx context.Context, lead models.Lead) (int, error) {
	args := m.Called(ctx, lead)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) ListLeads(ctx context.Context, accountUID string, limit, offset int) ([]models.Lead, error) {
	args := m.Called(ctx, accountUID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Lead), args.Error(1)
}

func (m *MockRepository) CountLeads(ctx context.Context, accountUID string) (int, error) {
	args := m.Called(ctx, accountUID)
	return args.Int(0), args.Error(1)
}

type MockGuard struct {
	mock.Mock
}

func (m *MockGuard) Consume(ctx context.Context, accountUID, resource string, qty int) (int, error) {
	args := m.Called(ctx, accountUID, resource, qty)
	return args.Int(0), args.Error(1)
}

func (m *MockGuard) Refund(ctx context.Context, accountUID, resource string, qty int) {
	m.Called(ctx, accountUID, resource, qty)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreate_Успешно(t *testing.T) {
	repo := new(MockRepository)
	guard := new(MockGuard)
	service := New(repo, guard, discardLogger())

	guard.On("Consume", mock.Anything, "acc-1", models.ResourceLeads, 1).Return(1, nil)
	repo.On("CreateLead", mock.Anything, mock.MatchedBy(func(l models.Lead) bool {
		return l.DedupKey == "phone:+79001234567" && l.Source == models.LeadSourceManual
	})).Return(42, nil)

	lead, err := service.Create(context.Background(), "acc-1", models.DummyLead{
		Name:  "Иван",
		Phone: "+7 (900) 123-45-67",
	})
	require.NoError(t, err)
	assert.Equal(t, 42, lead.ID)
	assert.Equal(t, "+79001234567", lead.Phone)

	repo.AssertExpectations(t)
	guard.AssertExpectations(t)
}

func TestCreate_БезКонтактов(t *testing.T) {
	repo := new(MockRepository)
	guard := new(MockGuard)
	service := New(repo, guard, discardLogger())

	_, err := service.Create(context.Background(), "acc-1", models.DummyLead{Name: "Иван"})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNoContact)

	guard.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreate_ДубликатВозвращаетКвоту(t *testing.T) {
	repo := new(MockRepository)
	guard := new(MockGuard)
	service := New(repo, guard, discardLogger())

	guard.On("Consume", mock.Anything, "acc-1", models.ResourceLeads, 1).Return(5, nil)
	guard.On("Refund", mock.Anything, "acc-1", models.ResourceLeads, 1).Return()
	repo.On("CreateLead", mock.Anything, mock.Anything).
		Return(0, fmt.Errorf("leads.CreateLead: %w", repository.ErrDuplicateLead))

	_, err := service.Create(context.Background(), "acc-1", models.DummyLead{
		Name:  "Иван",
		Phone: "+79001234567",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicate)

	guard.AssertExpectations(t)
}

func TestCreate_КвотаИсчерпана(t *testing.T) {
	repo := new(MockRepository)
	guard := new(MockGuard)
	service := New(repo, guard, discardLogger())

	limitErr := &usage.LimitExceededError{Resource: models.ResourceLeads, Current: 100, Limit: 100}
	guard.On("Consume", mock.Anything, "acc-1", models.ResourceLeads, 1).Return(100, limitErr)

	_, err := service.Create(context.Background(), "acc-1", models.DummyLead{
		Name:  "Иван",
		Phone: "+79001234567",
	})
	require.Error(t, err)

	var got *usage.LimitExceededError
	assert.ErrorAs(t, err, &got)
	repo.AssertNotCalled(t, "CreateLead", mock.Anything, mock.Anything)
}

func TestList_НормализацияПагинации(t *testing.T) {
	repo := new(MockRepository)
	service := New(repo, new(MockGuard), discardLogger())

	repo.On("ListLeads", mock.Anything, "acc-1", 50, 0).Return([]models.Lead{{ID: 1}}, nil)
	repo.On("CountLeads", mock.Anything, "acc-1").Return(1, nil)

	page, err := service.List(context.Background(), "acc-1", 0, -5)
	require.NoError(t, err)
	assert.Equal(t, 50, page.Limit)
	assert.Equal(t, 0, page.Offset)
	assert.Equal(t, 1, page.Total)
	assert.Len(t, page.Leads, 1)

	repo.AssertExpectations(t)
}
