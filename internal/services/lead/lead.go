// Package lead реализует ручное создание лидов и выдачу списка
// с пагинацией. Ручная вставка проходит через те же проверки
// дедупликации и квот, что и синхронизация из вебхука.
package lead

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leadpilot/leadpilot/internal/models"
	"github.com/leadpilot/leadpilot/internal/storage/repository"
)

// ErrDuplicate лид с таким контактом уже существует у аккаунта.
var ErrDuplicate = errors.New("lead with this contact already exists")

// Repository определяет операции с хранилищем лидов.
type Repository interface {
	CreateLead(ctx context.Context, lead models.Lead) (int, error)
	ListLeads(ctx context.Context, accountUID string, limit, offset int) ([]models.Lead, error)
	CountLeads(ctx context.Context, accountUID string) (int, error)
}

// Guard списывает квоту лидов перед вставкой.
type Guard interface {
	Consume(ctx context.Context, accountUID, resource string, qty int) (int, error)
	Refund(ctx context.Context, accountUID, resource string, qty int)
}

// Service обслуживает операции с лидами.
type Service struct {
	repo  Repository
	guard Guard
	log   *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo Repository, guard Guard, log *slog.Logger) *Service {
	return &Service{repo: repo, guard: guard, log: log}
}

// Create создает лид вручную. Квота списывается до вставки и
// возвращается, если вставка не прошла.
func (s *Service) Create(ctx context.Context, accountUID string, dto models.DummyLead) (*models.Lead, error) {
	const op = "lead.Create"

	dedupKey, err := models.LeadDedupKey(dto.Phone, dto.Email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.guard.Consume(ctx, accountUID, models.ResourceLeads, 1); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lead := models.Lead{
		AccountUID: accountUID,
		Name:       dto.Name,
		Phone:      models.NormalizePhone(dto.Phone),
		Email:      models.NormalizeEmail(dto.Email),
		Source:     models.LeadSourceManual,
		DedupKey:   dedupKey,
	}
	id, err := s.repo.CreateLead(ctx, lead)
	if err != nil {
		s.guard.Refund(ctx, accountUID, models.ResourceLeads, 1)
		if errors.Is(err, repository.ErrDuplicateLead) {
			return nil, fmt.Errorf("%s: %w", op, ErrDuplicate)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	lead.ID = id

	s.log.Info("lead created",
		slog.String("account_uid", accountUID),
		slog.Int("lead_id", id))
	return &lead, nil
}

// LeadPage страница списка лидов.
type LeadPage struct {
	Leads  []models.Lead `json:"leads"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// List возвращает страницу лидов аккаунта, новые первыми.
func (s *Service) List(ctx context.Context, accountUID string, limit, offset int) (*LeadPage, error) {
	const op = "lead.List"

	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	leads, err := s.repo.ListLeads(ctx, accountUID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	total, err := s.repo.CountLeads(ctx, accountUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &LeadPage{Leads: leads, Total: total, Limit: limit, Offset: offset}, nil
}
