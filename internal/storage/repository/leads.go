package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/leadpilot/leadpilot/internal/models"
)

// ErrDuplicateLead возвращается при попытке вставить лид,
// чей ключ дедупликации уже занят в пределах аккаунта.
var ErrDuplicateLead = errors.New("lead already exists")

// CreateLead вставляет новый лид и возвращает его ID.
// Уникальность ключа дедупликации обеспечивается ограничением в базе,
// поэтому параллельная вставка дубликата безопасно завершается ErrDuplicateLead.
func (s *Storage) CreateLead(ctx context.Context, lead models.Lead) (int, error) {
	const op = "storage.CreateLead"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var id int
	query := `INSERT INTO leads (account_uid, name, phone, email, source, dedup_key)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  ON CONFLICT (account_uid, dedup_key) DO NOTHING
			  RETURNING id;`
	err := s.DB.QueryRowContext(ctx, query,
		lead.AccountUID, lead.Name, lead.Phone, lead.Email, lead.Source, lead.DedupKey).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%s: %w", op, ErrDuplicateLead)
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// LeadExists сообщает, есть ли у аккаунта лид с данным ключом дедупликации.
func (s *Storage) LeadExists(ctx context.Context, accountUID, dedupKey string) (bool, error) {
	const op = "storage.LeadExists"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var exists bool
	query := `SELECT EXISTS (
			      SELECT 1 FROM leads WHERE account_uid = $1 AND dedup_key = $2
			  )`
	if err := s.DB.QueryRowContext(ctx, query, accountUID, dedupKey).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// ListLeads возвращает список лидов аккаунта с пагинацией.
func (s *Storage) ListLeads(ctx context.Context, accountUID string, limit, offset int) ([]models.Lead, error) {
	const op = "storage.ListLeads"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, account_uid, name, phone, email, source, dedup_key, created_at
			  FROM leads
			  WHERE account_uid = $1
			  ORDER BY created_at DESC, id DESC
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, accountUID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var leads []models.Lead
	for rows.Next() {
		var lead models.Lead
		var phone, email sql.NullString
		if err := rows.Scan(&lead.ID, &lead.AccountUID, &lead.Name, &phone, &email,
			&lead.Source, &lead.DedupKey, &lead.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		lead.Phone = phone.String
		lead.Email = email.String
		leads = append(leads, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return leads, nil
}

// CountLeads возвращает количество лидов аккаунта.
func (s *Storage) CountLeads(ctx context.Context, accountUID string) (int, error) {
	const op = "storage.CountLeads"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var count int
	query := `SELECT COUNT(*) FROM leads WHERE account_uid = $1`
	if err := s.DB.QueryRowContext(ctx, query, accountUID).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}
