package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/leadpilot/leadpilot/internal/models"
)

// ErrAccountNotFound возвращается, когда аккаунт отсутствует в базе.
var ErrAccountNotFound = errors.New("account not found")

// RegisterAccount сохраняет новый аккаунт в базу данных и возвращает его UID.
func (s *Storage) RegisterAccount(ctx context.Context, account models.Account) (string, error) {
	const op = "storage.RegisterAccount"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newUID string
	query := `INSERT INTO accounts (email, username, password_hash, role, plan,
			      trial_plan, trial_start, trial_end)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  RETURNING uid;`
	if err := s.DB.QueryRowContext(ctx, query,
		account.Email, account.Username, account.PasswordHash, account.Role,
		account.Plan, account.TrialPlan, account.TrialStart, account.TrialEnd).Scan(&newUID); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newUID, nil
}

// GetAccountByUsername возвращает аккаунт по его username.
func (s *Storage) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	const op = "storage.GetAccountByUsername"
	return s.getAccount(ctx, op, `SELECT uid, email, username, password_hash, role, plan,
			      trial_plan, trial_start, trial_end
			  FROM accounts
			  WHERE username = $1`, username)
}

// GetAccountByUID возвращает аккаунт по его UID.
func (s *Storage) GetAccountByUID(ctx context.Context, uid string) (*models.Account, error) {
	const op = "storage.GetAccountByUID"
	return s.getAccount(ctx, op, `SELECT uid, email, username, password_hash, role, plan,
			      trial_plan, trial_start, trial_end
			  FROM accounts
			  WHERE uid = $1`, uid)
}

func (s *Storage) getAccount(ctx context.Context, op, query, arg string) (*models.Account, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	a := &models.Account{}
	row := s.DB.QueryRowContext(ctx, query, arg)

	var trialPlan sql.NullString
	var trialStart, trialEnd sql.NullTime
	if err := row.Scan(&a.UID, &a.Email, &a.Username, &a.PasswordHash,
		&a.Role, &a.Plan, &trialPlan, &trialStart, &trialEnd); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrAccountNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if trialPlan.Valid {
		a.TrialPlan = trialPlan.String
	}
	if trialStart.Valid {
		a.TrialStart = &trialStart.Time
	}
	if trialEnd.Valid {
		a.TrialEnd = &trialEnd.Time
	}
	return a, nil
}
