package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetUsage возвращает текущее потребление ресурса аккаунтом.
// Отсутствие строки означает нулевое потребление.
func (s *Storage) GetUsage(ctx context.Context, accountUID, resource string) (int, error) {
	const op = "storage.GetUsage"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var used int
	query := `SELECT used FROM usage_counters
			  WHERE account_uid = $1 AND resource = $2`
	if err := s.DB.QueryRowContext(ctx, query, accountUID, resource).Scan(&used); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return used, nil
}

// AddUsage увеличивает счётчик потребления на qty и возвращает новое значение.
func (s *Storage) AddUsage(ctx context.Context, accountUID, resource string, qty int) (int, error) {
	const op = "storage.AddUsage"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var used int
	query := `INSERT INTO usage_counters (account_uid, resource, used)
			  VALUES ($1, $2, $3)
			  ON CONFLICT (account_uid, resource)
			  DO UPDATE SET used = usage_counters.used + EXCLUDED.used
			  RETURNING used;`
	if err := s.DB.QueryRowContext(ctx, query, accountUID, resource, qty).Scan(&used); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return used, nil
}

// ReduceUsage уменьшает счётчик потребления на qty, не опускаясь ниже нуля.
// Используется для компенсирующего возврата после неудавшегося действия.
func (s *Storage) ReduceUsage(ctx context.Context, accountUID, resource string, qty int) (int, error) {
	const op = "storage.ReduceUsage"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var used int
	query := `UPDATE usage_counters
			  SET used = GREATEST(used - $3, 0)
			  WHERE account_uid = $1 AND resource = $2
			  RETURNING used;`
	if err := s.DB.QueryRowContext(ctx, query, accountUID, resource, qty).Scan(&used); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return used, nil
}

// ResetUsage обнуляет счётчик потребления ресурса.
func (s *Storage) ResetUsage(ctx context.Context, accountUID, resource string) error {
	const op = "storage.ResetUsage"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE usage_counters SET used = 0
			  WHERE account_uid = $1 AND resource = $2`
	if _, err := s.DB.ExecContext(ctx, query, accountUID, resource); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UsageSummary возвращает потребление всех ресурсов аккаунта.
func (s *Storage) UsageSummary(ctx context.Context, accountUID string) (map[string]int, error) {
	const op = "storage.UsageSummary"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT resource, used FROM usage_counters
			  WHERE account_uid = $1`
	rows, err := s.DB.QueryContext(ctx, query, accountUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string]int)
	for rows.Next() {
		var resource string
		var used int
		if err := rows.Scan(&resource, &used); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result[resource] = used
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
