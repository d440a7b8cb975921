package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/leadpilot/leadpilot/internal/models"
)

// GetChannelConnection возвращает подключение канала аккаунта.
// Если записи ещё нет, возвращает (nil, nil): отсутствие записи
// эквивалентно состоянию disconnected.
func (s *Storage) GetChannelConnection(ctx context.Context, accountUID string) (*models.ChannelConnection, error) {
	const op = "storage.GetChannelConnection"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	conn := &models.ChannelConnection{}
	var instanceID, pairingSecret, pairingCode, profileName sql.NullString
	query := `SELECT account_uid, status, instance_id, pairing_secret, pairing_code,
			      profile_name, updated_at
			  FROM channel_connections
			  WHERE account_uid = $1`
	err := s.DB.QueryRowContext(ctx, query, accountUID).Scan(&conn.AccountUID, &conn.Status,
		&instanceID, &pairingSecret, &pairingCode, &profileName, &conn.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conn.InstanceID = instanceID.String
	conn.PairingSecret = pairingSecret.String
	conn.PairingCode = pairingCode.String
	conn.ProfileName = profileName.String
	return conn, nil
}

// UpsertChannelConnection сохраняет подключение канала аккаунта целиком.
// Запись либо создаётся, либо полностью перезаписывается — частичных
// обновлений нет, чтобы состояние не расходилось с контроллером.
func (s *Storage) UpsertChannelConnection(ctx context.Context, conn models.ChannelConnection) error {
	const op = "storage.UpsertChannelConnection"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO channel_connections
			      (account_uid, status, instance_id, pairing_secret, pairing_code, profile_name, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  ON CONFLICT (account_uid)
			  DO UPDATE SET status = EXCLUDED.status,
			      instance_id = EXCLUDED.instance_id,
			      pairing_secret = EXCLUDED.pairing_secret,
			      pairing_code = EXCLUDED.pairing_code,
			      profile_name = EXCLUDED.profile_name,
			      updated_at = EXCLUDED.updated_at;`
	if _, err := s.DB.ExecContext(ctx, query, conn.AccountUID, conn.Status, conn.InstanceID,
		conn.PairingSecret, conn.PairingCode, conn.ProfileName, time.Now().UTC()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
