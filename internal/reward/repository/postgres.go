package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-ledger-service/internal/model"
	"github.com/fekuna/omnipos-ledger-service/internal/reward"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB sqlx.ExtContext
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) WithTx(tx *sqlx.Tx) reward.Repository {
	return &PGRepository{DB: tx}
}

type typeTotal struct {
	Type  string `db:"type"`
	Total int    `db:"total"`
}

func (r *PGRepository) SumByOrder(ctx context.Context, orderID string) (int, int, error) {
	query := `
        SELECT type, COALESCE(SUM(points), 0) AS total
        FROM reward_ledger
        WHERE ref_order_id = $1 AND type IN ('EARN', 'REDEEM')
        GROUP BY type
    `
	var rows []typeTotal
	if err := sqlx.SelectContext(ctx, r.DB, &rows, query, orderID); err != nil {
		return 0, 0, fmt.Errorf("failed to sum reward ledger: %w", err)
	}

	var earned, redeemed int
	for _, row := range rows {
		switch model.RewardEntryType(row.Type) {
		case model.RewardEarn:
			earned = row.Total
		case model.RewardRedeem:
			redeemed = row.Total
		}
	}
	return earned, redeemed, nil
}

func (r *PGRepository) InsertEntry(ctx context.Context, entry *model.RewardLedgerEntry) error {
	query := `
        INSERT INTO reward_ledger (id, user_id, type, points, ref_order_id, created_at)
        VALUES (:id, :user_id, :type, :points, :ref_order_id, :created_at)
    `
	if _, err := sqlx.NamedExecContext(ctx, r.DB, query, entry); err != nil {
		return fmt.Errorf("failed to insert reward ledger entry: %w", err)
	}
	return nil
}

func (r *PGRepository) ListEntries(ctx context.Context, userID string, page, pageSize int) ([]model.RewardLedgerEntry, int, error) {
	var count int
	if err := sqlx.GetContext(ctx, r.DB, &count, `SELECT count(*) FROM reward_ledger WHERE user_id = $1`, userID); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, user_id, type, points, ref_order_id, created_at
        FROM reward_ledger WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	if pageSize > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)
	}

	var items []model.RewardLedgerEntry
	if err := sqlx.SelectContext(ctx, r.DB, &items, query, userID); err != nil {
		return nil, 0, err
	}
	return items, count, nil
}

func (r *PGRepository) EnsureAccount(ctx context.Context, userID string) error {
	_, err := r.DB.ExecContext(ctx, `
        INSERT INTO reward_points (user_id, balance, accumulated, updated_at)
        VALUES ($1, 0, 0, NOW())
        ON CONFLICT (user_id) DO NOTHING
    `, userID)
	if err != nil {
		return fmt.Errorf("failed to ensure reward account: %w", err)
	}
	return nil
}

func (r *PGRepository) ApplyDelta(ctx context.Context, userID string, balanceDelta, accumulatedDelta int, updatedAt time.Time) error {
	res, err := r.DB.ExecContext(ctx, `
        UPDATE reward_points
           SET balance = balance + $1,
               accumulated = accumulated + $2,
               updated_at = $3
         WHERE user_id = $4
    `, balanceDelta, accumulatedDelta, updatedAt, userID)
	if err != nil {
		return fmt.Errorf("failed to update reward account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("failed to update reward account: %d rows affected", n)
	}
	return nil
}

func (r *PGRepository) GetAccount(ctx context.Context, userID string) (*model.RewardPointsAccount, error) {
	var acc model.RewardPointsAccount
	err := sqlx.GetContext(ctx, r.DB, &acc,
		`SELECT user_id, balance, accumulated, updated_at FROM reward_points WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &acc, nil
}
