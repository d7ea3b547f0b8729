package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fekuna/omnipos-ledger-service/internal/cancellation"
	"github.com/fekuna/omnipos-ledger-service/internal/cancellation/dto"
	"github.com/fekuna/omnipos-ledger-service/internal/model"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB sqlx.ExtContext
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) WithTx(tx *sqlx.Tx) cancellation.Repository {
	return &PGRepository{DB: tx}
}

const requestColumns = `id, order_id, reason, proof_image, status, admin_note, processed_by, processed_at,
        refund_final_status, refund_final_note, refund_final_at, created_at`

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.CancellationRequest, error) {
	return r.find(ctx, `SELECT `+requestColumns+` FROM order_cancellations WHERE id = $1`, id)
}

func (r *PGRepository) FindByIDForUpdate(ctx context.Context, id string) (*model.CancellationRequest, error) {
	return r.find(ctx, `SELECT `+requestColumns+` FROM order_cancellations WHERE id = $1 FOR UPDATE`, id)
}

func (r *PGRepository) find(ctx context.Context, query, id string) (*model.CancellationRequest, error) {
	var c model.CancellationRequest
	if err := sqlx.GetContext(ctx, r.DB, &c, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *PGRepository) List(ctx context.Context, f *dto.ListFilters) ([]model.CancellationRequest, int, error) {
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.Status != "" {
		conditions = append(conditions, "status = :status")
		args["status"] = string(f.Status)
	}
	switch f.Kind {
	case dto.KindReturn:
		conditions = append(conditions, "COALESCE(proof_image, '') <> ''")
	case dto.KindCancellation:
		conditions = append(conditions, "COALESCE(proof_image, '') = ''")
	}
	if f.RefundFinalStatus != "" {
		conditions = append(conditions, "refund_final_status = :refund_final_status")
		args["refund_final_status"] = string(f.RefundFinalStatus)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery, countArgs, err := sqlx.Named("SELECT count(*) FROM order_cancellations"+whereClause, args)
	if err != nil {
		return nil, 0, err
	}
	if err := sqlx.GetContext(ctx, r.DB, &count, r.DB.Rebind(countQuery), countArgs...); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + requestColumns + " FROM order_cancellations" + whereClause + " ORDER BY created_at DESC, id DESC"
	if f.PageSize > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, (f.Page-1)*f.PageSize)
	}

	listQuery, listArgs, err := sqlx.Named(query, args)
	if err != nil {
		return nil, 0, err
	}

	var items []model.CancellationRequest
	if err := sqlx.SelectContext(ctx, r.DB, &items, r.DB.Rebind(listQuery), listArgs...); err != nil {
		return nil, 0, err
	}
	return items, count, nil
}

func (r *PGRepository) UpdateDecision(ctx context.Context, update *dto.DecisionUpdate) (bool, error) {
	query := `
        UPDATE order_cancellations
           SET status = :status,
               refund_final_status = :refund_final_status,
               admin_note = :admin_note,
               processed_by = :processed_by,
               processed_at = :processed_at
         WHERE id = :id
           AND status = 'Pending'
    `
	return r.execOne(ctx, query, update, "failed to update cancellation decision")
}

func (r *PGRepository) UpdateFinal(ctx context.Context, update *dto.FinalUpdate) (bool, error) {
	query := `
        UPDATE order_cancellations
           SET status = :status,
               refund_final_status = :refund_final_status,
               refund_final_note = :refund_final_note,
               refund_final_at = :refund_final_at
         WHERE id = :id
           AND status = 'Approved'
           AND (refund_final_status IS NULL OR refund_final_status = 'Pending')
    `
	return r.execOne(ctx, query, update, "failed to finalize refund")
}

// execOne runs a conditional update and reports whether exactly one row matched.
func (r *PGRepository) execOne(ctx context.Context, query string, arg interface{}, msg string) (bool, error) {
	res, err := sqlx.NamedExecContext(ctx, r.DB, query, arg)
	if err != nil {
		return false, fmt.Errorf("%s: %w", msg, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
