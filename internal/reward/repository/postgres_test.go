package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fekuna/omnipos-ledger-service/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*PGRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPGRepository(sqlx.NewDb(db, "pgx")), mock
}

func TestSumByOrder(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`SELECT type, COALESCE\(SUM\(points\), 0\) AS total FROM reward_ledger`).
		WithArgs("o1").
		WillReturnRows(sqlmock.NewRows([]string{"type", "total"}).
			AddRow("EARN", 120).
			AddRow("REDEEM", 50))

	earned, redeemed, err := repo.SumByOrder(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, 120, earned)
	assert.Equal(t, 50, redeemed)
}

func TestSumByOrder_NoHistory(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`FROM reward_ledger`).
		WithArgs("o1").
		WillReturnRows(sqlmock.NewRows([]string{"type", "total"}))

	earned, redeemed, err := repo.SumByOrder(context.Background(), "o1")
	require.NoError(t, err)
	assert.Zero(t, earned)
	assert.Zero(t, redeemed)
}

func TestEnsureAccountAndApplyDelta(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()

	mock.ExpectExec(`INSERT INTO reward_points .+ ON CONFLICT \(user_id\) DO NOTHING`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE reward_points`).
		WithArgs(-70, -120, now, "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.EnsureAccount(context.Background(), "u1"))
	require.NoError(t, repo.ApplyDelta(context.Background(), "u1", -70, -120, now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyDelta_MissingAccount(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(`UPDATE reward_points`).WillReturnResult(sqlmock.NewResult(0, 0))

	assert.Error(t, repo.ApplyDelta(context.Background(), "ghost", 1, 1, time.Now()))
}

func TestInsertEntry(t *testing.T) {
	repo, mock := newMock(t)
	orderID := "o1"

	mock.ExpectExec(`INSERT INTO reward_ledger`).
		WithArgs("e1", "u1", "AUTO_REVERSAL_EARN", 120, &orderID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.InsertEntry(context.Background(), &model.RewardLedgerEntry{
		ID:         "e1",
		UserID:     "u1",
		Type:       model.RewardAutoReversalEarn,
		Points:     120,
		RefOrderID: &orderID,
		CreatedAt:  time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
