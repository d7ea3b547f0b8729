package repository

import (
	"context"
	"testing"

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

func TestListCampaignsForOrder(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`SELECT DISTINCT pp.promotion_id FROM promotion_products pp JOIN order_items oi .+ p.promotion_type = \$2`).
		WithArgs("o1", "Campaign").
		WillReturnRows(sqlmock.NewRows([]string{"promotion_id"}).AddRow("c1").AddRow("c2"))

	ids, err := repo.ListCampaignsForOrder(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, ids)
}

func TestListRedeemedTargeted(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`SELECT pu.promotion_id, pu.user_id, pu.is_redeemed, pu.redeemed_at FROM promotion_users pu .+ pu.is_redeemed = TRUE AND p.promotion_type = \$2`).
		WithArgs("u1", "Targeted").
		WillReturnRows(sqlmock.NewRows([]string{"promotion_id", "user_id", "is_redeemed", "redeemed_at"}).
			AddRow("t1", "u1", true, nil))

	redemptions, err := repo.ListRedeemedTargeted(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, redemptions, 1)
	assert.Equal(t, "t1", redemptions[0].PromotionID)
	assert.True(t, redemptions[0].IsRedeemed)
	assert.Nil(t, redemptions[0].RedeemedAt)
}

func TestResetAndDecrement(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(`UPDATE promotion_users SET is_redeemed = FALSE, redeemed_at = NULL`).
		WithArgs("u1", "t1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SET redemption_count = GREATEST\(redemption_count - 1, 0\) WHERE id = \$1 RETURNING id, name, promotion_type, redemption_count`).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "promotion_type", "redemption_count"}).
			AddRow("t1", "VIP weekend", "Targeted", 2))

	require.NoError(t, repo.ResetUserRedemption(context.Background(), "t1", "u1"))
	p, err := repo.DecrementRedemption(context.Background(), "t1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, model.PromotionTargeted, p.PromotionType)
	assert.Equal(t, 2, p.RedemptionCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecrementMissingPromotion(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`UPDATE promotions`).
		WithArgs("gone").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "promotion_type", "redemption_count"}))

	p, err := repo.DecrementRedemption(context.Background(), "gone")
	require.NoError(t, err)
	assert.Nil(t, p)
}
