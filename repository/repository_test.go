package repository_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/amirphl/faredown-pricing/models"
	"github.com/amirphl/faredown-pricing/repository"
	testingutil "github.com/amirphl/faredown-pricing/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newMock(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := testingutil.NewMockDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return db, mock
}

func TestPromoCodeRepository_IncrementUsage(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{name: "capacity left", affected: 1, want: true},
		{name: "exhausted", affected: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			repo := repository.NewPromoCodeRepository(db)

			mock.ExpectExec(regexp.QuoteMeta(`UPDATE "promo_codes" SET`)+`.*usage_count \+ 1.*`+regexp.QuoteMeta(`usage_count < max_usage`)).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			ok, err := repo.IncrementUsage(context.Background(), "SAVE10")
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestPromoCodeRepository_IncrementUsageError(t *testing.T) {
	db, mock := newMock(t)
	repo := repository.NewPromoCodeRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "promo_codes" SET`)).WillReturnError(errors.New("deadlock detected"))

	_, err := repo.IncrementUsage(context.Background(), "SAVE10")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deadlock detected")
}

func TestPromoCodeRepository_ByCode(t *testing.T) {
	db, mock := newMock(t)
	repo := repository.NewPromoCodeRepository(db)

	rows := sqlmock.NewRows([]string{"id", "code", "name", "module", "discount_type", "discount_value", "discount_max_value", "max_usage", "usage_count", "status"}).
		AddRow(7, "SAVE10", "Save 10", "all", "percentage", "10.0000", "500.00", 100, 4, "active")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "promo_codes" WHERE code = $1`)).
		WillReturnRows(rows)

	promo, err := repo.ByCode(context.Background(), " save10 ")
	require.NoError(t, err)
	require.NotNil(t, promo)
	assert.Equal(t, uint(7), promo.ID)
	assert.Equal(t, int64(96), promo.Remaining())
	assert.True(t, promo.DiscountMaxValue.Equal(testingutil.Dec("500")))
}

func TestPromoCodeRepository_ByCodeNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := repository.NewPromoCodeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "promo_codes"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	promo, err := repo.ByCode(context.Background(), "MISSING")
	require.NoError(t, err)
	assert.Nil(t, promo)
}

func TestMarkupRuleRepository_ListActive(t *testing.T) {
	db, mock := newMock(t)
	repo := repository.NewMarkupRuleRepository(db)
	asOf := testingutil.FixedTime

	rows := sqlmock.NewRows([]string{"id", "name", "module", "scope", "markup_type", "markup_value", "current_fare_min", "current_fare_max", "tiered_brackets", "priority", "user_type", "status"}).
		AddRow(1, "AI routes", "air", []byte(`{"airline":"AI"}`), "percentage", "10.0000", "8.0000", "12.0000", nil, 1, "all", "active").
		AddRow(2, "Tiered", "air", []byte(`{}`), "tiered", "0", "0", "0", []byte(`[{"min_price":"0","percentage":"6"}]`), 2, "b2c", "active")

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "markup_rules" WHERE`) + `.*module = \$1 AND status = \$2.*valid_from <= \$3.*valid_to >= \$4.*ORDER BY id ASC`).
		WithArgs(models.ModuleAir, models.RuleStatusActive, asOf, asOf).
		WillReturnRows(rows)

	rules, err := repo.ListActive(context.Background(), models.ModuleAir, asOf)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "AI", rules[0].Scope[models.ScopeAirline])
	assert.Equal(t, 1, rules[0].Specificity())
	require.Len(t, rules[1].TieredBrackets, 1)
	assert.Nil(t, rules[1].TieredBrackets[0].MaxPrice)
	assert.Equal(t, models.UserTypeB2C, rules[1].UserType)
}

func TestMarkupRuleRepository_UpdateStatus(t *testing.T) {
	t.Run("updated", func(t *testing.T) {
		db, mock := newMock(t)
		repo := repository.NewMarkupRuleRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "markup_rules" SET`)).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.UpdateStatus(context.Background(), 3, models.RuleStatusInactive))
	})

	t.Run("missing rule rolls back", func(t *testing.T) {
		db, mock := newMock(t)
		repo := repository.NewMarkupRuleRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "markup_rules" SET`)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := repo.UpdateStatus(context.Background(), 99, models.RuleStatusInactive)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})
}

func TestMarkupRuleRepository_CountByModule(t *testing.T) {
	db, mock := newMock(t)
	repo := repository.NewMarkupRuleRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT module, COUNT(*) AS total FROM "markup_rules" WHERE status = $1 GROUP BY`)).
		WillReturnRows(sqlmock.NewRows([]string{"module", "total"}).AddRow("air", 4).AddRow("hotel", 2))

	counts, err := repo.CountByModule(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), counts[models.ModuleAir])
	assert.Equal(t, int64(2), counts[models.ModuleHotel])
}

func TestPromoRedemptionRepository_StatsByCode(t *testing.T) {
	db, mock := newMock(t)
	repo := repository.NewPromoRedemptionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SUM(discount_amount) AS total_discount`) + `.*` + regexp.QuoteMeta(`FROM "promo_redemptions" WHERE promo_code = $1`)).
		WithArgs("SAVE10").
		WillReturnRows(sqlmock.NewRows([]string{"redemptions", "total_discount", "total_gross"}).AddRow(3, "1500.00", "33000.00"))

	stats, err := repo.StatsByCode(context.Background(), "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Redemptions)
	assert.True(t, stats.TotalDiscount.Equal(testingutil.Dec("1500")))
	assert.True(t, stats.TotalGross.Equal(testingutil.Dec("33000")))
}

func TestPromoRedemptionRepository_StatsWithoutRedemptions(t *testing.T) {
	db, mock := newMock(t)
	repo := repository.NewPromoRedemptionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "promo_redemptions"`)).
		WillReturnRows(sqlmock.NewRows([]string{"redemptions", "total_discount", "total_gross"}).AddRow(0, nil, nil))

	stats, err := repo.StatsByCode(context.Background(), "NEW")
	require.NoError(t, err)
	assert.Zero(t, stats.Redemptions)
	assert.True(t, stats.TotalDiscount.IsZero())
}

func TestPricingAuditRepository_Save(t *testing.T) {
	db, mock := newMock(t)
	repo := repository.NewPricingAuditRepository(db)

	audit := &models.PricingAudit{
		SessionID:     "sess-1",
		LineItemID:    "item-1",
		Module:        models.ModuleAir,
		Currency:      "INR",
		BaseNetAmount: testingutil.Dec("10000"),
		FinalPayable:  testingutil.Dec("10500"),
		NeverLossPass: true,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "pricing_audits"`)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "id"}).AddRow(time.Now(), 11))
	mock.ExpectCommit()

	require.NoError(t, repo.Save(context.Background(), audit))
	assert.Equal(t, uint(11), audit.ID)
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	db, mock := newMock(t)
	repo := repository.NewPricingAuditRepository(db)
	boom := errors.New("sink unavailable")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "pricing_audits"`)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "id"}).AddRow(time.Now(), 1))
	mock.ExpectRollback()

	err := repository.WithTransaction(context.Background(), db, func(ctx context.Context) error {
		if err := repo.Save(ctx, &models.PricingAudit{SessionID: "s", LineItemID: "i", Module: models.ModuleAir, Currency: "INR"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
}
