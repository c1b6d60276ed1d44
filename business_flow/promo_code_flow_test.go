package businessflow_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/faredown-pricing/app/dto"
	businessflow "github.com/amirphl/faredown-pricing/business_flow"
	"github.com/amirphl/faredown-pricing/models"
	"github.com/amirphl/faredown-pricing/repository"
	testingutil "github.com/amirphl/faredown-pricing/testing"
	"github.com/amirphl/faredown-pricing/utils"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memPromoRepo struct {
	repository.PromoCodeRepository
	mu     sync.Mutex
	promos map[string]*models.PromoCode
	next   uint
}

func newMemPromoRepo() *memPromoRepo {
	return &memPromoRepo{promos: make(map[string]*models.PromoCode)}
}

func (r *memPromoRepo) ByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.promos[strings.ToUpper(code)]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *memPromoRepo) Save(ctx context.Context, p *models.PromoCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	p.ID = r.next
	cp := *p
	r.promos[p.Code] = &cp
	return nil
}

func (r *memPromoRepo) Update(ctx context.Context, p *models.PromoCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.promos[p.Code] = &cp
	return nil
}

func (r *memPromoRepo) Count(ctx context.Context, filter models.PromoCodeFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), nil
}

func (r *memPromoRepo) ByFilter(ctx context.Context, filter models.PromoCodeFilter, orderBy string, limit, offset int) ([]*models.PromoCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PromoCode
	for _, p := range r.promos {
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		if filter.Module != nil && p.Module != *filter.Module {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *memPromoRepo) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.promos {
		if p.Status == models.PromoStatusActive && p.ExpiryDate.Before(now) {
			p.Status = models.PromoStatusExpired
			n++
		}
	}
	return n, nil
}

func validPromoRequest() *dto.UpsertPromoCodeRequest {
	return &dto.UpsertPromoCodeRequest{
		Code:             " summer25 ",
		Name:             "Summer sale",
		DiscountType:     "percentage",
		DiscountValue:    testingutil.Dec("25"),
		DiscountMinValue: testingutil.Dec("100"),
		DiscountMaxValue: testingutil.Dec("1500"),
		MarketingBudget:  testingutil.Dec("10000"),
		ExpiryDate:       utils.UTCNow().Add(30 * 24 * time.Hour),
		MaxUsage:         50,
	}
}

func TestPromoCodeFlow_Create(t *testing.T) {
	repo := newMemPromoRepo()
	flow := businessflow.NewPromoCodeFlow(repo, &fakeRedemptionRepo{}, zerolog.Nop())
	ctx := context.Background()

	resp, err := flow.CreatePromoCode(ctx, validPromoRequest())
	require.NoError(t, err)
	assert.Equal(t, "SUMMER25", resp.Promo.Code)
	assert.Equal(t, "all", resp.Promo.Module)
	assert.Equal(t, "active", resp.Promo.Status)
	assert.Equal(t, int64(50), resp.Promo.Remaining)

	_, err = flow.CreatePromoCode(ctx, validPromoRequest())
	assert.True(t, businessflow.IsPromoCodeAlreadyExists(err))
	assert.Equal(t, "PROMO_CODE_ALREADY_EXISTS", businessflow.BusinessErrorCode(err))
}

func TestPromoCodeFlow_CreateRejectsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *dto.UpsertPromoCodeRequest)
	}{
		{"percentage over 100", func(r *dto.UpsertPromoCodeRequest) { r.DiscountValue = testingutil.Dec("120") }},
		{"zero max discount", func(r *dto.UpsertPromoCodeRequest) { r.DiscountMaxValue = testingutil.Dec("0") }},
		{"min above max", func(r *dto.UpsertPromoCodeRequest) { r.DiscountMinValue = testingutil.Dec("2000") }},
		{"expiry before start", func(r *dto.UpsertPromoCodeRequest) {
			from := r.ExpiryDate.Add(time.Hour)
			r.ValidFrom = &from
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemPromoRepo()
			flow := businessflow.NewPromoCodeFlow(repo, &fakeRedemptionRepo{}, zerolog.Nop())
			req := validPromoRequest()
			tt.mutate(req)

			_, err := flow.CreatePromoCode(context.Background(), req)
			require.Error(t, err)
			assert.True(t, businessflow.IsPromoCodeInvalid(err))
			assert.NotEmpty(t, businessflow.ValidationProblems(err))
			assert.Empty(t, repo.promos)
		})
	}
}

func TestPromoCodeFlow_UpdateKeepsUsage(t *testing.T) {
	repo := newMemPromoRepo()
	flow := businessflow.NewPromoCodeFlow(repo, &fakeRedemptionRepo{}, zerolog.Nop())
	ctx := context.Background()

	_, err := flow.CreatePromoCode(ctx, validPromoRequest())
	require.NoError(t, err)
	repo.promos["SUMMER25"].UsageCount = 20

	req := validPromoRequest()
	req.MaxUsage = 10
	_, err = flow.UpdatePromoCode(ctx, "summer25", req)
	assert.True(t, businessflow.IsPromoMaxUsageTooLow(err))

	req.MaxUsage = 30
	resp, err := flow.UpdatePromoCode(ctx, "summer25", req)
	require.NoError(t, err)
	assert.Equal(t, int64(20), resp.Promo.UsageCount)
	assert.Equal(t, int64(10), resp.Promo.Remaining)

	_, err = flow.UpdatePromoCode(ctx, "missing", req)
	assert.True(t, businessflow.IsPromoCodeNotFound(err))
}

func TestPromoCodeFlow_Stats(t *testing.T) {
	repo := newMemPromoRepo()
	redemptions := &fakeRedemptionRepo{stats: &models.PromoUsageStats{
		Redemptions:   3,
		TotalDiscount: testingutil.Dec("12000"),
		TotalGross:    testingutil.Dec("90000"),
	}}
	flow := businessflow.NewPromoCodeFlow(repo, redemptions, zerolog.Nop())
	ctx := context.Background()

	_, err := flow.CreatePromoCode(ctx, validPromoRequest())
	require.NoError(t, err)
	repo.promos["SUMMER25"].UsageCount = 3
	repo.promos["SUMMER25"].BudgetUsed = testingutil.Dec("12000")

	stats, err := flow.PromoCodeStats(ctx, "Summer25")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Redemptions)
	assert.Equal(t, int64(47), stats.Remaining)
	assert.True(t, stats.BudgetExceeded)
}

func TestPromoCodeFlow_ListAndExpire(t *testing.T) {
	repo := newMemPromoRepo()
	flow := businessflow.NewPromoCodeFlow(repo, &fakeRedemptionRepo{}, zerolog.Nop())
	ctx := context.Background()

	_, err := flow.CreatePromoCode(ctx, validPromoRequest())
	require.NoError(t, err)
	old := validPromoRequest()
	old.Code = "OLDIE"
	_, err = flow.CreatePromoCode(ctx, old)
	require.NoError(t, err)
	repo.promos["OLDIE"].ExpiryDate = utils.UTCNow().Add(-time.Hour)

	n, err := flow.ExpireOverduePromoCodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	list, err := flow.ListPromoCodes(ctx, &dto.ListPromoCodesRequest{Status: "expired"})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "OLDIE", list.Items[0].Code)
	assert.Equal(t, int64(1), list.Pagination.Total)
}
