package pricing_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/faredown-pricing/pricing"
	testingutil "github.com/amirphl/faredown-pricing/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateBargain(t *testing.T) {
	acceptMin := testingutil.Dec("10500")
	currentFare := testingutil.Dec("10950")
	floor := testingutil.Dec("10200")

	tests := []struct {
		name        string
		proposed    string
		wantState   pricing.BargainState
		wantCounter string
	}{
		{name: "at accept min", proposed: "10500", wantState: pricing.BargainStateMatched},
		{name: "at current fare", proposed: "10950", wantState: pricing.BargainStateMatched},
		{name: "one below accept min", proposed: "10499", wantState: pricing.BargainStateCountered, wantCounter: "10500"},
		{name: "below floor", proposed: "9000", wantState: pricing.BargainStateCountered, wantCounter: "10500"},
		{name: "above current fare", proposed: "10950.01", wantState: pricing.BargainStateRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := pricing.EvaluateBargain(testingutil.Dec(tt.proposed), acceptMin, currentFare, floor)
			assert.Equal(t, tt.wantState, d.State)
			if tt.wantCounter == "" {
				assert.Nil(t, d.CounterOffer)
				return
			}
			require.NotNil(t, d.CounterOffer)
			assert.True(t, d.CounterOffer.Equal(testingutil.Dec(tt.wantCounter)))
		})
	}
}

func TestEvaluateBargain_CounterRespectsFloor(t *testing.T) {
	// accept band configured below cost
	d := pricing.EvaluateBargain(testingutil.Dec("9000"), testingutil.Dec("9500"), testingutil.Dec("10900"), testingutil.Dec("10200"))
	require.Equal(t, pricing.BargainStateCountered, d.State)
	assert.True(t, d.CounterOffer.Equal(testingutil.Dec("10200")))
}

func TestBargainSession_StateMachine(t *testing.T) {
	now := testingutil.FixedTime
	s := &pricing.BargainSession{
		Key:          pricing.SessionKey{SessionID: "s", LineItemID: "i"},
		CurrentFare:  testingutil.Dec("10950"),
		BargainRange: pricing.Range{Min: testingutil.Dec("10500"), Max: testingutil.Dec("10800")},
		Floor:        testingutil.Dec("10200"),
	}
	assert.False(t, s.Negotiating())
	_, ok := s.Pending()
	assert.False(t, ok)

	s.RecordOffer(testingutil.Dec("10000"), now, time.Minute)
	assert.Equal(t, pricing.BargainStateCountered, s.State)
	p, ok := s.Pending()
	require.True(t, ok)
	assert.True(t, p.Equal(testingutil.Dec("10500")))

	s.RecordOffer(testingutil.Dec("10600"), now.Add(10*time.Second), time.Minute)
	assert.Equal(t, pricing.BargainStateMatched, s.State)
	assert.Nil(t, s.CounterOffer)
	assert.Equal(t, 2, s.Attempts)
	assert.Len(t, s.History, 2)

	assert.False(t, s.ExpireIfDue(now.Add(70*time.Second)))
	assert.True(t, s.ExpireIfDue(now.Add(71*time.Second)))
	assert.Equal(t, pricing.BargainStateExpired, s.State)
	assert.True(t, s.Terminal())
}

func TestBargainSession_CloneIsDeep(t *testing.T) {
	s := &pricing.BargainSession{CurrentFare: testingutil.Dec("100"), BargainRange: pricing.Range{Min: testingutil.Dec("90"), Max: testingutil.Dec("95")}}
	s.Quote.Context.Attributes = map[string]string{"city": "GOI"}
	s.RecordOffer(testingutil.Dec("80"), testingutil.FixedTime, time.Minute)

	c := s.Clone()
	c.Quote.Context.Attributes["city"] = "DEL"
	*c.CounterOffer = testingutil.Dec("1")
	c.History[0].State = pricing.BargainStateExpired

	assert.Equal(t, "GOI", s.Quote.Context.Attributes["city"])
	assert.True(t, s.CounterOffer.Equal(testingutil.Dec("90")))
	assert.Equal(t, pricing.BargainStateCountered, s.History[0].State)
}

func TestMemorySessionStore_UpdateSerializesPerKey(t *testing.T) {
	store := pricing.NewMemorySessionStore()
	key := pricing.SessionKey{SessionID: "s", LineItemID: "i"}
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Update(ctx, key, func(cur *pricing.BargainSession) (*pricing.BargainSession, error) {
				if cur == nil {
					cur = &pricing.BargainSession{Key: key}
				}
				cur.Attempts++
				return cur, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	s, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 100, s.Attempts)
}

func TestMemorySessionStore_ErrorStillPersistsState(t *testing.T) {
	store := pricing.NewMemorySessionStore()
	key := pricing.SessionKey{SessionID: "s", LineItemID: "i"}
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.Update(ctx, key, func(cur *pricing.BargainSession) (*pricing.BargainSession, error) {
		return &pricing.BargainSession{Key: key, State: pricing.BargainStateExpired}, boom
	})
	assert.ErrorIs(t, err, boom)

	s, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, pricing.BargainStateExpired, s.State)
}
