package providers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/portwatch/internal/common"
	"github.com/bobmcallan/portwatch/internal/interfaces"
	"github.com/bobmcallan/portwatch/internal/models"
	testcommon "github.com/bobmcallan/portwatch/test/common"
)

func quoteAt(price float64) *models.Quote {
	q := &models.Quote{}
	q.CurrentPrice = models.Ptr(price)
	return q
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recordingObserver) ObserveProviderCall(provider, operation, outcome string, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, provider+":"+operation+":"+outcome)
}

func TestChain_PrimaryAnswers(t *testing.T) {
	primary := testcommon.NewMockProvider("primary")
	primary.GetQuoteFn = func(ctx context.Context, symbol string) (*models.Quote, error) {
		return quoteAt(10), nil
	}
	fallback := testcommon.NewMockProvider("fallback")

	chain := NewChain([]interfaces.DataProvider{primary, fallback})
	ctx, trace := WithTrace(context.Background())

	q, err := chain.GetQuote(ctx, "ACME")
	require.NoError(t, err)
	assert.Equal(t, 10.0, *q.CurrentPrice)
	assert.Equal(t, 0, fallback.TotalCalls(), "fallback must not be called when primary answers")
	assert.Equal(t, "primary", trace.String())
}

func TestChain_FallbackCalledExactlyOnce(t *testing.T) {
	primary := testcommon.NewMockProvider("primary")
	primary.GetQuoteFn = func(ctx context.Context, symbol string) (*models.Quote, error) {
		return nil, errors.New("connection reset")
	}
	fallback := testcommon.NewMockProvider("fallback")
	fallback.GetQuoteFn = func(ctx context.Context, symbol string) (*models.Quote, error) {
		return quoteAt(42), nil
	}

	obs := &recordingObserver{}
	chain := NewChain([]interfaces.DataProvider{primary, fallback}, WithObserver(obs))
	ctx, trace := WithTrace(context.Background())

	q, err := chain.GetQuote(ctx, "ACME")
	require.NoError(t, err)
	assert.Equal(t, 42.0, *q.CurrentPrice)
	assert.Equal(t, 1, primary.Calls("GetQuote"))
	assert.Equal(t, 1, fallback.Calls("GetQuote"))
	assert.Equal(t, []string{"fallback"}, trace.Providers())
	assert.Equal(t, []string{"primary:quote:error", "fallback:quote:success"}, obs.outcomes)
}

func TestChain_EmptyResultFallsThrough(t *testing.T) {
	primary := testcommon.NewMockProvider("primary")
	primary.GetOverviewFn = func(ctx context.Context, symbol string) (*models.Overview, error) {
		return &models.Overview{}, nil
	}
	primary.GetHistoryFn = func(ctx context.Context, symbol string, interval models.Interval, from, to time.Time) ([]models.Bar, error) {
		return nil, nil
	}
	fallback := testcommon.NewMockProvider("fallback")
	fallback.GetOverviewFn = func(ctx context.Context, symbol string) (*models.Overview, error) {
		o := &models.Overview{}
		o.Sector = models.Ptr("Industrials")
		return o, nil
	}
	fallback.GetHistoryFn = func(ctx context.Context, symbol string, interval models.Interval, from, to time.Time) ([]models.Bar, error) {
		return testcommon.GenerateBars(3), nil
	}

	chain := NewChain([]interfaces.DataProvider{primary, fallback})

	o, err := chain.GetOverview(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Equal(t, "Industrials", *o.Sector)

	bars, err := chain.GetHistory(context.Background(), "ACME", models.IntervalDaily, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, bars, 3)
}

func TestChain_AllFail(t *testing.T) {
	primary := testcommon.NewMockProvider("primary")
	fallback := testcommon.NewMockProvider("fallback")
	fallback.GetESGFn = func(ctx context.Context, symbol string) (*models.ESG, error) {
		return nil, common.ErrNotSupported
	}

	chain := NewChain([]interfaces.DataProvider{primary, fallback})
	ctx, trace := WithTrace(context.Background())

	_, err := chain.GetESG(ctx, "ACME")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrProviderUnavailable)
	assert.ErrorIs(t, err, common.ErrNotSupported)
	assert.Contains(t, err.Error(), "primary")
	assert.Contains(t, err.Error(), "fallback")
	assert.Empty(t, trace.Providers())
}

func TestChain_TimeoutIsBoundedAndClassified(t *testing.T) {
	slow := testcommon.NewMockProvider("slow")
	slow.GetQuoteFn = func(ctx context.Context, symbol string) (*models.Quote, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	fallback := testcommon.NewMockProvider("fallback")
	fallback.GetQuoteFn = func(ctx context.Context, symbol string) (*models.Quote, error) {
		return quoteAt(7), nil
	}

	obs := &recordingObserver{}
	chain := NewChain([]interfaces.DataProvider{slow, fallback}, WithCallTimeout(20*time.Millisecond), WithObserver(obs))

	start := time.Now()
	q, err := chain.GetQuote(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Equal(t, 7.0, *q.CurrentPrice)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, "slow:quote:timeout", obs.outcomes[0])

	// Only provider times out
	chain = NewChain([]interfaces.DataProvider{slow}, WithCallTimeout(20*time.Millisecond))
	_, err = chain.GetQuote(context.Background(), "ACME")
	assert.ErrorIs(t, err, common.ErrTimeout)
	assert.ErrorIs(t, err, common.ErrProviderUnavailable)
}

func TestChain_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	primary := testcommon.NewMockProvider("primary")
	primary.GetQuoteFn = func(ctx context.Context, symbol string) (*models.Quote, error) {
		return nil, errors.New("503")
	}
	fallback := testcommon.NewMockProvider("fallback")
	fallback.GetQuoteFn = func(ctx context.Context, symbol string) (*models.Quote, error) {
		return quoteAt(1), nil
	}

	chain := NewChain([]interfaces.DataProvider{primary, fallback})
	for i := 0; i < 8; i++ {
		_, err := chain.GetQuote(context.Background(), "ACME")
		require.NoError(t, err)
	}

	assert.Equal(t, 5, primary.Calls("GetQuote"), "breaker opens after five consecutive failures")
	assert.Equal(t, 8, fallback.Calls("GetQuote"))
}

func TestChain_UnsupportedDoesNotTripBreaker(t *testing.T) {
	av := testcommon.NewMockProvider("alphavantage")
	av.GetESGFn = func(ctx context.Context, symbol string) (*models.ESG, error) {
		return nil, common.ErrNotSupported
	}
	chain := NewChain([]interfaces.DataProvider{av})
	for i := 0; i < 10; i++ {
		chain.GetESG(context.Background(), "ACME")
	}
	assert.Equal(t, 10, av.Calls("GetESG"))
}

func TestChain_CancelledContextStops(t *testing.T) {
	primary := testcommon.NewMockProvider("primary")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	chain := NewChain([]interfaces.DataProvider{primary})
	_, err := chain.GetQuote(ctx, "ACME")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, primary.TotalCalls())
}

func TestChain_SkipsNilProviders(t *testing.T) {
	p := testcommon.NewMockProvider("primary")
	chain := NewChain([]interfaces.DataProvider{nil, p})
	assert.Equal(t, []string{"primary"}, chain.Providers())
}

func TestTrace_NilSafe(t *testing.T) {
	var tr *Trace
	tr.record("x")
	assert.Empty(t, tr.Providers())
	assert.Nil(t, TraceFrom(context.Background()))
}
