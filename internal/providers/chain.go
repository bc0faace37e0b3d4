// Package providers composes upstream data providers into an ordered
// fallback chain.
package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/bobmcallan/portwatch/internal/common"
	"github.com/bobmcallan/portwatch/internal/interfaces"
	"github.com/bobmcallan/portwatch/internal/models"
)

// DefaultCallTimeout bounds each provider attempt
const DefaultCallTimeout = 10 * time.Second

// errEmpty marks a response that decoded but carried no usable data
var errEmpty = errors.New("empty response")

// Observer receives one callback per provider attempt
type Observer interface {
	ObserveProviderCall(provider, operation, outcome string, elapsed time.Duration)
}

type member struct {
	provider interfaces.DataProvider
	breaker  *gobreaker.CircuitBreaker
}

// Chain tries each provider in order and returns the first usable result.
// It implements interfaces.DataProvider itself.
type Chain struct {
	members  []member
	timeout  time.Duration
	logger   *common.Logger
	observer Observer
}

// Option configures the chain
type Option func(*Chain)

// WithCallTimeout sets the per-attempt bound
func WithCallTimeout(d time.Duration) Option {
	return func(c *Chain) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) Option {
	return func(c *Chain) {
		c.logger = logger
	}
}

// WithObserver reports attempt outcomes, e.g. to metrics
func WithObserver(o Observer) Option {
	return func(c *Chain) {
		c.observer = o
	}
}

// NewChain builds a chain over providers, primary first.
func NewChain(providers []interfaces.DataProvider, opts ...Option) *Chain {
	c := &Chain{
		timeout: DefaultCallTimeout,
		logger:  common.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, p := range providers {
		if p == nil {
			continue
		}
		c.members = append(c.members, member{provider: p, breaker: c.newBreaker(p.Name())})
	}
	return c
}

func (c *Chain) newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Unsupported operations, empty payloads and caller cancellation are
		// not upstream faults.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, common.ErrNotSupported) ||
				errors.Is(err, errEmpty) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn().
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Provider circuit breaker state changed")
		},
	})
}

// Name identifies the chain
func (c *Chain) Name() string { return "chain" }

// Providers returns the provider names in fallback order
func (c *Chain) Providers() []string {
	names := make([]string, len(c.members))
	for i, m := range c.members {
		names[i] = m.provider.Name()
	}
	return names
}

// call runs fn against each provider until one returns a usable value.
func call[T any](ctx context.Context, c *Chain, op, symbol string, fn func(context.Context, interfaces.DataProvider) (T, error), usable func(T) bool) (T, error) {
	var zero T
	var attempts []error

	for _, m := range c.members {
		if err := ctx.Err(); err != nil {
			attempts = append(attempts, err)
			break
		}

		name := m.provider.Name()
		start := time.Now()
		out, err := m.breaker.Execute(func() (interface{}, error) {
			callCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			v, err := fn(callCtx, m.provider)
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
					err = fmt.Errorf("%w after %s: %v", common.ErrTimeout, c.timeout, err)
				}
				return nil, err
			}
			if !usable(v) {
				return nil, errEmpty
			}
			return v, nil
		})
		elapsed := time.Since(start)

		if err == nil {
			c.observe(name, op, "success", elapsed)
			TraceFrom(ctx).record(name)
			return out.(T), nil
		}

		outcome := "error"
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			outcome = "circuit_open"
		case errors.Is(err, common.ErrTimeout):
			outcome = "timeout"
		case errors.Is(err, common.ErrNotSupported):
			outcome = "unsupported"
		case errors.Is(err, errEmpty):
			outcome = "empty"
		}
		c.observe(name, op, outcome, elapsed)

		c.logger.Debug().
			Err(err).
			Str("provider", name).
			Str("operation", op).
			Str("symbol", symbol).
			Msg("Provider attempt failed")

		attempts = append(attempts, fmt.Errorf("%s: %w", name, err))
	}

	return zero, fmt.Errorf("%s %s: %w", op, symbol, errors.Join(append([]error{common.ErrProviderUnavailable}, attempts...)...))
}

func (c *Chain) observe(provider, op, outcome string, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveProviderCall(provider, op, outcome, elapsed)
	}
}

func nonEmpty[T any](v []T) bool { return len(v) > 0 }

func notNil[T any](v *T) bool { return v != nil }

// SearchSymbol implements interfaces.DataProvider
func (c *Chain) SearchSymbol(ctx context.Context, query string) ([]models.SymbolMatch, error) {
	return call(ctx, c, "search", query, func(ctx context.Context, p interfaces.DataProvider) ([]models.SymbolMatch, error) {
		return p.SearchSymbol(ctx, query)
	}, nonEmpty[models.SymbolMatch])
}

// GetQuote implements interfaces.DataProvider
func (c *Chain) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	return call(ctx, c, "quote", symbol, func(ctx context.Context, p interfaces.DataProvider) (*models.Quote, error) {
		return p.GetQuote(ctx, symbol)
	}, func(q *models.Quote) bool { return !q.Empty() })
}

// GetOverview implements interfaces.DataProvider
func (c *Chain) GetOverview(ctx context.Context, symbol string) (*models.Overview, error) {
	return call(ctx, c, "overview", symbol, func(ctx context.Context, p interfaces.DataProvider) (*models.Overview, error) {
		return p.GetOverview(ctx, symbol)
	}, func(o *models.Overview) bool { return !o.Empty() })
}

// GetHistory implements interfaces.DataProvider
func (c *Chain) GetHistory(ctx context.Context, symbol string, interval models.Interval, from, to time.Time) ([]models.Bar, error) {
	return call(ctx, c, "history", symbol, func(ctx context.Context, p interfaces.DataProvider) ([]models.Bar, error) {
		return p.GetHistory(ctx, symbol, interval, from, to)
	}, nonEmpty[models.Bar])
}

// GetFundamentals implements interfaces.DataProvider
func (c *Chain) GetFundamentals(ctx context.Context, symbol string) (*models.FinancialHealth, error) {
	return call(ctx, c, "fundamentals", symbol, func(ctx context.Context, p interfaces.DataProvider) (*models.FinancialHealth, error) {
		return p.GetFundamentals(ctx, symbol)
	}, func(h *models.FinancialHealth) bool {
		return notNil(h) && !(&models.StockPatch{FinancialHealth: *h}).IsEmpty()
	})
}

// GetAnalystTrend implements interfaces.DataProvider
func (c *Chain) GetAnalystTrend(ctx context.Context, symbol string) (*models.Analyst, error) {
	return call(ctx, c, "analyst", symbol, func(ctx context.Context, p interfaces.DataProvider) (*models.Analyst, error) {
		return p.GetAnalystTrend(ctx, symbol)
	}, func(a *models.Analyst) bool {
		return notNil(a) && !(&models.StockPatch{Analyst: *a}).IsEmpty()
	})
}

// GetProfile implements interfaces.DataProvider
func (c *Chain) GetProfile(ctx context.Context, symbol string) (*models.Profile, error) {
	return call(ctx, c, "profile", symbol, func(ctx context.Context, p interfaces.DataProvider) (*models.Profile, error) {
		return p.GetProfile(ctx, symbol)
	}, func(pr *models.Profile) bool {
		return notNil(pr) && !(&models.StockPatch{Profile: *pr}).IsEmpty()
	})
}

// GetESG implements interfaces.DataProvider
func (c *Chain) GetESG(ctx context.Context, symbol string) (*models.ESG, error) {
	return call(ctx, c, "esg", symbol, func(ctx context.Context, p interfaces.DataProvider) (*models.ESG, error) {
		return p.GetESG(ctx, symbol)
	}, func(e *models.ESG) bool {
		return notNil(e) && !(&models.StockPatch{ESG: *e}).IsEmpty()
	})
}

// GetEarnings implements interfaces.DataProvider
func (c *Chain) GetEarnings(ctx context.Context, symbol string) ([]models.EarningsRecord, error) {
	return call(ctx, c, "earnings", symbol, func(ctx context.Context, p interfaces.DataProvider) ([]models.EarningsRecord, error) {
		return p.GetEarnings(ctx, symbol)
	}, nonEmpty[models.EarningsRecord])
}

// GetFinancialStatements implements interfaces.DataProvider
func (c *Chain) GetFinancialStatements(ctx context.Context, symbol string) ([]models.FinancialStatementRecord, error) {
	return call(ctx, c, "financial_statements", symbol, func(ctx context.Context, p interfaces.DataProvider) ([]models.FinancialStatementRecord, error) {
		return p.GetFinancialStatements(ctx, symbol)
	}, nonEmpty[models.FinancialStatementRecord])
}

// GetInstitutionalHolders implements interfaces.DataProvider
func (c *Chain) GetInstitutionalHolders(ctx context.Context, symbol string) ([]models.InstitutionalHolderRecord, error) {
	return call(ctx, c, "institutional_holders", symbol, func(ctx context.Context, p interfaces.DataProvider) ([]models.InstitutionalHolderRecord, error) {
		return p.GetInstitutionalHolders(ctx, symbol)
	}, nonEmpty[models.InstitutionalHolderRecord])
}

// Ensure Chain implements DataProvider
var _ interfaces.DataProvider = (*Chain)(nil)
