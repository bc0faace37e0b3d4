// Package refresh keeps stock records fresh, one tier at a time.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/bobmcallan/portwatch/internal/common"
	"github.com/bobmcallan/portwatch/internal/interfaces"
	"github.com/bobmcallan/portwatch/internal/models"
	"github.com/bobmcallan/portwatch/internal/providers"
)

const (
	// DefaultBatchDelay paces consecutive symbols in a batch
	DefaultBatchDelay = 100 * time.Millisecond

	// DefaultAttemptTimeout bounds one tier refresh of one symbol
	DefaultAttemptTimeout = 2 * time.Minute
)

// Recorder receives one observation per refresh attempt
type Recorder interface {
	ObserveRefresh(tier models.Tier, status models.RefreshStatus, fields int, elapsed time.Duration)
}

// Service implements interfaces.RefreshService
type Service struct {
	store          interfaces.StockStore
	provider       interfaces.DataProvider
	clock          *common.MarketClock
	policy         *common.StalenessPolicy
	logger         *common.Logger
	recorder       Recorder
	flight         singleflight.Group
	now            func() time.Time // injectable clock for testing
	autoCreate     bool
	batchDelay     time.Duration
	attemptTimeout time.Duration
}

// Option configures the service
type Option func(*Service)

// WithMarketClock sets the clock gating real-time refreshes
func WithMarketClock(c *common.MarketClock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithStalenessPolicy sets the per-tier thresholds
func WithStalenessPolicy(p *common.StalenessPolicy) Option {
	return func(s *Service) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithRecorder reports refresh outcomes, e.g. to metrics
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

// WithAutoCreate controls whether refreshing an untracked symbol creates it
func WithAutoCreate(enabled bool) Option {
	return func(s *Service) {
		s.autoCreate = enabled
	}
}

// WithBatchDelay sets the pause between symbols in a batch. Zero disables pacing.
func WithBatchDelay(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.batchDelay = d
		}
	}
}

// WithAttemptTimeout bounds a single tier refresh
func WithAttemptTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.attemptTimeout = d
		}
	}
}

// WithClock replaces the wall clock
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a refresh service over a store and a provider (usually a providers.Chain)
func NewService(store interfaces.StockStore, provider interfaces.DataProvider, logger *common.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	s := &Service{
		store:          store,
		provider:       provider,
		clock:          common.NewMarketClock(),
		policy:         common.NewStalenessPolicy(),
		logger:         logger,
		now:            time.Now,
		autoCreate:     true,
		batchDelay:     DefaultBatchDelay,
		attemptTimeout: DefaultAttemptTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NormalizeSymbol trims and upper-cases a ticker
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// RefreshTier refreshes one tier of one symbol. Concurrent calls for the same
// symbol and tier share a single execution. ok is false when the attempt was
// recorded as failed.
func (s *Service) RefreshTier(ctx context.Context, symbol string, tier models.Tier) (*models.RefreshResult, bool) {
	symbol = NormalizeSymbol(symbol)

	if err := ctx.Err(); err != nil {
		return abandoned(symbol, tier, err), false
	}

	ch := s.flight.DoChan(symbol+"|"+string(tier), func() (interface{}, error) {
		// Joined callers share this attempt, so no single caller may cancel it
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.attemptTimeout)
		defer cancel()
		return s.refreshTier(runCtx, symbol, tier), nil
	})

	select {
	case <-ctx.Done():
		return abandoned(symbol, tier, ctx.Err()), false
	case res := <-ch:
		shared := res.Val.(*models.RefreshResult)
		result := *shared
		result.FieldsUpdated = append([]string{}, shared.FieldsUpdated...)
		return &result, result.Status != models.StatusFailed
	}
}

// abandoned is the result for a caller that stopped waiting. Any attempt it
// started still completes and writes its own audit entry.
func abandoned(symbol string, tier models.Tier, err error) *models.RefreshResult {
	return &models.RefreshResult{
		Symbol:        symbol,
		Tier:          tier,
		Status:        models.StatusFailed,
		FieldsUpdated: []string{},
		Error:         err.Error(),
	}
}

// attempt accumulates the state of one refresh invocation
type attempt struct {
	symbol string
	tier   models.Tier
	record *models.StockRecord

	patch      models.StockPatch
	satellites []string
	fetched    int
	groupErrs  []error
	hardErr    error
	skipped    string
	fields     []string
}

func (a *attempt) fail(group string, err error) {
	a.groupErrs = append(a.groupErrs, fmt.Errorf("%s: %w", group, err))
}

func (a *attempt) status() models.RefreshStatus {
	switch {
	case a.hardErr != nil:
		return models.StatusFailed
	case a.skipped != "", len(a.fields) > 0:
		return models.StatusSuccess
	case a.fetched > 0:
		return models.StatusPartial
	default:
		return models.StatusFailed
	}
}

func (a *attempt) err() error {
	if a.hardErr != nil {
		return a.hardErr
	}
	return errors.Join(a.groupErrs...)
}

func (s *Service) refreshTier(ctx context.Context, symbol string, tier models.Tier) (result *models.RefreshResult) {
	started := time.Now()
	ctx, trace := providers.WithTrace(ctx)
	a := &attempt{symbol: symbol, tier: tier}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("symbol", symbol).
				Str("tier", string(tier)).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(debug.Stack())).
				Msg("Recovered from panic during refresh")
			a.hardErr = fmt.Errorf("panic: %v", r)
			a.fields = nil
		}
		result = s.finish(ctx, a, trace, time.Since(started))
	}()

	if symbol == "" {
		a.hardErr = errors.New("symbol is required")
		return
	}
	if _, err := models.ParseTier(string(tier)); err != nil {
		a.hardErr = err
		return
	}

	rec, err := s.resolve(ctx, symbol)
	if err != nil {
		a.hardErr = err
		return
	}
	a.record = rec

	now := s.now()
	if !s.policy.Due(rec.LastRefresh(tier), tier, now) {
		a.skipped = "fresh"
		return
	}
	if tier == models.TierRealTime && !s.clock.IsOpen(now) {
		a.skipped = "market closed"
		return
	}

	switch tier {
	case models.TierRealTime:
		s.fetchRealTime(ctx, a, now)
	case models.TierDaily:
		s.fetchDaily(ctx, a, now)
	case models.TierWeekly:
		s.fetchWeekly(ctx, a)
	case models.TierQuarterly:
		s.fetchQuarterly(ctx, a, now)
	}
	if a.hardErr != nil {
		return
	}

	fields := a.patch.Fields()
	if len(fields) == 0 && len(a.satellites) == 0 {
		return
	}

	if _, err := s.store.Update(ctx, rec.ID, &a.patch, tier, now); err != nil {
		a.hardErr = fmt.Errorf("%w: update %s: %v", common.ErrPersistence, symbol, err)
		return
	}
	a.fields = mergeFields(fields, a.satellites)
	return
}

// resolve loads the record, creating a bare one when auto-create is enabled
func (s *Service) resolve(ctx context.Context, symbol string) (*models.StockRecord, error) {
	rec, err := s.store.Get(ctx, symbol)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("%w: get %s: %v", common.ErrPersistence, symbol, err)
	}
	if !s.autoCreate {
		return nil, fmt.Errorf("stock %s: %w", symbol, common.ErrNotFound)
	}

	rec, err = s.store.Insert(ctx, &models.StockRecord{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: insert %s: %v", common.ErrPersistence, symbol, err)
	}
	s.logger.Info().Str("symbol", symbol).Msg("Tracking new stock")
	return rec, nil
}

// finish writes the audit entry and builds the caller's result
func (s *Service) finish(ctx context.Context, a *attempt, trace *providers.Trace, elapsed time.Duration) *models.RefreshResult {
	status := a.status()
	fields := a.fields
	if fields == nil {
		fields = []string{}
	}

	result := &models.RefreshResult{
		Symbol:        a.symbol,
		Tier:          a.tier,
		Status:        status,
		FieldsUpdated: fields,
		Skipped:       a.skipped != "",
	}
	if status != models.StatusSuccess {
		if err := a.err(); err != nil {
			result.Error = err.Error()
		}
	}

	if a.record != nil {
		entry := &models.RefreshLogEntry{
			ID:            uuid.NewString(),
			StockID:       a.record.ID,
			Symbol:        a.symbol,
			Tier:          a.tier,
			Status:        status,
			FieldsUpdated: fields,
			Error:         result.Error,
			Endpoint:      trace.String(),
			LatencyMs:     elapsed.Milliseconds(),
			CreatedAt:     s.now(),
		}
		// The audit write must outlive a cancelled request
		if err := s.store.AppendAuditLog(context.WithoutCancel(ctx), entry); err != nil {
			s.logger.Warn().Err(err).Str("symbol", a.symbol).Msg("Failed to append refresh log entry")
		}
	}

	if s.recorder != nil {
		s.recorder.ObserveRefresh(a.tier, status, len(fields), elapsed)
	}

	event := s.logger.Info()
	if status == models.StatusFailed {
		event = s.logger.Warn().Str("error", result.Error)
	}
	event.
		Str("symbol", a.symbol).
		Str("tier", string(a.tier)).
		Str("status", string(status)).
		Strs("fields", fields).
		Str("skipped", a.skipped).
		Dur("elapsed", elapsed).
		Msg("Refresh complete")

	return result
}

func mergeFields(fields, satellites []string) []string {
	out := append(append([]string{}, fields...), satellites...)
	sort.Strings(out)
	return out
}

// Ensure Service implements RefreshService
var _ interfaces.RefreshService = (*Service)(nil)
