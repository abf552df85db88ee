package services

import (
	"context"
	"fmt"
	"time"
	"transaction-summary-api/internal/database"
	"transaction-summary-api/internal/metrics"
	"transaction-summary-api/pkg/logging"

	"github.com/shopspring/decimal"
)

// Summary is the aggregate of one user's transactions over [Start, End).
type Summary struct {
	UserID           int64           `json:"user_id"`
	Start            *time.Time      `json:"start,omitempty"`
	End              *time.Time      `json:"end,omitempty"`
	TransactionCount int64           `json:"transaction_count"`
	Mean             decimal.Decimal `json:"mean"`
	Maximum          decimal.Decimal `json:"maximum"`
	Minimum          decimal.Decimal `json:"minimum"`
}

// SummaryStore runs the aggregate query.
type SummaryStore interface {
	AggregateTransactions(ctx context.Context, userID int64, start, end *time.Time) (database.AggregateRow, error)
}

// SummaryService answers per-user summary requests, consulting the cache first.
type SummaryService struct {
	store   SummaryStore
	cache   SummaryCache
	metrics *metrics.Recorder
}

// NewSummaryService creates a new summary service. cache and rec may be nil.
func NewSummaryService(store SummaryStore, cache SummaryCache, rec *metrics.Recorder) *SummaryService {
	if cache == nil {
		cache = NoopSummaryCache{}
	}
	return &SummaryService{store: store, cache: cache, metrics: rec}
}

// GetSummary returns count, mean, max and min of userID's transaction amounts
// with start <= timestamp < end. Nil bounds are open.
func (s *SummaryService) GetSummary(ctx context.Context, userID int64, start, end *time.Time) (*Summary, error) {
	if start != nil && end != nil && !start.Before(*end) {
		s.metrics.RecordSummary("rejected")
		return nil, newValidationError(InvalidRange, "end", "", "`end` must be greater than `start`")
	}

	// Resolve the generation once: an upload committing while the query runs
	// must leave this result under the old generation.
	key, err := s.cache.Key(ctx, fmt.Sprintf("%d:%s:%s", userID, formatQueryTime(start), formatQueryTime(end)))
	if err != nil {
		logging.Warnf("Summary cache unavailable: %v", err)
		key = ""
	}
	if key != "" {
		if cached, ok, err := s.cache.Get(ctx, key); err != nil {
			logging.Warnf("Summary cache read failed: %v", err)
		} else if ok {
			logging.Debugf("Summary cache hit: %s", key)
			s.metrics.RecordSummary("hit")
			return cached, nil
		}
		logging.Debugf("Summary cache miss: %s", key)
	}

	row, err := s.store.AggregateTransactions(ctx, userID, start, end)
	if err != nil {
		s.metrics.RecordSummary("failure")
		return nil, err
	}
	if row.Total == 0 {
		s.metrics.RecordSummary("empty")
		return nil, newValidationError(NoMatchingData, "", "", "No data for given filters")
	}

	summary := &Summary{
		UserID:           userID,
		Start:            start,
		End:              end,
		TransactionCount: row.Total,
		Mean:             row.MeanAmount.Decimal.RoundBank(2),
		Maximum:          row.MaxAmount.Decimal.RoundBank(2),
		Minimum:          row.MinAmount.Decimal.RoundBank(2),
	}

	if key != "" {
		if err := s.cache.Set(ctx, key, summary); err != nil {
			logging.Warnf("Summary cache write failed: %v", err)
		}
	}
	s.metrics.RecordSummary("miss")
	return summary, nil
}
