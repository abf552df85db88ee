package database

import (
	"context"
	"fmt"
	"time"
	"transaction-summary-api/internal/models"

	"github.com/shopspring/decimal"
)

// AggregateRow is the single row returned by the summary query.
// Min, max and mean are NULL when no transaction matched.
type AggregateRow struct {
	Total      int64
	MinAmount  decimal.NullDecimal
	MaxAmount  decimal.NullDecimal
	MeanAmount decimal.NullDecimal
}

// AggregateTransactions computes count, min, max and mean of
// transaction_amount for userID over [start, end). A nil bound is open.
func (s *Store) AggregateTransactions(ctx context.Context, userID int64, start, end *time.Time) (AggregateRow, error) {
	var row AggregateRow

	q := s.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Select("COUNT(*) AS total, MIN(transaction_amount) AS min_amount, MAX(transaction_amount) AS max_amount, AVG(transaction_amount) AS mean_amount").
		Where("user_id = ?", userID)
	if start != nil {
		q = q.Where("timestamp >= ?", *start)
	}
	if end != nil {
		q = q.Where("timestamp < ?", *end)
	}

	if err := q.Scan(&row).Error; err != nil {
		return AggregateRow{}, fmt.Errorf("failed to aggregate transactions for user %d: %w", userID, err)
	}
	return row, nil
}
