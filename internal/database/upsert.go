package database

import (
	"context"
	"fmt"
	"transaction-summary-api/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxBindParams keeps every INSERT under the PostgreSQL limit of 65535 bind
// parameters and the SQLite default of 32766.
const maxBindParams = 32000

// transactionColumns is the number of bound values per transaction row.
const transactionColumns = 5

// Gateway writes users, products and transactions with insert-if-absent
// semantics. It is bound to one gorm handle, normally a transaction opened by
// Store.WithinTransaction.
type Gateway struct {
	tx *gorm.DB
}

// NewGateway returns a gateway issuing statements on tx.
func NewGateway(tx *gorm.DB) *Gateway {
	return &Gateway{tx: tx}
}

// UpsertUsers inserts the given user ids, skipping ids that already exist.
// It returns the number of ids submitted, not the number newly created.
func (g *Gateway) UpsertUsers(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	rows := make([]models.User, len(ids))
	for i, id := range ids {
		rows[i] = models.User{ID: id}
	}
	for _, chunk := range chunks(rows, maxBindParams) {
		if err := g.insertIgnore(ctx, &chunk, "id").Error; err != nil {
			return 0, fmt.Errorf("failed to upsert users: %w", err)
		}
	}
	return int64(len(ids)), nil
}

// UpsertProducts inserts the given product ids, skipping ids that already exist.
// It returns the number of ids submitted.
func (g *Gateway) UpsertProducts(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	rows := make([]models.Product, len(ids))
	for i, id := range ids {
		rows[i] = models.Product{ID: id}
	}
	for _, chunk := range chunks(rows, maxBindParams) {
		if err := g.insertIgnore(ctx, &chunk, "id").Error; err != nil {
			return 0, fmt.Errorf("failed to upsert products: %w", err)
		}
	}
	return int64(len(ids)), nil
}

// InsertTransactions inserts rows whose transaction_id is not yet stored.
// Rows that collide on transaction_id, either with stored rows or with each
// other, are counted as duplicates rather than reported as errors.
func (g *Gateway) InsertTransactions(ctx context.Context, txns []models.Transaction) (inserted, duplicates int64, err error) {
	if len(txns) == 0 {
		return 0, 0, nil
	}
	rows := make([]models.Transaction, len(txns))
	copy(rows, txns)
	for i := range rows {
		// ids are assigned by the store
		rows[i].ID = 0
	}

	for _, chunk := range chunks(rows, maxBindParams/transactionColumns) {
		res := g.insertIgnore(ctx, &chunk, "transaction_id")
		if res.Error != nil {
			return 0, 0, fmt.Errorf("failed to insert transactions: %w", res.Error)
		}
		inserted += res.RowsAffected
	}
	return inserted, int64(len(txns)) - inserted, nil
}

func (g *Gateway) insertIgnore(ctx context.Context, value interface{}, conflictColumn string) *gorm.DB {
	return g.tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: conflictColumn}},
			DoNothing: true,
		}).
		Create(value)
}

// chunks splits s into consecutive slices of at most size elements.
func chunks[T any](s []T, size int) [][]T {
	if size <= 0 {
		size = len(s)
	}
	out := make([][]T, 0, (len(s)+size-1)/size)
	for start := 0; start < len(s); start += size {
		end := start + size
		if end > len(s) {
			end = len(s)
		}
		out = append(out, s[start:end])
	}
	return out
}
