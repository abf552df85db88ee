package services

import "transaction-summary-api/internal/models"

// BatchAccumulator buffers validated rows between flushes. User and product
// ids are de-duplicated within the batch and kept in first-seen order.
type BatchAccumulator struct {
	size int

	userIDs    []int64
	seenUsers  map[int64]struct{}
	productIDs []int64
	seenProds  map[int64]struct{}
	txns       []models.Transaction
}

// Batch is the drained content of an accumulator.
type Batch struct {
	UserIDs      []int64
	ProductIDs   []int64
	Transactions []models.Transaction
}

// NewBatchAccumulator returns an accumulator that asks to be flushed once it
// holds size transactions. A non-positive size is treated as 1.
func NewBatchAccumulator(size int) *BatchAccumulator {
	if size <= 0 {
		size = 1
	}
	return &BatchAccumulator{
		size:      size,
		seenUsers: make(map[int64]struct{}),
		seenProds: make(map[int64]struct{}),
		txns:      make([]models.Transaction, 0, size),
	}
}

// Add records t and its user and product ids.
func (b *BatchAccumulator) Add(t models.Transaction) {
	if _, ok := b.seenUsers[t.UserID]; !ok {
		b.seenUsers[t.UserID] = struct{}{}
		b.userIDs = append(b.userIDs, t.UserID)
	}
	if _, ok := b.seenProds[t.ProductID]; !ok {
		b.seenProds[t.ProductID] = struct{}{}
		b.productIDs = append(b.productIDs, t.ProductID)
	}
	b.txns = append(b.txns, t)
}

// ShouldFlush reports whether the pending transaction count reached the batch size.
func (b *BatchAccumulator) ShouldFlush() bool {
	return len(b.txns) >= b.size
}

// Len returns the number of pending transactions.
func (b *BatchAccumulator) Len() int {
	return len(b.txns)
}

// Drain returns everything pending and resets the accumulator.
func (b *BatchAccumulator) Drain() Batch {
	out := Batch{
		UserIDs:      b.userIDs,
		ProductIDs:   b.productIDs,
		Transactions: b.txns,
	}
	b.userIDs = nil
	b.productIDs = nil
	b.txns = make([]models.Transaction, 0, b.size)
	clear(b.seenUsers)
	clear(b.seenProds)
	return out
}
