package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is a single purchase ingested from an uploaded CSV.
// UserID and ProductID reference users.id and products.id; the rows they point
// to are written in the same unit of work before the transaction itself.
type Transaction struct {
	ID uint `json:"-" gorm:"primaryKey"`

	TransactionID uuid.UUID `json:"transaction_id" gorm:"type:uuid;not null;uniqueIndex"`
	UserID        int64     `json:"user_id" gorm:"not null;index:idx_transactions_user_ts,priority:1"`
	ProductID     int64     `json:"product_id" gorm:"not null;index:idx_transactions_product_ts,priority:1"`

	// Naive wall-clock time, stored without a zone.
	Timestamp time.Time `json:"timestamp" gorm:"type:timestamp;not null;index;index:idx_transactions_user_ts,priority:2;index:idx_transactions_product_ts,priority:2"`

	TransactionAmount decimal.Decimal `json:"transaction_amount" gorm:"type:numeric(12,2);not null"`
}

// TableName specifies the table name
func (Transaction) TableName() string {
	return "transactions"
}
