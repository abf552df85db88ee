package services

import (
	"strconv"
	"strings"
	"time"
	"transaction-summary-api/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Expected CSV columns, in order.
var csvHeaders = []string{"transaction_id", "user_id", "product_id", "timestamp", "transaction_amount"}

const (
	timestampLayout         = "2006-01-02 15:04:05"
	timestampFractionLayout = "2006-01-02 15:04:05.999999"
)

// maxAmount is the first value that no longer fits NUMERIC(12,2).
var maxAmount = decimal.New(1, 10)

// maxIntegerDigits is the integer precision of NUMERIC(12,2).
const maxIntegerDigits = 10

// TransformRow converts one raw CSV record into a Transaction. It has no side
// effects; the first invalid field determines the returned error.
func TransformRow(raw map[string]string) (models.Transaction, error) {
	var t models.Transaction

	rawID := strings.TrimSpace(raw["transaction_id"])
	id, err := uuid.Parse(rawID)
	if err != nil || len(rawID) != 36 {
		return t, newValidationError(InvalidIdentifier, "transaction_id", raw["transaction_id"],
			"Invalid UUID: %s", raw["transaction_id"])
	}

	userID, userErr := parseIdentifier(raw["user_id"])
	productID, productErr := parseIdentifier(raw["product_id"])
	if userErr != nil || productErr != nil {
		field, value := "user_id", raw["user_id"]
		if userErr == nil {
			field, value = "product_id", raw["product_id"]
		}
		return t, newValidationError(InvalidIdentifier, field, value,
			"Invalid user_id or product_id: %s, %s", raw["user_id"], raw["product_id"])
	}

	ts, err := parseTimestamp(raw["timestamp"])
	if err != nil {
		return t, err
	}

	amount, err := parseAmount(raw["transaction_amount"])
	if err != nil {
		return t, err
	}

	t.TransactionID = id
	t.UserID = userID
	t.ProductID = productID
	t.Timestamp = ts
	t.TransactionAmount = amount
	return t, nil
}

func parseIdentifier(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

func parseTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, newValidationError(MissingField, "timestamp", raw, "Missing timestamp")
	}

	invalid := newValidationError(InvalidFormat, "timestamp", raw,
		"Invalid timestamp format: %s, make sure it's in 'YYYY-MM-DD HH:MM:SS' or 'YYYY-MM-DD HH:MM:SS.ffffff' format", s)

	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		frac := s[dot+1:]
		if len(frac) < 1 || len(frac) > 6 || !allDigits(frac) {
			return time.Time{}, invalid
		}
		ts, err := time.Parse(timestampFractionLayout, s)
		if err != nil {
			return time.Time{}, invalid
		}
		return ts, nil
	}

	ts, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, invalid
	}
	return ts, nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	invalid := newValidationError(InvalidFormat, "transaction_amount", raw,
		"Invalid transaction_amount: %s, must be a decimal number with up to 2 decimal places", raw)

	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Decimal{}, invalid
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, invalid
	}

	// Bound the magnitude from the coefficient length and exponent before
	// rounding; rescaling an extreme exponent is unbounded work.
	if d.Sign() == 0 {
		return decimal.Zero, nil
	}
	coef := d.Coefficient()
	magnitude := len(coef.Abs(coef).Text(10)) + int(d.Exponent())
	if magnitude > maxIntegerDigits {
		return decimal.Decimal{}, invalid
	}
	if magnitude < -2 {
		// |d| < 0.001 rounds to zero
		return decimal.Zero, nil
	}

	d = d.RoundBank(2)
	if d.Abs().GreaterThanOrEqual(maxAmount) {
		return decimal.Decimal{}, invalid
	}
	return d, nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
