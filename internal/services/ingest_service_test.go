package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"testing"
	"transaction-summary-api/internal/config"
	"transaction-summary-api/internal/database"
	"transaction-summary-api/internal/models"
	"transaction-summary-api/pkg/logging"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "transaction_id,user_id,product_id,timestamp,transaction_amount\n"

// fakeGateway records calls and treats transaction ids it has seen as duplicates.
type fakeGateway struct {
	userCalls    [][]int64
	productCalls [][]int64
	txnCalls     [][]models.Transaction
	seen         map[uuid.UUID]bool
	failOn       int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{seen: make(map[uuid.UUID]bool)}
}

func (g *fakeGateway) UpsertUsers(_ context.Context, ids []int64) (int64, error) {
	g.userCalls = append(g.userCalls, append([]int64(nil), ids...))
	return int64(len(ids)), nil
}

func (g *fakeGateway) UpsertProducts(_ context.Context, ids []int64) (int64, error) {
	g.productCalls = append(g.productCalls, append([]int64(nil), ids...))
	return int64(len(ids)), nil
}

func (g *fakeGateway) InsertTransactions(_ context.Context, txns []models.Transaction) (int64, int64, error) {
	g.txnCalls = append(g.txnCalls, txns)
	if g.failOn > 0 && len(g.txnCalls) == g.failOn {
		return 0, 0, errors.New("store down")
	}
	var inserted int64
	for _, t := range txns {
		if !g.seen[t.TransactionID] {
			g.seen[t.TransactionID] = true
			inserted++
		}
	}
	return inserted, int64(len(txns)) - inserted, nil
}

func csvLine(id string, user, product int, ts, amount string) string {
	return fmt.Sprintf("%s,%d,%d,%s,%s\n", id, user, product, ts, amount)
}

func threeRowCSV() string {
	return header +
		csvLine("7f1c2c55-0d5e-4c1e-9a3f-1a2b3c4d5e01", 1, 10, "2025-02-20 00:00:00", "100.00") +
		csvLine("7f1c2c55-0d5e-4c1e-9a3f-1a2b3c4d5e02", 1, 11, "2025-03-01 00:00:00", "150.00") +
		csvLine("7f1c2c55-0d5e-4c1e-9a3f-1a2b3c4d5e03", 1, 10, "2025-04-01 00:00:00", "200.00")
}

func TestIngestCSV_Counts(t *testing.T) {
	gw := newFakeGateway()
	res, err := IngestCSV(context.Background(), strings.NewReader(threeRowCSV()), gw, 10)
	require.NoError(t, err)

	assert.Equal(t, int64(3), res.RowCount)
	assert.Equal(t, int64(3), res.TransactionCount)
	assert.Equal(t, int64(0), res.DuplicatesIgnored)
	assert.Equal(t, int64(1), res.UserCount)
	assert.Equal(t, int64(2), res.ProductCount)
	assert.Equal(t, 1, res.Batches)
	assert.Equal(t, res.RowCount, res.TransactionCount+res.DuplicatesIgnored)
}

func TestIngestCSV_FlushesAtBatchSize(t *testing.T) {
	gw := newFakeGateway()
	res, err := IngestCSV(context.Background(), strings.NewReader(threeRowCSV()), gw, 2)
	require.NoError(t, err)

	require.Len(t, gw.txnCalls, 2)
	assert.Len(t, gw.txnCalls[0], 2)
	assert.Len(t, gw.txnCalls[1], 1)
	assert.Equal(t, [][]int64{{1}, {1}}, gw.userCalls)
	assert.Equal(t, [][]int64{{10, 11}, {10}}, gw.productCalls)

	// user and product counts are cumulative submissions across batches
	assert.Equal(t, int64(2), res.UserCount)
	assert.Equal(t, int64(3), res.ProductCount)
	assert.Equal(t, 2, res.Batches)
}

func TestIngestCSV_LogsBatchSizesAtDebug(t *testing.T) {
	var buf bytes.Buffer
	prev := logging.DebugLogger
	logging.DebugLogger = log.New(&buf, "DEBUG: ", 0)
	t.Cleanup(func() { logging.DebugLogger = prev })

	_, err := IngestCSV(context.Background(), strings.NewReader(threeRowCSV()), newFakeGateway(), 2)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "flushing batch #1: users=1 products=2 transactions=2")
	assert.Contains(t, out, "flushing batch #2: users=1 products=1 transactions=1")
}

func TestIngestCSV_DuplicatesWithinFile(t *testing.T) {
	id := "7f1c2c55-0d5e-4c1e-9a3f-1a2b3c4d5e01"
	body := header +
		csvLine(id, 1, 10, "2025-02-20 00:00:00", "1.00") +
		csvLine(id, 1, 10, "2025-02-20 00:00:00", "1.00")

	res, err := IngestCSV(context.Background(), strings.NewReader(body), newFakeGateway(), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RowCount)
	assert.Equal(t, int64(1), res.TransactionCount)
	assert.Equal(t, int64(1), res.DuplicatesIgnored)
}

func TestIngestCSV_HeaderOnly(t *testing.T) {
	gw := newFakeGateway()
	res, err := IngestCSV(context.Background(), strings.NewReader(header), gw, 10)
	require.NoError(t, err)
	assert.Equal(t, UploadResult{}, res)
	assert.Empty(t, gw.txnCalls)
}

func TestIngestCSV_HeaderNormalization(t *testing.T) {
	body := "\uFEFF Transaction_ID , USER_ID,product_id,Timestamp,transaction_amount\r\n" +
		"7f1c2c55-0d5e-4c1e-9a3f-1a2b3c4d5e01,1,10,2025-02-20 00:00:00,1.00\r\n"
	res, err := IngestCSV(context.Background(), strings.NewReader(body), newFakeGateway(), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.TransactionCount)
}

func TestIngestCSV_HeaderErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		kind ErrorKind
		msg  string
	}{
		{name: "empty", body: "", kind: MissingHeader, msg: "Missing CSV header"},
		{name: "blank lines", body: "\n\n", kind: MissingHeader},
		{name: "wrong columns", body: "a,b,c\n", kind: InvalidHeader,
			msg: `Invalid CSV header. Expected: ["transaction_id" "user_id" "product_id" "timestamp" "transaction_amount"], got: ["a" "b" "c"]`},
		{name: "reordered", body: "user_id,transaction_id,product_id,timestamp,transaction_amount\n", kind: InvalidHeader},
		{name: "extra column", body: strings.TrimSuffix(header, "\n") + ",note\n", kind: InvalidHeader},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := IngestCSV(context.Background(), strings.NewReader(tc.body), newFakeGateway(), 10)
			require.Error(t, err)
			kind, ok := KindOf(err)
			require.True(t, ok)
			assert.Equal(t, tc.kind, kind)
			if tc.msg != "" {
				assert.Equal(t, tc.msg, err.Error())
			}
		})
	}
}

func TestIngestCSV_RowErrorCarriesLineNumber(t *testing.T) {
	body := header +
		csvLine("7f1c2c55-0d5e-4c1e-9a3f-1a2b3c4d5e01", 1, 10, "2025-02-20 00:00:00", "1.00") +
		csvLine("7f1c2c55-0d5e-4c1e-9a3f-1a2b3c4d5e02", 1, 10, "2025-02-20 00:00:00", "abc")

	gw := newFakeGateway()
	_, err := IngestCSV(context.Background(), strings.NewReader(body), gw, 1)
	require.Error(t, err)

	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 3, rowErr.Row)
	assert.Equal(t, "Error in row 3: Invalid transaction_amount: abc, must be a decimal number with up to 2 decimal places", err.Error())

	kind, _ := KindOf(err)
	assert.Equal(t, InvalidFormat, kind)
	assert.Len(t, gw.txnCalls, 1, "rows before the bad one were already flushed")
}

func TestIngestCSV_MalformedQuoting(t *testing.T) {
	body := header + "\"7f1c2c55-0d5e-4c1e-9a3f-1a2b3c4d5e01,1,10,2025-02-20 00:00:00,1.00\n"
	_, err := IngestCSV(context.Background(), strings.NewReader(body), newFakeGateway(), 10)

	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 2, rowErr.Row)
	kind, _ := KindOf(err)
	assert.Equal(t, InvalidFormat, kind)
}

func TestIngestCSV_ShortRowIsMissingField(t *testing.T) {
	body := header + "7f1c2c55-0d5e-4c1e-9a3f-1a2b3c4d5e01,1,10\n"
	_, err := IngestCSV(context.Background(), strings.NewReader(body), newFakeGateway(), 10)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, MissingField, kind)
}

func TestIngestCSV_GatewayErrorPropagates(t *testing.T) {
	gw := newFakeGateway()
	gw.failOn = 1
	_, err := IngestCSV(context.Background(), strings.NewReader(threeRowCSV()), gw, 10)
	require.Error(t, err)
	_, isValidation := KindOf(err)
	assert.False(t, isValidation)
}

func newServiceStore(tb testing.TB) *database.Store {
	tb.Helper()
	s, err := database.Open(&config.Config{
		SQLitePath: filepath.Join(tb.TempDir(), "ingest.db"),
		DBLogLevel: "silent",
	})
	if err != nil {
		tb.Fatalf("open store: %v", err)
	}
	tb.Cleanup(func() { _ = s.Close() })
	return s
}

func countTransactions(tb testing.TB, s *database.Store) int64 {
	tb.Helper()
	var n int64
	require.NoError(tb, s.DB().Model(&models.Transaction{}).Count(&n).Error)
	return n
}

type countingCache struct {
	NoopSummaryCache
	invalidations int
}

func (c *countingCache) Invalidate(context.Context) error {
	c.invalidations++
	return nil
}

func TestIngestService_UploadAndReupload(t *testing.T) {
	store := newServiceStore(t)
	cache := &countingCache{}
	svc := NewIngestService(store, cache, nil, 2)
	ctx := context.Background()

	res, err := svc.Upload(ctx, "data.csv", strings.NewReader(threeRowCSV()))
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.TransactionCount)
	assert.Equal(t, int64(3), countTransactions(t, store))
	assert.Equal(t, 1, cache.invalidations)

	res, err = svc.Upload(ctx, "DATA.CSV", strings.NewReader(threeRowCSV()))
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.TransactionCount)
	assert.Equal(t, int64(3), res.DuplicatesIgnored)
	assert.Equal(t, int64(3), res.RowCount)
	assert.Equal(t, int64(3), countTransactions(t, store))
}

func TestIngestService_RowErrorRollsBackEarlierBatches(t *testing.T) {
	store := newServiceStore(t)
	cache := &countingCache{}
	svc := NewIngestService(store, cache, nil, 1)

	body := header +
		csvLine("7f1c2c55-0d5e-4c1e-9a3f-1a2b3c4d5e01", 1, 10, "2025-02-20 00:00:00", "1.00") +
		csvLine("7f1c2c55-0d5e-4c1e-9a3f-1a2b3c4d5e02", 1, 10, "2025-02-20 00:00:00", "abc")

	_, err := svc.Upload(context.Background(), "data.csv", strings.NewReader(body))
	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 3, rowErr.Row)

	assert.Zero(t, countTransactions(t, store))
	var users int64
	require.NoError(t, store.DB().Model(&models.User{}).Count(&users).Error)
	assert.Zero(t, users)
	assert.Zero(t, cache.invalidations)
}

func TestIngestService_RejectsNonCSV(t *testing.T) {
	store := newServiceStore(t)
	svc := NewIngestService(store, nil, nil, 10)

	_, err := svc.Upload(context.Background(), "data.txt", strings.NewReader(threeRowCSV()))
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, UnsupportedMediaType, kind)
	assert.Equal(t, "Only CSV files are supported", err.Error())
	assert.Zero(t, countTransactions(t, store))
}

func TestDescribeUploadFailure(t *testing.T) {
	fk := fmt.Errorf("failed to insert transactions: %w",
		&pgconn.PgError{Code: "23503", Message: "violates foreign key", Detail: "Key (user_id)=(9) is not present"})
	msg := describeUploadFailure(fk)
	assert.True(t, strings.HasPrefix(msg, "transaction references a missing user or product: "))
	assert.Contains(t, msg, "Key (user_id)=(9) is not present")

	other := fmt.Errorf("failed to insert transactions: %w", &pgconn.PgError{Code: "23505", Message: "duplicate"})
	assert.Equal(t, database.Describe(other), describeUploadFailure(other))
	assert.Equal(t, "boom", describeUploadFailure(errors.New("boom")))
}
