package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"transaction-summary-api/internal/database"
	"transaction-summary-api/internal/metrics"
	"transaction-summary-api/internal/models"
	"transaction-summary-api/pkg/logging"

	"gorm.io/gorm"
)

const utf8BOM = "\uFEFF"

// UpsertGateway is the write side of the store used during ingestion.
type UpsertGateway interface {
	UpsertUsers(ctx context.Context, ids []int64) (int64, error)
	UpsertProducts(ctx context.Context, ids []int64) (int64, error)
	InsertTransactions(ctx context.Context, txns []models.Transaction) (inserted, duplicates int64, err error)
}

// UploadResult summarizes one ingested file.
type UploadResult struct {
	RowCount          int64 `json:"row_count"`
	UserCount         int64 `json:"user_count"`
	ProductCount      int64 `json:"product_count"`
	TransactionCount  int64 `json:"transaction_count"`
	DuplicatesIgnored int64 `json:"duplicates_ignored"`

	Batches int `json:"-"`
}

// IngestCSV validates r row by row and writes it through gw in batches of
// batchSize. The first invalid row stops ingestion with a *RowError; callers
// are expected to run this inside a transaction so nothing from a failed file
// is kept.
func IngestCSV(ctx context.Context, r io.Reader, gw UpsertGateway, batchSize int) (UploadResult, error) {
	var res UploadResult

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return res, newValidationError(MissingHeader, "", "", "Missing CSV header")
		}
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return res, newValidationError(InvalidHeader, "", "", "Unable to read CSV. %v", err)
		}
		return res, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if err := checkHeader(header); err != nil {
		return res, err
	}

	acc := NewBatchAccumulator(batchSize)
	start := time.Now()
	lastFlush := start
	var lastRows int64

	flush := func() error {
		if acc.Len() == 0 {
			return nil
		}
		b := acc.Drain()
		logging.Debugf("flushing batch #%d: users=%d products=%d transactions=%d",
			res.Batches+1, len(b.UserIDs), len(b.ProductIDs), len(b.Transactions))

		users, err := gw.UpsertUsers(ctx, b.UserIDs)
		if err != nil {
			return err
		}
		products, err := gw.UpsertProducts(ctx, b.ProductIDs)
		if err != nil {
			return err
		}
		inserted, duplicates, err := gw.InsertTransactions(ctx, b.Transactions)
		if err != nil {
			return err
		}

		res.UserCount += users
		res.ProductCount += products
		res.TransactionCount += inserted
		res.DuplicatesIgnored += duplicates
		res.RowCount = res.TransactionCount + res.DuplicatesIgnored
		res.Batches++

		now := time.Now()
		sinceLast := now.Sub(lastFlush)
		rps := float64(0)
		if sinceLast > 0 {
			rps = float64(res.RowCount-lastRows) / sinceLast.Seconds()
		}
		logging.Infof("batch #%d: rps=%.0f users=%d products=%d inserted=%d duplicates=%d total_rows=%d elapsed=%s",
			res.Batches, rps, users, products, inserted, duplicates, res.RowCount,
			now.Sub(start).Truncate(time.Millisecond))
		lastFlush = now
		lastRows = res.RowCount
		return nil
	}

	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return res, &RowError{
					Row: pe.StartLine,
					Err: newValidationError(InvalidFormat, "", "", "Malformed CSV: %v", pe.Err),
				}
			}
			return res, fmt.Errorf("failed to read CSV: %w", err)
		}

		row, _ := reader.FieldPos(0)
		t, err := TransformRow(recordMap(rec))
		if err != nil {
			return res, &RowError{Row: row, Err: err}
		}

		acc.Add(t)
		if acc.ShouldFlush() {
			if err := flush(); err != nil {
				return res, err
			}
		}
	}

	if err := flush(); err != nil {
		return res, err
	}
	return res, nil
}

// checkHeader compares the header positionally after trimming and lowercasing.
func checkHeader(header []string) error {
	got := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		got[i] = strings.ToLower(strings.TrimSpace(h))
	}
	if len(got) == 1 && got[0] == "" {
		return newValidationError(MissingHeader, "", "", "Missing CSV header")
	}

	match := len(got) == len(csvHeaders)
	for i := 0; match && i < len(got); i++ {
		match = got[i] == csvHeaders[i]
	}
	if !match {
		return newValidationError(InvalidHeader, "", strings.Join(header, ","),
			"Invalid CSV header. Expected: %q, got: %q", csvHeaders, got)
	}
	return nil
}

// recordMap keys rec by the expected columns. Extra fields are ignored and
// missing ones read as empty.
func recordMap(rec []string) map[string]string {
	m := make(map[string]string, len(csvHeaders))
	for i, name := range csvHeaders {
		if i < len(rec) {
			m[name] = rec[i]
		}
	}
	return m
}

// IngestService runs uploads against the store, one transaction per file.
type IngestService struct {
	store     *database.Store
	cache     SummaryCache
	metrics   *metrics.Recorder
	batchSize int
}

// NewIngestService creates a new ingest service. cache and rec may be nil.
func NewIngestService(store *database.Store, cache SummaryCache, rec *metrics.Recorder, batchSize int) *IngestService {
	if cache == nil {
		cache = NoopSummaryCache{}
	}
	return &IngestService{
		store:     store,
		cache:     cache,
		metrics:   rec,
		batchSize: batchSize,
	}
}

// Upload ingests the CSV named filename from r. Either the whole file is
// committed or none of it is.
func (s *IngestService) Upload(ctx context.Context, filename string, r io.Reader) (UploadResult, error) {
	if !strings.HasSuffix(strings.ToLower(filename), ".csv") {
		s.metrics.RecordUpload("rejected")
		return UploadResult{}, newValidationError(UnsupportedMediaType, "file", filename, "Only CSV files are supported")
	}

	var res UploadResult
	err := s.store.WithinTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		res, err = IngestCSV(ctx, r, database.NewGateway(tx), s.batchSize)
		return err
	})
	if err != nil {
		if _, ok := KindOf(err); ok {
			s.metrics.RecordUpload("rejected")
			logging.Warnf("Upload %s rejected: %v", filename, err)
		} else {
			s.metrics.RecordUpload("failure")
			logging.Errorf("Upload %s failed: %s", filename, describeUploadFailure(err))
		}
		return UploadResult{}, err
	}

	s.metrics.RecordUpload("success")
	s.metrics.RecordRows("inserted", res.TransactionCount)
	s.metrics.RecordRows("duplicate", res.DuplicatesIgnored)
	s.metrics.RecordBatches(res.Batches)

	if err := s.cache.Invalidate(ctx); err != nil {
		logging.Warnf("Failed to invalidate summary cache: %v", err)
	}

	logging.Infof("Upload %s committed: rows=%d users=%d products=%d inserted=%d duplicates=%d",
		filename, res.RowCount, res.UserCount, res.ProductCount, res.TransactionCount, res.DuplicatesIgnored)
	return res, nil
}

// describeUploadFailure renders a database error for the failure log.
func describeUploadFailure(err error) string {
	if database.IsForeignKeyViolation(err) {
		return "transaction references a missing user or product: " + database.Describe(err)
	}
	return database.Describe(err)
}
