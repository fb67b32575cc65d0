package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/finplan-bfa-go/internal/domain"
	"github.com/boddenberg/finplan-bfa-go/internal/infra/observability"
	"github.com/boddenberg/finplan-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/finplan-bfa-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var receiptTracer = otel.Tracer("service/receipts")

// MaxBulkReceipts caps the files accepted by one bulk upload.
const MaxBulkReceipts = 10

// ReceiptService attaches files to debts. Receipts never change balances.
type ReceiptService struct {
	debts    port.DebtStore
	receipts port.ReceiptStore
	blobs    port.BlobStore
	bulkhead *resilience.Bulkhead
	now      func() time.Time
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewReceiptService creates the receipt service. maxConcurrency bounds
// simultaneous uploads to blob storage. A nil blobs makes every upload fail
// with ErrUnavailable.
func NewReceiptService(
	debts port.DebtStore,
	receipts port.ReceiptStore,
	blobs port.BlobStore,
	maxConcurrency int,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *ReceiptService {
	return &ReceiptService{
		debts:    debts,
		receipts: receipts,
		blobs:    blobs,
		bulkhead: resilience.NewBulkhead(maxConcurrency),
		now:      time.Now,
		metrics:  metrics,
		logger:   logger,
	}
}

// Upload stores one file and its metadata. When the metadata write fails the
// stored file is removed again.
func (s *ReceiptService) Upload(ctx context.Context, userID, debtID string, u domain.ReceiptUpload) (*domain.Receipt, error) {
	ctx, span := receiptTracer.Start(ctx, "ReceiptService.Upload")
	defer span.End()
	span.SetAttributes(
		attribute.String("debt.id", debtID),
		attribute.Int64("receipt.size", u.Size()),
	)

	if s.blobs == nil {
		return nil, &domain.ErrUnavailable{Feature: "receipt storage"}
	}
	if _, err := s.debts.GetDebt(ctx, userID, debtID); err != nil {
		return nil, err
	}
	return s.store(ctx, debtID, u)
}

// BulkUpload stores up to MaxBulkReceipts files concurrently. A failing file
// is reported in the result and does not abort the others.
func (s *ReceiptService) BulkUpload(ctx context.Context, userID, debtID string, uploads []domain.ReceiptUpload) (*domain.BulkUploadResult, error) {
	ctx, span := receiptTracer.Start(ctx, "ReceiptService.BulkUpload")
	defer span.End()
	span.SetAttributes(attribute.String("debt.id", debtID), attribute.Int("receipt.count", len(uploads)))

	if s.blobs == nil {
		return nil, &domain.ErrUnavailable{Feature: "receipt storage"}
	}
	if len(uploads) == 0 {
		return nil, &domain.ErrValidation{Field: "files", Message: "no files provided"}
	}
	if len(uploads) > MaxBulkReceipts {
		return nil, &domain.ErrValidation{Field: "files", Message: fmt.Sprintf("at most %d files per upload", MaxBulkReceipts)}
	}
	if _, err := s.debts.GetDebt(ctx, userID, debtID); err != nil {
		return nil, err
	}

	stored := make([]*domain.Receipt, len(uploads))
	failures := make([]error, len(uploads))

	var g errgroup.Group
	g.SetLimit(MaxBulkReceipts)
	for i, u := range uploads {
		i, u := i, u
		g.Go(func() error {
			stored[i], failures[i] = s.store(ctx, debtID, u)
			return nil
		})
	}
	_ = g.Wait()

	res := &domain.BulkUploadResult{
		Uploaded: make([]domain.Receipt, 0, len(uploads)),
		Errors:   make([]string, 0),
	}
	for i, u := range uploads {
		if failures[i] != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", u.FileName, failures[i]))
			continue
		}
		res.Uploaded = append(res.Uploaded, *stored[i])
	}
	res.TotalUploaded = len(res.Uploaded)
	res.TotalErrors = len(res.Errors)

	s.logger.Info("bulk receipt upload",
		zap.String("debt_id", debtID),
		zap.Int("uploaded", res.TotalUploaded),
		zap.Int("errors", res.TotalErrors),
	)
	return res, nil
}

func (s *ReceiptService) store(ctx context.Context, debtID string, u domain.ReceiptUpload) (*domain.Receipt, error) {
	if err := u.Validate(); err != nil {
		s.metrics.IncrReceipt("rejected")
		return nil, err
	}

	if err := s.bulkhead.Acquire(ctx); err != nil {
		return nil, &domain.ErrTimeout{Operation: "receipt upload"}
	}
	defer s.bulkhead.Release()

	now := s.now().UTC()
	id := uuid.NewString()
	url, err := s.blobs.Put(ctx, u.ObjectName(now, id), u.MimeType, u.Data)
	if err != nil {
		s.metrics.IncrExternalError("blob_storage")
		s.logger.Error("receipt upload failed", zap.String("debt_id", debtID), zap.String("file", u.FileName), zap.Error(err))
		return nil, err
	}

	r, err := s.receipts.CreateReceipt(ctx, domain.Receipt{
		ID:          id,
		DebtID:      debtID,
		FileName:    u.FileName,
		FileURL:     url,
		FileSize:    u.Size(),
		MimeType:    u.MimeType,
		Description: u.Description,
		UploadedAt:  now,
	})
	if err != nil {
		if delErr := s.blobs.Delete(ctx, url); delErr != nil {
			s.logger.Warn("failed to remove orphaned receipt file", zap.String("url", url), zap.Error(delErr))
		}
		return nil, fmt.Errorf("save receipt: %w", err)
	}

	s.metrics.IncrReceipt("uploaded")
	return r, nil
}

// List returns the receipts of a debt owned by userID.
func (s *ReceiptService) List(ctx context.Context, userID, debtID string) ([]domain.Receipt, error) {
	ctx, span := receiptTracer.Start(ctx, "ReceiptService.List")
	defer span.End()

	if _, err := s.debts.GetDebt(ctx, userID, debtID); err != nil {
		return nil, err
	}
	receipts, err := s.receipts.ListReceipts(ctx, debtID)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	return receipts, nil
}

// Delete removes a receipt. The stored file is removed best-effort.
func (s *ReceiptService) Delete(ctx context.Context, userID, receiptID string) error {
	ctx, span := receiptTracer.Start(ctx, "ReceiptService.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("receipt.id", receiptID))

	r, err := s.receipts.GetReceipt(ctx, userID, receiptID)
	if err != nil {
		return err
	}
	if err := s.receipts.DeleteReceipt(ctx, receiptID); err != nil {
		return fmt.Errorf("delete receipt: %w", err)
	}

	if s.blobs != nil {
		if err := s.blobs.Delete(ctx, r.FileURL); err != nil {
			s.logger.Warn("failed to delete receipt file",
				zap.String("receipt_id", receiptID),
				zap.String("url", r.FileURL),
				zap.Error(err),
			)
		}
	}
	s.logger.Info("receipt deleted", zap.String("receipt_id", receiptID), zap.String("debt_id", r.DebtID))
	return nil
}
