package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/boddenberg/finplan-bfa-go/internal/domain"
	"github.com/boddenberg/finplan-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Receipts
// ============================================================

// multipartOverhead is allowed on top of the file bytes for boundaries and
// the description field.
const multipartOverhead = 1 << 20

// parseMultipart limits and parses a multipart body. It writes the error
// response itself.
func parseMultipart(w http.ResponseWriter, r *http.Request, limit int64, logger *zap.Logger) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			handleServiceError(w, &domain.ErrPayloadTooLarge{Limit: domain.MaxReceiptSize, Size: tooBig.Limit}, logger)
			return false
		}
		writeError(w, http.StatusBadRequest, "expected a multipart/form-data body")
		return false
	}
	return true
}

// readUpload reads one form file. The content type comes from the part
// header, or is sniffed when the client sent none.
func readUpload(fh *multipart.FileHeader, description string) (domain.ReceiptUpload, error) {
	f, err := fh.Open()
	if err != nil {
		return domain.ReceiptUpload{}, err
	}
	defer f.Close()

	// One byte over the limit is enough for Validate to reject it.
	data, err := io.ReadAll(io.LimitReader(f, domain.MaxReceiptSize+1))
	if err != nil {
		return domain.ReceiptUpload{}, err
	}

	mime := fh.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	return domain.ReceiptUpload{
		FileName:    fh.Filename,
		MimeType:    mime,
		Description: description,
		Data:        data,
	}, nil
}

func listReceiptsHandler(svc *service.ReceiptService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/debts/{debtId}/receipts")
		defer span.End()

		receipts, err := svc.List(ctx, UserIDFromContext(ctx), chi.URLParam(r, "debtId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.Receipt]{Data: receipts, Total: len(receipts)})
	}
}

func uploadReceiptHandler(svc *service.ReceiptService, debts *service.DebtService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/debts/{debtId}/receipts")
		defer span.End()

		debtID := chi.URLParam(r, "debtId")
		userID := UserIDFromContext(ctx)

		if !parseMultipart(w, r, domain.MaxReceiptSize+multipartOverhead, logger) {
			return
		}
		defer r.MultipartForm.RemoveAll()

		files := r.MultipartForm.File["file"]
		if len(files) == 0 {
			handleServiceError(w, &domain.ErrValidation{Field: "file", Message: "no file provided"}, logger)
			return
		}

		upload, err := readUpload(files[0], r.FormValue("description"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "could not read uploaded file")
			return
		}
		span.SetAttributes(attribute.Int64("receipt.size", upload.Size()), attribute.String("receipt.mime", upload.MimeType))

		receipt, err := svc.Upload(ctx, userID, debtID, upload)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		debts.Invalidate(userID)
		writeJSON(w, http.StatusCreated, receipt)
	}
}

func bulkUploadReceiptsHandler(svc *service.ReceiptService, debts *service.DebtService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/debts/{debtId}/receipts/bulk")
		defer span.End()

		debtID := chi.URLParam(r, "debtId")
		userID := UserIDFromContext(ctx)

		if !parseMultipart(w, r, service.MaxBulkReceipts*domain.MaxReceiptSize+multipartOverhead, logger) {
			return
		}
		defer r.MultipartForm.RemoveAll()

		var files []*multipart.FileHeader
		files = append(files, r.MultipartForm.File["files"]...)
		files = append(files, r.MultipartForm.File["file"]...)
		description := r.FormValue("description")

		uploads := make([]domain.ReceiptUpload, 0, len(files))
		for _, fh := range files {
			upload, err := readUpload(fh, description)
			if err != nil {
				writeError(w, http.StatusBadRequest, "could not read uploaded file "+fh.Filename)
				return
			}
			uploads = append(uploads, upload)
		}
		span.SetAttributes(attribute.Int("receipt.count", len(uploads)))

		result, err := svc.BulkUpload(ctx, userID, debtID, uploads)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if result.TotalUploaded > 0 {
			debts.Invalidate(userID)
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func deleteReceiptHandler(svc *service.ReceiptService, debts *service.DebtService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/receipts/{receiptId}")
		defer span.End()

		receiptID := chi.URLParam(r, "receiptId")
		userID := UserIDFromContext(ctx)

		if err := svc.Delete(ctx, userID, receiptID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		debts.Invalidate(userID)
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "receipt deleted", ID: receiptID})
	}
}
