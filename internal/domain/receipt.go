package domain

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// ============================================================
// Receipts
// ============================================================

// MaxReceiptSize is the largest accepted upload (5 MiB).
const MaxReceiptSize = 5 << 20

// AllowedReceiptTypes are the accepted MIME types.
var AllowedReceiptTypes = map[string]bool{
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/png":       true,
	"application/pdf": true,
}

// Receipt is a file attached to a debt. It never affects balances.
type Receipt struct {
	ID          string    `json:"id"`
	DebtID      string    `json:"debtId"`
	FileName    string    `json:"fileName"`
	FileURL     string    `json:"fileUrl"`
	FileSize    int64     `json:"fileSize"`
	MimeType    string    `json:"mimeType"`
	Description string    `json:"description,omitempty"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// ReceiptUpload is one file received from a client.
type ReceiptUpload struct {
	FileName    string
	MimeType    string
	Description string
	Data        []byte
}

// Size is the payload length in bytes.
func (u ReceiptUpload) Size() int64 {
	return int64(len(u.Data))
}

// Validate enforces the size and type limits.
func (u ReceiptUpload) Validate() error {
	if len(u.Data) == 0 {
		return &ErrValidation{Field: "file", Message: "no file provided"}
	}
	if u.Size() > MaxReceiptSize {
		return &ErrPayloadTooLarge{Limit: MaxReceiptSize, Size: u.Size()}
	}
	mime := strings.ToLower(strings.TrimSpace(strings.SplitN(u.MimeType, ";", 2)[0]))
	if !AllowedReceiptTypes[mime] {
		return &ErrUnsupportedMedia{MimeType: u.MimeType}
	}
	return nil
}

// ObjectName builds a collision-free storage name for the upload.
func (u ReceiptUpload) ObjectName(now time.Time, id string) string {
	base := path.Base(strings.ReplaceAll(u.FileName, `\`, "/"))
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, base)
	if clean == "" || clean == "." || clean == "/" {
		clean = "receipt"
	}
	return fmt.Sprintf("%d-%s-%s", now.UnixMilli(), id, clean)
}

// BulkUploadResult collects per-file outcomes of a bulk upload.
type BulkUploadResult struct {
	Uploaded      []Receipt `json:"uploaded"`
	Errors        []string  `json:"errors"`
	TotalUploaded int       `json:"totalUploaded"`
	TotalErrors   int       `json:"totalErrors"`
}
