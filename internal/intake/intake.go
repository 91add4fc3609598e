// Package intake admits or rejects an uploaded file before any side effect happens.
package intake

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"docvoice/internal/apperr"
)

const (
	// PDFMimeType is the only accepted declared content type.
	PDFMimeType = "application/pdf"
	// MaxUploadBytes is the inclusive size ceiling.
	MaxUploadBytes int64 = 50 << 20
)

// Upload describes the file as declared by the client.
type Upload struct {
	Present   bool
	MimeType  string
	SizeBytes int64
}

// Validate applies the checks in order and reports only the first failure.
func Validate(u Upload) error {
	if !u.Present {
		return apperr.New(apperr.NoFile, "no file uploaded")
	}
	if u.MimeType != PDFMimeType {
		return apperr.WithDetails(
			apperr.New(apperr.InvalidType, "only PDF files are allowed"),
			fmt.Sprintf("declared content type %q", u.MimeType),
		)
	}
	if u.SizeBytes > MaxUploadBytes {
		return apperr.WithDetails(
			apperr.Newf(apperr.TooLarge, "file size exceeds %s limit", humanize.IBytes(uint64(MaxUploadBytes))),
			fmt.Sprintf("received %s", humanize.IBytes(uint64(u.SizeBytes))),
		)
	}
	return nil
}
