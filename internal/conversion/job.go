// Package conversion holds the ConversionJob lifecycle.
//
// Transitions take a job by value and return the advanced copy, so a rejected
// event never leaves a partially mutated record behind:
//
//	uploading --AttachStorage--> uploading
//	uploading --BeginAnalysis--> processing
//	processing --RecordPages--> processing
//	processing --Complete--> completed
//	uploading|processing --Fail--> error
//	completed --AttachAudio--> completed
package conversion

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"docvoice/internal/model"
)

// ErrInvalidTransition is returned for any (state, event) pair outside the table above.
var ErrInvalidTransition = errors.New("invalid job transition")

func invalid(job model.ConversionJob, event string) error {
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, event, job.Status)
}

// JobID derives the record id from the owner and the admission instant.
func JobID(userID string, at time.Time) string {
	return userID + "-" + strconv.FormatInt(at.UnixMilli(), 10)
}

// ObjectKey derives the blob key under which the raw upload is stored.
func ObjectKey(userID, fileName string, at time.Time) string {
	return userID + "/" + strconv.FormatInt(at.UnixMilli(), 10) + "-" + fileName
}

// NewJob creates a job in uploading state for an admitted upload.
func NewJob(userID, fileName string, size int64, now time.Time) model.ConversionJob {
	return model.ConversionJob{
		ID:        JobID(userID, now),
		UserID:    userID,
		FileName:  fileName,
		SizeBytes: size,
		Status:    model.StatusUploading,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AttachStorage records where the raw bytes were persisted.
func AttachStorage(job model.ConversionJob, handle string, now time.Time) (model.ConversionJob, error) {
	if job.Status != model.StatusUploading || handle == "" {
		return job, invalid(job, "attach storage")
	}
	job.StorageHandle = handle
	job.UpdatedAt = now
	return job, nil
}

// BeginAnalysis moves a persisted upload into processing.
func BeginAnalysis(job model.ConversionJob, now time.Time) (model.ConversionJob, error) {
	if job.Status != model.StatusUploading || job.StorageHandle == "" {
		return job, invalid(job, "begin analysis")
	}
	job.Status = model.StatusProcessing
	job.UpdatedAt = now
	return job, nil
}

// RecordPages notes the page count found during extraction.
func RecordPages(job model.ConversionJob, pages int, now time.Time) (model.ConversionJob, error) {
	if job.Status != model.StatusProcessing || pages < 0 {
		return job, invalid(job, "record pages")
	}
	job.PageCount = pages
	job.UpdatedAt = now
	return job, nil
}

// Complete stores the analysis outcome and finishes the job.
func Complete(job model.ConversionJob, res model.AnalysisResult, now time.Time) (model.ConversionJob, error) {
	if job.Status != model.StatusProcessing {
		return job, invalid(job, "complete")
	}
	job.Status = model.StatusCompleted
	job.DetectedLanguage = res.Language
	job.Summary = res.Summary
	job.Keywords = append([]string(nil), res.Keywords...)
	job.UpdatedAt = now
	return job, nil
}

// Fail moves a job still in flight to error with the failure code and detail.
func Fail(job model.ConversionJob, code, detail string, now time.Time) (model.ConversionJob, error) {
	if job.Status.Terminal() {
		return job, invalid(job, "fail")
	}
	if detail == "" {
		detail = code
	}
	job.Status = model.StatusError
	job.ErrorCode = code
	job.ErrorDetail = detail
	job.UpdatedAt = now
	return job, nil
}

// AttachAudio records a rendered audio artifact. Status is unchanged.
func AttachAudio(job model.ConversionJob, handle string, now time.Time) (model.ConversionJob, error) {
	if job.Status != model.StatusCompleted || handle == "" {
		return job, invalid(job, "attach audio")
	}
	job.AudioHandle = handle
	job.UpdatedAt = now
	return job, nil
}
