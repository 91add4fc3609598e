// Package service wires the pipeline stages into the use cases served over HTTP.
package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"

	"docvoice/internal/apperr"
	"docvoice/internal/extract"
	"docvoice/internal/model"
	"docvoice/internal/repository"
)

var tracer = otel.Tracer("docvoice/internal/service")

// Extractor reads the page count and text of an uploaded document.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (extract.Document, error)
}

// Analyzer produces structured insight from document text.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (model.AnalysisResult, error)
	OptimizeForSpeech(ctx context.Context, text string) (string, error)
}

// Speaker renders text to audio and serves the voice catalogue.
type Speaker interface {
	Synthesize(ctx context.Context, text string, s model.AudioSettings) ([]byte, error)
	ValidateText(ctx context.Context, text string, lang model.Language) (model.TextValidation, error)
	ListVoices(ctx context.Context, filter string) ([]model.VoiceGroup, error)
}

// Recorder receives pipeline outcomes for metrics.
type Recorder interface {
	JobFinished(status model.JobStatus)
	SynthesisDone(err error)
}

type noopRecorder struct{}

func (noopRecorder) JobFinished(model.JobStatus) {}
func (noopRecorder) SynthesisDone(error)         {}

// SignedURL is a time-limited download link.
type SignedURL struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expiresIn"`
}

// JobListResult is the service-level DTO for paginated jobs.
type JobListResult struct {
	Items []model.ConversionJob `json:"data"`
	Total int                   `json:"total"`
}

// jobError translates repository failures into the error taxonomy.
func jobError(err error, msg string) error {
	switch {
	case errors.Is(err, repository.ErrJobNotFound):
		return apperr.Wrap(err, apperr.JobNotFound, "document not found")
	case errors.Is(err, repository.ErrStaleJob):
		return apperr.Wrap(err, apperr.JobConflict, "document is being processed by another request")
	default:
		return apperr.Wrap(err, apperr.InternalError, msg)
	}
}

// ownedJob loads a job and hides jobs that belong to someone else.
func ownedJob(ctx context.Context, jobs repository.JobRepository, p model.Principal, id string) (model.ConversionJob, error) {
	if id == "" {
		return model.ConversionJob{}, apperr.New(apperr.InvalidRequest, "id is required")
	}
	job, err := jobs.FindByID(ctx, id)
	if err != nil {
		return model.ConversionJob{}, jobError(err, "failed to load document")
	}
	if job.UserID != p.ID {
		return model.ConversionJob{}, apperr.New(apperr.JobNotFound, "document not found")
	}
	return job, nil
}

func ttlSeconds(d time.Duration) int {
	return int(d / time.Second)
}
