package service

import (
	"bytes"
	"context"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"docvoice/internal/apperr"
	"docvoice/internal/conversion"
	"docvoice/internal/intake"
	"docvoice/internal/logger"
	"docvoice/internal/model"
	"docvoice/internal/policy"
	"docvoice/internal/repository"
	"docvoice/internal/storage"
)

// UploadInput is one multipart upload as seen by the service.
type UploadInput struct {
	Present  bool
	FileName string
	MimeType string
	Size     int64
	Content  io.Reader
}

// AnalysisView is the analysis part of a conversion response.
type AnalysisView struct {
	Summary  string   `json:"summary"`
	Keywords []string `json:"keywords"`
}

// ConversionResult is returned by a successful upload. FileURL is the unsigned blob location.
type ConversionResult struct {
	File     model.ConversionJob `json:"file"`
	FileURL  string              `json:"fileUrl"`
	Analysis AnalysisView        `json:"analysis"`
}

// FileContent streams a stored document. The caller closes Body.
type FileContent struct {
	Body        io.ReadCloser
	FileName    string
	ContentType string
	Size        int64
}

// ConversionService defines the document use cases.
type ConversionService interface {
	// Convert validates, stores and analyzes an upload, returning the completed job.
	Convert(ctx context.Context, p model.Principal, in UploadInput) (*ConversionResult, error)

	// List returns the caller's jobs using limit/offset and a total count.
	List(ctx context.Context, p model.Principal, limit, offset int) (*JobListResult, error)

	// Get returns one of the caller's jobs.
	Get(ctx context.Context, p model.Principal, id string) (model.ConversionJob, error)

	// Delete removes the job's blobs and then its record.
	Delete(ctx context.Context, p model.Principal, id string) error

	// DownloadURL signs a link to the stored PDF.
	DownloadURL(ctx context.Context, p model.Principal, id string) (*SignedURL, error)

	// Content opens the stored PDF for streaming through the API.
	Content(ctx context.Context, p model.Principal, id string) (*FileContent, error)
}

// ConversionDeps are the collaborators of the conversion service.
type ConversionDeps struct {
	Jobs      repository.JobRepository
	Store     storage.Storage
	Gate      *policy.Gate
	Extractor Extractor
	Analyzer  Analyzer
	Metrics   Recorder
	URLTTL    time.Duration
	Now       func() time.Time
}

type conversionService struct {
	ConversionDeps
}

// NewConversionService constructs a new ConversionService.
func NewConversionService(d ConversionDeps) ConversionService {
	if d.Metrics == nil {
		d.Metrics = noopRecorder{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.URLTTL <= 0 {
		d.URLTTL = time.Hour
	}
	return &conversionService{ConversionDeps: d}
}

func (s *conversionService) Convert(ctx context.Context, p model.Principal, in UploadInput) (*ConversionResult, error) {
	if err := intake.Validate(intake.Upload{Present: in.Present, MimeType: in.MimeType, SizeBytes: in.Size}); err != nil {
		return nil, err
	}
	now := s.Now().UTC()
	if _, err := s.Gate.Admit(ctx, p, now); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(in.Content)
	if err != nil {
		s.release(ctx, p, now)
		return nil, apperr.Wrap(err, apperr.UploadError, "failed to read uploaded file")
	}

	job, err := s.Jobs.Create(ctx, conversion.NewJob(p.ID, in.FileName, in.Size, now))
	if err != nil {
		s.release(ctx, p, now)
		return nil, jobError(err, "failed to create job")
	}
	log := logger.C(ctx).With().Str("job_id", job.ID).Logger()

	key := conversion.ObjectKey(p.ID, in.FileName, now)
	if err := s.put(ctx, key, data); err != nil {
		return nil, s.fail(ctx, job, err)
	}

	stored, err := conversion.AttachStorage(job, key, s.Now().UTC())
	if err != nil {
		return nil, apperr.Wrap(err, apperr.InternalError, "failed to record storage")
	}
	processing, err := conversion.BeginAnalysis(stored, s.Now().UTC())
	if err != nil {
		return nil, apperr.Wrap(err, apperr.InternalError, "failed to start analysis")
	}
	if err := s.Jobs.Update(ctx, processing, model.StatusUploading); err != nil {
		return nil, s.fail(ctx, stored, jobError(err, "failed to update job"))
	}
	log.Info().Str("storage_handle", key).Msg("upload stored, analysis started")

	done, err := s.analyze(ctx, processing, data)
	if err != nil {
		return nil, s.fail(ctx, processing, err)
	}
	if err := s.Jobs.Update(ctx, done, model.StatusProcessing); err != nil {
		return nil, s.fail(ctx, processing, jobError(err, "failed to update job"))
	}
	s.Metrics.JobFinished(done.Status)
	log.Info().
		Str("language", string(done.DetectedLanguage)).
		Int("pages", done.PageCount).
		Msg("conversion completed")

	keywords := done.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return &ConversionResult{
		File:     done,
		FileURL:  s.Store.URL(key),
		Analysis: AnalysisView{Summary: done.Summary, Keywords: keywords},
	}, nil
}

// release hands back the quota slot of a request that ended before a job existed.
func (s *conversionService) release(ctx context.Context, p model.Principal, now time.Time) {
	if err := s.Gate.Release(ctx, p, now); err != nil {
		logger.C(ctx).Warn().Err(err).Str("user_id", p.ID).Msg("usage not released")
	}
}

func (s *conversionService) put(ctx context.Context, key string, data []byte) error {
	ctx, span := tracer.Start(ctx, "conversion.store")
	defer span.End()
	span.SetAttributes(attribute.Int("size_bytes", len(data)))

	_, err := s.Store.Put(ctx, key, bytes.NewReader(data), storage.PutObjectOptions{
		Size:        int64(len(data)),
		ContentType: intake.PDFMimeType,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return apperr.Wrap(err, apperr.UploadError, "failed to upload file")
	}
	return nil
}

// analyze runs extraction and analysis on a processing job and returns it completed.
func (s *conversionService) analyze(ctx context.Context, job model.ConversionJob, data []byte) (model.ConversionJob, error) {
	ctx, span := tracer.Start(ctx, "conversion.analyze", trace.WithAttributes(attribute.String("job_id", job.ID)))
	defer span.End()

	doc, err := s.Extractor.Extract(ctx, data)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return job, err
	}
	span.SetAttributes(attribute.Int("page_count", doc.PageCount))
	if job, err = conversion.RecordPages(job, doc.PageCount, s.Now().UTC()); err != nil {
		return job, apperr.Wrap(err, apperr.InternalError, "failed to record pages")
	}

	res, err := s.Analyzer.Analyze(ctx, doc.Text)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return job, err
	}
	done, err := conversion.Complete(job, res, s.Now().UTC())
	if err != nil {
		return job, apperr.Wrap(err, apperr.InternalError, "failed to complete job")
	}
	return done, nil
}

// fail persists the error status for job and returns cause unchanged.
func (s *conversionService) fail(ctx context.Context, job model.ConversionJob, cause error) error {
	kind := apperr.KindOf(cause)
	detail := ""
	if e, ok := apperr.As(cause); ok {
		detail = e.Details()
	}
	failed, err := conversion.Fail(job, kind.Code(), detail, s.Now().UTC())
	if err != nil {
		logger.C(ctx).Error().Err(err).Str("job_id", job.ID).Msg("cannot fail job")
		return cause
	}
	if err := s.Jobs.Update(ctx, failed, job.Status); err != nil {
		logger.C(ctx).Error().Err(err).
			Str("job_id", job.ID).
			Str("storage_handle", job.StorageHandle).
			Msg("failed to persist job error")
	}
	s.Metrics.JobFinished(failed.Status)
	logger.C(ctx).Warn().Err(cause).
		Str("job_id", job.ID).
		Str("code", kind.Code()).
		Msg("conversion failed")
	return cause
}

func (s *conversionService) List(ctx context.Context, p model.Principal, limit, offset int) (*JobListResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.Jobs.ListByUser(ctx, p.ID, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, jobError(err, "failed to list documents")
	}
	return &JobListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *conversionService) Get(ctx context.Context, p model.Principal, id string) (model.ConversionJob, error) {
	return ownedJob(ctx, s.Jobs, p, id)
}

func (s *conversionService) Delete(ctx context.Context, p model.Principal, id string) error {
	job, err := ownedJob(ctx, s.Jobs, p, id)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, key := range []string{job.StorageHandle, job.AudioHandle} {
		if key == "" {
			continue
		}
		g.Go(func() error {
			return s.Store.Delete(gctx, key)
		})
	}
	if err := g.Wait(); err != nil {
		return apperr.Wrap(err, apperr.DeleteError, "failed to delete file")
	}

	if err := s.Jobs.Delete(ctx, job.ID); err != nil {
		return jobError(err, "failed to delete document")
	}
	return nil
}

func (s *conversionService) DownloadURL(ctx context.Context, p model.Principal, id string) (*SignedURL, error) {
	job, err := ownedJob(ctx, s.Jobs, p, id)
	if err != nil {
		return nil, err
	}
	if job.StorageHandle == "" {
		return nil, apperr.New(apperr.JobNotReady, "document has no stored file")
	}
	return signedURL(ctx, s.Store, job.StorageHandle, s.URLTTL)
}

func (s *conversionService) Content(ctx context.Context, p model.Principal, id string) (*FileContent, error) {
	job, err := ownedJob(ctx, s.Jobs, p, id)
	if err != nil {
		return nil, err
	}
	if job.StorageHandle == "" {
		return nil, apperr.New(apperr.JobNotReady, "document has no stored file")
	}
	body, info, err := s.Store.Get(ctx, job.StorageHandle)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.DownloadError, "failed to download file")
	}
	contentType := info.ContentType
	if contentType == "" {
		contentType = intake.PDFMimeType
	}
	return &FileContent{Body: body, FileName: job.FileName, ContentType: contentType, Size: info.Size}, nil
}

// signedURL checks the blob exists before signing a link to it.
func signedURL(ctx context.Context, store storage.Storage, key string, ttl time.Duration) (*SignedURL, error) {
	ok, err := store.Exists(ctx, key)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ExistsError, "failed to check file existence")
	}
	if !ok {
		return nil, apperr.WithDetails(apperr.New(apperr.JobNotFound, "file not found"), key)
	}
	u, err := store.PresignGet(ctx, key, ttl)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.UrlError, "failed to generate file URL")
	}
	return &SignedURL{URL: u, ExpiresIn: ttlSeconds(ttl)}, nil
}
