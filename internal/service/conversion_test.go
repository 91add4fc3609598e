package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docvoice/internal/analysis"
	analysisMocks "docvoice/internal/analysis/mocks"
	"docvoice/internal/apperr"
	"docvoice/internal/conversion"
	"docvoice/internal/extract"
	"docvoice/internal/model"
	"docvoice/internal/policy"
	"docvoice/internal/repository"
	repoMocks "docvoice/internal/repository/mocks"
	"docvoice/internal/storage"
	storeMocks "docvoice/internal/storage/mocks"
)

var (
	fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	freeUser = model.Principal{ID: "user-1", Email: "a@b.c", Tier: model.TierFree}
)

type fakeExtractor struct {
	doc extract.Document
	err error
}

func (f fakeExtractor) Extract(context.Context, []byte) (extract.Document, error) {
	return f.doc, f.err
}

type fakeRecorder struct {
	jobs      []model.JobStatus
	synthesis []error
}

func (f *fakeRecorder) JobFinished(s model.JobStatus) { f.jobs = append(f.jobs, s) }
func (f *fakeRecorder) SynthesisDone(err error)       { f.synthesis = append(f.synthesis, err) }

type conversionFixture struct {
	jobs     *repoMocks.MockJobRepository
	usage    *repoMocks.MockUsageRepository
	store    *storeMocks.MockStorage
	provider *analysisMocks.MockProvider
	metrics  *fakeRecorder
	svc      ConversionService
}

func newConversionFixture(ext Extractor) *conversionFixture {
	f := &conversionFixture{
		jobs:     new(repoMocks.MockJobRepository),
		usage:    new(repoMocks.MockUsageRepository),
		store:    new(storeMocks.MockStorage),
		provider: new(analysisMocks.MockProvider),
		metrics:  &fakeRecorder{},
	}
	f.svc = NewConversionService(ConversionDeps{
		Jobs:      f.jobs,
		Store:     f.store,
		Gate:      policy.NewGate(f.usage),
		Extractor: ext,
		Analyzer:  analysis.NewAnalyzer(f.provider, 0, nil),
		Metrics:   f.metrics,
		URLTTL:    time.Hour,
		Now:       func() time.Time { return fixedNow },
	})
	return f
}

func pdfUpload(body string) UploadInput {
	return UploadInput{
		Present:  true,
		FileName: "report.pdf",
		MimeType: "application/pdf",
		Size:     int64(len(body)),
		Content:  strings.NewReader(body),
	}
}

func statusIs(s model.JobStatus) any {
	return mock.MatchedBy(func(j model.ConversionJob) bool { return j.Status == s })
}

// expectAdmission stubs quota, job creation and upload for the happy path up to analysis.
func (f *conversionFixture) expectAdmission(body string) model.ConversionJob {
	day := policy.Day(fixedNow)
	created := conversion.NewJob(freeUser.ID, "report.pdf", int64(len(body)), fixedNow)
	key := conversion.ObjectKey(freeUser.ID, "report.pdf", fixedNow)

	f.usage.On("ReserveForDay", mock.Anything, freeUser.ID, day, policy.DailyFreeConversions).Return(true, nil)
	f.jobs.On("Create", mock.Anything, created).Return(created, nil)
	f.store.On("Put", mock.Anything, key, mock.Anything, storage.PutObjectOptions{
		Size:        int64(len(body)),
		ContentType: "application/pdf",
	}).Return(storage.ObjectInfo{Key: key}, nil)
	f.store.On("URL", key).Return("https://blob/" + key).Maybe()
	f.jobs.On("Update", mock.Anything, statusIs(model.StatusProcessing), model.StatusUploading).Return(nil)
	return created
}

func TestConversionService_Convert_Completed(t *testing.T) {
	ctx := context.Background()
	body := "%PDF-1.4 fake"
	f := newConversionFixture(fakeExtractor{doc: extract.Document{Text: "Привет мир", PageCount: 2}})
	f.expectAdmission(body)

	f.provider.On("Complete", mock.Anything, analysis.SystemPrompt, mock.MatchedBy(func(u string) bool {
		return strings.Contains(u, "Привет мир")
	})).Return("Language: ru\nSummary: Текст\nTopics: a, b, c", nil)

	var stored model.ConversionJob
	f.jobs.On("Update", mock.Anything, statusIs(model.StatusCompleted), model.StatusProcessing).
		Run(func(args mock.Arguments) { stored = args.Get(1).(model.ConversionJob) }).
		Return(nil)

	res, err := f.svc.Convert(ctx, freeUser, pdfUpload(body))

	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, res.File.Status)
	assert.Equal(t, model.LanguageRU, res.File.DetectedLanguage)
	assert.Equal(t, []string{"a", "b", "c"}, res.File.Keywords)
	assert.Equal(t, 2, res.File.PageCount)
	assert.Equal(t, AnalysisView{Summary: "Текст", Keywords: []string{"a", "b", "c"}}, res.Analysis)
	assert.Equal(t, "https://blob/"+conversion.ObjectKey(freeUser.ID, "report.pdf", fixedNow), res.FileURL)
	assert.Equal(t, res.File, stored)
	assert.Equal(t, []model.JobStatus{model.StatusCompleted}, f.metrics.jobs)
	f.jobs.AssertExpectations(t)
	f.store.AssertExpectations(t)
	f.usage.AssertExpectations(t)
}

func TestConversionService_Convert_EmptyAnalysis(t *testing.T) {
	ctx := context.Background()
	body := "%PDF-1.4 fake"
	f := newConversionFixture(fakeExtractor{doc: extract.Document{Text: "text", PageCount: 1}})
	f.expectAdmission(body)

	f.provider.On("Complete", mock.Anything, analysis.SystemPrompt, mock.Anything).Return("  \n", nil)

	var failed model.ConversionJob
	f.jobs.On("Update", mock.Anything, statusIs(model.StatusError), model.StatusProcessing).
		Run(func(args mock.Arguments) { failed = args.Get(1).(model.ConversionJob) }).
		Return(nil)

	_, err := f.svc.Convert(ctx, freeUser, pdfUpload(body))

	require.Error(t, err)
	assert.Equal(t, apperr.AnalysisEmpty, apperr.KindOf(err))
	assert.Equal(t, model.StatusError, failed.Status)
	assert.Equal(t, "OPENAI_ANALYSIS_ERROR", failed.ErrorCode)
	assert.Equal(t, "no analysis result", failed.ErrorDetail)
	assert.Empty(t, failed.DetectedLanguage)
	assert.Equal(t, []model.JobStatus{model.StatusError}, f.metrics.jobs)
	f.jobs.AssertExpectations(t)
}

func TestConversionService_Convert_ExtractionFails(t *testing.T) {
	ctx := context.Background()
	body := "not really a pdf"
	f := newConversionFixture(fakeExtractor{err: apperr.New(apperr.ExtractionError, "failed to read PDF")})
	f.expectAdmission(body)
	f.jobs.On("Update", mock.Anything, mock.MatchedBy(func(j model.ConversionJob) bool {
		return j.Status == model.StatusError && j.ErrorCode == "PDF_EXTRACTION_ERROR"
	}), model.StatusProcessing).Return(nil)

	_, err := f.svc.Convert(ctx, freeUser, pdfUpload(body))

	assert.Equal(t, apperr.ExtractionError, apperr.KindOf(err))
	f.provider.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
	f.jobs.AssertExpectations(t)
}

func TestConversionService_Convert_UploadFails(t *testing.T) {
	ctx := context.Background()
	body := "%PDF-1.4"
	f := newConversionFixture(fakeExtractor{})
	day := policy.Day(fixedNow)
	created := conversion.NewJob(freeUser.ID, "report.pdf", int64(len(body)), fixedNow)

	f.usage.On("ReserveForDay", mock.Anything, freeUser.ID, day, policy.DailyFreeConversions).Return(true, nil)
	f.jobs.On("Create", mock.Anything, created).Return(created, nil)
	f.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(storage.ObjectInfo{}, errors.New("bucket unavailable"))
	f.jobs.On("Update", mock.Anything, mock.MatchedBy(func(j model.ConversionJob) bool {
		return j.Status == model.StatusError && j.ErrorCode == "STORAGE_UPLOAD_ERROR" && j.StorageHandle == ""
	}), model.StatusUploading).Return(nil)

	_, err := f.svc.Convert(ctx, freeUser, pdfUpload(body))

	assert.Equal(t, apperr.UploadError, apperr.KindOf(err))
	f.jobs.AssertExpectations(t)
}

func TestConversionService_Convert_CreateFailsReleasesQuota(t *testing.T) {
	ctx := context.Background()
	body := "%PDF"
	f := newConversionFixture(fakeExtractor{})
	day := policy.Day(fixedNow)

	f.usage.On("ReserveForDay", mock.Anything, freeUser.ID, day, policy.DailyFreeConversions).Return(true, nil)
	f.jobs.On("Create", mock.Anything, mock.Anything).Return(model.ConversionJob{}, errors.New("conn reset"))
	f.usage.On("ReleaseForDay", mock.Anything, freeUser.ID, day).Return(nil)

	_, err := f.svc.Convert(ctx, freeUser, pdfUpload(body))

	assert.Equal(t, apperr.InternalError, apperr.KindOf(err))
	f.usage.AssertExpectations(t)
	f.store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConversionService_Convert_RecordUpdateFails(t *testing.T) {
	ctx := context.Background()

	t.Run("after storage", func(t *testing.T) {
		body := "%PDF"
		f := newConversionFixture(fakeExtractor{})
		day := policy.Day(fixedNow)
		created := conversion.NewJob(freeUser.ID, "report.pdf", int64(len(body)), fixedNow)
		key := conversion.ObjectKey(freeUser.ID, "report.pdf", fixedNow)

		f.usage.On("ReserveForDay", mock.Anything, freeUser.ID, day, policy.DailyFreeConversions).Return(true, nil)
		f.jobs.On("Create", mock.Anything, created).Return(created, nil)
		f.store.On("Put", mock.Anything, key, mock.Anything, mock.Anything).Return(storage.ObjectInfo{Key: key}, nil)
		f.jobs.On("Update", mock.Anything, statusIs(model.StatusProcessing), model.StatusUploading).
			Return(errors.New("conn reset")).Once()
		f.jobs.On("Update", mock.Anything, mock.MatchedBy(func(j model.ConversionJob) bool {
			return j.Status == model.StatusError && j.StorageHandle == key && j.ErrorCode == "INTERNAL_ERROR"
		}), model.StatusUploading).Return(nil).Once()

		_, err := f.svc.Convert(ctx, freeUser, pdfUpload(body))

		assert.Equal(t, apperr.InternalError, apperr.KindOf(err))
		assert.Equal(t, []model.JobStatus{model.StatusError}, f.metrics.jobs)
		f.jobs.AssertExpectations(t)
		f.usage.AssertNotCalled(t, "ReleaseForDay", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("after analysis", func(t *testing.T) {
		body := "%PDF"
		f := newConversionFixture(fakeExtractor{doc: extract.Document{Text: "hello", PageCount: 1}})
		f.expectAdmission(body)
		f.provider.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("Summary: hi", nil)
		f.jobs.On("Update", mock.Anything, statusIs(model.StatusCompleted), model.StatusProcessing).
			Return(errors.New("conn reset"))
		f.jobs.On("Update", mock.Anything, statusIs(model.StatusError), model.StatusProcessing).Return(nil)

		_, err := f.svc.Convert(ctx, freeUser, pdfUpload(body))

		assert.Equal(t, apperr.InternalError, apperr.KindOf(err))
		assert.Equal(t, []model.JobStatus{model.StatusError}, f.metrics.jobs)
		f.jobs.AssertExpectations(t)
	})
}

func TestConversionService_Convert_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("intake runs before quota", func(t *testing.T) {
		f := newConversionFixture(fakeExtractor{})
		in := pdfUpload("x")
		in.MimeType = "image/png"

		_, err := f.svc.Convert(ctx, freeUser, in)

		assert.Equal(t, apperr.InvalidType, apperr.KindOf(err))
		f.usage.AssertNotCalled(t, "ReserveForDay", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("no file", func(t *testing.T) {
		f := newConversionFixture(fakeExtractor{})

		_, err := f.svc.Convert(ctx, freeUser, UploadInput{})

		assert.Equal(t, apperr.NoFile, apperr.KindOf(err))
	})

	t.Run("free quota exhausted", func(t *testing.T) {
		f := newConversionFixture(fakeExtractor{})
		f.usage.On("ReserveForDay", mock.Anything, freeUser.ID, policy.Day(fixedNow), policy.DailyFreeConversions).Return(false, nil)

		_, err := f.svc.Convert(ctx, freeUser, pdfUpload("x"))

		assert.Equal(t, apperr.SubscriptionRequired, apperr.KindOf(err))
		assert.Equal(t, 403, apperr.StatusOf(err))
		f.jobs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("concurrent writer wins", func(t *testing.T) {
		body := "%PDF"
		f := newConversionFixture(fakeExtractor{})
		day := policy.Day(fixedNow)
		created := conversion.NewJob(freeUser.ID, "report.pdf", int64(len(body)), fixedNow)
		f.usage.On("ReserveForDay", mock.Anything, freeUser.ID, day, policy.DailyFreeConversions).Return(true, nil)
		f.jobs.On("Create", mock.Anything, created).Return(created, nil)
		f.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(storage.ObjectInfo{}, nil)
		f.jobs.On("Update", mock.Anything, mock.Anything, model.StatusUploading).Return(repository.ErrStaleJob)

		_, err := f.svc.Convert(ctx, freeUser, pdfUpload(body))

		assert.Equal(t, apperr.JobConflict, apperr.KindOf(err))
		assert.Equal(t, 409, apperr.StatusOf(err))
	})
}

func TestConversionService_Convert_PremiumSkipsQuota(t *testing.T) {
	ctx := context.Background()
	body := "%PDF"
	premium := model.Principal{ID: "user-1", Tier: model.TierPremium}
	f := newConversionFixture(fakeExtractor{doc: extract.Document{Text: "hello", PageCount: 1}})
	created := conversion.NewJob(premium.ID, "report.pdf", int64(len(body)), fixedNow)

	f.jobs.On("Create", mock.Anything, created).Return(created, nil)
	f.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(storage.ObjectInfo{}, nil)
	f.store.On("URL", mock.Anything).Return("")
	f.jobs.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.provider.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("Summary: hi", nil)

	res, err := f.svc.Convert(ctx, premium, pdfUpload(body))

	require.NoError(t, err)
	assert.Equal(t, model.LanguageEN, res.File.DetectedLanguage)
	assert.NotNil(t, res.Analysis.Keywords)
	f.usage.AssertNotCalled(t, "ReserveForDay", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.usage.AssertNotCalled(t, "ReleaseForDay", mock.Anything, mock.Anything, mock.Anything)
}

func TestConversionService_List(t *testing.T) {
	ctx := context.Background()
	f := newConversionFixture(fakeExtractor{})
	f.jobs.On("ListByUser", ctx, freeUser.ID, repository.PageQuery{Limit: 100, Offset: 0}).
		Return(&repository.PageResult[model.ConversionJob]{Items: []model.ConversionJob{{ID: "j1"}}, Total: 1}, nil)

	res, err := f.svc.List(ctx, freeUser, 500, -3)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.Len(t, res.Items, 1)
}

func TestConversionService_Get(t *testing.T) {
	ctx := context.Background()
	f := newConversionFixture(fakeExtractor{})
	f.jobs.On("FindByID", ctx, "mine").Return(model.ConversionJob{ID: "mine", UserID: freeUser.ID}, nil)
	f.jobs.On("FindByID", ctx, "theirs").Return(model.ConversionJob{ID: "theirs", UserID: "user-2"}, nil)
	f.jobs.On("FindByID", ctx, "gone").Return(model.ConversionJob{}, repository.ErrJobNotFound)
	f.jobs.On("FindByID", ctx, "broken").Return(model.ConversionJob{}, errors.New("conn reset"))

	job, err := f.svc.Get(ctx, freeUser, "mine")
	require.NoError(t, err)
	assert.Equal(t, "mine", job.ID)

	_, err = f.svc.Get(ctx, freeUser, "theirs")
	assert.Equal(t, apperr.JobNotFound, apperr.KindOf(err))

	_, err = f.svc.Get(ctx, freeUser, "gone")
	assert.Equal(t, apperr.JobNotFound, apperr.KindOf(err))

	_, err = f.svc.Get(ctx, freeUser, "broken")
	assert.Equal(t, apperr.InternalError, apperr.KindOf(err))

	_, err = f.svc.Get(ctx, freeUser, "")
	assert.Equal(t, apperr.InvalidRequest, apperr.KindOf(err))
}

func TestConversionService_Delete(t *testing.T) {
	ctx := context.Background()
	job := model.ConversionJob{ID: "j1", UserID: freeUser.ID, StorageHandle: "user-1/1-a.pdf", AudioHandle: "user-1/j1/audio-x.mp3"}

	t.Run("removes both blobs then the record", func(t *testing.T) {
		f := newConversionFixture(fakeExtractor{})
		f.jobs.On("FindByID", ctx, "j1").Return(job, nil)
		f.store.On("Delete", mock.Anything, job.StorageHandle).Return(nil)
		f.store.On("Delete", mock.Anything, job.AudioHandle).Return(nil)
		f.jobs.On("Delete", ctx, "j1").Return(nil)

		require.NoError(t, f.svc.Delete(ctx, freeUser, "j1"))
		f.store.AssertExpectations(t)
		f.jobs.AssertExpectations(t)
	})

	t.Run("blob failure keeps the record", func(t *testing.T) {
		f := newConversionFixture(fakeExtractor{})
		f.jobs.On("FindByID", ctx, "j1").Return(job, nil)
		f.store.On("Delete", mock.Anything, job.StorageHandle).Return(errors.New("denied"))
		f.store.On("Delete", mock.Anything, job.AudioHandle).Return(nil)

		err := f.svc.Delete(ctx, freeUser, "j1")
		assert.Equal(t, apperr.DeleteError, apperr.KindOf(err))
		f.jobs.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})
}

func TestConversionService_DownloadURL(t *testing.T) {
	ctx := context.Background()
	job := model.ConversionJob{ID: "j1", UserID: freeUser.ID, StorageHandle: "user-1/1-a.pdf"}

	t.Run("signed", func(t *testing.T) {
		f := newConversionFixture(fakeExtractor{})
		f.jobs.On("FindByID", ctx, "j1").Return(job, nil)
		f.store.On("Exists", ctx, job.StorageHandle).Return(true, nil)
		f.store.On("PresignGet", ctx, job.StorageHandle, time.Hour).Return("https://signed", nil)

		got, err := f.svc.DownloadURL(ctx, freeUser, "j1")
		require.NoError(t, err)
		assert.Equal(t, &SignedURL{URL: "https://signed", ExpiresIn: 3600}, got)
	})

	t.Run("blob missing", func(t *testing.T) {
		f := newConversionFixture(fakeExtractor{})
		f.jobs.On("FindByID", ctx, "j1").Return(job, nil)
		f.store.On("Exists", ctx, job.StorageHandle).Return(false, nil)

		_, err := f.svc.DownloadURL(ctx, freeUser, "j1")
		assert.Equal(t, apperr.JobNotFound, apperr.KindOf(err))
	})

	t.Run("existence check fails", func(t *testing.T) {
		f := newConversionFixture(fakeExtractor{})
		f.jobs.On("FindByID", ctx, "j1").Return(job, nil)
		f.store.On("Exists", ctx, job.StorageHandle).Return(false, errors.New("timeout"))

		_, err := f.svc.DownloadURL(ctx, freeUser, "j1")
		assert.Equal(t, apperr.ExistsError, apperr.KindOf(err))
	})

	t.Run("signing fails", func(t *testing.T) {
		f := newConversionFixture(fakeExtractor{})
		f.jobs.On("FindByID", ctx, "j1").Return(job, nil)
		f.store.On("Exists", ctx, job.StorageHandle).Return(true, nil)
		f.store.On("PresignGet", ctx, job.StorageHandle, time.Hour).Return("", errors.New("no creds"))

		_, err := f.svc.DownloadURL(ctx, freeUser, "j1")
		assert.Equal(t, apperr.UrlError, apperr.KindOf(err))
	})
}

func TestConversionService_Content(t *testing.T) {
	ctx := context.Background()
	stored := model.ConversionJob{ID: "j1", UserID: freeUser.ID, FileName: "report.pdf", StorageHandle: "user-1/1-report.pdf"}

	t.Run("streams the stored file", func(t *testing.T) {
		f := newConversionFixture(fakeExtractor{})
		f.jobs.On("FindByID", ctx, "j1").Return(stored, nil)
		f.store.On("Get", ctx, stored.StorageHandle).
			Return(io.NopCloser(strings.NewReader("%PDF")), storage.ObjectInfo{Size: 4}, nil)

		got, err := f.svc.Content(ctx, freeUser, "j1")

		require.NoError(t, err)
		defer got.Body.Close()
		assert.Equal(t, "report.pdf", got.FileName)
		assert.Equal(t, "application/pdf", got.ContentType)
		assert.Equal(t, int64(4), got.Size)
	})

	t.Run("download failure", func(t *testing.T) {
		f := newConversionFixture(fakeExtractor{})
		f.jobs.On("FindByID", ctx, "j1").Return(stored, nil)
		f.store.On("Get", ctx, stored.StorageHandle).
			Return(nil, storage.ObjectInfo{}, errors.New("bucket unavailable"))

		_, err := f.svc.Content(ctx, freeUser, "j1")

		assert.Equal(t, apperr.DownloadError, apperr.KindOf(err))
		assert.Equal(t, 500, apperr.StatusOf(err))
	})

	t.Run("nothing stored yet", func(t *testing.T) {
		f := newConversionFixture(fakeExtractor{})
		f.jobs.On("FindByID", ctx, "j2").Return(model.ConversionJob{ID: "j2", UserID: freeUser.ID}, nil)

		_, err := f.svc.Content(ctx, freeUser, "j2")

		assert.Equal(t, apperr.JobNotReady, apperr.KindOf(err))
		f.store.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})
}
