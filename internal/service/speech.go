package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"

	"docvoice/internal/apperr"
	"docvoice/internal/conversion"
	"docvoice/internal/logger"
	"docvoice/internal/model"
	"docvoice/internal/repository"
	"docvoice/internal/storage"
)

const audioContentType = "audio/mpeg"

// SpeechRequest asks for the audio rendition of a completed job.
// An empty Text falls back to the job summary.
type SpeechRequest struct {
	Text     string
	Optimize bool
	Settings model.AudioSettings
}

// SpeechResult is returned by a successful synthesis.
type SpeechResult struct {
	File     model.ConversionJob `json:"file"`
	AudioURL string              `json:"audioUrl"`
}

// SpeechService defines the audio use cases.
type SpeechService interface {
	// Synthesize renders speech for a completed job and attaches the audio to it.
	Synthesize(ctx context.Context, p model.Principal, id string, req SpeechRequest) (*SpeechResult, error)

	// AudioURL signs a link to the job's audio.
	AudioURL(ctx context.Context, p model.Principal, id string) (*SignedURL, error)

	// ValidateText runs a trial synthesis.
	ValidateText(ctx context.Context, text string, lang model.Language) (model.TextValidation, error)

	// Voices lists the voice catalogue filtered by locale prefix.
	Voices(ctx context.Context, language string) ([]model.VoiceGroup, error)
}

// SpeechDeps are the collaborators of the speech service.
type SpeechDeps struct {
	Jobs     repository.JobRepository
	Store    storage.Storage
	Speaker  Speaker
	Analyzer Analyzer
	Metrics  Recorder
	URLTTL   time.Duration
	Now      func() time.Time
}

type speechService struct {
	SpeechDeps
}

// NewSpeechService constructs a new SpeechService.
func NewSpeechService(d SpeechDeps) SpeechService {
	if d.Metrics == nil {
		d.Metrics = noopRecorder{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.URLTTL <= 0 {
		d.URLTTL = time.Hour
	}
	return &speechService{SpeechDeps: d}
}

// AudioKey is the blob key of one rendered audio file.
func AudioKey(userID, jobID string) string {
	return fmt.Sprintf("%s/%s/audio-%s.mp3", userID, jobID, uuid.NewString())
}

func (s *speechService) Synthesize(ctx context.Context, p model.Principal, id string, req SpeechRequest) (*SpeechResult, error) {
	job, err := ownedJob(ctx, s.Jobs, p, id)
	if err != nil {
		return nil, err
	}
	if job.Status != model.StatusCompleted {
		return nil, apperr.WithDetails(apperr.New(apperr.JobNotReady, "document is not ready for speech"), string(job.Status))
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		text = job.Summary
	}
	if text == "" {
		return nil, apperr.New(apperr.InvalidRequest, "no text to synthesize")
	}
	if req.Optimize {
		if text, err = s.Analyzer.OptimizeForSpeech(ctx, text); err != nil {
			return nil, err
		}
	}

	settings := req.Settings
	if settings.Language == "" {
		settings.Language = job.DetectedLanguage
	}

	audio, err := s.synthesize(ctx, text, settings)
	if err != nil {
		return nil, err
	}

	key := AudioKey(p.ID, job.ID)
	if _, err := s.Store.Put(ctx, key, bytes.NewReader(audio), storage.PutObjectOptions{
		Size:        int64(len(audio)),
		ContentType: audioContentType,
	}); err != nil {
		return nil, apperr.Wrap(err, apperr.UploadError, "failed to upload audio")
	}

	updated, err := conversion.AttachAudio(job, key, s.Now().UTC())
	if err != nil {
		return nil, apperr.Wrap(err, apperr.InternalError, "failed to attach audio")
	}
	log := logger.C(ctx).With().Str("job_id", job.ID).Logger()
	if err := s.Jobs.Update(ctx, updated, model.StatusCompleted); err != nil {
		if derr := s.Store.Delete(ctx, key); derr != nil {
			log.Warn().Err(derr).Str("audio_handle", key).Msg("orphaned audio not removed")
		}
		return nil, jobError(err, "failed to update job")
	}

	if job.AudioHandle != "" && job.AudioHandle != key {
		if err := s.Store.Delete(ctx, job.AudioHandle); err != nil {
			log.Warn().Err(err).Str("audio_handle", job.AudioHandle).Msg("previous audio not removed")
		}
	}

	u, err := s.Store.PresignGet(ctx, key, s.URLTTL)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.UrlError, "failed to generate audio URL")
	}
	log.Info().Int("audio_bytes", len(audio)).Msg("speech attached")
	return &SpeechResult{File: updated, AudioURL: u}, nil
}

func (s *speechService) synthesize(ctx context.Context, text string, settings model.AudioSettings) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "speech.synthesize")
	defer span.End()

	audio, err := s.Speaker.Synthesize(ctx, text, settings)
	s.Metrics.SynthesisDone(err)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return audio, nil
}

func (s *speechService) AudioURL(ctx context.Context, p model.Principal, id string) (*SignedURL, error) {
	job, err := ownedJob(ctx, s.Jobs, p, id)
	if err != nil {
		return nil, err
	}
	if job.AudioHandle == "" {
		return nil, apperr.New(apperr.JobNotReady, "no audio for this document")
	}
	return signedURL(ctx, s.Store, job.AudioHandle, s.URLTTL)
}

func (s *speechService) ValidateText(ctx context.Context, text string, lang model.Language) (model.TextValidation, error) {
	return s.Speaker.ValidateText(ctx, text, lang)
}

func (s *speechService) Voices(ctx context.Context, language string) ([]model.VoiceGroup, error) {
	return s.Speaker.ListVoices(ctx, language)
}
