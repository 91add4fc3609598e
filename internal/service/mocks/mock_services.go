package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docvoice/internal/model"
	"docvoice/internal/service"
)

type MockConversionService struct {
	mock.Mock
}

func (m *MockConversionService) Convert(ctx context.Context, p model.Principal, in service.UploadInput) (*service.ConversionResult, error) {
	args := m.Called(ctx, p, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ConversionResult), args.Error(1)
}

func (m *MockConversionService) List(ctx context.Context, p model.Principal, limit, offset int) (*service.JobListResult, error) {
	args := m.Called(ctx, p, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.JobListResult), args.Error(1)
}

func (m *MockConversionService) Get(ctx context.Context, p model.Principal, id string) (model.ConversionJob, error) {
	args := m.Called(ctx, p, id)
	return args.Get(0).(model.ConversionJob), args.Error(1)
}

func (m *MockConversionService) Delete(ctx context.Context, p model.Principal, id string) error {
	args := m.Called(ctx, p, id)
	return args.Error(0)
}

func (m *MockConversionService) DownloadURL(ctx context.Context, p model.Principal, id string) (*service.SignedURL, error) {
	args := m.Called(ctx, p, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SignedURL), args.Error(1)
}

func (m *MockConversionService) Content(ctx context.Context, p model.Principal, id string) (*service.FileContent, error) {
	args := m.Called(ctx, p, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.FileContent), args.Error(1)
}

type MockSpeechService struct {
	mock.Mock
}

func (m *MockSpeechService) Synthesize(ctx context.Context, p model.Principal, id string, req service.SpeechRequest) (*service.SpeechResult, error) {
	args := m.Called(ctx, p, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SpeechResult), args.Error(1)
}

func (m *MockSpeechService) AudioURL(ctx context.Context, p model.Principal, id string) (*service.SignedURL, error) {
	args := m.Called(ctx, p, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SignedURL), args.Error(1)
}

func (m *MockSpeechService) ValidateText(ctx context.Context, text string, lang model.Language) (model.TextValidation, error) {
	args := m.Called(ctx, text, lang)
	return args.Get(0).(model.TextValidation), args.Error(1)
}

func (m *MockSpeechService) Voices(ctx context.Context, language string) ([]model.VoiceGroup, error) {
	args := m.Called(ctx, language)
	groups, _ := args.Get(0).([]model.VoiceGroup)
	return groups, args.Error(1)
}
