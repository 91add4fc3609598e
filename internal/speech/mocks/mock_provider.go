package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docvoice/internal/speech"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Synthesize(ctx context.Context, req speech.SynthesisRequest) (speech.SynthesisResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(speech.SynthesisResult), args.Error(1)
}

func (m *MockProvider) Voices(ctx context.Context) ([]speech.ProviderVoice, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]speech.ProviderVoice), args.Error(1)
}
