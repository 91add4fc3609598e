package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docvoice/internal/auth"
)

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, token, issuer, audience string) (auth.Claims, error) {
	args := m.Called(ctx, token, issuer, audience)
	return args.Get(0).(auth.Claims), args.Error(1)
}
