package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"bantay-backend/internal/models"
)

// MockSMSSender is a mock implementation of the SMSSender interface
type MockSMSSender struct {
	mock.Mock
}

func (m *MockSMSSender) Send(ctx context.Context, number, message string) error {
	args := m.Called(ctx, number, message)
	return args.Error(0)
}

// MockMailer is a mock implementation of AlertMailer and AccountMailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendAlertEmail(ctx context.Context, to string, alert *models.Alert, loc *time.Location) error {
	args := m.Called(ctx, to, alert, loc)
	return args.Error(0)
}

func (m *MockMailer) SendPasswordResetEmail(ctx context.Context, to, token string) error {
	args := m.Called(ctx, to, token)
	return args.Error(0)
}

func (m *MockMailer) SendVerificationEmail(ctx context.Context, to, token string) error {
	args := m.Called(ctx, to, token)
	return args.Error(0)
}

// MockAlertListCache is a mock implementation of the AlertListCache interface
type MockAlertListCache struct {
	mock.Mock
}

func (m *MockAlertListCache) GetAlertList(ctx context.Context, key string) ([]*models.Alert, bool, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]*models.Alert), args.Bool(1), args.Error(2)
}

func (m *MockAlertListCache) SetAlertList(ctx context.Context, key string, alerts []*models.Alert, ttl time.Duration, tags ...string) error {
	args := m.Called(ctx, key, alerts, ttl, tags)
	return args.Error(0)
}

func (m *MockAlertListCache) InvalidateByTag(ctx context.Context, tag string) error {
	args := m.Called(ctx, tag)
	return args.Error(0)
}
