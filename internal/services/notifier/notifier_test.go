package notifier

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/leadpilot/leadpilot/internal/lib/smtp"
	"github.com/leadpilot/leadpilot/internal/models"
	"github.com/leadpilot/leadpilot/internal/services/channel"
)

type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) GetAccountByUID(ctx context.Context, uid string) (*models.Account, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Connect() (smtp.Client, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(smtp.Client), args.Error(1)
}

func (m *MockTransport) GetSMTPUser() string {
	args := m.Called()
	return args.String(0)
}

type MockSMTPClient struct {
	mock.Mock
}

func (m *MockSMTPClient) Mail(from string) error {
	args := m.Called(from)
	return args.Error(0)
}

func (m *MockSMTPClient) Rcpt(to string) error {
	args := m.Called(to)
	return args.Error(0)
}

func (m *MockSMTPClient) Data() (io.WriteCloser, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.WriteCloser), args.Error(1)
}

func (m *MockSMTPClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockSMTPClient) Quit() error {
	args := m.Called()
	return args.Error(0)
}

type MockSMTPWriter struct {
	mock.Mock
}

func (m *MockSMTPWriter) Write(p []byte) (n int, err error) {
	args := m.Called(p)
	return args.Int(0), args.Error(1)
}

func (m *MockSMTPWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestSendChannelDisconnected(t *testing.T) {
	event := channel.Event{
		Type:       channel.RouteDisconnected,
		AccountUID: "acc-1",
		At:         time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	body, err := json.Marshal(event)
	require.NoError(t, err)

	tests := []struct {
		name          string
		body          []byte
		setupMocks    func(*MockAccountRepository, *MockTransport)
		expectedError bool
	}{
		{
			name: "успех — письмо владельцу аккаунта",
			body: body,
			setupMocks: func(repo *MockAccountRepository, tr *MockTransport) {
				repo.On("GetAccountByUID", mock.Anything, "acc-1").Return(&models.Account{
					UID:      "acc-1",
					Email:    "ivan@example.com",
					Username: "ivan",
				}, nil).Once()

				mockClient := new(MockSMTPClient)
				mockWriter := new(MockSMTPWriter)
				tr.On("GetSMTPUser").Return("noreply@leadpilot.example")
				tr.On("Connect").Return(mockClient, nil).Once()
				mockClient.On("Mail", "noreply@leadpilot.example").Return(nil).Once()
				mockClient.On("Rcpt", "ivan@example.com").Return(nil).Once()
				mockClient.On("Data").Return(mockWriter, nil).Once()
				mockWriter.On("Write", mock.AnythingOfType("[]uint8")).Return(100, nil).Once()
				mockWriter.On("Close").Return(nil).Once()
				mockClient.On("Quit").Return(nil).Once()
				mockClient.On("Close").Return(nil).Once()
			},
			expectedError: false,
		},
		{
			name:          "ошибка — некорректное тело события",
			body:          []byte("not json"),
			setupMocks:    func(repo *MockAccountRepository, tr *MockTransport) {},
			expectedError: true,
		},
		{
			name: "ошибка — аккаунт не найден",
			body: body,
			setupMocks: func(repo *MockAccountRepository, tr *MockTransport) {
				repo.On("GetAccountByUID", mock.Anything, "acc-1").
					Return(nil, assert.AnError).Once()
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockAccountRepository)
			tr := new(MockTransport)
			tt.setupMocks(repo, tr)

			service := New(repo, tr, newNoopLogger())
			err := service.SendChannelDisconnected(tt.body)

			if tt.expectedError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			repo.AssertExpectations(t)
			tr.AssertExpectations(t)
		})
	}
}
