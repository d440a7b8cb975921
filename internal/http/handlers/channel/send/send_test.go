package send

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/leadpilot/leadpilot/internal/http/middlewarectx"
	"github.com/leadpilot/leadpilot/internal/models"
	"github.com/leadpilot/leadpilot/internal/services/channel"
	"github.com/leadpilot/leadpilot/internal/services/usage"
)

// MockService реализует интерфейс send.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Send(ctx context.Context, accountUID string, to []string, text string) (int, error) {
	args := m.Called(ctx, accountUID, to, text)
	return args.Int(0), args.Error(1)
}

// MockGuard реализует интерфейс send.Guard
type MockGuard struct {
	mock.Mock
}

func (m *MockGuard) Consume(ctx context.Context, accountUID, resource string, qty int) (int, error) {
	args := m.Called(ctx, accountUID, resource, qty)
	return args.Int(0), args.Error(1)
}

func (m *MockGuard) Refund(ctx context.Context, accountUID, resource string, qty int) {
	m.Called(ctx, accountUID, resource, qty)
}

func TestSendHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tests := []struct {
		name           string
		requestBody    interface{}
		accountUID     string
		setupMocks     func(*MockService, *MockGuard)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:        "одиночное сообщение списывает квоту messages",
			requestBody: Request{To: []string{"+79001234567"}, Text: "Здравствуйте!"},
			accountUID:  "acc-1",
			setupMocks: func(s *MockService, g *MockGuard) {
				g.On("Consume", mock.Anything, "acc-1", models.ResourceMessages, 1).Return(1, nil)
				s.On("Send", mock.Anything, "acc-1", []string{"+79001234567"}, "Здравствуйте!").Return(1, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"OK","data":{"sent":1,"resource":"messages"}}`,
		},
		{
			name:        "рассылка списывает квоту massMessages",
			requestBody: Request{To: []string{"+79001", "+79002", "+79003"}, Text: "Акция"},
			accountUID:  "acc-1",
			setupMocks: func(s *MockService, g *MockGuard) {
				g.On("Consume", mock.Anything, "acc-1", models.ResourceMassMessages, 3).Return(3, nil)
				s.On("Send", mock.Anything, "acc-1", []string{"+79001", "+79002", "+79003"}, "Акция").Return(3, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"OK","data":{"sent":3,"resource":"massMessages"}}`,
		},
		{
			name:        "недоставленные сообщения возвращают квоту",
			requestBody: Request{To: []string{"+79001", "+79002"}, Text: "Акция"},
			accountUID:  "acc-1",
			setupMocks: func(s *MockService, g *MockGuard) {
				g.On("Consume", mock.Anything, "acc-1", models.ResourceMassMessages, 2).Return(2, nil)
				s.On("Send", mock.Anything, "acc-1", []string{"+79001", "+79002"}, "Акция").
					Return(1, assert.AnError)
				g.On("Refund", mock.Anything, "acc-1", models.ResourceMassMessages, 1).Return()
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"status":"Error","error":"failed to send messages"}`,
		},
		{
			name:        "канал не подключен",
			requestBody: Request{To: []string{"+79001"}, Text: "Здравствуйте!"},
			accountUID:  "acc-1",
			setupMocks: func(s *MockService, g *MockGuard) {
				g.On("Consume", mock.Anything, "acc-1", models.ResourceMessages, 1).Return(1, nil)
				s.On("Send", mock.Anything, "acc-1", []string{"+79001"}, "Здравствуйте!").
					Return(0, channel.ErrNotConnected)
				g.On("Refund", mock.Anything, "acc-1", models.ResourceMessages, 1).Return()
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `{"status":"Error","error":"channel is not connected"}`,
		},
		{
			name:        "квота тарифа исчерпана",
			requestBody: Request{To: []string{"+79001"}, Text: "Здравствуйте!"},
			accountUID:  "acc-1",
			setupMocks: func(s *MockService, g *MockGuard) {
				g.On("Consume", mock.Anything, "acc-1", models.ResourceMessages, 1).
					Return(50, &usage.LimitExceededError{Resource: models.ResourceMessages, Current: 50, Limit: 50})
			},
			expectedStatus: http.StatusTooManyRequests,
		},
		{
			name:           "пустой список получателей",
			requestBody:    Request{To: []string{}, Text: "Здравствуйте!"},
			accountUID:     "acc-1",
			setupMocks:     func(_ *MockService, _ *MockGuard) {},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "отсутствует авторизация",
			requestBody:    Request{To: []string{"+79001"}, Text: "Здравствуйте!"},
			accountUID:     "",
			setupMocks:     func(_ *MockService, _ *MockGuard) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"status":"Error","error":"unauthorized"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			mockGuard := new(MockGuard)
			tt.setupMocks(mockService, mockGuard)

			handler := New(logger, mockService, mockGuard)

			var body []byte
			var err error
			if str, ok := tt.requestBody.(string); ok {
				body = []byte(str)
			} else {
				body, err = json.Marshal(tt.requestBody)
				require.NoError(t, err)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/channel/send", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			ctx := context.WithValue(req.Context(), middlewarectx.AccountUID, tt.accountUID)
			ctx = context.WithValue(ctx, middleware.RequestIDKey, "req-id")
			req = req.WithContext(ctx)

			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedBody != "" {
				assert.JSONEq(t, tt.expectedBody, w.Body.String())
			}
			mockService.AssertExpectations(t)
			mockGuard.AssertExpectations(t)
		})
	}
}
