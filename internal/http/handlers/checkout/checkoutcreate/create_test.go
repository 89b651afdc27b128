package checkoutcreate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/entitlement-reconciler/internal/http/middlewarectx"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/models"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/services/checkout"
)

// MockService реализует интерфейс checkoutcreate.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) CreateSession(ctx context.Context, user models.AuthUser, req checkout.Request) (string, error) {
	args := m.Called(ctx, user, req)
	return args.String(0), args.Error(1)
}

func TestCreateHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	tests := []struct {
		name           string
		requestBody    interface{}
		authorized     bool
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:        "успешное создание сессии",
			requestBody: CreateCheckoutRequestApp{Tier: "premium", Billing: "monthly"},
			authorized:  true,
			setupMock: func(m *MockService) {
				m.On("CreateSession", mock.Anything,
					models.AuthUser{UID: "user123", Email: "user@example.com", Role: models.RoleUser},
					checkout.Request{Tier: "premium", Billing: "monthly"}).
					Return("https://pay.example.com/cs_1", nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"OK","data":{"checkout_url":"https://pay.example.com/cs_1"}}`,
		},
		{
			name:           "невалидные данные",
			requestBody:    CreateCheckoutRequestApp{Billing: "weekly"},
			authorized:     true,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `{"status":"Error","error":"field Tier is a required field, field Billing must be one of the allowed values"}`,
		},
		{
			name:           "некорректный JSON",
			requestBody:    "not a json",
			authorized:     true,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"invalid request body"}`,
		},
		{
			name:           "отсутствует авторизация",
			requestBody:    CreateCheckoutRequestApp{Tier: "premium"},
			authorized:     false,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"status":"Error","error":"unauthorized"}`,
		},
		{
			name:        "запрошен недопустимый уровень",
			requestBody: CreateCheckoutRequestApp{Tier: "platinum"},
			authorized:  true,
			setupMock: func(m *MockService) {
				m.On("CreateSession", mock.Anything, mock.Anything, mock.Anything).
					Return("", checkout.ErrInvalidTier).Once()
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"invalid tier"}`,
		},
		{
			name:        "ошибка конфигурации цен",
			requestBody: CreateCheckoutRequestApp{Tier: "standard", Billing: "annual"},
			authorized:  true,
			setupMock: func(m *MockService) {
				m.On("CreateSession", mock.Anything, mock.Anything, mock.Anything).
					Return("", checkout.ErrInvalidPriceConfiguration).Once()
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"status":"Error","error":"price configuration error"}`,
		},
		{
			name:        "ошибка провайдера",
			requestBody: CreateCheckoutRequestApp{Tier: "premium"},
			authorized:  true,
			setupMock: func(m *MockService) {
				m.On("CreateSession", mock.Anything, mock.Anything, mock.Anything).
					Return("", errors.New("provider unavailable")).Once()
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"status":"Error","error":"internal error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			var body []byte
			var err error
			if str, ok := tt.requestBody.(string); ok {
				body = []byte(str)
			} else {
				body, err = json.Marshal(tt.requestBody)
				require.NoError(t, err)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			if tt.authorized {
				ctx := context.WithValue(req.Context(), middlewarectx.UserUID, "user123")
				ctx = context.WithValue(ctx, middlewarectx.UserEmail, "user@example.com")
				ctx = context.WithValue(ctx, middlewarectx.Role, models.RoleUser)
				req = req.WithContext(ctx)
			}

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
			mockService.AssertExpectations(t)
		})
	}
}
