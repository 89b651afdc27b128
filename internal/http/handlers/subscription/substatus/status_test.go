package substatus

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/entitlement-reconciler/internal/http/middlewarectx"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/models"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/services/access"
)

// MockService реализует интерфейс substatus.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Resolve(ctx context.Context, user models.AuthUser) (access.Status, error) {
	args := m.Called(ctx, user)
	return args.Get(0).(access.Status), args.Error(1)
}

func TestStatusHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	tests := []struct {
		name           string
		authorized     bool
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:       "активная подписка",
			authorized: true,
			setupMock: func(m *MockService) {
				m.On("Resolve", mock.Anything,
					models.AuthUser{UID: "user123", Email: "user@example.com", Role: models.RoleUser}).
					Return(access.Status{
						Email:   "user@example.com",
						Premium: true,
						Tier:    "premium",
						Role:    models.RoleUser,
						Reason:  "subscription",
						Status:  "active",
					}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"OK","data":{"email":"user@example.com","premium":true,"tier":"premium","role":"user","reason":"subscription","status":"active"}}`,
		},
		{
			name:       "пользователь без записи",
			authorized: true,
			setupMock: func(m *MockService) {
				m.On("Resolve", mock.Anything, mock.Anything).
					Return(access.Status{
						Email:  "user@example.com",
						Tier:   "free",
						Role:   models.RoleUser,
						Reason: "none",
					}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"OK","data":{"email":"user@example.com","premium":false,"tier":"free","role":"user","reason":"none"}}`,
		},
		{
			name:           "отсутствует авторизация",
			authorized:     false,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"status":"Error","error":"unauthorized"}`,
		},
		{
			name:       "ошибка хранилища",
			authorized: true,
			setupMock: func(m *MockService) {
				m.On("Resolve", mock.Anything, mock.Anything).
					Return(access.Status{}, errors.New("db down")).Once()
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

			req := httptest.NewRequest(http.MethodGet, "/subscription/status", nil)
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
