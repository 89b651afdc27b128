package adminmanualsub

import (
	"bytes"
	"context"
	"encoding/json"
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
	"github.com/magabrotheeeer/entitlement-reconciler/internal/services/admin"
)

// MockService реализует интерфейс adminmanualsub.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) ManualSubscription(ctx context.Context, caller models.AuthUser, req admin.ManualSubscriptionRequest) error {
	args := m.Called(ctx, caller, req)
	return args.Error(0)
}

func TestManualSubscriptionHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	tests := []struct {
		name           string
		requestBody    interface{}
		role           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:        "успешная выдача подписки",
			requestBody: admin.ManualSubscriptionRequest{TargetEmail: "user@example.com", Grant: true, Tier: "premium"},
			role:        models.RoleAdmin,
			setupMock: func(m *MockService) {
				m.On("ManualSubscription", mock.Anything,
					models.AuthUser{UID: "admin123", Email: "admin@example.com", Role: models.RoleAdmin},
					admin.ManualSubscriptionRequest{TargetEmail: "user@example.com", Grant: true, Tier: "premium"}).
					Return(nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"OK"}`,
		},
		{
			name:        "успешный отзыв подписки",
			requestBody: admin.ManualSubscriptionRequest{TargetEmail: "user@example.com", Grant: false},
			role:        models.RoleAdmin,
			setupMock: func(m *MockService) {
				m.On("ManualSubscription", mock.Anything, mock.Anything,
					admin.ManualSubscriptionRequest{TargetEmail: "user@example.com", Grant: false}).
					Return(nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"OK"}`,
		},
		{
			name:           "невалидный email",
			requestBody:    admin.ManualSubscriptionRequest{TargetEmail: "not-an-email", Grant: true},
			role:           models.RoleAdmin,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `{"status":"Error","error":"field TargetEmail must be a valid email"}`,
		},
		{
			name:        "недопустимый уровень",
			requestBody: admin.ManualSubscriptionRequest{TargetEmail: "user@example.com", Grant: true, Tier: "platinum"},
			role:        models.RoleAdmin,
			setupMock: func(m *MockService) {
				m.On("ManualSubscription", mock.Anything, mock.Anything, mock.Anything).
					Return(admin.ErrInvalidTier).Once()
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"invalid tier"}`,
		},
		{
			name:        "недостаточно прав",
			requestBody: admin.ManualSubscriptionRequest{TargetEmail: "user@example.com", Grant: true},
			role:        models.RoleUser,
			setupMock: func(m *MockService) {
				m.On("ManualSubscription", mock.Anything, mock.Anything, mock.Anything).
					Return(admin.ErrForbidden).Once()
			},
			expectedStatus: http.StatusForbidden,
			expectedBody:   `{"status":"Error","error":"access denied"}`,
		},
		{
			name: "выдача со сроком и причиной",
			requestBody: admin.ManualSubscriptionRequest{TargetEmail: "user@example.com", Grant: true,
				ExpirationDays: 30, Reason: "support compensation"},
			role: models.RoleAdmin,
			setupMock: func(m *MockService) {
				m.On("ManualSubscription", mock.Anything, mock.Anything,
					admin.ManualSubscriptionRequest{TargetEmail: "user@example.com", Grant: true,
						ExpirationDays: 30, Reason: "support compensation"}).
					Return(nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"OK"}`,
		},
		{
			name: "отрицательный срок отклоняется валидатором",
			requestBody: admin.ManualSubscriptionRequest{TargetEmail: "user@example.com", Grant: true,
				ExpirationDays: -5},
			role:           models.RoleAdmin,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `{"status":"Error","error":"field ExpirationDays is out of range"}`,
		},
		{
			name:        "запись не удалась",
			requestBody: admin.ManualSubscriptionRequest{TargetEmail: "user@example.com", Grant: true},
			role:        models.RoleAdmin,
			setupMock: func(m *MockService) {
				m.On("ManualSubscription", mock.Anything, mock.Anything, mock.Anything).
					Return(context.DeadlineExceeded).Once()
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"status":"Error","error":"failed to update entitlement"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			body, err := json.Marshal(tt.requestBody)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/admin/subscription", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			uid, email := "admin123", "admin@example.com"
			if tt.role != models.RoleAdmin {
				uid, email = "user123", "user@example.com"
			}
			ctx := context.WithValue(req.Context(), middlewarectx.UserUID, uid)
			ctx = context.WithValue(ctx, middlewarectx.UserEmail, email)
			ctx = context.WithValue(ctx, middlewarectx.Role, tt.role)
			req = req.WithContext(ctx)

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
			mockService.AssertExpectations(t)
		})
	}
}
