package discountvalidate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/entitlement-reconciler/internal/services/discount"
)

// MockService реализует интерфейс discountvalidate.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Validate(ctx context.Context, code string) (*discount.Validation, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*discount.Validation), args.Error(1)
}

func TestValidateDiscountHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	tests := []struct {
		name           string
		code           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "действующий промокод",
			code: "SUMMER25",
			setupMock: func(m *MockService) {
				m.On("Validate", mock.Anything, "SUMMER25").
					Return(&discount.Validation{Code: "SUMMER25", Percent: 25}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"OK","data":{"code":"SUMMER25","percent":25}}`,
		},
		{
			name: "промокод не найден",
			code: "UNKNOWN",
			setupMock: func(m *MockService) {
				m.On("Validate", mock.Anything, "UNKNOWN").
					Return(nil, discount.ErrCodeNotFound).Once()
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"status":"Error","error":"discount code not found"}`,
		},
		{
			name: "просроченный промокод",
			code: "OLD",
			setupMock: func(m *MockService) {
				m.On("Validate", mock.Anything, "OLD").
					Return(nil, discount.ErrCodeExpired).Once()
			},
			expectedStatus: http.StatusGone,
			expectedBody:   `{"status":"Error","error":"discount code is not valid"}`,
		},
		{
			name: "исчерпанный лимит",
			code: "USED",
			setupMock: func(m *MockService) {
				m.On("Validate", mock.Anything, "USED").
					Return(nil, discount.ErrCodeExhausted).Once()
			},
			expectedStatus: http.StatusGone,
			expectedBody:   `{"status":"Error","error":"discount code is not valid"}`,
		},
		{
			name: "ошибка хранилища",
			code: "SUMMER25",
			setupMock: func(m *MockService) {
				m.On("Validate", mock.Anything, "SUMMER25").
					Return(nil, errors.New("db down")).Once()
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

			req := httptest.NewRequest(http.MethodGet, "/api/v1/discount/"+tt.code, nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("code", tt.code)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
			mockService.AssertExpectations(t)
		})
	}
}
