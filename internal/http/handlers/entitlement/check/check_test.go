package check

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/entitlement-engine/internal/http/middlewarectx"
	"github.com/magabrotheeeer/entitlement-engine/internal/models"
)

// MockService реализует интерфейс check.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Evaluate(ctx context.Context, userUID string, action models.Action, now time.Time) (models.EligibilityResult, error) {
	args := m.Called(ctx, userUID, action, now)
	return args.Get(0).(models.EligibilityResult), args.Error(1)
}

func TestCheckHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tests := []struct {
		name           string
		url            string
		userUID        string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:    "успешная проверка в платном режиме",
			url:     "/entitlements/check?action=post",
			userUID: "uid-1",
			setupMock: func(m *MockService) {
				m.On("Evaluate", mock.Anything, "uid-1", models.ActionPost, mock.Anything).
					Return(models.Eligible(models.ModePaid), nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"eligible":true`,
		},
		{
			name:    "отказ с причиной",
			url:     "/entitlements/check?action=prompt",
			userUID: "uid-1",
			setupMock: func(m *MockService) {
				m.On("Evaluate", mock.Anything, "uid-1", models.ActionPrompt, mock.Anything).
					Return(models.Denied(models.ReasonExpired), nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"reason":"expired"`,
		},
		{
			name:           "неизвестное действие",
			url:            "/entitlements/check?action=upload",
			userUID:        "uid-1",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"unknown action"}`,
		},
		{
			name:           "нет uid в контексте",
			url:            "/entitlements/check?action=post",
			userUID:        "",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"status":"Error","error":"unauthorized"}`,
		},
		{
			name:    "ошибка сервиса",
			url:     "/entitlements/check?action=post",
			userUID: "uid-1",
			setupMock: func(m *MockService) {
				m.On("Evaluate", mock.Anything, "uid-1", models.ActionPost, mock.Anything).
					Return(models.EligibilityResult{}, errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"status":"Error","error":"could not evaluate entitlement"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodPost, tt.url, nil)
			if tt.userUID != "" {
				req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserUID, tt.userUID))
			}

			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())

			mockService.AssertExpectations(t)
		})
	}
}
