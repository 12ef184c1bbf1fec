package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// mockHealthChecker はテスト用のDB疎通確認モック。
type mockHealthChecker struct {
	pingFn func(ctx context.Context) error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.pingFn(ctx)
}

// compile-time interface check
var _ HealthChecker = (*mockHealthChecker)(nil)

// DB疎通成功で200が返ることを検証
func TestHealthHandler_Healthy_Returns200(t *testing.T) {
	checker := &mockHealthChecker{
		pingFn: func(ctx context.Context) error { return nil },
	}
	h := NewHealthHandler(checker)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.Status != "ok" || resp.Database != "ok" {
		t.Errorf("unexpected body: %+v", resp)
	}
}

// DB疎通失敗で503が返ることを検証
func TestHealthHandler_DatabaseDown_Returns503(t *testing.T) {
	checker := &mockHealthChecker{
		pingFn: func(ctx context.Context) error { return errors.New("connection refused") },
	}
	h := NewHealthHandler(checker)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.Status != "degraded" || resp.Database != "unreachable" {
		t.Errorf("unexpected body: %+v", resp)
	}
}

// タイムアウト付きコンテキストが渡されることを検証
func TestHealthHandler_PassesDeadlineContext(t *testing.T) {
	checker := &mockHealthChecker{
		pingFn: func(ctx context.Context) error {
			if _, ok := ctx.Deadline(); !ok {
				t.Error("expected context with deadline")
			}
			return nil
		},
	}
	h := NewHealthHandler(checker)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}
