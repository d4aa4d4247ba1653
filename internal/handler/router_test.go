package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/middleware"
	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/security"
)

// mockAuthenticator はTokenAuthenticatorのモック実装。
type mockAuthenticator struct {
	authenticateFn func(ctx context.Context, accessToken string) (*model.Grant, error)
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, accessToken string) (*model.Grant, error) {
	return m.authenticateFn(ctx, accessToken)
}

// mockHealthChecker はHealthCheckerのモック実装。
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(_ context.Context) error {
	return m.err
}

// newTestRouter はテスト用の依存関係でルーターを構築する。
func newTestRouter(t *testing.T, authenticator middleware.TokenAuthenticator, objectiveRepo *mockObjectiveRepo) http.Handler {
	t.Helper()

	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     rate.Limit(1000),
		GeneralBurst:    1000,
		MutationRate:    rate.Limit(1000),
		MutationBurst:   1000,
		CleanupInterval: time.Hour,
	})
	t.Cleanup(rl.Stop)

	reg := prometheus.NewRegistry()

	return NewRouter(&RouterDeps{
		Authenticator:     authenticator,
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		Logger:            slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
		AccountService:    &mockAccountService{},
		ObjectiveRepo:     objectiveRepo,
		RatingRepo:        &mockRatingRepo{},
		Sanitizer:         security.NewTextSanitizer(),
		Collector:         metrics.NewCollector(reg),
		Gatherer:          reg,
		HealthChecker:     &mockHealthChecker{},
	})
}

// TestRouter_ProtectedRouteRequiresAuth は認証なしの/api/*アクセスが401になることを確認する。
func TestRouter_ProtectedRouteRequiresAuth(t *testing.T) {
	router := newTestRouter(t, &mockAuthenticator{
		authenticateFn: func(_ context.Context, _ string) (*model.Grant, error) {
			return nil, nil
		},
	}, &mockObjectiveRepo{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/objectives", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
}

// TestRouter_AuthenticatedListFlow は有効なトークンで一覧取得が通ることを確認する。
func TestRouter_AuthenticatedListFlow(t *testing.T) {
	router := newTestRouter(t, &mockAuthenticator{
		authenticateFn: func(_ context.Context, token string) (*model.Grant, error) {
			if token == "valid-token" {
				return &model.Grant{ID: "grant-1", AccountID: "account-1"}, nil
			}
			return nil, nil
		},
	}, &mockObjectiveRepo{
		listByOwnerFn: func(_ context.Context, ownerID string) ([]*model.Objective, error) {
			return []*model.Objective{{ID: "obj-1", OwnerID: ownerID, Title: "散歩", Category: model.CategoryPersonal}}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/objectives", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("expected X-Request-Id header from logging middleware")
	}
}

// TestRouter_Healthz はヘルスチェックエンドポイントの応答を確認する。
func TestRouter_Healthz(t *testing.T) {
	router := newTestRouter(t, &mockAuthenticator{
		authenticateFn: func(_ context.Context, _ string) (*model.Grant, error) { return nil, nil },
	}, &mockObjectiveRepo{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
}

// TestRouter_MetricsEndpoint は/metricsがPrometheus形式で応答することを確認する。
func TestRouter_MetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, &mockAuthenticator{
		authenticateFn: func(_ context.Context, _ string) (*model.Grant, error) { return nil, nil },
	}, &mockObjectiveRepo{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
}

// TestRouter_CORSPreflight はOPTIONSプリフライトが認証なしで204を返すことを確認する。
func TestRouter_CORSPreflight(t *testing.T) {
	router := newTestRouter(t, &mockAuthenticator{
		authenticateFn: func(_ context.Context, _ string) (*model.Grant, error) { return nil, nil },
	}, &mockObjectiveRepo{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/objectives", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", rec.Code)
	}
}
