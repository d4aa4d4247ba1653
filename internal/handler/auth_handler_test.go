package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/taskman/internal/account"
	"github.com/hitoshi/taskman/internal/model"
)

// mockAccountService はAccountServiceInterfaceのモック実装。
type mockAccountService struct {
	signUpFn        func(ctx context.Context, email, password string) (*account.SignUpResult, error)
	signInFn        func(ctx context.Context, email, password string) (*model.Account, *model.Grant, error)
	refreshFn       func(ctx context.Context, refreshToken string) (*model.Account, *model.Grant, error)
	signOutFn       func(ctx context.Context, accessToken string) error
	getAccountFn    func(ctx context.Context, accountID string) (*model.Account, error)
	confirmFn       func(ctx context.Context, token string) error
	recoverFn       func(ctx context.Context, email string) error
	resetPasswordFn func(ctx context.Context, token, newPassword string) error
}

func (m *mockAccountService) SignUp(ctx context.Context, email, password string) (*account.SignUpResult, error) {
	return m.signUpFn(ctx, email, password)
}

func (m *mockAccountService) SignIn(ctx context.Context, email, password string) (*model.Account, *model.Grant, error) {
	return m.signInFn(ctx, email, password)
}

func (m *mockAccountService) Refresh(ctx context.Context, refreshToken string) (*model.Account, *model.Grant, error) {
	return m.refreshFn(ctx, refreshToken)
}

func (m *mockAccountService) SignOut(ctx context.Context, accessToken string) error {
	return m.signOutFn(ctx, accessToken)
}

func (m *mockAccountService) GetAccount(ctx context.Context, accountID string) (*model.Account, error) {
	return m.getAccountFn(ctx, accountID)
}

func (m *mockAccountService) Confirm(ctx context.Context, token string) error {
	return m.confirmFn(ctx, token)
}

func (m *mockAccountService) Recover(ctx context.Context, email string) error {
	return m.recoverFn(ctx, email)
}

func (m *mockAccountService) ResetPassword(ctx context.Context, token, newPassword string) error {
	return m.resetPasswordFn(ctx, token, newPassword)
}

// mockCollector はMetricsCollectorのモック実装。記録された操作を保持する。
type mockCollector struct {
	mu           sync.Mutex
	authAttempts []string
	objectiveOps []string
	ratings      []int
}

func (m *mockCollector) RecordHTTPStatus(statusCode int)              {}
func (m *mockCollector) RecordRequestLatency(duration time.Duration) {}

func (m *mockCollector) RecordAuthAttempt(operation string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := "failure"
	if success {
		result = "success"
	}
	m.authAttempts = append(m.authAttempts, operation+":"+result)
}

func (m *mockCollector) RecordObjectiveOperation(operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objectiveOps = append(m.objectiveOps, operation)
}

func (m *mockCollector) RecordRatingSubmitted(stars int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ratings = append(m.ratings, stars)
}

// jsonBody はリクエストボディのJSONを生成する。
func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal request body: %v", err)
	}
	return bytes.NewBuffer(b)
}

// TestRegister_Success は登録成功時に201とアカウント情報が返ることを確認する。
func TestRegister_Success(t *testing.T) {
	service := &mockAccountService{
		signUpFn: func(_ context.Context, email, password string) (*account.SignUpResult, error) {
			return &account.SignUpResult{
				Account:              &model.Account{ID: "account-1", Email: email},
				ConfirmationRequired: true,
			}, nil
		},
	}
	collector := &mockCollector{}
	h := NewAuthHandler(service, collector)

	req := httptest.NewRequest(http.MethodPost, "/auth/register", jsonBody(t, credentialsRequest{
		Email:    "user@example.com",
		Password: "password123",
	}))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp signUpResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Account.Email != "user@example.com" {
		t.Errorf("expected email user@example.com, got %s", resp.Account.Email)
	}
	if !resp.ConfirmationRequired {
		t.Error("expected confirmation_required to be true")
	}
	if len(collector.authAttempts) != 1 || collector.authAttempts[0] != "signup:success" {
		t.Errorf("expected signup:success to be recorded, got %v", collector.authAttempts)
	}
}

// TestRegister_DuplicateEmail はメールアドレス重複時に409が返ることを確認する。
func TestRegister_DuplicateEmail(t *testing.T) {
	service := &mockAccountService{
		signUpFn: func(_ context.Context, _, _ string) (*account.SignUpResult, error) {
			return nil, model.NewEmailTakenError()
		},
	}
	h := NewAuthHandler(service, &mockCollector{})

	req := httptest.NewRequest(http.MethodPost, "/auth/register", jsonBody(t, credentialsRequest{
		Email:    "taken@example.com",
		Password: "password123",
	}))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", rec.Code)
	}

	var body apiErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if body.Code != model.ErrCodeEmailTaken {
		t.Errorf("expected code %s, got %s", model.ErrCodeEmailTaken, body.Code)
	}
}

// TestRegister_InvalidBody はJSON解析失敗時に400が返ることを確認する。
func TestRegister_InvalidBody(t *testing.T) {
	h := NewAuthHandler(&mockAccountService{}, &mockCollector{})

	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString("{invalid"))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
}

// TestLogin_Success はログイン成功時にトークンの組が返ることを確認する。
func TestLogin_Success(t *testing.T) {
	now := time.Now()
	service := &mockAccountService{
		signInFn: func(_ context.Context, email, _ string) (*model.Account, *model.Grant, error) {
			return &model.Account{ID: "account-1", Email: email},
				&model.Grant{
					ID:               "grant-1",
					AccountID:        "account-1",
					AccessToken:      "access-token",
					RefreshToken:     "refresh-token",
					AccessExpiresAt:  now.Add(time.Hour),
					RefreshExpiresAt: now.Add(720 * time.Hour),
				}, nil
		},
	}
	h := NewAuthHandler(service, &mockCollector{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", jsonBody(t, credentialsRequest{
		Email:    "user@example.com",
		Password: "password123",
	}))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp sessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.AccessToken != "access-token" {
		t.Errorf("expected access token in response, got %s", resp.AccessToken)
	}
	if resp.RefreshToken != "refresh-token" {
		t.Errorf("expected refresh token in response, got %s", resp.RefreshToken)
	}
}

// TestLogin_InvalidCredentials は認証失敗時に401が返り、
// 失敗がメトリクスに記録されることを確認する。
func TestLogin_InvalidCredentials(t *testing.T) {
	service := &mockAccountService{
		signInFn: func(_ context.Context, _, _ string) (*model.Account, *model.Grant, error) {
			return nil, nil, model.NewInvalidCredentialsError()
		},
	}
	collector := &mockCollector{}
	h := NewAuthHandler(service, collector)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", jsonBody(t, credentialsRequest{
		Email:    "user@example.com",
		Password: "wrong",
	}))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
	if len(collector.authAttempts) != 1 || collector.authAttempts[0] != "signin:failure" {
		t.Errorf("expected signin:failure to be recorded, got %v", collector.authAttempts)
	}
}

// TestRefresh_InvalidToken は無効なリフレッシュトークンに401が返ることを確認する。
func TestRefresh_InvalidToken(t *testing.T) {
	service := &mockAccountService{
		refreshFn: func(_ context.Context, _ string) (*model.Account, *model.Grant, error) {
			return nil, nil, model.NewInvalidTokenError()
		},
	}
	h := NewAuthHandler(service, &mockCollector{})

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", jsonBody(t, refreshRequest{
		RefreshToken: "stale-token",
	}))
	rec := httptest.NewRecorder()

	h.Refresh(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
}

// TestLogout_WithoutToken はトークンなしのログアウトも204を返すことを確認する（冪等）。
func TestLogout_WithoutToken(t *testing.T) {
	service := &mockAccountService{
		signOutFn: func(_ context.Context, _ string) error {
			t.Error("SignOut should not be called without a token")
			return nil
		},
	}
	h := NewAuthHandler(service, &mockCollector{})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	rec := httptest.NewRecorder()

	h.Logout(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", rec.Code)
	}
}

// TestLogout_WithToken はBearerトークン付きのログアウトがSignOutへ委譲されることを確認する。
func TestLogout_WithToken(t *testing.T) {
	var gotToken string
	service := &mockAccountService{
		signOutFn: func(_ context.Context, accessToken string) error {
			gotToken = accessToken
			return nil
		},
	}
	h := NewAuthHandler(service, &mockCollector{})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer session-token")
	rec := httptest.NewRecorder()

	h.Logout(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", rec.Code)
	}
	if gotToken != "session-token" {
		t.Errorf("expected token session-token, got %s", gotToken)
	}
}

// TestRecover_AlwaysAccepted は未登録メールアドレスでも202が返ることを確認する。
func TestRecover_AlwaysAccepted(t *testing.T) {
	service := &mockAccountService{
		recoverFn: func(_ context.Context, _ string) error {
			return nil
		},
	}
	h := NewAuthHandler(service, &mockCollector{})

	req := httptest.NewRequest(http.MethodPost, "/auth/recover", jsonBody(t, recoverRequest{
		Email: "unknown@example.com",
	}))
	rec := httptest.NewRecorder()

	h.Recover(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Errorf("expected status 202, got %d", rec.Code)
	}
}

// TestReset_InvalidToken は無効な再設定トークンに401が返ることを確認する。
func TestReset_InvalidToken(t *testing.T) {
	service := &mockAccountService{
		resetPasswordFn: func(_ context.Context, _, _ string) error {
			return model.NewInvalidTokenError()
		},
	}
	h := NewAuthHandler(service, &mockCollector{})

	req := httptest.NewRequest(http.MethodPost, "/auth/reset", jsonBody(t, resetRequest{
		Token:       "bad-token",
		NewPassword: "newpassword123",
	}))
	rec := httptest.NewRecorder()

	h.Reset(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
}
