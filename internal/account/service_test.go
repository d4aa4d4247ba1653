package account

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/taskman/internal/model"
)

// --- モック ---

type mockAccountRepo struct {
	findByIDFn           func(ctx context.Context, id string) (*model.Account, error)
	findByEmailFn        func(ctx context.Context, email string) (*model.Account, error)
	findByConfirmTokenFn func(ctx context.Context, token string) (*model.Account, error)
	findByRecoverTokenFn func(ctx context.Context, token string) (*model.Account, error)
	createFn             func(ctx context.Context, account *model.Account) error
	updateFn             func(ctx context.Context, account *model.Account) error
}

func (m *mockAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockAccountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}
func (m *mockAccountRepo) FindByConfirmToken(ctx context.Context, token string) (*model.Account, error) {
	if m.findByConfirmTokenFn != nil {
		return m.findByConfirmTokenFn(ctx, token)
	}
	return nil, nil
}
func (m *mockAccountRepo) FindByRecoverToken(ctx context.Context, token string) (*model.Account, error) {
	if m.findByRecoverTokenFn != nil {
		return m.findByRecoverTokenFn(ctx, token)
	}
	return nil, nil
}
func (m *mockAccountRepo) Create(ctx context.Context, account *model.Account) error {
	if m.createFn != nil {
		return m.createFn(ctx, account)
	}
	return nil
}
func (m *mockAccountRepo) Update(ctx context.Context, account *model.Account) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, account)
	}
	return nil
}

type mockGrantRepo struct {
	createFn             func(ctx context.Context, grant *model.Grant) error
	findByAccessTokenFn  func(ctx context.Context, token string) (*model.Grant, error)
	findByRefreshTokenFn func(ctx context.Context, token string) (*model.Grant, error)
	deleteByIDFn         func(ctx context.Context, id string) error
	deleteByAccountIDFn  func(ctx context.Context, accountID string) error
}

func (m *mockGrantRepo) Create(ctx context.Context, grant *model.Grant) error {
	if m.createFn != nil {
		return m.createFn(ctx, grant)
	}
	return nil
}
func (m *mockGrantRepo) FindByAccessToken(ctx context.Context, token string) (*model.Grant, error) {
	if m.findByAccessTokenFn != nil {
		return m.findByAccessTokenFn(ctx, token)
	}
	return nil, nil
}
func (m *mockGrantRepo) FindByRefreshToken(ctx context.Context, token string) (*model.Grant, error) {
	if m.findByRefreshTokenFn != nil {
		return m.findByRefreshTokenFn(ctx, token)
	}
	return nil, nil
}
func (m *mockGrantRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}
func (m *mockGrantRepo) DeleteByAccountID(ctx context.Context, accountID string) error {
	if m.deleteByAccountIDFn != nil {
		return m.deleteByAccountIDFn(ctx, accountID)
	}
	return nil
}

func testConfig() ServiceConfig {
	return ServiceConfig{
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 720 * time.Hour,
	}
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash test password: %v", err)
	}
	return string(hash)
}

// --- テスト ---

// TestSignUp_Success は新規登録でアカウントが作成されることを検証する。
func TestSignUp_Success(t *testing.T) {
	var created *model.Account
	accountRepo := &mockAccountRepo{
		createFn: func(ctx context.Context, account *model.Account) error {
			created = account
			return nil
		},
	}

	svc := NewService(accountRepo, &mockGrantRepo{}, testConfig())

	result, err := svc.SignUp(context.Background(), "a@example.com", "secret123")
	if err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}
	if result.Account.ID == "" {
		t.Error("expected non-empty account ID")
	}
	if result.ConfirmationRequired {
		t.Error("confirmation should not be required by default")
	}
	if created == nil {
		t.Fatal("expected Create to be called")
	}
	if created.Email != "a@example.com" {
		t.Errorf("created email = %q, want %q", created.Email, "a@example.com")
	}
	if created.PasswordHash == "secret123" {
		t.Error("password must not be stored in plain text")
	}
	if !created.Confirmed {
		t.Error("account should be confirmed when confirmation is not required")
	}
}

// TestSignUp_DuplicateEmail はメール重複時にEMAIL_TAKENエラーになることを検証する。
func TestSignUp_DuplicateEmail(t *testing.T) {
	accountRepo := &mockAccountRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.Account, error) {
			return &model.Account{ID: "existing", Email: email}, nil
		},
	}

	svc := NewService(accountRepo, &mockGrantRepo{}, testConfig())

	_, err := svc.SignUp(context.Background(), "a@example.com", "secret123")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeEmailTaken {
		t.Fatalf("expected EMAIL_TAKEN error, got %v", err)
	}
}

// TestSignUp_InvalidInput はローカル検証失敗時にリモート呼び出しが発生しないことを検証する。
func TestSignUp_InvalidInput(t *testing.T) {
	repoCalled := false
	accountRepo := &mockAccountRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.Account, error) {
			repoCalled = true
			return nil, nil
		},
	}

	svc := NewService(accountRepo, &mockGrantRepo{}, testConfig())

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"empty email", "", "secret123"},
		{"malformed email", "not-an-email", "secret123"},
		{"short password", "a@example.com", "short"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.SignUp(context.Background(), tc.email, tc.password)
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidationFailed {
				t.Fatalf("expected VALIDATION_FAILED error, got %v", err)
			}
		})
	}

	if repoCalled {
		t.Error("repository must not be called when local validation fails")
	}
}

// TestSignUp_ConfirmationRequired は確認必須モードでトークンが発行されることを検証する。
func TestSignUp_ConfirmationRequired(t *testing.T) {
	var created *model.Account
	accountRepo := &mockAccountRepo{
		createFn: func(ctx context.Context, account *model.Account) error {
			created = account
			return nil
		},
	}

	cfg := testConfig()
	cfg.RequireEmailConfirmation = true
	svc := NewService(accountRepo, &mockGrantRepo{}, cfg)

	result, err := svc.SignUp(context.Background(), "a@example.com", "secret123")
	if err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}
	if !result.ConfirmationRequired {
		t.Error("expected ConfirmationRequired to be true")
	}
	if created.Confirmed {
		t.Error("account should not be confirmed before token consumption")
	}
	if created.ConfirmToken == "" {
		t.Error("expected a confirmation token to be issued")
	}
}

// TestSignIn_Success は正しい認証情報でGrantが発行されることを検証する。
func TestSignIn_Success(t *testing.T) {
	accountRepo := &mockAccountRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.Account, error) {
			return &model.Account{
				ID:           "acc-1",
				Email:        email,
				PasswordHash: hashOf(t, "secret123"),
				Confirmed:    true,
			}, nil
		},
	}
	var savedGrant *model.Grant
	grantRepo := &mockGrantRepo{
		createFn: func(ctx context.Context, grant *model.Grant) error {
			savedGrant = grant
			return nil
		},
	}

	svc := NewService(accountRepo, grantRepo, testConfig())

	acc, grant, err := svc.SignIn(context.Background(), "a@example.com", "secret123")
	if err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}
	if acc.ID != "acc-1" {
		t.Errorf("account ID = %q, want %q", acc.ID, "acc-1")
	}
	if grant.AccessToken == "" || grant.RefreshToken == "" {
		t.Error("expected non-empty token pair")
	}
	if grant.AccessToken == grant.RefreshToken {
		t.Error("access and refresh tokens must differ")
	}
	if savedGrant == nil {
		t.Fatal("expected grant to be persisted")
	}
	if !grant.AccessExpiresAt.Before(grant.RefreshExpiresAt) {
		t.Error("access token should expire before refresh token")
	}
}

// TestSignIn_WrongPassword は誤パスワードでINVALID_CREDENTIALSになることを検証する。
func TestSignIn_WrongPassword(t *testing.T) {
	accountRepo := &mockAccountRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.Account, error) {
			return &model.Account{
				ID:           "acc-1",
				Email:        email,
				PasswordHash: hashOf(t, "secret123"),
				Confirmed:    true,
			}, nil
		},
	}

	svc := NewService(accountRepo, &mockGrantRepo{}, testConfig())

	_, _, err := svc.SignIn(context.Background(), "a@example.com", "wrong-password")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidCredentials {
		t.Fatalf("expected INVALID_CREDENTIALS error, got %v", err)
	}
}

// TestSignIn_UnknownEmail は未登録メールでも同一のエラーになることを検証する。
// アカウントの存在有無を漏らさないため、エラーコードは誤パスワードと同一でなければならない。
func TestSignIn_UnknownEmail(t *testing.T) {
	svc := NewService(&mockAccountRepo{}, &mockGrantRepo{}, testConfig())

	_, _, err := svc.SignIn(context.Background(), "nobody@example.com", "secret123")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidCredentials {
		t.Fatalf("expected INVALID_CREDENTIALS error, got %v", err)
	}
}

// TestSignIn_Unconfirmed は未確認アカウントのログインが拒否されることを検証する。
func TestSignIn_Unconfirmed(t *testing.T) {
	accountRepo := &mockAccountRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.Account, error) {
			return &model.Account{
				ID:           "acc-1",
				Email:        email,
				PasswordHash: hashOf(t, "secret123"),
				Confirmed:    false,
			}, nil
		},
	}

	cfg := testConfig()
	cfg.RequireEmailConfirmation = true
	svc := NewService(accountRepo, &mockGrantRepo{}, cfg)

	_, _, err := svc.SignIn(context.Background(), "a@example.com", "secret123")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeEmailNotConfirmed {
		t.Fatalf("expected EMAIL_NOT_CONFIRMED error, got %v", err)
	}
}

// TestRefresh_RotatesGrant はリフレッシュで旧Grantが削除され新Grantが発行されることを検証する。
func TestRefresh_RotatesGrant(t *testing.T) {
	deletedID := ""
	grantRepo := &mockGrantRepo{
		findByRefreshTokenFn: func(ctx context.Context, token string) (*model.Grant, error) {
			return &model.Grant{ID: "grant-old", AccountID: "acc-1", RefreshToken: token}, nil
		},
		deleteByIDFn: func(ctx context.Context, id string) error {
			deletedID = id
			return nil
		},
	}
	accountRepo := &mockAccountRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Account, error) {
			return &model.Account{ID: id, Email: "a@example.com", Confirmed: true}, nil
		},
	}

	svc := NewService(accountRepo, grantRepo, testConfig())

	_, grant, err := svc.Refresh(context.Background(), "refresh-token")
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if deletedID != "grant-old" {
		t.Errorf("expected old grant to be deleted, deleted = %q", deletedID)
	}
	if grant.ID == "grant-old" {
		t.Error("expected a new grant, got the old one")
	}
}

// TestRefresh_UnknownToken は無効なリフレッシュトークンがINVALID_TOKENになることを検証する。
func TestRefresh_UnknownToken(t *testing.T) {
	svc := NewService(&mockAccountRepo{}, &mockGrantRepo{}, testConfig())

	_, _, err := svc.Refresh(context.Background(), "bogus")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidToken {
		t.Fatalf("expected INVALID_TOKEN error, got %v", err)
	}
}

// TestSignOut_Idempotent は未知のアクセストークンでのサインアウトがエラーにならないことを検証する。
func TestSignOut_Idempotent(t *testing.T) {
	svc := NewService(&mockAccountRepo{}, &mockGrantRepo{}, testConfig())

	if err := svc.SignOut(context.Background(), "already-gone"); err != nil {
		t.Fatalf("SignOut of unknown token should be a no-op, got: %v", err)
	}
}

// TestConfirm_ConsumesToken は確認トークンの消費でアカウントが有効化されることを検証する。
func TestConfirm_ConsumesToken(t *testing.T) {
	var updated *model.Account
	accountRepo := &mockAccountRepo{
		findByConfirmTokenFn: func(ctx context.Context, token string) (*model.Account, error) {
			return &model.Account{ID: "acc-1", ConfirmToken: token}, nil
		},
		updateFn: func(ctx context.Context, account *model.Account) error {
			updated = account
			return nil
		},
	}

	svc := NewService(accountRepo, &mockGrantRepo{}, testConfig())

	if err := svc.Confirm(context.Background(), "confirm-token"); err != nil {
		t.Fatalf("Confirm returned error: %v", err)
	}
	if updated == nil || !updated.Confirmed {
		t.Fatal("expected account to be confirmed")
	}
	if updated.ConfirmToken != "" {
		t.Error("expected confirmation token to be cleared")
	}
}

// TestResetPassword_RevokesGrants はパスワード再設定で全Grantが失効することを検証する。
func TestResetPassword_RevokesGrants(t *testing.T) {
	revokedAccount := ""
	accountRepo := &mockAccountRepo{
		findByRecoverTokenFn: func(ctx context.Context, token string) (*model.Account, error) {
			return &model.Account{ID: "acc-1", RecoverToken: token, PasswordHash: hashOf(t, "old-password")}, nil
		},
	}
	grantRepo := &mockGrantRepo{
		deleteByAccountIDFn: func(ctx context.Context, accountID string) error {
			revokedAccount = accountID
			return nil
		},
	}

	svc := NewService(accountRepo, grantRepo, testConfig())

	if err := svc.ResetPassword(context.Background(), "recover-token", "new-password-1"); err != nil {
		t.Fatalf("ResetPassword returned error: %v", err)
	}
	if revokedAccount != "acc-1" {
		t.Errorf("expected grants revoked for acc-1, got %q", revokedAccount)
	}
}

// TestRecover_UnknownEmail は未登録メールへの再設定要求がエラーにならないことを検証する。
func TestRecover_UnknownEmail(t *testing.T) {
	svc := NewService(&mockAccountRepo{}, &mockGrantRepo{}, testConfig())

	if err := svc.Recover(context.Background(), "nobody@example.com"); err != nil {
		t.Fatalf("Recover for unknown email should not error, got: %v", err)
	}
}
