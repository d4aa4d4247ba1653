// Package account はアカウント登録・認証・トークン発行のビジネスロジックを提供する。
package account

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/repository"
)

// パスワードの最小文字数
const minPasswordLength = 8

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	AccessTokenTTL           time.Duration
	RefreshTokenTTL          time.Duration
	RequireEmailConfirmation bool
}

// Service はアカウントに関するビジネスロジックを提供する。
type Service struct {
	accountRepo repository.AccountRepository
	grantRepo   repository.GrantRepository
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	accountRepo repository.AccountRepository,
	grantRepo repository.GrantRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		accountRepo: accountRepo,
		grantRepo:   grantRepo,
		config:      config,
	}
}

// SignUpResult はアカウント登録の結果を表す。
// ConfirmationRequiredがtrueの場合、メール確認が完了するまでログインできない。
type SignUpResult struct {
	Account              *model.Account
	ConfirmationRequired bool
}

// SignUp は新規アカウントを登録する。
// メールアドレス重複時はEMAIL_TAKENエラーを返す。
// メール確認が必要な設定の場合は確認トークンを発行する（配送は運用側の責務）。
func (s *Service) SignUp(ctx context.Context, email, password string) (*SignUpResult, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	existing, err := s.accountRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing account: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailTakenError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	account := &model.Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		Confirmed:    !s.config.RequireEmailConfirmation,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if s.config.RequireEmailConfirmation {
		token, err := generateToken()
		if err != nil {
			return nil, fmt.Errorf("failed to generate confirmation token: %w", err)
		}
		account.ConfirmToken = token
	}

	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	slog.Info("new account created",
		slog.String("account_id", account.ID),
		slog.String("email", account.Email),
		slog.Bool("confirmation_required", s.config.RequireEmailConfirmation),
	)

	return &SignUpResult{
		Account:              account,
		ConfirmationRequired: s.config.RequireEmailConfirmation,
	}, nil
}

// SignIn はメールアドレスとパスワードで認証し、トークンを発行する。
// 認証情報の不一致はINVALID_CREDENTIALSエラーを返し、
// アカウントの存在有無を区別しない。
func (s *Service) SignIn(ctx context.Context, email, password string) (*model.Account, *model.Grant, error) {
	account, err := s.accountRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, nil, model.NewInvalidCredentialsError()
	}

	if s.config.RequireEmailConfirmation && !account.Confirmed {
		return nil, nil, model.NewEmailNotConfirmedError()
	}

	grant, err := s.issueGrant(ctx, account.ID)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("account signed in", slog.String("account_id", account.ID))
	return account, grant, nil
}

// Refresh はリフレッシュトークンを検証し、新しいGrantへローテーションする。
// 消費されたリフレッシュトークンは以後無効になる。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*model.Account, *model.Grant, error) {
	old, err := s.grantRepo.FindByRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find grant: %w", err)
	}
	if old == nil {
		return nil, nil, model.NewInvalidTokenError()
	}

	account, err := s.accountRepo.FindByID(ctx, old.AccountID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, nil, model.NewInvalidTokenError()
	}

	if err := s.grantRepo.DeleteByID(ctx, old.ID); err != nil {
		return nil, nil, fmt.Errorf("failed to rotate grant: %w", err)
	}

	grant, err := s.issueGrant(ctx, account.ID)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("grant refreshed", slog.String("account_id", account.ID))
	return account, grant, nil
}

// SignOut はアクセストークンに対応するGrantを失効させる。
// 既に失効している場合もエラーにしない（冪等）。
func (s *Service) SignOut(ctx context.Context, accessToken string) error {
	grant, err := s.grantRepo.FindByAccessToken(ctx, accessToken)
	if err != nil {
		return fmt.Errorf("failed to find grant: %w", err)
	}
	if grant == nil {
		return nil
	}

	if err := s.grantRepo.DeleteByID(ctx, grant.ID); err != nil {
		return fmt.Errorf("failed to delete grant: %w", err)
	}

	slog.Info("account signed out", slog.String("account_id", grant.AccountID))
	return nil
}

// Authenticate はアクセストークンを検証し、対応するGrantを返す。
// 無効・期限切れの場合はnilを返す（エラーではない）。
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*model.Grant, error) {
	grant, err := s.grantRepo.FindByAccessToken(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to find grant: %w", err)
	}
	return grant, nil
}

// GetAccount は指定IDのアカウントを取得する。見つからない場合はnilを返す。
func (s *Service) GetAccount(ctx context.Context, accountID string) (*model.Account, error) {
	account, err := s.accountRepo.FindByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return account, nil
}

// Confirm はメール確認トークンを消費し、アカウントを有効化する。
func (s *Service) Confirm(ctx context.Context, token string) error {
	if token == "" {
		return model.NewInvalidTokenError()
	}

	account, err := s.accountRepo.FindByConfirmToken(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to find account by confirm token: %w", err)
	}
	if account == nil {
		return model.NewInvalidTokenError()
	}

	account.Confirmed = true
	account.ConfirmToken = ""
	account.UpdatedAt = time.Now()

	if err := s.accountRepo.Update(ctx, account); err != nil {
		return fmt.Errorf("failed to confirm account: %w", err)
	}

	slog.Info("account confirmed", slog.String("account_id", account.ID))
	return nil
}

// Recover は指定メールアドレスにパスワード再設定トークンを発行する。
// アカウントの存在有無を呼び出し元に漏らさないため、未登録の場合もエラーにしない。
func (s *Service) Recover(ctx context.Context, email string) error {
	account, err := s.accountRepo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		slog.Info("recovery requested for unknown email")
		return nil
	}

	token, err := generateToken()
	if err != nil {
		return fmt.Errorf("failed to generate recovery token: %w", err)
	}

	account.RecoverToken = token
	account.UpdatedAt = time.Now()

	if err := s.accountRepo.Update(ctx, account); err != nil {
		return fmt.Errorf("failed to store recovery token: %w", err)
	}

	// 配送手段を持たないため、運用側が拾えるようログに出す
	slog.Info("password recovery token issued",
		slog.String("account_id", account.ID),
		slog.String("recover_token", token),
	)
	return nil
}

// ResetPassword は再設定トークンを消費してパスワードを更新する。
// 既存の全Grantを失効させる。
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return model.NewInvalidTokenError()
	}
	if len(newPassword) < minPasswordLength {
		return model.NewValidationFailedError(fmt.Sprintf("パスワードは%d文字以上で指定してください", minPasswordLength))
	}

	account, err := s.accountRepo.FindByRecoverToken(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to find account by recover token: %w", err)
	}
	if account == nil {
		return model.NewInvalidTokenError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	account.PasswordHash = string(hash)
	account.RecoverToken = ""
	account.UpdatedAt = time.Now()

	if err := s.accountRepo.Update(ctx, account); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if err := s.grantRepo.DeleteByAccountID(ctx, account.ID); err != nil {
		return fmt.Errorf("failed to revoke grants: %w", err)
	}

	slog.Info("password reset", slog.String("account_id", account.ID))
	return nil
}

// issueGrant は新しいアクセストークンとリフレッシュトークンの組を発行し永続化する。
func (s *Service) issueGrant(ctx context.Context, accountID string) (*model.Grant, error) {
	accessToken, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refreshToken, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	now := time.Now()
	grant := &model.Grant{
		ID:               uuid.New().String(),
		AccountID:        accountID,
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  now.Add(s.config.AccessTokenTTL),
		RefreshExpiresAt: now.Add(s.config.RefreshTokenTTL),
		CreatedAt:        now,
	}

	if err := s.grantRepo.Create(ctx, grant); err != nil {
		return nil, fmt.Errorf("failed to save grant: %w", err)
	}

	return grant, nil
}

// validateCredentials は登録時のメールアドレスとパスワードを検証する。
func validateCredentials(email, password string) error {
	if email == "" {
		return model.NewValidationFailedError("メールアドレスは必須です")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return model.NewValidationFailedError("メールアドレスの形式が正しくありません")
	}
	if len(password) < minPasswordLength {
		return model.NewValidationFailedError(fmt.Sprintf("パスワードは%d文字以上で指定してください", minPasswordLength))
	}
	return nil
}

// generateToken は暗号的に安全なトークンを生成する。
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
