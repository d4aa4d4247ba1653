// Package auth はリモート認証サービスの呼び出しを包むAuth Gatewayを提供する。
package auth

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/hitoshi/taskman/internal/client/remote"
	"github.com/hitoshi/taskman/internal/model"
)

// パスワードの最小文字数
const minPasswordLength = 8

// Gateway は登録・ログイン・ログアウトのリモート呼び出しを包む。
// 自身は状態を持たない。結果は一様なエラー分類で返す。
//
// 各操作は単発であり、自動リトライしない。同一Identityに対する操作を
// 並行に発行しないことは呼び出し側の責務である（リクエスト中は起点と
// なるコントロールを無効化するなど）。
type Gateway struct {
	api remote.AuthAPI
}

// NewGateway はGatewayを生成する。
func NewGateway(api remote.AuthAPI) *Gateway {
	return &Gateway{api: api}
}

// RegisterResult はアカウント登録の結果を表す。
// ConfirmationRequiredがtrueの場合、メール確認が完了するまでアカウントは
// 使用できない。これはエラーではなく呼び出し側が扱うべき事後条件。
type RegisterResult struct {
	Identity             model.Identity
	ConfirmationRequired bool
}

// Register は新規アカウントを登録する。
// 入力はリモート呼び出しの前にローカルで検証され、違反はErrValidationを返す。
// リモートが拒否した場合（重複アカウントなど）はErrRemoteRejectedを
// リモートのメッセージ付きで返す。
func (g *Gateway) Register(ctx context.Context, email, password string) (*RegisterResult, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	outcome, err := g.api.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}

	return &RegisterResult{
		Identity:             outcome.Identity,
		ConfirmationRequired: outcome.ConfirmationRequired,
	}, nil
}

// Login はメールアドレスとパスワードで認証する。
// リモートが組を拒否した場合はErrInvalidCredentialsを返す。
// 成功時に返るIdentityは、以後Session Storeが観測するIdentityと一致する。
func (g *Gateway) Login(ctx context.Context, email, password string) (*model.Identity, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	return g.api.SignIn(ctx, email, password)
}

// Logout は常にリモートのサインアウトを試みる。
// 失敗時はErrRemoteUnavailable等をそのまま返し、ローカルのセッション状態には
// 触れない。強制クリアするかどうかは呼び出し側が判断する。
func (g *Gateway) Logout(ctx context.Context) error {
	return g.api.SignOut(ctx)
}

// RequestPasswordReset はパスワード再設定トークンの発行を要求する。
// アカウントの存在有無は結果から判別できない。
func (g *Gateway) RequestPasswordReset(ctx context.Context, email string) error {
	if email == "" {
		return fmt.Errorf("メールアドレスは必須です: %w", model.ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("メールアドレスの形式が正しくありません: %w", model.ErrValidation)
	}

	return g.api.RequestRecovery(ctx, email)
}

// ResetPassword は再設定トークンを消費してパスワードを更新する。
func (g *Gateway) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return fmt.Errorf("トークンは必須です: %w", model.ErrValidation)
	}
	if len(newPassword) < minPasswordLength {
		return fmt.Errorf("パスワードは%d文字以上で指定してください: %w", minPasswordLength, model.ErrValidation)
	}

	return g.api.ResetPassword(ctx, token, newPassword)
}

// validateCredentials はメールアドレスとパスワードをローカルで検証する。
// 違反時はリモート呼び出しを行わない。
func validateCredentials(email, password string) error {
	if email == "" {
		return fmt.Errorf("メールアドレスは必須です: %w", model.ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("メールアドレスの形式が正しくありません: %w", model.ErrValidation)
	}
	if password == "" {
		return fmt.Errorf("パスワードは必須です: %w", model.ErrValidation)
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("パスワードは%d文字以上で指定してください: %w", minPasswordLength, model.ErrValidation)
	}
	return nil
}
