// Package remote はリモートの認証・ストレージサービスへの到達手段を提供する。
//
// クライアントコア（session、auth、repository、objective、rating）は
// このパッケージのインターフェースのみに依存し、具体的なトランスポートは
// RESTクライアント実装に閉じ込める。
package remote

import (
	"context"
	"time"

	"github.com/hitoshi/taskman/internal/model"
)

// SignUpOutcome はアカウント登録の結果を表す。
// ConfirmationRequiredがtrueの場合、メール確認が完了するまでログインできない。
// これはエラーではなく、呼び出し側が扱うべき事後条件である。
type SignUpOutcome struct {
	Identity             model.Identity
	ConfirmationRequired bool
}

// ListenerFunc は認証状態遷移イベントの通知を受け取るコールバック。
// イベントはリモートサービスが発行した順に、同期的に呼び出される。
type ListenerFunc func(event model.AuthEvent, session model.Session)

// AuthAPI はリモート認証サービスの能力面を表す。
type AuthAPI interface {
	// SignUp は新規アカウントを登録する。
	SignUp(ctx context.Context, email, password string) (*SignUpOutcome, error)

	// SignIn はメールアドレスとパスワードで認証する。
	// 成功するとトークンを内部に保持し、signed_inイベントを発行する。
	SignIn(ctx context.Context, email, password string) (*model.Identity, error)

	// SignOut は現在のトークンを失効させる。
	// 成功するとトークンを破棄し、signed_outイベントを発行する。
	// リモート到達失敗時はローカル状態を変更しない。
	SignOut(ctx context.Context) error

	// GetSession は現在のセッション状態をリモートに問い合わせる。
	// 未認証の場合はエラーではなく無効セッションを返す。
	GetSession(ctx context.Context) (model.Session, error)

	// RefreshSession はリフレッシュトークンで新しいトークンの組を取得する。
	// 成功するとtoken_refreshedイベントを発行する。
	RefreshSession(ctx context.Context) (model.Session, error)

	// OnAuthStateChange は認証状態遷移の通知を購読する。
	// 返された解除関数は冪等であり、購読解除後の呼び出しも安全。
	OnAuthStateChange(listener ListenerFunc) (unsubscribe func())

	// RequestRecovery はパスワード再設定トークンの発行を要求する。
	RequestRecovery(ctx context.Context, email string) error

	// ResetPassword は再設定トークンを消費してパスワードを更新する。
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// ObjectiveFields は目標作成時の入力フィールド。
type ObjectiveFields struct {
	Title       string
	Description string
	Deadline    time.Time // ゼロ値は期限未設定
	Category    model.Category
}

// ObjectiveChanges は目標の部分更新フィールド。
// nilのフィールドは変更しない。Deadlineにゼロ値を指定すると期限を解除する。
type ObjectiveChanges struct {
	Title       *string
	Description *string
	Deadline    *time.Time
	Category    *model.Category
}

// ObjectiveTable はリモートの目標テーブルへのCRUD操作を表す。
// 全ての読み書きはリモート側で現在の認証主体にスコープされる。
type ObjectiveTable interface {
	// Select は現在の認証主体が所有する全目標を返す。0件は空スライス。
	Select(ctx context.Context) ([]model.Objective, error)

	// Insert は新しい目標行を挿入し、サーバー採番のIDとcreated_atを含む
	// 完全な行を返す。
	Insert(ctx context.Context, fields ObjectiveFields) (*model.Objective, error)

	// Update は指定IDの行を部分更新し、更新後の行を返す。
	// 該当行が存在しない場合（未存在・他者所有のいずれも）はErrNotFoundを返す。
	Update(ctx context.Context, id string, changes ObjectiveChanges) (*model.Objective, error)

	// Delete は指定IDの行を削除する。該当行がなくてもエラーにしない。
	Delete(ctx context.Context, id string) error
}

// RatingTable はリモートの評価テーブルへの操作を表す。
type RatingTable interface {
	// SubmitRating は1〜5の星評価を送信する。
	SubmitRating(ctx context.Context, stars int) error

	// Summary は全評価の平均と件数を返す。
	Summary(ctx context.Context) (*model.RatingSummary, error)
}
