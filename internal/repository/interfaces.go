// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/taskman/internal/model"
)

// AccountRepository はアカウントデータの永続化インターフェース。
type AccountRepository interface {
	// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Account, error)

	// FindByEmail はメールアドレスでアカウントを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Account, error)

	// FindByConfirmToken はメール確認トークンでアカウントを検索する。見つからない場合はnilを返す。
	FindByConfirmToken(ctx context.Context, token string) (*model.Account, error)

	// FindByRecoverToken はパスワード再設定トークンでアカウントを検索する。見つからない場合はnilを返す。
	FindByRecoverToken(ctx context.Context, token string) (*model.Account, error)

	// Create はアカウントを作成する。
	Create(ctx context.Context, account *model.Account) error

	// Update はアカウント情報を更新する。
	Update(ctx context.Context, account *model.Account) error
}

// GrantRepository はトークン発行情報の永続化インターフェース。
type GrantRepository interface {
	// Create はGrantを作成する。
	Create(ctx context.Context, grant *model.Grant) error

	// FindByAccessToken はアクセストークンで有効なGrantを検索する。
	// 見つからない場合と期限切れの場合はnilを返す。
	FindByAccessToken(ctx context.Context, token string) (*model.Grant, error)

	// FindByRefreshToken はリフレッシュトークンで有効なGrantを検索する。
	// 見つからない場合と期限切れの場合はnilを返す。
	FindByRefreshToken(ctx context.Context, token string) (*model.Grant, error)

	// DeleteByID は指定IDのGrantを削除する。
	DeleteByID(ctx context.Context, id string) error

	// DeleteByAccountID は指定アカウントの全Grantを削除する。
	DeleteByAccountID(ctx context.Context, accountID string) error
}

// ObjectiveUpdate は目標の部分更新フィールドを表す。
// nilのフィールドは変更せず、既存の値を維持する。
type ObjectiveUpdate struct {
	Title       *string
	Description *string
	Deadline    *time.Time
	Category    *model.Category
}

// ObjectiveRepository は目標データの永続化インターフェース。
// 全ての読み書きは所有者IDでスコープされる。
type ObjectiveRepository interface {
	// ListByOwner は指定所有者の全目標をcreated_at昇順で返す。0件は空スライス。
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Objective, error)

	// Create は目標を作成する。
	Create(ctx context.Context, objective *model.Objective) error

	// UpdateScoped はidと所有者の両方が一致する行を部分更新し、更新後の行を返す。
	// 該当行が存在しない場合（未存在・他者所有のいずれも）はnilを返す。
	UpdateScoped(ctx context.Context, id, ownerID string, fields ObjectiveUpdate) (*model.Objective, error)

	// DeleteScoped はidと所有者の両方が一致する行を削除し、削除行数を返す。
	// 該当行がなくてもエラーにはしない。
	DeleteScoped(ctx context.Context, id, ownerID string) (int64, error)
}

// RatingRepository は評価データの永続化インターフェース。
type RatingRepository interface {
	// Create は評価を作成する。
	Create(ctx context.Context, rating *model.Rating) error

	// Summary は全評価の平均と件数を返す。評価が0件の場合は平均0を返す。
	Summary(ctx context.Context) (*model.RatingSummary, error)
}
