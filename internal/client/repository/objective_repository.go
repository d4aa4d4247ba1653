// Package repository はリモートの目標テーブルを現在のIdentityに
// スコープして包むObjective Repositoryを提供する。
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/taskman/internal/client/remote"
	"github.com/hitoshi/taskman/internal/model"
)

// タイトルの最大文字数
const maxTitleLength = 200

// SessionReader は現在のセッションの読み取りインターフェース。
// session.Storeの部分集合として定義する。
type SessionReader interface {
	GetSession() model.Session
}

// ObjectiveRepository はリモートの目標テーブルへのCRUDを包む。
//
// 全ての操作は呼び出し時点のセッションからIdentityを取得する。
// UIの描画時点とユーザー操作の時点の間にセッションが変わりうるため、
// 事前にキャッシュしたIdentityは使用しない。
// Identityが存在しない場合、リモート呼び出しを行わずErrUnauthenticatedを返す。
type ObjectiveRepository struct {
	table   remote.ObjectiveTable
	session SessionReader
}

// NewObjectiveRepository はObjectiveRepositoryを生成する。
func NewObjectiveRepository(table remote.ObjectiveTable, session SessionReader) *ObjectiveRepository {
	return &ObjectiveRepository{
		table:   table,
		session: session,
	}
}

// LoadAll は現在のIdentityが所有する全目標を返す。0件は空スライスで、
// エラーではない。
// 所有者が一致しない行がリモートから返った場合、その行は破棄する。
// 現在のセッションに属さないレコードを表示・変更してはならない。
func (r *ObjectiveRepository) LoadAll(ctx context.Context) ([]model.Objective, error) {
	identity, err := r.currentIdentity()
	if err != nil {
		return nil, err
	}

	rows, err := r.table.Select(ctx)
	if err != nil {
		return nil, fmt.Errorf("目標の読み込みに失敗しました: %w", err)
	}

	objectives := make([]model.Objective, 0, len(rows))
	for _, o := range rows {
		if o.OwnerID != identity.ID {
			slog.Warn("discarding objective not owned by current identity",
				slog.String("objective_id", o.ID),
			)
			continue
		}
		objectives = append(objectives, o)
	}
	return objectives, nil
}

// Create は新しい目標を作成し、サーバー採番のIDとcreatedAtを含む完全な
// レコードを返す。
// 4つのフィールドは全て必須であり、違反時はリモート呼び出しを行わず
// ErrValidationを返す。
func (r *ObjectiveRepository) Create(ctx context.Context, fields remote.ObjectiveFields) (*model.Objective, error) {
	if _, err := r.currentIdentity(); err != nil {
		return nil, err
	}

	if err := validateFields(fields); err != nil {
		return nil, err
	}

	created, err := r.table.Insert(ctx, fields)
	if err != nil {
		return nil, fmt.Errorf("目標の作成に失敗しました: %w", err)
	}
	return created, nil
}

// Update は指定IDの目標を部分更新し、更新後のレコードを返す。
// リモートがゼロ行を報告した場合はErrNotFoundを返す。これは「存在しない」
// 場合と「現在のIdentityの所有ではない」場合の両方を覆い、セキュリティ上
// の理由から両者は区別されない。
func (r *ObjectiveRepository) Update(ctx context.Context, id string, changes remote.ObjectiveChanges) (*model.Objective, error) {
	if _, err := r.currentIdentity(); err != nil {
		return nil, err
	}

	if err := validateChanges(changes); err != nil {
		return nil, err
	}

	updated, err := r.table.Update(ctx, id, changes)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("指定された目標が見つかりません: %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("目標の更新に失敗しました: %w", err)
	}
	return updated, nil
}

// Delete は指定IDの目標を削除する。呼び出し側から見て冪等であり、
// 既に存在しないIDの削除はエラーとして扱わない。
func (r *ObjectiveRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.currentIdentity(); err != nil {
		return err
	}

	if err := r.table.Delete(ctx, id); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("目標の削除に失敗しました: %w", err)
	}
	return nil
}

// currentIdentity は呼び出し時点のセッションからIdentityを取得する。
func (r *ObjectiveRepository) currentIdentity() (*model.Identity, error) {
	session := r.session.GetSession()
	if !session.IsValid || session.Identity == nil {
		return nil, fmt.Errorf("ログインが必要です: %w", model.ErrUnauthenticated)
	}
	return session.Identity, nil
}

// validateFields は作成時の入力を検証する。4つのフィールド全てが必須。
func validateFields(fields remote.ObjectiveFields) error {
	if fields.Title == "" {
		return fmt.Errorf("タイトルは必須です: %w", model.ErrValidation)
	}
	if len([]rune(fields.Title)) > maxTitleLength {
		return fmt.Errorf("タイトルは%d文字以内で指定してください: %w", maxTitleLength, model.ErrValidation)
	}
	if fields.Description == "" {
		return fmt.Errorf("説明は必須です: %w", model.ErrValidation)
	}
	if fields.Deadline.IsZero() {
		return fmt.Errorf("期限は必須です: %w", model.ErrValidation)
	}
	if !model.ValidCategory(fields.Category) {
		return fmt.Errorf("カテゴリが不正です: %s: %w", fields.Category, model.ErrValidation)
	}
	return nil
}

// validateChanges は更新時の入力を検証する。指定されたフィールドのみ検証する。
func validateChanges(changes remote.ObjectiveChanges) error {
	if changes.Title != nil {
		if *changes.Title == "" {
			return fmt.Errorf("タイトルは必須です: %w", model.ErrValidation)
		}
		if len([]rune(*changes.Title)) > maxTitleLength {
			return fmt.Errorf("タイトルは%d文字以内で指定してください: %w", maxTitleLength, model.ErrValidation)
		}
	}
	if changes.Description != nil && *changes.Description == "" {
		return fmt.Errorf("説明は必須です: %w", model.ErrValidation)
	}
	if changes.Category != nil && !model.ValidCategory(*changes.Category) {
		return fmt.Errorf("カテゴリが不正です: %s: %w", *changes.Category, model.ErrValidation)
	}
	return nil
}
