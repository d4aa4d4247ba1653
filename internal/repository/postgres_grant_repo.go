package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/taskman/internal/model"
)

// PostgresGrantRepo はPostgreSQLを使用したGrantリポジトリ。
type PostgresGrantRepo struct {
	db *sql.DB
}

// NewPostgresGrantRepo はPostgresGrantRepoを生成する。
func NewPostgresGrantRepo(db *sql.DB) *PostgresGrantRepo {
	return &PostgresGrantRepo{db: db}
}

// Create はGrantを作成する。
func (r *PostgresGrantRepo) Create(ctx context.Context, grant *model.Grant) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO grants (id, account_id, access_token, refresh_token, access_expires_at, refresh_expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		grant.ID, grant.AccountID, grant.AccessToken, grant.RefreshToken,
		grant.AccessExpiresAt, grant.RefreshExpiresAt, grant.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Grantの作成に失敗しました: %w", err)
	}
	return nil
}

// FindByAccessToken はアクセストークンで有効なGrantを検索する。
// 見つからない場合と期限切れの場合はnilを返す。
func (r *PostgresGrantRepo) FindByAccessToken(ctx context.Context, token string) (*model.Grant, error) {
	grant, err := r.scanGrant(ctx,
		`SELECT id, account_id, access_token, refresh_token, access_expires_at, refresh_expires_at, created_at
		 FROM grants WHERE access_token = $1 AND access_expires_at > now()`, token)
	if err != nil {
		return nil, fmt.Errorf("アクセストークンによるGrantの検索に失敗しました: %w", err)
	}
	return grant, nil
}

// FindByRefreshToken はリフレッシュトークンで有効なGrantを検索する。
// 見つからない場合と期限切れの場合はnilを返す。
func (r *PostgresGrantRepo) FindByRefreshToken(ctx context.Context, token string) (*model.Grant, error) {
	grant, err := r.scanGrant(ctx,
		`SELECT id, account_id, access_token, refresh_token, access_expires_at, refresh_expires_at, created_at
		 FROM grants WHERE refresh_token = $1 AND refresh_expires_at > now()`, token)
	if err != nil {
		return nil, fmt.Errorf("リフレッシュトークンによるGrantの検索に失敗しました: %w", err)
	}
	return grant, nil
}

// DeleteByID は指定IDのGrantを削除する。
func (r *PostgresGrantRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM grants WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("Grantの削除に失敗しました: %w", err)
	}
	return nil
}

// DeleteByAccountID は指定アカウントの全Grantを削除する。
func (r *PostgresGrantRepo) DeleteByAccountID(ctx context.Context, accountID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM grants WHERE account_id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("アカウントのGrant削除に失敗しました: %w", err)
	}
	return nil
}

// scanGrant は1行をmodel.Grantに読み込む。
func (r *PostgresGrantRepo) scanGrant(ctx context.Context, query, arg string) (*model.Grant, error) {
	grant := &model.Grant{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&grant.ID, &grant.AccountID, &grant.AccessToken, &grant.RefreshToken,
		&grant.AccessExpiresAt, &grant.RefreshExpiresAt, &grant.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return grant, nil
}
