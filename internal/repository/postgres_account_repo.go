package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/taskman/internal/model"
)

// PostgresAccountRepo はPostgreSQLを使用したアカウントリポジトリ。
type PostgresAccountRepo struct {
	db *sql.DB
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

const accountColumns = `id, email, password_hash, confirmed, confirm_token, recover_token, created_at, updated_at`

// scanAccount は1行をmodel.Accountに読み込む。
func scanAccount(row *sql.Row) (*model.Account, error) {
	account := &model.Account{}
	var confirmToken, recoverToken sql.NullString

	err := row.Scan(
		&account.ID, &account.Email, &account.PasswordHash, &account.Confirmed,
		&confirmToken, &recoverToken, &account.CreatedAt, &account.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	account.ConfirmToken = nullStringValue(confirmToken)
	account.RecoverToken = nullStringValue(recoverToken)

	return account, nil
}

// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	account, err := scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id,
	))
	if err != nil {
		return nil, fmt.Errorf("アカウントの取得に失敗しました: %w", err)
	}
	return account, nil
}

// FindByEmail はメールアドレスでアカウントを検索する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	account, err := scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email,
	))
	if err != nil {
		return nil, fmt.Errorf("メールアドレスによるアカウントの検索に失敗しました: %w", err)
	}
	return account, nil
}

// FindByConfirmToken はメール確認トークンでアカウントを検索する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByConfirmToken(ctx context.Context, token string) (*model.Account, error) {
	account, err := scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE confirm_token = $1`, token,
	))
	if err != nil {
		return nil, fmt.Errorf("確認トークンによるアカウントの検索に失敗しました: %w", err)
	}
	return account, nil
}

// FindByRecoverToken はパスワード再設定トークンでアカウントを検索する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByRecoverToken(ctx context.Context, token string) (*model.Account, error) {
	account, err := scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE recover_token = $1`, token,
	))
	if err != nil {
		return nil, fmt.Errorf("再設定トークンによるアカウントの検索に失敗しました: %w", err)
	}
	return account, nil
}

// Create はアカウントを作成する。
func (r *PostgresAccountRepo) Create(ctx context.Context, account *model.Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, email, password_hash, confirmed, confirm_token, recover_token, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		account.ID, account.Email, account.PasswordHash, account.Confirmed,
		nullString(account.ConfirmToken), nullString(account.RecoverToken),
		account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("アカウントの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はアカウント情報を更新する。
func (r *PostgresAccountRepo) Update(ctx context.Context, account *model.Account) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET
		    email = $2, password_hash = $3, confirmed = $4,
		    confirm_token = $5, recover_token = $6, updated_at = $7
		 WHERE id = $1`,
		account.ID, account.Email, account.PasswordHash, account.Confirmed,
		nullString(account.ConfirmToken), nullString(account.RecoverToken),
		account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("アカウントの更新に失敗しました: %w", err)
	}
	return nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列値を取り出す。無効な場合は空文字列。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
