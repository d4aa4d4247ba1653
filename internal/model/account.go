// Package model はドメインモデルを定義する。
package model

import "time"

// Account はサーバーに登録されたユーザーアカウントを表す。
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	Confirmed    bool
	ConfirmToken string // メール確認トークン。確認済みの場合は空
	RecoverToken string // パスワード再設定トークン。未発行の場合は空
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Grant は発行済みのアクセストークンとリフレッシュトークンの組を表す。
// リフレッシュのたびに新しいGrantへローテーションされ、古いGrantは失効する。
type Grant struct {
	ID               string
	AccountID        string
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	CreatedAt        time.Time
}
