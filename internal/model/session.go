// Package model はドメインモデルを定義する。
package model

// Identity は認証済みサブジェクトを表す。
// リモートの認証サービスが発行する不透明なIDと、表示用のメールアドレスを持つ。
type Identity struct {
	ID    string
	Email string
}

// Session はクライアントの現在の認証状態を表す。
// 遷移は常に全置換で行い、部分的なマージは行わない。
// 実行中のクライアントインスタンスごとに高々1つのSessionが存在する。
type Session struct {
	Identity *Identity
	IsValid  bool
}

// SignedOut は未認証状態のSessionを返す。
// 初期化失敗時の安全なデフォルト値としても使用する。
func SignedOut() Session {
	return Session{Identity: nil, IsValid: false}
}

// AuthEvent は認証状態遷移イベントの種別を表す。
type AuthEvent string

const (
	// AuthEventSignedIn はサインイン成功を示す。
	AuthEventSignedIn AuthEvent = "signed_in"
	// AuthEventSignedOut はサインアウトを示す。
	AuthEventSignedOut AuthEvent = "signed_out"
	// AuthEventTokenRefreshed はトークンのリフレッシュ成功を示す。
	AuthEventTokenRefreshed AuthEvent = "token_refreshed"
)
