// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, objective, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeEmailTaken          = "EMAIL_TAKEN"
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeEmailNotConfirmed   = "EMAIL_NOT_CONFIRMED"
	ErrCodeUnauthenticated     = "UNAUTHENTICATED"
	ErrCodeInvalidToken        = "INVALID_TOKEN"
	ErrCodeObjectiveNotFound   = "OBJECTIVE_NOT_FOUND"
	ErrCodeRatingOutOfRange    = "RATING_OUT_OF_RANGE"
)

// クライアントコアの契約で使用するセンチネルエラー。
// errors.Isで判別できるよう、ラップして返すこと。
var (
	// ErrValidation はリモート呼び出し前のローカル検証失敗を表す。
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials は認証情報の不一致を表す。
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRemoteRejected はリモートサービスがリクエストを拒否したことを表す。
	ErrRemoteRejected = errors.New("remote rejected the request")
	// ErrRemoteUnavailable はリモートサービスへの到達失敗を表す。
	ErrRemoteUnavailable = errors.New("remote service unavailable")
	// ErrUnauthenticated は有効なセッションが存在しないことを表す。
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrNotFound は対象が存在しないか、現在のIdentityが所有していないことを表す。
	// セキュリティ上、両者は区別しない。
	ErrNotFound = errors.New("objective not found")
	// ErrStaleCollection はローカルコレクションが古く、リモートの結果を適用
	// できなかったことを表す。再読み込みで回復できる。
	ErrStaleCollection = errors.New("stale local collection")
	// ErrOperationInFlight は同一IDに対する操作が進行中であることを表す。
	ErrOperationInFlight = errors.New("operation already in flight for this objective")
)

// NewValidationFailedError はローカル検証失敗エラーを生成する。
func NewValidationFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力内容に誤りがあります: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewEmailNotConfirmedError はメール未確認エラーを生成する。
func NewEmailNotConfirmedError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailNotConfirmed,
		Message:  "メールアドレスの確認が完了していません。",
		Category: "auth",
		Action:   "登録時に送信された確認メールのリンクを開いてください。",
	}
}

// NewUnauthenticatedError は未認証エラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "ログインが必要です。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewInvalidTokenError は無効トークンエラーを生成する。
// リフレッシュトークン、確認トークン、再設定トークンのいずれにも使用する。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  "トークンが無効か、有効期限が切れています。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewObjectiveNotFoundError は目標未検出エラーを生成する。
// 存在しない場合と他ユーザーの所有である場合を区別しない。
func NewObjectiveNotFoundError(objectiveID string) *APIError {
	return &APIError{
		Code:     ErrCodeObjectiveNotFound,
		Message:  fmt.Sprintf("指定された目標が見つかりません: %s", objectiveID),
		Category: "objective",
		Action:   "一覧を再読み込みしてください。",
	}
}

// NewRatingOutOfRangeError は評価値の範囲外エラーを生成する。
func NewRatingOutOfRangeError(stars int) *APIError {
	return &APIError{
		Code:     ErrCodeRatingOutOfRange,
		Message:  fmt.Sprintf("評価は1〜5の範囲で指定してください: %d", stars),
		Category: "validation",
		Action:   "星の数を選び直してください。",
	}
}
