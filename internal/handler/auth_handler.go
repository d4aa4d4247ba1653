// Package handler はHTTP APIのハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/taskman/internal/account"
	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/middleware"
	"github.com/hitoshi/taskman/internal/model"
)

// AccountServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	// SignUp は新規アカウントを登録する。
	SignUp(ctx context.Context, email, password string) (*account.SignUpResult, error)
	// SignIn は認証してトークンを発行する。
	SignIn(ctx context.Context, email, password string) (*model.Account, *model.Grant, error)
	// Refresh はリフレッシュトークンを新しいGrantへローテーションする。
	Refresh(ctx context.Context, refreshToken string) (*model.Account, *model.Grant, error)
	// SignOut はアクセストークンに対応するGrantを失効させる。
	SignOut(ctx context.Context, accessToken string) error
	// GetAccount は指定IDのアカウントを取得する。
	GetAccount(ctx context.Context, accountID string) (*model.Account, error)
	// Confirm はメール確認トークンを消費する。
	Confirm(ctx context.Context, token string) error
	// Recover はパスワード再設定トークンを発行する。
	Recover(ctx context.Context, email string) error
	// ResetPassword は再設定トークンを消費してパスワードを更新する。
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service   AccountServiceInterface
	collector metrics.MetricsCollector
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AccountServiceInterface, collector metrics.MetricsCollector) *AuthHandler {
	return &AuthHandler{
		service:   service,
		collector: collector,
	}
}

// credentialsRequest は登録・ログインリクエストのボディ。
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// tokenRequest はトークンを1つ受け取るリクエストのボディ。
type tokenRequest struct {
	Token string `json:"token"`
}

// refreshRequest はトークン更新リクエストのボディ。
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// recoverRequest はパスワード再設定要求のボディ。
type recoverRequest struct {
	Email string `json:"email"`
}

// resetRequest はパスワード再設定実行のボディ。
type resetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// accountResponse はアカウント情報のAPIレスポンス。
type accountResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// signUpResponse は登録結果のAPIレスポンス。
type signUpResponse struct {
	Account              accountResponse `json:"account"`
	ConfirmationRequired bool            `json:"confirmation_required"`
}

// sessionResponse はログイン・トークン更新結果のAPIレスポンス。
type sessionResponse struct {
	Account          accountResponse `json:"account"`
	AccessToken      string          `json:"access_token"`
	RefreshToken     string          `json:"refresh_token"`
	AccessExpiresAt  time.Time       `json:"access_expires_at"`
	RefreshExpiresAt time.Time       `json:"refresh_expires_at"`
}

// Register は新規アカウント登録を処理する。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	result, err := h.service.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		h.collector.RecordAuthAttempt("signup", false)
		handleServiceError(w, err)
		return
	}
	h.collector.RecordAuthAttempt("signup", true)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(signUpResponse{
		Account:              toAccountResponse(result.Account),
		ConfirmationRequired: result.ConfirmationRequired,
	})
}

// Confirm はメール確認トークンを消費してアカウントを有効化する。
// POST /auth/confirm
func (h *AuthHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if err := h.service.Confirm(r.Context(), req.Token); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Login はメールアドレスとパスワードで認証し、トークンを発行する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	acct, grant, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.collector.RecordAuthAttempt("signin", false)
		handleServiceError(w, err)
		return
	}
	h.collector.RecordAuthAttempt("signin", true)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toSessionResponse(acct, grant))
}

// Refresh はリフレッシュトークンを消費して新しいトークンの組を発行する。
// POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	acct, grant, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.collector.RecordAuthAttempt("refresh", false)
		handleServiceError(w, err)
		return
	}
	h.collector.RecordAuthAttempt("refresh", true)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toSessionResponse(acct, grant))
}

// Logout はAuthorizationヘッダーのトークンに対応するGrantを失効させる。
// トークンが既に無効でも204を返す（冪等）。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerTokenFromHeader(r)
	if token == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := h.service.SignOut(r.Context(), token); err != nil {
		handleServiceError(w, err)
		return
	}
	h.collector.RecordAuthAttempt("signout", true)

	w.WriteHeader(http.StatusNoContent)
}

// Recover はパスワード再設定トークンの発行を要求する。
// アカウントの存在有無を漏らさないため、常に202を返す。
// POST /auth/recover
func (h *AuthHandler) Recover(w http.ResponseWriter, r *http.Request) {
	var req recoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if err := h.service.Recover(r.Context(), req.Email); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// Reset は再設定トークンを消費してパスワードを更新する。
// POST /auth/reset
func (h *AuthHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Me は認証済みアカウントの情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	accountID, err := middleware.AccountIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	acct, err := h.service.GetAccount(r.Context(), accountID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if acct == nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toAccountResponse(acct))
}

// --- ヘルパー関数 ---

// toAccountResponse はmodel.AccountからAPIレスポンスに変換する。
func toAccountResponse(acct *model.Account) accountResponse {
	return accountResponse{
		ID:    acct.ID,
		Email: acct.Email,
	}
}

// toSessionResponse はアカウントとGrantからセッションレスポンスに変換する。
func toSessionResponse(acct *model.Account, grant *model.Grant) sessionResponse {
	return sessionResponse{
		Account:          toAccountResponse(acct),
		AccessToken:      grant.AccessToken,
		RefreshToken:     grant.RefreshToken,
		AccessExpiresAt:  grant.AccessExpiresAt,
		RefreshExpiresAt: grant.RefreshExpiresAt,
	}
}

// bearerTokenFromHeader はAuthorizationヘッダーからBearerトークンを取り出す。
func bearerTokenFromHeader(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// writeInvalidRequestBody はJSONボディの解析失敗レスポンスを書き込む。
func writeInvalidRequestBody(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidationFailed, model.ErrCodeRatingOutOfRange:
		return http.StatusBadRequest
	case model.ErrCodeEmailTaken:
		return http.StatusConflict
	case model.ErrCodeInvalidCredentials, model.ErrCodeInvalidToken:
		return http.StatusUnauthorized
	case model.ErrCodeEmailNotConfirmed:
		return http.StatusForbidden
	case model.ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case model.ErrCodeObjectiveNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
