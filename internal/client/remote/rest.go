package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/taskman/internal/config"
	"github.com/hitoshi/taskman/internal/model"
)

// Client はREST APIサーバーに対するAuthAPI・ObjectiveTable・RatingTableの実装。
//
// アクセストークンとリフレッシュトークンを内部に保持し、認証状態の遷移
// （サインイン・サインアウト・リフレッシュ）ごとに購読者へイベントを発行する。
// イベントの発行はdispatchMuで直列化され、発生順が保証される。
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	identity     *model.Identity

	listenerMu     sync.Mutex
	listeners      map[int]ListenerFunc
	listenerOrder  []int
	nextListenerID int

	dispatchMu sync.Mutex
}

// インターフェース実装の確認
var (
	_ AuthAPI        = (*Client)(nil)
	_ ObjectiveTable = (*Client)(nil)
	_ RatingTable    = (*Client)(nil)
)

// NewClient は新しいRESTクライアントを生成する。
func NewClient(cfg *config.ClientConfig) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		listeners: make(map[int]ListenerFunc),
	}
}

// Tokens は保持中のトークンの組を返す。資格情報の永続化に使用する。
func (c *Client) Tokens() (accessToken, refreshToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken, c.refreshToken
}

// SetTokens は永続化された資格情報からトークンを復元する。
// イベントは発行しない。セッション状態の確認はGetSessionで行うこと。
func (c *Client) SetTokens(accessToken, refreshToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = accessToken
	c.refreshToken = refreshToken
}

// --- AuthAPI ---

// sessionPayload はログイン・リフレッシュ応答のワイヤ表現。
type sessionPayload struct {
	Account struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"account"`
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// SignUp は新規アカウントを登録する。
func (c *Client) SignUp(ctx context.Context, email, password string) (*SignUpOutcome, error) {
	var resp struct {
		Account struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"account"`
		ConfirmationRequired bool `json:"confirmation_required"`
	}

	err := c.do(ctx, http.MethodPost, "/auth/register", map[string]string{
		"email":    email,
		"password": password,
	}, &resp, false)
	if err != nil {
		return nil, err
	}

	return &SignUpOutcome{
		Identity:             model.Identity{ID: resp.Account.ID, Email: resp.Account.Email},
		ConfirmationRequired: resp.ConfirmationRequired,
	}, nil
}

// SignIn はメールアドレスとパスワードで認証し、トークンを保持する。
func (c *Client) SignIn(ctx context.Context, email, password string) (*model.Identity, error) {
	var resp sessionPayload
	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &resp, false)
	if err != nil {
		return nil, err
	}

	identity := model.Identity{ID: resp.Account.ID, Email: resp.Account.Email}

	c.mu.Lock()
	c.accessToken = resp.AccessToken
	c.refreshToken = resp.RefreshToken
	c.identity = &identity
	c.mu.Unlock()

	c.emit(model.AuthEventSignedIn, model.Session{Identity: &identity, IsValid: true})
	return &identity, nil
}

// SignOut は現在のトークンを失効させる。
// リモート呼び出しが失敗した場合はローカルのトークンを保持したままエラーを返す。
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	token := c.accessToken
	c.mu.Unlock()

	if token == "" {
		return nil
	}

	if err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, true); err != nil {
		return err
	}

	c.mu.Lock()
	c.accessToken = ""
	c.refreshToken = ""
	c.identity = nil
	c.mu.Unlock()

	c.emit(model.AuthEventSignedOut, model.SignedOut())
	return nil
}

// GetSession は保持中のトークンでリモートに現在のセッションを問い合わせる。
// トークンがない場合、またはリモートが認証を拒否した場合は無効セッションを返す。
func (c *Client) GetSession(ctx context.Context) (model.Session, error) {
	c.mu.Lock()
	token := c.accessToken
	c.mu.Unlock()

	if token == "" {
		return model.SignedOut(), nil
	}

	var resp struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	err := c.do(ctx, http.MethodGet, "/auth/me", nil, &resp, true)
	if err != nil {
		if isUnauthenticated(err) {
			return model.SignedOut(), nil
		}
		return model.SignedOut(), err
	}

	identity := model.Identity{ID: resp.ID, Email: resp.Email}

	c.mu.Lock()
	c.identity = &identity
	c.mu.Unlock()

	return model.Session{Identity: &identity, IsValid: true}, nil
}

// RefreshSession はリフレッシュトークンを消費して新しいトークンの組を取得する。
func (c *Client) RefreshSession(ctx context.Context) (model.Session, error) {
	c.mu.Lock()
	refreshToken := c.refreshToken
	c.mu.Unlock()

	if refreshToken == "" {
		return model.SignedOut(), fmt.Errorf("no refresh token held: %w", model.ErrUnauthenticated)
	}

	var resp sessionPayload
	err := c.do(ctx, http.MethodPost, "/auth/refresh", map[string]string{
		"refresh_token": refreshToken,
	}, &resp, false)
	if err != nil {
		return model.SignedOut(), err
	}

	identity := model.Identity{ID: resp.Account.ID, Email: resp.Account.Email}

	c.mu.Lock()
	c.accessToken = resp.AccessToken
	c.refreshToken = resp.RefreshToken
	c.identity = &identity
	c.mu.Unlock()

	session := model.Session{Identity: &identity, IsValid: true}
	c.emit(model.AuthEventTokenRefreshed, session)
	return session, nil
}

// OnAuthStateChange は認証状態遷移の通知を購読する。
func (c *Client) OnAuthStateChange(listener ListenerFunc) (unsubscribe func()) {
	c.listenerMu.Lock()
	id := c.nextListenerID
	c.nextListenerID++
	c.listeners[id] = listener
	c.listenerOrder = append(c.listenerOrder, id)
	c.listenerMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.listenerMu.Lock()
			delete(c.listeners, id)
			c.listenerMu.Unlock()
		})
	}
}

// RequestRecovery はパスワード再設定トークンの発行を要求する。
func (c *Client) RequestRecovery(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/recover", map[string]string{"email": email}, nil, false)
}

// ResetPassword は再設定トークンを消費してパスワードを更新する。
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) error {
	return c.do(ctx, http.MethodPost, "/auth/reset", map[string]string{
		"token":        token,
		"new_password": newPassword,
	}, nil, false)
}

// emit は購読者に認証イベントを通知する。
// dispatchMuにより、イベントは発生順に直列に配送される。
func (c *Client) emit(event model.AuthEvent, session model.Session) {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	c.listenerMu.Lock()
	ordered := make([]ListenerFunc, 0, len(c.listeners))
	for _, id := range c.listenerOrder {
		if fn, ok := c.listeners[id]; ok {
			ordered = append(ordered, fn)
		}
	}
	c.listenerMu.Unlock()

	for _, fn := range ordered {
		fn(event, session)
	}
}

// --- ObjectiveTable ---

// objectiveRow は目標行のワイヤ表現。
type objectiveRow struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Deadline    *string   `json:"deadline"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
}

// toObjective はワイヤ表現からドメインモデルに変換する。
func (r objectiveRow) toObjective() (model.Objective, error) {
	o := model.Objective{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		Title:       r.Title,
		Description: r.Description,
		Category:    model.Category(r.Category),
		CreatedAt:   r.CreatedAt,
	}
	if r.Deadline != nil && *r.Deadline != "" {
		deadline, err := time.Parse(time.RFC3339, *r.Deadline)
		if err != nil {
			return model.Objective{}, fmt.Errorf("failed to parse deadline %q: %w", *r.Deadline, err)
		}
		o.Deadline = deadline
	}
	return o, nil
}

// Select は現在の認証主体が所有する全目標を返す。
func (c *Client) Select(ctx context.Context) ([]model.Objective, error) {
	var rows []objectiveRow
	if err := c.do(ctx, http.MethodGet, "/api/objectives", nil, &rows, true); err != nil {
		return nil, err
	}

	objectives := make([]model.Objective, 0, len(rows))
	for _, row := range rows {
		o, err := row.toObjective()
		if err != nil {
			return nil, err
		}
		objectives = append(objectives, o)
	}
	return objectives, nil
}

// Insert は新しい目標行を挿入する。
func (c *Client) Insert(ctx context.Context, fields ObjectiveFields) (*model.Objective, error) {
	body := map[string]any{
		"title":       fields.Title,
		"description": fields.Description,
		"category":    string(fields.Category),
	}
	if !fields.Deadline.IsZero() {
		body["deadline"] = fields.Deadline.UTC().Format(time.RFC3339)
	}

	var row objectiveRow
	if err := c.do(ctx, http.MethodPost, "/api/objectives", body, &row, true); err != nil {
		return nil, err
	}

	o, err := row.toObjective()
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Update は指定IDの行を部分更新する。
func (c *Client) Update(ctx context.Context, id string, changes ObjectiveChanges) (*model.Objective, error) {
	body := map[string]any{}
	if changes.Title != nil {
		body["title"] = *changes.Title
	}
	if changes.Description != nil {
		body["description"] = *changes.Description
	}
	if changes.Category != nil {
		body["category"] = string(*changes.Category)
	}
	if changes.Deadline != nil {
		if changes.Deadline.IsZero() {
			body["deadline"] = ""
		} else {
			body["deadline"] = changes.Deadline.UTC().Format(time.RFC3339)
		}
	}

	var row objectiveRow
	if err := c.do(ctx, http.MethodPatch, "/api/objectives/"+id, body, &row, true); err != nil {
		return nil, err
	}

	o, err := row.toObjective()
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Delete は指定IDの行を削除する。該当行がなくてもエラーにしない。
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/objectives/"+id, nil, nil, true)
}

// --- RatingTable ---

// SubmitRating は星評価を送信する。
func (c *Client) SubmitRating(ctx context.Context, stars int) error {
	return c.do(ctx, http.MethodPost, "/api/ratings", map[string]int{"stars": stars}, nil, true)
}

// Summary は全評価の平均と件数を返す。
func (c *Client) Summary(ctx context.Context) (*model.RatingSummary, error) {
	var resp struct {
		Average float64 `json:"average"`
		Total   int     `json:"total"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/ratings", nil, &resp, true); err != nil {
		return nil, err
	}
	return &model.RatingSummary{Average: resp.Average, Total: resp.Total}, nil
}

// --- トランスポート ---

// errorPayload は統一エラーフォーマットのワイヤ表現。
type errorPayload struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// do はJSONリクエストを送信し、レスポンスをoutにデコードする。
// authedがtrueの場合は保持中のアクセストークンをAuthorizationヘッダーに付与する。
func (c *Client) do(ctx context.Context, method, path string, body, out any, authed bool) error {
	var reader *bytes.Buffer
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewBuffer(b)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		c.mu.Lock()
		token := c.accessToken
		c.mu.Unlock()
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %v: %w", path, err, model.ErrRemoteUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.mapErrorResponse(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response from %s: %v: %w", path, err, model.ErrRemoteUnavailable)
		}
	}
	return nil
}

// mapErrorResponse はエラーレスポンスをクライアントコアのセンチネルエラーに対応付ける。
func (c *Client) mapErrorResponse(resp *http.Response) error {
	var payload errorPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		if resp.StatusCode >= 500 {
			return fmt.Errorf("remote returned status %d: %w", resp.StatusCode, model.ErrRemoteUnavailable)
		}
		return fmt.Errorf("remote returned status %d: %w", resp.StatusCode, model.ErrRemoteRejected)
	}

	switch payload.Code {
	case model.ErrCodeInvalidCredentials:
		return fmt.Errorf("%s: %w", payload.Message, model.ErrInvalidCredentials)
	case model.ErrCodeUnauthenticated, model.ErrCodeInvalidToken:
		return fmt.Errorf("%s: %w", payload.Message, model.ErrUnauthenticated)
	case model.ErrCodeObjectiveNotFound:
		return fmt.Errorf("%s: %w", payload.Message, model.ErrNotFound)
	default:
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%s: %w", payload.Message, model.ErrRemoteUnavailable)
		}
		return fmt.Errorf("%s: %w", payload.Message, model.ErrRemoteRejected)
	}
}

// isUnauthenticated はエラーが未認証起因かどうかを判定する。
func isUnauthenticated(err error) bool {
	return errors.Is(err, model.ErrUnauthenticated)
}
