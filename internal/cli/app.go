package cli

import (
	"context"
	"log/slog"

	"github.com/hitoshi/taskman/internal/client/auth"
	"github.com/hitoshi/taskman/internal/client/objective"
	"github.com/hitoshi/taskman/internal/client/rating"
	"github.com/hitoshi/taskman/internal/client/remote"
	"github.com/hitoshi/taskman/internal/client/repository"
	"github.com/hitoshi/taskman/internal/client/session"
	"github.com/hitoshi/taskman/internal/config"
	"github.com/hitoshi/taskman/internal/model"
)

// clientApp はCLIが使用するクライアントコンポーネント一式を組み立てる。
//
// 認証状態遷移を購読し、サインイン・リフレッシュでトークンを資格情報
// ファイルへ保存、サインアウトでファイルとローカルコレクションを破棄する。
type clientApp struct {
	client      *remote.Client
	store       *session.Store
	gateway     *auth.Gateway
	reconciler  *objective.Reconciler
	ratings     *rating.Service
	creds       *CredentialsStore
	unsubscribe func()
}

// newClientApp は環境変数から設定を読み込み、保存済みトークンを復元した
// 上でセッション状態を1回確認する。
func newClientApp(ctx context.Context) (*clientApp, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}

	credsPath, err := DefaultCredentialsPath()
	if err != nil {
		return nil, err
	}

	return buildClientApp(ctx, cfg, NewCredentialsStore(credsPath)), nil
}

// buildClientApp は依存を明示して組み立てる。テストから直接使用する。
func buildClientApp(ctx context.Context, cfg *config.ClientConfig, creds *CredentialsStore) *clientApp {
	client := remote.NewClient(cfg)

	if saved, err := creds.Load(); err != nil {
		slog.Warn("failed to load saved credentials",
			slog.String("error", err.Error()),
		)
	} else if saved != nil {
		client.SetTokens(saved.AccessToken, saved.RefreshToken)
	}

	store := session.NewStore(client)
	repo := repository.NewObjectiveRepository(client, store)

	app := &clientApp{
		client:     client,
		store:      store,
		gateway:    auth.NewGateway(client),
		reconciler: objective.NewReconciler(repo),
		ratings:    rating.NewService(client, store),
		creds:      creds,
	}
	app.unsubscribe = store.Subscribe(app.handleAuthEvent)

	store.Initialize(ctx)
	return app
}

// handleAuthEvent は認証状態遷移に応じて資格情報ファイルと
// ローカルコレクションを同期する。
func (a *clientApp) handleAuthEvent(event model.AuthEvent, _ model.Session) {
	switch event {
	case model.AuthEventSignedIn, model.AuthEventTokenRefreshed:
		accessToken, refreshToken := a.client.Tokens()
		err := a.creds.Save(Credentials{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
		})
		if err != nil {
			slog.Warn("failed to persist credentials",
				slog.String("error", err.Error()),
			)
		}
	case model.AuthEventSignedOut:
		a.reconciler.Reset()
		if err := a.creds.Clear(); err != nil {
			slog.Warn("failed to clear credentials",
				slog.String("error", err.Error()),
			)
		}
	}
}

// Close は購読を解放する。
func (a *clientApp) Close() {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	a.store.Close()
}
