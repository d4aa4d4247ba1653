package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/middleware"
	"github.com/hitoshi/taskman/internal/repository"
	"github.com/hitoshi/taskman/internal/security"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authenticator     middleware.TokenAuthenticator
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// サービス・リポジトリ
	AccountService AccountServiceInterface
	ObjectiveRepo  repository.ObjectiveRepository
	RatingRepo     repository.RatingRepository
	Sanitizer      security.TextSanitizerService

	// メトリクス
	Collector metrics.MetricsCollector
	Gatherer  prometheus.Gatherer

	// ヘルスチェック
	HealthChecker HealthChecker
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → CORS → Auth → RateLimit(General)
//
// 認証ルート（/auth/*）と運用エンドポイント（/healthz、/metrics）は
// 認証ミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(metrics.NewHTTPMetricsMiddleware(deps.Collector))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AccountService, deps.Collector)
	objectiveHandler := NewObjectiveHandler(deps.ObjectiveRepo, deps.Sanitizer, deps.Collector)
	ratingHandler := NewRatingHandler(deps.RatingRepo, deps.Collector)

	// --- 認証不要のルート ---

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/confirm", authHandler.Confirm)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
		r.Post("/logout", authHandler.Logout)
		r.Post("/recover", authHandler.Recover)
		r.Post("/reset", authHandler.Reset)

		// /auth/me のみ認証が必要
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAuthMiddleware(deps.Authenticator))
			r.Get("/me", authHandler.Me)
		})
	})

	// 運用エンドポイント
	r.Get("/healthz", NewHealthHandler(deps.HealthChecker))
	r.Handle("/metrics", metrics.Handler(deps.Gatherer))

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.Authenticator))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 目標管理
		r.Route("/api/objectives", func(r chi.Router) {
			r.Get("/", objectiveHandler.List)

			// 書き込み系には専用レート制限を追加
			r.With(deps.RateLimiter.MutationMiddleware()).Post("/", objectiveHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.With(deps.RateLimiter.MutationMiddleware()).Patch("/", objectiveHandler.Update)
				r.With(deps.RateLimiter.MutationMiddleware()).Delete("/", objectiveHandler.Delete)
			})
		})

		// アプリ評価
		r.Route("/api/ratings", func(r chi.Router) {
			r.Get("/", ratingHandler.Summary)
			r.With(deps.RateLimiter.MutationMiddleware()).Post("/", ratingHandler.Submit)
		})
	})

	return r
}
