package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/callumw118/Secret-Register-Login/internal/metrics"
	"github.com/callumw118/Secret-Register-Login/internal/middleware"
)

// HealthChecker はヘルスチェックに必要なインターフェース。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionRestorer middleware.SessionRestorer
	Logger          *slog.Logger

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// シークレット
	SecretService SecretServiceInterface

	// 描画
	Renderer Renderer

	// 運用
	HealthChecker HealthChecker
	Gatherer      prometheus.Gatherer
}

// NewRouter は全ルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → Session
//
// 認可ゲート（RequireAuth）は保護ルートのグループにのみ適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	// セッション復元はリクエストごとに毎回行う
	r.Use(middleware.NewSessionMiddleware(deps.SessionRestorer))

	authHandler := NewAuthHandler(deps.AuthService, deps.Renderer, deps.AuthConfig)
	secretHandler := NewSecretHandler(deps.SecretService, deps.Renderer)

	// --- 認証不要のルート ---

	r.Get("/", authHandler.ShowHome)
	r.Get("/login", authHandler.ShowLogin)
	r.Post("/login", authHandler.Login)
	r.Get("/register", authHandler.ShowRegister)
	r.Post("/register", authHandler.Register)

	r.Route("/auth", func(r chi.Router) {
		r.Get("/google", authHandler.GoogleLogin)
		r.Get("/google/callback", authHandler.GoogleCallback)
	})

	// シークレット一覧は公開
	r.Get("/secrets", secretHandler.ShowSecrets)

	// ログアウトは未ログインでも冪等に成功させるためゲートの外に置く
	r.Get("/logout", authHandler.Logout)

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewRequireAuthMiddleware("/login"))

		r.Get("/submit", secretHandler.ShowSubmit)
		r.Post("/submit", secretHandler.Submit)
	})

	// --- 運用ルート ---

	if deps.HealthChecker != nil {
		r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
			if err := deps.HealthChecker.PingContext(req.Context()); err != nil {
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})
	}

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	return r
}
