package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/ideaboard/internal/metrics"
	"github.com/hitoshi/ideaboard/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger

	// メトリクス
	MetricsCollector metrics.MetricsCollector
	MetricsGatherer  prometheus.Gatherer

	// 認証
	CredentialService CredentialServiceInterface
	Identity          IdentityAuthenticatorInterface
	OAuthProvider     OAuthProviderInterface
	SessionIssuer     SessionIssuerInterface
	AvatarRefresher   AvatarRefresher
	AuthConfig        AuthHandlerConfig

	// アイデアボード
	IdeaService IdeaServiceInterface

	// ユーザー
	UserService UserServiceInterface

	// ヘルスチェック
	HealthChecker HealthChecker
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Recovery → Logging → Metrics → Gate
//
// ルートゲートは全ルートに適用されるが、/auth/*、/api/auth/*、
// /health、/metrics等のインフラパスは判定自体をバイパスする。
// CSRF検証は状態変更を伴う/api配下に適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	if deps.MetricsCollector != nil {
		r.Use(metrics.NewHTTPMiddleware(deps.MetricsCollector))
	}
	r.Use(middleware.NewGateMiddleware(deps.TokenVerifier))

	authHandler := NewAuthHandler(
		deps.CredentialService,
		deps.Identity,
		deps.OAuthProvider,
		deps.SessionIssuer,
		deps.AvatarRefresher,
		deps.AuthConfig,
	)
	ideaHandler := NewIdeaHandler(deps.IdeaService)
	userHandler := NewUserHandler(deps.UserService)

	// --- ゲートをバイパスするインフラルート ---

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// 認証ルート（OAuthフロー・セッション管理）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.GoogleLogin)
		r.Get("/google/callback", authHandler.GoogleCallback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// クレデンシャル認証ルート
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.Signup)
		r.Post("/signin", authHandler.Signin)
		r.Method(http.MethodGet, "/csrf", middleware.NewCSRFTokenHandler(deps.CSRFConfig))
	})

	// --- ゲートを通過するルート ---
	// ミドルウェアスタック: CSRF → RateLimit
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		// アイデアボード
		r.Route("/api/ideas", func(r chi.Router) {
			r.Get("/", ideaHandler.ListIdeas)
			r.Get("/stages", ideaHandler.StageSummaries)
		})

		// ユーザー管理
		r.Route("/api/users", func(r chi.Router) {
			r.Get("/me", userHandler.GetProfile)
			r.Get("/me/avatar", userHandler.GetAvatar)
		})
	})

	return r
}
