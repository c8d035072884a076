package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/machiawase/internal/metrics"
	"github.com/hitoshi/machiawase/internal/middleware"
)

// HealthChecker はヘルスチェックに必要な最小限のインターフェース。
// *sql.DB がこれを満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker     HealthChecker
	SessionFinder     middleware.SessionFinder
	UserFinder        middleware.UserFinder
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	StatusCollector   middleware.HTTPStatusCollector
	MetricsGatherer   prometheus.Gatherer

	// ドメインサービス
	TimePlaceService TimePlaceServiceInterface
	MatchingService  MatchingServiceInterface
	MatchService     MatchServiceInterface
	TagService       TagServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → (認証ルートのみ) Session → CSRF → RateLimit
//
// /health と /metrics はミドルウェアチェーンの認証部分の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusCollector))

	tpHandler := NewTimePlaceHandler(deps.TimePlaceService, deps.MatchingService)
	matchHandler := NewMatchHandler(deps.MatchService)
	tagHandler := NewTagHandler(deps.TagService)

	// --- 認証不要のルート ---

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.MetricsGatherer))
	}
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder, deps.UserFinder))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// タイムプレイス管理
		r.Route("/api/v1/timeplaces", func(r chi.Router) {
			r.Get("/", tpHandler.List)
			r.Post("/", tpHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", tpHandler.Get)
				r.Patch("/", tpHandler.Update)
				r.Delete("/", tpHandler.Delete)

				// GET /api/v1/timeplaces/{id}/matches - 互換候補の検索
				r.Get("/matches", tpHandler.FindMatches)
				// GET /api/v1/timeplaces/{id}/chats - タイムプレイスに紐づくマッチビュー
				r.Get("/chats", matchHandler.ListForTimePlace)
			})
		})

		// マッチ管理
		r.Route("/api/v1/matches", func(r chi.Router) {
			r.Get("/", matchHandler.List)
			// POST /api/v1/matches - マッチ作成（作成専用レート制限を追加）
			r.With(deps.RateLimiter.MatchCreationMiddleware()).Post("/", matchHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", matchHandler.Get)
				r.Delete("/", matchHandler.Delete)

				r.Post("/share_email", matchHandler.ShareEmail)
				r.Post("/share_phone", matchHandler.SharePhone)
				r.Post("/accept_chat", matchHandler.AcceptChat)

				r.Post("/chat", matchHandler.PostChat)
				r.Get("/chat", matchHandler.ListChat)
			})
		})

		// タグカタログ
		r.Route("/api/v1/interests", func(r chi.Router) {
			r.Get("/", tagHandler.ListInterests)
			r.Post("/", tagHandler.CreateInterest)
		})
		r.Route("/api/v1/activities", func(r chi.Router) {
			r.Get("/", tagHandler.ListActivities)
			r.Post("/", tagHandler.CreateActivity)
		})
		r.Route("/api/v1/languages", func(r chi.Router) {
			r.Get("/", tagHandler.ListLanguages)
			r.Post("/", tagHandler.CreateLanguage)
		})
	})

	return r
}

// NewHealthHandler はヘルスチェックエンドポイントのハンドラーを返す。
// GET /health
// DB接続を確認し、正常なら200、異常なら503を返す。
func NewHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy"})
				return
			}
		}

		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
