package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/nutrilog/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 食品マスタ
	FoodService FoodServiceInterface

	// 食事記録・栄養集計
	EntryService     EntryServiceInterface
	NutritionService NutritionServiceInterface

	// ユーザー
	UserService UserServiceInterface

	// Prometheusメトリクス公開ハンドラー（nilの場合は/metricsを公開しない）
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORSMiddleware → SessionMiddleware → CSRFMiddleware → RateLimitMiddleware(GeneralMiddleware)
//
// 認証ルート（/auth/*）と/health、/metricsはミドルウェアチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// CORS ミドルウェアを最上位に適用（全ルートに効く）
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	foodHandler := NewFoodHandler(deps.FoodService)
	entryHandler := NewEntryHandler(deps.EntryService)
	nutritionHandler := NewNutritionHandler(deps.NutritionService)
	userHandler := NewUserHandler(deps.UserService)

	// --- 認証不要のルート ---

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
		r.Post("/change-password", authHandler.ChangePassword)
	})

	// CSRFトークン取得（Cookieベースの認証と併用）
	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 食品マスタ
		r.Route("/api/foods", func(r chi.Router) {
			r.Get("/search", foodHandler.SearchFoods)
			r.Get("/categories", foodHandler.Categories)
			r.Get("/barcode/{barcode}", foodHandler.LookupBarcode)
			r.Post("/", foodHandler.CreateFood)

			// USDA FoodData Central 連携（外部検索専用レート制限を追加）
			r.Route("/usda", func(r chi.Router) {
				r.Get("/status", foodHandler.USDAStatus)
				r.With(deps.RateLimiter.ExternalSearchMiddleware()).Get("/search", foodHandler.SearchUSDA)
				r.With(deps.RateLimiter.ExternalSearchMiddleware()).Get("/{fdcId}", foodHandler.GetUSDAFood)
				r.Post("/{fdcId}/import", foodHandler.ImportFromUSDA)
			})

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", foodHandler.GetFood)
				r.Put("/", foodHandler.UpdateFood)
				r.Delete("/", foodHandler.DeleteFood)
			})
		})

		// 食事記録
		r.Route("/api/entries", func(r chi.Router) {
			r.Post("/", entryHandler.LogEntry)
			r.Get("/", entryHandler.ListEntries)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", entryHandler.GetEntry)
				r.Put("/", entryHandler.UpdateEntry)
				r.Delete("/", entryHandler.DeleteEntry)
			})
		})

		// 栄養集計
		r.Route("/api/nutrition", func(r chi.Router) {
			r.Get("/daily/{date}", nutritionHandler.DailySummary)
			r.Get("/range", nutritionHandler.RangeSummary)
		})

		// ユーザー管理
		r.Route("/api/users/me", func(r chi.Router) {
			r.Get("/", userHandler.Profile)
			r.Put("/", userHandler.UpdateProfile)
			r.Delete("/", userHandler.DeleteAccount)

			r.Get("/goals", userHandler.Goals)
			r.Put("/goals", userHandler.UpdateGoals)
			r.Get("/goals/recommended", userHandler.RecommendedGoals)

			r.Route("/weight", func(r chi.Router) {
				r.Get("/", userHandler.ListWeights)
				r.Post("/", userHandler.LogWeight)
				r.Put("/{id}", userHandler.UpdateWeightEntry)
				r.Delete("/{id}", userHandler.DeleteWeightEntry)
			})

			r.Get("/progress", userHandler.Progress)
			r.Get("/stats", userHandler.Stats)
		})
	})

	return r
}
