package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/nutrilog/internal/middleware"
	"github.com/hitoshi/nutrilog/internal/model"
	"github.com/hitoshi/nutrilog/internal/nutrition"
)

// NutritionServiceInterface は栄養集計ハンドラーが必要とするサービスインターフェース。
type NutritionServiceInterface interface {
	DailySummary(ctx context.Context, userID, date string) (*nutrition.DailySummary, error)
	RangeSummary(ctx context.Context, userID, startDate, endDate string) (*nutrition.RangeSummary, error)
}

// NutritionHandler は栄養集計のHTTPハンドラー。
// 集計結果の構造体はJSONタグ付きなのでそのままレスポンスとして返す。
type NutritionHandler struct {
	service NutritionServiceInterface
}

// NewNutritionHandler はNutritionHandlerを生成する。
func NewNutritionHandler(service NutritionServiceInterface) *NutritionHandler {
	return &NutritionHandler{service: service}
}

// DailySummary は指定日の栄養集計を返す。
// GET /api/nutrition/daily/{date}
func (h *NutritionHandler) DailySummary(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	summary, err := h.service.DailySummary(r.Context(), userID, chi.URLParam(r, "date"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// RangeSummary は期間の栄養集計を返す。
// GET /api/nutrition/range?startDate=2026-08-01&endDate=2026-08-31
func (h *NutritionHandler) RangeSummary(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	q := r.URL.Query()
	startDate := q.Get("startDate")
	endDate := q.Get("endDate")
	if startDate == "" || endDate == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("startDateとendDateの両方を指定してください"))
		return
	}

	summary, err := h.service.RangeSummary(r.Context(), userID, startDate, endDate)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
