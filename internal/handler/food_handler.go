package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/nutrilog/internal/middleware"
	"github.com/hitoshi/nutrilog/internal/model"
	"github.com/hitoshi/nutrilog/internal/repository"
	"github.com/hitoshi/nutrilog/internal/usda"
)

// FoodServiceInterface は食品ハンドラーが必要とするサービスインターフェース。
type FoodServiceInterface interface {
	CreateFood(ctx context.Context, userID string, food *model.Food) (*model.Food, error)
	GetFood(ctx context.Context, foodID string) (*model.Food, error)
	UpdateFood(ctx context.Context, userID, foodID string, input *model.Food) (*model.Food, error)
	DeleteFood(ctx context.Context, userID, foodID string) error
	SearchFoods(ctx context.Context, userID string, query repository.FoodSearchQuery, includeExternal bool) ([]*model.Food, error)
	LookupBarcode(ctx context.Context, barcode string) (*model.Food, error)
	ImportFromUSDA(ctx context.Context, fdcID int64) (*model.Food, error)
	GetUSDAFood(ctx context.Context, fdcID int64) (*model.Food, error)
	SearchUSDA(ctx context.Context, keyword string, opts usda.SearchOptions) (*usda.SearchResult, error)
	Categories() []model.FoodCategory
	CheckUSDAStatus(ctx context.Context) error
}

// FoodHandler は食品マスタ管理のHTTPハンドラー。
type FoodHandler struct {
	service FoodServiceInterface
}

// NewFoodHandler はFoodHandlerを生成する。
func NewFoodHandler(service FoodServiceInterface) *FoodHandler {
	return &FoodHandler{service: service}
}

// foodRequest は食品の作成・更新リクエストのボディ。
type foodRequest struct {
	Name        string  `json:"name"`
	Brand       string  `json:"brand"`
	Barcode     string  `json:"barcode"`
	Category    string  `json:"category"`
	ServingSize float64 `json:"servingSize"`
	ServingUnit string  `json:"servingUnit"`

	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
	Fiber    float64 `json:"fiber"`
	Sugar    float64 `json:"sugar"`
	Sodium   float64 `json:"sodium"`

	Cholesterol  float64 `json:"cholesterol"`
	SaturatedFat float64 `json:"saturatedFat"`
	TransFat     float64 `json:"transFat"`
	Potassium    float64 `json:"potassium"`
	Calcium      float64 `json:"calcium"`
	Iron         float64 `json:"iron"`
	VitaminA     float64 `json:"vitaminA"`
	VitaminC     float64 `json:"vitaminC"`

	ImageURL string `json:"imageUrl"`
}

// toModel はリクエストボディをドメインモデルに変換する。
func (req *foodRequest) toModel() *model.Food {
	return &model.Food{
		Name:         req.Name,
		Brand:        req.Brand,
		Barcode:      req.Barcode,
		Category:     model.FoodCategory(req.Category),
		ServingSize:  req.ServingSize,
		ServingUnit:  req.ServingUnit,
		Calories:     req.Calories,
		Protein:      req.Protein,
		Carbs:        req.Carbs,
		Fat:          req.Fat,
		Fiber:        req.Fiber,
		Sugar:        req.Sugar,
		Sodium:       req.Sodium,
		Cholesterol:  req.Cholesterol,
		SaturatedFat: req.SaturatedFat,
		TransFat:     req.TransFat,
		Potassium:    req.Potassium,
		Calcium:      req.Calcium,
		Iron:         req.Iron,
		VitaminA:     req.VitaminA,
		VitaminC:     req.VitaminC,
		ImageURL:     req.ImageURL,
	}
}

// SearchFoods は食品を検索する。ローカルの食品マスタに加え、
// includeExternal=trueの場合はUSDAの検索結果もマージして返す。
// GET /api/foods/search?q=xxx&category=yyy&includeExternal=true&limit=25&offset=0
func (h *FoodHandler) SearchFoods(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	q := r.URL.Query()
	query := repository.FoodSearchQuery{
		Keyword:  q.Get("q"),
		Category: model.FoodCategory(q.Get("category")),
		UserID:   userID,
		Limit:    parseIntParam(q.Get("limit"), 0),
		Offset:   parseIntParam(q.Get("offset"), 0),
	}
	includeExternal := q.Get("includeExternal") == "true"

	foods, err := h.service.SearchFoods(r.Context(), userID, query, includeExternal)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]foodResponse, len(foods))
	for i, f := range foods {
		results[i] = toFoodResponse(f)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"foods": results,
		"count": len(results),
	})
}

// Categories は食品カテゴリの一覧を返す。
// GET /api/foods/categories
func (h *FoodHandler) Categories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": h.service.Categories(),
	})
}

// LookupBarcode はバーコードで食品を検索する。
// ローカルに存在しない場合はUSDAを検索し、ヒットした食品を取り込んで返す。
// GET /api/foods/barcode/{barcode}
func (h *FoodHandler) LookupBarcode(w http.ResponseWriter, r *http.Request) {
	barcode := chi.URLParam(r, "barcode")

	food, err := h.service.LookupBarcode(r.Context(), barcode)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFoodResponse(food))
}

// CreateFood はユーザー作成食品を登録する。
// POST /api/foods
func (h *FoodHandler) CreateFood(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req foodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	food, err := h.service.CreateFood(r.Context(), userID, req.toModel())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toFoodResponse(food))
}

// GetFood は食品詳細を取得する。
// GET /api/foods/{id}
func (h *FoodHandler) GetFood(w http.ResponseWriter, r *http.Request) {
	foodID := chi.URLParam(r, "id")

	food, err := h.service.GetFood(r.Context(), foodID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFoodResponse(food))
}

// UpdateFood はユーザー作成食品を更新する。
// PUT /api/foods/{id}
func (h *FoodHandler) UpdateFood(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req foodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	food, err := h.service.UpdateFood(r.Context(), userID, chi.URLParam(r, "id"), req.toModel())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFoodResponse(food))
}

// DeleteFood はユーザー作成食品を削除する。
// DELETE /api/foods/{id}
func (h *FoodHandler) DeleteFood(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.DeleteFood(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// USDAStatus はUSDA FoodData Central APIの疎通状態を返す。
// GET /api/foods/usda/status
func (h *FoodHandler) USDAStatus(w http.ResponseWriter, r *http.Request) {
	if err := h.service.CheckUSDAStatus(r.Context()); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"available": false,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"available": true,
	})
}

// SearchUSDA はUSDAのみを対象に食品を検索する。
// GET /api/foods/usda/search?q=xxx&dataType=Branded&pageSize=10&page=1
func (h *FoodHandler) SearchUSDA(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	keyword := q.Get("q")
	if keyword == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("検索キーワードを指定してください"))
		return
	}

	opts := usda.SearchOptions{
		PageSize: parseIntParam(q.Get("pageSize"), 0),
		Page:     parseIntParam(q.Get("page"), 0),
	}
	if dt := q.Get("dataType"); dt != "" {
		opts.DataTypes = []string{dt}
	}

	result, err := h.service.SearchUSDA(r.Context(), keyword, opts)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	foods := make([]foodResponse, len(result.Foods))
	for i, f := range result.Foods {
		foods[i] = toFoodResponse(f)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"totalHits": result.TotalHits,
		"foods":     foods,
	})
}

// GetUSDAFood はUSDAの食品詳細を返す。取り込み前のプレビュー用。
// GET /api/foods/usda/{fdcId}
func (h *FoodHandler) GetUSDAFood(w http.ResponseWriter, r *http.Request) {
	fdcID, err := strconv.ParseInt(chi.URLParam(r, "fdcId"), 10, 64)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("fdcIdは整数で指定してください"))
		return
	}

	food, err := h.service.GetUSDAFood(r.Context(), fdcID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFoodResponse(food))
}

// ImportFromUSDA はUSDAの食品を食品マスタに取り込む。同一fdcIdの取り込みは冪等。
// POST /api/foods/usda/{fdcId}/import
func (h *FoodHandler) ImportFromUSDA(w http.ResponseWriter, r *http.Request) {
	fdcID, err := strconv.ParseInt(chi.URLParam(r, "fdcId"), 10, 64)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("fdcIdは整数で指定してください"))
		return
	}

	food, err := h.service.ImportFromUSDA(r.Context(), fdcID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toFoodResponse(food))
}

// parseIntParam はクエリパラメータを整数に変換する。空や不正な値の場合はfallbackを返す。
func parseIntParam(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}
