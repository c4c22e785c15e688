package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/nutrilog/internal/middleware"
	"github.com/hitoshi/nutrilog/internal/model"
	"github.com/hitoshi/nutrilog/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Profile(ctx context.Context, userID string) (*user.Profile, error)
	UpdateProfile(ctx context.Context, userID string, input user.ProfileInput) (*user.Profile, error)
	DeleteAccount(ctx context.Context, userID string) error
	Goals(ctx context.Context, userID string) (*model.NutritionGoals, error)
	UpdateGoals(ctx context.Context, userID string, goals model.NutritionGoals) (*model.NutritionGoals, error)
	RecommendedGoals(ctx context.Context, userID string) (*model.NutritionGoals, error)
	LogWeight(ctx context.Context, userID string, input user.WeightInput) (*model.WeightEntry, error)
	ListWeights(ctx context.Context, userID, from, to string, limit int) ([]*model.WeightEntry, error)
	UpdateWeightEntry(ctx context.Context, userID, entryID string, input user.WeightInput) (*model.WeightEntry, error)
	DeleteWeightEntry(ctx context.Context, userID, entryID string) error
	Progress(ctx context.Context, userID string, days int) (*user.WeightProgress, error)
	Stats(ctx context.Context, userID string) (*user.Stats, error)
}

// UserHandler はユーザープロフィール・目標・体重記録のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// profileRequest はプロフィール更新リクエストのボディ。
// 省略されたフィールドは変更しない。
type profileRequest struct {
	FirstName     string   `json:"firstName"`
	LastName      string   `json:"lastName"`
	DateOfBirth   *string  `json:"dateOfBirth"` // YYYY-MM-DD
	Gender        string   `json:"gender"`
	Height        *float64 `json:"height"`
	Weight        *float64 `json:"weight"`
	ActivityLevel string   `json:"activityLevel"`
	Goal          string   `json:"goal"`
	TargetWeight  *float64 `json:"targetWeight"`
	Timezone      string   `json:"timezone"`
	Units         string   `json:"units"`
	AvatarURL     string   `json:"avatarUrl"`
}

// goalsRequest は栄養目標更新リクエストのボディ。
type goalsRequest struct {
	DailyCalories float64 `json:"dailyCalories"`
	DailyProtein  float64 `json:"dailyProtein"`
	DailyCarbs    float64 `json:"dailyCarbs"`
	DailyFat      float64 `json:"dailyFat"`
	DailyFiber    float64 `json:"dailyFiber"`
	DailySodium   float64 `json:"dailySodium"`
}

// weightRequest は体重記録の登録・更新リクエストのボディ。
type weightRequest struct {
	Weight     float64    `json:"weight"` // kg
	RecordedAt *time.Time `json:"recordedAt"`
	Notes      string     `json:"notes"`
}

// progressResponse は体重推移のAPIレスポンス。
type progressResponse struct {
	StartWeight        *float64 `json:"startWeight,omitempty"`
	CurrentWeight      *float64 `json:"currentWeight,omitempty"`
	TargetWeight       *float64 `json:"targetWeight,omitempty"`
	GoalType           string   `json:"goalType,omitempty"`
	TotalChange        float64  `json:"totalChange"`
	WeeklyAverage      *float64 `json:"weeklyAverage,omitempty"`
	MonthlyAverage     *float64 `json:"monthlyAverage,omitempty"`
	WeightTrend        float64  `json:"weightTrend"`
	ProgressPercentage float64  `json:"progressPercentage"`
	BMI                float64  `json:"bmi,omitempty"`
	EntriesCount       int      `json:"entriesCount"`
	DaysTracked        int      `json:"daysTracked"`
}

// statsResponse はユーザー統計のAPIレスポンス。
type statsResponse struct {
	CurrentStreak  int                    `json:"currentStreak"`
	WeeklyActivity weeklyActivityResponse `json:"weeklyActivity"`
}

type weeklyActivityResponse struct {
	DaysLogged    int     `json:"daysLogged"`
	TotalLogs     int     `json:"totalLogs"`
	AvgLogsPerDay float64 `json:"avgLogsPerDay"`
}

// toProfileResponse はプロフィールをAPIレスポンスに変換する。
// 身体情報が揃っている場合のみmetricsを含める。
func toProfileResponse(p *user.Profile) userResponse {
	resp := toUserResponse(p.User)
	if p.BMR > 0 {
		resp.Metrics = &userMetrics{
			Age:  p.Age,
			BMI:  p.BMI,
			BMR:  p.BMR,
			TDEE: p.TDEE,
		}
	}
	return resp
}

// Profile は現在のユーザーのプロフィールを返す。
// GET /api/users/me
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	profile, err := h.service.Profile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

// UpdateProfile はプロフィールを更新する。
// PUT /api/users/me
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	input := user.ProfileInput{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Gender:        req.Gender,
		ActivityLevel: req.ActivityLevel,
		FitnessGoal:   req.Goal,
		HeightCm:      req.Height,
		WeightKg:      req.Weight,
		TargetWeight:  req.TargetWeight,
		Timezone:      req.Timezone,
		Units:         req.Units,
		AvatarURL:     req.AvatarURL,
	}
	if req.DateOfBirth != nil && *req.DateOfBirth != "" {
		dob, err := time.Parse(dateLayout, *req.DateOfBirth)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest,
				model.NewValidationError("生年月日はYYYY-MM-DD形式で指定してください"))
			return
		}
		input.DateOfBirth = &dob
	}

	profile, err := h.service.UpdateProfile(r.Context(), userID, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

// DeleteAccount はアカウントを退会状態にする。
// DELETE /api/users/me
func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.DeleteAccount(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	// セッションCookieをクリア
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	w.WriteHeader(http.StatusNoContent)
}

// Goals は現在の栄養目標を返す。
// カスタム目標があればそれを、なければプロフィールから計算した推奨値を返す。
// GET /api/users/me/goals
func (h *UserHandler) Goals(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	goals, err := h.service.Goals(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toGoalsResponse(goals))
}

// UpdateGoals はカスタム栄養目標を設定する。
// PUT /api/users/me/goals
func (h *UserHandler) UpdateGoals(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req goalsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	goals, err := h.service.UpdateGoals(r.Context(), userID, model.NutritionGoals{
		DailyCalories: req.DailyCalories,
		DailyProtein:  req.DailyProtein,
		DailyCarbs:    req.DailyCarbs,
		DailyFat:      req.DailyFat,
		DailyFiber:    req.DailyFiber,
		DailySodium:   req.DailySodium,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toGoalsResponse(goals))
}

// RecommendedGoals はプロフィールから計算した推奨栄養目標を返す。
// GET /api/users/me/goals/recommended
func (h *UserHandler) RecommendedGoals(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	goals, err := h.service.RecommendedGoals(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toGoalsResponse(goals))
}

// LogWeight は体重を記録する。
// POST /api/users/me/weight
func (h *UserHandler) LogWeight(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req weightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	logged, err := h.service.LogWeight(r.Context(), userID, user.WeightInput{
		WeightKg:   req.Weight,
		RecordedAt: req.RecordedAt,
		Notes:      req.Notes,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toWeightEntryResponse(logged))
}

// ListWeights は体重記録の一覧を返す。
// GET /api/users/me/weight?from=2026-08-01&to=2026-09-01&limit=30
func (h *UserHandler) ListWeights(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	q := r.URL.Query()
	entries, err := h.service.ListWeights(r.Context(), userID,
		q.Get("from"), q.Get("to"), parseIntParam(q.Get("limit"), 0))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]weightEntryResponse, len(entries))
	for i, e := range entries {
		results[i] = toWeightEntryResponse(e)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": results,
		"count":   len(results),
	})
}

// UpdateWeightEntry は体重記録を更新する。
// PUT /api/users/me/weight/{id}
func (h *UserHandler) UpdateWeightEntry(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req weightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	updated, err := h.service.UpdateWeightEntry(r.Context(), userID, chi.URLParam(r, "id"), user.WeightInput{
		WeightKg:   req.Weight,
		RecordedAt: req.RecordedAt,
		Notes:      req.Notes,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toWeightEntryResponse(updated))
}

// DeleteWeightEntry は体重記録を削除する。
// DELETE /api/users/me/weight/{id}
func (h *UserHandler) DeleteWeightEntry(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.DeleteWeightEntry(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Progress は体重推移のサマリを返す。
// GET /api/users/me/progress?days=30
func (h *UserHandler) Progress(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	days := parseIntParam(r.URL.Query().Get("days"), 0)
	progress, err := h.service.Progress(r.Context(), userID, days)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, progressResponse{
		StartWeight:        progress.StartWeight,
		CurrentWeight:      progress.CurrentWeight,
		TargetWeight:       progress.TargetWeight,
		GoalType:           string(progress.GoalType),
		TotalChange:        progress.TotalChange,
		WeeklyAverage:      progress.WeeklyAverage,
		MonthlyAverage:     progress.MonthlyAverage,
		WeightTrend:        progress.Trend,
		ProgressPercentage: progress.ProgressPercent,
		BMI:                progress.BMI,
		EntriesCount:       progress.EntriesCount,
		DaysTracked:        progress.DaysTracked,
	})
}

// Stats はダッシュボード向けのユーザー統計を返す。
// GET /api/users/me/stats
func (h *UserHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	stats, err := h.service.Stats(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		CurrentStreak: stats.CurrentStreak,
		WeeklyActivity: weeklyActivityResponse{
			DaysLogged:    stats.WeeklyActivity.DaysLogged,
			TotalLogs:     stats.WeeklyActivity.TotalLogs,
			AvgLogsPerDay: stats.WeeklyActivity.AvgLogsPerDay,
		},
	})
}
