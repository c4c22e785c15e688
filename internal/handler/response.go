package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/nutrilog/internal/model"
)

// dateLayout はAPIで受け渡す日付の形式。
const dateLayout = "2006-01-02"

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID            string       `json:"id"`
	Email         string       `json:"email"`
	FirstName     string       `json:"firstName,omitempty"`
	LastName      string       `json:"lastName,omitempty"`
	DateOfBirth   string       `json:"dateOfBirth,omitempty"`
	Gender        string       `json:"gender,omitempty"`
	Height        *float64     `json:"height,omitempty"`
	Weight        *float64     `json:"weight,omitempty"`
	ActivityLevel string       `json:"activityLevel,omitempty"`
	Goal          string       `json:"goal,omitempty"`
	TargetWeight  *float64     `json:"targetWeight,omitempty"`
	AvatarURL     string       `json:"avatarUrl,omitempty"`
	Timezone      string       `json:"timezone,omitempty"`
	Units         string       `json:"units"`
	CreatedAt     time.Time    `json:"createdAt"`
	Metrics       *userMetrics `json:"metrics,omitempty"`
}

// userMetrics はプロフィールから導出した身体指標。
type userMetrics struct {
	Age  int     `json:"age"`
	BMI  float64 `json:"bmi"`
	BMR  float64 `json:"bmr"`
	TDEE float64 `json:"tdee"`
}

// toUserResponse はmodel.UserからAPIレスポンスに変換する。
func toUserResponse(u *model.User) userResponse {
	resp := userResponse{
		ID:            u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Gender:        string(u.Gender),
		Height:        u.HeightCm,
		Weight:        u.WeightKg,
		ActivityLevel: string(u.ActivityLevel),
		Goal:          string(u.FitnessGoal),
		TargetWeight:  u.TargetWeight,
		AvatarURL:     u.AvatarURL,
		Timezone:      u.Timezone,
		Units:         u.Units,
		CreatedAt:     u.CreatedAt,
	}
	if u.DateOfBirth != nil {
		resp.DateOfBirth = u.DateOfBirth.Format(dateLayout)
	}
	return resp
}

// foodResponse は食品情報のAPIレスポンス。
type foodResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Brand       string  `json:"brand,omitempty"`
	Barcode     string  `json:"barcode,omitempty"`
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

	Cholesterol  float64 `json:"cholesterol,omitempty"`
	SaturatedFat float64 `json:"saturatedFat,omitempty"`
	TransFat     float64 `json:"transFat,omitempty"`
	Potassium    float64 `json:"potassium,omitempty"`
	Calcium      float64 `json:"calcium,omitempty"`
	Iron         float64 `json:"iron,omitempty"`
	VitaminA     float64 `json:"vitaminA,omitempty"`
	VitaminC     float64 `json:"vitaminC,omitempty"`

	ImageURL string `json:"imageUrl,omitempty"`
	Verified bool   `json:"verified"`
	FdcID    int64  `json:"fdcId,omitempty"`
	UserID   string `json:"userId,omitempty"`
}

// toFoodResponse はmodel.FoodからAPIレスポンスに変換する。
func toFoodResponse(f *model.Food) foodResponse {
	return foodResponse{
		ID:           f.ID,
		Name:         f.Name,
		Brand:        f.Brand,
		Barcode:      f.Barcode,
		Category:     string(f.Category),
		ServingSize:  f.ServingSize,
		ServingUnit:  f.ServingUnit,
		Calories:     f.Calories,
		Protein:      f.Protein,
		Carbs:        f.Carbs,
		Fat:          f.Fat,
		Fiber:        f.Fiber,
		Sugar:        f.Sugar,
		Sodium:       f.Sodium,
		Cholesterol:  f.Cholesterol,
		SaturatedFat: f.SaturatedFat,
		TransFat:     f.TransFat,
		Potassium:    f.Potassium,
		Calcium:      f.Calcium,
		Iron:         f.Iron,
		VitaminA:     f.VitaminA,
		VitaminC:     f.VitaminC,
		ImageURL:     f.ImageURL,
		Verified:     f.Verified,
		FdcID:        f.FdcID,
		UserID:       f.UserID,
	}
}

// entryResponse は食事記録のAPIレスポンス。
type entryResponse struct {
	ID         string        `json:"id"`
	UserID     string        `json:"userId"`
	FoodID     string        `json:"foodId"`
	Quantity   float64       `json:"quantity"`
	Unit       string        `json:"unit"`
	MealType   string        `json:"mealType"`
	ConsumedAt time.Time     `json:"consumedAt"`
	Notes      string        `json:"notes,omitempty"`
	Food       *foodResponse `json:"food,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// toEntryResponse はmodel.FoodEntryからAPIレスポンスに変換する。
func toEntryResponse(e *model.FoodEntry) entryResponse {
	resp := entryResponse{
		ID:         e.ID,
		UserID:     e.UserID,
		FoodID:     e.FoodID,
		Quantity:   e.Quantity,
		Unit:       e.Unit,
		MealType:   string(e.MealType),
		ConsumedAt: e.ConsumedAt,
		Notes:      e.Notes,
		CreatedAt:  e.CreatedAt,
	}
	if e.Food != nil {
		food := toFoodResponse(e.Food)
		resp.Food = &food
	}
	return resp
}

// weightEntryResponse は体重記録のAPIレスポンス。
type weightEntryResponse struct {
	ID         string    `json:"id"`
	Weight     float64   `json:"weight"`
	RecordedAt time.Time `json:"recordedAt"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// toWeightEntryResponse はmodel.WeightEntryからAPIレスポンスに変換する。
func toWeightEntryResponse(e *model.WeightEntry) weightEntryResponse {
	return weightEntryResponse{
		ID:         e.ID,
		Weight:     e.WeightKg,
		RecordedAt: e.RecordedAt,
		Notes:      e.Notes,
		CreatedAt:  e.CreatedAt,
	}
}

// goalsResponse は栄養目標のAPIレスポンス。
type goalsResponse struct {
	DailyCalories float64        `json:"dailyCalories"`
	DailyProtein  float64        `json:"dailyProtein"`
	DailyCarbs    float64        `json:"dailyCarbs"`
	DailyFat      float64        `json:"dailyFat"`
	DailyFiber    float64        `json:"dailyFiber"`
	DailySodium   float64        `json:"dailySodium"`
	Metadata      *goalsMetadata `json:"metadata,omitempty"`
}

// goalsMetadata は自動計算された目標の計算根拠。
type goalsMetadata struct {
	BMR           float64   `json:"bmr"`
	TDEE          float64   `json:"tdee"`
	ActivityLevel string    `json:"activityLevel"`
	FitnessGoal   string    `json:"fitnessGoal"`
	ProteinPerKg  float64   `json:"proteinPerKg"`
	FatPercentage float64   `json:"fatPercentage"`
	CalculatedAt  time.Time `json:"calculatedAt"`
}

// toGoalsResponse はmodel.NutritionGoalsからAPIレスポンスに変換する。
func toGoalsResponse(g *model.NutritionGoals) goalsResponse {
	resp := goalsResponse{
		DailyCalories: g.DailyCalories,
		DailyProtein:  g.DailyProtein,
		DailyCarbs:    g.DailyCarbs,
		DailyFat:      g.DailyFat,
		DailyFiber:    g.DailyFiber,
		DailySodium:   g.DailySodium,
	}
	if g.Metadata != nil {
		resp.Metadata = &goalsMetadata{
			BMR:           g.Metadata.BMR,
			TDEE:          g.Metadata.TDEE,
			ActivityLevel: string(g.Metadata.ActivityLevel),
			FitnessGoal:   string(g.Metadata.FitnessGoal),
			ProteinPerKg:  g.Metadata.ProteinPerKg,
			FatPercentage: g.Metadata.FatPercentage,
			CalculatedAt:  g.Metadata.CalculatedAt,
		}
	}
	return resp
}

// --- エラーレスポンスヘルパー ---

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeJSON(w, statusCode, apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// writeInvalidRequestBody はリクエストボディ解析失敗の400レスポンスを書き込む。
func writeInvalidRequestBody(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// writeUnauthorized は認証切れの401レスポンスを書き込む。
func writeUnauthorized(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUserNotFound,
		model.ErrCodeFoodNotFound,
		model.ErrCodeEntryNotFound,
		model.ErrCodeWeightEntryNotFound,
		model.ErrCodeBarcodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidMealType,
		model.ErrCodeInvalidDate,
		model.ErrCodeInvalidGoals,
		model.ErrCodeValidationFailed:
		return http.StatusBadRequest
	case model.ErrCodePermissionDenied:
		return http.StatusForbidden
	case model.ErrCodeDuplicateEmail:
		return http.StatusConflict
	case model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeIncompleteProfile:
		return http.StatusUnprocessableEntity
	case model.ErrCodeUSDAUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
