// Package model はドメインモデルを定義する。
package model

import "time"

// MealType は食事区分を表す。
type MealType string

const (
	// MealBreakfast は朝食。
	MealBreakfast MealType = "breakfast"
	// MealLunch は昼食。
	MealLunch MealType = "lunch"
	// MealDinner は夕食。
	MealDinner MealType = "dinner"
	// MealSnack は間食。
	MealSnack MealType = "snack"
)

// MealTypes は有効な食事区分の一覧。集計結果のキー順序もこの順に従う。
var MealTypes = []MealType{MealBreakfast, MealLunch, MealDinner, MealSnack}

// ParseMealType は文字列を食事区分に変換する。
// 定義外の値の場合はfalseを返す。
func ParseMealType(s string) (MealType, bool) {
	switch MealType(s) {
	case MealBreakfast, MealLunch, MealDinner, MealSnack:
		return MealType(s), true
	default:
		return "", false
	}
}

// FoodEntry は食事記録の1件を表す。
// Quantityの単位はUnit（通常は食品のServingUnitと同じ）。
type FoodEntry struct {
	ID         string
	UserID     string
	FoodID     string
	Quantity   float64
	Unit       string
	MealType   MealType
	ConsumedAt time.Time
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time

	// Food はJOINで取得した食品情報。解決できなかった場合はnil。
	Food *Food
}

// WeightEntry は体重記録の1件を表す。WeightKgは常にkg単位で保持する。
type WeightEntry struct {
	ID         string
	UserID     string
	WeightKg   float64
	RecordedAt time.Time
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
