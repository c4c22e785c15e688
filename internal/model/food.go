// Package model はドメインモデルを定義する。
package model

import "time"

// FoodCategory は食品の分類を表す。
type FoodCategory string

const (
	// CategoryFruits は果物。
	CategoryFruits FoodCategory = "fruits"
	// CategoryVegetables は野菜。
	CategoryVegetables FoodCategory = "vegetables"
	// CategoryGrains は穀物。
	CategoryGrains FoodCategory = "grains"
	// CategoryProtein はタンパク質源（肉・魚・卵・豆類）。
	CategoryProtein FoodCategory = "protein"
	// CategoryDairy は乳製品。
	CategoryDairy FoodCategory = "dairy"
	// CategorySnacks は菓子・スナック類。
	CategorySnacks FoodCategory = "snacks"
	// CategoryBeverages は飲料。
	CategoryBeverages FoodCategory = "beverages"
	// CategoryOther は上記に分類できない食品。
	CategoryOther FoodCategory = "other"
)

// FoodCategories は有効なカテゴリの一覧。
var FoodCategories = []FoodCategory{
	CategoryFruits,
	CategoryVegetables,
	CategoryGrains,
	CategoryProtein,
	CategoryDairy,
	CategorySnacks,
	CategoryBeverages,
	CategoryOther,
}

// IsValidFoodCategory はカテゴリが定義済みのいずれかであるかを返す。
func IsValidFoodCategory(c FoodCategory) bool {
	for _, v := range FoodCategories {
		if c == v {
			return true
		}
	}
	return false
}

// Food は食品マスタの1件を表す。
// 栄養素の値はすべてServingSize（ServingUnit単位）あたりの量。
type Food struct {
	ID          string
	Name        string
	Brand       string
	Barcode     string
	Category    FoodCategory
	ServingSize float64
	ServingUnit string // "g", "ml", "oz" 等

	// 主要栄養素（1食分あたり）
	Calories float64 // kcal
	Protein  float64 // g
	Carbs    float64 // g
	Fat      float64 // g
	Fiber    float64 // g
	Sugar    float64 // g
	Sodium   float64 // mg

	// 拡張栄養素（1食分あたり、取得できた場合のみ）
	Cholesterol  float64 // mg
	SaturatedFat float64 // g
	TransFat     float64 // g
	Potassium    float64 // mg
	Calcium      float64 // mg
	Iron         float64 // mg
	VitaminA     float64 // IU
	VitaminC     float64 // mg

	ImageURL string
	Verified bool   // USDA由来など検証済みデータかどうか
	FdcID    int64  // USDA FoodData CentralのID（インポート元、0は未連携）
	UserID   string // ユーザー作成食品の所有者（空は共有食品）

	CreatedAt time.Time
	UpdatedAt time.Time
}
