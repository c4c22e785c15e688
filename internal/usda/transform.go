package usda

import (
	"encoding/json"
	"strings"

	"github.com/hitoshi/nutrilog/internal/model"
)

// 栄養素番号（USDA nutrient number）と食品マスタ項目の対応。
const (
	nutrientCalories     = "208"
	nutrientProtein      = "203"
	nutrientCarbs        = "205"
	nutrientFat          = "204"
	nutrientFiber        = "291"
	nutrientSugar        = "269"
	nutrientSodium       = "307"
	nutrientCholesterol  = "601"
	nutrientSaturatedFat = "606"
	nutrientTransFat     = "605"
	nutrientPotassium    = "306"
	nutrientCalcium      = "301"
	nutrientIron         = "303"
	nutrientVitaminA     = "320"
	nutrientVitaminC     = "401"
)

// applyNutrient は栄養素番号に対応する食品マスタ項目に値を設定する。
func applyNutrient(food *model.Food, number string, value float64) {
	switch number {
	case nutrientCalories:
		food.Calories = value
	case nutrientProtein:
		food.Protein = value
	case nutrientCarbs:
		food.Carbs = value
	case nutrientFat:
		food.Fat = value
	case nutrientFiber:
		food.Fiber = value
	case nutrientSugar:
		food.Sugar = value
	case nutrientSodium:
		food.Sodium = value
	case nutrientCholesterol:
		food.Cholesterol = value
	case nutrientSaturatedFat:
		food.SaturatedFat = value
	case nutrientTransFat:
		food.TransFat = value
	case nutrientPotassium:
		food.Potassium = value
	case nutrientCalcium:
		food.Calcium = value
	case nutrientIron:
		food.Iron = value
	case nutrientVitaminA:
		food.VitaminA = value
	case nutrientVitaminC:
		food.VitaminC = value
	}
}

// transformSearchFood は検索レスポンスの1件を食品マスタ形式に変換する。
// ServingSizeが欠落している場合は100gとして扱う。
func transformSearchFood(f searchFood) *model.Food {
	food := &model.Food{
		Name:        f.Description,
		Brand:       brandOf(f.BrandName, f.BrandOwner),
		Barcode:     f.GtinUpc,
		Category:    mapCategory(f.FoodCategory),
		ServingSize: f.ServingSize,
		ServingUnit: strings.ToLower(f.ServingUnit),
		Verified:    true,
		FdcID:       f.FdcID,
	}
	if food.ServingSize <= 0 {
		food.ServingSize = 100
		food.ServingUnit = "g"
	}
	if food.ServingUnit == "" {
		food.ServingUnit = "g"
	}
	for _, n := range f.FoodNutrients {
		applyNutrient(food, n.NutrientNumber, n.Value)
	}
	return food
}

// transformFoodDetail は詳細レスポンスを食品マスタ形式に変換する。
func transformFoodDetail(f foodDetailResponse) *model.Food {
	food := &model.Food{
		Name:        f.Description,
		Brand:       brandOf(f.BrandName, f.BrandOwner),
		Barcode:     f.GtinUpc,
		Category:    mapCategory(categoryText(f.FoodCategory)),
		ServingSize: f.ServingSize,
		ServingUnit: strings.ToLower(f.ServingUnit),
		Verified:    true,
		FdcID:       f.FdcID,
	}
	if food.ServingSize <= 0 {
		food.ServingSize = 100
		food.ServingUnit = "g"
	}
	if food.ServingUnit == "" {
		food.ServingUnit = "g"
	}
	for _, n := range f.FoodNutrients {
		applyNutrient(food, n.Nutrient.Number, n.Amount)
	}
	return food
}

// brandOf はブランド名を決定する。brandNameを優先しbrandOwnerで補完する。
func brandOf(brandName, brandOwner string) string {
	if brandName != "" {
		return brandName
	}
	return brandOwner
}

// categoryText は詳細レスポンスのfoodCategory（文字列または
// {"description": "..."}形式のオブジェクト）からテキストを取り出す。
func categoryText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Description string `json:"description"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Description
	}
	return ""
}

// categoryKeywords はUSDAカテゴリ名に含まれるキーワードと分類の対応。
// 判定は上から順に行う。
var categoryKeywords = []struct {
	keyword  string
	category model.FoodCategory
}{
	{"fruit", model.CategoryFruits},
	{"vegetable", model.CategoryVegetables},
	{"dairy", model.CategoryDairy},
	{"milk", model.CategoryDairy},
	{"cheese", model.CategoryDairy},
	{"yogurt", model.CategoryDairy},
	{"beef", model.CategoryProtein},
	{"poultry", model.CategoryProtein},
	{"pork", model.CategoryProtein},
	{"fish", model.CategoryProtein},
	{"seafood", model.CategoryProtein},
	{"egg", model.CategoryProtein},
	{"legume", model.CategoryProtein},
	{"nut", model.CategoryProtein},
	{"cereal", model.CategoryGrains},
	{"grain", model.CategoryGrains},
	{"baked", model.CategoryGrains},
	{"bread", model.CategoryGrains},
	{"pasta", model.CategoryGrains},
	{"snack", model.CategorySnacks},
	{"sweets", model.CategorySnacks},
	{"candy", model.CategorySnacks},
	{"beverage", model.CategoryBeverages},
	{"drink", model.CategoryBeverages},
}

// mapCategory はUSDAのカテゴリ名を食品マスタの分類に変換する。
// 対応しない場合はotherを返す。
func mapCategory(usdaCategory string) model.FoodCategory {
	lower := strings.ToLower(usdaCategory)
	for _, kw := range categoryKeywords {
		if strings.Contains(lower, kw.keyword) {
			return kw.category
		}
	}
	return model.CategoryOther
}
