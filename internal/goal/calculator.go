// Package goal は栄養目標の自動計算ロジックを提供する。
// BMRはミフリン・セントジョー式、TDEEは活動レベル係数による推定。
// すべて純粋関数で、現在時刻は呼び出し側から渡す。
package goal

import (
	"math"
	"time"

	"github.com/hitoshi/nutrilog/internal/model"
)

// カロリー調整と多量栄養素の配分ルール。
const (
	// caloriesDeficitLose は減量時の1日あたりカロリー削減量（kcal）。
	caloriesDeficitLose = 500
	// caloriesSurplusGain は増量・筋肉増強時の1日あたりカロリー追加量（kcal）。
	caloriesSurplusGain = 300
	// caloriesFloor は目標カロリーの下限（kcal）。これ未満には調整しない。
	caloriesFloor = 1200
	// proteinPerKg は体重1kgあたりのタンパク質目標（g）。
	proteinPerKg = 1.8
	// fatCalorieRatio は脂質由来カロリーの割合。
	fatCalorieRatio = 0.25
	// carbsFloor は炭水化物目標の下限（g）。
	carbsFloor = 50
	// fiberPer1000Kcal は1000kcalあたりの食物繊維目標（g）。
	fiberPer1000Kcal = 14
	// fiberFloor は食物繊維目標の下限（g）。
	fiberFloor = 25
	// sodiumLimit はナトリウム目標の固定値（mg）。
	sodiumLimit = 2300
)

// 1gあたりのカロリー換算値。
const (
	kcalPerGramProtein = 4
	kcalPerGramCarbs   = 4
	kcalPerGramFat     = 9
)

// CalculateBMR は基礎代謝量（kcal/日）をミフリン・セントジョー式で計算する。
//
//	男性: 10×体重(kg) + 6.25×身長(cm) − 5×年齢 + 5
//	女性: 10×体重(kg) + 6.25×身長(cm) − 5×年齢 − 161
//
// 性別がmale以外の場合は女性係数を使用する。
func CalculateBMR(weightKg, heightCm float64, age int, gender model.Gender) float64 {
	base := 10*weightKg + 6.25*heightCm - 5*float64(age)
	if gender == model.GenderMale {
		return base + 5
	}
	return base - 161
}

// activityMultipliers は活動レベルごとのTDEE係数。
var activityMultipliers = map[model.ActivityLevel]float64{
	model.ActivitySedentary:        1.2,
	model.ActivityLightlyActive:    1.375,
	model.ActivityModeratelyActive: 1.55,
	model.ActivityVeryActive:       1.725,
	model.ActivityExtremelyActive:  1.9,
	// 旧クライアントが送信する別名
	"extra_active": 1.9,
}

// CalculateTDEE は総消費エネルギー量（kcal/日）を計算する。
// 未知の活動レベルは座位中心（1.2）として扱う。
func CalculateTDEE(bmr float64, level model.ActivityLevel) float64 {
	multiplier, ok := activityMultipliers[level]
	if !ok {
		multiplier = 1.2
	}
	return bmr * multiplier
}

// CalculateBMI はBMI（体重kg ÷ 身長m²）を小数第1位で返す。
// 身長が0以下の場合は0を返す。
func CalculateBMI(weightKg, heightCm float64) float64 {
	if heightCm <= 0 {
		return 0
	}
	heightM := heightCm / 100
	return math.Round(weightKg/(heightM*heightM)*10) / 10
}

// Defaults は身体情報が不足している場合に使う標準的な栄養目標を返す。
func Defaults() model.NutritionGoals {
	return model.NutritionGoals{
		DailyCalories: 2000,
		DailyProtein:  120,
		DailyCarbs:    250,
		DailyFat:      67,
		DailyFiber:    25,
		DailySodium:   sodiumLimit,
	}
}

// Recommend はプロフィールから推奨栄養目標を計算する。
// 呼び出し側でHasCompleteMetricsを確認していることを前提とする。
//
// カロリー: TDEEに目標別の調整（減量−500 / 増量・筋肉増強+300）を適用し、
// 1200kcalを下限として丸める。
// タンパク質: 体重×1.8g。脂質: カロリーの25%をgに換算。
// 炭水化物: 残りカロリーから算出し50gを下限とする。
// 食物繊維: 1000kcalあたり14g（下限25g）。ナトリウム: 2300mg固定。
func Recommend(u *model.User, now time.Time) model.NutritionGoals {
	weight := *u.WeightKg
	bmr := CalculateBMR(weight, *u.HeightCm, u.Age(now), u.Gender)
	tdee := CalculateTDEE(bmr, u.ActivityLevel)

	calories := tdee
	switch u.FitnessGoal {
	case model.GoalLoseWeight:
		calories = tdee - caloriesDeficitLose
	case model.GoalGainWeight, model.GoalBuildMuscle:
		calories = tdee + caloriesSurplusGain
	}
	calories = math.Round(math.Max(calories, caloriesFloor))

	protein := math.Round(weight * proteinPerKg)
	fat := math.Round(calories * fatCalorieRatio / kcalPerGramFat)
	carbs := math.Round((calories - protein*kcalPerGramProtein - fat*kcalPerGramFat) / kcalPerGramCarbs)
	carbs = math.Max(carbs, carbsFloor)
	fiber := math.Max(math.Round(calories/1000*fiberPer1000Kcal), fiberFloor)

	return model.NutritionGoals{
		DailyCalories: calories,
		DailyProtein:  protein,
		DailyCarbs:    carbs,
		DailyFat:      fat,
		DailyFiber:    fiber,
		DailySodium:   sodiumLimit,
		Metadata: &model.GoalsMetadata{
			BMR:           math.Round(bmr*100) / 100,
			TDEE:          math.Round(tdee*100) / 100,
			ActivityLevel: u.ActivityLevel,
			FitnessGoal:   u.FitnessGoal,
			ProteinPerKg:  proteinPerKg,
			FatPercentage: fatCalorieRatio * 100,
			CalculatedAt:  now,
		},
	}
}

// GoalsFor はユーザーに適用する栄養目標を返す。
// 身体情報が揃っていれば推奨目標、不足していれば標準目標。エラーは返さない。
func GoalsFor(u *model.User, now time.Time) model.NutritionGoals {
	if u == nil || !u.HasCompleteMetrics() {
		return Defaults()
	}
	return Recommend(u, now)
}
