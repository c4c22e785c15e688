// Package model はドメインモデルを定義する。
package model

import "time"

// NutritionGoals はユーザーの1日あたりの栄養目標を表す。
type NutritionGoals struct {
	DailyCalories float64 // kcal
	DailyProtein  float64 // g
	DailyCarbs    float64 // g
	DailyFat      float64 // g
	DailyFiber    float64 // g
	DailySodium   float64 // mg

	// Metadata は自動計算された目標にのみ付与される計算根拠。
	// ユーザーが手動設定した目標ではnil。
	Metadata *GoalsMetadata
}

// GoalsMetadata は推奨目標の計算根拠を表す。
type GoalsMetadata struct {
	BMR           float64
	TDEE          float64
	ActivityLevel ActivityLevel
	FitnessGoal   FitnessGoal
	ProteinPerKg  float64
	FatPercentage float64
	CalculatedAt  time.Time
}

// 栄養目標の手動設定で許容する範囲。
const (
	GoalsCaloriesMin = 800
	GoalsCaloriesMax = 5000
	GoalsProteinMin  = 10
	GoalsProteinMax  = 500
	GoalsCarbsMin    = 20
	GoalsCarbsMax    = 800
	GoalsFatMin      = 10
	GoalsFatMax      = 300
)
