package nutrition

import (
	"log/slog"
	"time"

	"github.com/hitoshi/nutrilog/internal/model"
)

// DateLayout は集計結果の日付キーに使う形式。
const DateLayout = "2006-01-02"

// MealBreakdown は食事区分ごとの栄養集計。
// 4区分は記録の有無にかかわらず常に全キーが出力される。
type MealBreakdown struct {
	Breakfast Vector `json:"breakfast"`
	Lunch     Vector `json:"lunch"`
	Dinner    Vector `json:"dinner"`
	Snack     Vector `json:"snack"`
}

// add は指定区分にベクトルを加算する。区分は検証済みであること。
func (m *MealBreakdown) add(mealType model.MealType, v Vector) {
	switch mealType {
	case model.MealBreakfast:
		m.Breakfast = m.Breakfast.Add(v)
	case model.MealLunch:
		m.Lunch = m.Lunch.Add(v)
	case model.MealDinner:
		m.Dinner = m.Dinner.Add(v)
	case model.MealSnack:
		m.Snack = m.Snack.Add(v)
	}
}

// round1 は全区分を小数第1位に丸める。
func (m *MealBreakdown) round1() {
	m.Breakfast = m.Breakfast.Round1()
	m.Lunch = m.Lunch.Round1()
	m.Dinner = m.Dinner.Round1()
	m.Snack = m.Snack.Round1()
}

// DailySummary は1日分の栄養集計結果。
type DailySummary struct {
	Date           string        `json:"date"`
	TotalNutrition Vector        `json:"totalNutrition"`
	MealBreakdown  MealBreakdown `json:"mealBreakdown"`
	EntriesCount   int           `json:"entriesCount"`
}

// RangeSummary は期間の栄養集計結果。
// DailyBreakdownのキーは設定タイムゾーンでの記録日（YYYY-MM-DD）。
type RangeSummary struct {
	StartDate      string            `json:"startDate"`
	EndDate        string            `json:"endDate"`
	TotalNutrition Vector            `json:"totalNutrition"`
	DailyBreakdown map[string]Vector `json:"dailyBreakdown"`
	MealBreakdown  MealBreakdown     `json:"mealBreakdown"`
	EntriesCount   int               `json:"entriesCount"`
}

// SummarizeDay は1日分の食事記録を集計する。
// 記録が0件の場合は全栄養素0・件数0のサマリーを返す（エラーにはしない）。
// 食品情報を解決できない記録は警告ログを出してスキップし、合計と件数から除外する。
// 定義外の食事区分を持つ記録が混入した場合はINVALID_MEAL_TYPEエラーを返す。
func SummarizeDay(logger *slog.Logger, date string, entries []*model.FoodEntry) (*DailySummary, error) {
	summary := &DailySummary{Date: date}

	for _, entry := range entries {
		if _, ok := model.ParseMealType(string(entry.MealType)); !ok {
			return nil, model.NewInvalidMealTypeError(string(entry.MealType))
		}
		if entry.Food == nil {
			logger.Warn("food not resolved for entry, skipping",
				slog.String("entry_id", entry.ID),
				slog.String("food_id", entry.FoodID))
			continue
		}

		scaled := ScaleServing(VectorFromFood(entry.Food), entry.Food.ServingSize, entry.Quantity)
		summary.TotalNutrition = summary.TotalNutrition.Add(scaled)
		summary.MealBreakdown.add(entry.MealType, scaled)
		summary.EntriesCount++
	}

	summary.TotalNutrition = summary.TotalNutrition.Round1()
	summary.MealBreakdown.round1()
	return summary, nil
}

// SummarizeRange は期間の食事記録を集計する。
// 日別内訳のキーは各記録のConsumedAtをlocで解釈した日付。
// 食品情報が欠落した記録とServingSizeが0以下の記録は警告ログを出してスキップする。
func SummarizeRange(logger *slog.Logger, loc *time.Location, startDate, endDate string, entries []*model.FoodEntry) (*RangeSummary, error) {
	summary := &RangeSummary{
		StartDate:      startDate,
		EndDate:        endDate,
		DailyBreakdown: make(map[string]Vector),
	}

	for _, entry := range entries {
		if _, ok := model.ParseMealType(string(entry.MealType)); !ok {
			return nil, model.NewInvalidMealTypeError(string(entry.MealType))
		}
		if entry.Food == nil {
			logger.Warn("food not resolved for entry, skipping",
				slog.String("entry_id", entry.ID),
				slog.String("food_id", entry.FoodID))
			continue
		}
		if entry.Food.ServingSize <= 0 {
			logger.Warn("food has no serving size, skipping",
				slog.String("entry_id", entry.ID),
				slog.String("food_id", entry.Food.ID))
			continue
		}

		scaled := ScaleServing(VectorFromFood(entry.Food), entry.Food.ServingSize, entry.Quantity)
		day := entry.ConsumedAt.In(loc).Format(DateLayout)

		summary.TotalNutrition = summary.TotalNutrition.Add(scaled)
		summary.DailyBreakdown[day] = summary.DailyBreakdown[day].Add(scaled)
		summary.MealBreakdown.add(entry.MealType, scaled)
		summary.EntriesCount++
	}

	summary.TotalNutrition = summary.TotalNutrition.Round1()
	summary.MealBreakdown.round1()
	for day, v := range summary.DailyBreakdown {
		summary.DailyBreakdown[day] = v.Round1()
	}
	return summary, nil
}
