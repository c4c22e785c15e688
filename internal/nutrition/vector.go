// Package nutrition は食事記録の栄養集計ロジックを提供する。
// 日次・期間のサマリー計算はすべて純粋関数として実装し、
// 丸め処理は最終出力時に一度だけ行う。
package nutrition

import (
	"math"

	"github.com/hitoshi/nutrilog/internal/model"
)

// Vector は追跡対象7栄養素の固定スキーマを表す。
// ゼロ値はすべて0の有効なベクトル。JSONキーは保存データやAPIレスポンスで
// 共通に使うため固定する。
type Vector struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
	Fiber    float64 `json:"fiber"`
	Sugar    float64 `json:"sugar"`
	Sodium   float64 `json:"sodium"`
}

// Add は2つのベクトルの成分ごとの和を返す。
func (v Vector) Add(o Vector) Vector {
	return Vector{
		Calories: v.Calories + o.Calories,
		Protein:  v.Protein + o.Protein,
		Carbs:    v.Carbs + o.Carbs,
		Fat:      v.Fat + o.Fat,
		Fiber:    v.Fiber + o.Fiber,
		Sugar:    v.Sugar + o.Sugar,
		Sodium:   v.Sodium + o.Sodium,
	}
}

// Scale は全成分をf倍したベクトルを返す。
func (v Vector) Scale(f float64) Vector {
	return Vector{
		Calories: v.Calories * f,
		Protein:  v.Protein * f,
		Carbs:    v.Carbs * f,
		Fat:      v.Fat * f,
		Fiber:    v.Fiber * f,
		Sugar:    v.Sugar * f,
		Sodium:   v.Sodium * f,
	}
}

// Round1 は全成分を小数第1位に丸めたベクトルを返す。
// 丸めは集計の最終段でのみ適用する。中間値は丸めない。
func (v Vector) Round1() Vector {
	return Vector{
		Calories: round1(v.Calories),
		Protein:  round1(v.Protein),
		Carbs:    round1(v.Carbs),
		Fat:      round1(v.Fat),
		Fiber:    round1(v.Fiber),
		Sugar:    round1(v.Sugar),
		Sodium:   round1(v.Sodium),
	}
}

// round1 は小数第1位への四捨五入。
func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

// VectorFromFood は食品マスタの1食分栄養素をベクトルに変換する。
func VectorFromFood(f *model.Food) Vector {
	return Vector{
		Calories: f.Calories,
		Protein:  f.Protein,
		Carbs:    f.Carbs,
		Fat:      f.Fat,
		Fiber:    f.Fiber,
		Sugar:    f.Sugar,
		Sodium:   f.Sodium,
	}
}

// defaultServingSize はServingSize未設定の食品に適用するフォールバック値（g）。
const defaultServingSize = 100

// ScaleServing は1食分あたりの栄養素ベクトルを摂取量に応じてスケールする。
// 倍率は quantity / servingSize。servingSizeが0以下の場合は100として扱う。
func ScaleServing(perServing Vector, servingSize, quantity float64) Vector {
	if servingSize <= 0 {
		servingSize = defaultServingSize
	}
	return perServing.Scale(quantity / servingSize)
}
