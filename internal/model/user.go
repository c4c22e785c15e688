// Package model はドメインモデルを定義する。
package model

import "time"

// Gender はユーザーの性別を表す。BMR計算（ミフリン・セントジョー式）で使用する。
type Gender string

const (
	// GenderMale は男性。
	GenderMale Gender = "male"
	// GenderFemale は女性。
	GenderFemale Gender = "female"
	// GenderOther はその他。BMR計算では女性係数を使用する。
	GenderOther Gender = "other"
)

// ActivityLevel は日常の活動レベルを表す。TDEE計算の係数に対応する。
type ActivityLevel string

const (
	// ActivitySedentary は座位中心の生活（係数1.2）。
	ActivitySedentary ActivityLevel = "sedentary"
	// ActivityLightlyActive は軽い運動を週1〜3回（係数1.375）。
	ActivityLightlyActive ActivityLevel = "lightly_active"
	// ActivityModeratelyActive は中程度の運動を週3〜5回（係数1.55）。
	ActivityModeratelyActive ActivityLevel = "moderately_active"
	// ActivityVeryActive は激しい運動を週6〜7回（係数1.725）。
	ActivityVeryActive ActivityLevel = "very_active"
	// ActivityExtremelyActive は非常に激しい運動・肉体労働（係数1.9）。
	ActivityExtremelyActive ActivityLevel = "extremely_active"
)

// FitnessGoal はユーザーのフィットネス目標を表す。
type FitnessGoal string

const (
	// GoalLoseWeight は減量目標。
	GoalLoseWeight FitnessGoal = "lose_weight"
	// GoalMaintainWeight は体重維持目標。
	GoalMaintainWeight FitnessGoal = "maintain_weight"
	// GoalGainWeight は増量目標。
	GoalGainWeight FitnessGoal = "gain_weight"
	// GoalBuildMuscle は筋肉増強目標。カロリー調整は増量と同じ扱い。
	GoalBuildMuscle FitnessGoal = "build_muscle"
)

// User はサービス利用ユーザーとそのプロフィールを表す。
// 身長・体重などの身体情報は栄養目標の自動計算に使用されるため、
// 未設定（nil）を区別できるようポインタで保持する。
type User struct {
	ID            string
	Email         string
	PasswordHash  string
	FirstName     string
	LastName      string
	DateOfBirth   *time.Time
	Gender        Gender
	HeightCm      *float64
	WeightKg      *float64
	ActivityLevel ActivityLevel
	FitnessGoal   FitnessGoal
	TargetWeight  *float64
	AvatarURL     string
	Timezone      string
	Units         string // "metric" または "imperial"
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Age は基準時刻nowにおける満年齢を返す。生年月日未設定の場合は0を返す。
func (u *User) Age(now time.Time) int {
	if u.DateOfBirth == nil {
		return 0
	}
	dob := *u.DateOfBirth
	age := now.Year() - dob.Year()
	// 今年の誕生日がまだ来ていなければ1引く
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}

// HasCompleteMetrics は栄養目標の自動計算に必要な身体情報が揃っているかを返す。
func (u *User) HasCompleteMetrics() bool {
	return u.WeightKg != nil && *u.WeightKg > 0 &&
		u.HeightCm != nil && *u.HeightCm > 0 &&
		u.DateOfBirth != nil &&
		u.Gender != "" &&
		u.ActivityLevel != ""
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
