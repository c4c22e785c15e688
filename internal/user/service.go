// Package user はプロフィール・栄養目標・体重記録・統計のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/nutrilog/internal/goal"
	"github.com/hitoshi/nutrilog/internal/model"
	"github.com/hitoshi/nutrilog/internal/repository"
	"github.com/hitoshi/nutrilog/internal/security"
	"github.com/hitoshi/nutrilog/internal/streak"
)

// 体重記録で許容する範囲（kg）。
const (
	minWeightKg = 20
	maxWeightKg = 500
)

// minimumAge はサービス利用に必要な最低年齢。
const minimumAge = 13

// defaultProgressDays は体重推移の集計期間のデフォルト（日数）。
const defaultProgressDays = 30

// Profile はプロフィール取得のレスポンス。
// 身体情報が揃っている場合のみ派生値（BMI/BMR/TDEE）が設定される。
type Profile struct {
	User *model.User
	Age  int
	BMI  float64
	BMR  float64
	TDEE float64
}

// ProfileInput はプロフィール更新の入力。
// ポインタのフィールドはnilの場合に変更しない。
type ProfileInput struct {
	FirstName     string
	LastName      string
	DateOfBirth   *time.Time
	Gender        string
	ActivityLevel string
	FitnessGoal   string
	HeightCm      *float64
	WeightKg      *float64
	TargetWeight  *float64
	Timezone      string
	Units         string
	AvatarURL     string
}

// WeightInput は体重記録の登録・更新の入力。
type WeightInput struct {
	WeightKg   float64
	RecordedAt *time.Time // nilの場合は現在時刻
	Notes      string
}

// WeightProgress は体重推移のサマリ。
// maintain_weight目標の場合、TargetWeightは現在体重になる。
type WeightProgress struct {
	StartWeight   *float64
	CurrentWeight *float64
	TargetWeight  *float64
	GoalType      model.FitnessGoal
	// TotalChange は開始時からの変化量（kg、減少は負）。
	TotalChange float64
	// WeeklyAverage / MonthlyAverage は各期間内の記録の平均体重。記録がなければnil。
	WeeklyAverage  *float64
	MonthlyAverage *float64
	// Trend は直近2件の記録間の変化量（kg）。
	Trend float64
	// ProgressPercent は目標体重への到達率（0〜100）。
	ProgressPercent float64
	BMI             float64
	EntriesCount    int
	DaysTracked     int
}

// Stats はダッシュボード向けのユーザー統計。
type Stats struct {
	CurrentStreak  int
	WeeklyActivity streak.WeeklyActivity
}

// UserService はユーザープロフィール関連のサービス層。
type UserService struct {
	userRepo    repository.UserRepository
	weightRepo  repository.WeightRepository
	prefsRepo   repository.PreferencesRepository
	sessionRepo repository.SessionRepository
	streaks     *streak.Calculator
	sanitizer   security.ContentSanitizerService
	logger      *slog.Logger
	loc         *time.Location
	now         func() time.Time
}

// NewUserService はUserServiceの新しいインスタンスを生成する。
func NewUserService(
	userRepo repository.UserRepository,
	weightRepo repository.WeightRepository,
	prefsRepo repository.PreferencesRepository,
	sessionRepo repository.SessionRepository,
	streaks *streak.Calculator,
	sanitizer security.ContentSanitizerService,
	logger *slog.Logger,
	loc *time.Location,
) *UserService {
	return &UserService{
		userRepo:    userRepo,
		weightRepo:  weightRepo,
		prefsRepo:   prefsRepo,
		sessionRepo: sessionRepo,
		streaks:     streaks,
		sanitizer:   sanitizer,
		logger:      logger,
		loc:         loc,
		now:         time.Now,
	}
}

// Profile はプロフィールと派生値（年齢・BMI・BMR・TDEE）を返す。
func (s *UserService) Profile(ctx context.Context, userID string) (*Profile, error) {
	u, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile := &Profile{User: u, Age: u.Age(s.now())}
	if u.HasCompleteMetrics() {
		profile.BMI = goal.CalculateBMI(*u.WeightKg, *u.HeightCm)
		profile.BMR = goal.CalculateBMR(*u.WeightKg, *u.HeightCm, profile.Age, u.Gender)
		profile.TDEE = goal.CalculateTDEE(profile.BMR, u.ActivityLevel)
	}
	return profile, nil
}

// UpdateProfile はプロフィールを更新して最新のプロフィールを返す。
func (s *UserService) UpdateProfile(ctx context.Context, userID string, input ProfileInput) (*Profile, error) {
	u, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := validateProfileInput(input, s.now()); err != nil {
		return nil, err
	}

	if input.FirstName != "" {
		u.FirstName = s.sanitizer.Sanitize(input.FirstName)
	}
	if input.LastName != "" {
		u.LastName = s.sanitizer.Sanitize(input.LastName)
	}
	if input.DateOfBirth != nil {
		u.DateOfBirth = input.DateOfBirth
	}
	if input.Gender != "" {
		u.Gender = model.Gender(input.Gender)
	}
	if input.ActivityLevel != "" {
		u.ActivityLevel = model.ActivityLevel(input.ActivityLevel)
	}
	if input.FitnessGoal != "" {
		u.FitnessGoal = model.FitnessGoal(input.FitnessGoal)
	}
	if input.HeightCm != nil {
		u.HeightCm = input.HeightCm
	}
	if input.WeightKg != nil {
		u.WeightKg = input.WeightKg
	}
	if input.TargetWeight != nil {
		u.TargetWeight = input.TargetWeight
	}
	if input.Timezone != "" {
		if _, err := time.LoadLocation(input.Timezone); err != nil {
			return nil, model.NewValidationError(fmt.Sprintf("不正なタイムゾーンです: %s", input.Timezone))
		}
		u.Timezone = input.Timezone
	}
	if input.Units != "" {
		if input.Units != "metric" && input.Units != "imperial" {
			return nil, model.NewValidationError(fmt.Sprintf("不正な単位系です: %s", input.Units))
		}
		u.Units = input.Units
	}
	if input.AvatarURL != "" {
		u.AvatarURL = input.AvatarURL
	}
	u.UpdatedAt = s.now()

	if err := s.userRepo.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}

	return s.Profile(ctx, userID)
}

// DeleteAccount はアカウントを退会状態にする。
// ユーザーを無効化し、全セッションと設定を削除する。体重・食事の記録は残る。
func (s *UserService) DeleteAccount(ctx context.Context, userID string) error {
	if _, err := s.findUser(ctx, userID); err != nil {
		return err
	}

	if err := s.userRepo.Deactivate(ctx, userID); err != nil {
		return fmt.Errorf("アカウントの無効化に失敗しました: %w", err)
	}
	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}
	if err := s.prefsRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザー設定の削除に失敗しました: %w", err)
	}

	s.logger.Info("アカウントを退会処理しました", "userID", userID)
	return nil
}

// Goals はユーザーに適用中の栄養目標を返す。
// 手動設定があればそれを、なければプロフィールから計算した目標を返す。
func (s *UserService) Goals(ctx context.Context, userID string) (*model.NutritionGoals, error) {
	u, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	custom, err := s.prefsRepo.FindGoals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("栄養目標の取得に失敗しました: %w", err)
	}
	if custom != nil {
		return custom, nil
	}

	goals := goal.GoalsFor(u, s.now())
	return &goals, nil
}

// UpdateGoals は栄養目標を手動で設定する。
func (s *UserService) UpdateGoals(ctx context.Context, userID string, goals model.NutritionGoals) (*model.NutritionGoals, error) {
	if _, err := s.findUser(ctx, userID); err != nil {
		return nil, err
	}

	if err := validateGoals(goals); err != nil {
		return nil, err
	}

	// 手動設定に計算根拠は付与しない
	goals.Metadata = nil

	if err := s.prefsRepo.UpsertGoals(ctx, userID, &goals); err != nil {
		return nil, fmt.Errorf("栄養目標の保存に失敗しました: %w", err)
	}
	return &goals, nil
}

// RecommendedGoals はプロフィールから推奨栄養目標を計算して返す。保存はしない。
// 身体情報が不足している場合はINCOMPLETE_PROFILEエラーを返す。
func (s *UserService) RecommendedGoals(ctx context.Context, userID string) (*model.NutritionGoals, error) {
	u, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.HasCompleteMetrics() {
		return nil, model.NewIncompleteProfileError()
	}

	goals := goal.Recommend(u, s.now())
	return &goals, nil
}

// LogWeight は体重記録を登録し、ユーザーの現在体重を最新記録に同期する。
func (s *UserService) LogWeight(ctx context.Context, userID string, input WeightInput) (*model.WeightEntry, error) {
	if _, err := s.findUser(ctx, userID); err != nil {
		return nil, err
	}
	if err := validateWeight(input.WeightKg); err != nil {
		return nil, err
	}

	recordedAt := s.now()
	if input.RecordedAt != nil {
		recordedAt = *input.RecordedAt
	}

	now := s.now()
	entry := &model.WeightEntry{
		ID:         uuid.New().String(),
		UserID:     userID,
		WeightKg:   input.WeightKg,
		RecordedAt: recordedAt,
		Notes:      s.sanitizer.Sanitize(input.Notes),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.weightRepo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("体重記録の保存に失敗しました: %w", err)
	}

	s.syncCurrentWeight(ctx, userID)
	return entry, nil
}

// ListWeights は体重記録の一覧をRecordedAt降順で返す。
// fromとtoはYYYY-MM-DD形式で、空の場合は無視される。
// 日付境界は基準タイムゾーンで解釈する。
func (s *UserService) ListWeights(ctx context.Context, userID, from, to string, limit int) ([]*model.WeightEntry, error) {
	var fromTime, toTime time.Time
	if from != "" {
		t, err := time.ParseInLocation("2006-01-02", from, s.loc)
		if err != nil {
			return nil, model.NewInvalidDateError(from)
		}
		fromTime = t
	}
	if to != "" {
		t, err := time.ParseInLocation("2006-01-02", to, s.loc)
		if err != nil {
			return nil, model.NewInvalidDateError(to)
		}
		toTime = t.AddDate(0, 0, 1)
	}

	entries, err := s.weightRepo.ListByUser(ctx, userID, fromTime, toTime, limit)
	if err != nil {
		return nil, fmt.Errorf("体重記録の取得に失敗しました: %w", err)
	}
	return entries, nil
}

// UpdateWeightEntry は体重記録を更新する。本人の記録のみ更新できる。
func (s *UserService) UpdateWeightEntry(ctx context.Context, userID, entryID string, input WeightInput) (*model.WeightEntry, error) {
	existing, err := s.findWeightEntry(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}
	if err := validateWeight(input.WeightKg); err != nil {
		return nil, err
	}

	existing.WeightKg = input.WeightKg
	if input.RecordedAt != nil {
		existing.RecordedAt = *input.RecordedAt
	}
	existing.Notes = s.sanitizer.Sanitize(input.Notes)
	existing.UpdatedAt = s.now()

	if err := s.weightRepo.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("体重記録の更新に失敗しました: %w", err)
	}

	s.syncCurrentWeight(ctx, userID)
	return existing, nil
}

// DeleteWeightEntry は体重記録を削除する。本人の記録のみ削除できる。
func (s *UserService) DeleteWeightEntry(ctx context.Context, userID, entryID string) error {
	if _, err := s.findWeightEntry(ctx, userID, entryID); err != nil {
		return err
	}

	if err := s.weightRepo.Delete(ctx, entryID); err != nil {
		return fmt.Errorf("体重記録の削除に失敗しました: %w", err)
	}

	s.syncCurrentWeight(ctx, userID)
	return nil
}

// Progress は体重推移のサマリを返す。
// 開始体重は最も古い記録、現在体重は最新の記録から算出する。
func (s *UserService) Progress(ctx context.Context, userID string, days int) (*WeightProgress, error) {
	if days <= 0 {
		days = defaultProgressDays
	}

	u, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	from := now.AddDate(0, 0, -days)
	entries, err := s.weightRepo.ListByUser(ctx, userID, from, time.Time{}, 0)
	if err != nil {
		return nil, fmt.Errorf("体重記録の取得に失敗しました: %w", err)
	}

	progress := &WeightProgress{
		GoalType:     u.FitnessGoal,
		TargetWeight: u.TargetWeight,
		EntriesCount: len(entries),
		DaysTracked:  days,
	}

	if len(entries) > 0 {
		// ListByUserはRecordedAt降順
		current := entries[0].WeightKg
		start := entries[len(entries)-1].WeightKg
		progress.CurrentWeight = &current
		progress.StartWeight = &start
		progress.TotalChange = current - start

		progress.WeeklyAverage = averageSince(entries, now.AddDate(0, 0, -7))
		progress.MonthlyAverage = averageSince(entries, now.AddDate(0, -1, 0))
		if len(entries) >= 2 {
			progress.Trend = round1(entries[0].WeightKg - entries[1].WeightKg)
		}

		if u.HeightCm != nil && *u.HeightCm > 0 {
			progress.BMI = goal.CalculateBMI(current, *u.HeightCm)
		}
	} else if u.WeightKg != nil {
		progress.CurrentWeight = u.WeightKg
		if u.HeightCm != nil && *u.HeightCm > 0 {
			progress.BMI = goal.CalculateBMI(*u.WeightKg, *u.HeightCm)
		}
	}

	// 体重維持目標の場合、目標体重は現在体重とみなす
	if u.FitnessGoal == model.GoalMaintainWeight && progress.CurrentWeight != nil {
		progress.TargetWeight = progress.CurrentWeight
	}

	progress.ProgressPercent = progressPercent(progress.StartWeight, progress.CurrentWeight, progress.TargetWeight)

	return progress, nil
}

// averageSince はsince以降の記録の平均体重を小数第1位で返す。該当記録がなければnil。
func averageSince(entries []*model.WeightEntry, since time.Time) *float64 {
	sum := 0.0
	count := 0
	for _, e := range entries {
		if e.RecordedAt.Before(since) {
			continue
		}
		sum += e.WeightKg
		count++
	}
	if count == 0 {
		return nil
	}
	avg := round1(sum / float64(count))
	return &avg
}

// progressPercent は開始体重から目標体重への到達率を返す（0〜100）。
// 開始と目標が同じ場合は達成済みとして100を返す。
func progressPercent(start, current, target *float64) float64 {
	if start == nil || current == nil || target == nil {
		return 0
	}
	totalChange := math.Abs(*target - *start)
	if totalChange == 0 {
		return 100
	}
	pct := math.Round(math.Abs(*current-*start) / totalChange * 100)
	return math.Min(pct, 100)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Stats は連続記録日数と直近1週間の記録状況を返す。
func (s *UserService) Stats(ctx context.Context, userID string) (*Stats, error) {
	if _, err := s.findUser(ctx, userID); err != nil {
		return nil, err
	}

	return &Stats{
		CurrentStreak:  s.streaks.Current(ctx, userID),
		WeeklyActivity: s.streaks.Weekly(ctx, userID),
	}, nil
}

// findUser はユーザーを取得し、見つからない場合はUSER_NOT_FOUNDエラーを返す。
func (s *UserService) findUser(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}
	return u, nil
}

// findWeightEntry は体重記録を取得し、所有者を確認する。
func (s *UserService) findWeightEntry(ctx context.Context, userID, entryID string) (*model.WeightEntry, error) {
	entry, err := s.weightRepo.FindByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("体重記録の取得に失敗しました: %w", err)
	}
	if entry == nil {
		return nil, model.NewWeightEntryNotFoundError(entryID)
	}
	if entry.UserID != userID {
		return nil, model.NewPermissionDeniedError()
	}
	return entry, nil
}

// syncCurrentWeight はユーザーの現在体重を最新の体重記録に合わせる。
// 記録がすべて削除された場合は未設定に戻す。失敗はログのみでエラーにしない。
func (s *UserService) syncCurrentWeight(ctx context.Context, userID string) {
	latest, err := s.weightRepo.LatestByUser(ctx, userID)
	if err != nil {
		s.logger.Warn("最新体重の取得に失敗", "userID", userID, "error", err)
		return
	}

	var weight *float64
	if latest != nil {
		weight = &latest.WeightKg
	}
	if err := s.userRepo.UpdateWeight(ctx, userID, weight); err != nil {
		s.logger.Warn("現在体重の同期に失敗", "userID", userID, "error", err)
	}
}

// validateProfileInput はプロフィール更新の入力値を検証する。
func validateProfileInput(input ProfileInput, now time.Time) error {
	if input.Gender != "" {
		switch model.Gender(input.Gender) {
		case model.GenderMale, model.GenderFemale, model.GenderOther:
		default:
			return model.NewValidationError(fmt.Sprintf("不正な性別です: %s", input.Gender))
		}
	}
	if input.ActivityLevel != "" {
		switch model.ActivityLevel(input.ActivityLevel) {
		case model.ActivitySedentary, model.ActivityLightlyActive, model.ActivityModeratelyActive,
			model.ActivityVeryActive, model.ActivityExtremelyActive:
		default:
			return model.NewValidationError(fmt.Sprintf("不正な活動レベルです: %s", input.ActivityLevel))
		}
	}
	if input.FitnessGoal != "" {
		switch model.FitnessGoal(input.FitnessGoal) {
		case model.GoalLoseWeight, model.GoalMaintainWeight, model.GoalGainWeight, model.GoalBuildMuscle:
		default:
			return model.NewValidationError(fmt.Sprintf("不正なフィットネス目標です: %s", input.FitnessGoal))
		}
	}
	if input.HeightCm != nil && (*input.HeightCm <= 0 || *input.HeightCm > 300) {
		return model.NewValidationError("身長は0より大きく300cm以下で指定してください")
	}
	if input.WeightKg != nil {
		if err := validateWeight(*input.WeightKg); err != nil {
			return err
		}
	}
	if input.TargetWeight != nil {
		if err := validateWeight(*input.TargetWeight); err != nil {
			return err
		}
	}
	if input.DateOfBirth != nil {
		if input.DateOfBirth.After(now) {
			return model.NewValidationError("生年月日が未来の日付です")
		}
		probe := model.User{DateOfBirth: input.DateOfBirth}
		if probe.Age(now) < minimumAge {
			return model.NewValidationError(fmt.Sprintf("%d歳未満は利用できません", minimumAge))
		}
	}
	return nil
}

// validateWeight は体重が許容範囲内かを検証する。
func validateWeight(weightKg float64) error {
	if weightKg < minWeightKg || weightKg > maxWeightKg {
		return model.NewValidationError(
			fmt.Sprintf("体重は%dkg〜%dkgの範囲で指定してください", minWeightKg, maxWeightKg))
	}
	return nil
}

// validateGoals は手動設定の栄養目標が許容範囲内かを検証する。
func validateGoals(goals model.NutritionGoals) error {
	checks := []struct {
		name     string
		value    float64
		min, max float64
	}{
		{"カロリー", goals.DailyCalories, model.GoalsCaloriesMin, model.GoalsCaloriesMax},
		{"タンパク質", goals.DailyProtein, model.GoalsProteinMin, model.GoalsProteinMax},
		{"炭水化物", goals.DailyCarbs, model.GoalsCarbsMin, model.GoalsCarbsMax},
		{"脂質", goals.DailyFat, model.GoalsFatMin, model.GoalsFatMax},
	}
	for _, c := range checks {
		if c.value < c.min || c.value > c.max {
			return model.NewInvalidGoalsError(
				fmt.Sprintf("%sは%.0f〜%.0fの範囲で指定してください", c.name, c.min, c.max))
		}
	}
	if goals.DailyFiber < 0 || goals.DailySodium < 0 {
		return model.NewInvalidGoalsError("食物繊維とナトリウムは0以上で指定してください")
	}
	return nil
}
