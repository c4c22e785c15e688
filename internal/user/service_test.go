package user

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/nutrilog/internal/model"
	"github.com/hitoshi/nutrilog/internal/security"
	"github.com/hitoshi/nutrilog/internal/streak"
)

// --- UserService テスト用モック ---

// mockUserRepo はテスト用のUserRepositoryモック。
type mockUserRepo struct {
	users           map[string]*model.User
	updateCalls     int
	deactivateCalls int
	weightUpdates   []*float64
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	u, ok := m.users[id]
	if !ok || !u.IsActive {
		return nil, nil
	}
	return u, nil
}

func (m *mockUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) Create(_ context.Context, u *model.User) error {
	m.users[u.ID] = u
	return nil
}

func (m *mockUserRepo) Update(_ context.Context, u *model.User) error {
	m.updateCalls++
	m.users[u.ID] = u
	return nil
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	if u, ok := m.users[userID]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockUserRepo) UpdateWeight(_ context.Context, userID string, weightKg *float64) error {
	m.weightUpdates = append(m.weightUpdates, weightKg)
	if u, ok := m.users[userID]; ok {
		u.WeightKg = weightKg
	}
	return nil
}

func (m *mockUserRepo) Deactivate(_ context.Context, id string) error {
	m.deactivateCalls++
	if u, ok := m.users[id]; ok {
		u.IsActive = false
	}
	return nil
}

// mockWeightRepo はテスト用のWeightRepositoryモック。RecordedAt降順で返す。
type mockWeightRepo struct {
	entries     []*model.WeightEntry
	deleteCalls int
}

func (m *mockWeightRepo) FindByID(_ context.Context, id string) (*model.WeightEntry, error) {
	for _, e := range m.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, nil
}

func (m *mockWeightRepo) ListByUser(_ context.Context, userID string, from, to time.Time, _ int) ([]*model.WeightEntry, error) {
	var result []*model.WeightEntry
	for _, e := range m.sorted() {
		if e.UserID != userID {
			continue
		}
		if !from.IsZero() && e.RecordedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !e.RecordedAt.Before(to) {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

func (m *mockWeightRepo) LatestByUser(_ context.Context, userID string) (*model.WeightEntry, error) {
	for _, e := range m.sorted() {
		if e.UserID == userID {
			return e, nil
		}
	}
	return nil, nil
}

func (m *mockWeightRepo) Create(_ context.Context, entry *model.WeightEntry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockWeightRepo) Update(_ context.Context, entry *model.WeightEntry) error {
	for i, e := range m.entries {
		if e.ID == entry.ID {
			m.entries[i] = entry
		}
	}
	return nil
}

func (m *mockWeightRepo) Delete(_ context.Context, id string) error {
	m.deleteCalls++
	var kept []*model.WeightEntry
	for _, e := range m.entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	m.entries = kept
	return nil
}

// sorted はRecordedAt降順のコピーを返す。
func (m *mockWeightRepo) sorted() []*model.WeightEntry {
	result := make([]*model.WeightEntry, len(m.entries))
	copy(result, m.entries)
	for i := 0; i < len(result); i++ {
		for j := i + 1; j < len(result); j++ {
			if result[j].RecordedAt.After(result[i].RecordedAt) {
				result[i], result[j] = result[j], result[i]
			}
		}
	}
	return result
}

// mockPrefsRepo はテスト用のPreferencesRepositoryモック。
type mockPrefsRepo struct {
	goals       map[string]*model.NutritionGoals
	deleteCalls int
}

func newMockPrefsRepo() *mockPrefsRepo {
	return &mockPrefsRepo{goals: make(map[string]*model.NutritionGoals)}
}

func (m *mockPrefsRepo) FindGoals(_ context.Context, userID string) (*model.NutritionGoals, error) {
	return m.goals[userID], nil
}

func (m *mockPrefsRepo) UpsertGoals(_ context.Context, userID string, goals *model.NutritionGoals) error {
	m.goals[userID] = goals
	return nil
}

func (m *mockPrefsRepo) DeleteByUserID(_ context.Context, userID string) error {
	m.deleteCalls++
	delete(m.goals, userID)
	return nil
}

// mockSessionRepo はテスト用のSessionRepositoryモック。
type mockSessionRepo struct {
	deleteByUserCalls int
}

func (m *mockSessionRepo) Create(_ context.Context, _ *model.Session) error { return nil }
func (m *mockSessionRepo) FindByID(_ context.Context, _ string) (*model.Session, error) {
	return nil, nil
}
func (m *mockSessionRepo) DeleteByID(_ context.Context, _ string) error { return nil }
func (m *mockSessionRepo) DeleteByUserID(_ context.Context, _ string) error {
	m.deleteByUserCalls++
	return nil
}

func (m *mockSessionRepo) DeleteByUserIDExcept(_ context.Context, _, _ string) error { return nil }

// mockTimestampSource はストリーク計算用のタイムスタンプソースモック。
type mockTimestampSource struct {
	timestamps []time.Time
}

func (m *mockTimestampSource) ConsumedTimestamps(_ context.Context, _ string) ([]time.Time, error) {
	return m.timestamps, nil
}

var fixedNow = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

type testDeps struct {
	userRepo    *mockUserRepo
	weightRepo  *mockWeightRepo
	prefsRepo   *mockPrefsRepo
	sessionRepo *mockSessionRepo
	source      *mockTimestampSource
}

func newTestUserService(t *testing.T) (*UserService, *testDeps) {
	t.Helper()
	return newTestUserServiceIn(t, time.UTC)
}

func newTestUserServiceIn(t *testing.T, loc *time.Location) (*UserService, *testDeps) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	deps := &testDeps{
		userRepo:    newMockUserRepo(),
		weightRepo:  &mockWeightRepo{},
		prefsRepo:   newMockPrefsRepo(),
		sessionRepo: &mockSessionRepo{},
		source:      &mockTimestampSource{},
	}
	streaks := streak.NewCalculator(deps.source, logger, loc, func() time.Time { return fixedNow })

	svc := NewUserService(
		deps.userRepo, deps.weightRepo, deps.prefsRepo, deps.sessionRepo,
		streaks, security.NewContentSanitizer(), logger, loc,
	)
	svc.now = func() time.Time { return fixedNow }
	return svc, deps
}

func apiErrorCode(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

func floatPtr(f float64) *float64 { return &f }

// completeUser は身体情報の揃ったユーザーを返す。
func completeUser(id string) *model.User {
	dob := time.Date(1996, 9, 1, 0, 0, 0, 0, time.UTC) // fixedNow時点で30歳
	return &model.User{
		ID:            id,
		Email:         id + "@example.com",
		FirstName:     "太郎",
		Gender:        model.GenderMale,
		DateOfBirth:   &dob,
		HeightCm:      floatPtr(175),
		WeightKg:      floatPtr(70),
		ActivityLevel: model.ActivitySedentary,
		FitnessGoal:   model.GoalMaintainWeight,
		IsActive:      true,
	}
}

// --- Profile ---

func TestProfile_ComputesDerivedValues(t *testing.T) {
	svc, deps := newTestUserService(t)
	deps.userRepo.users["u1"] = completeUser("u1")

	profile, err := svc.Profile(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Profile returned error: %v", err)
	}

	if profile.Age != 30 {
		t.Errorf("Age = %d, want 30", profile.Age)
	}
	// 70kg ÷ 1.75m² = 22.9
	if profile.BMI != 22.9 {
		t.Errorf("BMI = %v, want 22.9", profile.BMI)
	}
	// 10×70 + 6.25×175 − 5×30 + 5 = 1648.75
	if profile.BMR != 1648.75 {
		t.Errorf("BMR = %v, want 1648.75", profile.BMR)
	}
	if profile.TDEE != 1978.5 {
		t.Errorf("TDEE = %v, want 1978.5", profile.TDEE)
	}
}

func TestProfile_IncompleteMetricsOmitsDerived(t *testing.T) {
	svc, deps := newTestUserService(t)
	deps.userRepo.users["u1"] = &model.User{ID: "u1", Email: "a@example.com", IsActive: true}

	profile, err := svc.Profile(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Profile returned error: %v", err)
	}
	if profile.BMI != 0 || profile.BMR != 0 || profile.TDEE != 0 {
		t.Errorf("派生値が計算されている: %+v", profile)
	}
}

func TestProfile_UserNotFound(t *testing.T) {
	svc, _ := newTestUserService(t)

	_, err := svc.Profile(context.Background(), "missing")
	if code := apiErrorCode(err); code != model.ErrCodeUserNotFound {
		t.Errorf("error code = %q, want USER_NOT_FOUND", code)
	}
}

// --- UpdateProfile ---

func TestUpdateProfile_AppliesChanges(t *testing.T) {
	svc, deps := newTestUserService(t)
	deps.userRepo.users["u1"] = completeUser("u1")

	profile, err := svc.UpdateProfile(context.Background(), "u1", ProfileInput{
		FirstName:   "花子",
		FitnessGoal: "lose_weight",
		WeightKg:    floatPtr(68),
	})
	if err != nil {
		t.Fatalf("UpdateProfile returned error: %v", err)
	}

	if profile.User.FirstName != "花子" {
		t.Errorf("FirstName = %q, want 花子", profile.User.FirstName)
	}
	if profile.User.FitnessGoal != model.GoalLoseWeight {
		t.Errorf("FitnessGoal = %s", profile.User.FitnessGoal)
	}
	if *profile.User.WeightKg != 68 {
		t.Errorf("WeightKg = %v, want 68", *profile.User.WeightKg)
	}
	if deps.userRepo.updateCalls != 1 {
		t.Errorf("updateCalls = %d, want 1", deps.userRepo.updateCalls)
	}
}

func TestUpdateProfile_ValidationErrors(t *testing.T) {
	svc, deps := newTestUserService(t)
	deps.userRepo.users["u1"] = completeUser("u1")
	ctx := context.Background()

	futureDob := fixedNow.AddDate(1, 0, 0)
	childDob := fixedNow.AddDate(-10, 0, 0)

	tests := []struct {
		name  string
		input ProfileInput
	}{
		{"不正な性別", ProfileInput{Gender: "unknown"}},
		{"不正な活動レベル", ProfileInput{ActivityLevel: "couch_potato"}},
		{"不正な目標", ProfileInput{FitnessGoal: "get_swole"}},
		{"身長が範囲外", ProfileInput{HeightCm: floatPtr(350)}},
		{"体重が範囲外", ProfileInput{WeightKg: floatPtr(10)}},
		{"未来の生年月日", ProfileInput{DateOfBirth: &futureDob}},
		{"13歳未満", ProfileInput{DateOfBirth: &childDob}},
		{"不正なタイムゾーン", ProfileInput{Timezone: "Mars/Olympus"}},
		{"不正な単位系", ProfileInput{Units: "stones"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateProfile(ctx, "u1", tt.input)
			if code := apiErrorCode(err); code != model.ErrCodeValidationFailed {
				t.Errorf("error code = %q, want VALIDATION_FAILED (err=%v)", code, err)
			}
		})
	}
}

func TestUpdateProfile_SanitizesName(t *testing.T) {
	svc, deps := newTestUserService(t)
	deps.userRepo.users["u1"] = completeUser("u1")

	profile, err := svc.UpdateProfile(context.Background(), "u1", ProfileInput{
		FirstName: `太郎<script>alert(1)</script>`,
	})
	if err != nil {
		t.Fatalf("UpdateProfile returned error: %v", err)
	}
	if profile.User.FirstName != "太郎" {
		t.Errorf("FirstName = %q, want 太郎", profile.User.FirstName)
	}
}

// --- DeleteAccount ---

func TestDeleteAccount_DeactivatesAndPurges(t *testing.T) {
	svc, deps := newTestUserService(t)
	deps.userRepo.users["u1"] = completeUser("u1")
	deps.prefsRepo.goals["u1"] = &model.NutritionGoals{DailyCalories: 1800}

	if err := svc.DeleteAccount(context.Background(), "u1"); err != nil {
		t.Fatalf("DeleteAccount returned error: %v", err)
	}

	if deps.userRepo.deactivateCalls != 1 {
		t.Errorf("deactivateCalls = %d, want 1", deps.userRepo.deactivateCalls)
	}
	if deps.sessionRepo.deleteByUserCalls != 1 {
		t.Error("セッションが削除されていない")
	}
	if deps.prefsRepo.deleteCalls != 1 {
		t.Error("設定が削除されていない")
	}

	// 退会後はUSER_NOT_FOUND扱い
	if _, err := svc.Profile(context.Background(), "u1"); apiErrorCode(err) != model.ErrCodeUserNotFound {
		t.Errorf("退会後のアクセスが拒否されていない: %v", err)
	}
}

// --- 栄養目標 ---

func TestGoals_CustomTakesPrecedence(t *testing.T) {
	svc, deps := newTestUserService(t)
	deps.userRepo.users["u1"] = completeUser("u1")
	deps.prefsRepo.goals["u1"] = &model.NutritionGoals{DailyCalories: 1850, DailyProtein: 140}

	goals, err := svc.Goals(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Goals returned error: %v", err)
	}
	if goals.DailyCalories != 1850 {
		t.Errorf("DailyCalories = %v, want 1850 (手動設定優先)", goals.DailyCalories)
	}
}

func TestGoals_ComputedWhenNoCustom(t *testing.T) {
	svc, deps := newTestUserService(t)
	deps.userRepo.users["u1"] = completeUser("u1")

	goals, err := svc.Goals(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Goals returned error: %v", err)
	}
	// 70kg/175cm/30歳/男性/座位中心/維持 → 1979kcal
	if goals.DailyCalories != 1979 {
		t.Errorf("DailyCalories = %v, want 1979", goals.DailyCalories)
	}
	if goals.Metadata == nil {
		t.Error("自動計算の目標にMetadataがない")
	}
}

func TestGoals_DefaultsWhenIncomplete(t *testing.T) {
	svc, deps := newTestUserService(t)
	deps.userRepo.users["u1"] = &model.User{ID: "u1", IsActive: true}

	goals, err := svc.Goals(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Goals returned error: %v", err)
	}
	if goals.DailyCalories != 2000 {
		t.Errorf("DailyCalories = %v, want 2000 (標準目標)", goals.DailyCalories)
	}
}

func TestUpdateGoals_StoresWithoutMetadata(t *testing.T) {
	svc, deps := newTestUserService(t)
	deps.userRepo.users["u1"] = completeUser("u1")

	goals, err := svc.UpdateGoals(context.Background(), "u1", model.NutritionGoals{
		DailyCalories: 1800,
		DailyProtein:  150,
		DailyCarbs:    180,
		DailyFat:      60,
		DailyFiber:    30,
		DailySodium:   2000,
		Metadata:      &model.GoalsMetadata{BMR: 9999},
	})
	if err != nil {
		t.Fatalf("UpdateGoals returned error: %v", err)
	}
	if goals.Metadata != nil {
		t.Error("手動設定にMetadataが残っている")
	}
	if deps.prefsRepo.goals["u1"].DailyCalories != 1800 {
		t.Error("目標が保存されていない")
	}
}

func TestUpdateGoals_RangeValidation(t *testing.T) {
	svc, deps := newTestUserService(t)
	deps.userRepo.users["u1"] = completeUser("u1")
	ctx := context.Background()

	base := model.NutritionGoals{
		DailyCalories: 2000, DailyProtein: 120, DailyCarbs: 250, DailyFat: 67,
	}

	tests := []struct {
		name   string
		mutate func(g *model.NutritionGoals)
	}{
		{"カロリーが下限未満", func(g *model.NutritionGoals) { g.DailyCalories = 500 }},
		{"カロリーが上限超過", func(g *model.NutritionGoals) { g.DailyCalories = 6000 }},
		{"タンパク質が上限超過", func(g *model.NutritionGoals) { g.DailyProtein = 600 }},
		{"脂質が下限未満", func(g *model.NutritionGoals) { g.DailyFat = 5 }},
		{"食物繊維が負", func(g *model.NutritionGoals) { g.DailyFiber = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			goals := base
			tt.mutate(&goals)
			_, err := svc.UpdateGoals(ctx, "u1", goals)
			if code := apiErrorCode(err); code != model.ErrCodeInvalidGoals {
				t.Errorf("error code = %q, want INVALID_GOALS (err=%v)", code, err)
			}
		})
	}
}

func TestRecommendedGoals_RequiresCompleteProfile(t *testing.T) {
	svc, deps := newTestUserService(t)
	deps.userRepo.users["u1"] = &model.User{ID: "u1", IsActive: true}

	_, err := svc.RecommendedGoals(context.Background(), "u1")
	if code := apiErrorCode(err); code != model.ErrCodeIncompleteProfile {
		t.Errorf("error code = %q, want INCOMPLETE_PROFILE", code)
	}
}

func TestRecommendedGoals_ComputesFromProfile(t *testing.T) {
	svc, deps := newTestUserService(t)
	deps.userRepo.users["u1"] = completeUser("u1")

	goals, err := svc.RecommendedGoals(context.Background(), "u1")
	if err != nil {
		t.Fatalf("RecommendedGoals returned error: %v", err)
	}
	if goals.DailyCalories != 1979 {
		t.Errorf("DailyCalories = %v, want 1979", goals.DailyCalories)
	}
	if goals.DailyProtein != 126 {
		t.Errorf("DailyProtein = %v, want 126", goals.DailyProtein)
	}
}

// --- 体重記録 ---

func TestLogWeight_CreatesAndSyncsCurrentWeight(t *testing.T) {
	svc, deps := newTestUserService(t)
	deps.userRepo.users["u1"] = completeUser("u1")

	entry, err := svc.LogWeight(context.Background(), "u1", WeightInput{WeightKg: 69.5})
	if err != nil {
		t.Fatalf("LogWeight returned error: %v", err)
	}

	if entry.ID == "" {
		t.Error("IDが採番されていない")
	}
	if !entry.RecordedAt.Equal(fixedNow) {
		t.Errorf("RecordedAt = %v, want 現在時刻", entry.RecordedAt)
	}
	if got := deps.userRepo.users["u1"].WeightKg; got == nil || *got != 69.5 {
		t.Errorf("現在体重が同期されていない: %v", got)
	}
}

func TestLogWeight_RangeValidation(t *testing.T) {
	svc, deps := newTestUserService(t)
	deps.userRepo.users["u1"] = completeUser("u1")
	ctx := context.Background()

	for _, w := range []float64{0, 19.9, 501} {
		_, err := svc.LogWeight(ctx, "u1", WeightInput{WeightKg: w})
		if code := apiErrorCode(err); code != model.ErrCodeValidationFailed {
			t.Errorf("WeightKg=%v: error code = %q, want VALIDATION_FAILED", w, code)
		}
	}
}

func TestLogWeight_OlderEntryDoesNotOverrideCurrent(t *testing.T) {
	svc, deps := newTestUserService(t)
	deps.userRepo.users["u1"] = completeUser("u1")
	ctx := context.Background()

	// 今日の記録
	if _, err := svc.LogWeight(ctx, "u1", WeightInput{WeightKg: 69}); err != nil {
		t.Fatalf("LogWeight returned error: %v", err)
	}

	// 1週間前の記録を後から追加
	past := fixedNow.AddDate(0, 0, -7)
	if _, err := svc.LogWeight(ctx, "u1", WeightInput{WeightKg: 72, RecordedAt: &past}); err != nil {
		t.Fatalf("LogWeight returned error: %v", err)
	}

	// 現在体重は最新（RecordedAtが最大）の記録のまま
	if got := deps.userRepo.users["u1"].WeightKg; got == nil || *got != 69 {
		t.Errorf("現在体重 = %v, want 69", got)
	}
}

func TestDeleteWeightEntry_ResyncsWeight(t *testing.T) {
	svc, deps := newTestUserService(t)
	deps.userRepo.users["u1"] = completeUser("u1")
	ctx := context.Background()

	past := fixedNow.AddDate(0, 0, -7)
	if _, err := svc.LogWeight(ctx, "u1", WeightInput{WeightKg: 72, RecordedAt: &past}); err != nil {
		t.Fatalf("LogWeight returned error: %v", err)
	}
	newest, err := svc.LogWeight(ctx, "u1", WeightInput{WeightKg: 69})
	if err != nil {
		t.Fatalf("LogWeight returned error: %v", err)
	}

	// 最新の記録を削除すると現在体重が1つ前に戻る
	if err := svc.DeleteWeightEntry(ctx, "u1", newest.ID); err != nil {
		t.Fatalf("DeleteWeightEntry returned error: %v", err)
	}
	if got := deps.userRepo.users["u1"].WeightKg; got == nil || *got != 72 {
		t.Errorf("現在体重 = %v, want 72", got)
	}
}

func TestDeleteWeightEntry_LastEntryClearsWeight(t *testing.T) {
	svc, deps := newTestUserService(t)
	deps.userRepo.users["u1"] = completeUser("u1")
	ctx := context.Background()

	entry, err := svc.LogWeight(ctx, "u1", WeightInput{WeightKg: 69})
	if err != nil {
		t.Fatalf("LogWeight returned error: %v", err)
	}
	if err := svc.DeleteWeightEntry(ctx, "u1", entry.ID); err != nil {
		t.Fatalf("DeleteWeightEntry returned error: %v", err)
	}

	if got := deps.userRepo.users["u1"].WeightKg; got != nil {
		t.Errorf("現在体重 = %v, want nil (全削除後)", got)
	}
}

func TestWeightEntry_OwnershipEnforced(t *testing.T) {
	svc, deps := newTestUserService(t)
	deps.userRepo.users["u1"] = completeUser("u1")
	deps.userRepo.users["u2"] = completeUser("u2")
	ctx := context.Background()

	entry, err := svc.LogWeight(ctx, "u1", WeightInput{WeightKg: 69})
	if err != nil {
		t.Fatalf("LogWeight returned error: %v", err)
	}

	if _, err := svc.UpdateWeightEntry(ctx, "u2", entry.ID, WeightInput{WeightKg: 80}); apiErrorCode(err) != model.ErrCodePermissionDenied {
		t.Errorf("他人の更新が拒否されていない: %v", err)
	}
	if err := svc.DeleteWeightEntry(ctx, "u2", entry.ID); apiErrorCode(err) != model.ErrCodePermissionDenied {
		t.Errorf("他人の削除が拒否されていない: %v", err)
	}
}

func TestListWeights_InvalidDate(t *testing.T) {
	svc, _ := newTestUserService(t)

	_, err := svc.ListWeights(context.Background(), "u1", "bad-date", "", 0)
	if code := apiErrorCode(err); code != model.ErrCodeInvalidDate {
		t.Errorf("error code = %q, want INVALID_DATE", code)
	}
}

// 日付境界が基準タイムゾーンで解釈されることをテストする。
// JSTの8/1朝の記録はUTC時刻では7/31だが、from=8/1の窓に含まれる。
func TestListWeights_RangeUsesConfiguredTimezone(t *testing.T) {
	jst, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("failed to load Asia/Tokyo: %v", err)
	}
	svc, deps := newTestUserServiceIn(t, jst)
	ctx := context.Background()

	// 2026-08-01 07:00 JST = 2026-07-31 22:00 UTC
	morning := time.Date(2026, 7, 31, 22, 0, 0, 0, time.UTC)
	deps.weightRepo.entries = append(deps.weightRepo.entries, &model.WeightEntry{
		ID:         "w1",
		UserID:     "u1",
		WeightKg:   69.5,
		RecordedAt: morning,
	})

	entries, err := svc.ListWeights(ctx, "u1", "2026-08-01", "2026-08-01", 0)
	if err != nil {
		t.Fatalf("ListWeights returned error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1 (JSTの8/1朝の記録が除外されている)", len(entries))
	}

	// 前日の窓には含まれない
	entries, err = svc.ListWeights(ctx, "u1", "2026-07-31", "2026-07-31", 0)
	if err != nil {
		t.Fatalf("ListWeights returned error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("len(entries) = %d, want 0", len(entries))
	}
}

// --- Progress / Stats ---

func TestProgress_ComputesChangeAndAverages(t *testing.T) {
	svc, deps := newTestUserService(t)
	u := completeUser("u1")
	u.FitnessGoal = model.GoalLoseWeight
	u.TargetWeight = floatPtr(65)
	deps.userRepo.users["u1"] = u
	ctx := context.Background()

	start := fixedNow.AddDate(0, -2, 0)
	mid := fixedNow.AddDate(0, -1, 0)
	for _, in := range []WeightInput{
		{WeightKg: 75, RecordedAt: &start},
		{WeightKg: 72, RecordedAt: &mid},
		{WeightKg: 70},
	} {
		if _, err := svc.LogWeight(ctx, "u1", in); err != nil {
			t.Fatalf("LogWeight returned error: %v", err)
		}
	}

	progress, err := svc.Progress(ctx, "u1", 90)
	if err != nil {
		t.Fatalf("Progress returned error: %v", err)
	}

	if *progress.StartWeight != 75 {
		t.Errorf("StartWeight = %v, want 75", *progress.StartWeight)
	}
	if *progress.CurrentWeight != 70 {
		t.Errorf("CurrentWeight = %v, want 70", *progress.CurrentWeight)
	}
	if progress.TotalChange != -5 {
		t.Errorf("TotalChange = %v, want -5", progress.TotalChange)
	}
	if *progress.TargetWeight != 65 {
		t.Errorf("TargetWeight = %v, want 65", *progress.TargetWeight)
	}
	if progress.EntriesCount != 3 {
		t.Errorf("EntriesCount = %d, want 3", progress.EntriesCount)
	}
	// 直近7日は最新の記録のみ、直近1ヶ月は72と70の2件
	if progress.WeeklyAverage == nil || *progress.WeeklyAverage != 70 {
		t.Errorf("WeeklyAverage = %v, want 70", progress.WeeklyAverage)
	}
	if progress.MonthlyAverage == nil || *progress.MonthlyAverage != 71 {
		t.Errorf("MonthlyAverage = %v, want 71", progress.MonthlyAverage)
	}
	if progress.Trend != -2 {
		t.Errorf("Trend = %v, want -2", progress.Trend)
	}
	// 75→65が目標で現在70。到達率は50%
	if progress.ProgressPercent != 50 {
		t.Errorf("ProgressPercent = %v, want 50", progress.ProgressPercent)
	}
	if progress.DaysTracked != 90 {
		t.Errorf("DaysTracked = %d, want 90", progress.DaysTracked)
	}
}

func TestProgress_MaintainGoalTargetsCurrentWeight(t *testing.T) {
	svc, deps := newTestUserService(t)
	u := completeUser("u1")
	u.TargetWeight = floatPtr(65)
	deps.userRepo.users["u1"] = u
	ctx := context.Background()

	earlier := fixedNow.AddDate(0, 0, -10)
	for _, in := range []WeightInput{
		{WeightKg: 75, RecordedAt: &earlier},
		{WeightKg: 70},
	} {
		if _, err := svc.LogWeight(ctx, "u1", in); err != nil {
			t.Fatalf("LogWeight returned error: %v", err)
		}
	}

	progress, err := svc.Progress(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("Progress returned error: %v", err)
	}

	// maintain_weightでは目標体重=現在体重として扱う
	if progress.TargetWeight == nil || *progress.TargetWeight != 70 {
		t.Errorf("TargetWeight = %v, want 70", progress.TargetWeight)
	}
	if progress.ProgressPercent != 100 {
		t.Errorf("ProgressPercent = %v, want 100", progress.ProgressPercent)
	}
	if progress.DaysTracked != 30 {
		t.Errorf("DaysTracked = %d, want 30 (デフォルト)", progress.DaysTracked)
	}
}

func TestProgress_WindowExcludesOldEntries(t *testing.T) {
	svc, deps := newTestUserService(t)
	deps.userRepo.users["u1"] = completeUser("u1")
	ctx := context.Background()

	old := fixedNow.AddDate(0, -6, 0)
	recent := fixedNow.AddDate(0, 0, -3)
	for _, in := range []WeightInput{
		{WeightKg: 80, RecordedAt: &old},
		{WeightKg: 71, RecordedAt: &recent},
		{WeightKg: 70},
	} {
		if _, err := svc.LogWeight(ctx, "u1", in); err != nil {
			t.Fatalf("LogWeight returned error: %v", err)
		}
	}

	progress, err := svc.Progress(ctx, "u1", 30)
	if err != nil {
		t.Fatalf("Progress returned error: %v", err)
	}

	if progress.EntriesCount != 2 {
		t.Errorf("EntriesCount = %d, want 2 (期間外の記録は除外)", progress.EntriesCount)
	}
	if *progress.StartWeight != 71 {
		t.Errorf("StartWeight = %v, want 71", *progress.StartWeight)
	}
}

func TestProgress_NoEntriesFallsBackToProfile(t *testing.T) {
	svc, deps := newTestUserService(t)
	deps.userRepo.users["u1"] = completeUser("u1")

	progress, err := svc.Progress(context.Background(), "u1", 30)
	if err != nil {
		t.Fatalf("Progress returned error: %v", err)
	}
	if progress.CurrentWeight == nil || *progress.CurrentWeight != 70 {
		t.Errorf("CurrentWeight = %v, want プロフィールの70", progress.CurrentWeight)
	}
	if progress.StartWeight != nil {
		t.Errorf("StartWeight = %v, want nil", progress.StartWeight)
	}
}

func TestStats_ReturnsStreakAndWeekly(t *testing.T) {
	svc, deps := newTestUserService(t)
	deps.userRepo.users["u1"] = completeUser("u1")
	deps.source.timestamps = []time.Time{
		fixedNow.Add(-2 * time.Hour),              // 今日
		fixedNow.AddDate(0, 0, -1),                // 昨日
		fixedNow.AddDate(0, 0, -1).Add(time.Hour), // 昨日2件目
	}

	stats, err := svc.Stats(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if stats.CurrentStreak != 2 {
		t.Errorf("CurrentStreak = %d, want 2", stats.CurrentStreak)
	}
	if stats.WeeklyActivity.DaysLogged != 2 {
		t.Errorf("DaysLogged = %d, want 2", stats.WeeklyActivity.DaysLogged)
	}
	if stats.WeeklyActivity.TotalLogs != 3 {
		t.Errorf("TotalLogs = %d, want 3", stats.WeeklyActivity.TotalLogs)
	}
}
