// Package entry は食事記録と栄養集計のドメインロジックを提供する。
package entry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/nutrilog/internal/metrics"
	"github.com/hitoshi/nutrilog/internal/model"
	"github.com/hitoshi/nutrilog/internal/nutrition"
	"github.com/hitoshi/nutrilog/internal/repository"
	"github.com/hitoshi/nutrilog/internal/security"
)

// maxRangeDays は期間集計で指定できる最大日数。
const maxRangeDays = 366

// LogInput は食事記録の登録・更新の入力。
type LogInput struct {
	FoodID     string
	Quantity   float64
	Unit       string
	MealType   string
	ConsumedAt *time.Time // nilの場合は現在時刻
	Notes      string
}

// ListFilter は食事記録一覧の絞り込み条件。
// 日付はすべて基準タイムゾーンのYYYY-MM-DD形式。
type ListFilter struct {
	Date      string // 指定時は単一日のみ（StartDate/EndDateより優先）
	StartDate string
	EndDate   string
	MealType  string
	Limit     int
	Offset    int
}

// EntryService は食事記録のサービス層。
// 記録のCRUDと日次・期間の栄養集計を統括する。
type EntryService struct {
	entryRepo repository.EntryRepository
	foodRepo  repository.FoodRepository
	sanitizer security.ContentSanitizerService
	collector metrics.MetricsCollector
	logger    *slog.Logger
	loc       *time.Location
	now       func() time.Time
}

// NewEntryService はEntryServiceの新しいインスタンスを生成する。
func NewEntryService(
	entryRepo repository.EntryRepository,
	foodRepo repository.FoodRepository,
	sanitizer security.ContentSanitizerService,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	loc *time.Location,
) *EntryService {
	return &EntryService{
		entryRepo: entryRepo,
		foodRepo:  foodRepo,
		sanitizer: sanitizer,
		collector: collector,
		logger:    logger,
		loc:       loc,
		now:       time.Now,
	}
}

// LogEntry は食事記録を登録する。
// 食事区分と数量を検証し、参照先の食品が存在することを確認したうえで保存する。
func (s *EntryService) LogEntry(ctx context.Context, userID string, input LogInput) (*model.FoodEntry, error) {
	mealType, ok := model.ParseMealType(input.MealType)
	if !ok {
		return nil, model.NewInvalidMealTypeError(input.MealType)
	}
	if input.Quantity <= 0 {
		return nil, model.NewValidationError("数量は正の値で指定してください")
	}

	food, err := s.foodRepo.FindByID(ctx, input.FoodID)
	if err != nil {
		return nil, fmt.Errorf("食品の取得に失敗しました: %w", err)
	}
	if food == nil {
		return nil, model.NewFoodNotFoundError(input.FoodID)
	}

	consumedAt := s.now()
	if input.ConsumedAt != nil {
		consumedAt = *input.ConsumedAt
	}

	unit := input.Unit
	if unit == "" {
		unit = food.ServingUnit
	}

	now := s.now()
	entry := &model.FoodEntry{
		ID:         uuid.New().String(),
		UserID:     userID,
		FoodID:     food.ID,
		Quantity:   input.Quantity,
		Unit:       unit,
		MealType:   mealType,
		ConsumedAt: consumedAt,
		Notes:      s.sanitizer.Sanitize(input.Notes),
		CreatedAt:  now,
		UpdatedAt:  now,
		Food:       food,
	}

	if err := s.entryRepo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("食事記録の保存に失敗しました: %w", err)
	}

	if s.collector != nil {
		s.collector.RecordEntryLogged(string(mealType))
	}

	return entry, nil
}

// GetEntry は食事記録を1件取得する。本人の記録のみ参照できる。
func (s *EntryService) GetEntry(ctx context.Context, userID, entryID string) (*model.FoodEntry, error) {
	entry, err := s.entryRepo.FindByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("食事記録の取得に失敗しました: %w", err)
	}
	if entry == nil {
		return nil, model.NewEntryNotFoundError(entryID)
	}
	if entry.UserID != userID {
		return nil, model.NewPermissionDeniedError()
	}
	return entry, nil
}

// ListEntries は食事記録の一覧をConsumedAt降順で返す。
func (s *EntryService) ListEntries(ctx context.Context, userID string, filter ListFilter) ([]*model.FoodEntry, error) {
	repoFilter := repository.EntryFilter{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	if filter.MealType != "" {
		mealType, ok := model.ParseMealType(filter.MealType)
		if !ok {
			return nil, model.NewInvalidMealTypeError(filter.MealType)
		}
		repoFilter.MealType = mealType
	}

	startDate, endDate := filter.StartDate, filter.EndDate
	if filter.Date != "" {
		startDate, endDate = filter.Date, filter.Date
	}

	if startDate != "" || endDate != "" {
		start, end, err := s.dateWindow(startDate, endDate)
		if err != nil {
			return nil, err
		}
		repoFilter.Start = start
		repoFilter.End = end
	}

	entries, err := s.entryRepo.ListByUser(ctx, userID, repoFilter)
	if err != nil {
		return nil, fmt.Errorf("食事記録の取得に失敗しました: %w", err)
	}
	return entries, nil
}

// UpdateEntry は食事記録を更新する。本人の記録のみ更新できる。
func (s *EntryService) UpdateEntry(ctx context.Context, userID, entryID string, input LogInput) (*model.FoodEntry, error) {
	existing, err := s.entryRepo.FindByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("食事記録の取得に失敗しました: %w", err)
	}
	if existing == nil {
		return nil, model.NewEntryNotFoundError(entryID)
	}
	if existing.UserID != userID {
		return nil, model.NewPermissionDeniedError()
	}

	mealType, ok := model.ParseMealType(input.MealType)
	if !ok {
		return nil, model.NewInvalidMealTypeError(input.MealType)
	}
	if input.Quantity <= 0 {
		return nil, model.NewValidationError("数量は正の値で指定してください")
	}

	food := existing.Food
	if input.FoodID != "" && input.FoodID != existing.FoodID {
		food, err = s.foodRepo.FindByID(ctx, input.FoodID)
		if err != nil {
			return nil, fmt.Errorf("食品の取得に失敗しました: %w", err)
		}
		if food == nil {
			return nil, model.NewFoodNotFoundError(input.FoodID)
		}
		existing.FoodID = food.ID
	}

	existing.Quantity = input.Quantity
	existing.MealType = mealType
	existing.Notes = s.sanitizer.Sanitize(input.Notes)
	if input.Unit != "" {
		existing.Unit = input.Unit
	}
	if input.ConsumedAt != nil {
		existing.ConsumedAt = *input.ConsumedAt
	}
	existing.UpdatedAt = s.now()
	existing.Food = food

	if err := s.entryRepo.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("食事記録の更新に失敗しました: %w", err)
	}

	return existing, nil
}

// DeleteEntry は食事記録を削除する。本人の記録のみ削除できる。
func (s *EntryService) DeleteEntry(ctx context.Context, userID, entryID string) error {
	existing, err := s.entryRepo.FindByID(ctx, entryID)
	if err != nil {
		return fmt.Errorf("食事記録の取得に失敗しました: %w", err)
	}
	if existing == nil {
		return model.NewEntryNotFoundError(entryID)
	}
	if existing.UserID != userID {
		return model.NewPermissionDeniedError()
	}

	if err := s.entryRepo.Delete(ctx, entryID); err != nil {
		return fmt.Errorf("食事記録の削除に失敗しました: %w", err)
	}
	return nil
}

// DailySummary は指定日の栄養集計を返す。
func (s *EntryService) DailySummary(ctx context.Context, userID, date string) (*nutrition.DailySummary, error) {
	start, end, err := s.dateWindow(date, date)
	if err != nil {
		return nil, err
	}

	entries, err := s.entryRepo.ListByUser(ctx, userID, repository.EntryFilter{Start: start, End: end})
	if err != nil {
		return nil, fmt.Errorf("食事記録の取得に失敗しました: %w", err)
	}

	return nutrition.SummarizeDay(s.logger, date, entries)
}

// RangeSummary は指定期間の栄養集計を返す。期間は両端を含む。
func (s *EntryService) RangeSummary(ctx context.Context, userID, startDate, endDate string) (*nutrition.RangeSummary, error) {
	start, end, err := s.dateWindow(startDate, endDate)
	if err != nil {
		return nil, err
	}
	if !start.Before(end) {
		return nil, model.NewInvalidDateError(fmt.Sprintf("%s〜%s", startDate, endDate))
	}
	// 日数は暦日で数える。DSTのある地域では時間差換算だと1時間ずれる。
	if end.After(start.AddDate(0, 0, maxRangeDays)) {
		return nil, model.NewInvalidDateError(fmt.Sprintf("期間が長すぎます: %s〜%s", startDate, endDate))
	}

	entries, err := s.entryRepo.ListByUser(ctx, userID, repository.EntryFilter{Start: start, End: end})
	if err != nil {
		return nil, fmt.Errorf("食事記録の取得に失敗しました: %w", err)
	}

	return nutrition.SummarizeRange(s.logger, s.loc, startDate, endDate, entries)
}

// dateWindow は日付文字列の組を基準タイムゾーンの時刻窓に変換する。
// 返される窓は[開始日の0時, 終了日の翌日0時)の半開区間。
func (s *EntryService) dateWindow(startDate, endDate string) (time.Time, time.Time, error) {
	if startDate == "" {
		startDate = endDate
	}
	if endDate == "" {
		endDate = startDate
	}

	start, err := time.ParseInLocation(nutrition.DateLayout, startDate, s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, model.NewInvalidDateError(startDate)
	}
	end, err := time.ParseInLocation(nutrition.DateLayout, endDate, s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, model.NewInvalidDateError(endDate)
	}

	return start, end.AddDate(0, 0, 1), nil
}
