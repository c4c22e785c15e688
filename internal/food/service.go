// Package food は食品マスタ管理とUSDA連携のドメインロジックを提供する。
package food

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/nutrilog/internal/metrics"
	"github.com/hitoshi/nutrilog/internal/model"
	"github.com/hitoshi/nutrilog/internal/repository"
	"github.com/hitoshi/nutrilog/internal/security"
	"github.com/hitoshi/nutrilog/internal/usda"
)

// defaultSearchLimit はキーワード検索のデフォルト件数。
const defaultSearchLimit = 25

// usdaSearchPageSize はマージ検索でUSDAから取得する件数。
const usdaSearchPageSize = 10

// dedupSimilarityThreshold はローカル食品と重複とみなす名前類似度の下限。
const dedupSimilarityThreshold = 0.8

// USDAGateway はUSDA FoodData Centralクライアントのインターフェース。
// テスタビリティのためusda.Clientを抽象化する。
type USDAGateway interface {
	SearchFoods(ctx context.Context, query string, opts usda.SearchOptions) (*usda.SearchResult, error)
	GetFood(ctx context.Context, fdcID int64) (*model.Food, error)
	SearchByBarcode(ctx context.Context, barcode string) (*model.Food, error)
	CheckStatus(ctx context.Context) error
}

// FoodService は食品マスタのサービス層。
// ローカルDBとUSDAの検索統合、バーコード解決、USDAインポートを統括する。
type FoodService struct {
	foodRepo  repository.FoodRepository
	usdaAPI   USDAGateway
	sanitizer security.ContentSanitizerService
	collector metrics.MetricsCollector
	logger    *slog.Logger
}

// NewFoodService はFoodServiceの新しいインスタンスを生成する。
func NewFoodService(
	foodRepo repository.FoodRepository,
	usdaAPI USDAGateway,
	sanitizer security.ContentSanitizerService,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *FoodService {
	return &FoodService{
		foodRepo:  foodRepo,
		usdaAPI:   usdaAPI,
		sanitizer: sanitizer,
		collector: collector,
		logger:    logger,
	}
}

// CreateFood はユーザー作成食品を登録する。
// 名前・ブランド名はサニタイズされ、所有者として作成ユーザーが記録される。
func (s *FoodService) CreateFood(ctx context.Context, userID string, food *model.Food) (*model.Food, error) {
	food.Name = s.sanitizer.Sanitize(food.Name)
	food.Brand = s.sanitizer.Sanitize(food.Brand)

	if err := validateFood(food); err != nil {
		return nil, err
	}

	now := time.Now()
	food.ID = uuid.New().String()
	food.UserID = userID
	food.Verified = false
	food.FdcID = 0
	food.CreatedAt = now
	food.UpdatedAt = now

	if err := s.foodRepo.Create(ctx, food); err != nil {
		return nil, fmt.Errorf("食品の保存に失敗しました: %w", err)
	}

	return food, nil
}

// GetFood は食品を1件取得する。
func (s *FoodService) GetFood(ctx context.Context, foodID string) (*model.Food, error) {
	food, err := s.foodRepo.FindByID(ctx, foodID)
	if err != nil {
		return nil, fmt.Errorf("食品の取得に失敗しました: %w", err)
	}
	if food == nil {
		return nil, model.NewFoodNotFoundError(foodID)
	}
	return food, nil
}

// UpdateFood はユーザー作成食品を更新する。
// 作成者本人の食品のみ更新でき、共有食品・USDA由来食品は更新できない。
func (s *FoodService) UpdateFood(ctx context.Context, userID, foodID string, input *model.Food) (*model.Food, error) {
	existing, err := s.foodRepo.FindByID(ctx, foodID)
	if err != nil {
		return nil, fmt.Errorf("食品の取得に失敗しました: %w", err)
	}
	if existing == nil {
		return nil, model.NewFoodNotFoundError(foodID)
	}
	if existing.UserID == "" || existing.UserID != userID {
		return nil, model.NewPermissionDeniedError()
	}

	input.Name = s.sanitizer.Sanitize(input.Name)
	input.Brand = s.sanitizer.Sanitize(input.Brand)
	if err := validateFood(input); err != nil {
		return nil, err
	}

	input.ID = existing.ID
	input.UserID = existing.UserID
	input.Verified = existing.Verified
	input.FdcID = existing.FdcID
	input.CreatedAt = existing.CreatedAt
	input.UpdatedAt = time.Now()

	if err := s.foodRepo.Update(ctx, input); err != nil {
		return nil, fmt.Errorf("食品の更新に失敗しました: %w", err)
	}

	return input, nil
}

// DeleteFood はユーザー作成食品を削除する。作成者本人のみ削除できる。
func (s *FoodService) DeleteFood(ctx context.Context, userID, foodID string) error {
	existing, err := s.foodRepo.FindByID(ctx, foodID)
	if err != nil {
		return fmt.Errorf("食品の取得に失敗しました: %w", err)
	}
	if existing == nil {
		return model.NewFoodNotFoundError(foodID)
	}
	if existing.UserID == "" || existing.UserID != userID {
		return model.NewPermissionDeniedError()
	}

	if err := s.foodRepo.Delete(ctx, foodID); err != nil {
		return fmt.Errorf("食品の削除に失敗しました: %w", err)
	}
	return nil
}

// SearchFoods はローカルDBとUSDAを統合した食品検索を行う。
// ローカル結果を先頭に並べ、ローカルの食品名と高い類似度を持つUSDA結果は除外する。
// USDAへの問い合わせが失敗した場合はローカル結果のみを返し、エラーにはしない。
func (s *FoodService) SearchFoods(ctx context.Context, userID string, query repository.FoodSearchQuery, includeExternal bool) ([]*model.Food, error) {
	query.UserID = userID
	if query.Limit <= 0 {
		query.Limit = defaultSearchLimit
	}

	local, err := s.foodRepo.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("食品の検索に失敗しました: %w", err)
	}

	keyword := strings.TrimSpace(query.Keyword)
	if !includeExternal || keyword == "" || s.usdaAPI == nil {
		return local, nil
	}

	result, err := s.usdaAPI.SearchFoods(ctx, keyword, usda.SearchOptions{PageSize: usdaSearchPageSize})
	if err != nil {
		s.logger.Warn("USDA検索に失敗したためローカル結果のみ返却", "keyword", keyword, "error", err)
		return local, nil
	}

	merged := local
	for _, candidate := range result.Foods {
		if query.Category != "" && candidate.Category != query.Category {
			continue
		}
		if isDuplicateOf(candidate, merged) {
			continue
		}
		merged = append(merged, candidate)
	}

	return merged, nil
}

// LookupBarcode はバーコードから食品を解決する。
// ローカルDBを優先し、見つからない場合はUSDAのBranded食品を検索して
// ヒットすれば食品マスタに取り込んだうえで返す。
func (s *FoodService) LookupBarcode(ctx context.Context, barcode string) (*model.Food, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, model.NewValidationError("バーコードが指定されていません")
	}

	food, err := s.foodRepo.FindByBarcode(ctx, barcode)
	if err != nil {
		return nil, fmt.Errorf("バーコード検索に失敗しました: %w", err)
	}
	if food != nil {
		return food, nil
	}

	if s.usdaAPI == nil {
		return nil, model.NewBarcodeNotFoundError(barcode)
	}

	external, err := s.usdaAPI.SearchByBarcode(ctx, barcode)
	if err != nil {
		return nil, err
	}
	if external == nil {
		return nil, model.NewBarcodeNotFoundError(barcode)
	}

	return s.persistUSDAFood(ctx, external)
}

// ImportFromUSDA はUSDAの食品を食品マスタに取り込む。
// 同じFdcIDの食品が既に存在する場合は取り込み済みの食品を返す（冪等）。
func (s *FoodService) ImportFromUSDA(ctx context.Context, fdcID int64) (*model.Food, error) {
	if fdcID <= 0 {
		return nil, model.NewValidationError("FoodData Central IDが不正です")
	}

	existing, err := s.foodRepo.FindByFdcID(ctx, fdcID)
	if err != nil {
		return nil, fmt.Errorf("食品の検索に失敗しました: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	external, err := s.usdaAPI.GetFood(ctx, fdcID)
	if err != nil {
		return nil, err
	}
	if external == nil {
		return nil, model.NewFoodNotFoundError(fmt.Sprintf("fdc:%d", fdcID))
	}

	return s.persistUSDAFood(ctx, external)
}

// GetUSDAFood はUSDAの食品詳細を取得する。取り込み前のプレビュー用で、保存はしない。
func (s *FoodService) GetUSDAFood(ctx context.Context, fdcID int64) (*model.Food, error) {
	if fdcID <= 0 {
		return nil, model.NewValidationError("FoodData Central IDが不正です")
	}

	external, err := s.usdaAPI.GetFood(ctx, fdcID)
	if err != nil {
		return nil, err
	}
	if external == nil {
		return nil, model.NewFoodNotFoundError(fmt.Sprintf("fdc:%d", fdcID))
	}
	return external, nil
}

// SearchUSDA はUSDAのみを対象とした食品検索を行う。取り込み前のプレビュー用。
func (s *FoodService) SearchUSDA(ctx context.Context, keyword string, opts usda.SearchOptions) (*usda.SearchResult, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, model.NewValidationError("検索キーワードが指定されていません")
	}
	return s.usdaAPI.SearchFoods(ctx, keyword, opts)
}

// Categories は有効な食品カテゴリの一覧を返す。
func (s *FoodService) Categories() []model.FoodCategory {
	return model.FoodCategories
}

// CheckUSDAStatus はUSDA APIの疎通を確認する。
func (s *FoodService) CheckUSDAStatus(ctx context.Context) error {
	return s.usdaAPI.CheckStatus(ctx)
}

// persistUSDAFood はUSDA由来の食品にIDとタイムスタンプを付与して保存する。
// 保存直前にFdcIDの再チェックを行い、並行インポートでも重複させない。
func (s *FoodService) persistUSDAFood(ctx context.Context, food *model.Food) (*model.Food, error) {
	if food.FdcID > 0 {
		existing, err := s.foodRepo.FindByFdcID(ctx, food.FdcID)
		if err != nil {
			return nil, fmt.Errorf("食品の検索に失敗しました: %w", err)
		}
		if existing != nil {
			return existing, nil
		}
	}

	now := time.Now()
	food.ID = uuid.New().String()
	food.CreatedAt = now
	food.UpdatedAt = now

	if err := s.foodRepo.Create(ctx, food); err != nil {
		return nil, fmt.Errorf("食品の保存に失敗しました: %w", err)
	}

	if s.collector != nil {
		s.collector.RecordFoodImported()
	}
	s.logger.Info("USDA食品を取り込みました", "foodID", food.ID, "fdcID", food.FdcID, "name", food.Name)

	return food, nil
}

// isDuplicateOf は候補の食品名が既存リストのいずれかと重複とみなせるかを返す。
func isDuplicateOf(candidate *model.Food, existing []*model.Food) bool {
	for _, f := range existing {
		if f.FdcID > 0 && f.FdcID == candidate.FdcID {
			return true
		}
		if nameSimilarity(f.Name, candidate.Name) >= dedupSimilarityThreshold {
			return true
		}
	}
	return false
}

// validateFood は食品の入力値を検証する。
func validateFood(food *model.Food) error {
	if food.Name == "" {
		return model.NewValidationError("食品名は必須です")
	}
	if !model.IsValidFoodCategory(food.Category) {
		return model.NewValidationError(fmt.Sprintf("不正なカテゴリです: %s", food.Category))
	}
	if food.ServingSize <= 0 {
		return model.NewValidationError("1食分の量は正の値で指定してください")
	}
	if food.ServingUnit == "" {
		food.ServingUnit = "g"
	}

	nutrients := []struct {
		name  string
		value float64
	}{
		{"カロリー", food.Calories},
		{"タンパク質", food.Protein},
		{"炭水化物", food.Carbs},
		{"脂質", food.Fat},
		{"食物繊維", food.Fiber},
		{"糖質", food.Sugar},
		{"ナトリウム", food.Sodium},
	}
	for _, n := range nutrients {
		if n.value < 0 {
			return model.NewValidationError(fmt.Sprintf("%sは0以上で指定してください", n.name))
		}
	}

	return nil
}
