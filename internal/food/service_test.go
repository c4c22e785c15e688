package food

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/nutrilog/internal/metrics"
	"github.com/hitoshi/nutrilog/internal/model"
	"github.com/hitoshi/nutrilog/internal/repository"
	"github.com/hitoshi/nutrilog/internal/security"
	"github.com/hitoshi/nutrilog/internal/usda"
)

// --- FoodService テスト用モック ---

// mockFoodRepo はテスト用のFoodRepositoryモック。
type mockFoodRepo struct {
	foods       map[string]*model.Food
	searchHits  []*model.Food
	searchErr   error
	createCalls int
	updateCalls int
	deleteCalls int
}

func newMockFoodRepo() *mockFoodRepo {
	return &mockFoodRepo{foods: make(map[string]*model.Food)}
}

func (m *mockFoodRepo) FindByID(_ context.Context, id string) (*model.Food, error) {
	f, ok := m.foods[id]
	if !ok {
		return nil, nil
	}
	return f, nil
}

func (m *mockFoodRepo) FindByBarcode(_ context.Context, barcode string) (*model.Food, error) {
	for _, f := range m.foods {
		if f.Barcode == barcode {
			return f, nil
		}
	}
	return nil, nil
}

func (m *mockFoodRepo) FindByFdcID(_ context.Context, fdcID int64) (*model.Food, error) {
	for _, f := range m.foods {
		if f.FdcID == fdcID {
			return f, nil
		}
	}
	return nil, nil
}

func (m *mockFoodRepo) Search(_ context.Context, _ repository.FoodSearchQuery) ([]*model.Food, error) {
	return m.searchHits, m.searchErr
}

func (m *mockFoodRepo) Create(_ context.Context, food *model.Food) error {
	m.createCalls++
	m.foods[food.ID] = food
	return nil
}

func (m *mockFoodRepo) Update(_ context.Context, food *model.Food) error {
	m.updateCalls++
	m.foods[food.ID] = food
	return nil
}

func (m *mockFoodRepo) Delete(_ context.Context, id string) error {
	m.deleteCalls++
	delete(m.foods, id)
	return nil
}

// mockUSDAGateway はテスト用のUSDAGatewayモック。
type mockUSDAGateway struct {
	searchResult *usda.SearchResult
	searchErr    error
	detailFood   *model.Food
	detailErr    error
	barcodeFood  *model.Food
	barcodeErr   error
	statusErr    error
	searchCalls  int
	barcodeCalls int
}

func (m *mockUSDAGateway) SearchFoods(_ context.Context, _ string, _ usda.SearchOptions) (*usda.SearchResult, error) {
	m.searchCalls++
	return m.searchResult, m.searchErr
}

func (m *mockUSDAGateway) GetFood(_ context.Context, _ int64) (*model.Food, error) {
	return m.detailFood, m.detailErr
}

func (m *mockUSDAGateway) SearchByBarcode(_ context.Context, _ string) (*model.Food, error) {
	m.barcodeCalls++
	return m.barcodeFood, m.barcodeErr
}

func (m *mockUSDAGateway) CheckStatus(_ context.Context) error {
	return m.statusErr
}

// mockCollector は食品インポートの記録回数を数えるモック。
type mockCollector struct {
	imported int
	entries  []string
}

func (m *mockCollector) RecordUSDASuccess(string)         {}
func (m *mockCollector) RecordUSDAFailure(string, string) {}
func (m *mockCollector) RecordUSDALatency(time.Duration)  {}
func (m *mockCollector) RecordHTTPStatus(int)             {}
func (m *mockCollector) RecordEntryLogged(mealType string) {
	m.entries = append(m.entries, mealType)
}
func (m *mockCollector) RecordFoodImported() { m.imported++ }

func newTestService(repo *mockFoodRepo, gateway *mockUSDAGateway, collector *mockCollector) *FoodService {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	var mc metrics.MetricsCollector
	if collector != nil {
		mc = collector
	}
	return NewFoodService(repo, gateway, security.NewContentSanitizer(), mc, logger)
}

func apiErrorCode(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

func validFood(name string) *model.Food {
	return &model.Food{
		Name:        name,
		Category:    model.CategoryProtein,
		ServingSize: 100,
		ServingUnit: "g",
		Calories:    165,
		Protein:     31,
	}
}

// --- CreateFood ---

func TestCreateFood_SetsOwnerAndID(t *testing.T) {
	repo := newMockFoodRepo()
	svc := newTestService(repo, &mockUSDAGateway{}, nil)

	created, err := svc.CreateFood(context.Background(), "user-1", validFood("鶏むね肉"))
	if err != nil {
		t.Fatalf("CreateFood returned error: %v", err)
	}

	if created.ID == "" {
		t.Error("IDが採番されていない")
	}
	if created.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", created.UserID)
	}
	if created.Verified {
		t.Error("ユーザー作成食品はVerifiedであってはならない")
	}
	if repo.createCalls != 1 {
		t.Errorf("createCalls = %d, want 1", repo.createCalls)
	}
}

func TestCreateFood_SanitizesNameAndBrand(t *testing.T) {
	repo := newMockFoodRepo()
	svc := newTestService(repo, &mockUSDAGateway{}, nil)

	food := validFood(`プロテイン<script>alert('xss')</script>バー`)
	food.Brand = "<strong>MyBrand</strong>"

	created, err := svc.CreateFood(context.Background(), "user-1", food)
	if err != nil {
		t.Fatalf("CreateFood returned error: %v", err)
	}
	if created.Name != "プロテインバー" {
		t.Errorf("Name = %q, want プロテインバー", created.Name)
	}
	if created.Brand != "MyBrand" {
		t.Errorf("Brand = %q, want MyBrand", created.Brand)
	}
}

func TestCreateFood_ValidationErrors(t *testing.T) {
	svc := newTestService(newMockFoodRepo(), &mockUSDAGateway{}, nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(f *model.Food)
	}{
		{"名前が空", func(f *model.Food) { f.Name = "" }},
		{"カテゴリが不正", func(f *model.Food) { f.Category = "junk" }},
		{"1食分の量がゼロ", func(f *model.Food) { f.ServingSize = 0 }},
		{"カロリーが負", func(f *model.Food) { f.Calories = -1 }},
		{"タンパク質が負", func(f *model.Food) { f.Protein = -0.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			food := validFood("テスト食品")
			tt.mutate(food)

			_, err := svc.CreateFood(ctx, "user-1", food)
			if code := apiErrorCode(err); code != model.ErrCodeValidationFailed {
				t.Errorf("error code = %q, want VALIDATION_FAILED (err=%v)", code, err)
			}
		})
	}
}

func TestCreateFood_DefaultsServingUnit(t *testing.T) {
	svc := newTestService(newMockFoodRepo(), &mockUSDAGateway{}, nil)

	food := validFood("白米")
	food.ServingUnit = ""

	created, err := svc.CreateFood(context.Background(), "user-1", food)
	if err != nil {
		t.Fatalf("CreateFood returned error: %v", err)
	}
	if created.ServingUnit != "g" {
		t.Errorf("ServingUnit = %q, want g", created.ServingUnit)
	}
}

// --- GetFood / UpdateFood / DeleteFood ---

func TestGetFood_NotFound(t *testing.T) {
	svc := newTestService(newMockFoodRepo(), &mockUSDAGateway{}, nil)

	_, err := svc.GetFood(context.Background(), "missing")
	if code := apiErrorCode(err); code != model.ErrCodeFoodNotFound {
		t.Errorf("error code = %q, want FOOD_NOT_FOUND", code)
	}
}

func TestUpdateFood_OwnershipEnforced(t *testing.T) {
	repo := newMockFoodRepo()
	svc := newTestService(repo, &mockUSDAGateway{}, nil)
	ctx := context.Background()

	created, err := svc.CreateFood(ctx, "owner", validFood("ヨーグルト"))
	if err != nil {
		t.Fatalf("CreateFood returned error: %v", err)
	}

	// 他人は更新できない
	_, err = svc.UpdateFood(ctx, "intruder", created.ID, validFood("改ざん"))
	if code := apiErrorCode(err); code != model.ErrCodePermissionDenied {
		t.Errorf("error code = %q, want PERMISSION_DENIED", code)
	}

	// 本人は更新できる
	updated, err := svc.UpdateFood(ctx, "owner", created.ID, validFood("ギリシャヨーグルト"))
	if err != nil {
		t.Fatalf("UpdateFood returned error: %v", err)
	}
	if updated.Name != "ギリシャヨーグルト" {
		t.Errorf("Name = %q", updated.Name)
	}
	if updated.ID != created.ID {
		t.Errorf("IDが変わった: %q -> %q", created.ID, updated.ID)
	}
}

func TestUpdateFood_SharedFoodRejected(t *testing.T) {
	repo := newMockFoodRepo()
	repo.foods["shared-1"] = &model.Food{ID: "shared-1", Name: "共有食品", UserID: ""}
	svc := newTestService(repo, &mockUSDAGateway{}, nil)

	_, err := svc.UpdateFood(context.Background(), "user-1", "shared-1", validFood("書き換え"))
	if code := apiErrorCode(err); code != model.ErrCodePermissionDenied {
		t.Errorf("error code = %q, want PERMISSION_DENIED", code)
	}
}

func TestDeleteFood_OwnershipEnforced(t *testing.T) {
	repo := newMockFoodRepo()
	svc := newTestService(repo, &mockUSDAGateway{}, nil)
	ctx := context.Background()

	created, err := svc.CreateFood(ctx, "owner", validFood("りんご"))
	if err != nil {
		t.Fatalf("CreateFood returned error: %v", err)
	}

	if err := svc.DeleteFood(ctx, "intruder", created.ID); apiErrorCode(err) != model.ErrCodePermissionDenied {
		t.Errorf("他人の削除が拒否されていない: %v", err)
	}
	if err := svc.DeleteFood(ctx, "owner", created.ID); err != nil {
		t.Errorf("DeleteFood returned error: %v", err)
	}
	if repo.deleteCalls != 1 {
		t.Errorf("deleteCalls = %d, want 1", repo.deleteCalls)
	}
}

// --- SearchFoods（統合検索） ---

func TestSearchFoods_MergesLocalAndUSDA(t *testing.T) {
	repo := newMockFoodRepo()
	repo.searchHits = []*model.Food{
		{ID: "local-1", Name: "Chicken Breast", FdcID: 0},
	}
	gateway := &mockUSDAGateway{
		searchResult: &usda.SearchResult{
			TotalHits: 2,
			Foods: []*model.Food{
				{Name: "Chicken breast", FdcID: 100, Category: model.CategoryProtein}, // ローカルと重複
				{Name: "Turkey Breast, Roasted", FdcID: 200, Category: model.CategoryProtein},
			},
		},
	}
	svc := newTestService(repo, gateway, nil)

	results, err := svc.SearchFoods(context.Background(), "user-1", repository.FoodSearchQuery{Keyword: "breast"}, true)
	if err != nil {
		t.Fatalf("SearchFoods returned error: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2 (重複除外後)", len(results))
	}
	if results[0].ID != "local-1" {
		t.Errorf("ローカル結果が先頭にない: %+v", results[0])
	}
	if results[1].FdcID != 200 {
		t.Errorf("results[1].FdcID = %d, want 200", results[1].FdcID)
	}
}

func TestSearchFoods_USDAFailureDegradesToLocal(t *testing.T) {
	repo := newMockFoodRepo()
	repo.searchHits = []*model.Food{{ID: "local-1", Name: "バナナ"}}
	gateway := &mockUSDAGateway{searchErr: model.NewUSDAUnavailableError()}
	svc := newTestService(repo, gateway, nil)

	results, err := svc.SearchFoods(context.Background(), "user-1", repository.FoodSearchQuery{Keyword: "banana"}, true)
	if err != nil {
		t.Fatalf("USDA障害時もエラーにしてはいけない: %v", err)
	}
	if len(results) != 1 || results[0].ID != "local-1" {
		t.Errorf("results = %+v, want local only", results)
	}
}

func TestSearchFoods_ExternalDisabledSkipsUSDA(t *testing.T) {
	repo := newMockFoodRepo()
	gateway := &mockUSDAGateway{}
	svc := newTestService(repo, gateway, nil)

	_, err := svc.SearchFoods(context.Background(), "user-1", repository.FoodSearchQuery{Keyword: "apple"}, false)
	if err != nil {
		t.Fatalf("SearchFoods returned error: %v", err)
	}
	if gateway.searchCalls != 0 {
		t.Errorf("USDAが呼ばれている: searchCalls = %d", gateway.searchCalls)
	}
}

// --- LookupBarcode ---

func TestLookupBarcode_LocalHit(t *testing.T) {
	repo := newMockFoodRepo()
	repo.foods["f1"] = &model.Food{ID: "f1", Name: "シリアル", Barcode: "4901234567890"}
	gateway := &mockUSDAGateway{}
	svc := newTestService(repo, gateway, nil)

	food, err := svc.LookupBarcode(context.Background(), "4901234567890")
	if err != nil {
		t.Fatalf("LookupBarcode returned error: %v", err)
	}
	if food.ID != "f1" {
		t.Errorf("food.ID = %q, want f1", food.ID)
	}
	if gateway.barcodeCalls != 0 {
		t.Errorf("ローカルヒット時にUSDAが呼ばれた: %d", gateway.barcodeCalls)
	}
}

func TestLookupBarcode_USDAFallbackImports(t *testing.T) {
	repo := newMockFoodRepo()
	gateway := &mockUSDAGateway{
		barcodeFood: &model.Food{Name: "Granola Bar", Barcode: "0123456789012", FdcID: 555, Verified: true},
	}
	collector := &mockCollector{}
	svc := newTestService(repo, gateway, collector)

	food, err := svc.LookupBarcode(context.Background(), "0123456789012")
	if err != nil {
		t.Fatalf("LookupBarcode returned error: %v", err)
	}
	if food.ID == "" {
		t.Error("取り込んだ食品にIDが採番されていない")
	}
	if repo.createCalls != 1 {
		t.Errorf("createCalls = %d, want 1", repo.createCalls)
	}
	if collector.imported != 1 {
		t.Errorf("インポートメトリクスが記録されていない: %d", collector.imported)
	}
}

func TestLookupBarcode_NotFound(t *testing.T) {
	svc := newTestService(newMockFoodRepo(), &mockUSDAGateway{}, nil)

	_, err := svc.LookupBarcode(context.Background(), "0000000000000")
	if code := apiErrorCode(err); code != model.ErrCodeBarcodeNotFound {
		t.Errorf("error code = %q, want BARCODE_NOT_FOUND", code)
	}
}

// --- ImportFromUSDA ---

func TestImportFromUSDA_Idempotent(t *testing.T) {
	repo := newMockFoodRepo()
	gateway := &mockUSDAGateway{
		detailFood: &model.Food{Name: "Apples, raw, with skin", FdcID: 171688, Verified: true},
	}
	collector := &mockCollector{}
	svc := newTestService(repo, gateway, collector)
	ctx := context.Background()

	first, err := svc.ImportFromUSDA(ctx, 171688)
	if err != nil {
		t.Fatalf("1回目のImportFromUSDA returned error: %v", err)
	}

	second, err := svc.ImportFromUSDA(ctx, 171688)
	if err != nil {
		t.Fatalf("2回目のImportFromUSDA returned error: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("冪等性違反: 1回目ID=%q, 2回目ID=%q", first.ID, second.ID)
	}
	if repo.createCalls != 1 {
		t.Errorf("createCalls = %d, want 1", repo.createCalls)
	}
	if collector.imported != 1 {
		t.Errorf("imported = %d, want 1", collector.imported)
	}
}

func TestImportFromUSDA_NotFoundInUSDA(t *testing.T) {
	svc := newTestService(newMockFoodRepo(), &mockUSDAGateway{}, nil)

	_, err := svc.ImportFromUSDA(context.Background(), 999999)
	if code := apiErrorCode(err); code != model.ErrCodeFoodNotFound {
		t.Errorf("error code = %q, want FOOD_NOT_FOUND", code)
	}
}

func TestImportFromUSDA_InvalidID(t *testing.T) {
	svc := newTestService(newMockFoodRepo(), &mockUSDAGateway{}, nil)

	_, err := svc.ImportFromUSDA(context.Background(), 0)
	if code := apiErrorCode(err); code != model.ErrCodeValidationFailed {
		t.Errorf("error code = %q, want VALIDATION_FAILED", code)
	}
}

// --- GetUSDAFood ---

// プレビューは保存しないことをテストする。
func TestGetUSDAFood_ReturnsDetailWithoutPersisting(t *testing.T) {
	repo := newMockFoodRepo()
	gateway := &mockUSDAGateway{
		detailFood: &model.Food{Name: "Apples, raw, with skin", FdcID: 171688, Calories: 52, Verified: true},
	}
	svc := newTestService(repo, gateway, nil)

	food, err := svc.GetUSDAFood(context.Background(), 171688)
	if err != nil {
		t.Fatalf("GetUSDAFood returned error: %v", err)
	}
	if food.FdcID != 171688 {
		t.Errorf("FdcID = %d, want 171688", food.FdcID)
	}
	if repo.createCalls != 0 {
		t.Errorf("createCalls = %d, want 0 (プレビューで保存された)", repo.createCalls)
	}
}

func TestGetUSDAFood_NotFound(t *testing.T) {
	svc := newTestService(newMockFoodRepo(), &mockUSDAGateway{}, nil)

	_, err := svc.GetUSDAFood(context.Background(), 999999)
	if code := apiErrorCode(err); code != model.ErrCodeFoodNotFound {
		t.Errorf("error code = %q, want FOOD_NOT_FOUND", code)
	}
}

func TestGetUSDAFood_InvalidID(t *testing.T) {
	svc := newTestService(newMockFoodRepo(), &mockUSDAGateway{}, nil)

	_, err := svc.GetUSDAFood(context.Background(), -1)
	if code := apiErrorCode(err); code != model.ErrCodeValidationFailed {
		t.Errorf("error code = %q, want VALIDATION_FAILED", code)
	}
}

// --- Categories / 類似度 ---

func TestCategories_ReturnsAllDefined(t *testing.T) {
	svc := newTestService(newMockFoodRepo(), &mockUSDAGateway{}, nil)

	got := svc.Categories()
	if len(got) != len(model.FoodCategories) {
		t.Errorf("len = %d, want %d", len(got), len(model.FoodCategories))
	}
}

func TestNameSimilarity(t *testing.T) {
	tests := []struct {
		a, b    string
		atLeast float64
		below   float64
	}{
		{"Chicken Breast", "chicken breast", 1.0, 1.01},
		{"Chicken Breast", "Chicken Breasts", 0.9, 1.0},
		{"バナナ", "リンゴジュース", 0.0, 0.3},
		{"", "", 1.0, 1.01},
		{"apple", "", 0.0, 0.01},
	}

	for _, tt := range tests {
		got := nameSimilarity(tt.a, tt.b)
		if got < tt.atLeast || got >= tt.below {
			t.Errorf("nameSimilarity(%q, %q) = %v, want [%v, %v)", tt.a, tt.b, got, tt.atLeast, tt.below)
		}
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"kitten", "sitting", 3},
		{"", "abc", 3},
		{"abc", "", 3},
		{"same", "same", 0},
	}

	for _, tt := range tests {
		if got := levenshtein([]rune(tt.a), []rune(tt.b)); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

// 到達しない分岐のカバー用: 検索エラーはそのまま伝播する
func TestSearchFoods_LocalErrorPropagates(t *testing.T) {
	repo := newMockFoodRepo()
	repo.searchErr = fmt.Errorf("db down")
	svc := newTestService(repo, &mockUSDAGateway{}, nil)

	_, err := svc.SearchFoods(context.Background(), "user-1", repository.FoodSearchQuery{Keyword: "x"}, false)
	if err == nil {
		t.Fatal("ローカル検索エラーが伝播していない")
	}
}
