// Package usda はUSDA FoodData Central APIとの連携機能を提供する。
// 食品検索・詳細取得・バーコード検索と、レスポンスの食品マスタ形式への変換を含む。
package usda

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hitoshi/nutrilog/internal/metrics"
	"github.com/hitoshi/nutrilog/internal/model"
)

const (
	// defaultBaseURL はFoodData Central APIのベースURL。
	defaultBaseURL = "https://api.nal.usda.gov/fdc/v1"
	// defaultPageSize は検索結果の1ページあたりの件数。
	defaultPageSize = 25
	// maxPageSize はAPIが許容する1ページあたりの最大件数。
	maxPageSize = 200
)

// Client はFoodData Central APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	collector  metrics.MetricsCollector
	baseURL    string // テスト用にエンドポイントを差し替え可能
	apiKey     string
}

// NewClient はClientの新しいインスタンスを生成する。
// collectorはnilを許容する（メトリクス記録をスキップ）。
func NewClient(httpClient *http.Client, logger *slog.Logger, collector metrics.MetricsCollector, apiKey string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		collector:  collector,
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
	}
}

// SetBaseURL はAPIのベースURLを差し替える。テストとプロキシ環境用。
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// SearchOptions は食品検索のオプション。
type SearchOptions struct {
	// DataTypes は対象データ種別（"Branded", "Foundation", "SR Legacy" 等）。
	// 空の場合は全種別。
	DataTypes []string
	PageSize  int
	Page      int
}

// searchResponse は/foods/searchのレスポンス。
type searchResponse struct {
	TotalHits int          `json:"totalHits"`
	Foods     []searchFood `json:"foods"`
}

// searchFood は検索結果の食品1件。
type searchFood struct {
	FdcID         int64            `json:"fdcId"`
	Description   string           `json:"description"`
	DataType      string           `json:"dataType"`
	GtinUpc       string           `json:"gtinUpc"`
	BrandOwner    string           `json:"brandOwner"`
	BrandName     string           `json:"brandName"`
	FoodCategory  string           `json:"foodCategory"`
	ServingSize   float64          `json:"servingSize"`
	ServingUnit   string           `json:"servingSizeUnit"`
	FoodNutrients []searchNutrient `json:"foodNutrients"`
}

// searchNutrient は検索結果の栄養素1件。
type searchNutrient struct {
	NutrientNumber string  `json:"nutrientNumber"`
	Value          float64 `json:"value"`
}

// SearchResult は検索結果。
type SearchResult struct {
	TotalHits int
	Foods     []*model.Food
}

// SearchFoods はキーワードで食品を検索し、食品マスタ形式に変換して返す。
func (c *Client) SearchFoods(ctx context.Context, query string, opts SearchOptions) (*SearchResult, error) {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := opts.Page
	if page <= 0 {
		page = 1
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("pageSize", strconv.Itoa(pageSize))
	params.Set("pageNumber", strconv.Itoa(page))
	for _, dt := range opts.DataTypes {
		params.Add("dataType", dt)
	}

	var result searchResponse
	if err := c.get(ctx, "search", "/foods/search", params, &result); err != nil {
		return nil, err
	}

	foods := make([]*model.Food, 0, len(result.Foods))
	for _, f := range result.Foods {
		foods = append(foods, transformSearchFood(f))
	}
	return &SearchResult{TotalHits: result.TotalHits, Foods: foods}, nil
}

// foodDetailResponse は/food/{fdcId}のレスポンス。
type foodDetailResponse struct {
	FdcID         int64            `json:"fdcId"`
	Description   string           `json:"description"`
	DataType      string           `json:"dataType"`
	GtinUpc       string           `json:"gtinUpc"`
	BrandOwner    string           `json:"brandOwner"`
	BrandName     string           `json:"brandName"`
	ServingSize   float64          `json:"servingSize"`
	ServingUnit   string           `json:"servingSizeUnit"`
	FoodCategory  json.RawMessage  `json:"foodCategory"` // 文字列またはオブジェクト
	FoodNutrients []detailNutrient `json:"foodNutrients"`
}

// detailNutrient は詳細レスポンスの栄養素1件。検索と構造が異なる。
type detailNutrient struct {
	Nutrient struct {
		Number string `json:"number"`
	} `json:"nutrient"`
	Amount float64 `json:"amount"`
}

// GetFood はFoodData Central IDで食品詳細を取得し、食品マスタ形式に変換して返す。
// 見つからない場合はnilを返す。
func (c *Client) GetFood(ctx context.Context, fdcID int64) (*model.Food, error) {
	var result foodDetailResponse
	err := c.get(ctx, "food", fmt.Sprintf("/food/%d", fdcID), url.Values{}, &result)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return transformFoodDetail(result), nil
}

// SearchByBarcode はバーコード（GTIN/UPC）でブランド食品を検索する。
// gtinUpcの完全一致（先頭ゼロの揺らぎを許容）を優先し、なければ先頭の結果を返す。
// 見つからない場合はnilを返す。
func (c *Client) SearchByBarcode(ctx context.Context, barcode string) (*model.Food, error) {
	params := url.Values{}
	params.Set("query", barcode)
	params.Set("pageSize", "10")
	params.Add("dataType", "Branded")

	var result searchResponse
	if err := c.get(ctx, "barcode", "/foods/search", params, &result); err != nil {
		return nil, err
	}
	if len(result.Foods) == 0 {
		return nil, nil
	}

	normalized := stripLeadingZeros(barcode)
	for _, f := range result.Foods {
		if stripLeadingZeros(f.GtinUpc) == normalized {
			food := transformSearchFood(f)
			food.Barcode = barcode
			return food, nil
		}
	}

	food := transformSearchFood(result.Foods[0])
	food.Barcode = barcode
	return food, nil
}

// CheckStatus はAPIの疎通を確認する。軽量な検索リクエストを1件発行する。
func (c *Client) CheckStatus(ctx context.Context) error {
	params := url.Values{}
	params.Set("query", "apple")
	params.Set("pageSize", "1")

	var result searchResponse
	return c.get(ctx, "status", "/foods/search", params, &result)
}

// notFoundError は404レスポンスを表す内部エラー。
type notFoundError struct{}

func (notFoundError) Error() string { return "usda: not found" }

func isNotFound(err error) bool {
	_, ok := err.(notFoundError)
	return ok
}

// get はAPIへのGETリクエストを実行しJSONをデコードする。
// メトリクス（成功/失敗カウンタとレイテンシ）を記録する。
func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values, out interface{}) error {
	params.Set("api_key", c.apiKey)

	reqURL, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}
	reqURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "Nutrilog/1.0 Nutrition Tracker")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.collector != nil {
		c.collector.RecordUSDALatency(time.Since(start))
	}
	if err != nil {
		c.logger.Error("USDA APIの呼び出しに失敗しました",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		c.recordFailure(endpoint, "network")
		return model.NewUSDAUnavailableError()
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.recordFailure(endpoint, "not_found")
		return notFoundError{}
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("USDA APIがエラーステータスを返しました",
			slog.String("endpoint", endpoint),
			slog.Int("http_status", resp.StatusCode),
		)
		c.recordFailure(endpoint, "http_"+strconv.Itoa(resp.StatusCode))
		return model.NewUSDAUnavailableError()
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordFailure(endpoint, "read_body")
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.logger.Error("USDA APIのレスポンスのパースに失敗しました",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		c.recordFailure(endpoint, "parse")
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	if c.collector != nil {
		c.collector.RecordUSDASuccess(endpoint)
	}
	return nil
}

func (c *Client) recordFailure(endpoint, reason string) {
	if c.collector != nil {
		c.collector.RecordUSDAFailure(endpoint, reason)
	}
}

// stripLeadingZeros はバーコード比較用に先頭のゼロを除去する。
func stripLeadingZeros(s string) string {
	for len(s) > 1 && s[0] == '0' {
		s = s[1:]
	}
	return s
}
