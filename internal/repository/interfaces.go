// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/nutrilog/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	// 退会済み（is_active = false）のユーザーもnil扱い。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// Update はユーザーのプロフィールを更新する。
	Update(ctx context.Context, user *model.User) error

	// UpdatePassword はパスワードハッシュのみを更新する。
	UpdatePassword(ctx context.Context, userID, passwordHash string) error

	// UpdateWeight はユーザーの現在体重のみを更新する。nilは未設定を意味する。
	UpdateWeight(ctx context.Context, userID string, weightKg *float64) error

	// Deactivate はユーザーを退会状態（is_active = false）にする。
	// レコード自体は残し、再ログインを不可にする。
	Deactivate(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteByUserIDExcept は指定セッションを除くユーザーの全セッションを削除する。
	// パスワード変更時に他端末のセッションを無効化するために使用する。
	DeleteByUserIDExcept(ctx context.Context, userID, keepSessionID string) error
}

// FoodSearchQuery は食品検索の条件。
type FoodSearchQuery struct {
	// Keyword は名前・ブランド名に対する部分一致キーワード。
	Keyword string
	// Category は指定時のみカテゴリで絞り込む。
	Category model.FoodCategory
	// UserID は指定時に共有食品に加えてこのユーザーの作成食品を対象に含める。
	UserID string
	Limit  int
	Offset int
}

// FoodRepository は食品マスタの永続化インターフェース。
type FoodRepository interface {
	// FindByID は指定IDの食品を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Food, error)

	// FindByBarcode はバーコードで食品を検索する。見つからない場合はnilを返す。
	FindByBarcode(ctx context.Context, barcode string) (*model.Food, error)

	// FindByFdcID はUSDA FoodData Central IDで食品を検索する。見つからない場合はnilを返す。
	// USDAインポートの冪等性判定に使用する。
	FindByFdcID(ctx context.Context, fdcID int64) (*model.Food, error)

	// Search はキーワード・カテゴリで食品を検索する。名前の昇順で返す。
	Search(ctx context.Context, query FoodSearchQuery) ([]*model.Food, error)

	// Create は食品を作成する。
	Create(ctx context.Context, food *model.Food) error

	// Update は食品を更新する。
	Update(ctx context.Context, food *model.Food) error

	// Delete は指定IDの食品を削除する。
	Delete(ctx context.Context, id string) error
}

// EntryFilter は食事記録一覧の絞り込み条件。
// StartとEndは基準タイムゾーンで日付境界に変換済みの時刻窓。
type EntryFilter struct {
	Start    time.Time
	End      time.Time
	MealType model.MealType // 空の場合は全区分
	Limit    int
	Offset   int
}

// EntryRepository は食事記録の永続化インターフェース。
type EntryRepository interface {
	// FindByID は指定IDの記録を食品情報とJOINして取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.FoodEntry, error)

	// ListByUser はユーザーの記録を食品情報とJOINしてConsumedAt降順で返す。
	ListByUser(ctx context.Context, userID string, filter EntryFilter) ([]*model.FoodEntry, error)

	// Create は記録を作成する。
	Create(ctx context.Context, entry *model.FoodEntry) error

	// Update は記録を更新する。
	Update(ctx context.Context, entry *model.FoodEntry) error

	// Delete は指定IDの記録を削除する。
	Delete(ctx context.Context, id string) error

	// ConsumedTimestamps はユーザーの全記録のConsumedAtを返す。ストリーク計算用。
	ConsumedTimestamps(ctx context.Context, userID string) ([]time.Time, error)
}

// WeightRepository は体重記録の永続化インターフェース。
type WeightRepository interface {
	// FindByID は指定IDの体重記録を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.WeightEntry, error)

	// ListByUser はユーザーの体重記録をRecordedAt降順で返す。
	// fromとtoはゼロ値の場合に無視される。
	ListByUser(ctx context.Context, userID string, from, to time.Time, limit int) ([]*model.WeightEntry, error)

	// LatestByUser は最新（RecordedAtが最大）の体重記録を返す。
	// 記録がない場合はnilを返す。
	LatestByUser(ctx context.Context, userID string) (*model.WeightEntry, error)

	// Create は体重記録を作成する。
	Create(ctx context.Context, entry *model.WeightEntry) error

	// Update は体重記録を更新する。
	Update(ctx context.Context, entry *model.WeightEntry) error

	// Delete は指定IDの体重記録を削除する。
	Delete(ctx context.Context, id string) error
}

// PreferencesRepository はユーザー設定（手動栄養目標）の永続化インターフェース。
type PreferencesRepository interface {
	// FindGoals はユーザーが手動設定した栄養目標を返す。未設定の場合はnilを返す。
	FindGoals(ctx context.Context, userID string) (*model.NutritionGoals, error)

	// UpsertGoals は手動栄養目標を冪等に保存する。
	UpsertGoals(ctx context.Context, userID string, goals *model.NutritionGoals) error

	// DeleteByUserID はユーザーの設定を削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
