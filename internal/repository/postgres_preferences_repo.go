package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/nutrilog/internal/model"
)

// PostgresPreferencesRepo はPostgreSQLを使用したユーザー設定リポジトリ。
// 手動設定の栄養目標をuser_preferencesテーブルのJSONBカラムに保存する。
type PostgresPreferencesRepo struct {
	db *sql.DB
}

// NewPostgresPreferencesRepo はPostgresPreferencesRepoを生成する。
func NewPostgresPreferencesRepo(db *sql.DB) *PostgresPreferencesRepo {
	return &PostgresPreferencesRepo{db: db}
}

// storedGoals はdaily_goalsカラムのJSONB表現。
type storedGoals struct {
	DailyCalories float64 `json:"dailyCalories"`
	DailyProtein  float64 `json:"dailyProtein"`
	DailyCarbs    float64 `json:"dailyCarbs"`
	DailyFat      float64 `json:"dailyFat"`
	DailyFiber    float64 `json:"dailyFiber"`
	DailySodium   float64 `json:"dailySodium"`
}

// FindGoals はユーザーが手動設定した栄養目標を返す。未設定の場合はnilを返す。
func (r *PostgresPreferencesRepo) FindGoals(ctx context.Context, userID string) (*model.NutritionGoals, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT daily_goals FROM user_preferences WHERE user_id = $1`,
		userID,
	).Scan(&raw)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find goals: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var stored storedGoals
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode stored goals: %w", err)
	}
	return &model.NutritionGoals{
		DailyCalories: stored.DailyCalories,
		DailyProtein:  stored.DailyProtein,
		DailyCarbs:    stored.DailyCarbs,
		DailyFat:      stored.DailyFat,
		DailyFiber:    stored.DailyFiber,
		DailySodium:   stored.DailySodium,
	}, nil
}

// UpsertGoals は手動栄養目標を冪等に保存する。
func (r *PostgresPreferencesRepo) UpsertGoals(ctx context.Context, userID string, goals *model.NutritionGoals) error {
	raw, err := json.Marshal(storedGoals{
		DailyCalories: goals.DailyCalories,
		DailyProtein:  goals.DailyProtein,
		DailyCarbs:    goals.DailyCarbs,
		DailyFat:      goals.DailyFat,
		DailyFiber:    goals.DailyFiber,
		DailySodium:   goals.DailySodium,
	})
	if err != nil {
		return fmt.Errorf("failed to encode goals: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO user_preferences (user_id, daily_goals, created_at, updated_at)
		 VALUES ($1, $2, now(), now())
		 ON CONFLICT (user_id) DO UPDATE SET daily_goals = $2, updated_at = now()`,
		userID, raw,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert goals: %w", err)
	}
	return nil
}

// DeleteByUserID はユーザーの設定を削除する。
func (r *PostgresPreferencesRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_preferences WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete preferences: %w", err)
	}
	return nil
}

// compile-time interface check
var _ PreferencesRepository = (*PostgresPreferencesRepo)(nil)
