package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/nutrilog/internal/model"
)

// PostgresEntryRepo はPostgreSQLを使用した食事記録リポジトリ。
type PostgresEntryRepo struct {
	db *sql.DB
}

// NewPostgresEntryRepo はPostgresEntryRepoを生成する。
func NewPostgresEntryRepo(db *sql.DB) *PostgresEntryRepo {
	return &PostgresEntryRepo{db: db}
}

// entryWithFoodColumns は食事記録と食品のJOIN SELECT対象カラム。
// foodsはLEFT JOINのため食品側カラムはNULLになり得る。
const entryWithFoodColumns = `e.id, e.user_id, e.food_id, e.quantity, e.unit, e.meal_type,
	e.consumed_at, e.notes, e.created_at, e.updated_at,
	f.id, f.name, f.brand, f.barcode, f.category, f.serving_size, f.serving_unit,
	f.calories, f.protein, f.carbs, f.fat, f.fiber, f.sugar, f.sodium,
	f.image_url, f.verified`

// scanEntryWithFood は1行をmodel.FoodEntryに変換する。
// 食品が解決できない行はFoodをnilのままにする。
func scanEntryWithFood(rows *sql.Rows) (*model.FoodEntry, error) {
	entry := &model.FoodEntry{}
	var foodID, foodName, foodBrand, foodBarcode, foodCategory, foodServingUnit, foodImageURL sql.NullString
	var foodServingSize, foodCalories, foodProtein, foodCarbs, foodFat, foodFiber, foodSugar, foodSodium sql.NullFloat64
	var foodVerified sql.NullBool

	err := rows.Scan(
		&entry.ID, &entry.UserID, &entry.FoodID, &entry.Quantity, &entry.Unit, &entry.MealType,
		&entry.ConsumedAt, &entry.Notes, &entry.CreatedAt, &entry.UpdatedAt,
		&foodID, &foodName, &foodBrand, &foodBarcode, &foodCategory, &foodServingSize, &foodServingUnit,
		&foodCalories, &foodProtein, &foodCarbs, &foodFat, &foodFiber, &foodSugar, &foodSodium,
		&foodImageURL, &foodVerified,
	)
	if err != nil {
		return nil, err
	}

	if foodID.Valid {
		entry.Food = &model.Food{
			ID:          foodID.String,
			Name:        foodName.String,
			Brand:       foodBrand.String,
			Barcode:     foodBarcode.String,
			Category:    model.FoodCategory(foodCategory.String),
			ServingSize: foodServingSize.Float64,
			ServingUnit: foodServingUnit.String,
			Calories:    foodCalories.Float64,
			Protein:     foodProtein.Float64,
			Carbs:       foodCarbs.Float64,
			Fat:         foodFat.Float64,
			Fiber:       foodFiber.Float64,
			Sugar:       foodSugar.Float64,
			Sodium:      foodSodium.Float64,
			ImageURL:    foodImageURL.String,
			Verified:    foodVerified.Bool,
		}
	}
	return entry, nil
}

// FindByID は指定IDの記録を食品情報とJOINして取得する。見つからない場合はnilを返す。
func (r *PostgresEntryRepo) FindByID(ctx context.Context, id string) (*model.FoodEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+entryWithFoodColumns+`
		 FROM food_entries e
		 LEFT JOIN foods f ON f.id = e.food_id
		 WHERE e.id = $1`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find entry by ID: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to find entry by ID: %w", err)
		}
		return nil, nil
	}
	entry, err := scanEntryWithFood(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan entry row: %w", err)
	}
	return entry, nil
}

// ListByUser はユーザーの記録を食品情報とJOINしてConsumedAt降順で返す。
func (r *PostgresEntryRepo) ListByUser(ctx context.Context, userID string, filter EntryFilter) ([]*model.FoodEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + entryWithFoodColumns + `
		FROM food_entries e
		LEFT JOIN foods f ON f.id = e.food_id
		WHERE e.user_id = $1
		  AND ($2::timestamptz IS NULL OR e.consumed_at >= $2)
		  AND ($3::timestamptz IS NULL OR e.consumed_at < $3)
		  AND ($4 = '' OR e.meal_type = $4)
		ORDER BY e.consumed_at DESC
		LIMIT $5 OFFSET $6`

	rows, err := r.db.QueryContext(ctx, query,
		userID, nullIfZeroTime(filter.Start), nullIfZeroTime(filter.End),
		string(filter.MealType), limit, filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.FoodEntry
	for rows.Next() {
		entry, err := scanEntryWithFood(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entry rows: %w", err)
	}
	return entries, nil
}

// Create は記録を作成する。
func (r *PostgresEntryRepo) Create(ctx context.Context, entry *model.FoodEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO food_entries (id, user_id, food_id, quantity, unit, meal_type, consumed_at, notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.UserID, entry.FoodID, entry.Quantity, entry.Unit,
		string(entry.MealType), entry.ConsumedAt, entry.Notes,
		entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

// Update は記録を更新する。
func (r *PostgresEntryRepo) Update(ctx context.Context, entry *model.FoodEntry) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE food_entries SET
			food_id = $2, quantity = $3, unit = $4, meal_type = $5,
			consumed_at = $6, notes = $7, updated_at = $8
		 WHERE id = $1`,
		entry.ID, entry.FoodID, entry.Quantity, entry.Unit, string(entry.MealType),
		entry.ConsumedAt, entry.Notes, entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("entry not found: %s", entry.ID)
	}
	return nil
}

// Delete は指定IDの記録を削除する。
func (r *PostgresEntryRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM food_entries WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

// ConsumedTimestamps はユーザーの全記録のConsumedAtを返す。ストリーク計算用。
func (r *PostgresEntryRepo) ConsumedTimestamps(ctx context.Context, userID string) ([]time.Time, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT consumed_at FROM food_entries WHERE user_id = $1 ORDER BY consumed_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list consumed timestamps: %w", err)
	}
	defer rows.Close()

	var timestamps []time.Time
	for rows.Next() {
		var ts time.Time
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("failed to scan consumed_at: %w", err)
		}
		timestamps = append(timestamps, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate consumed timestamps: %w", err)
	}
	return timestamps, nil
}

// nullIfZeroTime はゼロ値のtime.TimeをNULLに変換する。
func nullIfZeroTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

// compile-time interface check
var _ EntryRepository = (*PostgresEntryRepo)(nil)
