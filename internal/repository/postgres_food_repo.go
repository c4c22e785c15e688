package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/nutrilog/internal/model"
)

// PostgresFoodRepo はPostgreSQLを使用した食品マスタリポジトリ。
type PostgresFoodRepo struct {
	db *sql.DB
}

// NewPostgresFoodRepo はPostgresFoodRepoを生成する。
func NewPostgresFoodRepo(db *sql.DB) *PostgresFoodRepo {
	return &PostgresFoodRepo{db: db}
}

// foodColumns はfoodsテーブルのSELECT対象カラム。
const foodColumns = `id, name, brand, barcode, category, serving_size, serving_unit,
	calories, protein, carbs, fat, fiber, sugar, sodium,
	cholesterol, saturated_fat, trans_fat, potassium, calcium, iron, vitamin_a, vitamin_c,
	image_url, verified, fdc_id, user_id, created_at, updated_at`

// foodScanner は*sql.Rowと*sql.Rowsを共通に扱うためのインターフェース。
type foodScanner interface {
	Scan(dest ...interface{}) error
}

// scanFood は1行をmodel.Foodに変換する。
func scanFood(row foodScanner) (*model.Food, error) {
	food := &model.Food{}
	var barcode, userID sql.NullString
	var fdcID sql.NullInt64
	err := row.Scan(
		&food.ID, &food.Name, &food.Brand, &barcode, &food.Category,
		&food.ServingSize, &food.ServingUnit,
		&food.Calories, &food.Protein, &food.Carbs, &food.Fat,
		&food.Fiber, &food.Sugar, &food.Sodium,
		&food.Cholesterol, &food.SaturatedFat, &food.TransFat,
		&food.Potassium, &food.Calcium, &food.Iron, &food.VitaminA, &food.VitaminC,
		&food.ImageURL, &food.Verified, &fdcID, &userID,
		&food.CreatedAt, &food.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	food.Barcode = barcode.String
	food.FdcID = fdcID.Int64
	food.UserID = userID.String
	return food, nil
}

// FindByID は指定IDの食品を取得する。見つからない場合はnilを返す。
func (r *PostgresFoodRepo) FindByID(ctx context.Context, id string) (*model.Food, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+foodColumns+` FROM foods WHERE id = $1`,
		id,
	)
	food, err := scanFood(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find food by ID: %w", err)
	}
	return food, nil
}

// FindByBarcode はバーコードで食品を検索する。見つからない場合はnilを返す。
func (r *PostgresFoodRepo) FindByBarcode(ctx context.Context, barcode string) (*model.Food, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+foodColumns+` FROM foods WHERE barcode = $1 LIMIT 1`,
		barcode,
	)
	food, err := scanFood(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find food by barcode: %w", err)
	}
	return food, nil
}

// FindByFdcID はUSDA FoodData Central IDで食品を検索する。見つからない場合はnilを返す。
func (r *PostgresFoodRepo) FindByFdcID(ctx context.Context, fdcID int64) (*model.Food, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+foodColumns+` FROM foods WHERE fdc_id = $1 LIMIT 1`,
		fdcID,
	)
	food, err := scanFood(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find food by fdc_id: %w", err)
	}
	return food, nil
}

// Search はキーワード・カテゴリで食品を検索する。
// キーワードは名前・ブランド名へのILIKE部分一致。共有食品（user_id IS NULL）と
// 検索ユーザー自身の作成食品を対象とする。名前の昇順で返す。
func (r *PostgresFoodRepo) Search(ctx context.Context, query FoodSearchQuery) ([]*model.Food, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = 25
	}

	sqlQuery := `SELECT ` + foodColumns + ` FROM foods
		WHERE (user_id IS NULL OR user_id = $1)
		  AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR brand ILIKE '%' || $2 || '%')
		  AND ($3 = '' OR category = $3)
		ORDER BY name ASC
		LIMIT $4 OFFSET $5`

	rows, err := r.db.QueryContext(ctx, sqlQuery,
		nullIfEmpty(query.UserID), query.Keyword, string(query.Category), limit, query.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search foods: %w", err)
	}
	defer rows.Close()

	var foods []*model.Food
	for rows.Next() {
		food, err := scanFood(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan food row: %w", err)
		}
		foods = append(foods, food)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate food rows: %w", err)
	}
	return foods, nil
}

// Create は食品を作成する。
func (r *PostgresFoodRepo) Create(ctx context.Context, food *model.Food) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO foods (id, name, brand, barcode, category, serving_size, serving_unit,
			calories, protein, carbs, fat, fiber, sugar, sodium,
			cholesterol, saturated_fat, trans_fat, potassium, calcium, iron, vitamin_a, vitamin_c,
			image_url, verified, fdc_id, user_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)`,
		food.ID, food.Name, food.Brand, nullIfEmpty(food.Barcode), string(food.Category),
		food.ServingSize, food.ServingUnit,
		food.Calories, food.Protein, food.Carbs, food.Fat, food.Fiber, food.Sugar, food.Sodium,
		food.Cholesterol, food.SaturatedFat, food.TransFat,
		food.Potassium, food.Calcium, food.Iron, food.VitaminA, food.VitaminC,
		food.ImageURL, food.Verified, nullIfZeroInt64(food.FdcID), nullIfEmpty(food.UserID),
		food.CreatedAt, food.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert food: %w", err)
	}
	return nil
}

// Update は食品を更新する。
func (r *PostgresFoodRepo) Update(ctx context.Context, food *model.Food) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE foods SET
			name = $2, brand = $3, barcode = $4, category = $5,
			serving_size = $6, serving_unit = $7,
			calories = $8, protein = $9, carbs = $10, fat = $11,
			fiber = $12, sugar = $13, sodium = $14,
			cholesterol = $15, saturated_fat = $16, trans_fat = $17,
			potassium = $18, calcium = $19, iron = $20, vitamin_a = $21, vitamin_c = $22,
			image_url = $23, verified = $24, updated_at = $25
		 WHERE id = $1`,
		food.ID, food.Name, food.Brand, nullIfEmpty(food.Barcode), string(food.Category),
		food.ServingSize, food.ServingUnit,
		food.Calories, food.Protein, food.Carbs, food.Fat,
		food.Fiber, food.Sugar, food.Sodium,
		food.Cholesterol, food.SaturatedFat, food.TransFat,
		food.Potassium, food.Calcium, food.Iron, food.VitaminA, food.VitaminC,
		food.ImageURL, food.Verified, food.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update food: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("food not found: %s", food.ID)
	}
	return nil
}

// Delete は指定IDの食品を削除する。
func (r *PostgresFoodRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM foods WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete food: %w", err)
	}
	return nil
}

// nullIfZeroInt64 は0をNULLに変換する。fdc_idのUNIQUE制約用。
func nullIfZeroInt64(v int64) interface{} {
	if v == 0 {
		return nil
	}
	return v
}

// compile-time interface check
var _ FoodRepository = (*PostgresFoodRepo)(nil)
