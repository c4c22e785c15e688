package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/nutrilog/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// userColumns はusersテーブルのSELECT対象カラム。
const userColumns = `id, email, password_hash, first_name, last_name, date_of_birth,
	gender, height_cm, weight_kg, activity_level, fitness_goal, target_weight,
	avatar_url, timezone, units, is_active, created_at, updated_at`

// scanUser は1行をmodel.Userに変換する。
func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	var gender, activityLevel, fitnessGoal sql.NullString
	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName,
		&user.DateOfBirth, &gender, &user.HeightCm, &user.WeightKg,
		&activityLevel, &fitnessGoal, &user.TargetWeight,
		&user.AvatarURL, &user.Timezone, &user.Units, &user.IsActive,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Gender = model.Gender(gender.String)
	user.ActivityLevel = model.ActivityLevel(activityLevel.String)
	user.FitnessGoal = model.FitnessGoal(fitnessGoal.String)
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
// 退会済み（is_active = false）のユーザーもnil扱い。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 AND is_active = true`,
		id,
	)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1 AND is_active = true`,
		email,
	)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, first_name, last_name, date_of_birth,
			gender, height_cm, weight_kg, activity_level, fitness_goal, target_weight,
			avatar_url, timezone, units, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.DateOfBirth,
		nullIfEmpty(string(user.Gender)), user.HeightCm, user.WeightKg,
		nullIfEmpty(string(user.ActivityLevel)), nullIfEmpty(string(user.FitnessGoal)), user.TargetWeight,
		user.AvatarURL, user.Timezone, user.Units, user.IsActive,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// Update はユーザーのプロフィールを更新する。
func (r *PostgresUserRepo) Update(ctx context.Context, user *model.User) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET
			first_name = $2, last_name = $3, date_of_birth = $4, gender = $5,
			height_cm = $6, weight_kg = $7, activity_level = $8, fitness_goal = $9,
			target_weight = $10, avatar_url = $11, timezone = $12, units = $13,
			updated_at = $14
		 WHERE id = $1`,
		user.ID, user.FirstName, user.LastName, user.DateOfBirth, nullIfEmpty(string(user.Gender)),
		user.HeightCm, user.WeightKg, nullIfEmpty(string(user.ActivityLevel)), nullIfEmpty(string(user.FitnessGoal)),
		user.TargetWeight, user.AvatarURL, user.Timezone, user.Units,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", user.ID)
	}
	return nil
}

// UpdatePassword はパスワードハッシュのみを更新する。
func (r *PostgresUserRepo) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`,
		userID, passwordHash,
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", userID)
	}
	return nil
}

// UpdateWeight はユーザーの現在体重のみを更新する。
func (r *PostgresUserRepo) UpdateWeight(ctx context.Context, userID string, weightKg *float64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET weight_kg = $2, updated_at = now() WHERE id = $1`,
		userID, weightKg,
	)
	if err != nil {
		return fmt.Errorf("failed to update user weight: %w", err)
	}
	return nil
}

// Deactivate はユーザーを退会状態（is_active = false）にする。
func (r *PostgresUserRepo) Deactivate(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_active = false, updated_at = now() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// nullIfEmpty は空文字列をNULLに変換する。enum系カラム用。
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
