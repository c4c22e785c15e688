package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/nutrilog/internal/model"
)

// PostgresWeightRepo はPostgreSQLを使用した体重記録リポジトリ。
type PostgresWeightRepo struct {
	db *sql.DB
}

// NewPostgresWeightRepo はPostgresWeightRepoを生成する。
func NewPostgresWeightRepo(db *sql.DB) *PostgresWeightRepo {
	return &PostgresWeightRepo{db: db}
}

const weightColumns = `id, user_id, weight_kg, recorded_at, notes, created_at, updated_at`

// FindByID は指定IDの体重記録を取得する。見つからない場合はnilを返す。
func (r *PostgresWeightRepo) FindByID(ctx context.Context, id string) (*model.WeightEntry, error) {
	entry := &model.WeightEntry{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+weightColumns+` FROM weight_entries WHERE id = $1`,
		id,
	).Scan(&entry.ID, &entry.UserID, &entry.WeightKg, &entry.RecordedAt, &entry.Notes,
		&entry.CreatedAt, &entry.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find weight entry: %w", err)
	}
	return entry, nil
}

// ListByUser はユーザーの体重記録をRecordedAt降順で返す。
// fromとtoはゼロ値の場合に無視される。
func (r *PostgresWeightRepo) ListByUser(ctx context.Context, userID string, from, to time.Time, limit int) ([]*model.WeightEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+weightColumns+` FROM weight_entries
		 WHERE user_id = $1
		   AND ($2::timestamptz IS NULL OR recorded_at >= $2)
		   AND ($3::timestamptz IS NULL OR recorded_at < $3)
		 ORDER BY recorded_at DESC
		 LIMIT $4`,
		userID, nullIfZeroTime(from), nullIfZeroTime(to), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list weight entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.WeightEntry
	for rows.Next() {
		entry := &model.WeightEntry{}
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.WeightKg, &entry.RecordedAt,
			&entry.Notes, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan weight entry row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate weight entry rows: %w", err)
	}
	return entries, nil
}

// LatestByUser は最新（RecordedAtが最大）の体重記録を返す。記録がない場合はnilを返す。
func (r *PostgresWeightRepo) LatestByUser(ctx context.Context, userID string) (*model.WeightEntry, error) {
	entry := &model.WeightEntry{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+weightColumns+` FROM weight_entries
		 WHERE user_id = $1
		 ORDER BY recorded_at DESC
		 LIMIT 1`,
		userID,
	).Scan(&entry.ID, &entry.UserID, &entry.WeightKg, &entry.RecordedAt, &entry.Notes,
		&entry.CreatedAt, &entry.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest weight entry: %w", err)
	}
	return entry, nil
}

// Create は体重記録を作成する。
func (r *PostgresWeightRepo) Create(ctx context.Context, entry *model.WeightEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO weight_entries (id, user_id, weight_kg, recorded_at, notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.UserID, entry.WeightKg, entry.RecordedAt, entry.Notes,
		entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert weight entry: %w", err)
	}
	return nil
}

// Update は体重記録を更新する。
func (r *PostgresWeightRepo) Update(ctx context.Context, entry *model.WeightEntry) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE weight_entries SET weight_kg = $2, recorded_at = $3, notes = $4, updated_at = $5
		 WHERE id = $1`,
		entry.ID, entry.WeightKg, entry.RecordedAt, entry.Notes, entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update weight entry: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("weight entry not found: %s", entry.ID)
	}
	return nil
}

// Delete は指定IDの体重記録を削除する。
func (r *PostgresWeightRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM weight_entries WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete weight entry: %w", err)
	}
	return nil
}

// compile-time interface check
var _ WeightRepository = (*PostgresWeightRepo)(nil)
