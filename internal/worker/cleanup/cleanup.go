// Package cleanup はセッションデータの自動削除ジョブを提供する。
// 有効期限切れのセッションと、退会済みユーザーに残ったuser_preferencesを
// 日次バッチで削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CleanupJob は期限切れセッションと孤立した設定行の自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	db     Executor
	logger *slog.Logger
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(db Executor, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		db:     db,
		logger: logger,
	}
}

// Run は期限切れセッションと退会済みユーザーの設定行を削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	sessionCount, err := j.purgeExpiredSessions(ctx)
	if err != nil {
		return err
	}

	prefsCount, err := j.purgeOrphanedPreferences(ctx)
	if err != nil {
		return err
	}

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_sessions", sessionCount),
		slog.Int64("deleted_preferences", prefsCount),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// purgeExpiredSessions はexpires_atを過ぎたセッションを削除する。
func (j *CleanupJob) purgeExpiredSessions(ctx context.Context) (int64, error) {
	query := `DELETE FROM sessions WHERE expires_at < now()`
	result, err := j.db.ExecContext(ctx, query)
	if err != nil {
		j.logger.Error("期限切れセッションの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("期限切れセッションの削除に失敗: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	return count, nil
}

// purgeOrphanedPreferences は退会済みユーザーのuser_preferencesを削除する。
func (j *CleanupJob) purgeOrphanedPreferences(ctx context.Context) (int64, error) {
	query := `DELETE FROM user_preferences
		WHERE user_id IN (SELECT id FROM users WHERE is_active = false)`
	result, err := j.db.ExecContext(ctx, query)
	if err != nil {
		j.logger.Error("退会済みユーザーの設定削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("退会済みユーザーの設定削除に失敗: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	return count, nil
}
