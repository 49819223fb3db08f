// Package cleanup は古い履歴データの自動削除ジョブを提供する。
// 保持期間を超過したフィードアイテム履歴とクローズ済みボイスセッションを
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

// CleanupJob は保持期間を超過した履歴データの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
//
// フィードアイテムは各フィードの最新1件を常に残す。最新アイテムは
// 更新検出の比較基準であり、削除すると次のサイクルで再配信されてしまう。
type CleanupJob struct {
	db                 Executor
	logger             *slog.Logger
	ItemRetentionDays  int // フィードアイテム履歴の保持日数（デフォルト: 180）
	VoiceRetentionDays int // クローズ済みボイスセッションの保持日数（デフォルト: 365）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(db Executor, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		db:                 db,
		logger:             logger,
		ItemRetentionDays:  180,
		VoiceRetentionDays: 365,
	}
}

// 各フィードの最新アイテム（published最大の行）は削除対象から除外する
const deleteOldItemsQuery = `
DELETE FROM feed_items
WHERE created_at < now() - $1::interval
  AND id NOT IN (
    SELECT DISTINCT ON (feed_id) id
    FROM feed_items
    ORDER BY feed_id, published DESC, created_at DESC
  )`

const deleteOldVoiceSessionsQuery = `
DELETE FROM voice_sessions
WHERE leave_time > join_time
  AND leave_time < now() - $1::interval`

// Run は保持期間を超過した履歴データを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deletedItems, err := j.execDelete(ctx, deleteOldItemsQuery, j.ItemRetentionDays)
	if err != nil {
		j.logger.Error("フィードアイテムのクリーンアップに失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.ItemRetentionDays),
		)
		return fmt.Errorf("フィードアイテムのクリーンアップに失敗: %w", err)
	}

	deletedSessions, err := j.execDelete(ctx, deleteOldVoiceSessionsQuery, j.VoiceRetentionDays)
	if err != nil {
		j.logger.Error("ボイスセッションのクリーンアップに失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.VoiceRetentionDays),
		)
		return fmt.Errorf("ボイスセッションのクリーンアップに失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_items", deletedItems),
		slog.Int64("deleted_sessions", deletedSessions),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

func (j *CleanupJob) execDelete(ctx context.Context, query string, retentionDays int) (int64, error) {
	interval := fmt.Sprintf("%d days", retentionDays)

	result, err := j.db.ExecContext(ctx, query, interval)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
