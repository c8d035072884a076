// Package cleanup は定期実行されるデータ整理ジョブを提供する。
// 終了日時を過ぎたタイムプレイスの自動論理削除と、
// 保持期間を超えた論理削除済みデータの物理削除を行う。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// DefaultRetentionDays は論理削除済みデータを物理削除するまでの保持日数。
const DefaultRetentionDays = 30

// DefaultGraceDays はタイムプレイスの終了後、自動で論理削除するまでの猶予日数。
const DefaultGraceDays = 7

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CleanupJob はデータ整理ジョブ本体。
type CleanupJob struct {
	db     Executor
	logger *slog.Logger

	// RetentionDays は論理削除済みデータの保持日数。
	RetentionDays int
	// GraceDays は終了済みタイムプレイスを論理削除するまでの猶予日数。
	GraceDays int
}

// NewCleanupJob はデフォルト設定のCleanupJobを生成する。
func NewCleanupJob(db Executor, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		db:            db,
		logger:        logger,
		RetentionDays: DefaultRetentionDays,
		GraceDays:     DefaultGraceDays,
	}
}

// Run はデータ整理を1回実行する。
// 削除対象が存在しない場合も正常終了するため、繰り返し実行しても安全。
// 実行順序は依存関係に従う: 期限切れの論理削除を先に行い、
// その後マッチ、タイムプレイス、セッションの順に物理削除する。
// チャットはマッチのON DELETE CASCADEで一緒に消える。
// タイムプレイスの物理削除は有効なマッチから参照されていないものに限る。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	grace := fmt.Sprintf("%d days", j.GraceDays)
	retention := fmt.Sprintf("%d days", j.RetentionDays)

	expired, err := j.exec(ctx,
		`UPDATE timeplaces
		 SET deleted = TRUE, deleted_on = NOW(), updated_at = NOW()
		 WHERE deleted = FALSE AND end_at < NOW() - $1::interval`,
		grace)
	if err != nil {
		j.logger.Error("期限切れタイムプレイスの論理削除に失敗しました", "error", err)
		return fmt.Errorf("期限切れタイムプレイスの論理削除に失敗しました: %w", err)
	}

	purgedMatches, err := j.exec(ctx,
		`DELETE FROM matches
		 WHERE deleted = TRUE AND deleted_on < NOW() - $1::interval`,
		retention)
	if err != nil {
		j.logger.Error("マッチの物理削除に失敗しました", "error", err)
		return fmt.Errorf("マッチの物理削除に失敗しました: %w", err)
	}

	// 有効なマッチから参照されているタイムプレイスは物理削除しない。
	// 削除するとON DELETE CASCADEでマッチとチャット履歴まで消えてしまう。
	purgedTimeplaces, err := j.exec(ctx,
		`DELETE FROM timeplaces t
		 WHERE t.deleted = TRUE AND t.deleted_on < NOW() - $1::interval
		   AND NOT EXISTS (
		     SELECT 1 FROM matches m
		     WHERE m.deleted = FALSE
		       AND t.id IN (m.timeplace_1, m.timeplace_2))`,
		retention)
	if err != nil {
		j.logger.Error("タイムプレイスの物理削除に失敗しました", "error", err)
		return fmt.Errorf("タイムプレイスの物理削除に失敗しました: %w", err)
	}

	purgedSessions, err := j.exec(ctx,
		`DELETE FROM sessions WHERE expires_at < NOW()`)
	if err != nil {
		j.logger.Error("期限切れセッションの削除に失敗しました", "error", err)
		return fmt.Errorf("期限切れセッションの削除に失敗しました: %w", err)
	}

	j.logger.Info("クリーンアップジョブが完了しました",
		"expired_count", expired,
		"purged_matches", purgedMatches,
		"purged_timeplaces", purgedTimeplaces,
		"purged_sessions", purgedSessions,
		"retention_days", j.RetentionDays,
		"grace_days", j.GraceDays,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

func (j *CleanupJob) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	result, err := j.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return affected, nil
}
