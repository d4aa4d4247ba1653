// Package cleanup は期限切れGrantの自動削除ジョブを提供する。
// リフレッシュトークンの有効期限を過ぎたGrantは認証に使用できないため、
// 猶予期間（デフォルト7日）の経過後にバッチで削除する。
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

// GrantCleanupJob は期限切れGrantの自動削除ジョブ。
// 定期実行のバッチジョブとして設計されており、削除は冪等である。
type GrantCleanupJob struct {
	db        Executor
	logger    *slog.Logger
	GraceDays int // 期限切れ後に行を保持する日数（デフォルト: 7）
}

// NewGrantCleanupJob は新しいGrantCleanupJobを生成する。
// デフォルトの猶予日数は7日。
func NewGrantCleanupJob(db Executor, logger *slog.Logger) *GrantCleanupJob {
	return &GrantCleanupJob{
		db:        db,
		logger:    logger,
		GraceDays: 7,
	}
}

// Run は猶予期間を過ぎた期限切れGrantを削除する。
// refresh_expires_atがGraceDays日前より古いGrantをDELETEする。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *GrantCleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	interval := fmt.Sprintf("%d days", j.GraceDays)

	query := `DELETE FROM grants WHERE refresh_expires_at < now() - $1::interval`
	result, err := j.db.ExecContext(ctx, query, interval)
	if err != nil {
		j.logger.Error("grant cleanup job failed",
			slog.String("error", err.Error()),
			slog.Int("grace_days", j.GraceDays),
		)
		return fmt.Errorf("期限切れGrantの削除に失敗しました: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("failed to read deleted row count",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("grant cleanup job completed",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("grace_days", j.GraceDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は指定間隔のティッカーでジョブを定期実行する。
// 起動直後に1回実行し、コンテキストがキャンセルされるまで継続する。
func (j *GrantCleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("grant cleanup scheduler started",
		slog.Duration("interval", interval),
	)

	if err := j.Run(ctx); err != nil {
		j.logger.Error("grant cleanup run failed",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("grant cleanup scheduler stopped")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("grant cleanup run failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
