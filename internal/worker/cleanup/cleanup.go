// Package cleanup は期限切れセッションの自動削除ジョブを提供する。
// expires_atを過ぎた行はFindByIDの条件で既に無効だが、行そのものは残るため
// 定期バッチで物理削除してsessionsテーブルを小さく保つ。
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

// MetricsRecorder は削除件数のメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordSessionsCleanedUp(count int64)
}

// CleanupJob は期限切れセッションの自動削除ジョブ。
// 定期実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	db      Executor
	logger  *slog.Logger
	metrics MetricsRecorder
}

// NewCleanupJob は新しいCleanupJobを生成する。metricsはnilでもよい。
func NewCleanupJob(db Executor, logger *slog.Logger, metrics MetricsRecorder) *CleanupJob {
	return &CleanupJob{
		db:      db,
		logger:  logger,
		metrics: metrics,
	}
}

// Run は期限切れセッションを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	result, err := j.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	if j.metrics != nil {
		j.metrics.RecordSessionsCleanedUp(deletedCount)
	}

	duration := time.Since(start)
	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// RunPeriodically はintervalごとにRunを実行し続ける。ctxのキャンセルで停止する。
func (j *CleanupJob) RunPeriodically(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				// エラーはRun内でログ済み。次のtickで再試行する。
				continue
			}
		case <-ctx.Done():
			return
		}
	}
}
