// Package cleanup は期限切れセッションの定期削除ジョブを提供する。
// セッションはFindByIDで期限切れ扱いになるが、行自体はこのジョブが消すまで残る。
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

// Recorder は削除件数の記録先。metrics.Collectorが満たす。
type Recorder interface {
	RecordSessionsCleaned(count int)
}

// CleanupJob は期限切れセッションの削除ジョブ。
type CleanupJob struct {
	db       Executor
	logger   *slog.Logger
	recorder Recorder
	// GraceHours は期限切れ後に行を残す時間（デフォルト: 24）
	GraceHours int
}

// NewCleanupJob は新しいCleanupJobを生成する。
// recorderはnilでもよい。
func NewCleanupJob(db Executor, logger *slog.Logger, recorder Recorder) *CleanupJob {
	return &CleanupJob{
		db:         db,
		logger:     logger,
		recorder:   recorder,
		GraceHours: 24,
	}
}

// Run はexpires_atからGraceHours時間以上経過したセッションを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	interval := fmt.Sprintf("%d hours", j.GraceHours)

	query := `DELETE FROM sessions WHERE expires_at < now() - $1::interval`
	result, err := j.db.ExecContext(ctx, query, interval)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("grace_hours", j.GraceHours),
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

	if j.recorder != nil {
		j.recorder.RecordSessionsCleaned(int(deletedCount))
	}

	duration := time.Since(start)
	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("grace_hours", j.GraceHours),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start はinterval間隔でRunを繰り返す。起動直後に1回実行する。
// コンテキストがキャンセルされるまで戻らない。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("セッションクリーンアップを開始しました",
		slog.Duration("interval", interval),
	)

	// Runの失敗はRun内でログ出力済み
	_ = j.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("セッションクリーンアップを停止しました")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
