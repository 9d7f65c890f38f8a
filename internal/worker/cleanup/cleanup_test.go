package cleanup

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

// --- モック定義 ---

type fakeResult struct {
	rowsAffected int64
}

func (r *fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r *fakeResult) RowsAffected() (int64, error) { return r.rowsAffected, nil }

// mockExecutor はExecutorのモック。実行されたSQLと引数を記録する。
type mockExecutor struct {
	mu     sync.Mutex
	calls  int
	query  string
	args   []interface{}
	result sql.Result
	err    error
}

func (m *mockExecutor) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.query = query
	m.args = args
	return m.result, m.err
}

func (m *mockExecutor) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockRecorder struct {
	mu     sync.Mutex
	counts []int
}

func (m *mockRecorder) RecordSessionsCleaned(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts = append(m.counts, count)
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// findLogField はJSONログの各行から指定キーの値を探す。
func findLogField(buf *bytes.Buffer, key string) (interface{}, bool) {
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if v, ok := entry[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// --- テスト ---

func TestNewCleanupJob_DefaultGraceHours(t *testing.T) {
	job := NewCleanupJob(&mockExecutor{}, newTestLogger(&bytes.Buffer{}), nil)

	if job.GraceHours != 24 {
		t.Errorf("GraceHours = %d, want 24", job.GraceHours)
	}
}

func TestCleanupJob_Run_DeletesExpiredSessions(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{rowsAffected: 5}}
	job := NewCleanupJob(mock, newTestLogger(&buf), nil)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}

	if !strings.Contains(mock.query, "DELETE FROM sessions") {
		t.Errorf("クエリに 'DELETE FROM sessions' が含まれていない: %s", mock.query)
	}
	if !strings.Contains(mock.query, "expires_at") {
		t.Errorf("クエリに 'expires_at' 条件が含まれていない: %s", mock.query)
	}
	if len(mock.args) != 1 || mock.args[0] != "24 hours" {
		t.Errorf("args = %v, want [24 hours]", mock.args)
	}
}

func TestCleanupJob_Run_CustomGraceHours(t *testing.T) {
	mock := &mockExecutor{result: &fakeResult{}}
	job := NewCleanupJob(mock, newTestLogger(&bytes.Buffer{}), nil)
	job.GraceHours = 1

	_ = job.Run(context.Background())

	if len(mock.args) != 1 || mock.args[0] != "1 hours" {
		t.Errorf("args = %v, want [1 hours]", mock.args)
	}
}

func TestCleanupJob_Run_LogsAndRecordsDeletedCount(t *testing.T) {
	tests := []struct {
		name  string
		count int64
	}{
		{name: "some rows", count: 42},
		{name: "no rows", count: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			recorder := &mockRecorder{}
			job := NewCleanupJob(&mockExecutor{result: &fakeResult{rowsAffected: tt.count}}, newTestLogger(&buf), recorder)

			if err := job.Run(context.Background()); err != nil {
				t.Fatalf("Run() がエラーを返した: %v", err)
			}

			got, ok := findLogField(&buf, "deleted_count")
			if !ok || got != float64(tt.count) {
				t.Errorf("deleted_count = %v, want %d。ログ出力: %s", got, tt.count, buf.String())
			}
			if _, ok := findLogField(&buf, "duration_ms"); !ok {
				t.Errorf("ログに duration_ms が記録されていない。ログ出力: %s", buf.String())
			}
			if len(recorder.counts) != 1 || recorder.counts[0] != int(tt.count) {
				t.Errorf("recorded = %v, want [%d]", recorder.counts, tt.count)
			}
		})
	}
}

func TestCleanupJob_Run_DBFailure(t *testing.T) {
	var buf bytes.Buffer
	recorder := &mockRecorder{}
	job := NewCleanupJob(&mockExecutor{err: sql.ErrConnDone}, newTestLogger(&buf), recorder)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("DBエラー時に Run() は nil でないエラーを返すべき")
	}
	if !strings.Contains(err.Error(), "sql: connection is already closed") {
		t.Errorf("エラーメッセージが期待と異なる: %v", err)
	}
	if !strings.Contains(buf.String(), "ERROR") {
		t.Errorf("エラー時にERRORレベルのログが記録されていない。ログ出力: %s", buf.String())
	}
	if len(recorder.counts) != 0 {
		t.Errorf("失敗時は件数を記録しない: %v", recorder.counts)
	}
}

func TestCleanupJob_Run_Idempotent(t *testing.T) {
	job := NewCleanupJob(&mockExecutor{result: &fakeResult{}}, newTestLogger(&bytes.Buffer{}), nil)

	for i := 0; i < 2; i++ {
		if err := job.Run(context.Background()); err != nil {
			t.Fatalf("%d回目の Run() がエラーを返した: %v", i+1, err)
		}
	}
}

func TestCleanupJob_Start_RunsUntilCancelled(t *testing.T) {
	mock := &mockExecutor{result: &fakeResult{}}
	job := NewCleanupJob(mock, newTestLogger(&bytes.Buffer{}), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for mock.callCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start がキャンセル後に終了しなかった")
	}
	if mock.callCount() < 2 {
		t.Errorf("Run calls = %d, want >= 2", mock.callCount())
	}
}
