package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	historydb "github.com/nao1215/taskhub/internal/history/db"
)

// Change は1フィールドの変更内容。
type Change struct {
	// Field は変更されたフィールド名（例: "title", "status", "assignee"）。
	Field string
	// OldValue は変更前の値。
	OldValue string
	// NewValue は変更後の値。
	NewValue string
}

// Entry は記録済みの履歴エントリ。
type Entry struct {
	// ID は履歴エントリの一意識別子。
	ID string
	// TaskID は変更対象のタスクID。
	TaskID string
	// Field は変更されたフィールド名。
	Field string
	// OldValue は変更前の値。
	OldValue string
	// NewValue は変更後の値。
	NewValue string
	// ChangedBy は変更を行ったユーザーID。
	ChangedBy string
	// ChangedAt は変更日時。
	ChangedAt time.Time
}

// Recorder はタスク変更履歴の記録オブジェクト。
type Recorder struct {
	// queries は履歴テーブルへのクエリ実行オブジェクト。
	queries *historydb.Queries
}

// NewRecorder は新しい履歴記録オブジェクトを生成する。
func NewRecorder(queries *historydb.Queries) *Recorder {
	return &Recorder{queries: queries}
}

// WithTx はトランザクション上で動作する履歴記録オブジェクトを返す。
// タスク変更と同一トランザクションで履歴を追記する際に使用する。
func (r *Recorder) WithTx(tx *sql.Tx) *Recorder {
	return &Recorder{queries: r.queries.WithTx(tx)}
}

// Record は変更内容を履歴へ追記する。
// 変更前後の値が等しいChangeは記録しない。全Changeが無変更の場合は何も追記しない。
func (r *Recorder) Record(ctx context.Context, taskID, changedBy string, changes ...Change) error {
	for _, ch := range changes {
		if ch.OldValue == ch.NewValue {
			continue
		}
		if err := r.queries.CreateTaskHistory(ctx, historydb.CreateTaskHistoryParams{
			ID:        uuid.New().String(),
			TaskID:    taskID,
			Field:     ch.Field,
			OldValue:  ch.OldValue,
			NewValue:  ch.NewValue,
			ChangedBy: changedBy,
		}); err != nil {
			return fmt.Errorf("履歴の追記に失敗: %w", err)
		}
	}
	return nil
}

// List はタスクの変更履歴を新しい順に返す。
func (r *Recorder) List(ctx context.Context, taskID string) ([]Entry, error) {
	rows, err := r.queries.ListTaskHistoryByTaskID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("履歴の取得に失敗: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, h := range rows {
		entries = append(entries, Entry{
			ID:        h.ID,
			TaskID:    h.TaskID,
			Field:     h.Field,
			OldValue:  h.OldValue,
			NewValue:  h.NewValue,
			ChangedBy: h.ChangedBy,
			ChangedAt: h.ChangedAt,
		})
	}
	return entries, nil
}
