package db

import (
	"context"
	"time"
)

// TaskHistory はtask_historyテーブルの1行。
type TaskHistory struct {
	// ID は履歴エントリの一意識別子（UUID）。
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

const createTaskHistory = `
INSERT INTO task_history (id, task_id, field, old_value, new_value, changed_by)
VALUES (?, ?, ?, ?, ?, ?)
`

// CreateTaskHistoryParams はCreateTaskHistoryのパラメータ。
type CreateTaskHistoryParams struct {
	ID        string
	TaskID    string
	Field     string
	OldValue  string
	NewValue  string
	ChangedBy string
}

// CreateTaskHistory は履歴エントリを1件追記する。
func (q *Queries) CreateTaskHistory(ctx context.Context, arg CreateTaskHistoryParams) error {
	_, err := q.db.ExecContext(ctx, createTaskHistory,
		arg.ID,
		arg.TaskID,
		arg.Field,
		arg.OldValue,
		arg.NewValue,
		arg.ChangedBy,
	)
	return err
}

const listTaskHistoryByTaskID = `
SELECT id, task_id, field, old_value, new_value, changed_by, changed_at
FROM task_history
WHERE task_id = ?
ORDER BY changed_at DESC, rowid DESC
`

// ListTaskHistoryByTaskID はタスクの変更履歴を新しい順に返す。
// 同一時刻のエントリは追記順の逆順（後に記録されたものが先）になる。
func (q *Queries) ListTaskHistoryByTaskID(ctx context.Context, taskID string) ([]TaskHistory, error) {
	rows, err := q.db.QueryContext(ctx, listTaskHistoryByTaskID, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []TaskHistory
	for rows.Next() {
		var h TaskHistory
		if err := rows.Scan(
			&h.ID,
			&h.TaskID,
			&h.Field,
			&h.OldValue,
			&h.NewValue,
			&h.ChangedBy,
			&h.ChangedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
