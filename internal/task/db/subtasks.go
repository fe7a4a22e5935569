package db

import (
	"context"
	"time"
)

// SubTask はsubtasksテーブルの1行。
type SubTask struct {
	// ID はサブタスクの一意識別子（UUID）。
	ID string
	// ParentTaskID は親タスクのID。
	ParentTaskID string
	// Title はサブタスクのタイトル。
	Title string
	// Description はサブタスクの説明。
	Description string
	// Status はサブタスクのステータス（TODO | IN_PROGRESS | DONE | CANCELLED）。
	Status string
	// AssigneeID は担当者のユーザーID。未割り当ての場合は空文字列。
	AssigneeID string
	// IsDeleted は論理削除フラグ（0=有効、1=削除済み）。
	IsDeleted int64
	// CreatedAt は作成日時。
	CreatedAt time.Time
	// UpdatedAt は最終更新日時。
	UpdatedAt time.Time
}

const subTaskColumns = `id, parent_task_id, title, description, status, assignee_id, is_deleted, created_at, updated_at`

// scanSubTask は1行分のサブタスクを読み取る。
func scanSubTask(row interface{ Scan(...any) error }) (SubTask, error) {
	var s SubTask
	err := row.Scan(
		&s.ID,
		&s.ParentTaskID,
		&s.Title,
		&s.Description,
		&s.Status,
		&s.AssigneeID,
		&s.IsDeleted,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	return s, err
}

const createSubTask = `
INSERT INTO subtasks (id, parent_task_id, title, description, status, assignee_id)
VALUES (?, ?, ?, ?, ?, ?)
`

// CreateSubTaskParams はCreateSubTaskのパラメータ。
type CreateSubTaskParams struct {
	ID           string
	ParentTaskID string
	Title        string
	Description  string
	Status       string
	AssigneeID   string
}

// CreateSubTask はサブタスクを1件作成する。
func (q *Queries) CreateSubTask(ctx context.Context, arg CreateSubTaskParams) error {
	_, err := q.db.ExecContext(ctx, createSubTask,
		arg.ID,
		arg.ParentTaskID,
		arg.Title,
		arg.Description,
		arg.Status,
		arg.AssigneeID,
	)
	return err
}

const getSubTaskByID = `
SELECT ` + subTaskColumns + `
FROM subtasks
WHERE id = ?
`

// GetSubTaskByID は削除済みを含めてサブタスクを取得する。
// 論理削除フラグの判定は呼び出し側が行う。
func (q *Queries) GetSubTaskByID(ctx context.Context, id string) (SubTask, error) {
	return scanSubTask(q.db.QueryRowContext(ctx, getSubTaskByID, id))
}

const listSubTasksByParent = `
SELECT ` + subTaskColumns + `
FROM subtasks
WHERE parent_task_id = ? AND is_deleted = 0
ORDER BY created_at ASC, rowid ASC
`

// ListSubTasksByParent は親タスクに属する有効なサブタスクを作成順に返す。
func (q *Queries) ListSubTasksByParent(ctx context.Context, parentTaskID string) ([]SubTask, error) {
	rows, err := q.db.QueryContext(ctx, listSubTasksByParent, parentTaskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []SubTask
	for rows.Next() {
		s, err := scanSubTask(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateSubTask = `
UPDATE subtasks
SET title = ?, description = ?, status = ?, assignee_id = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
`

// UpdateSubTaskParams はUpdateSubTaskのパラメータ。
type UpdateSubTaskParams struct {
	Title       string
	Description string
	Status      string
	AssigneeID  string
	ID          string
}

// UpdateSubTask はサブタスクのフィールドを更新する。
func (q *Queries) UpdateSubTask(ctx context.Context, arg UpdateSubTaskParams) error {
	_, err := q.db.ExecContext(ctx, updateSubTask,
		arg.Title,
		arg.Description,
		arg.Status,
		arg.AssigneeID,
		arg.ID,
	)
	return err
}

const setSubTaskDeleted = `
UPDATE subtasks
SET is_deleted = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
`

// SetSubTaskDeletedParams はSetSubTaskDeletedのパラメータ。
type SetSubTaskDeletedParams struct {
	IsDeleted int64
	ID        string
}

// SetSubTaskDeleted はサブタスクの論理削除フラグを更新する。
func (q *Queries) SetSubTaskDeleted(ctx context.Context, arg SetSubTaskDeletedParams) error {
	_, err := q.db.ExecContext(ctx, setSubTaskDeleted, arg.IsDeleted, arg.ID)
	return err
}
