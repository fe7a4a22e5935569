package db

import (
	"context"
	"time"
)

// Task はtasksテーブルの1行。
type Task struct {
	// ID はタスクの一意識別子（UUID）。
	ID string
	// Title はタスクのタイトル。
	Title string
	// Description はタスクの説明。
	Description string
	// Status はタスクのステータス（TODO | IN_PROGRESS | DONE | CANCELLED）。
	Status string
	// Priority はタスクの優先度（LOW | MEDIUM | HIGH）。
	Priority string
	// DueDate は期限（YYYY-MM-DD形式）。未設定の場合は空文字列。
	DueDate string
	// CreatedBy は作成者のユーザーID。
	CreatedBy string
	// AssigneeID は担当者のユーザーID。未割り当ての場合は空文字列。
	AssigneeID string
	// IsDeleted は論理削除フラグ（0=有効、1=削除済み）。
	IsDeleted int64
	// CreatedAt は作成日時。
	CreatedAt time.Time
	// UpdatedAt は最終更新日時。
	UpdatedAt time.Time
}

const taskColumns = `id, title, description, status, priority, due_date, created_by, assignee_id, is_deleted, created_at, updated_at`

// scanTask は1行分のタスクを読み取る。
func scanTask(row interface{ Scan(...any) error }) (Task, error) {
	var t Task
	err := row.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&t.Status,
		&t.Priority,
		&t.DueDate,
		&t.CreatedBy,
		&t.AssigneeID,
		&t.IsDeleted,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	return t, err
}

const createTask = `
INSERT INTO tasks (id, title, description, status, priority, due_date, created_by, assignee_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

// CreateTaskParams はCreateTaskのパラメータ。
type CreateTaskParams struct {
	ID          string
	Title       string
	Description string
	Status      string
	Priority    string
	DueDate     string
	CreatedBy   string
	AssigneeID  string
}

// CreateTask はタスクを1件作成する。
func (q *Queries) CreateTask(ctx context.Context, arg CreateTaskParams) error {
	_, err := q.db.ExecContext(ctx, createTask,
		arg.ID,
		arg.Title,
		arg.Description,
		arg.Status,
		arg.Priority,
		arg.DueDate,
		arg.CreatedBy,
		arg.AssigneeID,
	)
	return err
}

const getTaskByID = `
SELECT ` + taskColumns + `
FROM tasks
WHERE id = ?
`

// GetTaskByID は削除済みを含めてタスクを取得する。
// 論理削除フラグの判定は呼び出し側が行う。
func (q *Queries) GetTaskByID(ctx context.Context, id string) (Task, error) {
	return scanTask(q.db.QueryRowContext(ctx, getTaskByID, id))
}

const listTasksForUser = `
SELECT DISTINCT t.id, t.title, t.description, t.status, t.priority, t.due_date, t.created_by, t.assignee_id, t.is_deleted, t.created_at, t.updated_at
FROM tasks t
LEFT JOIN subtasks s ON s.parent_task_id = t.id AND s.is_deleted = 0
WHERE t.is_deleted = 0
  AND (t.created_by = ?1 OR t.assignee_id = ?1 OR s.assignee_id = ?1)
ORDER BY t.created_at DESC, t.id DESC
LIMIT ?2 OFFSET ?3
`

// ListTasksForUserParams はListTasksForUserのパラメータ。
type ListTasksForUserParams struct {
	UserID string
	Limit  int64
	Offset int64
}

// ListTasksForUser はユーザーが閲覧可能なタスクを新しい順に返す。
// 作成者、担当者、またはいずれかの有効なサブタスクの担当者であるタスクが対象。
func (q *Queries) ListTasksForUser(ctx context.Context, arg ListTasksForUserParams) ([]Task, error) {
	rows, err := q.db.QueryContext(ctx, listTasksForUser, arg.UserID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateTask = `
UPDATE tasks
SET title = ?, description = ?, priority = ?, due_date = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
`

// UpdateTaskParams はUpdateTaskのパラメータ。
type UpdateTaskParams struct {
	Title       string
	Description string
	Priority    string
	DueDate     string
	ID          string
}

// UpdateTask はタスクの基本フィールドを更新する。
func (q *Queries) UpdateTask(ctx context.Context, arg UpdateTaskParams) error {
	_, err := q.db.ExecContext(ctx, updateTask,
		arg.Title,
		arg.Description,
		arg.Priority,
		arg.DueDate,
		arg.ID,
	)
	return err
}

const updateTaskStatus = `
UPDATE tasks
SET status = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
`

// UpdateTaskStatusParams はUpdateTaskStatusのパラメータ。
type UpdateTaskStatusParams struct {
	Status string
	ID     string
}

// UpdateTaskStatus はタスクのステータスを更新する。
func (q *Queries) UpdateTaskStatus(ctx context.Context, arg UpdateTaskStatusParams) error {
	_, err := q.db.ExecContext(ctx, updateTaskStatus, arg.Status, arg.ID)
	return err
}

const updateTaskAssignee = `
UPDATE tasks
SET assignee_id = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
`

// UpdateTaskAssigneeParams はUpdateTaskAssigneeのパラメータ。
type UpdateTaskAssigneeParams struct {
	AssigneeID string
	ID         string
}

// UpdateTaskAssignee はタスクの担当者を更新する。
func (q *Queries) UpdateTaskAssignee(ctx context.Context, arg UpdateTaskAssigneeParams) error {
	_, err := q.db.ExecContext(ctx, updateTaskAssignee, arg.AssigneeID, arg.ID)
	return err
}

const setTaskDeleted = `
UPDATE tasks
SET is_deleted = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
`

// SetTaskDeletedParams はSetTaskDeletedのパラメータ。
type SetTaskDeletedParams struct {
	IsDeleted int64
	ID        string
}

// SetTaskDeleted はタスクの論理削除フラグを更新する。
func (q *Queries) SetTaskDeleted(ctx context.Context, arg SetTaskDeletedParams) error {
	_, err := q.db.ExecContext(ctx, setTaskDeleted, arg.IsDeleted, arg.ID)
	return err
}
