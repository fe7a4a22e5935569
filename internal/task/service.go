package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/taskhub/internal/history"
	"github.com/nao1215/taskhub/internal/identity"
	taskdb "github.com/nao1215/taskhub/internal/task/db"
	"github.com/nao1215/taskhub/pkg/audience"
	"github.com/nao1215/taskhub/pkg/authz"
	"github.com/nao1215/taskhub/pkg/event"
)

// Publisher は通知ファンアウトへの入口。
// Publishはイベントの投入だけを行い、永続化や配信の完了を待たずに戻る。
type Publisher interface {
	Publish(recipients []audience.Member, title, message, taskID, taskTitle string, category event.Category, actorID string)
}

// Service はタスク変更パイプラインの本体。
type Service struct {
	// db はSQLiteデータベース接続。トランザクション境界の管理に使用する。
	db *sql.DB
	// queries はタスク関連テーブルへのクエリ実行オブジェクト。
	queries *taskdb.Queries
	// recorder はタスク変更履歴の記録オブジェクト。
	recorder *history.Recorder
	// directory はユーザーディレクトリ。役割と通知先の解決に使用する。
	directory *identity.Directory
	// publisher は通知ファンアウトエンジン。
	publisher Publisher
	// policy は認可ポリシーの設定。
	policy authz.Config
}

// NewService は新しいタスクサービスを生成する。
func NewService(db *sql.DB, directory *identity.Directory, recorder *history.Recorder, publisher Publisher, policy authz.Config) *Service {
	return &Service{
		db:        db,
		queries:   taskdb.New(db),
		recorder:  recorder,
		directory: directory,
		publisher: publisher,
		policy:    policy,
	}
}

// validStatuses はタスクとサブタスクに許可されるステータス値。
var validStatuses = map[string]bool{
	"TODO":        true,
	"IN_PROGRESS": true,
	"DONE":        true,
	"CANCELLED":   true,
}

// validPriorities はタスクに許可される優先度値。
var validPriorities = map[string]bool{
	"LOW":    true,
	"MEDIUM": true,
	"HIGH":   true,
}

// dueDateLayout は期限の日付形式。
const dueDateLayout = "2006-01-02"

// validateDueDate は期限の形式と過去日付でないことを検証する。空文字列は未設定として許可する。
func validateDueDate(dueDate string) error {
	if dueDate == "" {
		return nil
	}
	if _, err := time.Parse(dueDateLayout, dueDate); err != nil {
		return ErrInvalidDueDate
	}
	// ISO形式の日付は辞書順の比較が時系列の比較と一致する
	if dueDate < time.Now().Format(dueDateLayout) {
		return ErrDueDateInPast
	}
	return nil
}

// actor は操作者をディレクトリから解決する。
func (s *Service) actor(ctx context.Context, actorID string) (identity.Member, error) {
	m, err := s.directory.Member(ctx, actorID)
	if errors.Is(err, identity.ErrMemberNotFound) {
		return identity.Member{}, ErrUserNotFound
	}
	if err != nil {
		return identity.Member{}, fmt.Errorf("操作者の解決に失敗: %w", err)
	}
	return m, nil
}

// authorize は認可判定を行い、拒否の場合はErrNotAuthorizedを返す。
// 対象の存在確認は呼び出し側が先に済ませている。
func (s *Service) authorize(actor identity.Member, action authz.Action, res authz.Resource) error {
	decision := s.policy.Authorize(authz.Actor{ID: actor.ID, Role: actor.Role}, action, res)
	if !decision.Allowed {
		return ErrNotAuthorized
	}
	return nil
}

// loadActiveTask は削除されていないタスクを読み込む。
func (s *Service) loadActiveTask(ctx context.Context, taskID string) (taskdb.Task, error) {
	t, err := s.queries.GetTaskByID(ctx, taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return taskdb.Task{}, ErrTaskNotFound
	}
	if err != nil {
		return taskdb.Task{}, fmt.Errorf("タスクの読み込みに失敗: %w", err)
	}
	if t.IsDeleted != 0 {
		return taskdb.Task{}, ErrTaskNotFound
	}
	return t, nil
}

// inTx は状態変更と履歴追記を単一トランザクションで実行する。
// fnがエラーを返した場合はすべてロールバックされる。
func (s *Service) inTx(ctx context.Context, fn func(q *taskdb.Queries, r *history.Recorder) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(s.queries.WithTx(tx), s.recorder.WithTx(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}
	return nil
}

// CreateTaskInput はタスク作成の入力。
type CreateTaskInput struct {
	// Title はタスクのタイトル。
	Title string
	// Description はタスクの説明。
	Description string
	// Priority は優先度。空文字列の場合はMEDIUMになる。
	Priority string
	// DueDate は期限（YYYY-MM-DD形式）。空文字列は未設定。
	DueDate string
	// AssigneeID は担当者のユーザーID。空文字列は未割り当て。
	AssigneeID string
}

// CreateTask はタスクを作成する。担当者が指定されていれば割り当て通知を送る。
func (s *Service) CreateTask(ctx context.Context, actorID string, input CreateTaskInput) (taskdb.Task, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return taskdb.Task{}, err
	}

	priority := input.Priority
	if priority == "" {
		priority = "MEDIUM"
	}
	if !validPriorities[priority] {
		return taskdb.Task{}, ErrInvalidPriority
	}
	if err := validateDueDate(input.DueDate); err != nil {
		return taskdb.Task{}, err
	}

	var assignee *audience.Member
	if input.AssigneeID != "" {
		m, err := s.directory.Member(ctx, input.AssigneeID)
		if errors.Is(err, identity.ErrMemberNotFound) {
			return taskdb.Task{}, ErrUserNotFound
		}
		if err != nil {
			return taskdb.Task{}, fmt.Errorf("担当者の解決に失敗: %w", err)
		}
		assignee = &audience.Member{ID: m.ID, Name: m.FullName}
	}

	taskID := uuid.New().String()
	err = s.inTx(ctx, func(q *taskdb.Queries, r *history.Recorder) error {
		if err := q.CreateTask(ctx, taskdb.CreateTaskParams{
			ID:          taskID,
			Title:       input.Title,
			Description: input.Description,
			Status:      "TODO",
			Priority:    priority,
			DueDate:     input.DueDate,
			CreatedBy:   actor.ID,
			AssigneeID:  input.AssigneeID,
		}); err != nil {
			return fmt.Errorf("タスクの作成に失敗: %w", err)
		}
		return r.Record(ctx, taskID, actor.ID, history.Change{
			Field:    "created",
			OldValue: "",
			NewValue: input.Title,
		})
	})
	if err != nil {
		return taskdb.Task{}, err
	}

	t, err := s.queries.GetTaskByID(ctx, taskID)
	if err != nil {
		return taskdb.Task{}, fmt.Errorf("作成済みタスクの読み込みに失敗: %w", err)
	}

	// 作成時の割り当ては新担当者のみに通知する
	if assignee != nil && assignee.ID != actor.ID {
		snap := audience.Snapshot{NewAssignee: assignee}
		recipients := audience.Resolve(snap, audience.Mutation{
			Kind:         audience.KindAssigned,
			ActorID:      actor.ID,
			ActorIsAdmin: actor.Role.IsAdmin(),
		})
		s.publisher.Publish(recipients,
			"タスク割り当て",
			fmt.Sprintf("タスク「%s」があなたに割り当てられました", t.Title),
			t.ID, t.Title, event.CategoryTaskAssigned, actor.ID)
	}

	return t, nil
}

// UpdateTaskInput はタスク更新の入力。
type UpdateTaskInput struct {
	// Title はタスクのタイトル。
	Title string
	// Description はタスクの説明。
	Description string
	// Priority は優先度。
	Priority string
	// DueDate は期限（YYYY-MM-DD形式）。空文字列は未設定。
	DueDate string
}

// UpdateTask はタスクの基本フィールドを更新する。作成者のみが実行できる。
// 実際に値が変わったフィールドだけが履歴に記録される。無変更の場合は
// 履歴も通知も発生しない。
func (s *Service) UpdateTask(ctx context.Context, actorID, taskID string, input UpdateTaskInput) (taskdb.Task, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return taskdb.Task{}, err
	}

	t, err := s.loadActiveTask(ctx, taskID)
	if err != nil {
		return taskdb.Task{}, err
	}

	if err := s.authorize(actor, authz.ActionUpdateTask, authz.Resource{
		CreatorID:  t.CreatedBy,
		AssigneeID: t.AssigneeID,
	}); err != nil {
		return taskdb.Task{}, err
	}

	if !validPriorities[input.Priority] {
		return taskdb.Task{}, ErrInvalidPriority
	}
	if err := validateDueDate(input.DueDate); err != nil {
		return taskdb.Task{}, err
	}

	changes := []history.Change{
		{Field: "title", OldValue: t.Title, NewValue: input.Title},
		{Field: "description", OldValue: t.Description, NewValue: input.Description},
		{Field: "priority", OldValue: t.Priority, NewValue: input.Priority},
		{Field: "due_date", OldValue: t.DueDate, NewValue: input.DueDate},
	}
	if !hasChange(changes) {
		return t, nil
	}

	// 通知先スナップショットは変更前の状態から実体化する
	subs, err := s.queries.ListSubTasksByParent(ctx, t.ID)
	if err != nil {
		return taskdb.Task{}, fmt.Errorf("サブタスク一覧の読み込みに失敗: %w", err)
	}

	err = s.inTx(ctx, func(q *taskdb.Queries, r *history.Recorder) error {
		if err := q.UpdateTask(ctx, taskdb.UpdateTaskParams{
			Title:       input.Title,
			Description: input.Description,
			Priority:    input.Priority,
			DueDate:     input.DueDate,
			ID:          t.ID,
		}); err != nil {
			return fmt.Errorf("タスクの更新に失敗: %w", err)
		}
		return r.Record(ctx, t.ID, actor.ID, changes...)
	})
	if err != nil {
		return taskdb.Task{}, err
	}

	updated, err := s.queries.GetTaskByID(ctx, t.ID)
	if err != nil {
		return taskdb.Task{}, fmt.Errorf("更新済みタスクの読み込みに失敗: %w", err)
	}

	s.notify(ctx, t, subs, actor, audience.KindUpdated, event.CategoryTaskUpdated,
		"タスク更新",
		fmt.Sprintf("タスク「%s」が更新されました", updated.Title))

	return updated, nil
}

// hasChange は実際に値が変わったフィールドが1つでもあるかを返す。
func hasChange(changes []history.Change) bool {
	for _, ch := range changes {
		if ch.OldValue != ch.NewValue {
			return true
		}
	}
	return false
}

// UpdateStatus はタスクのステータスを変更する。作成者または担当者が実行できる。
// 複合操作として履歴には "status" タグの1エントリだけが記録される。
func (s *Service) UpdateStatus(ctx context.Context, actorID, taskID, status string) (taskdb.Task, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return taskdb.Task{}, err
	}

	t, err := s.loadActiveTask(ctx, taskID)
	if err != nil {
		return taskdb.Task{}, err
	}

	if err := s.authorize(actor, authz.ActionUpdateStatus, authz.Resource{
		CreatorID:  t.CreatedBy,
		AssigneeID: t.AssigneeID,
	}); err != nil {
		return taskdb.Task{}, err
	}

	if !validStatuses[status] {
		return taskdb.Task{}, ErrInvalidStatus
	}
	if status == t.Status {
		return t, nil
	}

	subs, err := s.queries.ListSubTasksByParent(ctx, t.ID)
	if err != nil {
		return taskdb.Task{}, fmt.Errorf("サブタスク一覧の読み込みに失敗: %w", err)
	}

	err = s.inTx(ctx, func(q *taskdb.Queries, r *history.Recorder) error {
		if err := q.UpdateTaskStatus(ctx, taskdb.UpdateTaskStatusParams{
			Status: status,
			ID:     t.ID,
		}); err != nil {
			return fmt.Errorf("ステータスの更新に失敗: %w", err)
		}
		return r.Record(ctx, t.ID, actor.ID, history.Change{
			Field:    "status",
			OldValue: t.Status,
			NewValue: status,
		})
	})
	if err != nil {
		return taskdb.Task{}, err
	}

	updated, err := s.queries.GetTaskByID(ctx, t.ID)
	if err != nil {
		return taskdb.Task{}, fmt.Errorf("更新済みタスクの読み込みに失敗: %w", err)
	}

	s.notify(ctx, t, subs, actor, audience.KindStatusChanged, event.CategoryTaskStatusChanged,
		"ステータス変更",
		fmt.Sprintf("タスク「%s」のステータスが %s から %s に変更されました", t.Title, t.Status, status))

	return updated, nil
}

// AssignTask はタスクの担当者を変更する。作成者のみが実行できる。
// 新しい担当者へ割り当て通知を送る。
func (s *Service) AssignTask(ctx context.Context, actorID, taskID, assigneeID string) (taskdb.Task, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return taskdb.Task{}, err
	}

	t, err := s.loadActiveTask(ctx, taskID)
	if err != nil {
		return taskdb.Task{}, err
	}

	if err := s.authorize(actor, authz.ActionAssignTask, authz.Resource{
		CreatorID:  t.CreatedBy,
		AssigneeID: t.AssigneeID,
	}); err != nil {
		return taskdb.Task{}, err
	}

	newAssignee, err := s.directory.Member(ctx, assigneeID)
	if errors.Is(err, identity.ErrMemberNotFound) {
		return taskdb.Task{}, ErrUserNotFound
	}
	if err != nil {
		return taskdb.Task{}, fmt.Errorf("担当者の解決に失敗: %w", err)
	}

	if assigneeID == t.AssigneeID {
		return t, nil
	}

	err = s.inTx(ctx, func(q *taskdb.Queries, r *history.Recorder) error {
		if err := q.UpdateTaskAssignee(ctx, taskdb.UpdateTaskAssigneeParams{
			AssigneeID: assigneeID,
			ID:         t.ID,
		}); err != nil {
			return fmt.Errorf("担当者の更新に失敗: %w", err)
		}
		return r.Record(ctx, t.ID, actor.ID, history.Change{
			Field:    "assignee",
			OldValue: t.AssigneeID,
			NewValue: assigneeID,
		})
	})
	if err != nil {
		return taskdb.Task{}, err
	}

	updated, err := s.queries.GetTaskByID(ctx, t.ID)
	if err != nil {
		return taskdb.Task{}, fmt.Errorf("更新済みタスクの読み込みに失敗: %w", err)
	}

	snap := audience.Snapshot{
		NewAssignee: &audience.Member{ID: newAssignee.ID, Name: newAssignee.FullName},
	}
	recipients := audience.Resolve(snap, audience.Mutation{
		Kind:         audience.KindAssigned,
		ActorID:      actor.ID,
		ActorIsAdmin: actor.Role.IsAdmin(),
	})
	s.publisher.Publish(recipients,
		"タスク割り当て",
		fmt.Sprintf("タスク「%s」があなたに割り当てられました", updated.Title),
		updated.ID, updated.Title, event.CategoryTaskAssigned, actor.ID)

	return updated, nil
}

// DeleteTask はタスクを論理削除する。作成者のみが実行できる。
// 管理者以外による削除は、関係者ではなく全管理者への通知にエスカレーションされる。
func (s *Service) DeleteTask(ctx context.Context, actorID, taskID string) error {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return err
	}

	t, err := s.loadActiveTask(ctx, taskID)
	if err != nil {
		return err
	}

	if err := s.authorize(actor, authz.ActionDeleteTask, authz.Resource{
		CreatorID:  t.CreatedBy,
		AssigneeID: t.AssigneeID,
	}); err != nil {
		return err
	}

	subs, err := s.queries.ListSubTasksByParent(ctx, t.ID)
	if err != nil {
		return fmt.Errorf("サブタスク一覧の読み込みに失敗: %w", err)
	}

	err = s.inTx(ctx, func(q *taskdb.Queries, r *history.Recorder) error {
		if err := q.SetTaskDeleted(ctx, taskdb.SetTaskDeletedParams{
			IsDeleted: 1,
			ID:        t.ID,
		}); err != nil {
			return fmt.Errorf("タスクの削除に失敗: %w", err)
		}
		return r.Record(ctx, t.ID, actor.ID, history.Change{
			Field:    "deleted",
			OldValue: "active",
			NewValue: "deleted",
		})
	})
	if err != nil {
		return err
	}

	s.notify(ctx, t, subs, actor, audience.KindDeleted, event.CategoryTaskDeleted,
		"タスク削除",
		fmt.Sprintf("%s がタスク「%s」を削除しました", actor.FullName, t.Title))

	return nil
}

// RestoreTask は論理削除されたタスクを復元する。作成者のみが実行できる。
// 削除されていないタスクの復元はErrNotDeletedになる。
func (s *Service) RestoreTask(ctx context.Context, actorID, taskID string) (taskdb.Task, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return taskdb.Task{}, err
	}

	t, err := s.queries.GetTaskByID(ctx, taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return taskdb.Task{}, ErrTaskNotFound
	}
	if err != nil {
		return taskdb.Task{}, fmt.Errorf("タスクの読み込みに失敗: %w", err)
	}

	if err := s.authorize(actor, authz.ActionRestoreTask, authz.Resource{
		CreatorID:  t.CreatedBy,
		AssigneeID: t.AssigneeID,
	}); err != nil {
		return taskdb.Task{}, err
	}

	if t.IsDeleted == 0 {
		return taskdb.Task{}, ErrNotDeleted
	}

	subs, err := s.queries.ListSubTasksByParent(ctx, t.ID)
	if err != nil {
		return taskdb.Task{}, fmt.Errorf("サブタスク一覧の読み込みに失敗: %w", err)
	}

	err = s.inTx(ctx, func(q *taskdb.Queries, r *history.Recorder) error {
		if err := q.SetTaskDeleted(ctx, taskdb.SetTaskDeletedParams{
			IsDeleted: 0,
			ID:        t.ID,
		}); err != nil {
			return fmt.Errorf("タスクの復元に失敗: %w", err)
		}
		return r.Record(ctx, t.ID, actor.ID, history.Change{
			Field:    "restored",
			OldValue: "deleted",
			NewValue: "active",
		})
	})
	if err != nil {
		return taskdb.Task{}, err
	}

	restored, err := s.queries.GetTaskByID(ctx, t.ID)
	if err != nil {
		return taskdb.Task{}, fmt.Errorf("復元済みタスクの読み込みに失敗: %w", err)
	}

	s.notify(ctx, restored, subs, actor, audience.KindRestored, event.CategoryTaskRestored,
		"タスク復元",
		fmt.Sprintf("タスク「%s」が復元されました", restored.Title))

	return restored, nil
}

// Detail はタスクの詳細（サブタスクと変更履歴を含む）。
type Detail struct {
	// Task はタスク本体。
	Task taskdb.Task
	// SubTasks は有効なサブタスクの一覧。
	SubTasks []taskdb.SubTask
	// History は変更履歴（新しい順）。
	History []history.Entry
}

// GetTaskDetail はタスクの詳細を返す。作成者、担当者、または
// いずれかの有効なサブタスクの担当者のみが閲覧できる。
func (s *Service) GetTaskDetail(ctx context.Context, actorID, taskID string) (Detail, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return Detail{}, err
	}

	t, err := s.loadActiveTask(ctx, taskID)
	if err != nil {
		return Detail{}, err
	}

	subs, err := s.queries.ListSubTasksByParent(ctx, t.ID)
	if err != nil {
		return Detail{}, fmt.Errorf("サブタスク一覧の読み込みに失敗: %w", err)
	}

	subAssignees := make([]string, 0, len(subs))
	for _, st := range subs {
		if st.AssigneeID != "" {
			subAssignees = append(subAssignees, st.AssigneeID)
		}
	}

	if err := s.authorize(actor, authz.ActionViewTask, authz.Resource{
		CreatorID:          t.CreatedBy,
		AssigneeID:         t.AssigneeID,
		SubTaskAssigneeIDs: subAssignees,
	}); err != nil {
		return Detail{}, err
	}

	entries, err := s.recorder.List(ctx, t.ID)
	if err != nil {
		return Detail{}, err
	}

	return Detail{Task: t, SubTasks: subs, History: entries}, nil
}

// ListTasks はユーザーが閲覧可能なタスクを新しい順に返す。
func (s *Service) ListTasks(ctx context.Context, actorID string, limit, offset int64) ([]taskdb.Task, error) {
	if _, err := s.actor(ctx, actorID); err != nil {
		return nil, err
	}

	tasks, err := s.queries.ListTasksForUser(ctx, taskdb.ListTasksForUserParams{
		UserID: actorID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("タスク一覧の読み込みに失敗: %w", err)
	}
	return tasks, nil
}
