package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nao1215/taskhub/internal/history"
	"github.com/nao1215/taskhub/internal/identity"
	taskdb "github.com/nao1215/taskhub/internal/task/db"
	"github.com/nao1215/taskhub/pkg/audience"
	"github.com/nao1215/taskhub/pkg/authz"
	"github.com/nao1215/taskhub/pkg/event"
)

// loadActiveSubTask は親タスクに属する削除されていないサブタスクを読み込む。
func (s *Service) loadActiveSubTask(ctx context.Context, taskID, subTaskID string) (taskdb.SubTask, error) {
	st, err := s.queries.GetSubTaskByID(ctx, subTaskID)
	if errors.Is(err, sql.ErrNoRows) {
		return taskdb.SubTask{}, ErrSubTaskNotFound
	}
	if err != nil {
		return taskdb.SubTask{}, fmt.Errorf("サブタスクの読み込みに失敗: %w", err)
	}
	if st.IsDeleted != 0 || st.ParentTaskID != taskID {
		return taskdb.SubTask{}, ErrSubTaskNotFound
	}
	return st, nil
}

// CreateSubTaskInput はサブタスク作成の入力。
type CreateSubTaskInput struct {
	// Title はサブタスクのタイトル。
	Title string
	// Description はサブタスクの説明。
	Description string
	// AssigneeID は担当者のユーザーID。空文字列は未割り当て。
	AssigneeID string
}

// CreateSubTask は親タスクにサブタスクを追加する。親タスクの作成者のみが
// 実行できる。履歴は親タスクに対して記録される。
func (s *Service) CreateSubTask(ctx context.Context, actorID, taskID string, input CreateSubTaskInput) (taskdb.SubTask, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return taskdb.SubTask{}, err
	}

	parent, err := s.loadActiveTask(ctx, taskID)
	if err != nil {
		return taskdb.SubTask{}, err
	}

	if err := s.authorize(actor, authz.ActionCreateSubTask, authz.Resource{
		CreatorID:  parent.CreatedBy,
		AssigneeID: "",
	}); err != nil {
		return taskdb.SubTask{}, err
	}

	if input.AssigneeID != "" {
		if _, err := s.directory.Member(ctx, input.AssigneeID); errors.Is(err, identity.ErrMemberNotFound) {
			return taskdb.SubTask{}, ErrUserNotFound
		} else if err != nil {
			return taskdb.SubTask{}, fmt.Errorf("担当者の解決に失敗: %w", err)
		}
	}

	subTaskID := uuid.New().String()
	err = s.inTx(ctx, func(q *taskdb.Queries, r *history.Recorder) error {
		if err := q.CreateSubTask(ctx, taskdb.CreateSubTaskParams{
			ID:           subTaskID,
			ParentTaskID: parent.ID,
			Title:        input.Title,
			Description:  input.Description,
			Status:       "TODO",
			AssigneeID:   input.AssigneeID,
		}); err != nil {
			return fmt.Errorf("サブタスクの作成に失敗: %w", err)
		}
		return r.Record(ctx, parent.ID, actor.ID, history.Change{
			Field:    "subtask_created",
			OldValue: "",
			NewValue: input.Title,
		})
	})
	if err != nil {
		return taskdb.SubTask{}, err
	}

	created, err := s.queries.GetSubTaskByID(ctx, subTaskID)
	if err != nil {
		return taskdb.SubTask{}, fmt.Errorf("作成済みサブタスクの読み込みに失敗: %w", err)
	}

	// 作成後の一覧を使うことで、新しいサブタスクの担当者も通知対象に含める
	subs, err := s.queries.ListSubTasksByParent(ctx, parent.ID)
	if err != nil {
		subs = []taskdb.SubTask{created}
	}
	s.notify(ctx, parent, subs, actor, audience.KindUpdated, event.CategoryTaskUpdated,
		"サブタスク追加",
		fmt.Sprintf("タスク「%s」にサブタスク「%s」が追加されました", parent.Title, created.Title))

	return created, nil
}

// UpdateSubTaskInput はサブタスク更新の入力。
type UpdateSubTaskInput struct {
	// Title はサブタスクのタイトル。
	Title string
	// Description はサブタスクの説明。
	Description string
	// Status はステータス。
	Status string
	// AssigneeID は担当者のユーザーID。空文字列は未割り当て。
	AssigneeID string
}

// UpdateSubTask はサブタスクを更新する。親タスクの作成者、または
// サブタスク自身の担当者が実行できる。履歴は親タスクに対して
// subtask_* タグで記録される。
func (s *Service) UpdateSubTask(ctx context.Context, actorID, taskID, subTaskID string, input UpdateSubTaskInput) (taskdb.SubTask, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return taskdb.SubTask{}, err
	}

	parent, err := s.loadActiveTask(ctx, taskID)
	if err != nil {
		return taskdb.SubTask{}, err
	}

	st, err := s.loadActiveSubTask(ctx, parent.ID, subTaskID)
	if err != nil {
		return taskdb.SubTask{}, err
	}

	if err := s.authorize(actor, authz.ActionUpdateSubTask, authz.Resource{
		CreatorID:  parent.CreatedBy,
		AssigneeID: st.AssigneeID,
	}); err != nil {
		return taskdb.SubTask{}, err
	}

	if !validStatuses[input.Status] {
		return taskdb.SubTask{}, ErrInvalidStatus
	}
	if input.AssigneeID != "" && input.AssigneeID != st.AssigneeID {
		if _, err := s.directory.Member(ctx, input.AssigneeID); errors.Is(err, identity.ErrMemberNotFound) {
			return taskdb.SubTask{}, ErrUserNotFound
		} else if err != nil {
			return taskdb.SubTask{}, fmt.Errorf("担当者の解決に失敗: %w", err)
		}
	}

	changes := []history.Change{
		{Field: "subtask_title", OldValue: st.Title, NewValue: input.Title},
		{Field: "subtask_description", OldValue: st.Description, NewValue: input.Description},
		{Field: "subtask_status", OldValue: st.Status, NewValue: input.Status},
		{Field: "subtask_assignee", OldValue: st.AssigneeID, NewValue: input.AssigneeID},
	}
	if !hasChange(changes) {
		return st, nil
	}

	// 通知先スナップショットは変更前の状態から実体化する
	subs, err := s.queries.ListSubTasksByParent(ctx, parent.ID)
	if err != nil {
		return taskdb.SubTask{}, fmt.Errorf("サブタスク一覧の読み込みに失敗: %w", err)
	}

	err = s.inTx(ctx, func(q *taskdb.Queries, r *history.Recorder) error {
		if err := q.UpdateSubTask(ctx, taskdb.UpdateSubTaskParams{
			Title:       input.Title,
			Description: input.Description,
			Status:      input.Status,
			AssigneeID:  input.AssigneeID,
			ID:          st.ID,
		}); err != nil {
			return fmt.Errorf("サブタスクの更新に失敗: %w", err)
		}
		return r.Record(ctx, parent.ID, actor.ID, changes...)
	})
	if err != nil {
		return taskdb.SubTask{}, err
	}

	updated, err := s.queries.GetSubTaskByID(ctx, st.ID)
	if err != nil {
		return taskdb.SubTask{}, fmt.Errorf("更新済みサブタスクの読み込みに失敗: %w", err)
	}

	s.notify(ctx, parent, subs, actor, audience.KindUpdated, event.CategoryTaskUpdated,
		"サブタスク更新",
		fmt.Sprintf("タスク「%s」のサブタスク「%s」が更新されました", parent.Title, updated.Title))

	return updated, nil
}

// DeleteSubTask はサブタスクを論理削除する。親タスクの作成者が実行できる。
// 担当者による削除を許可するかはポリシー設定に従う。
func (s *Service) DeleteSubTask(ctx context.Context, actorID, taskID, subTaskID string) error {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return err
	}

	parent, err := s.loadActiveTask(ctx, taskID)
	if err != nil {
		return err
	}

	st, err := s.loadActiveSubTask(ctx, parent.ID, subTaskID)
	if err != nil {
		return err
	}

	if err := s.authorize(actor, authz.ActionDeleteSubTask, authz.Resource{
		CreatorID:  parent.CreatedBy,
		AssigneeID: st.AssigneeID,
	}); err != nil {
		return err
	}

	// 削除対象の担当者も通知に含めるため、変更前の一覧を実体化しておく
	subs, err := s.queries.ListSubTasksByParent(ctx, parent.ID)
	if err != nil {
		return fmt.Errorf("サブタスク一覧の読み込みに失敗: %w", err)
	}

	err = s.inTx(ctx, func(q *taskdb.Queries, r *history.Recorder) error {
		if err := q.SetSubTaskDeleted(ctx, taskdb.SetSubTaskDeletedParams{
			IsDeleted: 1,
			ID:        st.ID,
		}); err != nil {
			return fmt.Errorf("サブタスクの削除に失敗: %w", err)
		}
		return r.Record(ctx, parent.ID, actor.ID, history.Change{
			Field:    "subtask_deleted",
			OldValue: st.Title,
			NewValue: "",
		})
	})
	if err != nil {
		return err
	}

	s.notify(ctx, parent, subs, actor, audience.KindUpdated, event.CategoryTaskUpdated,
		"サブタスク削除",
		fmt.Sprintf("タスク「%s」のサブタスク「%s」が削除されました", parent.Title, st.Title))

	return nil
}
