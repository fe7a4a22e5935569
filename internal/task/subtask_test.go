package task

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/nao1215/taskhub/pkg/authz"
	"github.com/nao1215/taskhub/pkg/event"
)

// setupSubTaskFixture は作成者・担当者・サブ担当者付きの親タスクと
// サブタスクを用意するヘルパー関数。
func setupSubTaskFixture(t *testing.T, svc *Service, sqlDB *sql.DB) (taskID, subTaskID string) {
	t.Helper()
	seedUser(t, sqlDB, "creator", "作成者", "USER")
	seedUser(t, sqlDB, "assignee", "担当者", "USER")
	seedUser(t, sqlDB, "sub-assignee", "サブ担当者", "USER")

	task, err := svc.CreateTask(context.Background(), "creator", CreateTaskInput{
		Title:      "親タスク",
		AssigneeID: "assignee",
	})
	if err != nil {
		t.Fatalf("タスク作成に失敗: %v", err)
	}

	st, err := svc.CreateSubTask(context.Background(), "creator", task.ID, CreateSubTaskInput{
		Title:      "子タスク",
		AssigneeID: "sub-assignee",
	})
	if err != nil {
		t.Fatalf("サブタスク作成に失敗: %v", err)
	}
	return task.ID, st.ID
}

// TestCreateSubTask はサブタスク作成のテスト。
func TestCreateSubTask(t *testing.T) {
	t.Parallel()

	t.Run("親タスクの作成者はサブタスクを追加できる", func(t *testing.T) {
		t.Parallel()
		svc, sqlDB, pub := setupTestService(t, authz.Config{})
		taskID, _ := setupSubTaskFixture(t, svc, sqlDB)

		entries := historyEntries(t, svc, taskID)
		// created + subtask_created
		if len(entries) != 2 {
			t.Fatalf("履歴の数: got %d, want 2", len(entries))
		}
		if entries[0].Field != "subtask_created" {
			t.Errorf("Field: got %s, want subtask_created", entries[0].Field)
		}

		// 新しいサブタスクの担当者も通知対象に含まれる
		call := pub.lastCall(t)
		ids := recipientIDs(call)
		if !ids["assignee"] || !ids["sub-assignee"] {
			t.Errorf("受信者: got %v, want assignee と sub-assignee を含む", ids)
		}
		if ids["creator"] {
			t.Errorf("操作者が受信者に含まれています: %v", ids)
		}
	})

	t.Run("担当者はサブタスクを追加できない", func(t *testing.T) {
		t.Parallel()
		svc, sqlDB, _ := setupTestService(t, authz.Config{})
		taskID, _ := setupSubTaskFixture(t, svc, sqlDB)

		_, err := svc.CreateSubTask(context.Background(), "assignee", taskID, CreateSubTaskInput{Title: "不正追加"})
		if !errors.Is(err, ErrNotAuthorized) {
			t.Errorf("エラー: got %v, want ErrNotAuthorized", err)
		}
	})

	t.Run("存在しない親タスクの場合はErrTaskNotFound", func(t *testing.T) {
		t.Parallel()
		svc, sqlDB, _ := setupTestService(t, authz.Config{})
		seedUser(t, sqlDB, "creator", "作成者", "USER")

		_, err := svc.CreateSubTask(context.Background(), "creator", "nonexistent", CreateSubTaskInput{Title: "子"})
		if !errors.Is(err, ErrTaskNotFound) {
			t.Errorf("エラー: got %v, want ErrTaskNotFound", err)
		}
	})
}

// TestUpdateSubTask はサブタスク更新のテスト。
func TestUpdateSubTask(t *testing.T) {
	t.Parallel()

	t.Run("サブタスクの担当者はステータスだけを変更できる", func(t *testing.T) {
		t.Parallel()
		svc, sqlDB, pub := setupTestService(t, authz.Config{})
		taskID, subTaskID := setupSubTaskFixture(t, svc, sqlDB)

		st, err := svc.UpdateSubTask(context.Background(), "sub-assignee", taskID, subTaskID, UpdateSubTaskInput{
			Title:      "子タスク",
			Status:     "IN_PROGRESS",
			AssigneeID: "sub-assignee",
		})
		if err != nil {
			t.Fatalf("サブタスク更新に失敗: %v", err)
		}
		if st.Status != "IN_PROGRESS" {
			t.Errorf("Status: got %s, want IN_PROGRESS", st.Status)
		}

		entries := historyEntries(t, svc, taskID)
		// created + subtask_created + subtask_status
		if len(entries) != 3 {
			t.Fatalf("履歴の数: got %d, want 3", len(entries))
		}
		if entries[0].Field != "subtask_status" {
			t.Errorf("Field: got %s, want subtask_status", entries[0].Field)
		}

		// 受信者は親タスクの作成者と担当者。操作者は含まれず重複もない
		call := pub.lastCall(t)
		ids := recipientIDs(call)
		if len(ids) != 2 || !ids["creator"] || !ids["assignee"] {
			t.Errorf("受信者: got %v, want {creator, assignee}", ids)
		}
	})

	t.Run("親タスクの作成者もサブタスクを更新できる", func(t *testing.T) {
		t.Parallel()
		svc, sqlDB, _ := setupTestService(t, authz.Config{})
		taskID, subTaskID := setupSubTaskFixture(t, svc, sqlDB)

		_, err := svc.UpdateSubTask(context.Background(), "creator", taskID, subTaskID, UpdateSubTaskInput{
			Title:      "子タスク（改訂）",
			Status:     "TODO",
			AssigneeID: "sub-assignee",
		})
		if err != nil {
			t.Errorf("サブタスク更新に失敗: %v", err)
		}
	})

	t.Run("親タスクの担当者はサブタスクを更新できない", func(t *testing.T) {
		t.Parallel()
		svc, sqlDB, _ := setupTestService(t, authz.Config{})
		taskID, subTaskID := setupSubTaskFixture(t, svc, sqlDB)

		_, err := svc.UpdateSubTask(context.Background(), "assignee", taskID, subTaskID, UpdateSubTaskInput{
			Title:      "子タスク",
			Status:     "DONE",
			AssigneeID: "sub-assignee",
		})
		if !errors.Is(err, ErrNotAuthorized) {
			t.Errorf("エラー: got %v, want ErrNotAuthorized", err)
		}
	})

	t.Run("別の親に属するサブタスクはErrSubTaskNotFound", func(t *testing.T) {
		t.Parallel()
		svc, sqlDB, _ := setupTestService(t, authz.Config{})
		_, subTaskID := setupSubTaskFixture(t, svc, sqlDB)

		other, err := svc.CreateTask(context.Background(), "creator", CreateTaskInput{Title: "別の親"})
		if err != nil {
			t.Fatalf("タスク作成に失敗: %v", err)
		}

		_, err = svc.UpdateSubTask(context.Background(), "creator", other.ID, subTaskID, UpdateSubTaskInput{
			Title:  "子タスク",
			Status: "DONE",
		})
		if !errors.Is(err, ErrSubTaskNotFound) {
			t.Errorf("エラー: got %v, want ErrSubTaskNotFound", err)
		}
	})
}

// TestDeleteSubTask はサブタスク削除とポリシー設定のテスト。
func TestDeleteSubTask(t *testing.T) {
	t.Parallel()

	t.Run("親タスクの作成者はサブタスクを削除できる", func(t *testing.T) {
		t.Parallel()
		svc, sqlDB, pub := setupTestService(t, authz.Config{})
		taskID, subTaskID := setupSubTaskFixture(t, svc, sqlDB)

		if err := svc.DeleteSubTask(context.Background(), "creator", taskID, subTaskID); err != nil {
			t.Fatalf("サブタスク削除に失敗: %v", err)
		}

		entries := historyEntries(t, svc, taskID)
		if entries[0].Field != "subtask_deleted" {
			t.Errorf("Field: got %s, want subtask_deleted", entries[0].Field)
		}

		// 削除直前の担当者も通知対象に含まれる
		call := pub.lastCall(t)
		ids := recipientIDs(call)
		if !ids["sub-assignee"] {
			t.Errorf("受信者: got %v, want sub-assignee を含む", ids)
		}

		detail, err := svc.GetTaskDetail(context.Background(), "creator", taskID)
		if err != nil {
			t.Fatalf("詳細取得に失敗: %v", err)
		}
		if len(detail.SubTasks) != 0 {
			t.Errorf("サブタスクの数: got %d, want 0", len(detail.SubTasks))
		}
	})

	t.Run("既定ではサブタスクの担当者は削除できない", func(t *testing.T) {
		t.Parallel()
		svc, sqlDB, _ := setupTestService(t, authz.Config{})
		taskID, subTaskID := setupSubTaskFixture(t, svc, sqlDB)

		err := svc.DeleteSubTask(context.Background(), "sub-assignee", taskID, subTaskID)
		if !errors.Is(err, ErrNotAuthorized) {
			t.Errorf("エラー: got %v, want ErrNotAuthorized", err)
		}
	})

	t.Run("担当者削除を許可する設定なら担当者も削除できる", func(t *testing.T) {
		t.Parallel()
		svc, sqlDB, _ := setupTestService(t, authz.Config{SubTaskDeleteByAssignee: true})
		taskID, subTaskID := setupSubTaskFixture(t, svc, sqlDB)

		if err := svc.DeleteSubTask(context.Background(), "sub-assignee", taskID, subTaskID); err != nil {
			t.Errorf("サブタスク削除に失敗: %v", err)
		}
	})

	t.Run("削除済みサブタスクの再削除はErrSubTaskNotFound", func(t *testing.T) {
		t.Parallel()
		svc, sqlDB, _ := setupTestService(t, authz.Config{})
		taskID, subTaskID := setupSubTaskFixture(t, svc, sqlDB)

		if err := svc.DeleteSubTask(context.Background(), "creator", taskID, subTaskID); err != nil {
			t.Fatalf("サブタスク削除に失敗: %v", err)
		}
		if err := svc.DeleteSubTask(context.Background(), "creator", taskID, subTaskID); !errors.Is(err, ErrSubTaskNotFound) {
			t.Errorf("エラー: got %v, want ErrSubTaskNotFound", err)
		}
	})
}

// TestNotifyRecipientsExcludeActor は通知先から操作者が常に除外されることのテスト。
func TestNotifyRecipientsExcludeActor(t *testing.T) {
	t.Parallel()

	t.Run("作成者が担当者を兼ねる場合の更新は通知ゼロ", func(t *testing.T) {
		t.Parallel()
		svc, sqlDB, pub := setupTestService(t, authz.Config{})
		seedUser(t, sqlDB, "creator", "作成者", "USER")

		task, err := svc.CreateTask(context.Background(), "creator", CreateTaskInput{
			Title:      "一人タスク",
			AssigneeID: "creator",
		})
		if err != nil {
			t.Fatalf("タスク作成に失敗: %v", err)
		}
		before := pub.callCount()

		if _, err := svc.UpdateStatus(context.Background(), "creator", task.ID, "DONE"); err != nil {
			t.Fatalf("ステータス変更に失敗: %v", err)
		}

		if pub.callCount() != before {
			t.Errorf("Publishの回数: got %d, want %d", pub.callCount(), before)
		}
	})

	t.Run("同一人物が複数の役割を持っても受信者は1回だけ数えられる", func(t *testing.T) {
		t.Parallel()
		svc, sqlDB, pub := setupTestService(t, authz.Config{})
		seedUser(t, sqlDB, "creator", "作成者", "USER")
		seedUser(t, sqlDB, "both", "兼任者", "USER")

		task, err := svc.CreateTask(context.Background(), "creator", CreateTaskInput{
			Title:      "兼任タスク",
			AssigneeID: "both",
		})
		if err != nil {
			t.Fatalf("タスク作成に失敗: %v", err)
		}
		// タスク担当者とサブタスク担当者を同一人物にする
		if _, err := svc.CreateSubTask(context.Background(), "creator", task.ID, CreateSubTaskInput{
			Title:      "子",
			AssigneeID: "both",
		}); err != nil {
			t.Fatalf("サブタスク作成に失敗: %v", err)
		}

		if _, err := svc.UpdateStatus(context.Background(), "creator", task.ID, "IN_PROGRESS"); err != nil {
			t.Fatalf("ステータス変更に失敗: %v", err)
		}

		call := pub.lastCall(t)
		if len(call.Recipients) != 1 || call.Recipients[0].ID != "both" {
			t.Errorf("受信者: got %v, want [both] 1件のみ", call.Recipients)
		}
		if call.Category != event.CategoryTaskStatusChanged {
			t.Errorf("Category: got %s, want %s", call.Category, event.CategoryTaskStatusChanged)
		}
	})
}
