// Package event はタスク変更に伴う通知イベントの型を提供する。
//
// 通知イベントは宛先1人につき1つ生成される一時的な作業単位であり、
// それ自体は永続化されない。ファンアウトエンジンがイベントを受理した
// 時点で、宛先ごとの永続的なNotificationレコードに変換される。
package event

import (
	"time"

	"github.com/google/uuid"
)

// Category は通知の種類を表す。
type Category string

const (
	// CategoryTaskAssigned はタスクがユーザーに割り当てられたことを表す。
	CategoryTaskAssigned Category = "TASK_ASSIGNED"
	// CategoryTaskStatusChanged はタスクまたはサブタスクの状態が変わったことを表す。
	CategoryTaskStatusChanged Category = "TASK_STATUS_CHANGED"
	// CategoryTaskUpdated はタスクまたはサブタスクが更新されたことを表す。
	CategoryTaskUpdated Category = "TASK_UPDATED"
	// CategoryTaskDeleted はタスクが論理削除されたことを表す。
	CategoryTaskDeleted Category = "TASK_DELETED"
	// CategoryTaskRestored はタスクが論理削除から復元されたことを表す。
	CategoryTaskRestored Category = "TASK_RESTORED"
)

// TaskNotification は1人の宛先に対する通知イベント。
// ID はファンアウトエンジンが永続化するNotificationレコードのIDとして
// そのまま使用され、同一の (変更, 宛先) 組に対する重複保存を防ぐ。
type TaskNotification struct {
	// ID はイベントの一意識別子（UUID）。
	ID string
	// RecipientID は通知先のユーザーID。
	RecipientID string
	// Title は通知のタイトル。
	Title string
	// Message は通知メッセージ。
	Message string
	// TaskID は関連するタスクのID。
	TaskID string
	// TaskTitle は関連するタスクのタイトル。
	TaskTitle string
	// Category は通知の種類。
	Category Category
	// ActorID は変更を実行したユーザーのID。
	ActorID string
	// CreatedAt はイベントが生成された日時。
	CreatedAt time.Time
}

// NewTaskNotification は新しい通知イベントを生成する。
func NewTaskNotification(recipientID, title, message, taskID, taskTitle string, category Category, actorID string) TaskNotification {
	return TaskNotification{
		ID:          uuid.New().String(),
		RecipientID: recipientID,
		Title:       title,
		Message:     message,
		TaskID:      taskID,
		TaskTitle:   taskTitle,
		Category:    category,
		ActorID:     actorID,
		CreatedAt:   time.Now().UTC(),
	}
}
