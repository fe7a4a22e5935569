package db

import (
	"context"
	"time"
)

// Notification はnotificationsテーブルの1行。
type Notification struct {
	// ID は通知の一意識別子。イベントIDと同一。
	ID string
	// RecipientID は受信者のユーザーID。
	RecipientID string
	// Title は通知のタイトル。
	Title string
	// Message は通知メッセージ。
	Message string
	// RelatedTaskID は関連タスクのID。関連がない場合は空文字列。
	RelatedTaskID string
	// RelatedTaskTitle は関連タスクのタイトル。
	RelatedTaskTitle string
	// Category は通知の種別。
	Category string
	// IsRead は既読フラグ（0=未読、1=既読）。
	IsRead int64
	// CreatedAt は作成日時。
	CreatedAt time.Time
}

const notificationColumns = `id, recipient_id, title, message, related_task_id, related_task_title, category, is_read, created_at`

// scanNotification は1行分の通知を読み取る。
func scanNotification(row interface{ Scan(...any) error }) (Notification, error) {
	var n Notification
	err := row.Scan(
		&n.ID,
		&n.RecipientID,
		&n.Title,
		&n.Message,
		&n.RelatedTaskID,
		&n.RelatedTaskTitle,
		&n.Category,
		&n.IsRead,
		&n.CreatedAt,
	)
	return n, err
}

const createNotification = `
INSERT INTO notifications (id, recipient_id, title, message, related_task_id, related_task_title, category)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

// CreateNotificationParams はCreateNotificationのパラメータ。
type CreateNotificationParams struct {
	ID               string
	RecipientID      string
	Title            string
	Message          string
	RelatedTaskID    string
	RelatedTaskTitle string
	Category         string
}

// CreateNotification は通知行を1件作成する。
func (q *Queries) CreateNotification(ctx context.Context, arg CreateNotificationParams) error {
	_, err := q.db.ExecContext(ctx, createNotification,
		arg.ID,
		arg.RecipientID,
		arg.Title,
		arg.Message,
		arg.RelatedTaskID,
		arg.RelatedTaskTitle,
		arg.Category,
	)
	return err
}

const getNotificationByID = `
SELECT ` + notificationColumns + `
FROM notifications
WHERE id = ?
`

// GetNotificationByID はIDで通知を取得する。
func (q *Queries) GetNotificationByID(ctx context.Context, id string) (Notification, error) {
	return scanNotification(q.db.QueryRowContext(ctx, getNotificationByID, id))
}

const listNotificationsByRecipient = `
SELECT ` + notificationColumns + `
FROM notifications
WHERE recipient_id = ?
ORDER BY created_at DESC, rowid DESC
LIMIT ? OFFSET ?
`

// ListNotificationsByRecipientParams はListNotificationsByRecipientのパラメータ。
type ListNotificationsByRecipientParams struct {
	RecipientID string
	Limit       int64
	Offset      int64
}

// ListNotificationsByRecipient は受信者の通知を新しい順に返す。
func (q *Queries) ListNotificationsByRecipient(ctx context.Context, arg ListNotificationsByRecipientParams) ([]Notification, error) {
	rows, err := q.db.QueryContext(ctx, listNotificationsByRecipient, arg.RecipientID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listUnreadNotifications = `
SELECT ` + notificationColumns + `
FROM notifications
WHERE recipient_id = ? AND is_read = 0
ORDER BY created_at DESC, rowid DESC
`

// ListUnreadNotifications は受信者の未読通知を新しい順に返す。
func (q *Queries) ListUnreadNotifications(ctx context.Context, recipientID string) ([]Notification, error) {
	rows, err := q.db.QueryContext(ctx, listUnreadNotifications, recipientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countUnreadNotifications = `
SELECT COUNT(*)
FROM notifications
WHERE recipient_id = ? AND is_read = 0
`

// CountUnreadNotifications は受信者の未読通知数を返す。
func (q *Queries) CountUnreadNotifications(ctx context.Context, recipientID string) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countUnreadNotifications, recipientID).Scan(&count)
	return count, err
}

const markAsRead = `
UPDATE notifications
SET is_read = 1
WHERE id = ?
`

// MarkAsRead は通知を既読にする。既読済みの通知に対しては何も変化しない。
func (q *Queries) MarkAsRead(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, markAsRead, id)
	return err
}

const markAllAsRead = `
UPDATE notifications
SET is_read = 1
WHERE recipient_id = ? AND is_read = 0
`

// MarkAllAsRead は受信者の全未読通知を既読にする。
func (q *Queries) MarkAllAsRead(ctx context.Context, recipientID string) error {
	_, err := q.db.ExecContext(ctx, markAllAsRead, recipientID)
	return err
}
