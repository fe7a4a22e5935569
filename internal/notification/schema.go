package notification

import "database/sql"

// schema は通知テーブルの定義。
// idにはイベントIDをそのまま使用する。同一イベントの二重処理は
// 主キー制約で弾かれるため、同じ（変更, 受信者）の組に対して
// 通知行が重複することはない。
const schema = `
CREATE TABLE IF NOT EXISTS notifications (
	id TEXT PRIMARY KEY,
	recipient_id TEXT NOT NULL,
	title TEXT NOT NULL,
	message TEXT NOT NULL,
	related_task_id TEXT NOT NULL DEFAULT '',
	related_task_title TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	is_read INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_notifications_recipient_id ON notifications(recipient_id);
CREATE INDEX IF NOT EXISTS idx_notifications_recipient_unread ON notifications(recipient_id, is_read);
`

// InitSchema は通知テーブルを作成する。
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
