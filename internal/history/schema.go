package history

import "database/sql"

// schema はタスク変更履歴テーブルの定義。
// 履歴はフィールド単位の行として記録する。1回の変更で複数フィールドが
// 変わった場合は、フィールドごとに1行ずつ追記される。
const schema = `
CREATE TABLE IF NOT EXISTS task_history (
	id TEXT PRIMARY KEY,
	task_id TEXT NOT NULL,
	field TEXT NOT NULL,
	old_value TEXT NOT NULL DEFAULT '',
	new_value TEXT NOT NULL DEFAULT '',
	changed_by TEXT NOT NULL,
	changed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_task_history_task_id ON task_history(task_id);
`

// InitSchema はタスク変更履歴テーブルを作成する。
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
