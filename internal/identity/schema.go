package identity

import (
	"database/sql"
	"fmt"
)

// スキーマ定義。
const schema = `
CREATE TABLE IF NOT EXISTS users (
    -- ユーザーの一意識別子（UUID）
    id TEXT PRIMARY KEY,
    -- メールアドレス。ログインIDとして一意
    email TEXT NOT NULL UNIQUE,
    -- 表示名
    full_name TEXT NOT NULL,
    -- 役割（USER | ADMIN）
    role TEXT NOT NULL DEFAULT 'USER',
    -- プッシュ配信先のFCMトークン。未登録の場合は空文字列
    fcm_token TEXT NOT NULL DEFAULT '',
    -- ユーザーの作成日時
    created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

-- 役割での検索（管理者一覧）を高速化するインデックス。
CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);
`

// InitSchema はSQLiteデータベースにユーザースキーマを適用する。
func InitSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("ユーザースキーマの適用に失敗: %w", err)
	}
	return nil
}
