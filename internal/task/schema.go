package task

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/nao1215/taskhub/pkg/migration"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// InitSchema はタスク関連テーブルのマイグレーションを適用する。
func InitSchema(db *sql.DB) error {
	if _, err := migration.Run(db, migrationFS, "migrations"); err != nil {
		return fmt.Errorf("タスクスキーマのマイグレーションに失敗: %w", err)
	}
	return nil
}
