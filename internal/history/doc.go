// Package history はタスクの変更履歴を管理する。
//
// 履歴は追記専用であり、更新や削除のAPIは提供しない。
// 記録はタスク変更と同一トランザクション内で行われるため、
// 変更がコミットされたのに履歴が欠ける、あるいはその逆の状態は発生しない。
package history
