// Package db は通知テーブルへのクエリ実行層を提供する。
// sqlcの出力形式（DBTX/Queries/Paramsパターン）に従う。
package db

import (
	"context"
	"database/sql"
)

// DBTX はクエリ実行に必要なデータベース操作の抽象。
// *sql.DBと*sql.Txの両方が満たす。
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// New は新しいクエリ実行オブジェクトを生成する。
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries は通知テーブルへのクエリをまとめたオブジェクト。
type Queries struct {
	// db はクエリの実行先。
	db DBTX
}

// WithTx はトランザクション上で動作するクエリ実行オブジェクトを返す。
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}
