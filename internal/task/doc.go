// Package task はタスクとサブタスクの変更パイプラインを提供する。
//
// すべての変更操作は同じ流れで処理される。まず対象を読み込み、
// 認可ポリシーで許可判定を行い、状態変更と履歴追記を同一トランザクションで
// コミットし、最後に通知先を解決して非同期のファンアウトへ引き渡す。
// 通知の遅延や失敗が変更リクエストの成否へ影響することはない。
package task
