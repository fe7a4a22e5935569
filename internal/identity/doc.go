// Package identity はユーザーディレクトリを提供する。
//
// 認可判定に使う役割（USER/ADMIN）と、プッシュ配信先（FCMトークン）の
// 解決を担当する。配信先の登録・破棄はタスク変更とは独立した操作であり、
// ファンアウトエンジンは配信時点の最新のコミット済みの値を読む。
package identity
