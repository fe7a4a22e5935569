// Package authz はタスク操作の認可ポリシー評価器を提供する。
//
// (実行者, アクション, リソース) の三つ組から許可/拒否を決定する純粋関数であり、
// データベースアクセスや副作用を一切持たない。呼び出し側がリソースの
// 作成者・担当者・サブタスク担当者の関係を事前に解決してから渡す。
package authz
