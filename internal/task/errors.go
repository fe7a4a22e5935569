package task

import "errors"

var (
	// ErrTaskNotFound はタスクが存在しない、または削除済みであることを表す。
	ErrTaskNotFound = errors.New("タスクが見つかりません")
	// ErrSubTaskNotFound はサブタスクが存在しない、または削除済みであることを表す。
	ErrSubTaskNotFound = errors.New("サブタスクが見つかりません")
	// ErrUserNotFound は操作者または担当者が存在しないことを表す。
	ErrUserNotFound = errors.New("ユーザーが見つかりません")
	// ErrNotAuthorized は操作者に権限がないことを表す。
	// 対象が見つからない場合とは区別される。認可判定は対象の存在確認の後に行われる。
	ErrNotAuthorized = errors.New("この操作を行う権限がありません")
	// ErrNotDeleted は削除されていないタスクを復元しようとしたことを表す。
	ErrNotDeleted = errors.New("タスクは削除されていません")
	// ErrInvalidStatus は不正なステータス値を表す。
	ErrInvalidStatus = errors.New("不正なステータスです")
	// ErrInvalidPriority は不正な優先度値を表す。
	ErrInvalidPriority = errors.New("不正な優先度です")
	// ErrDueDateInPast は期限が過去日付であることを表す。
	ErrDueDateInPast = errors.New("期限に過去の日付は指定できません")
	// ErrInvalidDueDate は期限の日付形式が不正であることを表す。
	ErrInvalidDueDate = errors.New("期限の形式が不正です")
)
