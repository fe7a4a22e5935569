package authz

// Role はユーザーの役割を表す閉じた列挙型。
type Role string

const (
	// RoleUser は一般ユーザーを表す。
	RoleUser Role = "USER"
	// RoleAdmin は管理者を表す。所有権チェックをすべてバイパスする。
	RoleAdmin Role = "ADMIN"
)

// IsAdmin は役割が管理者かどうかを返す。
// 役割判定はこの述語のみを経由し、文字列比較を呼び出し側に漏らさない。
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// Action は認可対象となる操作の種類を表す。
type Action string

const (
	// ActionViewTask はタスク詳細の閲覧を表す。
	ActionViewTask Action = "view-task"
	// ActionUpdateTask はタスクの内容（タイトル・説明・優先度等）の更新を表す。
	ActionUpdateTask Action = "update-task"
	// ActionUpdateStatus はタスクの状態変更を表す。
	ActionUpdateStatus Action = "update-status"
	// ActionDeleteTask はタスクの論理削除を表す。
	ActionDeleteTask Action = "delete-task"
	// ActionRestoreTask は論理削除されたタスクの復元を表す。
	ActionRestoreTask Action = "restore-task"
	// ActionAssignTask はタスクの担当者割り当てを表す。
	ActionAssignTask Action = "assign-task"
	// ActionCreateSubTask は親タスクへのサブタスク作成を表す。
	ActionCreateSubTask Action = "create-subtask"
	// ActionUpdateSubTask はサブタスクの更新を表す。
	ActionUpdateSubTask Action = "update-subtask"
	// ActionDeleteSubTask はサブタスクの論理削除を表す。
	ActionDeleteSubTask Action = "delete-subtask"
)

// Actor は操作を実行する認証済みユーザーのビュー。
type Actor struct {
	// ID は実行者の一意識別子。
	ID string
	// Role は実行者の役割。
	Role Role
}

// Resource は認可判定に必要な関係情報を事前解決したリソースのビュー。
// サブタスクに対する操作では CreatorID に親タスクの作成者を、
// AssigneeID にサブタスク自身の担当者を設定する。
type Resource struct {
	// CreatorID はリソース（サブタスクの場合は親タスク）の作成者ID。
	CreatorID string
	// AssigneeID はリソースの担当者ID。未割り当ての場合は空文字列。
	AssigneeID string
	// SubTaskAssigneeIDs は削除されていないサブタスクの担当者ID一覧。
	// 閲覧アクションの判定にのみ使用する。
	SubTaskAssigneeIDs []string
}

// ReasonNotAuthorized は認可拒否の理由コード。
// リソース不存在（not-found）とは区別され、認可評価はリソースが
// 見つかった後にのみ実行される。
const ReasonNotAuthorized = "not-authorized"

// Decision は認可評価の結果。
type Decision struct {
	// Allowed は操作が許可されたかどうか。
	Allowed bool
	// Reason は拒否された場合の理由コード。許可時は空文字列。
	Reason string
}

// allow は許可の判定結果を返す。
func allow() Decision {
	return Decision{Allowed: true}
}

// deny は拒否の判定結果を返す。
func deny() Decision {
	return Decision{Allowed: false, Reason: ReasonNotAuthorized}
}

// Config は認可ポリシーの設定。
type Config struct {
	// SubTaskDeleteByAssignee はサブタスク担当者自身による削除を許可するか。
	// 旧仕様との互換性のための設定であり、デフォルトは不許可（作成者のみ）。
	SubTaskDeleteByAssignee bool
}

// Authorize は実行者が指定アクションをリソースに対して行えるかを判定する。
// ポリシー表を優先順に評価し、最初に一致した規則で確定する。副作用はない。
func (cfg Config) Authorize(actor Actor, action Action, res Resource) Decision {
	// 規則1: 管理者はすべてのアクションを実行できる
	if actor.Role.IsAdmin() {
		return allow()
	}

	isCreator := res.CreatorID == actor.ID
	isAssignee := res.AssigneeID != "" && res.AssigneeID == actor.ID

	switch action {
	case ActionAssignTask:
		// 規則2: 割り当ては作成者のみ
		if isCreator {
			return allow()
		}
	case ActionUpdateTask, ActionDeleteTask, ActionRestoreTask:
		// 規則3: 内容更新・削除・復元は作成者のみ
		if isCreator {
			return allow()
		}
	case ActionUpdateStatus:
		// 規則4: 状態変更は作成者または担当者
		if isCreator || isAssignee {
			return allow()
		}
	case ActionCreateSubTask:
		// 規則5: サブタスク作成は親タスクの作成者のみ
		if isCreator {
			return allow()
		}
	case ActionDeleteSubTask:
		// 規則5: サブタスク削除は親タスクの作成者のみ。
		// 設定により担当者自身の削除も許可できる。
		if isCreator {
			return allow()
		}
		if cfg.SubTaskDeleteByAssignee && isAssignee {
			return allow()
		}
	case ActionUpdateSubTask:
		// 規則6: サブタスク更新は親タスクの作成者またはサブタスク担当者
		if isCreator || isAssignee {
			return allow()
		}
	case ActionViewTask:
		// 規則7: 閲覧は作成者・担当者・サブタスク担当者のいずれか
		if isCreator || isAssignee {
			return allow()
		}
		for _, id := range res.SubTaskAssigneeIDs {
			if id == actor.ID {
				return allow()
			}
		}
	}

	// 規則8: 上記のいずれにも一致しなければ拒否
	return deny()
}
