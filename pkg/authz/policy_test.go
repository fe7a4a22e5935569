package authz

import "testing"

// TestRoleIsAdmin はRole.IsAdmin述語を検証する。
func TestRoleIsAdmin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		role Role
		want bool
	}{
		{
			name: "ADMINは管理者であること",
			role: RoleAdmin,
			want: true,
		},
		{
			name: "USERは管理者でないこと",
			role: RoleUser,
			want: false,
		},
		{
			name: "空の役割は管理者でないこと",
			role: Role(""),
			want: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.role.IsAdmin(); got != tt.want {
				t.Errorf("IsAdmin() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestAuthorize はポリシー表の各規則を検証する。
func TestAuthorize(t *testing.T) {
	t.Parallel()

	creator := Actor{ID: "user-creator", Role: RoleUser}
	assignee := Actor{ID: "user-assignee", Role: RoleUser}
	other := Actor{ID: "user-other", Role: RoleUser}
	admin := Actor{ID: "user-admin", Role: RoleAdmin}

	task := Resource{
		CreatorID:  creator.ID,
		AssigneeID: assignee.ID,
	}

	tests := []struct {
		name   string
		actor  Actor
		action Action
		res    Resource
		want   bool
	}{
		{
			name:   "管理者はタスク更新を実行できること",
			actor:  admin,
			action: ActionUpdateTask,
			res:    task,
			want:   true,
		},
		{
			name:   "管理者は作成者でなくても割り当てを実行できること",
			actor:  admin,
			action: ActionAssignTask,
			res:    task,
			want:   true,
		},
		{
			name:   "管理者はタスク削除を実行できること",
			actor:  admin,
			action: ActionDeleteTask,
			res:    task,
			want:   true,
		},
		{
			name:   "作成者は割り当てを実行できること",
			actor:  creator,
			action: ActionAssignTask,
			res:    task,
			want:   true,
		},
		{
			name:   "担当者は割り当てを実行できないこと",
			actor:  assignee,
			action: ActionAssignTask,
			res:    task,
			want:   false,
		},
		{
			name:   "作成者はタスク更新を実行できること",
			actor:  creator,
			action: ActionUpdateTask,
			res:    task,
			want:   true,
		},
		{
			name:   "担当者はタスク内容の更新を実行できないこと",
			actor:  assignee,
			action: ActionUpdateTask,
			res:    task,
			want:   false,
		},
		{
			name:   "作成者はタスク削除を実行できること",
			actor:  creator,
			action: ActionDeleteTask,
			res:    task,
			want:   true,
		},
		{
			name:   "作成者はタスク復元を実行できること",
			actor:  creator,
			action: ActionRestoreTask,
			res:    task,
			want:   true,
		},
		{
			name:   "第三者はタスク復元を実行できないこと",
			actor:  other,
			action: ActionRestoreTask,
			res:    task,
			want:   false,
		},
		{
			name:   "担当者は状態変更を実行できること",
			actor:  assignee,
			action: ActionUpdateStatus,
			res:    task,
			want:   true,
		},
		{
			name:   "作成者は状態変更を実行できること",
			actor:  creator,
			action: ActionUpdateStatus,
			res:    task,
			want:   true,
		},
		{
			name:   "第三者は状態変更を実行できないこと",
			actor:  other,
			action: ActionUpdateStatus,
			res:    task,
			want:   false,
		},
		{
			name:   "親タスク作成者はサブタスク作成を実行できること",
			actor:  creator,
			action: ActionCreateSubTask,
			res:    task,
			want:   true,
		},
		{
			name:   "親タスク担当者はサブタスク作成を実行できないこと",
			actor:  assignee,
			action: ActionCreateSubTask,
			res:    task,
			want:   false,
		},
		{
			name:   "サブタスク担当者はサブタスク更新を実行できること",
			actor:  assignee,
			action: ActionUpdateSubTask,
			res:    Resource{CreatorID: creator.ID, AssigneeID: assignee.ID},
			want:   true,
		},
		{
			name:   "サブタスク担当者はサブタスク削除を実行できないこと",
			actor:  assignee,
			action: ActionDeleteSubTask,
			res:    Resource{CreatorID: creator.ID, AssigneeID: assignee.ID},
			want:   false,
		},
		{
			name:   "親タスク作成者はサブタスク削除を実行できること",
			actor:  creator,
			action: ActionDeleteSubTask,
			res:    Resource{CreatorID: creator.ID, AssigneeID: assignee.ID},
			want:   true,
		},
		{
			name:   "作成者はタスクを閲覧できること",
			actor:  creator,
			action: ActionViewTask,
			res:    task,
			want:   true,
		},
		{
			name:   "担当者はタスクを閲覧できること",
			actor:  assignee,
			action: ActionViewTask,
			res:    task,
			want:   true,
		},
		{
			name:   "サブタスク担当者は親タスクを閲覧できること",
			actor:  other,
			action: ActionViewTask,
			res: Resource{
				CreatorID:          creator.ID,
				AssigneeID:         assignee.ID,
				SubTaskAssigneeIDs: []string{"someone-else", other.ID},
			},
			want: true,
		},
		{
			name:   "無関係のユーザーはタスクを閲覧できないこと",
			actor:  other,
			action: ActionViewTask,
			res:    task,
			want:   false,
		},
		{
			name:   "未割り当てタスクで空のAssigneeIDが担当者扱いされないこと",
			actor:  Actor{ID: "", Role: RoleUser},
			action: ActionUpdateStatus,
			res:    Resource{CreatorID: creator.ID},
			want:   false,
		},
	}

	cfg := Config{}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := cfg.Authorize(tt.actor, tt.action, tt.res)
			if got.Allowed != tt.want {
				t.Errorf("Authorize() = %v, want %v", got.Allowed, tt.want)
			}
			if !got.Allowed && got.Reason != ReasonNotAuthorized {
				t.Errorf("Reason = %q, want %q", got.Reason, ReasonNotAuthorized)
			}
			if got.Allowed && got.Reason != "" {
				t.Errorf("許可時のReason = %q, want 空文字列", got.Reason)
			}
		})
	}
}

// TestAuthorizeSubTaskDeleteByAssignee は設定によるサブタスク削除ポリシーの切り替えを検証する。
func TestAuthorizeSubTaskDeleteByAssignee(t *testing.T) {
	t.Parallel()

	assignee := Actor{ID: "user-assignee", Role: RoleUser}
	res := Resource{CreatorID: "user-creator", AssigneeID: assignee.ID}

	t.Run("設定を有効にするとサブタスク担当者が削除できること", func(t *testing.T) {
		t.Parallel()
		cfg := Config{SubTaskDeleteByAssignee: true}
		if got := cfg.Authorize(assignee, ActionDeleteSubTask, res); !got.Allowed {
			t.Error("Authorize() = 拒否, want 許可")
		}
	})

	t.Run("デフォルト設定ではサブタスク担当者が削除できないこと", func(t *testing.T) {
		t.Parallel()
		cfg := Config{}
		if got := cfg.Authorize(assignee, ActionDeleteSubTask, res); got.Allowed {
			t.Error("Authorize() = 許可, want 拒否")
		}
	})
}
