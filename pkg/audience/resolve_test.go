package audience

import (
	"reflect"
	"testing"
)

// ids はMemberスライスからID一覧を取り出すヘルパー関数。
func ids(members []Member) []string {
	result := make([]string, 0, len(members))
	for _, m := range members {
		m := m
		result = append(result, m.ID)
	}
	return result
}

// TestResolve は宛先解決の基本規則を検証する。
func TestResolve(t *testing.T) {
	t.Parallel()

	creator := Member{ID: "user-creator", Name: "作成者"}
	assignee := Member{ID: "user-assignee", Name: "担当者"}
	subAssignee := Member{ID: "user-sub", Name: "サブタスク担当者"}

	tests := []struct {
		name string
		snap Snapshot
		m    Mutation
		want []string
	}{
		{
			name: "更新では作成者と担当者に通知されること",
			snap: Snapshot{Creator: creator, Assignee: &assignee},
			m:    Mutation{Kind: KindUpdated, ActorID: "user-other"},
			want: []string{creator.ID, assignee.ID},
		},
		{
			name: "実行者自身は宛先に含まれないこと",
			snap: Snapshot{Creator: creator, Assignee: &assignee},
			m:    Mutation{Kind: KindUpdated, ActorID: creator.ID},
			want: []string{assignee.ID},
		},
		{
			name: "作成者と担当者が同一人物の場合は一度だけ通知されること",
			snap: Snapshot{Creator: creator, Assignee: &creator},
			m:    Mutation{Kind: KindStatusChanged, ActorID: "user-other"},
			want: []string{creator.ID},
		},
		{
			name: "サブタスク担当者も宛先に含まれること",
			snap: Snapshot{
				Creator:          creator,
				Assignee:         &assignee,
				SubTaskAssignees: []Member{subAssignee, assignee},
			},
			m:    Mutation{Kind: KindUpdated, ActorID: "user-other"},
			want: []string{creator.ID, assignee.ID, subAssignee.ID},
		},
		{
			name: "未割り当てタスクを作成者自身が変更した場合は宛先が空であること",
			snap: Snapshot{Creator: creator},
			m:    Mutation{Kind: KindStatusChanged, ActorID: creator.ID},
			want: []string{},
		},
		{
			name: "割り当てでは新しい担当者のみに通知されること",
			snap: Snapshot{Creator: creator, Assignee: &assignee, NewAssignee: &subAssignee},
			m:    Mutation{Kind: KindAssigned, ActorID: creator.ID},
			want: []string{subAssignee.ID},
		},
		{
			name: "自分自身への割り当てでは宛先が空であること",
			snap: Snapshot{Creator: creator, NewAssignee: &creator},
			m:    Mutation{Kind: KindAssigned, ActorID: creator.ID},
			want: []string{},
		},
		{
			name: "復元では利害関係者に通知されること",
			snap: Snapshot{Creator: creator, Assignee: &assignee},
			m:    Mutation{Kind: KindRestored, ActorID: "user-admin", ActorIsAdmin: true},
			want: []string{creator.ID, assignee.ID},
		},
		{
			name: "IDが空のメンバーは宛先に含まれないこと",
			snap: Snapshot{Creator: creator, SubTaskAssignees: []Member{{ID: ""}}},
			m:    Mutation{Kind: KindUpdated, ActorID: "user-other"},
			want: []string{creator.ID},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ids(Resolve(tt.snap, tt.m))
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Resolve() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestResolveDeleteEscalation は削除時の管理者エスカレーションを検証する。
func TestResolveDeleteEscalation(t *testing.T) {
	t.Parallel()

	creator := Member{ID: "user-creator", Name: "作成者"}
	assignee := Member{ID: "user-assignee", Name: "担当者"}
	admin1 := Member{ID: "admin-1", Name: "管理者1"}
	admin2 := Member{ID: "admin-2", Name: "管理者2"}

	t.Run("一般ユーザーによる削除では全管理者に通知されること", func(t *testing.T) {
		t.Parallel()
		snap := Snapshot{
			Creator:  creator,
			Assignee: &assignee,
			Admins:   []Member{admin1, admin2},
		}
		got := ids(Resolve(snap, Mutation{Kind: KindDeleted, ActorID: creator.ID}))
		want := []string{admin1.ID, admin2.ID}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Resolve() = %v, want %v", got, want)
		}
	})

	t.Run("実行者が管理者を兼ねる場合は自分を除いた管理者に通知されること", func(t *testing.T) {
		t.Parallel()
		snap := Snapshot{
			Creator: admin1,
			Admins:  []Member{admin1, admin2},
		}
		// 作成者だが管理者権限を持たない役割で削除したケースを想定する
		got := ids(Resolve(snap, Mutation{Kind: KindDeleted, ActorID: admin1.ID}))
		want := []string{admin2.ID}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Resolve() = %v, want %v", got, want)
		}
	})

	t.Run("管理者が存在しない場合は宛先が空であること", func(t *testing.T) {
		t.Parallel()
		snap := Snapshot{Creator: creator, Assignee: &assignee}
		got := Resolve(snap, Mutation{Kind: KindDeleted, ActorID: creator.ID})
		if len(got) != 0 {
			t.Errorf("Resolve() = %v, want 空", got)
		}
	})

	t.Run("管理者による削除では利害関係者に通知されること", func(t *testing.T) {
		t.Parallel()
		snap := Snapshot{
			Creator:  creator,
			Assignee: &assignee,
			Admins:   []Member{admin1, admin2},
		}
		got := ids(Resolve(snap, Mutation{Kind: KindDeleted, ActorID: admin1.ID, ActorIsAdmin: true}))
		want := []string{creator.ID, assignee.ID}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Resolve() = %v, want %v", got, want)
		}
	})
}
