// Package audience は変更通知の宛先集合を決定するリゾルバを提供する。
//
// リゾルバは事前に実体化された値構造体（Snapshot）のみを入力とする純粋関数で、
// ストアへのアクセスや遅延ロードを一切行わない。非同期の配信ワーカーへ
// 渡る前に、すべての関係データはここで確定する。
package audience

// Member は通知の宛先候補となるユーザーの実体化済みビュー。
type Member struct {
	// ID はユーザーの一意識別子。
	ID string
	// Name はユーザーの表示名。通知本文の組み立てに使用する。
	Name string
}

// Kind は宛先解決の対象となる変更の種類を表す。
type Kind string

const (
	// KindUpdated はタスクまたはサブタスクの内容更新を表す。
	KindUpdated Kind = "updated"
	// KindStatusChanged は状態変更を表す。
	KindStatusChanged Kind = "status-changed"
	// KindAssigned は担当者の割り当てを表す。宛先は新しい担当者のみ。
	KindAssigned Kind = "assigned"
	// KindDeleted は論理削除を表す。一般ユーザーによる削除は
	// 利害関係者ではなく全管理者へエスカレーションされる。
	KindDeleted Kind = "deleted"
	// KindRestored は論理削除からの復元を表す。
	KindRestored Kind = "restored"
)

// Snapshot は宛先解決に必要な関係データの実体化済みスナップショット。
// サブタスクへの変更では Creator / Assignee に親タスクのものを設定し、
// SubTaskAssignees にそのサブタスクの担当者を含める。
type Snapshot struct {
	// Creator はタスク（サブタスクの場合は親タスク）の作成者。
	Creator Member
	// Assignee はタスクの担当者。未割り当ての場合はnil。
	Assignee *Member
	// SubTaskAssignees は削除されていないサブタスクの担当者一覧。
	SubTaskAssignees []Member
	// NewAssignee は割り当て変更の新しい担当者。KindAssignedでのみ使用する。
	NewAssignee *Member
	// Admins は全管理者の一覧。KindDeletedのエスカレーションでのみ使用する。
	Admins []Member
}

// Mutation は実行された変更と実行者の情報。
type Mutation struct {
	// Kind は変更の種類。
	Kind Kind
	// ActorID は変更を実行したユーザーのID。宛先からは無条件に除外される。
	ActorID string
	// ActorIsAdmin は実行者が管理者かどうか。削除エスカレーションの分岐に使用する。
	ActorIsAdmin bool
}

// Resolve は変更に対する通知宛先の集合を返す。
// 同一ユーザーが複数の役割を持つ場合も宛先には一度だけ現れ、
// 実行者自身は役割にかかわらず含まれない。宛先が空になることは正常であり、
// その場合は通知イベントが一切発行されない。
func Resolve(snap Snapshot, m Mutation) []Member {
	switch {
	case m.Kind == KindAssigned:
		// 割り当ては新しい担当者のみに通知する
		if snap.NewAssignee == nil || snap.NewAssignee.ID == m.ActorID {
			return nil
		}
		return []Member{*snap.NewAssignee}
	case m.Kind == KindDeleted && !m.ActorIsAdmin:
		// 一般ユーザーによる削除は全管理者へエスカレーションする。
		// 実行者が管理者を兼ねていても除外される。
		return dedupe(snap.Admins, m.ActorID)
	default:
		members := make([]Member, 0, 2+len(snap.SubTaskAssignees))
		members = append(members, snap.Creator)
		if snap.Assignee != nil {
			members = append(members, *snap.Assignee)
		}
		members = append(members, snap.SubTaskAssignees...)
		return dedupe(members, m.ActorID)
	}
}

// dedupe はIDの重複と実行者自身を除いた宛先一覧を入力順で返す。
func dedupe(members []Member, actorID string) []Member {
	seen := make(map[string]struct{}, len(members))
	result := make([]Member, 0, len(members))
	for _, member := range members {
		if member.ID == "" || member.ID == actorID {
			continue
		}
		if _, ok := seen[member.ID]; ok {
			continue
		}
		seen[member.ID] = struct{}{}
		result = append(result, member)
	}
	return result
}
