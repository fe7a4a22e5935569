package task

import (
	"context"
	"log"

	"github.com/nao1215/taskhub/internal/identity"
	taskdb "github.com/nao1215/taskhub/internal/task/db"
	"github.com/nao1215/taskhub/pkg/audience"
	"github.com/nao1215/taskhub/pkg/event"
)

// audienceMember はユーザーIDを通知先メンバーへ実体化する。
// 解決に失敗しても変更自体は成功済みなので、ログに残してID だけで続行する。
func (s *Service) audienceMember(ctx context.Context, userID string) audience.Member {
	if userID == "" {
		return audience.Member{}
	}
	m, err := s.directory.Member(ctx, userID)
	if err != nil {
		log.Printf("[Task] 通知先ユーザーの解決に失敗 (id=%s): %v", userID, err)
		return audience.Member{ID: userID}
	}
	return audience.Member{ID: m.ID, Name: m.FullName}
}

// loadAudienceSnapshot は通知先解決に必要な関係者を値として実体化する。
// 非同期ワーカーへはこのスナップショットから導出した値だけが渡り、
// ワーカー側でエンティティの追加読み込みは発生しない。
func (s *Service) loadAudienceSnapshot(ctx context.Context, t taskdb.Task, subs []taskdb.SubTask, needAdmins bool) audience.Snapshot {
	snap := audience.Snapshot{
		Creator: s.audienceMember(ctx, t.CreatedBy),
	}

	if t.AssigneeID != "" {
		m := s.audienceMember(ctx, t.AssigneeID)
		snap.Assignee = &m
	}

	for _, st := range subs {
		if st.IsDeleted != 0 || st.AssigneeID == "" {
			continue
		}
		snap.SubTaskAssignees = append(snap.SubTaskAssignees, s.audienceMember(ctx, st.AssigneeID))
	}

	if needAdmins {
		admins, err := s.directory.Admins(ctx)
		if err != nil {
			log.Printf("[Task] 管理者一覧の解決に失敗: %v", err)
		}
		for _, a := range admins {
			snap.Admins = append(snap.Admins, audience.Member{ID: a.ID, Name: a.FullName})
		}
	}

	return snap
}

// notify はコミット済みの変更について通知先を解決し、ファンアウトへ引き渡す。
// この先の処理はすべて非同期であり、失敗しても呼び出し元へは伝播しない。
func (s *Service) notify(ctx context.Context, t taskdb.Task, subs []taskdb.SubTask, actor identity.Member, kind audience.Kind, category event.Category, title, message string) {
	needAdmins := kind == audience.KindDeleted && !actor.Role.IsAdmin()
	snap := s.loadAudienceSnapshot(ctx, t, subs, needAdmins)

	recipients := audience.Resolve(snap, audience.Mutation{
		Kind:         kind,
		ActorID:      actor.ID,
		ActorIsAdmin: actor.Role.IsAdmin(),
	})
	if len(recipients) == 0 {
		return
	}

	s.publisher.Publish(recipients, title, message, t.ID, t.Title, category, actor.ID)
}
