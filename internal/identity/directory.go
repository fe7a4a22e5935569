package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	identitydb "github.com/nao1215/taskhub/internal/identity/db"
	"github.com/nao1215/taskhub/pkg/authz"
)

// ErrMemberNotFound はユーザーが存在しないことを表す。
var ErrMemberNotFound = errors.New("ユーザーが見つかりません")

// Member は実体化済みのユーザー情報。
// 遅延ロードを持たない値であり、非同期ワーカーへ安全に渡せる。
type Member struct {
	// ID はユーザーの一意識別子。
	ID string
	// Email はメールアドレス。
	Email string
	// FullName は表示名。
	FullName string
	// Role は役割。
	Role authz.Role
	// FCMToken はプッシュ配信先。未登録の場合は空文字列。
	FCMToken string
}

// Directory はユーザーディレクトリ。役割と配信先の解決を担当する。
type Directory struct {
	// queries はユーザーテーブルへのクエリ実行オブジェクト。
	queries *identitydb.Queries
}

// NewDirectory は新しいユーザーディレクトリを生成する。
func NewDirectory(queries *identitydb.Queries) *Directory {
	return &Directory{queries: queries}
}

// toMember はDB行をMemberに変換する。
func toMember(u identitydb.User) Member {
	return Member{
		ID:       u.ID,
		Email:    u.Email,
		FullName: u.FullName,
		Role:     authz.Role(u.Role),
		FCMToken: u.FcmToken,
	}
}

// Member はIDでユーザーを解決する。
// 存在しない場合はErrMemberNotFoundを返す。
func (d *Directory) Member(ctx context.Context, id string) (Member, error) {
	u, err := d.queries.GetUserByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Member{}, ErrMemberNotFound
	}
	if err != nil {
		return Member{}, fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}
	return toMember(u), nil
}

// Admins は全管理者の一覧を返す。
// 一般ユーザーによる削除を管理者へエスカレーションする際に使用する。
func (d *Directory) Admins(ctx context.Context) ([]Member, error) {
	users, err := d.queries.ListUsersByRole(ctx, string(authz.RoleAdmin))
	if err != nil {
		return nil, fmt.Errorf("管理者一覧の取得に失敗: %w", err)
	}

	members := make([]Member, 0, len(users))
	for _, u := range users {
		members = append(members, toMember(u))
	}
	return members, nil
}

// PushDestination はユーザーの現在のプッシュ配信先を返す。
// 配信時点の最新のコミット済みの値を読むため、スナップショットではなく
// このメソッドを経由する。未登録の場合は空文字列を返す。
func (d *Directory) PushDestination(ctx context.Context, userID string) (string, error) {
	token, err := d.queries.GetFcmToken(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrMemberNotFound
	}
	if err != nil {
		return "", fmt.Errorf("配信先の取得に失敗: %w", err)
	}
	return token, nil
}

// RegisterPushDestination はユーザーのプッシュ配信先を登録する。
func (d *Directory) RegisterPushDestination(ctx context.Context, userID, token string) error {
	if err := d.queries.UpdateFcmToken(ctx, identitydb.UpdateFcmTokenParams{
		FcmToken: token,
		ID:       userID,
	}); err != nil {
		return fmt.Errorf("配信先の登録に失敗: %w", err)
	}
	return nil
}

// ClearPushDestination はユーザーのプッシュ配信先を破棄する。
// 配信先が恒久的に無効と判明した場合にファンアウトエンジンから呼ばれる。
func (d *Directory) ClearPushDestination(ctx context.Context, userID string) error {
	if err := d.queries.UpdateFcmToken(ctx, identitydb.UpdateFcmTokenParams{
		FcmToken: "",
		ID:       userID,
	}); err != nil {
		return fmt.Errorf("配信先の破棄に失敗: %w", err)
	}
	return nil
}
