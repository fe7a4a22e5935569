package db

import (
	"context"
	"time"
)

// User はusersテーブルの1行。
type User struct {
	// ID はユーザーの一意識別子（UUID）。
	ID string
	// Email はメールアドレス。
	Email string
	// FullName は表示名。
	FullName string
	// Role は役割（USER | ADMIN）。
	Role string
	// FcmToken はプッシュ配信先のFCMトークン。未登録の場合は空文字列。
	FcmToken string
	// CreatedAt はユーザーの作成日時。
	CreatedAt time.Time
}

const createUser = `
INSERT INTO users (id, email, full_name, role)
VALUES (?, ?, ?, ?)
`

// CreateUserParams はCreateUserのパラメータ。
type CreateUserParams struct {
	ID       string
	Email    string
	FullName string
	Role     string
}

// CreateUser は新しいユーザーを作成する。
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) error {
	_, err := q.db.ExecContext(ctx, createUser, arg.ID, arg.Email, arg.FullName, arg.Role)
	return err
}

const getUserByID = `
SELECT id, email, full_name, role, fcm_token, created_at
FROM users
WHERE id = ?
`

// GetUserByID はIDでユーザーを取得する。
func (q *Queries) GetUserByID(ctx context.Context, id string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByID, id)
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.FcmToken, &u.CreatedAt)
	return u, err
}

const listUsersByRole = `
SELECT id, email, full_name, role, fcm_token, created_at
FROM users
WHERE role = ?
ORDER BY created_at ASC
`

// ListUsersByRole は指定された役割のユーザー一覧を返す。
func (q *Queries) ListUsersByRole(ctx context.Context, role string) ([]User, error) {
	rows, err := q.db.QueryContext(ctx, listUsersByRole, role)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.FcmToken, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

const updateFcmToken = `
UPDATE users SET fcm_token = ? WHERE id = ?
`

// UpdateFcmTokenParams はUpdateFcmTokenのパラメータ。
type UpdateFcmTokenParams struct {
	FcmToken string
	ID       string
}

// UpdateFcmToken はユーザーのFCMトークンを更新する。
// 空文字列を渡すと登録を破棄する。
func (q *Queries) UpdateFcmToken(ctx context.Context, arg UpdateFcmTokenParams) error {
	_, err := q.db.ExecContext(ctx, updateFcmToken, arg.FcmToken, arg.ID)
	return err
}

const getFcmToken = `
SELECT fcm_token FROM users WHERE id = ?
`

// GetFcmToken はユーザーの現在のFCMトークンを返す。
func (q *Queries) GetFcmToken(ctx context.Context, id string) (string, error) {
	row := q.db.QueryRowContext(ctx, getFcmToken, id)
	var token string
	err := row.Scan(&token)
	return token, err
}
