// Package postdb は投稿とユーザーの永続化を担当する。
//
// SQLite（database/sql）、PostgreSQL（pgx）、S3の各バックエンドを提供し、
// いずれも同じ ErrNotFound / ErrDuplicateEmail を返す。
package postdb

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound は指定されたレコードが存在しないことを表す。
	ErrNotFound = errors.New("レコードが見つかりません")
	// ErrDuplicateEmail はメールアドレスが既に登録されていることを表す。
	ErrDuplicateEmail = errors.New("メールアドレスは既に登録されています")
)

// Post は投稿。
type Post struct {
	// ID は投稿の一意識別子（UUIDv7）。
	ID string `json:"id"`
	// Title は投稿のタイトル。
	Title string `json:"title"`
	// CreatedAt は作成日時（UTC）。
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt は最終更新日時（UTC）。
	UpdatedAt time.Time `json:"updated_at"`
}

// User は認証主体となるユーザー。
type User struct {
	// ID はユーザーの一意識別子（UUIDv7）。
	ID string
	// Name は表示名。
	Name string
	// Email はログインに使用するメールアドレス（小文字）。
	Email string
	// PasswordHash はbcryptでハッシュ化したパスワード。
	PasswordHash string
	// CreatedAt は作成日時（UTC）。
	CreatedAt time.Time
	// UpdatedAt は最終更新日時（UTC）。
	UpdatedAt time.Time
}

// CreatePostParams は投稿作成時のパラメータ。
type CreatePostParams struct {
	Title string
}

// UpdatePostParams は投稿更新時のパラメータ。
type UpdatePostParams struct {
	ID    string
	Title string
}

// CreateUserParams はユーザー作成時のパラメータ。
type CreateUserParams struct {
	Name         string
	Email        string
	PasswordHash string
}

// timeLayout はSQLiteに保存する日時の形式。固定長のため文字列比較で順序が保たれる。
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// newID は時刻順に並ぶUUIDv7を生成する。
func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("IDの生成に失敗: %w", err)
	}
	return id.String(), nil
}

// now は現在時刻をUTC・マイクロ秒精度で返す。
// PostgreSQLのtimestamptzと精度を揃える。
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
