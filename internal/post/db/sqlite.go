package postdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// OpenSQLite はSQLiteデータベースを開き、マイグレーションを適用する。
// pathに ":memory:" を指定するとインメモリDBとなる。
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if path == ":memory:" {
		// インメモリDBは接続ごとに別物になるため1接続に固定する
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("データベース接続の確認に失敗: %w", err)
	}
	if err := MigrateSQLite(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return db, nil
}

// Queries はSQLiteに対するクエリ実行オブジェクト。
type Queries struct {
	db *sql.DB
}

// New は新しいQueriesを生成する。
func New(db *sql.DB) *Queries {
	return &Queries{db: db}
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

const createPost = `
INSERT INTO posts (id, title, created_at, updated_at)
VALUES (?, ?, ?, ?)
RETURNING id, title, created_at, updated_at`

// CreatePost は投稿を作成し、保存した内容を返す。
func (q *Queries) CreatePost(ctx context.Context, arg CreatePostParams) (Post, error) {
	id, err := newID()
	if err != nil {
		return Post{}, err
	}
	ts := now().Format(timeLayout)

	p, err := scanSQLitePost(q.db.QueryRowContext(ctx, createPost, id, arg.Title, ts, ts))
	if err != nil {
		return Post{}, fmt.Errorf("投稿の作成に失敗: %w", err)
	}
	return p, nil
}

const getPost = `
SELECT id, title, created_at, updated_at
FROM posts
WHERE id = ?`

// GetPost はIDで投稿を取得する。存在しない場合は ErrNotFound を返す。
func (q *Queries) GetPost(ctx context.Context, id string) (Post, error) {
	p, err := scanSQLitePost(q.db.QueryRowContext(ctx, getPost, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Post{}, ErrNotFound
	}
	if err != nil {
		return Post{}, fmt.Errorf("投稿の取得に失敗: %w", err)
	}
	return p, nil
}

const updatePost = `
UPDATE posts
SET title = ?, updated_at = ?
WHERE id = ?
RETURNING id, title, created_at, updated_at`

// UpdatePost は投稿のタイトルを更新し、updated_atを更新する。
func (q *Queries) UpdatePost(ctx context.Context, arg UpdatePostParams) (Post, error) {
	p, err := scanSQLitePost(q.db.QueryRowContext(ctx, updatePost, arg.Title, now().Format(timeLayout), arg.ID))
	if errors.Is(err, sql.ErrNoRows) {
		return Post{}, ErrNotFound
	}
	if err != nil {
		return Post{}, fmt.Errorf("投稿の更新に失敗: %w", err)
	}
	return p, nil
}

// DeletePost は投稿を物理削除する。
func (q *Queries) DeletePost(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM posts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("投稿の削除に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const listPosts = `
SELECT id, title, created_at, updated_at
FROM posts
ORDER BY created_at, id`

// ListPosts はすべての投稿を作成日時の昇順で返す。
func (q *Queries) ListPosts(ctx context.Context) ([]Post, error) {
	rows, err := q.db.QueryContext(ctx, listPosts)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	posts := []Post{}
	for rows.Next() {
		p, err := scanSQLitePost(rows)
		if err != nil {
			return nil, fmt.Errorf("投稿の読み取りに失敗: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗: %w", err)
	}
	return posts, nil
}

const createUser = `
INSERT INTO users (id, name, email, password_hash, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id, name, email, password_hash, created_at, updated_at`

// CreateUser はユーザーを作成する。メールアドレスが重複する場合は ErrDuplicateEmail を返す。
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	id, err := newID()
	if err != nil {
		return User{}, err
	}
	ts := now().Format(timeLayout)

	u, err := scanSQLiteUser(q.db.QueryRowContext(ctx, createUser, id, arg.Name, arg.Email, arg.PasswordHash, ts, ts))
	if isSQLiteUniqueViolation(err) {
		return User{}, ErrDuplicateEmail
	}
	if err != nil {
		return User{}, fmt.Errorf("ユーザーの作成に失敗: %w", err)
	}
	return u, nil
}

// GetUserByID はIDでユーザーを取得する。
func (q *Queries) GetUserByID(ctx context.Context, id string) (User, error) {
	return q.getUser(ctx, "id", id)
}

// GetUserByEmail はメールアドレスでユーザーを取得する。
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return q.getUser(ctx, "email", email)
}

// getUser は指定カラムの一致でユーザーを1件取得する。columnは固定値のみ渡すこと。
func (q *Queries) getUser(ctx context.Context, column, value string) (User, error) {
	query := "SELECT id, name, email, password_hash, created_at, updated_at FROM users WHERE " + column + " = ?"
	u, err := scanSQLiteUser(q.db.QueryRowContext(ctx, query, value))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}
	return u, nil
}

// scanSQLitePost は1行を投稿として読み取る。
func scanSQLitePost(row rowScanner) (Post, error) {
	var (
		p                    Post
		createdAt, updatedAt string
	)
	if err := row.Scan(&p.ID, &p.Title, &createdAt, &updatedAt); err != nil {
		return Post{}, err
	}
	var err error
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return Post{}, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Post{}, err
	}
	return p, nil
}

// scanSQLiteUser は1行をユーザーとして読み取る。
func scanSQLiteUser(row rowScanner) (User, error) {
	var (
		u                    User
		createdAt, updatedAt string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &createdAt, &updatedAt); err != nil {
		return User{}, err
	}
	var err error
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return User{}, err
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return User{}, err
	}
	return u, nil
}

// parseTime はSQLiteに保存した日時文字列をUTCのtime.Timeに変換する。
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("日時の解析に失敗: %q: %w", s, err)
	}
	return t.UTC(), nil
}

// isSQLiteUniqueViolation は一意制約違反かどうかを判定する。
func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	// 拡張エラーコードが無効な接続では基本コードとメッセージで判定する
	return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sqliteErr.Error(), "UNIQUE")
}
