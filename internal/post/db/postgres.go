package postdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// pgUniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const pgUniqueViolation = "23505"

// OpenPostgres はPostgreSQLへの接続プールを作成し、マイグレーションを適用する。
func OpenPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("DATABASE_URLの解析に失敗: %w", err)
	}
	cfg.MaxConns = 10
	// プリペアドステートメントを接続ごとにキャッシュする
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("データベース接続の確認に失敗: %w", err)
	}

	// マイグレーションはdatabase/sql経由で適用する
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()
	if err := MigratePostgres(ctx, sqlDB); err != nil {
		pool.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return pool, nil
}

// PgStore はPostgreSQLに対するクエリ実行オブジェクト。
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore は新しいPgStoreを生成する。
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// CreatePost は投稿を作成し、保存した内容を返す。
func (s *PgStore) CreatePost(ctx context.Context, arg CreatePostParams) (Post, error) {
	id, err := newID()
	if err != nil {
		return Post{}, err
	}
	ts := now()

	p, err := scanPgPost(s.pool.QueryRow(ctx, `
		INSERT INTO posts (id, title, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		RETURNING id, title, created_at, updated_at`, id, arg.Title, ts))
	if err != nil {
		return Post{}, fmt.Errorf("投稿の作成に失敗: %w", err)
	}
	return p, nil
}

// GetPost はIDで投稿を取得する。存在しない場合は ErrNotFound を返す。
func (s *PgStore) GetPost(ctx context.Context, id string) (Post, error) {
	p, err := scanPgPost(s.pool.QueryRow(ctx, `
		SELECT id, title, created_at, updated_at
		FROM posts
		WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Post{}, ErrNotFound
	}
	if err != nil {
		return Post{}, fmt.Errorf("投稿の取得に失敗: %w", err)
	}
	return p, nil
}

// UpdatePost は投稿のタイトルを更新し、updated_atを更新する。
func (s *PgStore) UpdatePost(ctx context.Context, arg UpdatePostParams) (Post, error) {
	p, err := scanPgPost(s.pool.QueryRow(ctx, `
		UPDATE posts
		SET title = $1, updated_at = $2
		WHERE id = $3
		RETURNING id, title, created_at, updated_at`, arg.Title, now(), arg.ID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Post{}, ErrNotFound
	}
	if err != nil {
		return Post{}, fmt.Errorf("投稿の更新に失敗: %w", err)
	}
	return p, nil
}

// DeletePost は投稿を物理削除する。
func (s *PgStore) DeletePost(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM posts WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("投稿の削除に失敗: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPosts はすべての投稿を作成日時の昇順で返す。
func (s *PgStore) ListPosts(ctx context.Context) ([]Post, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, created_at, updated_at
		FROM posts
		ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗: %w", err)
	}
	posts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Post, error) {
		return scanPgPost(row)
	})
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗: %w", err)
	}
	return posts, nil
}

// CreateUser はユーザーを作成する。メールアドレスが重複する場合は ErrDuplicateEmail を返す。
func (s *PgStore) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	id, err := newID()
	if err != nil {
		return User{}, err
	}

	u, err := scanPgUser(s.pool.QueryRow(ctx, `
		INSERT INTO users (id, name, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id, name, email, password_hash, created_at, updated_at`,
		id, arg.Name, arg.Email, arg.PasswordHash, now()))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return User{}, ErrDuplicateEmail
	}
	if err != nil {
		return User{}, fmt.Errorf("ユーザーの作成に失敗: %w", err)
	}
	return u, nil
}

// GetUserByID はIDでユーザーを取得する。
func (s *PgStore) GetUserByID(ctx context.Context, id string) (User, error) {
	return s.getUser(ctx, "id", id)
}

// GetUserByEmail はメールアドレスでユーザーを取得する。
func (s *PgStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.getUser(ctx, "email", email)
}

// getUser は指定カラムの一致でユーザーを1件取得する。columnは固定値のみ渡すこと。
func (s *PgStore) getUser(ctx context.Context, column, value string) (User, error) {
	u, err := scanPgUser(s.pool.QueryRow(ctx,
		"SELECT id, name, email, password_hash, created_at, updated_at FROM users WHERE "+column+" = $1", value))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}
	return u, nil
}

// scanPgPost は1行を投稿として読み取る。
func scanPgPost(row pgx.Row) (Post, error) {
	var p Post
	if err := row.Scan(&p.ID, &p.Title, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Post{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

// scanPgUser は1行をユーザーとして読み取る。
func scanPgUser(row pgx.Row) (User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return User{}, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}
