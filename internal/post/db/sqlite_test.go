package postdb

import (
	"errors"
	"path/filepath"
	"testing"
)

// newTestQueries はインメモリSQLiteを使ったQueriesを返す。
func newTestQueries(t *testing.T) *Queries {
	t.Helper()

	db, err := OpenSQLite(testContext(t), ":memory:")
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db)
}

// TestQueriesPosts はSQLiteの投稿ストアを検証する。
func TestQueriesPosts(t *testing.T) {
	t.Parallel()

	runPostStoreTests(t, func(t *testing.T) postStore {
		return newTestQueries(t)
	})
}

// TestQueriesUsers はSQLiteのユーザーストアを検証する。
func TestQueriesUsers(t *testing.T) {
	t.Parallel()

	t.Run("作成したユーザーをIDとメールアドレスで取得できること", func(t *testing.T) {
		t.Parallel()
		q := newTestQueries(t)

		created, err := q.CreateUser(testContext(t), CreateUserParams{
			Name:         "テストユーザー",
			Email:        "user@example.com",
			PasswordHash: "hash",
		})
		if err != nil {
			t.Fatalf("CreateUser()でエラーが発生: %v", err)
		}

		byID, err := q.GetUserByID(testContext(t), created.ID)
		if err != nil {
			t.Fatalf("GetUserByID()でエラーが発生: %v", err)
		}
		if byID.Email != "user@example.com" || byID.PasswordHash != "hash" {
			t.Errorf("GetUserByID() = %+v", byID)
		}

		byEmail, err := q.GetUserByEmail(testContext(t), "user@example.com")
		if err != nil {
			t.Fatalf("GetUserByEmail()でエラーが発生: %v", err)
		}
		if byEmail.ID != created.ID {
			t.Errorf("ID = %q, want %q", byEmail.ID, created.ID)
		}
	})

	t.Run("存在しないユーザーはErrNotFoundになること", func(t *testing.T) {
		t.Parallel()
		q := newTestQueries(t)

		if _, err := q.GetUserByID(testContext(t), "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetUserByID() error = %v, want ErrNotFound", err)
		}
		if _, err := q.GetUserByEmail(testContext(t), "missing@example.com"); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetUserByEmail() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("重複したメールアドレスはErrDuplicateEmailになること", func(t *testing.T) {
		t.Parallel()
		q := newTestQueries(t)

		arg := CreateUserParams{Name: "a", Email: "dup@example.com", PasswordHash: "hash"}
		if _, err := q.CreateUser(testContext(t), arg); err != nil {
			t.Fatalf("CreateUser()でエラーが発生: %v", err)
		}
		if _, err := q.CreateUser(testContext(t), arg); !errors.Is(err, ErrDuplicateEmail) {
			t.Errorf("2回目のCreateUser() error = %v, want ErrDuplicateEmail", err)
		}
	})
}

// TestQueriesRejectsBlankTitle はスキーマの制約で空のタイトルが保存されないことを検証する。
func TestQueriesRejectsBlankTitle(t *testing.T) {
	t.Parallel()
	q := newTestQueries(t)

	for _, title := range []string{"", "   "} {
		if _, err := q.CreatePost(testContext(t), CreatePostParams{Title: title}); err == nil {
			t.Errorf("CreatePost(%q)でエラーが返らなかった", title)
		}
	}

	posts, err := q.ListPosts(testContext(t))
	if err != nil {
		t.Fatalf("ListPosts()でエラーが発生: %v", err)
	}
	if len(posts) != 0 {
		t.Errorf("件数 = %d, want 0", len(posts))
	}
}

// TestOpenSQLiteFile はファイルDBを再度開いてもデータとマイグレーション状態が保たれることを検証する。
func TestOpenSQLiteFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "post.db")

	db, err := OpenSQLite(testContext(t), path)
	if err != nil {
		t.Fatalf("OpenSQLite()でエラーが発生: %v", err)
	}
	created, err := New(db).CreatePost(testContext(t), CreatePostParams{Title: "永続化"})
	if err != nil {
		t.Fatalf("CreatePost()でエラーが発生: %v", err)
	}
	db.Close()

	reopened, err := OpenSQLite(testContext(t), path)
	if err != nil {
		t.Fatalf("2回目のOpenSQLite()でエラーが発生: %v", err)
	}
	t.Cleanup(func() { reopened.Close() })

	got, err := New(reopened).GetPost(testContext(t), created.ID)
	if err != nil {
		t.Fatalf("GetPost()でエラーが発生: %v", err)
	}
	if got.Title != "永続化" {
		t.Errorf("Title = %q, want %q", got.Title, "永続化")
	}
}
