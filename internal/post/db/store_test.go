package postdb

import (
	"context"
	"errors"
	"testing"
)

// postStore は各バックエンドが満たす投稿ストアの操作。
type postStore interface {
	CreatePost(ctx context.Context, arg CreatePostParams) (Post, error)
	GetPost(ctx context.Context, id string) (Post, error)
	UpdatePost(ctx context.Context, arg UpdatePostParams) (Post, error)
	DeletePost(ctx context.Context, id string) error
	ListPosts(ctx context.Context) ([]Post, error)
}

// runPostStoreTests はバックエンド共通の投稿ストアの振る舞いを検証する。
// newStore はサブテストごとに空のストアを返すこと。
func runPostStoreTests(t *testing.T, newStore func(t *testing.T) postStore) {
	t.Helper()

	t.Run("作成した投稿を取得できること", func(t *testing.T) {
		store := newStore(t)

		created, err := store.CreatePost(testContext(t), CreatePostParams{Title: "El post de prueba"})
		if err != nil {
			t.Fatalf("CreatePost()でエラーが発生: %v", err)
		}
		if created.ID == "" {
			t.Fatal("IDが割り当てられていない")
		}
		if created.CreatedAt.IsZero() || !created.CreatedAt.Equal(created.UpdatedAt) {
			t.Errorf("作成直後の日時が不正: created_at=%v, updated_at=%v", created.CreatedAt, created.UpdatedAt)
		}

		got, err := store.GetPost(testContext(t), created.ID)
		if err != nil {
			t.Fatalf("GetPost()でエラーが発生: %v", err)
		}
		if got.Title != "El post de prueba" {
			t.Errorf("Title = %q, want %q", got.Title, "El post de prueba")
		}
		if !got.CreatedAt.Equal(created.CreatedAt) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created.CreatedAt)
		}
	})

	t.Run("存在しない投稿はErrNotFoundになること", func(t *testing.T) {
		store := newStore(t)
		missing := "0190f5d6-0000-7000-8000-000000000000"

		if _, err := store.GetPost(testContext(t), missing); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetPost() error = %v, want ErrNotFound", err)
		}
		if _, err := store.UpdatePost(testContext(t), UpdatePostParams{ID: missing, Title: "x"}); !errors.Is(err, ErrNotFound) {
			t.Errorf("UpdatePost() error = %v, want ErrNotFound", err)
		}
		if err := store.DeletePost(testContext(t), missing); !errors.Is(err, ErrNotFound) {
			t.Errorf("DeletePost() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("更新でタイトルとupdated_atが変わること", func(t *testing.T) {
		store := newStore(t)

		created, err := store.CreatePost(testContext(t), CreatePostParams{Title: "旧タイトル"})
		if err != nil {
			t.Fatalf("CreatePost()でエラーが発生: %v", err)
		}
		updated, err := store.UpdatePost(testContext(t), UpdatePostParams{ID: created.ID, Title: "nuevo"})
		if err != nil {
			t.Fatalf("UpdatePost()でエラーが発生: %v", err)
		}
		if updated.ID != created.ID {
			t.Errorf("ID = %q, want %q", updated.ID, created.ID)
		}
		if updated.Title != "nuevo" {
			t.Errorf("Title = %q, want %q", updated.Title, "nuevo")
		}
		if !updated.CreatedAt.Equal(created.CreatedAt) {
			t.Errorf("CreatedAt が変わった: %v -> %v", created.CreatedAt, updated.CreatedAt)
		}
		if updated.UpdatedAt.Before(created.UpdatedAt) {
			t.Errorf("UpdatedAt が戻った: %v -> %v", created.UpdatedAt, updated.UpdatedAt)
		}

		got, err := store.GetPost(testContext(t), created.ID)
		if err != nil {
			t.Fatalf("GetPost()でエラーが発生: %v", err)
		}
		if got.Title != "nuevo" {
			t.Errorf("保存されたTitle = %q, want %q", got.Title, "nuevo")
		}
	})

	t.Run("削除した投稿は取得できなくなること", func(t *testing.T) {
		store := newStore(t)

		created, err := store.CreatePost(testContext(t), CreatePostParams{Title: "削除対象"})
		if err != nil {
			t.Fatalf("CreatePost()でエラーが発生: %v", err)
		}
		if err := store.DeletePost(testContext(t), created.ID); err != nil {
			t.Fatalf("DeletePost()でエラーが発生: %v", err)
		}
		if _, err := store.GetPost(testContext(t), created.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("削除後のGetPost() error = %v, want ErrNotFound", err)
		}
		if err := store.DeletePost(testContext(t), created.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("2回目のDeletePost() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("一覧は作成順に並ぶこと", func(t *testing.T) {
		store := newStore(t)

		empty, err := store.ListPosts(testContext(t))
		if err != nil {
			t.Fatalf("ListPosts()でエラーが発生: %v", err)
		}
		if empty == nil || len(empty) != 0 {
			t.Errorf("空のストアの一覧 = %#v, want 空スライス", empty)
		}

		var ids []string
		for _, title := range []string{"1件目", "2件目", "3件目", "4件目", "5件目"} {
			p, err := store.CreatePost(testContext(t), CreatePostParams{Title: title})
			if err != nil {
				t.Fatalf("CreatePost()でエラーが発生: %v", err)
			}
			ids = append(ids, p.ID)
		}

		posts, err := store.ListPosts(testContext(t))
		if err != nil {
			t.Fatalf("ListPosts()でエラーが発生: %v", err)
		}
		if len(posts) != len(ids) {
			t.Fatalf("件数 = %d, want %d", len(posts), len(ids))
		}
		for i, p := range posts {
			if p.ID != ids[i] {
				t.Errorf("posts[%d].ID = %q, want %q", i, p.ID, ids[i])
			}
		}
	})
}
