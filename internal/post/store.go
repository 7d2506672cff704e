package post

import (
	"context"
	"errors"

	postdb "github.com/nao1215/postapi/internal/post/db"
	"github.com/nao1215/postapi/pkg/middleware"
)

// PostStore は投稿の永続化を担当するストア。
// 存在しない投稿に対する操作は postdb.ErrNotFound を返すこと。
type PostStore interface {
	CreatePost(ctx context.Context, arg postdb.CreatePostParams) (postdb.Post, error)
	GetPost(ctx context.Context, id string) (postdb.Post, error)
	UpdatePost(ctx context.Context, arg postdb.UpdatePostParams) (postdb.Post, error)
	DeletePost(ctx context.Context, id string) error
	ListPosts(ctx context.Context) ([]postdb.Post, error)
}

// UserStore は認証主体となるユーザーの永続化を担当するストア。
type UserStore interface {
	CreateUser(ctx context.Context, arg postdb.CreateUserParams) (postdb.User, error)
	GetUserByID(ctx context.Context, id string) (postdb.User, error)
	GetUserByEmail(ctx context.Context, email string) (postdb.User, error)
}

// principalVerifier はUserStoreを使ってトークンのユーザーが存在するかを確認する。
type principalVerifier struct {
	users UserStore
}

// VerifyPrincipal はmiddleware.PrincipalVerifierの実装。
func (v principalVerifier) VerifyPrincipal(ctx context.Context, userID string) error {
	_, err := v.users.GetUserByID(ctx, userID)
	if errors.Is(err, postdb.ErrNotFound) {
		return middleware.ErrUnknownPrincipal
	}
	return err
}
