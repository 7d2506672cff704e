package post

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	postdb "github.com/nao1215/postapi/internal/post/db"
	"github.com/nao1215/postapi/pkg/middleware"
	"golang.org/x/crypto/bcrypt"
)

// registerRequest はユーザー登録リクエストのJSON構造。
type registerRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// loginRequest はログインリクエストのJSON構造。
type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// userResponse はユーザーのJSONレスポンス構造。パスワードハッシュは含めない。
type userResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

func toUserResponse(u postdb.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt.UTC().Format(responseTimeLayout),
	}
}

// normalizeEmail はメールアドレスを比較用に正規化する。
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// handleRegister はユーザー登録を処理するハンドラを返す。
// 登録に成功するとアクセストークンを発行する。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if !s.bindAndValidate(c, &req, func() {
			req.Name = strings.TrimSpace(req.Name)
			req.Email = normalizeEmail(req.Email)
		}) {
			return
		}

		ctx := c.Request.Context()
		if _, err := s.users.GetUserByEmail(ctx, req.Email); err == nil {
			validationFailed(c, FieldErrors{"email": {"emailは既に使用されています"}})
			return
		} else if !errors.Is(err, postdb.ErrNotFound) {
			internalError(c, "ユーザー取得に失敗しました", err)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			validationFailed(c, FieldErrors{"password": {"passwordは72バイト以内で指定してください"}})
			return
		}
		if err != nil {
			internalError(c, "パスワードのハッシュ化に失敗しました", err)
			return
		}

		user, err := s.users.CreateUser(ctx, postdb.CreateUserParams{
			Name:         req.Name,
			Email:        req.Email,
			PasswordHash: string(hash),
		})
		if errors.Is(err, postdb.ErrDuplicateEmail) {
			validationFailed(c, FieldErrors{"email": {"emailは既に使用されています"}})
			return
		}
		if err != nil {
			internalError(c, "ユーザー作成に失敗しました", err)
			return
		}

		s.respondWithToken(c, http.StatusCreated, user)
	}
}

// handleLogin はログインを処理するハンドラを返す。
// 資格情報が誤っている場合は、どちらが誤っているかを区別せずに401を返す。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if !s.bindAndValidate(c, &req, func() {
			req.Email = normalizeEmail(req.Email)
		}) {
			return
		}

		user, err := s.users.GetUserByEmail(c.Request.Context(), req.Email)
		if errors.Is(err, postdb.ErrNotFound) {
			invalidCredentials(c)
			return
		}
		if err != nil {
			internalError(c, "ユーザー取得に失敗しました", err)
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
			invalidCredentials(c)
			return
		}

		s.respondWithToken(c, http.StatusOK, user)
	}
}

// handleCurrentUser は認証済みユーザーの情報を返すハンドラを返す。
func (s *Server) handleCurrentUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := s.users.GetUserByID(c.Request.Context(), middleware.GetUserID(c))
		if errors.Is(err, postdb.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
			return
		}
		if err != nil {
			internalError(c, "ユーザー取得に失敗しました", err)
			return
		}
		c.JSON(http.StatusOK, toUserResponse(user))
	}
}

// respondWithToken はユーザーのアクセストークンを発行してレスポンスを書き込む。
func (s *Server) respondWithToken(c *gin.Context, status int, user postdb.User) {
	token, err := middleware.GenerateJWT(s.jwtSecret, user.ID, user.Email, s.tokenTTL)
	if err != nil {
		internalError(c, "トークン生成に失敗しました", err)
		return
	}

	c.JSON(status, gin.H{
		"token":      token,
		"token_type": "Bearer",
		"expires_in": int(s.tokenTTL.Seconds()),
		"user":       toUserResponse(user),
	})
}

// bindAndValidate はリクエストボディをdstに読み込み、normalizeを適用してから検証する。
// 失敗した場合は400または422を書き込み、falseを返す。
func (s *Server) bindAndValidate(c *gin.Context, dst any, normalize func()) bool {
	fieldErrs, err := bindJSON(c, dst)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストボディのJSONが不正です"})
		return false
	}
	if len(fieldErrs) > 0 {
		validationFailed(c, fieldErrs)
		return false
	}

	normalize()
	if errs := s.validator.Struct(dst); len(errs) > 0 {
		validationFailed(c, errs)
		return false
	}
	return true
}

func invalidCredentials(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": "メールアドレスまたはパスワードが正しくありません"})
}
