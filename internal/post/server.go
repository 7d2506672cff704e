package post

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/nao1215/postapi/internal/config"
	postdb "github.com/nao1215/postapi/internal/post/db"
	"github.com/nao1215/postapi/pkg/middleware"
	"golang.org/x/crypto/bcrypt"
)

// responseTimeLayout はレスポンスに含める日時の形式。
const responseTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// shutdownTimeout はグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 10 * time.Second

// Server は投稿APIのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// handler はレート制限を含む最外層のハンドラー。
	handler http.Handler
	// port はサーバーのリッスンポート。
	port string
	// posts は投稿ストア。
	posts PostStore
	// users はユーザーストア。
	users UserStore
	// validator はリクエストペイロードの検証器。
	validator *Validator
	// jwtSecret はJWT署名用の秘密鍵。
	jwtSecret string
	// tokenTTL は発行するトークンの有効期間。
	tokenTTL time.Duration
	// bcryptCost はパスワードハッシュのコスト。
	bcryptCost int
	// closers はClose時に解放するリソース。
	closers []func()
}

// NewServer は設定に従ってストアを初期化し、新しいサーバーを生成する。
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	var (
		posts   PostStore
		users   UserStore
		closers []func()
	)

	switch cfg.DBDriver {
	case config.DriverPostgres:
		pool, err := postdb.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		store := postdb.NewPgStore(pool)
		posts, users = store, store
		closers = append(closers, pool.Close)
	default:
		db, err := postdb.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		q := postdb.New(db)
		posts, users = q, q
		closers = append(closers, func() { _ = db.Close() })
	}

	if cfg.PostBackend == config.BackendS3 {
		client, err := postdb.NewS3Client(ctx, cfg.AWSRegion, cfg.S3Endpoint)
		if err != nil {
			for _, c := range closers {
				c()
			}
			return nil, err
		}
		posts = postdb.NewS3Store(client, cfg.S3Bucket)
	}

	s := newServer(cfg, posts, users)
	s.closers = closers
	slog.Info("ストアを初期化しました", "db_driver", cfg.DBDriver, "post_backend", cfg.PostBackend)
	return s, nil
}

// newServer はストアを受け取ってサーバーを組み立てる。
func newServer(cfg *config.Config, posts PostStore, users UserStore) *Server {
	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	s := &Server{
		router:     router,
		port:       cfg.Port,
		posts:      posts,
		users:      users,
		validator:  NewValidator(),
		jwtSecret:  cfg.JWTSecret,
		tokenTTL:   cfg.TokenTTL,
		bcryptCost: bcrypt.DefaultCost,
	}
	s.setupRoutes()

	s.handler = router
	if cfg.RateLimitPerMinute > 0 {
		s.handler = httprate.Limit(
			cfg.RateLimitPerMinute,
			time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"リクエストが多すぎます"}`))
			}),
		)(router)
	}
	return s
}

// Handler はサーバーのHTTPハンドラーを返す。
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるとグレースフルシャットダウンする。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		slog.Info("シャットダウンを開始します")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Close はストアの接続を解放する。
func (s *Server) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	api := s.router.Group("/api")

	// 認証不要のエンドポイント
	auth := api.Group("/auth")
	{
		auth.POST("/register", s.handleRegister())
		auth.POST("/login", s.handleLogin())
	}

	// 認証必須のエンドポイント
	protected := api.Group("")
	protected.Use(middleware.JWTAuth(s.jwtSecret, principalVerifier{users: s.users}))
	{
		protected.GET("/user", s.handleCurrentUser())

		posts := protected.Group("/posts")
		{
			// 投稿一覧取得
			posts.GET("", s.handleList())
			// 投稿作成
			posts.POST("", s.handleCreate())
			// 投稿詳細取得
			posts.GET("/:id", s.handleShow())
			// 投稿更新
			posts.PUT("/:id", s.handleUpdate())
			// 投稿削除
			posts.DELETE("/:id", s.handleDelete())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "post"})
	})
}

// postResponse は投稿のJSONレスポンス構造。
type postResponse struct {
	// ID は投稿の一意識別子。
	ID string `json:"id"`
	// Title は投稿のタイトル。
	Title string `json:"title"`
	// CreatedAt は作成日時。
	CreatedAt string `json:"created_at"`
	// UpdatedAt は更新日時。
	UpdatedAt string `json:"updated_at"`
}

// toPostResponse はストアの投稿をJSONレスポンスに変換する。
func toPostResponse(p postdb.Post) postResponse {
	return postResponse{
		ID:        p.ID,
		Title:     p.Title,
		CreatedAt: p.CreatedAt.UTC().Format(responseTimeLayout),
		UpdatedAt: p.UpdatedAt.UTC().Format(responseTimeLayout),
	}
}

// handleList は投稿一覧取得を処理するハンドラを返す。
// 一覧は {"data": [...]} で包んで返す。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		posts, err := s.posts.ListPosts(c.Request.Context())
		if err != nil {
			internalError(c, "投稿一覧の取得に失敗しました", err)
			return
		}

		responses := make([]postResponse, 0, len(posts))
		for _, p := range posts {
			responses = append(responses, toPostResponse(p))
		}
		c.JSON(http.StatusOK, gin.H{"data": responses})
	}
}

// handleCreate は投稿作成を処理するハンドラを返す。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		in, ok := s.bindPostInput(c)
		if !ok {
			return
		}

		p, err := s.posts.CreatePost(c.Request.Context(), postdb.CreatePostParams{Title: in.Title})
		if err != nil {
			internalError(c, "投稿の作成に失敗しました", err)
			return
		}
		slog.Info("投稿を作成しました", "post_id", p.ID, "user_id", middleware.GetUserID(c))

		c.JSON(http.StatusCreated, toPostResponse(p))
	}
}

// handleShow は投稿詳細取得を処理するハンドラを返す。
func (s *Server) handleShow() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.findPost(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, toPostResponse(p))
	}
}

// handleUpdate は投稿更新を処理するハンドラを返す。
// 投稿の存在を確認してから入力を検証する。
func (s *Server) handleUpdate() gin.HandlerFunc {
	return func(c *gin.Context) {
		current, ok := s.findPost(c)
		if !ok {
			return
		}

		in, ok := s.bindPostInput(c)
		if !ok {
			return
		}

		p, err := s.posts.UpdatePost(c.Request.Context(), postdb.UpdatePostParams{
			ID:    current.ID,
			Title: in.Title,
		})
		if errors.Is(err, postdb.ErrNotFound) {
			notFound(c)
			return
		}
		if err != nil {
			internalError(c, "投稿の更新に失敗しました", err)
			return
		}
		slog.Info("投稿を更新しました", "post_id", p.ID, "user_id", middleware.GetUserID(c))

		c.JSON(http.StatusOK, toPostResponse(p))
	}
}

// handleDelete は投稿削除を処理するハンドラを返す。
// 成功時はボディなしの204を返す。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		current, ok := s.findPost(c)
		if !ok {
			return
		}

		err := s.posts.DeletePost(c.Request.Context(), current.ID)
		if errors.Is(err, postdb.ErrNotFound) {
			notFound(c)
			return
		}
		if err != nil {
			internalError(c, "投稿の削除に失敗しました", err)
			return
		}
		slog.Info("投稿を削除しました", "post_id", current.ID, "user_id", middleware.GetUserID(c))

		c.Status(http.StatusNoContent)
	}
}

// findPost はパスパラメータのIDで投稿を取得する。
// 取得できなかった場合はレスポンスを書き込み、falseを返す。
func (s *Server) findPost(c *gin.Context) (postdb.Post, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		notFound(c)
		return postdb.Post{}, false
	}

	p, err := s.posts.GetPost(c.Request.Context(), id)
	if errors.Is(err, postdb.ErrNotFound) {
		notFound(c)
		return postdb.Post{}, false
	}
	if err != nil {
		internalError(c, "投稿の取得に失敗しました", err)
		return postdb.Post{}, false
	}
	return p, true
}

// bindPostInput はリクエストボディを投稿の入力として読み込み検証する。
// 失敗した場合は400または422を書き込み、falseを返す。
func (s *Server) bindPostInput(c *gin.Context) (PostInput, bool) {
	var in PostInput
	fieldErrs, err := bindJSON(c, &in)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストボディのJSONが不正です"})
		return PostInput{}, false
	}
	if len(fieldErrs) > 0 {
		validationFailed(c, fieldErrs)
		return PostInput{}, false
	}

	in, fieldErrs = s.validator.ValidatePost(in)
	if len(fieldErrs) > 0 {
		validationFailed(c, fieldErrs)
		return PostInput{}, false
	}
	return in, true
}

// notFound は404レスポンスを書き込む。
func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "投稿が見つかりません"})
}

// validationFailed は422レスポンスを書き込む。
func validationFailed(c *gin.Context, errs FieldErrors) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{
		"error":  "入力内容が不正です",
		"errors": errs,
	})
}

// internalError は500レスポンスを書き込み、原因をログに記録する。
func internalError(c *gin.Context, message string, err error) {
	slog.Error(message, "error", err, "method", c.Request.Method, "path", c.Request.URL.Path)
	c.JSON(http.StatusInternalServerError, gin.H{"error": message})
}
