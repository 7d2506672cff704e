package postclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client は投稿API用のHTTPクライアント。
// 同時に複数のゴルーチンから使用できるが、SetTokenとの並行呼び出しはしないこと。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は接続先APIのベースURL。
	baseURL string
	// token はAuthorizationヘッダーに付与するアクセストークン。
	token string
}

// Post は投稿APIが返す投稿。
type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User は投稿APIが返すユーザー。
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// AuthResponse は登録・ログインのレスポンス。
type AuthResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int    `json:"expires_in"`
	User      User   `json:"user"`
}

// APIError は投稿APIが2xx以外を返した場合のエラー。
type APIError struct {
	// StatusCode はHTTPステータスコード。
	StatusCode int
	// Message はレスポンスのerrorフィールド。
	Message string `json:"error"`
	// Errors は検証エラーのフィールドごとのメッセージ。
	Errors map[string][]string `json:"errors"`
}

func (e *APIError) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("HTTPエラー: status=%d, error=%s, errors=%v", e.StatusCode, e.Message, e.Errors)
	}
	return fmt.Sprintf("HTTPエラー: status=%d, error=%s", e.StatusCode, e.Message)
}

// IsNotFound はerrが404を表すAPIErrorかどうかを返す。
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// New は新しいクライアントを生成する。
// baseURLには投稿APIのベースURL（例: "http://localhost:8080"）を指定する。
func New(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: baseURL,
	}
}

// SetToken はリクエストに付与するアクセストークンを設定する。
func (c *Client) SetToken(token string) {
	c.token = token
}

// Token は現在のアクセストークンを返す。
func (c *Client) Token() string {
	return c.token
}

// Register はユーザーを登録し、発行されたトークンを以後のリクエストに使用する。
func (c *Client) Register(ctx context.Context, name, email, password string) (*AuthResponse, error) {
	body := map[string]string{"name": name, "email": email, "password": password}
	var res AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/register", body, &res); err != nil {
		return nil, err
	}
	c.token = res.Token
	return &res, nil
}

// Login はログインし、発行されたトークンを以後のリクエストに使用する。
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	body := map[string]string{"email": email, "password": password}
	var res AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", body, &res); err != nil {
		return nil, err
	}
	c.token = res.Token
	return &res, nil
}

// CurrentUser は認証済みユーザーを取得する。
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var u User
	if err := c.doJSON(ctx, http.MethodGet, "/api/user", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListPosts は投稿一覧を取得する。
func (c *Client) ListPosts(ctx context.Context) ([]Post, error) {
	var res struct {
		Data []Post `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/posts", nil, &res); err != nil {
		return nil, err
	}
	return res.Data, nil
}

// CreatePost は投稿を作成する。
func (c *Client) CreatePost(ctx context.Context, title string) (*Post, error) {
	var p Post
	if err := c.doJSON(ctx, http.MethodPost, "/api/posts", map[string]string{"title": title}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPost は投稿を取得する。
func (c *Client) GetPost(ctx context.Context, id string) (*Post, error) {
	var p Post
	if err := c.doJSON(ctx, http.MethodGet, postPath(id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePost は投稿のタイトルを更新する。
func (c *Client) UpdatePost(ctx context.Context, id, title string) (*Post, error) {
	var p Post
	if err := c.doJSON(ctx, http.MethodPut, postPath(id), map[string]string{"title": title}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeletePost は投稿を削除する。
func (c *Client) DeletePost(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, postPath(id), nil, nil)
}

func postPath(id string) string {
	return "/api/posts/" + url.PathEscape(id)
}

// doJSON はJSON形式のHTTPリクエストを実行する共通処理。
func (c *Client) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストボディのシリアライズに失敗: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		respBody, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(respBody, apiErr); err != nil {
			apiErr.Message = string(respBody)
		}
		return apiErr
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
		}
	}
	return nil
}
