package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// tokenIssuer は発行するJWTのissクレーム。
const tokenIssuer = "postapi"

// contextKeyUserID と contextKeyEmail はGinコンテキストに認証情報を格納するキー。
const (
	contextKeyUserID = "user_id"
	contextKeyEmail  = "email"
)

// unauthenticatedMessage は認証失敗時に返す共通メッセージ。
// 失敗理由によってレスポンスを変えない。
const unauthenticatedMessage = "認証されていません"

// ErrUnknownPrincipal はトークンのユーザーが存在しないことを表す。
var ErrUnknownPrincipal = errors.New("ユーザーが存在しません")

// JWTClaims はJWTトークンのクレーム（ペイロード）を表す。
type JWTClaims struct {
	jwt.RegisteredClaims
	// UserID は認証済みユーザーの一意識別子。
	UserID string `json:"user_id"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
}

// PrincipalVerifier はトークンが指すユーザーが現在も存在するかを確認する。
// 存在しない場合は ErrUnknownPrincipal を返す。
type PrincipalVerifier interface {
	VerifyPrincipal(ctx context.Context, userID string) error
}

// GenerateJWT はユーザー情報から有効期間ttlのJWTトークンを生成する。
func GenerateJWT(secret, userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
		UserID: userID,
		Email:  email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// ParseJWT はトークン文字列を検証し、クレームを返す。
// HMAC以外の署名アルゴリズム、期限切れ、user_idの欠落はエラーとなる。
func ParseJWT(secret, tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("想定外の署名アルゴリズム: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("トークンの検証に失敗: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("トークンが無効です")
	}
	if claims.UserID == "" {
		return nil, errors.New("トークンにuser_idが含まれていません")
	}
	return claims, nil
}

// JWTAuth はBearerトークンを検証するGinミドルウェアを返す。
// verifierがnilでなければ、トークンのユーザーが存在することも確認する。
// 検証に成功した場合、コンテキストに "user_id" と "email" を設定する。
func JWTAuth(secret string, verifier PrincipalVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !found || strings.TrimSpace(tokenString) == "" {
			abortUnauthenticated(c)
			return
		}

		claims, err := ParseJWT(secret, strings.TrimSpace(tokenString))
		if err != nil {
			slog.Debug("トークンの検証に失敗", "error", err)
			abortUnauthenticated(c)
			return
		}

		if verifier != nil {
			if err := verifier.VerifyPrincipal(c.Request.Context(), claims.UserID); err != nil {
				if errors.Is(err, ErrUnknownPrincipal) {
					abortUnauthenticated(c)
					return
				}
				slog.Error("ユーザーの確認に失敗", "user_id", claims.UserID, "error", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "内部サーバーエラーが発生しました",
				})
				return
			}
		}

		c.Set(contextKeyUserID, claims.UserID)
		c.Set(contextKeyEmail, claims.Email)
		c.Next()
	}
}

// abortUnauthenticated は401レスポンスを返して処理を中断する。
func abortUnauthenticated(c *gin.Context) {
	c.Header("WWW-Authenticate", `Bearer realm="postapi"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": unauthenticatedMessage})
}

// GetUserID はGinコンテキストからユーザーIDを取得する。
// JWTAuthミドルウェアが事前に適用されている必要がある。
func GetUserID(c *gin.Context) string {
	return c.GetString(contextKeyUserID)
}
