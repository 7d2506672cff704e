// Package config は環境変数と.envファイルからサービス設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DriverSQLite はSQLiteをデータストアとして使用する。
	DriverSQLite = "sqlite"
	// DriverPostgres はPostgreSQLをデータストアとして使用する。
	DriverPostgres = "postgres"

	// BackendDB は投稿をユーザーと同じSQLデータベースに保存する。
	BackendDB = "db"
	// BackendS3 は投稿をS3バケットにJSONオブジェクトとして保存する。
	BackendS3 = "s3"

	// defaultJWTSecret は開発時のみ使用するJWT署名鍵。
	defaultJWTSecret = "dev-secret-key"
)

// Config は投稿APIサービスの設定。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string
	// DBDriver はユーザーと投稿を保存するSQLドライバ。
	DBDriver string
	// SQLitePath はSQLiteデータベースファイルのパス。
	SQLitePath string
	// DatabaseURL はPostgreSQLの接続文字列。
	DatabaseURL string
	// PostBackend は投稿の保存先。
	PostBackend string
	// S3Bucket は投稿を保存するS3バケット名。
	S3Bucket string
	// S3Endpoint はS3互換エンドポイント（LocalStack等）。空の場合はAWSのデフォルト。
	S3Endpoint string
	// AWSRegion はAWSリージョン。
	AWSRegion string
	// JWTSecret はJWT署名用の秘密鍵。
	JWTSecret string
	// TokenTTL は発行するアクセストークンの有効期間。
	TokenTTL time.Duration
	// RateLimitPerMinute はIPアドレスごとの1分あたりのリクエスト上限。0で無効。
	RateLimitPerMinute int
	// CORSAllowedOrigins はCORSで許可するオリジン。
	CORSAllowedOrigins []string
	// LogLevel はログ出力レベル。
	LogLevel string
}

// Load は.envファイル（存在する場合）と環境変数から設定を読み込む。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug(".envファイルが見つからないため環境変数のみを使用します")
	}
	return FromEnv(os.Getenv)
}

// FromEnv はgetenvで取得した値から設定を組み立てて検証する。
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, defaultValue string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return defaultValue
	}

	cfg := &Config{
		Port:        get("PORT", "8080"),
		DBDriver:    strings.ToLower(get("DB_DRIVER", DriverSQLite)),
		SQLitePath:  get("SQLITE_PATH", "/data/post.db"),
		DatabaseURL: get("DATABASE_URL", ""),
		PostBackend: strings.ToLower(get("POST_BACKEND", BackendDB)),
		S3Bucket:    get("S3_BUCKET", ""),
		S3Endpoint:  get("S3_ENDPOINT", ""),
		AWSRegion:   get("AWS_REGION", "ap-northeast-1"),
		JWTSecret:   get("JWT_SECRET", ""),
		LogLevel:    get("LOG_LEVEL", "info"),
	}

	ttl, err := time.ParseDuration(get("TOKEN_TTL", "24h"))
	if err != nil || ttl <= 0 {
		return nil, fmt.Errorf("TOKEN_TTLが不正です: %q", getenv("TOKEN_TTL"))
	}
	cfg.TokenTTL = ttl

	limit, err := strconv.Atoi(get("RATE_LIMIT_PER_MINUTE", "120"))
	if err != nil || limit < 0 {
		return nil, fmt.Errorf("RATE_LIMIT_PER_MINUTEが不正です: %q", getenv("RATE_LIMIT_PER_MINUTE"))
	}
	cfg.RateLimitPerMinute = limit

	for _, o := range strings.Split(get("CORS_ALLOWED_ORIGINS", "http://localhost:3000"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.JWTSecret == "" {
		slog.Warn("JWT_SECRETが未設定のため開発用の鍵を使用します")
		cfg.JWTSecret = defaultJWTSecret
	}
	return cfg, nil
}

// validate は設定値の組み合わせを検証する。
func (c *Config) validate() error {
	switch c.DBDriver {
	case DriverSQLite:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DB_DRIVER=postgres の場合はDATABASE_URLが必要です")
		}
	default:
		return fmt.Errorf("DB_DRIVERが不正です: %q", c.DBDriver)
	}

	switch c.PostBackend {
	case BackendDB:
	case BackendS3:
		if c.S3Bucket == "" {
			return errors.New("POST_BACKEND=s3 の場合はS3_BUCKETが必要です")
		}
	default:
		return fmt.Errorf("POST_BACKENDが不正です: %q", c.PostBackend)
	}
	return nil
}
