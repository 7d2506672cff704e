// Package middleware は投稿APIで使用するGinミドルウェアを提供する。
//
// Bearerトークン（JWT）による認証ゲート、パニックリカバリ、
// CORS設定を含む。
package middleware
