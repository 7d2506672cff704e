// Package post は認証付きの投稿CRUD APIを提供する。
//
// リクエストは認証ゲート（JWT）、入力検証、コントローラ、ストアの順に処理される。
// ストアはSQLite、PostgreSQL、S3から設定で選択する。
package post
