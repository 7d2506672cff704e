// Package postclient は投稿APIを呼び出すHTTPクライアントを提供する。
//
// ユーザー登録・ログインで取得したトークンを保持し、投稿のCRUD操作を行う。
// cmd/postctl から使用する。
package postclient
