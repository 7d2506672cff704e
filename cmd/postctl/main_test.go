package main

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("不明なコマンドの場合は使い方のエラーを返す", func(t *testing.T) {
		t.Parallel()

		err := run(testContext(t), []string{"publish"}, io.Discard, io.Discard)
		if !errors.Is(err, errUsage) {
			t.Errorf("err = %v, want errUsage", err)
		}
	})

	t.Run("引数の数が足りない場合は使い方のエラーを返す", func(t *testing.T) {
		t.Parallel()

		err := run(testContext(t), []string{"update", "id-only"}, io.Discard, io.Discard)
		if !errors.Is(err, errUsage) {
			t.Errorf("err = %v, want errUsage", err)
		}
	})

	t.Run("createはトークンを付けて投稿を作成し結果を表示する", func(t *testing.T) {
		t.Parallel()

		var authorization string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authorization = r.Header.Get("Authorization")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"id":"p1","title":"新しい投稿","created_at":"2026-01-02T03:04:05Z","updated_at":"2026-01-02T03:04:05Z"}`)
		}))
		t.Cleanup(ts.Close)

		var stdout bytes.Buffer
		err := run(testContext(t), []string{"-url", ts.URL, "-token", "abc", "create", "新しい投稿"}, &stdout, io.Discard)
		if err != nil {
			t.Fatalf("run()でエラーが発生: %v", err)
		}
		if authorization != "Bearer abc" {
			t.Errorf("Authorization = %q", authorization)
		}
		if !strings.Contains(stdout.String(), `"title": "新しい投稿"`) {
			t.Errorf("stdout = %s", stdout.String())
		}
	})
}
