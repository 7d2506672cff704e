// 投稿APIのコマンドラインクライアント。
//
// 使い方:
//
//	postctl [-url URL] [-token TOKEN] <command> [args]
//
// コマンド:
//
//	register <name> <email> <password>  ユーザーを登録してトークンを表示する
//	login <email> <password>            ログインしてトークンを表示する
//	list                                投稿一覧を表示する
//	create <title>                      投稿を作成する
//	show <id>                           投稿を表示する
//	update <id> <title>                 投稿のタイトルを更新する
//	delete <id>                         投稿を削除する
//
// トークンは -token フラグか環境変数 POSTAPI_TOKEN で指定する。
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/nao1215/postapi/pkg/postclient"
)

// errUsage はコマンドの引数が不正な場合のエラー。
var errUsage = errors.New("引数が不正です")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "postctl: %v\n", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// run はコマンドライン引数を解釈してコマンドを実行する。
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("postctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	baseURL := fs.String("url", envOr("POSTAPI_URL", "http://localhost:8080"), "投稿APIのベースURL")
	token := fs.String("token", os.Getenv("POSTAPI_TOKEN"), "アクセストークン")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: postctl [-url URL] [-token TOKEN] register|login|list|create|show|update|delete [args]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return errUsage
	}

	client := postclient.New(*baseURL)
	client.SetToken(*token)

	cmd, params := rest[0], rest[1:]
	switch cmd {
	case "register":
		if len(params) != 3 {
			return fmt.Errorf("%w: register <name> <email> <password>", errUsage)
		}
		res, err := client.Register(ctx, params[0], params[1], params[2])
		if err != nil {
			return err
		}
		return printJSON(stdout, res)
	case "login":
		if len(params) != 2 {
			return fmt.Errorf("%w: login <email> <password>", errUsage)
		}
		res, err := client.Login(ctx, params[0], params[1])
		if err != nil {
			return err
		}
		return printJSON(stdout, res)
	case "list":
		posts, err := client.ListPosts(ctx)
		if err != nil {
			return err
		}
		return printJSON(stdout, posts)
	case "create":
		if len(params) != 1 {
			return fmt.Errorf("%w: create <title>", errUsage)
		}
		p, err := client.CreatePost(ctx, params[0])
		if err != nil {
			return err
		}
		return printJSON(stdout, p)
	case "show":
		if len(params) != 1 {
			return fmt.Errorf("%w: show <id>", errUsage)
		}
		p, err := client.GetPost(ctx, params[0])
		if err != nil {
			return err
		}
		return printJSON(stdout, p)
	case "update":
		if len(params) != 2 {
			return fmt.Errorf("%w: update <id> <title>", errUsage)
		}
		p, err := client.UpdatePost(ctx, params[0], params[1])
		if err != nil {
			return err
		}
		return printJSON(stdout, p)
	case "delete":
		if len(params) != 1 {
			return fmt.Errorf("%w: delete <id>", errUsage)
		}
		if err := client.DeletePost(ctx, params[0]); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "投稿を削除しました: %s\n", params[0])
		return nil
	default:
		return fmt.Errorf("%w: 不明なコマンド %q", errUsage, cmd)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
