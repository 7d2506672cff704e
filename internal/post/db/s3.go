package postdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// s3Prefix は投稿オブジェクトを格納するキーの接頭辞。
const s3Prefix = "posts/"

// S3API はS3Storeが使用するS3クライアントの操作。
// *s3.Client が満たす。
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// NewS3Client はAWSのデフォルト設定からS3クライアントを生成する。
// endpointを指定した場合はパススタイルでそのエンドポイントに接続する（LocalStack等）。
func NewS3Client(ctx context.Context, region, endpoint string) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("AWS設定の読み込みに失敗: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// S3Store は投稿を "posts/<id>.json" としてS3に保存するストア。
type S3Store struct {
	client S3API
	bucket string
}

// NewS3Store は新しいS3Storeを生成する。
func NewS3Store(client S3API, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

// CreatePost は投稿を作成し、保存した内容を返す。
func (s *S3Store) CreatePost(ctx context.Context, arg CreatePostParams) (Post, error) {
	id, err := newID()
	if err != nil {
		return Post{}, err
	}
	ts := now()
	p := Post{ID: id, Title: arg.Title, CreatedAt: ts, UpdatedAt: ts}
	if err := s.put(ctx, p); err != nil {
		return Post{}, fmt.Errorf("投稿の作成に失敗: %w", err)
	}
	return p, nil
}

// GetPost はIDで投稿を取得する。存在しない場合は ErrNotFound を返す。
func (s *S3Store) GetPost(ctx context.Context, id string) (Post, error) {
	p, err := s.get(ctx, postKey(id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Post{}, err
		}
		return Post{}, fmt.Errorf("投稿の取得に失敗: %w", err)
	}
	return p, nil
}

// UpdatePost は投稿のタイトルを更新し、updated_atを更新する。
func (s *S3Store) UpdatePost(ctx context.Context, arg UpdatePostParams) (Post, error) {
	p, err := s.GetPost(ctx, arg.ID)
	if err != nil {
		return Post{}, err
	}
	p.Title = arg.Title
	p.UpdatedAt = now()
	if err := s.put(ctx, p); err != nil {
		return Post{}, fmt.Errorf("投稿の更新に失敗: %w", err)
	}
	return p, nil
}

// DeletePost は投稿オブジェクトを削除する。
// S3のDeleteObjectは存在しないキーでも成功するため、事前に存在を確認する。
func (s *S3Store) DeletePost(ctx context.Context, id string) error {
	if _, err := s.GetPost(ctx, id); err != nil {
		return err
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(postKey(id)),
	}); err != nil {
		return fmt.Errorf("投稿の削除に失敗: %w", err)
	}
	return nil
}

// ListPosts はすべての投稿を作成日時の昇順で返す。
func (s *S3Store) ListPosts(ctx context.Context) ([]Post, error) {
	posts := []Post{}
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s3Prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("投稿一覧の取得に失敗: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, ".json") {
				continue
			}
			p, err := s.get(ctx, key)
			if errors.Is(err, ErrNotFound) {
				// 一覧取得中に削除された
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("投稿の取得に失敗: key=%s: %w", key, err)
			}
			posts = append(posts, p)
		}
	}

	slices.SortFunc(posts, func(a, b Post) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return posts, nil
}

// get はキーのオブジェクトを投稿として読み込む。
func (s *S3Store) get(ctx context.Context, key string) (Post, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return Post{}, ErrNotFound
		}
		return Post{}, err
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return Post{}, fmt.Errorf("オブジェクトの読み込みに失敗: %w", err)
	}
	var p Post
	if err := json.Unmarshal(body, &p); err != nil {
		return Post{}, fmt.Errorf("オブジェクトのデシリアライズに失敗: %w", err)
	}
	return p, nil
}

// put は投稿をJSONオブジェクトとして保存する。
func (s *S3Store) put(ctx context.Context, p Post) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("投稿のシリアライズに失敗: %w", err)
	}
	key := postKey(p.ID)
	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return err
	}
	slog.Debug("投稿をS3に保存しました", "bucket", s.bucket, "key", key)
	return nil
}

// postKey は投稿IDからオブジェクトキーを組み立てる。
func postKey(id string) string {
	return path.Join(s3Prefix, id+".json")
}
