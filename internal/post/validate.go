package post

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// FieldErrors はフィールド名（JSONキー）ごとのエラーメッセージ。
type FieldErrors map[string][]string

// Add はフィールドにエラーメッセージを追加する。
func (fe FieldErrors) Add(field, message string) {
	fe[field] = append(fe[field], message)
}

// PostInput は投稿の作成・更新リクエストのJSON構造。
type PostInput struct {
	// Title は投稿のタイトル。前後の空白を除いて1文字以上255文字以内。
	Title string `json:"title" validate:"required,max=255"`
}

// Validator はリクエストペイロードを検証する。
// 状態を持たず、複数のゴルーチンから同時に使用できる。
type Validator struct {
	validate *validator.Validate
}

// NewValidator は新しいValidatorを生成する。
// エラーのキーには構造体のフィールド名ではなくJSONキーを使用する。
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// ValidatePost は投稿の入力を正規化して検証する。
// 検証に失敗した場合はFieldErrorsを返し、正規化後の入力は使用してはならない。
func (v *Validator) ValidatePost(in PostInput) (PostInput, FieldErrors) {
	in.Title = strings.TrimSpace(in.Title)
	if errs := v.Struct(in); len(errs) > 0 {
		return PostInput{}, errs
	}
	return in, nil
}

// Struct はvalidateタグに従って構造体を検証する。
func (v *Validator) Struct(s any) FieldErrors {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return FieldErrors{"_": {err.Error()}}
	}
	errs := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		errs.Add(fe.Field(), message(fe))
	}
	return errs
}

// message は検証エラーを利用者向けのメッセージに変換する。
func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%sは必須です", fe.Field())
	case "max":
		return fmt.Sprintf("%sは%s文字以内で指定してください", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%sは%s文字以上で指定してください", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("%sは有効なメールアドレスで指定してください", fe.Field())
	default:
		return fmt.Sprintf("%sが不正です", fe.Field())
	}
}

// bindJSON はリクエストボディをdstにデコードする。
// 空のボディは空のオブジェクトとして扱い、フィールドの型の不一致はFieldErrorsとして返す。
// JSONとして解釈できない場合はerrorを返す。
func bindJSON(c *gin.Context, dst any) (FieldErrors, error) {
	err := c.ShouldBindJSON(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil, nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return FieldErrors{typeErr.Field: {fmt.Sprintf("%sの型が不正です", typeErr.Field)}}, nil
	}
	return nil, err
}
