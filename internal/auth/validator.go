// Package auth はクレデンシャル認証、外部IdP認証、セッション発行を提供する。
package auth

import (
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/hitoshi/ideaboard/internal/model"
)

// passwordSymbols はパスワードに要求する記号の固定許可セット。
const passwordSymbols = "@$!%*?&"

// SignupInput はサインアップリクエストの入力を表す。
type SignupInput struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8,password"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	Name            string `json:"name" validate:"required,min=4"`
}

// SigninInput はサインインリクエストの入力を表す。
// パスワードは存在チェックのみで、強度ルールは適用しない。
type SigninInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Validator はサインアップ/サインイン入力の検証器。
// 違反したルールは短絡せずすべて収集し、フィールド単位のエラーとして返す。
// 検証は純粋関数であり副作用を持たない（入力のトリム正規化を除く）。
type Validator struct {
	validate *validator.Validate
}

// NewValidator はValidatorを生成する。
// go-playground/validatorにカスタムルール「password」を登録する。
func NewValidator() *Validator {
	v := validator.New()

	// パスワード構成ルール: 小文字・大文字・数字・記号を各1文字以上
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return isStrongPassword(fl.Field().String())
	})

	return &Validator{validate: v}
}

// ValidateSignup はサインアップ入力を検証する。
// 入力の前後空白をトリムしたうえで全ルールを評価し、
// 違反があればすべてのフィールドエラーを含むValidationErrorを返す。
func (v *Validator) ValidateSignup(input *SignupInput) *model.ValidationError {
	input.Email = strings.TrimSpace(input.Email)
	input.Name = strings.TrimSpace(input.Name)

	if err := v.validate.Struct(input); err != nil {
		return toValidationError(err)
	}
	return nil
}

// ValidateSignin はサインイン入力を検証する。
// メールアドレスの形式とパスワードの存在のみをチェックする。
func (v *Validator) ValidateSignin(input *SigninInput) *model.ValidationError {
	input.Email = strings.TrimSpace(input.Email)

	if err := v.validate.Struct(input); err != nil {
		return toValidationError(err)
	}
	return nil
}

// isStrongPassword はパスワード構成ルールを満たすかを判定する。
// 小文字、大文字、数字、許可セット内の記号を各1文字以上含むこと。
func isStrongPassword(password string) bool {
	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(passwordSymbols, r):
			hasSymbol = true
		}
	}
	return hasLower && hasUpper && hasDigit && hasSymbol
}

// fieldPaths はGoフィールド名からAPIレスポンスのpath名へのマッピング。
var fieldPaths = map[string]string{
	"Email":           "email",
	"Password":        "password",
	"ConfirmPassword": "confirmPassword",
	"Name":            "name",
}

// toValidationError はvalidatorのエラーをValidationErrorに変換する。
// 各フィールドエラーに (path, code, message) の三つ組を設定する。
func toValidationError(err error) *model.ValidationError {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return &model.ValidationError{Details: []model.FieldError{
			{Path: "", Code: "invalid", Message: "入力の検証に失敗しました。"},
		}}
	}

	details := make([]model.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		path := fieldPaths[fe.Field()]
		if path == "" {
			path = fe.Field()
		}
		details = append(details, model.FieldError{
			Path:    path,
			Code:    fe.Tag(),
			Message: fieldMessage(path, fe.Tag()),
		})
	}
	return &model.ValidationError{Details: details}
}

// fieldMessage はフィールドと違反ルールに応じたメッセージを返す。
func fieldMessage(path, code string) string {
	switch {
	case path == "email":
		if code == "required" {
			return "メールアドレスを入力してください。"
		}
		return "メールアドレスの形式が正しくありません。"
	case path == "password" && code == "required":
		return "パスワードを入力してください。"
	case path == "password" && code == "min":
		return "パスワードは8文字以上で入力してください。"
	case path == "password" && code == "password":
		return "パスワードには大文字・小文字・数字・記号を含めてください。"
	case path == "confirmPassword" && code == "required":
		return "確認用パスワードを入力してください。"
	case path == "confirmPassword":
		return "パスワードが一致しません。"
	case path == "name" && code == "required":
		return "名前を入力してください。"
	case path == "name":
		return "名前は4文字以上で入力してください。"
	default:
		return "入力値が正しくありません。"
	}
}
