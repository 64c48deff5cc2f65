package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RoomInput 是创建/编辑房间的表单。Topic 为话题名称，不存在时自动创建。
type RoomInput struct {
	Name        string `form:"name" json:"name" validate:"required,max=200"`
	Description string `form:"description" json:"description"`
	Topic       string `form:"topic" json:"topic" validate:"required,max=200"`
}

func (in *RoomInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Topic = strings.TrimSpace(in.Topic)
}

type MessageInput struct {
	Body string `form:"body" json:"body" validate:"required"`
}

func (in *MessageInput) normalize() {
	in.Body = strings.TrimSpace(in.Body)
}

// RegisterInput 是注册表单，两次输入的密码必须一致。
type RegisterInput struct {
	Name      string `form:"name" json:"name" validate:"max=200"`
	Username  string `form:"username" json:"username" validate:"required,max=150,excludesall= "`
	Email     string `form:"email" json:"email" validate:"required,email,max=254"`
	Password1 string `form:"password1" json:"-" validate:"required,min=8,max=72"`
	Password2 string `form:"password2" json:"-" validate:"required,eqfield=Password1"`
}

func (in *RegisterInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Username = strings.ToLower(strings.TrimSpace(in.Username))
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
}

// ProfileInput 是用户编辑个人资料的表单。Avatar 由 handler 在保存上传文件后填入，
// 为空表示保持原头像。
type ProfileInput struct {
	Name     string `form:"name" json:"name" validate:"max=200"`
	Username string `form:"username" json:"username" validate:"required,max=150,excludesall= "`
	Email    string `form:"email" json:"email" validate:"required,email,max=254"`
	Bio      string `form:"bio" json:"bio"`
	Avatar   string `form:"-" json:"avatar" validate:"max=255"`
}

func (in *ProfileInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Username = strings.ToLower(strings.TrimSpace(in.Username))
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Bio = strings.TrimSpace(in.Bio)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// 错误信息使用表单字段名而不是 Go 字段名。
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			name = strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		}
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// validateInput 对输入结构体做校验，失败时返回 *ValidationError。
func validateInput(in interface{}) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	ve := &ValidationError{}
	for _, fe := range verrs {
		ve.Add(fe.Field(), fieldMessage(fe))
	}
	return ve
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Ensure this value has at most %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this value has at least %s characters.", fe.Param())
	case "email":
		return "Enter a valid email address."
	case "eqfield":
		return "The two password fields didn't match."
	case "excludesall":
		return "Enter a valid username without spaces."
	default:
		return "Enter a valid value."
	}
}
