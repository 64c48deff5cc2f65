package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"forum/internal/auth"
	"forum/internal/config"
	"forum/internal/models"

	"gorm.io/gorm"
)

// UserService 封装用户相关的业务逻辑。
type UserService struct {
	db  *gorm.DB
	cfg config.Config
}

func NewUserService(db *gorm.DB, cfg config.Config) *UserService {
	return &UserService{db: db, cfg: cfg}
}

// checkUnique 检查 username / email 是否已被其他用户占用，selfID 为 0 表示新用户。
func (s *UserService) checkUnique(ctx context.Context, username, email string, selfID uint) error {
	ve := &ValidationError{}
	for field, value := range map[string]string{"username": username, "email": email} {
		var count int64
		err := s.db.WithContext(ctx).Model(&models.User{}).
			Where(field+" = ? AND id <> ?", value, selfID).
			Count(&count).Error
		if err != nil {
			return fmt.Errorf("check %s: %w", field, err)
		}
		if count > 0 {
			ve.Add(field, fmt.Sprintf("User with this %s already exists.", field))
		}
	}
	if ve.empty() {
		return nil
	}
	return ve
}

// Register 注册新用户。username 与 email 统一转为小写保存。
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.normalize()
	if err := validateInput(&in); err != nil {
		return nil, err
	}
	if err := s.checkUnique(ctx, in.Username, in.Email, 0); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password1)
	if err != nil {
		return nil, err
	}
	user := models.User{
		Username:     in.Username,
		Email:        in.Email,
		Name:         in.Name,
		Avatar:       models.DefaultAvatar,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create user %q: %w", in.Username, err)
	}
	return &user, nil
}

// LoginResult 登录成功后返回的数据。
type LoginResult struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         models.User `json:"-"`
}

// Login 以 email + 密码登录。邮箱不存在、密码错误或账号停用都返回同一个 ErrAuthenticationFailed。
func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrAuthenticationFailed
	}
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAuthenticationFailed
		}
		return nil, err
	}
	if !user.IsActive || !auth.VerifyPassword(user.PasswordHash, password) {
		return nil, ErrAuthenticationFailed
	}
	at, rt, err := s.issueTokens(s.db.WithContext(ctx), user.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{AccessToken: at, RefreshToken: rt, User: user}, nil
}

// LoginUser 为已通过其他方式确认身份的用户（如刚注册完成）签发 token 对。
func (s *UserService) LoginUser(ctx context.Context, user *models.User) (*LoginResult, error) {
	at, rt, err := s.issueTokens(s.db.WithContext(ctx), user.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{AccessToken: at, RefreshToken: rt, User: *user}, nil
}

func (s *UserService) issueTokens(tx *gorm.DB, userID uint) (string, string, error) {
	at, err := auth.GenerateAccessToken(userID, s.cfg.JWTSecret, s.cfg.AccessTokenTTLMinutes)
	if err != nil {
		return "", "", err
	}
	rt, err := auth.GenerateRefreshToken()
	if err != nil {
		return "", "", err
	}
	exp := time.Now().Add(time.Duration(s.cfg.RefreshTokenTTLDays) * 24 * time.Hour)
	if err := auth.SaveRefreshToken(tx, userID, rt, exp); err != nil {
		return "", "", err
	}
	return at, rt, nil
}

// RefreshResult 刷新 token 后返回的新 token 对。
type RefreshResult struct {
	UserID       uint   `json:"user_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RefreshTokens 验证旧 refresh token 并签发新 token 对（旋转刷新）。
func (s *UserService) RefreshTokens(ctx context.Context, oldRT string) (*RefreshResult, error) {
	var result RefreshResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := auth.ValidateRefreshToken(tx, oldRT)
		if err != nil {
			return err
		}
		if err := auth.RevokeRefreshToken(tx, oldRT); err != nil {
			return err
		}
		at, rt, err := s.issueTokens(tx, rec.UserID)
		if err != nil {
			return err
		}
		result = RefreshResult{UserID: rec.UserID, AccessToken: at, RefreshToken: rt}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Logout 吊销 refresh token；token 为空或已失效时什么也不做。
func (s *UserService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return auth.RevokeRefreshToken(s.db.WithContext(ctx), refreshToken)
}

// GetUser 按 id 加载用户。
func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err, "user", id)
	}
	return &user, nil
}

// UpdateProfile 修改当前用户自己的资料。
func (s *UserService) UpdateProfile(ctx context.Context, user *models.User, in ProfileInput) (*models.User, error) {
	in.normalize()
	if err := validateInput(&in); err != nil {
		return nil, err
	}
	if err := s.checkUnique(ctx, in.Username, in.Email, user.ID); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{
		"name":     in.Name,
		"username": in.Username,
		"email":    in.Email,
		"bio":      in.Bio,
	}
	if in.Avatar != "" {
		updates["avatar"] = in.Avatar
	}
	if err := s.db.WithContext(ctx).Model(&models.User{ID: user.ID}).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update user %d: %w", user.ID, err)
	}
	return s.GetUser(ctx, user.ID)
}
