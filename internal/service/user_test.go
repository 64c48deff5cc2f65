package service_test

import (
	"context"
	"errors"
	"testing"

	"forum/internal/auth"
	"forum/internal/config"
	"forum/internal/models"
	"forum/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.Config {
	return config.Config{
		Env:                   "dev",
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 15,
		RefreshTokenTTLDays:   7,
	}
}

func register(t *testing.T, users *service.UserService, username, email, password string) *models.User {
	t.Helper()
	u, err := users.Register(context.Background(), service.RegisterInput{
		Name:      username,
		Username:  username,
		Email:     email,
		Password1: password,
		Password2: password,
	})
	require.NoError(t, err)
	return u
}

func TestRegister_NormalizesAndHashes(t *testing.T) {
	gdb := newTestDB(t)
	users := service.NewUserService(gdb, testConfig())

	u := register(t, users, "  Alice ", "Alice@Example.COM", "s3cret-pass")
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, models.DefaultAvatar, u.Avatar)
	assert.True(t, u.IsActive)
	assert.False(t, u.IsSuperuser)
	assert.NotEqual(t, "s3cret-pass", u.PasswordHash)
	assert.True(t, auth.VerifyPassword(u.PasswordHash, "s3cret-pass"))
}

func TestRegister_Rejects(t *testing.T) {
	gdb := newTestDB(t)
	users := service.NewUserService(gdb, testConfig())
	register(t, users, "alice", "alice@example.com", "s3cret-pass")

	tests := []struct {
		name      string
		in        service.RegisterInput
		wantField string
	}{
		{"duplicate email", service.RegisterInput{Username: "other", Email: "ALICE@example.com", Password1: "s3cret-pass", Password2: "s3cret-pass"}, "email"},
		{"duplicate username", service.RegisterInput{Username: "Alice", Email: "new@example.com", Password1: "s3cret-pass", Password2: "s3cret-pass"}, "username"},
		{"password mismatch", service.RegisterInput{Username: "bob", Email: "bob@example.com", Password1: "s3cret-pass", Password2: "s3cret-pasS"}, "password2"},
		{"short password", service.RegisterInput{Username: "bob", Email: "bob@example.com", Password1: "short", Password2: "short"}, "password1"},
		{"bad email", service.RegisterInput{Username: "bob", Email: "not-an-email", Password1: "s3cret-pass", Password2: "s3cret-pass"}, "email"},
		{"space in username", service.RegisterInput{Username: "bo b", Email: "bob@example.com", Password1: "s3cret-pass", Password2: "s3cret-pass"}, "username"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := users.Register(context.Background(), tt.in)
			var ve *service.ValidationError
			require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
			assert.Contains(t, ve.Fields, tt.wantField)
		})
	}
	assert.Equal(t, int64(1), countRows(t, gdb, "users"))
}

func TestLogin(t *testing.T) {
	gdb := newTestDB(t)
	ctx := context.Background()
	users := service.NewUserService(gdb, testConfig())
	alice := register(t, users, "alice", "alice@example.com", "s3cret-pass")
	sleeper := register(t, users, "sleeper", "sleeper@example.com", "s3cret-pass")
	require.NoError(t, gdb.Model(&models.User{}).Where("id = ?", sleeper.ID).Update("is_active", false).Error)

	res, err := users.Login(ctx, " ALICE@example.com ", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, res.User.ID)
	claims, err := auth.ParseAccessToken(res.AccessToken, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, claims.UserID)
	assert.NotEmpty(t, res.RefreshToken)

	failures := []struct {
		name, email, password string
	}{
		{"unknown email", "nobody@example.com", "s3cret-pass"},
		{"wrong password", "alice@example.com", "wrong-pass"},
		{"inactive account", "sleeper@example.com", "s3cret-pass"},
		{"empty password", "alice@example.com", ""},
		{"empty email", "", "s3cret-pass"},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			_, err := users.Login(ctx, tt.email, tt.password)
			assert.ErrorIs(t, err, service.ErrAuthenticationFailed)
			assert.EqualError(t, err, "user does not exist")
		})
	}
}

func TestRefreshTokens_Rotates(t *testing.T) {
	gdb := newTestDB(t)
	ctx := context.Background()
	users := service.NewUserService(gdb, testConfig())
	alice := register(t, users, "alice", "alice@example.com", "s3cret-pass")

	login, err := users.LoginUser(ctx, alice)
	require.NoError(t, err)

	refreshed, err := users.RefreshTokens(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, refreshed.UserID)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	_, err = users.RefreshTokens(ctx, login.RefreshToken)
	assert.Error(t, err, "旧 refresh token 只能使用一次")

	require.NoError(t, users.Logout(ctx, refreshed.RefreshToken))
	_, err = users.RefreshTokens(ctx, refreshed.RefreshToken)
	assert.Error(t, err)

	assert.NoError(t, users.Logout(ctx, ""))
}

func TestUpdateProfile(t *testing.T) {
	gdb := newTestDB(t)
	ctx := context.Background()
	users := service.NewUserService(gdb, testConfig())
	alice := register(t, users, "alice", "alice@example.com", "s3cret-pass")
	register(t, users, "bob", "bob@example.com", "s3cret-pass")

	updated, err := users.UpdateProfile(ctx, alice, service.ProfileInput{
		Name:     "Alice L.",
		Username: "Alice",
		Email:    "alice@example.com",
		Bio:      " hello ",
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice L.", updated.Name)
	assert.Equal(t, "hello", updated.Bio)
	assert.Equal(t, models.DefaultAvatar, updated.Avatar, "未上传头像时保持原值")

	updated, err = users.UpdateProfile(ctx, alice, service.ProfileInput{
		Username: "alice2",
		Email:    "alice2@example.com",
		Avatar:   "avatars/new.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice2", updated.Username)
	assert.Equal(t, "avatars/new.png", updated.Avatar)
	assert.Empty(t, updated.Name)

	_, err = users.UpdateProfile(ctx, alice, service.ProfileInput{Username: "bob", Email: "BOB@example.com"})
	var ve *service.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields, "username")
	assert.Contains(t, ve.Fields, "email")

	got, err := users.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice2", got.Username)

	_, err = users.GetUser(ctx, 9999)
	assert.ErrorIs(t, err, service.ErrNotFound)
}
