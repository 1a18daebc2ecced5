package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pasarmalam/internal/api/dto"
	"pasarmalam/internal/middleware"
	"pasarmalam/internal/model"
	"pasarmalam/pkg/client"
)

type mockAuthenticator struct {
	names   []string
	loginFn func(ctx context.Context, name string) (*client.LoginResponse, error)
}

func (m *mockAuthenticator) Login(ctx context.Context, name string) (*client.LoginResponse, error) {
	m.names = append(m.names, name)
	return m.loginFn(ctx, name)
}

func okAuthenticator() *mockAuthenticator {
	return &mockAuthenticator{loginFn: func(_ context.Context, name string) (*client.LoginResponse, error) {
		return &client.LoginResponse{
			User:  model.User{ID: "u-42", DisplayName: name},
			Token: "backend-token",
		}, nil
	}}
}

func TestAuthService_Login(t *testing.T) {
	backend := okAuthenticator()
	svc := NewAuthService(backend, nil)

	resp, err := svc.Login(context.Background(), &dto.LoginRequest{DisplayName: "  Ahmad "})
	require.NoError(t, err)
	assert.Equal(t, []string{"Ahmad"}, backend.names)
	assert.Equal(t, "u-42", resp.User.ID)
	assert.Equal(t, "Ahmad", resp.User.DisplayName)
	assert.False(t, resp.ExpiresAt.IsZero())

	claims, err := middleware.ParseToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u-42", claims.UserID)
	assert.Equal(t, "backend-token", claims.BackendToken)
	assert.Equal(t, "access", claims.Subject)
}

func TestAuthService_LoginErrors(t *testing.T) {
	tests := []struct {
		name    string
		display string
		loginFn func(ctx context.Context, name string) (*client.LoginResponse, error)
		wantErr error
	}{
		{
			name:    "空昵称",
			display: "   ",
			wantErr: ErrDisplayNameRequired,
		},
		{
			name:    "后端失败",
			display: "Ahmad",
			loginFn: func(context.Context, string) (*client.LoginResponse, error) {
				return nil, &client.APIError{StatusCode: 500}
			},
		},
		{
			name:    "后端未返回用户",
			display: "Ahmad",
			loginFn: func(context.Context, string) (*client.LoginResponse, error) {
				return &client.LoginResponse{}, nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewAuthService(&mockAuthenticator{loginFn: tt.loginFn}, nil)
			_, err := svc.Login(context.Background(), &dto.LoginRequest{DisplayName: tt.display})
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
			}
		})
	}
}

func TestAuthService_RefreshToken(t *testing.T) {
	svc := NewAuthService(okAuthenticator(), nil)
	login, err := svc.Login(context.Background(), &dto.LoginRequest{DisplayName: "Mei"})
	require.NoError(t, err)

	resp, err := svc.RefreshToken(context.Background(), &dto.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)

	claims, err := middleware.ParseToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u-42", claims.UserID)
	assert.Equal(t, "backend-token", claims.BackendToken)

	// access token 不能用来刷新
	_, err = svc.RefreshToken(context.Background(), &dto.RefreshTokenRequest{RefreshToken: login.AccessToken})
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.RefreshToken(context.Background(), &dto.RefreshTokenRequest{RefreshToken: "garbage"})
	assert.ErrorIs(t, err, ErrInvalidToken)
}
