package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pasarmalam/internal/api/dto"
	"pasarmalam/internal/middleware"
	"pasarmalam/pkg/client"
	"pasarmalam/pkg/logger"

	"go.uber.org/zap"
)

// BackendAuthenticator 后端登录
type BackendAuthenticator interface {
	Login(ctx context.Context, displayName string) (*client.LoginResponse, error)
}

// AuthService 登录与令牌刷新
// 用户身份由后端决定，这里只负责签发携带后端令牌的 JWT
type AuthService struct {
	backend BackendAuthenticator
	log     *zap.Logger
}

func NewAuthService(backend BackendAuthenticator, log *zap.Logger) *AuthService {
	return &AuthService{backend: backend, log: logger.OrNop(log)}
}

// Login 以昵称登录
func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		return nil, ErrDisplayNameRequired
	}

	res, err := s.backend.Login(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("backend login: %w", err)
	}
	if res.User.ID == "" {
		return nil, errors.New("backend login: empty user id")
	}

	accessToken, refreshToken, err := middleware.GenerateTokenPair(res.User.ID, res.User.DisplayName, res.Token)
	if err != nil {
		return nil, err
	}

	s.log.Info("用户登录", zap.String("user_id", res.User.ID), zap.String("display_name", res.User.DisplayName))

	cfg := middleware.GetJWTConfig()
	return &dto.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(cfg.AccessTokenTTL),
		User:         &dto.UserInfo{ID: res.User.ID, DisplayName: res.User.DisplayName},
	}, nil
}

// RefreshToken 刷新 Token
func (s *AuthService) RefreshToken(_ context.Context, req *dto.RefreshTokenRequest) (*dto.RefreshTokenResponse, error) {
	claims, err := middleware.ParseToken(req.RefreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Subject != "refresh" {
		return nil, ErrInvalidToken
	}

	accessToken, refreshToken, err := middleware.GenerateTokenPair(claims.UserID, claims.DisplayName, claims.BackendToken)
	if err != nil {
		return nil, err
	}

	cfg := middleware.GetJWTConfig()
	return &dto.RefreshTokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(cfg.AccessTokenTTL),
	}, nil
}

// ==================== 错误定义 ====================

var (
	ErrDisplayNameRequired = errors.New("display name is required")
	ErrInvalidToken        = errors.New("invalid token")
)
