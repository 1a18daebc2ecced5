package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ==================== JWT 配置 ====================

// JWTConfig JWT 配置
type JWTConfig struct {
	SecretKey       string        // 签名密钥
	AccessTokenTTL  time.Duration // Access Token 有效期
	RefreshTokenTTL time.Duration // Refresh Token 有效期
	Issuer          string        // 签发者
}

// DefaultJWTConfig 默认配置
func DefaultJWTConfig() *JWTConfig {
	return &JWTConfig{
		SecretKey:       "pasarmalam-secret-key-change-in-production",
		AccessTokenTTL:  2 * time.Hour,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		Issuer:          "pasarmalam",
	}
}

// 全局配置
var jwtConfig = DefaultJWTConfig()

// SetJWTConfig 设置 JWT 配置
func SetJWTConfig(cfg *JWTConfig) {
	jwtConfig = cfg
}

// GetJWTConfig 获取 JWT 配置
func GetJWTConfig() *JWTConfig {
	return jwtConfig
}

// ==================== Claims 定义 ====================

// UserClaims 用户声明
// BackendToken 是后端登录返回的令牌，提交挂单时透传
type UserClaims struct {
	UserID       string `json:"user_id"`
	DisplayName  string `json:"display_name"`
	BackendToken string `json:"backend_token,omitempty"`
	jwt.RegisteredClaims
}

// ==================== Token 生成 ====================

func generateToken(subject string, ttl time.Duration, userID, displayName, backendToken string) (string, error) {
	now := time.Now()
	claims := &UserClaims{
		UserID:       userID,
		DisplayName:  displayName,
		BackendToken: backendToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    jwtConfig.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtConfig.SecretKey))
}

// GenerateAccessToken 生成 Access Token
func GenerateAccessToken(userID, displayName, backendToken string) (string, error) {
	return generateToken("access", jwtConfig.AccessTokenTTL, userID, displayName, backendToken)
}

// GenerateRefreshToken 生成 Refresh Token
func GenerateRefreshToken(userID, displayName, backendToken string) (string, error) {
	return generateToken("refresh", jwtConfig.RefreshTokenTTL, userID, displayName, backendToken)
}

// GenerateTokenPair 生成 Token 对
func GenerateTokenPair(userID, displayName, backendToken string) (accessToken, refreshToken string, err error) {
	accessToken, err = GenerateAccessToken(userID, displayName, backendToken)
	if err != nil {
		return "", "", err
	}

	refreshToken, err = GenerateRefreshToken(userID, displayName, backendToken)
	if err != nil {
		return "", "", err
	}

	return accessToken, refreshToken, nil
}

// ==================== Token 解析 ====================

// ParseToken 解析 Token
func ParseToken(tokenString string) (*UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(jwtConfig.SecretKey), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*UserClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// ==================== Gin 中间件 ====================

// Context Keys
const (
	ContextKeyUserID      = "user_id"
	ContextKeyDisplayName = "display_name"
	ContextKeyClaims      = "claims"
)

// bearerClaims 从 Authorization 头解析 access token
func bearerClaims(c *gin.Context) (*UserClaims, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, "未提供认证信息"
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, "认证格式错误，应为 Bearer {token}"
	}

	claims, err := ParseToken(parts[1])
	if err != nil {
		return nil, "Token 无效或已过期"
	}
	if claims.Subject != "access" {
		return nil, "Token 类型错误"
	}
	return claims, ""
}

func setClaims(c *gin.Context, claims *UserClaims) {
	c.Set(ContextKeyUserID, claims.UserID)
	c.Set(ContextKeyDisplayName, claims.DisplayName)
	c.Set(ContextKeyClaims, claims)
}

// JWTAuth JWT 认证中间件
func JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, msg := bearerClaims(c)
		if claims == nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    401,
				"message": msg,
			})
			c.Abort()
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth 可选认证中间件（不强制登录）
func OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, _ := bearerClaims(c); claims != nil {
			setClaims(c, claims)
		}
		c.Next()
	}
}

// ==================== 辅助函数 ====================

// GetUserID 从 Context 获取用户 ID
func GetUserID(c *gin.Context) string {
	if id, exists := c.Get(ContextKeyUserID); exists {
		return id.(string)
	}
	return ""
}

// GetDisplayName 从 Context 获取昵称
func GetDisplayName(c *gin.Context) string {
	if name, exists := c.Get(ContextKeyDisplayName); exists {
		return name.(string)
	}
	return ""
}

// GetUserClaims 从 Context 获取完整 Claims
func GetUserClaims(c *gin.Context) *UserClaims {
	if claims, exists := c.Get(ContextKeyClaims); exists {
		return claims.(*UserClaims)
	}
	return nil
}
