package controller

import (
	"context"
	"errors"
	"net/http"

	"pasarmalam/internal/api/dto"
	"pasarmalam/internal/middleware"
	"pasarmalam/internal/service"

	"github.com/gin-gonic/gin"
)

// AuthUseCase 登录与刷新
type AuthUseCase interface {
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error)
	RefreshToken(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.RefreshTokenResponse, error)
}

type AuthController struct {
	authService AuthUseCase
}

func NewAuthController(s AuthUseCase) *AuthController {
	return &AuthController{authService: s}
}

// Login 以昵称登录
// @Summary 登录
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body dto.LoginRequest true "昵称"
// @Success 200 {object} dto.LoginResponse
// @Router /api/auth/login [post]
func (ctrl *AuthController) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "参数错误: " + err.Error(),
		})
		return
	}

	resp, err := ctrl.authService.Login(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrDisplayNameRequired) {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{
			"code":    502,
			"message": "登录失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    resp,
	})
}

// RefreshToken 刷新 Token
// @Summary 刷新 Token
// @Tags Auth
// @Param body body dto.RefreshTokenRequest true "refresh token"
// @Success 200 {object} dto.RefreshTokenResponse
// @Router /api/auth/refresh [post]
func (ctrl *AuthController) RefreshToken(c *gin.Context) {
	var req dto.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "参数错误: " + err.Error(),
		})
		return
	}

	resp, err := ctrl.authService.RefreshToken(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    401,
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    resp,
	})
}

// Me 当前登录用户
// @Summary 当前用户
// @Tags Auth
// @Success 200 {object} dto.UserInfo
// @Router /api/auth/me [get]
func (ctrl *AuthController) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data": &dto.UserInfo{
			ID:          middleware.GetUserID(c),
			DisplayName: middleware.GetDisplayName(c),
		},
	})
}
