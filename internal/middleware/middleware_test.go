package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func doRequest(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ==================== JWT ====================

func TestJWTAuth(t *testing.T) {
	access, refresh, err := GenerateTokenPair("u-1", "Ahmad", "backend-tok")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", JWTAuth(), func(c *gin.Context) {
		claims := GetUserClaims(c)
		c.JSON(http.StatusOK, gin.H{
			"id":    GetUserID(c),
			"name":  GetDisplayName(c),
			"token": claims.BackendToken,
		})
	})

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{"缺少 Token", "", http.StatusUnauthorized},
		{"无效 Token", "garbage", http.StatusUnauthorized},
		{"Refresh Token 不能访问", refresh, http.StatusUnauthorized},
		{"有效 Access Token", access, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, http.MethodGet, "/me", tt.token)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Contains(t, w.Body.String(), `"id":"u-1"`)
				assert.Contains(t, w.Body.String(), `"token":"backend-tok"`)
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	r := gin.New()
	r.GET("/feed", OptionalAuth(), func(c *gin.Context) {
		c.String(http.StatusOK, GetUserID(c))
	})

	w := doRequest(r, http.MethodGet, "/feed", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	access, err := GenerateAccessToken("u-2", "Mei", "")
	require.NoError(t, err)
	w = doRequest(r, http.MethodGet, "/feed", access)
	assert.Equal(t, "u-2", w.Body.String())
}

// ==================== 冷却限流 ====================

func TestCooldownLimiter_Check(t *testing.T) {
	l := NewCooldownLimiter()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	key := UserAIKey("u-1", AIKindScan)
	assert.True(t, l.Check(key, 5*time.Second).Allowed)

	now = now.Add(2 * time.Second)
	res := l.Check(key, 5*time.Second)
	assert.False(t, res.Allowed)
	assert.Equal(t, 3*time.Second, res.RetryAfter)

	// 不同类型互不影响
	assert.True(t, l.Check(UserAIKey("u-1", AIKindParse), 5*time.Second).Allowed)

	now = now.Add(3 * time.Second)
	assert.True(t, l.Check(key, 5*time.Second).Allowed)
}

func TestAICooldown_Middleware(t *testing.T) {
	l := NewCooldownLimiter()
	r := gin.New()
	r.POST("/scan", AICooldown(l, AIKindScan, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, "/scan", "").Code)
	w := doRequest(r, http.MethodPost, "/scan", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "retry_after")
}

// ==================== 请求日志 ====================

func TestZapLogger_OnlySlowOrFailed(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	r := gin.New()
	r.Use(ZapLogger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	doRequest(r, http.MethodGet, "/ok", "")
	assert.Equal(t, 0, logs.Len())

	doRequest(r, http.MethodGet, "/bad", "")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "request rejected", logs.All()[0].Message)
}
