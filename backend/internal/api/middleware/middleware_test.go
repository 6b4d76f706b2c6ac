package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resource-planner/backend/config"
	"resource-planner/backend/pkg/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestJWT() *jwt.Manager {
	return jwt.NewManager(&config.AuthConfig{
		JWTSecret:      "middleware-test-secret-key-2026-10",
		AccessTokenTTL: time.Minute,
	})
}

// echoActor 回显中间件注入的操作者
func echoActor(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"resource_id": c.GetString(CtxResourceID),
		"role":        c.GetString(CtxRole),
	})
}

func TestJWTAuth(t *testing.T) {
	mgr := newTestJWT()
	r := gin.New()
	r.GET("/me", JWTAuth(mgr, nil), echoActor)

	token, err := mgr.GenerateAccessToken("res-alice", jwt.RoleMember)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"缺少认证头", "", http.StatusUnauthorized},
		{"格式错误", "Token " + token, http.StatusUnauthorized},
		{"签名无效", "Bearer " + token + "x", http.StatusUnauthorized},
		{"合法 Token", "Bearer " + token, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.Contains(t, w.Body.String(), `"resource_id":"res-alice"`)
				assert.Contains(t, w.Body.String(), `"role":"member"`)
			}
		})
	}
}

func TestRoleAuth(t *testing.T) {
	mgr := newTestJWT()
	r := gin.New()
	r.POST("/unsubmit", JWTAuth(mgr, nil), RoleAuth(jwt.RoleAdmin), echoActor)

	member, err := mgr.GenerateAccessToken("res-alice", jwt.RoleMember)
	require.NoError(t, err)
	admin, err := mgr.GenerateAccessToken("res-admin", jwt.RoleAdmin)
	require.NoError(t, err)

	do := func(token string) int {
		req := httptest.NewRequest(http.MethodPost, "/unsubmit", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusForbidden, do(member))
	assert.Equal(t, http.StatusOK, do(admin))
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(requestIDKey)) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "save-alloc-1-monday")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "save-alloc-1-monday", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "save-alloc-1-monday", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", requestIDMaxLen+1))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Len(t, w.Header().Get("X-Request-ID"), 36, "过长的 ID 应被替换为 UUID")
}

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimit(16))
	r.POST("/time-entries", func(c *gin.Context) { c.Status(http.StatusCreated) })

	req := httptest.NewRequest(http.MethodPost, "/time-entries", strings.NewReader(`{"mondayHours":"8.00","notes":"long"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/time-entries", strings.NewReader(`{}`))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRateLimit_NoRedisPassesThrough(t *testing.T) {
	r := gin.New()
	r.POST("/submit", RateLimit(nil, 1, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/submit", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://planner.example.com/"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://planner.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://planner.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
