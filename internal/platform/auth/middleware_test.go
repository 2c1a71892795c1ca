package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func TestServiceAuthMiddleware(t *testing.T) {
	mgr := NewServiceTokenManager("service-secret-32-characters!!", 15*time.Minute)

	t.Run("allows request with valid token", func(t *testing.T) {
		token, _ := mgr.GenerateToken("worker-cron")

		router := setupTestRouter()
		router.GET("/protected", ServiceAuthMiddleware(mgr), func(c *gin.Context) {
			subject, _ := GetServiceSubject(c)
			c.JSON(http.StatusOK, gin.H{"subject": subject})
		})

		req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("rejects request without authorization header", func(t *testing.T) {
		router := setupTestRouter()
		router.GET("/protected", ServiceAuthMiddleware(mgr), func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{})
		})

		req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rejects request with invalid authorization format", func(t *testing.T) {
		router := setupTestRouter()
		router.GET("/protected", ServiceAuthMiddleware(mgr), func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{})
		})

		req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "InvalidFormat")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rejects request with non-Bearer prefix", func(t *testing.T) {
		router := setupTestRouter()
		router.GET("/protected", ServiceAuthMiddleware(mgr), func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{})
		})

		req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Basic sometoken")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rejects request with invalid token", func(t *testing.T) {
		router := setupTestRouter()
		router.GET("/protected", ServiceAuthMiddleware(mgr), func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{})
		})

		req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer invalid-token")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rejects request with expired token", func(t *testing.T) {
		expired := NewServiceTokenManager("service-secret-32-characters!!", -1*time.Second)
		token, _ := expired.GenerateToken("worker-cron")

		router := setupTestRouter()
		router.GET("/protected", ServiceAuthMiddleware(mgr), func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{})
		})

		req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestGetServiceSubject(t *testing.T) {
	t.Run("returns subject when set", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Set("service_subject", "worker-cron")

		subject, exists := GetServiceSubject(c)

		assert.True(t, exists)
		assert.Equal(t, "worker-cron", subject)
	})

	t.Run("returns false when subject not set", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		subject, exists := GetServiceSubject(c)

		assert.False(t, exists)
		assert.Empty(t, subject)
	})
}

func TestMustGetServiceSubject(t *testing.T) {
	t.Run("returns subject when set", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Set("service_subject", "worker-cron")

		subject, ok := MustGetServiceSubject(c)

		assert.True(t, ok)
		assert.Equal(t, "worker-cron", subject)
	})

	t.Run("returns error response when subject not set", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		subject, ok := MustGetServiceSubject(c)

		assert.False(t, ok)
		assert.Empty(t, subject)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
