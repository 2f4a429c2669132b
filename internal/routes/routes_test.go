package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func corsRouter(origins []string) *gin.Engine {
	r := gin.New()
	r.Use(cors.New(corsConfig(origins)))
	r.GET("/cart", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{}) })
	return r
}

func get(r *gin.Engine, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("Origin", origin)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORS_WildcardNeverAllowsCredentials(t *testing.T) {
	for _, origins := range [][]string{nil, {"*"}, {"https://shop.example", "*"}} {
		cfg := corsConfig(origins)
		assert.True(t, cfg.AllowAllOrigins)
		assert.False(t, cfg.AllowCredentials)

		w := get(corsRouter(origins), "https://evil.example")
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
	}
}

func TestCORS_ExplicitOrigins(t *testing.T) {
	r := corsRouter([]string{"https://shop.example"})

	w := get(r, "https://shop.example")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://shop.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	w = get(r, "https://evil.example")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
