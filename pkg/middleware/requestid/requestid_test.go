package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func serveWithHeader(header string) (string, string) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Middleware())
	var seen string
	router.GET("/ping", func(c *gin.Context) {
		seen = Value(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if header != "" {
		req.Header.Set(headerKey, header)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return seen, rec.Header().Get(headerKey)
}

func TestMiddlewareReusesCallerID(t *testing.T) {
	seen, echoed := serveWithHeader("trace-abc")
	assert.Equal(t, "trace-abc", seen)
	assert.Equal(t, "trace-abc", echoed)
}

func TestMiddlewareGeneratesID(t *testing.T) {
	for _, header := range []string{"", strings.Repeat("x", maxLength+1)} {
		seen, echoed := serveWithHeader(header)
		_, err := uuid.Parse(seen)
		assert.NoError(t, err)
		assert.Equal(t, seen, echoed)
	}
}

func TestValueWithoutMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Empty(t, Value(c))
}
