package fingerprint

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_StableAndKeyed(t *testing.T) {
	e, err := NewExtractor("secret-a")
	require.NoError(t, err)
	now := time.Now()

	a := e.Extract("203.0.113.7", "Mozilla/5.0", "ru-RU", now)
	b := e.Extract("203.0.113.7:51234", " Mozilla/5.0 ", "ru-RU", now)
	assert.Equal(t, a.IPHash, b.IPHash)
	assert.Equal(t, a.DeviceHash, b.DeviceHash)
	assert.Len(t, a.IPHash, 64)
	assert.NotContains(t, a.IPHash, "203.0.113.7")
	assert.Equal(t, "Mozilla/5.0", b.UserAgent)

	other := e.Extract("203.0.113.7", "curl/8.0", "ru-RU", now)
	assert.Equal(t, a.IPHash, other.IPHash)
	assert.NotEqual(t, a.DeviceHash, other.DeviceHash)

	e2, err := NewExtractor("secret-b")
	require.NoError(t, err)
	assert.NotEqual(t, a.IPHash, e2.Extract("203.0.113.7", "Mozilla/5.0", "ru-RU", now).IPHash)
}

func TestNewExtractor_Secret(t *testing.T) {
	_, err := NewExtractor("")
	assert.ErrorIs(t, err, ErrEmptySecret)

	long := make([]byte, 100)
	for i := range long {
		long[i] = 'k'
	}
	_, err = NewExtractor(string(long))
	assert.NoError(t, err)
}

func TestMiddleware_AttachesFingerprint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	e, err := NewExtractor("secret")
	require.NoError(t, err)

	var fromGin, fromCtx Fingerprint
	r := gin.New()
	r.Use(Middleware(e))
	r.GET("/", func(c *gin.Context) {
		fromGin, _ = FromGin(c)
		fromCtx, _ = FromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 HeadlessChrome/91.0")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "Mozilla/5.0 HeadlessChrome/91.0", fromGin.UserAgent)
	assert.Equal(t, fromGin, fromCtx)
	assert.NotEmpty(t, fromGin.IPHash)
}
