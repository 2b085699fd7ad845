package fingerprint

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

const ginKey = "fingerprint"

type ctxKey struct{}

// Middleware снимает отпечаток с каждого запроса и кладёт его в gin- и request-контекст.
func Middleware(e *Extractor) gin.HandlerFunc {
	return func(c *gin.Context) {
		fp := e.Extract(c.ClientIP(), c.GetHeader("User-Agent"), c.GetHeader("Accept-Language"), time.Now())
		c.Set(ginKey, fp)
		c.Request = c.Request.WithContext(WithContext(c.Request.Context(), fp))
		c.Next()
	}
}

func WithContext(ctx context.Context, fp Fingerprint) context.Context {
	return context.WithValue(ctx, ctxKey{}, fp)
}

func FromContext(ctx context.Context) (Fingerprint, bool) {
	fp, ok := ctx.Value(ctxKey{}).(Fingerprint)
	return fp, ok
}

// FromGin возвращает отпечаток текущего запроса.
func FromGin(c *gin.Context) (Fingerprint, bool) {
	v, ok := c.Get(ginKey)
	if !ok {
		return Fingerprint{}, false
	}
	fp, ok := v.(Fingerprint)
	return fp, ok
}
