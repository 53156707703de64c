package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sales-credit-api/pkg/middleware/requestid"
)

const (
	responseMetaKey  = "response_meta"
	responseStartKey = "response_meta_start"
)

// WithResponseMeta starts the metadata block attached to read responses.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseStartKey, time.Now())
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
	}
}

// SetCacheHit records whether the payload was served from the read cache.
func SetCacheHit(c *gin.Context, hit bool) {
	if c == nil {
		return
	}
	meta, ok := storedMeta(c)
	if !ok {
		meta = map[string]interface{}{}
		c.Set(responseMetaKey, meta)
	}
	meta["cache_hit"] = hit
}

// ExtractMeta snapshots the metadata for a response body. The snapshot carries the
// request id and the time spent up to the call.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	meta, ok := storedMeta(c)
	if !ok {
		return nil
	}
	out := make(map[string]interface{}, len(meta)+2)
	for k, v := range meta {
		out[k] = v
	}
	if id := requestid.Value(c); id != "" {
		out["request_id"] = id
	}
	if raw, exists := c.Get(responseStartKey); exists {
		if start, ok := raw.(time.Time); ok {
			out["processing_time_ms"] = time.Since(start).Milliseconds()
		}
	}
	return out
}

func storedMeta(c *gin.Context) (map[string]interface{}, bool) {
	raw, exists := c.Get(responseMetaKey)
	if !exists {
		return nil, false
	}
	meta, ok := raw.(map[string]interface{})
	return meta, ok
}
