package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxBodyBytes caps request bodies. Multipart uploads get their own,
// larger cap; everything else is JSON-sized.
func MaxBodyBytes(jsonMax, uploadMax int64) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		limit := jsonMax

		ct := strings.ToLower(ctx.GetHeader("Content-Type"))
		if strings.HasPrefix(ct, "multipart/form-data") {
			limit = uploadMax
		}

		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, limit)

		ctx.Next()
	}
}
