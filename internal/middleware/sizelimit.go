package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/radiology-api/pkg/errors"
	"github.com/jwalitptl/radiology-api/pkg/httputil"
)

// BodyLimit caps request bodies on routes that take small JSON documents.
// Upload routes enforce their own, larger limits.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			httputil.RespondWithError(c, apperrors.TooLarge("request body too large", nil))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
