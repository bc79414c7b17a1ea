package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

func Recovery(l *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		stack := debug.Stack()
		l.LogAttrs(c.Request.Context(), slog.LevelError, "panic_recovered",
			slog.String("request_id", GetRequestID(c)),
			slog.Any("panic", recovered),
			slog.String("stack", string(stack)),
		)

		// the panic skipped ErrorHandler's drain, so respond here
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":      "Unexpected error occurred.",
			"request_id": GetRequestID(c),
		})
	})
}
