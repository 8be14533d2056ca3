package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"taskhub/internal/apperr"
	"taskhub/pkg/logger"
)

const showStackKey = "show_stack"

// panicError carries a recovered panic and where it happened.
type panicError struct {
	value any
	stack []byte
}

func (p *panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}

// ErrorHandler translates errors left on c.Errors by middleware and installs
// the stack policy used by RespondError. Stacks are only shown outside
// production.
func ErrorHandler(production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(showStackKey, !production)
		c.Next()
		if len(c.Errors) > 0 && !c.Writer.Written() {
			RespondError(c, c.Errors.Last().Err)
		}
	}
}

// Recovery turns a panic into a 500 through RespondError.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, rec any) {
		RespondError(c, &panicError{value: rec, stack: debug.Stack()})
	})
}

// RespondError writes err as {message} with the status its kind maps to.
func RespondError(c *gin.Context, err error) {
	ctx := c.Request.Context()
	if errors.Is(err, context.Canceled) {
		c.Abort()
		return
	}

	status := apperr.StatusOf(err)
	body := gin.H{"message": messageFor(err)}

	if status >= http.StatusInternalServerError {
		logger.Error(ctx, "Request failed", "status", status, "error", err)
		if c.GetBool(showStackKey) {
			body["error"] = err.Error()
			var p *panicError
			if errors.As(err, &p) {
				body["stack"] = string(p.stack)
			} else {
				body["stack"] = string(debug.Stack())
			}
		}
	} else {
		logger.Debug(ctx, "Request rejected", "status", status, "error", err)
	}
	c.AbortWithStatusJSON(status, body)
}

func messageFor(err error) string {
	if e, ok := apperr.As(err); ok && e.Message != "" {
		return e.Message
	}
	return "Internal Server Error"
}

// NotFound answers unmatched routes.
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"message": "Route does not exist"})
}
