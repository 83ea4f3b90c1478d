package middleware

import (
	"errors"

	"smallbiznis-loyaltycore/pkg/errutil"
	"smallbiznis-loyaltycore/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error renders the last handler error as an errutil payload.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		var be errutil.BaseError
		if !errors.As(last.Err, &be) {
			logger.FromContext(c.Request.Context()).Error("unhandled request error",
				zap.String("path", c.FullPath()),
				zap.Error(last.Err),
			)
			be = errutil.Internal("internal error", nil).(errutil.BaseError)
		}

		c.JSON(be.Code.HTTPStatus(), be.JSON())
	}
}
