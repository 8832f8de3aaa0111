package middleware

import (
	"github.com/gin-gonic/gin"
	ierr "github.com/resumecook/billing/internal/errors"
	"github.com/resumecook/billing/internal/logger"
)

// ErrorHandlerMiddleware translates errors attached via c.Error into the
// API's error response shape. Handlers attach the precise internal error;
// only the hint and reportable details reach the caller.
func ErrorHandlerMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status := ierr.HTTPStatus(err)

		log.WithContext(c.Request.Context()).Errorw("request failed",
			"status", status,
			"path", c.Request.URL.Path,
			"error", err,
		)

		c.JSON(status, ierr.NewErrorResponse(err))
	}
}
