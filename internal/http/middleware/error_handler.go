package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/dispatch-engine/internal/interface/http/response"
	"github.com/ignatzorin/dispatch-engine/internal/logger"
	"github.com/ignatzorin/dispatch-engine/internal/pkg/apperror"
)

// ErrorHandler обрабатывает ошибки, оставленные обработчиком в c.Errors,
// и перехватывает panic. Внутренние детали клиенту не отдаются.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Log.WithFields(logrus.Fields{
					"panic":  r,
					"path":   c.Request.URL.Path,
					"method": c.Request.Method,
				}).Error("panic в обработчике запроса")
				if !c.Writer.Written() {
					response.Error(c, apperror.Wrap(fmt.Errorf("%v", r), apperror.ErrCodeInternal, "внутренняя ошибка сервера"))
				}
				c.Abort()
			}
		}()

		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		fields := logrus.Fields{
			"error":  err.Error(),
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}
		if code := apperror.CodeOf(err); code == "" || code == apperror.ErrCodeInternal || code == apperror.ErrCodeDatabaseError {
			logger.Log.WithFields(fields).Error("Request error")
		} else {
			logger.Log.WithFields(fields).Debug("Request rejected")
		}

		if c.Writer.Written() {
			return
		}
		response.Error(c, err)
	}
}
