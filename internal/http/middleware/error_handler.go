package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/campus-trade/internal/logger"
	"github.com/ignatzorin/campus-trade/internal/pkg/apperror"
)

// ErrorHandler обрабатывает ошибки централизованно.
// AppError отдаётся клиенту со своим статусом, остальное маскируется общим сообщением.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Проверяем, не был ли уже отправлен ответ
		if c.Writer.Written() {
			return
		}

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		fields := logrus.Fields{
			"error":  err.Error(),
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}

		if appErr, ok := apperror.AsAppError(err); ok && appErr.Code != apperror.ErrCodeInternal && appErr.Cause == nil {
			logger.Log.WithFields(fields).Info("Request rejected")
			c.JSON(appErr.HTTPStatus, gin.H{"error": appErr.Message, "code": appErr.Code})
			return
		}

		logger.Log.WithFields(fields).Error("Request error")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": apperror.ErrInternal.Message,
			"code":  apperror.ErrCodeInternal,
		})
	}
}
