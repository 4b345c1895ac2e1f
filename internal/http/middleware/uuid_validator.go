package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/dispatch-engine/internal/interface/http/response"
)

// UUIDValidator проверяет, что параметр маршрута является валидным UUID.
// Использование: group.GET("/requests/:id", UUIDValidator("id"), h.Get)
func UUIDValidator(paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Param(paramName)
		if raw == "" {
			response.BadRequest(c, "параметр "+paramName+" обязателен")
			c.Abort()
			return
		}
		if _, err := uuid.Parse(raw); err != nil {
			response.BadRequest(c, "параметр "+paramName+" должен быть валидным UUID")
			c.Abort()
			return
		}
		c.Next()
	}
}
