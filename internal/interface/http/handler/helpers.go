package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
	"github.com/ignatzorin/dispatch-engine/internal/http/middleware"
	"github.com/ignatzorin/dispatch-engine/internal/interface/http/response"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

func currentActor(c *gin.Context) (valueobject.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		response.Unauthorized(c, "требуется авторизация")
		return valueobject.Actor{}, false
	}
	return actor, true
}

// fail передаёт ошибку в ErrorHandler, который отрисует её и запишет в лог.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return false
	}
	return true
}

// bindOptionalJSON допускает пустое тело запроса.
func bindOptionalJSON(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return bindJSON(c, dst)
}

func parseIntQuery(c *gin.Context, key string, defaultValue int) int {
	valueStr := c.Query(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil || value < 0 {
		return defaultValue
	}

	return value
}

func pageParams(c *gin.Context) (limit, offset int) {
	limit = parseIntQuery(c, "limit", defaultListLimit)
	if limit == 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, parseIntQuery(c, "offset", 0)
}
