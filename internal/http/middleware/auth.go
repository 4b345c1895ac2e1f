package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
	"github.com/ignatzorin/dispatch-engine/internal/interface/http/response"
	"github.com/ignatzorin/dispatch-engine/internal/service"
)

// ContextActorKey ключ участника в gin.Context.
const ContextActorKey = "actor"

// AuthMiddleware проверяет JWT access токен и кладёт участника в контекст.
// Для websocket и SSE токен можно передать параметром ?token=.
func AuthMiddleware(tokens *service.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			response.Unauthorized(c, "требуется авторизация")
			c.Abort()
			return
		}

		actor, err := tokens.ParseAccess(raw)
		if err != nil {
			response.Unauthorized(c, "токен невалиден")
			c.Abort()
			return
		}

		c.Set(ContextActorKey, actor)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return c.Query("token")
}

// ActorFrom возвращает участника, положенного AuthMiddleware.
func ActorFrom(c *gin.Context) (valueobject.Actor, bool) {
	v, ok := c.Get(ContextActorKey)
	if !ok {
		return valueobject.Actor{}, false
	}
	actor, ok := v.(valueobject.Actor)
	return actor, ok
}

// RequireSystem пропускает только системных участников (диспетчер, планировщик).
func RequireSystem() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok || !actor.IsSystem() {
			response.Forbidden(c, "доступно только системной роли")
			c.Abort()
			return
		}
		c.Next()
	}
}
