package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
)

// ActorClaims клеймы access токена: sub идентификатор участника, role его роль.
type ActorClaims struct {
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager отвечает за выпуск и проверку JWT.
type TokenManager struct {
	secret    []byte
	accessTTL time.Duration
}

// NewTokenManager создаёт менеджер токенов.
func NewTokenManager(secret string, accessTTL time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), accessTTL: accessTTL}
}

// Issue выпускает access токен для участника. В проде токены выпускает внешний сервис учётных записей,
// здесь выпуск нужен для локального запуска и тестов.
func (m *TokenManager) Issue(actor valueobject.Actor, now time.Time) (string, time.Time, error) {
	if err := actor.Validate(); err != nil {
		return "", time.Time{}, err
	}
	exp := now.Add(m.accessTTL)
	claims := ActorClaims{
		Role: string(actor.Role),
		Name: actor.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// ParseAccess проверяет подпись и срок токена и возвращает участника.
func (m *TokenManager) ParseAccess(token string) (valueobject.Actor, error) {
	parsed, err := jwt.ParseWithClaims(token, &ActorClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("неожиданный алгоритм подписи %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return valueobject.Actor{}, err
	}

	claims, ok := parsed.Claims.(*ActorClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return valueobject.Actor{}, jwt.ErrTokenInvalidClaims
	}

	role, err := valueobject.NewActorRole(claims.Role)
	if err != nil {
		return valueobject.Actor{}, jwt.ErrTokenInvalidClaims
	}
	actor := valueobject.Actor{Role: role, ID: claims.Subject, Name: claims.Name}
	return actor, nil
}
