package service

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Роли в access токене
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// ErrInvalidToken токен не прошёл проверку.
var ErrInvalidToken = errors.New("invalid access token")

// TokenVerifier проверяет access токены, выпущенные сервисом авторизации.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier создаёт проверяющего с общим секретом HS256.
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// ParseAccess извлекает userID и роль из access токена. sub содержит числовой id пользователя.
func (v *TokenVerifier) ParseAccess(token string) (int64, string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return 0, "", ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return 0, "", jwt.ErrTokenInvalidClaims
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return 0, "", ErrInvalidToken
	}
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || userID <= 0 {
		return 0, "", ErrInvalidToken
	}

	role, _ := claims["role"].(string)
	if role == "" {
		role = RoleUser
	}

	return userID, role, nil
}

// Issue подписывает access токен. Нужен локальной разработке и тестам, в бою токены выпускает сервис авторизации.
func (v *TokenVerifier) Issue(userID int64, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(userID, 10),
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
